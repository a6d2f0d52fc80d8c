package orchestrator

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hairizuanbinnoorazman/security-e2e/pagedriver"
)

var (
	ErrUnknownProject = errors.New("unknown project")
)

// Project is one browser configuration of the execution matrix.
type Project struct {
	Name   string
	Engine pagedriver.Engine
	// Record enables video capture for the project.
	Record bool
}

// ProjectDefaults are the launch settings shared by every project.
type ProjectDefaults struct {
	Headless          bool          `mapstructure:"headless"`
	ViewportWidth     int           `mapstructure:"viewport_width"`
	ViewportHeight    int           `mapstructure:"viewport_height"`
	IgnoreHTTPSErrors bool          `mapstructure:"ignore_https_errors"`
	ActionTimeout     time.Duration `mapstructure:"action_timeout"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	SlowMo            time.Duration `mapstructure:"slow_mo"`
}

// DefaultProjectDefaults returns the settings the suite was tuned against.
func DefaultProjectDefaults() ProjectDefaults {
	return ProjectDefaults{
		Headless:          true,
		ViewportWidth:     1280,
		ViewportHeight:    720,
		IgnoreHTTPSErrors: true,
		ActionTimeout:     60 * time.Second,
		NavigationTimeout: 60 * time.Second,
		SlowMo:            100 * time.Millisecond,
	}
}

func (d ProjectDefaults) engine(name, browser, channel string, slow bool) pagedriver.Engine {
	e := pagedriver.Engine{
		Name:              name,
		BrowserName:       browser,
		Channel:           channel,
		Headless:          d.Headless,
		ViewportWidth:     d.ViewportWidth,
		ViewportHeight:    d.ViewportHeight,
		IgnoreHTTPSErrors: d.IgnoreHTTPSErrors,
		ActionTimeout:     d.ActionTimeout,
		NavigationTimeout: d.NavigationTimeout,
	}
	if slow {
		e.SlowMo = d.SlowMo
	}
	return e
}

// Projects returns the four-browser matrix. Edge runs without a recorder.
func Projects(d ProjectDefaults) []Project {
	return []Project{
		{Name: "Chrome", Engine: d.engine("Chrome", "chromium", "", false), Record: true},
		{Name: "Firefox", Engine: d.engine("Firefox", "firefox", "", true), Record: true},
		{Name: "Safari", Engine: d.engine("Safari", "webkit", "", true), Record: true},
		{Name: "Edge", Engine: d.engine("Edge", "chromium", "msedge", true), Record: false},
	}
}

// SelectProjects narrows all to names, keeping the order of names. No
// names selects everything.
func SelectProjects(all []Project, names []string) ([]Project, error) {
	if len(names) == 0 {
		return all, nil
	}
	out := make([]Project, 0, len(names))
	for _, name := range names {
		found := false
		for _, p := range all {
			if strings.EqualFold(p.Name, name) {
				out = append(out, p)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProject, name)
		}
	}
	return out, nil
}

// RecordsFor builds the per-project recording predicate for the
// instrumentation hook.
func RecordsFor(projects []Project) func(project string) bool {
	record := make(map[string]bool, len(projects))
	for _, p := range projects {
		record[p.Name] = p.Record
	}
	return func(project string) bool {
		return record[project]
	}
}
