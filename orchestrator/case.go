package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/hairizuanbinnoorazman/security-e2e/testctx"
)

var (
	ErrInvalidCase = errors.New("invalid case")
)

// Body is the code of one case. It drives tc's page and returns a hard
// assertion failure, testctx.ErrSkipped, or nil.
type Body func(ctx context.Context, tc *testctx.TestContext) error

// Case is one test of a suite.
type Case struct {
	// Title carries the tracker identifier, e.g. "@SB-1234 login with valid credentials".
	Title       string
	Suite       string
	Role        string
	Summary     string
	Description string
	Run         Body
}

// ID returns the identifier embedded in the title, or the title itself
// when none is embedded.
func (c Case) ID() string {
	if id := ParseIdentifier(c.Title); id != "" {
		return id
	}
	return c.Title
}

// ParseIdentifier returns the text between the first '@' of title and the
// next whitespace.
func ParseIdentifier(title string) string {
	at := strings.IndexByte(title, '@')
	if at < 0 {
		return ""
	}
	rest := title[at+1:]
	if end := strings.IndexAny(rest, " \t\n"); end >= 0 {
		rest = rest[:end]
	}
	return rest
}

// Validate checks the case can be scheduled.
func (c Case) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("%w: empty title", ErrInvalidCase)
	}
	if c.Run == nil {
		return fmt.Errorf("%w: %s has no body", ErrInvalidCase, c.Title)
	}
	return nil
}

// Select returns the cases whose title or suite matches grep. An empty
// pattern selects everything.
func Select(cases []Case, grep string) ([]Case, error) {
	if grep == "" {
		return cases, nil
	}
	re, err := regexp.Compile(grep)
	if err != nil {
		return nil, fmt.Errorf("invalid grep pattern: %w", err)
	}
	var out []Case
	for _, c := range cases {
		if re.MatchString(c.Title) || re.MatchString(c.Suite) {
			out = append(out, c)
		}
	}
	return out, nil
}
