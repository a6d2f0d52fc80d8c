package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hairizuanbinnoorazman/security-e2e/issuetracker"
	"github.com/hairizuanbinnoorazman/security-e2e/logger"
	"github.com/hairizuanbinnoorazman/security-e2e/testctx"
	"golang.org/x/time/rate"
)

// IssuesConfig controls failure filing.
type IssuesConfig struct {
	ProjectKey  string        `mapstructure:"project_key"`
	IssueType   string        `mapstructure:"issue_type"`
	LabelPrefix string        `mapstructure:"label_prefix"`
	Interval    time.Duration `mapstructure:"interval"`
	Burst       int           `mapstructure:"burst"`
	// MaxAttachments bounds how many screenshots go to one issue.
	MaxAttachments int `mapstructure:"max_attachments"`
}

// Issues files an issue when a case fails on its final attempt. A case
// with an open issue gets a comment instead of a duplicate. Tracker calls
// are throttled.
type Issues struct {
	client  issuetracker.Client
	config  IssuesConfig
	limiter *rate.Limiter
	logger  logger.Logger

	mu    sync.Mutex
	shots map[string][]testctx.Attachment
	filed map[string]string
}

// NewIssues creates a sink filing into client.
func NewIssues(client issuetracker.Client, config IssuesConfig, log logger.Logger) *Issues {
	if config.LabelPrefix == "" {
		config.LabelPrefix = "e2e-"
	}
	if config.Interval <= 0 {
		config.Interval = time.Second
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}
	if config.MaxAttachments <= 0 {
		config.MaxAttachments = 3
	}
	return &Issues{
		client:  client,
		config:  config,
		limiter: rate.NewLimiter(rate.Every(config.Interval), config.Burst),
		logger:  log.WithField("component", "issues"),
		shots:   make(map[string][]testctx.Attachment),
		filed:   make(map[string]string),
	}
}

func (s *Issues) Name() string { return "issues" }

func (s *Issues) Annotate(ctx context.Context, ref testctx.Ref, annotations []testctx.Annotation) error {
	return nil
}

// Attach keeps screenshots until the result is known.
func (s *Issues) Attach(ctx context.Context, ref testctx.Ref, a testctx.Attachment) error {
	if !strings.HasPrefix(a.ContentType, "image/") {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shots[ref.String()] = append(s.shots[ref.String()], a)
	return nil
}

// Filed returns the issue filed or commented on for a test key.
func (s *Issues) Filed(testKey string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.filed[testKey]
	return id, ok
}

func (s *Issues) Complete(ctx context.Context, result Result) error {
	s.mu.Lock()
	shots := s.shots[result.Ref.String()]
	delete(s.shots, result.Ref.String())
	s.mu.Unlock()

	if result.Status != testctx.StatusFailed || !result.Final {
		return nil
	}

	key := testKey(result)
	label := s.config.LabelPrefix + key

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	issue, err := s.client.FindOpen(ctx, label)
	switch {
	case errors.Is(err, issuetracker.ErrIssueNotFound):
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		issue, err = s.client.CreateIssue(ctx, issuetracker.CreateIssueInput{
			Title:       fmt.Sprintf("[E2E] %s failed on %s", key, result.Ref.Project),
			Description: s.describe(result),
			ProjectKey:  s.config.ProjectKey,
			IssueType:   s.config.IssueType,
			Labels:      []string{"e2e", label},
		})
		if err != nil {
			return fmt.Errorf("failed to file issue for %s: %w", key, err)
		}
		s.logger.Info(ctx, "issue filed", logger.Fields{"test_key": key, "issue": issue.ExternalID})
	case err != nil:
		return fmt.Errorf("failed to search issues for %s: %w", key, err)
	default:
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		if err := s.client.AddComment(ctx, issue.ExternalID, s.describe(result)); err != nil {
			return fmt.Errorf("failed to comment on %s: %w", issue.ExternalID, err)
		}
		s.logger.Info(ctx, "issue updated", logger.Fields{"test_key": key, "issue": issue.ExternalID})
	}

	s.mu.Lock()
	s.filed[key] = issue.ExternalID
	s.mu.Unlock()

	if len(shots) > s.config.MaxAttachments {
		shots = shots[len(shots)-s.config.MaxAttachments:]
	}
	for _, a := range shots {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		err := s.client.Attach(ctx, issue.ExternalID, a.Name, a.ContentType, bytes.NewReader(a.Data))
		if errors.Is(err, issuetracker.ErrAttachmentsUnsupported) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to attach %s to %s: %w", a.Name, issue.ExternalID, err)
		}
	}
	return nil
}

func (s *Issues) describe(result Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", result.Ref.Title)
	fmt.Fprintf(&b, "Project: %s, attempt %d\n", result.Ref.Project, result.Ref.Attempt)
	if result.Role != "" {
		fmt.Fprintf(&b, "Role: %s\n", result.Role)
	}
	fmt.Fprintf(&b, "Run: %s\n", result.Ref.RunID)
	fmt.Fprintf(&b, "Error: %s", result.Error)
	return b.String()
}
