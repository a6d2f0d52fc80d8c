// Package issuetracker files and updates issues for failing end-to-end
// cases. Providers register themselves by name, the way database/sql
// drivers do.
package issuetracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

var (
	ErrIssueNotFound          = errors.New("issue not found")
	ErrInvalidProvider        = errors.New("invalid provider type")
	ErrConnectionFailed       = errors.New("connection validation failed")
	ErrAttachmentsUnsupported = errors.New("provider does not accept attachments")
)

type ProviderType string

const (
	ProviderJira   ProviderType = "jira"
	ProviderGitHub ProviderType = "github"
)

func (p ProviderType) IsValid() bool {
	return p == ProviderJira || p == ProviderGitHub
}

type Issue struct {
	ExternalID string       `json:"external_id"`
	Title      string       `json:"title"`
	Status     string       `json:"status"`
	URL        string       `json:"url"`
	Provider   ProviderType `json:"provider"`
	CreatedAt  time.Time    `json:"created_at"`
}

type CreateIssueInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	ProjectKey  string   `json:"project_key"`
	IssueType   string   `json:"issue_type"`
	Repository  string   `json:"repository"`
	Labels      []string `json:"labels"`
}

// Client is an issue tracker a failure can be filed in.
type Client interface {
	// FindOpen returns the open issue carrying label, or ErrIssueNotFound.
	FindOpen(ctx context.Context, label string) (*Issue, error)

	CreateIssue(ctx context.Context, input CreateIssueInput) (*Issue, error)

	// AddComment appends a comment to an existing issue.
	AddComment(ctx context.Context, externalID, body string) error

	// Attach uploads a file to an issue. Providers without attachment
	// support return ErrAttachmentsUnsupported.
	Attach(ctx context.Context, externalID, name, contentType string, r io.Reader) error

	ValidateConnection(ctx context.Context) error
}

// Factory builds a Client from provider settings.
type Factory func(settings map[string]string) (Client, error)

var (
	mu        sync.RWMutex
	factories = map[ProviderType]Factory{}
)

// Register makes a provider available to New. It panics on duplicates.
func Register(provider ProviderType, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := factories[provider]; dup {
		panic("issuetracker: Register called twice for provider " + string(provider))
	}
	factories[provider] = f
}

// New creates a Client for a registered provider.
func New(provider ProviderType, settings map[string]string) (Client, error) {
	mu.RLock()
	f, ok := factories[provider]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProvider, provider)
	}
	return f(settings)
}

// Providers lists the registered providers.
func Providers() []ProviderType {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]ProviderType, 0, len(factories))
	for p := range factories {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
