// Package github files end-to-end failures as GitHub issues.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hairizuanbinnoorazman/security-e2e/issuetracker"
)

const defaultBaseURL = "https://api.github.com"

func init() {
	issuetracker.Register(issuetracker.ProviderGitHub, func(settings map[string]string) (issuetracker.Client, error) {
		return NewClient(settings)
	})
}

// Client implements the issuetracker.Client interface for GitHub.
type Client struct {
	httpClient *http.Client
	token      string
	baseURL    string
	owner      string
	repo       string
}

// NewClient creates a GitHub client filing into settings["repository"]
// ("owner/repo").
func NewClient(settings map[string]string) (*Client, error) {
	token, ok := settings["token"]
	if !ok || token == "" {
		return nil, fmt.Errorf("github: token is required")
	}

	owner, repo, err := parseOwnerRepo(settings["repository"])
	if err != nil {
		return nil, err
	}

	baseURL := defaultBaseURL
	if u, ok := settings["base_url"]; ok && u != "" {
		baseURL = strings.TrimRight(u, "/")
	}

	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		token:      token,
		baseURL:    baseURL,
		owner:      owner,
		repo:       repo,
	}, nil
}

func (c *Client) doRequest(ctx context.Context, method, url string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("github: failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("github: failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

// parseExternalID parses "owner/repo#number" into its issue number,
// checking it belongs to the configured repository.
func (c *Client) parseExternalID(externalID string) (int, error) {
	parts := strings.SplitN(externalID, "#", 2)
	if len(parts) != 2 || parts[0] != c.owner+"/"+c.repo {
		return 0, fmt.Errorf("github: invalid external ID %q, expected %s/%s#number", externalID, c.owner, c.repo)
	}
	number, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("github: invalid issue number in external ID: %w", err)
	}
	return number, nil
}

// parseOwnerRepo parses "owner/repo" into owner and repo.
func parseOwnerRepo(repository string) (owner, repo string, err error) {
	parts := strings.SplitN(repository, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("github: invalid repository format, expected owner/repo")
	}
	return parts[0], parts[1], nil
}

type githubIssue struct {
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	State     string    `json:"state"`
	HTMLURL   string    `json:"html_url"`
	CreatedAt time.Time `json:"created_at"`
}

func (c *Client) toIssue(gi *githubIssue) *issuetracker.Issue {
	return &issuetracker.Issue{
		ExternalID: fmt.Sprintf("%s/%s#%d", c.owner, c.repo, gi.Number),
		Title:      gi.Title,
		Status:     gi.State,
		URL:        gi.HTMLURL,
		Provider:   issuetracker.ProviderGitHub,
		CreatedAt:  gi.CreatedAt,
	}
}

// FindOpen returns the newest open issue carrying label.
func (c *Client) FindOpen(ctx context.Context, label string) (*issuetracker.Issue, error) {
	apiURL := fmt.Sprintf("%s/repos/%s/%s/issues?state=open&per_page=1&labels=%s",
		c.baseURL, c.owner, c.repo, url.QueryEscape(label))
	resp, err := c.doRequest(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("github: list issues failed with status %d: %s", resp.StatusCode, string(body))
	}

	var issues []githubIssue
	if err := json.NewDecoder(resp.Body).Decode(&issues); err != nil {
		return nil, fmt.Errorf("github: failed to decode response: %w", err)
	}
	if len(issues) == 0 {
		return nil, issuetracker.ErrIssueNotFound
	}
	return c.toIssue(&issues[0]), nil
}

// CreateIssue creates a new GitHub issue in the configured repository.
func (c *Client) CreateIssue(ctx context.Context, input issuetracker.CreateIssueInput) (*issuetracker.Issue, error) {
	reqBody := map[string]interface{}{
		"title": input.Title,
		"body":  input.Description,
	}
	if len(input.Labels) > 0 {
		reqBody["labels"] = input.Labels
	}

	apiURL := fmt.Sprintf("%s/repos/%s/%s/issues", c.baseURL, c.owner, c.repo)
	resp, err := c.doRequest(ctx, http.MethodPost, apiURL, reqBody)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("github: create issue failed with status %d: %s", resp.StatusCode, string(body))
	}

	var gi githubIssue
	if err := json.NewDecoder(resp.Body).Decode(&gi); err != nil {
		return nil, fmt.Errorf("github: failed to decode response: %w", err)
	}

	return c.toIssue(&gi), nil
}

// AddComment adds a comment to an issue.
func (c *Client) AddComment(ctx context.Context, externalID, body string) error {
	number, err := c.parseExternalID(externalID)
	if err != nil {
		return err
	}

	apiURL := fmt.Sprintf("%s/repos/%s/%s/issues/%d/comments", c.baseURL, c.owner, c.repo, number)
	resp, err := c.doRequest(ctx, http.MethodPost, apiURL, map[string]string{"body": body})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		return nil
	case http.StatusNotFound:
		return issuetracker.ErrIssueNotFound
	default:
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("github: add comment failed with status %d: %s", resp.StatusCode, string(b))
	}
}

// Attach is not available through the GitHub issues API.
func (c *Client) Attach(ctx context.Context, externalID, name, contentType string, r io.Reader) error {
	return issuetracker.ErrAttachmentsUnsupported
}

// ValidateConnection validates the GitHub connection by fetching the authenticated user.
func (c *Client) ValidateConnection(ctx context.Context) error {
	apiURL := fmt.Sprintf("%s/user", c.baseURL)
	resp, err := c.doRequest(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", issuetracker.ErrConnectionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status %d", issuetracker.ErrConnectionFailed, resp.StatusCode)
	}

	return nil
}
