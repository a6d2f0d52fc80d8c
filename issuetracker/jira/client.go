// Package jira files end-to-end failures as Jira issues.
package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/hairizuanbinnoorazman/security-e2e/issuetracker"
)

func init() {
	issuetracker.Register(issuetracker.ProviderJira, func(settings map[string]string) (issuetracker.Client, error) {
		return NewClient(settings)
	})
}

// Client implements the issuetracker.Client interface for Jira.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	email          string
	apiToken       string
	defaultProject string
}

// NewClient creates a new Jira issue tracker client.
func NewClient(settings map[string]string) (*Client, error) {
	baseURL, ok := settings["url"]
	if !ok || baseURL == "" {
		return nil, fmt.Errorf("jira: url is required")
	}
	baseURL = strings.TrimRight(baseURL, "/")

	email, ok := settings["email"]
	if !ok || email == "" {
		return nil, fmt.Errorf("jira: email is required")
	}

	apiToken, ok := settings["api_token"]
	if !ok || apiToken == "" {
		return nil, fmt.Errorf("jira: api_token is required")
	}

	return &Client{
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		baseURL:        baseURL,
		email:          email,
		apiToken:       apiToken,
		defaultProject: settings["default_project"],
	}, nil
}

func (c *Client) doRequest(ctx context.Context, method, url string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("jira: failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("jira: failed to create request: %w", err)
	}

	req.SetBasicAuth(c.email, c.apiToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

// document wraps plain text in the Atlassian document format, one
// paragraph per line.
func document(text string) map[string]interface{} {
	var paragraphs []map[string]interface{}
	for _, line := range strings.Split(text, "\n") {
		p := map[string]interface{}{"type": "paragraph"}
		if line != "" {
			p["content"] = []map[string]interface{}{{"type": "text", "text": line}}
		}
		paragraphs = append(paragraphs, p)
	}
	return map[string]interface{}{
		"type":    "doc",
		"version": 1,
		"content": paragraphs,
	}
}

type jiraIssue struct {
	Key    string `json:"key"`
	Fields struct {
		Summary string `json:"summary"`
		Created string `json:"created"`
		Status  struct {
			Name string `json:"name"`
		} `json:"status"`
	} `json:"fields"`
}

func (c *Client) toIssue(ji *jiraIssue) *issuetracker.Issue {
	created, _ := time.Parse("2006-01-02T15:04:05.000-0700", ji.Fields.Created)
	return &issuetracker.Issue{
		ExternalID: ji.Key,
		Title:      ji.Fields.Summary,
		Status:     ji.Fields.Status.Name,
		URL:        fmt.Sprintf("%s/browse/%s", c.baseURL, ji.Key),
		Provider:   issuetracker.ProviderJira,
		CreatedAt:  created,
	}
}

// FindOpen searches the default project for an unresolved issue labelled label.
func (c *Client) FindOpen(ctx context.Context, label string) (*issuetracker.Issue, error) {
	jql := fmt.Sprintf("labels = %q AND statusCategory != Done", label)
	if c.defaultProject != "" {
		jql = fmt.Sprintf("project = %s AND %s", c.defaultProject, jql)
	}
	jql += " order by created DESC"

	apiURL := fmt.Sprintf("%s/rest/api/3/search?jql=%s&maxResults=1&fields=summary,status,created",
		c.baseURL, url.QueryEscape(jql))
	resp, err := c.doRequest(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("jira: search issues failed with status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Issues []jiraIssue `json:"issues"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("jira: failed to decode response: %w", err)
	}
	if len(result.Issues) == 0 {
		return nil, issuetracker.ErrIssueNotFound
	}
	return c.toIssue(&result.Issues[0]), nil
}

// CreateIssue creates a new Jira issue.
func (c *Client) CreateIssue(ctx context.Context, input issuetracker.CreateIssueInput) (*issuetracker.Issue, error) {
	projectKey := input.ProjectKey
	if projectKey == "" {
		projectKey = c.defaultProject
	}
	if projectKey == "" {
		return nil, fmt.Errorf("jira: project_key is required")
	}

	issueType := input.IssueType
	if issueType == "" {
		issueType = "Bug"
	}

	fields := map[string]interface{}{
		"project":     map[string]string{"key": projectKey},
		"summary":     input.Title,
		"description": document(input.Description),
		"issuetype":   map[string]string{"name": issueType},
	}
	if len(input.Labels) > 0 {
		fields["labels"] = input.Labels
	}

	apiURL := fmt.Sprintf("%s/rest/api/3/issue", c.baseURL)
	resp, err := c.doRequest(ctx, http.MethodPost, apiURL, map[string]interface{}{"fields": fields})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("jira: create issue failed with status %d: %s", resp.StatusCode, string(body))
	}

	var created struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("jira: failed to decode response: %w", err)
	}

	return &issuetracker.Issue{
		ExternalID: created.Key,
		Title:      input.Title,
		Status:     "Open",
		URL:        fmt.Sprintf("%s/browse/%s", c.baseURL, created.Key),
		Provider:   issuetracker.ProviderJira,
		CreatedAt:  time.Now(),
	}, nil
}

// AddComment adds a comment to an issue.
func (c *Client) AddComment(ctx context.Context, externalID, body string) error {
	apiURL := fmt.Sprintf("%s/rest/api/3/issue/%s/comment", c.baseURL, url.PathEscape(externalID))
	resp, err := c.doRequest(ctx, http.MethodPost, apiURL, map[string]interface{}{"body": document(body)})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK:
		return nil
	case http.StatusNotFound:
		return issuetracker.ErrIssueNotFound
	default:
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("jira: add comment failed with status %d: %s", resp.StatusCode, string(b))
	}
}

// Attach uploads r as an attachment of the issue.
func (c *Client) Attach(ctx context.Context, externalID, name, contentType string, r io.Reader) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := mw.CreatePart(header)
	if err != nil {
		return fmt.Errorf("jira: failed to create attachment part: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("jira: failed to read attachment: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("jira: failed to finish attachment: %w", err)
	}

	apiURL := fmt.Sprintf("%s/rest/api/3/issue/%s/attachments", c.baseURL, url.PathEscape(externalID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, &buf)
	if err != nil {
		return fmt.Errorf("jira: failed to create request: %w", err)
	}
	req.SetBasicAuth(c.email, c.apiToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Atlassian-Token", "no-check")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return issuetracker.ErrIssueNotFound
	default:
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("jira: attach failed with status %d: %s", resp.StatusCode, string(b))
	}
}

// ValidateConnection validates the Jira connection by fetching the authenticated user.
func (c *Client) ValidateConnection(ctx context.Context) error {
	apiURL := fmt.Sprintf("%s/rest/api/3/myself", c.baseURL)
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
