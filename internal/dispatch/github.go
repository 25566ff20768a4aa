package dispatch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.github.com"

// Client triggers the scrape workflow through the GitHub Actions
// workflow_dispatch API. The workflow runs the pipeline on a CI runner with
// a real browser; the API process only hands the request off.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	repo       string
	workflow   string
	ref        string
}

// NewClient builds a dispatch client for owner/repo and a workflow file
// name such as scrape.yml. Returns nil when token or repo are unset so the
// caller can treat dispatch as unconfigured.
func NewClient(token, repo, workflow string) *Client {
	if token == "" || repo == "" {
		return nil
	}
	if workflow == "" {
		workflow = "scrape.yml"
	}
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    defaultBaseURL,
		token:      token,
		repo:       repo,
		workflow:   workflow,
		ref:        "main",
	}
}

type dispatchPayload struct {
	Ref    string            `json:"ref"`
	Inputs map[string]string `json:"inputs,omitempty"`
}

// TriggerRun dispatches the workflow. An empty nasID requests a full
// sweep; zero start and end dates keep the report's default window, and
// must be set or zero together.
func (c *Client) TriggerRun(nasID string, start, end time.Time) error {
	if c == nil {
		return errors.New("dispatch client is not configured")
	}
	if start.IsZero() != end.IsZero() {
		return errors.New("start and end dates must be provided together")
	}

	payload := dispatchPayload{Ref: c.ref}
	inputs := map[string]string{}
	if nasID != "" {
		inputs["nas_id"] = nasID
	}
	if !start.IsZero() {
		inputs["start_date"] = start.Format("2006-01-02")
		inputs["end_date"] = end.Format("2006-01-02")
	}
	if len(inputs) > 0 {
		payload.Inputs = inputs
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode dispatch payload: %w", err)
	}

	url := fmt.Sprintf("%s/repos/%s/actions/workflows/%s/dispatches", c.baseURL, c.repo, c.workflow)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build dispatch request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("dispatch request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("dispatch rejected with status %d: %s", resp.StatusCode, string(detail))
	}
	return nil
}
