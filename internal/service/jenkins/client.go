package jenkins

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Client talks to the Jenkins JSON API for a single controller.
type Client struct {
	baseURL  string
	username string
	apiToken string
	client   *http.Client
	logger   *slog.Logger
}

// NewClient returns a Jenkins API client. username/apiToken may be empty for
// anonymous controllers.
func NewClient(baseURL, username, apiToken string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		apiToken: apiToken,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// BuildInfo is one entry of a job's build history.
type BuildInfo struct {
	Number    int       `json:"number"`
	Result    string    `json:"result"`
	Timestamp time.Time `json:"timestamp"`
}

// GetBuildTimestamp fetches the instant Jenkins recorded for a build. Any
// network failure, non-2xx status, or malformed payload is reported as an
// *APIError.
func (c *Client) GetBuildTimestamp(ctx context.Context, projectPath string, buildNumber int) (time.Time, error) {
	url := fmt.Sprintf("%s%s/%d/api/json?tree=number,timestamp", c.baseURL, jobURLPath(projectPath), buildNumber)
	var payload struct {
		Number    int   `json:"number"`
		Timestamp int64 `json:"timestamp"`
	}
	if err := c.getJSON(ctx, "build_info", url, &payload); err != nil {
		return time.Time{}, err
	}
	if payload.Timestamp <= 0 {
		return time.Time{}, &APIError{Op: "build_info", Err: fmt.Errorf("build %s#%d has no timestamp", projectPath, buildNumber)}
	}
	return time.UnixMilli(payload.Timestamp).UTC(), nil
}

// ListBuilds returns the most recent builds of a job, newest first.
func (c *Client) ListBuilds(ctx context.Context, projectPath string, limit int) ([]BuildInfo, error) {
	if limit <= 0 {
		limit = 25
	}
	url := fmt.Sprintf("%s%s/api/json?tree=builds[number,result,timestamp]{0,%d}", c.baseURL, jobURLPath(projectPath), limit)
	var payload struct {
		Builds []struct {
			Number    int    `json:"number"`
			Result    string `json:"result"`
			Timestamp int64  `json:"timestamp"`
		} `json:"builds"`
	}
	if err := c.getJSON(ctx, "build_history", url, &payload); err != nil {
		return nil, err
	}
	builds := make([]BuildInfo, 0, len(payload.Builds))
	for _, b := range payload.Builds {
		builds = append(builds, BuildInfo{
			Number:    b.Number,
			Result:    b.Result,
			Timestamp: time.UnixMilli(b.Timestamp).UTC(),
		})
	}
	return builds, nil
}

// ConsoleText fetches the raw console log of a build.
func (c *Client) ConsoleText(ctx context.Context, projectPath string, buildNumber int) (string, error) {
	url := fmt.Sprintf("%s%s/%d/consoleText", c.baseURL, jobURLPath(projectPath), buildNumber)
	resp, err := c.get(ctx, "console_text", url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &APIError{Op: "console_text", Status: resp.StatusCode, Err: err}
	}
	return string(body), nil
}

func (c *Client) getJSON(ctx context.Context, op, url string, out any) error {
	resp, err := c.get(ctx, op, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) get(ctx context.Context, op, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &APIError{Op: op, Err: err}
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.apiToken)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("jenkins request failed", "op", op, "error", err)
		return nil, &APIError{Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		c.logger.Warn("jenkins returned error status", "op", op, "status", resp.StatusCode)
		return nil, &APIError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	return resp, nil
}

// jobURLPath maps "3.0.0/mr3.0.0_release" to "/job/3.0.0/job/mr3.0.0_release".
func jobURLPath(projectPath string) string {
	var b strings.Builder
	for _, segment := range strings.Split(strings.Trim(projectPath, "/"), "/") {
		if segment == "" {
			continue
		}
		b.WriteString("/job/")
		b.WriteString(segment)
	}
	return b.String()
}
