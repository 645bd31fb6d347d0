// Package easdk is a small client for the early adopters HTTP API.
package easdk

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
)

// Client is a minimal early adopters HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

type Project struct {
	ID          int64  `json:"id"`
	Owner       string `json:"owner"`
	MetadataURI string `json:"metadata_uri"`
	Distributed bool   `json:"distributed"`
	CreatedAt   string `json:"created_at"`
}

type Activity struct {
	ProjectID int64  `json:"project_id"`
	Index     int    `json:"index"`
	Type      string `json:"type"`
	DetailURI string `json:"detail_uri"`
}

type CompletedActivity struct {
	ID            string `json:"id"`
	ProjectID     int64  `json:"project_id"`
	ActivityIndex int    `json:"activity_index"`
	ActivityType  string `json:"activity_type"`
	Author        string `json:"author"`
	SubmittedAt   string `json:"submitted_at"`
	Content       string `json:"content"`
}

type Verification struct {
	CompletedActivityID string `json:"completed_activity_id"`
	Status              string `json:"status"`
	ClaimID             string `json:"claim_id,omitempty"`
}

type Acceptance struct {
	Seq                 int64  `json:"seq"`
	CompletedActivityID string `json:"completed_activity_id"`
	Author              string `json:"author"`
	AcceptedAt          string `json:"accepted_at"`
}

type Payout struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

// Reward amounts are wei strings; ValueFormatted is in native units.
type Reward struct {
	ProjectID      int64    `json:"project_id"`
	DetailURI      string   `json:"detail_uri"`
	Value          string   `json:"value"`
	ValueFormatted string   `json:"value_formatted"`
	Share          string   `json:"share"`
	Remainder      string   `json:"remainder"`
	Recipients     int      `json:"recipients"`
	Payouts        []Payout `json:"payouts"`
}

type Balance struct {
	Account  string `json:"account"`
	Wei      string `json:"wei"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	ProjectID  int64          `json:"project_id"`
	EntityID   string         `json:"entity_id"`
	EntityKind string         `json:"entity_kind"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// APIError wraps non-2xx responses. Code is the envelope error code when the
// body carries one.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

func (c *Client) CreateProject(ctx context.Context, metadataURI string) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodPost, "v0/projects", map[string]any{"metadata_uri": metadataURI}, &resp)
	return resp, err
}

func (c *Client) AddActivity(ctx context.Context, projectID int64, activityType, detailURI string) (Activity, error) {
	var resp Activity
	body := map[string]any{"type": activityType, "detail_uri": detailURI}
	err := c.do(ctx, http.MethodPost, projectPath(projectID, "activities"), body, &resp)
	return resp, err
}

func (c *Client) SubmitCompletedActivity(ctx context.Context, projectID int64, index int, content string) (CompletedActivity, error) {
	var resp CompletedActivity
	endpoint := projectPath(projectID, fmt.Sprintf("activities/%d/completions", index))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"content": content}, &resp)
	return resp, err
}

// CompletedActivities lists a project's completions, most recent first.
func (c *Client) CompletedActivities(ctx context.Context, projectID int64) ([]CompletedActivity, error) {
	var resp []CompletedActivity
	err := c.do(ctx, http.MethodGet, projectPath(projectID, "completions"), nil, &resp)
	return resp, err
}

func (c *Client) Verification(ctx context.Context, projectID int64, index int, completionID string) (Verification, error) {
	return c.verification(ctx, http.MethodGet, projectID, index, completionID, "")
}

func (c *Client) StartVerification(ctx context.Context, projectID int64, index int, completionID string) (Verification, error) {
	return c.verification(ctx, http.MethodPost, projectID, index, completionID, "/start")
}

func (c *Client) FinishVerification(ctx context.Context, projectID int64, index int, completionID string) (Verification, error) {
	return c.verification(ctx, http.MethodPost, projectID, index, completionID, "/finish")
}

func (c *Client) verification(ctx context.Context, method string, projectID int64, index int, completionID, suffix string) (Verification, error) {
	var resp Verification
	endpoint := projectPath(projectID, fmt.Sprintf("activities/%d/completions/%s/verification%s", index, url.PathEscape(completionID), suffix))
	err := c.do(ctx, method, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) Accept(ctx context.Context, projectID int64, index int, completionID, author string) (Acceptance, error) {
	var resp Acceptance
	body := map[string]any{"completed_activity_id": completionID, "author": author}
	err := c.do(ctx, http.MethodPost, projectPath(projectID, fmt.Sprintf("activities/%d/acceptances", index)), body, &resp)
	return resp, err
}

// DistributeReward splits value, given in native units, among accepted authors.
func (c *Client) DistributeReward(ctx context.Context, projectID int64, detailURI, value string) (Reward, error) {
	var resp Reward
	body := map[string]any{"detail_uri": detailURI, "value": value}
	err := c.do(ctx, http.MethodPost, projectPath(projectID, "reward"), body, &resp)
	return resp, err
}

func (c *Client) Reward(ctx context.Context, projectID int64) (Reward, error) {
	var resp Reward
	err := c.do(ctx, http.MethodGet, projectPath(projectID, "reward"), nil, &resp)
	return resp, err
}

func (c *Client) Balance(ctx context.Context, account string) (Balance, error) {
	var resp Balance
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("v0/accounts/%s/balance", url.PathEscape(account)), nil, &resp)
	return resp, err
}

// ChatAccess reports whether userDID may join the project chat. A denial is
// not an error.
func (c *Client) ChatAccess(ctx context.Context, projectID int64, userDID string) (bool, error) {
	endpoint := projectPath(projectID, "chat-access") + "?user_did=" + url.QueryEscape(userDID)
	err := c.do(ctx, http.MethodGet, endpoint, nil, nil)
	if err == nil {
		return true, nil
	}
	if apiErr, ok := err.(*APIError); ok && apiErr.StatusCode == http.StatusForbidden {
		return false, nil
	}
	return false, err
}

// PutContent stores a JSON document and returns its ipfs:// URI.
func (c *Client) PutContent(ctx context.Context, doc any) (string, error) {
	var resp struct {
		URI string `json:"uri"`
	}
	err := c.do(ctx, http.MethodPost, "v0/content", doc, &resp)
	return resp.URI, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, projectID int64, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, projectID, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, projectID int64, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := projectPath(projectID, "events")
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func projectPath(projectID int64, p string) string {
	return fmt.Sprintf("v0/projects/%d/%s", projectID, strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
