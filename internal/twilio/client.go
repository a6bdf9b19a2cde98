// Package twilio is a minimal Twilio REST API client covering what the
// dashboard needs: recent call listing and remote call termination.
package twilio

import (
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

// Call status values reported by the Twilio API and status callbacks.
const (
	CallStatusQueued     = "queued"
	CallStatusRinging    = "ringing"
	CallStatusInProgress = "in-progress"
	CallStatusCompleted  = "completed"
	CallStatusBusy       = "busy"
	CallStatusFailed     = "failed"
	CallStatusNoAnswer   = "no-answer"
	CallStatusCanceled   = "canceled"
)

// Terminal reports whether a call status means the call is over.
func Terminal(status string) bool {
	switch status {
	case CallStatusCompleted, CallStatusBusy, CallStatusFailed, CallStatusNoAnswer, CallStatusCanceled:
		return true
	}
	return false
}

// Config configures the client.
type Config struct {
	AccountSID string
	AuthToken  string
	BaseURL    string
	HTTPClient *http.Client
}

// Client talks to the Twilio REST API with account-credential basic auth.
type Client struct {
	accountSID string
	authToken  string
	baseURL    string
	httpClient *http.Client
}

// New creates a Twilio client.
func New(cfg Config) (*Client, error) {
	if cfg.AccountSID == "" {
		return nil, fmt.Errorf("twilio account sid is required")
	}
	if cfg.AuthToken == "" {
		return nil, fmt.Errorf("twilio auth token is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.twilio.com/2010-04-01"
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		baseURL:    baseURL,
		httpClient: httpClient,
	}, nil
}

// Call is a Twilio call resource, trimmed to the dashboard fields.
type Call struct {
	SID       string `json:"sid"`
	From      string `json:"from"`
	To        string `json:"to"`
	Status    string `json:"status"`
	StartTime string `json:"start_time"`
	Duration  string `json:"duration"`
}

type callListResponse struct {
	Calls []Call `json:"calls"`
}

// ListCalls fetches the most recent calls for the account.
func (c *Client) ListCalls(ctx context.Context, limit int) ([]Call, error) {
	if limit <= 0 {
		limit = 10
	}

	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls.json?PageSize=%s",
		c.baseURL, c.accountSID, strconv.Itoa(limit))

	var list callListResponse
	if err := c.get(ctx, endpoint, &list); err != nil {
		return nil, fmt.Errorf("failed to list calls: %w", err)
	}
	return list.Calls, nil
}

// CompleteCall asks Twilio to terminate an in-progress call.
func (c *Client) CompleteCall(ctx context.Context, callSID string) (*Call, error) {
	if callSID == "" {
		return nil, fmt.Errorf("call sid is required")
	}

	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls/%s.json", c.baseURL, c.accountSID, callSID)
	data := url.Values{"Status": {CallStatusCompleted}}

	var call Call
	if err := c.post(ctx, endpoint, data, &call); err != nil {
		return nil, fmt.Errorf("failed to complete call %s: %w", callSID, err)
	}
	return &call, nil
}

// Error is a Twilio API error payload.
type Error struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("twilio error %d: %s", e.Code, e.Message)
}

func (c *Client) get(ctx context.Context, url string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	return c.do(req, result)
}

func (c *Client) post(ctx context.Context, url string, data url.Values, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, result)
}

func (c *Client) do(req *http.Request, result any) error {
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var apiErr Error
		if err := json.Unmarshal(body, &apiErr); err != nil {
			return fmt.Errorf("twilio error: %s", string(body))
		}
		return &apiErr
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}

	return nil
}
