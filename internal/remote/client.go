package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/example/tutorcore/internal/syncqueue"
)

// ErrUnauthorized is returned when the remote store rejects the API key
var ErrUnauthorized = errors.New("remote store rejected credentials")

// DefaultTimeout bounds a single HTTP request
const DefaultTimeout = 15 * time.Second

// Client is a client for the remote document store's batch endpoint
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a new remote store client
func New(baseURL, apiKey string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("remote base URL is not set")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// BatchRequest is the body of a batch commit
type BatchRequest struct {
	UserID  int64             `json:"user_id"`
	Entries []syncqueue.Entry `json:"entries"`
}

// BatchResponse is returned by the batch endpoint
type BatchResponse struct {
	// Committed is nil when the server does not report a count
	Committed *int `json:"committed,omitempty"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// CommitBatch writes entries for a user in one request. The server merges by
// item id, so resending a batch is harmless.
func (c *Client) CommitBatch(ctx context.Context, userID int64, entries []syncqueue.Entry) error {
	requestData, err := json.Marshal(BatchRequest{UserID: userID, Entries: entries})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/users/%d/knowledge:batchWrite", c.baseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(requestData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrUnauthorized
	}

	var response BatchResponse
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &response); err != nil && resp.StatusCode < 300 {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	if response.Error != nil {
		return fmt.Errorf("API error (%d): %s", resp.StatusCode, response.Error.Message)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if response.Committed != nil && *response.Committed != len(entries) {
		return fmt.Errorf("remote committed %d of %d entries", *response.Committed, len(entries))
	}
	return nil
}
