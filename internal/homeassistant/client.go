// Package homeassistant talks to the Home Assistant conversation API.
package homeassistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mistakeknot/haconverse/internal/config"
	"github.com/mistakeknot/haconverse/internal/httpkit"
)

// UserAgent is sent on every request to the hub.
const UserAgent = "haconverse-mcp"

// maxErrorBody caps how much of a failed response is read for its message.
const maxErrorBody = 64 << 10

// ConversationRequest is the body of POST /api/conversation/process.
// Optional fields are omitted entirely when empty.
type ConversationRequest struct {
	Text           string `json:"text"`
	Language       string `json:"language,omitempty"`
	AgentID        string `json:"agent_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// NewConversationRequest builds a request for text, carrying through the
// optional fields configured for the hub.
func NewConversationRequest(cfg *config.Config, text string) ConversationRequest {
	return ConversationRequest{
		Text:           text,
		Language:       cfg.Language,
		AgentID:        cfg.AgentID,
		ConversationID: cfg.ConversationID,
	}
}

// APIError is returned for transport failures and non-2xx responses.
// StatusCode is zero when the hub was never reached.
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string { return e.Message }

func (e *APIError) Unwrap() error { return e.Err }

// Client is a Home Assistant conversation client. It is safe for
// concurrent use and keeps no state between calls.
type Client struct {
	cfg        *config.Config
	httpClient *http.Client
}

// NewClient creates a client for cfg. TLS verification is skipped only when
// cfg.Insecure is set.
func NewClient(cfg *config.Config) *Client {
	opts := []httpkit.ClientOption{httpkit.WithUserAgent(UserAgent)}
	if cfg.Insecure {
		opts = append(opts, httpkit.WithTLSInsecureSkipVerify())
	}
	return &Client{
		cfg:        cfg,
		httpClient: httpkit.NewClient(opts...),
	}
}

// Converse sends text to the conversation endpoint and returns the hub's
// JSON reply unmodified.
func (c *Client) Converse(ctx context.Context, text string) (json.RawMessage, error) {
	body, err := json.Marshal(NewConversationRequest(c.cfg, text))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Message: err.Error(), Err: err}
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newStatusError(resp)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return raw, nil
}

// newStatusError prefers the hub's own "message" field over the generic
// status text.
func newStatusError(resp *http.Response) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("request failed with status code %d", resp.StatusCode),
	}
	body := httpkit.ReadErrorBody(resp.Body, maxErrorBody)
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal([]byte(body), &payload) == nil && payload.Message != "" {
		apiErr.Message = payload.Message
	}
	return apiErr
}
