package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/advisorly/reading-room/internal/config"
	"github.com/advisorly/reading-room/internal/domain"
)

// Client reaches the external billing ledger. Message sync is at-least-
// once and best-effort (the local transcript stays authoritative);
// EndRoom is the awaited end-of-chat billing call.
type Client interface {
	SyncMessage(ctx context.Context, req SyncMessageRequest) error
	EndRoom(ctx context.Context, req EndRoomRequest) (*EndRoomResult, error)
}

type SyncMessageRequest struct {
	RoomID          string          `json:"roomId"`
	MessageID       string          `json:"messageId"`
	UserID          string          `json:"userId"`
	UserType        domain.UserType `json:"userType"`
	UserName        string          `json:"userName"`
	Content         string          `json:"content"`
	TimestampMillis int64           `json:"timestamp"`
	ClientID        string          `json:"clientId,omitempty"`
	AdvisorID       string          `json:"advisorId,omitempty"`
}

type EndRoomRequest struct {
	RoomID    string          `json:"roomId"`
	EndedBy   domain.UserType `json:"endedByUserType"`
	Reason    string          `json:"reason"`
	ClientID  string          `json:"clientId,omitempty"`
	AdvisorID string          `json:"advisorId,omitempty"`
}

// EndRoomResult carries the billing outcome. AlreadyEnded is not an
// error: the ledger reports it when the room was terminated earlier and
// the caller proceeds with teardown either way.
type EndRoomResult struct {
	AlreadyEnded bool            `json:"already_ended"`
	Billing      json.RawMessage `json:"billing,omitempty"`
}

// HTTPClient talks JSON over HTTP to the ledger API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	hc      *http.Client
}

func NewHTTPClient(cfg config.LedgerConfig) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		hc:      &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) SyncMessage(ctx context.Context, req SyncMessageRequest) error {
	url := fmt.Sprintf("%s/api/rooms/%s/messages", c.baseURL, req.RoomID)
	return c.post(ctx, url, req, nil)
}

func (c *HTTPClient) EndRoom(ctx context.Context, req EndRoomRequest) (*EndRoomResult, error) {
	url := fmt.Sprintf("%s/api/rooms/%s/end", c.baseURL, req.RoomID)
	var result EndRoomResult
	if err := c.post(ctx, url, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *HTTPClient) post(ctx context.Context, url string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode ledger request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("ledger request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ledger returned status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode ledger response: %w", err)
		}
	}
	return nil
}
