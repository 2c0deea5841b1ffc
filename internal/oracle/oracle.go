// Package oracle is the HTTP client for the external decision service. The
// oracle receives the full session context each turn and answers with the
// single next action to take.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Yash-Prakash1/connector/internal/agent"
	"github.com/Yash-Prakash1/connector/internal/model"
)

// Client implements agent.Oracle against a remote decision endpoint.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// New creates an oracle client pointing at the given base URL.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// NextAction posts the turn context and returns the chosen action. Unlike
// pool traffic, an oracle failure is fatal to the session, so errors are
// returned rather than swallowed.
func (c *Client) NextAction(ctx context.Context, turn agent.TurnContext) (model.ActionCall, error) {
	var call model.ActionCall
	if err := c.postJSON(ctx, "/v1/next-action", turn, &call); err != nil {
		return model.ActionCall{}, err
	}
	if call.Name == "" {
		return model.ActionCall{}, fmt.Errorf("oracle returned no action")
	}
	return call, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return oracleError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func oracleError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return fmt.Errorf("oracle: %s (HTTP %d)", e.Error, resp.StatusCode)
	}
	return fmt.Errorf("oracle: HTTP %d", resp.StatusCode)
}
