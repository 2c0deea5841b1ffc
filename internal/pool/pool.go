// Package pool talks to the shared knowledge pool over HTTP JSON, with
// graceful offline fallback: pulls fall back to the local cache and pushes
// fall back to the upload queue. Pool unreachability is never fatal.
package pool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/Yash-Prakash1/connector/internal/model"
	"github.com/Yash-Prakash1/connector/internal/store"
)

// Knowledge is what a pull returns: pool patterns, error resolutions, and
// known-working configurations for a goal/OS.
type Knowledge struct {
	Patterns         []model.ResolutionPattern `json:"patterns"`
	ErrorResolutions []model.ErrorResolution   `json:"error_resolutions"`
	WorkingConfigs   []model.WorkingConfig     `json:"working_configs"`
}

// Contribution is the anonymized session summary pushed to the pool.
type Contribution struct {
	Goal             string                 `json:"goal"`
	OS               model.OS               `json:"os"`
	OSVersion        string                 `json:"os_version,omitempty"`
	Fingerprint      string                 `json:"fingerprint,omitempty"`
	Outcome          string                 `json:"outcome"`
	Success          bool                   `json:"success"`
	Steps            []model.NormalizedStep `json:"steps"`
	TotalSteps       int                    `json:"total_steps"`
	ErrorSequences   []model.ErrorSequence  `json:"error_sequences,omitempty"`
	WorkingConfig    *model.WorkingConfig   `json:"working_config,omitempty"`
	AgentVersion     string                 `json:"agent_version,omitempty"`
}

// Client is the shared-pool client. A client with no base URL is offline:
// pulls serve the cache and pushes go straight to the queue.
type Client struct {
	baseURL string
	apiKey  string
	store   store.Store
	client  *http.Client
	log     *zap.Logger
}

// New creates a pool client. baseURL may be empty for offline operation.
func New(baseURL, apiKey string, st store.Store, log *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		store:   st,
		client:  &http.Client{Timeout: 15 * time.Second},
		log:     log,
	}
}

// Enabled reports whether pool sharing is switched on in config.
func (c *Client) Enabled(ctx context.Context) bool {
	val, err := c.store.GetConfig(ctx, "telemetry")
	if err != nil {
		c.log.Warn("read telemetry config", zap.Error(err))
		return false
	}
	return val != "false" && val != "off"
}

// Pull fetches knowledge for a goal/OS, caching what it gets. Any failure
// degrades to the local cache; a cold cache returns nil.
func (c *Client) Pull(ctx context.Context, goal string, os model.OS) *Knowledge {
	if !c.Enabled(ctx) {
		return nil
	}
	if c.baseURL == "" {
		return c.cached(ctx, goal, os)
	}

	q := url.Values{}
	q.Set("goal", goal)
	q.Set("os", string(os))
	var k Knowledge
	if err := c.getJSON(ctx, "/v1/knowledge", q, &k); err != nil {
		c.log.Warn("pool pull failed, using cache", zap.Error(err))
		return c.cached(ctx, goal, os)
	}

	if len(k.Patterns) > 0 {
		if err := c.store.CachePatterns(ctx, k.Patterns); err != nil {
			c.log.Warn("cache pulled patterns", zap.Error(err))
		}
	}
	if len(k.ErrorResolutions) > 0 {
		if err := c.store.CacheErrorResolutions(ctx, k.ErrorResolutions); err != nil {
			c.log.Warn("cache pulled error resolutions", zap.Error(err))
		}
	}
	return &k
}

// Push sends a contribution to the pool. On failure (or offline) the payload
// is queued for a later flush. Returns whether the push landed.
func (c *Client) Push(ctx context.Context, contribution Contribution) bool {
	if !c.Enabled(ctx) {
		return false
	}
	payload, err := json.Marshal(contribution)
	if err != nil {
		c.log.Warn("marshal contribution", zap.Error(err))
		return false
	}
	if c.baseURL == "" {
		c.queue(ctx, payload)
		return false
	}
	if err := c.post(ctx, "/v1/contributions", payload); err != nil {
		c.log.Warn("pool push failed, queueing", zap.Error(err))
		c.queue(ctx, payload)
		return false
	}
	return true
}

// FlushQueue retries queued contributions. Successes are removed from the
// queue; failures have their attempt counter bumped and stay.
func (c *Client) FlushQueue(ctx context.Context) {
	if !c.Enabled(ctx) || c.baseURL == "" {
		return
	}
	pending, err := c.store.PendingUploads(ctx)
	if err != nil {
		c.log.Warn("read upload queue", zap.Error(err))
		return
	}
	for _, item := range pending {
		if err := c.post(ctx, "/v1/contributions", item.Payload); err != nil {
			c.log.Debug("flush upload failed", zap.String("id", item.ID), zap.Error(err))
			if err := c.store.BumpUploadAttempts(ctx, item.ID); err != nil {
				c.log.Warn("bump upload attempts", zap.String("id", item.ID), zap.Error(err))
			}
			continue
		}
		if err := c.store.RemoveUpload(ctx, item.ID); err != nil {
			c.log.Warn("remove flushed upload", zap.String("id", item.ID), zap.Error(err))
		}
	}
}

func (c *Client) cached(ctx context.Context, goal string, os model.OS) *Knowledge {
	patterns, err := c.store.CachedPatterns(ctx, goal, os)
	if err != nil {
		c.log.Warn("read cached patterns", zap.Error(err))
	}
	resolutions, err := c.store.CachedErrorResolutions(ctx, goal, os)
	if err != nil {
		c.log.Warn("read cached error resolutions", zap.Error(err))
	}
	if len(patterns) == 0 && len(resolutions) == 0 {
		return nil
	}
	return &Knowledge{Patterns: patterns, ErrorResolutions: resolutions}
}

func (c *Client) queue(ctx context.Context, payload []byte) {
	if err := c.store.QueueUpload(ctx, payload); err != nil {
		c.log.Warn("queue contribution", zap.Error(err))
	}
}

// getJSON performs a GET request and decodes the JSON response into dst.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, dst any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	c.authorize(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("pool request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return poolError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// post sends a pre-marshaled JSON payload.
func (c *Client) post(ctx context.Context, path string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("pool request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return poolError(resp)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// poolError reads an error response from the pool and returns it as an error.
func poolError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	var errResp struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		return fmt.Errorf("pool (%d): %s", resp.StatusCode, errResp.Error)
	}
	return fmt.Errorf("pool (%d): %s", resp.StatusCode, http.StatusText(resp.StatusCode))
}
