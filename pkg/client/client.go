/*
 * Copyright 2026 FleetMind Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package client is the Go client for the registry HTTP API. It layers a
// short-lived discovery cache, bounded per-call timeouts, and automatic
// registration retry over net/http.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/fleetmind/registry/pkg/logger"
	"github.com/fleetmind/registry/pkg/models"
	"github.com/fleetmind/registry/pkg/registry"
	"github.com/fleetmind/registry/pkg/retry"
)

const (
	defaultCallTimeout = 10 * time.Second
	defaultCacheTTL    = 5 * time.Second
)

// Config configures a Client. BaseURL is required; everything else has a
// usable default.
type Config struct {
	// BaseURL is the registry's HTTP address, e.g. "http://registry:8090".
	BaseURL string
	// CallTimeout bounds every HTTP request the client makes.
	CallTimeout time.Duration
	// CacheTTL is how long Discover results are served from the local cache.
	CacheTTL time.Duration
	// RegisterRetry controls automatic retry of Register calls. Only
	// registration retries; all other calls fail on the first error.
	RegisterRetry retry.Config
	// HeartbeatInterval is the interval of the heartbeat loop started for
	// every entry registered through this client.
	HeartbeatInterval time.Duration
	Logger            logger.Logger
}

// Client talks to a registry instance.
type Client struct {
	httpClient        *http.Client
	baseURL           string
	callTimeout       time.Duration
	registerCfg       retry.Config
	heartbeatInterval time.Duration
	cache             *gocache.Cache
	logger            logger.Logger

	heartbeatsMu sync.Mutex
	heartbeats   map[string]context.CancelFunc
}

// New creates a Client from cfg.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("client: BaseURL is required")
	}

	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}

	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}

	if cfg.RegisterRetry.MaxAttempts <= 0 {
		cfg.RegisterRetry = retry.Config{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			Multiplier:   1.0,
		}
	}

	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaultHeartbeatInterval
	}

	log := cfg.Logger
	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Client{
		httpClient:        &http.Client{},
		baseURL:           strings.TrimRight(cfg.BaseURL, "/"),
		callTimeout:       cfg.CallTimeout,
		registerCfg:       cfg.RegisterRetry,
		heartbeatInterval: cfg.HeartbeatInterval,
		cache:             gocache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		logger:            log.WithComponent("registry-client"),
	}, nil
}

// Register registers entry, retrying transient failures per the configured
// retry policy. Validation and duplicate-ID rejections are not retried. On
// success a heartbeat loop for the entry starts immediately; it runs until
// StopHeartbeat, Unregister of that entry, or Close.
func (c *Client) Register(ctx context.Context, entry models.Entry) (models.Entry, error) {
	payload, err := models.EncodeEntry(entry)
	if err != nil {
		return nil, err
	}

	var stored models.Entry

	err = retry.Do(ctx, c.registerCfg, func() error {
		body, status, err := c.do(ctx, http.MethodPost, "/api/entries", payload)
		if err != nil {
			return err
		}

		if status != http.StatusCreated {
			err := apiError(status, body)
			if status == http.StatusConflict || status == http.StatusBadRequest {
				return retry.NonRetryable(err)
			}

			return err
		}

		stored, err = decodeEntryBody(body)

		return err
	})
	if err != nil {
		return nil, err
	}

	// The loop outlives the registration call; it is canceled through
	// StopHeartbeat/Unregister/Close, not the caller's ctx.
	c.StartHeartbeat(context.Background(), stored.Base().ID, c.heartbeatInterval)

	return stored, nil
}

// RegisterWorker registers w. The remaining typed helpers follow the same
// shape for the other kinds.
func (c *Client) RegisterWorker(ctx context.Context, w *models.Worker) (models.Entry, error) {
	return c.Register(ctx, w)
}

func (c *Client) RegisterSupervisor(ctx context.Context, s *models.Supervisor) (models.Entry, error) {
	return c.Register(ctx, s)
}

func (c *Client) RegisterGroup(ctx context.Context, g *models.Group) (models.Entry, error) {
	return c.Register(ctx, g)
}

func (c *Client) RegisterSuperGroup(ctx context.Context, s *models.SuperGroup) (models.Entry, error) {
	return c.Register(ctx, s)
}

func (c *Client) RegisterDatastore(ctx context.Context, d *models.Datastore) (models.Entry, error) {
	return c.Register(ctx, d)
}

func (c *Client) RegisterNetworkService(ctx context.Context, n *models.NetworkService) (models.Entry, error) {
	return c.Register(ctx, n)
}

// Get fetches a single entry by ID.
func (c *Client) Get(ctx context.Context, id string) (models.Entry, error) {
	body, status, err := c.do(ctx, http.MethodGet, "/api/entries/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK {
		return nil, apiError(status, body)
	}

	return decodeEntryBody(body)
}

// Update applies a partial update to the entry with the given ID.
func (c *Client) Update(ctx context.Context, id string, req *registry.UpdateRequest) (models.Entry, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding update request: %w", err)
	}

	body, status, err := c.do(ctx, http.MethodPatch, "/api/entries/"+url.PathEscape(id), payload)
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK {
		return nil, apiError(status, body)
	}

	return decodeEntryBody(body)
}

// Unregister removes the entry with the given ID and stops any heartbeat loop
// the client is running for it.
func (c *Client) Unregister(ctx context.Context, id string) error {
	c.stopHeartbeat(id)

	body, status, err := c.do(ctx, http.MethodDelete, "/api/entries/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}

	if status != http.StatusNoContent {
		return apiError(status, body)
	}

	return nil
}

// Heartbeat records a liveness signal for the entry with the given ID.
func (c *Client) Heartbeat(ctx context.Context, id string) error {
	body, status, err := c.do(ctx, http.MethodPost, "/api/entries/"+url.PathEscape(id)+"/heartbeat", nil)
	if err != nil {
		return err
	}

	if status != http.StatusNoContent {
		return apiError(status, body)
	}

	return nil
}

// Discover queries the registry, serving repeated queries from a short-lived
// local cache. Results are cloned on both store and read so a caller mutating
// an entry never pollutes later cache hits.
func (c *Client) Discover(ctx context.Context, q registry.Query) ([]models.Entry, error) {
	key := queryCacheKey(q)
	if cached, ok := c.cache.Get(key); ok {
		if entries, ok := cached.([]models.Entry); ok {
			return cloneEntries(entries), nil
		}
	}

	entries, err := c.DiscoverFresh(ctx, q)
	if err != nil {
		return nil, err
	}

	c.cache.SetDefault(key, cloneEntries(entries))

	return entries, nil
}

func cloneEntries(entries []models.Entry) []models.Entry {
	out := make([]models.Entry, len(entries))
	for i, e := range entries {
		out[i] = e.Clone()
	}

	return out
}

// DiscoverFresh queries the registry, bypassing the local cache.
func (c *Client) DiscoverFresh(ctx context.Context, q registry.Query) ([]models.Entry, error) {
	body, status, err := c.do(ctx, http.MethodGet, "/api/entries?"+queryParams(q), nil)
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK {
		return nil, apiError(status, body)
	}

	var resp struct {
		Entries []json.RawMessage `json:"entries"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding discover response: %w", err)
	}

	entries := make([]models.Entry, 0, len(resp.Entries))

	for _, raw := range resp.Entries {
		entry, err := decodeEntryBody(raw)
		if err != nil {
			return nil, err
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

// Statistics fetches the registry's aggregate counters.
func (c *Client) Statistics(ctx context.Context) (*models.Statistics, error) {
	var stats models.Statistics
	if err := c.getJSON(ctx, "/api/statistics", &stats); err != nil {
		return nil, err
	}

	return &stats, nil
}

// Hierarchy fetches the supergroup/group/member tree.
func (c *Client) Hierarchy(ctx context.Context) (*models.Hierarchy, error) {
	var h models.Hierarchy
	if err := c.getJSON(ctx, "/api/hierarchy", &h); err != nil {
		return nil, err
	}

	return &h, nil
}

// Health fetches the registry's own health summary. A degraded registry
// returns the summary alongside a nil error; only transport failures error.
func (c *Client) Health(ctx context.Context) (*models.HealthSummary, error) {
	body, status, err := c.do(ctx, http.MethodGet, "/api/health", nil)
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK && status != http.StatusServiceUnavailable {
		return nil, apiError(status, body)
	}

	var summary models.HealthSummary
	if err := json.Unmarshal(body, &summary); err != nil {
		return nil, fmt.Errorf("decoding health summary: %w", err)
	}

	return &summary, nil
}

// Close stops all heartbeat loops the client started.
func (c *Client) Close() {
	c.stopAllHeartbeats()
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	body, status, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}

	if status != http.StatusOK {
		return apiError(status, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}

	return nil
}

// do issues one HTTP request with the per-call timeout applied and returns
// the response body and status. Deadline expiry surfaces as ErrTimeout.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, int, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(callCtx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("building %s %s: %w", method, path, err)
	}

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded {
			return nil, 0, fmt.Errorf("%w: %s %s: %w", models.ErrTimeout, method, path, err)
		}

		return nil, 0, fmt.Errorf("%w: %s %s: %w", models.ErrConnectionLost, method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("reading %s %s response: %w", method, path, err)
	}

	return body, resp.StatusCode, nil
}

// apiError maps an HTTP error response back onto the registry error taxonomy
// so callers can use errors.Is on client results the same way they would on
// direct Core calls.
func apiError(status int, body []byte) error {
	var resp struct {
		Error string `json:"error"`
	}

	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &resp) == nil && resp.Error != "" {
		msg = resp.Error
	}

	var sentinel error

	switch status {
	case http.StatusConflict:
		sentinel = models.ErrAlreadyRegistered
	case http.StatusNotFound:
		sentinel = models.ErrNotFound
	case http.StatusBadRequest:
		sentinel = models.ErrValidationFailed
	case http.StatusServiceUnavailable:
		sentinel = models.ErrPersistenceFailure
	default:
		return fmt.Errorf("registry returned %d: %s", status, msg)
	}

	return fmt.Errorf("%w: %s", sentinel, msg)
}

func decodeEntryBody(body []byte) (models.Entry, error) {
	var peek struct {
		Kind models.EntityKind `json:"kind"`
	}

	if err := json.Unmarshal(body, &peek); err != nil {
		return nil, fmt.Errorf("decoding entry: %w", err)
	}

	return models.DecodeEntry(peek.Kind, body)
}

func queryParams(q registry.Query) string {
	v := url.Values{}

	if q.Kind != "" {
		v.Set("kind", string(q.Kind))
	}

	if q.Status != "" {
		v.Set("status", string(q.Status))
	}

	if q.Capability != "" {
		v.Set("capability", q.Capability)
	}

	if q.Tag != "" {
		v.Set("tag", q.Tag)
	}

	if q.GroupID != "" {
		v.Set("group_id", q.GroupID)
	}

	if q.SuperGroupID != "" {
		v.Set("supergroup_id", q.SuperGroupID)
	}

	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}

	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}

	return v.Encode()
}

func queryCacheKey(q registry.Query) string {
	return queryParams(q)
}
