// Package qdrant implements vectorgateway.Gateway against a Qdrant-shaped
// HTTP API, grounded on TheApeMachine-a2a-go's pkg/memory/qdrant.go
// (collection bootstrap, point upsert, filtered search, must/should/match
// filter grammar) and generalized with retry/backoff per spec §4.3.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net"
	"net/http"
	"time"

	"github.com/agentmem/memcore/internal/idgen"
	"github.com/agentmem/memcore/internal/memerr"
	"github.com/agentmem/memcore/pkg/vectorgateway"
)

// Config configures a Client.
type Config struct {
	Endpoint       string // e.g. http://localhost:6333
	Collection     string
	VectorSize     int
	RequestTimeout time.Duration // per-attempt timeout, default 10s
	MaxRetries     int           // default 3
}

// Client is a vectorgateway.Gateway backed by a remote Qdrant-compatible
// HTTP API.
type Client struct {
	endpoint   string
	collection string
	vectorSize int
	maxRetries int
	timeout    time.Duration
	http       *http.Client
}

// New constructs a Client. It does not contact the remote; call
// EnsureCollection to bootstrap the collection and indices.
func New(cfg Config) *Client {
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	return &Client{
		endpoint:   cfg.Endpoint,
		collection: cfg.Collection,
		vectorSize: cfg.VectorSize,
		maxRetries: maxRetries,
		timeout:    timeout,
		http:       &http.Client{},
	}
}

// EnsureCollection implements vectorgateway.Gateway.
func (c *Client) EnsureCollection(ctx context.Context) error {
	_, err := c.doWithRetry(ctx, http.MethodGet, "/collections/"+c.collection, nil)
	if err == nil {
		return c.ensureIndices(ctx)
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     c.vectorSize,
			"distance": "Cosine",
		},
	}
	if _, err := c.doWithRetry(ctx, http.MethodPut, "/collections/"+c.collection, body); err != nil {
		return memerr.Wrap("vectorgateway.EnsureCollection", memerr.KindRemoteTransient, err)
	}
	return c.ensureIndices(ctx)
}

// ensureIndices declares keyword payload indices on the fields the core
// filters by. Failures are logged, not fatal: the field may already be
// indexed (spec §4.3).
func (c *Client) ensureIndices(ctx context.Context) error {
	for _, field := range []string{"namespace", "source_agent", "source_type", "userId"} {
		body := map[string]any{
			"field_name":   field,
			"field_schema": "keyword",
		}
		if _, err := c.doWithRetry(ctx, http.MethodPut, "/collections/"+c.collection+"/index", body); err != nil {
			log.Printf("[vectorgateway] index on %q not created (may already exist): %v", field, err)
		}
	}
	return nil
}

// Upsert implements vectorgateway.Gateway.
func (c *Client) Upsert(ctx context.Context, points []vectorgateway.Point) error {
	if len(points) == 0 {
		return nil
	}
	wire := make([]map[string]any, 0, len(points))
	for _, p := range points {
		id := p.ID
		if id == "" {
			id = idgen.New()
		}
		wire = append(wire, map[string]any{
			"id":      id,
			"vector":  p.Vector,
			"payload": payloadToWire(p.Payload),
		})
	}
	body := map[string]any{"points": wire}
	_, err := c.doWithRetry(ctx, http.MethodPut, "/collections/"+c.collection+"/points", body)
	if err != nil {
		return memerr.Wrap("vectorgateway.Upsert", classify(err), err)
	}
	return nil
}

// Get implements vectorgateway.Gateway.
func (c *Client) Get(ctx context.Context, id string) (*vectorgateway.Point, error) {
	resp, err := c.doWithRetry(ctx, http.MethodGet, "/collections/"+c.collection+"/points/"+id, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, memerr.Wrap("vectorgateway.Get", classify(err), err)
	}

	var decoded struct {
		Result struct {
			ID      any             `json:"id"`
			Payload json.RawMessage `json:"payload"`
			Vector  []float32       `json:"vector"`
		} `json:"result"`
	}
	if err := json.Unmarshal(resp, &decoded); err != nil {
		return nil, fmt.Errorf("vectorgateway/qdrant: Get: decode: %w", err)
	}
	payload, err := wireToPayload(decoded.Result.Payload)
	if err != nil {
		return nil, fmt.Errorf("vectorgateway/qdrant: Get: decode payload: %w", err)
	}
	return &vectorgateway.Point{
		ID:      id,
		Vector:  decoded.Result.Vector,
		Payload: payload,
	}, nil
}

// Search implements vectorgateway.Gateway.
func (c *Client) Search(ctx context.Context, vector []float32, opts vectorgateway.SearchOptions) ([]vectorgateway.SearchHit, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 5
	}
	body := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
		"with_vector":  false,
	}
	if f := filterToWire(opts.Filter); f != nil {
		body["filter"] = f
	}

	resp, err := c.doWithRetry(ctx, http.MethodPost, "/collections/"+c.collection+"/points/search", body)
	if err != nil {
		return nil, memerr.Wrap("vectorgateway.Search", classify(err), err)
	}

	var decoded struct {
		Result []struct {
			ID      any             `json:"id"`
			Score   float64         `json:"score"`
			Payload json.RawMessage `json:"payload"`
		} `json:"result"`
	}
	if err := json.Unmarshal(resp, &decoded); err != nil {
		return nil, fmt.Errorf("vectorgateway/qdrant: Search: decode: %w", err)
	}

	hits := make([]vectorgateway.SearchHit, 0, len(decoded.Result))
	for _, r := range decoded.Result {
		payload, err := wireToPayload(r.Payload)
		if err != nil {
			return nil, fmt.Errorf("vectorgateway/qdrant: Search: decode payload: %w", err)
		}
		hits = append(hits, vectorgateway.SearchHit{
			ID:      fmt.Sprintf("%v", r.ID),
			Score:   r.Score,
			Payload: payload,
		})
	}
	return hits, nil
}

// DeleteByFilter implements vectorgateway.Gateway.
func (c *Client) DeleteByFilter(ctx context.Context, filter vectorgateway.Filter) error {
	body := map[string]any{
		"filter": filterToWire(filter),
	}
	_, err := c.doWithRetry(ctx, http.MethodPost, "/collections/"+c.collection+"/points/delete", body)
	if err != nil {
		return memerr.Wrap("vectorgateway.DeleteByFilter", classify(err), err)
	}
	return nil
}

// Close implements vectorgateway.Gateway.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func filterToWire(f vectorgateway.Filter) map[string]any {
	if len(f.Must) == 0 {
		return nil
	}
	must := make([]any, 0, len(f.Must))
	for _, cond := range f.Must {
		must = append(must, conditionToWire(cond))
	}
	return map[string]any{"must": must}
}

func conditionToWire(c vectorgateway.Condition) map[string]any {
	if len(c.Should) > 0 {
		should := make([]any, 0, len(c.Should))
		for _, sub := range c.Should {
			should = append(should, conditionToWire(sub))
		}
		return map[string]any{"should": should}
	}
	return map[string]any{
		"key":   c.Key,
		"match": map[string]any{"value": c.Value},
	}
}

func payloadToWire(p vectorgateway.Payload) map[string]any {
	wire := map[string]any{
		"text":         p.Text,
		"namespace":    p.Namespace,
		"source_agent": p.SourceAgent,
		"source_type":  p.SourceType,
		"userId":       p.UserID,
		"timestamp":    p.Timestamp,
		"updatedAt":    p.UpdatedAt,
	}
	if p.SessionID != "" {
		wire["sessionId"] = p.SessionID
	}
	if p.Confidence != 0 {
		wire["confidence"] = p.Confidence
	}
	if len(p.Tags) > 0 {
		wire["tags"] = p.Tags
	}
	if len(p.Metadata) > 0 {
		wire["metadata"] = p.Metadata
	}
	return wire
}

func wireToPayload(raw json.RawMessage) (vectorgateway.Payload, error) {
	var m struct {
		Text        string         `json:"text"`
		Namespace   string         `json:"namespace"`
		SourceAgent string         `json:"source_agent"`
		SourceType  string         `json:"source_type"`
		UserID      string         `json:"userId"`
		Timestamp   time.Time      `json:"timestamp"`
		UpdatedAt   time.Time      `json:"updatedAt"`
		SessionID   string         `json:"sessionId"`
		Confidence  float64        `json:"confidence"`
		Tags        []string       `json:"tags"`
		Metadata    map[string]any `json:"metadata"`
	}
	if len(raw) == 0 {
		return vectorgateway.Payload{}, nil
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return vectorgateway.Payload{}, err
	}
	return vectorgateway.Payload{
		Text:        m.Text,
		Namespace:   m.Namespace,
		SourceAgent: m.SourceAgent,
		SourceType:  m.SourceType,
		UserID:      m.UserID,
		Timestamp:   m.Timestamp,
		UpdatedAt:   m.UpdatedAt,
		SessionID:   m.SessionID,
		Confidence:  m.Confidence,
		Tags:        m.Tags,
		Metadata:    m.Metadata,
	}, nil
}

// httpStatusError carries a non-2xx HTTP status back through
// doWithRetry so callers can distinguish "not found" from other
// failures.
type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("qdrant: http %d: %s", e.status, e.body)
}

func isNotFound(err error) bool {
	var hse *httpStatusError
	return errors.As(err, &hse) && hse.status == http.StatusNotFound
}

// classify maps a transport/http error onto the memerr Kind spec §4.3
// and §7 assign it.
func classify(err error) memerr.Kind {
	if isRetryable(err) {
		return memerr.KindRemoteTransient
	}
	return memerr.KindRemoteRejected
}

// isRetryable reports whether err is worth retrying: a network-level
// failure (connection refused, timeout, deadline, or an aborted request)
// or an HTTP 429 or 5xx status. Any other HTTP status is a definitive
// rejection.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var hse *httpStatusError
	if errors.As(err, &hse) {
		return hse.status == http.StatusTooManyRequests || hse.status >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// doWithRetry performs one HTTP round trip, making at most maxRetries
// attempts in total with exponential backoff capped at 10s between them,
// and retrying only when the failure is classified retryable (spec §4.3).
func (c *Client) doWithRetry(ctx context.Context, method, path string, body any) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		resp, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isRetryable(err) || attempt == c.maxRetries {
			break
		}

		backoff := time.Duration(math.Min(
			float64(1000*(int64(1)<<uint(attempt-1))),
			float64(10000),
		)) * time.Millisecond
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return nil, lastErr
}

func (c *Client) doOnce(ctx context.Context, method, path string, body any) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("qdrant: marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, c.endpoint+path, reader)
	if err != nil {
		return nil, fmt.Errorf("qdrant: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("qdrant: read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return nil, &httpStatusError{status: resp.StatusCode, body: string(respBody)}
	}
	return respBody, nil
}
