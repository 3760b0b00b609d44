// Package gateway is the authenticated request gateway every backend call
// goes through. It attaches the bearer credential, unwraps the backend
// envelope and recovers from an expired access token with one shared refresh
// followed by a single replay of the original request.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/jrsteele09/go-admin-console/internal/config"
	"github.com/jrsteele09/go-admin-console/notify"
)

const (
	HeaderClientType = "X-Client-Type"
	HeaderRequestID  = "X-Request-ID"

	maxBodyBytes = 10 << 20
)

// TokenSource is the session state the gateway reads and, after a refresh,
// replaces. ReplaceTokens must swap both values together.
type TokenSource interface {
	AccessToken() string
	RefreshToken() string
	ReplaceTokens(ctx context.Context, accessToken, refreshToken string) error
}

// TokenPair is what the refresh endpoint returns.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RefreshFunc exchanges a refresh credential for a new pair.
type RefreshFunc func(ctx context.Context, refreshToken string) (TokenPair, error)

type Client struct {
	baseURL    string
	clientType string
	httpClient *http.Client
	tokens     TokenSource
	notifier   notify.Notifier
	metrics    *Metrics

	hookLock  sync.RWMutex
	refresh   RefreshFunc
	onExpired func(context.Context)

	flight singleflight.Group
}

type Option func(*Client)

// WithHTTPClient replaces the transport. The caller owns its timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithRefresher sets the refresh call at construction time, see SetRefresher.
func WithRefresher(fn RefreshFunc) Option {
	return func(c *Client) { c.refresh = fn }
}

func New(cfg config.GatewayConfig, tokens TokenSource, notifier notify.Notifier, opts ...Option) *Client {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	c := &Client{
		baseURL:    strings.TrimRight(cfg.GetAPIBaseURL(), "/"),
		clientType: cfg.GetClientType(),
		httpClient: &http.Client{Timeout: cfg.GetRequestTimeout()},
		tokens:     tokens,
		notifier:   notifier,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetRefresher installs the refresh call. Without one, 401/403 responses are
// returned to the caller unchanged.
func (c *Client) SetRefresher(fn RefreshFunc) {
	c.hookLock.Lock()
	defer c.hookLock.Unlock()
	c.refresh = fn
}

// OnSessionExpired installs the forced logout run when a refresh fails.
func (c *Client) OnSessionExpired(fn func(context.Context)) {
	c.hookLock.Lock()
	defer c.hookLock.Unlock()
	c.onExpired = fn
}

// Send performs req and returns the envelope's data.
func (c *Client) Send(ctx context.Context, req *Request) (json.RawMessage, error) {
	data, sentWith, err := c.dispatch(ctx, req)
	if err == nil || !c.recoverable(req, err) {
		return data, err
	}

	if rerr := c.awaitRefresh(ctx, sentWith); rerr != nil {
		log.Debug().Err(rerr).Str("path", req.Path).Msg("Gateway: refresh failed, returning original error")
		return nil, err
	}

	c.metrics.replayed()
	data, _, err = c.dispatch(ctx, req.replayed())
	return data, err
}

// Do performs req and decodes the envelope's data into out, when out is non-nil.
func (c *Client) Do(ctx context.Context, req *Request, out any) error {
	data, err := c.Send(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("[Gateway Do] decode %s %s: %w", req.Method, req.Path, err)
	}
	return nil
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodPut, Path: path, Body: body}, out)
}

func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path}, out)
}

func (c *Client) recoverable(req *Request, err error) bool {
	if req.replay || req.NoRefresh || !IsAuthExpired(err) {
		return false
	}
	if c.tokens.RefreshToken() == "" {
		return false
	}
	return c.refresher() != nil
}

// dispatch sends one HTTP request and reports which access token it carried.
func (c *Client) dispatch(ctx context.Context, req *Request) (json.RawMessage, string, error) {
	httpReq, err := c.newHTTPRequest(ctx, req)
	if err != nil {
		return nil, "", err
	}

	token := c.tokens.AccessToken()
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.metrics.observe(req.Method, outcomeTransport, started)
		return nil, token, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.metrics.observe(req.Method, outcomeTransport, started)
		return nil, token, &TransportError{Status: resp.StatusCode, Err: err}
	}

	env, envErr := decodeEnvelope(resp.Header.Get("Content-Type"), body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		te := &TransportError{Status: resp.StatusCode, Body: body}
		if envErr == nil {
			te.Message = env.Message
		}
		outcome := outcomeTransport
		if IsAuthExpired(te) {
			outcome = outcomeAuth
		}
		c.metrics.observe(req.Method, outcome, started)
		log.Debug().Int("status", resp.StatusCode).Str("method", req.Method).Str("path", req.Path).Bool("replay", req.replay).Msg("Gateway: non-2xx response")
		return nil, token, te
	}

	if envErr != nil {
		c.metrics.observe(req.Method, outcomeTransport, started)
		return nil, token, &TransportError{Status: resp.StatusCode, Body: body, Err: envErr}
	}

	if env.Code != 0 {
		msg := env.Message
		if msg == "" {
			msg = genericErrorMessage
		}
		c.metrics.observe(req.Method, outcomeAppError, started)
		c.notifier.Notify(notify.LevelError, msg)
		return nil, token, &AppError{Code: env.Code, Message: msg}
	}

	c.metrics.observe(req.Method, outcomeOK, started)
	return env.Data, token, nil
}

func (c *Client) newHTTPRequest(ctx context.Context, req *Request) (*http.Request, error) {
	target := c.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("[Gateway] encode body for %s %s: %w", req.Method, req.Path, err)
		}
		body = bytes.NewReader(b)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("[Gateway] build request %s %s: %w", method, req.Path, err)
	}

	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(HeaderClientType, c.clientType)
	if httpReq.Header.Get(HeaderRequestID) == "" {
		httpReq.Header.Set(HeaderRequestID, uuid.NewString())
	}
	return httpReq, nil
}
