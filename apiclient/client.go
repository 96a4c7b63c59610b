package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/reconfile-dashboard/internal/errors"
	"github.com/jrsteele09/reconfile-dashboard/internal/utils"
	"github.com/jrsteele09/reconfile-dashboard/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// RequestIDHeader carries one id per logical call. A retry reuses it.
const RequestIDHeader = "X-Request-Id"

const (
	defaultTimeout = 20 * time.Second
	refreshTimeout = 20 * time.Second
)

// TokenStore is the part of token.Store the client needs
type TokenStore interface {
	Read() (token.Tokens, error)
	Save(pair token.Pair) error
}

// Refresher exchanges a refresh token for a new credential pair
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (token.Pair, error)
}

// Request describes one API call. Body is either a JSON-serializable value or a *FormData.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   any
}

// Client performs authenticated calls against the billing API. When configured with
// WithRecovery, a 401 UNAUTHORIZED_EXCEPTION triggers one refresh and one retry.
type Client struct {
	baseURL       *url.URL
	tokens        TokenStore
	httpClient    *http.Client
	refresher     Refresher
	onInvalidated func()
	refreshGroup  *singleflight.Group
	metrics       *Metrics
	logger        zerolog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithRefreshGroup shares in-flight refreshes between clients. Concurrent refreshes
// of the same refresh token then reach the API once.
func WithRefreshGroup(g *singleflight.Group) Option {
	return func(c *Client) {
		if g != nil {
			c.refreshGroup = g
		}
	}
}

func New(baseURL string, tokens TokenStore, opts ...Option) (*Client, error) {
	if tokens == nil {
		return nil, errors.New("[apiclient New] token store is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Wrapf(apperrors.ErrInvalidBaseURL, "[apiclient New] %q", baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	c := &Client{
		baseURL:      u,
		tokens:       tokens,
		httpClient:   &http.Client{Timeout: defaultTimeout},
		refreshGroup: &singleflight.Group{},
		logger:       log.Logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithRecovery returns a copy of the client that recovers from an expired access token
// through refresher. onInvalidated runs when that recovery fails.
func (c *Client) WithRecovery(refresher Refresher, onInvalidated func()) *Client {
	clone := *c
	clone.refresher = refresher
	clone.onInvalidated = onInvalidated
	return &clone
}

// Do executes req and decodes a successful JSON body into out (a pointer, or nil to discard).
// An empty or unparsable success body leaves out untouched. Failures are *APIError values,
// the refresh error when recovery failed, or the transport error unchanged.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	if err := checkOut(out); err != nil {
		return err
	}
	requestID := uuid.NewString()

	tokens, err := c.tokens.Read()
	if err != nil {
		return fmt.Errorf("[apiclient Do] failed to read tokens: %w", err)
	}

	status, body, err := c.send(ctx, req, utils.Value(tokens.AccessToken), requestID)
	if err != nil {
		return err
	}
	if isSuccess(status) {
		return c.decode(body, out)
	}

	apiErr := parseAPIError(status, body)
	if c.refresher == nil || !apiErr.IsUnauthorized() {
		return apiErr
	}

	c.logger.Debug().Str("request_id", requestID).Str("path", req.Path).Msg("access token rejected, refreshing")
	pair, err := c.refresh(ctx, tokens.RefreshToken)
	if err != nil {
		// The caller gave up while waiting. The refresh itself was not judged.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		c.logger.Warn().Err(err).Str("request_id", requestID).Msg("token refresh failed, signing out")
		if c.onInvalidated != nil {
			c.onInvalidated()
		}
		return fmt.Errorf("[apiclient Do] %w: %w", apperrors.ErrSessionInvalidated, err)
	}

	status, body, err = c.send(ctx, req, pair.AccessToken, requestID)
	if err != nil {
		return err
	}
	if isSuccess(status) {
		return c.decode(body, out)
	}
	return parseAPIError(status, body)
}

func (c *Client) Get(ctx context.Context, path string, params Params, out any) error {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: params.Encode()}, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body}, out)
}

func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPatch, Path: path, Body: body}, out)
}

// Delete sends an optional body. Pass nil for none.
func (c *Client) Delete(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path, Body: body}, out)
}

// refreshResult is what one shared refresh hands to every caller waiting on it
type refreshResult struct {
	pair token.Pair
	// stored is set when the pair was already in the store, rotated by an earlier refresh
	stored bool
}

// refresh trades refreshToken for a new pair. Callers holding the same refresh token share
// one refresh, which runs detached from any single caller's cancellation.
func (c *Client) refresh(ctx context.Context, refreshToken *string) (token.Pair, error) {
	if refreshToken == nil {
		c.metrics.observeRefresh(false)
		return token.Pair{}, apperrors.ErrNoRefreshToken
	}

	ch := c.refreshGroup.DoChan(*refreshToken, func() (interface{}, error) {
		// An earlier refresh may have rotated the pair already. Its refresh token is single use.
		if pair, ok := c.rotatedPair(*refreshToken); ok {
			return refreshResult{pair: pair, stored: true}, nil
		}
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		pair, err := c.refresher.Refresh(rctx, *refreshToken)
		return refreshResult{pair: pair}, err
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return token.Pair{}, ctx.Err()
	}
	c.metrics.observeRefresh(res.Err == nil)
	if res.Err != nil {
		return token.Pair{}, res.Err
	}

	out := res.Val.(refreshResult)
	// The refresher persisted the pair for the caller that ran it only.
	if res.Shared && !out.stored {
		if err := c.tokens.Save(out.pair); err != nil {
			return token.Pair{}, fmt.Errorf("[apiclient refresh] failed to save shared tokens: %w", err)
		}
	}
	return out.pair, nil
}

// rotatedPair returns the stored pair when the store no longer holds refreshToken
func (c *Client) rotatedPair(refreshToken string) (token.Pair, bool) {
	current, err := c.tokens.Read()
	if err != nil || current.AccessToken == nil || current.RefreshToken == nil || *current.RefreshToken == refreshToken {
		return token.Pair{}, false
	}
	return token.Pair{AccessToken: *current.AccessToken, RefreshToken: *current.RefreshToken}, true
}

func (c *Client) send(ctx context.Context, req Request, accessToken, requestID string) (int, []byte, error) {
	httpReq, err := c.newHTTPRequest(ctx, req, accessToken, requestID)
	if err != nil {
		return 0, nil, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.metrics.observeRequest(req.Method, 0)
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	c.metrics.observeRequest(req.Method, resp.StatusCode)
	if err != nil {
		return 0, nil, err
	}

	c.logger.Debug().
		Str("method", req.Method).
		Str("path", req.Path).
		Int("status", resp.StatusCode).
		Str("request_id", requestID).
		Dur("elapsed", time.Since(start)).
		Msg("api call")
	return resp.StatusCode, body, nil
}

func (c *Client) newHTTPRequest(ctx context.Context, req Request, accessToken, requestID string) (*http.Request, error) {
	u := c.baseURL.JoinPath(req.Path)
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	var (
		body        io.Reader
		contentType string
	)
	switch b := req.Body.(type) {
	case nil:
	case *FormData:
		if b != nil {
			buf, ct, err := b.Encode()
			if err != nil {
				return nil, fmt.Errorf("[apiclient newHTTPRequest] %w", err)
			}
			body, contentType = buf, ct
		}
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("[apiclient newHTTPRequest] failed to encode body: %w", err)
		}
		body, contentType = bytes.NewReader(data), "application/json"
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("[apiclient newHTTPRequest] %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(RequestIDHeader, requestID)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for key, values := range req.Header {
		httpReq.Header.Del(key)
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	return httpReq, nil
}

// decode leaves out untouched unless the whole body parses.
func (c *Client) decode(body []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	target := reflect.New(reflect.TypeOf(out).Elem())
	if err := json.Unmarshal(body, target.Interface()); err != nil {
		c.logger.Debug().Err(err).Msg("unparsable success body treated as empty")
		return nil
	}
	reflect.ValueOf(out).Elem().Set(target.Elem())
	return nil
}

func checkOut(out any) error {
	if out == nil {
		return nil
	}
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.Wrap(apperrors.ErrInvalidRequest, "[apiclient Do] out must be a non-nil pointer")
	}
	return nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
