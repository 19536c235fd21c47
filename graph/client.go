package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/Ashishkumar667/ms-tools/core"
	"github.com/Ashishkumar667/ms-tools/ratelimit"
)

const defaultClientTimeout = 30 * time.Second
const defaultResponseBodyLimit int64 = 4 << 20 // 4 MiB

// Client wraps authenticated calls against the directory API. It attaches
// bearer auth, bounds every request with a timeout and a response size cap,
// and converts API failures into classified errors. It never retries.
type Client struct {
	baseURL  string
	host     string
	client   core.HTTPDoer
	timeout  time.Duration
	maxBody  int64
	throttle *ratelimit.AdaptivePolicy
	observer core.Observer
}

type Option func(*Client)

func WithHTTPClient(client core.HTTPDoer) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

func WithThrottlePolicy(policy *ratelimit.AdaptivePolicy) Option {
	return func(c *Client) {
		c.throttle = policy
	}
}

func WithObserver(observer core.Observer) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

func NewClient(cfg core.GraphConfig, opts ...Option) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("graph: base url is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("graph: invalid base url: %w", err)
	}

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultResponseBodyLimit
	}
	client := &Client{
		baseURL:  baseURL,
		host:     parsed.Host,
		client:   &http.Client{Timeout: defaultClientTimeout},
		timeout:  cfg.Timeout(),
		maxBody:  maxBody,
		observer: core.NewObserver(nil, nil),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(client)
	}
	return client, nil
}

func (c *Client) Get(ctx context.Context, token string, path string, query url.Values) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, token, path, query, nil)
}

func (c *Client) Post(ctx context.Context, token string, path string, body any) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, token, path, nil, body)
}

func (c *Client) Patch(ctx context.Context, token string, path string, body any) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPatch, token, path, nil, body)
}

func (c *Client) Delete(ctx context.Context, token string, path string) error {
	_, err := c.do(ctx, http.MethodDelete, token, path, nil, nil)
	return err
}

// GetJSON decodes a GET response into out.
func (c *Client) GetJSON(ctx context.Context, token string, path string, query url.Values, out any) error {
	raw, err := c.Get(ctx, token, path, query)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return wrapCallError(err, "graph: decode response body", map[string]any{"path": strings.TrimSpace(path)})
	}
	return nil
}

func (c *Client) do(
	ctx context.Context,
	method string,
	token string,
	path string,
	query url.Values,
	body any,
) (json.RawMessage, error) {
	if c == nil || c.client == nil {
		return nil, newCallError("graph: client requires an http transport", goerrors.CategoryInternal, nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, core.NewAuthRequiredError("graph: access token is required")
	}
	path = "/" + strings.TrimLeft(strings.TrimSpace(path), "/")
	if path == "/" {
		return nil, newCallError("graph: request path is required", goerrors.CategoryBadInput, nil)
	}

	bucket := requestBucket(path)
	throttleKey := ratelimit.Key{Host: c.host, Bucket: bucket}
	if c.throttle != nil {
		if err := c.throttle.BeforeCall(ctx, throttleKey); err != nil {
			var throttled ratelimit.ThrottledError
			if goerrors.As(err, &throttled) {
				return nil, throttled.ToClassifiedError()
			}
			return nil, err
		}
	}

	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	requestCtx := ctx
	cancel := func() {}
	if c.timeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, c.timeout)
	}
	defer cancel()

	var payload io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, wrapCallError(err, "graph: encode request body", map[string]any{"method": method, "path": path})
		}
		payload = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(requestCtx, method, requestURL, payload)
	if err != nil {
		return nil, wrapCallError(err, "graph: create request", map[string]any{"method": method, "path": path})
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	startedAt := time.Now().UTC()
	httpRes, err := c.client.Do(httpReq)
	if err != nil {
		c.observer.ObserveOperation(ctx, startedAt, "graph_call", err, map[string]any{"method": method, "bucket": bucket})
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "graph: execute request").
			WithCode(http.StatusBadGateway).
			WithTextCode(core.ErrorDirectoryCall).
			WithMetadata(map[string]any{"method": method, "path": path})
	}
	defer httpRes.Body.Close()

	responseBody, err := io.ReadAll(io.LimitReader(httpRes.Body, c.maxBody+1))
	if err != nil {
		return nil, wrapCallError(err, "graph: read response body", map[string]any{"status_code": httpRes.StatusCode})
	}
	if int64(len(responseBody)) > c.maxBody {
		return nil, newCallError(
			fmt.Sprintf("graph: response body exceeds limit of %d bytes", c.maxBody),
			goerrors.CategoryExternal,
			map[string]any{"status_code": httpRes.StatusCode, "response_limit_b": c.maxBody},
		)
	}

	headers := flattenHeaders(httpRes.Header)
	if c.throttle != nil {
		if err := c.throttle.AfterCall(ctx, throttleKey, ratelimit.ResponseMeta{
			StatusCode: httpRes.StatusCode,
			Headers:    headers,
		}); err != nil {
			c.observer.LogError(ctx, "graph throttle state update failed", map[string]any{
				"bucket": bucket,
				"error":  err.Error(),
			})
		}
	}

	if httpRes.StatusCode < http.StatusOK || httpRes.StatusCode >= http.StatusMultipleChoices {
		apiErr := classifyAPIError(httpRes.StatusCode, responseBody, headers, method, path)
		c.observer.ObserveOperation(ctx, startedAt, "graph_call", apiErr, map[string]any{"method": method, "bucket": bucket})
		return nil, apiErr
	}

	c.observer.ObserveOperation(ctx, startedAt, "graph_call", nil, map[string]any{"method": method, "bucket": bucket})
	return json.RawMessage(responseBody), nil
}

// requestBucket groups paths by their first segment so throttle windows for
// one resource family do not stall the others.
func requestBucket(path string) string {
	trimmed := strings.TrimLeft(path, "/")
	if idx := strings.IndexByte(trimmed, '/'); idx > 0 {
		trimmed = trimmed[:idx]
	}
	if trimmed == "" {
		return "root"
	}
	return strings.ToLower(trimmed)
}

func flattenHeaders(headers http.Header) map[string]string {
	if len(headers) == 0 {
		return map[string]string{}
	}
	flat := make(map[string]string, len(headers))
	for key, values := range headers {
		if len(values) == 0 {
			flat[key] = ""
			continue
		}
		flat[key] = strings.Join(values, ",")
	}
	return flat
}
