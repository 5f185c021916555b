// Package api is the remote resource client for the classroom backend.
// Lecturer calls carry the primary user token; passcode-scoped participant
// calls take their bearer token as an explicit argument.
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"classroom/pkg/interfaces"
)

const (
	apiPrefix       = "/api/v1"
	requestIDHeader = "X-Request-ID"
)

// TokenSource yields the primary user token for lecturer calls
type TokenSource interface {
	AccessToken() string
}

// TokenFunc adapts a function into a TokenSource
type TokenFunc func() string

func (f TokenFunc) AccessToken() string { return f() }

// Options configures a Client
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	Tokens    TokenSource
	Logger    zerolog.Logger

	// OnUnauthorized runs after any 401 response
	OnUnauthorized func(ctx context.Context)
}

// Client implements the session, workspace and join surfaces over resty
type Client struct {
	http   *resty.Client
	tokens TokenSource
	logger zerolog.Logger
}

var (
	_ interfaces.SessionAPI   = (*Client)(nil)
	_ interfaces.WorkspaceAPI = (*Client)(nil)
	_ interfaces.JoinAPI      = (*Client)(nil)
)

// NewClient creates a client rooted at BaseURL + /api/v1
func NewClient(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/") + apiPrefix

	httpClient := resty.New().
		SetBaseURL(base).
		SetHeader("Accept", "application/json")
	if opts.Timeout > 0 {
		httpClient.SetTimeout(opts.Timeout)
	}
	if opts.UserAgent != "" {
		httpClient.SetHeader("User-Agent", opts.UserAgent)
	}

	c := &Client{
		http:   httpClient,
		tokens: opts.Tokens,
		logger: opts.Logger,
	}

	httpClient.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		if r.Header.Get(requestIDHeader) == "" {
			r.SetHeader(requestIDHeader, uuid.NewString())
		}
		return nil
	})
	httpClient.OnAfterResponse(func(_ *resty.Client, r *resty.Response) error {
		c.logger.Debug().
			Str("request_id", r.Request.Header.Get(requestIDHeader)).
			Str("method", r.Request.Method).
			Str("url", r.Request.URL).
			Int("status", r.StatusCode()).
			Dur("latency", r.Time()).
			Msg("HTTP client request")
		return nil
	})
	if opts.OnUnauthorized != nil {
		onUnauthorized := opts.OnUnauthorized
		httpClient.OnAfterResponse(func(_ *resty.Client, r *resty.Response) error {
			if r.StatusCode() == 401 {
				c.logger.Warn().Str("url", r.Request.URL).Msg("unauthorized response, clearing guest credentials")
				onUnauthorized(r.Request.Context())
			}
			return nil
		})
	}

	return c
}

// userToken returns the primary user token, or "" when unauthenticated
func (c *Client) userToken() string {
	if c.tokens == nil {
		return ""
	}
	return c.tokens.AccessToken()
}

// call issues one request. A 2xx JSON reply is decoded into result by resty
// when result is non-nil; an empty reply leaves result untouched.
func (c *Client) call(ctx context.Context, method, path, bearer string, body, result any, query url.Values) (*resty.Response, error) {
	req := c.http.R().SetContext(ctx)
	if bearer != "" {
		req.SetAuthToken(bearer)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if result != nil {
		req.SetResult(result).ExpectContentType("application/json")
	}
	if len(query) > 0 {
		req.SetQueryParamsFromValues(query)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &Error{Message: GenericMessage, Err: ctxErr}
		}
		if resp == nil || !resp.IsSuccess() {
			return nil, &Error{Message: GenericMessage, Err: err}
		}
		// resty refuses to decode an empty JSON body
		if !isEmptyBody(resp.Body()) {
			return nil, &Error{Message: GenericMessage, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	if resp.IsError() {
		return nil, &Error{
			StatusCode: resp.StatusCode(),
			Message:    ExtractMessage(resp.Body()),
		}
	}
	return resp, nil
}

// callOne issues a request answered by one entity; an empty body yields nil
func callOne[T any](ctx context.Context, c *Client, method, path, bearer string, body any, query url.Values) (*T, error) {
	resp, err := c.call(ctx, method, path, bearer, body, new(T), query)
	if err != nil {
		return nil, err
	}
	if isEmptyBody(resp.Body()) {
		return nil, nil
	}
	return resp.Result().(*T), nil
}

// callList issues a request answered by a list; an empty body yields an empty list
func callList[T any](ctx context.Context, c *Client, method, path, bearer string, query url.Values) ([]T, error) {
	var items []T
	if _, err := c.call(ctx, method, path, bearer, nil, &items, query); err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func isEmptyBody(data []byte) bool {
	return len(bytes.TrimSpace(data)) == 0
}

// fieldsQuery builds the optional field whitelist parameter
func fieldsQuery(fields []string) url.Values {
	var kept []string
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			kept = append(kept, f)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return url.Values{"fields": []string{strings.Join(kept, ",")}}
}

// IsUnauthorized reports whether err is a 401 rejection
func IsUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == 401
}
