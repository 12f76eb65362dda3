package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperror "github.com/Yulian302/lfusys-client/errors"
	"github.com/sony/gobreaker/v2"
)

const loginPath = "/api/login"

var errServerStatus = errors.New("server responded with 5xx")

type sessionClearer interface {
	Clear(ctx context.Context) error
}

// Client is the authenticated HTTP transport every API call goes through.
// Relative paths are joined to the API base URL and the bearer token from
// tokens is attached when present.
type Client struct {
	http    *http.Client
	baseURL string
	tokens  TokenSource
	breaker *gobreaker.CircuitBreaker[*http.Response]
}

// NewClient builds a Client. timeout <= 0 disables the per-request timeout;
// a nil breaker sends requests directly.
func NewClient(baseURL string, timeout time.Duration, tokens TokenSource, breaker *gobreaker.CircuitBreaker[*http.Response]) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("api base url must be absolute: %q", baseURL)
	}

	hc := &http.Client{}
	if timeout > 0 {
		hc.Timeout = timeout
	}

	return &Client{
		http:    hc,
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		breaker: breaker,
	}, nil
}

// ResolveURL joins a relative path to the base URL. Absolute URLs are
// returned unchanged.
func (c *Client) ResolveURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

type pinnedTokenKey struct{}

// PinToken reads the current token once and returns a context under which
// every request sent by c carries that token, even if the session is cleared
// meanwhile.
func (c *Client) PinToken(ctx context.Context) (context.Context, error) {
	token := ""
	if c.tokens != nil {
		t, err := c.tokens.Token(ctx)
		if err != nil {
			return ctx, fmt.Errorf("%w: %w", apperror.ErrNotAuthenticated, err)
		}
		token = t
	}
	return context.WithValue(ctx, pinnedTokenKey{}, token), nil
}

// Do sends one request. Any HTTP response, including 4xx and 5xx, is
// returned with a nil error; the caller owns resp.Body.
func (c *Client) Do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	return c.do(ctx, method, path, body, contentType, true)
}

// DoDirect is Do without the circuit breaker. Cleanup calls go through it so
// they are still sent while the breaker is open.
func (c *Client) DoDirect(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	return c.do(ctx, method, path, body, contentType, false)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, guarded bool) (*http.Response, error) {
	target := c.ResolveURL(path)

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	var resp *http.Response
	if guarded {
		resp, err = c.send(req)
	} else {
		resp, err = c.http.Do(req)
	}
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, target, err)
	}

	if resp.StatusCode == http.StatusUnauthorized && path != loginPath {
		if sc, ok := c.tokens.(sessionClearer); ok {
			if err := sc.Clear(ctx); err != nil {
				log.Printf("could not clear session after 401: %v", err)
			}
		}
	}

	return resp, nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	if token, ok := ctx.Value(pinnedTokenKey{}).(string); ok {
		return token, nil
	}
	if c.tokens == nil {
		return "", nil
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", apperror.ErrNotAuthenticated, err)
	}
	return token, nil
}

func (c *Client) send(req *http.Request) (*http.Response, error) {
	if c.breaker == nil {
		return c.http.Do(req)
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, errServerStatus
		}
		return resp, nil
	})
	if errors.Is(err, errServerStatus) {
		return resp, nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %w", apperror.ErrServiceUnavailable, err)
	}
	return resp, err
}

// DoJSON sends in as a JSON body (when non-nil) and decodes a 2xx response
// into out (when non-nil). Non-2xx responses become *apperror.APIError.
func (c *Client) DoJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}

	resp, err := c.Do(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := CheckResponse(resp); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// CheckResponse returns nil for 2xx responses and an *apperror.APIError
// otherwise, consuming the body in the error case.
func CheckResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return apperror.FromResponse(resp)
}
