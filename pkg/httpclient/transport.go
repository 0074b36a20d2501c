package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Options configures the shared transport. They are copied by NewTransport
// and cannot be changed afterwards.
type Options struct {
	BaseURL         string
	Timeout         time.Duration
	WithCredentials bool
	Cookies         CookieStore
	Logger          Logger
}

// RestyTransport sends every facade call through one resty client bound to a fixed base URL.
type RestyTransport struct {
	client  *resty.Client
	baseURL string
	log     Logger
}

// NewTransport builds the process-wide transport. Call it once at startup.
func NewTransport(opts Options) (*RestyTransport, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("transport base url is empty")
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", base)
	}

	log := ensureLogger(opts.Logger)

	c := newRestyBaseClient(opts.Timeout)
	c.SetBaseURL(base)
	c.SetHeader("Accept", "application/json")

	if opts.WithCredentials {
		jar, err := newSessionJar(u, opts.Cookies, log)
		if err != nil {
			return nil, err
		}
		c.SetCookieJar(jar)
	} else {
		// resty installs a jar by default.
		c.SetCookieJar(nil)
	}

	return &RestyTransport{client: c, baseURL: base, log: log}, nil
}

// BaseURL returns the fixed prefix every request path is resolved against.
func (t *RestyTransport) BaseURL() string { return t.baseURL }

// Do issues exactly one request. Non-2xx responses are returned together with an *HTTPError.
func (t *RestyTransport) Do(ctx context.Context, req Request) (Response, error) {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		return nil, errors.New("request method is empty")
	}

	r := t.client.R().SetContext(ctx)
	if len(req.Query) > 0 {
		r.SetQueryParams(req.Query)
	}
	if req.Body != nil {
		r.SetBody(req.Body)
	}

	start := time.Now()
	resp, err := r.Execute(method, req.Path)
	if err != nil {
		t.log.WarnObj("api request failed", "api_request_error", map[string]any{
			"method": method,
			"path":   req.Path,
			"error":  err.Error(),
		})
		return nil, fmt.Errorf("%s %s: %w", method, req.Path, err)
	}

	t.log.DebugObj("api request completed", "api_request", map[string]any{
		"method":     method,
		"path":       req.Path,
		"status":     resp.StatusCode(),
		"elapsed_ms": time.Since(start).Milliseconds(),
	})

	out := &restyResponseAdapter{resp: resp}
	if resp.IsError() {
		return out, &HTTPError{
			Method:     method,
			URL:        resp.Request.URL,
			StatusCode: resp.StatusCode(),
			Header:     resp.Header(),
			Body:       resp.Body(),
		}
	}
	return out, nil
}
