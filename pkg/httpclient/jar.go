package httpclient

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"golang.org/x/net/publicsuffix"
)

// sessionJar wraps a cookie jar and mirrors the backend session cookies into a CookieStore.
type sessionJar struct {
	jar   *cookiejar.Jar
	base  *url.URL
	store CookieStore
	log   Logger
}

func newSessionJar(base *url.URL, store CookieStore, log Logger) (http.CookieJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	if store == nil {
		return jar, nil
	}

	cookies, err := store.LoadCookies(base.Host)
	if err != nil {
		return nil, fmt.Errorf("load session cookies: %w", err)
	}
	if len(cookies) > 0 {
		jar.SetCookies(base, cookies)
	}

	return &sessionJar{jar: jar, base: base, store: store, log: ensureLogger(log)}, nil
}

func (s *sessionJar) Cookies(u *url.URL) []*http.Cookie { return s.jar.Cookies(u) }

func (s *sessionJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	s.jar.SetCookies(u, cookies)
	if u.Host != s.base.Host {
		return
	}
	if err := s.store.SaveCookies(s.base.Host, s.jar.Cookies(s.base)); err != nil {
		s.log.WarnObj("persist session cookies failed", "session_error", map[string]any{
			"host":  s.base.Host,
			"error": err.Error(),
		})
	}
}
