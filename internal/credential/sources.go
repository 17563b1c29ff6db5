package credential

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"sync"

	"golang.org/x/net/publicsuffix"
)

// StaticSource always returns the same cookie string. SetCookie swaps it at
// runtime, which the admin API uses after a fresh login.
type StaticSource struct {
	mu      sync.RWMutex
	cookies string
}

func NewStaticSource(cookies string) *StaticSource {
	return &StaticSource{cookies: cookies}
}

func (s *StaticSource) Cookie(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cookies, nil
}

func (s *StaticSource) SetCookie(cookies string) {
	s.mu.Lock()
	s.cookies = cookies
	s.mu.Unlock()
}

// FileSource re-reads a file holding a Cookie header value on every call,
// so an external login helper can rotate the session without a restart.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Cookie(context.Context) (string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading cookie file %s: %w", s.path, err)
	}
	// tolerate a pasted "Cookie: " header line
	line := strings.TrimSpace(string(data))
	line = strings.TrimPrefix(line, "Cookie:")
	return strings.TrimSpace(line), nil
}

// JarSource renders the cookies an http.CookieJar holds for a URL. The jar
// is meant to be shared with the HTTP client talking to the backend.
type JarSource struct {
	jar http.CookieJar
	u   *url.URL
}

// NewJar returns a cookie jar using the public suffix list.
func NewJar() (http.CookieJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	return jar, nil
}

func NewJarSource(jar http.CookieJar, rawURL string) (*JarSource, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing cookie url: %w", err)
	}
	return &JarSource{jar: jar, u: u}, nil
}

func (s *JarSource) Cookie(context.Context) (string, error) {
	cookies := s.jar.Cookies(s.u)
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; "), nil
}

// SetCookie replaces the jar's root-path cookies for the URL with the ones in
// cookies ("a=1; b=2"). Names missing from the new string are expired, so an
// empty string clears the session.
func (s *JarSource) SetCookie(cookies string) {
	var parsed []*http.Cookie
	keep := make(map[string]bool)
	for _, part := range strings.Split(cookies, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || name == "" {
			continue
		}
		keep[name] = true
		parsed = append(parsed, &http.Cookie{Name: name, Value: value, Path: "/"})
	}

	var expired []*http.Cookie
	for _, c := range s.jar.Cookies(s.u) {
		if !keep[c.Name] {
			expired = append(expired, &http.Cookie{Name: c.Name, Path: "/", MaxAge: -1})
		}
	}
	if len(expired) > 0 {
		s.jar.SetCookies(s.u, expired)
	}
	s.jar.SetCookies(s.u, parsed)
}
