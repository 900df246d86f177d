package cachekey

import (
	"fmt"
	"net/http"
	"strings"
)

var ErrMethodNotSupported = fmt.Errorf("method not supported")

const methodSeparator = ":"

// ForRequest returns the cache key identifying a request.
// The key is the request method followed by the request URI.
func ForRequest(r *http.Request) string {
	return r.Method + methodSeparator + r.URL.RequestURI()
}

// ForPath returns the cache key for a plain GET of the given path.
// Manifest entries and fallback assets are stored under these keys.
func ForPath(path string) string {
	return http.MethodGet + methodSeparator + path
}

// RequestFromKey generates a caching-wise equal request to the request
// that resulted in the provided key. Only GET keys can be turned back
// into requests; other methods yield ErrMethodNotSupported.
func RequestFromKey(key string) (*http.Request, error) {
	method, uri, found := strings.Cut(key, methodSeparator)
	if !found {
		return nil, fmt.Errorf("malformed key: %s", key)
	}
	if method != http.MethodGet {
		return nil, ErrMethodNotSupported
	}
	return http.NewRequest(method, uri, nil)
}
