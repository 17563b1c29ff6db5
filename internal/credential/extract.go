// Package credential reads the courier's session identifier out of the
// cookie store shared with the browser session.
package credential

import (
	"context"
	"strings"
)

const driverIDPrefix = "driver_id="

// ExtractDriverID returns the value of the first driver_id entry in a
// semicolon separated cookie string. An empty value counts as absent.
func ExtractDriverID(cookies string) (string, bool) {
	for _, part := range strings.Split(cookies, ";") {
		part = strings.TrimSpace(part)
		if !strings.HasPrefix(part, driverIDPrefix) {
			continue
		}
		id := part[len(driverIDPrefix):]
		if id == "" {
			return "", false
		}
		return id, true
	}
	return "", false
}

// Source yields the raw cookie string for the backend domain. An empty
// string with a nil error means there are no cookies.
type Source interface {
	Cookie(ctx context.Context) (string, error)
}

// ReadDriverID reads src and extracts the identifier from it.
func ReadDriverID(ctx context.Context, src Source) (string, bool, error) {
	cookies, err := src.Cookie(ctx)
	if err != nil {
		return "", false, err
	}
	id, ok := ExtractDriverID(cookies)
	return id, ok, nil
}
