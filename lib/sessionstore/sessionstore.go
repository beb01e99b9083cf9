// Package sessionstore persists browser cookie sets between process
// invocations so an established login can be reused without going through
// the form flow again.
package sessionstore

import (
	"context"
	"net/http"
)

// Store is the cookie persistence collaborator. Get returns nil cookies
// (and a nil error) on a cache miss.
type Store interface {
	Get(ctx context.Context, key string) ([]*http.Cookie, error)
	Set(ctx context.Context, key string, cookies []*http.Cookie) error
}

// Noop never has cookies and never stores any.
type Noop struct{}

func (Noop) Get(ctx context.Context, key string) ([]*http.Cookie, error) {
	return nil, nil
}

func (Noop) Set(ctx context.Context, key string, cookies []*http.Cookie) error {
	return nil
}
