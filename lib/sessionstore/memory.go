package sessionstore

import (
	"context"
	"net/http"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Memory keeps cookie sets in an in-process LRU with a TTL. Useful for
// long-lived callers that construct many short-lived clients.
type Memory struct {
	cache *expirable.LRU[string, []*http.Cookie]
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		cache: expirable.NewLRU[string, []*http.Cookie](128, nil, ttl),
	}
}

func (m *Memory) Get(ctx context.Context, key string) ([]*http.Cookie, error) {
	cookies, ok := m.cache.Get(key)
	if !ok {
		return nil, nil
	}
	return cookies, nil
}

func (m *Memory) Set(ctx context.Context, key string, cookies []*http.Cookie) error {
	m.cache.Add(key, cookies)
	return nil
}
