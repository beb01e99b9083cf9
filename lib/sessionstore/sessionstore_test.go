package sessionstore

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testCookies = []*http.Cookie{
	{Name: "ZNPCQ003", Value: "abcdef"},
	{Name: "Bugzilla_login", Value: "12345"},
}

func TestNoop(t *testing.T) {
	ctx := context.Background()
	store := Noop{}

	require.NoError(t, store.Set(ctx, "k", testCookies))
	cookies, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.Nil(t, cookies)
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(time.Minute)

	cookies, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.Nil(t, cookies)

	require.NoError(t, store.Set(ctx, "k", testCookies))
	cookies, err = store.Get(ctx, "k")
	require.NoError(t, err)
	require.Len(t, cookies, 2)
	require.Equal(t, "ZNPCQ003", cookies[0].Name)
}

func TestSqliteRoundtrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sessions.db")

	store, err := NewSqlite(path, time.Hour)
	require.NoError(t, err)
	defer store.Close()

	cookies, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.Nil(t, cookies)

	require.NoError(t, store.Set(ctx, "k", testCookies))
	// overwrite must not fail
	require.NoError(t, store.Set(ctx, "k", testCookies))

	cookies, err = store.Get(ctx, "k")
	require.NoError(t, err)
	require.Len(t, cookies, 2)
	require.Equal(t, "abcdef", cookies[0].Value)
}

func TestSqliteExpiry(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sessions.db")

	store, err := NewSqlite(path, time.Nanosecond)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Set(ctx, "k", testCookies))
	time.Sleep(time.Millisecond * 10)

	cookies, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.Nil(t, cookies, "stale entries are misses")
}
