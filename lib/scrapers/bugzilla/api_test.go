package bugzilla

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewAPIClientBaseSelection(t *testing.T) {
	ctx := context.Background()

	// anonymous clients of the suse.com endpoint get bounced to the
	// public frontend
	client, err := NewAPIClient(ctx, ClientOptions{})
	require.NoError(t, err)
	require.Equal(t, PublicAPIBase, client.BaseURL.String())
	require.True(t, client.Anonymous())

	client, err = NewAPIClient(ctx, ClientOptions{User: "tester", Password: "secret"})
	require.NoError(t, err)
	require.Equal(t, DefaultAPIBase, client.BaseURL.String())
	require.False(t, client.Anonymous())

	// explicit bases are kept as-is
	client, err = NewAPIClient(ctx, ClientOptions{BaseURL: "https://bugzilla.example.com"})
	require.NoError(t, err)
	require.Equal(t, "https://bugzilla.example.com", client.BaseURL.String())
}

func TestAPIClientLogin(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/index.cgi", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "tester" || pass != "secret" {
			serveHTML(w, `<html><body><a href="index.cgi">Log in</a></body></html>`)
			return
		}
		serveHTML(w, loggedInPage)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := context.Background()
	client, err := NewAPIClient(ctx, ClientOptions{
		User:     "tester",
		Password: "secret",
		BaseURL:  srv.URL,
	})
	require.NoError(t, err)
	require.NoError(t, client.Login(ctx, false))

	bad, err := NewAPIClient(ctx, ClientOptions{
		User:     "tester",
		Password: "wrong",
		BaseURL:  srv.URL,
	})
	require.NoError(t, err)
	err = bad.Login(ctx, false)
	require.ErrorIs(t, err, ErrLoginFailed)
}
