package bugzilla

import (
	"context"
	"strings"
)

// APIClient talks to the API-style bugzilla endpoint, authenticating with
// HTTP basic credentials baked into the transport instead of the form
// flow. Anonymous use falls back to the public frontend.
type APIClient struct {
	*Client
}

func NewAPIClient(ctx context.Context, opts ClientOptions) (*APIClient, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultAPIBase
	}
	anonymous := opts.User == ""
	if anonymous && strings.Contains(opts.BaseURL, "suse.com") {
		opts.BaseURL = PublicAPIBase
	}

	c, err := NewClient(ctx, opts)
	if err != nil {
		return nil, err
	}
	if !anonymous {
		c.Http.SetBasicAuth(opts.User, opts.Password)
	}
	c.loginFn = c.probeLogin
	return &APIClient{Client: c}, nil
}

// probeLogin just verifies that the basic-auth transport yields an
// authenticated page.
func (c *Client) probeLogin(ctx context.Context, force bool) error {
	loggedIn, err := c.CheckLogin(ctx)
	if err != nil {
		return err
	}
	if !loggedIn {
		return loginFailedErr("failed to login to bugzilla")
	}
	return nil
}
