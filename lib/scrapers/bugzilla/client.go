// Package bugzilla is a scraping client for the legacy Novell/SUSE bugzilla
// web UI. Bug data is loaded through the XML export, everything else (login,
// updates, report links) goes through the HTML pages and forms.
package bugzilla

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"

	"suseapi/lib/sessionstore"
	"suseapi/lib/telemetry"
)

var tracer = otel.Tracer("scrapers/bugzilla")

const (
	// DefaultBase is the interactive bugzilla frontend.
	DefaultBase = "https://bugzilla.novell.com"
	// DefaultAPIBase is the credential-gated API-style endpoint.
	DefaultAPIBase = "https://apibugzilla.suse.com"
	// PublicAPIBase serves anonymous read-only access.
	PublicAPIBase = "https://bugzilla.suse.com"

	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

	// key under which the cookie set is cached in the session store
	sessionCacheKey = "bugzilla-access-cookies"
)

// Transport selects the underlying HTTP transport flavor.
type Transport string

const (
	// TransportDefault is the plain net/http transport.
	TransportDefault Transport = ""
	// TransportCloudflare wraps the transport with browser-like TLS and
	// header behavior for bugzilla instances sitting behind cloudflare.
	TransportCloudflare Transport = "cloudflare"
)

type ClientOptions struct {
	User     string
	Password string
	// BaseURL defaults to DefaultBase.
	BaseURL string
	// UserAgent defaults to a browser user agent.
	UserAgent string
	// ForceReadonly turns every update into a silent no-op.
	ForceReadonly bool
	Transport     Transport
	// Store persists session cookies between runs. Defaults to
	// sessionstore.Noop.
	Store sessionstore.Store
	// Sink receives malformed-response reports. Defaults to SlogSink.
	Sink DiagnosticSink
}

// Client drives one bugzilla session. It is not safe for concurrent use:
// the cookie jar, login flag and current page are shared mutable state,
// callers needing parallelism use one client per goroutine.
type Client struct {
	BaseURL *url.URL
	Http    *resty.Client

	user          string
	password      string
	anonymous     bool
	forceReadonly bool

	// session established, either by login or by installing cached cookies
	cookieSet bool
	store     sessionstore.Store
	sink      DiagnosticSink

	// the last loaded page, emulating browser state for form flows
	page *page

	loginFn func(ctx context.Context, force bool) error
}

func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	base := opts.BaseURL
	if base == "" {
		base = DefaultBase
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(base)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	if opts.Transport == TransportCloudflare {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}

	agent := opts.UserAgent
	if agent == "" {
		agent = defaultUserAgent
	}
	client.SetHeader("user-agent", agent)
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseURL.Hostname()))
	client.SetTimeout(time.Second * 30)

	telemetry.InstrumentResty(client, "scrapers/bugzilla/http")

	store := opts.Store
	if store == nil {
		store = sessionstore.Noop{}
	}
	sink := opts.Sink
	if sink == nil {
		sink = SlogSink{}
	}

	c := &Client{
		BaseURL:       baseURL,
		Http:          client,
		user:          opts.User,
		password:      opts.Password,
		anonymous:     opts.User == "",
		forceReadonly: opts.ForceReadonly,
		store:         store,
		sink:          sink,
	}
	c.loginFn = c.formLogin
	return c, nil
}

// Anonymous reports whether the client runs without credentials.
func (c *Client) Anonymous() bool {
	return c.anonymous
}

// page is one loaded document: its final URL (after redirects), raw body
// and content type.
type page struct {
	url         *url.URL
	body        []byte
	contentType string
}

func (p *page) isHTML() bool {
	if strings.Contains(p.contentType, "html") {
		return true
	}
	return strings.Contains(http.DetectContentType(p.body), "html")
}

func (p *page) document() (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewReader(p.body))
}

// httpStatusError carries a gateway-level HTTP failure so the re-login
// logic can inspect the status code.
type httpStatusError struct {
	code int
	url  string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d", e.url, e.code)
}

func (c *Client) requestURL(action string) string {
	if strings.HasPrefix(action, "http") {
		return action
	}
	return c.BaseURL.String() + "/" + action + ".cgi"
}

func (c *Client) newPage(res *resty.Response) *page {
	finalURL := c.BaseURL
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		finalURL = res.RawResponse.Request.URL
	}
	p := &page{
		url:         finalURL,
		body:        res.Body(),
		contentType: res.Header().Get("Content-Type"),
	}
	c.page = p
	return p
}

// request loads a single page. action is either a bare cgi name ("index",
// "show_bug", ...) or an absolute URL.
func (c *Client) request(ctx context.Context, action string, params url.Values) (*page, error) {
	return c.withRelogin(ctx, func() (*page, error) {
		return c.doRequest(ctx, action, params)
	})
}

func (c *Client) doRequest(ctx context.Context, action string, params url.Values) (*page, error) {
	req := c.Http.R().SetContext(ctx)
	if params != nil {
		req.SetQueryParamsFromValues(params)
	}
	res, err := req.Get(c.requestURL(action))
	if err != nil {
		return nil, newError(KindConnection, err.Error(), "")
	}
	if res.StatusCode() >= 400 {
		return nil, &httpStatusError{code: res.StatusCode(), url: res.Request.URL}
	}
	return c.newPage(res), nil
}

// submitForm posts a form against the page it was scraped from.
func (c *Client) submitForm(ctx context.Context, p *page, form *Form) (*page, error) {
	return c.withRelogin(ctx, func() (*page, error) {
		return c.doSubmit(ctx, p, form)
	})
}

func (c *Client) doSubmit(ctx context.Context, p *page, form *Form) (*page, error) {
	target := p.url
	if form.Action != "" {
		actionURL, err := url.Parse(form.Action)
		if err != nil {
			return nil, newError(KindConnection, err.Error(), "")
		}
		target = p.url.ResolveReference(actionURL)
	}

	res, err := c.Http.R().
		SetContext(ctx).
		SetFormDataFromValues(form.Values()).
		Post(target.String())
	if err != nil {
		return nil, newError(KindConnection, err.Error(), "")
	}
	if res.StatusCode() >= 400 {
		return nil, &httpStatusError{code: res.StatusCode(), url: res.Request.URL}
	}
	return c.newPage(res), nil
}

// withRelogin retries an operation exactly once after recovering from a 502
// on an established session. Bad gateways from this server regularly mean
// the session cookies went stale on a backend switch.
func (c *Client) withRelogin(ctx context.Context, op func() (*page, error)) (*page, error) {
	p, err := op()
	if err == nil {
		return p, nil
	}
	retry, rerr := c.possibleRelogin(ctx, err)
	if rerr != nil {
		return nil, rerr
	}
	if !retry {
		return nil, asConnectionError(err)
	}
	p, err = op()
	if err != nil {
		return nil, asConnectionError(err)
	}
	return p, nil
}

func asConnectionError(err error) error {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return newError(KindConnection, statusErr.Error(), "")
	}
	return err
}

func (c *Client) possibleRelogin(ctx context.Context, err error) (bool, error) {
	var statusErr *httpStatusError
	if !errors.As(err, &statusErr) || statusErr.code != http.StatusBadGateway || !c.cookieSet {
		return false, nil
	}
	slog.WarnContext(ctx, "got 502 (bad gateway), clearing cookies and logging in again")
	c.cookieSet = false
	c.resetCookieJar()
	if err := c.Login(ctx, true); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Client) resetCookieJar() {
	jar, err := cookiejar.New(nil)
	if err != nil {
		// cookiejar.New never fails with nil options
		return
	}
	c.Http.SetCookieJar(jar)
}

func (c *Client) checkViewingHTML(p *page) error {
	if !p.isHTML() {
		return loginFailedErr("failed to load bugzilla form")
	}
	return nil
}
