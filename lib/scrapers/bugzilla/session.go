package bugzilla

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"

	"suseapi/lib/htmlutil"
)

// the server renders the logout affordance with a plain or non-breaking
// space depending on the page variant
var logoutVariants = []string{"Log out", "Log out"}

const (
	loginUserField     = "Ecom_User_ID"
	loginPasswordField = "Ecom_Password"
)

// CheckLogin probes the index page and reports whether the session is
// authenticated. The loaded page becomes the current page.
func (c *Client) CheckLogin(ctx context.Context) (bool, error) {
	ctx, span := tracer.Start(ctx, "client:CheckLogin")
	defer span.End()

	slog.InfoContext(ctx, "getting login page")
	p, err := c.request(ctx, "index", url.Values{"GoAheadAndLogIn": {"1"}})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load login page")
		return false, err
	}
	return c.checkLoginPage(ctx, p)
}

func (c *Client) checkLoginPage(ctx context.Context, p *page) (bool, error) {
	if err := c.checkViewingHTML(p); err != nil {
		return false, err
	}
	doc, err := p.document()
	if err != nil {
		return false, loginFailedErr("failed to parse bugzilla page: %s", err)
	}
	if _, ok := htmlutil.FindAnchor(doc, logoutVariants...); ok {
		slog.InfoContext(ctx, "already logged in")
		return true, nil
	}
	return false, nil
}

// Login authenticates the session. Cached cookies are installed without
// network traffic when the session store has them and force is unset;
// otherwise the full login flow runs once and the resulting cookies are
// persisted back.
func (c *Client) Login(ctx context.Context, force bool) error {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	if !force {
		cookies, err := c.store.Get(ctx, sessionCacheKey)
		if err != nil {
			slog.WarnContext(ctx, "failed to read session store", "err", err)
		}
		if len(cookies) > 0 {
			c.Http.GetClient().Jar.SetCookies(c.BaseURL, cookies)
			c.cookieSet = true
			return nil
		}
	}

	if err := c.loginFn(ctx, force); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "login failed")
		return err
	}
	c.cookieSet = true

	cookies := c.Http.GetClient().Jar.Cookies(c.BaseURL)
	if err := c.store.Set(ctx, sessionCacheKey, cookies); err != nil {
		slog.WarnContext(ctx, "failed to persist session cookies", "err", err)
	}
	return nil
}

// formLogin drives the Access Manager flow: submit the script-emulation
// placeholder form, fill the revealed login form, then follow the
// javascript redirect the response embeds.
func (c *Client) formLogin(ctx context.Context, force bool) error {
	loggedIn, err := c.CheckLogin(ctx)
	if err != nil {
		return err
	}
	if loggedIn {
		return nil
	}

	doc, err := c.page.document()
	if err != nil {
		return loginFailedErr("failed to parse HTML for login!")
	}
	forms := ParseForms(doc)
	if len(forms) == 0 {
		return loginFailedErr("failed to parse HTML for login!")
	}

	// fake javascript form
	p, err := c.submitForm(ctx, c.page, forms[0])
	if err != nil {
		return err
	}

	doc, err = p.document()
	if err != nil {
		return loginFailedErr("failed to parse HTML for login!")
	}
	forms = ParseForms(doc)
	if len(forms) == 0 {
		return loginFailedErr("failed to parse HTML for login!")
	}
	loginForm := forms[0]
	if err := loginForm.Set(loginUserField, c.user); err != nil {
		return loginFailedErr("failed to parse HTML for login!")
	}
	if err := loginForm.Set(loginPasswordField, c.password); err != nil {
		return loginFailedErr("failed to parse HTML for login!")
	}

	slog.InfoContext(ctx, "doing login")
	p, err = c.submitForm(ctx, p, loginForm)
	if err != nil {
		return err
	}

	doc, err = p.document()
	if err != nil {
		return loginFailedErr("failed to parse bugzilla page: %s", err)
	}

	if msg := doc.Find("p.error").First().Text(); msg != "" {
		return loginFailedErr("%s", strings.TrimSpace(msg))
	}

	if err := c.followScriptRedirect(ctx, p, doc); err != nil {
		return err
	}

	loggedIn, err = c.CheckLogin(ctx)
	if err != nil {
		return err
	}
	if !loggedIn {
		return loginFailedErr("failed to verify login after successful login")
	}
	return nil
}

// followScriptRedirect emulates the `top.location.href='...'` navigation
// the login response embeds, since there is no script engine here.
func (c *Client) followScriptRedirect(ctx context.Context, p *page, doc *goquery.Document) error {
	for _, line := range htmlutil.ScriptLines(doc) {
		if !strings.HasPrefix(line, "top.location.href=") {
			continue
		}
		parts := strings.Split(line, "'")
		if len(parts) < 2 {
			continue
		}
		path, err := url.Parse(parts[1])
		if err != nil {
			continue
		}
		target := p.url.ResolveReference(path)
		slog.InfoContext(ctx, "following login redirect", "url", target.String())
		if _, err := c.request(ctx, target.String(), nil); err != nil {
			return err
		}
	}
	return nil
}
