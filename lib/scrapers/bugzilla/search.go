package bugzilla

import (
	"context"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"

	"suseapi/lib/htmlutil"
	"suseapi/lib/xmlutil"
)

var srMatch = regexp.MustCompile(`\[(\d+)\]`)

const searchTimeFormat = "2006-01-02 15:04:05 +0000"

// DoSearch runs a query against the feed-style listing and returns the
// numeric bug ids in server order (relevance/recency, not re-sorted).
func (c *Client) DoSearch(ctx context.Context, params url.Values) ([]int, error) {
	ctx, span := tracer.Start(ctx, "client:DoSearch")
	defer span.End()

	req := url.Values{"ctype": {"atom"}}
	for key, values := range params {
		for _, v := range values {
			req.Add(key, v)
		}
	}
	slog.InfoContext(ctx, "doing bugzilla search", "params", req.Encode())

	p, err := c.request(ctx, "buglist", req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch buglist")
		return nil, err
	}

	data := xmlutil.Sanitize(string(p.body))
	root, err := xmlutil.Parse(data)
	if err != nil {
		if herr := c.handleParseError(ctx, "search", data); herr != nil {
			span.RecordError(herr)
			span.SetStatus(codes.Error, "unusable response")
			return nil, herr
		}
		return nil, nil
	}

	var ids []int
	for _, entry := range root.FindAll("entry") {
		// entry ids embed as .../show_bug.cgi?id=<digits>
		link := entry.FindText("id")
		idx := strings.Index(link, "?id=")
		if idx < 0 {
			continue
		}
		id, err := strconv.Atoi(link[idx+4:])
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// GetRecentBugs returns bugs changed since the given time.
func (c *Client) GetRecentBugs(ctx context.Context, since time.Time) ([]int, error) {
	return c.DoSearch(ctx, url.Values{
		"chfieldto":   {"Now"},
		"chfieldfrom": {since.UTC().Format(searchTimeFormat)},
	})
}

// GetOpenSecurityBugs searches for open security incident bugs.
func (c *Client) GetOpenSecurityBugs(ctx context.Context) ([]int, error) {
	return c.DoSearch(ctx, url.Values{
		"short_desc":      {"^VUL-[0-9]"},
		"query_format":    {"advanced"},
		"bug_status":      {"NEW", "ASSIGNED", "NEEDINFO", "REOPENED"},
		"component":       {"Incidents"},
		"product":         {"SUSE Security Incidents"},
		"short_desc_type": {"regexp"},
	})
}

// GetRecentSecurityBugs returns security incident bugs changed since the
// given time.
func (c *Client) GetRecentSecurityBugs(ctx context.Context, since time.Time) ([]int, error) {
	return c.DoSearch(ctx, url.Values{
		"short_desc":      {"^VUL-[0-9]"},
		"query_format":    {"advanced"},
		"short_desc_type": {"regexp"},
		"chfieldto":       {"Now"},
		"component":       {"Incidents"},
		"product":         {"SUSE Security Incidents"},
		"chfieldfrom":     {since.UTC().Format(searchTimeFormat)},
	})
}

// GetOpenL3Bugs searches for bugs with openL3 in the whiteboard.
func (c *Client) GetOpenL3Bugs(ctx context.Context) ([]int, error) {
	return c.DoSearch(ctx, url.Values{
		"status_whiteboard_type": {"allwordssubstr"},
		"query_format":           {"advanced"},
		"status_whiteboard":      {"openL3"},
	})
}

// GetL3SummaryBugs searches for open bugs with L3: in the summary.
func (c *Client) GetL3SummaryBugs(ctx context.Context) ([]int, error) {
	return c.DoSearch(ctx, url.Values{
		"short_desc":      {"L3:"},
		"query_format":    {"advanced"},
		"bug_status":      {"NEW", "ASSIGNED", "NEEDINFO", "REOPENED"},
		"short_desc_type": {"allwordssubstr"},
	})
}

// GetSR digs service request ids out of the Report View link on the bug
// page. The ids hide URL-encoded inside the link, bracketed.
func (c *Client) GetSR(ctx context.Context, bugid int) ([]int, error) {
	ctx, span := tracer.Start(ctx, "client:GetSR")
	defer span.End()

	slog.InfoContext(ctx, "loading bug page", "bug", bugid)
	p, err := c.request(ctx, "show_bug", url.Values{"id": {strconv.Itoa(bugid)}})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load bug page")
		return nil, err
	}
	if err := c.checkViewingHTML(p); err != nil {
		return nil, err
	}
	doc, err := p.document()
	if err != nil {
		return nil, loginFailedErr("failed to parse bugzilla page: %s", err)
	}

	link, ok := htmlutil.FindAnchor(doc, "Report View")
	if !ok {
		return nil, nil
	}

	var srPart string
	for _, part := range strings.Split(link.Href, "%26") {
		if strings.HasPrefix(part, "lsMSRID") {
			srPart = part
			break
		}
	}
	if srPart == "" {
		return nil, nil
	}

	var ids []int
	for _, match := range srMatch.FindAllStringSubmatch(srPart, -1) {
		id, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
