package bugzilla

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/codes"

	"suseapi/lib/xmlutil"
)

type GetBugsOptions struct {
	// Permissive logs and skips bugs that fail to parse instead of
	// aborting the whole batch.
	Permissive bool
	// StoreErrors keeps per-bug errors in the result list in place of a
	// record. The batch still aborts on the first error unless Permissive
	// is also set.
	StoreErrors bool
}

// BugEntry is one slot of a batch result: a record, or (with StoreErrors)
// the error that replaced it.
type BugEntry struct {
	Bug *Bug
	Err error
}

// GetBug loads a single bug. A nil bug with a nil error means the response
// was ambiguous (a transient HTML page instead of XML) and was treated as
// empty.
func (c *Client) GetBug(ctx context.Context, id string) (*Bug, error) {
	entries, err := c.GetBugs(ctx, []string{id}, GetBugsOptions{})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return entries[0].Bug, nil
}

// GetBugs loads a set of bugs with one combined XML request, attachment
// payloads excluded. Records come back in document order. A NotPermitted
// error on a credentialed client triggers one transparent re-login and
// retry before surfacing.
func (c *Client) GetBugs(ctx context.Context, ids []string, opts GetBugsOptions) ([]BugEntry, error) {
	return c.getBugs(ctx, ids, opts, true)
}

func (c *Client) getBugs(ctx context.Context, ids []string, opts GetBugsOptions, retry bool) ([]BugEntry, error) {
	ctx, span := tracer.Start(ctx, "client:GetBugs")
	defer span.End()

	params := url.Values{}
	for _, id := range ids {
		if id != "" {
			params.Add("id", id)
		}
	}
	params.Set("ctype", "xml")
	params.Set("excludefield", "attachmentdata")

	p, err := c.request(ctx, "show_bug", params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch bugs")
		return nil, err
	}

	// fix up the XML errors bugzilla produces before parsing
	data := xmlutil.Sanitize(string(p.body))
	root, err := xmlutil.Parse(data)
	if err != nil {
		if herr := c.handleParseError(ctx, strings.Join(ids, ","), data); herr != nil {
			span.RecordError(herr)
			span.SetStatus(codes.Error, "unusable response")
			return nil, herr
		}
		return nil, nil
	}

	var entries []BugEntry
	for _, el := range root.FindAll("bug") {
		bug, err := ParseBug(el, c.anonymous)
		if err == nil {
			entries = append(entries, BugEntry{Bug: bug})
			continue
		}
		if opts.StoreErrors {
			entries = append(entries, BugEntry{Err: err})
		}
		if opts.Permissive {
			slog.ErrorContext(ctx, "skipping unparsable bug", "err", err)
			continue
		}
		if errors.Is(err, ErrNotPermitted) && retry && !c.anonymous {
			slog.ErrorContext(ctx, "not permitted, logging in and retrying", "err", err)
			if lerr := c.Login(ctx, false); lerr != nil {
				return nil, lerr
			}
			return c.getBugs(ctx, ids, opts, false)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "bug parse aborted the batch")
		return nil, err
	}
	return entries, nil
}

// handleParseError classifies a response the XML parser could not salvage.
// A nil return means the response was ambiguous server noise: it is
// reported through the diagnostic sink and the batch is treated as empty,
// since transient HTML pages routinely stand in for XML here.
func (c *Client) handleParseError(ctx context.Context, bugid, data string) error {
	if strings.Contains(data, "Buglist Too Large") {
		return newError(KindListTooLarge, "buglist too large", "")
	}
	if strings.Contains(data, "Bugzilla has suffered an internal error.") {
		return newError(KindConnection, "bugzilla has suffered an internal error", "")
	}
	if data == "" {
		return newError(KindGeneric, "received empty response from bugzilla", "")
	}
	c.sink.ReportParseError(ctx, bugid, data)
	return nil
}
