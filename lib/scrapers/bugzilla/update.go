package bugzilla

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/codes"
)

// fields that may legitimately be missing from the edit form (privacy, CC
// and group toggles depend on the bug's configuration)
var ignorableFields = map[string]bool{
	"commentprivacy":     true,
	"comment_is_private": true,
	"addselfcc":          true,
	"groups":             true,
}

const editFormName = "changeform"

type UpdateOptions struct {
	// Fields are applied to the edit form verbatim.
	Fields map[string]string
	// WhiteboardAdd appends a token to the whiteboard unless already
	// present; WhiteboardRemove deletes the first occurrence of a token.
	WhiteboardAdd    string
	WhiteboardRemove string
	// Callback may adjust the live form state and reports whether it
	// changed anything.
	Callback func(form *Form) bool
}

// UpdateBug loads the bug's edit form, applies the requested mutations and
// submits. No submission happens when nothing changed or the client is
// read-only.
func (c *Client) UpdateBug(ctx context.Context, bugid int, opts UpdateOptions) error {
	ctx, span := tracer.Start(ctx, "client:UpdateBug")
	defer span.End()

	form, p, err := c.loadUpdateForm(ctx, bugid)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load update form")
		return err
	}

	changes := false

	// do not add ourselves to CC just for a whiteboard edit
	wbRequested := opts.WhiteboardAdd != "" || opts.WhiteboardRemove != ""
	if _, explicit := opts.Fields["addselfcc"]; wbRequested && !explicit {
		form.Uncheck("addselfcc")
	}

	// deterministic application order
	names := make([]string, 0, len(opts.Fields))
	for name := range opts.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		err := form.Set(name, opts.Fields[name])
		if err != nil {
			if errors.Is(err, errFieldNotFound) && ignorableFields[name] {
				changes = true
				continue
			}
			return updateErr("no field %s in update form", name)
		}
		changes = true
	}

	if opts.Callback != nil {
		if opts.Callback(form) {
			changes = true
		}
	}

	if wbRequested {
		changed, err := updateWhiteboard(form, opts.WhiteboardRemove, opts.WhiteboardAdd)
		if err != nil {
			return err
		}
		if changed {
			changes = true
		}
	}

	if !changes || c.forceReadonly {
		return nil
	}

	res, err := c.submitForm(ctx, p, form)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to submit update form")
		return err
	}
	body := string(res.body)
	if strings.Contains(body, "Mid-air collision!") {
		return updateErr("Mid-air collision!")
	}
	if strings.Contains(body, "reason=invalid_token") {
		return updateErr("Suspicious Action")
	}
	if !strings.Contains(body, "Changes submitted for") {
		return updateErr("unknown error while submitting form")
	}
	return nil
}

func (c *Client) loadUpdateForm(ctx context.Context, bugid int) (*Form, *page, error) {
	if c.anonymous {
		return nil, nil, updateErr("no updates in anonymous mode!")
	}

	slog.InfoContext(ctx, "loading bug form", "bug", bugid)
	p, err := c.request(ctx, "show_bug", url.Values{"id": {strconv.Itoa(bugid)}})
	if err != nil {
		return nil, nil, err
	}
	if strings.Contains(string(p.body), "You are not authorized to access bug") {
		return nil, nil, newError(
			KindNotPermitted,
			"you are not authorized to access this bug",
			strconv.Itoa(bugid),
		)
	}
	if err := c.checkViewingHTML(p); err != nil {
		return nil, nil, err
	}

	doc, err := p.document()
	if err != nil {
		return nil, nil, updateErr("failed to parse HTML to update bug!")
	}
	form := FindForm(doc, editFormName)
	if form == nil {
		return nil, nil, updateErr("failed to parse HTML to update bug!")
	}
	return form, p, nil
}

// updateWhiteboard applies the token add/remove policy against the form's
// whiteboard field and reports whether the text actually changed.
func updateWhiteboard(form *Form, remove, add string) (bool, error) {
	if !form.Has("status_whiteboard") {
		return false, updateErr("no whiteboard field in update form")
	}
	current := form.Get("status_whiteboard")

	whiteboard := current
	if remove != "" && strings.Contains(whiteboard, remove) {
		whiteboard = strings.Replace(whiteboard, remove, "", 1)
	}
	if add != "" && !strings.Contains(whiteboard, add) {
		whiteboard = whiteboard + " " + add
	}

	if err := form.Set("status_whiteboard", whiteboard); err != nil {
		return false, err
	}
	return whiteboard != current, nil
}
