package bugzilla

import (
	"fmt"
	"time"

	"github.com/araddon/dateparse"

	"suseapi/lib/xmlutil"
)

// Comment is one long_desc entry of a bug. Who and When may be empty when
// the record was fetched anonymously and the server withheld them.
type Comment struct {
	Who     string
	When    *time.Time
	Private bool
	Text    string
}

// Attachment describes one attachment, metadata only (payloads are excluded
// from the fetch).
type Attachment struct {
	ID         string
	Desc       string
	Date       time.Time
	Filename   string
	Type       string
	Size       string
	Attacher   string
	IsPatch    bool
	IsObsolete bool
}

// Flag is a sparse record of only the attributes the server sent, among
// name, id, type_id, status, setter and requestee.
type Flag map[string]string

var flagAttributes = []string{"name", "id", "type_id", "status", "setter", "requestee"}

// Bug is a normalized bug record. Scalar leaf elements land in Fields keyed
// by their tag name, so unknown tags survive the parse. The record is a
// read-only value once constructed.
type Bug struct {
	ID          string
	Fields      map[string]string
	CCList      []string
	Groups      []string
	Aliases     []string
	Flags       []Flag
	Comments    []Comment
	Attachments []Attachment
	CreationTS  *time.Time
	DeltaTS     *time.Time
	Anonymous   bool
}

// Field returns a scalar attribute by its XML tag name.
func (b *Bug) Field(name string) string {
	return b.Fields[name]
}

// HasNonempty reports whether a scalar attribute is present and non-empty.
func (b *Bug) HasNonempty(name string) bool {
	return b.Fields[name] != ""
}

// ParseBug converts one <bug> element into a Bug, or fails with a typed
// error when the server flagged the record with an error attribute. The
// partial bug id, when extractable, rides along on the error.
func ParseBug(el *xmlutil.Element, anonymous bool) (*Bug, error) {
	if errAttr, ok := el.Attr("error"); ok {
		bugID := el.FindText("bug_id")
		switch errAttr {
		case "NotPermitted":
			return nil, newError(KindNotPermitted, errAttr, bugID)
		case "NotFound":
			return nil, newError(KindNotFound, errAttr, bugID)
		case "InvalidBugId":
			return nil, newError(KindInvalidBugID, errAttr, bugID)
		}
		return nil, newError(KindGeneric, errAttr, bugID)
	}

	bug := &Bug{
		Fields:    map[string]string{},
		Anonymous: anonymous,
	}
	for _, child := range el.Children {
		if err := bug.processElement(child); err != nil {
			return nil, err
		}
	}
	return bug, nil
}

func (b *Bug) parseTime(value string) (time.Time, error) {
	ts, err := dateparse.ParseAny(value)
	if err != nil {
		return time.Time{}, newError(
			KindGeneric,
			fmt.Sprintf("invalid timestamp %q", value),
			b.ID,
		)
	}
	return ts, nil
}

func (b *Bug) processElement(el *xmlutil.Element) error {
	switch el.Tag {
	case "cc":
		b.CCList = append(b.CCList, el.Text)
	case "alias":
		b.Aliases = append(b.Aliases, el.Text)
	case "group":
		b.Groups = append(b.Groups, el.Text)
	case "creation_ts":
		ts, err := b.parseTime(el.Text)
		if err != nil {
			return err
		}
		b.CreationTS = &ts
	case "delta_ts":
		ts, err := b.parseTime(el.Text)
		if err != nil {
			return err
		}
		b.DeltaTS = &ts
	case "flag":
		b.processFlag(el)
	case "long_desc":
		return b.processComment(el)
	case "attachment":
		return b.processAttachment(el)
	default:
		if el.IsLeaf() {
			if el.Tag == "bug_id" {
				b.ID = el.Text
			}
			b.Fields[el.Tag] = el.Text
		}
		// unrecognized non-leaf tags are dropped
	}
	return nil
}

func (b *Bug) processFlag(el *xmlutil.Element) {
	flag := Flag{}
	for _, attr := range flagAttributes {
		if value := el.AttrOr(attr, ""); value != "" {
			flag[attr] = value
		}
	}
	b.Flags = append(b.Flags, flag)
}

func (b *Bug) processComment(el *xmlutil.Element) error {
	var who string
	if whoEl := el.Find("who"); whoEl != nil {
		who = whoEl.Text
	} else if !b.Anonymous {
		return newError(
			KindNotPermitted,
			"could not load author from bugzilla",
			b.ID,
		)
	}

	var when *time.Time
	if whenEl := el.Find("bug_when"); whenEl != nil {
		ts, err := b.parseTime(whenEl.Text)
		if err != nil {
			return err
		}
		when = &ts
	} else if !b.Anonymous {
		return newError(
			KindNotPermitted,
			"could not load time of change from bugzilla",
			b.ID,
		)
	}

	textEl := el.Find("thetext")
	if textEl == nil {
		return newError(KindGeneric, "comment without text", b.ID)
	}

	b.Comments = append(b.Comments, Comment{
		Who:     who,
		When:    when,
		Private: el.AttrOr("isprivate", "") == "1",
		Text:    textEl.Text,
	})
	return nil
}

func (b *Bug) processAttachment(el *xmlutil.Element) error {
	var missing []string
	child := func(tag string) string {
		c := el.Find(tag)
		if c == nil {
			missing = append(missing, tag)
			return ""
		}
		return c.Text
	}

	attachment := Attachment{
		ID:         child("attachid"),
		Desc:       child("desc"),
		Filename:   child("filename"),
		Type:       child("type"),
		Size:       child("size"),
		Attacher:   child("attacher"),
		IsPatch:    el.AttrOr("ispatch", "0") == "1",
		IsObsolete: el.AttrOr("isobsolete", "0") == "1",
	}
	date := child("date")
	if len(missing) > 0 {
		return newError(
			KindGeneric,
			fmt.Sprintf("attachment is missing %v", missing),
			b.ID,
		)
	}
	ts, err := b.parseTime(date)
	if err != nil {
		return err
	}
	attachment.Date = ts

	b.Attachments = append(b.Attachments, attachment)
	return nil
}
