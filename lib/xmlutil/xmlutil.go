// Package xmlutil deals with the almost-XML that bugzilla emits: raw control
// bytes inside text nodes and occasional HTML-isms that a strict parser
// rejects.
package xmlutil

import (
	"encoding/xml"
	"io"
	"strings"
)

var sanitizer = newSanitizer()

func newSanitizer() *strings.Replacer {
	var pairs []string
	for c := 0; c < 32; c++ {
		// tab, newline and carriage return are legal in XML text
		if c == 9 || c == 10 || c == 13 {
			continue
		}
		pairs = append(pairs, string(rune(c)), "\\x"+string(rune('0'+c/10))+string(rune('0'+c%10)))
	}
	return strings.NewReplacer(pairs...)
}

// Sanitize replaces control characters that violate XML well-formedness
// with a literal `\xNN` escape (two-digit decimal code point). Tab, LF and
// CR pass through untouched, as does everything else.
func Sanitize(data string) string {
	return sanitizer.Replace(data)
}

// Element is one node of a parsed document. Tag holds the local name only,
// namespaces are dropped since the upstream server is inconsistent about
// declaring them.
type Element struct {
	Tag      string
	Attrs    map[string]string
	Text     string
	Children []*Element
}

// Attr returns the value of a named attribute and whether it was present.
func (e *Element) Attr(name string) (string, bool) {
	v, ok := e.Attrs[name]
	return v, ok
}

// AttrOr returns the value of a named attribute, or fallback when absent.
func (e *Element) AttrOr(name, fallback string) string {
	if v, ok := e.Attrs[name]; ok {
		return v
	}
	return fallback
}

// Find returns the first direct child with the given tag, or nil.
func (e *Element) Find(tag string) *Element {
	for _, c := range e.Children {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}

// FindText returns the text of the first direct child with the given tag,
// or the empty string when there is no such child.
func (e *Element) FindText(tag string) string {
	if c := e.Find(tag); c != nil {
		return c.Text
	}
	return ""
}

// FindAll returns every direct child with the given tag, in document order.
func (e *Element) FindAll(tag string) []*Element {
	var out []*Element
	for _, c := range e.Children {
		if c.Tag == tag {
			out = append(out, c)
		}
	}
	return out
}

// IsLeaf reports whether the element has no child elements.
func (e *Element) IsLeaf() bool {
	return len(e.Children) == 0
}

// Parse decodes a document into an element tree. The decoder runs in
// non-strict mode so the usual bugzilla sloppiness (stray entities, odd
// charset declarations) does not abort the parse. Callers are expected to
// run Sanitize over the input first.
func Parse(data string) (*Element, error) {
	dec := xml.NewDecoder(strings.NewReader(data))
	dec.Strict = false
	dec.AutoClose = xml.HTMLAutoClose
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		// the server lies about encodings often enough that the only
		// workable option is to take the bytes as they come
		return input, nil
	}

	var root *Element
	var stack []*Element
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			el := &Element{Tag: t.Name.Local, Attrs: map[string]string{}}
			for _, a := range t.Attr {
				el.Attrs[a.Name.Local] = a.Value
			}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, el)
			} else if root == nil {
				root = el
			}
			stack = append(stack, el)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}
		}
	}
	if root == nil {
		return nil, io.ErrUnexpectedEOF
	}
	return root, nil
}
