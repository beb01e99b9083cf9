package bugzilla

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// errFieldNotFound signals a Set against a field the form does not carry.
var errFieldNotFound = fmt.Errorf("form field not found")

// Form is the field state of one scraped HTML form, ready for mutation and
// submission. Checkbox and radio inputs contribute values only while
// checked; selects contribute the selected (or first) option.
type Form struct {
	Name   string
	Action string
	Method string

	fields url.Values
}

// ParseForms scrapes every form in the document, in document order.
func ParseForms(doc *goquery.Document) []*Form {
	var forms []*Form
	doc.Find("form").Each(func(_ int, sel *goquery.Selection) {
		forms = append(forms, parseForm(sel))
	})
	return forms
}

// FindForm returns the form with the given name attribute, or nil.
func FindForm(doc *goquery.Document, name string) *Form {
	for _, form := range ParseForms(doc) {
		if form.Name == name {
			return form
		}
	}
	return nil
}

func parseForm(sel *goquery.Selection) *Form {
	form := &Form{
		Name:   sel.AttrOr("name", ""),
		Action: sel.AttrOr("action", ""),
		Method: strings.ToUpper(sel.AttrOr("method", "GET")),
		fields: url.Values{},
	}

	sel.Find("input").Each(func(_ int, input *goquery.Selection) {
		name := input.AttrOr("name", "")
		if name == "" {
			return
		}
		switch strings.ToLower(input.AttrOr("type", "text")) {
		case "checkbox", "radio":
			if _, checked := input.Attr("checked"); checked {
				form.fields.Add(name, input.AttrOr("value", "on"))
			} else if !form.Has(name) {
				// remember the field exists so Set can check it
				form.fields[name] = []string{}
			}
		case "submit", "button", "image", "file", "reset":
		default:
			form.fields.Add(name, input.AttrOr("value", ""))
		}
	})

	sel.Find("select").Each(func(_ int, slct *goquery.Selection) {
		name := slct.AttrOr("name", "")
		if name == "" {
			return
		}
		options := slct.Find("option")
		value, found := "", false
		options.Each(func(i int, opt *goquery.Selection) {
			if _, selected := opt.Attr("selected"); selected && !found {
				value, found = optionValue(opt), true
			}
		})
		if !found && options.Length() > 0 {
			value = optionValue(options.First())
		}
		form.fields.Add(name, value)
	})

	sel.Find("textarea").Each(func(_ int, area *goquery.Selection) {
		name := area.AttrOr("name", "")
		if name == "" {
			return
		}
		form.fields.Add(name, area.Text())
	})

	return form
}

func optionValue(opt *goquery.Selection) string {
	if v, ok := opt.Attr("value"); ok {
		return v
	}
	return strings.TrimSpace(opt.Text())
}

// Has reports whether the form carries the named field (even unchecked).
func (f *Form) Has(name string) bool {
	_, ok := f.fields[name]
	return ok
}

// Get returns the first value of the named field.
func (f *Form) Get(name string) string {
	values := f.fields[name]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// Set overwrites the named field. Fields the form does not carry cannot be
// set, mirroring what a browser could submit.
func (f *Form) Set(name, value string) error {
	if !f.Has(name) {
		return fmt.Errorf("%w: %s", errFieldNotFound, name)
	}
	f.fields[name] = []string{value}
	return nil
}

// Uncheck clears every value of the named field without removing it from
// the form. A no-op for fields the form does not carry.
func (f *Form) Uncheck(name string) {
	if f.Has(name) {
		f.fields[name] = []string{}
	}
}

// Values returns the submittable field values. Fields with no values (an
// unchecked checkbox) are omitted, as a browser would.
func (f *Form) Values() url.Values {
	out := url.Values{}
	for name, values := range f.fields {
		for _, v := range values {
			out.Add(name, v)
		}
	}
	return out
}
