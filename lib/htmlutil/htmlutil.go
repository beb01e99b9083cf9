package htmlutil

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// GetText collects the text content of a node and all of its descendants.
func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

type Anchor struct {
	Text string
	Href string
}

// Anchors returns every node in the selection with its raw text and href.
// Text is left untrimmed and unnormalized on purpose: callers matching
// server-rendered labels sometimes need to distinguish a plain space from a
// non-breaking one.
func Anchors(sel *goquery.Selection) []Anchor {
	var anchors []Anchor
	for _, n := range sel.Nodes {
		href := ""
		for _, a := range n.Attr {
			if a.Key == "href" {
				href = a.Val
				break
			}
		}
		anchors = append(anchors, Anchor{
			Text: GetText(n),
			Href: href,
		})
	}
	return anchors
}

// FindAnchor returns the first anchor in doc whose text matches any of the
// given variants exactly.
func FindAnchor(doc *goquery.Document, variants ...string) (Anchor, bool) {
	for _, a := range Anchors(doc.Find("a")) {
		for _, v := range variants {
			if a.Text == v {
				return a, true
			}
		}
	}
	return Anchor{}, false
}

// ScriptLines yields every non-blank trimmed line of inline script text in
// the document.
func ScriptLines(doc *goquery.Document) []string {
	var lines []string
	for _, script := range doc.Find("script").Nodes {
		for _, line := range strings.Split(GetText(script), "\n") {
			line = strings.TrimSpace(line)
			if line != "" {
				lines = append(lines, line)
			}
		}
	}
	return lines
}
