package xmlutil

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeControlCharacters(t *testing.T) {
	for c := 0; c < 32; c++ {
		input := fmt.Sprintf("before%cafter", rune(c))
		got := Sanitize(input)
		if c == 9 || c == 10 || c == 13 {
			require.Equal(t, input, got, "allowed whitespace %d must pass through", c)
			continue
		}
		want := fmt.Sprintf("before\\x%02dafter", c)
		require.Equal(t, want, got, "control char %d", c)
	}
}

func TestSanitizePlainText(t *testing.T) {
	input := "plain ascii text, nothing to do"
	require.Equal(t, input, Sanitize(input))
}

func TestSanitizeMultipleOccurrences(t *testing.T) {
	require.Equal(t, "a\\x01b\\x01c", Sanitize("a\x01b\x01c"))
}

func TestParseTree(t *testing.T) {
	root, err := Parse(`<bugzilla><bug foo="bar"><bug_id>1</bug_id><cc>a</cc><cc>b</cc></bug></bugzilla>`)
	require.NoError(t, err)
	require.Equal(t, "bugzilla", root.Tag)

	bug := root.Find("bug")
	require.NotNil(t, bug)
	require.Equal(t, "bar", bug.AttrOr("foo", ""))
	require.Equal(t, "1", bug.FindText("bug_id"))
	require.Len(t, bug.FindAll("cc"), 2)
	require.True(t, bug.Find("bug_id").IsLeaf())
	require.False(t, bug.IsLeaf())
}

func TestParseDropsNamespaces(t *testing.T) {
	root, err := Parse(`<feed xmlns="http://www.w3.org/2005/Atom"><entry><id>x</id></entry></feed>`)
	require.NoError(t, err)
	require.Equal(t, "feed", root.Tag)
	require.Equal(t, "x", root.Find("entry").FindText("id"))
}

func TestParseTolerant(t *testing.T) {
	// stray entity and a charset the stdlib does not know
	root, err := Parse(`<?xml version="1.0" encoding="windows-1252"?><bug><short_desc>a &nbsp b</short_desc></bug>`)
	require.NoError(t, err)
	require.NotNil(t, root.Find("short_desc"))
}

func TestParseEmpty(t *testing.T) {
	_, err := Parse("")
	require.Error(t, err)
}
