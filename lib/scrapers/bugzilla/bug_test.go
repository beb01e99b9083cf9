package bugzilla

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"suseapi/lib/xmlutil"

	_ "embed"
)

//go:embed testdata/bug-81873.xml
var bugFixture string

//go:embed testdata/bug-582198.xml
var bugNotPermittedFixture string

//go:embed testdata/bug-20000000.xml
var bugNotFoundFixture string

//go:embed testdata/bug-none.xml
var bugInvalidFixture string

//go:embed testdata/buglist.xml
var buglistFixture string

func parseBugElement(t *testing.T, data string) *xmlutil.Element {
	t.Helper()
	root, err := xmlutil.Parse(data)
	require.NoError(t, err)
	bug := root.Find("bug")
	require.NotNil(t, bug)
	return bug
}

func TestParseBug(t *testing.T) {
	bug, err := ParseBug(parseBugElement(t, bugFixture), false)
	require.NoError(t, err)

	require.Equal(t, "81873", bug.ID)
	require.True(t, bug.HasNonempty("classification"))
	require.Equal(t, "Novell Products", bug.Field("classification"))
	require.Equal(t, "RESOLVED", bug.Field("bug_status"))
	require.Equal(t, "Kernel oops on resume from suspend", bug.Field("short_desc"))

	require.Equal(t, []string{"first@example.com", "second@example.com"}, bug.CCList)
	require.Equal(t, []string{"secteam"}, bug.Groups)
	require.Equal(t, []string{"kernel-oops"}, bug.Aliases)

	require.NotNil(t, bug.CreationTS)
	require.Equal(t, 2005, bug.CreationTS.Year())
	require.NotNil(t, bug.DeltaTS)
	require.Equal(t, 2010, bug.DeltaTS.Year())
}

func TestParseBugFlags(t *testing.T) {
	bug, err := ParseBug(parseBugElement(t, bugFixture), false)
	require.NoError(t, err)

	require.Len(t, bug.Flags, 2)
	require.Equal(t, "needinfo", bug.Flags[0]["name"])
	require.Equal(t, "123", bug.Flags[0]["id"])
	require.Equal(t, "SHIP_STOPPER", bug.Flags[1]["name"])
	// absent attributes stay absent in the sparse record
	_, ok := bug.Flags[1]["id"]
	require.False(t, ok)
}

func TestParseBugComments(t *testing.T) {
	bug, err := ParseBug(parseBugElement(t, bugFixture), false)
	require.NoError(t, err)

	require.Len(t, bug.Comments, 2)
	require.Equal(t, "someone@example.com", bug.Comments[0].Who)
	require.False(t, bug.Comments[0].Private)
	require.Equal(t, "Initial report.", bug.Comments[0].Text)
	require.True(t, bug.Comments[1].Private)
	require.NotNil(t, bug.Comments[1].When)
}

func TestParseBugAttachments(t *testing.T) {
	bug, err := ParseBug(parseBugElement(t, bugFixture), false)
	require.NoError(t, err)

	require.Len(t, bug.Attachments, 1)
	a := bug.Attachments[0]
	require.Equal(t, "31337", a.ID)
	require.Equal(t, "Proposed fix", a.Desc)
	require.Equal(t, "fix.patch", a.Filename)
	require.True(t, a.IsPatch)
	require.False(t, a.IsObsolete)
	require.Equal(t, 2005, a.Date.Year())
}

func TestParseBugNotPermitted(t *testing.T) {
	_, err := ParseBug(parseBugElement(t, bugNotPermittedFixture), false)
	require.ErrorIs(t, err, ErrNotPermitted)

	var berr *Error
	require.True(t, errors.As(err, &berr))
	require.Equal(t, "582198", berr.BugID)
}

func TestParseBugNotFound(t *testing.T) {
	_, err := ParseBug(parseBugElement(t, bugNotFoundFixture), false)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestParseBugInvalidID(t *testing.T) {
	_, err := ParseBug(parseBugElement(t, bugInvalidFixture), false)
	require.ErrorIs(t, err, ErrInvalidBugID)

	var berr *Error
	require.True(t, errors.As(err, &berr))
	require.Empty(t, berr.BugID)
}

func TestParseBugAnonymousComment(t *testing.T) {
	const data = `<bugzilla><bug>
		<bug_id>1</bug_id>
		<long_desc isprivate="0"><thetext>visible text</thetext></long_desc>
	</bug></bugzilla>`

	// author withheld: fatal for credentialed access
	_, err := ParseBug(parseBugElement(t, data), false)
	require.ErrorIs(t, err, ErrNotPermitted)

	// tolerated anonymously
	bug, err := ParseBug(parseBugElement(t, data), true)
	require.NoError(t, err)
	require.Len(t, bug.Comments, 1)
	require.Empty(t, bug.Comments[0].Who)
	require.Nil(t, bug.Comments[0].When)
	require.Equal(t, "visible text", bug.Comments[0].Text)
}

func TestParseBugUnknownTags(t *testing.T) {
	const data = `<bugzilla><bug>
		<bug_id>2</bug_id>
		<some_future_field>value</some_future_field>
		<unknown_container><nested>x</nested></unknown_container>
	</bug></bugzilla>`

	bug, err := ParseBug(parseBugElement(t, data), false)
	require.NoError(t, err)
	require.Equal(t, "value", bug.Field("some_future_field"))
	// unknown non-leaf elements are dropped, not flattened
	require.Empty(t, bug.Field("unknown_container"))
	require.Empty(t, bug.Field("nested"))
}
