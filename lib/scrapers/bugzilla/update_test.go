package bugzilla

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

const editPage = `<html><body>
<form name="changeform" method="post" action="/process_bug.cgi">
	<input type="hidden" name="delta_ts" value="2010-01-01 00:00:00"/>
	<input type="hidden" name="token" value="abcdef"/>
	<input type="text" name="short_desc" value="Old summary"/>
	<input type="text" name="status_whiteboard" value="openL3 tag1"/>
	<input type="checkbox" name="addselfcc" value="on" checked/>
	<select name="bug_status">
		<option value="NEW" selected>NEW</option>
		<option value="RESOLVED">RESOLVED</option>
	</select>
	<textarea name="comment"></textarea>
	<input type="submit" name="commit" value="Commit"/>
</form>
</body></html>`

const submittedPage = `<html><body>Changes submitted for <a href="show_bug.cgi?id=100">bug 100</a></body></html>`

// updateServer serves a bug edit page and records what gets posted back.
type updateServer struct {
	editPage string
	response string

	mu          sync.Mutex
	submissions []url.Values
}

func newUpdateServer() *updateServer {
	return &updateServer{editPage: editPage, response: submittedPage}
}

func (s *updateServer) start(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/show_bug.cgi", func(w http.ResponseWriter, r *http.Request) {
		serveHTML(w, s.editPage)
	})
	mux.HandleFunc("/process_bug.cgi", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		s.mu.Lock()
		s.submissions = append(s.submissions, r.PostForm)
		s.mu.Unlock()
		serveHTML(w, s.response)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func (s *updateServer) submitted(t *testing.T) url.Values {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.Len(t, s.submissions, 1)
	return s.submissions[0]
}

func TestUpdateBugFields(t *testing.T) {
	server := newUpdateServer()
	srv := server.start(t)
	client := newTestClient(t, srv.URL, "tester")

	err := client.UpdateBug(context.Background(), 100, UpdateOptions{
		Fields: map[string]string{"short_desc": "New summary"},
	})
	require.NoError(t, err)

	form := server.submitted(t)
	require.Equal(t, "New summary", form.Get("short_desc"))
	// untouched hidden state travels along
	require.Equal(t, "abcdef", form.Get("token"))
	require.Equal(t, "2010-01-01 00:00:00", form.Get("delta_ts"))
	// no whiteboard edit requested, so the CC toggle keeps its page default
	require.Equal(t, "on", form.Get("addselfcc"))
}

func TestUpdateWhiteboardAdd(t *testing.T) {
	server := newUpdateServer()
	srv := server.start(t)
	client := newTestClient(t, srv.URL, "tester")

	err := client.UpdateBug(context.Background(), 100, UpdateOptions{
		WhiteboardAdd: "needinfo",
	})
	require.NoError(t, err)

	form := server.submitted(t)
	require.Equal(t, "openL3 tag1 needinfo", form.Get("status_whiteboard"))
	// a bare whiteboard edit must not add the user to CC
	require.NotContains(t, form, "addselfcc")
}

func TestUpdateWhiteboardAddPresent(t *testing.T) {
	server := newUpdateServer()
	srv := server.start(t)
	client := newTestClient(t, srv.URL, "tester")

	err := client.UpdateBug(context.Background(), 100, UpdateOptions{
		WhiteboardAdd: "openL3",
	})
	require.NoError(t, err)
	require.Empty(t, server.submissions, "token already present, nothing to submit")
}

func TestUpdateWhiteboardRemove(t *testing.T) {
	server := newUpdateServer()
	srv := server.start(t)
	client := newTestClient(t, srv.URL, "tester")

	err := client.UpdateBug(context.Background(), 100, UpdateOptions{
		WhiteboardRemove: "tag1",
	})
	require.NoError(t, err)
	require.Equal(t, "openL3 ", server.submitted(t).Get("status_whiteboard"))
}

func TestUpdateWhiteboardRemoveAbsent(t *testing.T) {
	server := newUpdateServer()
	srv := server.start(t)
	client := newTestClient(t, srv.URL, "tester")

	err := client.UpdateBug(context.Background(), 100, UpdateOptions{
		WhiteboardRemove: "nosuchtoken",
	})
	require.NoError(t, err)
	require.Empty(t, server.submissions)
}

func TestUpdateIgnorableFieldAbsent(t *testing.T) {
	server := newUpdateServer()
	srv := server.start(t)
	client := newTestClient(t, srv.URL, "tester")

	// the edit page carries no groups checkbox, but groups is one of the
	// fields that may legitimately be missing
	err := client.UpdateBug(context.Background(), 100, UpdateOptions{
		Fields: map[string]string{"groups": "private"},
	})
	require.NoError(t, err)

	form := server.submitted(t)
	require.NotContains(t, form, "groups")
}

func TestUpdateUnknownField(t *testing.T) {
	server := newUpdateServer()
	srv := server.start(t)
	client := newTestClient(t, srv.URL, "tester")

	err := client.UpdateBug(context.Background(), 100, UpdateOptions{
		Fields: map[string]string{"no_such_field": "x"},
	})
	require.ErrorIs(t, err, ErrUpdate)
	require.ErrorContains(t, err, "no field no_such_field")
	require.Empty(t, server.submissions)
}

func TestUpdateNoChanges(t *testing.T) {
	server := newUpdateServer()
	srv := server.start(t)
	client := newTestClient(t, srv.URL, "tester")

	require.NoError(t, client.UpdateBug(context.Background(), 100, UpdateOptions{}))
	require.Empty(t, server.submissions)
}

func TestUpdateReadonly(t *testing.T) {
	server := newUpdateServer()
	srv := server.start(t)
	client := newTestClient(t, srv.URL, "tester", func(o *ClientOptions) {
		o.ForceReadonly = true
	})

	err := client.UpdateBug(context.Background(), 100, UpdateOptions{
		Fields: map[string]string{"short_desc": "New summary"},
	})
	require.NoError(t, err)
	require.Empty(t, server.submissions, "read-only clients never submit")
}

func TestUpdateCallback(t *testing.T) {
	server := newUpdateServer()
	srv := server.start(t)
	client := newTestClient(t, srv.URL, "tester")

	err := client.UpdateBug(context.Background(), 100, UpdateOptions{
		Callback: func(form *Form) bool {
			require.NoError(t, form.Set("comment", "ping from tests"))
			return true
		},
	})
	require.NoError(t, err)
	require.Equal(t, "ping from tests", server.submitted(t).Get("comment"))
}

func TestUpdateCallbackNoChange(t *testing.T) {
	server := newUpdateServer()
	srv := server.start(t)
	client := newTestClient(t, srv.URL, "tester")

	err := client.UpdateBug(context.Background(), 100, UpdateOptions{
		Callback: func(form *Form) bool { return false },
	})
	require.NoError(t, err)
	require.Empty(t, server.submissions)
}

func TestUpdateMidAirCollision(t *testing.T) {
	server := newUpdateServer()
	server.response = `<html><body><h1>Mid-air collision!</h1></body></html>`
	srv := server.start(t)
	client := newTestClient(t, srv.URL, "tester")

	err := client.UpdateBug(context.Background(), 100, UpdateOptions{
		Fields: map[string]string{"short_desc": "New summary"},
	})
	require.ErrorIs(t, err, ErrUpdate)
	require.ErrorContains(t, err, "Mid-air collision!")
}

func TestUpdateInvalidToken(t *testing.T) {
	server := newUpdateServer()
	server.response = `<html><body><a href="index.cgi?reason=invalid_token">try again</a></body></html>`
	srv := server.start(t)
	client := newTestClient(t, srv.URL, "tester")

	err := client.UpdateBug(context.Background(), 100, UpdateOptions{
		Fields: map[string]string{"short_desc": "New summary"},
	})
	require.ErrorIs(t, err, ErrUpdate)
	require.ErrorContains(t, err, "Suspicious Action")
}

func TestUpdateUnknownResponse(t *testing.T) {
	server := newUpdateServer()
	server.response = `<html><body>nothing to see here</body></html>`
	srv := server.start(t)
	client := newTestClient(t, srv.URL, "tester")

	err := client.UpdateBug(context.Background(), 100, UpdateOptions{
		Fields: map[string]string{"short_desc": "New summary"},
	})
	require.ErrorIs(t, err, ErrUpdate)
	require.ErrorContains(t, err, "unknown error")
}

func TestUpdateAnonymous(t *testing.T) {
	server := newUpdateServer()
	srv := server.start(t)
	client := newTestClient(t, srv.URL, "")

	err := client.UpdateBug(context.Background(), 100, UpdateOptions{
		Fields: map[string]string{"short_desc": "New summary"},
	})
	require.ErrorIs(t, err, ErrUpdate)
	require.ErrorContains(t, err, "anonymous")
}

func TestUpdateNotAuthorized(t *testing.T) {
	server := newUpdateServer()
	server.editPage = `<html><body>You are not authorized to access bug #100.</body></html>`
	srv := server.start(t)
	client := newTestClient(t, srv.URL, "tester")

	err := client.UpdateBug(context.Background(), 100, UpdateOptions{
		Fields: map[string]string{"short_desc": "New summary"},
	})
	require.ErrorIs(t, err, ErrNotPermitted)
}

func TestUpdateMissingEditForm(t *testing.T) {
	server := newUpdateServer()
	server.editPage = `<html><body>maintenance page, no form</body></html>`
	srv := server.start(t)
	client := newTestClient(t, srv.URL, "tester")

	err := client.UpdateBug(context.Background(), 100, UpdateOptions{
		Fields: map[string]string{"short_desc": "New summary"},
	})
	require.ErrorIs(t, err, ErrUpdate)
}
