package bugzilla

import (
	"errors"
	"fmt"
)

// Kind classifies every failure the client can produce. Callers branch on
// kind (via errors.Is against the Err* sentinels) rather than on concrete
// types.
type Kind int

const (
	// KindGeneric covers malformed server output with no better category.
	KindGeneric Kind = iota
	// KindNotPermitted is a per-bug access denial.
	KindNotPermitted
	// KindNotFound means the bug does not exist.
	KindNotFound
	// KindInvalidBugID means the requested id was rejected by the server.
	KindInvalidBugID
	// KindConnection covers transport and protocol level failures.
	KindConnection
	// KindLoginFailed is a connection-kind failure of the login flow.
	KindLoginFailed
	// KindUpdate is a connection-kind failure while updating a bug.
	KindUpdate
	// KindListTooLarge means a search result set overflowed.
	KindListTooLarge
)

func (k Kind) String() string {
	switch k {
	case KindNotPermitted:
		return "access not permitted"
	case KindNotFound:
		return "bug was not found"
	case KindInvalidBugID:
		return "bug id is invalid"
	case KindConnection:
		return "connection error"
	case KindLoginFailed:
		return "login failed"
	case KindUpdate:
		return "error while updating bug"
	case KindListTooLarge:
		return "search returned too many entries"
	}
	return "bugzilla error"
}

// Error is the single error type of the package: a kind, a human-readable
// message and, for per-bug failures, the bug id it concerns.
type Error struct {
	Kind    Kind
	Message string
	BugID   string
}

func (e *Error) Error() string {
	if e.BugID != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.BugID)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches on kind. Login and update failures additionally match
// ErrConnection since they are transport-level conditions.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == e.Kind {
		return true
	}
	if t.Kind == KindConnection {
		return e.Kind == KindLoginFailed || e.Kind == KindUpdate
	}
	return false
}

// Sentinels for errors.Is matching.
var (
	ErrGeneric      = &Error{Kind: KindGeneric}
	ErrNotPermitted = &Error{Kind: KindNotPermitted}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrInvalidBugID = &Error{Kind: KindInvalidBugID}
	ErrConnection   = &Error{Kind: KindConnection}
	ErrLoginFailed  = &Error{Kind: KindLoginFailed}
	ErrUpdate       = &Error{Kind: KindUpdate}
	ErrListTooLarge = &Error{Kind: KindListTooLarge}
)

func newError(kind Kind, message, bugID string) *Error {
	return &Error{Kind: kind, Message: message, BugID: bugID}
}

func loginFailedErr(format string, args ...any) *Error {
	return newError(KindLoginFailed, fmt.Sprintf(format, args...), "")
}

func updateErr(format string, args ...any) *Error {
	return newError(KindUpdate, fmt.Sprintf(format, args...), "")
}

// ErrorKind extracts the kind of err, or KindGeneric and false when err is
// not a bugzilla error.
func ErrorKind(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return KindGeneric, false
}
