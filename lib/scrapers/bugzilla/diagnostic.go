package bugzilla

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jordan-wright/email"
)

// DiagnosticSink receives reports about responses that could not be parsed
// and were leniently treated as empty, so operators can spot a misbehaving
// server behind quietly empty results.
type DiagnosticSink interface {
	ReportParseError(ctx context.Context, bugid, data string)
}

// SlogSink logs parse failures through the default logger.
type SlogSink struct{}

func (SlogSink) ReportParseError(ctx context.Context, bugid, data string) {
	if strings.HasPrefix(data, "<!DOCTYPE html") {
		slog.ErrorContext(ctx, "got HTML instead of XML from bugzilla", "bug", bugid)
		return
	}
	slog.ErrorContext(
		ctx,
		"failed to parse XML response from bugzilla",
		"bug", bugid,
		"bytes", len(data),
	)
}

// EmailSink mails the offending response to the admin addresses, then
// forwards the report to Next (when set). Delivery problems are logged,
// never raised: a broken mailer must not break a fetch.
type EmailSink struct {
	// Addr is the SMTP host:port.
	Addr   string
	From   string
	Admins []string
	Next   DiagnosticSink
}

func (s EmailSink) ReportParseError(ctx context.Context, bugid, data string) {
	msg := email.NewEmail()
	msg.From = s.From
	msg.To = s.Admins
	msg.Subject = fmt.Sprintf("Error while fetching %s", bugid)
	msg.Text = []byte(fmt.Sprintf("Data:\n\n%s\n", data))
	if err := msg.Send(s.Addr, nil); err != nil {
		slog.ErrorContext(ctx, "failed to mail parse error report", "err", err)
	}
	if s.Next != nil {
		s.Next.ReportParseError(ctx, bugid, data)
	}
}
