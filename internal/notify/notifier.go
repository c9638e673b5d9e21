// Package notify sends availability alerts and rate-limited error notifications.
//
// Two message paths share one Sender:
//
//	Alert        one message per check cycle listing every availability event
//	NotifyError  an error report, at most one per cooldown window across all error sources
//
// Neither path returns an error. A failed send is logged and reported as false so
// that notification failures never feed back into the error path.
package notify

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/owenriverk/recgov-permit-checker/internal/logger"
	"github.com/owenriverk/recgov-permit-checker/internal/models"
)

const timestampLayout = "2006-01-02 15:04:05"

// Message is a channel-independent notification.
type Message struct {
	Subject    string
	Body       string
	Recipients []string
}

// Sender delivers a Message over one or more channels.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Severity marks how urgent an error notification is.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

// subjectPrefix returns the marker placed in front of an error subject.
func (s Severity) subjectPrefix() string {
	switch s {
	case SeverityError:
		return "🔴 CRITICAL"
	case SeverityWarning:
		return "🟠 WARNING"
	default:
		return "🔵 INFO"
	}
}

// StackTracer is implemented by errors that carry the stack they were raised on.
type StackTracer interface {
	Stack() []byte
}

// Notifier formats and sends alerts and error notifications.
type Notifier struct {
	sender          Sender
	alertRecipients []string
	errorRecipients []string
	cooldown        *Cooldown
	now             func() time.Time
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithClock sets the clock used for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(n *Notifier) {
		if now != nil {
			n.now = now
		}
	}
}

// New creates a Notifier. A nil sender disables delivery; a nil cooldown gets a
// fresh one on the wall clock.
func New(sender Sender, alertRecipients, errorRecipients []string, cooldown *Cooldown, opts ...Option) *Notifier {
	if cooldown == nil {
		cooldown = NewCooldown(nil)
	}
	n := &Notifier{
		sender:          sender,
		alertRecipients: alertRecipients,
		errorRecipients: errorRecipients,
		cooldown:        cooldown,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Alert sends one message for all events found in a cycle. It returns false
// without sending when events is empty.
func (n *Notifier) Alert(ctx context.Context, events []models.AvailabilityEvent) bool {
	if len(events) == 0 {
		return false
	}
	if n.sender == nil {
		logger.Warn("Notifications disabled, not sending alert for %d permits", len(events))
		return false
	}

	msg := Message{
		Subject:    fmt.Sprintf("River Permit Alert! (%d permits found)", len(events)),
		Body:       formatAlertBody(events, n.now()),
		Recipients: n.alertRecipients,
	}

	if err := n.sender.Send(ctx, msg); err != nil {
		logger.Error("Failed to send email alert: %v", err)
		return false
	}

	logger.Info("Successfully sent alert email for %d permits", len(events))
	return true
}

// NotifyError sends an error report unless one was sent less than cooldown ago.
// An empty message uses a generic description.
func (n *Notifier) NotifyError(ctx context.Context, err error, message string, severity Severity, cooldown time.Duration) bool {
	if elapsed, ok := n.cooldown.Allow(cooldown); !ok {
		logger.Info("Skipping error notification - last one sent %.1f minutes ago (cooldown: %.0f min)",
			elapsed.Minutes(), cooldown.Minutes())
		return false
	}
	if n.sender == nil {
		logger.Warn("Notifications disabled, not sending error notification: %v", err)
		return false
	}

	if message == "" {
		message = "An error occurred in the permit checker"
	}

	msg := Message{
		Subject:    severity.subjectPrefix() + " Permit Checker Alert",
		Body:       formatErrorBody(err, message, stackOf(err), n.now()),
		Recipients: n.errorRecipients,
	}

	if sendErr := n.sender.Send(ctx, msg); sendErr != nil {
		logger.Error("Failed to send error notification: %v", sendErr)
		return false
	}

	n.cooldown.MarkSent()
	logger.Info("Successfully sent error notification email")
	return true
}

func formatAlertBody(events []models.AvailabilityEvent, sentAt time.Time) string {
	var b strings.Builder
	b.WriteString("Permit cancellations found!\n\n")
	for _, e := range events {
		b.WriteString("- ")
		b.WriteString(e.String())
		b.WriteString("\n")
	}
	b.WriteString("\n\nSent: ")
	b.WriteString(sentAt.Format(timestampLayout))
	return b.String()
}

func formatErrorBody(err error, message string, stack []byte, at time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", message)
	fmt.Fprintf(&b, "Error Type: %s\n", errorType(err))
	fmt.Fprintf(&b, "Error Message: %v\n\n", err)
	fmt.Fprintf(&b, "Stack:\n%s\n\n", stack)
	fmt.Fprintf(&b, "Time: %s", at.Format(timestampLayout))
	return b.String()
}

// errorType names the innermost error type, which is more useful than
// *fmt.wrapError.
func errorType(err error) string {
	if err == nil {
		return "<nil>"
	}
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return fmt.Sprintf("%T", err)
		}
		err = next
	}
}

func stackOf(err error) []byte {
	var st StackTracer
	if errors.As(err, &st) {
		return st.Stack()
	}
	return debug.Stack()
}
