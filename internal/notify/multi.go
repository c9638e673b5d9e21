package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/owenriverk/recgov-permit-checker/internal/logger"
)

// NamedSender pairs a Sender with a name for logging.
type NamedSender struct {
	Name   string
	Sender Sender
}

// MultiSender fans a message out to every channel. It succeeds when at least
// one channel delivered; individual channel failures are logged.
type MultiSender struct {
	channels []NamedSender
}

// NewMultiSender creates a MultiSender over channels, skipping nil senders.
func NewMultiSender(channels ...NamedSender) *MultiSender {
	var active []NamedSender
	for _, ch := range channels {
		if ch.Sender != nil {
			active = append(active, ch)
		}
	}
	return &MultiSender{channels: active}
}

// Len returns the number of active channels.
func (m *MultiSender) Len() int {
	return len(m.channels)
}

// Send delivers msg on every channel.
func (m *MultiSender) Send(ctx context.Context, msg Message) error {
	if len(m.channels) == 0 {
		return errors.New("no notification channels configured")
	}

	var errs []error
	delivered := 0
	for _, ch := range m.channels {
		if err := ch.Sender.Send(ctx, msg); err != nil {
			logger.Warn("Notification channel %s failed: %v", ch.Name, err)
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name, err))
			continue
		}
		delivered++
	}

	if delivered == 0 {
		return errors.Join(errs...)
	}
	return nil
}
