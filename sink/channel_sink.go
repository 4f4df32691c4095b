package sink

import (
	"chat-relay/domain/event"
	apperrors "chat-relay/errors"
	"context"
	"fmt"
)

// Channel is the in-process push sink backing one live subscription. The
// subscriber owns and drains Events; the fan-out worker only ever writes.
type Channel struct {
	Events chan event.MessageAdmitted
}

func NewChannel(bufferSize int) *Channel {
	return &Channel{Events: make(chan event.MessageAdmitted, bufferSize)}
}

// Consume hands the event over without waiting for the subscriber. A full
// buffer means the consumer cannot keep up with its live feed: it is
// reported unreachable so the registry evicts it, and it reconciles through
// the backlog on reconnect.
func (s *Channel) Consume(ctx context.Context, e event.MessageAdmitted) error {
	select {
	case s.Events <- e:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", apperrors.ErrSubscriberUnreachable, ctx.Err())
	default:
		return apperrors.ErrSubscriberUnreachable
	}
}
