package sink

import (
	"chat-relay/domain/event"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// NatsPublisher mirrors locally admitted messages onto the pub/sub
// substrate so sibling relay processes can fan them out to their own
// subscribers. It is registered as a permanent sink.
type NatsPublisher struct {
	conn          *nats.Conn
	subjectPrefix string
	log           *slog.Logger
}

func NewNatsPublisher(conn *nats.Conn, subjectPrefix string, log *slog.Logger) *NatsPublisher {
	return &NatsPublisher{conn: conn, subjectPrefix: subjectPrefix, log: log}
}

func (s *NatsPublisher) Consume(_ context.Context, e event.MessageAdmitted) error {
	if e.Remote {
		// Came in from the substrate; publishing it back would echo between
		// relays forever.
		return nil
	}
	payload, err := json.Marshal(e.Message)
	if err != nil {
		return err
	}
	return s.conn.Publish(fmt.Sprintf("%s.%s", s.subjectPrefix, e.RoomID()), payload)
}
