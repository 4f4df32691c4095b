package workers

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

var _ contract.Worker = (*NatsIngest)(nil)

// NatsIngest bridges the pub/sub substrate into the local admission gate.
// Messages published by sibling relay processes on "<prefix>.*" go through
// the same gate as local submissions, so the dedup index also absorbs the
// echo of our own publications.
type NatsIngest struct {
	log      *slog.Logger
	conn     *nats.Conn
	subject  string
	ingestor contract.Ingestor
	buffer   int
}

func NewNatsIngest(log *slog.Logger, conn *nats.Conn, subjectPrefix string,
	ingestor contract.Ingestor, buffer int) *NatsIngest {
	return &NatsIngest{
		log:      log,
		conn:     conn,
		subject:  subjectPrefix + ".*",
		ingestor: ingestor,
		buffer:   buffer,
	}
}

func (w *NatsIngest) Run(ctx context.Context) error {
	inbox := make(chan *nats.Msg, w.buffer)
	sub, err := w.conn.ChanSubscribe(w.subject, inbox)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", w.subject, err)
	}
	defer func() {
		_ = sub.Unsubscribe()
	}()

	w.log.Info("listening on pub/sub substrate", "subject", w.subject)
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping ingest")
			return nil
		case m := <-inbox:
			var msg domain.Message
			if err := json.Unmarshal(m.Data, &msg); err != nil {
				w.log.Warn("discarding undecodable payload", "subject", m.Subject, "error", err)
				continue
			}
			if err := w.ingestor.Ingest(ctx, msg); err != nil {
				// Malformed or storage-rejected remote traffic is logged and
				// skipped; there is no producer to answer on this path.
				w.log.Error("remote message not admitted", "message_id", msg.ID, "error", err)
			}
		}
	}
}
