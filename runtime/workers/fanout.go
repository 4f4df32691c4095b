package workers

import (
	"chat-relay/contract"
	"chat-relay/domain/event"
	"context"
	"log/slog"
	"time"
)

var _ contract.Worker = (*Fanout)(nil)

// Fanout drains admitted messages and pushes each one to a snapshot of the
// room's subscribers plus the permanent sinks. Delivery is best effort: a
// push is bounded by sinkTimeout, failures cost that one subscriber its
// subscription, and nothing here retries. Recovery is the consumer's
// catch-up query, which is why a fresh snapshot per message is enough.
type Fanout struct {
	log            *slog.Logger
	registry       contract.IRegistry
	permanentSinks []contract.PushSink
	events         chan event.MessageAdmitted
	sinkTimeout    time.Duration
}

func NewFanout(log *slog.Logger, registry contract.IRegistry,
	permanentSinks []contract.PushSink, events chan event.MessageAdmitted,
	sinkTimeout time.Duration) *Fanout {
	return &Fanout{
		log:            log,
		registry:       registry,
		permanentSinks: permanentSinks,
		events:         events,
		sinkTimeout:    sinkTimeout,
	}
}

func (w *Fanout) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping fanout")
			return nil
		case evt, ok := <-w.events:
			if !ok {
				return nil
			}
			w.Broadcast(ctx, evt)
		}
	}
}

// Broadcast delivers one admitted message. Every push is independent: a
// slow or dead subscriber delays nobody else and is scheduled for removal
// instead of being retried. Permanent sinks are process-level collaborators
// (the pub/sub mirror, projections) and are only logged on failure.
func (w *Fanout) Broadcast(ctx context.Context, evt event.MessageAdmitted) {
	for _, sink := range w.permanentSinks {
		if err := w.push(ctx, sink, evt); err != nil {
			w.log.Error("permanent sink rejected event",
				"room_id", evt.RoomID(), "message_id", evt.Message.ID, "error", err)
		}
	}

	for _, roomSink := range w.registry.Snapshot(evt.RoomID()) {
		if err := w.push(ctx, roomSink.Sink, evt); err != nil {
			w.log.Warn("dropping unreachable subscriber",
				"room_id", evt.RoomID(), "handle", roomSink.Handle, "error", err)
			w.registry.Unsubscribe(evt.RoomID(), roomSink.Handle)
		}
	}
}

func (w *Fanout) push(ctx context.Context, sink contract.PushSink, evt event.MessageAdmitted) error {
	pushCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
	defer cancel()
	return sink.Consume(pushCtx, evt)
}
