// Package runtime wires admission, fan-out, and subscription lifecycle.
// It orchestrates the relay without containing storage or transport logic.
package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/runtime/workers"
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type Orchestrator struct {
	log            *slog.Logger
	gate           *AdmissionGate
	registry       contract.IRegistry
	supervisor     contract.ISupervisor
	events         chan event.MessageAdmitted
	permanentSinks []contract.PushSink
	sinkTimeout    time.Duration
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor,
	registry contract.IRegistry, repository contract.IMessageRepository,
	bufferSize int, sinkTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		log:         log,
		gate:        NewAdmissionGate(repository, log),
		registry:    registry,
		supervisor:  supervisor,
		events:      make(chan event.MessageAdmitted, bufferSize),
		sinkTimeout: sinkTimeout,
	}
}

// Add registers permanent sinks that observe every admitted message in
// every room, on top of the per-room subscriber sets. Call it before Start.
func (o *Orchestrator) Add(sinks ...contract.PushSink) {
	o.permanentSinks = append(o.permanentSinks, sinks...)
}

// Submit runs the local ingestion path: gate, then fan-out dispatch.
// A duplicate id returns nil so a retrying producer observes plain success.
func (o *Orchestrator) Submit(ctx context.Context, msg domain.Message) error {
	return o.admit(ctx, msg, false)
}

// Ingest admits a message that arrived over the pub/sub substrate from a
// sibling relay. It shares Submit's gate, so remote and local duplicates
// collapse together, but the admitted event is marked remote and will not
// be published back to the substrate.
func (o *Orchestrator) Ingest(ctx context.Context, msg domain.Message) error {
	return o.admit(ctx, msg, true)
}

func (o *Orchestrator) admit(_ context.Context, msg domain.Message, remote bool) error {
	admitted, err := o.gate.Admit(msg)
	if err != nil {
		return err
	}
	if !admitted {
		return nil
	}
	// The message is durable at this point; only now may subscribers see it.
	o.dispatch(event.MessageAdmitted{Message: msg, Remote: remote})
	return nil
}

// dispatch hands an admitted event to the fan-out worker without ever
// blocking the ingestion path. A full queue costs the live delivery only;
// subscribers recover through catch-up.
func (o *Orchestrator) dispatch(evt event.MessageAdmitted) {
	select {
	case o.events <- evt:
	default:
		o.log.Warn("fanout queue full, dropping live delivery",
			"room_id", evt.RoomID(), "message_id", evt.Message.ID)
	}
}

func (o *Orchestrator) JoinRoom(roomID string, sink contract.PushSink) uuid.UUID {
	return o.registry.Subscribe(roomID, sink)
}

func (o *Orchestrator) LeaveRoom(roomID string, handle uuid.UUID) {
	o.registry.Unsubscribe(roomID, handle)
}

// Start launches the supervised workers: the fan-out worker plus whatever
// extras the deployment needs (the NATS ingest bridge, typically). It
// blocks until the context is canceled or Stop is called.
func (o *Orchestrator) Start(ctx context.Context, extra ...contract.Worker) error {
	fanout := workers.NewFanout(o.log, o.registry, o.permanentSinks, o.events, o.sinkTimeout)

	o.supervisor.Add(fanout)
	for _, w := range extra {
		o.supervisor.Add(w)
	}

	o.log.Info("starting relay runtime")
	o.supervisor.Run(ctx)
	return nil
}

// Stop cancels the supervision context and lets workers drain.
func (o *Orchestrator) Stop() {
	o.log.Info("requesting relay shutdown")
	o.supervisor.Stop()
}
