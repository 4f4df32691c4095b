//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"reflect"

	"github.com/google/uuid"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// PushSink is one live delivery target. Implementations must not block
// longer than the context allows; the fan-out path treats a failed Consume
// as a dead subscriber.
type PushSink interface {
	Consume(ctx context.Context, e event.MessageAdmitted) error
}

// RoomSink pairs a sink with the handle needed to evict it.
type RoomSink struct {
	Handle uuid.UUID
	Sink   PushSink
}

type IRegistry interface {
	Subscribe(roomID string, sink PushSink) uuid.UUID
	Unsubscribe(roomID string, handle uuid.UUID)
	Snapshot(roomID string) []RoomSink
}

// QueryOptions bounds a history read. A nil cursor starts from the most
// recent message; Limit is clamped by the store.
type QueryOptions struct {
	Cursor *string
	Limit  int
}

type IMessageRepository interface {
	Append(message domain.Message) (bool, error)
	Query(roomID string, opts QueryOptions) ([]domain.Message, *string, error)
}

// Ingestor admits messages arriving from other relay processes. It shares
// the local admission gate so remote and local traffic dedup together.
type Ingestor interface {
	Ingest(ctx context.Context, msg domain.Message) error
}
