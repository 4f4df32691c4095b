package workers

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	apperrors "chat-relay/errors"
	"chat-relay/mocks"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func admittedEvent(roomID string) event.MessageAdmitted {
	return event.MessageAdmitted{
		Message: domain.Message{
			ID:        uuid.NewString(),
			RoomID:    roomID,
			Author:    "alice",
			Content:   "hello",
			Timestamp: 1700000000000,
		},
	}
}

func TestFanout_Broadcast_Reaches_Every_Room_Sink(t *testing.T) {
	req := require.New(t)
	log := slog.Default()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRegistry := mocks.NewMockIRegistry(ctrl)
	sink1 := mocks.NewMockPushSink(ctrl)
	sink2 := mocks.NewMockPushSink(ctrl)

	evt := admittedEvent("general")
	roomSinks := []contract.RoomSink{
		{Handle: uuid.New(), Sink: sink1},
		{Handle: uuid.New(), Sink: sink2},
	}

	// Given two live subscribers in the room
	mockRegistry.EXPECT().Snapshot("general").Return(roomSinks).Times(1)
	sink1.EXPECT().Consume(gomock.Any(), evt).Return(nil).Times(1)
	sink2.EXPECT().Consume(gomock.Any(), evt).Return(nil).Times(1)

	worker := NewFanout(log, mockRegistry, nil, nil, time.Second)

	// When the event is broadcast
	worker.Broadcast(context.Background(), evt)

	// Then both sinks consumed it, which gomock verifies on Finish
	req.True(ctrl.Satisfied())
}

func TestFanout_Unreachable_Subscriber_Is_Evicted(t *testing.T) {
	req := require.New(t)
	log := slog.Default()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRegistry := mocks.NewMockIRegistry(ctrl)
	dead := mocks.NewMockPushSink(ctrl)
	alive := mocks.NewMockPushSink(ctrl)

	evt := admittedEvent("general")
	deadHandle := uuid.New()
	roomSinks := []contract.RoomSink{
		{Handle: deadHandle, Sink: dead},
		{Handle: uuid.New(), Sink: alive},
	}

	mockRegistry.EXPECT().Snapshot("general").Return(roomSinks).Times(1)
	dead.EXPECT().Consume(gomock.Any(), evt).Return(apperrors.ErrSubscriberUnreachable).Times(1)
	alive.EXPECT().Consume(gomock.Any(), evt).Return(nil).Times(1)

	// Then only the failing subscriber is removed
	mockRegistry.EXPECT().Unsubscribe("general", deadHandle).Times(1)

	worker := NewFanout(log, mockRegistry, nil, nil, time.Second)
	worker.Broadcast(context.Background(), evt)

	req.True(ctrl.Satisfied())
}

func TestFanout_Permanent_Sink_Failure_Is_Logged_Not_Evicted(t *testing.T) {
	req := require.New(t)
	log := slog.Default()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRegistry := mocks.NewMockIRegistry(ctrl)
	permanent := mocks.NewMockPushSink(ctrl)

	evt := admittedEvent("general")

	permanent.EXPECT().Consume(gomock.Any(), evt).Return(apperrors.ErrSubscriberUnreachable).Times(1)
	mockRegistry.EXPECT().Snapshot("general").Return(nil).Times(1)
	// No Unsubscribe call: permanent sinks survive their own failures
	mockRegistry.EXPECT().Unsubscribe(gomock.Any(), gomock.Any()).Times(0)

	worker := NewFanout(log, mockRegistry, []contract.PushSink{permanent}, nil, time.Second)
	worker.Broadcast(context.Background(), evt)

	req.True(ctrl.Satisfied())
}

func TestFanout_Push_Is_Bounded_By_Sink_Timeout(t *testing.T) {
	req := require.New(t)
	log := slog.Default()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRegistry := mocks.NewMockIRegistry(ctrl)
	slow := mocks.NewMockPushSink(ctrl)

	evt := admittedEvent("general")
	slowHandle := uuid.New()

	mockRegistry.EXPECT().Snapshot("general").
		Return([]contract.RoomSink{{Handle: slowHandle, Sink: slow}}).Times(1)
	slow.EXPECT().Consume(gomock.Any(), evt).
		DoAndReturn(func(ctx context.Context, e event.MessageAdmitted) error {
			// Block until the per-push deadline cancels us
			<-ctx.Done()
			return ctx.Err()
		}).Times(1)
	mockRegistry.EXPECT().Unsubscribe("general", slowHandle).Times(1)

	worker := NewFanout(log, mockRegistry, nil, nil, 20*time.Millisecond)

	start := time.Now()
	worker.Broadcast(context.Background(), evt)

	// The broadcast returned promptly instead of hanging on the slow sink
	req.Less(time.Since(start), time.Second)
}

func TestFanout_Run_Drains_Events_Until_Cancel(t *testing.T) {
	req := require.New(t)
	log := slog.Default()
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRegistry := mocks.NewMockIRegistry(ctrl)
	sink := mocks.NewMockPushSink(ctrl)

	evt := admittedEvent("general")
	delivered := make(chan struct{})

	mockRegistry.EXPECT().Snapshot("general").
		Return([]contract.RoomSink{{Handle: uuid.New(), Sink: sink}}).Times(1)
	sink.EXPECT().Consume(gomock.Any(), evt).
		DoAndReturn(func(ctx context.Context, e event.MessageAdmitted) error {
			close(delivered)
			return nil
		}).Times(1)

	events := make(chan event.MessageAdmitted, 1)
	worker := NewFanout(log, mockRegistry, nil, events, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		req.NoError(worker.Run(ctx))
		close(done)
	}()

	events <- evt

	select {
	case <-delivered:
	case <-time.After(1 * time.Second):
		req.Fail("queued event was never broadcast")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(1 * time.Second):
		req.Fail("worker did not stop on cancellation")
	}
}
