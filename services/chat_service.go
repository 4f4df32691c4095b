package services

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/projection"
	"chat-relay/runtime"
	"context"

	"github.com/google/uuid"
)

type IChatService interface {
	Submit(ctx context.Context, msg domain.Message) error
	History(roomID string, limit int, cursor *string) ([]domain.Message, *string, error)
	JoinRoom(roomID string, sink contract.PushSink) uuid.UUID
	LeaveRoom(roomID string, handle uuid.UUID)
}

// ChatService is the facade the transport layer talks to. Ingestion and
// subscriptions go through the orchestrator; history goes through the
// catch-up resolver.
type ChatService struct {
	orchestrator *runtime.Orchestrator
	backlog      *projection.Backlog
}

func NewChatService(orchestrator *runtime.Orchestrator, backlog *projection.Backlog) *ChatService {
	return &ChatService{orchestrator: orchestrator, backlog: backlog}
}

func (s *ChatService) Submit(ctx context.Context, msg domain.Message) error {
	return s.orchestrator.Submit(ctx, msg)
}

func (s *ChatService) History(roomID string, limit int, cursor *string) ([]domain.Message, *string, error) {
	return s.backlog.Resolve(roomID, limit, cursor)
}

func (s *ChatService) JoinRoom(roomID string, sink contract.PushSink) uuid.UUID {
	return s.orchestrator.JoinRoom(roomID, sink)
}

func (s *ChatService) LeaveRoom(roomID string, handle uuid.UUID) {
	s.orchestrator.LeaveRoom(roomID, handle)
}
