// Package projection builds bounded, ordered views of stored messages for
// consumers that need to converge with the live stream.
package projection

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/repositories"
)

const (
	DefaultLimit = repositories.DefaultPageSize
	MaxLimit     = repositories.MaxPageSize
)

// Backlog is the catch-up resolver. It is a thin wrapper over the store
// query, but it carries the consistency contract of the whole system: live
// fan-out is allowed to drop messages, so any consumer that just connected
// or reconnected resolves a backlog and merges it with whatever it received
// live, de-duplicating by id and ordering by timestamp. Doing that after
// every gap is what turns best-effort pushes into at-least-once delivery.
type Backlog struct {
	repository contract.IMessageRepository
}

func NewBacklog(repository contract.IMessageRepository) *Backlog {
	return &Backlog{repository: repository}
}

// Resolve returns the room's most recent messages ascending by timestamp,
// bounded by the clamped limit, with a cursor for older pages.
func (b *Backlog) Resolve(roomID string, limit int, cursor *string) ([]domain.Message, *string, error) {
	return b.repository.Query(roomID, contract.QueryOptions{
		Limit:  Clamp(limit),
		Cursor: cursor,
	})
}

// Clamp normalizes a caller-provided limit: non-positive means the default
// page, anything above the hard cap is the hard cap.
func Clamp(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
