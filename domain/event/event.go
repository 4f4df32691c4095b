package event

import (
	"chat-relay/domain"
)

// Event is anything the fan-out pipeline can route by room.
type Event interface {
	RoomID() string
}

// MessageAdmitted is emitted once a message is durably recorded and eligible
// for fan-out. Remote marks messages that arrived over the pub/sub
// substrate rather than from a local producer; those are never re-published.
type MessageAdmitted struct {
	Message domain.Message
	Remote  bool
}

func (e MessageAdmitted) RoomID() string {
	return e.Message.RoomID
}
