// Package domain contains core concepts of the relay.
// This file defines the Message value and its admission rules.
// Messages are immutable once admitted.
package domain

// Message is a producer-submitted chat event. The producer assigns the ID,
// which doubles as the de-duplication key across retries and replays.
// Timestamp comes from the producer clock and is not trusted to be monotonic
// across producers; it orders display and catch-up only.
type Message struct {
	ID        string `json:"id" validate:"required"`
	RoomID    string `json:"roomId" validate:"required"`
	Author    string `json:"author"`
	Content   string `json:"content" validate:"required"`
	Timestamp int64  `json:"timestamp" validate:"gte=0"`
}
