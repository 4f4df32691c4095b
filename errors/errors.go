package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidMessage rejects a submission before admission; the producer
	// sees it synchronously and must not retry the same payload.
	ErrInvalidMessage = fmt.Errorf("invalid message")

	// ErrStorageUnavailable means admission or query could not reach the
	// store; the caller cannot assume the message was persisted.
	ErrStorageUnavailable = fmt.Errorf("storage unavailable")

	// ErrSubscriberUnreachable never leaves the fan-out path. It flags a
	// subscriber whose push channel is full or closed so the registry can
	// drop it; the missed messages are recovered through catch-up.
	ErrSubscriberUnreachable = fmt.Errorf("subscriber unreachable")

	ErrWorkerPanic = fmt.Errorf("worker panic")
)

// MapToHTTPStatus translates ingestion-path errors at the transport edge.
// Delivery-path errors are contained inside the broadcaster and never reach
// here.
func MapToHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidMessage):
		return http.StatusBadRequest
	case errors.Is(err, ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
