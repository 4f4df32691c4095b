package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	apperrors "chat-relay/errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
)

// AdmissionGate is the single choke point every inbound message passes
// before it can be stored or broadcast. It rejects malformed input and
// collapses duplicate ids into the first admission, so the store and the
// fan-out path never observe the same id twice.
type AdmissionGate struct {
	repository contract.IMessageRepository
	validate   *validator.Validate
	log        *slog.Logger
}

func NewAdmissionGate(repository contract.IMessageRepository, log *slog.Logger) *AdmissionGate {
	return &AdmissionGate{
		repository: repository,
		validate:   validator.New(),
		log:        log,
	}
}

// Admit validates and persists a candidate message. admitted=false with a
// nil error is the defined idempotent-retry outcome for a duplicate id; the
// caller must skip broadcast but still report success to the producer.
// The gate never reorders messages, it only rejects or merges them.
func (g *AdmissionGate) Admit(msg domain.Message) (bool, error) {
	if err := g.validate.Struct(msg); err != nil {
		return false, fmt.Errorf("%w: %v", apperrors.ErrInvalidMessage, err)
	}
	admitted, err := g.repository.Append(msg)
	if err != nil {
		return false, err
	}
	if !admitted {
		g.log.Debug("duplicate submission short-circuited", "message_id", msg.ID, "room_id", msg.RoomID)
	}
	return admitted, nil
}
