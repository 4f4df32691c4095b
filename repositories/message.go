package repositories

import (
	"chat-relay/contract"
	"chat-relay/domain"
	apperrors "chat-relay/errors"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

const (
	// Messages live under "msg:{room}:{padded timestamp}:{padded seq}".
	// The 19-digit timestamp padding makes lexicographic key order equal
	// timestamp order inside a room; the store-assigned admission sequence
	// breaks ties between messages stamped at the same instant.
	msgKeyFormat = "msg:%s:%019d:%020d"

	// One index entry per message id, across all rooms. Its presence is
	// what makes Append idempotent.
	dupKeyFormat = "dup:%s"

	// DefaultPageSize and MaxPageSize bound every history read.
	DefaultPageSize = 50
	MaxPageSize     = 200
)

var errDuplicateID = errors.New("duplicate message id")

type MessageRepository struct {
	db  *badger.DB
	seq *badger.Sequence
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) (*MessageRepository, error) {
	// The sequence numbers admissions across all rooms. Gaps after a crash
	// or a conflict retry are harmless; only relative order matters.
	seq, err := db.GetSequence([]byte("seq:admission"), 128)
	if err != nil {
		return nil, fmt.Errorf("admission sequence: %w", err)
	}
	return &MessageRepository{db: db, seq: seq, log: log}, nil
}

// Close releases the unused tail of the admission sequence. Call it before
// closing the database.
func (m *MessageRepository) Close() error {
	return m.seq.Release()
}

// Append durably records a message unless its id was admitted before.
// It reports admitted=false for a duplicate without touching stored order
// or content: a producer resending after a timeout observes success, and
// two producers racing the same id resolve to exactly one admission.
//
// Atomicity relies on Badger transaction conflict detection: the read of
// the dup index key is tracked, so a concurrent commit for the same id
// fails this transaction with ErrConflict and the retry observes the
// winner's index entry.
func (m *MessageRepository) Append(message domain.Message) (bool, error) {
	payload, err := json.Marshal(message)
	if err != nil {
		return false, err
	}
	dupKey := []byte(fmt.Sprintf(dupKeyFormat, message.ID))

	for {
		err := m.db.Update(func(txn *badger.Txn) error {
			_, err := txn.Get(dupKey)
			if err == nil {
				return errDuplicateID
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			seq, err := m.seq.Next()
			if err != nil {
				return err
			}
			msgKey := []byte(fmt.Sprintf(msgKeyFormat, message.RoomID, message.Timestamp, seq))
			if err := txn.Set(msgKey, payload); err != nil {
				return err
			}
			return txn.Set(dupKey, msgKey)
		})
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, errDuplicateID):
			m.log.Debug("duplicate admission ignored", "message_id", message.ID, "room_id", message.RoomID)
			return false, nil
		case errors.Is(err, badger.ErrConflict):
			// Lost a race on this id; re-run to see the committed winner.
			continue
		default:
			return false, fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, err)
		}
	}
}

// Query returns at most limit messages for a room, the most recent ones
// when no cursor is given, ordered ascending by timestamp with ties broken
// by admission order. The returned cursor resumes the backward scan on the
// next page. A non-positive limit falls back to DefaultPageSize; anything
// above MaxPageSize is capped.
func (m *MessageRepository) Query(roomID string, opts contract.QueryOptions) ([]domain.Message, *string, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	var rawMessages [][]byte
	var lastKey string
	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("msg:%s:", roomID)
		prefix := []byte(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the newest possible timestamp, then walk backwards.
		// Any int64 timestamp pads to 19 digits, so 19 nines sort after
		// every real key of the room.
		seekKey := append(prefix, []byte("9999999999999999999")...)
		if opts.Cursor != nil {
			seekKey = append(prefix, []byte(*opts.Cursor)...)
		}
		it.Seek(seekKey)

		if opts.Cursor != nil && it.ValidForPrefix(prefix) {
			// The cursor names the last key of the previous page.
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if len(rawMessages) == limit {
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefixStr):])
			err := item.Value(func(value []byte) error {
				rawMessages = append(rawMessages, append([]byte(nil), value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, err)
	}

	// The backward scan collected newest first; flip to display order.
	messages := make([]domain.Message, 0, len(rawMessages))
	for i := len(rawMessages) - 1; i >= 0; i-- {
		var message domain.Message
		if err := json.Unmarshal(rawMessages[i], &message); err != nil {
			return nil, nil, err
		}
		messages = append(messages, message)
	}
	if lastKey == "" {
		return messages, nil, nil
	}
	return messages, &lastKey, nil
}
