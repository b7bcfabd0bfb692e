//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chatline/domain"
	"chatline/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// IMessageRepository is the ordered append log of messages per chat.
type IMessageRepository interface {
	Append(chatID uuid.UUID, senderID, body string) (domain.Message, error)
	History(chatID uuid.UUID, beforeSeq *uint64, limit int) ([]domain.Message, error)
	Close() error
}

type MessageRepository struct {
	db           *badger.DB
	chats        IChatRepository
	log          *slog.Logger
	defaultLimit int
	bandwidth    uint64

	// One badger Sequence per chat. Sequence.Next is internally
	// serialized, so appends to the same chat are ordered while
	// different chats never contend on a shared counter.
	mu   sync.Mutex
	seqs map[uuid.UUID]*badger.Sequence
}

func NewMessageRepository(db *badger.DB, chats IChatRepository, log *slog.Logger,
	defaultLimit int, bandwidth uint64) *MessageRepository {
	if bandwidth == 0 {
		bandwidth = 64
	}
	return &MessageRepository{
		db:           db,
		chats:        chats,
		log:          log,
		defaultLimit: defaultLimit,
		bandwidth:    bandwidth,
		seqs:         make(map[uuid.UUID]*badger.Sequence),
	}
}

type diskMessage struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	SenderID  string    `json:"sender_id"`
	Body      string    `json:"body"`
	Seq       uint64    `json:"seq"`
	CreatedAt time.Time `json:"created_at"`
}

// messageKey formats the storage key as "msg:{chat_id}:{seq_padded}" to:
//  1. Ensure per-chat ordering using 20-digit zero padding
//     (lexicographical order matches numeric order).
//  2. Keep prefix scans strictly inside one chat.
func messageKey(chatID uuid.UUID, seq uint64) []byte {
	return []byte(fmt.Sprintf("msg:%s:%020d", chatID, seq))
}

func messagePrefix(chatID uuid.UUID) []byte {
	return []byte(fmt.Sprintf("msg:%s:", chatID))
}

// Append allocates the next sequence key for the chat and durably records
// the message before returning. The membership check happens first: a
// rejected sender never consumes a key.
//
// Keys start at 1. Badger sequences lease a bandwidth of values and an
// abandoned lease after a crash leaves a gap, which readers must tolerate;
// keys are never reused and never go backwards.
func (r *MessageRepository) Append(chatID uuid.UUID, senderID, body string) (domain.Message, error) {
	ok, err := r.chats.IsMember(chatID, senderID)
	if err != nil {
		return domain.Message{}, err
	}
	if !ok {
		return domain.Message{}, errors.ErrNotAMember
	}

	seq, err := r.sequence(chatID)
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrStorageUnavailable, err)
	}
	next, err := seq.Next()
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrStorageUnavailable, err)
	}

	message := domain.Message{
		ID:        uuid.New(),
		ChatID:    chatID,
		SenderID:  senderID,
		Body:      body,
		Seq:       next + 1,
		CreatedAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(fromMessage(message))
	if err != nil {
		return domain.Message{}, err
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(chatID, message.Seq), payload)
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrStorageUnavailable, err)
	}
	return message, nil
}

// History returns up to limit messages with sequence key strictly below
// beforeSeq (or the most recent ones when beforeSeq is nil), newest first.
// Callers paginate by passing the last-seen key back in.
func (r *MessageRepository) History(chatID uuid.UUID, beforeSeq *uint64, limit int) ([]domain.Message, error) {
	if _, err := r.chats.Get(chatID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = r.defaultLimit
	}

	var rawMessages [][]byte
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(chatID)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch beforeSeq {
		case nil:
			// Position past the highest possible key, then walk back.
			seekKey = append(append([]byte{}, prefix...), []byte("99999999999999999999")...)
		default:
			seekKey = messageKey(chatID, *beforeSeq)
		}

		it.Seek(seekKey)

		// The cursor key itself is excluded: history is strictly-before.
		// A cursor pointing into a recovery gap already lands on the
		// next smaller key, nothing to skip then.
		if beforeSeq != nil && it.ValidForPrefix(prefix) && string(it.Item().Key()) == string(seekKey) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if len(rawMessages) == limit {
				r.log.Debug(fmt.Sprintf("History page limit of %d reached", limit))
				break
			}
			err := it.Item().Value(func(value []byte) error {
				rawMessages = append(rawMessages, append([]byte{}, value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrStorageUnavailable, err)
	}

	messages := make([]domain.Message, 0, len(rawMessages))
	for _, raw := range rawMessages {
		var disk diskMessage
		if err = json.Unmarshal(raw, &disk); err != nil {
			return nil, err
		}
		message, err := toMessage(disk)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, nil
}

// Close releases every leased sequence so unshipped reservations are not
// lost on a clean shutdown. Only a crash leaves gaps.
func (r *MessageRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for chatID, seq := range r.seqs {
		if err := seq.Release(); err != nil {
			r.log.Warn("Releasing chat sequence failed", "chat_id", chatID, "error", err)
		}
	}
	r.seqs = make(map[uuid.UUID]*badger.Sequence)
	return nil
}

func (r *MessageRepository) sequence(chatID uuid.UUID) (*badger.Sequence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if seq, ok := r.seqs[chatID]; ok {
		return seq, nil
	}
	seq, err := r.db.GetSequence([]byte("seq:"+chatID.String()), r.bandwidth)
	if err != nil {
		return nil, err
	}
	r.seqs[chatID] = seq
	return seq, nil
}

func fromMessage(message domain.Message) diskMessage {
	return diskMessage{
		ID:        message.ID.String(),
		ChatID:    message.ChatID.String(),
		SenderID:  message.SenderID,
		Body:      message.Body,
		Seq:       message.Seq,
		CreatedAt: message.CreatedAt,
	}
}

func toMessage(disk diskMessage) (domain.Message, error) {
	parsedID, err := uuid.Parse(disk.ID)
	if err != nil {
		return domain.Message{}, err
	}
	parsedChatID, err := uuid.Parse(disk.ChatID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:        parsedID,
		ChatID:    parsedChatID,
		SenderID:  disk.SenderID,
		Body:      disk.Body,
		Seq:       disk.Seq,
		CreatedAt: disk.CreatedAt.UTC(),
	}, nil
}
