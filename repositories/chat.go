//go:generate go run go.uber.org/mock/mockgen -source=chat.go -destination=../mocks/mock_chat_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"chatline/domain"
	"chatline/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// IChatRepository is the membership index: it owns chat records and their
// member sets. Reads reflect the most recently completed write in-process.
type IChatRepository interface {
	CreatePersonal(user1ID, user2ID string) (domain.Chat, error)
	CreateGroup(name, creatorID string) (domain.Chat, error)
	Get(chatID uuid.UUID) (domain.Chat, error)
	IsMember(chatID uuid.UUID, userID string) (bool, error)
	MembersOf(chatID uuid.UUID) ([]string, error)
	AddMember(chatID uuid.UUID, userID string) error
	RemoveMember(chatID uuid.UUID, userID string) error
}

type ChatRepository struct {
	db  *badger.DB
	log *slog.Logger

	// Serializes membership read-modify-write cycles. Chat mutations are
	// rare compared to appends, a single mutex is enough here.
	mu sync.Mutex
}

func NewChatRepository(db *badger.DB, log *slog.Logger) *ChatRepository {
	return &ChatRepository{db: db, log: log}
}

type diskChat struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Name      string    `json:"name"`
	CreatorID string    `json:"creator_id"`
	Members   []string  `json:"members"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func chatKey(chatID uuid.UUID) []byte {
	return []byte("chat:" + chatID.String())
}

// personalPairKey indexes the two members of a personal chat in a
// stable order so a duplicate chat between the same pair is detected
// regardless of who creates it.
func personalPairKey(user1ID, user2ID string) []byte {
	pair := []string{user1ID, user2ID}
	sort.Strings(pair)
	return []byte(fmt.Sprintf("personal:%s:%s", pair[0], pair[1]))
}

// CreatePersonal creates a two-member chat with frozen membership.
// A second personal chat between the same users fails with ErrChatAlreadyExists.
func (r *ChatRepository) CreatePersonal(user1ID, user2ID string) (domain.Chat, error) {
	if user1ID == user2ID {
		return domain.Chat{}, fmt.Errorf("%w: personal chat needs two distinct users", errors.ErrInvalidOperation)
	}

	chat := domain.Chat{
		ID:        uuid.New(),
		Kind:      domain.ChatPersonal,
		Members:   []string{user1ID, user2ID},
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.db.Update(func(txn *badger.Txn) error {
		pairKey := personalPairKey(user1ID, user2ID)
		if _, err := txn.Get(pairKey); err == nil {
			return errors.ErrChatAlreadyExists
		} else if !stderrors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		payload, err := json.Marshal(fromChat(chat))
		if err != nil {
			return err
		}
		if err := txn.Set(chatKey(chat.ID), payload); err != nil {
			return err
		}
		return txn.Set(pairKey, []byte(chat.ID.String()))
	})
	if err != nil {
		return domain.Chat{}, wrapStorage(err)
	}
	return chat, nil
}

// CreateGroup creates a group chat whose creator is the initial member.
func (r *ChatRepository) CreateGroup(name, creatorID string) (domain.Chat, error) {
	chat := domain.Chat{
		ID:        uuid.New(),
		Kind:      domain.ChatGroup,
		Name:      name,
		CreatorID: creatorID,
		Members:   []string{creatorID},
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.save(chat); err != nil {
		return domain.Chat{}, err
	}
	return chat, nil
}

func (r *ChatRepository) Get(chatID uuid.UUID) (domain.Chat, error) {
	var disk diskChat
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(chatKey(chatID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &disk)
		})
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Chat{}, errors.ErrChatNotFound
	}
	if err != nil {
		return domain.Chat{}, wrapStorage(err)
	}
	return toChat(disk)
}

// IsMember reports whether userID can currently act inside the chat.
// All memberships of an inactive group are gone, so it reports false
// for everyone once the last member has left.
func (r *ChatRepository) IsMember(chatID uuid.UUID, userID string) (bool, error) {
	chat, err := r.Get(chatID)
	if err != nil {
		return false, err
	}
	return chat.Active && chat.HasMember(userID), nil
}

func (r *ChatRepository) MembersOf(chatID uuid.UUID) ([]string, error) {
	chat, err := r.Get(chatID)
	if err != nil {
		return nil, err
	}
	return chat.Members, nil
}

// AddMember grows a group. Personal chats are frozen at creation, so any
// membership mutation on them fails with ErrInvalidOperation.
func (r *ChatRepository) AddMember(chatID uuid.UUID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	chat, err := r.Get(chatID)
	if err != nil {
		return err
	}
	if chat.Kind != domain.ChatGroup || !chat.Active {
		return errors.ErrInvalidOperation
	}
	if chat.HasMember(userID) {
		return errors.ErrAlreadyMember
	}
	chat.Members = append(chat.Members, userID)
	return r.save(chat)
}

// RemoveMember shrinks a group. Removing the last member marks the group
// inactive: history stays readable but appends fail for everyone.
func (r *ChatRepository) RemoveMember(chatID uuid.UUID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	chat, err := r.Get(chatID)
	if err != nil {
		return err
	}
	if chat.Kind != domain.ChatGroup {
		return errors.ErrInvalidOperation
	}
	if !chat.HasMember(userID) {
		return errors.ErrNotAMember
	}
	chat.Members = lo.Filter(chat.Members, func(m string, _ int) bool {
		return m != userID
	})
	if len(chat.Members) == 0 {
		chat.Active = false
		r.log.Info("Group emptied, marking inactive", "chat_id", chat.ID)
	}
	return r.save(chat)
}

func (r *ChatRepository) save(chat domain.Chat) error {
	payload, err := json.Marshal(fromChat(chat))
	if err != nil {
		return err
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(chatKey(chat.ID), payload)
	})
	return wrapStorage(err)
}

func fromChat(chat domain.Chat) diskChat {
	return diskChat{
		ID:        chat.ID.String(),
		Kind:      string(chat.Kind),
		Name:      chat.Name,
		CreatorID: chat.CreatorID,
		Members:   chat.Members,
		Active:    chat.Active,
		CreatedAt: chat.CreatedAt,
	}
}

func toChat(disk diskChat) (domain.Chat, error) {
	parsedID, err := uuid.Parse(disk.ID)
	if err != nil {
		return domain.Chat{}, err
	}
	return domain.Chat{
		ID:        parsedID,
		Kind:      domain.ChatKind(disk.Kind),
		Name:      disk.Name,
		CreatorID: disk.CreatorID,
		Members:   disk.Members,
		Active:    disk.Active,
		CreatedAt: disk.CreatedAt.UTC(),
	}, nil
}

func wrapStorage(err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, errors.ErrChatAlreadyExists) {
		return err
	}
	return fmt.Errorf("%w: %v", errors.ErrStorageUnavailable, err)
}
