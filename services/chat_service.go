//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"context"
	"log/slog"

	"chatline/contract"
	"chatline/domain"
	"chatline/domain/event"
	"chatline/moderation"
	"chatline/observability"
	"chatline/repositories"
	"chatline/runtime"

	"github.com/google/uuid"
)

type IChatService interface {
	CreatePersonalChat(user1ID, user2ID string) (domain.Chat, error)
	CreateGroup(name, creatorID string) (domain.Chat, error)
	AddMember(chatID uuid.UUID, userID string) error
	RemoveMember(chatID uuid.UUID, userID string) error
	SendMessage(ctx context.Context, chatID uuid.UUID, senderID, body string) (domain.Message, error)
	GetHistory(chatID uuid.UUID, beforeSeq *uint64, limit int) ([]domain.Message, error)
	Connect(userID string, sink contract.EventSink) (*runtime.Connection, error)
	Disconnect(connID uuid.UUID)
}

// ChatService orchestrates the messaging core: membership checks and the
// durable append happen synchronously, fan-out is handed to the
// dispatcher through a buffered channel and never delays the caller.
type ChatService struct {
	log       *slog.Logger
	messages  repositories.IMessageRepository
	chats     repositories.IChatRepository
	registry  *runtime.Registry
	events    chan<- event.DomainEvent
	moderator *moderation.Moderator
	monitor   *observability.Monitor
}

func NewChatService(log *slog.Logger,
	messages repositories.IMessageRepository,
	chats repositories.IChatRepository,
	registry *runtime.Registry,
	events chan<- event.DomainEvent,
	moderator *moderation.Moderator,
	monitor *observability.Monitor) *ChatService {
	return &ChatService{
		log:       log,
		messages:  messages,
		chats:     chats,
		registry:  registry,
		events:    events,
		moderator: moderator,
		monitor:   monitor,
	}
}

func (s *ChatService) CreatePersonalChat(user1ID, user2ID string) (domain.Chat, error) {
	return s.chats.CreatePersonal(user1ID, user2ID)
}

func (s *ChatService) CreateGroup(name, creatorID string) (domain.Chat, error) {
	return s.chats.CreateGroup(name, creatorID)
}

func (s *ChatService) AddMember(chatID uuid.UUID, userID string) error {
	return s.chats.AddMember(chatID, userID)
}

func (s *ChatService) RemoveMember(chatID uuid.UUID, userID string) error {
	return s.chats.RemoveMember(chatID, userID)
}

// SendMessage validates membership, appends durably, and returns as soon
// as the store commit does. The stored event is offered to the dispatch
// queue without blocking: offline recipients and fan-out hiccups are
// recovered through history, not by delaying or failing the sender.
func (s *ChatService) SendMessage(ctx context.Context, chatID uuid.UUID, senderID, body string) (domain.Message, error) {
	body = s.moderator.Censor(body)

	message, err := s.messages.Append(chatID, senderID, body)
	if err != nil {
		return domain.Message{}, err
	}
	if s.monitor != nil {
		s.monitor.RecordMessageStored()
	}

	select {
	case s.events <- event.MessageStored{Message: message}:
	case <-ctx.Done():
	default:
		s.log.Warn("Dispatch queue full, message available through history only",
			"chat_id", chatID, "seq", message.Seq)
	}
	return message, nil
}

func (s *ChatService) GetHistory(chatID uuid.UUID, beforeSeq *uint64, limit int) ([]domain.Message, error) {
	return s.messages.History(chatID, beforeSeq, limit)
}

// Connect registers a fresh connection handle for the user's sink.
func (s *ChatService) Connect(userID string, sink contract.EventSink) (*runtime.Connection, error) {
	conn := &runtime.Connection{ID: uuid.New(), UserID: userID, Sink: sink}
	if err := s.registry.Register(conn); err != nil {
		return nil, err
	}
	if s.monitor != nil {
		s.monitor.RecordConnectionOpened()
	}
	s.log.Debug("Connection registered", "connection_id", conn.ID, "user_id", userID)
	return conn, nil
}

// Disconnect is idempotent; the close path and a dispatcher-side drop may
// race for the same handle.
func (s *ChatService) Disconnect(connID uuid.UUID) {
	if s.registry.Deregister(connID) {
		if s.monitor != nil {
			s.monitor.RecordConnectionClosed()
		}
		s.log.Debug("Connection deregistered", "connection_id", connID)
	}
}
