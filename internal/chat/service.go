package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/estately/pkg/models"
)

// Directory resolves public user profiles. Missing users are simply absent
// from the returned map.
type Directory interface {
	Summaries(ctx context.Context, userIDs []string) (map[string]models.UserSummary, error)
}

// ReminderScheduler arranges a later reminder for a recipient who may not
// read a freshly sent message.
type ReminderScheduler interface {
	ScheduleUnreadReminder(ctx context.Context, conversationID, recipientID string) error
}

// Observer receives operation outcomes, typically for metrics.
type Observer interface {
	ConversationOpened(created bool)
	MessageSent()
	ConversationSeen(op string)
	StoreFailure(op string)
}

// Service enforces the conversation, read-state and authorization rules on
// top of a Store. The principal id is always an explicit argument.
type Service struct {
	store     Store
	directory Directory
	reminders ReminderScheduler
	observer  Observer
	now       func() time.Time
	newID     func() string
}

// Option customizes a Service
type Option func(*Service)

// WithReminders schedules unread reminders after each sent message
func WithReminders(r ReminderScheduler) Option {
	return func(s *Service) { s.reminders = r }
}

// WithObserver registers an outcome observer
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides id generation
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

// NewService creates a conversation service
func NewService(store Store, directory Directory, opts ...Option) *Service {
	s := &Service{
		store:     store,
		directory: directory,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenConversation returns the conversation between the actor and the
// receiver, creating it on first contact. An existing conversation is
// returned untouched.
func (s *Service) OpenConversation(ctx context.Context, in OpenConversationInput) (*Conversation, bool, error) {
	if err := in.Validate(); err != nil {
		return nil, false, err
	}

	conv := Conversation{
		ID:             s.newID(),
		ParticipantIDs: CanonicalPair(in.ActorID, in.ReceiverID),
		SeenBy:         []string{},
		CreatedAt:      s.now(),
	}

	result, created, err := s.store.FindOrCreateConversation(ctx, conv)
	if err != nil {
		return nil, false, s.storeFailure("open conversation", err)
	}

	if s.observer != nil {
		s.observer.ConversationOpened(created)
	}
	log.Debug().
		Str("conversation_id", result.ID).
		Str("actor_id", in.ActorID).
		Bool("created", created).
		Msg("Conversation opened")

	return result, created, nil
}

// ListConversations returns the actor's conversations with the other
// participant's public profile attached.
func (s *Service) ListConversations(ctx context.Context, actorID string) ([]ConversationSummary, error) {
	if err := validateActor(actorID); err != nil {
		return nil, err
	}

	convs, err := s.store.ListConversations(ctx, actorID)
	if err != nil {
		return nil, s.storeFailure("list conversations", err)
	}

	others := make([]string, 0, len(convs))
	for i := range convs {
		others = append(others, convs[i].OtherParticipant(actorID))
	}

	profiles := map[string]models.UserSummary{}
	if len(others) > 0 && s.directory != nil {
		profiles, err = s.directory.Summaries(ctx, others)
		if err != nil {
			return nil, s.storeFailure("resolve participants", err)
		}
	}

	// Initialize as empty slice so JSON encodes to [] rather than null
	summaries := make([]ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		summary := ConversationSummary{Conversation: conv}
		if p, ok := profiles[conv.OtherParticipant(actorID)]; ok {
			profile := p
			summary.Receiver = &profile
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// GetConversation returns the conversation with its ordered messages and
// adds the actor to seenBy, leaving the other participant's state alone.
func (s *Service) GetConversation(ctx context.Context, in ConversationInput) (*ConversationDetail, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	conv, msgs, err := s.store.ViewConversation(ctx, in.ConversationID, in.ActorID)
	if err != nil {
		return nil, s.storeFailure("get conversation", err)
	}
	if s.observer != nil {
		s.observer.ConversationSeen("view")
	}

	if msgs == nil {
		msgs = make([]Message, 0)
	}
	return &ConversationDetail{Conversation: *conv, Messages: msgs}, nil
}

// MarkRead resets seenBy to exactly the actor. Unlike GetConversation this
// discards the other participant's seen flag.
func (s *Service) MarkRead(ctx context.Context, in ConversationInput) (*Conversation, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	conv, err := s.store.MarkRead(ctx, in.ConversationID, in.ActorID)
	if err != nil {
		return nil, s.storeFailure("mark read", err)
	}
	if s.observer != nil {
		s.observer.ConversationSeen("mark_read")
	}
	return conv, nil
}

// SendMessage appends a message authored by the actor and marks the
// conversation seen by the sender only.
func (s *Service) SendMessage(ctx context.Context, in SendMessageInput) (*Message, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	msg := Message{
		ID:             s.newID(),
		ConversationID: in.ConversationID,
		AuthorID:       in.ActorID,
		Text:           in.Text,
		CreatedAt:      s.now(),
	}

	stored, conv, err := s.store.AppendMessage(ctx, msg)
	if err != nil {
		return nil, s.storeFailure("send message", err)
	}
	if s.observer != nil {
		s.observer.MessageSent()
	}

	if s.reminders != nil {
		recipient := conv.OtherParticipant(in.ActorID)
		if err := s.reminders.ScheduleUnreadReminder(ctx, conv.ID, recipient); err != nil {
			log.Warn().Err(err).
				Str("conversation_id", conv.ID).
				Str("recipient_id", recipient).
				Msg("Failed to schedule unread reminder")
		}
	}

	return stored, nil
}

// UnreadCount is the number of the actor's conversations not seen by the actor.
func (s *Service) UnreadCount(ctx context.Context, actorID string) (int, error) {
	if err := validateActor(actorID); err != nil {
		return 0, err
	}

	n, err := s.store.CountUnread(ctx, actorID)
	if err != nil {
		return 0, s.storeFailure("count unread", err)
	}
	return n, nil
}

func (s *Service) storeFailure(op string, err error) error {
	typed := fromStore(op, err)
	if typed.Kind != KindNotFound {
		if s.observer != nil {
			s.observer.StoreFailure(op)
		}
		log.Error().Err(err).Str("op", op).Msg("Chat store operation failed")
	}
	return typed
}
