// Package memstore is a single-process chat.Store used by tests and the
// memory driver. All operations run under one mutex, which gives the same
// atomic units the Postgres store gets from transactions.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/estately/internal/chat"
)

// Store keeps conversations and messages in memory
type Store struct {
	mu            sync.Mutex
	conversations map[string]*chat.Conversation
	byPair        map[[2]string]string
	messages      map[string][]chat.Message
	seq           int64
}

// New creates an empty store
func New() *Store {
	return &Store{
		conversations: make(map[string]*chat.Conversation),
		byPair:        make(map[[2]string]string),
		messages:      make(map[string][]chat.Message),
	}
}

var _ chat.Store = (*Store)(nil)

func (s *Store) FindOrCreateConversation(ctx context.Context, conv chat.Conversation) (*chat.Conversation, bool, error) {
	if err := alive(ctx); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	pair := chat.CanonicalPair(conv.ParticipantIDs[0], conv.ParticipantIDs[1])
	if id, ok := s.byPair[pair]; ok {
		return clone(s.conversations[id]), false, nil
	}

	stored := clone(&conv)
	stored.ParticipantIDs = pair
	stored.SeenBy = []string{}
	s.conversations[stored.ID] = stored
	s.byPair[pair] = stored.ID
	return clone(stored), true, nil
}

func (s *Store) ListConversations(ctx context.Context, actorID string) ([]chat.Conversation, error) {
	if err := alive(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]chat.Conversation, 0)
	for _, c := range s.conversations {
		if c.HasParticipant(actorID) {
			result = append(result, *clone(c))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		ai, aj := activity(&result[i]), activity(&result[j])
		if !ai.Equal(aj) {
			return ai.After(aj)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (s *Store) ViewConversation(ctx context.Context, conversationID, actorID string) (*chat.Conversation, []chat.Message, error) {
	if err := alive(ctx); err != nil {
		return nil, nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.lookup(conversationID, actorID)
	if err != nil {
		return nil, nil, err
	}
	if !c.SeenByUser(actorID) {
		c.SeenBy = append(c.SeenBy, actorID)
	}

	msgs := make([]chat.Message, len(s.messages[conversationID]))
	copy(msgs, s.messages[conversationID])
	return clone(c), msgs, nil
}

func (s *Store) MarkRead(ctx context.Context, conversationID, actorID string) (*chat.Conversation, error) {
	if err := alive(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.lookup(conversationID, actorID)
	if err != nil {
		return nil, err
	}
	c.SeenBy = []string{actorID}
	return clone(c), nil
}

func (s *Store) AppendMessage(ctx context.Context, msg chat.Message) (*chat.Message, *chat.Conversation, error) {
	if err := alive(ctx); err != nil {
		return nil, nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.lookup(msg.ConversationID, msg.AuthorID)
	if err != nil {
		return nil, nil, err
	}

	s.seq++
	msg.Seq = s.seq
	msg.CreatedAt = chat.MonotonicTimestamp(msg.CreatedAt, c.LastMessageAt)
	s.messages[c.ID] = append(s.messages[c.ID], msg)

	at := msg.CreatedAt
	c.LastMessageAt = &at
	c.LastMessageText = msg.Text
	c.SeenBy = []string{msg.AuthorID}

	stored := msg
	return &stored, clone(c), nil
}

func (s *Store) CountUnread(ctx context.Context, actorID string) (int, error) {
	if err := alive(ctx); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, c := range s.conversations {
		if c.HasParticipant(actorID) && !c.SeenByUser(actorID) {
			n++
		}
	}
	return n, nil
}

func (s *Store) GetConversation(ctx context.Context, conversationID string) (*chat.Conversation, error) {
	if err := alive(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[conversationID]
	if !ok {
		return nil, chat.ErrNotFound
	}
	return clone(c), nil
}

// alive reports a cancelled request the way the Postgres store would.
func alive(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", chat.ErrStoreUnavailable, err)
	}
	return nil
}

// lookup must be called with mu held.
func (s *Store) lookup(conversationID, actorID string) (*chat.Conversation, error) {
	c, ok := s.conversations[conversationID]
	if !ok || !c.HasParticipant(actorID) {
		return nil, chat.ErrNotFound
	}
	return c, nil
}

func activity(c *chat.Conversation) time.Time {
	if c.LastMessageAt != nil {
		return *c.LastMessageAt
	}
	return c.CreatedAt
}

func clone(c *chat.Conversation) *chat.Conversation {
	out := *c
	out.SeenBy = append([]string{}, c.SeenBy...)
	if c.LastMessageAt != nil {
		at := *c.LastMessageAt
		out.LastMessageAt = &at
	}
	return &out
}
