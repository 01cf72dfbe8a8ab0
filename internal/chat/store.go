package chat

import (
	"context"
	"time"
)

// Store persists conversations and their messages. Every method is a single
// atomic unit; implementations must not rely on in-process locking alone when
// several server instances share the data.
//
// Methods taking an actorID only match conversations the actor participates
// in and return ErrNotFound otherwise.
type Store interface {
	// FindOrCreateConversation returns the conversation for the unordered pair,
	// creating it with an empty seenBy when absent. created reports which path ran.
	FindOrCreateConversation(ctx context.Context, conv Conversation) (result *Conversation, created bool, err error)

	// ListConversations returns the actor's conversations, most recently active first.
	ListConversations(ctx context.Context, actorID string) ([]Conversation, error)

	// ViewConversation adds actorID to seenBy and returns the updated
	// conversation with all messages ordered by (createdAt, seq).
	ViewConversation(ctx context.Context, conversationID, actorID string) (*Conversation, []Message, error)

	// MarkRead replaces seenBy with exactly {actorID}.
	MarkRead(ctx context.Context, conversationID, actorID string) (*Conversation, error)

	// AppendMessage inserts msg and, in the same unit, sets seenBy to
	// {msg.AuthorID} and updates the last message fields. The stored
	// CreatedAt is never earlier than the previous message's.
	AppendMessage(ctx context.Context, msg Message) (*Message, *Conversation, error)

	// CountUnread counts the actor's conversations whose seenBy lacks the actor.
	CountUnread(ctx context.Context, actorID string) (int, error)

	// GetConversation loads a conversation without any participant check.
	// Reserved for internal consumers such as background workers.
	GetConversation(ctx context.Context, conversationID string) (*Conversation, error)
}

// MonotonicTimestamp is the CreatedAt a new message receives given the
// conversation's previous last message time (nil when there is none).
func MonotonicTimestamp(now time.Time, prev *time.Time) time.Time {
	if prev != nil && prev.After(now) {
		return *prev
	}
	return now
}
