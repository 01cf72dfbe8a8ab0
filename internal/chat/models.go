package chat

import (
	"time"

	"github.com/estately/pkg/models"
)

// Conversation is a two-participant messaging thread.
// ParticipantIDs is always stored in canonical (sorted) order.
type Conversation struct {
	ID              string     `json:"id" db:"id"`
	ParticipantIDs  [2]string  `json:"userIDs"`
	SeenBy          []string   `json:"seenBy" db:"seen_by"`
	LastMessageText string     `json:"lastMessage" db:"last_message_text"`
	LastMessageAt   *time.Time `json:"lastMessageAt,omitempty" db:"last_message_at"`
	CreatedAt       time.Time  `json:"createdAt" db:"created_at"`
}

// Message is an immutable entry of a conversation. Seq is assigned by the
// store and breaks ties between equal CreatedAt values.
type Message struct {
	ID             string    `json:"id" db:"id"`
	ConversationID string    `json:"chatId" db:"conversation_id"`
	AuthorID       string    `json:"userId" db:"author_id"`
	Text           string    `json:"text" db:"text"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
	Seq            int64     `json:"-" db:"seq"`
}

// ConversationSummary is a list entry: the conversation plus the other party
type ConversationSummary struct {
	Conversation
	Receiver *models.UserSummary `json:"receiver"`
}

// ConversationDetail is a conversation with its full ordered message history
type ConversationDetail struct {
	Conversation
	Messages []Message `json:"messages"`
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID string) bool {
	return c.ParticipantIDs[0] == userID || c.ParticipantIDs[1] == userID
}

// OtherParticipant returns the participant that is not userID.
func (c *Conversation) OtherParticipant(userID string) string {
	if c.ParticipantIDs[0] == userID {
		return c.ParticipantIDs[1]
	}
	return c.ParticipantIDs[0]
}

// SeenByUser reports whether userID has observed the current content.
func (c *Conversation) SeenByUser(userID string) bool {
	for _, id := range c.SeenBy {
		if id == userID {
			return true
		}
	}
	return false
}

// CanonicalPair orders two user ids so that each unordered pair has exactly
// one stored representation.
func CanonicalPair(a, b string) [2]string {
	if b < a {
		return [2]string{b, a}
	}
	return [2]string{a, b}
}
