package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalPair(t *testing.T) {
	assert.Equal(t, [2]string{"a", "b"}, CanonicalPair("a", "b"))
	assert.Equal(t, [2]string{"a", "b"}, CanonicalPair("b", "a"))
	assert.Equal(t, CanonicalPair("user-9", "user-10"), CanonicalPair("user-10", "user-9"))
}

func TestConversationParticipants(t *testing.T) {
	c := Conversation{ParticipantIDs: [2]string{"alice", "bob"}, SeenBy: []string{"bob"}}

	assert.True(t, c.HasParticipant("alice"))
	assert.False(t, c.HasParticipant("mallory"))
	assert.Equal(t, "bob", c.OtherParticipant("alice"))
	assert.Equal(t, "alice", c.OtherParticipant("bob"))
	assert.True(t, c.SeenByUser("bob"))
	assert.False(t, c.SeenByUser("alice"))
}

func TestMonotonicTimestamp(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	earlier := now.Add(-time.Second)
	later := now.Add(time.Second)

	assert.Equal(t, now, MonotonicTimestamp(now, nil))
	assert.Equal(t, now, MonotonicTimestamp(now, &earlier))
	assert.Equal(t, later, MonotonicTimestamp(now, &later))
	assert.Equal(t, now, MonotonicTimestamp(now, &now))
}

func TestInputValidation(t *testing.T) {
	assert.NoError(t, OpenConversationInput{ActorID: "a", ReceiverID: "b"}.Validate())
	assert.Equal(t, KindValidation, KindOf(OpenConversationInput{ActorID: "a", ReceiverID: "a"}.Validate()))

	assert.NoError(t, ConversationInput{ConversationID: "c", ActorID: "a"}.Validate())
	assert.Equal(t, KindValidation, KindOf(ConversationInput{ActorID: "a"}.Validate()))
	assert.Equal(t, KindUnauthenticated, KindOf(ConversationInput{ConversationID: "c"}.Validate()))

	assert.NoError(t, SendMessageInput{ConversationID: "c", ActorID: "a", Text: " hi "}.Validate())
	assert.Equal(t, KindValidation, KindOf(SendMessageInput{ConversationID: "c", ActorID: "a", Text: " "}.Validate()))
}

func TestFromStore(t *testing.T) {
	assert.Equal(t, KindNotFound, fromStore("op", ErrNotFound).Kind)
	assert.Equal(t, KindConflict, fromStore("op", ErrPairConflict).Kind)
	assert.Equal(t, KindStoreUnavailable, fromStore("op", ErrStoreUnavailable).Kind)
	assert.Equal(t, KindInternal, fromStore("op", assert.AnError).Kind)
	assert.Equal(t, KindInternal, KindOf(assert.AnError))
}
