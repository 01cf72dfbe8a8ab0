package jobqueue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estately/internal/chat"
	"github.com/estately/internal/chat/memstore"
	"github.com/estately/internal/users"
	"github.com/estately/pkg/models"
)

type recordingNotifier struct {
	reminders []Reminder
	err       error
}

func (n *recordingNotifier) NotifyUnread(_ context.Context, r Reminder) error {
	if n.err != nil {
		return n.err
	}
	n.reminders = append(n.reminders, r)
	return nil
}

type countingObserver struct {
	sent, skipped int
}

func (o *countingObserver) ReminderSent()    { o.sent++ }
func (o *countingObserver) ReminderSkipped() { o.skipped++ }

func reminderJob(conversationID, recipientID string) *river.Job[UnreadReminderArgs] {
	return &river.Job[UnreadReminderArgs]{
		JobRow: &rivertype.JobRow{ID: 1, Kind: UnreadReminderArgs{}.Kind()},
		Args:   UnreadReminderArgs{ConversationID: conversationID, RecipientID: recipientID},
	}
}

func setupConversation(t *testing.T) (*chat.Service, *memstore.Store, string) {
	t.Helper()
	store := memstore.New()
	svc := chat.NewService(store, nil)
	ctx := context.Background()

	conv, _, err := svc.OpenConversation(ctx, chat.OpenConversationInput{ActorID: "alice", ReceiverID: "bob"})
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, chat.SendMessageInput{ConversationID: conv.ID, ActorID: "alice", Text: "Is the flat still available?"})
	require.NoError(t, err)
	return svc, store, conv.ID
}

func TestUnreadReminderWorker_NotifiesUnseenRecipient(t *testing.T) {
	_, store, convID := setupConversation(t)
	notifier := &recordingNotifier{}
	observer := &countingObserver{}
	profiles := users.StaticDirectory{"bob": {ID: "bob", Username: "bob"}}
	worker := NewUnreadReminderWorker(store, profiles, notifier, observer)

	err := worker.Work(context.Background(), reminderJob(convID, "bob"))
	require.NoError(t, err)

	require.Len(t, notifier.reminders, 1)
	r := notifier.reminders[0]
	assert.Equal(t, convID, r.ConversationID)
	assert.Equal(t, "bob", r.RecipientID)
	assert.Equal(t, "Is the flat still available?", r.LastMessage)
	require.NotNil(t, r.Recipient)
	assert.Equal(t, "bob", r.Recipient.Username)
	assert.Equal(t, 1, observer.sent)
	assert.Equal(t, 0, observer.skipped)
}

func TestUnreadReminderWorker_SkipsWhenSeen(t *testing.T) {
	svc, store, convID := setupConversation(t)
	_, err := svc.GetConversation(context.Background(), chat.ConversationInput{ConversationID: convID, ActorID: "bob"})
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	observer := &countingObserver{}
	worker := NewUnreadReminderWorker(store, nil, notifier, observer)

	require.NoError(t, worker.Work(context.Background(), reminderJob(convID, "bob")))
	assert.Empty(t, notifier.reminders)
	assert.Equal(t, 1, observer.skipped)
}

func TestUnreadReminderWorker_SkipsSender(t *testing.T) {
	_, store, convID := setupConversation(t)
	notifier := &recordingNotifier{}
	worker := NewUnreadReminderWorker(store, nil, notifier, nil)

	require.NoError(t, worker.Work(context.Background(), reminderJob(convID, "alice")))
	assert.Empty(t, notifier.reminders)
}

func TestUnreadReminderWorker_SkipsNonParticipantAndMissingConversation(t *testing.T) {
	_, store, convID := setupConversation(t)
	notifier := &recordingNotifier{}
	observer := &countingObserver{}
	worker := NewUnreadReminderWorker(store, nil, notifier, observer)

	require.NoError(t, worker.Work(context.Background(), reminderJob(convID, "mallory")))
	require.NoError(t, worker.Work(context.Background(), reminderJob("no-such-conversation", "bob")))
	assert.Empty(t, notifier.reminders)
	assert.Equal(t, 2, observer.skipped)
}

func TestUnreadReminderWorker_NotifierFailureIsRetried(t *testing.T) {
	_, store, convID := setupConversation(t)
	notifier := &recordingNotifier{err: errors.New("smtp unavailable")}
	observer := &countingObserver{}
	worker := NewUnreadReminderWorker(store, nil, notifier, observer)

	err := worker.Work(context.Background(), reminderJob(convID, "bob"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp unavailable")
	assert.Equal(t, 0, observer.sent)
}

func TestUnreadReminderWorker_ProfileLookupIsOptional(t *testing.T) {
	_, store, convID := setupConversation(t)
	notifier := &recordingNotifier{}
	worker := NewUnreadReminderWorker(store, users.StaticDirectory{}, notifier, nil)

	require.NoError(t, worker.Work(context.Background(), reminderJob(convID, "bob")))
	require.Len(t, notifier.reminders, 1)
	assert.Nil(t, notifier.reminders[0].Recipient)
}

func TestReminderInsertOpts(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	opts := reminderInsertOpts(now, 10*time.Minute)

	assert.Equal(t, now.Add(10*time.Minute), opts.ScheduledAt)
	assert.True(t, opts.UniqueOpts.ByArgs)
	assert.Equal(t, 10*time.Minute, opts.UniqueOpts.ByPeriod)
}

func TestQueueConfigDefaults(t *testing.T) {
	cfg := QueueConfig{Delay: time.Minute}.withDefaults()

	assert.Equal(t, time.Minute, cfg.Delay)
	assert.Equal(t, DefaultQueueConfig().MaxWorkers, cfg.MaxWorkers)
	assert.Equal(t, DefaultQueueConfig().MaxAttempts, cfg.MaxAttempts)
	assert.Equal(t, cfg.MaxWorkers, cfg.RiverQueueConfig()[river.QueueDefault].MaxWorkers)
}

func TestLogNotifier(t *testing.T) {
	err := LogNotifier{}.NotifyUnread(context.Background(), Reminder{
		ConversationID: "c1",
		RecipientID:    "bob",
		Recipient:      &models.UserSummary{ID: "bob", Username: "bob"},
	})
	assert.NoError(t, err)
}
