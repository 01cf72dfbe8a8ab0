package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/rs/zerolog/log"

	"github.com/estately/internal/chat"
	"github.com/estately/pkg/models"
)

// UnreadReminderArgs represents the arguments for an unread reminder job
type UnreadReminderArgs struct {
	ConversationID string `json:"conversation_id"`
	RecipientID    string `json:"recipient_id"`
}

// Kind returns the job kind for River
func (UnreadReminderArgs) Kind() string {
	return "unread_reminder"
}

// Conversations loads a conversation regardless of the caller. chat.Store satisfies it.
type Conversations interface {
	GetConversation(ctx context.Context, conversationID string) (*chat.Conversation, error)
}

// Profiles resolves a single user profile; nil means unknown.
type Profiles interface {
	Summary(ctx context.Context, userID string) (*models.UserSummary, error)
}

// Reminder is what a Notifier delivers
type Reminder struct {
	ConversationID string
	RecipientID    string
	Recipient      *models.UserSummary
	LastMessage    string
	LastMessageAt  *time.Time
}

// Notifier delivers reminders to recipients
type Notifier interface {
	NotifyUnread(ctx context.Context, r Reminder) error
}

// LogNotifier writes reminders to the log. Useful until a mail or push
// transport is plugged in.
type LogNotifier struct{}

// NotifyUnread implements Notifier
func (LogNotifier) NotifyUnread(_ context.Context, r Reminder) error {
	event := log.Info().
		Str("conversation_id", r.ConversationID).
		Str("recipient_id", r.RecipientID).
		Str("last_message", r.LastMessage)
	if r.Recipient != nil {
		event = event.Str("username", r.Recipient.Username)
	}
	event.Msg("Unread message reminder")
	return nil
}

// ReminderObserver counts reminder outcomes
type ReminderObserver interface {
	ReminderSent()
	ReminderSkipped()
}

// UnreadReminderWorker handles unread reminder jobs
type UnreadReminderWorker struct {
	river.WorkerDefaults[UnreadReminderArgs]
	conversations Conversations
	profiles      Profiles
	notifier      Notifier
	observer      ReminderObserver
	timeout       time.Duration
}

// NewUnreadReminderWorker creates a worker. profiles and observer may be nil.
func NewUnreadReminderWorker(conversations Conversations, profiles Profiles, notifier Notifier, observer ReminderObserver) *UnreadReminderWorker {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &UnreadReminderWorker{
		conversations: conversations,
		profiles:      profiles,
		notifier:      notifier,
		observer:      observer,
	}
}

// Timeout bounds a single job; zero falls back to River's client default
func (w *UnreadReminderWorker) Timeout(*river.Job[UnreadReminderArgs]) time.Duration {
	return w.timeout
}

// Work sends the reminder unless the recipient has caught up in the meantime
func (w *UnreadReminderWorker) Work(ctx context.Context, job *river.Job[UnreadReminderArgs]) error {
	args := job.Args
	logger := log.With().
		Str("conversation_id", args.ConversationID).
		Str("recipient_id", args.RecipientID).
		Logger()

	conv, err := w.conversations.GetConversation(ctx, args.ConversationID)
	if err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			logger.Debug().Msg("Conversation gone, dropping reminder")
			w.skipped()
			return nil
		}
		return fmt.Errorf("failed to load conversation: %w", err)
	}

	if !conv.HasParticipant(args.RecipientID) || conv.SeenByUser(args.RecipientID) {
		logger.Debug().Msg("Recipient already caught up, skipping reminder")
		w.skipped()
		return nil
	}

	reminder := Reminder{
		ConversationID: conv.ID,
		RecipientID:    args.RecipientID,
		LastMessage:    conv.LastMessageText,
		LastMessageAt:  conv.LastMessageAt,
	}
	if w.profiles != nil {
		profile, err := w.profiles.Summary(ctx, args.RecipientID)
		if err != nil {
			// The reminder is still useful without a username
			logger.Warn().Err(err).Msg("Failed to resolve recipient profile")
		}
		reminder.Recipient = profile
	}

	if err := w.notifier.NotifyUnread(ctx, reminder); err != nil {
		return fmt.Errorf("failed to deliver reminder: %w", err)
	}
	if w.observer != nil {
		w.observer.ReminderSent()
	}
	logger.Debug().Msg("Unread reminder delivered")
	return nil
}

func (w *UnreadReminderWorker) skipped() {
	if w.observer != nil {
		w.observer.ReminderSkipped()
	}
}

// JobQueue manages the River job queue
type JobQueue struct {
	client *river.Client[pgx.Tx]
	config QueueConfig
}

// NewJobQueue creates a River client on pool running the reminder worker
func NewJobQueue(pool *pgxpool.Pool, config QueueConfig, worker *UnreadReminderWorker) (*JobQueue, error) {
	config = config.withDefaults()
	worker.timeout = config.JobTimeout

	workers := river.NewWorkers()
	if err := river.AddWorkerSafely(workers, worker); err != nil {
		return nil, fmt.Errorf("failed to register reminder worker: %w", err)
	}

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues:      config.RiverQueueConfig(),
		Workers:     workers,
		MaxAttempts: config.MaxAttempts,
		JobTimeout:  config.JobTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	return &JobQueue{
		client: client,
		config: config,
	}, nil
}

// Start starts the job queue workers
func (jq *JobQueue) Start(ctx context.Context) error {
	return jq.client.Start(ctx)
}

// Stop stops the job queue workers, letting running jobs finish
func (jq *JobQueue) Stop(ctx context.Context) error {
	return jq.client.Stop(ctx)
}

// ScheduleUnreadReminder implements chat.ReminderScheduler. Repeated calls
// for the same recipient within one delay window collapse into one job.
func (jq *JobQueue) ScheduleUnreadReminder(ctx context.Context, conversationID, recipientID string) error {
	args := UnreadReminderArgs{
		ConversationID: conversationID,
		RecipientID:    recipientID,
	}

	res, err := jq.client.Insert(ctx, args, reminderInsertOpts(time.Now(), jq.config.Delay))
	if err != nil {
		return fmt.Errorf("failed to queue unread reminder: %w", err)
	}
	if res.UniqueSkippedAsDuplicate {
		log.Debug().
			Str("conversation_id", conversationID).
			Str("recipient_id", recipientID).
			Msg("Unread reminder already pending")
	}
	return nil
}

func reminderInsertOpts(now time.Time, delay time.Duration) *river.InsertOpts {
	return &river.InsertOpts{
		ScheduledAt: now.Add(delay),
		UniqueOpts: river.UniqueOpts{
			ByArgs:   true,
			ByPeriod: delay,
		},
	}
}
