/*
Package jobqueue configuration - tunable parameters for the River job queue.

# Unread Reminder Queue

When a message is sent, a reminder job is scheduled for the recipient. After
Delay has elapsed the worker checks whether the recipient has seen the
conversation since; if not, the Notifier is invoked.

## Quick Configuration Reference:

### Performance Tuning:
- Increase MaxWorkers when many reminders fall due at the same time
- Lower MaxWorkers to reduce database connection usage

### Deduplication:
- Reminders are unique per (conversation, recipient) within one Delay window,
  so a burst of messages produces a single reminder

### Reliability Tuning:
- MaxAttempts bounds retries of a failing notifier
- JobTimeout bounds a single notifier call

## Database Requirements:
- PostgreSQL with River schema migrations applied (see `estately migrate`)
*/
package jobqueue

import (
	"time"

	"github.com/riverqueue/river"
)

// QueueConfig holds all configuration for the reminder queue
type QueueConfig struct {
	MaxWorkers  int           // Concurrent reminder workers
	MaxAttempts int           // Attempts before River discards a failing job
	Delay       time.Duration // Time a recipient has to read a message before being reminded
	JobTimeout  time.Duration // Maximum time for a single notification
}

// DefaultQueueConfig returns the default configuration
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		MaxWorkers:  5,
		MaxAttempts: 5,
		Delay:       15 * time.Minute,
		JobTimeout:  30 * time.Second,
	}
}

// withDefaults fills unset fields from DefaultQueueConfig
func (c QueueConfig) withDefaults() QueueConfig {
	def := DefaultQueueConfig()
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = def.MaxWorkers
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.Delay <= 0 {
		c.Delay = def.Delay
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = def.JobTimeout
	}
	return c
}

// RiverQueueConfig converts our config to River's queue configuration format
func (c QueueConfig) RiverQueueConfig() map[string]river.QueueConfig {
	return map[string]river.QueueConfig{
		river.QueueDefault: {
			MaxWorkers: c.MaxWorkers,
		},
	}
}
