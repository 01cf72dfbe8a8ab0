// Package metrics exposes chat counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements chat.Observer
type Collector struct {
	registry          *prometheus.Registry
	conversations     *prometheus.CounterVec
	messages          prometheus.Counter
	seen              *prometheus.CounterVec
	storeFailures     *prometheus.CounterVec
	remindersSent     prometheus.Counter
	remindersSkipped  prometheus.Counter
	rateLimitRejected prometheus.Counter
}

// New registers the chat collectors on a private registry
func New() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		conversations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "estately",
			Subsystem: "chat",
			Name:      "conversations_opened_total",
			Help:      "openConversation calls by outcome.",
		}, []string{"result"}),
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "estately",
			Subsystem: "chat",
			Name:      "messages_sent_total",
			Help:      "Messages appended to conversations.",
		}),
		seen: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "estately",
			Subsystem: "chat",
			Name:      "conversations_seen_total",
			Help:      "Read-state updates by operation.",
		}, []string{"op"}),
		storeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "estately",
			Subsystem: "chat",
			Name:      "store_failures_total",
			Help:      "Store failures by operation.",
		}, []string{"op"}),
		remindersSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "estately",
			Subsystem: "reminders",
			Name:      "sent_total",
			Help:      "Unread reminders handed to the notifier.",
		}),
		remindersSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "estately",
			Subsystem: "reminders",
			Name:      "skipped_total",
			Help:      "Unread reminders dropped because the recipient caught up.",
		}),
		rateLimitRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "estately",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-principal rate limiter.",
		}),
	}

	reg.MustRegister(
		c.conversations,
		c.messages,
		c.seen,
		c.storeFailures,
		c.remindersSent,
		c.remindersSkipped,
		c.rateLimitRejected,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) ConversationOpened(created bool) {
	result := "existing"
	if created {
		result = "created"
	}
	c.conversations.WithLabelValues(result).Inc()
}

func (c *Collector) MessageSent() {
	c.messages.Inc()
}

func (c *Collector) ConversationSeen(op string) {
	c.seen.WithLabelValues(op).Inc()
}

func (c *Collector) StoreFailure(op string) {
	c.storeFailures.WithLabelValues(op).Inc()
}

// ReminderSent counts a reminder delivered to the notifier
func (c *Collector) ReminderSent() {
	c.remindersSent.Inc()
}

// ReminderSkipped counts a reminder dropped because the conversation was already seen
func (c *Collector) ReminderSkipped() {
	c.remindersSkipped.Inc()
}

// RateLimited counts a rejected request
func (c *Collector) RateLimited() {
	c.rateLimitRejected.Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mostly for tests
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
