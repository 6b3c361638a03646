// Package notify composes portal emails and hands them to the delivery pipeline.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/grantportal/backend/pkg/queue"
)

// Message is one outbound email.
type Message struct {
	Type    string
	To      string
	Subject string
	HTML    string
	ReplyTo string
}

// Notifier sends email without blocking or failing the caller. Delivery failures are logged.
type Notifier interface {
	Send(ctx context.Context, msg Message)
}

// Enqueuer is the part of the job queue the notifier needs.
type Enqueuer interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// QueueNotifier enqueues messages for the email worker.
type QueueNotifier struct {
	queue  Enqueuer
	logger *zap.Logger
}

// NewQueueNotifier creates a notifier backed by the email queue.
func NewQueueNotifier(q Enqueuer, logger *zap.Logger) *QueueNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueueNotifier{queue: q, logger: logger}
}

// Send enqueues msg. Messages without a recipient are dropped.
func (n *QueueNotifier) Send(ctx context.Context, msg Message) {
	if msg.To == "" {
		n.logger.Warn("email dropped: no recipient", zap.String("email_type", msg.Type))
		return
	}
	err := n.queue.EnqueueEmail(context.WithoutCancel(ctx), queue.EmailPayload{
		EmailType:      msg.Type,
		RecipientEmail: msg.To,
		Subject:        msg.Subject,
		BodyHTML:       msg.HTML,
		ReplyTo:        msg.ReplyTo,
	})
	if err != nil {
		n.logger.Error("enqueue email failed", zap.Error(err), zap.String("email_type", msg.Type), zap.String("to", msg.To))
	}
}

// LogNotifier only logs messages. Used when no queue is available.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier that logs instead of sending.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(_ context.Context, msg Message) {
	n.logger.Info("email not sent (no delivery pipeline)",
		zap.String("email_type", msg.Type),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
}
