package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/grantportal/backend/internal/models"
	"github.com/grantportal/backend/internal/notify"
	"github.com/grantportal/backend/pkg/queue"
)

// Mailer delivers one email.
type Mailer interface {
	Deliver(ctx context.Context, msg notify.Message) error
}

// EmailLogStore records delivery outcomes.
type EmailLogStore interface {
	Insert(ctx context.Context, log *models.EmailLog) error
}

// JobQueue is the part of the Redis queue the worker consumes.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	DeadLetter(ctx context.Context, job *queue.Job, cause error) error
}

// EmailProcessor delivers queued email jobs. A failed delivery is logged, recorded and dead-lettered;
// it is never retried.
type EmailProcessor struct {
	mailer Mailer
	logs   EmailLogStore
	queue  JobQueue
	logger *zap.Logger
	now    func() time.Time
}

// NewEmailProcessor creates an email job processor.
func NewEmailProcessor(mailer Mailer, logs EmailLogStore, q JobQueue, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{mailer: mailer, logs: logs, queue: q, logger: logger, now: time.Now}
}

// Process delivers one email job and records the outcome.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeEmail {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	sendErr := p.mailer.Deliver(ctx, notify.Message{
		Type:    payload.EmailType,
		To:      payload.RecipientEmail,
		Subject: payload.Subject,
		HTML:    payload.BodyHTML,
		ReplyTo: payload.ReplyTo,
	})

	entry := &models.EmailLog{
		EmailType:      payload.EmailType,
		RecipientEmail: payload.RecipientEmail,
		Subject:        payload.Subject,
		Status:         models.EmailLogStatusSent,
	}
	if sendErr != nil {
		entry.Status = models.EmailLogStatusFailed
		entry.ErrorMessage = sendErr.Error()
	} else {
		sentAt := p.now().UTC()
		entry.SentAt = &sentAt
	}
	if err := p.logs.Insert(ctx, entry); err != nil {
		p.logger.Error("record email log failed", zap.Error(err), zap.String("job_id", job.ID))
	}
	if sendErr != nil {
		return fmt.Errorf("deliver: %w", sendErr)
	}
	p.logger.Info("email sent",
		zap.String("job_id", job.ID),
		zap.String("email_type", payload.EmailType),
		zap.String("to", payload.RecipientEmail),
	)
	return nil
}

// Run starts the worker loop: dequeue, process, dead-letter on error. It returns when ctx is done.
func (p *EmailProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("email worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			sleep(ctx, queue.ErrorBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if dlErr := p.queue.DeadLetter(context.WithoutCancel(ctx), job, err); dlErr != nil {
				p.logger.Error("dead-letter failed", zap.Error(dlErr))
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
