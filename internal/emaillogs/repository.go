package emaillogs

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/grantportal/backend/internal/models"
)

// Repository handles email_logs persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email logs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert records one delivery attempt.
func (r *Repository) Insert(ctx context.Context, el *models.EmailLog) error {
	const q = `INSERT INTO email_logs (email_type, recipient_email, subject, status, error_message, sent_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, NULLIF($5, ''), $6)
		RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, q, el.EmailType, el.RecipientEmail, el.Subject, el.Status, el.ErrorMessage, el.SentAt).
		Scan(&el.ID, &el.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert email log: %w", err)
	}
	return nil
}

// ListRecent returns up to limit email logs, newest first, optionally filtered by status.
func (r *Repository) ListRecent(ctx context.Context, status string, limit int) ([]*models.EmailLog, error) {
	const q = `SELECT id, email_type, recipient_email, subject, status, sent_at, error_message, created_at
		FROM email_logs
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := r.pool.Query(ctx, q, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list email logs: %w", err)
	}
	defer rows.Close()
	list := []*models.EmailLog{}
	for rows.Next() {
		var el models.EmailLog
		var subject, errMsg *string
		if err := rows.Scan(&el.ID, &el.EmailType, &el.RecipientEmail, &subject, &el.Status, &el.SentAt, &errMsg, &el.CreatedAt); err != nil {
			return nil, err
		}
		if subject != nil {
			el.Subject = *subject
		}
		if errMsg != nil {
			el.ErrorMessage = *errMsg
		}
		list = append(list, &el)
	}
	return list, rows.Err()
}
