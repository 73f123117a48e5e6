package repository

import (
	"context"
	"fmt"

	"gitlab.com/yelinaung/paywatch/internal/database"
	"gitlab.com/yelinaung/paywatch/internal/models"
)

// AlertRepository handles alert database operations.
type AlertRepository struct {
	db database.PGXDB
}

// NewAlertRepository creates a new AlertRepository.
func NewAlertRepository(db database.PGXDB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create adds a new alert.
func (r *AlertRepository) Create(ctx context.Context, alert *models.Alert) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO alerts (user_id, alert_type, title, message, related_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, is_read, created_at
	`, alert.UserID, alert.Type, alert.Title, alert.Message, alert.RelatedID,
	).Scan(&alert.ID, &alert.IsRead, &alert.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

// ListByUser retrieves a user's alerts, newest first.
func (r *AlertRepository) ListByUser(ctx context.Context, userID int64, unreadOnly bool) ([]models.Alert, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, alert_type, title, message, related_id, is_read, created_at
		FROM alerts
		WHERE user_id = $1 AND (NOT $2 OR is_read = FALSE)
		ORDER BY created_at DESC, id DESC
	`, userID, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		var a models.Alert
		if err := rows.Scan(&a.ID, &a.UserID, &a.Type, &a.Title, &a.Message,
			&a.RelatedID, &a.IsRead, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alerts: %w", err)
	}
	return alerts, nil
}

// MarkRead flags an alert owned by userID as read.
func (r *AlertRepository) MarkRead(ctx context.Context, id, userID int64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE alerts SET is_read = TRUE WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark alert read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to mark alert read: %w", ErrNotFound)
	}
	return nil
}

// CountUnread returns the number of unread alerts for a user.
func (r *AlertRepository) CountUnread(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM alerts WHERE user_id = $1 AND is_read = FALSE
	`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread alerts: %w", err)
	}
	return count, nil
}

// MarkAllRead flags every unread alert of a user as read and returns how many changed.
func (r *AlertRepository) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE alerts SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE
	`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark alerts read: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Delete removes an alert owned by userID.
func (r *AlertRepository) Delete(ctx context.Context, id, userID int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM alerts WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to delete alert: %w", ErrNotFound)
	}
	return nil
}
