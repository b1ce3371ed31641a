package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Abdullah-608/gigpanda/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotificationNotFound = errors.New("notification not found")

// NotificationService reads the in-app notification feed. Rows are written by
// the lifecycle services inside their transactions.
type NotificationService struct {
	pool *pgxpool.Pool
}

func NewNotificationService(pool *pgxpool.Pool) *NotificationService {
	return &NotificationService{pool: pool}
}

// List returns the user's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID string, limit int) ([]model.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
        SELECT id, user_id, type, message, COALESCE(contract_id::text, ''), is_read, created_at
        FROM notifications
        WHERE user_id=$1
        ORDER BY created_at DESC
        LIMIT $2
    `, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("notification: list: %w", err)
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Message, &n.ContractID, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("notification: scan: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkRead flags one of the user's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, notificationID, userID string) error {
	tag, err := s.pool.Exec(ctx, `
        UPDATE notifications SET is_read=TRUE WHERE id=$1 AND user_id=$2
    `, notificationID, userID)
	if err != nil {
		return fmt.Errorf("notification: mark read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
