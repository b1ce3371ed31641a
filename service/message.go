package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Abdullah-608/gigpanda/model"
	"github.com/Abdullah-608/gigpanda/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrEmptyMessage      = errors.New("message body is required")
	ErrRecipientNotFound = errors.New("recipient not found")
)

// Presence abstracts the redis-backed presence tracker for testability.
type Presence interface {
	IsOnline(ctx context.Context, userID string) (bool, error)
	IncrementUnread(ctx context.Context, userID, fromID string) error
	ClearUnread(ctx context.Context, userID, fromID string) error
	UnreadCount(ctx context.Context, userID, fromID string) (int64, error)
}

// MessageService persists direct messages and pushes them to live streams.
// Semantics are at-most-once: a message sent while the recipient is
// disconnected is stored but never replayed over SSE.
type MessageService struct {
	pool     *pgxpool.Pool
	hub      Broadcaster
	presence Presence
}

func NewMessageService(pool *pgxpool.Pool, hub Broadcaster, presence Presence) *MessageService {
	return &MessageService{pool: pool, hub: hub, presence: presence}
}

// Send stores the message and pushes it to the recipient's open streams.
func (s *MessageService) Send(ctx context.Context, senderID, recipientID, body string) (*model.Message, error) {
	if body == "" {
		return nil, ErrEmptyMessage
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id=$1)`, recipientID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("message: check recipient: %w", err)
	}
	if !exists {
		return nil, ErrRecipientNotFound
	}

	// Presence lookup is best-effort; a redis hiccup just marks undelivered.
	delivered := false
	if s.presence != nil {
		online, err := s.presence.IsOnline(ctx, recipientID)
		if err != nil {
			logger.Warn(ctx, "presence lookup failed", "error", err)
		} else {
			delivered = online
		}
	}

	msg := &model.Message{
		SenderID:    senderID,
		RecipientID: recipientID,
		Body:        body,
		Delivered:   delivered,
	}
	err := s.pool.QueryRow(ctx, `
        INSERT INTO messages (sender_id, recipient_id, body, delivered)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at
    `, msg.SenderID, msg.RecipientID, msg.Body, msg.Delivered).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("message: insert: %w", err)
	}

	if s.hub != nil {
		s.hub.Push(recipientID, model.Event{Type: "message", Payload: msg})
	}
	if !delivered && s.presence != nil {
		if err := s.presence.IncrementUnread(ctx, recipientID, senderID); err != nil {
			logger.Warn(ctx, "unread counter update failed", "error", err)
		}
	}

	return msg, nil
}

// Conversation returns the most recent messages between two users, oldest
// first, along with how many were unread before this fetch. Reading the
// conversation clears the unread counter for the peer.
func (s *MessageService) Conversation(ctx context.Context, userID, otherID string, limit int) ([]model.Message, int64, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
        SELECT id, sender_id, recipient_id, body, delivered, created_at
        FROM messages
        WHERE (sender_id=$1 AND recipient_id=$2) OR (sender_id=$2 AND recipient_id=$1)
        ORDER BY created_at DESC
        LIMIT $3
    `, userID, otherID, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("message: conversation: %w", err)
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Body, &m.Delivered, &m.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("message: scan: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	// Reverse to chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	var unread int64
	if s.presence != nil {
		unread, err = s.presence.UnreadCount(ctx, userID, otherID)
		if err != nil {
			logger.Warn(ctx, "unread counter lookup failed", "error", err)
			unread = 0
		}
		if err := s.presence.ClearUnread(ctx, userID, otherID); err != nil {
			logger.Warn(ctx, "unread counter clear failed", "error", err)
		}
	}

	return messages, unread, nil
}
