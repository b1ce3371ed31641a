package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const presenceTTL = 60 * time.Second

// PresenceService tracks which users currently hold an open stream, plus
// per-conversation unread counters. State lives in redis so it survives
// process restarts and is shared across instances.
type PresenceService struct {
	rdb *redis.Client
}

func NewPresenceService(rdb *redis.Client) *PresenceService {
	return &PresenceService{rdb: rdb}
}

func presenceKey(userID string) string {
	return "presence:" + userID
}

func unreadKey(userID, fromID string) string {
	return fmt.Sprintf("unread:%s:%s", userID, fromID)
}

// Heartbeat marks the user online for the TTL window. Streams call this
// periodically while open.
func (s *PresenceService) Heartbeat(ctx context.Context, userID string) error {
	return s.rdb.Set(ctx, presenceKey(userID), "1", presenceTTL).Err()
}

// Offline removes the user's presence marker.
func (s *PresenceService) Offline(ctx context.Context, userID string) error {
	return s.rdb.Del(ctx, presenceKey(userID)).Err()
}

// IsOnline reports whether the user has a fresh presence marker.
func (s *PresenceService) IsOnline(ctx context.Context, userID string) (bool, error) {
	n, err := s.rdb.Exists(ctx, presenceKey(userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// IncrementUnread bumps the unread counter for messages from fromID.
func (s *PresenceService) IncrementUnread(ctx context.Context, userID, fromID string) error {
	return s.rdb.Incr(ctx, unreadKey(userID, fromID)).Err()
}

// ClearUnread resets the unread counter for a conversation.
func (s *PresenceService) ClearUnread(ctx context.Context, userID, fromID string) error {
	return s.rdb.Del(ctx, unreadKey(userID, fromID)).Err()
}

// UnreadCount returns the unread counter for a conversation.
func (s *PresenceService) UnreadCount(ctx context.Context, userID, fromID string) (int64, error) {
	n, err := s.rdb.Get(ctx, unreadKey(userID, fromID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}
