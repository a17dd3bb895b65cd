package states

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "session:"

// RedisStore хранит сессии в Redis, чтобы диалог переживал рестарт бота.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisStore(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, logger: logger}
}

func sessionKey(userID int64) string {
	return fmt.Sprintf("%s%d", keyPrefix, userID)
}

func (s *RedisStore) Get(ctx context.Context, userID int64) (Session, error) {
	data, err := s.client.Get(ctx, sessionKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Idle(), nil
		}
		return Session{}, fmt.Errorf("redis get session %d: %w", userID, err)
	}

	session, err := decodeSession(data)
	if err != nil {
		// Битая запись не должна ломать диалог, начинаем заново.
		s.logger.Warn("Dropping corrupted session",
			slog.Int64("user_id", userID),
			slog.Any("error", err))
		return Idle(), nil
	}

	return session, nil
}

func (s *RedisStore) Save(ctx context.Context, userID int64, session Session) error {
	if err := s.client.Set(ctx, sessionKey(userID), encodeSession(session.normalize()), s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session %d: %w", userID, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, sessionKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis del session %d: %w", userID, err)
	}
	return nil
}
