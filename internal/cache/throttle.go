// cache содержит Redis-обвязку сервиса: троттлинг неудачных попыток входа.
// Счётчик ключуется по username и живёт в окне window; при достижении порога
// логин временно блокируется. Компонент опционален — без Redis сервис
// работает без троттлинга.
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginLimiter — минимальный контракт троттлинга логина.
type LoginLimiter interface {
	// Allow сообщает, разрешена ли очередная попытка входа для username.
	Allow(ctx context.Context, username string) (bool, error)
	// RecordFailure учитывает неудачную попытку входа.
	RecordFailure(ctx context.Context, username string) error
	// Reset сбрасывает счётчик (после успешного входа).
	Reset(ctx context.Context, username string) error
	// Close закрывает клиент Redis.
	Close() error
}

type redisLimiter struct {
	rdb         *redis.Client
	prefix      string
	maxAttempts int
	window      time.Duration
}

// NewRedisLimiter создаёт лимитер из URL (например, redis://:pass@host:6379/0).
// Если prefix пустой — используется "session:la:".
func NewRedisLimiter(redisURL, prefix string, maxAttempts int, window time.Duration) (LoginLimiter, error) {
	if prefix == "" {
		prefix = "session:la:"
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	return &redisLimiter{
		rdb:         rdb,
		prefix:      prefix,
		maxAttempts: maxAttempts,
		window:      window,
	}, nil
}

func (l *redisLimiter) key(username string) string { return l.prefix + username }

func (l *redisLimiter) Allow(ctx context.Context, username string) (bool, error) {
	n, err := l.rdb.Get(ctx, l.key(username)).Int()
	if err != nil {
		if err == redis.Nil {
			return true, nil
		}

		return false, err
	}

	return n < l.maxAttempts, nil
}

// RecordFailure инкрементирует счётчик и продлевает окно.
// INCR+EXPIRE в одном pipeline, чтобы ключ не завис без TTL.
func (l *redisLimiter) RecordFailure(ctx context.Context, username string) error {
	pipe := l.rdb.TxPipeline()
	pipe.Incr(ctx, l.key(username))
	pipe.Expire(ctx, l.key(username), l.window)

	_, err := pipe.Exec(ctx)
	return err
}

func (l *redisLimiter) Reset(ctx context.Context, username string) error {
	return l.rdb.Del(ctx, l.key(username)).Err()
}

func (l *redisLimiter) Close() error { return l.rdb.Close() }
