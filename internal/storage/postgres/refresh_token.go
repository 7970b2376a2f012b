package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pribylovaa/go-task-planner/session-service/internal/models"
	"github.com/pribylovaa/go-task-planner/session-service/internal/storage"
)

// UpsertRefreshToken сохраняет refresh-сессию владельца: вставляет новую строку
// либо перезаписывает существующую на месте (одна живая сессия на пользователя).
// Ротация токена атомарна с точки зрения хранилища: конкурентный Upsert по тому
// же владельцу либо видит строку и обновляет её, либо вставляет заново.
func (s *Storage) UpsertRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	const op = "storage.postgres.UpsertRefreshToken"

	query := `
        INSERT INTO refresh_tokens(user_id, token_hash, created_at, expires_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (user_id) DO UPDATE
        SET token_hash = EXCLUDED.token_hash,
            created_at = EXCLUDED.created_at,
            expires_at = EXCLUDED.expires_at
    `

	_, err := s.db.Exec(ctx, query,
		token.UserID,
		token.TokenHash,
		token.CreatedAt,
		token.ExpiresAt,
	)

	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// RefreshTokenByHash находит refresh-сессию по хэшу предъявленного токена.
// Токен, ротированный ранее, здесь уже не будет найден — его хэш перезаписан.
func (s *Storage) RefreshTokenByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	const op = "storage.postgres.RefreshTokenByHash"

	query := `
        SELECT user_id, token_hash, created_at, expires_at
        FROM refresh_tokens
        WHERE token_hash = $1
    `

	var token models.RefreshToken
	err := s.db.QueryRow(ctx, query, hash).Scan(
		&token.UserID,
		&token.TokenHash,
		&token.CreatedAt,
		&token.ExpiresAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &token, nil
}

// DeleteRefreshTokenByOwner удаляет refresh-сессию владельца.
// Идемпотентна: отсутствие строки не считается ошибкой.
func (s *Storage) DeleteRefreshTokenByOwner(ctx context.Context, owner uuid.UUID) error {
	const op = "storage.postgres.DeleteRefreshTokenByOwner"

	query := `
        DELETE FROM refresh_tokens
        WHERE user_id = $1
    `

	if _, err := s.db.Exec(ctx, query, owner); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// DeleteExpiredRefreshTokens удаляет все просроченные сессии и возвращает
// количество удалённых строк.
func (s *Storage) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.postgres.DeleteExpiredRefreshTokens"

	query := `
        DELETE FROM refresh_tokens
        WHERE expires_at < $1
    `

	cmdTag, err := s.db.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return cmdTag.RowsAffected(), nil
}
