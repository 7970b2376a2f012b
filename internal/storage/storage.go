package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-task-planner/session-service/internal/models"
)

var (
	// ErrNotFound — запись не найдена (пользователь/refresh-сессия).
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (username).
	ErrAlreadyExists = errors.New("already exists")
)

// UserStorage выполняет операции над пользователями.
type UserStorage interface {
	// SaveUser создаёт нового пользователя в БД.
	SaveUser(ctx context.Context, user *models.User) error
	// UserByUsername находит пользователя по username.
	UserByUsername(ctx context.Context, username string) (*models.User, error)
	// UserByID находит пользователя по ID.
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// RefreshTokenStorage выполняет операции над refresh-сессиями.
// Инвариант "не более одной живой сессии на пользователя" обеспечивается
// хранилищем: строка ключуется по владельцу, Upsert перезаписывает её на месте.
type RefreshTokenStorage interface {
	// UpsertRefreshToken вставляет сессию владельца или перезаписывает существующую.
	UpsertRefreshToken(ctx context.Context, token *models.RefreshToken) error
	// RefreshTokenByHash находит сессию по хэшу предъявленного токена.
	RefreshTokenByHash(ctx context.Context, hash string) (*models.RefreshToken, error)
	// DeleteRefreshTokenByOwner удаляет сессию владельца; отсутствие строки — не ошибка.
	DeleteRefreshTokenByOwner(ctx context.Context, owner uuid.UUID) error
	// DeleteExpiredRefreshTokens удаляет все сессии с expires_at < now,
	// возвращает количество удалённых строк.
	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

// Storage задаёт контракт работы с БД.
type Storage interface {
	UserStorage
	RefreshTokenStorage
	Close()
}
