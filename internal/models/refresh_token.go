package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken - единственная живая refresh-сессия пользователя.
//
// Модель "одна сессия на пользователя": строка ключуется по UserID,
// повторный логин или ротация перезаписывают её на месте (upsert),
// а не добавляют новую. TokenHash - sha256 от предъявляемого клиентом
// значения в base64url; сам секрет на сервере не хранится.
type RefreshToken struct {
	UserID    uuid.UUID
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
}
