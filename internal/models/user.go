package models

import (
	"time"

	"github.com/google/uuid"
)

// User - модель пользователя планировщика.
// Roles хранит роли в порядке назначения; порядок важен для claims access-токена.
type User struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string
	Roles        []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
