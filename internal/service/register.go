package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/pribylovaa/go-task-planner/session-service/internal/models"
	"github.com/pribylovaa/go-task-planner/session-service/internal/storage"
)

// defaultRoles — роли, назначаемые новому пользователю при регистрации.
var defaultRoles = []string{"user"}

// RegisterUser регистрирует нового пользователя и сразу открывает сессию.
func (s *Service) RegisterUser(ctx context.Context, username, password string) (*models.TokenPair, *models.User, error) {
	const op = "service.register.RegisterUser"

	normUsername, err := validateUsername(username)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidUsername)
	}

	if err := validatePassword(password); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	_, err = s.storage.UserByUsername(ctx, normUsername)
	if err == nil {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrUsernameTaken)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Username:     normUsername,
		PasswordHash: string(hash),
		Roles:        append([]string(nil), defaultRoles...),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.storage.SaveUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, nil, fmt.Errorf("%s: %w", op, ErrUsernameTaken)
		}

		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	return pair, user, nil
}

// validateUsername проверяет формат username и приводит к нижнему регистру.
// Политика: 3..32 символа, латиница/цифры/._-, первый символ — буква.
func validateUsername(raw string) (string, error) {
	const op = "service.register.validateUsername"

	username := normalizeUsername(raw)
	if len(username) < 3 || len(username) > 32 {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidUsername)
	}

	for i, r := range username {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			if i == 0 {
				return "", fmt.Errorf("%s: %w", op, ErrInvalidUsername)
			}
		default:
			return "", fmt.Errorf("%s: %w", op, ErrInvalidUsername)
		}
	}

	return username, nil
}

// validatePassword проверяет минимальные требования к паролю.
// Политика по умолчанию: длина >= 8, хотя бы одна строчная, заглавная, цифра и спецсимвол.
func validatePassword(pw string) error {
	const op = "service.register.validatePassword"

	if len(pw) == 0 {
		return fmt.Errorf("%s: %w", op, ErrEmptyPassword)
	}

	if len([]rune(pw)) < 8 {
		return fmt.Errorf("%s: %w", op, ErrWeakPassword)
	}

	var hasLower, hasUpper, hasDigit, hasSpecial bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if !(hasLower && hasUpper && hasDigit && hasSpecial) {
		return fmt.Errorf("%s: %w", op, ErrWeakPassword)
	}

	return nil
}
