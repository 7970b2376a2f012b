// service содержит бизнес-логику session-сервиса: регистрацию и вход
// пользователей, ротацию refresh-сессий и проверку access-токенов.
// Выпуск/разбор токенов делегируется кодеку (internal/token), персистентность —
// хранилищу через интерфейсы из пакета storage.
//
// Основные аспекты:
//   - Service не хранит состояние запроса; экземпляр безопасен для
//     конкурентного использования при потокобезопасном storage.Storage.
//   - Service — единственный писатель refresh-сессий; никакой другой
//     компонент строки refresh_tokens не мутирует.
//   - Ошибки возвращаются типизированными sentinel-значениями и далее
//     маппятся транспортом на HTTP-статусы (см. комментарии ниже).
package service

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/pribylovaa/go-task-planner/session-service/internal/cache"
	"github.com/pribylovaa/go-task-planner/session-service/internal/storage"
	"github.com/pribylovaa/go-task-planner/session-service/internal/token"
)

var (
	// ErrInvalidCredentials — пара логин/пароль неверна или пользователь не найден.
	// Формулировка едина, чтобы не раскрывать существование username. HTTP 401.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken — токен некорректен по формату/подписи/виду. HTTP 401.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenNotFound — refresh-токен корректен криптографически, но в хранилище
	// его нет: он уже ротирован либо никогда не выпускался этим сервером. HTTP 401.
	ErrTokenNotFound = errors.New("token not found")

	// ErrTokenExpired — срок действия токена/сессии истёк. HTTP 401.
	ErrTokenExpired = errors.New("token expired")

	// ErrUsernameTaken — username уже занят другим пользователем. HTTP 409.
	ErrUsernameTaken = errors.New("username already taken")

	// ErrInvalidUsername — username не проходит политику валидации. HTTP 400.
	ErrInvalidUsername = errors.New("invalid username format")

	// ErrWeakPassword — пароль не удовлетворяет политикам сложности. HTTP 400.
	ErrWeakPassword = errors.New("password is too weak")

	// ErrEmptyPassword — пароль пустой. HTTP 400.
	ErrEmptyPassword = errors.New("password is empty")

	// ErrLoginThrottled — превышен лимит неудачных попыток входа. HTTP 429.
	ErrLoginThrottled = errors.New("too many login attempts")
)

// Service реализует жизненный цикл сессий.
type Service struct {
	storage storage.Storage
	codec   *token.Codec
	limiter cache.LoginLimiter // может быть nil, если троттлинг не сконфигурирован
}

// New создаёт новый экземпляр Service.
func New(storage storage.Storage, codec *token.Codec) *Service {
	return &Service{
		storage: storage,
		codec:   codec,
	}
}

// SetLoginLimiter устанавливает троттлинг логина (опционально).
func (s *Service) SetLoginLimiter(l cache.LoginLimiter) {
	s.limiter = l
}

// Codec возвращает кодек токенов — для транспортного гейта входящих запросов.
func (s *Service) Codec() *token.Codec {
	return s.codec
}

// normalizeUsername приводит username к канонической форме хранения:
// обрезка пробелов + нижний регистр. Применяется и при регистрации, и при
// входе, чтобы "Alice" и "alice" были одним и тем же аккаунтом — в том числе
// для ключей троттлинга.
func normalizeUsername(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// hashToken — sha256 от предъявляемой строки токена в base64url.
// В хранилище лежит только хэш; поиск сессии идёт по хэшу предъявленного
// значения, так что для клиента токен остаётся непрозрачным bearer-секретом.
func hashToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
