// token реализует кодек самодостаточных bearer-токенов (JWT, HS256):
// выпуск access/refresh-токенов, разбор и проверку подписи/срока/вида.
//
// Кодек — единственное место, где используется подписывающий секрет.
// Секрет задаётся один раз при создании Codec и не ротируется в рантайме:
// ротация инвалидировала бы все выданные токены.
//
// Проверочные предикаты (IsValidAccess/IsValidRefresh) никогда не возвращают
// ошибку наружу — любой сбой разбора трактуется как "токен невалиден".
// Сравнения времени идут через собственные часы кодека, чтобы тесты могли
// подставить фиксированное время.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Виды токенов. Вид зашивается в claims и проверяется строго:
// access-токен, предъявленный как refresh, невалиден (и наоборот).
const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

var (
	// ErrMalformedToken — строка не разобрана или подпись не сошлась
	// (пустая строка, битый base64, обрезанный payload, чужой ключ, не тот alg).
	ErrMalformedToken = errors.New("malformed token")

	// ErrTokenExpired — токен разобран и подписан корректно, но срок истёк.
	ErrTokenExpired = errors.New("token expired")

	// ErrKindMismatch — вид токена не совпал с ожидаемым вызывающей стороной.
	ErrKindMismatch = errors.New("token kind mismatch")
)

// Claims — строго типизированный payload токена.
// Неизвестные поля при разборе игнорируются; динамических claim-мап нет.
type Claims struct {
	// Roles — роли пользователя в исходном порядке; только у access-токенов.
	Roles []string `json:"roles,omitempty"`
	// Kind — дискриминатор вида токена: access | refresh.
	Kind string `json:"kind"`
	jwt.RegisteredClaims
}

// Config — параметры выпуска и валидации токенов.
type Config struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
	Audience   []string
}

// Codec выпускает и разбирает подписанные токены.
// Экземпляр безопасен для конкурентного использования: всё состояние
// задаётся при создании и дальше только читается.
type Codec struct {
	cfg Config
	now func() time.Time
}

// New создаёт кодек с часами time.Now (UTC).
func New(cfg Config) *Codec {
	return &Codec{
		cfg: cfg,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// NewWithClock создаёт кодек с внешними часами (для тестов).
func NewWithClock(cfg Config, now func() time.Time) *Codec {
	if now == nil {
		return New(cfg)
	}

	return &Codec{cfg: cfg, now: now}
}

// Now возвращает текущее время по часам кодека.
func (c *Codec) Now() time.Time {
	return c.now()
}

// IssueAccess выпускает access-токен для subject с ролями roles.
// TTL фиксирован конфигурацией, не задаётся per-call.
func (c *Codec) IssueAccess(subject string, roles []string) (string, error) {
	const op = "token.codec.IssueAccess"

	signed, err := c.issue(subject, roles, KindAccess, c.cfg.AccessTTL)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// IssueRefresh выпускает refresh-токен для subject. Ролей не несёт.
func (c *Codec) IssueRefresh(subject string) (string, error) {
	const op = "token.codec.IssueRefresh"

	signed, err := c.issue(subject, nil, KindRefresh, c.cfg.RefreshTTL)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

func (c *Codec) issue(subject string, roles []string, kind string, ttl time.Duration) (string, error) {
	now := c.now()

	claims := Claims{
		Roles: roles,
		Kind:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    c.cfg.Issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings(c.cfg.Audience),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return tok.SignedString([]byte(c.cfg.Secret))
}

// Parse разбирает строку токена и проверяет подпись и структурную корректность.
// Срок действия здесь НЕ проверяется: Parse обязан работать и для просроченных
// токенов (ExpiresAt/TTLRemaining), истечение проверяют validate/IsValid*.
func (c *Codec) Parse(raw string) (*Claims, error) {
	const op = "token.codec.Parse"

	if raw == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMalformedToken)
	}

	tok, err := jwt.ParseWithClaims(raw, &Claims{},
		func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, fmt.Errorf("%s: %w", op, ErrMalformedToken)
			}

			return []byte(c.cfg.Secret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrMalformedToken)
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, ErrMalformedToken)
	}

	// Структурный минимум: issuer и срок обязаны присутствовать и совпадать.
	if claims.Issuer != c.cfg.Issuer || claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrMalformedToken)
	}

	// Аудитория: токен обязан нести хотя бы одну из сконфигурированных.
	if !audienceMatch(claims.Audience, c.cfg.Audience) {
		return nil, fmt.Errorf("%s: %w", op, ErrMalformedToken)
	}

	return claims, nil
}

// audienceMatch сообщает, пересекается ли aud токена с ожидаемым списком.
// Пустой ожидаемый список отключает проверку.
func audienceMatch(got jwt.ClaimStrings, want []string) bool {
	if len(want) == 0 {
		return true
	}

	for _, w := range want {
		for _, g := range got {
			if g == w {
				return true
			}
		}
	}

	return false
}

// Validate разбирает токен и проверяет срок действия и вид.
// Порядок ошибок: сначала разбор/подпись (ErrMalformedToken), затем срок
// (ErrTokenExpired), затем вид (ErrKindMismatch).
func (c *Codec) Validate(raw, kind string) (*Claims, error) {
	const op = "token.codec.Validate"

	claims, err := c.Parse(raw)
	if err != nil {
		return nil, err
	}

	if !claims.ExpiresAt.Time.After(c.now()) {
		return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
	}

	if claims.Kind != kind {
		return nil, fmt.Errorf("%s: %w", op, ErrKindMismatch)
	}

	return claims, nil
}

// IsValidAccess сообщает, является ли raw живым access-токеном.
// Никогда не возвращает ошибку и не паникует.
func (c *Codec) IsValidAccess(raw string) bool {
	_, err := c.Validate(raw, KindAccess)
	return err == nil
}

// IsValidRefresh сообщает, является ли raw живым refresh-токеном.
func (c *Codec) IsValidRefresh(raw string) bool {
	_, err := c.Validate(raw, KindRefresh)
	return err == nil
}

// Subject возвращает subject токена.
// Для неразбираемой строки — ErrMalformedToken; вызывающий обязан сначала
// пройти IsValid* либо принять ошибку.
func (c *Codec) Subject(raw string) (string, error) {
	claims, err := c.Parse(raw)
	if err != nil {
		return "", err
	}

	return claims.Subject, nil
}

// ExpiresAt возвращает момент истечения токена.
func (c *Codec) ExpiresAt(raw string) (time.Time, error) {
	claims, err := c.Parse(raw)
	if err != nil {
		return time.Time{}, err
	}

	return claims.ExpiresAt.Time, nil
}

// TTLRemaining возвращает остаток жизни токена; для уже просроченного — 0.
func (c *Codec) TTLRemaining(raw string) (time.Duration, error) {
	exp, err := c.ExpiresAt(raw)
	if err != nil {
		return 0, err
	}

	left := exp.Sub(c.now())
	if left < 0 {
		return 0, nil
	}

	return left, nil
}
