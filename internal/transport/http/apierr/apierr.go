// apierr стандартизирует ответы об ошибках HTTP-слоя.
// На вход принимает ошибку доменного слоя (service), на выход даёт:
//   - корректный HTTP-статус;
//   - краткое безопасное message без утечки деталей.
//
// Для внутренних ошибок наружу не уходят подробности; детали должны
// попадать в логи на уровне сервера.
package apierr

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pribylovaa/go-task-planner/session-service/internal/service"
)

// Нестандартный код, часто используемый для "клиент закрыл соединение".
const StatusClientClosedRequest = 499

// APIError — единый формат для фронта.
// Code — короткий стабильный код для машиночитаемой обработки на FE.
// Message — безопасное человекочитаемое описание.
// RequestID — прокидывается из X-Request-Id, если есть (для трассировки).
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse — корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ErrBadRequest — локальная ошибка разбора входного JSON.
var ErrBadRequest = errors.New("invalid argument")

// ErrForbidden — аутентифицирован, но не имеет нужной роли.
var ErrForbidden = errors.New("permission denied")

// ToHTTP конвертирует ошибку доменного слоя в HTTP-статус и унифицированный
// ответ для фронта.
//
// Маппинг:
//   - ErrInvalidUsername/ErrWeakPassword/ErrEmptyPassword/ErrBadRequest -> 400;
//   - ErrInvalidCredentials/ErrInvalidToken/ErrTokenNotFound/ErrTokenExpired -> 401
//     (отказ в refresh всегда принуждает к новому логину — тихого
//     восстановления нет);
//   - ErrForbidden -> 403;
//   - ErrUsernameTaken -> 409;
//   - ErrLoginThrottled -> 429;
//   - context.Canceled -> 499; context.DeadlineExceeded -> 504;
//   - err == nil — программная ошибка вызова: 500, чтобы не замаскировать баг;
//   - прочее -> 500/internal (без раскрытия деталей).
func ToHTTP(err error) (int, ErrorResponse) {
	status, code, msg := base(err)

	return status, ErrorResponse{
		Error: APIError{
			Code:    code,
			Message: msg,
		},
	}
}

// WriteError — хелпер для HTTP-хендлеров.
// Пишет корректный статус/тело, добавляет request_id из заголовка, если он есть.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func base(err error) (int, string, string) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, "internal", "internal error"
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrInvalidUsername),
		errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrEmptyPassword):
		return http.StatusBadRequest, "invalid_argument", "invalid argument"
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials", "invalid username or password"
	case errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrTokenNotFound),
		errors.Is(err, service.ErrTokenExpired):
		return http.StatusUnauthorized, "unauthenticated", "unauthenticated"
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "permission_denied", "permission denied"
	case errors.Is(err, service.ErrUsernameTaken):
		return http.StatusConflict, "already_exists", "already exists"
	case errors.Is(err, service.ErrLoginThrottled):
		return http.StatusTooManyRequests, "resource_exhausted", "too many attempts"
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest, "canceled", "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "deadline_exceeded", "deadline exceeded"
	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}
