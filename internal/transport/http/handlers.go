package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/pribylovaa/go-task-planner/session-service/internal/models"
	"github.com/pribylovaa/go-task-planner/session-service/internal/service"
)

// Handlers агрегирует зависимости хендлеров.
type Handlers struct {
	Svc *service.Service
}

func NewHandlers(svc *service.Service) *Handlers {
	return &Handlers{Svc: svc}
}

// ---- DTO ----

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type validateRequest struct {
	AccessToken string `json:"access_token"`
}

type userResponse struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

type tokenPairResponse struct {
	AccessToken     string       `json:"access_token"`
	RefreshToken    string       `json:"refresh_token"`
	AccessExpiresAt time.Time    `json:"access_expires_at"`
	User            userResponse `json:"user"`
}

type validateResponse struct {
	Valid     bool       `json:"valid"`
	Username  string     `json:"username,omitempty"`
	Roles     []string   `json:"roles,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type okResponse struct {
	Ok bool `json:"ok"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:       u.ID.String(),
		Username: u.Username,
		Roles:    u.Roles,
	}
}

func toTokenPairResponse(pair *models.TokenPair, user *models.User) tokenPairResponse {
	return tokenPairResponse{
		AccessToken:     pair.AccessToken,
		RefreshToken:    pair.RefreshToken,
		AccessExpiresAt: pair.AccessExpiresAt,
		User:            toUserResponse(user),
	}
}

// writeJSON — единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierr.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict — строгий JSON-декодер: запрещаем неизвестные поля.
func decodeStrict(r *http.Request, value any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(value)
}
