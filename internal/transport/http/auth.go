package http

import (
	"net/http"

	"github.com/pribylovaa/go-task-planner/session-service/internal/service"
	"github.com/pribylovaa/go-task-planner/session-service/internal/transport/http/apierr"
	"github.com/pribylovaa/go-task-planner/session-service/internal/transport/http/middleware"
)

func (h *Handlers) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var in credentialsRequest
	if err := decodeStrict(r, &in); err != nil {
		apierr.WriteError(w, r, apierr.ErrBadRequest)
		return
	}

	pair, user, err := h.Svc.RegisterUser(r.Context(), in.Username, in.Password)
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTokenPairResponse(pair, user))
}

func (h *Handlers) LoginUser(w http.ResponseWriter, r *http.Request) {
	var in credentialsRequest
	if err := decodeStrict(r, &in); err != nil {
		apierr.WriteError(w, r, apierr.ErrBadRequest)
		return
	}

	pair, user, err := h.Svc.Login(r.Context(), in.Username, in.Password)
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toTokenPairResponse(pair, user))
}

func (h *Handlers) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if err := decodeStrict(r, &in); err != nil {
		apierr.WriteError(w, r, apierr.ErrBadRequest)
		return
	}

	pair, user, err := h.Svc.Refresh(r.Context(), in.RefreshToken)
	if err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toTokenPairResponse(pair, user))
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		apierr.WriteError(w, r, service.ErrInvalidToken)
		return
	}

	if err := h.Svc.Logout(r.Context(), user.ID); err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, okResponse{Ok: true})
}

func (h *Handlers) LogoutAll(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		apierr.WriteError(w, r, service.ErrInvalidToken)
		return
	}

	if err := h.Svc.InvalidateAllSessions(r.Context(), user.ID); err != nil {
		apierr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, okResponse{Ok: true})
}

// ValidateToken — серверная проверка access-токена для внутренних клиентов.
// Невалидный токен здесь НЕ ошибка: ответ 200 с valid=false, чтобы
// вызывающий мог отличить "токен плохой" от "сервис недоступен".
func (h *Handlers) ValidateToken(w http.ResponseWriter, r *http.Request) {
	var in validateRequest
	if err := decodeStrict(r, &in); err != nil {
		apierr.WriteError(w, r, apierr.ErrBadRequest)
		return
	}

	claims, err := h.Svc.ValidateAccess(r.Context(), in.AccessToken)
	if err != nil {
		writeJSON(w, http.StatusOK, validateResponse{Valid: false})
		return
	}

	out := validateResponse{
		Valid:    true,
		Username: claims.Subject,
		Roles:    claims.Roles,
	}
	if claims.ExpiresAt != nil {
		exp := claims.ExpiresAt.Time
		out.ExpiresAt = &exp
	}

	writeJSON(w, http.StatusOK, out)
}

// Session — whoami по access-токену (identity кладёт RequireAuth).
func (h *Handlers) Session(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		apierr.WriteError(w, r, service.ErrInvalidToken)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}
