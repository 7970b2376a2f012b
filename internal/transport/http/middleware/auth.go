package middleware

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/pribylovaa/go-task-planner/session-service/internal/models"
	"github.com/pribylovaa/go-task-planner/session-service/internal/service"
	"github.com/pribylovaa/go-task-planner/session-service/internal/token"
	"github.com/pribylovaa/go-task-planner/session-service/internal/transport/http/apierr"
)

type identityKey struct{}
type claimsKey struct{}

// AuthBearer извлекает Bearer-токен из Authorization и кладёт "сырой" токен
// в контекст по ключу CtxAuthToken. Токен здесь не проверяется — это
// делает RequireAuth на защищённых маршрутах.
func AuthBearer() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")

			if auth != "" {
				const prefix = "Bearer "
				if strings.HasPrefix(auth, prefix) && len(auth) > len(prefix) {
					tok := strings.TrimSpace(auth[len(prefix):])

					if tok != "" {
						ctx := context.WithValue(r.Context(), CtxAuthToken, tok)
						r = r.WithContext(ctx)
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth — входящий гейт защищённых маршрутов:
//  1. берёт "сырой" токен из контекста (положен AuthBearer);
//  2. проверяет его как access-токен;
//  3. загружает пользователя по subject и кладёт identity+claims в контекст.
//
// Любой провал — единый 401 через apierr, без различения причин наружу.
func RequireAuth(svc *service.Service) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, _ := r.Context().Value(CtxAuthToken).(string)
			if raw == "" {
				apierr.WriteError(w, r, service.ErrInvalidToken)
				return
			}

			claims, err := svc.ValidateAccess(r.Context(), raw)
			if err != nil {
				apierr.WriteError(w, r, err)
				return
			}

			user, err := svc.Identity(r.Context(), claims.Subject)
			if err != nil {
				apierr.WriteError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey{}, user)
			ctx = context.WithValue(ctx, claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole пускает дальше только пользователей с указанной ролью.
// Ставится строго после RequireAuth.
func RequireRole(role string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFrom(r.Context())
			if !ok {
				apierr.WriteError(w, r, service.ErrInvalidToken)
				return
			}
			if !slices.Contains(user.Roles, role) {
				apierr.WriteError(w, r, apierr.ErrForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// UserFrom достаёт identity текущего запроса (положен RequireAuth).
func UserFrom(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(identityKey{}).(*models.User)
	return user, ok && user != nil
}

// ClaimsFrom достаёт claims access-токена текущего запроса.
func ClaimsFrom(ctx context.Context) (*token.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*token.Claims)
	return claims, ok && claims != nil
}
