package middleware

import (
	"context"
	"net/http"
	"time"
)

// Timeout ограничивает общее время обработки запроса дедлайном d.
// Уже установленный дедлайн (например, от вышестоящего прокси) не
// перекрывается. d<=0 отключает ограничение — обработчик возвращается
// без обёртки.
func Timeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if _, ok := ctx.Deadline(); ok {
				next.ServeHTTP(w, r)
				return
			}

			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
