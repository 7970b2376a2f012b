package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/pribylovaa/go-task-planner/session-service/internal/models"
	"github.com/pribylovaa/go-task-planner/session-service/internal/pkg/log"
	"github.com/pribylovaa/go-task-planner/session-service/internal/pkg/redact"
	"github.com/pribylovaa/go-task-planner/session-service/internal/storage"
	"github.com/pribylovaa/go-task-planner/session-service/internal/token"
)

// Login выполняет вход по username+пароль и выпускает новую пару токенов.
// Refresh-сессия пользователя перезаписывается upsert'ом: повторный логин
// не плодит сессии, а сменяет единственную существующую.
func (s *Service) Login(ctx context.Context, username, password string) (*models.TokenPair, *models.User, error) {
	const op = "service.session.Login"

	lg := log.From(ctx)

	// Каноническая форма — как при регистрации: иначе "Alice" не смогла бы
	// войти в аккаунт, сохранённый как "alice", а вариации регистра
	// обходили бы окно троттлинга.
	username = normalizeUsername(username)

	if username == "" || password == "" {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, username)
		if err != nil {
			// Троттлинг — best effort: при недоступном Redis вход не блокируем.
			lg.Warn("login_limiter_unavailable",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		} else if !allowed {
			lg.Warn("login_throttled",
				slog.String("op", op),
				slog.String("username", redact.Username(username)),
			)
			return nil, nil, fmt.Errorf("%s: %w", op, ErrLoginThrottled)
		}
	}

	user, err := s.storage.UserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.recordLoginFailure(ctx, username)
			return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		s.recordLoginFailure(ctx, username)
		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, username); err != nil {
			lg.Warn("login_limiter_reset_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		}
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	return pair, user, nil
}

// Refresh обновляет пару токенов по refresh-токену.
//
// Порядок проверок фиксирован:
//  1. чистая проверка кодеком (подпись/срок/вид) — дешёвое отсечение мусора
//     до похода в хранилище; провал — ErrInvalidToken;
//  2. поиск сессии по хэшу предъявленного значения; отсутствие —
//     ErrTokenNotFound (в т.ч. replay токена, уже ротированного прочь);
//  3. срок сессии в хранилище авторитетен: просрочена — строка удаляется,
//     возвращается ErrTokenExpired;
//  4. выпуск новой пары и перезапись сессии на месте.
//
// Гонка двух Refresh по одному и тому же токену разрешается хранилищем:
// чей upsert закоммитился первым — тот и выиграл, второй получает
// ErrTokenNotFound и вынужден логиниться заново.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, *models.User, error) {
	const op = "service.session.Refresh"

	lg := log.From(ctx)

	if !s.codec.IsValidRefresh(refreshToken) {
		return nil, nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	rec, err := s.storage.RefreshTokenByHash(ctx, hashToken(refreshToken))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			lg.Warn("refresh_lookup_not_found",
				slog.String("op", op),
			)
			return nil, nil, fmt.Errorf("%s: %w", op, ErrTokenNotFound)
		}

		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	if !rec.ExpiresAt.After(s.codec.Now()) {
		if err := s.storage.DeleteRefreshTokenByOwner(ctx, rec.UserID); err != nil {
			lg.Error("expired_session_delete_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		}

		lg.Warn("refresh_expired",
			slog.String("op", op),
			slog.String("user_id", rec.UserID.String()),
		)
		return nil, nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
	}

	user, err := s.storage.UserByID(ctx, rec.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	return pair, user, nil
}

// Logout завершает сессию пользователя: удаляет его refresh-сессию.
// Идемпотентен — повторный вызов без сессии не является ошибкой.
// Уже выданный access-токен при этом продолжает действовать до естественного
// истечения: отзыв stateless-токена без реестра отзыва невозможен.
func (s *Service) Logout(ctx context.Context, userID uuid.UUID) error {
	const op = "service.session.Logout"

	if err := s.storage.DeleteRefreshTokenByOwner(ctx, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// InvalidateAllSessions завершает все сессии пользователя.
// В модели "одна сессия на пользователя" эффект совпадает с Logout; операция
// существует отдельно, потому что вызывается из другой точки
// ("выйти на всех устройствах", side-effect сброса пароля).
func (s *Service) InvalidateAllSessions(ctx context.Context, userID uuid.UUID) error {
	const op = "service.session.InvalidateAllSessions"

	if err := s.storage.DeleteRefreshTokenByOwner(ctx, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// CleanupExpired удаляет все просроченные refresh-сессии и возвращает
// количество удалённых. Безопасен при конкурентных Login/Refresh: гонка
// delete/upsert по одной строке разрешается атомарностью хранилища.
func (s *Service) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	const op = "service.session.CleanupExpired"

	n, err := s.storage.DeleteExpiredRefreshTokens(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

// ValidateAccess проверяет access-токен и возвращает его claims
// (subject=username, роли в исходном порядке) для входящего гейта.
func (s *Service) ValidateAccess(ctx context.Context, accessToken string) (*token.Claims, error) {
	const op = "service.session.ValidateAccess"

	claims, err := s.codec.Validate(accessToken, token.KindAccess)
	if err != nil {
		if errors.Is(err, token.ErrTokenExpired) {
			return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
		}

		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return claims, nil
}

// Identity возвращает пользователя по subject валидного access-токена.
// Отсутствие пользователя маппится в ErrInvalidToken: токен формально
// корректен, но его владельца больше нет.
func (s *Service) Identity(ctx context.Context, username string) (*models.User, error) {
	const op = "service.session.Identity"

	user, err := s.storage.UserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// issuePair выпускает новую пару access+refresh и перезаписывает
// refresh-сессию пользователя. Срок сессии в хранилище зеркалирует
// exp-claim внутри refresh-токена: оба ставятся из одного выпуска.
func (s *Service) issuePair(ctx context.Context, user *models.User) (*models.TokenPair, error) {
	const op = "service.session.issuePair"

	lg := log.From(ctx)

	accessToken, err := s.codec.IssueAccess(user.Username, user.Roles)
	if err != nil {
		lg.Error("access_token_sign_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	refreshToken, err := s.codec.IssueRefresh(user.Username)
	if err != nil {
		lg.Error("refresh_token_sign_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	refreshExp, err := s.codec.ExpiresAt(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	accessExp, err := s.codec.ExpiresAt(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rec := &models.RefreshToken{
		UserID:    user.ID,
		TokenHash: hashToken(refreshToken),
		CreatedAt: s.codec.Now(),
		ExpiresAt: refreshExp,
	}

	if err := s.storage.UpsertRefreshToken(ctx, rec); err != nil {
		lg.Error("refresh_session_upsert_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.TokenPair{
		AccessToken:     accessToken,
		RefreshToken:    refreshToken,
		AccessExpiresAt: accessExp,
	}, nil
}

// recordLoginFailure — best-effort учёт неудачной попытки входа.
func (s *Service) recordLoginFailure(ctx context.Context, username string) {
	if s.limiter == nil {
		return
	}

	if err := s.limiter.RecordFailure(ctx, username); err != nil {
		log.From(ctx).Warn("login_failure_record_failed",
			slog.String("err", err.Error()),
		)
	}
}
