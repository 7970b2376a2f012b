package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pribylovaa/go-task-planner/session-service/internal/models"
	"github.com/pribylovaa/go-task-planner/session-service/internal/service"
	"github.com/pribylovaa/go-task-planner/session-service/internal/storage"
	"github.com/pribylovaa/go-task-planner/session-service/internal/token"
	"github.com/pribylovaa/go-task-planner/session-service/mocks"
)

type errEnvelope struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id,omitempty"`
	} `json:"error"`
}

func newTestRouter(t *testing.T) (http.Handler, *service.Service, *mocks.MockStorage) {
	t.Helper()

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	st := mocks.NewMockStorage(ctrl)
	codec := token.New(token.Config{
		Secret:     "test-secret-0123456789abcdef",
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
		Issuer:     "session-service",
		Audience:   []string{"task-planner"},
	})

	svc := service.New(st, codec)
	router := NewRouter(svc, Options{})

	return router, svc, st
}

func seedUser(t *testing.T, username, password string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)

	now := time.Now().UTC()
	return &models.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: string(hash),
		Roles:        []string{"user"},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func doJSON(t *testing.T, router http.Handler, method, target string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func TestRegister_OK(t *testing.T) {
	router, _, st := newTestRouter(t)

	st.EXPECT().
		UserByUsername(gomock.Any(), "newuser").
		Return(nil, storage.ErrNotFound)
	st.EXPECT().
		SaveUser(gomock.Any(), gomock.Any()).
		Return(nil)
	st.EXPECT().
		UpsertRefreshToken(gomock.Any(), gomock.Any()).
		Return(nil)

	rr := doJSON(t, router, http.MethodPost, "/auth/register", map[string]string{
		"username": "newuser",
		"password": "Sup3r-secret",
	}, nil)

	require.Equal(t, http.StatusCreated, rr.Code)

	out := decodeBody[tokenPairResponse](t, rr)
	require.NotEmpty(t, out.AccessToken)
	require.NotEmpty(t, out.RefreshToken)
	require.Equal(t, "newuser", out.User.Username)
	require.Equal(t, []string{"user"}, out.User.Roles)
}

func TestRegister_UsernameTaken(t *testing.T) {
	router, _, st := newTestRouter(t)

	st.EXPECT().
		UserByUsername(gomock.Any(), "taken").
		Return(seedUser(t, "taken", "Sup3r-secret"), nil)

	rr := doJSON(t, router, http.MethodPost, "/auth/register", map[string]string{
		"username": "taken",
		"password": "Sup3r-secret",
	}, nil)

	require.Equal(t, http.StatusConflict, rr.Code)

	env := decodeBody[errEnvelope](t, rr)
	require.Equal(t, "already_exists", env.Error.Code)
}

func TestRegister_InvalidInput(t *testing.T) {
	router, _, _ := newTestRouter(t)

	// Слабый пароль.
	rr := doJSON(t, router, http.MethodPost, "/auth/register", map[string]string{
		"username": "gooduser",
		"password": "short",
	}, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	// Неизвестное поле в JSON.
	rr = doJSON(t, router, http.MethodPost, "/auth/register", map[string]string{
		"username": "gooduser",
		"password": "Sup3r-secret",
		"extra":    "nope",
	}, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	env := decodeBody[errEnvelope](t, rr)
	require.Equal(t, "invalid_argument", env.Error.Code)
}

func TestLogin_OK(t *testing.T) {
	router, _, st := newTestRouter(t)

	user := seedUser(t, "alice", "Sup3r-secret")

	st.EXPECT().
		UserByUsername(gomock.Any(), "alice").
		Return(user, nil)
	st.EXPECT().
		UpsertRefreshToken(gomock.Any(), gomock.Any()).
		Return(nil)

	rr := doJSON(t, router, http.MethodPost, "/auth/login", map[string]string{
		"username": "alice",
		"password": "Sup3r-secret",
	}, nil)

	require.Equal(t, http.StatusOK, rr.Code)

	out := decodeBody[tokenPairResponse](t, rr)
	require.NotEmpty(t, out.AccessToken)
	require.NotEmpty(t, out.RefreshToken)
	require.Equal(t, user.ID.String(), out.User.ID)
}

func TestLogin_WrongPassword(t *testing.T) {
	router, _, st := newTestRouter(t)

	st.EXPECT().
		UserByUsername(gomock.Any(), "alice").
		Return(seedUser(t, "alice", "Sup3r-secret"), nil)

	rr := doJSON(t, router, http.MethodPost, "/auth/login", map[string]string{
		"username": "alice",
		"password": "wrong-password",
	}, nil)

	require.Equal(t, http.StatusUnauthorized, rr.Code)

	env := decodeBody[errEnvelope](t, rr)
	require.Equal(t, "invalid_credentials", env.Error.Code)
}

func TestRefresh_OK(t *testing.T) {
	router, _, st := newTestRouter(t)

	user := seedUser(t, "alice", "Sup3r-secret")

	// Получаем валидную пару через Login.
	st.EXPECT().
		UserByUsername(gomock.Any(), "alice").
		Return(user, nil)
	st.EXPECT().
		UserByID(gomock.Any(), user.ID).
		Return(user, nil)

	var saved *models.RefreshToken
	st.EXPECT().
		UpsertRefreshToken(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, rec *models.RefreshToken) error {
			saved = rec
			return nil
		}).
		Times(2)

	login := doJSON(t, router, http.MethodPost, "/auth/login", map[string]string{
		"username": "alice",
		"password": "Sup3r-secret",
	}, nil)
	require.Equal(t, http.StatusOK, login.Code)
	pair := decodeBody[tokenPairResponse](t, login)

	require.NotNil(t, saved)
	firstHash := saved.TokenHash

	st.EXPECT().
		RefreshTokenByHash(gomock.Any(), firstHash).
		Return(saved, nil)

	rr := doJSON(t, router, http.MethodPost, "/auth/refresh", map[string]string{
		"refresh_token": pair.RefreshToken,
	}, nil)

	require.Equal(t, http.StatusOK, rr.Code)

	out := decodeBody[tokenPairResponse](t, rr)
	require.NotEmpty(t, out.RefreshToken)
	require.NotEqual(t, pair.RefreshToken, out.RefreshToken)
	require.NotEqual(t, firstHash, saved.TokenHash)
}

func TestRefresh_GarbageToken(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/auth/refresh", map[string]string{
		"refresh_token": "not-a-jwt",
	}, nil)

	require.Equal(t, http.StatusUnauthorized, rr.Code)

	env := decodeBody[errEnvelope](t, rr)
	require.Equal(t, "unauthenticated", env.Error.Code)
}

func TestValidate_GoodAndBadToken(t *testing.T) {
	router, svc, _ := newTestRouter(t)

	access, err := svc.Codec().IssueAccess("alice", []string{"user", "admin"})
	require.NoError(t, err)

	// Валидный токен.
	rr := doJSON(t, router, http.MethodPost, "/auth/validate", map[string]string{
		"access_token": access,
	}, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	out := decodeBody[validateResponse](t, rr)
	require.True(t, out.Valid)
	require.Equal(t, "alice", out.Username)
	require.Equal(t, []string{"user", "admin"}, out.Roles)
	require.NotNil(t, out.ExpiresAt)

	// Мусор — это НЕ ошибка транспорта: 200 и valid=false.
	rr = doJSON(t, router, http.MethodPost, "/auth/validate", map[string]string{
		"access_token": "garbage",
	}, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	out = decodeBody[validateResponse](t, rr)
	require.False(t, out.Valid)
	require.Empty(t, out.Username)
}

func TestSession_RequiresAuth(t *testing.T) {
	router, svc, st := newTestRouter(t)

	user := seedUser(t, "alice", "Sup3r-secret")
	access, err := svc.Codec().IssueAccess(user.Username, user.Roles)
	require.NoError(t, err)

	st.EXPECT().
		UserByUsername(gomock.Any(), "alice").
		Return(user, nil)

	// С токеном — identity.
	rr := doJSON(t, router, http.MethodGet, "/auth/session", nil, map[string]string{
		"Authorization": "Bearer " + access,
	})
	require.Equal(t, http.StatusOK, rr.Code)

	out := decodeBody[userResponse](t, rr)
	require.Equal(t, user.ID.String(), out.ID)
	require.Equal(t, "alice", out.Username)

	// Без токена — 401.
	rr = doJSON(t, router, http.MethodGet, "/auth/session", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLogout_DeletesSession(t *testing.T) {
	router, svc, st := newTestRouter(t)

	user := seedUser(t, "alice", "Sup3r-secret")
	access, err := svc.Codec().IssueAccess(user.Username, user.Roles)
	require.NoError(t, err)

	st.EXPECT().
		UserByUsername(gomock.Any(), "alice").
		Return(user, nil)
	st.EXPECT().
		DeleteRefreshTokenByOwner(gomock.Any(), user.ID).
		Return(nil)

	rr := doJSON(t, router, http.MethodPost, "/auth/logout", nil, map[string]string{
		"Authorization": "Bearer " + access,
	})

	require.Equal(t, http.StatusOK, rr.Code)

	out := decodeBody[okResponse](t, rr)
	require.True(t, out.Ok)
}

func TestLogoutAll_DeletesSession(t *testing.T) {
	router, svc, st := newTestRouter(t)

	user := seedUser(t, "alice", "Sup3r-secret")
	access, err := svc.Codec().IssueAccess(user.Username, user.Roles)
	require.NoError(t, err)

	st.EXPECT().
		UserByUsername(gomock.Any(), "alice").
		Return(user, nil)
	st.EXPECT().
		DeleteRefreshTokenByOwner(gomock.Any(), user.ID).
		Return(nil)

	rr := doJSON(t, router, http.MethodPost, "/auth/logout_all", nil, map[string]string{
		"Authorization": "Bearer " + access,
	})

	require.Equal(t, http.StatusOK, rr.Code)

	out := decodeBody[okResponse](t, rr)
	require.True(t, out.Ok)
}

func TestRequestID_EchoedInErrorEnvelope(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/auth/refresh", map[string]string{
		"refresh_token": "not-a-jwt",
	}, map[string]string{
		"X-Request-Id": "rid-echo-1",
	})

	require.Equal(t, http.StatusUnauthorized, rr.Code)

	env := decodeBody[errEnvelope](t, rr)
	require.Equal(t, "rid-echo-1", env.Error.RequestID)
}
