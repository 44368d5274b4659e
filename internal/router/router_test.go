package router

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"library/internal/auth"
	"library/internal/handler"
	"library/internal/repository/memory"
	"library/internal/service"
)

// memoryTokenStore keeps tokens in a map and ignores TTLs.
type memoryTokenStore struct {
	mu        sync.Mutex
	refresh   map[string][2]interface{}
	blacklist map[string]bool
}

func newMemoryTokenStore() *memoryTokenStore {
	return &memoryTokenStore{refresh: map[string][2]interface{}{}, blacklist: map[string]bool{}}
}

func (s *memoryTokenStore) StoreRefreshToken(_ context.Context, tokenID string, userID uint, username string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh[tokenID] = [2]interface{}{userID, username}
	return nil
}

func (s *memoryTokenStore) GetRefreshToken(_ context.Context, tokenID string) (uint, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.refresh[tokenID]
	if !ok {
		return 0, "", auth.ErrTokenNotFound
	}
	return v[0].(uint), v[1].(string), nil
}

func (s *memoryTokenStore) DeleteRefreshToken(_ context.Context, tokenID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refresh, tokenID)
	return nil
}

func (s *memoryTokenStore) BlacklistAccessToken(_ context.Context, tokenID string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blacklist[tokenID] = true
	return nil
}

func (s *memoryTokenStore) IsAccessTokenBlacklisted(_ context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blacklist[tokenID], nil
}

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	store := memory.New(memory.WithPasswordCost(bcrypt.MinCost))
	logger := service.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	users := service.NewUserService(store, logger)
	_, _, err := users.EnsureLibrarian(context.Background(), "admin", "admin@example.com", "admin-password")
	require.NoError(t, err)

	jwtService := auth.NewJWTService("test-secret")
	tokenStore := newMemoryTokenStore()

	e := echo.New()
	e.Logger.SetOutput(io.Discard)
	Register(e, jwtService, tokenStore, Handlers{
		Auth:  handler.NewAuthHandler(service.NewAuthService(store.Users(), jwtService, tokenStore, logger)),
		Books: handler.NewBookHandler(service.NewBookService(store, logger)),
		Loans: handler.NewLoanHandler(service.NewLoanService(store, logger)),
		Users: handler.NewUserHandler(users),
	}, nil)
	return e
}

func do(t *testing.T, e *echo.Echo, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func login(t *testing.T, e *echo.Echo, username, password string) handler.AuthResponse {
	t.Helper()
	rec := do(t, e, http.MethodPost, "/api/auth/login", "", handler.LoginRequest{Username: username, Password: password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp handler.AuthResponse
	decode(t, rec, &resp)
	return resp
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	decode(t, rec, &body)
	return body.Code
}

func TestRouter_BorrowAndReturnFlow(t *testing.T) {
	e := newTestServer(t)
	admin := login(t, e, "admin", "admin-password").AccessToken

	rec := do(t, e, http.MethodPost, "/api/books", admin, handler.CreateBookRequest{
		Title: "Dune", AuthorName: "Frank Herbert", GenreName: "Sci-Fi", PublishedYear: 1965, Stock: 1,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var book handler.BookResponse
	decode(t, rec, &book)
	assert.True(t, book.Available)

	rec = do(t, e, http.MethodPost, "/api/users", admin, handler.CreateUserRequest{
		Username: "alice", Email: "alice@example.com", Password: "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var alice handler.UserResponse
	decode(t, rec, &alice)
	assert.Equal(t, "student", alice.Role)

	student := login(t, e, "alice", "password123").AccessToken

	rec = do(t, e, http.MethodPost, "/api/loans", student, handler.CreateLoanRequest{BookID: book.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var loan handler.LoanResponse
	decode(t, rec, &loan)
	assert.Equal(t, "active", loan.Status)
	assert.Equal(t, alice.ID, loan.Student.ID)

	rec = do(t, e, http.MethodPost, "/api/loans", student, handler.CreateLoanRequest{BookID: book.ID})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "NO_STOCK", errorCode(t, rec))

	rec = do(t, e, http.MethodGet, fmt.Sprintf("/api/books/%d", book.ID), student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &book)
	assert.Equal(t, 0, book.Stock)

	rec = do(t, e, http.MethodGet, fmt.Sprintf("/api/loans/%d", loan.ID), student, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, e, http.MethodPatch, fmt.Sprintf("/api/loans/%d/return", loan.ID), student, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, e, http.MethodPatch, fmt.Sprintf("/api/loans/%d/return", loan.ID), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &loan)
	assert.Equal(t, "returned", loan.Status)
	assert.NotNil(t, loan.ReturnedAt)

	rec = do(t, e, http.MethodPatch, fmt.Sprintf("/api/loans/%d/return", loan.ID), admin, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "LOAN_ALREADY_RETURNED", errorCode(t, rec))

	rec = do(t, e, http.MethodGet, "/api/loans?status=returned", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var loans []handler.LoanResponse
	decode(t, rec, &loans)
	assert.Len(t, loans, 1)
}

func TestRouter_AccessControl(t *testing.T) {
	e := newTestServer(t)
	admin := login(t, e, "admin", "admin-password")

	rec := do(t, e, http.MethodGet, "/api/books", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, e, http.MethodGet, "/api/books", admin.RefreshToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, e, http.MethodPost, "/api/loans", admin.AccessToken, handler.CreateLoanRequest{BookID: 1})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, e, http.MethodDelete, fmt.Sprintf("/api/users/%d", admin.User.ID), admin.AccessToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "LAST_LIBRARIAN", errorCode(t, rec))

	rec = do(t, e, http.MethodGet, "/api/books/999", admin.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "BOOK_NOT_FOUND", errorCode(t, rec))

	rec = do(t, e, http.MethodGet, "/api/books/abc", admin.AccessToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, e, http.MethodPost, "/api/books", admin.AccessToken, handler.CreateBookRequest{Title: "X"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, e, http.MethodGet, "/api/users/me", admin.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me handler.UserResponse
	decode(t, rec, &me)
	assert.Equal(t, "librarian", me.Role)
}

func TestRouter_LogoutRevokesTokens(t *testing.T) {
	e := newTestServer(t)
	session := login(t, e, "admin", "admin-password")

	rec := do(t, e, http.MethodPost, "/api/auth/refresh", "", handler.RefreshRequest{RefreshToken: session.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, e, http.MethodPost, "/api/auth/logout", session.AccessToken, handler.LogoutRequest{RefreshToken: session.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, e, http.MethodGet, "/api/books", session.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, e, http.MethodPost, "/api/auth/refresh", "", handler.RefreshRequest{RefreshToken: session.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, e, http.MethodPost, "/api/auth/login", "", handler.LoginRequest{Username: "admin", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_HealthCheck(t *testing.T) {
	e := newTestServer(t)
	rec := do(t, e, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
