package auth

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/sat-prep/backend/internal/database"
	"github.com/sat-prep/backend/internal/middleware"
	"github.com/sat-prep/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "auth.db") + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := database.Connect(context.Background(), database.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db, database.DriverSQLite))
	return db
}

func post(h http.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(data))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestRegisterLoginMe(t *testing.T) {
	tokens := middleware.NewAuth("test")
	h := NewHandler(newTestDB(t), tokens)

	rec := post(h.Register, models.RegisterRequest{Email: " Ada@Example.com ", Name: "Ada Lovelace", Password: "password1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var reg models.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reg))
	assert.Equal(t, "ada@example.com", reg.User.Email)
	assert.NotEmpty(t, reg.User.ID)
	assert.Regexp(t, `^adalovelace\d{4}$`, reg.User.Username)

	rec = post(h.Login, models.LoginRequest{Email: "ada@example.com", Password: "password1"})
	require.Equal(t, http.StatusOK, rec.Code)
	var login models.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	assert.Equal(t, reg.User.ID, login.User.ID)

	claims, err := tokens.ParseToken(login.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, claims.UserID)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	rec = httptest.NewRecorder()
	tokens.RequireAuth(http.HandlerFunc(h.GetCurrentUser)).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), reg.User.ID)
}

func TestRegisterValidation(t *testing.T) {
	h := NewHandler(newTestDB(t), middleware.NewAuth("test"))

	tests := []struct {
		name string
		req  models.RegisterRequest
	}{
		{"missing email", models.RegisterRequest{Name: "A", Password: "password1"}},
		{"missing name", models.RegisterRequest{Email: "a@b.c", Password: "password1"}},
		{"short password", models.RegisterRequest{Email: "a@b.c", Name: "A", Password: "short"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(h.Register, tt.req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	h := NewHandler(newTestDB(t), middleware.NewAuth("test"))
	req := models.RegisterRequest{Email: "dup@example.com", Name: "Dup", Password: "password1"}

	require.Equal(t, http.StatusCreated, post(h.Register, req).Code)
	assert.Equal(t, http.StatusConflict, post(h.Register, req).Code)
}

func TestLoginWrongPassword(t *testing.T) {
	h := NewHandler(newTestDB(t), middleware.NewAuth("test"))
	require.Equal(t, http.StatusCreated, post(h.Register, models.RegisterRequest{Email: "x@example.com", Name: "X", Password: "password1"}).Code)

	assert.Equal(t, http.StatusUnauthorized, post(h.Login, models.LoginRequest{Email: "x@example.com", Password: "wrong-pass"}).Code)
	assert.Equal(t, http.StatusUnauthorized, post(h.Login, models.LoginRequest{Email: "nobody@example.com", Password: "password1"}).Code)
}
