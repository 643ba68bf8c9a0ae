package handlers

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/papertrade/src/config"
	"github.com/username/papertrade/src/database"
	"github.com/username/papertrade/src/model"
	"github.com/username/papertrade/src/security"
	_ "modernc.org/sqlite"
)

const testSchema = `
CREATE TABLE users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT NOT NULL UNIQUE,
    password TEXT NOT NULL,
    cash TEXT NOT NULL DEFAULT '10000',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE transactions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL,
    stock_symbol TEXT NOT NULL,
    stock_name TEXT NOT NULL,
    price TEXT NOT NULL,
    quantity INTEGER NOT NULL,
    amount TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (user_id) REFERENCES users (id)
);
CREATE TABLE sessions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL,
    token TEXT NOT NULL UNIQUE,
    user_agent TEXT,
    client_ip TEXT,
    expires_at TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (user_id) REFERENCES users (id)
);`

// newTestDB swaps the package-global handle for an in-memory database so
// handlers hit an isolated store.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	previous := database.DB
	database.DB = db
	t.Cleanup(func() {
		database.DB = previous
		db.Close()
	})
	return db
}

func newAuthService() *security.AuthService {
	return security.NewAuthService(config.Cfg.JWTSecret)
}

func createTestUser(t *testing.T, username, password string) *model.User {
	t.Helper()
	user := &model.User{
		Username: username,
		Cash:     decimal.RequireFromString("10000"),
	}
	require.NoError(t, user.HashPassword(password))
	require.NoError(t, user.CreateUser(database.DB))
	return user
}

func postForm(handler http.HandlerFunc, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

func sessionCookie(rr *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == sessionCookieName {
			return c
		}
	}
	return nil
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestUserHandler_Register(t *testing.T) {
	t.Run("weak password is rejected", func(t *testing.T) {
		db := newTestDB(t)
		h := NewUserHandler(newAuthService())

		rr := postForm(h.Register, "/register", url.Values{
			"username":     {"alice"},
			"password":     {"weakpass"},
			"confirmation": {"weakpass"},
		})

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "uppercase")
		assert.Equal(t, 0, countRows(t, db, "users"))
	})

	t.Run("mismatched confirmation is rejected", func(t *testing.T) {
		db := newTestDB(t)
		h := NewUserHandler(newAuthService())

		rr := postForm(h.Register, "/register", url.Values{
			"username":     {"alice"},
			"password":     {"Abcdef1!"},
			"confirmation": {"Abcdef1?"},
		})

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "password must match confirmation")
		assert.Equal(t, 0, countRows(t, db, "users"))
	})

	t.Run("successful registration stores hashed password and starting cash", func(t *testing.T) {
		db := newTestDB(t)
		h := NewUserHandler(newAuthService())

		rr := postForm(h.Register, "/register", url.Values{
			"username":     {"alice"},
			"password":     {"Abcdef1!"},
			"confirmation": {"Abcdef1!"},
		})

		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/login", rr.Header().Get("Location"))

		user, err := model.GetUserByUsername(db, "alice")
		require.NoError(t, err)
		assert.NotEqual(t, "Abcdef1!", user.Password)
		assert.NoError(t, user.CheckPassword("Abcdef1!"))
		assert.True(t, user.Cash.Equal(decimal.RequireFromString("10000")))
	})

	t.Run("duplicate username is rejected", func(t *testing.T) {
		db := newTestDB(t)
		createTestUser(t, "alice", "Abcdef1!")
		h := NewUserHandler(newAuthService())

		rr := postForm(h.Register, "/register", url.Values{
			"username":     {"alice"},
			"password":     {"Abcdef1!"},
			"confirmation": {"Abcdef1!"},
		})

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "user already exists")
		assert.Equal(t, 1, countRows(t, db, "users"))
	})
}

func TestUserHandler_Login(t *testing.T) {
	t.Run("unknown user gets the generic failure", func(t *testing.T) {
		db := newTestDB(t)
		h := NewUserHandler(newAuthService())

		rr := postForm(h.Login, "/login", url.Values{
			"username": {"nobody"},
			"password": {"Abcdef1!"},
		})

		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.Contains(t, rr.Body.String(), "invalid username and/or password")
		assert.Nil(t, sessionCookie(rr))
		assert.Equal(t, 0, countRows(t, db, "sessions"))
	})

	t.Run("wrong password gets the same generic failure", func(t *testing.T) {
		db := newTestDB(t)
		createTestUser(t, "alice", "Abcdef1!")
		h := NewUserHandler(newAuthService())

		rr := postForm(h.Login, "/login", url.Values{
			"username": {"alice"},
			"password": {"WrongPw1!"},
		})

		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.Contains(t, rr.Body.String(), "invalid username and/or password")
		assert.Nil(t, sessionCookie(rr))
		assert.Equal(t, 0, countRows(t, db, "sessions"))
	})

	t.Run("successful login sets a session cookie backed by a row", func(t *testing.T) {
		db := newTestDB(t)
		user := createTestUser(t, "alice", "Abcdef1!")
		auth := newAuthService()
		h := NewUserHandler(auth)

		rr := postForm(h.Login, "/login", url.Values{
			"username": {"alice"},
			"password": {"Abcdef1!"},
		})

		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/", rr.Header().Get("Location"))

		cookie := sessionCookie(rr)
		require.NotNil(t, cookie)
		assert.True(t, cookie.HttpOnly)
		assert.NotEmpty(t, cookie.Value)

		session, err := model.GetSessionByToken(db, cookie.Value)
		require.NoError(t, err)
		assert.Equal(t, user.ID, session.UserID)

		subject, err := auth.ValidateToken(cookie.Value)
		require.NoError(t, err)
		assert.Equal(t, strconv.FormatInt(user.ID, 10), subject)
	})
}

func TestUserHandler_Logout(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, "alice", "Abcdef1!")
	auth := newAuthService()
	h := NewUserHandler(auth)

	token, err := auth.GenerateToken(user.ID, time.Hour)
	require.NoError(t, err)
	session := &model.Session{
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, session.CreateSession(db))

	req := httptest.NewRequest(http.MethodGet, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: token})
	rr := httptest.NewRecorder()
	h.Logout(rr, req)

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("Location"))
	assert.Equal(t, 0, countRows(t, db, "sessions"))

	cookie := sessionCookie(rr)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.Negative(t, cookie.MaxAge)
}
