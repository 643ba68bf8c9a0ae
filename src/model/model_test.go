package model

import (
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	_, err = db.Exec(testSchema)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestUser(t *testing.T, db *sql.DB, username string) *User {
	t.Helper()
	user := &User{
		Username: username,
		Password: "not-a-real-hash",
		Cash:     decimal.RequireFromString("10000"),
	}
	require.NoError(t, user.CreateUser(db))
	return user
}

func appendLedgerRow(t *testing.T, db *sql.DB, userID int64, symbol string, quantity int64, createdAt time.Time) {
	t.Helper()
	_, err := db.Exec(`
	INSERT INTO transactions (user_id, stock_symbol, stock_name, price, quantity, amount, created_at)
	VALUES (?, ?, ?, '10', ?, ?, ?)`,
		userID, symbol, symbol+" Co.", quantity, decimal.NewFromInt(quantity*10).String(), createdAt)
	require.NoError(t, err)
}

func TestUserCashRoundTrip(t *testing.T) {
	db := newTestDB(t)
	user := newTestUser(t, db, "alice")

	loaded, err := GetUserByID(db, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", loaded.Username)
	assert.True(t, loaded.Cash.Equal(decimal.RequireFromString("10000")))
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	db := newTestDB(t)
	newTestUser(t, db, "alice")

	dup := &User{
		Username: "alice",
		Password: "not-a-real-hash",
		Cash:     decimal.RequireFromString("10000"),
	}
	err := dup.CreateUser(db)
	require.Error(t, err)
	assert.True(t, IsUniqueConstraintError(err))

	assert.False(t, IsUniqueConstraintError(nil))
	assert.False(t, IsUniqueConstraintError(sql.ErrNoRows))
}

func TestUserPasswordHashing(t *testing.T) {
	user := &User{}
	require.NoError(t, user.HashPassword("Abcdef1!"))

	assert.NotEqual(t, "Abcdef1!", user.Password)
	assert.NoError(t, user.CheckPassword("Abcdef1!"))
	assert.Error(t, user.CheckPassword("WrongPw1!"))
}

func TestListTransactionsByUser_Order(t *testing.T) {
	db := newTestDB(t)
	user := newTestUser(t, db, "alice")

	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	appendLedgerRow(t, db, user.ID, "MSFT", 2, base.Add(2*time.Hour))
	appendLedgerRow(t, db, user.ID, "AAPL", 1, base)
	appendLedgerRow(t, db, user.ID, "AAPL", -1, base.Add(4*time.Hour))

	transactions, err := ListTransactionsByUser(db, user.ID)
	require.NoError(t, err)
	require.Len(t, transactions, 3)

	assert.Equal(t, "AAPL", transactions[0].Symbol)
	assert.Equal(t, int64(1), transactions[0].Quantity)
	assert.Equal(t, "MSFT", transactions[1].Symbol)
	assert.Equal(t, int64(-1), transactions[2].Quantity)
}

func TestHoldingsByUser_SkipsZeroedPositions(t *testing.T) {
	db := newTestDB(t)
	user := newTestUser(t, db, "alice")

	now := time.Now()
	appendLedgerRow(t, db, user.ID, "AAPL", 5, now)
	appendLedgerRow(t, db, user.ID, "AAPL", -5, now)
	appendLedgerRow(t, db, user.ID, "MSFT", 3, now)

	holdings, err := HoldingsByUser(db, user.ID)
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.Equal(t, "MSFT", holdings[0].Symbol)
	assert.Equal(t, int64(3), holdings[0].Quantity)
}

func TestHeldSymbols(t *testing.T) {
	db := newTestDB(t)
	user := newTestUser(t, db, "alice")
	other := newTestUser(t, db, "bob")

	now := time.Now()
	appendLedgerRow(t, db, user.ID, "MSFT", 3, now)
	appendLedgerRow(t, db, user.ID, "AAPL", 2, now)
	appendLedgerRow(t, db, user.ID, "NFLX", 1, now)
	appendLedgerRow(t, db, user.ID, "NFLX", -1, now)
	appendLedgerRow(t, db, other.ID, "GOOG", 4, now)

	symbols, err := HeldSymbols(db, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, symbols)
}

func TestSessionLifecycle(t *testing.T) {
	t.Run("live session is returned by token", func(t *testing.T) {
		db := newTestDB(t)
		user := newTestUser(t, db, "alice")

		session := &Session{
			UserID:    user.ID,
			Token:     "token-live",
			ExpiresAt: time.Now().Add(time.Hour),
		}
		require.NoError(t, session.CreateSession(db))

		loaded, err := GetSessionByToken(db, "token-live")
		require.NoError(t, err)
		assert.Equal(t, user.ID, loaded.UserID)
	})

	t.Run("expired session reads as missing", func(t *testing.T) {
		db := newTestDB(t)
		user := newTestUser(t, db, "alice")

		session := &Session{
			UserID:    user.ID,
			Token:     "token-expired",
			ExpiresAt: time.Now().Add(-time.Minute),
		}
		require.NoError(t, session.CreateSession(db))

		_, err := GetSessionByToken(db, "token-expired")
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})

	t.Run("deleting by token revokes it", func(t *testing.T) {
		db := newTestDB(t)
		user := newTestUser(t, db, "alice")

		session := &Session{
			UserID:    user.ID,
			Token:     "token-revoked",
			ExpiresAt: time.Now().Add(time.Hour),
		}
		require.NoError(t, session.CreateSession(db))
		require.NoError(t, DeleteSessionByToken(db, "token-revoked"))

		_, err := GetSessionByToken(db, "token-revoked")
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})

	t.Run("pruning removes only stale rows", func(t *testing.T) {
		db := newTestDB(t)
		user := newTestUser(t, db, "alice")

		live := &Session{UserID: user.ID, Token: "live", ExpiresAt: time.Now().Add(time.Hour)}
		stale := &Session{UserID: user.ID, Token: "stale", ExpiresAt: time.Now().Add(-time.Hour)}
		require.NoError(t, live.CreateSession(db))
		require.NoError(t, stale.CreateSession(db))

		removed, err := DeleteExpiredSessions(db)
		require.NoError(t, err)
		assert.Equal(t, int64(1), removed)

		_, err = GetSessionByToken(db, "live")
		assert.NoError(t, err)
	})
}
