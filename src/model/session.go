package model

import (
	"database/sql"
	"time"
)

type Session struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Token     string    `json:"token"`
	UserAgent string    `json:"user_agent"`
	ClientIP  string    `json:"client_ip"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Session) CreateSession(db *sql.DB) error {
	s.CreatedAt = time.Now()

	query := `
	INSERT INTO sessions (user_id, token, user_agent, client_ip, expires_at, created_at)
	VALUES (?, ?, ?, ?, ?, ?)`
	res, err := db.Exec(query, s.UserID, s.Token, s.UserAgent, s.ClientIP, s.ExpiresAt, s.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = id
	return nil
}

// GetSessionByToken returns the session for a token. An expired session
// is indistinguishable from a missing one: both return sql.ErrNoRows.
func GetSessionByToken(db *sql.DB, token string) (*Session, error) {
	query := `
	SELECT id, user_id, token, user_agent, client_ip, expires_at, created_at
	FROM sessions
	WHERE token = ?`
	row := db.QueryRow(query, token)

	var s Session
	var userAgent, clientIP sql.NullString
	err := row.Scan(&s.ID, &s.UserID, &s.Token, &userAgent, &clientIP, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	s.UserAgent = userAgent.String
	s.ClientIP = clientIP.String

	if time.Now().After(s.ExpiresAt) {
		return nil, sql.ErrNoRows
	}
	return &s, nil
}

func DeleteSessionByToken(db *sql.DB, token string) error {
	_, err := db.Exec(`DELETE FROM sessions WHERE token = ?`, token)
	return err
}

// DeleteExpiredSessions removes stale rows so the table does not grow unbounded.
func DeleteExpiredSessions(db *sql.DB) (int64, error) {
	res, err := db.Exec(`DELETE FROM sessions WHERE expires_at < ?`, time.Now())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
