package model

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID        int64           `json:"id"`
	Username  string          `json:"username"`
	Password  string          `json:"-"`
	Cash      decimal.Decimal `json:"cash"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (u *User) HashPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashedPassword)
	return nil
}

func (u *User) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
}

func (u *User) CreateUser(db *sql.DB) error {
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now

	query := `
	INSERT INTO users (username, password, cash, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)`
	stmt, err := db.Prepare(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	res, err := stmt.Exec(u.Username, u.Password, u.Cash.String(), u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = id
	return nil
}

// IsUniqueConstraintError reports whether err is a UNIQUE index violation.
// The sqlite driver does not export a typed error for this, so the insert
// path matches on the constraint message.
func IsUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func scanUser(row *sql.Row) (*User, error) {
	var user User
	var cashStr string
	err := row.Scan(&user.ID, &user.Username, &user.Password, &cashStr, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, err
	}
	user.Cash, err = decimal.NewFromString(cashStr)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func GetUserByID(db *sql.DB, id int64) (*User, error) {
	query := `
	SELECT id, username, password, cash, created_at, updated_at
	FROM users
	WHERE id = ?`
	return scanUser(db.QueryRow(query, id))
}

func GetUserByUsername(db *sql.DB, username string) (*User, error) {
	query := `
	SELECT id, username, password, cash, created_at, updated_at
	FROM users
	WHERE username = ?`
	return scanUser(db.QueryRow(query, username))
}

// GetCashForUpdate reads the user's cash balance inside an open transaction.
// Callers must hold the transaction for the full read-check-write sequence.
func GetCashForUpdate(tx *sql.Tx, userID int64) (decimal.Decimal, error) {
	var cashStr string
	err := tx.QueryRow(`SELECT cash FROM users WHERE id = ?`, userID).Scan(&cashStr)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(cashStr)
}

// UpdateCash writes a new cash balance inside an open transaction.
func UpdateCash(tx *sql.Tx, userID int64, cash decimal.Decimal) error {
	res, err := tx.Exec(`UPDATE users SET cash = ?, updated_at = ? WHERE id = ?`,
		cash.String(), time.Now(), userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
