package model

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one row of the append-only ledger. Quantity and Amount are
// signed: positive for buys, negative for sells. Rows are never updated or
// deleted; portfolio state is always derived by summing them.
type Transaction struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Symbol    string          `json:"stock_symbol"`
	Name      string          `json:"stock_name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

// Holding is the aggregated net position for one symbol.
type Holding struct {
	Symbol   string `json:"stock_symbol"`
	Name     string `json:"stock_name"`
	Quantity int64  `json:"total_quantity"`
}

// InsertTransaction appends a ledger row inside an open transaction, so the
// write can share atomicity with the cash balance update.
func InsertTransaction(tx *sql.Tx, t *Transaction) error {
	t.CreatedAt = time.Now()

	query := `
	INSERT INTO transactions (user_id, stock_symbol, stock_name, price, quantity, amount, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.Exec(query, t.UserID, t.Symbol, t.Name, t.Price.String(), t.Quantity, t.Amount.String(), t.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}

// ListTransactionsByUser returns the user's full ledger in chronological
// ascending order.
func ListTransactionsByUser(db *sql.DB, userID int64) ([]Transaction, error) {
	query := `
	SELECT id, user_id, stock_symbol, stock_name, price, quantity, amount, created_at
	FROM transactions
	WHERE user_id = ?
	ORDER BY created_at ASC, id ASC`
	rows, err := db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []Transaction
	for rows.Next() {
		var t Transaction
		var priceStr, amountStr string
		if err := rows.Scan(&t.ID, &t.UserID, &t.Symbol, &t.Name, &priceStr, &t.Quantity, &amountStr, &t.CreatedAt); err != nil {
			return nil, err
		}
		if t.Price, err = decimal.NewFromString(priceStr); err != nil {
			return nil, err
		}
		if t.Amount, err = decimal.NewFromString(amountStr); err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

// HoldingsByUser aggregates the ledger into net positions per symbol,
// keeping only symbols with a nonzero total.
func HoldingsByUser(db *sql.DB, userID int64) ([]Holding, error) {
	query := `
	SELECT stock_symbol, MAX(stock_name) AS stock_name, SUM(quantity) AS total_quantity
	FROM transactions
	WHERE user_id = ?
	GROUP BY stock_symbol
	HAVING SUM(quantity) != 0
	ORDER BY stock_symbol ASC`
	rows, err := db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holdings []Holding
	for rows.Next() {
		var h Holding
		if err := rows.Scan(&h.Symbol, &h.Name, &h.Quantity); err != nil {
			return nil, err
		}
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

// HoldingForSymbol returns the net quantity the user holds of one symbol,
// read inside an open transaction so a concurrent sell cannot slip between
// the check and the ledger write.
func HoldingForSymbol(tx *sql.Tx, userID int64, symbol string) (int64, error) {
	var total int64
	err := tx.QueryRow(`
	SELECT COALESCE(SUM(quantity), 0)
	FROM transactions
	WHERE user_id = ? AND stock_symbol = ?`, userID, symbol).Scan(&total)
	return total, err
}

// HeldSymbols lists symbols with a strictly positive net holding,
// symbol ascending. Used to populate the sell form.
func HeldSymbols(db *sql.DB, userID int64) ([]string, error) {
	query := `
	SELECT stock_symbol
	FROM transactions
	WHERE user_id = ?
	GROUP BY stock_symbol
	HAVING SUM(quantity) > 0
	ORDER BY stock_symbol ASC`
	rows, err := db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}
