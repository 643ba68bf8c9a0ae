package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/username/papertrade/src/logger"
	"github.com/username/papertrade/src/model"
)

// OrderService validates and records buy/sell orders. Each order executes as a
// single database transaction: the cash check, the balance update and the
// ledger append either all happen or none do. With the single-connection
// SQLite handle the transaction is fully serialized, so two concurrent orders
// for the same user cannot interleave between check and write.
type OrderService struct {
	db     *sql.DB
	quotes QuoteService
}

func NewOrderService(db *sql.DB, quotes QuoteService) *OrderService {
	return &OrderService{db: db, quotes: quotes}
}

// Buy looks up the symbol, debits cash by price*shares and appends a positive
// ledger row. Returns ErrSymbolNotFound or ErrInsufficientFunds on rule
// violations; in either case nothing is written.
func (s *OrderService) Buy(ctx context.Context, userID int64, symbol string, shares int64) (*model.Transaction, error) {
	quote, err := s.quotes.Lookup(ctx, symbol)
	if err != nil {
		return nil, err
	}

	orderTotal := quote.Price.Mul(decimal.NewFromInt(shares))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin order transaction: %w", err)
	}
	defer tx.Rollback()

	cash, err := model.GetCashForUpdate(tx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read cash balance: %w", err)
	}
	if orderTotal.GreaterThan(cash) {
		return nil, ErrInsufficientFunds
	}

	if err := model.UpdateCash(tx, userID, cash.Sub(orderTotal)); err != nil {
		return nil, fmt.Errorf("failed to debit cash: %w", err)
	}

	entry := &model.Transaction{
		UserID:   userID,
		Symbol:   quote.Symbol,
		Name:     quote.Name,
		Price:    quote.Price,
		Quantity: shares,
		Amount:   orderTotal,
	}
	if err := model.InsertTransaction(tx, entry); err != nil {
		return nil, fmt.Errorf("failed to append ledger row: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit buy order: %w", err)
	}

	logger.FromContext(ctx).Info("Buy order executed",
		"userID", userID, "symbol", quote.Symbol, "shares", shares, "total", orderTotal.String())
	return entry, nil
}

// Sell checks holdings, credits cash by price*shares and appends a negated
// ledger row. The holdings check runs inside the same transaction as the
// write, so an accepted sell can never push the net position negative. The
// lookup may canonicalize the submitted symbol; the check and the ledger row
// both use the canonical one, matching what buys record.
func (s *OrderService) Sell(ctx context.Context, userID int64, symbol string, shares int64) (*model.Transaction, error) {
	quote, err := s.quotes.Lookup(ctx, symbol)
	if err != nil {
		return nil, err
	}

	orderTotal := quote.Price.Mul(decimal.NewFromInt(shares))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin order transaction: %w", err)
	}
	defer tx.Rollback()

	held, err := model.HoldingForSymbol(tx, userID, quote.Symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to read holdings: %w", err)
	}
	if held < 1 {
		return nil, ErrNotHeld
	}
	if shares > held {
		return nil, ErrInsufficientHoldings
	}

	cash, err := model.GetCashForUpdate(tx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read cash balance: %w", err)
	}
	if err := model.UpdateCash(tx, userID, cash.Add(orderTotal)); err != nil {
		return nil, fmt.Errorf("failed to credit cash: %w", err)
	}

	entry := &model.Transaction{
		UserID:   userID,
		Symbol:   quote.Symbol,
		Name:     quote.Name,
		Price:    quote.Price,
		Quantity: -shares,
		Amount:   orderTotal.Neg(),
	}
	if err := model.InsertTransaction(tx, entry); err != nil {
		return nil, fmt.Errorf("failed to append ledger row: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit sell order: %w", err)
	}

	logger.FromContext(ctx).Info("Sell order executed",
		"userID", userID, "symbol", quote.Symbol, "shares", shares, "total", orderTotal.String())
	return entry, nil
}
