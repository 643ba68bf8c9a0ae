package services

import (
	"context"
	"errors"

	"github.com/username/papertrade/src/model"
)

// Business rule errors. Handlers map these to user-visible apologies;
// anything else coming out of a service is treated as internal.
var (
	ErrSymbolNotFound       = errors.New("symbol not found")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientHoldings = errors.New("quantity exceeds holdings")
	ErrNotHeld              = errors.New("stock not held")
)

// QuoteService defines the interface for the external price lookup.
type QuoteService interface {
	// Lookup resolves a symbol to its current quote, or ErrSymbolNotFound.
	Lookup(ctx context.Context, symbol string) (*model.Quote, error)
}
