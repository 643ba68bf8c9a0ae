package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/username/papertrade/src/model"
)

// HoldingWithValue is one symbol's net position annotated with a live price.
type HoldingWithValue struct {
	Symbol   string          `json:"stock_symbol"`
	Name     string          `json:"stock_name"`
	Quantity int64           `json:"total_quantity"`
	Price    decimal.Decimal `json:"price"`
	Value    decimal.Decimal `json:"value"`
}

// PortfolioSummary is everything the index view needs: priced holdings, cash
// and net worth (cash plus holdings value).
type PortfolioSummary struct {
	Holdings      []HoldingWithValue `json:"holdings"`
	Cash          decimal.Decimal    `json:"cash"`
	HoldingsValue decimal.Decimal    `json:"holdings_value"`
	NetWorth      decimal.Decimal    `json:"net_worth"`
}

type PortfolioService struct {
	db     *sql.DB
	quotes QuoteService
}

func NewPortfolioService(db *sql.DB, quotes QuoteService) *PortfolioService {
	return &PortfolioService{db: db, quotes: quotes}
}

// Summary aggregates the user's ledger into priced net positions. Holdings are
// ordered by current value descending, ties broken by stock name ascending.
func (s *PortfolioService) Summary(ctx context.Context, userID int64) (*PortfolioSummary, error) {
	user, err := model.GetUserByID(s.db, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	holdings, err := model.HoldingsByUser(s.db, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate holdings: %w", err)
	}

	summary := &PortfolioSummary{
		Cash:          user.Cash,
		HoldingsValue: decimal.Zero,
	}

	for _, h := range holdings {
		quote, err := s.quotes.Lookup(ctx, h.Symbol)
		if err != nil {
			return nil, fmt.Errorf("failed to price holding %s: %w", h.Symbol, err)
		}
		value := quote.Price.Mul(decimal.NewFromInt(h.Quantity))
		summary.Holdings = append(summary.Holdings, HoldingWithValue{
			Symbol:   h.Symbol,
			Name:     h.Name,
			Quantity: h.Quantity,
			Price:    quote.Price,
			Value:    value,
		})
		summary.HoldingsValue = summary.HoldingsValue.Add(value)
	}

	sort.Slice(summary.Holdings, func(i, j int) bool {
		cmp := summary.Holdings[i].Value.Cmp(summary.Holdings[j].Value)
		if cmp != 0 {
			return cmp > 0
		}
		return summary.Holdings[i].Name < summary.Holdings[j].Name
	})

	summary.NetWorth = summary.Cash.Add(summary.HoldingsValue)
	return summary, nil
}
