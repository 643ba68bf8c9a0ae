package model

import "github.com/shopspring/decimal"

// Quote is the result of an external price lookup.
type Quote struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
}
