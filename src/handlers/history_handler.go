package handlers

import (
	"net/http"
	"time"

	"github.com/username/papertrade/src/database"
	"github.com/username/papertrade/src/logger"
	"github.com/username/papertrade/src/model"
)

type HistoryHandler struct{}

func NewHistoryHandler() *HistoryHandler {
	return &HistoryHandler{}
}

// HistoryRow is one ledger entry shaped for display: type derived from the
// quantity sign, quantity shown as an absolute value, negative amounts
// rendered parenthesized.
type HistoryRow struct {
	Type      string
	Symbol    string
	Name      string
	Price     string
	Quantity  int64
	Amount    string
	Timestamp time.Time
}

// BuildHistoryRows converts ledger entries into display rows, preserving
// their order.
func BuildHistoryRows(transactions []model.Transaction) []HistoryRow {
	rows := make([]HistoryRow, 0, len(transactions))
	for _, t := range transactions {
		row := HistoryRow{
			Type:      "BUY",
			Symbol:    t.Symbol,
			Name:      t.Name,
			Price:     FormatUSD(t.Price),
			Quantity:  t.Quantity,
			Amount:    FormatUSD(t.Amount),
			Timestamp: t.CreatedAt,
		}
		if t.Quantity < 0 {
			row.Type = "SELL"
			row.Quantity = -t.Quantity
		}
		if t.Amount.IsNegative() {
			row.Amount = "(" + FormatUSD(t.Amount.Abs()) + ")"
		}
		rows = append(rows, row)
	}
	return rows
}

// History lists the user's full ledger, oldest first. An empty ledger renders
// the normal page with zero rows.
func (h *HistoryHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	transactions, err := model.ListTransactionsByUser(database.DB, userID)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to list transactions", "error", err)
		apology(w, r, http.StatusInternalServerError, "something went wrong")
		return
	}

	render(w, r, http.StatusOK, "history.html", map[string]any{
		"Rows": BuildHistoryRows(transactions),
	})
}
