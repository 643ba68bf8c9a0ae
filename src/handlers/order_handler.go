package handlers

import (
	"net/http"

	"github.com/username/papertrade/src/database"
	"github.com/username/papertrade/src/logger"
	"github.com/username/papertrade/src/model"
	"github.com/username/papertrade/src/security/validation"
	"github.com/username/papertrade/src/services"
)

type OrderHandler struct {
	orderService *services.OrderService
}

func NewOrderHandler(orderService *services.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

// orderForm validates the symbol/shares form fields shared by buy and sell.
func orderForm(r *http.Request) (string, int64, error) {
	symbol := validation.NormalizeSymbol(r.PostFormValue("symbol"))
	if err := validation.ValidateSymbol(symbol); err != nil {
		return "", 0, err
	}
	shares, err := validation.ValidateShares(r.PostFormValue("shares"))
	if err != nil {
		return "", 0, err
	}
	return symbol, shares, nil
}

func (h *OrderHandler) ShowBuy(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusOK, "buy.html", nil)
}

func (h *OrderHandler) Buy(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	symbol, shares, err := orderForm(r)
	if err != nil {
		renderError(w, r, err)
		return
	}

	if _, err := h.orderService.Buy(r.Context(), userID, symbol, shares); err != nil {
		renderError(w, r, err)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ShowSell renders the sell form. The symbol picker lists only stocks the
// user currently holds a positive quantity of.
func (h *OrderHandler) ShowSell(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	symbols, err := model.HeldSymbols(database.DB, userID)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to list held symbols", "error", err)
		apology(w, r, http.StatusInternalServerError, "something went wrong")
		return
	}

	render(w, r, http.StatusOK, "sell.html", map[string]any{"Symbols": symbols})
}

func (h *OrderHandler) Sell(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	symbol, shares, err := orderForm(r)
	if err != nil {
		renderError(w, r, err)
		return
	}

	if _, err := h.orderService.Sell(r.Context(), userID, symbol, shares); err != nil {
		renderError(w, r, err)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}
