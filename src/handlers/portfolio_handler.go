package handlers

import (
	"net/http"

	"github.com/username/papertrade/src/logger"
	"github.com/username/papertrade/src/services"
)

type PortfolioHandler struct {
	portfolioService *services.PortfolioService
}

func NewPortfolioHandler(portfolioService *services.PortfolioService) *PortfolioHandler {
	return &PortfolioHandler{portfolioService: portfolioService}
}

// Index shows the portfolio: net positions priced live, cash and net worth.
func (h *PortfolioHandler) Index(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	// A holding that no longer resolves is an upstream problem, not a user
	// mistake, so every failure here is an internal error.
	summary, err := h.portfolioService.Summary(r.Context(), userID)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to build portfolio summary", "error", err)
		apology(w, r, http.StatusInternalServerError, "something went wrong")
		return
	}

	render(w, r, http.StatusOK, "index.html", summary)
}
