package handlers

import (
	"net/http"

	"github.com/username/papertrade/src/security/validation"
	"github.com/username/papertrade/src/services"
)

type QuoteHandler struct {
	quoteService services.QuoteService
}

func NewQuoteHandler(quoteService services.QuoteService) *QuoteHandler {
	return &QuoteHandler{quoteService: quoteService}
}

func (h *QuoteHandler) ShowQuote(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusOK, "quote.html", map[string]any{})
}

func (h *QuoteHandler) Quote(w http.ResponseWriter, r *http.Request) {
	symbol := validation.NormalizeSymbol(r.PostFormValue("symbol"))
	if err := validation.ValidateSymbol(symbol); err != nil {
		renderError(w, r, err)
		return
	}

	quote, err := h.quoteService.Lookup(r.Context(), symbol)
	if err != nil {
		renderError(w, r, err)
		return
	}

	render(w, r, http.StatusOK, "quote.html", map[string]any{"Quote": quote})
}
