package handlers

import (
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/username/papertrade/src/logger"
	"github.com/username/papertrade/src/security/validation"
	"github.com/username/papertrade/src/services"
	"github.com/username/papertrade/src/templates"
)

var pageTemplates = map[string]*template.Template{}

var templateFuncs = template.FuncMap{
	"usd": FormatUSD,
}

func init() {
	pages := []string{
		"login.html", "register.html", "index.html", "buy.html",
		"sell.html", "quote.html", "history.html", "apology.html",
	}
	for _, page := range pages {
		pageTemplates[page] = template.Must(
			template.New("layout.html").Funcs(templateFuncs).ParseFS(templates.FS, "layout.html", page))
	}
}

// PageData is the envelope every template receives.
type PageData struct {
	Authenticated bool
	CSRFToken     string
	Data          any
}

// FormatUSD renders a decimal as a dollar amount with comma grouping,
// e.g. 1234.5 -> "$1,234.50". Negative values get a leading minus.
func FormatUSD(d decimal.Decimal) string {
	var b strings.Builder
	if d.IsNegative() {
		b.WriteByte('-')
	}
	b.WriteByte('$')

	s := d.Abs().StringFixed(2)
	intPart, fracPart, _ := strings.Cut(s, ".")
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(fracPart)
	return b.String()
}

func render(w http.ResponseWriter, r *http.Request, status int, page string, data any) {
	tmpl, ok := pageTemplates[page]
	if !ok {
		logger.FromContext(r.Context()).Error("Unknown template requested", "page", page)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	_, authenticated := GetUserIDFromContext(r.Context())
	pd := PageData{
		Authenticated: authenticated,
		CSRFToken:     csrfTokenFromRequest(r),
		Data:          data,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "layout.html", pd); err != nil {
		logger.FromContext(r.Context()).Error("Template execution failed", "page", page, "error", err)
	}
}

// apology renders the user-facing error page with the given message and
// HTTP status code.
func apology(w http.ResponseWriter, r *http.Request, status int, message string) {
	render(w, r, status, "apology.html", map[string]any{
		"Status":  status,
		"Message": message,
	})
}

// renderError maps an error coming out of the service/validation layers to an
// apology. Validation and business rule failures carry their own message;
// everything else is an internal error and gets a generic one.
func renderError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, validation.ErrValidationFailed):
		apology(w, r, http.StatusBadRequest, userMessage(err))
	case errors.Is(err, services.ErrSymbolNotFound):
		apology(w, r, http.StatusBadRequest, "symbol not found")
	case errors.Is(err, services.ErrInsufficientFunds):
		apology(w, r, http.StatusForbidden, "insufficient funds")
	case errors.Is(err, services.ErrNotHeld):
		apology(w, r, http.StatusForbidden, "you do not hold this stock")
	case errors.Is(err, services.ErrInsufficientHoldings):
		apology(w, r, http.StatusBadRequest, "quantity exceeds your holdings")
	default:
		logger.FromContext(r.Context()).Error("Unexpected error reached route boundary", "error", err)
		apology(w, r, http.StatusInternalServerError, "something went wrong")
	}
}

// userMessage strips the "validation failed: " prefix so the apology reads
// like a sentence.
func userMessage(err error) string {
	msg := err.Error()
	if rest, found := strings.CutPrefix(msg, validation.ErrValidationFailed.Error()+": "); found {
		return rest
	}
	return msg
}
