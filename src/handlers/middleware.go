package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/username/papertrade/src/database"
	"github.com/username/papertrade/src/logger"
	"github.com/username/papertrade/src/model"
)

type contextKey string

const (
	userIDContextKey    contextKey = "userID"
	requestIDContextKey contextKey = "requestID"
	csrfTokenContextKey contextKey = "csrfToken"
)

const (
	sessionCookieName = "session"
	csrfCookieName    = "csrf_token"
	csrfFormField     = "csrf_token"
)

// GetUserIDFromContext returns the authenticated user id set by AuthMiddleware.
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(userIDContextKey).(int64)
	return userID, ok
}

// ContextualLoggerMiddleware attaches a request-scoped logger carrying a
// request id to the context.
func ContextualLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()

		ctxLogger := logger.L.With(slog.String("requestID", requestID))
		ctx := logger.ToContext(r.Context(), ctxLogger)
		ctx = context.WithValue(ctx, requestIDContextKey, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// NoCacheMiddleware makes sure responses aren't cached. Portfolio pages show
// live balances; a cached index page would show stale cash after an order.
func NoCacheMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Expires", "0")
		w.Header().Set("Pragma", "no-cache")
		next.ServeHTTP(w, r)
	})
}

// AuthMiddleware gates the portfolio routes. It validates the signed session
// cookie and the matching sessions row, then carries the user id into the
// request context. Anonymous requests are redirected to the login form.
func (h *UserHandler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxLogger := logger.FromContext(r.Context())

		cookie, err := r.Cookie(sessionCookieName)
		if err != nil || cookie.Value == "" {
			ctxLogger.Debug("AuthMiddleware: session cookie missing", "path", r.URL.Path)
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		tokenString := cookie.Value

		userIDStr, err := h.authService.ValidateToken(tokenString)
		if err != nil {
			ctxLogger.Warn("AuthMiddleware: token validation failed", "path", r.URL.Path, "error", err)
			clearSessionCookie(w, r)
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		// The token is only valid while its sessions row exists; logout
		// deletes the row and revokes the token early.
		if _, err := model.GetSessionByToken(database.DB, tokenString); err != nil {
			ctxLogger.Warn("AuthMiddleware: no active session for token", "path", r.URL.Path, "error", err)
			clearSessionCookie(w, r)
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		userID, err := strconv.ParseInt(userIDStr, 10, 64)
		if err != nil {
			ctxLogger.Error("AuthMiddleware: invalid user id in token", "userIDStr", userIDStr, "error", err)
			clearSessionCookie(w, r)
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		enrichedLogger := ctxLogger.With(slog.Int64("userID", userID))
		ctx := logger.ToContext(r.Context(), enrichedLogger)
		ctx = context.WithValue(ctx, userIDContextKey, userID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CSRFMiddleware implements a double-submit cookie check for form posts.
// Safe methods get a token cookie issued when missing; state-changing methods
// must echo the cookie value back in the csrf_token form field.
func CSRFMiddleware(authKey []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				token := ""
				if cookie, err := r.Cookie(csrfCookieName); err == nil && verifyCSRFToken(authKey, cookie.Value) {
					token = cookie.Value
				} else {
					token = signCSRFToken(authKey, generateRandomToken())
					http.SetCookie(w, &http.Cookie{
						Name:     csrfCookieName,
						Value:    token,
						Path:     "/",
						SameSite: http.SameSiteLaxMode,
						HttpOnly: true,
						Secure:   r.TLS != nil,
					})
				}
				ctx := context.WithValue(r.Context(), csrfTokenContextKey, token)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			cookie, errCookie := r.Cookie(csrfCookieName)
			formToken := r.PostFormValue(csrfFormField)
			if errCookie == nil && formToken != "" &&
				verifyCSRFToken(authKey, cookie.Value) &&
				hmac.Equal([]byte(formToken), []byte(cookie.Value)) {
				next.ServeHTTP(w, r)
				return
			}

			logger.FromContext(r.Context()).Warn("CSRF validation failed",
				"method", r.Method, "path", r.URL.Path, "cookiePresent", errCookie == nil)
			apology(w, r, http.StatusForbidden, "invalid request token")
		})
	}
}

// csrfTokenFromRequest prefers the freshly issued token placed in the context
// by CSRFMiddleware, falling back to the request cookie.
func csrfTokenFromRequest(r *http.Request) string {
	if token, ok := r.Context().Value(csrfTokenContextKey).(string); ok {
		return token
	}
	if cookie, err := r.Cookie(csrfCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

func generateRandomToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		logger.L.Error("Error generating random bytes for CSRF token", "error", err)
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// signCSRFToken appends an HMAC so a forged cookie from a subdomain can't be
// replayed as a valid token.
func signCSRFToken(authKey []byte, token string) string {
	mac := hmac.New(sha256.New, authKey)
	mac.Write([]byte(token))
	return token + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func verifyCSRFToken(authKey []byte, signed string) bool {
	i := len(signed) - 1
	for ; i >= 0; i-- {
		if signed[i] == '.' {
			break
		}
	}
	if i <= 0 {
		return false
	}
	token, sig := signed[:i], signed[i+1:]

	mac := hmac.New(sha256.New, authKey)
	mac.Write([]byte(token))
	expected := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(sig), []byte(expected))
}

func clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		MaxAge:   -1,
	})
}
