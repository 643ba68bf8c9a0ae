package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/papertrade/src/config"
	"github.com/username/papertrade/src/database"
	"github.com/username/papertrade/src/logger"
	"github.com/username/papertrade/src/model"
	"github.com/username/papertrade/src/security"
	"github.com/username/papertrade/src/security/validation"
)

type UserHandler struct {
	authService *security.AuthService
}

func NewUserHandler(authService *security.AuthService) *UserHandler {
	return &UserHandler{authService: authService}
}

func (h *UserHandler) ShowRegister(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusOK, "register.html", nil)
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	username := validation.SanitizeText(strings.TrimSpace(r.PostFormValue("username")))
	password := r.PostFormValue("password")
	confirmation := r.PostFormValue("confirmation")

	if err := validation.ValidateStringNotEmpty(username, "username"); err != nil {
		renderError(w, r, err)
		return
	}
	if err := validation.ValidateStringMaxLength(username, validation.MaxUsernameLength, "username"); err != nil {
		renderError(w, r, err)
		return
	}
	if password == "" {
		apology(w, r, http.StatusBadRequest, "must provide password")
		return
	}
	if err := validation.ValidatePassword(password); err != nil {
		renderError(w, r, err)
		return
	}
	if password != confirmation {
		apology(w, r, http.StatusBadRequest, "password must match confirmation")
		return
	}

	startingCash, err := decimal.NewFromString(config.Cfg.StartingCash)
	if err != nil {
		ctxLogger.Error("Invalid STARTING_CASH configuration", "value", config.Cfg.StartingCash, "error", err)
		apology(w, r, http.StatusInternalServerError, "failed to process registration")
		return
	}

	user := &model.User{
		Username: username,
		Cash:     startingCash,
	}
	if err := user.HashPassword(password); err != nil {
		ctxLogger.Error("Failed to hash password", "error", err)
		apology(w, r, http.StatusInternalServerError, "failed to process registration")
		return
	}

	// Uniqueness is enforced by the UNIQUE index, not a prior read, so two
	// racing registrations for the same name both resolve here.
	if err := user.CreateUser(database.DB); err != nil {
		if model.IsUniqueConstraintError(err) {
			apology(w, r, http.StatusBadRequest, "user already exists")
			return
		}
		ctxLogger.Error("Failed to create user in DB", "error", err)
		apology(w, r, http.StatusInternalServerError, "failed to create user")
		return
	}

	ctxLogger.Info("User registered", "userID", user.ID)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *UserHandler) ShowLogin(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusOK, "login.html", nil)
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	username := validation.SanitizeText(strings.TrimSpace(r.PostFormValue("username")))
	password := r.PostFormValue("password")

	if username == "" {
		apology(w, r, http.StatusForbidden, "must provide username")
		return
	}
	if password == "" {
		apology(w, r, http.StatusForbidden, "must provide password")
		return
	}

	// One generic failure for unknown user and wrong password alike.
	user, err := model.GetUserByUsername(database.DB, username)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			ctxLogger.Error("User lookup failed for login", "error", err)
		}
		apology(w, r, http.StatusForbidden, "invalid username and/or password")
		return
	}
	if err := user.CheckPassword(password); err != nil {
		apology(w, r, http.StatusForbidden, "invalid username and/or password")
		return
	}

	token, err := h.authService.GenerateToken(user.ID, config.Cfg.SessionExpiry)
	if err != nil {
		ctxLogger.Error("Failed to generate session token", "userID", user.ID, "error", err)
		apology(w, r, http.StatusInternalServerError, "failed to start session")
		return
	}

	session := &model.Session{
		UserID:    user.ID,
		Token:     token,
		UserAgent: r.UserAgent(),
		ClientIP:  r.RemoteAddr,
		ExpiresAt: time.Now().Add(config.Cfg.SessionExpiry),
	}
	if err := session.CreateSession(database.DB); err != nil {
		ctxLogger.Error("Failed to persist session", "userID", user.ID, "error", err)
		apology(w, r, http.StatusInternalServerError, "failed to start session")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		MaxAge:   int(config.Cfg.SessionExpiry.Seconds()),
	})

	ctxLogger.Info("User logged in", "userID", user.ID)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Logout clears the session unconditionally: cookie gone, sessions row gone.
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		if err := model.DeleteSessionByToken(database.DB, cookie.Value); err != nil {
			logger.FromContext(r.Context()).Error("Failed to delete session on logout", "error", err)
		}
	}
	clearSessionCookie(w, r)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
