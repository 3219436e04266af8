package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/yapchat/backend/internal/logging"
	"github.com/yapchat/backend/internal/models"
	"github.com/yapchat/backend/internal/repositories"
)

// AuthHandler implements user registration and session endpoints.
type AuthHandler struct {
	SessionReader
	Cookie  CookieWriter
	Limiter RateLimiter
	NowFunc func() time.Time
}

// Register handles POST /api/auth/register.
func (h AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "register") {
		respondError(ctx, w, http.StatusTooManyRequests, codeRateLimited, "Too many attempts, slow down")
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, codeInvalidInput, "Invalid request body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.DisplayName = strings.TrimSpace(req.DisplayName)

	if msg, ok := validateCredentials(req.Email, req.Password); !ok {
		respondError(ctx, w, http.StatusBadRequest, codeInvalidInput, msg)
		return
	}
	if msg, ok := validateDisplayName(req.DisplayName); !ok {
		respondError(ctx, w, http.StatusBadRequest, codeInvalidInput, msg)
		return
	}

	if _, err := h.Users.FindByEmail(ctx, req.Email); err == nil {
		respondError(ctx, w, http.StatusConflict, codeEmailInUse, "Email already registered")
		return
	} else if !errors.Is(err, repositories.ErrNotFound) {
		logger.Error("register user lookup failed", "error", err, "email", req.Email)
		respondError(ctx, w, http.StatusInternalServerError, codeInternalError, "Unable to register")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("register failed to hash password", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, codeInternalError, "Unable to register")
		return
	}

	now := h.now()
	user := models.User{
		ID:          uuid.NewString(),
		Email:       req.Email,
		Password:    string(hashed),
		DisplayName: req.DisplayName,
		Interests:   []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			respondError(ctx, w, http.StatusConflict, codeEmailInUse, "Email already registered")
			return
		}
		logger.Error("register failed to create user", "error", err, "email", req.Email)
		respondError(ctx, w, http.StatusInternalServerError, codeInternalError, "Unable to register")
		return
	}

	h.issueSession(w, r, user)
}

// Login handles POST /api/auth/login.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "login") {
		respondError(ctx, w, http.StatusTooManyRequests, codeRateLimited, "Too many attempts, slow down")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, codeInvalidInput, "Invalid request body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if msg, ok := validateCredentials(req.Email, req.Password); !ok {
		respondError(ctx, w, http.StatusBadRequest, codeInvalidInput, msg)
		return
	}

	user, err := h.Users.FindByEmail(ctx, req.Email)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			logger.Error("login user lookup failed", "error", err, "email", req.Email)
		}
		respondError(ctx, w, http.StatusUnauthorized, codeInvalidCredentials, "Invalid email or password")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		logger.Warn("login password mismatch", "userId", user.ID)
		respondError(ctx, w, http.StatusUnauthorized, codeInvalidCredentials, "Invalid email or password")
		return
	}

	h.issueSession(w, r, user)
}

// Logout handles POST /api/auth/logout. Authentication is optional: clearing
// an absent session is still a success.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.Cookie.clear(w)
	respondJSON(r.Context(), w, http.StatusOK, map[string]bool{"success": true})
}

// Me handles GET /api/auth/me.
func (h AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, claims, err := h.currentUser(r)
	if err != nil {
		respondError(r.Context(), w, http.StatusUnauthorized, codeUnauthorized, "Not authenticated")
		return
	}

	respondJSON(r.Context(), w, http.StatusOK, sessionResponse{
		User:      publicUser(user),
		CSRFToken: claims.CSRFToken,
	})
}

// CSRF handles GET /api/auth/csrf, returning the session's anti-forgery value
// so single-page clients can rehydrate it after a reload.
func (h AuthHandler) CSRF(w http.ResponseWriter, r *http.Request) {
	_, claims, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	respondJSON(r.Context(), w, http.StatusOK, map[string]string{"csrfToken": claims.CSRFToken})
}

func (h AuthHandler) issueSession(w http.ResponseWriter, r *http.Request, user models.User) {
	ctx := r.Context()

	token, csrfToken, err := h.Sessions.Issue(user.ID)
	if err != nil {
		logging.FromContext(ctx).Error("failed to issue session", "error", err, "userId", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, codeInternalError, "Failed to create session")
		return
	}

	h.Cookie.set(w, token)
	respondJSON(ctx, w, http.StatusOK, sessionResponse{
		User:      publicUser(user),
		CSRFToken: csrfToken,
	})
}

func validateCredentials(email, password string) (string, bool) {
	if email == "" || password == "" {
		return "Email and password are required", false
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "Invalid email address", false
	}
	if len(password) < 8 {
		return "Password must be at least 8 characters", false
	}
	return "", true
}

func validateDisplayName(name string) (string, bool) {
	length := len([]rune(name))
	if length < 2 || length > 50 {
		return "Display name must be between 2 and 50 characters", false
	}
	return "", true
}

func (h AuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	User      userPayload `json:"user"`
	CSRFToken string      `json:"csrfToken"`
}
