package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/yapchat/backend/internal/auth"
	"github.com/yapchat/backend/internal/models"
	"github.com/yapchat/backend/internal/repositories"
)

// Header carrying the echoed anti-forgery value on mutating requests.
const csrfHeader = "X-CSRF-Token"

// SessionReader resolves the authenticated user from the session cookie.
// Handlers embed it so authentication behaves identically on every route.
type SessionReader struct {
	Users      UserStore
	Sessions   SessionManager
	CookieName string
}

// currentUser authenticates the request. Absent, malformed, or expired
// tokens, and tokens whose subject no longer exists, all map to
// auth.ErrInvalidToken.
func (s SessionReader) currentUser(r *http.Request) (models.User, auth.Claims, error) {
	cookie, err := r.Cookie(s.CookieName)
	if err != nil || cookie.Value == "" {
		return models.User{}, auth.Claims{}, auth.ErrInvalidToken
	}

	claims, err := s.Sessions.Parse(cookie.Value)
	if err != nil {
		return models.User{}, auth.Claims{}, err
	}

	user, err := s.Users.FindByID(r.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.User{}, auth.Claims{}, auth.ErrInvalidToken
		}
		return models.User{}, auth.Claims{}, err
	}

	return user, claims, nil
}

// requireUser authenticates the request, writing the 401 envelope on failure.
func (s SessionReader) requireUser(w http.ResponseWriter, r *http.Request) (models.User, auth.Claims, bool) {
	user, claims, err := s.currentUser(r)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			respondError(r.Context(), w, http.StatusUnauthorized, codeUnauthorized, "Authentication required")
		} else {
			respondDomainError(r.Context(), w, err)
		}
		return models.User{}, auth.Claims{}, false
	}
	return user, claims, true
}

// requireCSRF verifies the echoed anti-forgery header against the session's
// value, writing the 403 envelope on failure.
func requireCSRF(w http.ResponseWriter, r *http.Request, claims auth.Claims) bool {
	if err := auth.VerifyCSRF(claims.CSRFToken, r.Header.Get(csrfHeader)); err != nil {
		respondDomainError(r.Context(), w, err)
		return false
	}
	return true
}

// CookieWriter issues and clears the HTTP-only session cookie.
type CookieWriter struct {
	Name   string
	Secure bool
	TTL    time.Duration
}

func (c CookieWriter) set(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(c.TTL / time.Second),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c CookieWriter) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

type userPayload struct {
	ID              string   `json:"id"`
	Email           string   `json:"email,omitempty"`
	DisplayName     string   `json:"displayName"`
	Interests       []string `json:"interests"`
	ProfileImageURL string   `json:"profileImageUrl,omitempty"`
}

// publicUser projects a user for its owner (email included).
func publicUser(user models.User) userPayload {
	return userPayload{
		ID:              user.ID,
		Email:           user.Email,
		DisplayName:     user.DisplayName,
		Interests:       user.Interests,
		ProfileImageURL: user.ProfileImageURL,
	}
}

// partnerUser projects a user for the other side of a yap (no email).
func partnerUser(user models.User) userPayload {
	return userPayload{
		ID:              user.ID,
		DisplayName:     user.DisplayName,
		Interests:       user.Interests,
		ProfileImageURL: user.ProfileImageURL,
	}
}
