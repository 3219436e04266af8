package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken indicates the session token is absent, malformed, expired,
	// or carries a bad signature.
	ErrInvalidToken = errors.New("invalid session token")
	// ErrCSRFMissing indicates the session carries no anti-forgery value.
	ErrCSRFMissing = errors.New("csrf token missing")
	// ErrCSRFInvalid indicates the supplied anti-forgery value is absent or
	// does not match the one bound to the session.
	ErrCSRFInvalid = errors.New("invalid csrf token")
)

// Claims binds a user identity and a per-session anti-forgery value into a
// signed session token.
type Claims struct {
	jwt.RegisteredClaims
	CSRFToken string `json:"csrf"`
}

// Manager issues and verifies the signed session tokens carried by the
// HTTP-only session cookie.
type Manager struct {
	secret []byte
	ttl    time.Duration

	nowFunc func() time.Time
}

// NewManager constructs a Manager signing tokens with the provided secret.
func NewManager(secret string, ttl time.Duration) *Manager {
	if secret == "" {
		panic("auth: session secret must not be empty")
	}
	return &Manager{
		secret:  []byte(secret),
		ttl:     ttl,
		nowFunc: time.Now,
	}
}

// Issue mints a session token for the user along with a fresh anti-forgery
// value. The token travels as an HTTP-only cookie; the anti-forgery value is
// returned to the client and echoed back on mutating requests.
func (m *Manager) Issue(userID string) (token, csrfToken string, err error) {
	if userID == "" {
		return "", "", errors.New("user id must be provided")
	}

	csrfToken, err = randomValue()
	if err != nil {
		return "", "", err
	}

	now := m.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		CSRFToken: csrfToken,
	}

	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", "", err
	}

	return token, csrfToken, nil
}

// Parse verifies the token signature and expiry and returns the embedded
// claims. Any verification failure maps to ErrInvalidToken.
func (m *Manager) Parse(token string) (Claims, error) {
	if token == "" {
		return Claims{}, ErrInvalidToken
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return Claims{}, ErrInvalidToken
	}

	return *claims, nil
}

// VerifyCSRF checks a supplied anti-forgery value against the one bound to
// the session. The comparison is constant time.
func VerifyCSRF(sessionValue, supplied string) error {
	if sessionValue == "" {
		return ErrCSRFMissing
	}
	if supplied == "" || subtle.ConstantTimeCompare([]byte(sessionValue), []byte(supplied)) != 1 {
		return ErrCSRFInvalid
	}
	return nil
}

// WithNowFunc allows tests to override the time source.
func (m *Manager) WithNowFunc(now func() time.Time) *Manager {
	m.nowFunc = now
	return m
}

func (m *Manager) now() time.Time {
	if m.nowFunc != nil {
		return m.nowFunc().UTC()
	}
	return time.Now().UTC()
}

func randomValue() (string, error) {
	const size = 16
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
