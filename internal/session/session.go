// Package session keeps the authenticated email in a signed cookie and
// exposes it to handlers as a request-scoped context value.
package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "healthtips"

type contextKey struct{}

// Config configures cookie and token lifetimes.
type Config struct {
	Secret     []byte
	CookieName string
	MaxAge     time.Duration
	Secure     bool
	LoginPath  string
}

// Manager issues and verifies session cookies.
type Manager struct {
	secret     []byte
	cookieName string
	maxAge     time.Duration
	secure     bool
	loginPath  string
	now        func() time.Time
}

// NewManager returns a Manager. An empty secret is replaced by 32 random
// bytes, which means sessions do not survive a restart.
func NewManager(cfg Config) (*Manager, error) {
	secret := cfg.Secret
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "healthtips_session"
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 24 * time.Hour
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	return &Manager{
		secret:     secret,
		cookieName: cfg.CookieName,
		maxAge:     cfg.MaxAge,
		secure:     cfg.Secure,
		loginPath:  cfg.LoginPath,
		now:        time.Now,
	}, nil
}

// Login establishes a session for email on the response.
func (m *Manager) Login(w http.ResponseWriter, email string) error {
	now := m.now()
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.maxAge)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return fmt.Errorf("sign session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.maxAge.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Logout clears the session cookie.
func (m *Manager) Logout(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Verify returns the email carried by a session token.
func (m *Manager) Verify(token string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("session has no subject")
	}
	return claims.Subject, nil
}

// Middleware attaches the session identity, if any, to the request context.
// Invalid or expired cookies are ignored.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(m.cookieName)
		if err == nil && c.Value != "" {
			if email, err := m.Verify(c.Value); err == nil {
				r = r.WithContext(WithUser(r.Context(), email))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireUser redirects to the login page when no identity is present.
func (m *Manager) RequireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); !ok {
			http.Redirect(w, r, m.loginPath, http.StatusFound)
			return
		}
		next(w, r)
	}
}

// WithUser returns a context carrying email as the authenticated identity.
func WithUser(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, contextKey{}, email)
}

// UserFromContext returns the authenticated email, if any.
func UserFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(contextKey{}).(string)
	return email, ok && email != ""
}
