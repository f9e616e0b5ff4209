// Package auth guards the allocation pages with a shared password and a
// signed session cookie.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// CookieName is the session cookie set on login.
const CookieName = "condo_session"

const issuer = "condomini"

// BypassSessionID marks the synthetic session used when auth is bypassed.
const BypassSessionID = "bypass"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid session token")
	ErrTokenExpired       = errors.New("session expired")
	ErrNoSession          = errors.New("no session")
)

// Claims are carried by the session token.
type Claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Options configures a Manager.
type Options struct {
	PasswordHash string
	Secret       string
	TTL          time.Duration
	Bypass       bool
	// SecureCookie sets the Secure attribute on issued cookies.
	SecureCookie bool
}

// Manager checks passwords and issues and validates session tokens.
type Manager struct {
	passwordHash []byte
	secret       []byte
	ttl          time.Duration
	bypass       bool
	secure       bool
	now          func() time.Time
}

func NewManager(opts Options) *Manager {
	if opts.TTL <= 0 {
		opts.TTL = 12 * time.Hour
	}
	return &Manager{
		passwordHash: []byte(opts.PasswordHash),
		secret:       []byte(opts.Secret),
		ttl:          opts.TTL,
		bypass:       opts.Bypass,
		secure:       opts.SecureCookie,
		now:          time.Now,
	}
}

// Bypassed reports whether every request is treated as authenticated.
func (m *Manager) Bypassed() bool {
	return m.bypass
}

// HashPassword returns the bcrypt hash to store in CONDO_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// CheckPassword compares password with the configured hash.
func (m *Manager) CheckPassword(password string) error {
	if len(m.passwordHash) == 0 || password == "" {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(m.passwordHash, []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("verify password: %w", err)
	}
	return nil
}

// IssueToken signs a new session token.
func (m *Manager) IssueToken(sessionID string) (string, *Claims, error) {
	now := m.now()
	claims := &Claims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign session token: %w", err)
	}
	return signed, claims, nil
}

// ParseToken validates a session token and returns its claims.
func (m *Manager) ParseToken(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Login checks the password and returns the session cookie to set.
func (m *Manager) Login(password string) (*http.Cookie, *Claims, error) {
	if err := m.CheckPassword(password); err != nil {
		return nil, nil, err
	}
	token, claims, err := m.IssueToken(uuid.NewString())
	if err != nil {
		return nil, nil, err
	}
	return m.cookie(token, claims.ExpiresAt.Time), claims, nil
}

// LogoutCookie expires the session cookie.
func (m *Manager) LogoutCookie() *http.Cookie {
	c := m.cookie("", time.Unix(0, 0))
	c.MaxAge = -1
	return c
}

func (m *Manager) cookie(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Authenticate resolves the session of r from its cookie or bearer token.
func (m *Manager) Authenticate(r *http.Request) (*Claims, error) {
	if m.bypass {
		return &Claims{SessionID: BypassSessionID}, nil
	}
	token := bearerToken(r)
	if token == "" {
		if c, err := r.Cookie(CookieName); err == nil {
			token = c.Value
		}
	}
	if token == "" {
		return nil, ErrNoSession
	}
	return m.ParseToken(token)
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// Middleware rejects requests without a valid session through onUnauthorized
// and stores the claims of accepted requests in the request context.
func (m *Manager) Middleware(onUnauthorized func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := m.Authenticate(r)
			if err != nil {
				if onUnauthorized != nil {
					onUnauthorized(w, r, err)
				} else {
					http.Error(w, "unauthorized", http.StatusUnauthorized)
				}
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

type claimsKey struct{}

// WithClaims returns a context carrying claims.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFromContext returns the session claims of the current request.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*Claims)
	return claims, ok && claims != nil
}
