package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for tokens that fail signature or claim checks.
var ErrInvalidToken = errors.New("invalid token")

// Claims defines JWT claims
type Claims struct {
	jwt.RegisteredClaims
	UserID int `json:"user_id"`
}

// TokenManager keeps the marker in a stateless HS256 JWT cookie.
// Clearing drops the cookie; a copied token stays valid until it expires.
type TokenManager struct {
	opts Options
	now  func() time.Time
}

var _ Manager = (*TokenManager)(nil)

func NewTokenManager(o Options) *TokenManager {
	return &TokenManager{opts: o, now: time.Now}
}

func (m *TokenManager) Middleware() gin.HandlersChain {
	return gin.HandlersChain{m.load}
}

func (m *TokenManager) load(c *gin.Context) {
	if raw, err := c.Cookie(m.opts.Name); err == nil && raw != "" {
		if p, err := m.Parse(raw); err == nil {
			setPrincipal(c, p)
		}
	}
	c.Next()
}

func (m *TokenManager) Bind(c *gin.Context, p Principal) error {
	token, err := m.Issue(p)
	if err != nil {
		return err
	}
	c.SetSameSite(sameSite)
	c.SetCookie(m.opts.Name, token, m.opts.maxAgeSeconds(), "/", "", m.opts.Secure, true)
	setPrincipal(c, p)
	return nil
}

func (m *TokenManager) Clear(c *gin.Context) (bool, error) {
	_, had := FromContext(c.Request.Context())
	c.SetSameSite(sameSite)
	c.SetCookie(m.opts.Name, "", -1, "/", "", m.opts.Secure, true)
	return had, nil
}

// Issue signs a token for p.
func (m *TokenManager) Issue(p Principal) (string, error) {
	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Username,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.opts.MaxAge)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		UserID: p.UserID,
	})
	signed, err := token.SignedString(m.opts.Secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Parse validates raw and returns the principal it carries.
func (m *TokenManager) Parse(raw string) (Principal, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Ensure HMAC signing is used
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.opts.Secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		return Principal{}, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID <= 0 {
		return Principal{}, ErrInvalidToken
	}
	return Principal{UserID: claims.UserID, Username: claims.Subject}, nil
}
