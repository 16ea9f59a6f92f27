package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"

	"eventhub/internal/model"
)

const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"
)

// Keys under which the auth middleware stores the caller on the request context.
const (
	CtxUserID  = "user_id"
	CtxIsAdmin = "is_admin"
)

var (
	ErrInvalidToken   = errors.New("token is invalid or expired")
	ErrWrongTokenType = errors.New("token has wrong type")
	ErrRefreshExpired = errors.New("refresh window has expired")
)

// Claims is the payload of both access and refresh tokens.
type Claims struct {
	jwt.StandardClaims
	TokenType        string `json:"token_type"`
	OriginalIssuedAt int64  `json:"orig_iat,omitempty"`
	IsAdmin          bool   `json:"is_admin,omitempty"`
}

func (c *Claims) UserID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

type TokenConfig struct {
	Secret        string
	Issuer        string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	RefreshWindow time.Duration
}

type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type TokenManager struct {
	cfg TokenConfig
	now func() time.Time
}

func NewTokenManager(cfg TokenConfig) *TokenManager {
	return &TokenManager{cfg: cfg, now: time.Now}
}

func (m *TokenManager) claims(u *model.User, typ string, ttl time.Duration, origIat int64) *Claims {
	now := m.now()
	if origIat == 0 {
		origIat = now.Unix()
	}
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.New().String(),
			Issuer:    m.cfg.Issuer,
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ttl).Unix(),
		},
		TokenType:        typ,
		OriginalIssuedAt: origIat,
		IsAdmin:          u.IsStaff,
	}
}

func (m *TokenManager) sign(c *Claims) (string, error) {
	ss, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(m.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return ss, nil
}

// Issue creates a fresh access/refresh pair.
func (m *TokenManager) Issue(u *model.User) (*TokenPair, error) {
	access, err := m.sign(m.claims(u, TokenAccess, m.cfg.AccessTTL, 0))
	if err != nil {
		return nil, err
	}
	refresh, err := m.sign(m.claims(u, TokenRefresh, m.cfg.RefreshTTL, 0))
	if err != nil {
		return nil, err
	}
	return &TokenPair{Access: access, Refresh: refresh}, nil
}

// Parse validates the signature, expiry and type of a token.
func (m *TokenManager) Parse(token, wantType string) (*Claims, error) {
	claims := new(Claims)
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(m.cfg.Secret), nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != wantType {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

// Refresh mints a new access token from a valid refresh token's claims. The original
// issue time is carried over and bounds how long refreshing is allowed.
func (m *TokenManager) Refresh(rc *Claims, u *model.User) (string, error) {
	if m.cfg.RefreshWindow > 0 {
		limit := time.Unix(rc.OriginalIssuedAt, 0).Add(m.cfg.RefreshWindow)
		if m.now().After(limit) {
			return "", ErrRefreshExpired
		}
	}
	return m.sign(m.claims(u, TokenAccess, m.cfg.AccessTTL, rc.OriginalIssuedAt))
}

func ExpiresAt(c *Claims) time.Time {
	return time.Unix(c.ExpiresAt, 0)
}
