package helpers

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/oksasatya/go-auth-service/pkg/apperr"
)

// SessionTTL is the lifetime of a session token.
const SessionTTL = 7 * 24 * time.Hour

// TokenManager signs and verifies session tokens with a single HMAC key.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type Claims struct {
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = SessionTTL
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock replaces the time source used for issuing and checking expiry.
func (m *TokenManager) WithClock(now func() time.Time) *TokenManager {
	if now != nil {
		m.now = now
	}
	return m
}

func (m *TokenManager) TTL() time.Duration { return m.ttl }

// Issue returns a signed token bound to userID together with its expiry.
func (m *TokenManager) Issue(userID string) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, apperr.Internal("token issue failed", errors.New("empty subject"))
	}
	if len(m.secret) == 0 {
		return "", time.Time{}, apperr.Internal("token issue failed", errors.New("signing key not configured"))
	}
	iat := m.now()
	exp := iat.Add(m.ttl)
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, apperr.Internal("token issue failed", err)
	}
	return s, exp, nil
}

// Verify checks signature and expiry and returns the bound user id.
// Expired tokens yield an apperr.KindExpired error; anything else is KindAuth.
func (m *TokenManager) Verify(tokenStr string) (string, error) {
	if tokenStr == "" {
		return "", apperr.Auth("invalid token")
	}
	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", apperr.Expired("session expired").WithCode("SESSION_EXPIRED")
		}
		return "", &apperr.Error{Kind: apperr.KindAuth, Status: apperr.KindAuth.Status(), Message: "invalid token", Err: err}
	}
	if !tkn.Valid {
		return "", apperr.Auth("invalid token")
	}
	uid := claims.Subject
	if uid == "" {
		uid = claims.UserID
	}
	if uid == "" {
		return "", apperr.Auth("invalid token")
	}
	return uid, nil
}
