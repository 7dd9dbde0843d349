package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-auth-service/pkg/apperr"
	"github.com/oksasatya/go-auth-service/pkg/helpers"
)

const CtxUserIDKey = "userID"

// TokenVerifier resolves a session token to the account id it is bound to.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Session requires a valid session cookie and stores the account id under
// CtxUserIDKey. Failures abort the chain and are rendered by ErrorHandler.
func Session(tokens TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(helpers.SessionCookie)
		if err != nil || token == "" {
			_ = c.Error(apperr.Auth("unauthorized access").WithCode("UNAUTHORIZED"))
			c.Abort()
			return
		}

		uid, err := verify(tokens, token)
		if err != nil {
			if apperr.Is(err, apperr.KindExpired) {
				_ = c.Error(apperr.Expired("session expired, please log in again").WithCode("SESSION_EXPIRED"))
			} else {
				_ = c.Error(apperr.Auth("invalid token").WithCode("INVALID_TOKEN"))
			}
			c.Abort()
			return
		}

		c.Set(CtxUserIDKey, uid)
		c.Next()
	}
}

// verify turns a panic inside the verifier into an auth failure.
func verify(tokens TokenVerifier, token string) (uid string, err error) {
	defer func() {
		if r := recover(); r != nil {
			uid, err = "", apperr.Auth("invalid token")
		}
	}()
	return tokens.Verify(token)
}

// UserID returns the account id stored by Session.
func UserID(c *gin.Context) string {
	return c.GetString(CtxUserIDKey)
}
