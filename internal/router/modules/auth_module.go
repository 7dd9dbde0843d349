package modules

import (
	"github.com/gin-gonic/gin"

	handlers "github.com/oksasatya/go-auth-service/internal/interface/http"
)

// AuthModule serves the account lifecycle under /api/auth.
type AuthModule struct {
	Handler *handlers.AuthHandler
	Session gin.HandlerFunc
}

func NewAuthModule(h *handlers.AuthHandler, session gin.HandlerFunc) *AuthModule {
	return &AuthModule{Handler: h, Session: session}
}

func (m *AuthModule) Register(rg *gin.RouterGroup) {
	g := rg.Group("/auth")
	g.POST("/register", m.Handler.Register)
	g.POST("/login", m.Handler.Login)
	g.POST("/send-reset-code", m.Handler.SendResetCode)
	g.POST("/reset-password", m.Handler.ResetPassword)

	auth := g.Group("/", m.Session)
	{
		auth.POST("/logout", m.Handler.Logout)
		auth.POST("/send-verification-code", m.Handler.SendVerificationCode)
		auth.POST("/verify-email", m.Handler.VerifyEmail)
		auth.GET("/authenticated", m.Handler.Authenticated)
	}
}
