package modules

import (
	"github.com/gin-gonic/gin"

	handlers "github.com/oksasatya/go-auth-service/internal/interface/http"
)

// UserModule serves GET /api/user/profile behind the session guard.
type UserModule struct {
	Handler *handlers.UserHandler
	Session gin.HandlerFunc
}

func NewUserModule(h *handlers.UserHandler, session gin.HandlerFunc) *UserModule {
	return &UserModule{Handler: h, Session: session}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	g := rg.Group("/user", m.Session)
	g.GET("/profile", m.Handler.GetProfile)
}
