package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-auth-service/internal/container"
	handlers "github.com/oksasatya/go-auth-service/internal/interface/http"
	"github.com/oksasatya/go-auth-service/internal/interface/middleware"
	"github.com/oksasatya/go-auth-service/internal/router/modules"
	"github.com/oksasatya/go-auth-service/pkg/apperr"
	"github.com/oksasatya/go-auth-service/pkg/response"
)

// InitModules builds the handlers from c and adds every feature module to r.
func InitModules(r *Registry, c *container.Container) {
	session := middleware.Session(c.Tokens)

	r.Add(modules.NewAuthModule(handlers.NewAuthHandler(c.Auth, c.Cookies, c.Logger), session))
	r.Add(modules.NewUserModule(handlers.NewUserHandler(c.Users), session))
	if c.Config.DebugMetricsEnabled {
		r.Add(modules.NewDebugModule())
	}
}

// Setup registers the liveness route, the 404 fallback and all modules on engine.
func Setup(engine *gin.Engine, c *container.Container) *Registry {
	engine.GET("/", func(ctx *gin.Context) {
		response.Success[any](ctx, http.StatusOK, nil, "API Working", nil)
	})
	engine.NoRoute(func(ctx *gin.Context) {
		_ = ctx.Error(apperr.NotFound("route not found"))
	})

	reg := NewRegistry(engine)
	InitModules(reg, c)
	reg.RegisterAll()
	return reg
}
