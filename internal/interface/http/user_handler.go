package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-auth-service/internal/domain/entity"
	"github.com/oksasatya/go-auth-service/internal/interface/middleware"
	"github.com/oksasatya/go-auth-service/pkg/response"
)

type ProfileService interface {
	GetProfile(ctx context.Context, userID string) (entity.Profile, error)
}

type UserHandler struct {
	Svc ProfileService
}

func NewUserHandler(svc ProfileService) *UserHandler {
	return &UserHandler{Svc: svc}
}

// GetProfile GET /api/user/profile
func (h *UserHandler) GetProfile(c *gin.Context) {
	p, err := h.Svc.GetProfile(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	response.Success(c, http.StatusOK, p, "profile", nil)
}
