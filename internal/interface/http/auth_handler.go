package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-auth-service/internal/application"
	"github.com/oksasatya/go-auth-service/internal/domain/entity"
	"github.com/oksasatya/go-auth-service/internal/interface/middleware"
	"github.com/oksasatya/go-auth-service/pkg/apperr"
	"github.com/oksasatya/go-auth-service/pkg/helpers"
	"github.com/oksasatya/go-auth-service/pkg/response"
	"github.com/oksasatya/go-auth-service/pkg/validation"
)

// AuthService is the lifecycle surface the handlers drive (application.AuthService).
type AuthService interface {
	Register(ctx context.Context, name, email, password string) (*entity.Account, application.SessionToken, error)
	Login(ctx context.Context, email, password string) (*entity.Account, application.SessionToken, error)
	IssueVerificationCode(ctx context.Context, userID string) error
	VerifyEmail(ctx context.Context, userID, code string) error
	IssuePasswordResetCode(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, newPassword, code string) error
}

type AuthHandler struct {
	Svc     AuthService
	Cookies *helpers.Manager
	Logger  *logrus.Logger
}

func NewAuthHandler(svc AuthService, cookies *helpers.Manager, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{Svc: svc, Cookies: cookies, Logger: logger}
}

type registerRequest struct {
	Name     string `json:"name" binding:"required,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type verifyEmailRequest struct {
	VerificationCode string `json:"verificationCode" binding:"required"`
}

type sendResetCodeRequest struct {
	Email string `json:"email" binding:"required"`
}

type resetPasswordRequest struct {
	Email             string `json:"email" binding:"required"`
	NewPassword       string `json:"newPassword" binding:"required,max=72"`
	ResetPasswordCode string `json:"resetPasswordCode" binding:"required"`
}

type accountResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	IsVerified bool   `json:"isVerified"`
}

func toAccountResponse(a *entity.Account) accountResponse {
	return accountResponse{ID: a.ID, Name: a.Name, Email: a.Email, IsVerified: a.IsVerified}
}

// bind decodes the JSON body into req and records a validation error on failure.
func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		_ = c.Error(apperr.Validation("missing fields").WithDetails(validation.ToDetails(err)))
		return false
	}
	return true
}

// requestContext carries the caller's address and user agent down to the
// service for audit rows and reset mails.
func requestContext(c *gin.Context) context.Context {
	return application.WithRequestMeta(c.Request.Context(), application.RequestMeta{
		IP:        middleware.ClientIP(c),
		UserAgent: c.GetHeader("User-Agent"),
	})
}

// Register POST /api/auth/register {name,email,password}
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bind(c, &req) {
		return
	}
	a, tok, err := h.Svc.Register(requestContext(c), req.Name, req.Email, req.Password)
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.Cookies.SetSession(c, tok.Token, tok.ExpiresAt)
	response.Success(c, http.StatusCreated, toAccountResponse(a), "account created", gin.H{"expires_at": tok.ExpiresAt.UTC().Format(time.RFC3339)})
}

// Login POST /api/auth/login {email,password}
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bind(c, &req) {
		return
	}
	a, tok, err := h.Svc.Login(requestContext(c), req.Email, req.Password)
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.Cookies.SetSession(c, tok.Token, tok.ExpiresAt)
	response.Success(c, http.StatusOK, toAccountResponse(a), "login successful", gin.H{"expires_at": tok.ExpiresAt.UTC().Format(time.RFC3339)})
}

// Logout POST /api/auth/logout
// Issued tokens stay valid until they expire; only the cookie is removed.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.Cookies.Clear(c)
	response.Success[any](c, http.StatusOK, gin.H{"logged_out": true}, "logged out", nil)
}

// SendVerificationCode POST /api/auth/send-verification-code
func (h *AuthHandler) SendVerificationCode(c *gin.Context) {
	if err := h.Svc.IssueVerificationCode(requestContext(c), middleware.UserID(c)); err != nil {
		_ = c.Error(err)
		return
	}
	response.Success[any](c, http.StatusOK, nil, "verification code sent", nil)
}

// VerifyEmail POST /api/auth/verify-email {verificationCode}
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req verifyEmailRequest
	if !bind(c, &req) {
		return
	}
	if err := h.Svc.VerifyEmail(requestContext(c), middleware.UserID(c), req.VerificationCode); err != nil {
		_ = c.Error(err)
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"verified": true}, "email verified", nil)
}

// Authenticated GET /api/auth/authenticated
func (h *AuthHandler) Authenticated(c *gin.Context) {
	response.Success[any](c, http.StatusOK, gin.H{"authenticated": true, "userId": middleware.UserID(c)}, "authenticated", nil)
}

// SendResetCode POST /api/auth/send-reset-code {email}
func (h *AuthHandler) SendResetCode(c *gin.Context) {
	var req sendResetCodeRequest
	if !bind(c, &req) {
		return
	}
	if err := h.Svc.IssuePasswordResetCode(requestContext(c), req.Email); err != nil {
		_ = c.Error(err)
		return
	}
	response.Success[any](c, http.StatusOK, nil, "reset code sent", nil)
}

// ResetPassword POST /api/auth/reset-password {email,newPassword,resetPasswordCode}
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bind(c, &req) {
		return
	}
	if err := h.Svc.ResetPassword(requestContext(c), req.Email, req.NewPassword, req.ResetPasswordCode); err != nil {
		_ = c.Error(err)
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"reset": true}, "password has been reset", nil)
}
