package application

import (
	"context"
	"crypto/subtle"
	"errors"
	"expvar"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/oksasatya/go-auth-service/internal/domain/entity"
	repo "github.com/oksasatya/go-auth-service/internal/domain/repository"
	"github.com/oksasatya/go-auth-service/pkg/apperr"
	"github.com/oksasatya/go-auth-service/pkg/mailer"
	mailtpl "github.com/oksasatya/go-auth-service/pkg/mailer/templates"
)

// PasswordHasher hashes and checks passwords (helpers.Hasher).
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Compare(hash, plain string) bool
}

// TokenIssuer issues session tokens (helpers.TokenManager).
type TokenIssuer interface {
	Issue(userID string) (string, time.Time, error)
}

// CodeGenerator produces one-time codes and their deadline (helpers.CodeGenerator).
type CodeGenerator interface {
	Generate() (string, time.Time, error)
}

// ProfileInvalidator drops a cached profile after the account changes.
type ProfileInvalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

// SessionToken is a freshly issued session credential.
type SessionToken struct {
	Token     string
	ExpiresAt time.Time
}

var counters = expvar.NewMap("auth_lifecycle")

const (
	defaultDBTimeout   = 5 * time.Second
	defaultMailTimeout = 15 * time.Second
)

// AuthService runs the account lifecycle: registration, login, email
// verification and password reset.
type AuthService struct {
	Repo     repo.AccountRepository
	Audit    repo.AuditRepository
	Hasher   PasswordHasher
	Tokens   TokenIssuer
	Codes    CodeGenerator
	Mail     mailer.Dispatcher
	Profiles ProfileInvalidator
	Logger   *logrus.Logger
	Brand    mailtpl.Brand

	DBTimeout   time.Duration
	MailTimeout time.Duration
	Now         func() time.Time

	mailWG sync.WaitGroup
}

func NewAuthService(r repo.AccountRepository, hasher PasswordHasher, tokens TokenIssuer, codes CodeGenerator, mail mailer.Dispatcher, logger *logrus.Logger) *AuthService {
	if mail == nil {
		mail = mailer.Disabled{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AuthService{
		Repo:        r,
		Hasher:      hasher,
		Tokens:      tokens,
		Codes:       codes,
		Mail:        mail,
		Logger:      logger,
		DBTimeout:   defaultDBTimeout,
		MailTimeout: defaultMailTimeout,
		Now:         time.Now,
	}
}

// Register creates an unverified account and signs the caller in.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*entity.Account, SessionToken, error) {
	name = strings.TrimSpace(name)
	email = entity.NormalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return nil, SessionToken{}, apperr.Validation("missing fields")
	}

	existing, err := s.getByEmail(ctx, email)
	if err == nil && existing != nil {
		return nil, SessionToken{}, apperr.Conflict("email already exists")
	}
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, SessionToken{}, apperr.Internal("lookup account failed", err)
	}

	hash, err := s.hash("password", password)
	if err != nil {
		return nil, SessionToken{}, err
	}

	a := &entity.Account{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
	}
	c, cancel := s.dbCtx(ctx)
	err = s.Repo.Create(c, a)
	cancel()
	if err != nil {
		// a concurrent registration won the unique index
		if errors.Is(err, repo.ErrDuplicateEmail) {
			return nil, SessionToken{}, apperr.Conflict("email already exists")
		}
		return nil, SessionToken{}, apperr.Internal("create account failed", err)
	}

	tok, err := s.issue(a.ID)
	if err != nil {
		return nil, SessionToken{}, err
	}

	counters.Add("register", 1)
	s.audit(ctx, a.ID, a.Email, "register", nil)
	s.dispatch(ctx, a.ID, mailer.EmailJob{
		To:       a.Email,
		Template: mailtpl.Welcome,
		Data:     mailtpl.NewWelcomeData(s.Brand, a.Name, a.Email, mailtpl.WithTime(s.Now())),
	})
	return a, tok, nil
}

// Login checks the password and issues a fresh session token. Verification is
// not required to log in.
func (s *AuthService) Login(ctx context.Context, email, password string) (*entity.Account, SessionToken, error) {
	email = entity.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, SessionToken{}, apperr.Validation("email/password is required")
	}

	a, err := s.getByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			counters.Add("login_failed", 1)
			return nil, SessionToken{}, apperr.NotFound("email does not exist")
		}
		return nil, SessionToken{}, apperr.Internal("lookup account failed", err)
	}

	if !s.Hasher.Compare(a.PasswordHash, password) {
		counters.Add("login_failed", 1)
		s.audit(ctx, a.ID, a.Email, "login_failed", nil)
		return nil, SessionToken{}, apperr.Auth("email/password does not match")
	}

	tok, err := s.issue(a.ID)
	if err != nil {
		return nil, SessionToken{}, err
	}
	counters.Add("login_success", 1)
	s.audit(ctx, a.ID, a.Email, "login_success", nil)
	return a, tok, nil
}

// IssueVerificationCode stores a new verification code, replacing any previous
// one, and mails it to the account owner.
func (s *AuthService) IssueVerificationCode(ctx context.Context, userID string) error {
	if userID == "" {
		return apperr.Validation("missing fields")
	}
	a, err := s.getByID(ctx, userID)
	if err != nil {
		return err
	}
	if a.IsVerified {
		return apperr.Conflict("account already verified")
	}

	code, exp, err := s.issueCode(ctx, a.ID, entity.SlotVerification)
	if err != nil {
		return err
	}

	counters.Add("verification_code_issued", 1)
	s.audit(ctx, a.ID, a.Email, "verify_code_issue", nil)
	s.dispatch(ctx, a.ID, mailer.EmailJob{
		To:       a.Email,
		Template: mailtpl.VerifyCode,
		Data:     mailtpl.NewVerifyCodeData(s.Brand, a.Name, a.Email, code, mailtpl.WithExpiry(exp, s.Now())),
	})
	return nil
}

// VerifyEmail consumes the verification code and marks the account verified.
func (s *AuthService) VerifyEmail(ctx context.Context, userID, code string) error {
	code = strings.TrimSpace(code)
	if userID == "" || code == "" {
		return apperr.Validation("missing fields")
	}
	a, err := s.getByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.checkCode(a, entity.SlotVerification, code); err != nil {
		counters.Add("verification_failed", 1)
		return err
	}

	c, cancel := s.dbCtx(ctx)
	err = s.Repo.ConsumeVerificationCode(c, a.ID, code)
	cancel()
	if err != nil {
		if errors.Is(err, repo.ErrCodeMismatch) {
			return apperr.Auth("invalid verification code")
		}
		return apperr.Internal("verify email failed", err)
	}

	if s.Profiles != nil {
		if err := s.Profiles.Invalidate(ctx, a.ID); err != nil {
			s.Logger.WithError(err).WithField("user_id", a.ID).Warn("profile cache invalidate failed")
		}
	}
	counters.Add("verification_success", 1)
	s.audit(ctx, a.ID, a.Email, "verify_confirm", nil)
	return nil
}

// IssuePasswordResetCode stores a new reset code for the account behind email
// and mails it.
func (s *AuthService) IssuePasswordResetCode(ctx context.Context, email string) error {
	email = entity.NormalizeEmail(email)
	if email == "" {
		return apperr.Validation("email field is required")
	}
	a, err := s.getByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.audit(ctx, "", email, "reset_init_unknown", nil)
			return apperr.NotFound("email is not registered")
		}
		return apperr.Internal("lookup account failed", err)
	}

	code, exp, err := s.issueCode(ctx, a.ID, entity.SlotResetPassword)
	if err != nil {
		return err
	}

	meta := RequestMetaFrom(ctx)
	counters.Add("reset_code_issued", 1)
	s.audit(ctx, a.ID, a.Email, "reset_init_issue", nil)
	s.dispatch(ctx, a.ID, mailer.EmailJob{
		To:       a.Email,
		Template: mailtpl.ResetCode,
		Data: mailtpl.NewResetCodeData(s.Brand, a.Name, a.Email, code,
			mailtpl.WithExpiry(exp, s.Now()),
			mailtpl.WithIP(meta.IP),
			mailtpl.WithUserAgent(meta.UserAgent),
		),
	})
	return nil
}

// ResetPassword consumes the reset code and replaces the password hash.
func (s *AuthService) ResetPassword(ctx context.Context, email, newPassword, code string) error {
	email = entity.NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || newPassword == "" || code == "" {
		return apperr.Validation("email/password/reset code is required")
	}
	a, err := s.getByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return apperr.NotFound("email is not registered")
		}
		return apperr.Internal("lookup account failed", err)
	}
	if err := s.checkCode(a, entity.SlotResetPassword, code); err != nil {
		counters.Add("reset_failed", 1)
		return err
	}

	hash, err := s.hash("newPassword", newPassword)
	if err != nil {
		return err
	}
	c, cancel := s.dbCtx(ctx)
	err = s.Repo.ConsumeResetCode(c, a.ID, code, hash)
	cancel()
	if err != nil {
		if errors.Is(err, repo.ErrCodeMismatch) {
			return apperr.Auth("invalid reset code")
		}
		return apperr.Internal("reset password failed", err)
	}

	counters.Add("reset_success", 1)
	s.audit(ctx, a.ID, a.Email, "reset_confirm", nil)
	return nil
}

// hash maps an over-long password to a validation error; bcrypt rejects
// anything past 72 bytes.
func (s *AuthService) hash(field, password string) (string, error) {
	h, err := s.Hasher.Hash(password)
	switch {
	case errors.Is(err, bcrypt.ErrPasswordTooLong):
		return "", apperr.Validation("password must be at most 72 bytes").
			WithDetails(map[string]string{field: "must be at most 72 bytes"})
	case err != nil:
		return "", apperr.Internal("hash password failed", err)
	}
	return h, nil
}

// Wait blocks until every queued notification has finished.
func (s *AuthService) Wait() {
	s.mailWG.Wait()
}

// checkCode validates a submitted code against slot. Mismatch is checked before
// expiry so an expired deadline is only reported for the right code.
func (s *AuthService) checkCode(a *entity.Account, slot entity.CodeSlot, submitted string) error {
	stored, exp := a.Code(slot)
	if stored == "" || subtle.ConstantTimeCompare([]byte(stored), []byte(submitted)) != 1 {
		if slot == entity.SlotResetPassword {
			return apperr.Auth("invalid reset code")
		}
		return apperr.Auth("invalid verification code")
	}
	if s.Now().After(exp) {
		if slot == entity.SlotResetPassword {
			return apperr.Expired("reset code is expired").WithCode("CODE_EXPIRED")
		}
		return apperr.Expired("verification code expired").WithCode("CODE_EXPIRED")
	}
	return nil
}

func (s *AuthService) issueCode(ctx context.Context, userID string, slot entity.CodeSlot) (string, time.Time, error) {
	code, exp, err := s.Codes.Generate()
	if err != nil {
		return "", time.Time{}, apperr.Internal("generate code failed", err)
	}
	c, cancel := s.dbCtx(ctx)
	defer cancel()
	if err := s.Repo.SetCode(c, userID, slot, code, exp); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", time.Time{}, apperr.NotFound("user not found")
		}
		return "", time.Time{}, apperr.Internal("store code failed", err)
	}
	return code, exp, nil
}

func (s *AuthService) issue(userID string) (SessionToken, error) {
	tok, exp, err := s.Tokens.Issue(userID)
	if err != nil {
		s.Logger.WithError(err).WithField("user_id", userID).Error("issue session token failed")
		if apperr.KindOf(err) == apperr.KindInternal {
			return SessionToken{}, apperr.As(err)
		}
		return SessionToken{}, apperr.Internal("issue session token failed", err)
	}
	return SessionToken{Token: tok, ExpiresAt: exp}, nil
}

func (s *AuthService) getByID(ctx context.Context, userID string) (*entity.Account, error) {
	c, cancel := s.dbCtx(ctx)
	defer cancel()
	a, err := s.Repo.GetByID(c, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Internal("lookup account failed", err)
	}
	return a, nil
}

func (s *AuthService) getByEmail(ctx context.Context, email string) (*entity.Account, error) {
	c, cancel := s.dbCtx(ctx)
	defer cancel()
	return s.Repo.GetByEmail(c, email)
}

func (s *AuthService) dbCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.DBTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.DBTimeout)
}

// dispatch hands job to the mail dispatcher in the background. The state change
// it reports is already committed, so failures are only logged.
func (s *AuthService) dispatch(ctx context.Context, userID string, job mailer.EmailJob) {
	s.mailWG.Add(1)
	go func() {
		defer s.mailWG.Done()
		c, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.MailTimeout)
		defer cancel()
		if err := s.Mail.Dispatch(c, job); err != nil {
			counters.Add("mail_failed", 1)
			s.Logger.WithError(err).
				WithFields(logrus.Fields{"user_id": userID, "template": job.Template}).
				Warn("notification dispatch failed")
		}
	}()
}

func (s *AuthService) audit(ctx context.Context, userID, email, action string, metadata map[string]any) {
	if s.Audit == nil {
		return
	}
	meta := RequestMetaFrom(ctx)
	c, cancel := s.dbCtx(ctx)
	defer cancel()
	err := s.Audit.Insert(c, repo.AuditEvent{
		UserID:    userID,
		Email:     email,
		Action:    action,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Metadata:  metadata,
	})
	if err != nil {
		s.Logger.WithError(err).WithField("action", action).Warn("audit insert failed")
	}
}
