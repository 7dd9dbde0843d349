package repository

import (
	"context"
	"errors"
	"time"

	"github.com/oksasatya/go-auth-service/internal/domain/entity"
)

var (
	// ErrNotFound is returned when no account matches the lookup.
	ErrNotFound = errors.New("account not found")
	// ErrDuplicateEmail is returned when an insert hits the unique email constraint.
	ErrDuplicateEmail = errors.New("email already exists")
	// ErrCodeMismatch is returned by the consume operations when the slot no
	// longer holds the submitted code (consumed or superseded concurrently).
	ErrCodeMismatch = errors.New("code no longer matches")
)

// AccountRepository defines the persistence operations on accounts.
type AccountRepository interface {
	Create(ctx context.Context, a *entity.Account) error
	GetByID(ctx context.Context, id string) (*entity.Account, error)
	GetByEmail(ctx context.Context, email string) (*entity.Account, error)

	// SetCode overwrites the given slot with code and its deadline.
	SetCode(ctx context.Context, id string, slot entity.CodeSlot, code string, expiresAt time.Time) error

	// ConsumeVerificationCode marks the account verified and clears the
	// verification slot in one statement, provided the slot still holds code.
	ConsumeVerificationCode(ctx context.Context, id, code string) error

	// ConsumeResetCode replaces the password hash and clears the reset slot in
	// one statement, provided the slot still holds code.
	ConsumeResetCode(ctx context.Context, id, code, passwordHash string) error
}

// AuditEvent is one row of the auth audit trail.
type AuditEvent struct {
	UserID    string
	Email     string
	Action    string
	IP        string
	UserAgent string
	Metadata  map[string]any
}

// AuditRepository records auth events. Writes are best effort.
type AuditRepository interface {
	Insert(ctx context.Context, e AuditEvent) error
}
