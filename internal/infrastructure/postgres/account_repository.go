package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/oksasatya/go-auth-service/internal/domain/entity"
	"github.com/oksasatya/go-auth-service/internal/domain/repository"
)

const accountColumns = `id, name, email, password_hash, is_verified,
	       verification_code, verification_code_expires_at,
	       reset_password_code, reset_password_code_expires_at,
	       created_at, updated_at`

// AccountRepository implements repository.AccountRepository on PostgreSQL.
// Code deadlines are stored as unix milliseconds, 0 meaning no active code.
type AccountRepository struct {
	pool poolIface
	now  func() time.Time
}

func NewAccountRepository(pool poolIface) *AccountRepository {
	return &AccountRepository{pool: pool, now: time.Now}
}

func (r *AccountRepository) Create(ctx context.Context, a *entity.Account) error {
	now := r.now().UTC()
	a.Email = entity.NormalizeEmail(a.Email)
	a.CreatedAt, a.UpdatedAt = now, now

	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (id, name, email, password_hash, is_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, a.ID, a.Name, a.Email, a.PasswordHash, a.IsVerified, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("ACCOUNT_EMAIL_TAKEN").
				With("email", a.Email).
				Wrap(repository.ErrDuplicateEmail)
		}
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			Wrap(err)
	}
	return nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*entity.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").With("id", id).Wrap(repository.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").
			With("operation", "get account by id").
			With("id", id).
			Wrap(err)
	}
	return a, nil
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*entity.Account, error) {
	email = entity.NormalizeEmail(email)
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").With("email", email).Wrap(repository.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").
			With("operation", "get account by email").
			Wrap(err)
	}
	return a, nil
}

func (r *AccountRepository) SetCode(ctx context.Context, id string, slot entity.CodeSlot, code string, expiresAt time.Time) error {
	var q string
	switch slot {
	case entity.SlotVerification:
		q = `UPDATE accounts
		     SET verification_code = $2, verification_code_expires_at = $3, updated_at = $4
		     WHERE id = $1`
	case entity.SlotResetPassword:
		q = `UPDATE accounts
		     SET reset_password_code = $2, reset_password_code_expires_at = $3, updated_at = $4
		     WHERE id = $1`
	default:
		return oops.Code("ACCOUNT_SET_CODE_FAILED").With("slot", slot.String()).Errorf("unknown code slot")
	}

	tag, err := r.pool.Exec(ctx, q, id, code, toMillis(expiresAt), r.now().UTC())
	if err != nil {
		return oops.Code("ACCOUNT_SET_CODE_FAILED").
			With("operation", "set code").
			With("slot", slot.String()).
			With("id", id).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").With("id", id).Wrap(repository.ErrNotFound)
	}
	return nil
}

func (r *AccountRepository) ConsumeVerificationCode(ctx context.Context, id, code string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE accounts
		SET is_verified = TRUE, verification_code = '', verification_code_expires_at = 0, updated_at = $3
		WHERE id = $1 AND verification_code = $2 AND verification_code <> ''
	`, id, code, r.now().UTC())
	if err != nil {
		return oops.Code("ACCOUNT_VERIFY_FAILED").
			With("operation", "consume verification code").
			With("id", id).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_CODE_MISMATCH").With("id", id).Wrap(repository.ErrCodeMismatch)
	}
	return nil
}

func (r *AccountRepository) ConsumeResetCode(ctx context.Context, id, code, passwordHash string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE accounts
		SET password_hash = $3, reset_password_code = '', reset_password_code_expires_at = 0, updated_at = $4
		WHERE id = $1 AND reset_password_code = $2 AND reset_password_code <> ''
	`, id, code, passwordHash, r.now().UTC())
	if err != nil {
		return oops.Code("ACCOUNT_RESET_FAILED").
			With("operation", "consume reset code").
			With("id", id).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_CODE_MISMATCH").With("id", id).Wrap(repository.ErrCodeMismatch)
	}
	return nil
}

func scanAccount(row pgx.Row) (*entity.Account, error) {
	var (
		a                   entity.Account
		verifyExp, resetExp int64
	)
	if err := row.Scan(
		&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.IsVerified,
		&a.VerificationCode, &verifyExp,
		&a.ResetPasswordCode, &resetExp,
		&a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	a.VerificationCodeExpiresAt = fromMillis(verifyExp)
	a.ResetPasswordCodeExpiresAt = fromMillis(resetExp)
	return &a, nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

var _ repository.AccountRepository = (*AccountRepository)(nil)
