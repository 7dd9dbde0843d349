package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/go-auth-service/internal/domain/entity"
	"github.com/oksasatya/go-auth-service/internal/domain/repository"
)

var fixedNow = time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *AccountRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(mock.Close)

	repo := NewAccountRepository(mock)
	repo.now = func() time.Time { return fixedNow }
	return mock, repo
}

var accountCols = []string{
	"id", "name", "email", "password_hash", "is_verified",
	"verification_code", "verification_code_expires_at",
	"reset_password_code", "reset_password_code_expires_at",
	"created_at", "updated_at",
}

func TestAccountRepository_Create(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   error
	}{
		{
			name: "inserts normalized email",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO accounts`).
					WithArgs("id-1", "Alice", "alice@example.com", "hash", false, fixedNow, fixedNow).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
			},
		},
		{
			name: "unique violation maps to duplicate email",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`INSERT INTO accounts`).
					WithArgs("id-1", "Alice", "alice@example.com", "hash", false, fixedNow, fixedNow).
					WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "accounts_email_key"})
			},
			wantErr: repository.ErrDuplicateEmail,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, repo := newMockRepo(t)
			tt.setupMock(mock)

			a := &entity.Account{ID: "id-1", Name: "Alice", Email: "  Alice@Example.COM ", PasswordHash: "hash"}
			err := repo.Create(context.Background(), a)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "alice@example.com", a.Email)
				assert.Equal(t, fixedNow, a.CreatedAt)
			}
			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestAccountRepository_CreateOtherFailure(t *testing.T) {
	mock, repo := newMockRepo(t)
	mock.ExpectExec(`INSERT INTO accounts`).WillReturnError(errors.New("connection refused"))

	err := repo.Create(context.Background(), &entity.Account{ID: "x", Email: "x@example.com"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, repository.ErrDuplicateEmail)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestAccountRepository_GetByEmail(t *testing.T) {
	exp := fixedNow.Add(20 * time.Minute)

	t.Run("found", func(t *testing.T) {
		mock, repo := newMockRepo(t)
		rows := pgxmock.NewRows(accountCols).AddRow(
			"id-1", "Alice", "alice@example.com", "hash", false,
			"042917", exp.UnixMilli(),
			"", int64(0),
			fixedNow, fixedNow,
		)
		mock.ExpectQuery(`SELECT (.+) FROM accounts WHERE email = \$1`).
			WithArgs("alice@example.com").
			WillReturnRows(rows)

		a, err := repo.GetByEmail(context.Background(), "Alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, "id-1", a.ID)
		assert.Equal(t, "042917", a.VerificationCode)
		assert.True(t, exp.Equal(a.VerificationCodeExpiresAt))
		assert.Empty(t, a.ResetPasswordCode)
		assert.True(t, a.ResetPasswordCodeExpiresAt.IsZero())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock, repo := newMockRepo(t)
		mock.ExpectQuery(`SELECT (.+) FROM accounts WHERE email = \$1`).
			WithArgs("ghost@example.com").
			WillReturnRows(pgxmock.NewRows(accountCols))

		_, err := repo.GetByEmail(context.Background(), "ghost@example.com")
		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAccountRepository_GetByID(t *testing.T) {
	mock, repo := newMockRepo(t)
	mock.ExpectQuery(`SELECT (.+) FROM accounts WHERE id = \$1`).
		WithArgs("id-9").
		WillReturnError(errors.New("timeout"))

	_, err := repo.GetByID(context.Background(), "id-9")
	require.Error(t, err)
	assert.NotErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_SetCode(t *testing.T) {
	exp := fixedNow.Add(20 * time.Minute)

	tests := []struct {
		name      string
		slot      entity.CodeSlot
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   error
	}{
		{
			name: "verification slot",
			slot: entity.SlotVerification,
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE accounts SET verification_code = \$2`).
					WithArgs("id-1", "123456", exp.UnixMilli(), fixedNow).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			},
		},
		{
			name: "reset slot",
			slot: entity.SlotResetPassword,
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE accounts SET reset_password_code = \$2`).
					WithArgs("id-1", "123456", exp.UnixMilli(), fixedNow).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			},
		},
		{
			name: "missing account",
			slot: entity.SlotVerification,
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE accounts SET verification_code = \$2`).
					WithArgs("id-1", "123456", exp.UnixMilli(), fixedNow).
					WillReturnResult(pgxmock.NewResult("UPDATE", 0))
			},
			wantErr: repository.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, repo := newMockRepo(t)
			tt.setupMock(mock)

			err := repo.SetCode(context.Background(), "id-1", tt.slot, "123456", exp)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAccountRepository_SetCodeUnknownSlot(t *testing.T) {
	mock, repo := newMockRepo(t)
	assert.Error(t, repo.SetCode(context.Background(), "id-1", entity.CodeSlot(0), "1", fixedNow))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_ConsumeVerificationCode(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{"flips flag and clears slot", 1, nil},
		{"superseded or consumed code", 0, repository.ErrCodeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, repo := newMockRepo(t)
			mock.ExpectExec(`UPDATE accounts SET is_verified = TRUE, verification_code = '', verification_code_expires_at = 0`).
				WithArgs("id-1", "042917", fixedNow).
				WillReturnResult(pgxmock.NewResult("UPDATE", tt.affected))

			err := repo.ConsumeVerificationCode(context.Background(), "id-1", "042917")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAccountRepository_ConsumeResetCode(t *testing.T) {
	mock, repo := newMockRepo(t)
	mock.ExpectExec(`UPDATE accounts SET password_hash = \$3, reset_password_code = '', reset_password_code_expires_at = 0`).
		WithArgs("id-1", "654321", "new-hash", fixedNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE accounts SET password_hash = \$3`).
		WithArgs("id-1", "654321", "newer-hash", fixedNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, repo.ConsumeResetCode(context.Background(), "id-1", "654321", "new-hash"))
	assert.ErrorIs(t, repo.ConsumeResetCode(context.Background(), "id-1", "654321", "newer-hash"), repository.ErrCodeMismatch)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMillisConversion(t *testing.T) {
	assert.Equal(t, int64(0), toMillis(time.Time{}))
	assert.True(t, fromMillis(0).IsZero())
	assert.True(t, fixedNow.Equal(fromMillis(toMillis(fixedNow))))
}
