package application

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/oksasatya/go-auth-service/internal/domain/entity"
	"github.com/oksasatya/go-auth-service/pkg/apperr"
	"github.com/oksasatya/go-auth-service/pkg/helpers"
	mailtpl "github.com/oksasatya/go-auth-service/pkg/mailer/templates"
)

type fixture struct {
	svc      *AuthService
	repo     *memAccounts
	audit    *memAudit
	mail     *recordingDispatcher
	codes    *stubCodes
	profiles *memProfiles
	tokens   *helpers.TokenManager
	now      time.Time
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func newFixture(t *testing.T, codes ...string) *fixture {
	t.Helper()
	if len(codes) == 0 {
		codes = []string{"042917"}
	}
	f := &fixture{
		repo:     newMemAccounts(),
		audit:    &memAudit{},
		mail:     &recordingDispatcher{},
		profiles: newMemProfiles(),
		now:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	f.codes = &stubCodes{codes: codes, ttl: helpers.CodeTTL, now: clock}
	f.tokens = helpers.NewTokenManager("test-secret", helpers.SessionTTL).WithClock(clock)

	svc := NewAuthService(f.repo, helpers.NewHasher(bcrypt.MinCost), f.tokens, f.codes, f.mail, helpers.NewNopLogger())
	svc.Audit = f.audit
	svc.Profiles = f.profiles
	svc.Brand = mailtpl.Brand{AppName: "Auth"}
	svc.Now = clock
	f.svc = svc
	t.Cleanup(svc.Wait)
	return f
}

func (f *fixture) register(t *testing.T) *entity.Account {
	t.Helper()
	a, _, err := f.svc.Register(context.Background(), "Ada", "ada@example.com", "Secr3t!")
	require.NoError(t, err)
	return a
}

func TestRegister(t *testing.T) {
	f := newFixture(t)

	a, tok, err := f.svc.Register(context.Background(), "  Ada ", " Ada@Example.com ", "Secr3t!")
	require.NoError(t, err)
	assert.Equal(t, "Ada", a.Name)
	assert.Equal(t, "ada@example.com", a.Email)
	assert.False(t, a.IsVerified)
	assert.NotEqual(t, "Secr3t!", a.PasswordHash)
	assert.Empty(t, a.VerificationCode)
	assert.Empty(t, a.ResetPasswordCode)

	uid, err := f.tokens.Verify(tok.Token)
	require.NoError(t, err)
	assert.Equal(t, a.ID, uid)
	assert.Equal(t, f.now.Add(helpers.SessionTTL), tok.ExpiresAt)

	f.svc.Wait()
	jobs := f.mail.sent()
	require.Len(t, jobs, 1)
	assert.Equal(t, mailtpl.Welcome, jobs[0].Template)
	assert.Equal(t, "ada@example.com", jobs[0].To)
	assert.Contains(t, f.audit.actions(), "register")
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t)
	cases := [][3]string{
		{"", "ada@example.com", "pw"},
		{"Ada", "   ", "pw"},
		{"Ada", "ada@example.com", ""},
	}
	for _, c := range cases {
		_, _, err := f.svc.Register(context.Background(), c[0], c[1], c[2])
		assert.True(t, apperr.Is(err, apperr.KindValidation), "input %q", c)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.register(t)

	_, _, err := f.svc.Register(context.Background(), "Other", "ADA@example.com", "x")
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestRegister_MailFailureIsNotSurfaced(t *testing.T) {
	f := newFixture(t)
	f.mail.err = errors.New("smtp down")

	_, _, err := f.svc.Register(context.Background(), "Ada", "ada@example.com", "Secr3t!")
	require.NoError(t, err)
	f.svc.Wait()
	assert.Len(t, f.mail.sent(), 1)
}

func TestRegister_PasswordTooLong(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.Register(context.Background(), "Ada", "ada@example.com", strings.Repeat("a", 73))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Zero(t, f.repo.count())

	_, _, err = f.svc.Register(context.Background(), "Ada", "ada@example.com", strings.Repeat("a", 72))
	require.NoError(t, err)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	a := f.register(t)

	got, tok, err := f.svc.Login(context.Background(), "ada@example.com", "Secr3t!")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.False(t, got.IsVerified)

	uid, err := f.tokens.Verify(tok.Token)
	require.NoError(t, err)
	assert.Equal(t, a.ID, uid)
}

func TestLogin_Failures(t *testing.T) {
	f := newFixture(t)
	f.register(t)
	ctx := context.Background()

	_, _, err := f.svc.Login(ctx, "", "x")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, _, err = f.svc.Login(ctx, "nobody@example.com", "Secr3t!")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, _, err = f.svc.Login(ctx, "ada@example.com", "wrong")
	assert.True(t, apperr.Is(err, apperr.KindAuth))
	assert.Contains(t, f.audit.actions(), "login_failed")
}

func TestVerifyEmail(t *testing.T) {
	f := newFixture(t)
	a := f.register(t)
	ctx := context.Background()

	require.NoError(t, f.svc.IssueVerificationCode(ctx, a.ID))
	stored := f.repo.get(a.ID)
	assert.Equal(t, "042917", stored.VerificationCode)
	assert.Equal(t, f.now.Add(20*time.Minute), stored.VerificationCodeExpiresAt)

	f.svc.Wait()
	jobs := f.mail.sent()
	require.Len(t, jobs, 2)
	assert.Equal(t, mailtpl.VerifyCode, jobs[1].Template)

	f.advance(5 * time.Minute)
	require.NoError(t, f.svc.VerifyEmail(ctx, a.ID, "042917"))

	stored = f.repo.get(a.ID)
	assert.True(t, stored.IsVerified)
	assert.Empty(t, stored.VerificationCode)
	assert.True(t, stored.VerificationCodeExpiresAt.IsZero())
	assert.Equal(t, []string{a.ID}, f.profiles.invalidated)

	// consumed codes cannot be replayed
	err := f.svc.VerifyEmail(ctx, a.ID, "042917")
	assert.True(t, apperr.Is(err, apperr.KindAuth))
}

func TestVerifyEmail_WrongCode(t *testing.T) {
	f := newFixture(t)
	a := f.register(t)
	ctx := context.Background()
	require.NoError(t, f.svc.IssueVerificationCode(ctx, a.ID))

	err := f.svc.VerifyEmail(ctx, a.ID, "000000")
	assert.True(t, apperr.Is(err, apperr.KindAuth))
	assert.False(t, f.repo.get(a.ID).IsVerified)
}

func TestVerifyEmail_NoCodeIssued(t *testing.T) {
	f := newFixture(t)
	a := f.register(t)

	err := f.svc.VerifyEmail(context.Background(), a.ID, "042917")
	assert.True(t, apperr.Is(err, apperr.KindAuth))
}

func TestVerifyEmail_Expired(t *testing.T) {
	f := newFixture(t)
	a := f.register(t)
	ctx := context.Background()
	require.NoError(t, f.svc.IssueVerificationCode(ctx, a.ID))

	f.advance(21 * time.Minute)
	err := f.svc.VerifyEmail(ctx, a.ID, "042917")
	assert.True(t, apperr.Is(err, apperr.KindExpired))
	assert.Equal(t, "CODE_EXPIRED", apperr.As(err).Code)
	assert.False(t, f.repo.get(a.ID).IsVerified)
}

func TestVerifyEmail_ReissueSupersedesOldCode(t *testing.T) {
	f := newFixture(t, "111111", "222222")
	a := f.register(t)
	ctx := context.Background()

	require.NoError(t, f.svc.IssueVerificationCode(ctx, a.ID))
	require.NoError(t, f.svc.IssueVerificationCode(ctx, a.ID))

	err := f.svc.VerifyEmail(ctx, a.ID, "111111")
	assert.True(t, apperr.Is(err, apperr.KindAuth))
	require.NoError(t, f.svc.VerifyEmail(ctx, a.ID, "222222"))
}

func TestVerifyEmail_LosesRaceToNewerCode(t *testing.T) {
	f := newFixture(t, "111111", "222222")
	a := f.register(t)
	ctx := context.Background()
	require.NoError(t, f.svc.IssueVerificationCode(ctx, a.ID))

	// a second issuance lands between the read and the conditional update
	f.repo.beforeConsume = func() {
		f.repo.beforeConsume = nil
		require.NoError(t, f.svc.IssueVerificationCode(ctx, a.ID))
	}
	err := f.svc.VerifyEmail(ctx, a.ID, "111111")
	assert.True(t, apperr.Is(err, apperr.KindAuth))

	stored := f.repo.get(a.ID)
	assert.False(t, stored.IsVerified)
	assert.Equal(t, "222222", stored.VerificationCode)
}

func TestIssueVerificationCode_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.True(t, apperr.Is(f.svc.IssueVerificationCode(ctx, ""), apperr.KindValidation))
	assert.True(t, apperr.Is(f.svc.IssueVerificationCode(ctx, "missing"), apperr.KindNotFound))

	a := f.register(t)
	require.NoError(t, f.svc.IssueVerificationCode(ctx, a.ID))
	require.NoError(t, f.svc.VerifyEmail(ctx, a.ID, "042917"))
	assert.True(t, apperr.Is(f.svc.IssueVerificationCode(ctx, a.ID), apperr.KindConflict))
}

func TestPasswordReset(t *testing.T) {
	f := newFixture(t)
	a := f.register(t)
	ctx := WithRequestMeta(context.Background(), RequestMeta{IP: "203.0.113.7", UserAgent: "curl/8"})

	require.NoError(t, f.svc.IssuePasswordResetCode(ctx, "ada@example.com"))
	f.svc.Wait()
	jobs := f.mail.sent()
	require.Len(t, jobs, 2)
	assert.Equal(t, mailtpl.ResetCode, jobs[1].Template)
	data := jobs[1].Data
	assert.Equal(t, "042917", data["Code"])
	assert.Equal(t, "203.0.113.7", data["IP"])

	require.NoError(t, f.svc.ResetPassword(ctx, "ada@example.com", "N3wPass!", "042917"))

	stored := f.repo.get(a.ID)
	assert.Empty(t, stored.ResetPasswordCode)
	assert.True(t, stored.ResetPasswordCodeExpiresAt.IsZero())

	_, _, err := f.svc.Login(ctx, "ada@example.com", "Secr3t!")
	assert.True(t, apperr.Is(err, apperr.KindAuth))
	_, _, err = f.svc.Login(ctx, "ada@example.com", "N3wPass!")
	require.NoError(t, err)

	err = f.svc.ResetPassword(ctx, "ada@example.com", "Again1!", "042917")
	assert.True(t, apperr.Is(err, apperr.KindAuth))
}

func TestResetPassword_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, in := range [][3]string{
		{"", "pw", "123456"},
		{"ada@example.com", "", "123456"},
		{"ada@example.com", "pw", ""},
	} {
		err := f.svc.ResetPassword(ctx, in[0], in[1], in[2])
		assert.True(t, apperr.Is(err, apperr.KindValidation), "input %q", in)
	}

	// complete input passes validation and reaches the lookup
	err := f.svc.ResetPassword(ctx, "ada@example.com", "pw", "123456")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestResetPassword_CodeChecks(t *testing.T) {
	f := newFixture(t)
	a := f.register(t)
	ctx := context.Background()

	err := f.svc.ResetPassword(ctx, "ada@example.com", "N3wPass!", "042917")
	assert.True(t, apperr.Is(err, apperr.KindAuth), "no code issued")

	require.NoError(t, f.svc.IssuePasswordResetCode(ctx, "ada@example.com"))
	err = f.svc.ResetPassword(ctx, "ada@example.com", "N3wPass!", "999999")
	assert.True(t, apperr.Is(err, apperr.KindAuth))

	f.advance(20*time.Minute + time.Second)
	err = f.svc.ResetPassword(ctx, "ada@example.com", "N3wPass!", "042917")
	assert.True(t, apperr.Is(err, apperr.KindExpired))

	assert.NotEmpty(t, f.repo.get(a.ID).ResetPasswordCode)
	_, _, err = f.svc.Login(ctx, "ada@example.com", "Secr3t!")
	require.NoError(t, err)
}

func TestResetPassword_PasswordTooLong(t *testing.T) {
	f := newFixture(t)
	a := f.register(t)
	ctx := context.Background()
	require.NoError(t, f.svc.IssuePasswordResetCode(ctx, "ada@example.com"))

	err := f.svc.ResetPassword(ctx, "ada@example.com", strings.Repeat("a", 73), "042917")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, map[string]string{"newPassword": "must be at most 72 bytes"}, apperr.As(err).Details)

	// the code survives so the user can retry with a shorter password
	assert.Equal(t, "042917", f.repo.get(a.ID).ResetPasswordCode)
	_, _, err = f.svc.Login(ctx, "ada@example.com", "Secr3t!")
	require.NoError(t, err)
}

func TestIssuePasswordResetCode_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.True(t, apperr.Is(f.svc.IssuePasswordResetCode(ctx, " "), apperr.KindValidation))
	assert.True(t, apperr.Is(f.svc.IssuePasswordResetCode(ctx, "ghost@example.com"), apperr.KindNotFound))
}

func TestCodeSlotsAreIndependent(t *testing.T) {
	f := newFixture(t, "111111", "222222")
	a := f.register(t)
	ctx := context.Background()

	require.NoError(t, f.svc.IssueVerificationCode(ctx, a.ID))
	require.NoError(t, f.svc.IssuePasswordResetCode(ctx, a.Email))

	err := f.svc.VerifyEmail(ctx, a.ID, "222222")
	assert.True(t, apperr.Is(err, apperr.KindAuth))
	require.NoError(t, f.svc.VerifyEmail(ctx, a.ID, "111111"))
	assert.Equal(t, "222222", f.repo.get(a.ID).ResetPasswordCode)
}

func TestStoreFailureIsInternal(t *testing.T) {
	f := newFixture(t)
	a := f.register(t)
	f.repo.failGet = errors.New("connection reset")

	err := f.svc.IssueVerificationCode(context.Background(), a.ID)
	assert.True(t, apperr.Is(err, apperr.KindInternal))
}
