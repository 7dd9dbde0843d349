package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oksasatya/go-auth-service/internal/domain/entity"
	repo "github.com/oksasatya/go-auth-service/internal/domain/repository"
	"github.com/oksasatya/go-auth-service/pkg/mailer"
)

type memAccounts struct {
	mu      sync.Mutex
	byID    map[string]entity.Account
	byEmail map[string]string

	// beforeConsume runs inside the consume operations, before the slot is
	// checked, to simulate a concurrent writer.
	beforeConsume func()
	failGet       error
}

func newMemAccounts() *memAccounts {
	return &memAccounts{byID: map[string]entity.Account{}, byEmail: map[string]string{}}
}

func (m *memAccounts) Create(_ context.Context, a *entity.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[a.Email]; ok {
		return repo.ErrDuplicateEmail
	}
	m.byID[a.ID] = *a
	m.byEmail[a.Email] = a.ID
	return nil
}

func (m *memAccounts) GetByID(_ context.Context, id string) (*entity.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return nil, m.failGet
	}
	a, ok := m.byID[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &a, nil
}

func (m *memAccounts) GetByEmail(ctx context.Context, email string) (*entity.Account, error) {
	m.mu.Lock()
	id, ok := m.byEmail[email]
	m.mu.Unlock()
	if !ok {
		return nil, repo.ErrNotFound
	}
	return m.GetByID(ctx, id)
}

func (m *memAccounts) SetCode(_ context.Context, id string, slot entity.CodeSlot, code string, exp time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return repo.ErrNotFound
	}
	switch slot {
	case entity.SlotVerification:
		a.VerificationCode, a.VerificationCodeExpiresAt = code, exp
	case entity.SlotResetPassword:
		a.ResetPasswordCode, a.ResetPasswordCodeExpiresAt = code, exp
	}
	m.byID[id] = a
	return nil
}

func (m *memAccounts) ConsumeVerificationCode(_ context.Context, id, code string) error {
	if m.beforeConsume != nil {
		m.beforeConsume()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok || a.VerificationCode == "" || a.VerificationCode != code {
		return repo.ErrCodeMismatch
	}
	a.IsVerified = true
	a.VerificationCode, a.VerificationCodeExpiresAt = "", time.Time{}
	m.byID[id] = a
	return nil
}

func (m *memAccounts) ConsumeResetCode(_ context.Context, id, code, hash string) error {
	if m.beforeConsume != nil {
		m.beforeConsume()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok || a.ResetPasswordCode == "" || a.ResetPasswordCode != code {
		return repo.ErrCodeMismatch
	}
	a.PasswordHash = hash
	a.ResetPasswordCode, a.ResetPasswordCodeExpiresAt = "", time.Time{}
	m.byID[id] = a
	return nil
}

func (m *memAccounts) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

func (m *memAccounts) get(id string) entity.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id]
}

type memAudit struct {
	mu     sync.Mutex
	events []repo.AuditEvent
}

func (m *memAudit) Insert(_ context.Context, e repo.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *memAudit) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Action)
	}
	return out
}

type recordingDispatcher struct {
	mu   sync.Mutex
	jobs []mailer.EmailJob
	err  error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, job mailer.EmailJob) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs = append(d.jobs, job)
	return d.err
}

func (d *recordingDispatcher) sent() []mailer.EmailJob {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]mailer.EmailJob(nil), d.jobs...)
}

// stubCodes hands out a fixed sequence of codes, each valid for ttl from now().
type stubCodes struct {
	codes []string
	ttl   time.Duration
	now   func() time.Time
	n     int
}

func (g *stubCodes) Generate() (string, time.Time, error) {
	if len(g.codes) == 0 {
		return "", time.Time{}, errors.New("no codes left")
	}
	c := g.codes[g.n%len(g.codes)]
	g.n++
	return c, g.now().Add(g.ttl), nil
}

type memProfiles struct {
	mu          sync.Mutex
	data        map[string]entity.Profile
	getErr      error
	invalidated []string
}

func newMemProfiles() *memProfiles { return &memProfiles{data: map[string]entity.Profile{}} }

func (m *memProfiles) Get(_ context.Context, id string) (entity.Profile, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return entity.Profile{}, false, m.getErr
	}
	p, ok := m.data[id]
	return p, ok, nil
}

func (m *memProfiles) Set(_ context.Context, id string, p entity.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[id] = p
	return nil
}

func (m *memProfiles) Invalidate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, id)
	m.invalidated = append(m.invalidated, id)
	return nil
}
