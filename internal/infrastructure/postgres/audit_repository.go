package postgres

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/oksasatya/go-auth-service/internal/domain/repository"
)

// AuditRepository appends rows to audit_logs.
type AuditRepository struct {
	pool poolIface
}

func NewAuditRepository(pool poolIface) *AuditRepository {
	return &AuditRepository{pool: pool}
}

func (r *AuditRepository) Insert(ctx context.Context, e repository.AuditEvent) error {
	if e.Metadata == nil {
		e.Metadata = map[string]any{}
	}
	md, err := json.Marshal(e.Metadata)
	if err != nil {
		return oops.Code("AUDIT_INSERT_FAILED").With("operation", "marshal metadata").Wrap(err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO audit_logs (user_id, email, action, ip, user_agent, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuidOrNil(e.UserID), textOrNil(e.Email), e.Action, textOrNil(e.IP), textOrNil(e.UserAgent), md)
	if err != nil {
		return oops.Code("AUDIT_INSERT_FAILED").
			With("operation", "insert audit log").
			With("action", e.Action).
			Wrap(err)
	}
	return nil
}

func uuidOrNil(s string) any {
	if s == "" {
		return nil
	}
	if _, err := uuid.Parse(s); err != nil {
		return nil
	}
	return s
}

func textOrNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ repository.AuditRepository = (*AuditRepository)(nil)
