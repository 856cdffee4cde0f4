package service

import (
	"context"

	"contactgraph/internal/contact/models"
	"contactgraph/pkg/domain"
	"contactgraph/pkg/requestcontext"
)

// Audit event names. Emitted only after the transaction commits.
const (
	EventContactCreated = "contact_created"
	EventContactLinked  = "contact_linked"
	EventFamiliesMerged = "families_merged"
)

func (s *Service) auditReconciliation(ctx context.Context, owner domain.OwnerScope, r *reconciliation) {
	primaryID := r.identity.PrimaryContactID

	if len(r.demoted) > 0 {
		s.logAudit(ctx, EventFamiliesMerged,
			"owner_scope", owner.String(),
			"primary_id", primaryID.String(),
			"demoted_ids", r.demoted,
			"relinked", r.relinked,
		)
	}
	if r.created == nil {
		return
	}
	if r.created.LinkPrecedence == models.LinkPrecedencePrimary {
		s.logAudit(ctx, EventContactCreated,
			"owner_scope", owner.String(),
			"contact_id", r.created.ID.String(),
		)
		return
	}
	s.logAudit(ctx, EventContactLinked,
		"owner_scope", owner.String(),
		"contact_id", r.created.ID.String(),
		"primary_id", primaryID.String(),
	)
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if s.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}
