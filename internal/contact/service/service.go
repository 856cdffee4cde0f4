package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"contactgraph/internal/contact/metrics"
	"contactgraph/internal/contact/models"
	"contactgraph/pkg/domain"
	dErrors "contactgraph/pkg/domain-errors"
	"contactgraph/pkg/platform/sentinel"
)

const tracerName = "contactgraph/internal/contact/service"

// Service is the reconciliation engine. It holds no state between calls;
// all coordination happens inside the store transaction.
type Service struct {
	store   Store
	tx      StoreTx
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// New constructs a Service over a backend that provides its own transaction.
func New(store TxStore, opts ...Option) *Service {
	return NewWithTx(store, store, opts...)
}

// NewWithTx constructs a Service with an explicit transaction boundary.
func NewWithTx(store Store, tx StoreTx, opts ...Option) *Service {
	s := &Service{
		store:  store,
		tx:     tx,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// reconciliation is the committed result of one Reconcile call.
type reconciliation struct {
	identity *models.Identity
	outcome  models.Outcome
	created  *models.Contact
	demoted  []domain.ContactID
	relinked int
}

// Reconcile resolves a partial identity against the owner's contact graph,
// links or merges as needed, and returns the consolidated identity.
//
// Errors: CodeValidation when neither fragment is present (storage is not
// touched), CodeInternal or CodeTimeout when the store fails, and
// CodeInvariantViolation when the stored graph breaks family invariants.
func (s *Service) Reconcile(ctx context.Context, owner domain.OwnerScope, req models.IdentifyRequest) (*models.Identity, error) {
	start := time.Now()
	defer s.metrics.ObserveReconcile(start)

	ctx, span := s.tracer.Start(ctx, "contact.Reconcile")
	defer span.End()

	req.Normalize()
	if err := req.Validate(); err != nil {
		s.fail(span, err)
		return nil, err
	}
	if owner.IsNil() {
		err := dErrors.New(dErrors.CodeInvalidInput, "owner scope is required")
		s.fail(span, err)
		return nil, err
	}
	span.SetAttributes(
		attribute.Bool("contact.has_email", req.Email != ""),
		attribute.Bool("contact.has_phone", req.PhoneNumber != ""),
	)

	var result *reconciliation
	err := s.tx.RunInTx(ctx, owner, func(ctx context.Context) error {
		r, err := s.reconcile(ctx, owner, req)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		err = translateStoreError(err, "failed to reconcile contact")
		s.fail(span, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("contact.outcome", string(result.outcome)),
		attribute.Int64("contact.primary_id", int64(result.identity.PrimaryContactID)),
	)
	s.recordSuccess(ctx, owner, result)
	return result.identity, nil
}

func (s *Service) reconcile(ctx context.Context, owner domain.OwnerScope, req models.IdentifyRequest) (*reconciliation, error) {
	matches, err := s.store.FindByIdentityFragment(ctx, owner, req.Email, req.PhoneNumber)
	if err != nil {
		return nil, translateStoreError(err, "failed to find matching contacts")
	}
	if len(matches) == 0 {
		return s.createPrimary(ctx, owner, req)
	}

	heads, err := s.resolveHeads(ctx, owner, matches)
	if err != nil {
		return nil, err
	}
	survivor := heads[0]
	result := &reconciliation{outcome: models.OutcomeMatched}

	for _, head := range heads[1:] {
		if err := s.demote(ctx, owner, head, survivor.ID, result); err != nil {
			return nil, err
		}
	}
	if len(result.demoted) > 0 {
		result.outcome = models.OutcomeMerged
	}

	members, err := s.store.FindFamily(ctx, owner, survivor.ID)
	if err != nil {
		return nil, translateStoreError(err, "failed to load contact family")
	}
	family, err := models.NewFamily(survivor.ID, members)
	if err != nil {
		return nil, err
	}

	email, phone := newFragments(family, req)
	if email != "" || phone != "" {
		contact, err := models.NewSecondaryContact(owner, email, phone, survivor.ID)
		if err != nil {
			return nil, err
		}
		created, err := s.store.Create(ctx, contact)
		if err != nil {
			return nil, translateStoreError(err, "failed to create secondary contact")
		}
		if err := family.Append(created); err != nil {
			return nil, err
		}
		result.created = created
		if result.outcome == models.OutcomeMatched {
			result.outcome = models.OutcomeLinked
		}
	}

	result.identity = family.Identity()
	return result, nil
}

func (s *Service) createPrimary(ctx context.Context, owner domain.OwnerScope, req models.IdentifyRequest) (*reconciliation, error) {
	contact, err := models.NewPrimaryContact(owner, req.Email, req.PhoneNumber)
	if err != nil {
		return nil, err
	}
	created, err := s.store.Create(ctx, contact)
	if err != nil {
		return nil, translateStoreError(err, "failed to create primary contact")
	}
	family, err := models.NewFamily(created.ID, []*models.Contact{created})
	if err != nil {
		return nil, err
	}
	return &reconciliation{
		identity: family.Identity(),
		outcome:  models.OutcomeCreated,
		created:  created,
	}, nil
}

// resolveHeads maps every match to its family primary and returns the
// distinct primaries ordered by (createdAt, id). The first is the survivor.
func (s *Service) resolveHeads(ctx context.Context, owner domain.OwnerScope, matches []*models.Contact) ([]*models.Contact, error) {
	byID := make(map[domain.ContactID]*models.Contact, len(matches))
	for _, m := range matches {
		if m.IsPrimary() {
			byID[m.ID] = m
		}
	}

	for _, m := range matches {
		if m.IsPrimary() {
			continue
		}
		headID := m.HeadID()
		if _, ok := byID[headID]; ok {
			continue
		}
		head, err := s.store.FindByID(ctx, owner, headID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.New(dErrors.CodeInvariantViolation,
					fmt.Sprintf("secondary %s links to missing primary %s", m.ID, headID))
			}
			return nil, translateStoreError(err, "failed to load linked primary")
		}
		if !head.IsPrimary() {
			return nil, dErrors.New(dErrors.CodeInvariantViolation,
				fmt.Sprintf("secondary %s links to non-primary contact %s", m.ID, headID))
		}
		byID[headID] = head
	}

	heads := make([]*models.Contact, 0, len(byID))
	for _, h := range byID {
		heads = append(heads, h)
	}
	slices.SortFunc(heads, models.Compare)
	return heads, nil
}

// demote turns head into a secondary of survivor and re-points its
// dependents so no secondary is left two hops from the primary.
func (s *Service) demote(ctx context.Context, owner domain.OwnerScope, head *models.Contact, survivor domain.ContactID, result *reconciliation) error {
	if err := s.store.UpdatePrecedence(ctx, owner, head.ID, models.LinkPrecedenceSecondary, &survivor); err != nil {
		return translateStoreError(err, "failed to demote primary contact")
	}
	moved, err := s.store.Relink(ctx, owner, head.ID, survivor)
	if err != nil {
		return translateStoreError(err, "failed to relink secondary contacts")
	}
	result.demoted = append(result.demoted, head.ID)
	result.relinked += moved
	return nil
}

// newFragments returns the request fragments the family does not know yet.
func newFragments(family *models.Family, req models.IdentifyRequest) (email, phone string) {
	if !family.HasEmail(req.Email) {
		email = req.Email
	}
	if !family.HasPhoneNumber(req.PhoneNumber) {
		phone = req.PhoneNumber
	}
	return email, phone
}

// translateStoreError converts raw store failures into domain errors. Errors
// that already carry a domain code pass through unchanged.
func translateStoreError(err error, msg string) error {
	if err == nil || dErrors.IsDomain(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "store transaction timed out")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func (s *Service) fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	s.metrics.IncrementFailure(string(dErrors.CodeOf(err)))
}

func (s *Service) recordSuccess(ctx context.Context, owner domain.OwnerScope, r *reconciliation) {
	s.metrics.IncrementOutcome(string(r.outcome))
	s.metrics.AddFamiliesMerged(len(r.demoted))
	if r.created != nil {
		s.metrics.IncrementContactCreated(string(r.created.LinkPrecedence))
	}
	s.auditReconciliation(ctx, owner, r)
}
