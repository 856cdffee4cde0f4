package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"contactgraph/internal/contact/models"
	"contactgraph/pkg/domain"
	"contactgraph/pkg/platform/sentinel"
	"contactgraph/pkg/requestcontext"
)

// contactRecord is the GORM row shape of the contacts table.
type contactRecord struct {
	ID             int64          `gorm:"primaryKey;autoIncrement"`
	OwnerScope     string         `gorm:"not null;index:idx_contacts_owner_email,priority:1;index:idx_contacts_owner_phone,priority:1"`
	Email          *string        `gorm:"index:idx_contacts_owner_email,priority:2"`
	PhoneNumber    *string        `gorm:"index:idx_contacts_owner_phone,priority:2"`
	LinkedID       *int64         `gorm:"index:idx_contacts_linked_id"`
	LinkPrecedence string         `gorm:"not null"`
	CreatedAt      time.Time      `gorm:"not null"`
	UpdatedAt      time.Time      `gorm:"not null"`
	DeletedAt      gorm.DeletedAt `gorm:"index"`
}

func (contactRecord) TableName() string {
	return "contacts"
}

type gormTxKey struct{}

// SQLiteStore persists contacts in SQLite through GORM. Soft-deleted rows are
// filtered by gorm.DeletedAt.
type SQLiteStore struct {
	db   *gorm.DB
	gate sync.Mutex
	opts options
}

func NewSQLite(db *gorm.DB, opts ...Option) *SQLiteStore {
	return &SQLiteStore{db: db, opts: buildOptions(opts)}
}

// AutoMigrate creates or updates the contacts table and its indexes.
func (s *SQLiteStore) AutoMigrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&contactRecord{}); err != nil {
		return fmt.Errorf("GORM AutoMigrate failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(gormTxKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return s.db.WithContext(ctx)
}

// RunInTx serializes reconciliations behind a single-writer gate and runs fn
// inside a GORM transaction. Any error rolls the transaction back.
func (s *SQLiteStore) RunInTx(ctx context.Context, owner domain.OwnerScope, fn func(ctx context.Context) error) error {
	ctx, cancel, err := txContext(ctx, s.opts.txTimeout)
	defer cancel()
	if err != nil {
		return err
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "contact.store.sqlite.tx")
	defer span.End()
	span.SetAttributes(attribute.String("db.system", "sqlite"))

	s.gate.Lock()
	defer s.gate.Unlock()

	// Check again after acquiring the gate
	if err := ctx.Err(); err != nil {
		return abortedErr(err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := fn(context.WithValue(ctx, gormTxKey{}, tx)); err != nil {
			return err
		}
		return ctx.Err()
	})
	if err != nil {
		span.RecordError(err)
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return abortedErr(ctxErr)
		}
		return err
	}
	return nil
}

func (s *SQLiteStore) FindByIdentityFragment(ctx context.Context, owner domain.OwnerScope, email, phone string) ([]*models.Contact, error) {
	if email == "" && phone == "" {
		return nil, nil
	}
	q := s.conn(ctx).Where("owner_scope = ?", owner.String())
	switch {
	case email != "" && phone != "":
		q = q.Where("email = ? OR phone_number = ?", email, phone)
	case email != "":
		q = q.Where("email = ?", email)
	default:
		q = q.Where("phone_number = ?", phone)
	}

	var records []contactRecord
	if err := q.Order("created_at ASC, id ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("find contacts by fragment: %w", err)
	}
	return toContacts(records), nil
}

func (s *SQLiteStore) FindByID(ctx context.Context, owner domain.OwnerScope, id domain.ContactID) (*models.Contact, error) {
	var record contactRecord
	err := s.conn(ctx).
		Where("owner_scope = ? AND id = ?", owner.String(), int64(id)).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find contact by id: %w", err)
	}
	return record.toModel(), nil
}

func (s *SQLiteStore) FindFamily(ctx context.Context, owner domain.OwnerScope, primaryID domain.ContactID) ([]*models.Contact, error) {
	var records []contactRecord
	err := s.conn(ctx).
		Where("owner_scope = ? AND (id = ? OR linked_id = ?)", owner.String(), int64(primaryID), int64(primaryID)).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("find contact family: %w", err)
	}

	var primary *models.Contact
	secondaries := make([]*models.Contact, 0, len(records))
	for _, c := range toContacts(records) {
		if c.ID == primaryID {
			primary = c
			continue
		}
		secondaries = append(secondaries, c)
	}
	if primary == nil {
		return secondaries, nil
	}
	return append([]*models.Contact{primary}, secondaries...), nil
}

func (s *SQLiteStore) Create(ctx context.Context, contact *models.Contact) (*models.Contact, error) {
	if err := contact.Validate(); err != nil {
		return nil, err
	}
	db := s.conn(ctx)

	if contact.LinkedID != nil {
		var n int64
		err := db.Model(&contactRecord{}).
			Where("owner_scope = ? AND id = ?", contact.OwnerScope.String(), int64(*contact.LinkedID)).
			Count(&n).Error
		if err != nil {
			return nil, fmt.Errorf("check linked contact: %w", err)
		}
		if n == 0 {
			return nil, fmt.Errorf("insert contact: linked contact missing: %w", sentinel.ErrConflict)
		}
	}

	now := requestcontext.Now(ctx).UTC()
	record := fromModel(contact)
	record.ID = 0
	record.CreatedAt = now
	record.UpdatedAt = now
	record.DeletedAt = gorm.DeletedAt{}
	if err := db.Create(&record).Error; err != nil {
		return nil, fmt.Errorf("insert contact: %w", err)
	}
	return record.toModel(), nil
}

func (s *SQLiteStore) UpdatePrecedence(ctx context.Context, owner domain.OwnerScope, id domain.ContactID, precedence models.LinkPrecedence, linkedID *domain.ContactID) error {
	res := s.conn(ctx).Model(&contactRecord{}).
		Where("owner_scope = ? AND id = ?", owner.String(), int64(id)).
		Updates(map[string]any{
			"link_precedence": string(precedence),
			"linked_id":       idPtr(linkedID),
			"updated_at":      requestcontext.Now(ctx).UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("update link precedence: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Relink(ctx context.Context, owner domain.OwnerScope, from, to domain.ContactID) (int, error) {
	res := s.conn(ctx).Unscoped().Model(&contactRecord{}).
		Where("owner_scope = ? AND linked_id = ?", owner.String(), int64(from)).
		Updates(map[string]any{
			"linked_id":  int64(to),
			"updated_at": requestcontext.Now(ctx).UTC(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("relink contacts: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

// SoftDelete stamps deleted_at; the contact disappears from every query.
func (s *SQLiteStore) SoftDelete(ctx context.Context, owner domain.OwnerScope, id domain.ContactID) error {
	res := s.conn(ctx).
		Where("owner_scope = ? AND id = ?", owner.String(), int64(id)).
		Delete(&contactRecord{})
	if res.Error != nil {
		return fmt.Errorf("soft delete contact: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func fromModel(c *models.Contact) contactRecord {
	r := contactRecord{
		ID:             int64(c.ID),
		OwnerScope:     c.OwnerScope.String(),
		LinkPrecedence: string(c.LinkPrecedence),
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
	if c.Email != "" {
		email := c.Email
		r.Email = &email
	}
	if c.PhoneNumber != "" {
		phone := c.PhoneNumber
		r.PhoneNumber = &phone
	}
	r.LinkedID = idPtr(c.LinkedID)
	return r
}

func (r contactRecord) toModel() *models.Contact {
	c := &models.Contact{
		ID:             domain.ContactID(r.ID),
		OwnerScope:     domain.OwnerScope(r.OwnerScope),
		LinkPrecedence: models.LinkPrecedence(r.LinkPrecedence),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.Email != nil {
		c.Email = *r.Email
	}
	if r.PhoneNumber != nil {
		c.PhoneNumber = *r.PhoneNumber
	}
	if r.LinkedID != nil {
		linked := domain.ContactID(*r.LinkedID)
		c.LinkedID = &linked
	}
	if r.DeletedAt.Valid {
		t := r.DeletedAt.Time
		c.DeletedAt = &t
	}
	return c
}

// toContacts converts rows and orders them by (createdAt, id) in Go, since
// SQLite compares timestamps as text.
func toContacts(records []contactRecord) []*models.Contact {
	out := make([]*models.Contact, 0, len(records))
	for _, r := range records {
		out = append(out, r.toModel())
	}
	slices.SortFunc(out, models.Compare)
	return out
}

func idPtr(id *domain.ContactID) *int64 {
	if id == nil {
		return nil
	}
	v := int64(*id)
	return &v
}
