package service

import (
	"context"

	"contactgraph/internal/contact/models"
	"contactgraph/pkg/domain"
)

// Store is the contact persistence contract shared by every backend.
//
// Stores return raw driver errors or sentinel facts (sentinel.ErrNotFound);
// the service translates them into domain errors. Every query is scoped by
// owner and ignores soft-deleted rows.
type Store interface {
	// FindByIdentityFragment returns every contact whose email equals email or
	// whose phone number equals phone, ordered by (createdAt, id). Empty
	// fragments never match.
	FindByIdentityFragment(ctx context.Context, owner domain.OwnerScope, email, phone string) ([]*models.Contact, error)
	FindByID(ctx context.Context, owner domain.OwnerScope, id domain.ContactID) (*models.Contact, error)
	// FindFamily returns the primary followed by its secondaries ordered by
	// (createdAt, id).
	FindFamily(ctx context.Context, owner domain.OwnerScope, primaryID domain.ContactID) ([]*models.Contact, error)
	// Create assigns id and timestamps and returns the stored contact.
	Create(ctx context.Context, contact *models.Contact) (*models.Contact, error)
	// UpdatePrecedence sets link precedence and linked id in one write.
	UpdatePrecedence(ctx context.Context, owner domain.OwnerScope, id domain.ContactID, precedence models.LinkPrecedence, linkedID *domain.ContactID) error
	// Relink re-points every secondary of from to to and reports how many
	// rows moved.
	Relink(ctx context.Context, owner domain.OwnerScope, from, to domain.ContactID) (int, error)
}

// StoreTx provides the transactional boundary for one reconciliation.
//
// Implementations serialize conflicting reconciliations for the same owner,
// apply a default timeout when ctx has no deadline, and roll back every write
// made through the ctx passed to fn when fn returns an error or ctx ends.
type StoreTx interface {
	RunInTx(ctx context.Context, owner domain.OwnerScope, fn func(ctx context.Context) error) error
}

// TxStore is a backend that provides both the contract and its transaction.
type TxStore interface {
	Store
	StoreTx
}
