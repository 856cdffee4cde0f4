package models

import (
	"time"

	"contactgraph/pkg/domain"
	dErrors "contactgraph/pkg/domain-errors"
)

// LinkPrecedence marks a contact as the head of its family or a member of one.
type LinkPrecedence string

const (
	LinkPrecedencePrimary   LinkPrecedence = "primary"
	LinkPrecedenceSecondary LinkPrecedence = "secondary"
)

func (p LinkPrecedence) IsValid() bool {
	return p == LinkPrecedencePrimary || p == LinkPrecedenceSecondary
}

func (p LinkPrecedence) String() string {
	return string(p)
}

// Contact is one observed identity record.
//
// Invariants:
//   - At least one of Email and PhoneNumber is non-empty
//   - A primary has no LinkedID; a secondary's LinkedID is its family primary
//   - CreatedAt is immutable once the store assigns it
//
// Email and PhoneNumber use the empty string for absent values; stores map it
// to NULL.
type Contact struct {
	ID             domain.ContactID  `json:"id"`
	OwnerScope     domain.OwnerScope `json:"owner_scope"`
	Email          string            `json:"email,omitempty"`
	PhoneNumber    string            `json:"phone_number,omitempty"`
	LinkedID       *domain.ContactID `json:"linked_id,omitempty"`
	LinkPrecedence LinkPrecedence    `json:"link_precedence"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	DeletedAt      *time.Time        `json:"deleted_at,omitempty"`
}

// NewPrimaryContact builds an unsaved primary contact. The store assigns ID
// and timestamps on Create.
func NewPrimaryContact(owner domain.OwnerScope, email, phone string) (*Contact, error) {
	if err := checkIdentity(owner, email, phone); err != nil {
		return nil, err
	}
	return &Contact{
		OwnerScope:     owner,
		Email:          email,
		PhoneNumber:    phone,
		LinkPrecedence: LinkPrecedencePrimary,
	}, nil
}

// NewSecondaryContact builds an unsaved secondary linked to primaryID.
func NewSecondaryContact(owner domain.OwnerScope, email, phone string, primaryID domain.ContactID) (*Contact, error) {
	if err := checkIdentity(owner, email, phone); err != nil {
		return nil, err
	}
	if primaryID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "secondary contact requires a primary")
	}
	linked := primaryID
	return &Contact{
		OwnerScope:     owner,
		Email:          email,
		PhoneNumber:    phone,
		LinkedID:       &linked,
		LinkPrecedence: LinkPrecedenceSecondary,
	}, nil
}

func checkIdentity(owner domain.OwnerScope, email, phone string) error {
	if owner.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "contact requires an owner scope")
	}
	if email == "" && phone == "" {
		return dErrors.New(dErrors.CodeValidation, "contact requires an email or phone number")
	}
	return nil
}

// Validate checks the invariants of a contact about to be persisted.
// Stores call it from Create so every backend rejects the same inputs.
func (c *Contact) Validate() error {
	if err := checkIdentity(c.OwnerScope, c.Email, c.PhoneNumber); err != nil {
		return err
	}
	switch c.LinkPrecedence {
	case LinkPrecedencePrimary:
		if c.LinkedID != nil {
			return dErrors.New(dErrors.CodeInvariantViolation, "primary contact cannot be linked")
		}
	case LinkPrecedenceSecondary:
		if c.LinkedID == nil || c.LinkedID.IsNil() {
			return dErrors.New(dErrors.CodeInvariantViolation, "secondary contact must be linked")
		}
	default:
		return dErrors.New(dErrors.CodeInvariantViolation, "unknown link precedence")
	}
	return nil
}

func (c *Contact) IsPrimary() bool {
	return c.LinkPrecedence == LinkPrecedencePrimary
}

// HeadID is the id of the family primary: the contact itself for a primary,
// the linked contact otherwise.
func (c *Contact) HeadID() domain.ContactID {
	if c.IsPrimary() || c.LinkedID == nil {
		return c.ID
	}
	return *c.LinkedID
}

// Precedes reports whether c sorts before other under the (createdAt, id)
// tie-break used to pick surviving primaries and order secondaries.
func (c *Contact) Precedes(other *Contact) bool {
	if !c.CreatedAt.Equal(other.CreatedAt) {
		return c.CreatedAt.Before(other.CreatedAt)
	}
	return c.ID < other.ID
}

// Compare orders contacts by (createdAt, id) for use with slices.SortFunc.
func Compare(a, b *Contact) int {
	switch {
	case a.Precedes(b):
		return -1
	case b.Precedes(a):
		return 1
	default:
		return 0
	}
}

// Demote turns a primary into a secondary of survivor.
func (c *Contact) Demote(survivor domain.ContactID, now time.Time) {
	linked := survivor
	c.LinkPrecedence = LinkPrecedenceSecondary
	c.LinkedID = &linked
	c.UpdatedAt = now
}
