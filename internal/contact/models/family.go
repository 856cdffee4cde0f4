package models

import (
	"fmt"
	"slices"

	"contactgraph/pkg/domain"
	dErrors "contactgraph/pkg/domain-errors"
	"contactgraph/pkg/platform/strings"
)

// Family is a validated view of one identity: a primary and every secondary
// linked directly to it, secondaries ordered by (createdAt, id).
type Family struct {
	Primary     *Contact
	Secondaries []*Contact
}

// NewFamily validates the contacts returned for primaryID and assembles the
// family. Any broken structural invariant (missing or demoted primary,
// a second primary, a member pointing elsewhere) is an invariant violation.
func NewFamily(primaryID domain.ContactID, contacts []*Contact) (*Family, error) {
	var primary *Contact
	secondaries := make([]*Contact, 0, len(contacts))

	for _, c := range contacts {
		if c.ID == primaryID {
			if !c.IsPrimary() || c.LinkedID != nil {
				return nil, violation("contact %s heads a family but is not primary", c.ID)
			}
			primary = c
			continue
		}
		if c.IsPrimary() {
			return nil, violation("family %s contains a second primary %s", primaryID, c.ID)
		}
		if c.LinkedID == nil || *c.LinkedID != primaryID {
			return nil, violation("secondary %s is not linked to primary %s", c.ID, primaryID)
		}
		secondaries = append(secondaries, c)
	}
	if primary == nil {
		return nil, violation("primary %s not found in family", primaryID)
	}

	slices.SortFunc(secondaries, Compare)
	return &Family{Primary: primary, Secondaries: secondaries}, nil
}

func violation(format string, args ...any) error {
	return dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf(format, args...))
}

// Append adds a newly created secondary. It must be linked to the primary.
func (f *Family) Append(c *Contact) error {
	if c.IsPrimary() || c.LinkedID == nil || *c.LinkedID != f.Primary.ID {
		return violation("secondary %s is not linked to primary %s", c.ID, f.Primary.ID)
	}
	f.Secondaries = append(f.Secondaries, c)
	return nil
}

// Members returns the primary followed by the secondaries.
func (f *Family) Members() []*Contact {
	out := make([]*Contact, 0, len(f.Secondaries)+1)
	out = append(out, f.Primary)
	return append(out, f.Secondaries...)
}

func (f *Family) HasEmail(email string) bool {
	if email == "" {
		return true
	}
	for _, c := range f.Members() {
		if c.Email == email {
			return true
		}
	}
	return false
}

func (f *Family) HasPhoneNumber(phone string) bool {
	if phone == "" {
		return true
	}
	for _, c := range f.Members() {
		if c.PhoneNumber == phone {
			return true
		}
	}
	return false
}

// Identity builds the consolidated view: fragments deduplicated in order of
// first occurrence with the primary's own values first, secondary ids in
// family order.
func (f *Family) Identity() *Identity {
	members := f.Members()
	emails := make([]string, 0, len(members))
	phones := make([]string, 0, len(members))
	for _, c := range members {
		emails = append(emails, c.Email)
		phones = append(phones, c.PhoneNumber)
	}

	ids := make([]domain.ContactID, 0, len(f.Secondaries))
	for _, c := range f.Secondaries {
		ids = append(ids, c.ID)
	}

	return &Identity{
		PrimaryContactID:    f.Primary.ID,
		Emails:              strings.DedupeAndTrim(emails),
		PhoneNumbers:        strings.DedupeAndTrim(phones),
		SecondaryContactIDs: ids,
	}
}
