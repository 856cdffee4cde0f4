package models

import (
	"strings"

	"contactgraph/pkg/domain"
	dErrors "contactgraph/pkg/domain-errors"
)

// IdentifyRequest is a partial identity observed by the caller. Empty values
// mean the fragment is absent.
type IdentifyRequest struct {
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// Normalize trims surrounding whitespace; whitespace-only values become absent.
func (r *IdentifyRequest) Normalize() {
	r.Email = strings.TrimSpace(r.Email)
	r.PhoneNumber = strings.TrimSpace(r.PhoneNumber)
}

func (r *IdentifyRequest) Validate() error {
	if r.Email == "" && r.PhoneNumber == "" {
		return dErrors.New(dErrors.CodeValidation, "at least one of email or phoneNumber is required")
	}
	return nil
}

// Identity is the canonical consolidated view of a family.
type Identity struct {
	PrimaryContactID    domain.ContactID   `json:"primaryContactId"`
	Emails              []string           `json:"emails"`
	PhoneNumbers        []string           `json:"phoneNumbers"`
	SecondaryContactIDs []domain.ContactID `json:"secondaryContactIds"`
}

// Outcome describes what a reconciliation did to the contact graph.
type Outcome string

const (
	// OutcomeMatched means the request added nothing new.
	OutcomeMatched Outcome = "matched"
	// OutcomeCreated means a fresh primary was created.
	OutcomeCreated Outcome = "created"
	// OutcomeLinked means a new secondary was attached to an existing family.
	OutcomeLinked Outcome = "linked"
	// OutcomeMerged means two or more families were merged; a secondary may
	// also have been created.
	OutcomeMerged Outcome = "merged"
)
