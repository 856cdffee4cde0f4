package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contactgraph/pkg/domain"
	dErrors "contactgraph/pkg/domain-errors"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func primary(id domain.ContactID, email, phone string, createdAt time.Time) *Contact {
	return &Contact{
		ID:             id,
		OwnerScope:     "tenant-a",
		Email:          email,
		PhoneNumber:    phone,
		LinkPrecedence: LinkPrecedencePrimary,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
}

func secondary(id, linked domain.ContactID, email, phone string, createdAt time.Time) *Contact {
	c := primary(id, email, phone, createdAt)
	c.LinkPrecedence = LinkPrecedenceSecondary
	c.LinkedID = &linked
	return c
}

func TestNewContact(t *testing.T) {
	t.Run("primary requires a fragment", func(t *testing.T) {
		_, err := NewPrimaryContact("tenant-a", "", "")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("primary requires an owner", func(t *testing.T) {
		_, err := NewPrimaryContact("", "a@x.io", "")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("primary has no link", func(t *testing.T) {
		c, err := NewPrimaryContact("tenant-a", "a@x.io", "")
		require.NoError(t, err)
		assert.True(t, c.IsPrimary())
		assert.Nil(t, c.LinkedID)
		require.NoError(t, c.Validate())
	})

	t.Run("secondary is linked to its primary", func(t *testing.T) {
		c, err := NewSecondaryContact("tenant-a", "", "555", 7)
		require.NoError(t, err)
		assert.False(t, c.IsPrimary())
		require.NotNil(t, c.LinkedID)
		assert.Equal(t, domain.ContactID(7), *c.LinkedID)
		assert.Equal(t, domain.ContactID(7), c.HeadID())
		require.NoError(t, c.Validate())
	})

	t.Run("secondary without primary is rejected", func(t *testing.T) {
		_, err := NewSecondaryContact("tenant-a", "", "555", 0)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestValidateRejectsMalformedLinks(t *testing.T) {
	linked := domain.ContactID(1)
	c := primary(2, "a@x.io", "", t0)
	c.LinkedID = &linked
	assert.True(t, dErrors.HasCode(c.Validate(), dErrors.CodeInvariantViolation))

	s := secondary(3, 1, "a@x.io", "", t0)
	s.LinkedID = nil
	assert.True(t, dErrors.HasCode(s.Validate(), dErrors.CodeInvariantViolation))

	u := primary(4, "a@x.io", "", t0)
	u.LinkPrecedence = "tertiary"
	assert.True(t, dErrors.HasCode(u.Validate(), dErrors.CodeInvariantViolation))
}

func TestPrecedes(t *testing.T) {
	older := primary(9, "a@x.io", "", t0)
	newer := primary(2, "b@x.io", "", t0.Add(time.Second))
	assert.True(t, older.Precedes(newer), "earlier createdAt wins regardless of id")
	assert.False(t, newer.Precedes(older))

	tieLow := primary(3, "c@x.io", "", t0)
	tieHigh := primary(4, "d@x.io", "", t0)
	assert.True(t, tieLow.Precedes(tieHigh), "equal createdAt falls back to id")
	assert.Equal(t, -1, Compare(tieLow, tieHigh))
	assert.Equal(t, 1, Compare(tieHigh, tieLow))
	assert.Equal(t, 0, Compare(tieLow, tieLow))
}

func TestDemote(t *testing.T) {
	c := primary(5, "a@x.io", "", t0)
	c.Demote(1, t0.Add(time.Minute))

	assert.Equal(t, LinkPrecedenceSecondary, c.LinkPrecedence)
	require.NotNil(t, c.LinkedID)
	assert.Equal(t, domain.ContactID(1), *c.LinkedID)
	assert.Equal(t, t0, c.CreatedAt)
	assert.Equal(t, t0.Add(time.Minute), c.UpdatedAt)
}

func TestIdentifyRequest(t *testing.T) {
	req := IdentifyRequest{Email: "  ", PhoneNumber: "\t"}
	req.Normalize()
	err := req.Validate()
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	assert.Equal(t, "at least one of email or phoneNumber is required", dErrors.MessageOf(err))

	req = IdentifyRequest{Email: " doc@hillvalley.edu ", PhoneNumber: ""}
	req.Normalize()
	require.NoError(t, req.Validate())
	assert.Equal(t, "doc@hillvalley.edu", req.Email)
}
