package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contactgraph/pkg/domain"
	dErrors "contactgraph/pkg/domain-errors"
)

func TestNewFamily(t *testing.T) {
	t.Run("orders secondaries by createdAt then id", func(t *testing.T) {
		p := primary(1, "lorraine@hillvalley.edu", "123456", t0)
		late := secondary(3, 1, "mcfly@hillvalley.edu", "123456", t0.Add(2*time.Hour))
		earlyHigh := secondary(5, 1, "", "999", t0.Add(time.Hour))
		earlyLow := secondary(4, 1, "", "888", t0.Add(time.Hour))

		fam, err := NewFamily(1, []*Contact{late, p, earlyHigh, earlyLow})
		require.NoError(t, err)
		assert.Equal(t, p, fam.Primary)

		ids := []domain.ContactID{}
		for _, c := range fam.Secondaries {
			ids = append(ids, c.ID)
		}
		assert.Equal(t, []domain.ContactID{4, 5, 3}, ids)
	})

	t.Run("missing primary is a consistency violation", func(t *testing.T) {
		_, err := NewFamily(1, []*Contact{secondary(2, 1, "a@x.io", "", t0)})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("second primary is a consistency violation", func(t *testing.T) {
		_, err := NewFamily(1, []*Contact{
			primary(1, "a@x.io", "", t0),
			primary(2, "b@x.io", "", t0),
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("chained secondary is a consistency violation", func(t *testing.T) {
		_, err := NewFamily(1, []*Contact{
			primary(1, "a@x.io", "", t0),
			secondary(2, 1, "b@x.io", "", t0),
			secondary(3, 2, "c@x.io", "", t0),
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("demoted head is a consistency violation", func(t *testing.T) {
		_, err := NewFamily(1, []*Contact{secondary(1, 9, "a@x.io", "", t0)})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestFamilyIdentity(t *testing.T) {
	fam, err := NewFamily(1, []*Contact{
		primary(1, "lorraine@hillvalley.edu", "123456", t0),
		secondary(23, 1, "mcfly@hillvalley.edu", "123456", t0.Add(time.Hour)),
		secondary(24, 1, "", "717171", t0.Add(2*time.Hour)),
		secondary(25, 1, "lorraine@hillvalley.edu", "", t0.Add(3*time.Hour)),
	})
	require.NoError(t, err)

	id := fam.Identity()
	assert.Equal(t, domain.ContactID(1), id.PrimaryContactID)
	assert.Equal(t, []string{"lorraine@hillvalley.edu", "mcfly@hillvalley.edu"}, id.Emails)
	assert.Equal(t, []string{"123456", "717171"}, id.PhoneNumbers)
	assert.Equal(t, []domain.ContactID{23, 24, 25}, id.SecondaryContactIDs)
}

func TestFamilyIdentityPrimaryWithoutEmail(t *testing.T) {
	fam, err := NewFamily(1, []*Contact{primary(1, "", "555", t0)})
	require.NoError(t, err)

	id := fam.Identity()
	assert.Empty(t, id.Emails)
	assert.NotNil(t, id.Emails, "empty lists encode as [] not null")
	assert.Equal(t, []string{"555"}, id.PhoneNumbers)
	assert.NotNil(t, id.SecondaryContactIDs)
}

func TestFamilyAppendAndLookups(t *testing.T) {
	fam, err := NewFamily(1, []*Contact{primary(1, "a@x.io", "111", t0)})
	require.NoError(t, err)

	assert.True(t, fam.HasEmail("a@x.io"))
	assert.False(t, fam.HasEmail("b@x.io"))
	assert.True(t, fam.HasPhoneNumber(""), "absent fragment is never new")

	require.NoError(t, fam.Append(secondary(2, 1, "b@x.io", "", t0.Add(time.Second))))
	assert.True(t, fam.HasEmail("b@x.io"))
	assert.Len(t, fam.Members(), 2)

	err = fam.Append(secondary(3, 99, "c@x.io", "", t0))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}
