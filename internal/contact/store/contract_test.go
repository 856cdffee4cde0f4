package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/suite"

	"contactgraph/internal/contact/models"
	"contactgraph/internal/contact/service"
	"contactgraph/pkg/domain"
	dErrors "contactgraph/pkg/domain-errors"
	"contactgraph/pkg/platform/sentinel"
	"contactgraph/pkg/requestcontext"
)

// backend is the surface every contact store exposes.
type backend interface {
	service.TxStore
	SoftDelete(ctx context.Context, owner domain.OwnerScope, id domain.ContactID) error
	Ping(ctx context.Context) error
}

const (
	ownerA domain.OwnerScope = "tenant-a"
	ownerB domain.OwnerScope = "tenant-b"
)

// ContractSuite exercises the store contract. Each backend embeds it and
// supplies a constructor over fresh storage per test.
type ContractSuite struct {
	suite.Suite
	store   backend
	newWith func(opts ...Option) backend
	ctx     context.Context
	base    time.Time
	tick    int
}

// reset builds the default store for a test. newWith also builds the
// short-lived stores that tests configure with options.
func (s *ContractSuite) reset(newWith func(opts ...Option) backend) {
	s.newWith = newWith
	s.store = newWith()
	s.ctx = context.Background()
	s.base = time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	s.tick = 0
}

// next returns a context whose request time is strictly later than the
// previous call, so backends stamping from the context order predictably.
func (s *ContractSuite) next() context.Context {
	s.tick++
	return requestcontext.WithTime(s.ctx, s.base.Add(time.Duration(s.tick)*time.Second))
}

func (s *ContractSuite) createPrimary(owner domain.OwnerScope, email, phone string) *models.Contact {
	c, err := models.NewPrimaryContact(owner, email, phone)
	s.Require().NoError(err)
	created, err := s.store.Create(s.next(), c)
	s.Require().NoError(err)
	return created
}

func (s *ContractSuite) createSecondary(owner domain.OwnerScope, email, phone string, primaryID domain.ContactID) *models.Contact {
	c, err := models.NewSecondaryContact(owner, email, phone, primaryID)
	s.Require().NoError(err)
	created, err := s.store.Create(s.next(), c)
	s.Require().NoError(err)
	return created
}

func ids(contacts []*models.Contact) []domain.ContactID {
	out := make([]domain.ContactID, 0, len(contacts))
	for _, c := range contacts {
		out = append(out, c.ID)
	}
	return out
}

func (s *ContractSuite) TestCreate() {
	s.Run("assigns increasing ids and timestamps", func() {
		first := s.createPrimary(ownerA, "lorraine@hillvalley.edu", "123456")
		second := s.createPrimary(ownerA, "doc@hillvalley.edu", "")

		s.False(first.ID.IsNil())
		s.Greater(second.ID, first.ID)
		s.False(first.CreatedAt.IsZero())
		s.False(first.UpdatedAt.IsZero())
		s.Nil(first.DeletedAt)
		s.Equal(models.LinkPrecedencePrimary, first.LinkPrecedence)
		s.Empty(second.PhoneNumber)
	})

	s.Run("rejects contacts without fragments", func() {
		_, err := s.store.Create(s.next(), &models.Contact{
			OwnerScope:     ownerA,
			LinkPrecedence: models.LinkPrecedencePrimary,
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects secondaries linked to unknown contacts", func() {
		c, err := models.NewSecondaryContact(ownerA, "ghost@x.io", "", 999999)
		s.Require().NoError(err)
		_, err = s.store.Create(s.next(), c)
		s.Require().Error(err)
		s.ErrorIs(err, sentinel.ErrConflict)
	})
}

func (s *ContractSuite) TestFindByIdentityFragment() {
	p := s.createPrimary(ownerA, "lorraine@hillvalley.edu", "123456")
	sec := s.createSecondary(ownerA, "mcfly@hillvalley.edu", "123456", p.ID)
	other := s.createPrimary(ownerA, "biff@hillvalley.edu", "999")
	foreign := s.createPrimary(ownerB, "lorraine@hillvalley.edu", "123456")

	s.Run("matches email or phone in (createdAt, id) order", func() {
		found, err := s.store.FindByIdentityFragment(s.ctx, ownerA, "biff@hillvalley.edu", "123456")
		s.Require().NoError(err)
		s.Equal([]domain.ContactID{p.ID, sec.ID, other.ID}, ids(found))
	})

	s.Run("matches email only", func() {
		found, err := s.store.FindByIdentityFragment(s.ctx, ownerA, "mcfly@hillvalley.edu", "")
		s.Require().NoError(err)
		s.Equal([]domain.ContactID{sec.ID}, ids(found))
		s.Require().NotNil(found[0].LinkedID)
		s.Equal(p.ID, *found[0].LinkedID)
	})

	s.Run("never crosses owner scopes", func() {
		found, err := s.store.FindByIdentityFragment(s.ctx, ownerB, "lorraine@hillvalley.edu", "")
		s.Require().NoError(err)
		s.Equal([]domain.ContactID{foreign.ID}, ids(found))
	})

	s.Run("empty fragments match nothing", func() {
		found, err := s.store.FindByIdentityFragment(s.ctx, ownerA, "", "")
		s.Require().NoError(err)
		s.Empty(found)
	})

	s.Run("unknown fragments match nothing", func() {
		found, err := s.store.FindByIdentityFragment(s.ctx, ownerA, "nobody@x.io", "000")
		s.Require().NoError(err)
		s.Empty(found)
	})
}

func (s *ContractSuite) TestFindByID() {
	p := s.createPrimary(ownerA, "lorraine@hillvalley.edu", "")

	found, err := s.store.FindByID(s.ctx, ownerA, p.ID)
	s.Require().NoError(err)
	s.Equal(p.Email, found.Email)

	_, err = s.store.FindByID(s.ctx, ownerB, p.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.FindByID(s.ctx, ownerA, p.ID+1000)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *ContractSuite) TestFindFamily() {
	p := s.createPrimary(ownerA, "lorraine@hillvalley.edu", "123456")
	s1 := s.createSecondary(ownerA, "mcfly@hillvalley.edu", "", p.ID)
	s.createPrimary(ownerA, "unrelated@x.io", "")
	s2 := s.createSecondary(ownerA, "", "717171", p.ID)

	family, err := s.store.FindFamily(s.ctx, ownerA, p.ID)
	s.Require().NoError(err)
	s.Equal([]domain.ContactID{p.ID, s1.ID, s2.ID}, ids(family))

	empty, err := s.store.FindFamily(s.ctx, ownerB, p.ID)
	s.Require().NoError(err)
	s.Empty(empty)
}

func (s *ContractSuite) TestUpdatePrecedenceAndRelink() {
	survivor := s.createPrimary(ownerA, "george@hillvalley.edu", "919191")
	loser := s.createPrimary(ownerA, "biffsucks@hillvalley.edu", "717171")
	dependent := s.createSecondary(ownerA, "", "555", loser.ID)

	s.Require().NoError(s.store.UpdatePrecedence(s.next(), ownerA, loser.ID, models.LinkPrecedenceSecondary, &survivor.ID))
	moved, err := s.store.Relink(s.next(), ownerA, loser.ID, survivor.ID)
	s.Require().NoError(err)
	s.Equal(1, moved)

	family, err := s.store.FindFamily(s.ctx, ownerA, survivor.ID)
	s.Require().NoError(err)
	s.Equal([]domain.ContactID{survivor.ID, loser.ID, dependent.ID}, ids(family))
	for _, c := range family[1:] {
		s.Equal(models.LinkPrecedenceSecondary, c.LinkPrecedence)
		s.Require().NotNil(c.LinkedID)
		s.Equal(survivor.ID, *c.LinkedID)
	}

	s.Run("unknown contact", func() {
		err := s.store.UpdatePrecedence(s.next(), ownerB, survivor.ID, models.LinkPrecedenceSecondary, &loser.ID)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("relink with no dependents moves nothing", func() {
		moved, err := s.store.Relink(s.next(), ownerA, dependent.ID, survivor.ID)
		s.Require().NoError(err)
		s.Zero(moved)
	})
}

func (s *ContractSuite) TestSoftDeletedContactsAreInvisible() {
	p := s.createPrimary(ownerA, "lorraine@hillvalley.edu", "123456")
	sec := s.createSecondary(ownerA, "mcfly@hillvalley.edu", "", p.ID)

	s.Require().NoError(s.store.SoftDelete(s.next(), ownerA, sec.ID))

	found, err := s.store.FindByIdentityFragment(s.ctx, ownerA, "mcfly@hillvalley.edu", "")
	s.Require().NoError(err)
	s.Empty(found)

	family, err := s.store.FindFamily(s.ctx, ownerA, p.ID)
	s.Require().NoError(err)
	s.Equal([]domain.ContactID{p.ID}, ids(family))

	_, err = s.store.FindByID(s.ctx, ownerA, sec.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.ErrorIs(s.store.SoftDelete(s.next(), ownerA, sec.ID), sentinel.ErrNotFound)
}

func (s *ContractSuite) TestRunInTx() {
	s.Run("commits writes made through the tx context", func() {
		var created *models.Contact
		err := s.store.RunInTx(s.ctx, ownerA, func(ctx context.Context) error {
			c, err := models.NewPrimaryContact(ownerA, "commit@x.io", "")
			if err != nil {
				return err
			}
			created, err = s.store.Create(ctx, c)
			return err
		})
		s.Require().NoError(err)

		found, err := s.store.FindByID(s.ctx, ownerA, created.ID)
		s.Require().NoError(err)
		s.Equal("commit@x.io", found.Email)
	})

	s.Run("rolls back every write when fn fails", func() {
		existing := s.createPrimary(ownerA, "keep@x.io", "")
		boom := errors.New("boom")

		err := s.store.RunInTx(s.ctx, ownerA, func(ctx context.Context) error {
			c, err := models.NewPrimaryContact(ownerA, "rollback@x.io", "")
			if err != nil {
				return err
			}
			if _, err := s.store.Create(ctx, c); err != nil {
				return err
			}
			if err := s.store.UpdatePrecedence(ctx, ownerA, existing.ID, models.LinkPrecedenceSecondary, &existing.ID); err != nil {
				return err
			}
			return boom
		})
		s.Require().ErrorIs(err, boom)

		found, err := s.store.FindByIdentityFragment(s.ctx, ownerA, "rollback@x.io", "")
		s.Require().NoError(err)
		s.Empty(found)

		kept, err := s.store.FindByID(s.ctx, ownerA, existing.ID)
		s.Require().NoError(err)
		s.True(kept.IsPrimary())
		s.Nil(kept.LinkedID)
	})

	s.Run("tx timeout bounds a caller with a later deadline", func() {
		short := s.newWith(WithTxTimeout(200 * time.Millisecond))
		ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
		defer cancel()

		start := time.Now()
		err := short.RunInTx(ctx, ownerA, func(ctx context.Context) error {
			c, err := models.NewPrimaryContact(ownerA, "slow@x.io", "")
			if err != nil {
				return err
			}
			if _, err := short.Create(ctx, c); err != nil {
				return err
			}
			select {
			case <-ctx.Done():
			case <-time.After(5 * time.Second):
			}
			return nil
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
		s.Less(time.Since(start), 5*time.Second)

		found, err := short.FindByIdentityFragment(s.ctx, ownerA, "slow@x.io", "")
		s.Require().NoError(err)
		s.Empty(found)
	})

	s.Run("cancelled context aborts with timeout", func() {
		ctx, cancel := context.WithCancel(s.ctx)
		cancel()

		called := false
		err := s.store.RunInTx(ctx, ownerA, func(context.Context) error {
			called = true
			return nil
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
		s.False(called)
	})
}

// TestConcurrentFindOrCreateMakesOnePrimary races identical find-then-create
// transactions for one owner. Exactly one of them may create the contact and
// every caller must end up with its id.
func (s *ContractSuite) TestConcurrentFindOrCreateMakesOnePrimary() {
	const goroutines = 10
	var (
		wg      sync.WaitGroup
		created atomic.Int32
		seen    [goroutines]domain.ContactID
	)

	for i := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.RunInTx(s.ctx, ownerA, func(ctx context.Context) error {
				found, err := s.store.FindByIdentityFragment(ctx, ownerA, "race@x.io", "")
				if err != nil {
					return err
				}
				if len(found) > 0 {
					seen[i] = found[0].ID
					return nil
				}
				c, err := models.NewPrimaryContact(ownerA, "race@x.io", "")
				if err != nil {
					return err
				}
				stored, err := s.store.Create(ctx, c)
				if err != nil {
					return err
				}
				seen[i] = stored.ID
				created.Add(1)
				return nil
			})
			s.NoError(err)
		}()
	}
	wg.Wait()

	s.Equal(int32(1), created.Load())
	found, err := s.store.FindByIdentityFragment(s.ctx, ownerA, "race@x.io", "")
	s.Require().NoError(err)
	s.Require().Len(found, 1)
	for i, id := range seen {
		s.Equal(found[0].ID, id, "caller %d", i)
	}
}

func (s *ContractSuite) TestPing() {
	s.NoError(s.store.Ping(s.ctx))
}
