package store

import (
	"context"
	"hash/fnv"
	"slices"
	"sync"

	"contactgraph/internal/contact/models"
	"contactgraph/pkg/domain"
	"contactgraph/pkg/platform/sentinel"
	"contactgraph/pkg/requestcontext"
)

// numShards bounds the number of owner locks. Owners hashing to the same
// shard serialize, which is safe but slower.
const numShards = 128

type partition map[domain.ContactID]*models.Contact

// InMemory is a process-local contact store for development and tests.
//
// RunInTx takes a per-owner shard lock and snapshots the owner's partition so
// that a failed reconciliation leaves no partial merge behind.
type InMemory struct {
	mu       sync.RWMutex
	nextID   domain.ContactID
	contacts map[domain.OwnerScope]partition

	shards [numShards]sync.Mutex
	opts   options
}

func NewInMemory(opts ...Option) *InMemory {
	return &InMemory{
		contacts: make(map[domain.OwnerScope]partition),
		opts:     buildOptions(opts),
	}
}

func (s *InMemory) RunInTx(ctx context.Context, owner domain.OwnerScope, fn func(ctx context.Context) error) error {
	ctx, cancel, err := txContext(ctx, s.opts.txTimeout)
	defer cancel()
	if err != nil {
		return err
	}

	shard := &s.shards[shardFor(owner)]
	shard.Lock()
	defer shard.Unlock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return abortedErr(err)
	}

	snapshot := s.snapshot(owner)
	if err := fn(ctx); err != nil {
		s.restore(owner, snapshot)
		return err
	}
	if err := ctx.Err(); err != nil {
		s.restore(owner, snapshot)
		return abortedErr(err)
	}
	return nil
}

func shardFor(owner domain.OwnerScope) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(owner))
	return h.Sum32() % numShards
}

func (s *InMemory) snapshot(owner domain.OwnerScope) partition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(partition, len(s.contacts[owner]))
	for id, c := range s.contacts[owner] {
		out[id] = clone(c)
	}
	return out
}

func (s *InMemory) restore(owner domain.OwnerScope, p partition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts[owner] = p
}

func (s *InMemory) FindByIdentityFragment(ctx context.Context, owner domain.OwnerScope, email, phone string) ([]*models.Contact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Contact
	for _, c := range s.contacts[owner] {
		if c.DeletedAt != nil {
			continue
		}
		if (email != "" && c.Email == email) || (phone != "" && c.PhoneNumber == phone) {
			out = append(out, clone(c))
		}
	}
	slices.SortFunc(out, models.Compare)
	return out, nil
}

func (s *InMemory) FindByID(ctx context.Context, owner domain.OwnerScope, id domain.ContactID) (*models.Contact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contacts[owner][id]
	if !ok || c.DeletedAt != nil {
		return nil, sentinel.ErrNotFound
	}
	return clone(c), nil
}

func (s *InMemory) FindFamily(ctx context.Context, owner domain.OwnerScope, primaryID domain.ContactID) ([]*models.Contact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var primary *models.Contact
	var secondaries []*models.Contact
	for _, c := range s.contacts[owner] {
		if c.DeletedAt != nil {
			continue
		}
		switch {
		case c.ID == primaryID:
			primary = clone(c)
		case c.LinkedID != nil && *c.LinkedID == primaryID:
			secondaries = append(secondaries, clone(c))
		}
	}
	slices.SortFunc(secondaries, models.Compare)

	if primary == nil {
		return secondaries, nil
	}
	return append([]*models.Contact{primary}, secondaries...), nil
}

func (s *InMemory) Create(ctx context.Context, contact *models.Contact) (*models.Contact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := contact.Validate(); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if contact.LinkedID != nil {
		if _, ok := s.contacts[contact.OwnerScope][*contact.LinkedID]; !ok {
			return nil, sentinel.ErrConflict
		}
	}

	s.nextID++
	stored := clone(contact)
	stored.ID = s.nextID
	stored.CreatedAt = now
	stored.UpdatedAt = now
	stored.DeletedAt = nil

	p, ok := s.contacts[stored.OwnerScope]
	if !ok {
		p = make(partition)
		s.contacts[stored.OwnerScope] = p
	}
	p[stored.ID] = stored
	return clone(stored), nil
}

func (s *InMemory) UpdatePrecedence(ctx context.Context, owner domain.OwnerScope, id domain.ContactID, precedence models.LinkPrecedence, linkedID *domain.ContactID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contacts[owner][id]
	if !ok || c.DeletedAt != nil {
		return sentinel.ErrNotFound
	}
	c.LinkPrecedence = precedence
	c.LinkedID = copyID(linkedID)
	c.UpdatedAt = now
	return nil
}

func (s *InMemory) Relink(ctx context.Context, owner domain.OwnerScope, from, to domain.ContactID) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	moved := 0
	for _, c := range s.contacts[owner] {
		if c.LinkedID != nil && *c.LinkedID == from {
			c.LinkedID = copyID(&to)
			c.UpdatedAt = now
			moved++
		}
	}
	return moved, nil
}

// SoftDelete stamps deletedAt; the contact disappears from every query.
// It takes the owner's shard lock so a concurrent RunInTx rollback cannot
// restore the contact, and therefore must not be called from inside RunInTx.
func (s *InMemory) SoftDelete(ctx context.Context, owner domain.OwnerScope, id domain.ContactID) error {
	now := requestcontext.Now(ctx)

	shard := &s.shards[shardFor(owner)]
	shard.Lock()
	defer shard.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contacts[owner][id]
	if !ok || c.DeletedAt != nil {
		return sentinel.ErrNotFound
	}
	deleted := now
	c.DeletedAt = &deleted
	c.UpdatedAt = now
	return nil
}

func (s *InMemory) Ping(context.Context) error {
	return nil
}

func clone(c *models.Contact) *models.Contact {
	out := *c
	out.LinkedID = copyID(c.LinkedID)
	if c.DeletedAt != nil {
		t := *c.DeletedAt
		out.DeletedAt = &t
	}
	return &out
}

func copyID(id *domain.ContactID) *domain.ContactID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

