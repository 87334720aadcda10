package testutil

import (
	"context"

	"github.com/flexprice/plansync/internal/domain/user"
	ierr "github.com/flexprice/plansync/internal/errors"
	"github.com/flexprice/plansync/internal/types"
	"github.com/samber/lo"
)

var _ user.Repository = (*InMemoryUserStore)(nil)

// InMemoryUserStore is an in-memory implementation of the User repository
type InMemoryUserStore struct {
	*InMemoryStore[*user.User]
}

func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{
		InMemoryStore: NewInMemoryStore(copyUser),
	}
}

func copyUser(u *user.User) *user.User {
	if u == nil {
		return nil
	}
	c := *u
	c.FreeGenerationCounters = u.FreeGenerationCounters.Copy()
	if u.ProviderCustomerID != nil {
		c.ProviderCustomerID = lo.ToPtr(*u.ProviderCustomerID)
	}
	return &c
}

func (s *InMemoryUserStore) CreateIfAbsent(ctx context.Context, u *user.User) (bool, error) {
	created := false
	err := s.Atomic(func(items map[string]*user.User) error {
		if _, ok := items[u.ID]; ok {
			return nil
		}
		items[u.ID] = copyUser(u)
		created = true
		return nil
	})
	return created, err
}

func (s *InMemoryUserStore) Get(ctx context.Context, id string) (*user.User, error) {
	u, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, userNotFound(id)
	}
	return u, nil
}

func (s *InMemoryUserStore) GetForUpdate(ctx context.Context, id string) (*user.User, error) {
	if err := requireTx(ctx, "GetForUpdate"); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *InMemoryUserStore) GetByProviderCustomerID(ctx context.Context, customerID string) (*user.User, error) {
	u, ok := s.Find(ctx, func(u *user.User) bool {
		return u.GetProviderCustomerID() == customerID
	})
	if !ok {
		return nil, ierr.NewError("user not found").
			WithHintf("No user is linked to customer %s", customerID).
			Mark(ierr.ErrNotFound)
	}
	return u, nil
}

func (s *InMemoryUserStore) Update(ctx context.Context, u *user.User) error {
	return s.Atomic(func(items map[string]*user.User) error {
		if _, ok := items[u.ID]; !ok {
			return userNotFound(u.ID)
		}
		if u.HasProviderCustomer() {
			for id, other := range items {
				if id != u.ID && other.GetProviderCustomerID() == u.GetProviderCustomerID() {
					return ierr.NewError("provider customer already linked").
						WithHint("Billing customer is linked to another user").
						Mark(ierr.ErrAlreadyExists)
				}
			}
		}
		items[u.ID] = copyUser(u)
		return nil
	})
}

func (s *InMemoryUserStore) ListReconcilable(ctx context.Context, afterID string, limit int) ([]*user.User, error) {
	users := s.List(ctx, func(u *user.User) bool {
		return (u.HasProviderCustomer() || u.PlanTier != types.PlanTierFree) && u.ID > afterID
	}, func(a, b *user.User) bool {
		return a.ID < b.ID
	})
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

func userNotFound(id string) error {
	return ierr.NewError("user not found").
		WithHintf("User %s was not found", id).
		WithReportableDetails(map[string]any{"user_id": id}).
		Mark(ierr.ErrNotFound)
}
