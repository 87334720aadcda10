package user

import (
	"context"
)

type Repository interface {
	// CreateIfAbsent inserts the user unless a row with the same id exists.
	// It reports whether a row was inserted.
	CreateIfAbsent(ctx context.Context, user *User) (bool, error)
	Get(ctx context.Context, id string) (*User, error)
	// GetForUpdate reads the user and locks the row until the surrounding transaction ends.
	// Every state mutation for a user starts here so same-user writers are serialized.
	GetForUpdate(ctx context.Context, id string) (*User, error)
	GetByProviderCustomerID(ctx context.Context, customerID string) (*User, error)
	Update(ctx context.Context, user *User) error
	// ListReconcilable pages through users the drift sweep checks, ordered by id: users
	// linked to a billing customer and users whose cached plan tier is not free
	ListReconcilable(ctx context.Context, afterID string, limit int) ([]*User, error)
}
