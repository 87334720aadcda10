package postgres

import (
	"context"

	"github.com/flexprice/plansync/internal/domain/user"
	ierr "github.com/flexprice/plansync/internal/errors"
	"github.com/flexprice/plansync/internal/logger"
	"github.com/flexprice/plansync/internal/postgres"
	"github.com/flexprice/plansync/internal/types"
)

const userColumns = `id, email, plan_tier, free_generation_counters, provider_customer_id, created_at, updated_at`

type userRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewUserRepository(db *postgres.DB, logger *logger.Logger) user.Repository {
	return &userRepository{db: db, logger: logger}
}

func (r *userRepository) CreateIfAbsent(ctx context.Context, u *user.User) (bool, error) {
	query := `
	INSERT INTO users (id, email, plan_tier, free_generation_counters, provider_customer_id, created_at, updated_at)
	VALUES (:id, :email, :plan_tier, :free_generation_counters, :provider_customer_id, :created_at, :updated_at)
	ON CONFLICT (id) DO NOTHING
	`

	result, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, u)
	if err != nil {
		return false, mapError(err, "user", map[string]any{"user_id": u.ID})
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, mapError(err, "user", map[string]any{"user_id": u.ID})
	}
	return affected == 1, nil
}

func (r *userRepository) Get(ctx context.Context, id string) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var u user.User
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &u, query, id); err != nil {
		return nil, mapError(err, "user", map[string]any{"user_id": id})
	}
	return &u, nil
}

func (r *userRepository) GetForUpdate(ctx context.Context, id string) (*user.User, error) {
	_, inTx := postgres.GetTx(ctx)
	if err := requireTx(inTx, "user lock"); err != nil {
		return nil, err
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`

	var u user.User
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &u, query, id); err != nil {
		return nil, mapError(err, "user", map[string]any{"user_id": id})
	}
	return &u, nil
}

func (r *userRepository) GetByProviderCustomerID(ctx context.Context, customerID string) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE provider_customer_id = $1`

	var u user.User
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &u, query, customerID); err != nil {
		return nil, mapError(err, "user", map[string]any{"provider_customer_id": customerID})
	}
	return &u, nil
}

func (r *userRepository) Update(ctx context.Context, u *user.User) error {
	query := `
	UPDATE users SET
		email = :email,
		plan_tier = :plan_tier,
		free_generation_counters = :free_generation_counters,
		provider_customer_id = :provider_customer_id,
		updated_at = :updated_at
	WHERE id = :id
	`

	result, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, u)
	if err != nil {
		return mapError(err, "user", map[string]any{"user_id": u.ID})
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return mapError(err, "user", map[string]any{"user_id": u.ID})
	}
	if affected == 0 {
		return ierr.NewError("user not found").
			WithHint("User not found").
			WithReportableDetails(map[string]any{"user_id": u.ID}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *userRepository) ListReconcilable(ctx context.Context, afterID string, limit int) ([]*user.User, error) {
	query := `
	SELECT ` + userColumns + `
	FROM users
	WHERE (provider_customer_id IS NOT NULL OR plan_tier <> $1) AND id > $2
	ORDER BY id
	LIMIT $3
	`

	var users []*user.User
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &users, query, string(types.PlanTierFree), afterID, limit); err != nil {
		return nil, mapError(err, "user", map[string]any{"after_id": afterID})
	}
	return users, nil
}
