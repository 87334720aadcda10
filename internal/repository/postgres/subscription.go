package postgres

import (
	"context"

	"github.com/flexprice/plansync/internal/domain/subscription"
	ierr "github.com/flexprice/plansync/internal/errors"
	"github.com/flexprice/plansync/internal/logger"
	"github.com/flexprice/plansync/internal/postgres"
)

const subscriptionColumns = `id, user_id, status, price_id, provider_subscription_id, current_period_start,
	current_period_end, cancel_at_period_end, cancel_at, canceled_at, provider_event_at, created_at`

const insertSubscription = `
	INSERT INTO subscriptions (
		id, user_id, status, price_id, provider_subscription_id, current_period_start,
		current_period_end, cancel_at_period_end, cancel_at, canceled_at, provider_event_at, created_at
	) VALUES (
		:id, :user_id, :status, :price_id, :provider_subscription_id, :current_period_start,
		:current_period_end, :cancel_at_period_end, :cancel_at, :canceled_at, :provider_event_at, :created_at
	)
	`

type subscriptionRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewSubscriptionRepository(db *postgres.DB, logger *logger.Logger) subscription.Repository {
	return &subscriptionRepository{db: db, logger: logger}
}

func (r *subscriptionRepository) Create(ctx context.Context, sub *subscription.Subscription) error {
	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, insertSubscription, sub); err != nil {
		return mapError(err, "subscription", map[string]any{"user_id": sub.UserID})
	}
	return nil
}

func (r *subscriptionRepository) GetByUserID(ctx context.Context, userID string) (*subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = $1`

	var sub subscription.Subscription
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &sub, query, userID); err != nil {
		return nil, mapError(err, "subscription", map[string]any{"user_id": userID})
	}
	return &sub, nil
}

func (r *subscriptionRepository) GetByProviderSubscriptionID(ctx context.Context, providerSubscriptionID string) (*subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE provider_subscription_id = $1`

	var sub subscription.Subscription
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &sub, query, providerSubscriptionID); err != nil {
		return nil, mapError(err, "subscription", map[string]any{"provider_subscription_id": providerSubscriptionID})
	}
	return &sub, nil
}

// Replace deletes the user's row and inserts the new one in the caller's transaction,
// so readers see either the old row or the new one
func (r *subscriptionRepository) Replace(ctx context.Context, sub *subscription.Subscription) error {
	_, inTx := postgres.GetTx(ctx)
	if err := requireTx(inTx, "subscription replace"); err != nil {
		return err
	}

	q := r.db.GetQuerier(ctx)
	if _, err := q.ExecContext(ctx, `DELETE FROM subscriptions WHERE user_id = $1`, sub.UserID); err != nil {
		return mapError(err, "subscription", map[string]any{"user_id": sub.UserID})
	}

	if _, err := q.NamedExecContext(ctx, insertSubscription, sub); err != nil {
		return mapError(err, "subscription", map[string]any{
			"user_id":                  sub.UserID,
			"provider_subscription_id": sub.GetProviderSubscriptionID(),
		})
	}
	return nil
}

func (r *subscriptionRepository) Update(ctx context.Context, sub *subscription.Subscription) error {
	query := `
	UPDATE subscriptions SET
		status = :status,
		price_id = :price_id,
		current_period_start = :current_period_start,
		current_period_end = :current_period_end,
		cancel_at_period_end = :cancel_at_period_end,
		cancel_at = :cancel_at,
		canceled_at = :canceled_at,
		provider_event_at = :provider_event_at
	WHERE id = :id AND user_id = :user_id
	`

	result, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, sub)
	if err != nil {
		return mapError(err, "subscription", map[string]any{"subscription_id": sub.ID})
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return mapError(err, "subscription", map[string]any{"subscription_id": sub.ID})
	}
	if affected == 0 {
		return ierr.NewError("subscription not found").
			WithHint("Subscription not found").
			WithReportableDetails(map[string]any{"subscription_id": sub.ID}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}
