package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/flexprice/plansync/internal/domain/subscription"
	ierr "github.com/flexprice/plansync/internal/errors"
	"github.com/flexprice/plansync/internal/logger"
	"github.com/flexprice/plansync/internal/postgres"
	"github.com/flexprice/plansync/internal/types"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type SubscriptionRepositorySuite struct {
	suite.Suite
	ctx  context.Context
	mock sqlmock.Sqlmock
	db   *postgres.DB
	repo subscription.Repository
	now  time.Time
}

func TestSubscriptionRepository(t *testing.T) {
	suite.Run(t, new(SubscriptionRepositorySuite))
}

func (s *SubscriptionRepositorySuite) SetupTest() {
	mockDB, mock, err := sqlmock.New()
	s.Require().NoError(err)

	s.ctx = context.Background()
	s.mock = mock
	s.db = postgres.NewFromSQLX(sqlx.NewDb(mockDB, "postgres"), logger.NewNopLogger())
	s.repo = NewSubscriptionRepository(s.db, logger.NewNopLogger())
	s.now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *SubscriptionRepositorySuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
}

func (s *SubscriptionRepositorySuite) paidSubscription() *subscription.Subscription {
	return &subscription.Subscription{
		ID:                     "sub_123",
		UserID:                 "user_1",
		Status:                 types.SubscriptionStatusActive,
		PriceID:                "price_yearly",
		ProviderSubscriptionID: lo.ToPtr("sub_123"),
		CurrentPeriodStart:     s.now,
		CurrentPeriodEnd:       s.now.AddDate(1, 0, 0),
		ProviderEventAt:        lo.ToPtr(s.now),
		CreatedAt:              s.now,
	}
}

func (s *SubscriptionRepositorySuite) TestReplaceDeletesThenInsertsInOneTransaction() {
	sub := s.paidSubscription()

	s.mock.ExpectBegin()
	s.mock.ExpectExec(`DELETE FROM subscriptions WHERE user_id = \$1`).
		WithArgs("user_1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectExec(`INSERT INTO subscriptions`).
		WithArgs(
			"sub_123", "user_1", "active", "price_yearly", "sub_123", s.now,
			s.now.AddDate(1, 0, 0), false, nil, nil, s.now, s.now,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectCommit()

	err := s.db.WithTx(s.ctx, func(ctx context.Context) error {
		return s.repo.Replace(ctx, sub)
	})
	s.NoError(err)
}

func (s *SubscriptionRepositorySuite) TestReplaceRollsBackOnInsertFailure() {
	sub := s.paidSubscription()

	s.mock.ExpectBegin()
	s.mock.ExpectExec(`DELETE FROM subscriptions`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.mock.ExpectExec(`INSERT INTO subscriptions`).
		WillReturnError(&pq.Error{Code: "23505"})
	s.mock.ExpectRollback()

	err := s.db.WithTx(s.ctx, func(ctx context.Context) error {
		return s.repo.Replace(ctx, sub)
	})
	s.True(ierr.IsAlreadyExists(err))
}

func (s *SubscriptionRepositorySuite) TestReplaceRequiresTransaction() {
	s.Error(s.repo.Replace(s.ctx, s.paidSubscription()))
}

func (s *SubscriptionRepositorySuite) TestGetByUserID() {
	s.mock.ExpectQuery(`SELECT .* FROM subscriptions WHERE user_id = \$1`).
		WithArgs("user_1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "status", "price_id", "provider_subscription_id", "current_period_start",
			"current_period_end", "cancel_at_period_end", "cancel_at", "canceled_at", "provider_event_at", "created_at",
		}).AddRow(
			"subs_01", "user_1", "active", "free", nil, s.now,
			types.FreePeriodEnd, false, nil, nil, nil, s.now,
		))

	sub, err := s.repo.GetByUserID(s.ctx, "user_1")
	s.Require().NoError(err)
	s.True(sub.IsSynthetic())
	s.Equal(types.FreePriceID, sub.PriceID)
	s.Nil(sub.ProviderEventAt)
}

func (s *SubscriptionRepositorySuite) TestUpdate() {
	sub := s.paidSubscription()
	sub.CancelAtPeriodEnd = true

	s.mock.ExpectExec(`UPDATE subscriptions SET`).
		WithArgs(
			"active", "price_yearly", s.now, s.now.AddDate(1, 0, 0), true, nil, nil, s.now, "sub_123", "user_1",
		).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.NoError(s.repo.Update(s.ctx, sub))

	s.mock.ExpectExec(`UPDATE subscriptions SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	s.True(ierr.IsNotFound(s.repo.Update(s.ctx, sub)))
}

func (s *SubscriptionRepositorySuite) TestDatabaseFailureIsMarked() {
	s.mock.ExpectQuery(`SELECT .* FROM subscriptions WHERE provider_subscription_id = \$1`).
		WithArgs("sub_123").
		WillReturnError(errors.New("connection reset"))

	_, err := s.repo.GetByProviderSubscriptionID(s.ctx, "sub_123")
	s.True(ierr.IsDatabase(err))
}
