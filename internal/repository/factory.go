package repository

import (
	"github.com/flexprice/plansync/internal/domain/subscription"
	"github.com/flexprice/plansync/internal/domain/user"
	"github.com/flexprice/plansync/internal/logger"
	"github.com/flexprice/plansync/internal/postgres"
	postgresRepo "github.com/flexprice/plansync/internal/repository/postgres"
)

func NewUserRepository(db *postgres.DB, logger *logger.Logger) user.Repository {
	return postgresRepo.NewUserRepository(db, logger)
}

func NewSubscriptionRepository(db *postgres.DB, logger *logger.Logger) subscription.Repository {
	return postgresRepo.NewSubscriptionRepository(db, logger)
}
