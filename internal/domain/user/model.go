package user

import (
	"time"

	"github.com/flexprice/plansync/internal/types"
)

// User is the local record of an application user and their plan projection.
// PlanTier is always derived from the user's Subscription through the plan resolver
// and is written only together with that Subscription.
type User struct {
	ID                     string         `db:"id" json:"id"`
	Email                  string         `db:"email" json:"email"`
	PlanTier               types.PlanTier `db:"plan_tier" json:"plan_tier"`
	FreeGenerationCounters types.Counters `db:"free_generation_counters" json:"free_generation_counters"`
	ProviderCustomerID     *string        `db:"provider_customer_id" json:"provider_customer_id,omitempty"`
	CreatedAt              time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time      `db:"updated_at" json:"updated_at"`
}

// NewUser returns a free-tier user with no recorded usage
func NewUser(id, email string, now time.Time) *User {
	return &User{
		ID:                     id,
		Email:                  email,
		PlanTier:               types.PlanTierFree,
		FreeGenerationCounters: make(types.Counters),
		CreatedAt:              now,
		UpdatedAt:              now,
	}
}

func (u *User) HasProviderCustomer() bool {
	return u.ProviderCustomerID != nil && *u.ProviderCustomerID != ""
}

func (u *User) GetProviderCustomerID() string {
	if u.ProviderCustomerID == nil {
		return ""
	}
	return *u.ProviderCustomerID
}
