package validator

import (
	"testing"

	"github.com/cockroachdb/errors"
	ierr "github.com/flexprice/plansync/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type checkoutRequest struct {
	PriceID  string `json:"price_id" validate:"required"`
	CouponID string `json:"coupon_id,omitempty" validate:"omitempty,max=5"`
}

func TestValidateRequest(t *testing.T) {
	NewValidator()

	assert.NoError(t, ValidateRequest(&checkoutRequest{PriceID: "price_monthly"}))

	err := ValidateRequest(&checkoutRequest{CouponID: "TOOLONG"})
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))

	details := errors.GetAllSafeDetails(err)
	require.NotEmpty(t, details)
	var payload string
	for _, d := range details {
		for _, p := range d.SafeDetails {
			payload += p
		}
	}
	assert.Contains(t, payload, `"price_id":"required"`)
	assert.Contains(t, payload, `"coupon_id":"max"`)
}
