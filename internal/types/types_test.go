package types

import (
	"testing"

	ierr "github.com/flexprice/plansync/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersScan(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  Counters
	}{
		{"nil", nil, Counters{}},
		{"bytes", []byte(`{"statement": 2}`), Counters{FeatureStatement: 2}},
		{"string", `{"statement": 1, "export": 4}`, Counters{FeatureStatement: 1, "export": 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Counters
			require.NoError(t, c.Scan(tt.value))
			assert.Equal(t, tt.want, c)
		})
	}

	var c Counters
	assert.Error(t, c.Scan(42))
}

func TestCountersValue(t *testing.T) {
	v, err := Counters(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, []byte(`{}`), v)

	v, err = Counters{FeatureStatement: 3}.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"statement": 3}`, string(v.([]byte)))
}

func TestCountersCopyIsDetached(t *testing.T) {
	c := Counters{FeatureStatement: 1}
	cp := c.Copy()
	cp[FeatureStatement] = 5
	assert.Equal(t, int64(1), c.Get(FeatureStatement))
	assert.Equal(t, int64(0), Counters(nil).Get(FeatureStatement))
}

func TestPlanTier(t *testing.T) {
	assert.False(t, PlanTierFree.IsPaid())
	assert.True(t, PlanTierMonthly.IsPaid())
	assert.True(t, PlanTierYearly.IsPaid())

	assert.NoError(t, PlanTierYearly.Validate())
	err := PlanTier("weekly").Validate()
	assert.True(t, ierr.IsValidation(err))
}

func TestSubscriptionStatus(t *testing.T) {
	tests := []struct {
		status   SubscriptionStatus
		entitled bool
		terminal bool
	}{
		{SubscriptionStatusActive, true, false},
		{SubscriptionStatusTrialing, true, false},
		{SubscriptionStatusPastDue, false, false},
		{SubscriptionStatusUnpaid, false, false},
		{SubscriptionStatusPaused, false, false},
		{SubscriptionStatusIncomplete, false, false},
		{SubscriptionStatusIncompleteExpired, false, true},
		{SubscriptionStatusCanceled, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			assert.NoError(t, tt.status.Validate())
			assert.Equal(t, tt.entitled, tt.status.IsEntitled())
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
		})
	}

	assert.True(t, ierr.IsValidation(SubscriptionStatus("cancelled").Validate()))
}

func TestGenerateUUIDWithPrefix(t *testing.T) {
	id := GenerateUUIDWithPrefix(UUID_PREFIX_SUBSCRIPTION)
	assert.Regexp(t, `^subs_[0-9A-Z]{26}$`, id)
	assert.Len(t, GenerateUUIDWithPrefix(""), 26)
	assert.NotEqual(t, GenerateUUID(), GenerateUUID())
}
