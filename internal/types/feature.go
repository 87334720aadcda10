package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// FeatureKey identifies a quota-gated product feature
type FeatureKey string

const (
	FeatureStatement FeatureKey = "statement"
)

func (f FeatureKey) String() string {
	return string(f)
}

// UnlimitedQuota is reported as the remaining quota of a feature that is not gated for the user
const UnlimitedQuota int64 = -1

// Counters is a JSONB field holding per-feature usage counts.
// Counts only ever grow.
type Counters map[FeatureKey]int64

// Get returns the count for a feature, zero when absent
func (c Counters) Get(feature FeatureKey) int64 {
	if c == nil {
		return 0
	}
	return c[feature]
}

// Copy returns a detached copy of the counters
func (c Counters) Copy() Counters {
	out := make(Counters, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Scan implements the sql.Scanner interface for Counters
func (c *Counters) Scan(value interface{}) error {
	if value == nil {
		*c = make(Counters)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("failed to unmarshal JSONB value: %v", value)
	}

	result := make(Counters)
	err := json.Unmarshal(bytes, &result)
	*c = result
	return err
}

// Value implements the driver.Valuer interface for Counters
func (c Counters) Value() (driver.Value, error) {
	if c == nil {
		return json.Marshal(make(Counters))
	}
	return json.Marshal(c)
}
