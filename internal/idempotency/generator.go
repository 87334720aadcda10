package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Scope names the kind of provider object a key protects
type Scope string

const (
	ScopeProviderCustomer Scope = "provider_customer"
	ScopeCheckoutSession  Scope = "checkout_session"
)

// CheckoutWindow is the bucket size used for checkout keys: retries inside the same
// window reuse the provider session, a later attempt gets a fresh one
const CheckoutWindow = time.Minute

// Generator derives provider idempotency keys
type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// GenerateKey hashes the scope and params into "<scope>-<16 hex chars>". Param order
// does not matter.
func (g *Generator) GenerateKey(scope Scope, params map[string]interface{}) string {
	names := lo.Keys(params)
	slices.Sort(names)

	parts := make([]string, 0, len(names)+1)
	parts = append(parts, string(scope))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%v", name, params[name]))
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, ":")))
	return string(scope) + "-" + hex.EncodeToString(sum[:8])
}

// Bucket truncates t to the given window for use as a key parameter
func Bucket(t time.Time, window time.Duration) int64 {
	return t.Truncate(window).Unix()
}
