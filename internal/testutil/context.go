package testutil

import (
	"context"

	"github.com/flexprice/plansync/internal/types"
)

// SetupContext returns a request-like context for the given user
func SetupContext(userID string) context.Context {
	ctx := context.Background()
	ctx = context.WithValue(ctx, types.CtxUserID, userID)
	ctx = context.WithValue(ctx, types.CtxRequestID, types.GenerateUUID())
	return ctx
}
