package types

// BillingEventKind is the normalized kind of a billing provider notification
type BillingEventKind string

const (
	BillingEventKindCheckoutCompleted   BillingEventKind = "checkout_completed"
	BillingEventKindSubscriptionUpdated BillingEventKind = "subscription_updated"
	BillingEventKindSubscriptionDeleted BillingEventKind = "subscription_deleted"
	BillingEventKindPaymentSucceeded    BillingEventKind = "payment_succeeded"
	BillingEventKindUnknown             BillingEventKind = "unknown"
)

func (k BillingEventKind) String() string {
	return string(k)
}

// ReconciliationOutcome describes what a reconciliation did to local state
type ReconciliationOutcome string

const (
	// ReconciliationOutcomeApplied means local state was changed
	ReconciliationOutcomeApplied ReconciliationOutcome = "applied"
	// ReconciliationOutcomeNoop means local state already matched
	ReconciliationOutcomeNoop ReconciliationOutcome = "noop"
	// ReconciliationOutcomeStale means the event was older than the state it would replace
	ReconciliationOutcomeStale ReconciliationOutcome = "stale"
	// ReconciliationOutcomeIgnored is used for event kinds that carry no plan information
	ReconciliationOutcomeIgnored ReconciliationOutcome = "ignored"
	// ReconciliationOutcomeDropped means the event referenced a user that does not exist
	ReconciliationOutcomeDropped ReconciliationOutcome = "dropped"
	// ReconciliationOutcomeUnresolved means provider data could not be obtained
	ReconciliationOutcomeUnresolved ReconciliationOutcome = "unresolved"
	// ReconciliationOutcomeDuplicate means the delivery was recently processed
	ReconciliationOutcomeDuplicate ReconciliationOutcome = "duplicate"
)

func (o ReconciliationOutcome) String() string {
	return string(o)
}
