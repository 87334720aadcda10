package webhook

import (
	"bytes"

	ierr "github.com/flexprice/plansync/internal/errors"
	"github.com/flexprice/plansync/internal/integration/stripe"
	jsoniter "github.com/json-iterator/go"
	stripeapi "github.com/stripe/stripe-go/v82"
)

var invoiceJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// expandable is a Stripe reference that arrives either as an id or as the expanded object
type expandable struct {
	ID string `json:"id"`
}

func (e *expandable) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		return invoiceJSON.Unmarshal(data, &e.ID)
	}
	type object expandable
	return invoiceJSON.Unmarshal(data, (*object)(e))
}

type subscriptionDetails struct {
	Subscription expandable        `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

// invoiceObject holds the invoice fields the router reads. Newer API versions move
// the subscription under parent.subscription_details and the price under
// pricing.price_details; the older top-level fields are read as a fallback.
type invoiceObject struct {
	ID                  string               `json:"id"`
	Customer            expandable           `json:"customer"`
	Subscription        expandable           `json:"subscription"`
	SubscriptionDetails *subscriptionDetails `json:"subscription_details"`
	Parent              *struct {
		SubscriptionDetails *subscriptionDetails `json:"subscription_details"`
	} `json:"parent"`
	Lines struct {
		Data []invoiceLine `json:"data"`
	} `json:"lines"`
}

type invoiceLine struct {
	Amount    int64       `json:"amount"`
	Proration bool        `json:"proration"`
	Price     *expandable `json:"price"`
	Pricing   *struct {
		PriceDetails *struct {
			Price string `json:"price"`
		} `json:"price_details"`
	} `json:"pricing"`
	Parent *struct {
		SubscriptionItemDetails *struct {
			Proration bool `json:"proration"`
		} `json:"subscription_item_details"`
		InvoiceItemDetails *struct {
			Proration bool `json:"proration"`
		} `json:"invoice_item_details"`
	} `json:"parent"`
}

func (l *invoiceLine) price() string {
	if l.Pricing != nil && l.Pricing.PriceDetails != nil && l.Pricing.PriceDetails.Price != "" {
		return l.Pricing.PriceDetails.Price
	}
	if l.Price != nil {
		return l.Price.ID
	}
	return ""
}

func (l *invoiceLine) isProration() bool {
	if l.Proration {
		return true
	}
	if l.Parent == nil {
		return false
	}
	return (l.Parent.SubscriptionItemDetails != nil && l.Parent.SubscriptionItemDetails.Proration) ||
		(l.Parent.InvoiceItemDetails != nil && l.Parent.InvoiceItemDetails.Proration)
}

func decodeInvoice(event *stripeapi.Event) (*invoiceObject, error) {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return nil, ierr.NewError("webhook event has no data object").
			WithHint("Invalid webhook payload").
			WithReportableDetails(map[string]any{"event_id": event.ID}).
			Mark(ierr.ErrValidation)
	}

	var inv invoiceObject
	if err := invoiceJSON.Unmarshal(event.Data.Raw, &inv); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid invoice in webhook payload").
			WithReportableDetails(map[string]any{"event_id": event.ID}).
			Mark(ierr.ErrValidation)
	}
	return &inv, nil
}

func (i *invoiceObject) details() *subscriptionDetails {
	if i.Parent != nil && i.Parent.SubscriptionDetails != nil {
		return i.Parent.SubscriptionDetails
	}
	return i.SubscriptionDetails
}

func (i *invoiceObject) subscriptionID() string {
	if d := i.details(); d != nil && d.Subscription.ID != "" {
		return d.Subscription.ID
	}
	return i.Subscription.ID
}

func (i *invoiceObject) userID() string {
	if d := i.details(); d != nil {
		return d.Metadata[stripe.MetadataUserID]
	}
	return ""
}

// priceID returns the subscription price the invoice charges for. Credit lines
// never count, and proration lines only when the invoice has nothing else: on a
// plan change the credit for the old price is often listed first.
func (i *invoiceObject) priceID() string {
	var prorated string
	for _, line := range i.Lines.Data {
		price := line.price()
		if price == "" || line.Amount < 0 {
			continue
		}
		if !line.isProration() {
			return price
		}
		if prorated == "" {
			prorated = price
		}
	}
	return prorated
}
