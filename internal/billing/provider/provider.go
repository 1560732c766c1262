// Package provider defines the billing-provider contract the reconciler
// executes against.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// InvoiceLine is one upcoming, not-yet-invoiced line on a subscription.
type InvoiceLine struct {
	ID            string
	InvoiceItemID string
	Description   string
	// Amount in minor currency units, signed.
	Amount    int64
	Currency  string
	Proration bool
	// PriceID is the processor-side price behind the line.
	PriceID string
}

// Period bounds an invoice item, unix seconds.
type Period struct {
	Start int64
	End   int64
}

// InvoiceItem is the payload for a provider-side invoice item.
type InvoiceItem struct {
	CustomerID  string
	ProductID   string
	Description string
	Currency    string
	// Amount in minor currency units, never negative.
	Amount int64
	Period Period
}

type Provider interface {
	Name() string
	ListUpcomingLines(ctx context.Context, subscriptionID string) ([]InvoiceLine, error)
	DeleteInvoiceItem(ctx context.Context, invoiceItemID string) error
	CreateInvoiceItem(ctx context.Context, item InvoiceItem) (string, error)
}

var (
	ErrInvalidConfig      = errors.New("invalid_provider_config")
	ErrProviderNotFound   = errors.New("provider_not_found")
	ErrInvoiceItemMissing = errors.New("invoice_item_missing")
)

// Error wraps a provider failure with the provider name and operation.
type Error struct {
	Provider string
	Op       string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
