package store

import (
	"context"
	"time"

	"payaid/internal/gst"
	"payaid/services/finance-service/internal/models"
)

// CreateInvoiceInput carries an invoice whose lines are already computed.
type CreateInvoiceInput struct {
	TenantID      string
	InvoiceDate   time.Time
	CustomerName  string
	CustomerGSTIN string
	SupplierState string
	PlaceOfSupply string
	Lines         []gst.Line
	Totals        gst.Totals
}

type InvoiceFilter struct {
	Status string
	From   time.Time
	To     time.Time
}

type InvoiceActionInput struct {
	TenantID   string
	InvoiceID  string
	Action     string
	OccurredAt time.Time
}

type CreatePurchaseInput struct {
	TenantID string
	gst.Purchase
}

type PeriodFilter struct {
	From time.Time
	To   time.Time
}

type Store interface {
	TenantStateCode(ctx context.Context, tenantID string) (string, error)
	CreateInvoice(ctx context.Context, input CreateInvoiceInput) (models.Invoice, error)
	ListInvoices(ctx context.Context, tenantID string, filter InvoiceFilter) ([]models.Invoice, error)
	GetInvoice(ctx context.Context, tenantID, invoiceID string) (models.Invoice, error)
	TransitionInvoice(ctx context.Context, input InvoiceActionInput) (models.Invoice, error)
	ReturnInvoices(ctx context.Context, tenantID string, period PeriodFilter) ([]gst.Invoice, error)
	CreatePurchase(ctx context.Context, input CreatePurchaseInput) (models.Purchase, error)
	ListPurchases(ctx context.Context, tenantID string, period PeriodFilter) ([]models.Purchase, error)
	RecordArchive(ctx context.Context, archive models.Archive) (models.Archive, error)
	ListArchives(ctx context.Context, tenantID string) ([]models.Archive, error)
}
