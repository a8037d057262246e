package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"payaid/internal/gst"
	"payaid/internal/platform/pgtest"
	"payaid/services/finance-service/internal/models"
	"payaid/services/finance-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func draftInput(t *testing.T, tenantID string, date time.Time, placeOfSupply string) store.CreateInvoiceInput {
	t.Helper()
	line, err := gst.ComputeLine(gst.Line{
		Description: "Consulting",
		HSN:         "998311",
		Quantity:    2,
		UnitPrice:   5000000,
		RateBP:      1800,
	}, placeOfSupply == "27")
	require.NoError(t, err)
	lines := []gst.Line{line}
	totals, err := gst.Summarize(lines)
	require.NoError(t, err)
	return store.CreateInvoiceInput{
		TenantID:      tenantID,
		InvoiceDate:   date,
		CustomerName:  "Acme Traders",
		SupplierState: "27",
		PlaceOfSupply: placeOfSupply,
		Lines:         lines,
		Totals:        totals,
	}
}

func TestInvoiceNumbering(t *testing.T) {
	ctx := context.Background()
	pool := pgtest.NewPool(t)
	st := NewStore(pool)
	tenantID := pgtest.SeedTenant(t, pool, "27")

	state, err := st.TenantStateCode(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, "27", state)

	march := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	april := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	first, err := st.CreateInvoice(ctx, draftInput(t, tenantID, march, "27"))
	require.NoError(t, err)
	assert.Equal(t, gst.InvoiceDraft, first.Status)
	assert.Empty(t, first.Number)
	assert.Equal(t, int64(11800000), first.Total)

	second, err := st.CreateInvoice(ctx, draftInput(t, tenantID, april, "29"))
	require.NoError(t, err)
	third, err := st.CreateInvoice(ctx, draftInput(t, tenantID, april, "27"))
	require.NoError(t, err)

	issued, err := st.TransitionInvoice(ctx, store.InvoiceActionInput{TenantID: tenantID, InvoiceID: first.InvoiceID, Action: store.ActionIssue})
	require.NoError(t, err)
	assert.Equal(t, "INV/2024-25/000001", issued.Number)
	require.NotNil(t, issued.IssuedAt)
	require.Len(t, issued.Lines, 1)

	issued, err = st.TransitionInvoice(ctx, store.InvoiceActionInput{TenantID: tenantID, InvoiceID: second.InvoiceID, Action: store.ActionIssue})
	require.NoError(t, err)
	assert.Equal(t, "INV/2025-26/000001", issued.Number)

	issued, err = st.TransitionInvoice(ctx, store.InvoiceActionInput{TenantID: tenantID, InvoiceID: third.InvoiceID, Action: store.ActionIssue})
	require.NoError(t, err)
	assert.Equal(t, "INV/2025-26/000002", issued.Number)

	_, err = st.TransitionInvoice(ctx, store.InvoiceActionInput{TenantID: tenantID, InvoiceID: third.InvoiceID, Action: store.ActionIssue})
	assert.ErrorIs(t, err, store.ErrInvalidState)

	cancelled, err := st.TransitionInvoice(ctx, store.InvoiceActionInput{TenantID: tenantID, InvoiceID: third.InvoiceID, Action: store.ActionCancel})
	require.NoError(t, err)
	assert.Equal(t, gst.InvoiceCancelled, cancelled.Status)
	assert.Equal(t, "INV/2025-26/000002", cancelled.Number)

	var outboxCount int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_events WHERE tenant_id = $1 AND type LIKE 'invoice.%'`, tenantID).Scan(&outboxCount))
	assert.Equal(t, 4, outboxCount)

	returned, err := st.ReturnInvoices(ctx, tenantID, store.PeriodFilter{
		From: april,
		To:   april.AddDate(0, 1, 0),
	})
	require.NoError(t, err)
	require.Len(t, returned, 2)
	for _, invoice := range returned {
		assert.Len(t, invoice.Lines, 1)
	}

	otherTenant := pgtest.SeedTenant(t, pool, "29")
	_, err = st.GetInvoice(ctx, otherTenant, first.InvoiceID)
	assert.ErrorIs(t, err, store.ErrInvoiceNotFound)
}

func TestConcurrentIssueIsGapless(t *testing.T) {
	ctx := context.Background()
	pool := pgtest.NewPool(t)
	st := NewStore(pool)
	tenantID := pgtest.SeedTenant(t, pool, "27")
	date := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	var ids []string
	for i := 0; i < 8; i++ {
		invoice, err := st.CreateInvoice(ctx, draftInput(t, tenantID, date, "27"))
		require.NoError(t, err)
		ids = append(ids, invoice.InvoiceID)
	}

	var mu sync.Mutex
	numbers := map[string]bool{}
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			invoice, err := st.TransitionInvoice(ctx, store.InvoiceActionInput{TenantID: tenantID, InvoiceID: id, Action: store.ActionIssue})
			if err != nil {
				t.Errorf("issue %s: %v", id, err)
				return
			}
			mu.Lock()
			numbers[invoice.Number] = true
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	require.Len(t, numbers, len(ids))
	for i := 1; i <= len(ids); i++ {
		assert.True(t, numbers[gst.InvoiceNumber("2025-26", int64(i))], "missing number %d", i)
	}
}

func TestPurchasesAndArchives(t *testing.T) {
	ctx := context.Background()
	pool := pgtest.NewPool(t)
	st := NewStore(pool)
	tenantID := pgtest.SeedTenant(t, pool, "27")

	input := store.CreatePurchaseInput{TenantID: tenantID, Purchase: gst.Purchase{
		SupplierName:  "Paper Mills",
		SupplierGSTIN: "27AAPFU0939F1ZV",
		BillNumber:    "PM-77",
		BillDate:      time.Date(2025, 5, 3, 0, 0, 0, 0, time.UTC),
		TaxableValue:  1000000,
		CGST:          90000,
		SGST:          90000,
		ITCEligible:   true,
	}}
	purchase, err := st.CreatePurchase(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, "PM-77", purchase.BillNumber)

	_, err = st.CreatePurchase(ctx, input)
	assert.ErrorIs(t, err, store.ErrPurchaseExists)

	purchases, err := st.ListPurchases(ctx, tenantID, store.PeriodFilter{
		From: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, purchases, 1)
	assert.True(t, purchases[0].ITCEligible)

	archive, err := st.RecordArchive(ctx, models.Archive{
		TenantID:  tenantID,
		Report:    gst.ReportGSTR1,
		Period:    "2025-05",
		Bucket:    "returns",
		ObjectKey: "tenants/" + tenantID + "/gst/2025-05/gstr1.csv",
		SizeBytes: 512,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, archive.ArchiveID)

	archives, err := st.ListArchives(ctx, tenantID)
	require.NoError(t, err)
	require.Len(t, archives, 1)
	assert.Equal(t, int64(512), archives[0].SizeBytes)
}
