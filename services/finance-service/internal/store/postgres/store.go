package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"payaid/internal/gst"
	"payaid/internal/outbox"
	"payaid/services/finance-service/internal/models"
	"payaid/services/finance-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

const invoiceColumns = `
	invoice_id, tenant_id, COALESCE(invoice_number, ''), status, invoice_date, customer_name,
	COALESCE(customer_gstin, ''), supplier_state, place_of_supply,
	taxable_value, cgst, sgst, igst, total, created_at, issued_at, cancelled_at`

const purchaseColumns = `
	bill_id, tenant_id, supplier_name, supplier_gstin, bill_number, bill_date,
	taxable_value, cgst, sgst, igst, itc_eligible, created_at`

const archiveColumns = `
	archive_id, tenant_id, report, period, bucket, object_key, size_bytes,
	COALESCE(created_by::text, ''), created_at`

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, now: time.Now}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) TenantStateCode(ctx context.Context, tenantID string) (string, error) {
	var code sql.NullString
	err := s.pool.QueryRow(ctx, `SELECT state_code FROM tenants WHERE tenant_id = $1`, tenantID).Scan(&code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", store.ErrTenantNotFound
		}
		return "", err
	}
	if !code.Valid || code.String == "" {
		return "", store.ErrTenantStateMissing
	}
	return code.String, nil
}

func (s *Store) CreateInvoice(ctx context.Context, input store.CreateInvoiceInput) (models.Invoice, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Invoice{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	row := tx.QueryRow(ctx, `
		INSERT INTO invoices (
			invoice_id, tenant_id, status, invoice_date, customer_name, customer_gstin,
			supplier_state, place_of_supply, taxable_value, cgst, sgst, igst, total, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING `+invoiceColumns,
		uuid.NewString(), input.TenantID, gst.InvoiceDraft, input.InvoiceDate, input.CustomerName, nullIfEmpty(input.CustomerGSTIN),
		input.SupplierState, input.PlaceOfSupply, input.Totals.TaxableValue, input.Totals.CGST, input.Totals.SGST,
		input.Totals.IGST, input.Totals.Total, s.now().UTC())
	var invoice models.Invoice
	invoice, err = scanInvoice(row)
	if err != nil {
		return models.Invoice{}, err
	}

	for i, line := range input.Lines {
		_, err = tx.Exec(ctx, `
			INSERT INTO invoice_lines (
				invoice_id, line_no, description, hsn, quantity, unit_price, discount, rate_bp,
				taxable_value, cgst, sgst, igst
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		`, invoice.InvoiceID, i+1, line.Description, line.HSN, line.Quantity, line.UnitPrice, line.Discount, line.RateBP,
			line.TaxableValue, line.CGST, line.SGST, line.IGST)
		if err != nil {
			return models.Invoice{}, fmt.Errorf("insert invoice line %d: %w", i+1, err)
		}
	}
	invoice.Lines = append([]gst.Line(nil), input.Lines...)

	if err = tx.Commit(ctx); err != nil {
		return models.Invoice{}, err
	}
	return invoice, nil
}

func (s *Store) ListInvoices(ctx context.Context, tenantID string, filter store.InvoiceFilter) ([]models.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		query += fmt.Sprintf(" AND invoice_date >= $%d", len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		query += fmt.Sprintf(" AND invoice_date < $%d", len(args))
	}
	query += " ORDER BY invoice_date DESC, created_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invoices := []models.Invoice{}
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, invoice)
	}
	return invoices, rows.Err()
}

func (s *Store) GetInvoice(ctx context.Context, tenantID, invoiceID string) (models.Invoice, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE invoice_id = $1 AND tenant_id = $2`, invoiceID, tenantID)
	invoice, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Invoice{}, store.ErrInvoiceNotFound
		}
		return models.Invoice{}, err
	}
	lines, err := loadLines(ctx, s.pool, []string{invoice.InvoiceID})
	if err != nil {
		return models.Invoice{}, err
	}
	invoice.Lines = lines[invoice.InvoiceID]
	return invoice, nil
}

// TransitionInvoice issues or cancels an invoice under a row lock. Issuing
// draws the next number of the invoice date's financial year from
// invoice_sequences in the same transaction, so numbers stay gapless.
func (s *Store) TransitionInvoice(ctx context.Context, input store.InvoiceActionInput) (models.Invoice, error) {
	if !store.KnownAction(input.Action) {
		return models.Invoice{}, store.ErrInvalidState
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Invoice{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	row := tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE invoice_id = $1 AND tenant_id = $2 FOR UPDATE`, input.InvoiceID, input.TenantID)
	var invoice models.Invoice
	invoice, err = scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrInvoiceNotFound
		}
		return models.Invoice{}, err
	}
	if !store.ValidTransition(input.Action, invoice.Status) {
		err = fmt.Errorf("%w: cannot %s a %s invoice", store.ErrInvalidState, input.Action, invoice.Status)
		return models.Invoice{}, err
	}

	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = s.now()
	}
	occurredAt = occurredAt.UTC()

	switch input.Action {
	case store.ActionIssue:
		fy := gst.FinancialYear(invoice.Date)
		var seq int64
		err = tx.QueryRow(ctx, `
			INSERT INTO invoice_sequences (tenant_id, financial_year, last_value)
			VALUES ($1, $2, 1)
			ON CONFLICT (tenant_id, financial_year)
			DO UPDATE SET last_value = invoice_sequences.last_value + 1
			RETURNING last_value
		`, input.TenantID, fy).Scan(&seq)
		if err != nil {
			return models.Invoice{}, fmt.Errorf("next invoice number: %w", err)
		}
		row = tx.QueryRow(ctx, `
			UPDATE invoices SET status = $3, invoice_number = $4, issued_at = $5
			WHERE invoice_id = $1 AND tenant_id = $2
			RETURNING `+invoiceColumns,
			input.InvoiceID, input.TenantID, gst.InvoiceIssued, gst.InvoiceNumber(fy, seq), occurredAt)
	case store.ActionCancel:
		row = tx.QueryRow(ctx, `
			UPDATE invoices SET status = $3, cancelled_at = $4
			WHERE invoice_id = $1 AND tenant_id = $2
			RETURNING `+invoiceColumns,
			input.InvoiceID, input.TenantID, gst.InvoiceCancelled, occurredAt)
	}
	invoice, err = scanInvoice(row)
	if err != nil {
		return models.Invoice{}, err
	}

	var lines map[string][]gst.Line
	lines, err = loadLines(ctx, tx, []string{invoice.InvoiceID})
	if err != nil {
		return models.Invoice{}, err
	}
	invoice.Lines = lines[invoice.InvoiceID]

	eventType := "invoice.issued"
	if input.Action == store.ActionCancel {
		eventType = "invoice.cancelled"
	}
	if _, err = outbox.Insert(ctx, tx, input.TenantID, eventType, invoiceEvent(invoice)); err != nil {
		return models.Invoice{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return models.Invoice{}, err
	}
	return invoice, nil
}

// ReturnInvoices lists issued and cancelled invoices dated within period,
// lines included. Drafts never reach a return.
func (s *Store) ReturnInvoices(ctx context.Context, tenantID string, period store.PeriodFilter) ([]gst.Invoice, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE tenant_id = $1 AND status IN ('issued', 'cancelled')
			AND invoice_date >= $2 AND invoice_date < $3
		ORDER BY invoice_number ASC
	`, tenantID, period.From, period.To)
	if err != nil {
		return nil, err
	}
	stored := []models.Invoice{}
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		stored = append(stored, invoice)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(stored))
	for _, invoice := range stored {
		ids = append(ids, invoice.InvoiceID)
	}
	lines, err := loadLines(ctx, s.pool, ids)
	if err != nil {
		return nil, err
	}
	invoices := make([]gst.Invoice, 0, len(stored))
	for _, invoice := range stored {
		invoice.Lines = lines[invoice.InvoiceID]
		invoices = append(invoices, invoice.Invoice)
	}
	return invoices, nil
}

func (s *Store) CreatePurchase(ctx context.Context, input store.CreatePurchaseInput) (models.Purchase, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO purchase_bills (
			bill_id, tenant_id, supplier_name, supplier_gstin, bill_number, bill_date,
			taxable_value, cgst, sgst, igst, itc_eligible, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING `+purchaseColumns,
		uuid.NewString(), input.TenantID, input.SupplierName, input.SupplierGSTIN, input.BillNumber, input.BillDate,
		input.TaxableValue, input.CGST, input.SGST, input.IGST, input.ITCEligible, s.now().UTC())
	purchase, err := scanPurchase(row)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Purchase{}, store.ErrPurchaseExists
		}
		return models.Purchase{}, err
	}
	return purchase, nil
}

func (s *Store) ListPurchases(ctx context.Context, tenantID string, period store.PeriodFilter) ([]models.Purchase, error) {
	query := `SELECT ` + purchaseColumns + ` FROM purchase_bills WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	if !period.From.IsZero() {
		args = append(args, period.From)
		query += fmt.Sprintf(" AND bill_date >= $%d", len(args))
	}
	if !period.To.IsZero() {
		args = append(args, period.To)
		query += fmt.Sprintf(" AND bill_date < $%d", len(args))
	}
	query += " ORDER BY bill_date ASC, bill_number ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	purchases := []models.Purchase{}
	for rows.Next() {
		purchase, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, purchase)
	}
	return purchases, rows.Err()
}

func (s *Store) RecordArchive(ctx context.Context, archive models.Archive) (models.Archive, error) {
	if archive.ArchiveID == "" {
		archive.ArchiveID = uuid.NewString()
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO report_archives (
			archive_id, tenant_id, report, period, bucket, object_key, size_bytes, created_by, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING `+archiveColumns,
		archive.ArchiveID, archive.TenantID, archive.Report, archive.Period, archive.Bucket, archive.ObjectKey,
		archive.SizeBytes, nullIfEmpty(archive.CreatedBy), s.now().UTC())
	var stored models.Archive
	err := row.Scan(&stored.ArchiveID, &stored.TenantID, &stored.Report, &stored.Period, &stored.Bucket,
		&stored.ObjectKey, &stored.SizeBytes, &stored.CreatedBy, &stored.CreatedAt)
	return stored, err
}

func (s *Store) ListArchives(ctx context.Context, tenantID string) ([]models.Archive, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+archiveColumns+`
		FROM report_archives
		WHERE tenant_id = $1
		ORDER BY created_at DESC
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	archives := []models.Archive{}
	for rows.Next() {
		var archive models.Archive
		if err := rows.Scan(&archive.ArchiveID, &archive.TenantID, &archive.Report, &archive.Period, &archive.Bucket,
			&archive.ObjectKey, &archive.SizeBytes, &archive.CreatedBy, &archive.CreatedAt); err != nil {
			return nil, err
		}
		archives = append(archives, archive)
	}
	return archives, rows.Err()
}

func loadLines(ctx context.Context, q queryer, invoiceIDs []string) (map[string][]gst.Line, error) {
	lines := make(map[string][]gst.Line, len(invoiceIDs))
	if len(invoiceIDs) == 0 {
		return lines, nil
	}
	rows, err := q.Query(ctx, `
		SELECT invoice_id::text, description, hsn, quantity::float8, unit_price, discount, rate_bp,
			taxable_value, cgst, sgst, igst
		FROM invoice_lines
		WHERE invoice_id::text = ANY($1)
		ORDER BY invoice_id, line_no
	`, invoiceIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var invoiceID string
		var line gst.Line
		if err := rows.Scan(&invoiceID, &line.Description, &line.HSN, &line.Quantity, &line.UnitPrice, &line.Discount,
			&line.RateBP, &line.TaxableValue, &line.CGST, &line.SGST, &line.IGST); err != nil {
			return nil, err
		}
		lines[invoiceID] = append(lines[invoiceID], line)
	}
	return lines, rows.Err()
}

func invoiceEvent(invoice models.Invoice) map[string]interface{} {
	return map[string]interface{}{
		"invoice_id":     invoice.InvoiceID,
		"invoice_number": invoice.Number,
		"status":         invoice.Status,
		"invoice_date":   invoice.Date.Format("2006-01-02"),
		"customer_name":  invoice.CustomerName,
		"total":          invoice.Total,
	}
}

func scanInvoice(row pgx.Row) (models.Invoice, error) {
	var invoice models.Invoice
	var issuedAt, cancelledAt sql.NullTime
	err := row.Scan(
		&invoice.InvoiceID, &invoice.TenantID, &invoice.Number, &invoice.Status, &invoice.Date, &invoice.CustomerName,
		&invoice.CustomerGSTIN, &invoice.SupplierState, &invoice.PlaceOfSupply,
		&invoice.TaxableValue, &invoice.CGST, &invoice.SGST, &invoice.IGST, &invoice.Total,
		&invoice.CreatedAt, &issuedAt, &cancelledAt,
	)
	if err != nil {
		return models.Invoice{}, err
	}
	invoice.IssuedAt = nullTimePtr(issuedAt)
	invoice.CancelledAt = nullTimePtr(cancelledAt)
	invoice.Lines = []gst.Line{}
	return invoice, nil
}

func scanPurchase(row pgx.Row) (models.Purchase, error) {
	var purchase models.Purchase
	err := row.Scan(&purchase.BillID, &purchase.TenantID, &purchase.SupplierName, &purchase.SupplierGSTIN,
		&purchase.BillNumber, &purchase.BillDate, &purchase.TaxableValue, &purchase.CGST, &purchase.SGST,
		&purchase.IGST, &purchase.ITCEligible, &purchase.CreatedAt)
	return purchase, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

func nullTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	return &value.Time
}
