package httpapi

import (
	"bytes"
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"payaid/internal/authn"
	"payaid/internal/gst"
	"payaid/internal/platform/resilience"
	"payaid/internal/platform/web"
	"payaid/services/finance-service/internal/archive"
	"payaid/services/finance-service/internal/models"
	"payaid/services/finance-service/internal/store"

	"go.uber.org/zap"
)

const (
	dateLayout = "2006-01-02"
	maxLines   = 100
)

var hsnPattern = regexp.MustCompile(`^[0-9]{4,8}$`)

var (
	invoicesIssued = expvar.NewInt("finance_invoices_issued_total")
	reportsServed  = expvar.NewInt("finance_reports_served_total")
	archivesStored = expvar.NewInt("finance_archives_stored_total")
)

type Handler struct {
	store         store.Store
	archiver      *archive.Archiver
	logger        *zap.Logger
	now           func() time.Time
	b2clThreshold int64
}

type Options struct {
	// Archiver is nil when no archive bucket is configured.
	Archiver *archive.Archiver
	Logger   *zap.Logger
	Now      func() time.Time
	// B2CLThreshold in paise; zero uses the GSTR-1 default.
	B2CLThreshold int64
}

func NewHandler(store store.Store, options Options) *Handler {
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	if options.Now == nil {
		options.Now = time.Now
	}
	return &Handler{
		store:         store,
		archiver:      options.Archiver,
		logger:        options.Logger,
		now:           options.Now,
		b2clThreshold: options.B2CLThreshold,
	}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/finance/invoices", h.handleInvoices)
	mux.HandleFunc("/api/finance/invoices/", h.handleInvoice)
	mux.HandleFunc("/api/finance/purchases", h.handlePurchases)
	mux.HandleFunc("/api/finance/gstin/validate", h.handleValidateGSTIN)
	mux.HandleFunc("/api/finance/gst/gstr1", h.handleGSTR1)
	mux.HandleFunc("/api/finance/gst/gstr3b", h.handleGSTR3B)
	mux.HandleFunc("/api/finance/gst/export", h.handleExport)
	mux.HandleFunc("/api/finance/gst/archive", h.handleArchive)
	return mux
}

type lineRequest struct {
	Description string  `json:"description"`
	HSN         string  `json:"hsn"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   int64   `json:"unit_price"`
	Discount    int64   `json:"discount"`
	Rate        float64 `json:"rate"`
}

type invoiceRequest struct {
	InvoiceDate   string        `json:"invoice_date"`
	CustomerName  string        `json:"customer_name"`
	CustomerGSTIN string        `json:"customer_gstin"`
	PlaceOfSupply string        `json:"place_of_supply"`
	Lines         []lineRequest `json:"lines"`
}

// toInput validates the request and computes line taxes. Supplies are
// intra-state when the place of supply equals the supplier's state.
func (req invoiceRequest) toInput(tenantID, supplierState string, today time.Time) (store.CreateInvoiceInput, string) {
	input := store.CreateInvoiceInput{
		TenantID:      tenantID,
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerGSTIN: gst.NormalizeGSTIN(req.CustomerGSTIN),
		SupplierState: supplierState,
	}
	if input.CustomerName == "" {
		return input, "customer_name is required"
	}

	input.InvoiceDate = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	if raw := strings.TrimSpace(req.InvoiceDate); raw != "" {
		date, err := time.Parse(dateLayout, raw)
		if err != nil {
			return input, "invoice_date must be YYYY-MM-DD"
		}
		input.InvoiceDate = date
	}

	explicit := strings.TrimSpace(req.PlaceOfSupply)
	switch {
	case input.CustomerGSTIN != "":
		if err := gst.ValidateGSTIN(input.CustomerGSTIN); err != nil {
			return input, "customer_gstin: " + err.Error()
		}
		input.PlaceOfSupply = gst.StateCode(input.CustomerGSTIN)
		if explicit != "" && explicit != input.PlaceOfSupply {
			return input, "place_of_supply does not match customer_gstin"
		}
	case explicit != "":
		if !gst.ValidStateCode(explicit) {
			return input, "place_of_supply must be a valid two digit state code"
		}
		input.PlaceOfSupply = explicit
	default:
		return input, "place_of_supply or customer_gstin is required"
	}

	if len(req.Lines) == 0 || len(req.Lines) > maxLines {
		return input, fmt.Sprintf("invoice needs between 1 and %d lines", maxLines)
	}
	intraState := input.PlaceOfSupply == supplierState
	for i, lr := range req.Lines {
		description := strings.TrimSpace(lr.Description)
		hsn := strings.TrimSpace(lr.HSN)
		if description == "" {
			return input, fmt.Sprintf("line %d: description is required", i+1)
		}
		if !hsnPattern.MatchString(hsn) {
			return input, fmt.Sprintf("line %d: hsn must be 4 to 8 digits", i+1)
		}
		rate, err := gst.RateFromPercent(lr.Rate)
		if err != nil {
			return input, fmt.Sprintf("line %d: %v", i+1, err)
		}
		line, err := gst.ComputeLine(gst.Line{
			Description: description,
			HSN:         hsn,
			Quantity:    lr.Quantity,
			UnitPrice:   lr.UnitPrice,
			Discount:    lr.Discount,
			RateBP:      rate,
		}, intraState)
		if err != nil {
			return input, fmt.Sprintf("line %d: %v", i+1, err)
		}
		input.Lines = append(input.Lines, line)
	}
	totals, err := gst.Summarize(input.Lines)
	if err != nil {
		return input, err.Error()
	}
	input.Totals = totals
	return input, ""
}

func (h *Handler) handleInvoices(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := authn.TenantScope(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		if !authn.RequirePermission(w, r, authn.PermInvoiceRead) {
			return
		}
		filter := store.InvoiceFilter{Status: strings.TrimSpace(r.URL.Query().Get("status"))}
		if filter.Status != "" && filter.Status != gst.InvoiceDraft && filter.Status != gst.InvoiceIssued && filter.Status != gst.InvoiceCancelled {
			web.WriteError(w, r, http.StatusBadRequest, "invalid_request", "status must be draft, issued or cancelled")
			return
		}
		if period := strings.TrimSpace(r.URL.Query().Get("period")); period != "" {
			from, to, err := gst.ParsePeriod(period)
			if err != nil {
				web.WriteError(w, r, http.StatusBadRequest, "invalid_period", err.Error())
				return
			}
			filter.From, filter.To = from, to
		}
		invoices, err := h.store.ListInvoices(r.Context(), tenantID, filter)
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		web.WriteJSON(w, http.StatusOK, invoices)
	case http.MethodPost:
		if !authn.RequirePermission(w, r, authn.PermInvoiceWrite) {
			return
		}
		var req invoiceRequest
		if !web.DecodeRequest(w, r, &req) {
			return
		}
		supplierState, err := h.store.TenantStateCode(r.Context(), tenantID)
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		input, problem := req.toInput(tenantID, supplierState, h.now().UTC())
		if problem != "" {
			web.WriteError(w, r, http.StatusBadRequest, "invalid_request", problem)
			return
		}
		invoice, err := h.store.CreateInvoice(r.Context(), input)
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		web.WriteJSON(w, http.StatusCreated, invoice)
	default:
		web.MethodNotAllowed(w, r)
	}
}

func (h *Handler) handleInvoice(w http.ResponseWriter, r *http.Request) {
	parts := web.PathParts(r.URL.Path, "/api/finance/invoices/")
	if len(parts) == 0 || !web.IsValidUUID(parts[0]) {
		web.NotFound(w, r)
		return
	}
	tenantID, ok := authn.TenantScope(w, r)
	if !ok {
		return
	}
	invoiceID := parts[0]

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			web.MethodNotAllowed(w, r)
			return
		}
		if !authn.RequirePermission(w, r, authn.PermInvoiceRead) {
			return
		}
		invoice, err := h.store.GetInvoice(r.Context(), tenantID, invoiceID)
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		web.WriteJSON(w, http.StatusOK, invoice)
	case len(parts) == 3 && parts[1] == "actions":
		h.handleInvoiceAction(w, r, tenantID, invoiceID, parts[2])
	default:
		web.NotFound(w, r)
	}
}

func (h *Handler) handleInvoiceAction(w http.ResponseWriter, r *http.Request, tenantID, invoiceID, action string) {
	if r.Method != http.MethodPost {
		web.MethodNotAllowed(w, r)
		return
	}
	if !store.KnownAction(action) {
		web.WriteError(w, r, http.StatusNotFound, "unknown_action", "unknown invoice action "+strconv.Quote(action))
		return
	}
	if !authn.RequirePermission(w, r, authn.PermInvoiceWrite) {
		return
	}
	invoice, err := h.store.TransitionInvoice(r.Context(), store.InvoiceActionInput{
		TenantID:   tenantID,
		InvoiceID:  invoiceID,
		Action:     action,
		OccurredAt: h.now().UTC(),
	})
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	if action == store.ActionIssue {
		invoicesIssued.Add(1)
	}
	web.WriteJSON(w, http.StatusOK, invoice)
}

type purchaseRequest struct {
	SupplierName  string `json:"supplier_name"`
	SupplierGSTIN string `json:"supplier_gstin"`
	BillNumber    string `json:"bill_number"`
	BillDate      string `json:"bill_date"`
	TaxableValue  int64  `json:"taxable_value"`
	CGST          int64  `json:"cgst"`
	SGST          int64  `json:"sgst"`
	IGST          int64  `json:"igst"`
	ITCEligible   *bool  `json:"itc_eligible"`
}

func (req purchaseRequest) toInput(tenantID string) (store.CreatePurchaseInput, string) {
	input := store.CreatePurchaseInput{TenantID: tenantID, Purchase: gst.Purchase{
		SupplierName:  strings.TrimSpace(req.SupplierName),
		SupplierGSTIN: gst.NormalizeGSTIN(req.SupplierGSTIN),
		BillNumber:    strings.TrimSpace(req.BillNumber),
		TaxableValue:  req.TaxableValue,
		CGST:          req.CGST,
		SGST:          req.SGST,
		IGST:          req.IGST,
		ITCEligible:   true,
	}}
	if req.ITCEligible != nil {
		input.ITCEligible = *req.ITCEligible
	}
	if input.SupplierName == "" || input.BillNumber == "" {
		return input, "supplier_name and bill_number are required"
	}
	if err := gst.ValidateGSTIN(input.SupplierGSTIN); err != nil {
		return input, "supplier_gstin: " + err.Error()
	}
	date, err := time.Parse(dateLayout, strings.TrimSpace(req.BillDate))
	if err != nil {
		return input, "bill_date must be YYYY-MM-DD"
	}
	input.BillDate = date
	if input.TaxableValue < 0 || input.CGST < 0 || input.SGST < 0 || input.IGST < 0 {
		return input, "amounts must not be negative"
	}
	if input.IGST > 0 && (input.CGST > 0 || input.SGST > 0) {
		return input, "a bill carries either igst or cgst and sgst"
	}
	return input, ""
}

func (h *Handler) handlePurchases(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := authn.TenantScope(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		if !authn.RequirePermission(w, r, authn.PermInvoiceRead) {
			return
		}
		var period store.PeriodFilter
		if raw := strings.TrimSpace(r.URL.Query().Get("period")); raw != "" {
			from, to, err := gst.ParsePeriod(raw)
			if err != nil {
				web.WriteError(w, r, http.StatusBadRequest, "invalid_period", err.Error())
				return
			}
			period = store.PeriodFilter{From: from, To: to}
		}
		purchases, err := h.store.ListPurchases(r.Context(), tenantID, period)
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		web.WriteJSON(w, http.StatusOK, purchases)
	case http.MethodPost:
		if !authn.RequirePermission(w, r, authn.PermInvoiceWrite) {
			return
		}
		var req purchaseRequest
		if !web.DecodeRequest(w, r, &req) {
			return
		}
		input, problem := req.toInput(tenantID)
		if problem != "" {
			web.WriteError(w, r, http.StatusBadRequest, "invalid_request", problem)
			return
		}
		purchase, err := h.store.CreatePurchase(r.Context(), input)
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		web.WriteJSON(w, http.StatusCreated, purchase)
	default:
		web.MethodNotAllowed(w, r)
	}
}

type gstinResponse struct {
	GSTIN     string `json:"gstin"`
	Valid     bool   `json:"valid"`
	StateCode string `json:"state_code,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

func (h *Handler) handleValidateGSTIN(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		web.MethodNotAllowed(w, r)
		return
	}
	gstin := gst.NormalizeGSTIN(r.URL.Query().Get("gstin"))
	if gstin == "" {
		web.WriteError(w, r, http.StatusBadRequest, "invalid_request", "gstin is required")
		return
	}
	resp := gstinResponse{GSTIN: gstin, Valid: true}
	if err := gst.ValidateGSTIN(gstin); err != nil {
		resp.Valid = false
		resp.Reason = err.Error()
	} else {
		resp.StateCode = gst.StateCode(gstin)
	}
	web.WriteJSON(w, http.StatusOK, resp)
}

// periodScope resolves the tenant and ?period= for the return endpoints.
func periodScope(w http.ResponseWriter, r *http.Request, perm authn.Permission) (string, string, store.PeriodFilter, bool) {
	if r.Method != http.MethodGet {
		web.MethodNotAllowed(w, r)
		return "", "", store.PeriodFilter{}, false
	}
	tenantID, ok := authn.TenantScope(w, r)
	if !ok {
		return "", "", store.PeriodFilter{}, false
	}
	if !authn.RequirePermission(w, r, perm) {
		return "", "", store.PeriodFilter{}, false
	}
	period := strings.TrimSpace(r.URL.Query().Get("period"))
	from, to, err := gst.ParsePeriod(period)
	if err != nil {
		web.WriteError(w, r, http.StatusBadRequest, "invalid_period", err.Error())
		return "", "", store.PeriodFilter{}, false
	}
	return tenantID, period, store.PeriodFilter{From: from, To: to}, true
}

func (h *Handler) handleGSTR1(w http.ResponseWriter, r *http.Request) {
	tenantID, period, filter, ok := periodScope(w, r, authn.PermGSTRead)
	if !ok {
		return
	}
	report, err := h.buildGSTR1(r, tenantID, period, filter)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	reportsServed.Add(1)
	web.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) handleGSTR3B(w http.ResponseWriter, r *http.Request) {
	tenantID, period, filter, ok := periodScope(w, r, authn.PermGSTRead)
	if !ok {
		return
	}
	invoices, err := h.store.ReturnInvoices(r.Context(), tenantID, filter)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	stored, err := h.store.ListPurchases(r.Context(), tenantID, filter)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	purchases := make([]gst.Purchase, 0, len(stored))
	for _, p := range stored {
		purchases = append(purchases, p.Purchase)
	}
	reportsServed.Add(1)
	web.WriteJSON(w, http.StatusOK, gst.BuildGSTR3B(period, invoices, purchases))
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	tenantID, period, filter, ok := periodScope(w, r, authn.PermGSTRead)
	if !ok {
		return
	}
	report := strings.TrimSpace(r.URL.Query().Get("report"))
	if !knownReport(report) {
		web.WriteError(w, r, http.StatusBadRequest, "invalid_report", "report must be gstr1 or hsn")
		return
	}
	body, err := h.renderCSV(r, tenantID, report, period, filter)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	reportsServed.Add(1)
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report+"-"+period+".csv"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

type archiveRequest struct {
	Report string `json:"report"`
	Period string `json:"period"`
}

func (h *Handler) handleArchive(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := authn.TenantScope(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		if !authn.RequirePermission(w, r, authn.PermGSTRead) {
			return
		}
		archives, err := h.store.ListArchives(r.Context(), tenantID)
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		web.WriteJSON(w, http.StatusOK, archives)
	case http.MethodPost:
		if !authn.RequirePermission(w, r, authn.PermGSTFile) {
			return
		}
		if h.archiver == nil {
			web.WriteError(w, r, http.StatusNotImplemented, "archive_disabled", "report archiving is not configured")
			return
		}
		var req archiveRequest
		if !web.DecodeRequest(w, r, &req) {
			return
		}
		report := strings.TrimSpace(req.Report)
		period := strings.TrimSpace(req.Period)
		if !knownReport(report) {
			web.WriteError(w, r, http.StatusBadRequest, "invalid_report", "report must be gstr1 or hsn")
			return
		}
		from, to, err := gst.ParsePeriod(period)
		if err != nil {
			web.WriteError(w, r, http.StatusBadRequest, "invalid_period", err.Error())
			return
		}
		body, err := h.renderCSV(r, tenantID, report, period, store.PeriodFilter{From: from, To: to})
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		key := archive.ObjectKey(tenantID, period, report)
		if err := h.archiver.Put(r.Context(), key, "text/csv", body); err != nil {
			h.writeArchiveError(w, r, err)
			return
		}
		stored, err := h.store.RecordArchive(r.Context(), models.Archive{
			TenantID:  tenantID,
			Report:    report,
			Period:    period,
			Bucket:    h.archiver.Bucket(),
			ObjectKey: key,
			SizeBytes: int64(len(body)),
			CreatedBy: actorID(r),
		})
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		archivesStored.Add(1)
		web.WriteJSON(w, http.StatusCreated, stored)
	default:
		web.MethodNotAllowed(w, r)
	}
}

func (h *Handler) buildGSTR1(r *http.Request, tenantID, period string, filter store.PeriodFilter) (gst.GSTR1, error) {
	invoices, err := h.store.ReturnInvoices(r.Context(), tenantID, filter)
	if err != nil {
		return gst.GSTR1{}, err
	}
	return gst.BuildGSTR1(period, invoices, gst.GSTR1Options{B2CLThreshold: h.b2clThreshold}), nil
}

func (h *Handler) renderCSV(r *http.Request, tenantID, report, period string, filter store.PeriodFilter) ([]byte, error) {
	gstr1, err := h.buildGSTR1(r, tenantID, period, filter)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := gst.WriteCSV(&buf, report, gstr1); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func knownReport(report string) bool {
	return report == gst.ReportGSTR1 || report == gst.ReportHSN
}

func (h *Handler) writeArchiveError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, resilience.ErrOpen):
		web.WriteError(w, r, http.StatusServiceUnavailable, "archive_unavailable", "report archive is temporarily unavailable")
	case errors.Is(err, archive.ErrDisabled):
		web.WriteError(w, r, http.StatusNotImplemented, "archive_disabled", "report archiving is not configured")
	default:
		h.logger.Error("archive upload failed", zap.Error(err), zap.String("request_id", web.RequestID(r)))
		web.WriteError(w, r, http.StatusBadGateway, "archive_failed", "report archive upload failed")
	}
}

func (h *Handler) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := mapError(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("finance store error", zap.Error(err), zap.String("path", r.URL.Path), zap.String("request_id", web.RequestID(r)))
	}
	web.WriteError(w, r, status, code, msg)
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrInvoiceNotFound):
		return http.StatusNotFound, "invoice_not_found", "invoice not found"
	case errors.Is(err, store.ErrInvalidState):
		return http.StatusConflict, "invalid_state", "invoice state does not allow this action"
	case errors.Is(err, store.ErrPurchaseExists):
		return http.StatusConflict, "purchase_exists", "purchase bill already recorded"
	case errors.Is(err, store.ErrTenantNotFound):
		return http.StatusNotFound, "tenant_not_found", "tenant not found"
	case errors.Is(err, store.ErrTenantStateMissing):
		return http.StatusUnprocessableEntity, "tenant_state_missing", "register the tenant's state before invoicing"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}
