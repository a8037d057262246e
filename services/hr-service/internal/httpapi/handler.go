package httpapi

import (
	"errors"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"payaid/internal/authn"
	"payaid/internal/platform/web"
	"payaid/internal/scoring"
	"payaid/internal/statutory"
	"payaid/services/hr-service/internal/models"
	"payaid/services/hr-service/internal/store"

	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

var (
	employeeCodePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)
	statePattern        = regexp.MustCompile(`^[A-Z]{2}$`)
)

type Handler struct {
	store  store.Store
	rules  *statutory.Rules
	logger *zap.Logger
	now    func() time.Time
}

type Options struct {
	Rules  *statutory.Rules
	Logger *zap.Logger
	Now    func() time.Time
}

func NewHandler(store store.Store, options Options) *Handler {
	if options.Rules == nil {
		options.Rules = statutory.Default()
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	if options.Now == nil {
		options.Now = time.Now
	}
	return &Handler{
		store:  store,
		rules:  options.Rules,
		logger: options.Logger,
		now:    options.Now,
	}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/hr/employees", h.handleEmployees)
	mux.HandleFunc("/api/hr/employees/", h.handleEmployee)
	mux.HandleFunc("/api/hr/flight-risk", h.handleFlightRiskList)
	mux.HandleFunc("/api/hr/payroll/preview", h.handlePreview)
	mux.HandleFunc("/api/hr/payroll/cycles", h.handleCycles)
	mux.HandleFunc("/api/hr/payroll/cycles/", h.handleCycle)
	return mux
}

type employeeRequest struct {
	Code               string  `json:"code"`
	Name               string  `json:"name"`
	Email              string  `json:"email"`
	State              string  `json:"state"`
	DateOfJoining      string  `json:"date_of_joining"`
	Basic              int64   `json:"basic"`
	HRA                int64   `json:"hra"`
	Special            int64   `json:"special"`
	Other              int64   `json:"other"`
	TaxRegime          string  `json:"tax_regime"`
	Declared80C        int64   `json:"declared_80c"`
	Declared80D        int64   `json:"declared_80d"`
	PFOptOut           bool    `json:"pf_opt_out"`
	PFUncapped         bool    `json:"pf_uncapped"`
	Status             string  `json:"status"`
	LastRaiseAt        *string `json:"last_raise_at"`
	PerformanceRating  *int    `json:"performance_rating"`
	LeaveDaysYTD       int     `json:"leave_days_ytd"`
	OvertimeHoursMonth int     `json:"overtime_hours_month"`
	EngagementScore    *int    `json:"engagement_score"`
}

func (req employeeRequest) toInput(tenantID string) (store.EmployeeInput, string) {
	input := store.EmployeeInput{
		TenantID:           tenantID,
		Code:               strings.TrimSpace(req.Code),
		Name:               strings.TrimSpace(req.Name),
		Email:              strings.TrimSpace(req.Email),
		State:              strings.ToUpper(strings.TrimSpace(req.State)),
		Basic:              req.Basic,
		HRA:                req.HRA,
		Special:            req.Special,
		Other:              req.Other,
		TaxRegime:          strings.ToLower(strings.TrimSpace(req.TaxRegime)),
		Declared80C:        req.Declared80C,
		Declared80D:        req.Declared80D,
		PFOptOut:           req.PFOptOut,
		PFUncapped:         req.PFUncapped,
		Status:             strings.ToLower(strings.TrimSpace(req.Status)),
		PerformanceRating:  req.PerformanceRating,
		LeaveDaysYTD:       req.LeaveDaysYTD,
		OvertimeHoursMonth: req.OvertimeHoursMonth,
		EngagementScore:    req.EngagementScore,
	}
	if input.Code == "" || input.Name == "" {
		return input, "code and name are required"
	}
	if !employeeCodePattern.MatchString(input.Code) {
		return input, "code must be 1-32 letters, digits, '-' or '_'"
	}
	if input.Email != "" && !strings.Contains(input.Email, "@") {
		return input, "email is invalid"
	}
	if !statePattern.MatchString(input.State) {
		return input, "state must be a two letter state code"
	}
	joined, err := time.Parse(dateLayout, strings.TrimSpace(req.DateOfJoining))
	if err != nil {
		return input, "date_of_joining must be YYYY-MM-DD"
	}
	input.DateOfJoining = joined
	if input.Basic < 0 || input.HRA < 0 || input.Special < 0 || input.Other < 0 || input.Declared80C < 0 || input.Declared80D < 0 {
		return input, "amounts must not be negative"
	}
	if input.TaxRegime == "" {
		input.TaxRegime = statutory.RegimeNew
	}
	if input.TaxRegime != statutory.RegimeNew && input.TaxRegime != statutory.RegimeOld {
		return input, "tax_regime must be new or old"
	}
	if input.Status == "" {
		input.Status = models.EmployeeActive
	}
	if input.Status != models.EmployeeActive && input.Status != models.EmployeeExited {
		return input, "status must be active or exited"
	}
	if req.LastRaiseAt != nil && strings.TrimSpace(*req.LastRaiseAt) != "" {
		raised, err := time.Parse(dateLayout, strings.TrimSpace(*req.LastRaiseAt))
		if err != nil {
			return input, "last_raise_at must be YYYY-MM-DD"
		}
		input.LastRaiseAt = &raised
	}
	if input.PerformanceRating != nil && (*input.PerformanceRating < 1 || *input.PerformanceRating > 5) {
		return input, "performance_rating must be between 1 and 5"
	}
	if input.EngagementScore != nil && (*input.EngagementScore < 0 || *input.EngagementScore > 100) {
		return input, "engagement_score must be between 0 and 100"
	}
	if input.LeaveDaysYTD < 0 || input.OvertimeHoursMonth < 0 {
		return input, "leave_days_ytd and overtime_hours_month must not be negative"
	}
	return input, ""
}

func (h *Handler) handleEmployees(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := authn.TenantScope(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		if !authn.RequirePermission(w, r, authn.PermEmployeeRead) {
			return
		}
		status := strings.TrimSpace(r.URL.Query().Get("status"))
		employees, err := h.store.ListEmployees(r.Context(), tenantID, store.EmployeeFilter{Status: status})
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		web.WriteJSON(w, http.StatusOK, employees)
	case http.MethodPost:
		if !authn.RequirePermission(w, r, authn.PermEmployeeWrite) {
			return
		}
		var req employeeRequest
		if !web.DecodeRequest(w, r, &req) {
			return
		}
		input, problem := req.toInput(tenantID)
		if problem != "" {
			web.WriteError(w, r, http.StatusBadRequest, "invalid_request", problem)
			return
		}
		employee, err := h.store.CreateEmployee(r.Context(), input)
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		web.WriteJSON(w, http.StatusCreated, employee)
	default:
		web.MethodNotAllowed(w, r)
	}
}

func (h *Handler) handleEmployee(w http.ResponseWriter, r *http.Request) {
	parts := web.PathParts(r.URL.Path, "/api/hr/employees/")
	if len(parts) == 0 || len(parts) > 2 || !web.IsValidUUID(parts[0]) {
		web.NotFound(w, r)
		return
	}
	tenantID, ok := authn.TenantScope(w, r)
	if !ok {
		return
	}
	employeeID := parts[0]

	if len(parts) == 2 {
		if parts[1] != "flight-risk" {
			web.NotFound(w, r)
			return
		}
		if r.Method != http.MethodGet {
			web.MethodNotAllowed(w, r)
			return
		}
		if !authn.RequirePermission(w, r, authn.PermEmployeeRead) {
			return
		}
		employee, err := h.store.GetEmployee(r.Context(), tenantID, employeeID)
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		web.WriteJSON(w, http.StatusOK, h.flightRisk(employee))
		return
	}

	switch r.Method {
	case http.MethodGet:
		if !authn.RequirePermission(w, r, authn.PermEmployeeRead) {
			return
		}
		employee, err := h.store.GetEmployee(r.Context(), tenantID, employeeID)
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		web.WriteJSON(w, http.StatusOK, employee)
	case http.MethodPut:
		if !authn.RequirePermission(w, r, authn.PermEmployeeWrite) {
			return
		}
		var req employeeRequest
		if !web.DecodeRequest(w, r, &req) {
			return
		}
		input, problem := req.toInput(tenantID)
		if problem != "" {
			web.WriteError(w, r, http.StatusBadRequest, "invalid_request", problem)
			return
		}
		employee, err := h.store.UpdateEmployee(r.Context(), employeeID, input)
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		web.WriteJSON(w, http.StatusOK, employee)
	default:
		web.MethodNotAllowed(w, r)
	}
}

func (h *Handler) handleFlightRiskList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		web.MethodNotAllowed(w, r)
		return
	}
	tenantID, ok := authn.TenantScope(w, r)
	if !ok {
		return
	}
	if !authn.RequirePermission(w, r, authn.PermEmployeeRead) {
		return
	}
	band := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("band")))
	switch band {
	case "", scoring.BandLow, scoring.BandMedium, scoring.BandHigh:
	default:
		web.WriteError(w, r, http.StatusBadRequest, "invalid_request", "band must be low, medium or high")
		return
	}

	employees, err := h.store.ListEmployees(r.Context(), tenantID, store.EmployeeFilter{Status: models.EmployeeActive})
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	results := []models.FlightRisk{}
	for _, employee := range employees {
		risk := h.flightRisk(employee)
		if band != "" && risk.Band != band {
			continue
		}
		results = append(results, risk)
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	web.WriteJSON(w, http.StatusOK, results)
}

func (h *Handler) flightRisk(employee models.Employee) models.FlightRisk {
	return models.FlightRisk{
		EmployeeID: employee.EmployeeID,
		Code:       employee.Code,
		Name:       employee.Name,
		Result:     scoring.FlightRisk(employee.RiskInputs(), h.now()),
	}
}

type previewRequest struct {
	statutory.SalaryProfile
	Month int `json:"month"`
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		web.MethodNotAllowed(w, r)
		return
	}
	if !authn.RequirePermission(w, r, authn.PermPayrollRead) {
		return
	}
	var req previewRequest
	if !web.DecodeRequest(w, r, &req) {
		return
	}
	month := time.Month(req.Month)
	if req.Month == 0 {
		month = h.now().Month()
	}
	if month < time.January || month > time.December {
		web.WriteError(w, r, http.StatusBadRequest, "invalid_request", "month must be between 1 and 12")
		return
	}
	req.State = strings.ToUpper(strings.TrimSpace(req.State))
	slip, err := statutory.ComputePayslip(h.rules, req.SalaryProfile, month)
	if err != nil {
		web.WriteError(w, r, http.StatusUnprocessableEntity, "invalid_salary", err.Error())
		return
	}
	web.WriteJSON(w, http.StatusOK, slip)
}

type createCycleRequest struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

func (h *Handler) handleCycles(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := authn.TenantScope(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		if !authn.RequirePermission(w, r, authn.PermPayrollRead) {
			return
		}
		cycles, err := h.store.ListCycles(r.Context(), tenantID)
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		web.WriteJSON(w, http.StatusOK, cycles)
	case http.MethodPost:
		if !authn.RequirePermission(w, r, authn.PermPayrollWrite) {
			return
		}
		var req createCycleRequest
		if !web.DecodeRequest(w, r, &req) {
			return
		}
		if req.Month < 1 || req.Month > 12 {
			web.WriteError(w, r, http.StatusBadRequest, "invalid_request", "month must be between 1 and 12")
			return
		}
		if req.Year < 2000 || req.Year > 2100 {
			web.WriteError(w, r, http.StatusBadRequest, "invalid_request", "year must be between 2000 and 2100")
			return
		}
		cycle, err := h.store.CreateCycle(r.Context(), store.CreateCycleInput{
			TenantID:  tenantID,
			Year:      req.Year,
			Month:     req.Month,
			CreatedBy: actorID(r),
		})
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		web.WriteJSON(w, http.StatusCreated, cycle)
	default:
		web.MethodNotAllowed(w, r)
	}
}

type eventsResponse struct {
	CycleID  string               `json:"cycle_id"`
	Valid    bool                 `json:"valid"`
	BrokenAt int                  `json:"broken_at,omitempty"`
	Events   []store.PayrollEvent `json:"events"`
}

func (h *Handler) handleCycle(w http.ResponseWriter, r *http.Request) {
	parts := web.PathParts(r.URL.Path, "/api/hr/payroll/cycles/")
	if len(parts) == 0 || !web.IsValidUUID(parts[0]) {
		web.NotFound(w, r)
		return
	}
	tenantID, ok := authn.TenantScope(w, r)
	if !ok {
		return
	}
	cycleID := parts[0]

	switch {
	case len(parts) == 1:
		if r.Method != http.MethodGet {
			web.MethodNotAllowed(w, r)
			return
		}
		if !authn.RequirePermission(w, r, authn.PermPayrollRead) {
			return
		}
		cycle, err := h.store.GetCycle(r.Context(), tenantID, cycleID)
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		web.WriteJSON(w, http.StatusOK, cycle)
	case len(parts) == 2 && parts[1] == "payslips":
		if r.Method != http.MethodGet {
			web.MethodNotAllowed(w, r)
			return
		}
		if !authn.RequirePermission(w, r, authn.PermPayrollRead) {
			return
		}
		payslips, err := h.store.ListPayslips(r.Context(), tenantID, cycleID)
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		web.WriteJSON(w, http.StatusOK, payslips)
	case len(parts) == 2 && parts[1] == "events":
		if r.Method != http.MethodGet {
			web.MethodNotAllowed(w, r)
			return
		}
		if !authn.RequirePermission(w, r, authn.PermPayrollRead) {
			return
		}
		events, err := h.store.ListPayrollEvents(r.Context(), tenantID, cycleID)
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		valid, brokenAt := store.VerifyChain(events)
		if !valid {
			h.logger.Warn("payroll event chain broken",
				zap.String("tenant", tenantID),
				zap.String("cycle_id", cycleID),
				zap.Int("broken_at", brokenAt))
		}
		web.WriteJSON(w, http.StatusOK, eventsResponse{CycleID: cycleID, Valid: valid, BrokenAt: brokenAt, Events: events})
	case len(parts) == 3 && parts[1] == "actions":
		h.handleCycleAction(w, r, tenantID, cycleID, parts[2])
	default:
		web.NotFound(w, r)
	}
}

func (h *Handler) handleCycleAction(w http.ResponseWriter, r *http.Request, tenantID, cycleID, action string) {
	if r.Method != http.MethodPost {
		web.MethodNotAllowed(w, r)
		return
	}
	if _, ok := store.TargetStatus(action); !ok {
		web.WriteError(w, r, http.StatusNotFound, "unknown_action", "unknown payroll action "+strconv.Quote(action))
		return
	}
	perm := authn.PermPayrollWrite
	if action == store.ActionApprove {
		perm = authn.PermPayrollApprove
	}
	if !authn.RequirePermission(w, r, perm) {
		return
	}
	cycle, err := h.store.TransitionCycle(r.Context(), store.CycleActionInput{
		TenantID:   tenantID,
		CycleID:    cycleID,
		Action:     action,
		ActorID:    actorID(r),
		OccurredAt: h.now().UTC(),
	})
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, cycle)
}

func (h *Handler) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := mapError(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("hr store error", zap.Error(err), zap.String("path", r.URL.Path), zap.String("request_id", web.RequestID(r)))
	}
	web.WriteError(w, r, status, code, msg)
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrEmployeeNotFound):
		return http.StatusNotFound, "employee_not_found", "employee not found"
	case errors.Is(err, store.ErrEmployeeExists):
		return http.StatusConflict, "employee_exists", "employee code already exists"
	case errors.Is(err, store.ErrCycleNotFound):
		return http.StatusNotFound, "cycle_not_found", "payroll cycle not found"
	case errors.Is(err, store.ErrCycleExists):
		return http.StatusConflict, "cycle_exists", "a payroll cycle already exists for this month"
	case errors.Is(err, store.ErrInvalidState):
		return http.StatusConflict, "invalid_state", "payroll cycle state does not allow this action"
	case errors.Is(err, store.ErrPayslipFailed):
		return http.StatusUnprocessableEntity, "payslip_failed", err.Error()
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}
