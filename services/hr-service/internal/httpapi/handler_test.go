package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"payaid/internal/authn"
	"payaid/internal/statutory"
	"payaid/services/hr-service/internal/models"
	"payaid/services/hr-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	tenantID   = "6f1c1f8e-2d43-4d35-9d59-8d6b0b1f4a11"
	otherID    = "0b8a5d0e-9c1f-4f7e-8a55-3f4f6d2c9e22"
	employeeID = "a3f2c1d4-5b6e-4f70-8a9b-0c1d2e3f4a55"
	cycleID    = "c1d2e3f4-a5b6-4c7d-8e9f-0a1b2c3d4e66"
)

type fakeStore struct {
	listEmployeesFn  func(ctx context.Context, tenantID string, filter store.EmployeeFilter) ([]models.Employee, error)
	getEmployeeFn    func(ctx context.Context, tenantID, employeeID string) (models.Employee, error)
	createEmployeeFn func(ctx context.Context, input store.EmployeeInput) (models.Employee, error)
	updateEmployeeFn func(ctx context.Context, employeeID string, input store.EmployeeInput) (models.Employee, error)
	listCyclesFn     func(ctx context.Context, tenantID string) ([]models.PayrollCycle, error)
	getCycleFn       func(ctx context.Context, tenantID, cycleID string) (models.PayrollCycle, error)
	createCycleFn    func(ctx context.Context, input store.CreateCycleInput) (models.PayrollCycle, error)
	transitionFn     func(ctx context.Context, input store.CycleActionInput) (models.PayrollCycle, error)
	payslipsFn       func(ctx context.Context, tenantID, cycleID string) ([]models.Payslip, error)
	eventsFn         func(ctx context.Context, tenantID, cycleID string) ([]store.PayrollEvent, error)
}

func (f fakeStore) ListEmployees(ctx context.Context, tenantID string, filter store.EmployeeFilter) ([]models.Employee, error) {
	if f.listEmployeesFn == nil {
		return nil, nil
	}
	return f.listEmployeesFn(ctx, tenantID, filter)
}

func (f fakeStore) GetEmployee(ctx context.Context, tenantID, employeeID string) (models.Employee, error) {
	if f.getEmployeeFn == nil {
		return models.Employee{}, store.ErrEmployeeNotFound
	}
	return f.getEmployeeFn(ctx, tenantID, employeeID)
}

func (f fakeStore) CreateEmployee(ctx context.Context, input store.EmployeeInput) (models.Employee, error) {
	if f.createEmployeeFn == nil {
		return models.Employee{}, nil
	}
	return f.createEmployeeFn(ctx, input)
}

func (f fakeStore) UpdateEmployee(ctx context.Context, employeeID string, input store.EmployeeInput) (models.Employee, error) {
	if f.updateEmployeeFn == nil {
		return models.Employee{}, nil
	}
	return f.updateEmployeeFn(ctx, employeeID, input)
}

func (f fakeStore) ListCycles(ctx context.Context, tenantID string) ([]models.PayrollCycle, error) {
	if f.listCyclesFn == nil {
		return nil, nil
	}
	return f.listCyclesFn(ctx, tenantID)
}

func (f fakeStore) GetCycle(ctx context.Context, tenantID, cycleID string) (models.PayrollCycle, error) {
	if f.getCycleFn == nil {
		return models.PayrollCycle{}, store.ErrCycleNotFound
	}
	return f.getCycleFn(ctx, tenantID, cycleID)
}

func (f fakeStore) CreateCycle(ctx context.Context, input store.CreateCycleInput) (models.PayrollCycle, error) {
	if f.createCycleFn == nil {
		return models.PayrollCycle{}, nil
	}
	return f.createCycleFn(ctx, input)
}

func (f fakeStore) TransitionCycle(ctx context.Context, input store.CycleActionInput) (models.PayrollCycle, error) {
	if f.transitionFn == nil {
		return models.PayrollCycle{}, nil
	}
	return f.transitionFn(ctx, input)
}

func (f fakeStore) ListPayslips(ctx context.Context, tenantID, cycleID string) ([]models.Payslip, error) {
	if f.payslipsFn == nil {
		return nil, nil
	}
	return f.payslipsFn(ctx, tenantID, cycleID)
}

func (f fakeStore) ListPayrollEvents(ctx context.Context, tenantID, cycleID string) ([]store.PayrollEvent, error) {
	if f.eventsFn == nil {
		return nil, nil
	}
	return f.eventsFn(ctx, tenantID, cycleID)
}

var fixedNow = time.Date(2025, 5, 15, 9, 0, 0, 0, time.UTC)

func newTestHandler(st store.Store) http.Handler {
	return NewHandler(st, Options{Now: func() time.Time { return fixedNow }}).Routes()
}

func doRequest(t *testing.T, h http.Handler, p authn.Principal, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req = req.WithContext(authn.WithPrincipal(req.Context(), p))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func principal(role string) authn.Principal {
	return authn.Principal{UserID: "u-1", TenantID: tenantID, Role: role}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error.Code
}

func validEmployee() map[string]interface{} {
	return map[string]interface{}{
		"code":            "E001",
		"name":            "Asha Rao",
		"email":           "asha@example.com",
		"state":           "mh",
		"date_of_joining": "2023-04-01",
		"basic":           5000000,
		"hra":             2500000,
	}
}

func TestCreateEmployeeDefaults(t *testing.T) {
	var got store.EmployeeInput
	h := newTestHandler(fakeStore{
		createEmployeeFn: func(ctx context.Context, input store.EmployeeInput) (models.Employee, error) {
			got = input
			return models.Employee{EmployeeID: employeeID, Code: input.Code}, nil
		},
	})

	rec := doRequest(t, h, principal(authn.RoleHR), http.MethodPost, "/api/hr/employees", validEmployee())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, tenantID, got.TenantID)
	assert.Equal(t, "MH", got.State)
	assert.Equal(t, statutory.RegimeNew, got.TaxRegime)
	assert.Equal(t, models.EmployeeActive, got.Status)
	assert.Equal(t, time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC), got.DateOfJoining)
}

func TestCreateEmployeeValidation(t *testing.T) {
	cases := map[string]func(body map[string]interface{}){
		"missing name":      func(b map[string]interface{}) { delete(b, "name") },
		"bad state":         func(b map[string]interface{}) { b["state"] = "Maharashtra" },
		"bad date":          func(b map[string]interface{}) { b["date_of_joining"] = "01/04/2023" },
		"negative basic":    func(b map[string]interface{}) { b["basic"] = -1 },
		"bad regime":        func(b map[string]interface{}) { b["tax_regime"] = "flat" },
		"rating range":      func(b map[string]interface{}) { b["performance_rating"] = 6 },
		"engagement range":  func(b map[string]interface{}) { b["engagement_score"] = 101 },
		"bad status":        func(b map[string]interface{}) { b["status"] = "retired" },
		"bad raise date":    func(b map[string]interface{}) { b["last_raise_at"] = "soon" },
		"bad employee code": func(b map[string]interface{}) { b["code"] = "E 001" },
	}
	h := newTestHandler(fakeStore{
		createEmployeeFn: func(ctx context.Context, input store.EmployeeInput) (models.Employee, error) {
			t.Fatalf("store should not be called")
			return models.Employee{}, nil
		},
	})
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			body := validEmployee()
			mutate(body)
			rec := doRequest(t, h, principal(authn.RoleHR), http.MethodPost, "/api/hr/employees", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "invalid_request", errorCode(t, rec))
		})
	}
}

func TestEmployeePermissions(t *testing.T) {
	h := newTestHandler(fakeStore{})
	rec := doRequest(t, h, principal(authn.RoleMember), http.MethodPost, "/api/hr/employees", validEmployee())
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, h, principal(authn.RoleAccountant), http.MethodGet, "/api/hr/employees", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, h, principal(authn.RoleMember), http.MethodGet, "/api/hr/employees", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTenantScopeRejectsForeignTenant(t *testing.T) {
	h := newTestHandler(fakeStore{})
	rec := doRequest(t, h, principal(authn.RoleAdmin), http.MethodGet, "/api/hr/employees?tenant_id="+otherID, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var scoped string
	h = newTestHandler(fakeStore{
		listEmployeesFn: func(ctx context.Context, tenantID string, filter store.EmployeeFilter) ([]models.Employee, error) {
			scoped = tenantID
			return nil, nil
		},
	})
	admin := authn.Principal{UserID: "root", SuperAdmin: true}
	rec = doRequest(t, h, admin, http.MethodGet, "/api/hr/employees?tenant_id="+otherID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, otherID, scoped)
}

func TestUpdateEmployeeNotFound(t *testing.T) {
	h := newTestHandler(fakeStore{
		updateEmployeeFn: func(ctx context.Context, id string, input store.EmployeeInput) (models.Employee, error) {
			return models.Employee{}, store.ErrEmployeeNotFound
		},
	})
	rec := doRequest(t, h, principal(authn.RoleHR), http.MethodPut, "/api/hr/employees/"+employeeID, validEmployee())
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "employee_not_found", errorCode(t, rec))

	rec = doRequest(t, h, principal(authn.RoleHR), http.MethodGet, "/api/hr/employees/not-a-uuid", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateCycle(t *testing.T) {
	var got store.CreateCycleInput
	h := newTestHandler(fakeStore{
		createCycleFn: func(ctx context.Context, input store.CreateCycleInput) (models.PayrollCycle, error) {
			got = input
			return models.PayrollCycle{CycleID: cycleID, Status: models.CycleDraft}, nil
		},
	})
	rec := doRequest(t, h, principal(authn.RoleHR), http.MethodPost, "/api/hr/payroll/cycles", map[string]int{"year": 2025, "month": 5})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, store.CreateCycleInput{TenantID: tenantID, Year: 2025, Month: 5, CreatedBy: "u-1"}, got)

	rec = doRequest(t, h, principal(authn.RoleHR), http.MethodPost, "/api/hr/payroll/cycles", map[string]int{"year": 2025, "month": 13})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = doRequest(t, h, principal(authn.RoleHR), http.MethodPost, "/api/hr/payroll/cycles", map[string]int{"year": 1999, "month": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateCycleConflict(t *testing.T) {
	h := newTestHandler(fakeStore{
		createCycleFn: func(ctx context.Context, input store.CreateCycleInput) (models.PayrollCycle, error) {
			return models.PayrollCycle{}, store.ErrCycleExists
		},
	})
	rec := doRequest(t, h, principal(authn.RoleHR), http.MethodPost, "/api/hr/payroll/cycles", map[string]int{"year": 2025, "month": 5})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "cycle_exists", errorCode(t, rec))
}

func TestCycleActions(t *testing.T) {
	var got store.CycleActionInput
	h := newTestHandler(fakeStore{
		transitionFn: func(ctx context.Context, input store.CycleActionInput) (models.PayrollCycle, error) {
			got = input
			if input.Action == store.ActionPay {
				return models.PayrollCycle{}, store.ErrInvalidState
			}
			return models.PayrollCycle{CycleID: cycleID, Status: models.CycleProcessed}, nil
		},
	})
	path := "/api/hr/payroll/cycles/" + cycleID + "/actions/"

	rec := doRequest(t, h, principal(authn.RoleHR), http.MethodPost, path+"process", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, store.ActionProcess, got.Action)
	assert.Equal(t, fixedNow, got.OccurredAt)

	rec = doRequest(t, h, principal(authn.RoleHR), http.MethodPost, path+"approve", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, h, principal(authn.RoleManager), http.MethodPost, path+"approve", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h, principal(authn.RoleManager), http.MethodPost, path+"pay", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_state", errorCode(t, rec))

	rec = doRequest(t, h, principal(authn.RoleManager), http.MethodPost, path+"reopen", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "unknown_action", errorCode(t, rec))

	rec = doRequest(t, h, principal(authn.RoleManager), http.MethodGet, path+"process", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestPayslipComputationFailure(t *testing.T) {
	h := newTestHandler(fakeStore{
		transitionFn: func(ctx context.Context, input store.CycleActionInput) (models.PayrollCycle, error) {
			return models.PayrollCycle{}, store.ErrPayslipFailed
		},
	})
	rec := doRequest(t, h, principal(authn.RoleHR), http.MethodPost, "/api/hr/payroll/cycles/"+cycleID+"/actions/process", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "payslip_failed", errorCode(t, rec))
}

func chain(t *testing.T) []store.PayrollEvent {
	t.Helper()
	prev := ""
	var events []store.PayrollEvent
	for i, eventType := range []string{"payroll.cycle.created", "payroll.cycle.process"} {
		payload := json.RawMessage(`{"status":"draft"}`)
		createdAt := store.EventTime(fixedNow.Add(time.Duration(i) * time.Second))
		hash := store.ComputePayrollEventHash(prev, cycleID, eventType, payload, createdAt, i+1)
		events = append(events, store.PayrollEvent{CycleID: cycleID, CycleSeq: i + 1, Type: eventType, Payload: payload, CreatedAt: createdAt, PrevHash: prev, Hash: hash})
		prev = hash
	}
	return events
}

func TestCycleEventsReportChainValidity(t *testing.T) {
	events := chain(t)
	h := newTestHandler(fakeStore{
		eventsFn: func(ctx context.Context, tenantID, cycleID string) ([]store.PayrollEvent, error) {
			return events, nil
		},
	})
	rec := doRequest(t, h, principal(authn.RoleHR), http.MethodGet, "/api/hr/payroll/cycles/"+cycleID+"/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp eventsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Valid)
	assert.Len(t, resp.Events, 2)

	events[1].Type = "payroll.cycle.pay"
	rec = doRequest(t, h, principal(authn.RoleHR), http.MethodGet, "/api/hr/payroll/cycles/"+cycleID+"/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = eventsResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Valid)
	assert.Equal(t, 2, resp.BrokenAt)
}

func TestPreviewPayslip(t *testing.T) {
	h := newTestHandler(fakeStore{})
	body := map[string]interface{}{
		"basic":   5000000,
		"hra":     2500000,
		"special": 2000000,
		"other":   500000,
		"state":   "mh",
		"month":   4,
	}
	rec := doRequest(t, h, principal(authn.RoleHR), http.MethodPost, "/api/hr/payroll/preview", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var slip statutory.Payslip
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &slip))
	assert.Equal(t, int64(10000000), slip.Gross)
	assert.Equal(t, int64(9800000), slip.NetPay)

	body["tax_regime"] = "flat"
	rec = doRequest(t, h, principal(authn.RoleHR), http.MethodPost, "/api/hr/payroll/preview", body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	body["tax_regime"] = "new"
	body["month"] = 14
	rec = doRequest(t, h, principal(authn.RoleHR), http.MethodPost, "/api/hr/payroll/preview", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFlightRiskListFiltersByBand(t *testing.T) {
	rating := 1
	engagement := 10
	stale := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	h := newTestHandler(fakeStore{
		listEmployeesFn: func(ctx context.Context, tenantID string, filter store.EmployeeFilter) ([]models.Employee, error) {
			assert.Equal(t, models.EmployeeActive, filter.Status)
			return []models.Employee{
				{EmployeeID: "e-risky", Code: "E1", DateOfJoining: fixedNow.AddDate(0, -6, 0), LastRaiseAt: &stale, PerformanceRating: &rating, EngagementScore: &engagement, LeaveDaysYTD: 25, OvertimeHoursMonth: 50},
				{EmployeeID: "e-steady", Code: "E2", DateOfJoining: fixedNow.AddDate(-6, 0, 0), LastRaiseAt: &fixedNow},
			}, nil
		},
	})
	rec := doRequest(t, h, principal(authn.RoleHR), http.MethodGet, "/api/hr/flight-risk?band=high", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var results []models.FlightRisk
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "e-risky", results[0].EmployeeID)
	assert.Equal(t, "high", results[0].Band)

	rec = doRequest(t, h, principal(authn.RoleHR), http.MethodGet, "/api/hr/flight-risk?band=extreme", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
