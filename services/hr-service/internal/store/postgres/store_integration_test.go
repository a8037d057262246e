package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"payaid/internal/platform/pgtest"
	"payaid/services/hr-service/internal/models"
	"payaid/services/hr-service/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func employeeInput(tenantID, code string, basic int64) store.EmployeeInput {
	return store.EmployeeInput{
		TenantID:      tenantID,
		Code:          code,
		Name:          "Employee " + code,
		State:         "MH",
		DateOfJoining: time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC),
		Basic:         basic,
		HRA:           basic / 2,
		Special:       basic / 2,
		TaxRegime:     "new",
		Status:        models.EmployeeActive,
	}
}

func TestPayrollCycleLifecycle(t *testing.T) {
	ctx := context.Background()
	pool := pgtest.NewPool(t)
	st := NewStore(pool, Options{})
	tenantID := pgtest.SeedTenant(t, pool, "27")

	_, err := st.CreateEmployee(ctx, employeeInput(tenantID, "E001", 5000000))
	require.NoError(t, err)
	_, err = st.CreateEmployee(ctx, employeeInput(tenantID, "E002", 1000000))
	require.NoError(t, err)
	_, err = st.CreateEmployee(ctx, employeeInput(tenantID, "E001", 1000000))
	assert.ErrorIs(t, err, store.ErrEmployeeExists)

	cycle, err := st.CreateCycle(ctx, store.CreateCycleInput{TenantID: tenantID, Year: 2025, Month: 5})
	require.NoError(t, err)
	assert.Equal(t, models.CycleDraft, cycle.Status)

	_, err = st.CreateCycle(ctx, store.CreateCycleInput{TenantID: tenantID, Year: 2025, Month: 5})
	assert.ErrorIs(t, err, store.ErrCycleExists)

	_, err = st.TransitionCycle(ctx, store.CycleActionInput{TenantID: tenantID, CycleID: cycle.CycleID, Action: store.ActionPay})
	assert.ErrorIs(t, err, store.ErrInvalidState)

	processed, err := st.TransitionCycle(ctx, store.CycleActionInput{TenantID: tenantID, CycleID: cycle.CycleID, Action: store.ActionProcess})
	require.NoError(t, err)
	assert.Equal(t, models.CycleProcessed, processed.Status)
	assert.Equal(t, 2, processed.EmployeeCount)
	assert.Equal(t, processed.TotalGross-processed.TotalDeductions, processed.TotalNet)

	// reprocessing replaces payslips instead of duplicating them
	processed, err = st.TransitionCycle(ctx, store.CycleActionInput{TenantID: tenantID, CycleID: cycle.CycleID, Action: store.ActionProcess})
	require.NoError(t, err)
	payslips, err := st.ListPayslips(ctx, tenantID, cycle.CycleID)
	require.NoError(t, err)
	require.Len(t, payslips, 2)
	assert.Equal(t, "E001", payslips[0].EmployeeCode)

	_, err = st.TransitionCycle(ctx, store.CycleActionInput{TenantID: tenantID, CycleID: cycle.CycleID, Action: store.ActionApprove})
	require.NoError(t, err)
	paid, err := st.TransitionCycle(ctx, store.CycleActionInput{TenantID: tenantID, CycleID: cycle.CycleID, Action: store.ActionPay})
	require.NoError(t, err)
	assert.Equal(t, models.CyclePaid, paid.Status)

	events, err := st.ListPayrollEvents(ctx, tenantID, cycle.CycleID)
	require.NoError(t, err)
	require.Len(t, events, 5)
	ok, broken := store.VerifyChain(events)
	assert.True(t, ok, "chain broken at %d", broken)

	var outboxCount int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_events WHERE tenant_id = $1 AND type LIKE 'payroll.cycle.%'`, tenantID).Scan(&outboxCount))
	assert.Equal(t, 5, outboxCount)
}

func TestTransitionCycleIsTenantScoped(t *testing.T) {
	ctx := context.Background()
	pool := pgtest.NewPool(t)
	st := NewStore(pool, Options{})
	tenantA := pgtest.SeedTenant(t, pool, "27")
	tenantB := pgtest.SeedTenant(t, pool, "29")

	cycle, err := st.CreateCycle(ctx, store.CreateCycleInput{TenantID: tenantA, Year: 2025, Month: 6})
	require.NoError(t, err)

	_, err = st.TransitionCycle(ctx, store.CycleActionInput{TenantID: tenantB, CycleID: cycle.CycleID, Action: store.ActionCancel})
	assert.ErrorIs(t, err, store.ErrCycleNotFound)
	_, err = st.GetCycle(ctx, tenantB, cycle.CycleID)
	assert.ErrorIs(t, err, store.ErrCycleNotFound)
	_, err = st.GetEmployee(ctx, tenantA, uuid.NewString())
	assert.ErrorIs(t, err, store.ErrEmployeeNotFound)
}

func TestConcurrentTransitionsKeepChainIntact(t *testing.T) {
	ctx := context.Background()
	pool := pgtest.NewPool(t)
	st := NewStore(pool, Options{})
	tenantID := pgtest.SeedTenant(t, pool, "27")
	_, err := st.CreateEmployee(ctx, employeeInput(tenantID, "E001", 3000000))
	require.NoError(t, err)
	cycle, err := st.CreateCycle(ctx, store.CreateCycleInput{TenantID: tenantID, Year: 2025, Month: 7})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := st.TransitionCycle(ctx, store.CycleActionInput{TenantID: tenantID, CycleID: cycle.CycleID, Action: store.ActionProcess})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil && !errors.Is(err, store.ErrInvalidState) {
			t.Fatalf("process: %v", err)
		}
	}

	events, err := st.ListPayrollEvents(ctx, tenantID, cycle.CycleID)
	require.NoError(t, err)
	ok, broken := store.VerifyChain(events)
	assert.True(t, ok, "chain broken at %d", broken)
	assert.Len(t, events, 5)
}
