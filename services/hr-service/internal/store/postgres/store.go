package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"payaid/internal/outbox"
	"payaid/internal/statutory"
	"payaid/services/hr-service/internal/models"
	"payaid/services/hr-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

const employeeColumns = `
	employee_id, tenant_id, code, name, COALESCE(email, ''), state, date_of_joining,
	basic, hra, special, other, tax_regime, declared_80c, declared_80d, pf_opt_out, pf_uncapped,
	status, last_raise_at, performance_rating, leave_days_ytd, overtime_hours_month, engagement_score,
	created_at, updated_at`

const cycleColumns = `
	cycle_id, tenant_id, year, month, status, employee_count, total_gross, total_deductions,
	total_net, total_employer_cost, COALESCE(created_by::text, ''), created_at, updated_at`

type Store struct {
	pool  *pgxpool.Pool
	rules *statutory.Rules
	now   func() time.Time
}

type Options struct {
	Rules *statutory.Rules
	Now   func() time.Time
}

func NewStore(pool *pgxpool.Pool, options Options) *Store {
	if options.Rules == nil {
		options.Rules = statutory.Default()
	}
	if options.Now == nil {
		options.Now = time.Now
	}
	return &Store{pool: pool, rules: options.Rules, now: options.Now}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) ListEmployees(ctx context.Context, tenantID string, filter store.EmployeeFilter) ([]models.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	if filter.Status != "" {
		query += " AND status = $2"
		args = append(args, filter.Status)
	}
	query += " ORDER BY code ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	employees := []models.Employee{}
	for rows.Next() {
		employee, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, employee)
	}
	return employees, rows.Err()
}

func (s *Store) GetEmployee(ctx context.Context, tenantID, employeeID string) (models.Employee, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE employee_id = $1 AND tenant_id = $2`, employeeID, tenantID)
	employee, err := scanEmployee(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Employee{}, store.ErrEmployeeNotFound
		}
		return models.Employee{}, err
	}
	return employee, nil
}

func (s *Store) CreateEmployee(ctx context.Context, input store.EmployeeInput) (models.Employee, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Employee{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	now := s.now().UTC()
	row := tx.QueryRow(ctx, `
		INSERT INTO employees (
			employee_id, tenant_id, code, name, email, state, date_of_joining,
			basic, hra, special, other, tax_regime, declared_80c, declared_80d, pf_opt_out, pf_uncapped,
			status, last_raise_at, performance_rating, leave_days_ytd, overtime_hours_month, engagement_score,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$23)
		RETURNING `+employeeColumns,
		uuid.NewString(), input.TenantID, input.Code, input.Name, nullIfEmpty(input.Email), input.State, input.DateOfJoining,
		input.Basic, input.HRA, input.Special, input.Other, input.TaxRegime, input.Declared80C, input.Declared80D, input.PFOptOut, input.PFUncapped,
		input.Status, input.LastRaiseAt, input.PerformanceRating, input.LeaveDaysYTD, input.OvertimeHoursMonth, input.EngagementScore,
		now)
	var employee models.Employee
	employee, err = scanEmployee(row)
	if err != nil {
		if isUniqueViolation(err) {
			err = store.ErrEmployeeExists
		}
		return models.Employee{}, err
	}

	if _, err = outbox.Insert(ctx, tx, input.TenantID, "employee.created", employeeEvent(employee)); err != nil {
		return models.Employee{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return models.Employee{}, err
	}
	return employee, nil
}

func (s *Store) UpdateEmployee(ctx context.Context, employeeID string, input store.EmployeeInput) (models.Employee, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Employee{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	row := tx.QueryRow(ctx, `
		UPDATE employees SET
			code = $3, name = $4, email = $5, state = $6, date_of_joining = $7,
			basic = $8, hra = $9, special = $10, other = $11, tax_regime = $12,
			declared_80c = $13, declared_80d = $14, pf_opt_out = $15, pf_uncapped = $16,
			status = $17, last_raise_at = $18, performance_rating = $19, leave_days_ytd = $20,
			overtime_hours_month = $21, engagement_score = $22, updated_at = $23
		WHERE employee_id = $1 AND tenant_id = $2
		RETURNING `+employeeColumns,
		employeeID, input.TenantID, input.Code, input.Name, nullIfEmpty(input.Email), input.State, input.DateOfJoining,
		input.Basic, input.HRA, input.Special, input.Other, input.TaxRegime,
		input.Declared80C, input.Declared80D, input.PFOptOut, input.PFUncapped,
		input.Status, input.LastRaiseAt, input.PerformanceRating, input.LeaveDaysYTD,
		input.OvertimeHoursMonth, input.EngagementScore, s.now().UTC())
	var employee models.Employee
	employee, err = scanEmployee(row)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			err = store.ErrEmployeeNotFound
		case isUniqueViolation(err):
			err = store.ErrEmployeeExists
		}
		return models.Employee{}, err
	}

	if _, err = outbox.Insert(ctx, tx, input.TenantID, "employee.updated", employeeEvent(employee)); err != nil {
		return models.Employee{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return models.Employee{}, err
	}
	return employee, nil
}

func (s *Store) ListCycles(ctx context.Context, tenantID string) ([]models.PayrollCycle, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+cycleColumns+`
		FROM payroll_cycles
		WHERE tenant_id = $1
		ORDER BY year DESC, month DESC
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cycles := []models.PayrollCycle{}
	for rows.Next() {
		cycle, err := scanCycle(rows)
		if err != nil {
			return nil, err
		}
		cycles = append(cycles, cycle)
	}
	return cycles, rows.Err()
}

func (s *Store) GetCycle(ctx context.Context, tenantID, cycleID string) (models.PayrollCycle, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+cycleColumns+` FROM payroll_cycles WHERE cycle_id = $1 AND tenant_id = $2`, cycleID, tenantID)
	cycle, err := scanCycle(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.PayrollCycle{}, store.ErrCycleNotFound
		}
		return models.PayrollCycle{}, err
	}
	return cycle, nil
}

func (s *Store) CreateCycle(ctx context.Context, input store.CreateCycleInput) (models.PayrollCycle, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.PayrollCycle{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	now := s.now().UTC()
	row := tx.QueryRow(ctx, `
		INSERT INTO payroll_cycles (cycle_id, tenant_id, year, month, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING `+cycleColumns,
		uuid.NewString(), input.TenantID, input.Year, input.Month, models.CycleDraft, nullIfEmpty(input.CreatedBy), now)
	var cycle models.PayrollCycle
	cycle, err = scanCycle(row)
	if err != nil {
		if isUniqueViolation(err) {
			err = store.ErrCycleExists
		}
		return models.PayrollCycle{}, err
	}

	if err = s.recordCycleEvent(ctx, tx, cycle, "payroll.cycle.created", "", input.CreatedBy); err != nil {
		return models.PayrollCycle{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return models.PayrollCycle{}, err
	}
	return cycle, nil
}

// TransitionCycle applies a cycle action under a row lock. Processing
// recomputes every payslip of the cycle in the same transaction.
func (s *Store) TransitionCycle(ctx context.Context, input store.CycleActionInput) (models.PayrollCycle, error) {
	target, ok := store.TargetStatus(input.Action)
	if !ok {
		return models.PayrollCycle{}, store.ErrInvalidState
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.PayrollCycle{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	row := tx.QueryRow(ctx, `SELECT `+cycleColumns+` FROM payroll_cycles WHERE cycle_id = $1 AND tenant_id = $2 FOR UPDATE`, input.CycleID, input.TenantID)
	var cycle models.PayrollCycle
	cycle, err = scanCycle(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrCycleNotFound
		}
		return models.PayrollCycle{}, err
	}
	if !store.ValidTransition(input.Action, cycle.Status) {
		err = fmt.Errorf("%w: cannot %s a %s cycle", store.ErrInvalidState, input.Action, cycle.Status)
		return models.PayrollCycle{}, err
	}
	fromStatus := cycle.Status

	if input.Action == store.ActionProcess {
		if err = s.processPayslips(ctx, tx, &cycle); err != nil {
			return models.PayrollCycle{}, err
		}
	}

	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = s.now()
	}
	row = tx.QueryRow(ctx, `
		UPDATE payroll_cycles
		SET status = $3, employee_count = $4, total_gross = $5, total_deductions = $6,
			total_net = $7, total_employer_cost = $8, updated_at = $9
		WHERE cycle_id = $1 AND tenant_id = $2
		RETURNING `+cycleColumns,
		cycle.CycleID, cycle.TenantID, target, cycle.EmployeeCount, cycle.TotalGross, cycle.TotalDeductions,
		cycle.TotalNet, cycle.TotalEmployerCost, occurredAt.UTC())
	cycle, err = scanCycle(row)
	if err != nil {
		return models.PayrollCycle{}, err
	}

	if err = s.recordCycleEvent(ctx, tx, cycle, "payroll.cycle."+input.Action, fromStatus, input.ActorID); err != nil {
		return models.PayrollCycle{}, err
	}
	if err = tx.Commit(ctx); err != nil {
		return models.PayrollCycle{}, err
	}
	return cycle, nil
}

func (s *Store) ListPayslips(ctx context.Context, tenantID, cycleID string) ([]models.Payslip, error) {
	if _, err := s.GetCycle(ctx, tenantID, cycleID); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT p.payslip_id, p.cycle_id, p.employee_id, e.code, e.name, p.gross,
			p.pf_employee, p.pf_employer_epf, p.pf_employer_eps, p.esi_employee, p.esi_employer,
			p.professional_tax, p.tds, p.total_deductions, p.net_pay, p.employer_cost,
			p.detail_json, p.created_at
		FROM payslips p
		JOIN employees e ON e.employee_id = p.employee_id
		WHERE p.cycle_id = $1 AND p.tenant_id = $2
		ORDER BY e.code ASC
	`, cycleID, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payslips := []models.Payslip{}
	for rows.Next() {
		var slip models.Payslip
		var detail []byte
		if err := rows.Scan(&slip.PayslipID, &slip.CycleID, &slip.EmployeeID, &slip.EmployeeCode, &slip.EmployeeName, &slip.Gross,
			&slip.PFEmployee, &slip.PFEmployerEPF, &slip.PFEmployerEPS, &slip.ESIEmployee, &slip.ESIEmployer,
			&slip.ProfessionalTax, &slip.TDS, &slip.TotalDeductions, &slip.NetPay, &slip.EmployerCost,
			&detail, &slip.CreatedAt); err != nil {
			return nil, err
		}
		slip.Detail = json.RawMessage(detail)
		payslips = append(payslips, slip)
	}
	return payslips, rows.Err()
}

func (s *Store) ListPayrollEvents(ctx context.Context, tenantID, cycleID string) ([]store.PayrollEvent, error) {
	if _, err := s.GetCycle(ctx, tenantID, cycleID); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT cycle_id, cycle_seq, type, payload::text, created_at, prev_hash, hash
		FROM payroll_events
		WHERE cycle_id = $1
		ORDER BY cycle_seq ASC
	`, cycleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []store.PayrollEvent{}
	for rows.Next() {
		var event store.PayrollEvent
		var payload string
		if err := rows.Scan(&event.CycleID, &event.CycleSeq, &event.Type, &payload, &event.CreatedAt, &event.PrevHash, &event.Hash); err != nil {
			return nil, err
		}
		event.Payload = json.RawMessage(payload)
		event.CreatedAt = event.CreatedAt.UTC()
		events = append(events, event)
	}
	return events, rows.Err()
}

// processPayslips replaces the cycle's payslips with fresh computations for
// every active employee who joined before the end of the cycle month.
func (s *Store) processPayslips(ctx context.Context, tx pgx.Tx, cycle *models.PayrollCycle) error {
	monthEnd := time.Date(cycle.Year, time.Month(cycle.Month), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	rows, err := tx.Query(ctx, `
		SELECT `+employeeColumns+`
		FROM employees
		WHERE tenant_id = $1 AND status = $2 AND date_of_joining < $3
		ORDER BY code ASC
	`, cycle.TenantID, models.EmployeeActive, monthEnd)
	if err != nil {
		return err
	}
	var employees []models.Employee
	for rows.Next() {
		employee, err := scanEmployee(rows)
		if err != nil {
			rows.Close()
			return err
		}
		employees = append(employees, employee)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM payslips WHERE cycle_id = $1`, cycle.CycleID); err != nil {
		return err
	}

	cycle.EmployeeCount = 0
	cycle.TotalGross, cycle.TotalDeductions, cycle.TotalNet, cycle.TotalEmployerCost = 0, 0, 0, 0
	now := s.now().UTC()
	for _, employee := range employees {
		slip, err := statutory.ComputePayslip(s.rules, employee.SalaryProfile(), time.Month(cycle.Month))
		if err != nil {
			return fmt.Errorf("%w: employee %s: %v", store.ErrPayslipFailed, employee.Code, err)
		}
		detail, err := json.Marshal(slip)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO payslips (
				payslip_id, cycle_id, tenant_id, employee_id, gross, pf_employee, pf_employer_epf, pf_employer_eps,
				esi_employee, esi_employer, professional_tax, tds, total_deductions, net_pay, employer_cost,
				detail_json, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		`, uuid.NewString(), cycle.CycleID, cycle.TenantID, employee.EmployeeID, slip.Gross, slip.PF.Employee, slip.PF.EmployerEPF, slip.PF.EmployerEPS,
			slip.ESI.Employee, slip.ESI.Employer, slip.ProfessionalTax, slip.TDS.Monthly, slip.TotalDeductions, slip.NetPay, slip.EmployerCost,
			detail, now)
		if err != nil {
			return err
		}
		cycle.EmployeeCount++
		cycle.TotalGross += slip.Gross
		cycle.TotalDeductions += slip.TotalDeductions
		cycle.TotalNet += slip.NetPay
		cycle.TotalEmployerCost += slip.EmployerCost
	}
	return nil
}

type cycleEventPayload struct {
	CycleID           string `json:"cycle_id"`
	Year              int    `json:"year"`
	Month             int    `json:"month"`
	Status            string `json:"status"`
	FromStatus        string `json:"from_status,omitempty"`
	ActorID           string `json:"actor_id,omitempty"`
	EmployeeCount     int    `json:"employee_count"`
	TotalNet          int64  `json:"total_net"`
	TotalEmployerCost int64  `json:"total_employer_cost"`
}

// recordCycleEvent appends to the cycle's hash chain and publishes the same
// payload to the outbox.
func (s *Store) recordCycleEvent(ctx context.Context, tx pgx.Tx, cycle models.PayrollCycle, eventType, fromStatus, actorID string) error {
	payload := cycleEventPayload{
		CycleID:           cycle.CycleID,
		Year:              cycle.Year,
		Month:             cycle.Month,
		Status:            cycle.Status,
		FromStatus:        fromStatus,
		ActorID:           actorID,
		EmployeeCount:     cycle.EmployeeCount,
		TotalNet:          cycle.TotalNet,
		TotalEmployerCost: cycle.TotalEmployerCost,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if err := s.insertPayrollEvent(ctx, tx, cycle.CycleID, eventType, raw); err != nil {
		return err
	}
	_, err = outbox.Insert(ctx, tx, cycle.TenantID, eventType, payload)
	return err
}

func (s *Store) insertPayrollEvent(ctx context.Context, tx pgx.Tx, cycleID, eventType string, payload []byte) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, cycleID); err != nil {
		return err
	}

	var lastSeq int
	var prevHash sql.NullString
	row := tx.QueryRow(ctx, `
		SELECT cycle_seq, hash
		FROM payroll_events
		WHERE cycle_id = $1
		ORDER BY cycle_seq DESC
		LIMIT 1
		FOR UPDATE
	`, cycleID)
	if err := row.Scan(&lastSeq, &prevHash); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	nextSeq := lastSeq + 1
	prev := ""
	if prevHash.Valid {
		prev = prevHash.String
	}
	createdAt := store.EventTime(s.now())
	hash := store.ComputePayrollEventHash(prev, cycleID, eventType, payload, createdAt, nextSeq)

	_, err := tx.Exec(ctx, `
		INSERT INTO payroll_events (cycle_id, cycle_seq, type, payload, created_at, prev_hash, hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, cycleID, nextSeq, eventType, string(payload), createdAt, prev, hash)
	return err
}

func employeeEvent(employee models.Employee) map[string]string {
	return map[string]string{
		"employee_id": employee.EmployeeID,
		"code":        employee.Code,
		"name":        employee.Name,
		"status":      employee.Status,
	}
}

func scanEmployee(row pgx.Row) (models.Employee, error) {
	var employee models.Employee
	var lastRaise sql.NullTime
	var rating, engagement sql.NullInt32
	err := row.Scan(
		&employee.EmployeeID, &employee.TenantID, &employee.Code, &employee.Name, &employee.Email, &employee.State, &employee.DateOfJoining,
		&employee.Basic, &employee.HRA, &employee.Special, &employee.Other, &employee.TaxRegime, &employee.Declared80C, &employee.Declared80D,
		&employee.PFOptOut, &employee.PFUncapped,
		&employee.Status, &lastRaise, &rating, &employee.LeaveDaysYTD, &employee.OvertimeHoursMonth, &engagement,
		&employee.CreatedAt, &employee.UpdatedAt,
	)
	if err != nil {
		return models.Employee{}, err
	}
	employee.LastRaiseAt = nullTimePtr(lastRaise)
	employee.PerformanceRating = nullIntPtr(rating)
	employee.EngagementScore = nullIntPtr(engagement)
	return employee, nil
}

func scanCycle(row pgx.Row) (models.PayrollCycle, error) {
	var cycle models.PayrollCycle
	err := row.Scan(&cycle.CycleID, &cycle.TenantID, &cycle.Year, &cycle.Month, &cycle.Status, &cycle.EmployeeCount,
		&cycle.TotalGross, &cycle.TotalDeductions, &cycle.TotalNet, &cycle.TotalEmployerCost, &cycle.CreatedBy,
		&cycle.CreatedAt, &cycle.UpdatedAt)
	return cycle, err
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

func nullIntPtr(value sql.NullInt32) *int {
	if !value.Valid {
		return nil
	}
	v := int(value.Int32)
	return &v
}
