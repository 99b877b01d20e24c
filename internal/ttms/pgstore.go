package ttms

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgStore struct {
	pool *pgxpool.Pool
}

func newPgStore(pool *pgxpool.Pool) *pgStore {
	return &pgStore{pool: pool}
}

func (s *pgStore) Close() {
	s.pool.Close()
}

// --- employees ---

func (s *pgStore) CreateEmployee(ctx context.Context, req CreateEmployeeRequest) (int64, error) {
	pref := req.NotificationPreference
	if pref == "" {
		pref = PrefEmail
	}

	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO employees (full_name, email, department, notification_preference)
		VALUES ($1,$2,$3,$4)
		RETURNING employeeid
	`, req.FullName, req.Email, req.Department, pref).Scan(&id)
	return id, err
}

func (s *pgStore) UpdateEmployee(ctx context.Context, id int64, req UpdateEmployeeRequest) error {
	sets := make([]string, 0, 4)
	args := make([]any, 0, 5)
	i := 1

	if req.FullName != nil {
		sets = append(sets, fmt.Sprintf("full_name = $%d", i))
		args = append(args, strings.TrimSpace(*req.FullName))
		i++
	}
	if req.Email != nil {
		sets = append(sets, fmt.Sprintf("email = $%d", i))
		args = append(args, *req.Email)
		i++
	}
	if req.Department != nil {
		sets = append(sets, fmt.Sprintf("department = $%d", i))
		args = append(args, *req.Department)
		i++
	}
	if req.NotificationPreference != nil {
		sets = append(sets, fmt.Sprintf("notification_preference = $%d", i))
		args = append(args, *req.NotificationPreference)
		i++
	}

	if len(sets) == 0 {
		return errNoFields
	}

	args = append(args, id)
	q := fmt.Sprintf("UPDATE employees SET %s WHERE employeeid = $%d", strings.Join(sets, ", "), i)

	ct, err := s.pool.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (s *pgStore) DeleteEmployee(ctx context.Context, id int64) error {
	// join rows cascade, assignments keep existing with a shrunk worker set
	ct, err := s.pool.Exec(ctx, `DELETE FROM employees WHERE employeeid = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (s *pgStore) GetEmployeeByID(ctx context.Context, id int64) (*Employee, error) {
	var e Employee
	err := s.pool.QueryRow(ctx, `
		SELECT employeeid, full_name, email, COALESCE(department,''), notification_preference
		FROM employees
		WHERE employeeid = $1
	`, id).Scan(&e.EmployeeID, &e.FullName, &e.Email, &e.Department, &e.NotificationPreference)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *pgStore) ListEmployees(ctx context.Context, limit int, order string) ([]Employee, error) {
	limit = normalizeLimit(limit)
	orderSQL := employeeOrderClause(order)

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT employeeid, full_name, email, COALESCE(department,''), notification_preference
		FROM employees
		ORDER BY %s
		LIMIT $1
	`, orderSQL), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Employee, 0, limit)
	for rows.Next() {
		var e Employee
		if err := rows.Scan(&e.EmployeeID, &e.FullName, &e.Email, &e.Department, &e.NotificationPreference); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *pgStore) CountEmployeesByPreference(ctx context.Context) (PreferenceCounts, error) {
	var c PreferenceCounts
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE notification_preference = 'EMAIL'),
		       COUNT(*) FILTER (WHERE notification_preference = 'IN_APP'),
		       COUNT(*) FILTER (WHERE notification_preference = 'NONE')
		FROM employees
	`).Scan(&c.Total, &c.Email, &c.InApp, &c.None)
	return c, err
}

// --- task definitions ---

func (s *pgStore) CreateTask(ctx context.Context, req CreateTaskRequest) (int64, error) {
	priority := req.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	duration := req.StandardDurationDays
	if duration <= 0 {
		duration = 3
	}

	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO tasks (title, description, standard_duration_days, priority)
		VALUES ($1,$2,$3,$4)
		RETURNING taskid
	`, req.Title, req.Description, duration, priority).Scan(&id)
	return id, err
}

func (s *pgStore) UpdateTask(ctx context.Context, id int64, req UpdateTaskRequest) error {
	sets := make([]string, 0, 4)
	args := make([]any, 0, 5)
	i := 1

	if req.Title != nil {
		sets = append(sets, fmt.Sprintf("title = $%d", i))
		args = append(args, *req.Title)
		i++
	}
	if req.Description != nil {
		sets = append(sets, fmt.Sprintf("description = $%d", i))
		args = append(args, *req.Description)
		i++
	}
	if req.StandardDurationDays != nil {
		sets = append(sets, fmt.Sprintf("standard_duration_days = $%d", i))
		args = append(args, *req.StandardDurationDays)
		i++
	}
	if req.Priority != nil {
		sets = append(sets, fmt.Sprintf("priority = $%d", i))
		args = append(args, *req.Priority)
		i++
	}

	if len(sets) == 0 {
		return errNoFields
	}

	args = append(args, id)
	q := fmt.Sprintf("UPDATE tasks SET %s WHERE taskid = $%d", strings.Join(sets, ", "), i)

	ct, err := s.pool.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (s *pgStore) DeleteTask(ctx context.Context, id int64) error {
	ct, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE taskid = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (s *pgStore) GetTaskByID(ctx context.Context, id int64) (*Task, error) {
	var t Task
	err := s.pool.QueryRow(ctx, `
		SELECT taskid, title, COALESCE(description,''), standard_duration_days, priority
		FROM tasks
		WHERE taskid = $1
	`, id).Scan(&t.TaskID, &t.Title, &t.Description, &t.StandardDurationDays, &t.Priority)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *pgStore) ListTasks(ctx context.Context, limit int, order string) ([]Task, error) {
	limit = normalizeLimit(limit)
	orderSQL := taskOrderClause(order)

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT taskid, title, COALESCE(description,''), standard_duration_days, priority
		FROM tasks
		ORDER BY %s
		LIMIT $1
	`, orderSQL), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Task, 0, limit)
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.TaskID, &t.Title, &t.Description, &t.StandardDurationDays, &t.Priority); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *pgStore) CountTasksByPriority(ctx context.Context) (PriorityCounts, error) {
	var c PriorityCounts
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE priority = 'HIGH'),
		       COUNT(*) FILTER (WHERE priority = 'MEDIUM'),
		       COUNT(*) FILTER (WHERE priority = 'LOW')
		FROM tasks
	`).Scan(&c.Total, &c.High, &c.Medium, &c.Low)
	return c, err
}

// --- assignments ---

const assignmentSelect = `
	SELECT
	  a.assignmentid,
	  a.assigned_date,
	  a.required_due_date,
	  a.actual_completion_date,
	  a.submission_status,

	  COALESCE(
	    (SELECT json_agg(json_build_object(
	        'taskid', t.taskid,
	        'title', t.title,
	        'description', COALESCE(t.description,''),
	        'standard_duration_days', t.standard_duration_days,
	        'priority', t.priority)
	      ORDER BY t.taskid)
	     FROM assignment_tasks at
	     JOIN tasks t ON t.taskid = at.taskid
	     WHERE at.assignmentid = a.assignmentid),
	    '[]'::json
	  ) AS tasks_json,

	  COALESCE(
	    (SELECT json_agg(json_build_object(
	        'employeeid', e.employeeid,
	        'full_name', e.full_name,
	        'email', e.email,
	        'department', COALESCE(e.department,''),
	        'notification_preference', e.notification_preference)
	      ORDER BY e.employeeid)
	     FROM assignment_workers aw
	     JOIN employees e ON e.employeeid = aw.employeeid
	     WHERE aw.assignmentid = a.assignmentid),
	    '[]'::json
	  ) AS workers_json

	FROM task_assignments a
`

func scanAssignment(row pgx.Row) (*TaskAssignment, error) {
	var (
		a           TaskAssignment
		completion  sql.NullTime
		tasksJSON   []byte
		workersJSON []byte
	)
	if err := row.Scan(
		&a.AssignmentID,
		&a.AssignedDate,
		&a.RequiredDueDate,
		&completion,
		&a.SubmissionStatus,
		&tasksJSON,
		&workersJSON,
	); err != nil {
		return nil, err
	}

	if completion.Valid {
		t := completion.Time
		a.ActualCompletionDate = &t
	}
	if err := json.Unmarshal(tasksJSON, &a.Tasks); err != nil {
		return nil, fmt.Errorf("unmarshal tasks_json: %w", err)
	}
	if err := json.Unmarshal(workersJSON, &a.Workers); err != nil {
		return nil, fmt.Errorf("unmarshal workers_json: %w", err)
	}

	return &a, nil
}

func (s *pgStore) CreateAssignment(ctx context.Context, due time.Time, status string, taskIDs, workerIDs []int64) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO task_assignments (required_due_date, submission_status)
		VALUES ($1, $2)
		RETURNING assignmentid
	`, due, status).Scan(&id)
	if err != nil {
		return 0, err
	}

	for _, taskID := range taskIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO assignment_tasks (assignmentid, taskid) VALUES ($1, $2)
		`, id, taskID); err != nil {
			return 0, err
		}
	}
	for _, workerID := range workerIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO assignment_workers (assignmentid, employeeid) VALUES ($1, $2)
		`, id, workerID); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *pgStore) GetAssignmentByID(ctx context.Context, id int64) (*TaskAssignment, error) {
	row := s.pool.QueryRow(ctx, assignmentSelect+` WHERE a.assignmentid = $1`, id)
	return scanAssignment(row)
}

func (s *pgStore) ListAssignments(ctx context.Context, limit int, order string) ([]TaskAssignment, error) {
	limit = normalizeLimit(limit)
	orderSQL := assignmentOrderClause(order)

	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		assignmentSelect+` ORDER BY %s LIMIT $1`, orderSQL), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]TaskAssignment, 0, limit)
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *pgStore) UpdateAssignment(ctx context.Context, id int64, upd AssignmentUpdate) error {
	sets := make([]string, 0, 3)
	args := make([]any, 0, 4)
	i := 1

	if upd.RequiredDueDate != nil {
		sets = append(sets, fmt.Sprintf("required_due_date = $%d", i))
		args = append(args, *upd.RequiredDueDate)
		i++
	}
	if upd.SubmissionStatus != nil {
		sets = append(sets, fmt.Sprintf("submission_status = $%d", i))
		args = append(args, *upd.SubmissionStatus)
		i++
	}
	if upd.ClearCompletion {
		sets = append(sets, "actual_completion_date = NULL")
	} else if upd.ActualCompletionDate != nil {
		sets = append(sets, fmt.Sprintf("actual_completion_date = $%d", i))
		args = append(args, *upd.ActualCompletionDate)
		i++
	}

	if len(sets) == 0 {
		return errNoFields
	}

	args = append(args, id)
	q := fmt.Sprintf("UPDATE task_assignments SET %s WHERE assignmentid = $%d", strings.Join(sets, ", "), i)

	ct, err := s.pool.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (s *pgStore) DeleteAssignment(ctx context.Context, id int64) error {
	// alerts, overrides and join rows cascade
	ct, err := s.pool.Exec(ctx, `DELETE FROM task_assignments WHERE assignmentid = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// SetAssignmentMembers replaces the task and worker sets. A nil slice
// leaves the corresponding relation untouched.
func (s *pgStore) SetAssignmentMembers(ctx context.Context, id int64, taskIDs, workerIDs []int64) error {
	var exists bool
	if err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM task_assignments WHERE assignmentid = $1)
	`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return pgx.ErrNoRows
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if taskIDs != nil {
		if _, err := tx.Exec(ctx, `DELETE FROM assignment_tasks WHERE assignmentid = $1`, id); err != nil {
			return err
		}
		for _, taskID := range taskIDs {
			if _, err := tx.Exec(ctx, `
				INSERT INTO assignment_tasks (assignmentid, taskid) VALUES ($1, $2)
			`, id, taskID); err != nil {
				return err
			}
		}
	}
	if workerIDs != nil {
		if _, err := tx.Exec(ctx, `DELETE FROM assignment_workers WHERE assignmentid = $1`, id); err != nil {
			return err
		}
		for _, workerID := range workerIDs {
			if _, err := tx.Exec(ctx, `
				INSERT INTO assignment_workers (assignmentid, employeeid) VALUES ($1, $2)
			`, id, workerID); err != nil {
				return err
			}
		}
	}

	return tx.Commit(ctx)
}

func (s *pgStore) CountAssignmentsByStatus(ctx context.Context) (StatusCounts, error) {
	var c StatusCounts
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE submission_status = 'PENDING'),
		       COUNT(*) FILTER (WHERE submission_status = 'IN_PROGRESS'),
		       COUNT(*) FILTER (WHERE submission_status IN ('ON_TIME_COMPLETED','LATE_COMPLETED')),
		       COUNT(*) FILTER (WHERE submission_status = 'OVERDUE')
		FROM task_assignments
	`).Scan(&c.Total, &c.Pending, &c.InProgress, &c.Completed, &c.Overdue)
	return c, err
}

// --- system alerts ---

func (s *pgStore) CreateAlert(ctx context.Context, assignmentID int64, alertType, message string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO system_alerts (assignmentid, alert_type, message)
		VALUES ($1, $2, $3)
		RETURNING alertid
	`, assignmentID, alertType, message).Scan(&id)
	return id, err
}

func (s *pgStore) ListAlerts(ctx context.Context, limit int) ([]SystemAlert, error) {
	limit = normalizeLimit(limit)

	rows, err := s.pool.Query(ctx, `
		SELECT alertid, assignmentid, alert_type, message, trigger_datetime, is_sent, sent_datetime
		FROM system_alerts
		ORDER BY trigger_datetime DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]SystemAlert, 0, limit)
	for rows.Next() {
		var (
			al   SystemAlert
			sent sql.NullTime
		)
		if err := rows.Scan(&al.AlertID, &al.AssignmentID, &al.AlertType, &al.Message,
			&al.TriggerDatetime, &al.IsSent, &sent); err != nil {
			return nil, err
		}
		if sent.Valid {
			t := sent.Time
			al.SentDatetime = &t
		}
		out = append(out, al)
	}
	return out, rows.Err()
}

func (s *pgStore) DeleteAlert(ctx context.Context, id int64) error {
	ct, err := s.pool.Exec(ctx, `DELETE FROM system_alerts WHERE alertid = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// --- performance metrics ---

func (s *pgStore) ListMetrics(ctx context.Context, limit int) ([]PerformanceMetric, error) {
	limit = normalizeLimit(limit)

	rows, err := s.pool.Query(ctx, `
		SELECT metricid, employeeid, calculation_date,
		       total_tasks_completed, on_time_tasks_count, on_time_percentage
		FROM performance_metrics
		ORDER BY calculation_date DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]PerformanceMetric, 0, limit)
	for rows.Next() {
		var (
			m      PerformanceMetric
			worker sql.NullInt64
		)
		if err := rows.Scan(&m.MetricID, &worker, &m.CalculationDate,
			&m.TotalTasksCompleted, &m.OnTimeTasksCount, &m.OnTimePercentage); err != nil {
			return nil, err
		}
		if worker.Valid {
			w := worker.Int64
			m.WorkerID = &w
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// --- status override audit ---

func (s *pgStore) CreateStatusOverride(ctx context.Context, ov StatusOverride) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO status_overrides (assignmentid, old_status, new_status, actor, reason)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING overrideid
	`, ov.AssignmentID, ov.OldStatus, ov.NewStatus, ov.Actor, ov.Reason).Scan(&id)
	return id, err
}

func (s *pgStore) ListStatusOverrides(ctx context.Context, assignmentID int64) ([]StatusOverride, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT overrideid, assignmentid, old_status, new_status, COALESCE(actor,''), COALESCE(reason,''), created_at
		FROM status_overrides
		WHERE assignmentid = $1
		ORDER BY created_at ASC
	`, assignmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StatusOverride
	for rows.Next() {
		var ov StatusOverride
		if err := rows.Scan(&ov.OverrideID, &ov.AssignmentID, &ov.OldStatus, &ov.NewStatus,
			&ov.Actor, &ov.Reason, &ov.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ov)
	}
	return out, rows.Err()
}
