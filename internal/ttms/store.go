package ttms

import (
	"context"
	"errors"
	"time"
)

// errNoFields is returned by the partial update operations when the
// request carried nothing to change.
var errNoFields = errors.New("no fields to update")

// Store is the persistence boundary of the back office. Two
// implementations exist: pgStore (postgres through pgx) and memStore
// (in-memory, used by tests and the memory driver).
//
// Not-found is signalled with pgx.ErrNoRows by both implementations.
type Store interface {
	// employees
	CreateEmployee(ctx context.Context, req CreateEmployeeRequest) (int64, error)
	UpdateEmployee(ctx context.Context, id int64, req UpdateEmployeeRequest) error
	DeleteEmployee(ctx context.Context, id int64) error
	GetEmployeeByID(ctx context.Context, id int64) (*Employee, error)
	ListEmployees(ctx context.Context, limit int, order string) ([]Employee, error)
	CountEmployeesByPreference(ctx context.Context) (PreferenceCounts, error)

	// task definitions
	CreateTask(ctx context.Context, req CreateTaskRequest) (int64, error)
	UpdateTask(ctx context.Context, id int64, req UpdateTaskRequest) error
	DeleteTask(ctx context.Context, id int64) error
	GetTaskByID(ctx context.Context, id int64) (*Task, error)
	ListTasks(ctx context.Context, limit int, order string) ([]Task, error)
	CountTasksByPriority(ctx context.Context) (PriorityCounts, error)

	// assignments; Get/List embed the related tasks and workers
	CreateAssignment(ctx context.Context, due time.Time, status string, taskIDs, workerIDs []int64) (int64, error)
	GetAssignmentByID(ctx context.Context, id int64) (*TaskAssignment, error)
	ListAssignments(ctx context.Context, limit int, order string) ([]TaskAssignment, error)
	UpdateAssignment(ctx context.Context, id int64, upd AssignmentUpdate) error
	DeleteAssignment(ctx context.Context, id int64) error
	SetAssignmentMembers(ctx context.Context, id int64, taskIDs, workerIDs []int64) error
	CountAssignmentsByStatus(ctx context.Context) (StatusCounts, error)

	// system alerts (data only, nothing dispatches them)
	CreateAlert(ctx context.Context, assignmentID int64, alertType, message string) (int64, error)
	ListAlerts(ctx context.Context, limit int) ([]SystemAlert, error)
	DeleteAlert(ctx context.Context, id int64) error

	// performance metrics (read-only reporting target)
	ListMetrics(ctx context.Context, limit int) ([]PerformanceMetric, error)

	// status override audit trail
	CreateStatusOverride(ctx context.Context, ov StatusOverride) (int64, error)
	ListStatusOverrides(ctx context.Context, assignmentID int64) ([]StatusOverride, error)

	Close()
}
