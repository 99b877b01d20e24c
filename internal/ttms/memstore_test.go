package ttms

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestMemStoreAssignmentCascade(t *testing.T) {
	ms := newMemStore()
	ctx := context.Background()

	taskID, _ := ms.CreateTask(ctx, CreateTaskRequest{Title: "t1"})
	workerID, _ := ms.CreateEmployee(ctx, CreateEmployeeRequest{FullName: "W", Email: "w@example.com"})
	assignmentID, err := ms.CreateAssignment(ctx, ts("2123-01-10T00:00:00Z"), StatusPending, []int64{taskID}, []int64{workerID})
	if err != nil {
		t.Fatalf("create assignment: %v", err)
	}

	alertID, err := ms.CreateAlert(ctx, assignmentID, AlertDeadlineWarning, "heads up")
	if err != nil {
		t.Fatalf("create alert: %v", err)
	}
	if _, err := ms.CreateStatusOverride(ctx, StatusOverride{
		AssignmentID: assignmentID, OldStatus: StatusPending, NewStatus: StatusOverdue, Actor: "admin",
	}); err != nil {
		t.Fatalf("create override: %v", err)
	}

	if err := ms.DeleteAssignment(ctx, assignmentID); err != nil {
		t.Fatalf("delete assignment: %v", err)
	}

	if err := ms.DeleteAlert(ctx, alertID); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("alert should have been cascaded away, got %v", err)
	}
	overrides, _ := ms.ListStatusOverrides(ctx, assignmentID)
	if len(overrides) != 0 {
		t.Fatalf("override rows should have been cascaded away, got %d", len(overrides))
	}

	// the task and worker themselves survive
	if _, err := ms.GetTaskByID(ctx, taskID); err != nil {
		t.Fatalf("task should survive assignment deletion: %v", err)
	}
	if _, err := ms.GetEmployeeByID(ctx, workerID); err != nil {
		t.Fatalf("employee should survive assignment deletion: %v", err)
	}
}

func TestMemStoreDeleteDetachesMembers(t *testing.T) {
	ms := newMemStore()
	ctx := context.Background()

	t1, _ := ms.CreateTask(ctx, CreateTaskRequest{Title: "keep"})
	t2, _ := ms.CreateTask(ctx, CreateTaskRequest{Title: "drop"})
	w1, _ := ms.CreateEmployee(ctx, CreateEmployeeRequest{FullName: "Keep", Email: "keep@example.com"})
	w2, _ := ms.CreateEmployee(ctx, CreateEmployeeRequest{FullName: "Drop", Email: "drop@example.com"})

	id, _ := ms.CreateAssignment(ctx, ts("2123-01-10T00:00:00Z"), StatusPending, []int64{t1, t2}, []int64{w1, w2})

	if err := ms.DeleteTask(ctx, t2); err != nil {
		t.Fatalf("delete task: %v", err)
	}
	if err := ms.DeleteEmployee(ctx, w2); err != nil {
		t.Fatalf("delete employee: %v", err)
	}

	a, err := ms.GetAssignmentByID(ctx, id)
	if err != nil {
		t.Fatalf("get assignment: %v", err)
	}
	if len(a.Tasks) != 1 || a.Tasks[0].TaskID != t1 {
		t.Fatalf("expected only the surviving task, got %v", a.Tasks)
	}
	if len(a.Workers) != 1 || a.Workers[0].EmployeeID != w1 {
		t.Fatalf("expected only the surviving worker, got %v", a.Workers)
	}
}

func TestMemStoreSetAssignmentMembers(t *testing.T) {
	ms := newMemStore()
	ctx := context.Background()

	t1, _ := ms.CreateTask(ctx, CreateTaskRequest{Title: "t1"})
	t2, _ := ms.CreateTask(ctx, CreateTaskRequest{Title: "t2"})
	w1, _ := ms.CreateEmployee(ctx, CreateEmployeeRequest{FullName: "W1", Email: "w1@example.com"})

	id, _ := ms.CreateAssignment(ctx, ts("2123-01-10T00:00:00Z"), StatusPending, []int64{t1}, []int64{w1})

	// nil leaves a member set unchanged, non-nil replaces it wholesale
	if err := ms.SetAssignmentMembers(ctx, id, []int64{t2}, nil); err != nil {
		t.Fatalf("set members: %v", err)
	}

	a, _ := ms.GetAssignmentByID(ctx, id)
	if len(a.Tasks) != 1 || a.Tasks[0].TaskID != t2 {
		t.Fatalf("task set should have been replaced, got %v", a.Tasks)
	}
	if len(a.Workers) != 1 || a.Workers[0].EmployeeID != w1 {
		t.Fatalf("worker set should be untouched, got %v", a.Workers)
	}

	// unknown members are rejected up front
	if err := ms.SetAssignmentMembers(ctx, id, []int64{999}, nil); err == nil {
		t.Fatal("expected an error for an unknown task id")
	}
}

func TestMemStoreDuplicateEmail(t *testing.T) {
	ms := newMemStore()
	ctx := context.Background()

	if _, err := ms.CreateEmployee(ctx, CreateEmployeeRequest{FullName: "A", Email: "a@example.com"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	// case-insensitive
	if _, err := ms.CreateEmployee(ctx, CreateEmployeeRequest{FullName: "B", Email: "A@Example.com"}); err == nil {
		t.Fatal("expected duplicate email error")
	}
}

func TestMemStoreCounts(t *testing.T) {
	ms := newMemStore()
	ctx := context.Background()

	ms.CreateEmployee(ctx, CreateEmployeeRequest{FullName: "A", Email: "a@example.com", NotificationPreference: PrefEmail})
	ms.CreateEmployee(ctx, CreateEmployeeRequest{FullName: "B", Email: "b@example.com", NotificationPreference: PrefNone})
	ms.CreateTask(ctx, CreateTaskRequest{Title: "t", Priority: PriorityHigh})
	tID, _ := ms.CreateTask(ctx, CreateTaskRequest{Title: "u"}) // defaults to MEDIUM
	wID, _ := ms.CreateEmployee(ctx, CreateEmployeeRequest{FullName: "C", Email: "c@example.com"})

	ms.CreateAssignment(ctx, ts("2123-01-10T00:00:00Z"), StatusPending, []int64{tID}, []int64{wID})
	ms.CreateAssignment(ctx, ts("2123-01-10T00:00:00Z"), StatusLateCompleted, []int64{tID}, []int64{wID})
	ms.CreateAssignment(ctx, ts("2020-01-10T00:00:00Z"), StatusOverdue, []int64{tID}, []int64{wID})

	prefs, _ := ms.CountEmployeesByPreference(ctx)
	if prefs.Total != 3 || prefs.Email != 2 || prefs.None != 1 {
		t.Fatalf("unexpected preference counts: %+v", prefs)
	}

	prios, _ := ms.CountTasksByPriority(ctx)
	if prios.Total != 2 || prios.High != 1 || prios.Medium != 1 {
		t.Fatalf("unexpected priority counts: %+v", prios)
	}

	statuses, _ := ms.CountAssignmentsByStatus(ctx)
	if statuses.Total != 3 || statuses.Pending != 1 || statuses.Completed != 1 || statuses.Overdue != 1 {
		t.Fatalf("unexpected status counts: %+v", statuses)
	}
}

func TestMemStoreUpdateAssignmentClearCompletion(t *testing.T) {
	ms := newMemStore()
	ctx := context.Background()

	tID, _ := ms.CreateTask(ctx, CreateTaskRequest{Title: "t"})
	wID, _ := ms.CreateEmployee(ctx, CreateEmployeeRequest{FullName: "W", Email: "w@example.com"})
	id, _ := ms.CreateAssignment(ctx, ts("2123-01-10T00:00:00Z"), StatusPending, []int64{tID}, []int64{wID})

	done := StatusOnTimeCompleted
	if err := ms.UpdateAssignment(ctx, id, AssignmentUpdate{
		SubmissionStatus:     &done,
		ActualCompletionDate: tsp("2123-01-09T00:00:00Z"),
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	a, _ := ms.GetAssignmentByID(ctx, id)
	if a.ActualCompletionDate == nil {
		t.Fatal("completion date not persisted")
	}

	pending := StatusPending
	if err := ms.UpdateAssignment(ctx, id, AssignmentUpdate{
		SubmissionStatus: &pending,
		ClearCompletion:  true,
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	a, _ = ms.GetAssignmentByID(ctx, id)
	if a.ActualCompletionDate != nil {
		t.Fatal("completion date should be cleared")
	}

	if err := ms.UpdateAssignment(ctx, id, AssignmentUpdate{}); !errors.Is(err, errNoFields) {
		t.Fatalf("expected errNoFields for an empty update, got %v", err)
	}
}
