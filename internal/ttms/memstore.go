package ttms

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
)

// memStore keeps everything in maps behind one mutex. It mirrors the
// postgres semantics the handlers rely on: pgx.ErrNoRows for missing
// rows, unique employee emails, and cascade deletion of alerts,
// override rows and membership rows with their assignment.
type memStore struct {
	mu sync.Mutex

	employees   map[int64]Employee
	tasks       map[int64]Task
	assignments map[int64]TaskAssignment
	alerts      map[int64]SystemAlert
	metrics     map[int64]PerformanceMetric
	overrides   map[int64]StatusOverride

	// assignment id -> member ids
	assignmentTasks   map[int64][]int64
	assignmentWorkers map[int64][]int64

	nextID int64
}

func newMemStore() *memStore {
	return &memStore{
		employees:         make(map[int64]Employee),
		tasks:             make(map[int64]Task),
		assignments:       make(map[int64]TaskAssignment),
		alerts:            make(map[int64]SystemAlert),
		metrics:           make(map[int64]PerformanceMetric),
		overrides:         make(map[int64]StatusOverride),
		assignmentTasks:   make(map[int64][]int64),
		assignmentWorkers: make(map[int64][]int64),
	}
}

func (s *memStore) Close() {}

func (s *memStore) nextSerial() int64 {
	s.nextID++
	return s.nextID
}

// --- employees ---

func (s *memStore) CreateEmployee(_ context.Context, req CreateEmployeeRequest) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.employees {
		if strings.EqualFold(e.Email, req.Email) {
			return 0, fmt.Errorf("duplicate email: %s", req.Email)
		}
	}

	pref := req.NotificationPreference
	if pref == "" {
		pref = PrefEmail
	}

	id := s.nextSerial()
	s.employees[id] = Employee{
		EmployeeID:             id,
		FullName:               req.FullName,
		Email:                  req.Email,
		Department:             req.Department,
		NotificationPreference: pref,
	}
	return id, nil
}

func (s *memStore) UpdateEmployee(_ context.Context, id int64, req UpdateEmployeeRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.employees[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if req.FullName == nil && req.Email == nil && req.Department == nil && req.NotificationPreference == nil {
		return errNoFields
	}

	if req.FullName != nil {
		e.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Email != nil {
		for otherID, other := range s.employees {
			if otherID != id && strings.EqualFold(other.Email, *req.Email) {
				return fmt.Errorf("duplicate email: %s", *req.Email)
			}
		}
		e.Email = *req.Email
	}
	if req.Department != nil {
		e.Department = *req.Department
	}
	if req.NotificationPreference != nil {
		e.NotificationPreference = *req.NotificationPreference
	}

	s.employees[id] = e
	return nil
}

func (s *memStore) DeleteEmployee(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.employees[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(s.employees, id)

	// detach from assignment worker sets
	for aid, workers := range s.assignmentWorkers {
		s.assignmentWorkers[aid] = removeID(workers, id)
	}
	return nil
}

func (s *memStore) GetEmployeeByID(_ context.Context, id int64) (*Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.employees[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &e, nil
}

func (s *memStore) ListEmployees(_ context.Context, limit int, order string) ([]Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit = normalizeLimit(limit)
	out := make([]Employee, 0, len(s.employees))
	for _, e := range s.employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		switch order {
		case "name_asc":
			return out[i].FullName < out[j].FullName
		case "name_desc":
			return out[i].FullName > out[j].FullName
		case "id_desc":
			return out[i].EmployeeID > out[j].EmployeeID
		default:
			return out[i].EmployeeID < out[j].EmployeeID
		}
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) CountEmployeesByPreference(_ context.Context) (PreferenceCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var c PreferenceCounts
	for _, e := range s.employees {
		c.Total++
		switch e.NotificationPreference {
		case PrefEmail:
			c.Email++
		case PrefInApp:
			c.InApp++
		case PrefNone:
			c.None++
		}
	}
	return c, nil
}

// --- task definitions ---

func (s *memStore) CreateTask(_ context.Context, req CreateTaskRequest) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	priority := req.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	duration := req.StandardDurationDays
	if duration <= 0 {
		duration = 3
	}

	id := s.nextSerial()
	s.tasks[id] = Task{
		TaskID:               id,
		Title:                req.Title,
		Description:          req.Description,
		StandardDurationDays: duration,
		Priority:             priority,
	}
	return id, nil
}

func (s *memStore) UpdateTask(_ context.Context, id int64, req UpdateTaskRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if req.Title == nil && req.Description == nil && req.StandardDurationDays == nil && req.Priority == nil {
		return errNoFields
	}

	if req.Title != nil {
		t.Title = *req.Title
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.StandardDurationDays != nil {
		t.StandardDurationDays = *req.StandardDurationDays
	}
	if req.Priority != nil {
		t.Priority = *req.Priority
	}

	s.tasks[id] = t
	return nil
}

func (s *memStore) DeleteTask(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(s.tasks, id)

	for aid, tasks := range s.assignmentTasks {
		s.assignmentTasks[aid] = removeID(tasks, id)
	}
	return nil
}

func (s *memStore) GetTaskByID(_ context.Context, id int64) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &t, nil
}

func (s *memStore) ListTasks(_ context.Context, limit int, order string) ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit = normalizeLimit(limit)
	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		switch order {
		case "title_asc":
			return out[i].Title < out[j].Title
		case "id_desc":
			return out[i].TaskID > out[j].TaskID
		default:
			return out[i].TaskID < out[j].TaskID
		}
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) CountTasksByPriority(_ context.Context) (PriorityCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var c PriorityCounts
	for _, t := range s.tasks {
		c.Total++
		switch t.Priority {
		case PriorityHigh:
			c.High++
		case PriorityMedium:
			c.Medium++
		case PriorityLow:
			c.Low++
		}
	}
	return c, nil
}

// --- assignments ---

func (s *memStore) CreateAssignment(_ context.Context, due time.Time, status string, taskIDs, workerIDs []int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, taskID := range taskIDs {
		if _, ok := s.tasks[taskID]; !ok {
			return 0, fmt.Errorf("unknown taskid %d", taskID)
		}
	}
	for _, workerID := range workerIDs {
		if _, ok := s.employees[workerID]; !ok {
			return 0, fmt.Errorf("unknown employeeid %d", workerID)
		}
	}

	id := s.nextSerial()
	s.assignments[id] = TaskAssignment{
		AssignmentID:     id,
		AssignedDate:     time.Now().UTC(),
		RequiredDueDate:  due,
		SubmissionStatus: status,
	}
	s.assignmentTasks[id] = append([]int64(nil), taskIDs...)
	s.assignmentWorkers[id] = append([]int64(nil), workerIDs...)
	return id, nil
}

// expand attaches copies of the member entities; caller holds the lock.
func (s *memStore) expand(a TaskAssignment) TaskAssignment {
	taskIDs := append([]int64(nil), s.assignmentTasks[a.AssignmentID]...)
	workerIDs := append([]int64(nil), s.assignmentWorkers[a.AssignmentID]...)
	sort.Slice(taskIDs, func(i, j int) bool { return taskIDs[i] < taskIDs[j] })
	sort.Slice(workerIDs, func(i, j int) bool { return workerIDs[i] < workerIDs[j] })

	a.Tasks = make([]Task, 0, len(taskIDs))
	for _, id := range taskIDs {
		if t, ok := s.tasks[id]; ok {
			a.Tasks = append(a.Tasks, t)
		}
	}
	a.Workers = make([]Employee, 0, len(workerIDs))
	for _, id := range workerIDs {
		if e, ok := s.employees[id]; ok {
			a.Workers = append(a.Workers, e)
		}
	}
	return a
}

func (s *memStore) GetAssignmentByID(_ context.Context, id int64) (*TaskAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assignments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	expanded := s.expand(a)
	return &expanded, nil
}

func (s *memStore) ListAssignments(_ context.Context, limit int, order string) ([]TaskAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit = normalizeLimit(limit)
	out := make([]TaskAssignment, 0, len(s.assignments))
	for _, a := range s.assignments {
		out = append(out, s.expand(a))
	}
	sort.Slice(out, func(i, j int) bool {
		switch order {
		case "due_asc":
			return out[i].RequiredDueDate.Before(out[j].RequiredDueDate)
		case "assigned_desc":
			return out[i].AssignedDate.After(out[j].AssignedDate)
		default:
			return out[i].RequiredDueDate.After(out[j].RequiredDueDate)
		}
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) UpdateAssignment(_ context.Context, id int64, upd AssignmentUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.assignments[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if upd.RequiredDueDate == nil && upd.SubmissionStatus == nil &&
		upd.ActualCompletionDate == nil && !upd.ClearCompletion {
		return errNoFields
	}

	if upd.RequiredDueDate != nil {
		a.RequiredDueDate = *upd.RequiredDueDate
	}
	if upd.SubmissionStatus != nil {
		a.SubmissionStatus = *upd.SubmissionStatus
	}
	if upd.ClearCompletion {
		a.ActualCompletionDate = nil
	} else if upd.ActualCompletionDate != nil {
		t := *upd.ActualCompletionDate
		a.ActualCompletionDate = &t
	}

	s.assignments[id] = a
	return nil
}

func (s *memStore) DeleteAssignment(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.assignments[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(s.assignments, id)
	delete(s.assignmentTasks, id)
	delete(s.assignmentWorkers, id)

	for alertID, al := range s.alerts {
		if al.AssignmentID == id {
			delete(s.alerts, alertID)
		}
	}
	for ovID, ov := range s.overrides {
		if ov.AssignmentID == id {
			delete(s.overrides, ovID)
		}
	}
	return nil
}

func (s *memStore) SetAssignmentMembers(_ context.Context, id int64, taskIDs, workerIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.assignments[id]; !ok {
		return pgx.ErrNoRows
	}

	if taskIDs != nil {
		for _, taskID := range taskIDs {
			if _, ok := s.tasks[taskID]; !ok {
				return fmt.Errorf("unknown taskid %d", taskID)
			}
		}
		s.assignmentTasks[id] = append([]int64(nil), taskIDs...)
	}
	if workerIDs != nil {
		for _, workerID := range workerIDs {
			if _, ok := s.employees[workerID]; !ok {
				return fmt.Errorf("unknown employeeid %d", workerID)
			}
		}
		s.assignmentWorkers[id] = append([]int64(nil), workerIDs...)
	}
	return nil
}

func (s *memStore) CountAssignmentsByStatus(_ context.Context) (StatusCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var c StatusCounts
	for _, a := range s.assignments {
		c.Total++
		switch a.SubmissionStatus {
		case StatusPending:
			c.Pending++
		case StatusInProgress:
			c.InProgress++
		case StatusOnTimeCompleted, StatusLateCompleted:
			c.Completed++
		case StatusOverdue:
			c.Overdue++
		}
	}
	return c, nil
}

// --- system alerts ---

func (s *memStore) CreateAlert(_ context.Context, assignmentID int64, alertType, message string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.assignments[assignmentID]; !ok {
		return 0, pgx.ErrNoRows
	}

	id := s.nextSerial()
	s.alerts[id] = SystemAlert{
		AlertID:         id,
		AssignmentID:    assignmentID,
		AlertType:       alertType,
		Message:         message,
		TriggerDatetime: time.Now().UTC(),
	}
	return id, nil
}

func (s *memStore) ListAlerts(_ context.Context, limit int) ([]SystemAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit = normalizeLimit(limit)
	out := make([]SystemAlert, 0, len(s.alerts))
	for _, al := range s.alerts {
		out = append(out, al)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].TriggerDatetime.After(out[j].TriggerDatetime)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) DeleteAlert(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.alerts[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(s.alerts, id)
	return nil
}

// --- performance metrics ---

func (s *memStore) ListMetrics(_ context.Context, limit int) ([]PerformanceMetric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit = normalizeLimit(limit)
	out := make([]PerformanceMetric, 0, len(s.metrics))
	for _, m := range s.metrics {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CalculationDate.After(out[j].CalculationDate)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- status override audit ---

func (s *memStore) CreateStatusOverride(_ context.Context, ov StatusOverride) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSerial()
	ov.OverrideID = id
	if ov.CreatedAt.IsZero() {
		ov.CreatedAt = time.Now().UTC()
	}
	s.overrides[id] = ov
	return id, nil
}

func (s *memStore) ListStatusOverrides(_ context.Context, assignmentID int64) ([]StatusOverride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []StatusOverride
	for _, ov := range s.overrides {
		if ov.AssignmentID == assignmentID {
			out = append(out, ov)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].OverrideID < out[j].OverrideID
	})
	return out, nil
}

func removeID(ids []int64, id int64) []int64 {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
