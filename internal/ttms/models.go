package ttms

import (
	"fmt"
	"strings"
	"time"
)

type Employee struct {
	EmployeeID             int64  `json:"employeeid"`
	FullName               string `json:"full_name"`
	Email                  string `json:"email"`
	Department             string `json:"department"`
	NotificationPreference string `json:"notification_preference"`
}

type Task struct {
	TaskID               int64  `json:"taskid"`
	Title                string `json:"title"`
	Description          string `json:"description"`
	StandardDurationDays int    `json:"standard_duration_days"`
	Priority             string `json:"priority"`
}

type TaskAssignment struct {
	AssignmentID         int64      `json:"assignmentid"`
	AssignedDate         time.Time  `json:"assigned_date"`
	RequiredDueDate      time.Time  `json:"required_due_date"`
	ActualCompletionDate *time.Time `json:"actual_completion_date"`
	SubmissionStatus     string     `json:"submission_status"`

	Tasks   []Task     `json:"tasks,omitempty"`
	Workers []Employee `json:"workers,omitempty"`
}

type SystemAlert struct {
	AlertID         int64      `json:"alertid"`
	AssignmentID    int64      `json:"assignmentid"`
	AlertType       string     `json:"alert_type"`
	Message         string     `json:"message"`
	TriggerDatetime time.Time  `json:"trigger_datetime"`
	IsSent          bool       `json:"is_sent"`
	SentDatetime    *time.Time `json:"sent_datetime"`
}

type PerformanceMetric struct {
	MetricID            int64     `json:"metricid"`
	WorkerID            *int64    `json:"workerid"` // nil means a department-level aggregate
	CalculationDate     time.Time `json:"calculation_date"`
	TotalTasksCompleted int       `json:"total_tasks_completed"`
	OnTimeTasksCount    int       `json:"on_time_tasks_count"`
	OnTimePercentage    float64   `json:"on_time_percentage"`
}

// StatusOverride is the audit row written whenever an admin bypasses the
// status derivation through the direct status endpoint.
type StatusOverride struct {
	OverrideID   int64     `json:"overrideid"`
	AssignmentID int64     `json:"assignmentid"`
	OldStatus    string    `json:"old_status"`
	NewStatus    string    `json:"new_status"`
	Actor        string    `json:"actor"`
	Reason       string    `json:"reason"`
	CreatedAt    time.Time `json:"created_at"`
}

type CreateEmployeeRequest struct {
	FullName               string `json:"full_name" form:"full_name" binding:"required,min=2,max=150"`
	Email                  string `json:"email" form:"email" binding:"required,email,max=254"`
	Department             string `json:"department" form:"department" binding:"max=100"`
	NotificationPreference string `json:"notification_preference" form:"notification_preference" binding:"omitempty,oneof=EMAIL IN_APP NONE"`
}

type UpdateEmployeeRequest struct {
	FullName               *string `json:"full_name" form:"full_name" binding:"omitempty,min=2,max=150"`
	Email                  *string `json:"email" form:"email" binding:"omitempty,email,max=254"`
	Department             *string `json:"department" form:"department" binding:"omitempty,max=100"`
	NotificationPreference *string `json:"notification_preference" form:"notification_preference" binding:"omitempty,oneof=EMAIL IN_APP NONE"`
}

type CreateTaskRequest struct {
	Title                string `json:"title" form:"title" binding:"required,min=2,max=200"`
	Description          string `json:"description" form:"description" binding:"max=2000"`
	StandardDurationDays int    `json:"standard_duration_days" form:"standard_duration_days" binding:"omitempty,gt=0,lte=365"`
	Priority             string `json:"priority" form:"priority" binding:"omitempty,oneof=HIGH MEDIUM LOW"`
}

type UpdateTaskRequest struct {
	Title                *string `json:"title" form:"title" binding:"omitempty,min=2,max=200"`
	Description          *string `json:"description" form:"description" binding:"omitempty,max=2000"`
	StandardDurationDays *int    `json:"standard_duration_days" form:"standard_duration_days" binding:"omitempty,gt=0,lte=365"`
	Priority             *string `json:"priority" form:"priority" binding:"omitempty,oneof=HIGH MEDIUM LOW"`
}

// Multi-selects come in as repeated form fields ("tasks", "workers").
type CreateAssignmentRequest struct {
	TaskIDs          []int64 `json:"tasks" form:"tasks" binding:"required,min=1,dive,gt=0"`
	WorkerIDs        []int64 `json:"workers" form:"workers" binding:"required,min=1,dive,gt=0"`
	RequiredDueDate  string  `json:"required_due_date" form:"required_due_date" binding:"required"`
	SubmissionStatus string  `json:"submission_status" form:"submission_status" binding:"omitempty,oneof=PENDING IN_PROGRESS ON_TIME_COMPLETED LATE_COMPLETED OVERDUE"`
}

type EditAssignmentRequest struct {
	TaskIDs              []int64 `json:"tasks" form:"tasks" binding:"omitempty,dive,gt=0"`
	WorkerIDs            []int64 `json:"workers" form:"workers" binding:"omitempty,dive,gt=0"`
	RequiredDueDate      string  `json:"required_due_date" form:"required_due_date"`
	SubmissionStatus     string  `json:"submission_status" form:"submission_status" binding:"omitempty,oneof=PENDING IN_PROGRESS ON_TIME_COMPLETED LATE_COMPLETED OVERDUE"`
	ActualCompletionDate string  `json:"actual_completion_date" form:"actual_completion_date"`
}

type CompleteAssignmentRequest struct {
	ActualCompletionDate string `json:"actual_completion_date" form:"actual_completion_date"`
	CompletionNotes      string `json:"completion_notes" form:"completion_notes" binding:"max=2000"`
}

type BulkUpdateRequest struct {
	AssignmentIDs []int64 `json:"assignment_ids" form:"assignment_ids" binding:"required,min=1,dive,gt=0"`
	Action        string  `json:"action" form:"action" binding:"required,oneof=mark_complete mark_in_progress delete"`
}

type OverrideStatusRequest struct {
	Status string `json:"status" form:"status" binding:"required,oneof=PENDING IN_PROGRESS ON_TIME_COMPLETED LATE_COMPLETED OVERDUE"`
	Actor  string `json:"actor" form:"actor" binding:"max=128"`
	Reason string `json:"reason" form:"reason" binding:"max=500"`
}

type CreateAlertRequest struct {
	AssignmentID int64  `json:"assignment" form:"assignment" binding:"required,gt=0"`
	AlertType    string `json:"alert_type" form:"alert_type" binding:"required,oneof=DEADLINE_WARNING DEADLINE_TODAY OVERDUE_NOTIFICATION SUBMISSION_CONFIRMATION"`
	Message      string `json:"message" form:"message" binding:"required,max=2000"`
}

// AssignmentUpdate carries a partial update for an assignment row.
// ClearCompletion distinguishes "set to null" from "leave unchanged".
type AssignmentUpdate struct {
	RequiredDueDate      *time.Time
	SubmissionStatus     *string
	ActualCompletionDate *time.Time
	ClearCompletion      bool
}

type PreferenceCounts struct {
	Total int `json:"total_employees"`
	Email int `json:"email_count"`
	InApp int `json:"inapp_count"`
	None  int `json:"none_count"`
}

type PriorityCounts struct {
	Total  int `json:"total_tasks"`
	High   int `json:"high_priority_count"`
	Medium int `json:"medium_priority_count"`
	Low    int `json:"low_priority_count"`
}

type StatusCounts struct {
	Total      int `json:"total_assignments"`
	Pending    int `json:"pending_count"`
	InProgress int `json:"in_progress_count"`
	Completed  int `json:"completed_count"` // ON_TIME_COMPLETED + LATE_COMPLETED
	Overdue    int `json:"overdue_count"`
}

func normalizeLimit(n int) int {
	if n <= 0 {
		return 50
	}
	if n > 500 {
		return 500
	}
	return n
}

func employeeOrderClause(order string) string {
	switch order {
	case "name_asc":
		return "full_name ASC"
	case "name_desc":
		return "full_name DESC"
	case "id_desc":
		return "employeeid DESC"
	case "id_asc":
		fallthrough
	default:
		return "employeeid ASC"
	}
}

func taskOrderClause(order string) string {
	switch order {
	case "title_asc":
		return "title ASC"
	case "id_desc":
		return "taskid DESC"
	case "id_asc":
		fallthrough
	default:
		return "taskid ASC"
	}
}

func assignmentOrderClause(order string) string {
	switch order {
	case "due_asc":
		return "required_due_date ASC"
	case "assigned_desc":
		return "assigned_date DESC"
	case "due_desc":
		fallthrough
	default:
		return "required_due_date DESC"
	}
}

// Accepted datetime layouts: the dashboard submits datetime-local values,
// the AJAX clients submit RFC 3339.
var timeInputLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimeInput(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty datetime")
	}
	for _, layout := range timeInputLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unparsable datetime: %q", raw)
}
