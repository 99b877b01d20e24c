package ttms

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"

	"kyri56xcaesar/ttms-proj/internal/logging"
	"kyri56xcaesar/ttms-proj/internal/utils"
)

// bindError keeps validation failures distinguishable from everything
// else: binding errors come back with per-field detail instead of one
// opaque message.
func bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[utils.ToSnakeCase(fe.Field())] = fe.Tag()
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": fields})

		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
}

func fieldError(c *gin.Context, field, problem string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":  "validation failed",
		"fields": gin.H{field: problem},
	})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing/invalid id"})

		return 0, false
	}
	return id, true
}

func dbError(c *gin.Context, op string, err error) {
	if errors.Is(err, pgx.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})

		return
	}
	logging.Logger.Errorf("%s: %v", op, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
}

// --- dashboard overview ---

func handleDashboard(c *gin.Context) {
	ctx := c.Request.Context()

	prefs, err := store.CountEmployeesByPreference(ctx)
	if err != nil {
		dbError(c, "count employees", err)
		return
	}
	prios, err := store.CountTasksByPriority(ctx)
	if err != nil {
		dbError(c, "count tasks", err)
		return
	}
	statuses, err := store.CountAssignmentsByStatus(ctx)
	if err != nil {
		dbError(c, "count assignments", err)
		return
	}

	respondInFormat(c, gin.H{
		"page_title":  "Dashboard",
		"employees":   prefs,
		"tasks":       prios,
		"assignments": statuses,
	}, "dashboard.html")
}

// --- employees ---

func handleUsersPage(c *gin.Context) {
	ctx := c.Request.Context()

	employees, err := store.ListEmployees(ctx, normalizeLimit(0), c.DefaultQuery("order", "id_asc"))
	if err != nil {
		dbError(c, "list employees", err)
		return
	}
	counts, err := store.CountEmployeesByPreference(ctx)
	if err != nil {
		dbError(c, "count employees", err)
		return
	}

	respondInFormat(c, gin.H{
		"page_title":      "Employee Management",
		"employees":       employees,
		"total_employees": counts.Total,
		"email_count":     counts.Email,
		"inapp_count":     counts.InApp,
		"none_count":      counts.None,
	}, "employees.html")
}

func handleUserAdd(c *gin.Context) {
	var req CreateEmployeeRequest
	if err := c.ShouldBind(&req); err != nil {
		bindError(c, err)
		return
	}

	id, err := store.CreateEmployee(c.Request.Context(), req)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate") {
			fieldError(c, "email", "already in use")
			return
		}
		dbError(c, "create employee", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "ok", "employeeid": id})
}

func handleUserEdit(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req UpdateEmployeeRequest
	if err := c.ShouldBind(&req); err != nil {
		bindError(c, err)
		return
	}

	if err := store.UpdateEmployee(c.Request.Context(), id, req); err != nil {
		if errors.Is(err, errNoFields) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "provide fields to update"})
			return
		}
		if strings.Contains(err.Error(), "duplicate") {
			fieldError(c, "email", "already in use")
			return
		}
		dbError(c, "update employee", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func handleUserDelete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := store.DeleteEmployee(c.Request.Context(), id); err != nil {
		dbError(c, "delete employee", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func handleUserGet(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	e, err := store.GetEmployeeByID(c.Request.Context(), id)
	if err != nil {
		dbError(c, "get employee", err)
		return
	}

	c.JSON(http.StatusOK, e)
}

// --- task definitions ---

func handleTasksPage(c *gin.Context) {
	ctx := c.Request.Context()

	tasks, err := store.ListTasks(ctx, normalizeLimit(0), c.DefaultQuery("order", "id_asc"))
	if err != nil {
		dbError(c, "list tasks", err)
		return
	}
	counts, err := store.CountTasksByPriority(ctx)
	if err != nil {
		dbError(c, "count tasks", err)
		return
	}

	respondInFormat(c, gin.H{
		"page_title":            "Task Management",
		"tasks":                 tasks,
		"total_tasks":           counts.Total,
		"high_priority_count":   counts.High,
		"medium_priority_count": counts.Medium,
		"low_priority_count":    counts.Low,
	}, "tasks.html")
}

func handleTaskAdd(c *gin.Context) {
	var req CreateTaskRequest
	if err := c.ShouldBind(&req); err != nil {
		bindError(c, err)
		return
	}

	id, err := store.CreateTask(c.Request.Context(), req)
	if err != nil {
		dbError(c, "create task", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "ok", "taskid": id})
}

func handleTaskEdit(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if err := c.ShouldBind(&req); err != nil {
		bindError(c, err)
		return
	}

	if err := store.UpdateTask(c.Request.Context(), id, req); err != nil {
		if errors.Is(err, errNoFields) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "provide fields to update"})
			return
		}
		dbError(c, "update task", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func handleTaskDelete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := store.DeleteTask(c.Request.Context(), id); err != nil {
		dbError(c, "delete task", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func handleTaskGet(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	t, err := store.GetTaskByID(c.Request.Context(), id)
	if err != nil {
		dbError(c, "get task", err)
		return
	}

	c.JSON(http.StatusOK, t)
}

// --- assignments ---

func handleAssignPage(c *gin.Context) {
	ctx := c.Request.Context()

	assignments, err := store.ListAssignments(ctx, normalizeLimit(0), c.DefaultQuery("order", "due_desc"))
	if err != nil {
		dbError(c, "list assignments", err)
		return
	}
	counts, err := store.CountAssignmentsByStatus(ctx)
	if err != nil {
		dbError(c, "count assignments", err)
		return
	}
	// for the add/edit modals
	availableTasks, err := store.ListTasks(ctx, normalizeLimit(0), "id_asc")
	if err != nil {
		dbError(c, "list tasks", err)
		return
	}
	availableEmployees, err := store.ListEmployees(ctx, normalizeLimit(0), "id_asc")
	if err != nil {
		dbError(c, "list employees", err)
		return
	}

	respondInFormat(c, gin.H{
		"page_title":          "Task Assignments",
		"assignments":         assignments,
		"total_assignments":   counts.Total,
		"pending_count":       counts.Pending,
		"in_progress_count":   counts.InProgress,
		"completed_count":     counts.Completed,
		"overdue_count":       counts.Overdue,
		"available_tasks":     availableTasks,
		"available_employees": availableEmployees,
		"now":                 time.Now().UTC(),
	}, "assignments.html")
}

func handleAssignAdd(c *gin.Context) {
	var req CreateAssignmentRequest
	if err := c.ShouldBind(&req); err != nil {
		bindError(c, err)
		return
	}
	if utils.HasDuplicatesInt64(req.TaskIDs) {
		fieldError(c, "tasks", "duplicate ids")
		return
	}
	if utils.HasDuplicatesInt64(req.WorkerIDs) {
		fieldError(c, "workers", "duplicate ids")
		return
	}

	due, err := parseTimeInput(req.RequiredDueDate)
	if err != nil {
		fieldError(c, "required_due_date", err.Error())
		return
	}

	status := req.SubmissionStatus
	if status == "" {
		status = StatusPending
	}
	status = DeriveStatus(status, due, nil, time.Now().UTC())

	id, err := store.CreateAssignment(c.Request.Context(), due, status, req.TaskIDs, req.WorkerIDs)
	if err != nil {
		if strings.Contains(err.Error(), "unknown") {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		dbError(c, "create assignment", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "ok", "assignmentid": id, "submission_status": status})
}

func handleAssignEdit(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	a, err := store.GetAssignmentByID(c.Request.Context(), id)
	if err != nil {
		dbError(c, "get assignment", err)
		return
	}

	var req EditAssignmentRequest
	if err := c.ShouldBind(&req); err != nil {
		bindError(c, err)
		return
	}
	if utils.HasDuplicatesInt64(req.TaskIDs) {
		fieldError(c, "tasks", "duplicate ids")
		return
	}
	if utils.HasDuplicatesInt64(req.WorkerIDs) {
		fieldError(c, "workers", "duplicate ids")
		return
	}

	due := a.RequiredDueDate
	if strings.TrimSpace(req.RequiredDueDate) != "" {
		due, err = parseTimeInput(req.RequiredDueDate)
		if err != nil {
			fieldError(c, "required_due_date", err.Error())
			return
		}
	}

	// an absent status falls back to PENDING, matching the edit form
	status := req.SubmissionStatus
	if status == "" {
		status = StatusPending
	}

	// a completion date only sticks alongside a completed status; any
	// non-completed status clears it
	completion := a.ActualCompletionDate
	clearCompletion := false
	if strings.TrimSpace(req.ActualCompletionDate) != "" && IsTerminal(status) {
		t, err := parseTimeInput(req.ActualCompletionDate)
		if err != nil {
			fieldError(c, "actual_completion_date", err.Error())
			return
		}
		completion = &t
	} else if !IsTerminal(status) {
		completion = nil
		clearCompletion = true
	}

	if len(req.TaskIDs) > 0 || len(req.WorkerIDs) > 0 {
		var taskIDs, workerIDs []int64
		if len(req.TaskIDs) > 0 {
			taskIDs = req.TaskIDs
		}
		if len(req.WorkerIDs) > 0 {
			workerIDs = req.WorkerIDs
		}
		if err := store.SetAssignmentMembers(c.Request.Context(), id, taskIDs, workerIDs); err != nil {
			if strings.Contains(err.Error(), "unknown") {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			dbError(c, "set assignment members", err)
			return
		}
	}

	derived := DeriveStatus(status, due, completion, time.Now().UTC())

	upd := AssignmentUpdate{
		RequiredDueDate:      &due,
		SubmissionStatus:     &derived,
		ActualCompletionDate: completion,
		ClearCompletion:      clearCompletion,
	}
	if err := store.UpdateAssignment(c.Request.Context(), id, upd); err != nil {
		dbError(c, "update assignment", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "submission_status": derived})
}

func handleAssignDelete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	a, err := store.GetAssignmentByID(c.Request.Context(), id)
	if err != nil {
		dbError(c, "get assignment", err)
		return
	}

	if IsTerminal(a.SubmissionStatus) {
		c.JSON(http.StatusConflict, gin.H{"error": "cannot delete a completed assignment"})
		return
	}

	if err := store.DeleteAssignment(c.Request.Context(), id); err != nil {
		dbError(c, "delete assignment", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func handleAssignComplete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	a, err := store.GetAssignmentByID(c.Request.Context(), id)
	if err != nil {
		dbError(c, "get assignment", err)
		return
	}

	var req CompleteAssignmentRequest
	if err := c.ShouldBind(&req); err != nil {
		bindError(c, err)
		return
	}

	now := time.Now().UTC()
	completion := now
	if strings.TrimSpace(req.ActualCompletionDate) != "" {
		completion, err = parseTimeInput(req.ActualCompletionDate)
		if err != nil {
			fieldError(c, "actual_completion_date", err.Error())
			return
		}
	}

	derived := DeriveStatus(a.SubmissionStatus, a.RequiredDueDate, &completion, now)

	upd := AssignmentUpdate{
		SubmissionStatus:     &derived,
		ActualCompletionDate: &completion,
	}
	if err := store.UpdateAssignment(c.Request.Context(), id, upd); err != nil {
		dbError(c, "complete assignment", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":            "ok",
		"submission_status": derived,
		"status_display":    StatusDisplay(derived),
	})
}

// handleAssignRecompute re-derives the status from scratch. This is the
// one place a terminal status can move again, after a completion date
// correction or removal.
func handleAssignRecompute(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	a, err := store.GetAssignmentByID(c.Request.Context(), id)
	if err != nil {
		dbError(c, "get assignment", err)
		return
	}

	derived := RecomputeStatus(a.SubmissionStatus, a.RequiredDueDate, a.ActualCompletionDate, time.Now().UTC())
	if derived != a.SubmissionStatus {
		upd := AssignmentUpdate{SubmissionStatus: &derived}
		if err := store.UpdateAssignment(c.Request.Context(), id, upd); err != nil {
			dbError(c, "recompute assignment", err)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":            "ok",
		"submission_status": derived,
		"changed":           derived != a.SubmissionStatus,
	})
}

func handleAssignSnapshot(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	a, err := store.GetAssignmentByID(c.Request.Context(), id)
	if err != nil {
		dbError(c, "get assignment", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":                     a.AssignmentID,
		"assigned_date":          a.AssignedDate.Format(time.RFC3339),
		"required_due_date":      a.RequiredDueDate.Format(time.RFC3339),
		"actual_completion_date": formatNullableTime(a.ActualCompletionDate),
		"submission_status":      a.SubmissionStatus,
		"status_display":         StatusDisplay(a.SubmissionStatus),
		"is_overdue":             a.SubmissionStatus == StatusOverdue,
		"tasks":                  a.Tasks,
		"workers":                a.Workers,
	})
}

// handleAssignStatusOverride sets the status to whatever the caller
// asked for, bypassing the derivation. Every use leaves an audit row.
func handleAssignStatusOverride(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	a, err := store.GetAssignmentByID(c.Request.Context(), id)
	if err != nil {
		dbError(c, "get assignment", err)
		return
	}

	var req OverrideStatusRequest
	if err := c.ShouldBind(&req); err != nil {
		bindError(c, err)
		return
	}

	actor := c.GetString("auth.username")
	if actor == "" {
		actor = req.Actor
	}
	if actor == "" {
		actor = "admin"
	}

	upd := AssignmentUpdate{SubmissionStatus: &req.Status}
	if err := store.UpdateAssignment(c.Request.Context(), id, upd); err != nil {
		dbError(c, "override assignment status", err)
		return
	}

	if _, err := store.CreateStatusOverride(c.Request.Context(), StatusOverride{
		AssignmentID: id,
		OldStatus:    a.SubmissionStatus,
		NewStatus:    req.Status,
		Actor:        actor,
		Reason:       req.Reason,
	}); err != nil {
		// the status change itself went through
		logging.Logger.Errorf("failed to record status override for assignment %d: %v", id, err)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"message":            "Status updated to " + StatusDisplay(req.Status),
		"new_status":         req.Status,
		"new_status_display": StatusDisplay(req.Status),
	})
}

func handleAssignOverridesList(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if _, err := store.GetAssignmentByID(c.Request.Context(), id); err != nil {
		dbError(c, "get assignment", err)
		return
	}

	overrides, err := store.ListStatusOverrides(c.Request.Context(), id)
	if err != nil {
		dbError(c, "list status overrides", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": overrides})
}

func handleAssignBulkUpdate(c *gin.Context) {
	var req BulkUpdateRequest
	if err := c.ShouldBind(&req); err != nil {
		bindError(c, err)
		return
	}
	if utils.HasDuplicatesInt64(req.AssignmentIDs) {
		fieldError(c, "assignment_ids", "duplicate ids")
		return
	}

	ctx := c.Request.Context()
	now := time.Now().UTC()
	updated, skipped := 0, 0

	// sequential on purpose: partial failure leaves earlier records
	// changed, missing ids are skipped without aborting the rest
	for _, id := range req.AssignmentIDs {
		a, err := store.GetAssignmentByID(ctx, id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				skipped++
				continue
			}
			dbError(c, "bulk get assignment", err)
			return
		}

		switch req.Action {
		case "mark_complete":
			if IsTerminal(a.SubmissionStatus) {
				skipped++
				continue
			}
			completion := now
			derived := DeriveStatus(a.SubmissionStatus, a.RequiredDueDate, &completion, now)
			err = store.UpdateAssignment(ctx, id, AssignmentUpdate{
				SubmissionStatus:     &derived,
				ActualCompletionDate: &completion,
			})

		case "mark_in_progress":
			if a.SubmissionStatus != StatusPending {
				skipped++
				continue
			}
			inProgress := StatusInProgress
			err = store.UpdateAssignment(ctx, id, AssignmentUpdate{SubmissionStatus: &inProgress})

		case "delete":
			// bulk delete is stricter than single delete: overdue
			// assignments are kept too
			if a.SubmissionStatus != StatusPending && a.SubmissionStatus != StatusInProgress {
				skipped++
				continue
			}
			err = store.DeleteAssignment(ctx, id)
		}

		if err != nil {
			dbError(c, "bulk update assignment", err)
			return
		}
		updated++
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"action":  req.Action,
		"updated": updated,
		"skipped": skipped,
	})
}

// --- system alerts ---

func handleAlertsPage(c *gin.Context) {
	alerts, err := store.ListAlerts(c.Request.Context(), normalizeLimit(0))
	if err != nil {
		dbError(c, "list alerts", err)
		return
	}

	respondInFormat(c, gin.H{
		"page_title": "System Alerts",
		"alerts":     alerts,
	}, "alerts.html")
}

func handleAlertAdd(c *gin.Context) {
	var req CreateAlertRequest
	if err := c.ShouldBind(&req); err != nil {
		bindError(c, err)
		return
	}

	id, err := store.CreateAlert(c.Request.Context(), req.AssignmentID, req.AlertType, req.Message)
	if err != nil {
		dbError(c, "create alert", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "ok", "alertid": id})
}

func handleAlertDelete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := store.DeleteAlert(c.Request.Context(), id); err != nil {
		dbError(c, "delete alert", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// --- performance metrics ---

func handleMetricsPage(c *gin.Context) {
	metrics, err := store.ListMetrics(c.Request.Context(), normalizeLimit(0))
	if err != nil {
		dbError(c, "list metrics", err)
		return
	}

	respondInFormat(c, gin.H{
		"page_title": "Performance Metrics",
		"metrics":    metrics,
	}, "metrics.html")
}

// --- misc ---

func handleLogout(c *gin.Context) {
	// session handling lives in the identity provider; this only clears
	// the cookie fallback the middleware accepts
	c.SetCookie("access_token", "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}
