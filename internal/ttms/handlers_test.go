package ttms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func setupTestEnv(t *testing.T) *memStore {
	t.Helper()

	gin.SetMode(gin.TestMode)

	ms := newMemStore()
	store = ms
	config = Config{} // auth off
	engine = gin.New()
	setRoutes()

	return ms
}

func doForm(t *testing.T, method, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()

	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}

	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("bad json body %q: %v", w.Body.String(), err)
	}
	return out
}

func seedEmployee(t *testing.T, ms *memStore, name, email string) int64 {
	t.Helper()

	id, err := ms.CreateEmployee(context.Background(), CreateEmployeeRequest{
		FullName: name, Email: email, NotificationPreference: PrefEmail,
	})
	if err != nil {
		t.Fatalf("seed employee: %v", err)
	}
	return id
}

func seedTask(t *testing.T, ms *memStore, title string) int64 {
	t.Helper()

	id, err := ms.CreateTask(context.Background(), CreateTaskRequest{
		Title: title, Priority: PriorityMedium, StandardDurationDays: 3,
	})
	if err != nil {
		t.Fatalf("seed task: %v", err)
	}
	return id
}

func seedAssignment(t *testing.T, ms *memStore, due time.Time, status string, taskIDs, workerIDs []int64) int64 {
	t.Helper()

	id, err := ms.CreateAssignment(context.Background(), due, status, taskIDs, workerIDs)
	if err != nil {
		t.Fatalf("seed assignment: %v", err)
	}
	return id
}

func TestEmployeeCRUD(t *testing.T) {
	setupTestEnv(t)

	form := url.Values{}
	form.Set("full_name", "Ada Lovelace")
	form.Set("email", "ada@example.com")
	form.Set("department", "Engineering")
	form.Set("notification_preference", "IN_APP")

	w := doForm(t, http.MethodPost, "/dashboard/users/add/", form)
	if w.Code != http.StatusCreated {
		t.Fatalf("add employee: got %d, body %s", w.Code, w.Body.String())
	}
	id := int64(decodeJSON(t, w)["employeeid"].(float64))

	w = doForm(t, http.MethodGet, "/dashboard/users/get/"+strconv.FormatInt(id, 10)+"/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get employee: got %d", w.Code)
	}
	got := decodeJSON(t, w)
	if got["full_name"] != "Ada Lovelace" || got["notification_preference"] != "IN_APP" {
		t.Fatalf("unexpected employee snapshot: %v", got)
	}

	edit := url.Values{}
	edit.Set("department", "Research")
	w = doForm(t, http.MethodPost, "/dashboard/users/edit/"+strconv.FormatInt(id, 10)+"/", edit)
	if w.Code != http.StatusOK {
		t.Fatalf("edit employee: got %d, body %s", w.Code, w.Body.String())
	}

	w = doForm(t, http.MethodGet, "/dashboard/users/?format=json", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("users page: got %d", w.Code)
	}
	page := decodeJSON(t, w)
	if page["total_employees"].(float64) != 1 || page["inapp_count"].(float64) != 1 {
		t.Fatalf("unexpected counts: %v", page)
	}

	w = doForm(t, http.MethodPost, "/dashboard/users/delete/"+strconv.FormatInt(id, 10)+"/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete employee: got %d", w.Code)
	}
	w = doForm(t, http.MethodGet, "/dashboard/users/get/"+strconv.FormatInt(id, 10)+"/", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", w.Code)
	}
}

func TestEmployeeValidationDetail(t *testing.T) {
	setupTestEnv(t)

	form := url.Values{}
	form.Set("full_name", "X") // too short
	// email missing entirely

	w := doForm(t, http.MethodPost, "/dashboard/users/add/", form)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	body := decodeJSON(t, w)
	fields, ok := body["fields"].(map[string]any)
	if !ok {
		t.Fatalf("expected field-level detail, got %v", body)
	}
	if _, ok := fields["email"]; !ok {
		t.Fatalf("expected email field error, got %v", fields)
	}
}

func TestAssignmentCreateDerivesStatus(t *testing.T) {
	ms := setupTestEnv(t)

	taskID := seedTask(t, ms, "file the report")
	workerID := seedEmployee(t, ms, "Grace Hopper", "grace@example.com")

	// past due, no completion: created straight into OVERDUE
	form := url.Values{}
	form.Add("tasks", strconv.FormatInt(taskID, 10))
	form.Add("workers", strconv.FormatInt(workerID, 10))
	form.Set("required_due_date", "2020-01-10T00:00")

	w := doForm(t, http.MethodPost, "/dashboard/assign/add/", form)
	if w.Code != http.StatusCreated {
		t.Fatalf("add assignment: got %d, body %s", w.Code, w.Body.String())
	}
	if st := decodeJSON(t, w)["submission_status"]; st != StatusOverdue {
		t.Fatalf("expected OVERDUE on creation past due, got %v", st)
	}

	// future due stays PENDING
	form.Set("required_due_date", "2123-01-10T00:00")
	w = doForm(t, http.MethodPost, "/dashboard/assign/add/", form)
	if w.Code != http.StatusCreated {
		t.Fatalf("add assignment: got %d", w.Code)
	}
	if st := decodeJSON(t, w)["submission_status"]; st != StatusPending {
		t.Fatalf("expected PENDING, got %v", st)
	}
}

func TestAssignmentCreateRejectsDuplicateSelection(t *testing.T) {
	ms := setupTestEnv(t)

	taskID := seedTask(t, ms, "audit")
	workerID := seedEmployee(t, ms, "A", "a@example.com")

	form := url.Values{}
	form.Add("tasks", strconv.FormatInt(taskID, 10))
	form.Add("tasks", strconv.FormatInt(taskID, 10))
	form.Add("workers", strconv.FormatInt(workerID, 10))
	form.Set("required_due_date", "2123-01-10T00:00")

	w := doForm(t, http.MethodPost, "/dashboard/assign/add/", form)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate task ids, got %d", w.Code)
	}
}

func TestAssignmentComplete(t *testing.T) {
	ms := setupTestEnv(t)

	taskID := seedTask(t, ms, "t")
	workerID := seedEmployee(t, ms, "W", "w@example.com")
	due := ts("2123-01-10T00:00:00Z")

	onTime := seedAssignment(t, ms, due, StatusPending, []int64{taskID}, []int64{workerID})
	form := url.Values{}
	form.Set("actual_completion_date", "2123-01-09T00:00")
	w := doForm(t, http.MethodPost, "/dashboard/assign/complete/"+strconv.FormatInt(onTime, 10)+"/", form)
	if w.Code != http.StatusOK {
		t.Fatalf("complete: got %d, body %s", w.Code, w.Body.String())
	}
	if st := decodeJSON(t, w)["submission_status"]; st != StatusOnTimeCompleted {
		t.Fatalf("expected ON_TIME_COMPLETED, got %v", st)
	}

	late := seedAssignment(t, ms, due, StatusPending, []int64{taskID}, []int64{workerID})
	form.Set("actual_completion_date", "2123-01-12T00:00")
	w = doForm(t, http.MethodPost, "/dashboard/assign/complete/"+strconv.FormatInt(late, 10)+"/", form)
	if st := decodeJSON(t, w)["submission_status"]; st != StatusLateCompleted {
		t.Fatalf("expected LATE_COMPLETED, got %v", st)
	}

	// defaulting to now on an already-past due date lands in LATE_COMPLETED
	overdue := seedAssignment(t, ms, ts("2020-01-10T00:00:00Z"), StatusOverdue, []int64{taskID}, []int64{workerID})
	w = doForm(t, http.MethodPost, "/dashboard/assign/complete/"+strconv.FormatInt(overdue, 10)+"/", url.Values{})
	if st := decodeJSON(t, w)["submission_status"]; st != StatusLateCompleted {
		t.Fatalf("expected LATE_COMPLETED when defaulting to now, got %v", st)
	}
}

func TestAssignmentDeletePolicy(t *testing.T) {
	ms := setupTestEnv(t)

	taskID := seedTask(t, ms, "t")
	workerID := seedEmployee(t, ms, "W", "w@example.com")
	due := ts("2123-01-10T00:00:00Z")

	completed := seedAssignment(t, ms, due, StatusOnTimeCompleted, []int64{taskID}, []int64{workerID})
	w := doForm(t, http.MethodPost, "/dashboard/assign/delete/"+strconv.FormatInt(completed, 10)+"/", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 deleting completed assignment, got %d", w.Code)
	}

	// pending and overdue assignments stay deletable one by one
	for _, status := range []string{StatusPending, StatusOverdue} {
		id := seedAssignment(t, ms, due, status, []int64{taskID}, []int64{workerID})
		w = doForm(t, http.MethodPost, "/dashboard/assign/delete/"+strconv.FormatInt(id, 10)+"/", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected %s assignment deletable, got %d", status, w.Code)
		}
	}
}

func TestAssignmentEditClearsCompletionForLiveStatus(t *testing.T) {
	ms := setupTestEnv(t)

	taskID := seedTask(t, ms, "t")
	workerID := seedEmployee(t, ms, "W", "w@example.com")
	due := ts("2123-01-10T00:00:00Z")

	id := seedAssignment(t, ms, due, StatusPending, []int64{taskID}, []int64{workerID})

	// complete it first
	form := url.Values{}
	form.Set("actual_completion_date", "2123-01-09T00:00")
	doForm(t, http.MethodPost, "/dashboard/assign/complete/"+strconv.FormatInt(id, 10)+"/", form)

	// editing back to PENDING drops the completion date
	edit := url.Values{}
	edit.Set("submission_status", StatusPending)
	w := doForm(t, http.MethodPost, "/dashboard/assign/edit/"+strconv.FormatInt(id, 10)+"/", edit)
	if w.Code != http.StatusOK {
		t.Fatalf("edit: got %d, body %s", w.Code, w.Body.String())
	}

	a, err := ms.GetAssignmentByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if a.ActualCompletionDate != nil {
		t.Fatal("completion date should have been cleared")
	}
	if a.SubmissionStatus != StatusPending {
		t.Fatalf("expected PENDING after edit, got %s", a.SubmissionStatus)
	}
}

func TestAssignmentRecomputeReleasesRatchet(t *testing.T) {
	ms := setupTestEnv(t)

	taskID := seedTask(t, ms, "t")
	workerID := seedEmployee(t, ms, "W", "w@example.com")
	due := ts("2123-01-10T00:00:00Z")

	id := seedAssignment(t, ms, due, StatusPending, []int64{taskID}, []int64{workerID})

	form := url.Values{}
	form.Set("actual_completion_date", "2123-01-09T00:00")
	doForm(t, http.MethodPost, "/dashboard/assign/complete/"+strconv.FormatInt(id, 10)+"/", form)

	// moving the due date before the completion does not move the status
	// on an ordinary edit: the ratchet holds
	edit := url.Values{}
	edit.Set("submission_status", StatusOnTimeCompleted)
	edit.Set("required_due_date", "2123-01-08T00:00")
	w := doForm(t, http.MethodPost, "/dashboard/assign/edit/"+strconv.FormatInt(id, 10)+"/", edit)
	if w.Code != http.StatusOK {
		t.Fatalf("edit: got %d, body %s", w.Code, w.Body.String())
	}
	if st := decodeJSON(t, w)["submission_status"]; st != StatusOnTimeCompleted {
		t.Fatalf("ratchet should hold on edit, got %v", st)
	}

	// the explicit recompute re-derives against the corrected due date
	w = doForm(t, http.MethodPost, "/dashboard/assign/recompute/"+strconv.FormatInt(id, 10)+"/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("recompute: got %d", w.Code)
	}
	body := decodeJSON(t, w)
	if body["submission_status"] != StatusLateCompleted || body["changed"] != true {
		t.Fatalf("expected recompute to LATE_COMPLETED, got %v", body)
	}
}

func TestBulkMarkCompleteSkipsMissing(t *testing.T) {
	ms := setupTestEnv(t)

	taskID := seedTask(t, ms, "t")
	workerID := seedEmployee(t, ms, "W", "w@example.com")
	due := ts("2123-01-10T00:00:00Z")

	a := seedAssignment(t, ms, due, StatusPending, []int64{taskID}, []int64{workerID})
	b := seedAssignment(t, ms, due, StatusInProgress, []int64{taskID}, []int64{workerID})

	form := url.Values{}
	form.Add("assignment_ids", strconv.FormatInt(a, 10))
	form.Add("assignment_ids", strconv.FormatInt(b, 10))
	form.Add("assignment_ids", "999999") // does not exist
	form.Set("action", "mark_complete")

	w := doForm(t, http.MethodPost, "/dashboard/assign/bulk-update/", form)
	if w.Code != http.StatusOK {
		t.Fatalf("bulk: got %d, body %s", w.Code, w.Body.String())
	}
	body := decodeJSON(t, w)
	if body["updated"].(float64) != 2 || body["skipped"].(float64) != 1 {
		t.Fatalf("expected 2 updated / 1 skipped, got %v", body)
	}

	for _, id := range []int64{a, b} {
		got, err := ms.GetAssignmentByID(context.Background(), id)
		if err != nil {
			t.Fatalf("get %d: %v", id, err)
		}
		if !IsTerminal(got.SubmissionStatus) {
			t.Fatalf("assignment %d not completed: %s", id, got.SubmissionStatus)
		}
		if got.ActualCompletionDate == nil {
			t.Fatalf("assignment %d has no completion date", id)
		}
	}
}

func TestBulkDeleteKeepsOverdueAndCompleted(t *testing.T) {
	ms := setupTestEnv(t)

	taskID := seedTask(t, ms, "t")
	workerID := seedEmployee(t, ms, "W", "w@example.com")
	due := ts("2123-01-10T00:00:00Z")

	pending := seedAssignment(t, ms, due, StatusPending, []int64{taskID}, []int64{workerID})
	overdue := seedAssignment(t, ms, due, StatusOverdue, []int64{taskID}, []int64{workerID})
	done := seedAssignment(t, ms, due, StatusLateCompleted, []int64{taskID}, []int64{workerID})

	form := url.Values{}
	for _, id := range []int64{pending, overdue, done} {
		form.Add("assignment_ids", strconv.FormatInt(id, 10))
	}
	form.Set("action", "delete")

	w := doForm(t, http.MethodPost, "/dashboard/assign/bulk-update/", form)
	body := decodeJSON(t, w)
	if body["updated"].(float64) != 1 || body["skipped"].(float64) != 2 {
		t.Fatalf("expected 1 deleted / 2 skipped, got %v", body)
	}

	if _, err := ms.GetAssignmentByID(context.Background(), pending); err == nil {
		t.Fatal("pending assignment should be gone")
	}
	for _, id := range []int64{overdue, done} {
		if _, err := ms.GetAssignmentByID(context.Background(), id); err != nil {
			t.Fatalf("assignment %d should survive bulk delete", id)
		}
	}
}

func TestBulkMarkInProgress(t *testing.T) {
	ms := setupTestEnv(t)

	taskID := seedTask(t, ms, "t")
	workerID := seedEmployee(t, ms, "W", "w@example.com")
	due := ts("2123-01-10T00:00:00Z")

	pending := seedAssignment(t, ms, due, StatusPending, []int64{taskID}, []int64{workerID})
	overdue := seedAssignment(t, ms, due, StatusOverdue, []int64{taskID}, []int64{workerID})

	form := url.Values{}
	form.Add("assignment_ids", strconv.FormatInt(pending, 10))
	form.Add("assignment_ids", strconv.FormatInt(overdue, 10))
	form.Set("action", "mark_in_progress")

	w := doForm(t, http.MethodPost, "/dashboard/assign/bulk-update/", form)
	body := decodeJSON(t, w)
	if body["updated"].(float64) != 1 || body["skipped"].(float64) != 1 {
		t.Fatalf("only pending assignments move to in progress, got %v", body)
	}

	got, _ := ms.GetAssignmentByID(context.Background(), pending)
	if got.SubmissionStatus != StatusInProgress {
		t.Fatalf("expected IN_PROGRESS, got %s", got.SubmissionStatus)
	}
}

func TestStatusOverrideLeavesAuditTrail(t *testing.T) {
	ms := setupTestEnv(t)

	taskID := seedTask(t, ms, "t")
	workerID := seedEmployee(t, ms, "W", "w@example.com")
	id := seedAssignment(t, ms, ts("2123-01-10T00:00:00Z"), StatusPending, []int64{taskID}, []int64{workerID})

	form := url.Values{}
	form.Set("status", StatusLateCompleted)
	form.Set("actor", "ops-oncall")
	form.Set("reason", "paperwork arrived by mail")

	w := doForm(t, http.MethodPost, "/dashboard/api/assign/"+strconv.FormatInt(id, 10)+"/status/", form)
	if w.Code != http.StatusOK {
		t.Fatalf("override: got %d, body %s", w.Code, w.Body.String())
	}
	body := decodeJSON(t, w)
	if body["success"] != true || body["new_status"] != StatusLateCompleted {
		t.Fatalf("unexpected override response: %v", body)
	}

	w = doForm(t, http.MethodGet, "/dashboard/api/assign/"+strconv.FormatInt(id, 10)+"/overrides/", nil)
	items := decodeJSON(t, w)["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("expected one audit row, got %d", len(items))
	}
	row := items[0].(map[string]any)
	if row["old_status"] != StatusPending || row["new_status"] != StatusLateCompleted || row["actor"] != "ops-oncall" {
		t.Fatalf("unexpected audit row: %v", row)
	}
}

func TestStatusOverrideRejectsUnknownStatus(t *testing.T) {
	ms := setupTestEnv(t)

	taskID := seedTask(t, ms, "t")
	workerID := seedEmployee(t, ms, "W", "w@example.com")
	id := seedAssignment(t, ms, ts("2123-01-10T00:00:00Z"), StatusPending, []int64{taskID}, []int64{workerID})

	form := url.Values{}
	form.Set("status", "DONEISH")

	w := doForm(t, http.MethodPost, "/dashboard/api/assign/"+strconv.FormatInt(id, 10)+"/status/", form)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", w.Code)
	}
}

func TestAssignmentSnapshotEmbedsMembers(t *testing.T) {
	ms := setupTestEnv(t)

	taskID := seedTask(t, ms, "quarterly filing")
	workerID := seedEmployee(t, ms, "Katherine Johnson", "kj@example.com")
	id := seedAssignment(t, ms, ts("2020-01-10T00:00:00Z"), StatusOverdue, []int64{taskID}, []int64{workerID})

	w := doForm(t, http.MethodGet, "/dashboard/api/assign/"+strconv.FormatInt(id, 10)+"/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("snapshot: got %d", w.Code)
	}
	body := decodeJSON(t, w)

	if body["is_overdue"] != true {
		t.Fatalf("expected is_overdue, got %v", body)
	}
	tasks := body["tasks"].([]any)
	workers := body["workers"].([]any)
	if len(tasks) != 1 || len(workers) != 1 {
		t.Fatalf("expected embedded members, got %v", body)
	}
	if tasks[0].(map[string]any)["title"] != "quarterly filing" {
		t.Fatalf("unexpected task payload: %v", tasks[0])
	}
	if workers[0].(map[string]any)["full_name"] != "Katherine Johnson" {
		t.Fatalf("unexpected worker payload: %v", workers[0])
	}
}

func TestTaskCRUDAndCounts(t *testing.T) {
	setupTestEnv(t)

	form := url.Values{}
	form.Set("title", "Inventory check")
	form.Set("priority", "HIGH")

	w := doForm(t, http.MethodPost, "/dashboard/tasks/add/", form)
	if w.Code != http.StatusCreated {
		t.Fatalf("add task: got %d, body %s", w.Code, w.Body.String())
	}
	id := int64(decodeJSON(t, w)["taskid"].(float64))

	w = doForm(t, http.MethodGet, "/dashboard/tasks/get/"+strconv.FormatInt(id, 10)+"/", nil)
	got := decodeJSON(t, w)
	if got["standard_duration_days"].(float64) != 3 {
		t.Fatalf("expected default duration 3, got %v", got)
	}

	w = doForm(t, http.MethodGet, "/dashboard/tasks/?format=json", nil)
	page := decodeJSON(t, w)
	if page["total_tasks"].(float64) != 1 || page["high_priority_count"].(float64) != 1 {
		t.Fatalf("unexpected counts: %v", page)
	}
}

func TestAlertEndpoints(t *testing.T) {
	ms := setupTestEnv(t)

	taskID := seedTask(t, ms, "t")
	workerID := seedEmployee(t, ms, "W", "w@example.com")
	assignmentID := seedAssignment(t, ms, ts("2123-01-10T00:00:00Z"), StatusPending, []int64{taskID}, []int64{workerID})

	form := url.Values{}
	form.Set("assignment", strconv.FormatInt(assignmentID, 10))
	form.Set("alert_type", AlertDeadlineWarning)
	form.Set("message", "due in two days")

	w := doForm(t, http.MethodPost, "/dashboard/alerts/add/", form)
	if w.Code != http.StatusCreated {
		t.Fatalf("add alert: got %d, body %s", w.Code, w.Body.String())
	}

	w = doForm(t, http.MethodGet, "/dashboard/alerts/?format=json", nil)
	alerts := decodeJSON(t, w)["alerts"].([]any)
	if len(alerts) != 1 {
		t.Fatalf("expected one alert, got %d", len(alerts))
	}
	if alerts[0].(map[string]any)["is_sent"] != false {
		t.Fatal("new alerts start unsent")
	}
}

func TestDashboardOverview(t *testing.T) {
	ms := setupTestEnv(t)

	seedEmployee(t, ms, "W", "w@example.com")
	seedTask(t, ms, "t")

	w := doForm(t, http.MethodGet, "/dashboard/?format=json", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("overview: got %d", w.Code)
	}
	body := decodeJSON(t, w)
	if body["employees"].(map[string]any)["total_employees"].(float64) != 1 {
		t.Fatalf("unexpected overview: %v", body)
	}
}
