package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hylla/tracktask/internal/adapters/server/common"
	"github.com/hylla/tracktask/internal/adapters/storage/sqlite"
	"github.com/hylla/tracktask/internal/adapters/wire"
	"github.com/hylla/tracktask/internal/app"
	"github.com/hylla/tracktask/internal/domain"
)

// stubStore implements app.TaskStore without batch support.
type stubStore struct {
	tasks []domain.Task
	err   error
}

// CreateTask returns the configured error.
func (s *stubStore) CreateTask(context.Context, app.CreateTaskInput) (domain.Task, error) {
	return domain.Task{}, s.err
}

// UpdateTask returns the configured error.
func (s *stubStore) UpdateTask(context.Context, string, string, app.TaskPatch) (domain.Task, error) {
	return domain.Task{}, s.err
}

// DeleteTask returns the configured error.
func (s *stubStore) DeleteTask(context.Context, string, string) error {
	return s.err
}

// ListTasks returns the configured tasks.
func (s *stubStore) ListTasks(context.Context, string) ([]domain.Task, error) {
	return s.tasks, s.err
}

// newServiceHandler builds a handler over a real service and in-memory database.
func newServiceHandler(t *testing.T) *Handler {
	t.Helper()
	repo, err := sqlite.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})
	next := 0
	svc := app.NewService(repo, func() string {
		next++
		return fmt.Sprintf("t%d", next)
	}, func() time.Time {
		return time.Date(2026, 2, 25, 9, 0, 0, 0, time.UTC)
	})
	return NewHandler(svc, nil)
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return out
}

func decodeErrorEnvelope(t *testing.T, rec *httptest.ResponseRecorder) ErrorEnvelope {
	t.Helper()
	return decodeBody[ErrorEnvelope](t, rec)
}

// TestHandlerTaskLifecycle verifies create, list, update, reorder, and delete over one store.
func TestHandlerTaskLifecycle(t *testing.T) {
	handler := newServiceHandler(t)

	for _, title := range []string{"write", "review", "ship"} {
		rec := doJSON(t, handler, http.MethodPost, "/tasks", fmt.Sprintf(`{"title":%q,"addedBy":"ana"}`, title))
		if rec.Code != http.StatusCreated {
			t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
		}
		created := decodeBody[wire.CreateTaskResponse](t, rec)
		if created.InsertedID == "" || created.Task.ID != created.InsertedID {
			t.Fatalf("unexpected create response %#v", created)
		}
		if created.Task.Category != string(domain.CategoryTodo) || created.Task.AddedBy != "ana" {
			t.Fatalf("unexpected created task %#v", created.Task)
		}
	}

	rec := doJSON(t, handler, http.MethodGet, "/tasks?addedBy=ana", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	tasks := decodeBody[[]wire.Task](t, rec)
	if len(tasks) != 3 || tasks[0].Order != 0 || tasks[2].Order != 2 {
		t.Fatalf("unexpected list %#v", tasks)
	}

	rec = doJSON(t, handler, http.MethodPut, "/tasks/t2?addedBy=ana", `{"category":"inProgress","order":0}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", rec.Code, rec.Body.String())
	}
	updated := decodeBody[wire.Task](t, rec)
	if updated.Category != string(domain.CategoryInProgress) || updated.Order != 0 || updated.Title != "review" {
		t.Fatalf("unexpected updated task %#v", updated)
	}

	rec = doJSON(t, handler, http.MethodPut, "/tasks/reorder?addedBy=ana", `{"tasks":[{"id":"t3","order":0},{"id":"t1","order":1}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("reorder status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody[wire.ModifiedResponse](t, rec); got.ModifiedCount != 2 {
		t.Fatalf("modifiedCount = %d, want 2", got.ModifiedCount)
	}

	rec = doJSON(t, handler, http.MethodGet, "/board?addedBy=ana", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("board status = %d", rec.Code)
	}
	view := decodeBody[common.BoardView](t, rec)
	todo := view.Columns[0].Tasks
	if len(todo) != 2 || todo[0].ID != "t3" || todo[1].ID != "t1" {
		t.Fatalf("unexpected todo column %#v", todo)
	}
	if len(view.Columns[1].Tasks) != 1 || view.Columns[1].Tasks[0].ID != "t2" {
		t.Fatalf("unexpected in-progress column %#v", view.Columns[1].Tasks)
	}

	rec = doJSON(t, handler, http.MethodDelete, "/tasks/t1?addedBy=ana", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if got := decodeBody[wire.DeletedResponse](t, rec); got.DeletedCount != 1 {
		t.Fatalf("deletedCount = %d, want 1", got.DeletedCount)
	}
	rec = doJSON(t, handler, http.MethodDelete, "/tasks/t1?addedBy=ana", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", rec.Code)
	}
}

// TestHandlerOwnerScoping verifies another owner's tasks are invisible.
func TestHandlerOwnerScoping(t *testing.T) {
	handler := newServiceHandler(t)
	rec := doJSON(t, handler, http.MethodPost, "/tasks", `{"title":"private","category":"done","addedBy":"ana"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/tasks?addedBy=bob", "")
	if tasks := decodeBody[[]wire.Task](t, rec); len(tasks) != 0 {
		t.Fatalf("expected empty list for bob, got %#v", tasks)
	}
	rec = doJSON(t, handler, http.MethodPut, "/tasks/t1?addedBy=bob", `{"title":"stolen"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign update status = %d, want 404", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodPut, "/tasks/reorder?addedBy=bob", `{"tasks":[{"id":"t1","order":3}]}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign reorder status = %d, want 404", rec.Code)
	}
}

// TestHandlerValidationErrors verifies malformed input maps to 400 responses.
func TestHandlerValidationErrors(t *testing.T) {
	handler := newServiceHandler(t)
	if rec := doJSON(t, handler, http.MethodPost, "/tasks", `{"title":"seed","addedBy":"ana"}`); rec.Code != http.StatusCreated {
		t.Fatalf("seed status = %d", rec.Code)
	}

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		want   string
	}{
		{name: "list requires owner", method: http.MethodGet, path: "/tasks", want: "addedBy is required"},
		{name: "create requires owner", method: http.MethodPost, path: "/tasks", body: `{"title":"x"}`, want: "addedBy is required"},
		{name: "create requires title", method: http.MethodPost, path: "/tasks", body: `{"title":"  ","addedBy":"ana"}`, want: "invalid title"},
		{name: "create rejects category", method: http.MethodPost, path: "/tasks", body: `{"title":"x","category":"Backlog","addedBy":"ana"}`, want: "invalid category"},
		{name: "unknown field", method: http.MethodPost, path: "/tasks", body: `{"title":"x","addedBy":"ana","priority":1}`, want: "decode request body"},
		{name: "empty update", method: http.MethodPut, path: "/tasks/t1?addedBy=ana", body: `{}`, want: "no fields to update"},
		{name: "negative order", method: http.MethodPut, path: "/tasks/t1?addedBy=ana", body: `{"order":-1}`, want: "invalid order"},
		{name: "duplicate reorder", method: http.MethodPut, path: "/tasks/reorder?addedBy=ana", body: `{"tasks":[{"id":"t1","order":0},{"id":"t1","order":1}]}`, want: "duplicate task"},
		{name: "trailing content", method: http.MethodPut, path: "/tasks/reorder?addedBy=ana", body: `{"tasks":[]}{}`, want: "trailing content"},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, handler, tt.method, tt.path, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
			envelope := decodeErrorEnvelope(t, rec)
			if envelope.Error.Code != "invalid_request" {
				t.Fatalf("error.code = %q, want invalid_request", envelope.Error.Code)
			}
			if !strings.Contains(envelope.Error.Message, tt.want) {
				t.Fatalf("error.message = %q, want substring %q", envelope.Error.Message, tt.want)
			}
		})
	}
}

// TestHandlerRouteGuards verifies method guards and unknown-route handling.
func TestHandlerRouteGuards(t *testing.T) {
	handler := NewHandler(&stubStore{}, nil)

	cases := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantCode   string
		wantAllow  string
	}{
		{
			name:       "tasks collection only allows get and post",
			method:     http.MethodDelete,
			path:       "/tasks",
			wantStatus: http.StatusMethodNotAllowed,
			wantCode:   "method_not_allowed",
			wantAllow:  "GET, POST",
		},
		{
			name:       "task item only allows put and delete",
			method:     http.MethodGet,
			path:       "/tasks/t1",
			wantStatus: http.StatusMethodNotAllowed,
			wantCode:   "method_not_allowed",
			wantAllow:  "PUT, DELETE",
		},
		{
			name:       "unknown route returns not found",
			method:     http.MethodGet,
			path:       "/not/a/route",
			wantStatus: http.StatusNotFound,
			wantCode:   "not_found",
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, handler, tt.method, tt.path, "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			envelope := decodeErrorEnvelope(t, rec)
			if envelope.Error.Code != tt.wantCode {
				t.Fatalf("error.code = %q, want %q", envelope.Error.Code, tt.wantCode)
			}
			if got := rec.Header().Get("Allow"); got != tt.wantAllow {
				t.Fatalf("Allow header = %q, want %q", got, tt.wantAllow)
			}
		})
	}
}

// TestHandlerReorderRequiresBatchStore verifies stores without batch support return 501.
func TestHandlerReorderRequiresBatchStore(t *testing.T) {
	handler := NewHandler(&stubStore{}, nil)
	rec := doJSON(t, handler, http.MethodPut, "/tasks/reorder?addedBy=ana", `{"tasks":[]}`)
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d, want 501", rec.Code)
	}
	envelope := decodeErrorEnvelope(t, rec)
	if envelope.Error.Code != "not_implemented" || envelope.Error.Hint == "" {
		t.Fatalf("unexpected envelope %#v", envelope)
	}
}

// TestHandlerStoreFailureIsInternal verifies unknown store errors map to 500.
func TestHandlerStoreFailureIsInternal(t *testing.T) {
	handler := NewHandler(&stubStore{err: errors.New("disk full")}, nil)
	rec := doJSON(t, handler, http.MethodGet, "/tasks?addedBy=ana", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	envelope := decodeErrorEnvelope(t, rec)
	if envelope.Error.Code != "internal_error" || !strings.Contains(envelope.Error.Message, "disk full") {
		t.Fatalf("unexpected envelope %#v", envelope)
	}
}

// TestDecodeJSONBodyBranches verifies decode failures and cancellation.
func TestDecodeJSONBodyBranches(t *testing.T) {
	w := httptest.NewRecorder()

	t.Run("trailing payload returns invalid request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/tasks", strings.NewReader(`{"title":"x","addedBy":"ana"}{"next":true}`))
		var payload wire.CreateTaskRequest
		err := decodeJSONBody(context.Background(), w, req, &payload)
		if !errors.Is(err, common.ErrInvalidRequest) {
			t.Fatalf("decodeJSONBody() error = %v, want ErrInvalidRequest", err)
		}
	})

	t.Run("canceled context returns context canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		req := httptest.NewRequest(http.MethodPost, "/tasks", strings.NewReader(`{"title":"x","addedBy":"ana"}`)).WithContext(ctx)
		var payload wire.CreateTaskRequest
		err := decodeJSONBody(req.Context(), w, req, &payload)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("decodeJSONBody() error = %v, want context.Canceled", err)
		}
	})
}

// TestWriteErrorFromMappingBranches verifies sentinel to status mapping.
func TestWriteErrorFromMappingBranches(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "nil error", err: nil, wantStatus: http.StatusInternalServerError, wantCode: "internal_error"},
		{name: "not found", err: common.MapAppError("get", app.ErrNotFound), wantStatus: http.StatusNotFound, wantCode: "not_found"},
		{name: "invalid", err: common.MapAppError("move", domain.ErrIndexOutOfRange), wantStatus: http.StatusBadRequest, wantCode: "invalid_request"},
		{name: "unsupported", err: common.ErrUnsupported, wantStatus: http.StatusNotImplemented, wantCode: "not_implemented"},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			if status := writeErrorFrom(rec, tt.err); status != tt.wantStatus {
				t.Fatalf("writeErrorFrom() = %d, want %d", status, tt.wantStatus)
			}
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := decodeErrorEnvelope(t, rec).Error.Code; got != tt.wantCode {
				t.Fatalf("error.code = %q, want %q", got, tt.wantCode)
			}
		})
	}
}
