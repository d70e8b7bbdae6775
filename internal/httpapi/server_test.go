package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aristath/conductor/internal/config"
	"github.com/aristath/conductor/internal/events"
	"github.com/aristath/conductor/internal/executor"
	"github.com/aristath/conductor/internal/persistence"
	"github.com/aristath/conductor/internal/reasoning"
	"github.com/aristath/conductor/internal/router"
	"github.com/aristath/conductor/internal/service"
	"github.com/aristath/conductor/internal/workflow"
)

type fixedRunner struct{ output any }

func (r *fixedRunner) Run(ctx context.Context, req reasoning.Request) (*reasoning.Result, error) {
	return &reasoning.Result{Output: r.output}, nil
}

func newTestServer(t *testing.T, opts service.Options) (*Server, *service.Service) {
	t.Helper()
	store := persistence.NewMemoryStore()
	bus := events.NewEventBus()
	t.Cleanup(func() { store.Close(); bus.Close() })

	cfg := config.DefaultConfig()
	rt := router.New(cfg.Routing, nil, store)
	exec := executor.New(store, nil, nil, &fixedRunner{output: "done"}, cfg.Prompts, bus)
	workflows := workflow.NewEngine(store, rt, exec, bus)
	svc := service.New(context.Background(), store, rt, exec, workflows, bus, opts)
	t.Cleanup(svc.Shutdown)

	return NewServer(svc), svc
}

func doRequest(t *testing.T, srv *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, service.Options{})
	rec := doRequest(t, srv, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCreateTaskEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, service.Options{})

	rec := doRequest(t, srv, http.MethodPost, "/tasks", `{"type":"coding","input":{"description":"x"}}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["status"] != "pending" {
		t.Errorf("expected pending, got %v", body["status"])
	}
	// Nobody registered for developer_agent yet
	if body["agentId"] != "" {
		t.Errorf("expected unassigned task, got %v", body["agentId"])
	}
	if body["taskId"] == "" {
		t.Error("expected taskId in response")
	}

	// A registered agent with the capability picks up subsequent tasks
	rec = doRequest(t, srv, http.MethodPost, "/agents", `{"name":"Coder","capabilities":["developer_agent"]}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 registering agent, got %d: %s", rec.Code, rec.Body.String())
	}
	agentID := decodeBody(t, rec)["agentId"]

	rec = doRequest(t, srv, http.MethodPost, "/tasks", `{"type":"coding","input":{"description":"y"}}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody(t, rec)["agentId"]; got != agentID {
		t.Errorf("expected task assigned to %v, got %v", agentID, got)
	}
}

func TestCreateTaskEndpoint_BadRequests(t *testing.T) {
	srv, _ := newTestServer(t, service.Options{})

	if rec := doRequest(t, srv, http.MethodPost, "/tasks", `not json`, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid JSON, got %d", rec.Code)
	}
	if rec := doRequest(t, srv, http.MethodPost, "/tasks", `{"input":{}}`, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing type, got %d", rec.Code)
	}
}

func TestGetTaskEndpoint(t *testing.T) {
	srv, svc := newTestServer(t, service.Options{})

	task, err := svc.CreateTask(context.Background(), service.CreateTaskRequest{Type: "thinking"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	rec := doRequest(t, srv, http.MethodGet, "/tasks/"+task.ID, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "pending" {
		t.Errorf("expected pending, got %v", body["status"])
	}

	if rec := doRequest(t, srv, http.MethodGet, "/tasks/ghost", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown task, got %d", rec.Code)
	}
}

func TestListTasksEndpoint(t *testing.T) {
	srv, svc := newTestServer(t, service.Options{})
	ctx := context.Background()

	for _, typ := range []string{"coding", "review"} {
		if _, err := svc.CreateTask(ctx, service.CreateTaskRequest{Type: typ}); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	rec := doRequest(t, srv, http.MethodGet, "/tasks", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var tasks []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &tasks); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if len(tasks) != 2 {
		t.Errorf("expected 2 tasks, got %d", len(tasks))
	}

	if rec := doRequest(t, srv, http.MethodGet, "/tasks?status=sideways", "", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid status filter, got %d", rec.Code)
	}
	rec = doRequest(t, srv, http.MethodGet, "/tasks?status=pending", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCancelTaskEndpoint(t *testing.T) {
	srv, svc := newTestServer(t, service.Options{})

	task, err := svc.CreateTask(context.Background(), service.CreateTaskRequest{Type: "coding"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	rec := doRequest(t, srv, http.MethodPost, "/tasks/"+task.ID+"/cancel", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["status"] != "cancelled" {
		t.Errorf("expected cancelled, got %v", body["status"])
	}

	// Second cancel conflicts
	rec = doRequest(t, srv, http.MethodPost, "/tasks/"+task.ID+"/cancel", "", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for terminal task, got %d", rec.Code)
	}

	if rec := doRequest(t, srv, http.MethodPost, "/tasks/ghost/cancel", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestProcessTaskEndpoint(t *testing.T) {
	srv, svc := newTestServer(t, service.Options{})

	task, err := svc.CreateTask(context.Background(), service.CreateTaskRequest{Type: "coding"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	rec := doRequest(t, srv, http.MethodPost, "/tasks/"+task.ID+"/process", "", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}

	svc.Shutdown()

	rec = doRequest(t, srv, http.MethodGet, "/tasks/"+task.ID, "", nil)
	if body := decodeBody(t, rec); body["status"] != "completed" {
		t.Errorf("expected completed after processing, got %v", body["status"])
	}
}

func TestAgentEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, service.Options{})

	rec := doRequest(t, srv, http.MethodPost, "/agents", `{"name":"Coder","capabilities":["developer_agent"]}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	agentID, _ := decodeBody(t, rec)["agentId"].(string)
	if agentID == "" {
		t.Fatal("expected agentId in response")
	}

	rec = doRequest(t, srv, http.MethodGet, "/agents/"+agentID, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodGet, "/agents?capability=developer_agent", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var agents []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &agents); err != nil {
		t.Fatalf("failed to decode agents: %v", err)
	}
	if len(agents) != 1 {
		t.Errorf("expected 1 agent, got %d", len(agents))
	}

	if rec := doRequest(t, srv, http.MethodGet, "/agents/ghost", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if rec := doRequest(t, srv, http.MethodPost, "/agents", `{}`, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing name, got %d", rec.Code)
	}
}

func TestWorkflowEndpoints(t *testing.T) {
	srv, svc := newTestServer(t, service.Options{})

	rec := doRequest(t, srv, http.MethodPost, "/workflows",
		`{"name":"pipeline","steps":[{"type":"research","updateContext":true},{"type":"coding"}]}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	workflowID, _ := decodeBody(t, rec)["workflowId"].(string)
	if workflowID == "" {
		t.Fatal("expected workflowId in response")
	}

	rec = doRequest(t, srv, http.MethodPost, "/workflows/"+workflowID+"/execute", "", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}

	svc.Shutdown()

	rec = doRequest(t, srv, http.MethodGet, "/workflows/"+workflowID, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["status"] != "completed" {
		t.Errorf("expected completed workflow, got %v", body["status"])
	}

	// Executing a finished workflow conflicts
	rec = doRequest(t, srv, http.MethodPost, "/workflows/"+workflowID+"/execute", "", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}

	if rec := doRequest(t, srv, http.MethodGet, "/workflows/ghost", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if rec := doRequest(t, srv, http.MethodPost, "/workflows/ghost/execute", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if rec := doRequest(t, srv, http.MethodPost, "/workflows", `{"name":"empty"}`, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for workflow without steps, got %d", rec.Code)
	}
}

func TestMultiTenantHeaderScoping(t *testing.T) {
	srv, _ := newTestServer(t, service.Options{MultiTenant: true})

	rec := doRequest(t, srv, http.MethodPost, "/tasks", `{"type":"coding"}`,
		map[string]string{"X-Owner-ID": "alice"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	taskID, _ := decodeBody(t, rec)["taskId"].(string)

	// Different owner sees 404
	rec = doRequest(t, srv, http.MethodGet, "/tasks/"+taskID, "",
		map[string]string{"X-Owner-ID": "bob"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for cross-owner read, got %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodGet, "/tasks/"+taskID, "",
		map[string]string{"X-Owner-ID": "alice"})
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for owner read, got %d", rec.Code)
	}

	// Missing owner on create is rejected
	rec = doRequest(t, srv, http.MethodPost, "/tasks", `{"type":"coding"}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without owner, got %d", rec.Code)
	}
}
