// Package httpapi exposes the orchestration service over HTTP. Owner identity
// for multi-tenant deployments travels in the X-Owner-ID header.
package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/aristath/conductor/internal/engine"
	"github.com/aristath/conductor/internal/persistence"
	"github.com/aristath/conductor/internal/service"
)

// Server wires the service facade onto an http.Handler.
type Server struct {
	svc *service.Service
	mux *http.ServeMux
}

// NewServer creates the HTTP surface for the given service.
func NewServer(svc *service.Service) *Server {
	s := &Server{
		svc: svc,
		mux: http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("POST /tasks", s.handleCreateTask)
	s.mux.HandleFunc("GET /tasks", s.handleListTasks)
	s.mux.HandleFunc("GET /tasks/{id}", s.handleGetTask)
	s.mux.HandleFunc("POST /tasks/{id}/cancel", s.handleCancelTask)
	s.mux.HandleFunc("POST /tasks/{id}/process", s.handleProcessTask)

	s.mux.HandleFunc("POST /agents", s.handleRegisterAgent)
	s.mux.HandleFunc("GET /agents", s.handleListAgents)
	s.mux.HandleFunc("GET /agents/{id}", s.handleGetAgent)

	s.mux.HandleFunc("POST /workflows", s.handleCreateWorkflow)
	s.mux.HandleFunc("GET /workflows/{id}", s.handleGetWorkflow)
	s.mux.HandleFunc("POST /workflows/{id}/execute", s.handleExecuteWorkflow)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req service.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.OwnerID == "" {
		req.OwnerID = ownerID(r)
	}

	task, err := s.svc.CreateTask(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"taskId":  task.ID,
		"status":  task.Status,
		"agentId": task.AgentID,
	})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.svc.GetTask(r.Context(), r.PathValue("id"), ownerID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	filter := persistence.TaskFilter{
		Status:  engine.TaskStatus(r.URL.Query().Get("status")),
		AgentID: r.URL.Query().Get("agent"),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid status filter")
		return
	}

	tasks, err := s.svc.ListTasks(r.Context(), filter, ownerID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if tasks == nil {
		tasks = []*engine.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.svc.CancelTask(r.Context(), r.PathValue("id"), ownerID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"taskId": task.ID,
		"status": task.Status,
	})
}

func (s *Server) handleProcessTask(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.ProcessTaskAsync(r.Context(), r.PathValue("id"), ownerID(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"taskId": r.PathValue("id"),
		"status": "accepted",
	})
}

func (s *Server) handleRegisterAgent(w http.ResponseWriter, r *http.Request) {
	var agent engine.Agent
	if err := json.NewDecoder(r.Body).Decode(&agent); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	registered, err := s.svc.RegisterAgent(r.Context(), &agent)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"agentId": registered.ID})
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := s.svc.GetAgent(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	filter := persistence.AgentFilter{
		Capability: r.URL.Query().Get("capability"),
		Status:     engine.AgentStatus(r.URL.Query().Get("status")),
	}
	agents, err := s.svc.ListAgents(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if agents == nil {
		agents = []*engine.Agent{}
	}
	writeJSON(w, http.StatusOK, agents)
}

func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var wf engine.Workflow
	if err := json.NewDecoder(r.Body).Decode(&wf); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	created, err := s.svc.CreateWorkflow(r.Context(), &wf)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"workflowId": created.ID})
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := s.svc.GetWorkflowStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

func (s *Server) handleExecuteWorkflow(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.ExecuteWorkflowAsync(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"workflowId": r.PathValue("id"),
		"status":     "accepted",
	})
}

func ownerID(r *http.Request) string {
	return r.Header.Get("X-Owner-ID")
}

// writeServiceError maps service sentinels onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, engine.ErrAlreadyTerminal), errors.Is(err, engine.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
