package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/danielnorberg/helios/pkg/agent"
	"github.com/danielnorberg/helios/pkg/metrics"
	"github.com/danielnorberg/helios/pkg/model"
	"github.com/danielnorberg/helios/pkg/types"
)

// Server exposes the agent over HTTP: task management (the control-plane
// stand-in), observed status, health probes, and Prometheus metrics.
type Server struct {
	model *model.InMemory
	agent *agent.Agent
	mux   *http.ServeMux
}

// NewServer creates the HTTP server around the model and agent.
func NewServer(m *model.InMemory, a *agent.Agent) *Server {
	mux := http.NewServeMux()
	s := &Server{
		model: m,
		agent: a,
		mux:   mux,
	}

	mux.HandleFunc("GET /v1/tasks", s.listTasks)
	mux.HandleFunc("PUT /v1/tasks/{id}", s.putTask)
	mux.HandleFunc("DELETE /v1/tasks/{id}", s.deleteTask)
	mux.HandleFunc("GET /v1/status", s.listStatus)
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /ready", s.readyHandler)
	mux.Handle("GET /metrics", metrics.Handler())

	return s
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// Handler returns the HTTP handler for embedding in other servers
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.model.Tasks())
}

// putTask inserts or replaces the desired task for a job.
func (s *Server) putTask(w http.ResponseWriter, r *http.Request) {
	id := types.JobID(r.PathValue("id"))

	var task types.Task
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
		http.Error(w, "invalid task body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if task.Job.ID == "" {
		task.Job.ID = id
	}
	if task.Job.ID != id {
		http.Error(w, "job id does not match path", http.StatusBadRequest)
		return
	}
	if task.Job.Image == "" {
		http.Error(w, "job image must be set", http.StatusBadRequest)
		return
	}
	switch task.Goal {
	case types.GoalStart, types.GoalStop, types.GoalUndeploy:
	default:
		http.Error(w, "goal must be start, stop, or undeploy", http.StatusBadRequest)
		return
	}

	s.model.PutTask(task)
	writeJSON(w, http.StatusOK, task)
}

// deleteTask marks the job for undeployment. The task disappears once the
// agent has reaped it.
func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	id := types.JobID(r.PathValue("id"))

	if !s.model.SetGoal(id, types.GoalUndeploy) {
		http.Error(w, "task not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type jobStatusResponse struct {
	Status   *types.JobStatus `json:"status,omitempty"`
	Observed types.JobState   `json:"observed,omitempty"`
}

func (s *Server) listStatus(w http.ResponseWriter, r *http.Request) {
	statuses := s.model.TaskStatuses()
	supervised := s.agent.SupervisorStates()

	response := make(map[types.JobID]jobStatusResponse, len(statuses))
	for id, status := range statuses {
		entry := jobStatusResponse{Status: &status}
		if state, ok := supervised[id]; ok {
			entry.Observed = state
		}
		response[id] = entry
	}
	for id, state := range supervised {
		if _, ok := response[id]; !ok {
			response[id] = jobStatusResponse{Observed: state}
		}
	}

	writeJSON(w, http.StatusOK, response)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// healthHandler implements the /health endpoint, a liveness check that
// returns 200 if the process is alive.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
	})
}

// ReadyResponse represents the readiness check response
type ReadyResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// readyHandler implements the /ready endpoint.
func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	ready := true

	if s.agent != nil {
		checks["agent"] = "ok"
	} else {
		checks["agent"] = "not initialized"
		ready = false
	}

	status := "ready"
	code := http.StatusOK
	if !ready {
		status = "not ready"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, ReadyResponse{
		Status:    status,
		Timestamp: time.Now(),
		Checks:    checks,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
