package a2a

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"goa.design/swarmassistant/telemetry"
)

// TaskSubmitter accepts a peer-submitted task. *coordinator.Dispatcher
// satisfies this directly through its SubmitPeerTask method; tests can
// stub it.
type TaskSubmitter interface {
	SubmitPeerTask(ctx context.Context, taskID, title, description, runID string) error
}

// Server exposes the three plain-HTTP A2A endpoints over net/http
// (spec.md §6): the agent card, peer task submission, and health.
// Grounded on the teacher's runtime/a2a.Server, trimmed from the full
// tasks/send+sendSubscribe+JSON-RPC surface to this node's narrower
// contract.
type Server struct {
	card   Card
	tasks  TaskSubmitter
	logger telemetry.Logger
}

// NewServer constructs a Server.
func NewServer(card Card, tasks TaskSubmitter, logger telemetry.Logger) *Server {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Server{card: card, tasks: tasks, logger: logger}
}

// Handler builds the http.Handler serving the three A2A endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/agent-card.json", s.handleCard)
	mux.HandleFunc("POST /a2a/tasks", s.handleSubmitTask)
	mux.HandleFunc("GET /a2a/health", s.handleHealth)
	return mux
}

func (s *Server) handleCard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.card)
}

// submitTaskRequest is the POST /a2a/tasks body (spec.md §6).
type submitTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	RunID       string `json:"runId,omitempty"`
}

type submitTaskResponse struct {
	TaskID string `json:"taskId"`
}

func (s *Server) handleSubmitTask(w http.ResponseWriter, r *http.Request) {
	var req submitTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		http.Error(w, "title is required", http.StatusBadRequest)
		return
	}

	taskID := uuid.NewString()
	ctx := r.Context()
	if err := s.tasks.SubmitPeerTask(ctx, taskID, req.Title, req.Description, req.RunID); err != nil {
		s.logger.Error(ctx, "a2a: peer task submission failed", "taskId", taskID, "error", err)
		http.Error(w, "submission failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, submitTaskResponse{TaskID: taskID})
}

type healthResponse struct {
	AgentID      string   `json:"agentId"`
	Capabilities []string `json:"capabilities"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{AgentID: s.card.AgentID, Capabilities: s.card.Capabilities})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
