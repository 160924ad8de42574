package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/FMLBeast/the-ark-forensic-platform/internal/agent"
	"github.com/FMLBeast/the-ark-forensic-platform/internal/graph"
	"github.com/FMLBeast/the-ark-forensic-platform/internal/models"
	"github.com/FMLBeast/the-ark-forensic-platform/internal/orchestrator"
	"github.com/FMLBeast/the-ark-forensic-platform/internal/store"
)

// directExecuteTimeout caps single-agent invocations issued over HTTP.
const directExecuteTimeout = 60 * time.Second

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

// mapError translates engine errors into HTTP responses.
func (s *Server) mapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orchestrator.ErrSessionNotFound),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, agent.ErrUnknownAgent):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, orchestrator.ErrInvalidRequest),
		errors.Is(err, agent.ErrUnknownCapability):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	default:
		s.logger.Error("request handling failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

type orchestrateRequest struct {
	FilePath     string         `json:"file_path"`
	AnalysisType string         `json:"analysis_type"`
	Priority     string         `json:"priority"`
	Capabilities []string       `json:"capabilities,omitempty"`
	Context      map[string]any `json:"context,omitempty"`
}

func (s *Server) handleOrchestrate(w http.ResponseWriter, r *http.Request) {
	var body orchestrateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "malformed request body")
		return
	}

	req := orchestrator.Request{
		FilePath:     body.FilePath,
		AnalysisType: models.AnalysisType(body.AnalysisType),
		Priority:     models.ParsePriority(body.Priority),
		Context:      body.Context,
	}
	for _, c := range body.Capabilities {
		req.Capabilities = append(req.Capabilities, models.Capability(c))
	}

	snap, err := s.orch.Orchestrate(r.Context(), req)
	if err != nil {
		s.mapError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, snap)
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.Sessions())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.orch.Session(r.PathValue("id"))
	if err != nil {
		s.mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleCancelSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.orch.Cancel(r.PathValue("id"))
	if err != nil {
		s.mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type agentInfo struct {
	ID         string            `json:"id"`
	Capability models.Capability `json:"capability"`
}

func (s *Server) handleListAgents(w http.ResponseWriter, _ *http.Request) {
	agents := s.registry.List()
	out := make([]agentInfo, len(agents))
	for i, a := range agents {
		out[i] = agentInfo{ID: a.ID(), Capability: a.Capability()}
	}
	writeJSON(w, http.StatusOK, out)
}

type executeRequest struct {
	FilePath   string         `json:"file_path"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// handleExecuteAgent runs one agent directly, bypassing the
// orchestrator. Expected failures come back as success:false results,
// not HTTP errors.
func (s *Server) handleExecuteAgent(w http.ResponseWriter, r *http.Request) {
	a, err := s.registry.ByID(r.PathValue("id"))
	if err != nil {
		s.mapError(w, err)
		return
	}

	var body executeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "malformed request body")
		return
	}
	if body.FilePath == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "file_path is required")
		return
	}

	task := models.AnalysisTask{
		ID:         uuid.New().String()[:8],
		Capability: a.Capability(),
		FilePath:   body.FilePath,
		Parameters: body.Parameters,
		Priority:   models.PriorityNormal,
		Status:     models.TaskRunning,
		Timeout:    directExecuteTimeout,
		CreatedAt:  time.Now(),
	}

	ctx, cancel := context.WithTimeout(r.Context(), directExecuteTimeout)
	defer cancel()
	writeJSON(w, http.StatusOK, a.Execute(ctx, task))
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	params := graph.Params{}
	q := r.URL.Query()

	if v := q.Get("min_entropy"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "min_entropy must be a number")
			return
		}
		params.MinEntropy = f
	}
	if v := q.Get("max_nodes"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "max_nodes must be an integer")
			return
		}
		params.MaxNodes = n
	}
	params.Filters = q["filter"]

	g, err := s.builder.Build(r.Context(), params)
	if err != nil {
		s.mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")
	if term == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "q is required")
		return
	}
	res, err := s.builder.Search(r.Context(), term, r.URL.Query().Get("type"))
	if err != nil {
		s.mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handlePath(w http.ResponseWriter, r *http.Request) {
	a, errA := strconv.ParseInt(r.PathValue("a"), 10, 64)
	b, errB := strconv.ParseInt(r.PathValue("b"), 10, 64)
	if errA != nil || errB != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "file ids must be integers")
		return
	}

	conns, err := s.builder.PathBetween(r.Context(), a, b)
	if err != nil {
		s.mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conns)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
