package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rakunlabs/flowgraph/internal/auth"
	"github.com/rakunlabs/flowgraph/internal/graph"
)

// actionRequest is the JSON body carried by every gateway call (SPEC_FULL.md
// §6). Which fields are required depends on the action.
type actionRequest struct {
	Token           string          `json:"token"`
	GraphID         string          `json:"graph_id"`
	SerializedGraph json.RawMessage `json:"serialized_graph"`
	TargetUser      string          `json:"target_user"`
	Permissions     *int            `json:"permissions"`
	StartBlock      string          `json:"start_block"`
}

// handleAction is the sole route: GET /<action>, mirroring the original
// system's GatewayService.route_get dispatch.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	action := r.PathValue("action")

	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, "request must be JSON", nil)
		return
	}

	ctx := r.Context()

	username, authenticated, err := s.authenticator.Authenticate(ctx, req.Token)
	if err != nil {
		slog.Error("authenticate", "error", err)
		writeJSON(w, http.StatusInternalServerError, "authentication failed", nil)
		return
	}
	if !authenticated {
		writeJSON(w, http.StatusForbidden, "authentication failed", nil)
		return
	}

	checked, allowed, err := s.authorizer.Authorize(ctx, username, action, req.GraphID)
	if err != nil {
		slog.Error("authorize", "error", err, "action", action)
		writeJSON(w, http.StatusInternalServerError, "authorization failed", nil)
		return
	}
	if !checked {
		if req.GraphID == "" {
			writeJSON(w, http.StatusBadRequest, "graph_id is required", nil)
		} else {
			writeJSON(w, http.StatusNotFound, "graph not found", nil)
		}
		return
	}
	if !allowed {
		writeJSON(w, http.StatusForbidden,
			fmt.Sprintf("%s is not authorized for %s on graph %s", username, action, req.GraphID), nil)
		return
	}

	switch action {
	case "create":
		s.handleCreate(w, r, username)
	case "view":
		s.handleView(w, r, req)
	case "edit":
		s.handleEdit(w, r, req)
	case "delete":
		s.handleDelete(w, r, req)
	case "list":
		s.handleList(w, r, username)
	case "run":
		s.handleRun(w, r, req)
	case "share":
		s.handleShare(w, r, req)
	default:
		writeJSON(w, http.StatusBadRequest, fmt.Sprintf("unknown action %s", action), nil)
	}
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request, username string) {
	id, err := s.store.CreateGraph(r.Context(), username)
	if err != nil {
		slog.Error("create graph", "error", err)
		writeJSON(w, http.StatusInternalServerError, "failed to create graph", nil)
		return
	}

	writeJSON(w, http.StatusOK, "", map[string]any{"graph_id": id})
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request, req actionRequest) {
	serialized, ok, err := s.store.GetSerializedGraph(r.Context(), req.GraphID)
	if err != nil {
		slog.Error("get serialized graph", "error", err, "graph_id", req.GraphID)
		writeJSON(w, http.StatusInternalServerError, "failed to load graph", nil)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, "graph not found", nil)
		return
	}

	data := map[string]any{"graph_id": req.GraphID}
	if serialized != "" {
		data["serialized_graph"] = json.RawMessage(serialized)
	} else {
		data["serialized_graph"] = nil
	}

	writeJSON(w, http.StatusOK, "", data)
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request, req actionRequest) {
	if len(req.SerializedGraph) == 0 {
		writeJSON(w, http.StatusBadRequest, "serialized_graph is required", nil)
		return
	}

	unlock := s.lockGraph(req.GraphID)
	defer unlock()

	ok, err := s.store.StoreSerializedGraph(r.Context(), req.GraphID, string(req.SerializedGraph))
	if err != nil {
		slog.Error("store serialized graph", "error", err, "graph_id", req.GraphID)
		writeJSON(w, http.StatusInternalServerError, "failed to store graph", nil)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, "graph not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, "", map[string]any{"graph_id": req.GraphID})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, req actionRequest) {
	unlock := s.lockGraph(req.GraphID)
	defer unlock()

	ok, err := s.store.DeleteGraph(r.Context(), req.GraphID)
	if err != nil {
		slog.Error("delete graph", "error", err, "graph_id", req.GraphID)
		writeJSON(w, http.StatusInternalServerError, "failed to delete graph", nil)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, "graph not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, "", map[string]any{"graph_id": req.GraphID})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request, username string) {
	ids, err := s.store.ListGraphs(r.Context(), username)
	if err != nil {
		slog.Error("list graphs", "error", err, "username", username)
		writeJSON(w, http.StatusInternalServerError, "failed to list graphs", nil)
		return
	}

	writeJSON(w, http.StatusOK, "", map[string]any{"graphs": ids})
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request, req actionRequest) {
	if req.TargetUser == "" || req.Permissions == nil {
		writeJSON(w, http.StatusBadRequest, "target_user and permissions are required", nil)
		return
	}

	unlock := s.lockGraph(req.GraphID)
	defer unlock()

	ok, err := s.store.ShareGraph(r.Context(), req.GraphID, req.TargetUser, auth.Bits(*req.Permissions))
	if err != nil {
		slog.Error("share graph", "error", err, "graph_id", req.GraphID)
		writeJSON(w, http.StatusInternalServerError, "failed to share graph", nil)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, "graph not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, "", map[string]any{"graph_id": req.GraphID})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request, req actionRequest) {
	unlock := s.lockGraph(req.GraphID)
	defer unlock()

	ctx := r.Context()

	serialized, ok, err := s.store.GetSerializedGraph(ctx, req.GraphID)
	if err != nil {
		slog.Error("get serialized graph", "error", err, "graph_id", req.GraphID)
		writeJSON(w, http.StatusInternalServerError, "failed to load graph", nil)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, "graph not found", nil)
		return
	}
	if serialized == "" {
		writeJSON(w, http.StatusBadRequest, "graph has no content to run", nil)
		return
	}

	var view graph.GraphView
	if err := json.Unmarshal([]byte(serialized), &view); err != nil {
		slog.Error("unmarshal serialized graph", "error", err, "graph_id", req.GraphID)
		writeJSON(w, http.StatusInternalServerError, "stored graph is corrupt", nil)
		return
	}

	g, err := graph.Deserialize(view)
	if err != nil {
		slog.Error("deserialize graph", "error", err, "graph_id", req.GraphID)
		writeJSON(w, http.StatusInternalServerError, "failed to rebuild graph", nil)
		return
	}
	g.SetExecEnv(s.execEnv)
	g.SetLLMProvider(s.llmProvider)

	if req.StartBlock != "" {
		b, ok := g.GetBlock(req.StartBlock)
		if !ok {
			writeJSON(w, http.StatusNotFound, fmt.Sprintf("start block %q not found", req.StartBlock), nil)
			return
		}
		err = g.RunAllAfterBlock(ctx, b)
	} else {
		err = g.RunAllBlocks(ctx)
	}
	if err != nil {
		writeJSON(w, statusForGraphError(err), err.Error(), nil)
		return
	}

	out, err := json.Marshal(g.Serialize())
	if err != nil {
		slog.Error("serialize graph after run", "error", err, "graph_id", req.GraphID)
		writeJSON(w, http.StatusInternalServerError, "failed to persist run results", nil)
		return
	}
	if _, err := s.store.StoreSerializedGraph(ctx, req.GraphID, string(out)); err != nil {
		slog.Error("store graph after run", "error", err, "graph_id", req.GraphID)
		writeJSON(w, http.StatusInternalServerError, "failed to persist run results", nil)
		return
	}

	writeJSON(w, http.StatusOK, "", map[string]any{"graph_id": req.GraphID})
}

// statusForGraphError maps a graph engine error (SPEC_FULL.md §7) to an HTTP
// status code: validation-shaped kinds are 400, BlockNotFound is 404,
// everything else is an internal 500.
func statusForGraphError(err error) int {
	switch {
	case errors.Is(err, graph.ErrBlockNotFound):
		return http.StatusNotFound
	case errors.Is(err, graph.ErrCyclicGraph),
		errors.Is(err, graph.ErrInvalidEndpoint),
		errors.Is(err, graph.ErrDanglingConnection):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
