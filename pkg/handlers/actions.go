package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/boreallogic/delphi-app/pkg/models"
	"github.com/boreallogic/delphi-app/pkg/services"
)

// ApplyActionRequest for POST /api/studies/{sid}/actions
type ApplyActionRequest struct {
	Action string `json:"action"`
}

// ActionHandler exposes the study lifecycle state machine.
type ActionHandler struct {
	lifecycle services.StudyLifecycleService
	logger    *zap.Logger
}

// NewActionHandler creates a new action handler.
func NewActionHandler(lifecycle services.StudyLifecycleService, logger *zap.Logger) *ActionHandler {
	return &ActionHandler{
		lifecycle: lifecycle,
		logger:    logger,
	}
}

// RegisterRoutes registers the action handler's routes on the given mux.
func (h *ActionHandler) RegisterRoutes(mux *http.ServeMux, scope, facilitator Middleware) {
	mux.HandleFunc("POST /api/studies/{sid}/actions", chain(h.Apply, facilitator, scope))
	mux.HandleFunc("POST /api/studies/{sid}/rounds/{round}/recompute", chain(h.Recompute, facilitator, scope))
}

// Apply handles POST /api/studies/{sid}/actions
// The action name is matched exactly; "close_round" is an unknown action.
func (h *ActionHandler) Apply(w http.ResponseWriter, r *http.Request) {
	studyID, ok := ParseStudyID(w, r, h.logger)
	if !ok {
		return
	}
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	var req ApplyActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", h.logger)
		return
	}
	state, err := h.lifecycle.ApplyAction(r.Context(), studyID, models.StudyAction(req.Action), actor)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeOK(w, http.StatusOK, state, h.logger)
}

// Recompute handles POST /api/studies/{sid}/rounds/{round}/recompute
func (h *ActionHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	studyID, ok := ParseStudyID(w, r, h.logger)
	if !ok {
		return
	}
	round, ok := ParseRoundNumber(w, r, h.logger)
	if !ok {
		return
	}
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	summaries, err := h.lifecycle.RecomputeRoundSummaries(r.Context(), studyID, round, actor)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeOK(w, http.StatusOK, newRoundSummariesResponse(round, summaries), h.logger)
}
