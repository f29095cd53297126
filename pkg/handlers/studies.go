package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/boreallogic/delphi-app/pkg/models"
	"github.com/boreallogic/delphi-app/pkg/services"
)

// ============================================================================
// Request/Response Types
// ============================================================================

// StudyListResponse for GET /api/studies
type StudyListResponse struct {
	Studies []*models.Study `json:"studies"`
	Total   int             `json:"total"`
}

// ItemListResponse for GET /api/studies/{sid}/items
type ItemListResponse struct {
	Items []*models.Item `json:"items"`
	Total int            `json:"total"`
}

// ParticipantListResponse for GET /api/studies/{sid}/participants
type ParticipantListResponse struct {
	Participants []*models.Participant `json:"participants"`
	Total        int                   `json:"total"`
}

// UpdateRoleRequest for PUT /api/studies/{sid}/participants/{pid}/role
type UpdateRoleRequest struct {
	Role models.Role `json:"role"`
}

// RoundSummariesResponse for GET /api/studies/{sid}/rounds/{round}/summaries
type RoundSummariesResponse struct {
	RoundNumber int                    `json:"round_number"`
	Summaries   []*models.RoundSummary `json:"summaries"`
	Consensus   int                    `json:"consensus_count"`
}

func newRoundSummariesResponse(round int, summaries []*models.RoundSummary) RoundSummariesResponse {
	resp := RoundSummariesResponse{RoundNumber: round, Summaries: summaries}
	for _, s := range summaries {
		if s.ConsensusReached {
			resp.Consensus++
		}
	}
	return resp
}

// AuditLogResponse for GET /api/studies/{sid}/audit
type AuditLogResponse struct {
	Entries []*models.AuditLogEntry `json:"entries"`
}

// ============================================================================
// Handler
// ============================================================================

// StudyHandler handles study setup and read endpoints.
type StudyHandler struct {
	studyService services.StudyService
	logger       *zap.Logger
}

// NewStudyHandler creates a new study handler.
func NewStudyHandler(studyService services.StudyService, logger *zap.Logger) *StudyHandler {
	return &StudyHandler{
		studyService: studyService,
		logger:       logger,
	}
}

// RegisterRoutes registers the study handler's routes on the given mux.
// Mutating routes additionally pass through facilitator.
func (h *StudyHandler) RegisterRoutes(mux *http.ServeMux, scope, facilitator Middleware) {
	base := "/api/studies"

	mux.HandleFunc("GET "+base, chain(h.List, scope))
	mux.HandleFunc("POST "+base, chain(h.Create, facilitator, scope))
	mux.HandleFunc("GET "+base+"/{sid}", chain(h.Get, scope))
	mux.HandleFunc("GET "+base+"/{sid}/items", chain(h.ListItems, scope))
	mux.HandleFunc("GET "+base+"/{sid}/participants", chain(h.ListParticipants, facilitator, scope))
	mux.HandleFunc("POST "+base+"/{sid}/participants", chain(h.AddParticipant, facilitator, scope))
	mux.HandleFunc("PUT "+base+"/{sid}/participants/{pid}/role", chain(h.UpdateParticipantRole, facilitator, scope))
	mux.HandleFunc("GET "+base+"/{sid}/rounds/{round}/summaries", chain(h.RoundSummaries, scope))
	mux.HandleFunc("GET "+base+"/{sid}/audit", chain(h.AuditLog, facilitator, scope))
}

// List handles GET /api/studies
func (h *StudyHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseOptionalInt(w, r, "limit", h.logger)
	if !ok {
		return
	}
	n := 0
	if limit != nil {
		n = *limit
	}

	studies, err := h.studyService.ListStudies(r.Context(), n)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeOK(w, http.StatusOK, StudyListResponse{Studies: studies, Total: len(studies)}, h.logger)
}

// Create handles POST /api/studies
func (h *StudyHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	var req services.CreateStudyInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", h.logger)
		return
	}

	state, err := h.studyService.CreateStudy(r.Context(), req, actor)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeOK(w, http.StatusCreated, state, h.logger)
}

// Get handles GET /api/studies/{sid}
func (h *StudyHandler) Get(w http.ResponseWriter, r *http.Request) {
	studyID, ok := ParseStudyID(w, r, h.logger)
	if !ok {
		return
	}

	state, err := h.studyService.GetState(r.Context(), studyID)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeOK(w, http.StatusOK, state, h.logger)
}

// ListItems handles GET /api/studies/{sid}/items
func (h *StudyHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	studyID, ok := ParseStudyID(w, r, h.logger)
	if !ok {
		return
	}

	items, err := h.studyService.ListItems(r.Context(), studyID)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeOK(w, http.StatusOK, ItemListResponse{Items: items, Total: len(items)}, h.logger)
}

// ListParticipants handles GET /api/studies/{sid}/participants
func (h *StudyHandler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	studyID, ok := ParseStudyID(w, r, h.logger)
	if !ok {
		return
	}

	participants, err := h.studyService.ListParticipants(r.Context(), studyID)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeOK(w, http.StatusOK, ParticipantListResponse{Participants: participants, Total: len(participants)}, h.logger)
}

// AddParticipant handles POST /api/studies/{sid}/participants
func (h *StudyHandler) AddParticipant(w http.ResponseWriter, r *http.Request) {
	studyID, ok := ParseStudyID(w, r, h.logger)
	if !ok {
		return
	}
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	var req services.ParticipantInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", h.logger)
		return
	}

	p, err := h.studyService.AddParticipant(r.Context(), studyID, req, actor)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeOK(w, http.StatusCreated, p, h.logger)
}

// UpdateParticipantRole handles PUT /api/studies/{sid}/participants/{pid}/role
func (h *StudyHandler) UpdateParticipantRole(w http.ResponseWriter, r *http.Request) {
	studyID, ok := ParseStudyID(w, r, h.logger)
	if !ok {
		return
	}
	participantID, ok := ParseParticipantID(w, r, h.logger)
	if !ok {
		return
	}
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	var req UpdateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", h.logger)
		return
	}

	p, err := h.studyService.UpdateParticipantRole(r.Context(), studyID, participantID, req.Role, actor)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeOK(w, http.StatusOK, p, h.logger)
}

// RoundSummaries handles GET /api/studies/{sid}/rounds/{round}/summaries
func (h *StudyHandler) RoundSummaries(w http.ResponseWriter, r *http.Request) {
	studyID, ok := ParseStudyID(w, r, h.logger)
	if !ok {
		return
	}
	round, ok := ParseRoundNumber(w, r, h.logger)
	if !ok {
		return
	}

	summaries, err := h.studyService.GetRoundSummaries(r.Context(), studyID, round)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeOK(w, http.StatusOK, newRoundSummariesResponse(round, summaries), h.logger)
}

// AuditLog handles GET /api/studies/{sid}/audit
func (h *StudyHandler) AuditLog(w http.ResponseWriter, r *http.Request) {
	studyID, ok := ParseStudyID(w, r, h.logger)
	if !ok {
		return
	}
	limit, ok := parseOptionalInt(w, r, "limit", h.logger)
	if !ok {
		return
	}
	n := 100
	if limit != nil {
		n = *limit
	}

	entries, err := h.studyService.GetAuditLog(r.Context(), studyID, n)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeOK(w, http.StatusOK, AuditLogResponse{Entries: entries}, h.logger)
}

// requireActor reads the actor stored by middleware.RequireActor.
func requireActor(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (models.Actor, bool) {
	actor, ok := models.GetActor(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_actor", "Actor identity is required", logger)
		return models.Actor{}, false
	}
	return actor, true
}
