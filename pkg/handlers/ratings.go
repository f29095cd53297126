package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/boreallogic/delphi-app/pkg/models"
	"github.com/boreallogic/delphi-app/pkg/services"
)

// RatingListResponse for GET /api/studies/{sid}/ratings
type RatingListResponse struct {
	Ratings []*models.Rating `json:"ratings"`
	Total   int              `json:"total"`
}

// RatingHandler accepts panelist responses. The calling panelist is the
// participant identified by the actor headers.
type RatingHandler struct {
	ratingService services.RatingService
	logger        *zap.Logger
}

// NewRatingHandler creates a new rating handler.
func NewRatingHandler(ratingService services.RatingService, logger *zap.Logger) *RatingHandler {
	return &RatingHandler{
		ratingService: ratingService,
		logger:        logger,
	}
}

// RegisterRoutes registers the rating handler's routes on the given mux.
func (h *RatingHandler) RegisterRoutes(mux *http.ServeMux, scope, panelist Middleware) {
	base := "/api/studies/{sid}/ratings"

	mux.HandleFunc("POST "+base, chain(h.Submit, panelist, scope))
	mux.HandleFunc("GET "+base, chain(h.List, panelist, scope))
}

// Submit handles POST /api/studies/{sid}/ratings
func (h *RatingHandler) Submit(w http.ResponseWriter, r *http.Request) {
	studyID, ok := ParseStudyID(w, r, h.logger)
	if !ok {
		return
	}
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}

	var req services.RatingInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", h.logger)
		return
	}
	req.StudyID = studyID

	rating, err := h.ratingService.SubmitRating(r.Context(), actor.ID, req)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeOK(w, http.StatusOK, rating, h.logger)
}

// List handles GET /api/studies/{sid}/ratings?round=N
func (h *RatingHandler) List(w http.ResponseWriter, r *http.Request) {
	studyID, ok := ParseStudyID(w, r, h.logger)
	if !ok {
		return
	}
	actor, ok := requireActor(w, r, h.logger)
	if !ok {
		return
	}
	round, ok := parseOptionalInt(w, r, "round", h.logger)
	if !ok {
		return
	}

	ratings, err := h.ratingService.ListRatings(r.Context(), actor.ID, round)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	inStudy := make([]*models.Rating, 0, len(ratings))
	for _, rt := range ratings {
		if rt.StudyID == studyID {
			inStudy = append(inStudy, rt)
		}
	}

	writeOK(w, http.StatusOK, RatingListResponse{Ratings: inStudy, Total: len(inStudy)}, h.logger)
}
