package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ParseStudyID extracts and validates the study ID from the request path.
// Returns the parsed UUID and true on success, or uuid.Nil and false on error
// (after writing an error response).
// Expects path parameter: sid
func ParseStudyID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "sid", "invalid_study_id", "Invalid study ID format", logger)
}

// ParseParticipantID extracts and validates the participant ID from the request path.
// Expects path parameter: pid
func ParseParticipantID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "pid", "invalid_participant_id", "Invalid participant ID format", logger)
}

// ParseRoundNumber extracts the 1-based round number from the request path.
// Expects path parameter: round
func ParseRoundNumber(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (int, bool) {
	n, err := strconv.Atoi(r.PathValue("round"))
	if err != nil || n < 1 {
		writeError(w, http.StatusBadRequest, "invalid_round", "Round must be a positive integer", logger)
		return 0, false
	}
	return n, true
}

// parseOptionalInt reads an integer query parameter. A missing parameter
// returns nil.
func parseOptionalInt(w http.ResponseWriter, r *http.Request, name string, logger *zap.Logger) (*int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, "Query parameter "+name+" must be an integer", logger)
		return nil, false
	}
	return &n, true
}

// parseUUID is the internal helper that does the actual parsing work.
func parseUUID(w http.ResponseWriter, r *http.Request, pathParam, errorCode, errorMessage string, logger *zap.Logger) (uuid.UUID, bool) {
	idStr := r.PathValue(pathParam)
	id, err := uuid.Parse(idStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, errorCode, errorMessage, logger)
		return uuid.Nil, false
	}
	return id, true
}
