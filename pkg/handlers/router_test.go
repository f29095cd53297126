package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/boreallogic/delphi-app/pkg/middleware"
	"github.com/boreallogic/delphi-app/pkg/models"
)

var (
	facilitatorID = uuid.MustParse("0b8e6f0e-7a0c-4d55-8c56-6f0a3d4f1b21")
	panelistID    = uuid.MustParse("9d2f3b4a-1c5e-4f6a-8b7c-0d1e2f3a4b5c")
)

// newTestMux registers every handler the way main does, without a DB scope.
func newTestMux(studies *mockStudyService, lifecycle *mockLifecycleService, ratings *mockRatingService) *http.ServeMux {
	logger := zap.NewNop()
	mux := http.NewServeMux()

	facilitator := Middleware(middleware.RequireActor(logger, models.ActorFacilitator))
	panelist := Middleware(middleware.RequireActor(logger, models.ActorPanelist))

	NewStudyHandler(studies, logger).RegisterRoutes(mux, nil, facilitator)
	NewActionHandler(lifecycle, logger).RegisterRoutes(mux, nil, facilitator)
	NewRatingHandler(ratings, logger).RegisterRoutes(mux, nil, panelist)
	return mux
}

func doRequest(t *testing.T, mux http.Handler, method, path string, actor *models.Actor, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if actor != nil {
		req.Header.Set(middleware.HeaderActorType, string(actor.Type))
		req.Header.Set(middleware.HeaderActorID, actor.ID.String())
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder, data any) ApiResponse {
	t.Helper()
	var raw struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
		Message string          `json:"message"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&raw))
	if data != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return ApiResponse{Success: raw.Success, Error: raw.Error, Message: raw.Message}
}

func facilitatorActor() *models.Actor {
	return &models.Actor{Type: models.ActorFacilitator, ID: facilitatorID}
}

func panelistActor() *models.Actor {
	return &models.Actor{Type: models.ActorPanelist, ID: panelistID}
}
