package handlers

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veridata-labs/veridata-engine/pkg/apperrors"
	"github.com/veridata-labs/veridata-engine/pkg/models"
)

func newDiscoveryMux(sessions *stubSessionRepo) *http.ServeMux {
	mux := http.NewServeMux()
	NewDiscoveryHandler(newDiscoveryService(sessions), zap.NewNop()).RegisterRoutes(mux)
	return mux
}

func TestDiscoveryStart(t *testing.T) {
	mux := newDiscoveryMux(&stubSessionRepo{})

	rec := doRequest(t, mux, http.MethodPost, "/api/discovery/sessions", StartDiscoveryRequest{
		DataSourceID: "ds-1",
		TargetTables: []string{"users"},
	})

	require.Equal(t, http.StatusAccepted, rec.Code)

	var session SessionResponse
	decodeEnvelope(t, rec, &session)
	assert.NotEmpty(t, session.SessionID)
	assert.Equal(t, "ds-1", session.DataSourceID)
	assert.Equal(t, "pending", session.Status)
	assert.Equal(t, 0, session.Progress)
	assert.Equal(t, []string{"users"}, session.TargetTables)
	assert.NotEmpty(t, session.StartedAt)
	assert.Empty(t, session.CompletedAt)
}

func TestDiscoveryStart_MissingDataSource(t *testing.T) {
	mux := newDiscoveryMux(&stubSessionRepo{})

	rec := doRequest(t, mux, http.MethodPost, "/api/discovery/sessions", StartDiscoveryRequest{})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_data_source", decodeError(t, rec)["error"])
}

func TestDiscoveryStart_InvalidJSON(t *testing.T) {
	mux := newDiscoveryMux(&stubSessionRepo{})

	req, rec := httptestRequest(http.MethodPost, "/api/discovery/sessions", "{not json")
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decodeError(t, rec)["error"])
}

func TestDiscoveryGet(t *testing.T) {
	sessionID := uuid.New()
	completedAt := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	sessions := &stubSessionRepo{
		GetByIDFunc: func(_ context.Context, id uuid.UUID) (*models.DiscoverySession, error) {
			require.Equal(t, sessionID, id)
			return &models.DiscoverySession{
				ID:               id,
				DataSourceID:     "ds-1",
				Status:           models.SessionStatusCompleted,
				Progress:         100,
				FieldsDiscovered: 7,
				FieldsClassified: 7,
				PIIFieldsFound:   2,
				StartedAt:        completedAt.Add(-time.Minute),
				CompletedAt:      &completedAt,
			}, nil
		},
	}
	mux := newDiscoveryMux(sessions)

	rec := doRequest(t, mux, http.MethodGet, "/api/discovery/sessions/"+sessionID.String(), nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var session SessionResponse
	decodeEnvelope(t, rec, &session)
	assert.Equal(t, "completed", session.Status)
	assert.Equal(t, 100, session.Progress)
	assert.Equal(t, 7, session.FieldsDiscovered)
	assert.Equal(t, 2, session.PIIFieldsFound)
	assert.Equal(t, "2026-08-20T12:00:00Z", session.CompletedAt)
}

func TestDiscoveryGet_NotFound(t *testing.T) {
	mux := newDiscoveryMux(&stubSessionRepo{})

	rec := doRequest(t, mux, http.MethodGet, "/api/discovery/sessions/"+uuid.NewString(), nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec)["error"])
}

func TestDiscoveryGet_InvalidID(t *testing.T) {
	mux := newDiscoveryMux(&stubSessionRepo{})

	rec := doRequest(t, mux, http.MethodGet, "/api/discovery/sessions/not-a-uuid", nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_session_id", decodeError(t, rec)["error"])
}

func TestDiscoveryList(t *testing.T) {
	sessions := &stubSessionRepo{
		ListFunc: func(_ context.Context, dataSourceID string) ([]*models.DiscoverySession, error) {
			assert.Equal(t, "ds-1", dataSourceID)
			return []*models.DiscoverySession{
				{ID: uuid.New(), DataSourceID: "ds-1", Status: models.SessionStatusProcessing, Progress: 65, StartedAt: time.Now()},
			}, nil
		},
	}
	mux := newDiscoveryMux(sessions)

	rec := doRequest(t, mux, http.MethodGet, "/api/discovery/sessions?dataSourceId=ds-1", nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var list ListSessionsResponse
	decodeEnvelope(t, rec, &list)
	require.Len(t, list.Sessions, 1)
	assert.Equal(t, "processing", list.Sessions[0].Status)
	assert.Equal(t, 65, list.Sessions[0].Progress)
}

func TestDiscoveryDelete(t *testing.T) {
	sessions := &stubSessionRepo{
		DeleteFunc: func(context.Context, uuid.UUID) error { return nil },
	}
	mux := newDiscoveryMux(sessions)

	rec := doRequest(t, mux, http.MethodDelete, "/api/discovery/sessions/"+uuid.NewString(), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Session deleted")
}

func TestDiscoveryDelete_RunningSessionConflicts(t *testing.T) {
	sessions := &stubSessionRepo{
		DeleteFunc: func(context.Context, uuid.UUID) error { return apperrors.ErrSessionNotTerminal },
	}
	mux := newDiscoveryMux(sessions)

	rec := doRequest(t, mux, http.MethodDelete, "/api/discovery/sessions/"+uuid.NewString(), nil)

	require.Equal(t, http.StatusConflict, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "conflict", body["error"])
	assert.True(t, strings.Contains(body["message"], "still running"))
}
