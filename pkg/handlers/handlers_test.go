package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veridata-labs/veridata-engine/pkg/apperrors"
	"github.com/veridata-labs/veridata-engine/pkg/cache"
	"github.com/veridata-labs/veridata-engine/pkg/catalog"
	"github.com/veridata-labs/veridata-engine/pkg/classify"
	"github.com/veridata-labs/veridata-engine/pkg/models"
	"github.com/veridata-labs/veridata-engine/pkg/repositories"
	"github.com/veridata-labs/veridata-engine/pkg/services"
)

// stubSessionRepo is a function-field SessionRepository stub. Methods without
// a configured function are safe no-ops so the async discovery run cannot
// disturb handler assertions.
type stubSessionRepo struct {
	CreateFunc  func(ctx context.Context, session *models.DiscoverySession) error
	GetByIDFunc func(ctx context.Context, id uuid.UUID) (*models.DiscoverySession, error)
	ListFunc    func(ctx context.Context, dataSourceID string) ([]*models.DiscoverySession, error)
	DeleteFunc  func(ctx context.Context, id uuid.UUID) error
}

var _ repositories.SessionRepository = (*stubSessionRepo)(nil)

func (s *stubSessionRepo) Create(ctx context.Context, session *models.DiscoverySession) error {
	if s.CreateFunc != nil {
		return s.CreateFunc(ctx, session)
	}
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	session.Status = models.SessionStatusPending
	session.StartedAt = time.Now()
	return nil
}

func (s *stubSessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.DiscoverySession, error) {
	if s.GetByIDFunc != nil {
		return s.GetByIDFunc(ctx, id)
	}
	return nil, apperrors.ErrNotFound
}

func (s *stubSessionRepo) ListByDataSource(ctx context.Context, dataSourceID string) ([]*models.DiscoverySession, error) {
	if s.ListFunc != nil {
		return s.ListFunc(ctx, dataSourceID)
	}
	return nil, nil
}

func (s *stubSessionRepo) MarkProcessing(context.Context, uuid.UUID) error { return nil }

func (s *stubSessionRepo) UpdateProgress(context.Context, uuid.UUID, int) error { return nil }

func (s *stubSessionRepo) Complete(context.Context, uuid.UUID, repositories.SessionCounts) error {
	return nil
}

func (s *stubSessionRepo) Fail(context.Context, uuid.UUID, string) error { return nil }

func (s *stubSessionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if s.DeleteFunc != nil {
		return s.DeleteFunc(ctx, id)
	}
	return apperrors.ErrNotFound
}

func (s *stubSessionRepo) ListStale(context.Context, time.Duration) ([]*models.DiscoverySession, error) {
	return nil, nil
}

// stubFieldRepo is a function-field FieldRepository stub.
type stubFieldRepo struct {
	GetByIDFunc      func(ctx context.Context, id uuid.UUID) (*models.DiscoveredField, error)
	ListFunc         func(ctx context.Context, dataSourceID string) ([]*models.DiscoveredField, error)
	UpdateStatusFunc func(ctx context.Context, id uuid.UUID, status models.FieldStatus, userID string) (*models.DiscoveredField, error)
	StatsFunc        func(ctx context.Context, dataSourceID string) (*models.FieldStats, error)
	ListHistoryFunc  func(ctx context.Context, fieldID uuid.UUID) ([]*models.FieldClassificationHistory, error)
}

var _ repositories.FieldRepository = (*stubFieldRepo)(nil)

func (s *stubFieldRepo) UpsertGroup(context.Context, uuid.UUID, []*models.DiscoveredField) error {
	return nil
}

func (s *stubFieldRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.DiscoveredField, error) {
	if s.GetByIDFunc != nil {
		return s.GetByIDFunc(ctx, id)
	}
	return nil, apperrors.ErrNotFound
}

func (s *stubFieldRepo) ListByDataSource(ctx context.Context, dataSourceID string) ([]*models.DiscoveredField, error) {
	if s.ListFunc != nil {
		return s.ListFunc(ctx, dataSourceID)
	}
	return nil, nil
}

func (s *stubFieldRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status models.FieldStatus, userID string) (*models.DiscoveredField, error) {
	if s.UpdateStatusFunc != nil {
		return s.UpdateStatusFunc(ctx, id, status, userID)
	}
	return nil, apperrors.ErrNotFound
}

func (s *stubFieldRepo) Stats(ctx context.Context, dataSourceID string) (*models.FieldStats, error) {
	if s.StatsFunc != nil {
		return s.StatsFunc(ctx, dataSourceID)
	}
	return &models.FieldStats{}, nil
}

func (s *stubFieldRepo) ListHistory(ctx context.Context, fieldID uuid.UUID) ([]*models.FieldClassificationHistory, error) {
	if s.ListHistoryFunc != nil {
		return s.ListHistoryFunc(ctx, fieldID)
	}
	return nil, nil
}

// stubCatalog is a catalog.Client stub returning no assets.
type stubCatalog struct{}

var _ catalog.Client = (*stubCatalog)(nil)

func (stubCatalog) ListAssets(context.Context, string, int) ([]catalog.Asset, error) {
	return nil, nil
}

func (stubCatalog) GetAsset(context.Context, string) (*catalog.AssetDetail, error) {
	return nil, apperrors.ErrNotFound
}

// newDiscoveryService wires a discovery service over the stubs for handler
// tests. The background run completes immediately against the empty catalog.
func newDiscoveryService(sessions repositories.SessionRepository) *services.DiscoveryService {
	logger := zap.NewNop()
	return services.NewDiscoveryService(
		sessions,
		&stubFieldRepo{},
		stubCatalog{},
		classify.NewClassifier(nil, time.Second, logger),
		cache.NewResultCache(nil, 0, logger),
		1,
		0,
		logger,
	)
}

// doRequest runs one request through the mux and returns the recorder.
func doRequest(t *testing.T, mux *http.ServeMux, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

// httptestRequest builds a request with a raw string body.
func httptestRequest(method, path, body string) (*http.Request, *httptest.ResponseRecorder) {
	return httptest.NewRequest(method, path, strings.NewReader(body)), httptest.NewRecorder()
}

// decodeEnvelope unmarshals the success envelope, placing data into out.
func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Message string          `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.True(t, envelope.Success, "expected a success envelope, got: %s", rec.Body.String())
	if out != nil {
		require.NoError(t, json.Unmarshal(envelope.Data, out))
	}
}

// decodeError unmarshals the error body.
func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}
