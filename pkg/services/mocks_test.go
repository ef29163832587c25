package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veridata-labs/veridata-engine/pkg/apperrors"
	"github.com/veridata-labs/veridata-engine/pkg/catalog"
	"github.com/veridata-labs/veridata-engine/pkg/models"
	"github.com/veridata-labs/veridata-engine/pkg/repositories"
)

// fakeSessionRepo is an in-memory SessionRepository that records progress
// updates for assertions.
type fakeSessionRepo struct {
	mu              sync.Mutex
	sessions        map[uuid.UUID]*models.DiscoverySession
	progressUpdates []int
	stale           []*models.DiscoverySession

	createErr error
	failErr   error
	listErr   error
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[uuid.UUID]*models.DiscoverySession)}
}

var _ repositories.SessionRepository = (*fakeSessionRepo)(nil)

func (r *fakeSessionRepo) Create(_ context.Context, session *models.DiscoverySession) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	session.Status = models.SessionStatusPending
	session.StartedAt = time.Now()
	copied := *session
	r.sessions[session.ID] = &copied
	return nil
}

func (r *fakeSessionRepo) GetByID(_ context.Context, id uuid.UUID) (*models.DiscoverySession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *session
	return &copied, nil
}

func (r *fakeSessionRepo) ListByDataSource(_ context.Context, dataSourceID string) ([]*models.DiscoverySession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.DiscoverySession
	for _, s := range r.sessions {
		if dataSourceID == "" || s.DataSourceID == dataSourceID {
			copied := *s
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeSessionRepo) MarkProcessing(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	if session.Status != models.SessionStatusPending {
		return apperrors.ErrConflict
	}
	session.Status = models.SessionStatusProcessing
	return nil
}

func (r *fakeSessionRepo) UpdateProgress(_ context.Context, id uuid.UUID, progress int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	r.progressUpdates = append(r.progressUpdates, progress)
	if progress > session.Progress {
		session.Progress = progress
	}
	return nil
}

func (r *fakeSessionRepo) Complete(_ context.Context, id uuid.UUID, counts repositories.SessionCounts) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	session.Status = models.SessionStatusCompleted
	session.Progress = 100
	session.FieldsDiscovered = counts.FieldsDiscovered
	session.FieldsClassified = counts.FieldsClassified
	session.PIIFieldsFound = counts.PIIFieldsFound
	now := time.Now()
	session.CompletedAt = &now
	return nil
}

func (r *fakeSessionRepo) Fail(_ context.Context, id uuid.UUID, errorMessage string) error {
	if r.failErr != nil {
		return r.failErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	session.Status = models.SessionStatusFailed
	session.ErrorMessage = &errorMessage
	return nil
}

func (r *fakeSessionRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	if !session.Status.IsTerminal() {
		return apperrors.ErrSessionNotTerminal
	}
	delete(r.sessions, id)
	return nil
}

func (r *fakeSessionRepo) ListStale(_ context.Context, _ time.Duration) ([]*models.DiscoverySession, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.stale, nil
}

func (r *fakeSessionRepo) progressHistory() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.progressUpdates...)
}

// mockFieldRepo is a function-field FieldRepository mock.
type mockFieldRepo struct {
	mu       sync.Mutex
	upserted []*models.DiscoveredField

	UpsertGroupFunc  func(ctx context.Context, sessionID uuid.UUID, fields []*models.DiscoveredField) error
	GetByIDFunc      func(ctx context.Context, id uuid.UUID) (*models.DiscoveredField, error)
	ListFunc         func(ctx context.Context, dataSourceID string) ([]*models.DiscoveredField, error)
	UpdateStatusFunc func(ctx context.Context, id uuid.UUID, status models.FieldStatus, userID string) (*models.DiscoveredField, error)
	StatsFunc        func(ctx context.Context, dataSourceID string) (*models.FieldStats, error)
	ListHistoryFunc  func(ctx context.Context, fieldID uuid.UUID) ([]*models.FieldClassificationHistory, error)
}

var _ repositories.FieldRepository = (*mockFieldRepo)(nil)

func (m *mockFieldRepo) UpsertGroup(ctx context.Context, sessionID uuid.UUID, fields []*models.DiscoveredField) error {
	if m.UpsertGroupFunc != nil {
		return m.UpsertGroupFunc(ctx, sessionID, fields)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserted = append(m.upserted, fields...)
	return nil
}

func (m *mockFieldRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.DiscoveredField, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockFieldRepo) ListByDataSource(ctx context.Context, dataSourceID string) ([]*models.DiscoveredField, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, dataSourceID)
	}
	return nil, nil
}

func (m *mockFieldRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status models.FieldStatus, userID string) (*models.DiscoveredField, error) {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, id, status, userID)
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockFieldRepo) Stats(ctx context.Context, dataSourceID string) (*models.FieldStats, error) {
	if m.StatsFunc != nil {
		return m.StatsFunc(ctx, dataSourceID)
	}
	return &models.FieldStats{}, nil
}

func (m *mockFieldRepo) ListHistory(ctx context.Context, fieldID uuid.UUID) ([]*models.FieldClassificationHistory, error) {
	if m.ListHistoryFunc != nil {
		return m.ListHistoryFunc(ctx, fieldID)
	}
	return nil, nil
}

func (m *mockFieldRepo) upsertedFields() []*models.DiscoveredField {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.DiscoveredField(nil), m.upserted...)
}

// mockCatalog is a function-field catalog.Client mock.
type mockCatalog struct {
	ListAssetsFunc func(ctx context.Context, dataSourceID string, limit int) ([]catalog.Asset, error)
	GetAssetFunc   func(ctx context.Context, assetID string) (*catalog.AssetDetail, error)
}

var _ catalog.Client = (*mockCatalog)(nil)

func (m *mockCatalog) ListAssets(ctx context.Context, dataSourceID string, limit int) ([]catalog.Asset, error) {
	if m.ListAssetsFunc != nil {
		return m.ListAssetsFunc(ctx, dataSourceID, limit)
	}
	return nil, fmt.Errorf("ListAssets not configured")
}

func (m *mockCatalog) GetAsset(ctx context.Context, assetID string) (*catalog.AssetDetail, error) {
	if m.GetAssetFunc != nil {
		return m.GetAssetFunc(ctx, assetID)
	}
	return nil, fmt.Errorf("GetAsset not configured")
}
