package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veridata-labs/veridata-engine/pkg/apperrors"
	"github.com/veridata-labs/veridata-engine/pkg/models"
)

func TestUpdateFieldStatus(t *testing.T) {
	fieldID := uuid.New()
	fields := &mockFieldRepo{
		UpdateStatusFunc: func(_ context.Context, id uuid.UUID, status models.FieldStatus, userID string) (*models.DiscoveredField, error) {
			assert.Equal(t, fieldID, id)
			assert.Equal(t, models.FieldStatusAccepted, status)
			assert.Equal(t, "reviewer-1", userID)
			return &models.DiscoveredField{ID: id, Status: status}, nil
		},
	}
	svc := NewReviewService(fields, zap.NewNop())

	field, err := svc.UpdateFieldStatus(context.Background(), fieldID, models.FieldStatusAccepted, "reviewer-1")
	require.NoError(t, err)
	assert.Equal(t, models.FieldStatusAccepted, field.Status)
}

func TestUpdateFieldStatus_Validation(t *testing.T) {
	svc := NewReviewService(&mockFieldRepo{}, zap.NewNop())

	_, err := svc.UpdateFieldStatus(context.Background(), uuid.New(), "approved", "reviewer-1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidStatus)

	_, err = svc.UpdateFieldStatus(context.Background(), uuid.New(), models.FieldStatusAccepted, "")
	assert.Error(t, err)
}

func TestUpdateFieldStatus_UnknownField(t *testing.T) {
	svc := NewReviewService(&mockFieldRepo{
		UpdateStatusFunc: func(context.Context, uuid.UUID, models.FieldStatus, string) (*models.DiscoveredField, error) {
			return nil, apperrors.ErrNotFound
		},
	}, zap.NewNop())

	_, err := svc.UpdateFieldStatus(context.Background(), uuid.New(), models.FieldStatusRejected, "reviewer-1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestBulkUpdateStatus_PartialFailure(t *testing.T) {
	good, bad := uuid.New(), uuid.New()
	fields := &mockFieldRepo{
		UpdateStatusFunc: func(_ context.Context, id uuid.UUID, status models.FieldStatus, _ string) (*models.DiscoveredField, error) {
			if id == bad {
				return nil, apperrors.ErrNotFound
			}
			return &models.DiscoveredField{ID: id, Status: status}, nil
		},
	}
	svc := NewReviewService(fields, zap.NewNop())

	result, err := svc.BulkUpdateStatus(context.Background(), []uuid.UUID{good, bad}, models.FieldStatusAccepted, "reviewer-1")
	require.NoError(t, err, "a failing item must not fail the batch")

	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Items, 2)
	assert.Empty(t, result.Items[0].Error)
	assert.Equal(t, bad, result.Items[1].FieldID)
	assert.NotEmpty(t, result.Items[1].Error)
}

func TestBulkUpdateStatus_Validation(t *testing.T) {
	svc := NewReviewService(&mockFieldRepo{}, zap.NewNop())

	_, err := svc.BulkUpdateStatus(context.Background(), []uuid.UUID{uuid.New()}, "nonsense", "reviewer-1")
	assert.ErrorIs(t, err, apperrors.ErrInvalidStatus)

	_, err = svc.BulkUpdateStatus(context.Background(), nil, models.FieldStatusAccepted, "reviewer-1")
	assert.Error(t, err)
}

func TestGetFieldHistory_ChecksFieldExists(t *testing.T) {
	fields := &mockFieldRepo{
		ListHistoryFunc: func(context.Context, uuid.UUID) ([]*models.FieldClassificationHistory, error) {
			t.Fatal("history must not be listed for a missing field")
			return nil, nil
		},
	}
	svc := NewReviewService(fields, zap.NewNop())

	_, err := svc.GetFieldHistory(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGetFieldHistory(t *testing.T) {
	fieldID := uuid.New()
	fields := &mockFieldRepo{
		GetByIDFunc: func(_ context.Context, id uuid.UUID) (*models.DiscoveredField, error) {
			return &models.DiscoveredField{ID: id}, nil
		},
		ListHistoryFunc: func(_ context.Context, id uuid.UUID) ([]*models.FieldClassificationHistory, error) {
			return []*models.FieldClassificationHistory{
				{FieldID: id, NewClassification: models.ClassificationPII, NewStatus: models.FieldStatusPending},
				{FieldID: id, NewClassification: models.ClassificationPII, NewStatus: models.FieldStatusAccepted},
			}, nil
		},
	}
	svc := NewReviewService(fields, zap.NewNop())

	history, err := svc.GetFieldHistory(context.Background(), fieldID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.FieldStatusAccepted, history[1].NewStatus)
}
