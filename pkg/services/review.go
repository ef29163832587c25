package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veridata-labs/veridata-engine/pkg/apperrors"
	"github.com/veridata-labs/veridata-engine/pkg/models"
	"github.com/veridata-labs/veridata-engine/pkg/repositories"
)

// ReviewService applies human review decisions to discovered fields.
type ReviewService struct {
	fields repositories.FieldRepository
	logger *zap.Logger
}

// NewReviewService creates a review service.
func NewReviewService(fields repositories.FieldRepository, logger *zap.Logger) *ReviewService {
	return &ReviewService{
		fields: fields,
		logger: logger.Named("review"),
	}
}

// UpdateFieldStatus applies one review decision. The decision is stamped with
// the reviewer and recorded in the field's audit history.
func (s *ReviewService) UpdateFieldStatus(ctx context.Context, fieldID uuid.UUID, status models.FieldStatus, userID string) (*models.DiscoveredField, error) {
	if !models.ValidFieldStatus(status) {
		return nil, fmt.Errorf("status %q: %w", status, apperrors.ErrInvalidStatus)
	}
	if userID == "" {
		return nil, fmt.Errorf("reviewer id is required")
	}

	field, err := s.fields.UpdateStatus(ctx, fieldID, status, userID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Field status updated",
		zap.String("field_id", fieldID.String()),
		zap.String("status", string(status)),
		zap.String("reviewed_by", userID))

	return field, nil
}

// BulkResultItem is the outcome of one item in a bulk review.
type BulkResultItem struct {
	FieldID uuid.UUID `json:"field_id"`
	Error   string    `json:"error,omitempty"`
}

// BulkResult summarizes a bulk review operation.
type BulkResult struct {
	Updated int              `json:"updated"`
	Failed  int              `json:"failed"`
	Items   []BulkResultItem `json:"items"`
}

// BulkUpdateStatus applies one review decision to many fields. Items are
// processed independently: a failing field is reported and skipped, the rest
// still apply.
func (s *ReviewService) BulkUpdateStatus(ctx context.Context, fieldIDs []uuid.UUID, status models.FieldStatus, userID string) (*BulkResult, error) {
	if !models.ValidFieldStatus(status) {
		return nil, fmt.Errorf("status %q: %w", status, apperrors.ErrInvalidStatus)
	}
	if userID == "" {
		return nil, fmt.Errorf("reviewer id is required")
	}
	if len(fieldIDs) == 0 {
		return nil, fmt.Errorf("no field ids provided")
	}

	result := &BulkResult{Items: make([]BulkResultItem, 0, len(fieldIDs))}
	for _, id := range fieldIDs {
		item := BulkResultItem{FieldID: id}
		if _, err := s.fields.UpdateStatus(ctx, id, status, userID); err != nil {
			item.Error = err.Error()
			result.Failed++
			s.logger.Warn("Bulk status update item failed",
				zap.String("field_id", id.String()), zap.Error(err))
		} else {
			result.Updated++
		}
		result.Items = append(result.Items, item)
	}

	return result, nil
}

// GetField retrieves one discovered field.
func (s *ReviewService) GetField(ctx context.Context, fieldID uuid.UUID) (*models.DiscoveredField, error) {
	return s.fields.GetByID(ctx, fieldID)
}

// ListFields retrieves discovered fields for a data source.
func (s *ReviewService) ListFields(ctx context.Context, dataSourceID string) ([]*models.DiscoveredField, error) {
	return s.fields.ListByDataSource(ctx, dataSourceID)
}

// GetFieldHistory retrieves the audit trail for a field, oldest first.
func (s *ReviewService) GetFieldHistory(ctx context.Context, fieldID uuid.UUID) ([]*models.FieldClassificationHistory, error) {
	if _, err := s.fields.GetByID(ctx, fieldID); err != nil {
		return nil, err
	}
	return s.fields.ListHistory(ctx, fieldID)
}
