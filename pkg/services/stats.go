package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/veridata-labs/veridata-engine/pkg/models"
	"github.com/veridata-labs/veridata-engine/pkg/repositories"
)

// StatsService exposes aggregate views over discovered fields.
type StatsService struct {
	fields repositories.FieldRepository
	logger *zap.Logger
}

// NewStatsService creates a stats service.
func NewStatsService(fields repositories.FieldRepository, logger *zap.Logger) *StatsService {
	return &StatsService{
		fields: fields,
		logger: logger.Named("stats"),
	}
}

// FieldStats aggregates discovered fields. An empty dataSourceID aggregates
// across all data sources.
func (s *StatsService) FieldStats(ctx context.Context, dataSourceID string) (*models.FieldStats, error) {
	return s.fields.Stats(ctx, dataSourceID)
}
