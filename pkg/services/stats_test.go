package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veridata-labs/veridata-engine/pkg/models"
)

func TestFieldStats(t *testing.T) {
	fields := &mockFieldRepo{
		StatsFunc: func(_ context.Context, dataSourceID string) (*models.FieldStats, error) {
			assert.Equal(t, "ds-1", dataSourceID)
			return &models.FieldStats{
				TotalFields:       12,
				ByStatus:          map[models.FieldStatus]int{models.FieldStatusPending: 10, models.FieldStatusAccepted: 2},
				ByClassification:  map[models.Classification]int{models.ClassificationPII: 4},
				BySensitivity:     map[models.Sensitivity]int{models.SensitivityCritical: 4},
				AverageConfidence: 0.83,
				RecentDiscoveries: 12,
			}, nil
		},
	}
	svc := NewStatsService(fields, zap.NewNop())

	stats, err := svc.FieldStats(context.Background(), "ds-1")
	require.NoError(t, err)
	assert.Equal(t, 12, stats.TotalFields)
	assert.Equal(t, 4, stats.ByClassification[models.ClassificationPII])
}
