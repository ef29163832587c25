package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veridata-labs/veridata-engine/pkg/models"
	"github.com/veridata-labs/veridata-engine/pkg/services"
)

func newStatsMux(fields *stubFieldRepo) *http.ServeMux {
	mux := http.NewServeMux()
	NewStatsHandler(services.NewStatsService(fields, zap.NewNop()), zap.NewNop()).RegisterRoutes(mux)
	// Registered together in production; the literal stats route must win
	// over the {fid} pattern.
	NewFieldsHandler(services.NewReviewService(fields, zap.NewNop()), zap.NewNop()).RegisterRoutes(mux)
	return mux
}

func TestStatsGet(t *testing.T) {
	fields := &stubFieldRepo{
		StatsFunc: func(_ context.Context, dataSourceID string) (*models.FieldStats, error) {
			assert.Equal(t, "ds-1", dataSourceID)
			return &models.FieldStats{
				TotalFields: 9,
				ByStatus: map[models.FieldStatus]int{
					models.FieldStatusPending:  6,
					models.FieldStatusAccepted: 3,
				},
				ByClassification: map[models.Classification]int{
					models.ClassificationPII:     4,
					models.ClassificationGeneral: 5,
				},
				BySensitivity: map[models.Sensitivity]int{
					models.SensitivityCritical: 4,
					models.SensitivityLow:      5,
				},
				AverageConfidence: 0.81,
				RecentDiscoveries: 9,
			}, nil
		},
	}
	mux := newStatsMux(fields)

	rec := doRequest(t, mux, http.MethodGet, "/api/fields/stats?dataSourceId=ds-1", nil)

	require.Equal(t, http.StatusOK, rec.Code)

	var stats FieldStatsResponse
	decodeEnvelope(t, rec, &stats)
	assert.Equal(t, 9, stats.TotalFields)
	assert.Equal(t, 6, stats.ByStatus["pending"])
	assert.Equal(t, 4, stats.ByClassification["PII"])
	assert.Equal(t, 4, stats.BySensitivity["Critical"])
	assert.Equal(t, 0.81, stats.AverageConfidence)
}

func TestStatsGet_AllDataSources(t *testing.T) {
	called := false
	fields := &stubFieldRepo{
		StatsFunc: func(_ context.Context, dataSourceID string) (*models.FieldStats, error) {
			called = true
			assert.Empty(t, dataSourceID)
			return &models.FieldStats{}, nil
		},
	}
	mux := newStatsMux(fields)

	rec := doRequest(t, mux, http.MethodGet, "/api/fields/stats", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called, "the stats route must not be captured by the field-ID pattern")
}
