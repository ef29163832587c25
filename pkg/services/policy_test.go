package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veridata-labs/veridata-engine/pkg/apperrors"
	"github.com/veridata-labs/veridata-engine/pkg/models"
)

func newPolicyService() *PolicyService {
	return NewPolicyService(NewMemoryPolicyStore(), zap.NewNop())
}

func validPolicy(name string) *ClassificationPolicy {
	return &ClassificationPolicy{
		Name:        name,
		Category:    "Personal Data",
		Sensitivity: models.SensitivityHigh,
		Enabled:     true,
	}
}

func TestCreatePolicy(t *testing.T) {
	svc := newPolicyService()

	created, err := svc.CreatePolicy(context.Background(), validPolicy("mask-pii"))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)

	got, err := svc.GetPolicy(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "mask-pii", got.Name)
}

func TestCreatePolicy_Validation(t *testing.T) {
	svc := newPolicyService()

	tests := []struct {
		name   string
		mutate func(*ClassificationPolicy)
	}{
		{"missing name", func(p *ClassificationPolicy) { p.Name = " " }},
		{"missing category", func(p *ClassificationPolicy) { p.Category = "" }},
		{"unknown sensitivity", func(p *ClassificationPolicy) { p.Sensitivity = "Extreme" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := validPolicy("p")
			tt.mutate(policy)
			_, err := svc.CreatePolicy(context.Background(), policy)
			assert.Error(t, err)
		})
	}
}

func TestUpdatePolicy(t *testing.T) {
	svc := newPolicyService()

	created, err := svc.CreatePolicy(context.Background(), validPolicy("mask-pii"))
	require.NoError(t, err)

	time.Sleep(time.Millisecond)

	updated, err := svc.UpdatePolicy(context.Background(), created.ID, &ClassificationPolicy{
		Name:        "mask-pii-strict",
		Category:    "Personal Data",
		Sensitivity: models.SensitivityCritical,
	})
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))

	got, err := svc.GetPolicy(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "mask-pii-strict", got.Name)
	assert.Equal(t, models.SensitivityCritical, got.Sensitivity)
}

func TestUpdatePolicy_NotFound(t *testing.T) {
	svc := newPolicyService()
	_, err := svc.UpdatePolicy(context.Background(), uuid.New(), validPolicy("p"))
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestListPolicies_SortedByName(t *testing.T) {
	svc := newPolicyService()

	for _, name := range []string{"zeta", "alpha", "mid"} {
		_, err := svc.CreatePolicy(context.Background(), validPolicy(name))
		require.NoError(t, err)
	}

	policies, err := svc.ListPolicies(context.Background())
	require.NoError(t, err)
	require.Len(t, policies, 3)
	assert.Equal(t, "alpha", policies[0].Name)
	assert.Equal(t, "mid", policies[1].Name)
	assert.Equal(t, "zeta", policies[2].Name)
}

func TestDeletePolicy(t *testing.T) {
	svc := newPolicyService()

	created, err := svc.CreatePolicy(context.Background(), validPolicy("mask-pii"))
	require.NoError(t, err)

	require.NoError(t, svc.DeletePolicy(context.Background(), created.ID))

	_, err = svc.GetPolicy(context.Background(), created.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.ErrorIs(t, svc.DeletePolicy(context.Background(), created.ID), apperrors.ErrNotFound)
}

func TestMemoryPolicyStore_CopiesOnReadAndWrite(t *testing.T) {
	store := NewMemoryPolicyStore()

	policy := validPolicy("original")
	policy.ID = uuid.New()
	require.NoError(t, store.Put(context.Background(), policy))

	// Mutating the caller's copy must not affect the stored policy.
	policy.Name = "mutated"

	got, err := store.Get(context.Background(), policy.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", got.Name)

	// Mutating a read result must not affect the store either.
	got.Name = "mutated-again"
	again, err := store.Get(context.Background(), policy.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", again.Name)
}
