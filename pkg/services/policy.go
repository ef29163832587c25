package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veridata-labs/veridata-engine/pkg/apperrors"
	"github.com/veridata-labs/veridata-engine/pkg/models"
)

// ClassificationPolicy is an operator-managed rule that downstream consumers
// apply to fields of a given category, e.g. "mask PII for analyst roles".
type ClassificationPolicy struct {
	ID          uuid.UUID          `json:"id"`
	Name        string             `json:"name"`
	Category    string             `json:"category"`
	Sensitivity models.Sensitivity `json:"sensitivity"`
	Description string             `json:"description,omitempty"`
	Enabled     bool               `json:"enabled"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// PolicyStore is the narrow storage contract for classification policies.
// The in-memory implementation is the default; a persistent one can be
// swapped in without changing callers.
type PolicyStore interface {
	Get(ctx context.Context, id uuid.UUID) (*ClassificationPolicy, error)
	Put(ctx context.Context, policy *ClassificationPolicy) error
	List(ctx context.Context) ([]*ClassificationPolicy, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// memoryPolicyStore keeps policies in a mutex-guarded map.
type memoryPolicyStore struct {
	mu       sync.RWMutex
	policies map[uuid.UUID]*ClassificationPolicy
}

// NewMemoryPolicyStore creates an empty in-memory policy store.
func NewMemoryPolicyStore() PolicyStore {
	return &memoryPolicyStore{policies: make(map[uuid.UUID]*ClassificationPolicy)}
}

func (s *memoryPolicyStore) Get(_ context.Context, id uuid.UUID) (*ClassificationPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	policy, ok := s.policies[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *policy
	return &copied, nil
}

func (s *memoryPolicyStore) Put(_ context.Context, policy *ClassificationPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *policy
	s.policies[policy.ID] = &copied
	return nil
}

func (s *memoryPolicyStore) List(_ context.Context) ([]*ClassificationPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	policies := make([]*ClassificationPolicy, 0, len(s.policies))
	for _, p := range s.policies {
		copied := *p
		policies = append(policies, &copied)
	}
	sort.Slice(policies, func(i, j int) bool { return policies[i].Name < policies[j].Name })
	return policies, nil
}

func (s *memoryPolicyStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.policies[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(s.policies, id)
	return nil
}

// PolicyService manages classification policies.
type PolicyService struct {
	store  PolicyStore
	logger *zap.Logger
}

// NewPolicyService creates a policy service.
func NewPolicyService(store PolicyStore, logger *zap.Logger) *PolicyService {
	return &PolicyService{
		store:  store,
		logger: logger.Named("policy"),
	}
}

// CreatePolicy validates and stores a new policy.
func (s *PolicyService) CreatePolicy(ctx context.Context, policy *ClassificationPolicy) (*ClassificationPolicy, error) {
	if err := validatePolicy(policy); err != nil {
		return nil, err
	}

	now := time.Now()
	policy.ID = uuid.New()
	policy.CreatedAt = now
	policy.UpdatedAt = now

	if err := s.store.Put(ctx, policy); err != nil {
		return nil, fmt.Errorf("store policy: %w", err)
	}

	s.logger.Info("Policy created",
		zap.String("policy_id", policy.ID.String()),
		zap.String("name", policy.Name))
	return policy, nil
}

// UpdatePolicy validates and replaces an existing policy.
func (s *PolicyService) UpdatePolicy(ctx context.Context, id uuid.UUID, policy *ClassificationPolicy) (*ClassificationPolicy, error) {
	if err := validatePolicy(policy); err != nil {
		return nil, err
	}

	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	policy.ID = existing.ID
	policy.CreatedAt = existing.CreatedAt
	policy.UpdatedAt = time.Now()

	if err := s.store.Put(ctx, policy); err != nil {
		return nil, fmt.Errorf("store policy: %w", err)
	}
	return policy, nil
}

// GetPolicy retrieves one policy.
func (s *PolicyService) GetPolicy(ctx context.Context, id uuid.UUID) (*ClassificationPolicy, error) {
	return s.store.Get(ctx, id)
}

// ListPolicies retrieves all policies, sorted by name.
func (s *PolicyService) ListPolicies(ctx context.Context) ([]*ClassificationPolicy, error) {
	return s.store.List(ctx)
}

// DeletePolicy removes a policy.
func (s *PolicyService) DeletePolicy(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Policy deleted", zap.String("policy_id", id.String()))
	return nil
}

func validatePolicy(policy *ClassificationPolicy) error {
	if strings.TrimSpace(policy.Name) == "" {
		return fmt.Errorf("policy name is required")
	}
	if strings.TrimSpace(policy.Category) == "" {
		return fmt.Errorf("policy category is required")
	}
	switch policy.Sensitivity {
	case models.SensitivityLow, models.SensitivityMedium, models.SensitivityHigh, models.SensitivityCritical:
	default:
		return fmt.Errorf("unknown sensitivity %q", policy.Sensitivity)
	}
	return nil
}
