package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veridata-labs/veridata-engine/pkg/cache"
	"github.com/veridata-labs/veridata-engine/pkg/catalog"
	"github.com/veridata-labs/veridata-engine/pkg/classify"
	"github.com/veridata-labs/veridata-engine/pkg/models"
	"github.com/veridata-labs/veridata-engine/pkg/repositories"
	"github.com/veridata-labs/veridata-engine/pkg/services/workqueue"
)

// Progress checkpoints. Asset fetch and grouping own the first 40%, table
// classification the next 50%, final aggregation the last 10%.
const (
	progressAssetsFetched = 40
	progressClassifySpan  = 50
)

// StartDiscoveryRequest carries the parameters for a new discovery run.
type StartDiscoveryRequest struct {
	DataSourceID  string
	TargetSchemas []string
	TargetTables  []string
}

// DiscoveryService orchestrates discovery sessions: it fetches table assets
// from the catalog, classifies their columns, persists results, and drives
// session state.
type DiscoveryService struct {
	sessions   repositories.SessionRepository
	fields     repositories.FieldRepository
	catalog    catalog.Client
	classifier *classify.Classifier
	cache      *cache.ResultCache
	batchWidth int
	assetLimit int
	logger     *zap.Logger

	// submit runs the session body asynchronously. Tests replace it with a
	// synchronous runner.
	submit func(fn func())
}

// NewDiscoveryService creates a discovery orchestrator.
func NewDiscoveryService(
	sessions repositories.SessionRepository,
	fields repositories.FieldRepository,
	catalogClient catalog.Client,
	classifier *classify.Classifier,
	resultCache *cache.ResultCache,
	batchWidth int,
	assetLimit int,
	logger *zap.Logger,
) *DiscoveryService {
	if batchWidth < 1 {
		batchWidth = 1
	}
	return &DiscoveryService{
		sessions:   sessions,
		fields:     fields,
		catalog:    catalogClient,
		classifier: classifier,
		cache:      resultCache,
		batchWidth: batchWidth,
		assetLimit: assetLimit,
		logger:     logger.Named("discovery"),
		submit:     func(fn func()) { go fn() },
	}
}

// StartDiscovery creates a pending session and schedules the run. It returns
// immediately; callers poll GetSession for progress.
func (s *DiscoveryService) StartDiscovery(ctx context.Context, req StartDiscoveryRequest) (*models.DiscoverySession, error) {
	if strings.TrimSpace(req.DataSourceID) == "" {
		return nil, fmt.Errorf("data source id is required")
	}

	session := &models.DiscoverySession{
		DataSourceID:  req.DataSourceID,
		TargetSchemas: req.TargetSchemas,
		TargetTables:  req.TargetTables,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create discovery session: %w", err)
	}

	s.logger.Info("Discovery session created",
		zap.String("session_id", session.ID.String()),
		zap.String("data_source_id", session.DataSourceID))

	// The run outlives the HTTP request; it carries its own context.
	s.submit(func() { s.run(context.Background(), session) })

	return session, nil
}

// GetSession retrieves one session.
func (s *DiscoveryService) GetSession(ctx context.Context, id uuid.UUID) (*models.DiscoverySession, error) {
	return s.sessions.GetByID(ctx, id)
}

// ListSessions retrieves sessions, optionally filtered by data source.
func (s *DiscoveryService) ListSessions(ctx context.Context, dataSourceID string) ([]*models.DiscoverySession, error) {
	return s.sessions.ListByDataSource(ctx, dataSourceID)
}

// DeleteSession removes a terminal session.
func (s *DiscoveryService) DeleteSession(ctx context.Context, id uuid.UUID) error {
	return s.sessions.Delete(ctx, id)
}

// run executes the full discovery pipeline for one session. Catalog list
// failures fail the session; per-table failures degrade and never do.
func (s *DiscoveryService) run(ctx context.Context, session *models.DiscoverySession) {
	logger := s.logger.With(
		zap.String("session_id", session.ID.String()),
		zap.String("data_source_id", session.DataSourceID))

	if err := s.sessions.MarkProcessing(ctx, session.ID); err != nil {
		logger.Error("Failed to mark session processing", zap.Error(err))
		return
	}

	assets, err := s.catalog.ListAssets(ctx, session.DataSourceID, s.assetLimit)
	if err != nil {
		logger.Error("Asset fetch failed, failing session", zap.Error(err))
		s.fail(ctx, session.ID, fmt.Sprintf("failed to fetch assets: %v", err))
		return
	}

	assets = filterAssets(assets, session.TargetSchemas, session.TargetTables)

	if err := s.sessions.UpdateProgress(ctx, session.ID, progressAssetsFetched); err != nil {
		logger.Warn("Failed to update progress", zap.Error(err))
	}

	if len(assets) == 0 {
		logger.Info("No matching table assets, completing empty session")
		s.complete(ctx, session.ID, &runCounts{}, logger)
		return
	}

	logger.Info("Classifying table groups",
		zap.Int("tables", len(assets)),
		zap.Int("batch_width", s.batchWidth))

	counts := &runCounts{}
	tracker := &progressTracker{total: len(assets)}

	queue := workqueue.New(logger,
		workqueue.WithStrategy(workqueue.NewThrottledLLMStrategy(s.batchWidth)))

	for _, asset := range assets {
		queue.Enqueue(&tableGroupTask{
			BaseTask: workqueue.NewBaseTask(
				fmt.Sprintf("classify %s.%s", asset.Schema, asset.Name), true),
			service:   s,
			sessionID: session.ID,
			asset:     asset,
			counts:    counts,
			tracker:   tracker,
			logger:    logger,
		})
	}

	if err := queue.Wait(ctx); err != nil {
		logger.Error("Table classification aborted", zap.Error(err))
		s.fail(ctx, session.ID, fmt.Sprintf("classification aborted: %v", err))
		return
	}

	s.complete(ctx, session.ID, counts, logger)
}

func (s *DiscoveryService) fail(ctx context.Context, id uuid.UUID, msg string) {
	if err := s.sessions.Fail(ctx, id, msg); err != nil {
		s.logger.Error("Failed to mark session failed",
			zap.String("session_id", id.String()), zap.Error(err))
	}
}

func (s *DiscoveryService) complete(ctx context.Context, id uuid.UUID, counts *runCounts, logger *zap.Logger) {
	final := counts.snapshot()
	if err := s.sessions.Complete(ctx, id, final); err != nil {
		logger.Error("Failed to complete session", zap.Error(err))
		return
	}
	logger.Info("Discovery session completed",
		zap.Int("fields_discovered", final.FieldsDiscovered),
		zap.Int("fields_classified", final.FieldsClassified),
		zap.Int("pii_fields_found", final.PIIFieldsFound))
}

// runCounts accumulates session totals across concurrent table tasks.
type runCounts struct {
	mu               sync.Mutex
	fieldsDiscovered int
	fieldsClassified int
	piiFieldsFound   int
}

func (c *runCounts) add(fields []*models.DiscoveredField) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range fields {
		c.fieldsDiscovered++
		c.fieldsClassified++
		if f.Classification == models.ClassificationPII {
			c.piiFieldsFound++
		}
	}
}

func (c *runCounts) snapshot() repositories.SessionCounts {
	c.mu.Lock()
	defer c.mu.Unlock()
	return repositories.SessionCounts{
		FieldsDiscovered: c.fieldsDiscovered,
		FieldsClassified: c.fieldsClassified,
		PIIFieldsFound:   c.piiFieldsFound,
	}
}

// progressTracker serializes progress updates so concurrent table tasks
// report a consistent done count.
type progressTracker struct {
	mu    sync.Mutex
	done  int
	total int
}

// advance records one finished table group and returns the session progress.
func (t *progressTracker) advance() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done++
	return progressAssetsFetched + t.done*progressClassifySpan/t.total
}

// filterAssets applies the optional schema/table scope filters.
func filterAssets(assets []catalog.Asset, schemas, tables []string) []catalog.Asset {
	if len(schemas) == 0 && len(tables) == 0 {
		return assets
	}

	schemaSet := toLowerSet(schemas)
	tableSet := toLowerSet(tables)

	filtered := make([]catalog.Asset, 0, len(assets))
	for _, a := range assets {
		if len(schemaSet) > 0 && !schemaSet[strings.ToLower(a.Schema)] {
			continue
		}
		if len(tableSet) > 0 && !tableSet[strings.ToLower(a.Name)] {
			continue
		}
		filtered = append(filtered, a)
	}
	return filtered
}

func toLowerSet(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[strings.ToLower(v)] = true
	}
	return set
}

// tableGroupTask classifies and persists one table's columns. It never
// returns an error: any failure degrades to a warning so a single bad table
// cannot fail the session.
type tableGroupTask struct {
	workqueue.BaseTask
	service   *DiscoveryService
	sessionID uuid.UUID
	asset     catalog.Asset
	counts    *runCounts
	tracker   *progressTracker
	logger    *zap.Logger
}

// Execute runs the classify-persist pipeline for one table group.
func (t *tableGroupTask) Execute(ctx context.Context, _ workqueue.TaskEnqueuer) error {
	defer t.reportProgress(ctx)

	logger := t.logger.With(
		zap.String("schema", t.asset.Schema),
		zap.String("table", t.asset.Name))

	detail, err := t.service.catalog.GetAsset(ctx, t.asset.ID)
	if err != nil {
		logger.Warn("Skipping table, column detail fetch failed", zap.Error(err))
		return nil
	}
	if len(detail.Columns) == 0 {
		logger.Debug("Table has no columns, skipping")
		return nil
	}

	results := t.service.classifyTable(ctx, t.asset, detail.Columns)

	fields := t.buildFields(detail, results)
	if err := t.service.fields.UpsertGroup(ctx, t.sessionID, fields); err != nil {
		logger.Warn("Failed to persist table group", zap.Error(err))
		return nil
	}

	t.counts.add(fields)
	return nil
}

func (t *tableGroupTask) reportProgress(ctx context.Context) {
	progress := t.tracker.advance()
	if err := t.service.sessions.UpdateProgress(ctx, t.sessionID, progress); err != nil {
		t.logger.Warn("Failed to update progress", zap.Error(err))
	}
}

// classifyTable produces a classification result per column, consulting the
// result cache first. A cache hit skips pattern, profile, classifier, and
// risk work for the whole table.
func (s *DiscoveryService) classifyTable(ctx context.Context, asset catalog.Asset, columns []catalog.Column) cache.TableResult {
	inputs := make([]cache.FieldInput, len(columns))
	for i, col := range columns {
		inputs[i] = cache.FieldInput{
			Name:     col.Name,
			DataType: col.DataType,
			Samples:  col.SampleValues,
		}
	}
	fingerprint := cache.Fingerprint(asset.DataSourceID, asset.Schema, asset.Name, inputs)

	if cached, ok := s.cache.Get(ctx, fingerprint); ok {
		return cached
	}

	results := make(cache.TableResult, len(columns))
	for _, col := range columns {
		patterns := classify.DetectPatterns(col.Name, col.SampleValues)
		profile := classify.Profile(col.SampleValues)
		class := s.classifier.Classify(ctx, classify.FieldDescriptor{
			Name:      col.Name,
			DataType:  col.DataType,
			TableName: asset.Name,
			Schema:    asset.Schema,
		})
		results[col.Name] = models.ClassificationResult{
			Class:      class,
			Patterns:   patterns,
			Profile:    profile,
			Assessment: classify.Assess(patterns, class, profile),
		}
	}

	s.cache.Set(ctx, fingerprint, results)
	return results
}

// buildFields converts classification results to persistable field rows,
// ordered by column name for deterministic upsert order.
func (t *tableGroupTask) buildFields(detail *catalog.AssetDetail, results cache.TableResult) []*models.DiscoveredField {
	fields := make([]*models.DiscoveredField, 0, len(detail.Columns))

	for _, col := range detail.Columns {
		result, ok := results[col.Name]
		if !ok {
			continue
		}

		fields = append(fields, &models.DiscoveredField{
			DataSourceID:    t.asset.DataSourceID,
			AssetID:         t.asset.ID,
			Schema:          detail.Schema,
			TableName:       detail.Name,
			FieldName:       col.Name,
			DataType:        col.DataType,
			Classification:  classify.ClassificationFor(result.Class.Category),
			Sensitivity:     classify.SensitivityFor(result.Assessment.RiskLevel),
			Description:     fieldDescription(col, result),
			SuggestedTags:   suggestedTags(result),
			SuggestedRules:  result.Assessment.Recommendations,
			DataPatterns:    patternTypes(result.Patterns),
			BusinessContext: classify.BusinessContext(classify.FieldDescriptor{Name: col.Name, TableName: detail.Name, Schema: detail.Schema}),
			Confidence:      result.Class.Confidence,
			IsAIGenerated:   result.Class.AIGenerated,
		})
	}

	sort.Slice(fields, func(i, j int) bool { return fields[i].FieldName < fields[j].FieldName })
	return fields
}

// fieldDescription prefers the catalog's own column description.
func fieldDescription(col catalog.Column, result models.ClassificationResult) string {
	if col.Description != "" {
		return col.Description
	}
	return fmt.Sprintf("%s / %s", result.Class.Category, result.Class.Subcategory)
}

// suggestedTags derives governance tags from the classification.
func suggestedTags(result models.ClassificationResult) []string {
	tags := []string{
		slugify(result.Class.Category),
		slugify(result.Class.Subcategory),
	}
	if result.Assessment.RiskLevel == models.RiskLevelCritical || result.Assessment.RiskLevel == models.RiskLevelHigh {
		tags = append(tags, "sensitive")
	}
	for _, flag := range result.Assessment.ComplianceFlags {
		tags = append(tags, slugify(flag.Framework))
	}
	return tags
}

func slugify(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "-")
}

// patternTypes extracts the matched pattern names.
func patternTypes(patterns []models.PatternMatch) []string {
	if len(patterns) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(patterns))
	types := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if seen[p.PatternType] {
			continue
		}
		seen[p.PatternType] = true
		types = append(types, p.PatternType)
	}
	return types
}
