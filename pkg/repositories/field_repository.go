package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/veridata-labs/veridata-engine/pkg/apperrors"
	"github.com/veridata-labs/veridata-engine/pkg/database"
	"github.com/veridata-labs/veridata-engine/pkg/models"
)

// systemActor is recorded in the audit trail for discovery-run changes.
const systemActor = "system"

// FieldRepository defines data access for discovered fields and their
// classification history.
type FieldRepository interface {
	// UpsertGroup persists all fields of one table group atomically.
	// New fields are inserted with status pending; existing fields get their
	// classification metadata refreshed while a non-pending status (and its
	// review stamps) is preserved. One history entry is appended per field
	// whose classification, sensitivity, or status changed. The input slice
	// is updated in place with persisted IDs and final statuses.
	UpsertGroup(ctx context.Context, sessionID uuid.UUID, fields []*models.DiscoveredField) error

	// GetByID retrieves a field by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*models.DiscoveredField, error)

	// ListByDataSource retrieves all fields for a data source.
	ListByDataSource(ctx context.Context, dataSourceID string) ([]*models.DiscoveredField, error)

	// UpdateStatus applies a review decision, stamps reviewedAt/reviewedBy,
	// and appends one audit entry attributed to userID.
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.FieldStatus, userID string) (*models.DiscoveredField, error)

	// Stats aggregates persisted fields. An empty dataSourceID aggregates
	// across all data sources.
	Stats(ctx context.Context, dataSourceID string) (*models.FieldStats, error)

	// ListHistory returns the audit trail for a field, oldest first.
	ListHistory(ctx context.Context, fieldID uuid.UUID) ([]*models.FieldClassificationHistory, error)
}

// fieldRepository implements FieldRepository using PostgreSQL.
type fieldRepository struct {
	db *database.DB
}

// NewFieldRepository creates a new field repository.
func NewFieldRepository(db *database.DB) FieldRepository {
	return &fieldRepository{db: db}
}

const fieldColumns = `
	id, data_source_id, asset_id, schema_name, table_name, field_name, data_type,
	classification, sensitivity, description, suggested_tags, suggested_rules,
	data_patterns, business_context, confidence, status, is_ai_generated,
	detected_at, reviewed_at, reviewed_by`

// UpsertGroup persists one table group's fields in a single transaction so
// partial-table writes can never leave the field/audit relationship
// inconsistent.
func (r *fieldRepository) UpsertGroup(ctx context.Context, sessionID uuid.UUID, fields []*models.DiscoveredField) error {
	if len(fields) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	for _, field := range fields {
		if err := r.upsertOne(ctx, tx, sessionID, field); err != nil {
			return fmt.Errorf("upsert field %s.%s.%s: %w", field.Schema, field.TableName, field.FieldName, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// upsertOne inserts or refreshes a single field inside the group transaction.
func (r *fieldRepository) upsertOne(ctx context.Context, tx pgx.Tx, sessionID uuid.UUID, field *models.DiscoveredField) error {
	var (
		existingID      uuid.UUID
		existingClass   models.Classification
		existingSens    models.Sensitivity
		existingStatus  models.FieldStatus
		existingReviewA *time.Time
		existingReviewB *string
	)

	err := tx.QueryRow(ctx, `
		SELECT id, classification, sensitivity, status, reviewed_at, reviewed_by
		FROM discovered_fields
		WHERE data_source_id = $1 AND schema_name = $2 AND table_name = $3 AND field_name = $4
		FOR UPDATE`,
		field.DataSourceID, field.Schema, field.TableName, field.FieldName,
	).Scan(&existingID, &existingClass, &existingSens, &existingStatus, &existingReviewA, &existingReviewB)

	if errors.Is(err, pgx.ErrNoRows) {
		return r.insertNew(ctx, tx, sessionID, field)
	}
	if err != nil {
		return fmt.Errorf("lookup existing field: %w", err)
	}

	// Any status that has left pending is a review outcome (human or
	// automatic) and is never regressed by re-discovery.
	field.ID = existingID
	field.Status = existingStatus
	field.ReviewedAt = existingReviewA
	field.ReviewedBy = existingReviewB
	field.DetectedAt = time.Now()

	_, err = tx.Exec(ctx, `
		UPDATE discovered_fields
		SET asset_id = $2, data_type = $3, classification = $4, sensitivity = $5,
			description = $6, suggested_tags = $7, suggested_rules = $8,
			data_patterns = $9, business_context = $10, confidence = $11,
			is_ai_generated = $12, detected_at = $13
		WHERE id = $1`,
		field.ID, field.AssetID, field.DataType, field.Classification, field.Sensitivity,
		field.Description, field.SuggestedTags, field.SuggestedRules,
		field.DataPatterns, field.BusinessContext, field.Confidence,
		field.IsAIGenerated, field.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("update existing field: %w", err)
	}

	if existingClass == field.Classification && existingSens == field.Sensitivity {
		// Nothing observable changed; no audit entry.
		return nil
	}

	return appendHistory(ctx, tx, &models.FieldClassificationHistory{
		FieldID:            field.ID,
		SessionID:          sessionID,
		PrevClassification: &existingClass,
		NewClassification:  field.Classification,
		PrevSensitivity:    &existingSens,
		NewSensitivity:     field.Sensitivity,
		PrevStatus:         &existingStatus,
		NewStatus:          field.Status,
		ChangedBy:          systemActor,
	})
}

// insertNew creates a first-discovery row plus its initial audit entry.
func (r *fieldRepository) insertNew(ctx context.Context, tx pgx.Tx, sessionID uuid.UUID, field *models.DiscoveredField) error {
	field.ID = uuid.New()
	field.Status = models.FieldStatusPending
	field.DetectedAt = time.Now()
	field.ReviewedAt = nil
	field.ReviewedBy = nil

	_, err := tx.Exec(ctx, `
		INSERT INTO discovered_fields
			(id, data_source_id, asset_id, schema_name, table_name, field_name, data_type,
			 classification, sensitivity, description, suggested_tags, suggested_rules,
			 data_patterns, business_context, confidence, status, is_ai_generated, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		field.ID, field.DataSourceID, field.AssetID, field.Schema, field.TableName,
		field.FieldName, field.DataType, field.Classification, field.Sensitivity,
		field.Description, field.SuggestedTags, field.SuggestedRules, field.DataPatterns,
		field.BusinessContext, field.Confidence, field.Status, field.IsAIGenerated,
		field.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("insert field: %w", err)
	}

	return appendHistory(ctx, tx, &models.FieldClassificationHistory{
		FieldID:           field.ID,
		SessionID:         sessionID,
		NewClassification: field.Classification,
		NewSensitivity:    field.Sensitivity,
		NewStatus:         field.Status,
		ChangedBy:         systemActor,
	})
}

// appendHistory writes one append-only audit entry.
func appendHistory(ctx context.Context, tx pgx.Tx, entry *models.FieldClassificationHistory) error {
	entry.ID = uuid.New()
	entry.CreatedAt = time.Now()

	_, err := tx.Exec(ctx, `
		INSERT INTO field_classification_history
			(id, field_id, session_id, prev_classification, new_classification,
			 prev_sensitivity, new_sensitivity, prev_status, new_status, changed_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		entry.ID, entry.FieldID, entry.SessionID,
		entry.PrevClassification, entry.NewClassification,
		entry.PrevSensitivity, entry.NewSensitivity,
		entry.PrevStatus, entry.NewStatus,
		entry.ChangedBy, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append history entry: %w", err)
	}
	return nil
}

// GetByID retrieves a field by ID.
func (r *fieldRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.DiscoveredField, error) {
	query := `SELECT` + fieldColumns + `FROM discovered_fields WHERE id = $1`

	field, err := scanField(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get field: %w", err)
	}
	return field, nil
}

// ListByDataSource retrieves all fields for a data source.
func (r *fieldRepository) ListByDataSource(ctx context.Context, dataSourceID string) ([]*models.DiscoveredField, error) {
	query := `SELECT` + fieldColumns + `
		FROM discovered_fields
		WHERE data_source_id = $1
		ORDER BY schema_name, table_name, field_name`

	rows, err := r.db.Query(ctx, query, dataSourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list fields: %w", err)
	}
	defer rows.Close()

	var fields []*models.DiscoveredField
	for rows.Next() {
		field, err := scanField(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan field: %w", err)
		}
		fields = append(fields, field)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fields: %w", err)
	}

	return fields, nil
}

// UpdateStatus applies a review decision and appends one audit entry.
// Review decisions are the only operation allowed to change a non-pending
// status.
func (r *fieldRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.FieldStatus, userID string) (*models.DiscoveredField, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	var (
		prevClass  models.Classification
		prevSens   models.Sensitivity
		prevStatus models.FieldStatus
	)
	err = tx.QueryRow(ctx, `
		SELECT classification, sensitivity, status
		FROM discovered_fields WHERE id = $1 FOR UPDATE`, id,
	).Scan(&prevClass, &prevSens, &prevStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("lookup field: %w", err)
	}

	now := time.Now()
	_, err = tx.Exec(ctx, `
		UPDATE discovered_fields
		SET status = $2, reviewed_at = $3, reviewed_by = $4
		WHERE id = $1`,
		id, status, now, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("update field status: %w", err)
	}

	err = appendHistory(ctx, tx, &models.FieldClassificationHistory{
		FieldID:           id,
		SessionID:         uuid.Nil, // review decisions are not tied to a discovery session
		PrevClassification: &prevClass,
		NewClassification:  prevClass,
		PrevSensitivity:    &prevSens,
		NewSensitivity:     prevSens,
		PrevStatus:         &prevStatus,
		NewStatus:          status,
		ChangedBy:          userID,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return r.GetByID(ctx, id)
}

// Stats aggregates persisted fields.
func (r *fieldRepository) Stats(ctx context.Context, dataSourceID string) (*models.FieldStats, error) {
	stats := &models.FieldStats{
		ByStatus:         make(map[models.FieldStatus]int),
		ByClassification: make(map[models.Classification]int),
		BySensitivity:    make(map[models.Sensitivity]int),
	}

	var avgConfidence *float64
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*), AVG(confidence),
			COUNT(*) FILTER (WHERE detected_at > $2)
		FROM discovered_fields
		WHERE ($1 = '' OR data_source_id = $1)`,
		dataSourceID, time.Now().AddDate(0, 0, -7),
	).Scan(&stats.TotalFields, &avgConfidence, &stats.RecentDiscoveries)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate field totals: %w", err)
	}
	if avgConfidence != nil {
		stats.AverageConfidence = *avgConfidence
	}

	rows, err := r.db.Query(ctx, `
		SELECT status, classification, sensitivity, COUNT(*)
		FROM discovered_fields
		WHERE ($1 = '' OR data_source_id = $1)
		GROUP BY status, classification, sensitivity`,
		dataSourceID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate field groups: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status models.FieldStatus
			class  models.Classification
			sens   models.Sensitivity
			count  int
		)
		if err := rows.Scan(&status, &class, &sens, &count); err != nil {
			return nil, fmt.Errorf("failed to scan aggregate row: %w", err)
		}
		stats.ByStatus[status] += count
		stats.ByClassification[class] += count
		stats.BySensitivity[sens] += count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating aggregates: %w", err)
	}

	return stats, nil
}

// ListHistory returns the audit trail for a field, oldest first.
func (r *fieldRepository) ListHistory(ctx context.Context, fieldID uuid.UUID) ([]*models.FieldClassificationHistory, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, field_id, session_id, prev_classification, new_classification,
			prev_sensitivity, new_sensitivity, prev_status, new_status, changed_by, created_at
		FROM field_classification_history
		WHERE field_id = $1
		ORDER BY created_at`,
		fieldID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var entries []*models.FieldClassificationHistory
	for rows.Next() {
		var e models.FieldClassificationHistory
		err := rows.Scan(
			&e.ID, &e.FieldID, &e.SessionID,
			&e.PrevClassification, &e.NewClassification,
			&e.PrevSensitivity, &e.NewSensitivity,
			&e.PrevStatus, &e.NewStatus,
			&e.ChangedBy, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}

	return entries, nil
}

// scanField reads one field row.
func scanField(row pgx.Row) (*models.DiscoveredField, error) {
	var f models.DiscoveredField
	err := row.Scan(
		&f.ID,
		&f.DataSourceID,
		&f.AssetID,
		&f.Schema,
		&f.TableName,
		&f.FieldName,
		&f.DataType,
		&f.Classification,
		&f.Sensitivity,
		&f.Description,
		&f.SuggestedTags,
		&f.SuggestedRules,
		&f.DataPatterns,
		&f.BusinessContext,
		&f.Confidence,
		&f.Status,
		&f.IsAIGenerated,
		&f.DetectedAt,
		&f.ReviewedAt,
		&f.ReviewedBy,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// Ensure fieldRepository implements FieldRepository at compile time.
var _ FieldRepository = (*fieldRepository)(nil)
