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

// SessionCounts holds the aggregate counters persisted when a session
// completes.
type SessionCounts struct {
	FieldsDiscovered int
	FieldsClassified int
	PIIFieldsFound   int
}

// SessionRepository defines data access for discovery sessions.
type SessionRepository interface {
	// Create inserts a new session in pending state.
	Create(ctx context.Context, session *models.DiscoverySession) error

	// GetByID retrieves a session by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*models.DiscoverySession, error)

	// ListByDataSource retrieves sessions for a data source, newest first.
	// An empty dataSourceID lists all sessions.
	ListByDataSource(ctx context.Context, dataSourceID string) ([]*models.DiscoverySession, error)

	// MarkProcessing transitions a pending session to processing.
	MarkProcessing(ctx context.Context, id uuid.UUID) error

	// UpdateProgress advances a processing session's progress. Progress is
	// clamped server-side so it never decreases.
	UpdateProgress(ctx context.Context, id uuid.UUID, progress int) error

	// Complete marks a session completed with progress 100 and final counts.
	Complete(ctx context.Context, id uuid.UUID, counts SessionCounts) error

	// Fail marks a session failed with an error message.
	Fail(ctx context.Context, id uuid.UUID, errorMessage string) error

	// Delete removes a terminal session and its classification history
	// linkage. Returns apperrors.ErrSessionNotTerminal for live sessions.
	Delete(ctx context.Context, id uuid.UUID) error

	// ListStale returns processing sessions whose last progress update is
	// older than the threshold.
	ListStale(ctx context.Context, threshold time.Duration) ([]*models.DiscoverySession, error)
}

// sessionRepository implements SessionRepository using PostgreSQL.
type sessionRepository struct {
	db *database.DB
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db *database.DB) SessionRepository {
	return &sessionRepository{db: db}
}

const sessionColumns = `
	id, data_source_id, target_schemas, target_tables, status, progress,
	fields_discovered, fields_classified, pii_fields_found, error_message,
	started_at, completed_at`

// Create inserts a new session in pending state.
func (r *sessionRepository) Create(ctx context.Context, session *models.DiscoverySession) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	session.Status = models.SessionStatusPending
	session.Progress = 0
	session.StartedAt = time.Now()

	query := `
		INSERT INTO discovery_sessions
			(id, data_source_id, target_schemas, target_tables, status, progress, started_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`

	_, err := r.db.Exec(ctx, query,
		session.ID,
		session.DataSourceID,
		session.TargetSchemas,
		session.TargetTables,
		session.Status,
		session.Progress,
		session.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetByID retrieves a session by ID.
func (r *sessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.DiscoverySession, error) {
	query := `SELECT` + sessionColumns + `FROM discovery_sessions WHERE id = $1`

	session, err := scanSession(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// ListByDataSource retrieves sessions for a data source, newest first.
func (r *sessionRepository) ListByDataSource(ctx context.Context, dataSourceID string) ([]*models.DiscoverySession, error) {
	query := `SELECT` + sessionColumns + `
		FROM discovery_sessions
		WHERE ($1 = '' OR data_source_id = $1)
		ORDER BY started_at DESC`

	rows, err := r.db.Query(ctx, query, dataSourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.DiscoverySession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, nil
}

// MarkProcessing transitions a pending session to processing.
func (r *sessionRepository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE discovery_sessions
		SET status = $2, updated_at = $3
		WHERE id = $1 AND status = $4`

	result, err := r.db.Exec(ctx, query, id, models.SessionStatusProcessing, time.Now(), models.SessionStatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark session processing: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("session %s is not pending: %w", id, apperrors.ErrConflict)
	}
	return nil
}

// UpdateProgress advances a processing session's progress. GREATEST keeps
// the persisted value monotonically non-decreasing even under racing writers.
func (r *sessionRepository) UpdateProgress(ctx context.Context, id uuid.UUID, progress int) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	query := `
		UPDATE discovery_sessions
		SET progress = GREATEST(progress, $2), updated_at = $3
		WHERE id = $1 AND status = $4`

	result, err := r.db.Exec(ctx, query, id, progress, time.Now(), models.SessionStatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to update session progress: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("session %s is not processing: %w", id, apperrors.ErrConflict)
	}
	return nil
}

// Complete marks a session completed with progress 100 and final counts.
func (r *sessionRepository) Complete(ctx context.Context, id uuid.UUID, counts SessionCounts) error {
	query := `
		UPDATE discovery_sessions
		SET status = $2, progress = 100,
			fields_discovered = $3, fields_classified = $4, pii_fields_found = $5,
			completed_at = $6, updated_at = $6
		WHERE id = $1 AND status = $7`

	result, err := r.db.Exec(ctx, query, id, models.SessionStatusCompleted,
		counts.FieldsDiscovered, counts.FieldsClassified, counts.PIIFieldsFound,
		time.Now(), models.SessionStatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to complete session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("session %s is not processing: %w", id, apperrors.ErrConflict)
	}
	return nil
}

// Fail marks a session failed with an error message.
func (r *sessionRepository) Fail(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE discovery_sessions
		SET status = $2, error_message = $3, completed_at = $4, updated_at = $4
		WHERE id = $1 AND status IN ($5, $6)`

	result, err := r.db.Exec(ctx, query, id, models.SessionStatusFailed, errorMessage,
		time.Now(), models.SessionStatusPending, models.SessionStatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to fail session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("session %s is already terminal: %w", id, apperrors.ErrConflict)
	}
	return nil
}

// Delete removes a terminal session together with its history linkage.
func (r *sessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	var status models.SessionStatus
	err = tx.QueryRow(ctx, `SELECT status FROM discovery_sessions WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to check session status: %w", err)
	}
	if !status.IsTerminal() {
		return apperrors.ErrSessionNotTerminal
	}

	if _, err := tx.Exec(ctx, `DELETE FROM field_classification_history WHERE session_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete session history: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM discovery_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListStale returns processing sessions whose last update is older than the
// threshold. The reconciler marks these failed.
func (r *sessionRepository) ListStale(ctx context.Context, threshold time.Duration) ([]*models.DiscoverySession, error) {
	query := `SELECT` + sessionColumns + `
		FROM discovery_sessions
		WHERE status = $1 AND updated_at < $2
		ORDER BY started_at`

	rows, err := r.db.Query(ctx, query, models.SessionStatusProcessing, time.Now().Add(-threshold))
	if err != nil {
		return nil, fmt.Errorf("failed to list stale sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.DiscoverySession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stale sessions: %w", err)
	}

	return sessions, nil
}

// scanSession reads one session row.
func scanSession(row pgx.Row) (*models.DiscoverySession, error) {
	var s models.DiscoverySession
	err := row.Scan(
		&s.ID,
		&s.DataSourceID,
		&s.TargetSchemas,
		&s.TargetTables,
		&s.Status,
		&s.Progress,
		&s.FieldsDiscovered,
		&s.FieldsClassified,
		&s.PIIFieldsFound,
		&s.ErrorMessage,
		&s.StartedAt,
		&s.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Ensure sessionRepository implements SessionRepository at compile time.
var _ SessionRepository = (*sessionRepository)(nil)
