package models

import (
	"time"

	"github.com/google/uuid"
)

// Classification is the semantic category assigned to a field.
type Classification string

const (
	ClassificationGeneral   Classification = "General"
	ClassificationPII       Classification = "PII"
	ClassificationPHI       Classification = "PHI"
	ClassificationFinancial Classification = "Financial"
)

// Sensitivity is the sensitivity tier assigned to a field.
type Sensitivity string

const (
	SensitivityLow      Sensitivity = "Low"
	SensitivityMedium   Sensitivity = "Medium"
	SensitivityHigh     Sensitivity = "High"
	SensitivityCritical Sensitivity = "Critical"
)

// FieldStatus is the review state of a discovered field.
type FieldStatus string

const (
	FieldStatusPending     FieldStatus = "pending"
	FieldStatusAccepted    FieldStatus = "accepted"
	FieldStatusNeedsReview FieldStatus = "needs-review"
	FieldStatusRejected    FieldStatus = "rejected"
)

// ValidFieldStatus reports whether s is a known field status.
func ValidFieldStatus(s FieldStatus) bool {
	switch s {
	case FieldStatusPending, FieldStatusAccepted, FieldStatusNeedsReview, FieldStatusRejected:
		return true
	}
	return false
}

// DiscoveredField is the persisted classification result for one column.
// A field is uniquely identified by (DataSourceID, Schema, TableName,
// FieldName). Re-discovery refreshes classification metadata but never
// regresses Status once it has left pending.
type DiscoveredField struct {
	ID              uuid.UUID
	DataSourceID    string
	AssetID         string // weak reference into the catalog; catalog owns its lifecycle
	Schema          string
	TableName       string
	FieldName       string
	DataType        string
	Classification  Classification
	Sensitivity     Sensitivity
	Description     string
	SuggestedTags   []string
	SuggestedRules  []string
	DataPatterns    []string
	BusinessContext string
	Confidence      float64
	Status          FieldStatus
	IsAIGenerated   bool
	DetectedAt      time.Time
	ReviewedAt      *time.Time
	ReviewedBy      *string
}

// FieldClassificationHistory is one append-only audit entry recording a
// classification change for a field within a session. Entries are never
// updated or deleted.
type FieldClassificationHistory struct {
	ID                 uuid.UUID
	FieldID            uuid.UUID
	SessionID          uuid.UUID
	PrevClassification *Classification
	NewClassification  Classification
	PrevSensitivity    *Sensitivity
	NewSensitivity     Sensitivity
	PrevStatus         *FieldStatus
	NewStatus          FieldStatus
	ChangedBy          string // "system" for discovery runs, user id for reviews
	CreatedAt          time.Time
}

// FieldStats is the aggregate view over persisted discovered fields.
type FieldStats struct {
	TotalFields       int
	ByStatus          map[FieldStatus]int
	ByClassification  map[Classification]int
	BySensitivity     map[Sensitivity]int
	AverageConfidence float64
	RecentDiscoveries int // fields detected within the last 7 days
}
