package models

// RiskLevel is the output tier of the risk engine.
type RiskLevel string

const (
	RiskLevelCritical RiskLevel = "critical"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelLow      RiskLevel = "low"
)

// PatternMatch records one pattern rule that matched a field, either by
// name or by sample values. Examples carry at most three matched values
// for audit, never full dumps.
type PatternMatch struct {
	PatternType string   `json:"pattern_type"`
	Regex       string   `json:"regex"`
	MatchCount  int      `json:"match_count"`
	Confidence  float64  `json:"confidence"`
	Examples    []string `json:"examples,omitempty"`
}

// ValueFormat is the inferred format of a column's sample values.
type ValueFormat string

const (
	FormatNumeric ValueFormat = "numeric"
	FormatDate    ValueFormat = "date"
	FormatEmail   ValueFormat = "email"
	FormatText    ValueFormat = "text"
	FormatUnknown ValueFormat = "unknown"
)

// Distribution labels the shape of a column's value distribution, derived
// from the uniqueness ratio (>0.95 unique, <0.10 categorical, else mixed).
type Distribution string

const (
	DistributionUnique      Distribution = "unique"
	DistributionCategorical Distribution = "categorical"
	DistributionMixed       Distribution = "mixed"
)

// DataProfile holds sample statistics for one column. Profiles are computed
// transiently from sample values; the raw samples are not retained.
type DataProfile struct {
	Uniqueness   float64      `json:"uniqueness"`
	Nullability  float64      `json:"nullability"`
	Cardinality  int          `json:"cardinality"`
	Entropy      float64      `json:"entropy"`
	Format       ValueFormat  `json:"format"`
	Distribution Distribution `json:"distribution"`
}

// ComplianceStatus is the review state of a compliance flag.
type ComplianceStatus string

const (
	ComplianceStatusCompliant    ComplianceStatus = "compliant"
	ComplianceStatusNonCompliant ComplianceStatus = "non-compliant"
	ComplianceStatusNeedsReview  ComplianceStatus = "needs-review"
)

// ComplianceFlag attaches one regulatory framework obligation to a
// classification result.
type ComplianceFlag struct {
	Framework        string           `json:"framework"`
	Requirement      string           `json:"requirement"`
	Status           ComplianceStatus `json:"status"`
	SuggestedActions []string         `json:"suggested_actions,omitempty"`
}

// SemanticClass is the category/subcategory pair produced by the classifier.
type SemanticClass struct {
	Category    string  `json:"category"`
	Subcategory string  `json:"subcategory"`
	Confidence  float64 `json:"confidence"`
	// AIGenerated is false when the rule-based fallback produced the result.
	AIGenerated bool `json:"ai_generated"`
}

// RiskAssessment is the full output of the risk & compliance engine.
type RiskAssessment struct {
	RiskLevel          RiskLevel        `json:"risk_level"`
	ComplianceFlags    []ComplianceFlag `json:"compliance_flags"`
	Recommendations    []string         `json:"recommendations"`
	AccessRestrictions []string         `json:"access_restrictions"`
	RetentionPolicy    string           `json:"retention_policy"`
	GeoRestrictions    []string         `json:"geo_restrictions,omitempty"`
}

// ClassificationResult is the transient, assembled output for one field.
// It is decomposed into a DiscoveredField row plus an audit entry when
// persisted.
type ClassificationResult struct {
	Class      SemanticClass  `json:"class"`
	Patterns   []PatternMatch `json:"patterns"`
	Profile    DataProfile    `json:"profile"`
	Assessment RiskAssessment `json:"assessment"`
}
