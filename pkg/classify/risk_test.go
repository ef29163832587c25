package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridata-labs/veridata-engine/pkg/models"
)

func patternsOf(types ...string) []models.PatternMatch {
	patterns := make([]models.PatternMatch, len(types))
	for i, t := range types {
		patterns[i] = models.PatternMatch{PatternType: t, Confidence: 1.0}
	}
	return patterns
}

func TestAssess_RiskTierDecisionOrder(t *testing.T) {
	tests := []struct {
		name     string
		patterns []models.PatternMatch
		class    models.SemanticClass
		profile  models.DataProfile
		want     models.RiskLevel
	}{
		{
			name:  "health data is always critical",
			class: models.SemanticClass{Category: "Health Data", Subcategory: "Medical Records"},
			want:  models.RiskLevelCritical,
		},
		{
			name:  "credentials subcategory is critical",
			class: models.SemanticClass{Category: "Technical Data", Subcategory: "Credentials"},
			want:  models.RiskLevelCritical,
		},
		{
			name:  "pii subcategory is critical",
			class: models.SemanticClass{Category: "Personal Data", Subcategory: "PII"},
			want:  models.RiskLevelCritical,
		},
		{
			name:     "ssn pattern is critical regardless of category",
			patterns: patternsOf("ssn"),
			class:    models.SemanticClass{Category: "Business Data", Subcategory: "Internal"},
			want:     models.RiskLevelCritical,
		},
		{
			name:     "jwt pattern is critical",
			patterns: patternsOf("jwt"),
			class:    models.SemanticClass{Category: "Business Data", Subcategory: "Operational"},
			want:     models.RiskLevelCritical,
		},
		{
			name:  "financial category is high",
			class: models.SemanticClass{Category: "Financial Data", Subcategory: "Payment"},
			want:  models.RiskLevelHigh,
		},
		{
			name:  "personal non-pii is high",
			class: models.SemanticClass{Category: "Personal Data", Subcategory: "Contact Information"},
			want:  models.RiskLevelHigh,
		},
		{
			name:     "email pattern is high",
			patterns: patternsOf("email"),
			class:    models.SemanticClass{Category: "Business Data", Subcategory: "Operational"},
			want:     models.RiskLevelHigh,
		},
		{
			name:    "high uniqueness is medium",
			class:   models.SemanticClass{Category: "Business Data", Subcategory: "Operational"},
			profile: models.DataProfile{Uniqueness: 0.97},
			want:    models.RiskLevelMedium,
		},
		{
			name:  "internal subcategory is medium",
			class: models.SemanticClass{Category: "Business Data", Subcategory: "Internal"},
			want:  models.RiskLevelMedium,
		},
		{
			name:  "system subcategory is medium",
			class: models.SemanticClass{Category: "Technical Data", Subcategory: "System"},
			want:  models.RiskLevelMedium,
		},
		{
			name:    "everything else is low",
			class:   models.SemanticClass{Category: "Business Data", Subcategory: "Operational"},
			profile: models.DataProfile{Uniqueness: 0.5},
			want:    models.RiskLevelLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assessment := Assess(tt.patterns, tt.class, tt.profile)
			assert.Equal(t, tt.want, assessment.RiskLevel)
		})
	}
}

func TestAssess_FallbackEmailFieldIsHigh(t *testing.T) {
	samples := []string{
		"a@example.com", "b@example.com", "c@example.com",
		"d@example.com", "e@example.com", "f@example.com",
		"g@example.com", "h@example.com", "i@example.com",
		"not-an-email-value",
	}

	patterns := DetectPatterns("user_email", samples)
	class := FallbackClassify("user_email")
	profile := Profile(samples)

	valueMatch := findMatch(patterns, "email")
	require.NotNil(t, valueMatch)

	assert.Equal(t, "Personal Data", class.Category)
	assert.Equal(t, 0.85, class.Confidence)
	assert.Equal(t, models.ClassificationPII, ClassificationFor(class.Category))

	// The email pattern lands in the high tier; a rule-classified contact
	// field must not escalate to critical.
	assessment := Assess(patterns, class, profile)
	assert.Equal(t, models.RiskLevelHigh, assessment.RiskLevel)
}

func TestAssess_ComplianceFlags(t *testing.T) {
	assessment := Assess(nil,
		models.SemanticClass{Category: "Personal Data", Subcategory: "Contact Information"},
		models.DataProfile{})

	require.Len(t, assessment.ComplianceFlags, 2)

	gdpr := assessment.ComplianceFlags[0]
	assert.Equal(t, "GDPR", gdpr.Framework)
	assert.Equal(t, "Document a lawful basis for processing", gdpr.Requirement)
	assert.Equal(t, models.ComplianceStatusNeedsReview, gdpr.Status)
	assert.Len(t, gdpr.SuggestedActions, 3, "actions are capped at three")

	assert.Equal(t, "CCPA", assessment.ComplianceFlags[1].Framework)
}

func TestAssess_BusinessDataHasNoFlags(t *testing.T) {
	assessment := Assess(nil,
		models.SemanticClass{Category: "Business Data", Subcategory: "Operational"},
		models.DataProfile{})

	assert.Empty(t, assessment.ComplianceFlags)
	assert.Empty(t, assessment.GeoRestrictions)
	assert.Equal(t, "5 years default", assessment.RetentionPolicy)
}

func TestAssess_GeoRestrictions(t *testing.T) {
	tests := []struct {
		category string
		wantEU   bool
	}{
		{"Personal Data", true},
		{"Health Data", true},
		{"Financial Data", false},
		{"Business Data", false},
	}

	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			assessment := Assess(nil,
				models.SemanticClass{Category: tt.category, Subcategory: "x"},
				models.DataProfile{})
			if tt.wantEU {
				assert.Contains(t, assessment.GeoRestrictions, "EU/EEA data residency required")
			} else {
				assert.Empty(t, assessment.GeoRestrictions)
			}
		})
	}
}

func TestAssess_RecommendationOrderAndCap(t *testing.T) {
	assessment := Assess(patternsOf("ssn"),
		models.SemanticClass{Category: "Health Data", Subcategory: "PHI"},
		models.DataProfile{})

	// Risk-tier rules come first, then category, pattern, and compliance
	// rules, capped at five.
	require.Len(t, assessment.Recommendations, 5)
	assert.Equal(t, "Restrict access to least privilege", assessment.Recommendations[0])
	assert.Equal(t, "Enable column-level encryption at rest", assessment.Recommendations[1])
	assert.Equal(t, "Verify HIPAA access controls cover this field", assessment.Recommendations[2])
	assert.Equal(t, "Tokenize social security numbers", assessment.Recommendations[3])
	assert.Equal(t, "Include field in the HIPAA risk assessment", assessment.Recommendations[4])
}

func TestAssess_RecommendationsDeduplicated(t *testing.T) {
	assessment := Assess(patternsOf("ssn", "ssn"),
		models.SemanticClass{Category: "Business Data", Subcategory: "Operational"},
		models.DataProfile{})

	seen := make(map[string]int)
	for _, rec := range assessment.Recommendations {
		seen[rec]++
		assert.Equal(t, 1, seen[rec], "recommendation %q duplicated", rec)
	}
}

func TestAssess_AccessRestrictionsAndRetention(t *testing.T) {
	assessment := Assess(nil,
		models.SemanticClass{Category: "Health Data", Subcategory: "PHI"},
		models.DataProfile{})

	assert.Contains(t, assessment.AccessRestrictions, "role:phi-authorized")
	assert.Equal(t, "6 years after last treatment", assessment.RetentionPolicy)
}

func TestClassificationFor(t *testing.T) {
	assert.Equal(t, models.ClassificationPII, ClassificationFor("Personal Data"))
	assert.Equal(t, models.ClassificationPHI, ClassificationFor("Health Data"))
	assert.Equal(t, models.ClassificationFinancial, ClassificationFor("Financial Data"))
	assert.Equal(t, models.ClassificationGeneral, ClassificationFor("Technical Data"))
	assert.Equal(t, models.ClassificationGeneral, ClassificationFor("Business Data"))
}

func TestSensitivityFor(t *testing.T) {
	assert.Equal(t, models.SensitivityCritical, SensitivityFor(models.RiskLevelCritical))
	assert.Equal(t, models.SensitivityHigh, SensitivityFor(models.RiskLevelHigh))
	assert.Equal(t, models.SensitivityMedium, SensitivityFor(models.RiskLevelMedium))
	assert.Equal(t, models.SensitivityLow, SensitivityFor(models.RiskLevelLow))
}
