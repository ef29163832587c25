package classify

import (
	"github.com/veridata-labs/veridata-engine/pkg/models"
)

// maxRecommendations caps the assembled recommendation list.
const maxRecommendations = 5

// complianceFramework is one regulatory framework with its ordered
// requirement list. The emitted flag surfaces the first requirement and up
// to three requirements as suggested actions.
type complianceFramework struct {
	name         string
	requirements []string
}

// frameworksByCategory maps classifier categories to applicable frameworks.
var frameworksByCategory = map[string][]complianceFramework{
	"Personal Data": {
		{
			name: "GDPR",
			requirements: []string{
				"Document a lawful basis for processing",
				"Honor data subject access and erasure requests",
				"Record the field in Article 30 processing records",
				"Apply storage limitation to retention schedules",
			},
		},
		{
			name: "CCPA",
			requirements: []string{
				"Disclose collection in the consumer privacy notice",
				"Support opt-out of sale or sharing",
				"Honor deletion requests within 45 days",
			},
		},
	},
	"Health Data": {
		{
			name: "HIPAA",
			requirements: []string{
				"Restrict access to the minimum necessary",
				"Log all access to protected health information",
				"Encrypt in transit and at rest",
				"Include in the periodic security risk assessment",
			},
		},
		{
			name: "GDPR",
			requirements: []string{
				"Treat as special category data under Article 9",
				"Require explicit consent or another Article 9 basis",
				"Record the field in Article 30 processing records",
			},
		},
	},
	"Financial Data": {
		{
			name: "PCI-DSS",
			requirements: []string{
				"Render stored account data unreadable (Req 3.4)",
				"Restrict access on a need-to-know basis (Req 7)",
				"Track and monitor all access (Req 10)",
			},
		},
		{
			name: "SOX",
			requirements: []string{
				"Include in financial reporting controls",
				"Preserve records for seven years",
			},
		},
	},
	"Technical Data": {
		{
			name: "SOC 2",
			requirements: []string{
				"Store credentials in a managed secret store",
				"Rotate secrets on a defined schedule",
				"Restrict infrastructure identifiers to operators",
			},
		},
	},
	// Business Data carries no framework obligations.
}

// retentionByCategory holds the static retention policy lookup.
var retentionByCategory = map[string]string{
	"Personal Data":  "3 years after last interaction",
	"Health Data":    "6 years after last treatment",
	"Financial Data": "7 years per financial record retention",
	"Technical Data": "90 days rolling",
	"Business Data":  "5 years default",
}

// accessRestrictionsByCategory holds the static access restriction lookup.
var accessRestrictionsByCategory = map[string][]string{
	"Personal Data":  {"role:data-steward", "masked-by-default"},
	"Health Data":    {"role:phi-authorized", "masked-by-default", "access-logged"},
	"Financial Data": {"role:finance", "masked-by-default"},
	"Technical Data": {"role:platform-operator"},
}

// criticalPatterns and highPatterns drive the risk tier decision.
var (
	criticalPatterns = map[string]bool{"ssn": true, "creditCard": true, "apiKey": true, "jwt": true}
	highPatterns     = map[string]bool{"email": true, "phone": true, "iban": true}
)

// Assess combines pattern, classification, and profile evidence into a risk
// tier and governance metadata. Pure function of its inputs.
func Assess(patterns []models.PatternMatch, class models.SemanticClass, profile models.DataProfile) models.RiskAssessment {
	risk := riskLevelFor(patterns, class, profile)
	flags := complianceFlagsFor(class.Category)

	assessment := models.RiskAssessment{
		RiskLevel:          risk,
		ComplianceFlags:    flags,
		Recommendations:    recommendationsFor(risk, class, patterns, flags),
		AccessRestrictions: accessRestrictionsByCategory[class.Category],
		RetentionPolicy:    retentionPolicyFor(class.Category),
		GeoRestrictions:    geoRestrictionsFor(flags),
	}
	return assessment
}

// riskLevelFor applies the tier decision order; the first matching rule wins.
func riskLevelFor(patterns []models.PatternMatch, class models.SemanticClass, profile models.DataProfile) models.RiskLevel {
	if class.Category == "Health Data" ||
		class.Subcategory == "Credentials" || class.Subcategory == "PII" ||
		anyPatternIn(patterns, criticalPatterns) {
		return models.RiskLevelCritical
	}

	if class.Category == "Financial Data" || class.Category == "Personal Data" ||
		anyPatternIn(patterns, highPatterns) {
		return models.RiskLevelHigh
	}

	if profile.Uniqueness > 0.9 ||
		class.Subcategory == "Internal" || class.Subcategory == "System" {
		return models.RiskLevelMedium
	}

	return models.RiskLevelLow
}

// anyPatternIn reports whether any detected pattern type is in the set.
func anyPatternIn(patterns []models.PatternMatch, set map[string]bool) bool {
	for _, p := range patterns {
		if set[p.PatternType] {
			return true
		}
	}
	return false
}

// complianceFlagsFor derives flags from the static category mapping. The
// flag status always starts at needs-review; a human closes it out.
func complianceFlagsFor(category string) []models.ComplianceFlag {
	frameworks := frameworksByCategory[category]
	if len(frameworks) == 0 {
		return nil
	}

	flags := make([]models.ComplianceFlag, 0, len(frameworks))
	for _, fw := range frameworks {
		actions := fw.requirements
		if len(actions) > 3 {
			actions = actions[:3]
		}
		flags = append(flags, models.ComplianceFlag{
			Framework:        fw.name,
			Requirement:      fw.requirements[0],
			Status:           models.ComplianceStatusNeedsReview,
			SuggestedActions: actions,
		})
	}
	return flags
}

// Recommendation rule tables, evaluated in fixed group order: risk tier,
// category, pattern, compliance flag.
var (
	riskRecommendations = map[models.RiskLevel][]string{
		models.RiskLevelCritical: {
			"Restrict access to least privilege",
			"Enable column-level encryption at rest",
		},
		models.RiskLevelHigh: {
			"Enable masking in non-production environments",
		},
		models.RiskLevelMedium: {
			"Review access policies quarterly",
		},
		models.RiskLevelLow: {
			"No immediate action required",
		},
	}

	categoryRecommendations = map[string][]string{
		"Personal Data":  {"Document lawful basis for processing"},
		"Health Data":    {"Verify HIPAA access controls cover this field"},
		"Financial Data": {"Confirm PCI scope documentation includes this field"},
		"Technical Data": {"Move secrets to a managed secret store"},
	}

	patternRecommendations = map[string]string{
		"ssn":        "Tokenize social security numbers",
		"creditCard": "Tokenize card numbers per PCI DSS requirement 3.4",
		"email":      "Apply email masking for analyst roles",
		"apiKey":     "Revoke and rotate exposed keys",
		"jwt":        "Revoke and rotate exposed tokens",
	}

	complianceRecommendations = map[string]string{
		"GDPR":  "Register field in Article 30 processing records",
		"HIPAA": "Include field in the HIPAA risk assessment",
	}
)

// recommendationsFor assembles recommendations from the four rule groups,
// deduplicated and capped, in group evaluation order.
func recommendationsFor(risk models.RiskLevel, class models.SemanticClass, patterns []models.PatternMatch, flags []models.ComplianceFlag) []string {
	seen := make(map[string]bool)
	recs := make([]string, 0, maxRecommendations)

	add := func(rec string) {
		if len(recs) >= maxRecommendations || seen[rec] {
			return
		}
		seen[rec] = true
		recs = append(recs, rec)
	}

	for _, rec := range riskRecommendations[risk] {
		add(rec)
	}
	for _, rec := range categoryRecommendations[class.Category] {
		add(rec)
	}
	for _, p := range patterns {
		if rec, ok := patternRecommendations[p.PatternType]; ok {
			add(rec)
		}
	}
	for _, flag := range flags {
		if rec, ok := complianceRecommendations[flag.Framework]; ok {
			add(rec)
		}
	}

	return recs
}

// retentionPolicyFor looks up the static retention policy, defaulting to the
// business-data policy for unknown categories.
func retentionPolicyFor(category string) string {
	if policy, ok := retentionByCategory[category]; ok {
		return policy
	}
	return retentionByCategory["Business Data"]
}

// geoRestrictionsFor derives residency restrictions from compliance flags.
// GDPR-flagged data always carries an EU/EEA residency restriction.
func geoRestrictionsFor(flags []models.ComplianceFlag) []string {
	for _, flag := range flags {
		if flag.Framework == "GDPR" {
			return []string{"EU/EEA data residency required"}
		}
	}
	return nil
}

// ClassificationFor maps a classifier category to the persisted
// classification label.
func ClassificationFor(category string) models.Classification {
	switch category {
	case "Personal Data":
		return models.ClassificationPII
	case "Health Data":
		return models.ClassificationPHI
	case "Financial Data":
		return models.ClassificationFinancial
	default:
		return models.ClassificationGeneral
	}
}

// SensitivityFor maps a risk tier to the persisted sensitivity label.
func SensitivityFor(risk models.RiskLevel) models.Sensitivity {
	switch risk {
	case models.RiskLevelCritical:
		return models.SensitivityCritical
	case models.RiskLevelHigh:
		return models.SensitivityHigh
	case models.RiskLevelMedium:
		return models.SensitivityMedium
	default:
		return models.SensitivityLow
	}
}
