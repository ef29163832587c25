// Package classify implements the field classification pipeline: pattern
// detection, data profiling, semantic classification, and risk assessment.
package classify

import (
	"regexp"
	"strings"

	"github.com/veridata-labs/veridata-engine/pkg/models"
)

// nameMatchConfidence is the fixed confidence assigned to a field-name match.
// Name matches carry no sample evidence, so they never reach value-match
// confidence levels.
const nameMatchConfidence = 0.8

// maxPatternExamples caps the sample values kept per match for audit.
const maxPatternExamples = 3

// PatternRule is one entry in the fixed detection catalog. Rules are matched
// against column DATA when samples are available and against the column name
// otherwise (or additionally).
type PatternRule struct {
	Type        string
	Regex       *regexp.Regexp
	Category    string
	Subcategory string
	RiskLevel   models.RiskLevel
	Synonyms    []string
}

// patternCatalog is the fixed, ordered rule library. Evaluation order does
// not affect the output set; matches only accumulate.
var patternCatalog = []PatternRule{
	{
		Type:        "email",
		Regex:       regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`),
		Category:    "Personal Data",
		Subcategory: "Contact Information",
		RiskLevel:   models.RiskLevelHigh,
		Synonyms:    []string{"mail"},
	},
	{
		Type:        "ssn",
		Regex:       regexp.MustCompile(`^\d{3}-\d{2}-\d{4}$`),
		Category:    "Personal Data",
		Subcategory: "Identity",
		RiskLevel:   models.RiskLevelCritical,
		Synonyms:    []string{"social", "social_security"},
	},
	{
		Type:        "creditCard",
		Regex:       regexp.MustCompile(`^\d{4}[ -]?\d{4}[ -]?\d{4}[ -]?\d{1,4}$`),
		Category:    "Financial Data",
		Subcategory: "Payment",
		RiskLevel:   models.RiskLevelCritical,
		Synonyms:    []string{"card_number", "pan", "cc_num"},
	},
	{
		Type:        "phone",
		Regex:       regexp.MustCompile(`^\+?[0-9][0-9\s().-]{6,18}$`),
		Category:    "Personal Data",
		Subcategory: "Contact Information",
		RiskLevel:   models.RiskLevelHigh,
		Synonyms:    []string{"mobile", "tel", "telephone"},
	},
	{
		Type:        "iban",
		Regex:       regexp.MustCompile(`^[A-Z]{2}\d{2}[A-Z0-9]{11,30}$`),
		Category:    "Financial Data",
		Subcategory: "Banking",
		RiskLevel:   models.RiskLevelHigh,
		Synonyms:    []string{"bank_account"},
	},
	{
		Type:        "apiKey",
		Regex:       regexp.MustCompile(`^(sk|pk|api|key)[-_][A-Za-z0-9_-]{16,}$`),
		Category:    "Technical Data",
		Subcategory: "Credentials",
		RiskLevel:   models.RiskLevelCritical,
		Synonyms:    []string{"api_key", "secret_key", "access_key"},
	},
	{
		Type:        "jwt",
		Regex:       regexp.MustCompile(`^eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]*$`),
		Category:    "Technical Data",
		Subcategory: "Credentials",
		RiskLevel:   models.RiskLevelCritical,
		Synonyms:    []string{"bearer_token", "id_token"},
	},
	{
		Type:        "ipAddress",
		Regex:       regexp.MustCompile(`^(\d{1,3}\.){3}\d{1,3}$`),
		Category:    "Technical Data",
		Subcategory: "System",
		RiskLevel:   models.RiskLevelMedium,
		Synonyms:    []string{"ip_addr", "ip"},
	},
	{
		Type:        "dateOfBirth",
		Regex:       regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`),
		Category:    "Personal Data",
		Subcategory: "Demographics",
		RiskLevel:   models.RiskLevelHigh,
		Synonyms:    []string{"dob", "birth_date", "birthdate"},
	},
	{
		Type:        "uuid",
		Regex:       regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`),
		Category:    "Technical Data",
		Subcategory: "Identifiers",
		RiskLevel:   models.RiskLevelLow,
		Synonyms:    []string{"guid"},
	},
}

// RuleForPattern looks up the catalog rule for a pattern type.
// Returns nil if the type is unknown.
func RuleForPattern(patternType string) *PatternRule {
	for i := range patternCatalog {
		if patternCatalog[i].Type == patternType {
			return &patternCatalog[i]
		}
	}
	return nil
}

// DetectPatterns evaluates the rule catalog against a field's name and
// sample values. Deterministic and side-effect free.
//
// Name matches fire when the lowercased field name contains the rule's type
// token or one of its synonyms, at fixed confidence and without examples.
// Value matches fire when sample values match the rule's full regex, at
// confidence matchCount/sampleSize clamped to 1.0, keeping up to three
// matched values as examples.
func DetectPatterns(fieldName string, sampleValues []string) []models.PatternMatch {
	var matches []models.PatternMatch
	lowerName := strings.ToLower(fieldName)

	for i := range patternCatalog {
		rule := &patternCatalog[i]

		if nameMatchesRule(lowerName, rule) {
			matches = append(matches, models.PatternMatch{
				PatternType: rule.Type,
				Regex:       rule.Regex.String(),
				MatchCount:  0,
				Confidence:  nameMatchConfidence,
			})
		}

		if len(sampleValues) == 0 {
			continue
		}

		matchCount := 0
		examples := make([]string, 0, maxPatternExamples)
		for _, val := range sampleValues {
			if val == "" {
				continue
			}
			if rule.Regex.MatchString(val) {
				matchCount++
				if len(examples) < maxPatternExamples {
					examples = append(examples, val)
				}
			}
		}

		if matchCount > 0 {
			confidence := float64(matchCount) / float64(len(sampleValues))
			if confidence > 1.0 {
				confidence = 1.0
			}
			matches = append(matches, models.PatternMatch{
				PatternType: rule.Type,
				Regex:       rule.Regex.String(),
				MatchCount:  matchCount,
				Confidence:  confidence,
				Examples:    examples,
			})
		}
	}

	return matches
}

// nameMatchesRule checks the field name against the rule token and synonyms.
func nameMatchesRule(lowerName string, rule *PatternRule) bool {
	if strings.Contains(lowerName, strings.ToLower(rule.Type)) {
		return true
	}
	for _, syn := range rule.Synonyms {
		if strings.Contains(lowerName, syn) {
			return true
		}
	}
	return false
}
