package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/veridata-labs/veridata-engine/pkg/llm"
	"github.com/veridata-labs/veridata-engine/pkg/models"
)

// classificationTemperature keeps AI classifications reproducible.
const classificationTemperature = 0.1

// FieldDescriptor identifies one column to classify.
type FieldDescriptor struct {
	Name      string
	DataType  string
	TableName string
	Schema    string
}

// taxonomy is the fixed category/subcategory vocabulary the AI provider is
// asked to choose from. The fallback path draws from the same vocabulary.
var taxonomy = map[string][]string{
	"Personal Data":  {"Contact Information", "Identity", "Demographics", "PII"},
	"Health Data":    {"PHI", "Medical Records", "Diagnosis"},
	"Financial Data": {"Payment", "Banking", "Transactions"},
	"Technical Data": {"Credentials", "System", "Identifiers"},
	"Business Data":  {"Internal", "Operational", "Metadata"},
}

// taxonomyOrder fixes the prompt ordering; map iteration is random.
var taxonomyOrder = []string{
	"Personal Data", "Health Data", "Financial Data", "Technical Data", "Business Data",
}

// fallbackGroup is one ordered keyword group of the rule-based classifier.
type fallbackGroup struct {
	keywords    []string
	category    string
	subcategory string
	confidence  float64
}

// fallbackGroups are evaluated in order; the first group containing a
// matching keyword wins.
var fallbackGroups = []fallbackGroup{
	{
		keywords: []string{
			"email", "mail", "phone", "mobile", "address", "first_name", "last_name",
			"full_name", "username", "ssn", "social", "birth", "dob", "gender", "zip", "city",
		},
		category:    "Personal Data",
		subcategory: "Contact Information",
		confidence:  0.85,
	},
	{
		keywords: []string{
			"patient", "diagnosis", "medical", "health", "prescription", "treatment",
			"symptom", "icd", "allergy",
		},
		category:    "Health Data",
		subcategory: "PHI",
		confidence:  0.90,
	},
	{
		keywords: []string{
			"account", "payment", "card", "salary", "balance", "invoice", "iban",
			"amount", "tax", "currency", "routing",
		},
		category:    "Financial Data",
		subcategory: "Payment",
		confidence:  0.85,
	},
	{
		keywords: []string{
			"password", "secret", "token", "api_key", "apikey", "credential",
			"private_key", "jwt",
		},
		category:    "Technical Data",
		subcategory: "Credentials",
		confidence:  0.95,
	},
}

// Classifier assigns a semantic category to a field, preferring the AI
// provider and degrading to the rule-based fallback on any failure.
type Classifier struct {
	client  llm.LLMClient // nil means rule-based only
	timeout time.Duration
	logger  *zap.Logger
}

// NewClassifier creates a classifier. Pass a nil client to run rule-based
// classification only.
func NewClassifier(client llm.LLMClient, timeout time.Duration, logger *zap.Logger) *Classifier {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Classifier{
		client:  client,
		timeout: timeout,
		logger:  logger.Named("classifier"),
	}
}

// Classify produces a semantic class for the field. It never returns an
// error: AI-path failures of any kind (unreachable provider, transport
// error, malformed response, timeout) degrade to the deterministic fallback,
// recorded via AIGenerated=false.
func (c *Classifier) Classify(ctx context.Context, field FieldDescriptor) models.SemanticClass {
	if c.client == nil {
		return FallbackClassify(field.Name)
	}

	class, err := c.classifyWithAI(ctx, field)
	if err != nil {
		c.logger.Warn("AI classification failed, using rule-based fallback",
			zap.String("field", field.Name),
			zap.String("table", field.TableName),
			zap.Error(err))
		return FallbackClassify(field.Name)
	}
	return class
}

// aiClassification is the structured response expected from the provider.
// All four fields must be present for the response to be trusted.
type aiClassification struct {
	Category    string  `json:"category"`
	Subcategory string  `json:"subcategory"`
	Confidence  float64 `json:"confidence"`
	Reasoning   string  `json:"reasoning"`
}

// classifyWithAI issues one provider request and validates the response.
func (c *Classifier) classifyWithAI(ctx context.Context, field FieldDescriptor) (models.SemanticClass, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.client.GenerateResponse(ctx, buildClassifyPrompt(field), classifySystemMessage, classificationTemperature)
	if err != nil {
		return models.SemanticClass{}, fmt.Errorf("ai classification request: %w", err)
	}
	if result == nil || result.Content == "" {
		return models.SemanticClass{}, fmt.Errorf("ai returned empty response")
	}

	var parsed aiClassification
	if err := json.Unmarshal([]byte(llm.ExtractJSON(result.Content)), &parsed); err != nil {
		return models.SemanticClass{}, fmt.Errorf("parse ai response: %w", err)
	}

	if err := validateAIClassification(&parsed); err != nil {
		return models.SemanticClass{}, fmt.Errorf("invalid ai response: %w", err)
	}

	return models.SemanticClass{
		Category:    parsed.Category,
		Subcategory: parsed.Subcategory,
		Confidence:  parsed.Confidence,
		AIGenerated: true,
	}, nil
}

// validateAIClassification enforces the structured-response contract before
// the result is trusted.
func validateAIClassification(parsed *aiClassification) error {
	if parsed.Category == "" {
		return fmt.Errorf("missing category")
	}
	if parsed.Subcategory == "" {
		return fmt.Errorf("missing subcategory")
	}
	if parsed.Reasoning == "" {
		return fmt.Errorf("missing reasoning")
	}
	if parsed.Confidence <= 0 || parsed.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range", parsed.Confidence)
	}
	if _, ok := taxonomy[parsed.Category]; !ok {
		return fmt.Errorf("category %q not in taxonomy", parsed.Category)
	}
	return nil
}

const classifySystemMessage = "You are a data governance expert classifying database columns " +
	"by sensitivity. Choose only from the provided taxonomy. " +
	"Return valid JSON only, with no additional text or explanation."

// buildClassifyPrompt constructs the provider prompt for one field.
func buildClassifyPrompt(field FieldDescriptor) string {
	var b strings.Builder

	b.WriteString("# Column Classification Task\n\n")
	b.WriteString("Classify the following database column into the taxonomy below.\n\n")

	b.WriteString("## Column\n\n")
	b.WriteString(fmt.Sprintf("- Schema: `%s`\n", field.Schema))
	b.WriteString(fmt.Sprintf("- Table: `%s`\n", field.TableName))
	b.WriteString(fmt.Sprintf("- Column: `%s`\n", field.Name))
	b.WriteString(fmt.Sprintf("- Data type: `%s`\n\n", field.DataType))

	b.WriteString("## Taxonomy\n\n")
	for _, cat := range taxonomyOrder {
		b.WriteString(fmt.Sprintf("- %s: %s\n", cat, strings.Join(taxonomy[cat], ", ")))
	}
	b.WriteString("\n")

	b.WriteString("**Output Format:**\n")
	b.WriteString("Return a JSON object with exactly these fields:\n")
	b.WriteString("```json\n")
	b.WriteString("{\n")
	b.WriteString("  \"category\": \"Personal Data\",\n")
	b.WriteString("  \"subcategory\": \"Contact Information\",\n")
	b.WriteString("  \"confidence\": 0.92,\n")
	b.WriteString("  \"reasoning\": \"Column name and type indicate a contact email address.\"\n")
	b.WriteString("}\n")
	b.WriteString("```\n")

	return b.String()
}

// FallbackClassify is the deterministic rule-based classifier. It is pure
// and total: it always returns a class and never fails.
func FallbackClassify(fieldName string) models.SemanticClass {
	lower := strings.ToLower(fieldName)

	for _, group := range fallbackGroups {
		for _, keyword := range group.keywords {
			if strings.Contains(lower, keyword) {
				return models.SemanticClass{
					Category:    group.category,
					Subcategory: group.subcategory,
					Confidence:  group.confidence,
					AIGenerated: false,
				}
			}
		}
	}

	return models.SemanticClass{
		Category:    "Business Data",
		Subcategory: "Internal",
		Confidence:  0.60,
		AIGenerated: false,
	}
}

// BusinessContext derives a short business-context description for a field
// from its table name.
func BusinessContext(field FieldDescriptor) string {
	entity := inflection.Singular(strings.ToLower(field.TableName))
	if entity == "" {
		return fmt.Sprintf("Attribute %s", field.Name)
	}
	return fmt.Sprintf("Attribute of the %s entity", entity)
}
