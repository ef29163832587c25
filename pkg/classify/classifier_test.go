package classify

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veridata-labs/veridata-engine/pkg/llm"
)

func TestFallbackClassify(t *testing.T) {
	tests := []struct {
		fieldName   string
		category    string
		subcategory string
		confidence  float64
	}{
		{"email_address", "Personal Data", "Contact Information", 0.85},
		{"customer_phone", "Personal Data", "Contact Information", 0.85},
		{"date_of_birth", "Personal Data", "Contact Information", 0.85},
		{"patient_diagnosis", "Health Data", "PHI", 0.90},
		{"prescription_code", "Health Data", "PHI", 0.90},
		{"account_balance", "Financial Data", "Payment", 0.85},
		{"invoice_total", "Financial Data", "Payment", 0.85},
		{"password_hash", "Technical Data", "Credentials", 0.95},
		{"api_key", "Technical Data", "Credentials", 0.95},
		{"created_at", "Business Data", "Internal", 0.60},
		{"order_count", "Business Data", "Internal", 0.60},
	}

	for _, tt := range tests {
		t.Run(tt.fieldName, func(t *testing.T) {
			class := FallbackClassify(tt.fieldName)
			assert.Equal(t, tt.category, class.Category)
			assert.Equal(t, tt.subcategory, class.Subcategory)
			assert.Equal(t, tt.confidence, class.Confidence)
			assert.False(t, class.AIGenerated)
		})
	}
}

func TestFallbackClassify_GroupOrder(t *testing.T) {
	// "patient_email" matches both the personal and health keyword groups;
	// the personal group is evaluated first.
	class := FallbackClassify("patient_email")
	assert.Equal(t, "Personal Data", class.Category)
}

func TestFallbackClassify_CaseInsensitive(t *testing.T) {
	class := FallbackClassify("Customer_EMAIL")
	assert.Equal(t, "Personal Data", class.Category)
}

func TestClassifier_NilClientUsesFallback(t *testing.T) {
	c := NewClassifier(nil, time.Second, zap.NewNop())

	class := c.Classify(context.Background(), FieldDescriptor{Name: "user_email"})

	assert.Equal(t, "Personal Data", class.Category)
	assert.False(t, class.AIGenerated)
}

func TestClassifier_AISuccess(t *testing.T) {
	mock := llm.NewMockLLMClient()
	mock.GenerateResponseFunc = func(_ context.Context, prompt, system string, temperature float64) (*llm.GenerateResponseResult, error) {
		assert.Contains(t, prompt, "user_email")
		assert.Contains(t, prompt, "Personal Data")
		assert.Equal(t, 0.1, temperature)
		return &llm.GenerateResponseResult{
			Content: `{"category":"Personal Data","subcategory":"Contact Information","confidence":0.92,"reasoning":"Column name indicates a contact email."}`,
		}, nil
	}

	c := NewClassifier(mock, time.Second, zap.NewNop())
	class := c.Classify(context.Background(), FieldDescriptor{
		Name: "user_email", DataType: "varchar", TableName: "users", Schema: "public",
	})

	assert.Equal(t, "Personal Data", class.Category)
	assert.Equal(t, "Contact Information", class.Subcategory)
	assert.Equal(t, 0.92, class.Confidence)
	assert.True(t, class.AIGenerated)
	assert.Equal(t, 1, mock.GenerateResponseCalls)
}

func TestClassifier_AIFencedJSON(t *testing.T) {
	mock := llm.NewMockLLMClient()
	mock.GenerateResponseFunc = func(_ context.Context, _, _ string, _ float64) (*llm.GenerateResponseResult, error) {
		return &llm.GenerateResponseResult{
			Content: "```json\n{\"category\":\"Health Data\",\"subcategory\":\"Diagnosis\",\"confidence\":0.88,\"reasoning\":\"ICD codes.\"}\n```",
		}, nil
	}

	c := NewClassifier(mock, time.Second, zap.NewNop())
	class := c.Classify(context.Background(), FieldDescriptor{Name: "icd_code"})

	assert.Equal(t, "Health Data", class.Category)
	assert.True(t, class.AIGenerated)
}

func TestClassifier_AIFailuresDegradeToFallback(t *testing.T) {
	tests := []struct {
		name     string
		response *llm.GenerateResponseResult
		err      error
	}{
		{"provider error", nil, fmt.Errorf("connection refused")},
		{"empty response", &llm.GenerateResponseResult{Content: ""}, nil},
		{"malformed json", &llm.GenerateResponseResult{Content: "not json at all"}, nil},
		{"missing reasoning", &llm.GenerateResponseResult{
			Content: `{"category":"Personal Data","subcategory":"PII","confidence":0.9,"reasoning":""}`,
		}, nil},
		{"confidence out of range", &llm.GenerateResponseResult{
			Content: `{"category":"Personal Data","subcategory":"PII","confidence":1.5,"reasoning":"x"}`,
		}, nil},
		{"category not in taxonomy", &llm.GenerateResponseResult{
			Content: `{"category":"Made Up Data","subcategory":"PII","confidence":0.9,"reasoning":"x"}`,
		}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := llm.NewMockLLMClient()
			mock.GenerateResponseFunc = func(_ context.Context, _, _ string, _ float64) (*llm.GenerateResponseResult, error) {
				return tt.response, tt.err
			}

			c := NewClassifier(mock, time.Second, zap.NewNop())
			class := c.Classify(context.Background(), FieldDescriptor{Name: "patient_record"})

			// Rule-based fallback result, never an error.
			assert.Equal(t, "Health Data", class.Category)
			assert.Equal(t, 0.90, class.Confidence)
			assert.False(t, class.AIGenerated)
		})
	}
}

func TestClassifier_AITimeout(t *testing.T) {
	mock := llm.NewMockLLMClient()
	mock.GenerateResponseFunc = func(ctx context.Context, _, _ string, _ float64) (*llm.GenerateResponseResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	c := NewClassifier(mock, 10*time.Millisecond, zap.NewNop())
	class := c.Classify(context.Background(), FieldDescriptor{Name: "salary"})

	assert.Equal(t, "Financial Data", class.Category)
	assert.False(t, class.AIGenerated)
}

func TestBusinessContext(t *testing.T) {
	ctx := BusinessContext(FieldDescriptor{Name: "email", TableName: "customers"})
	assert.Equal(t, "Attribute of the customer entity", ctx)

	require.NotEmpty(t, BusinessContext(FieldDescriptor{Name: "email"}))
}
