package classify

import (
	"math"
	"regexp"
	"strings"

	"github.com/veridata-labs/veridata-engine/pkg/models"
)

var (
	numericValuePattern = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
	isoDatePrefix       = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
	emailValuePattern   = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// Profile computes sample statistics for one column. It never fails:
// degenerate input yields an all-zero profile with unknown format. The
// sample slice is only read during the call; no references are retained.
func Profile(sampleValues []string) models.DataProfile {
	if len(sampleValues) == 0 {
		return models.DataProfile{
			Format:       models.FormatUnknown,
			Distribution: models.DistributionMixed,
		}
	}

	total := len(sampleValues)
	nullCount := 0
	freq := make(map[string]int, total)
	firstNonNull := ""

	for _, val := range sampleValues {
		if isNullValue(val) {
			nullCount++
			continue
		}
		if firstNonNull == "" {
			firstNonNull = val
		}
		freq[val]++
	}

	distinct := len(freq)
	uniqueness := float64(distinct) / float64(total)
	nullability := float64(nullCount) / float64(total)

	return models.DataProfile{
		Uniqueness:   uniqueness,
		Nullability:  nullability,
		Cardinality:  distinct,
		Entropy:      shannonEntropy(freq, total-nullCount),
		Format:       inferFormat(firstNonNull),
		Distribution: distributionFor(uniqueness),
	}
}

// isNullValue treats empty strings and literal null markers as nulls.
// Catalog sample payloads serialize database NULLs both ways.
func isNullValue(val string) bool {
	return val == "" || strings.EqualFold(val, "null")
}

// shannonEntropy computes -sum(p*log2(p)) over the value frequencies.
func shannonEntropy(freq map[string]int, nonNull int) float64 {
	if nonNull == 0 {
		return 0
	}

	entropy := 0.0
	for _, count := range freq {
		p := float64(count) / float64(nonNull)
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// inferFormat tests the first non-null value against format patterns in
// fixed order: numeric, ISO date prefix, email, else text.
func inferFormat(value string) models.ValueFormat {
	if value == "" {
		return models.FormatUnknown
	}
	switch {
	case numericValuePattern.MatchString(value):
		return models.FormatNumeric
	case isoDatePrefix.MatchString(value):
		return models.FormatDate
	case emailValuePattern.MatchString(value):
		return models.FormatEmail
	default:
		return models.FormatText
	}
}

// distributionFor labels the value distribution from the uniqueness ratio.
func distributionFor(uniqueness float64) models.Distribution {
	switch {
	case uniqueness > 0.95:
		return models.DistributionUnique
	case uniqueness < 0.10:
		return models.DistributionCategorical
	default:
		return models.DistributionMixed
	}
}
