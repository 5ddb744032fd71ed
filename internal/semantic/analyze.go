package semantic

import (
	"strings"

	"github.com/careline/medrag/internal/model"
)

// AnalyzeQuery classifies a query's complexity from its length, the
// medical vocabulary it touches and how many categories it spans. The
// thresholds are heuristics carried over from production tuning.
func AnalyzeQuery(text string) model.QueryAnalysis {
	words := len(strings.Fields(text))
	expansion := ExpandQuery(text)
	categories := DetectCategories(text)
	terms := len(expansion.MedicalTerms)

	complexity := model.ComplexitySimple
	if words > 10 || terms > 2 {
		complexity = model.ComplexityMedium
	}
	if words > 20 || terms > 4 || len(categories) > 2 {
		complexity = model.ComplexityComplex
	}

	confidence := float64(terms)*0.3 + float64(words)*0.05
	if confidence > 1 {
		confidence = 1
	}
	return model.QueryAnalysis{
		Complexity:   complexity,
		MedicalTerms: expansion.MedicalTerms,
		Categories:   categories,
		Confidence:   confidence,
	}
}
