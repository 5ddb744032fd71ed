package semantic

import (
	"sort"
	"strings"

	"github.com/careline/medrag/internal/model"
)

// medicalSynonyms maps domain vocabulary to the synonyms a user might
// have meant. Keys are matched as substrings of the lowercased query.
var medicalSynonyms = map[string][]string{
	"rifampicina":      {"rmp", "rifampin"},
	"clofazimina":      {"cfz", "lamprene"},
	"dapsona":          {"dds", "sulfona"},
	"hanseníase":       {"lepra", "mh", "doença de hansen"},
	"hanseniase":       {"lepra", "mh"},
	"pqt":              {"poliquimioterapia", "pqt-u"},
	"dose":             {"dosagem", "posologia"},
	"dosagem":          {"dose", "posologia"},
	"gravidez":         {"gestação", "gestante"},
	"gestante":         {"gravidez", "gestação"},
	"efeito colateral": {"reação adversa", "evento adverso"},
	"reação adversa":   {"efeito colateral"},
	"contraindicação":  {"contraindicado", "não recomendado"},
	"interação":        {"interação medicamentosa"},
	"criança":          {"pediátrico", "infantil"},
}

// contextRules pull in related concepts that are not synonyms: asking
// about treatment implies the drugs of the PQT-U scheme.
var contextRules = map[string][]string{
	"tratamento":   {"rifampicina", "clofazimina", "dapsona", "pqt-u"},
	"medicamento":  {"rifampicina", "clofazimina", "dapsona"},
	"esquema":      {"pqt-u", "dose supervisionada"},
	"supervisiona": {"dose mensal", "unidade de saúde"},
}

// categoryHints map query substrings to the knowledge category they
// most likely target.
var categoryHints = map[string]model.Category{
	"dose":            model.CategoryDosage,
	"dosagem":         model.CategoryDosage,
	"posologia":       model.CategoryDosage,
	"quantos":         model.CategoryDosage,
	"mg":              model.CategoryDosage,
	"contraindica":    model.CategoryContraindication,
	"gravidez":        model.CategoryContraindication,
	"gestante":        model.CategoryContraindication,
	"pode tomar":      model.CategoryContraindication,
	"efeito":          model.CategorySideEffect,
	"colateral":       model.CategorySideEffect,
	"reação":          model.CategorySideEffect,
	"urina":           model.CategorySideEffect,
	"interação":       model.CategoryInteraction,
	"anticoncepcional": model.CategoryInteraction,
	"junto com":       model.CategoryInteraction,
	"esquema":         model.CategoryProtocol,
	"protocolo":       model.CategoryProtocol,
	"quanto tempo":    model.CategoryProtocol,
	"duração":         model.CategoryProtocol,
}

// Expansion is the derived vocabulary of a query, split by origin so
// keyword scoring can weight each class differently.
type Expansion struct {
	MedicalTerms []string
	Synonyms     []string
	Related      []string
}

// Terms returns every expansion term, medical terms first.
func (e Expansion) Terms() []string {
	out := make([]string, 0, len(e.MedicalTerms)+len(e.Synonyms)+len(e.Related))
	out = append(out, e.MedicalTerms...)
	out = append(out, e.Synonyms...)
	out = append(out, e.Related...)
	return out
}

// ExpandQuery looks up query substrings against the domain vocabulary.
// Output ordering is deterministic regardless of map iteration.
func ExpandQuery(query string) Expansion {
	lowered := strings.ToLower(query)
	var exp Expansion
	seen := make(map[string]struct{})
	add := func(dst *[]string, term string) {
		term = strings.ToLower(term)
		if term == "" {
			return
		}
		if _, ok := seen[term]; ok {
			return
		}
		seen[term] = struct{}{}
		*dst = append(*dst, term)
	}
	for term, synonyms := range medicalSynonyms {
		if !strings.Contains(lowered, term) {
			continue
		}
		add(&exp.MedicalTerms, term)
		for _, syn := range synonyms {
			add(&exp.Synonyms, syn)
		}
	}
	for trigger, related := range contextRules {
		if !strings.Contains(lowered, trigger) {
			continue
		}
		for _, term := range related {
			add(&exp.Related, term)
		}
	}
	sort.Strings(exp.MedicalTerms)
	sort.Strings(exp.Synonyms)
	sort.Strings(exp.Related)
	return exp
}

// DetectCategories returns the knowledge categories a query hints at,
// in stable order.
func DetectCategories(query string) []model.Category {
	lowered := strings.ToLower(query)
	found := make(map[model.Category]struct{})
	for hint, category := range categoryHints {
		if strings.Contains(lowered, hint) {
			found[category] = struct{}{}
		}
	}
	out := make([]model.Category, 0, len(found))
	for category := range found {
		out = append(out, category)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
