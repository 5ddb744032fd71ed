package optimize

import (
	"sort"
	"strings"

	"github.com/careline/medrag/internal/semantic"
)

// Optimization names describe what the rewriter did to a query. They
// end up in analytics, keep them stable.
const (
	OptNone      = "none"
	OptShortened = "shortened"
	OptExpanded  = "expanded"
	OptIntent    = "intent"
)

const (
	longQueryWords  = 12
	shortQueryWords = 3
	keepContentTop  = 5
	maxExpandTerms  = 2
)

// stopwords are Portuguese function words that carry no retrieval
// signal.
var stopwords = map[string]struct{}{
	"a": {}, "o": {}, "as": {}, "os": {}, "um": {}, "uma": {},
	"de": {}, "da": {}, "do": {}, "das": {}, "dos": {}, "em": {},
	"na": {}, "no": {}, "nas": {}, "nos": {}, "para": {}, "por": {},
	"com": {}, "sem": {}, "que": {}, "qual": {}, "quais": {},
	"como": {}, "quando": {}, "onde": {}, "quem": {}, "e": {},
	"ou": {}, "mas": {}, "se": {}, "eu": {}, "meu": {}, "minha": {},
	"ele": {}, "ela": {}, "isso": {}, "esse": {}, "essa": {},
	"este": {}, "esta": {}, "ser": {}, "estar": {}, "ter": {},
	"posso": {}, "pode": {}, "devo": {}, "deve": {}, "é": {},
	"são": {}, "está": {}, "foi": {}, "vai": {}, "tem": {},
}

// intentKeywords map conversational phrasings to the retrieval terms
// that actually match the corpus.
var intentKeywords = map[string]string{
	"como tomar":      "administração posologia",
	"pode tomar":      "contraindicação",
	"faz mal":         "efeito colateral",
	"quanto tempo":    "duração tratamento",
	"quantos":         "dose",
	"esquecer":        "dose esquecida conduta",
	"esqueci":         "dose esquecida conduta",
	"junto com":       "interação medicamentosa",
	"misturar":        "interação medicamentosa",
	"urina escura":    "rifampicina efeito colateral",
	"pele escura":     "clofazimina pigmentação",
	"grávida":         "gravidez contraindicação",
	"amamentando":     "amamentação",
	"bebida":          "álcool interação",
	"álcool":          "álcool interação",
}

// Rewrite normalizes a query for retrieval and reports which
// optimization was applied. An empty rewrite falls back to the
// original text untouched.
func Rewrite(text string) (string, string) {
	trimmed := strings.Join(strings.Fields(text), " ")
	if trimmed == "" {
		return text, OptNone
	}
	lowered := strings.ToLower(trimmed)

	if appended := intentTerms(lowered); appended != "" {
		rewritten := trimmed + " " + appended
		return rewritten, OptIntent
	}

	words := strings.Fields(trimmed)
	switch {
	case len(words) > longQueryWords:
		if shortened := shorten(words); shortened != "" {
			return shortened, OptShortened
		}
	case len(words) < shortQueryWords:
		if expanded := expand(trimmed); expanded != trimmed {
			return expanded, OptExpanded
		}
	}
	return trimmed, OptNone
}

// intentTerms collects the retrieval terms of every intent phrase the
// query contains, in stable order.
func intentTerms(lowered string) string {
	var matched []string
	for phrase, terms := range intentKeywords {
		if strings.Contains(lowered, phrase) {
			matched = append(matched, terms)
		}
	}
	if len(matched) == 0 {
		return ""
	}
	sort.Strings(matched)
	seen := make(map[string]struct{})
	var out []string
	for _, terms := range matched {
		for _, term := range strings.Fields(terms) {
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			out = append(out, term)
		}
	}
	return strings.Join(out, " ")
}

// shorten keeps the first few content words of an overlong query,
// preferring longer tokens when there are too many.
func shorten(words []string) string {
	var content []string
	for _, word := range words {
		key := strings.ToLower(strings.Trim(word, ".,!?;:"))
		if key == "" {
			continue
		}
		if _, ok := stopwords[key]; ok {
			continue
		}
		content = append(content, key)
	}
	if len(content) == 0 {
		return ""
	}
	if len(content) > keepContentTop {
		sort.SliceStable(content, func(i, j int) bool { return len(content[i]) > len(content[j]) })
		content = content[:keepContentTop]
	}
	return strings.Join(content, " ")
}

// expand pads a too-short query with domain expansion terms so the
// embedding has something to latch on.
func expand(text string) string {
	expansion := semantic.ExpandQuery(text)
	terms := expansion.Terms()
	if len(terms) > maxExpandTerms {
		terms = terms[:maxExpandTerms]
	}
	lowered := strings.ToLower(text)
	var added []string
	for _, term := range terms {
		if strings.Contains(lowered, term) {
			continue
		}
		added = append(added, term)
	}
	if len(added) == 0 {
		return text
	}
	return text + " " + strings.Join(added, " ")
}
