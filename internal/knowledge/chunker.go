package knowledge

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/careline/medrag/internal/model"
)

const (
	sentencesPerChunk = 2
	minChunkWords     = 3
)

var (
	sentenceEnd = regexp.MustCompile(`([.!?])\s+`)

	dosagePattern = regexp.MustCompile(`(?i)\b(dose|doses|dosagem|mg|mg/kg|comprimido|cápsula|posologia|administra)`)
	contraPattern = regexp.MustCompile(`(?i)(contraindica|contra-indica|não deve|não usar|evitar|gravidez|gestante|alergia|hipersensibilidade)`)
)

// SplitChunks derives chunks from a document by grouping consecutive
// sentences. Fragments shorter than minChunkWords are folded into the
// neighboring group rather than emitted alone.
func SplitChunks(doc *model.Document) []*model.Chunk {
	sentences := splitSentences(doc.Content)
	var chunks []*model.Chunk
	var group []string
	flush := func() {
		if len(group) == 0 {
			return
		}
		content := strings.TrimSpace(strings.Join(group, " "))
		group = group[:0]
		words := len(strings.Fields(content))
		if words < minChunkWords {
			return
		}
		chunks = append(chunks, &model.Chunk{
			ID:                       fmt.Sprintf("%s-chunk-%d", doc.ID, len(chunks)),
			DocumentID:               doc.ID,
			Content:                  content,
			Category:                 doc.Category,
			Priority:                 doc.Priority,
			WordCount:                words,
			ContainsDosage:           dosagePattern.MatchString(content),
			ContainsContraindication: contraPattern.MatchString(content),
		})
	}
	for _, sentence := range sentences {
		group = append(group, sentence)
		if len(group) >= sentencesPerChunk {
			flush()
		}
	}
	flush()
	return chunks
}

func splitSentences(text string) []string {
	marked := sentenceEnd.ReplaceAllString(text, "$1\n")
	parts := strings.Split(marked, "\n")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}
