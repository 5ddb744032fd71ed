package corpus

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gtext "github.com/yuin/goldmark/text"

	"github.com/careline/medrag/internal/model"
)

const frontMatterDelimiter = "---"

// ParseDocument turns one corpus markdown file into a document. Files
// carry their metadata in a front matter block, the body is markdown
// that gets flattened to plain text before embedding.
func ParseDocument(key string, data []byte) (*model.Document, error) {
	meta, body := splitFrontMatter(data)
	doc := &model.Document{
		ID:       defaultID(key),
		Category: model.CategoryGeneral,
		Priority: 0.5,
	}
	for field, value := range meta {
		switch field {
		case "id":
			doc.ID = value
		case "title":
			doc.Title = value
		case "category":
			doc.Category = model.Category(strings.ToLower(value))
		case "priority":
			priority, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return nil, fmt.Errorf("document %s: bad priority %q", key, value)
			}
			doc.Priority = priority
		case "source":
			doc.Source = value
		case "updated":
			updated, err := time.Parse("2006-01-02", value)
			if err != nil {
				return nil, fmt.Errorf("document %s: bad updated date %q", key, value)
			}
			doc.LastUpdated = updated
		case "tags":
			for _, tag := range strings.Split(value, ",") {
				if tag = strings.TrimSpace(tag); tag != "" {
					doc.Tags = append(doc.Tags, tag)
				}
			}
		}
	}
	if !doc.Category.Valid() {
		return nil, fmt.Errorf("document %s: unknown category %q", key, doc.Category)
	}
	doc.Content = ExtractText(body)
	if doc.Title == "" {
		doc.Title = firstLine(doc.Content)
	}
	if strings.TrimSpace(doc.Content) == "" {
		return nil, fmt.Errorf("document %s: empty body", key)
	}
	return doc, nil
}

// ExtractText flattens markdown to the plain text the embedding layer
// expects. Formatting is noise for retrieval, only the words matter.
func ExtractText(data []byte) string {
	root := goldmark.New().Parser().Parse(gtext.NewReader(data))
	var b bytes.Buffer
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock && b.Len() > 0 {
				b.WriteByte('\n')
			}
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			b.Write(node.Segment.Value(data))
			if node.SoftLineBreak() || node.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				segment := lines.At(i)
				b.Write(segment.Value(data))
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(collapseBlankLines(b.String()))
}

func splitFrontMatter(data []byte) (map[string]string, []byte) {
	content := string(data)
	if !strings.HasPrefix(strings.TrimLeft(content, "\uFEFF"), frontMatterDelimiter) {
		return nil, data
	}
	trimmed := strings.TrimLeft(content, "\uFEFF")
	rest := trimmed[len(frontMatterDelimiter):]
	end := strings.Index(rest, "\n"+frontMatterDelimiter)
	if end < 0 {
		return nil, data
	}
	meta := make(map[string]string)
	for _, line := range strings.Split(rest[:end], "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		field, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		meta[strings.ToLower(strings.TrimSpace(field))] = strings.TrimSpace(value)
	}
	body := rest[end+len(frontMatterDelimiter)+1:]
	body = strings.TrimPrefix(body, "\n")
	return meta, []byte(body)
}

func defaultID(key string) string {
	id := strings.TrimSuffix(key, ".md")
	id = strings.ReplaceAll(id, "/", "-")
	return strings.ToLower(id)
}

func firstLine(text string) string {
	line, _, _ := strings.Cut(text, "\n")
	return strings.TrimSpace(line)
}

func collapseBlankLines(text string) string {
	lines := strings.Split(text, "\n")
	out := lines[:0]
	blank := false
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			blank = true
			continue
		}
		if blank && len(out) > 0 {
			out = append(out, "")
		}
		blank = false
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
