package extract

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gtext "github.com/yuin/goldmark/text"

	"github.com/robertluwang/DocChatbot/internal/domain"
)

// MarkdownExtractor loads a markdown file as a single document, stripping the
// markup by walking the goldmark AST and keeping only text segments.
type MarkdownExtractor struct{}

func (MarkdownExtractor) Extract(path string) ([]domain.Document, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	md := goldmark.New()
	root := md.Parser().Parse(gtext.NewReader(source))

	var sb strings.Builder
	err = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				sb.Write(node.Segment.Value(source))
				if node.HardLineBreak() || node.SoftLineBreak() {
					sb.WriteByte('\n')
				}
			}
		case *ast.String:
			if entering {
				sb.Write(node.Value)
			}
		default:
			// Separate block-level nodes with a blank line so the chunker can
			// break at paragraph boundaries.
			if !entering && n.Type() == ast.TypeBlock {
				sb.WriteString("\n\n")
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(sb.String())
	if content == "" {
		return nil, fmt.Errorf("file %s has no text content", path)
	}
	return []domain.Document{{
		ID:       uuid.NewString(),
		Content:  content,
		Metadata: map[string]string{"source": path},
	}}, nil
}
