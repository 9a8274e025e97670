package chunker

import (
	"fmt"
	"strings"

	"github.com/robertluwang/DocChatbot/internal/domain"
)

// CharacterChunker splits document content into windows of at most chunkSize
// runes, carrying chunkOverlap trailing runes into the next window. Windows
// prefer to end at a paragraph break, then a sentence end, then a space,
// before falling back to a hard cut.
type CharacterChunker struct {
	chunkSize    int
	chunkOverlap int
}

// A natural break is only used when it sits past 1/minBreakFraction of the
// window; earlier breaks would produce degenerate chunks.
const minBreakFraction = 2

func NewCharacterChunker(chunkSize, chunkOverlap int) (*CharacterChunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidConfig, chunkSize)
	}
	if chunkOverlap < 0 {
		return nil, fmt.Errorf("%w: chunk overlap must not be negative, got %d", domain.ErrInvalidConfig, chunkOverlap)
	}
	if chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d", domain.ErrInvalidConfig, chunkOverlap, chunkSize)
	}
	return &CharacterChunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// Split chunks every document in order. It never emits empty chunks and fails
// if given no documents at all.
func (c *CharacterChunker) Split(documents []domain.Document) ([]domain.Chunk, error) {
	if len(documents) == 0 {
		return nil, fmt.Errorf("%w: no documents to split", domain.ErrEmptyInput)
	}
	var chunks []domain.Chunk
	for _, doc := range documents {
		chunks = append(chunks, c.splitDocument(doc)...)
	}
	return chunks, nil
}

func (c *CharacterChunker) splitDocument(doc domain.Document) []domain.Chunk {
	runes := []rune(doc.Content)
	var chunks []domain.Chunk
	idx := 0
	start := 0
	for start < len(runes) {
		end := start + c.chunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = start + breakPoint(runes[start:end])
		}
		content := strings.TrimSpace(string(runes[start:end]))
		if content != "" {
			chunks = append(chunks, domain.Chunk{
				DocumentID: doc.ID,
				Index:      idx,
				Content:    content,
				Metadata:   cloneMetadata(doc.Metadata),
			})
			idx++
		}
		if end == len(runes) {
			break
		}
		// The overlap step must always move the window forward. A natural
		// break can land closer to start than the overlap distance, so
		// stepping back by the full overlap would revisit the same window.
		if next := end - c.chunkOverlap; next > start {
			start = next
		} else {
			start = end
		}
	}
	return chunks
}

// breakPoint returns the cut position for a full window, scanning backward for
// a paragraph break, then a sentence end, then a space. A break in the first
// half of the window is ignored.
func breakPoint(window []rune) int {
	min := len(window) / minBreakFraction
	text := string(window)
	if p := strings.LastIndex(text, "\n\n"); p >= 0 {
		if pos := len([]rune(text[:p])) + 2; pos > min {
			return pos
		}
	}
	for i := len(window) - 1; i > min; i-- {
		switch window[i] {
		case '.', '!', '?':
			return i + 1
		}
	}
	for i := len(window) - 1; i > min; i-- {
		if window[i] == ' ' || window[i] == '\n' {
			return i + 1
		}
	}
	return len(window)
}

func cloneMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
