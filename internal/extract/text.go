package extract

import (
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/robertluwang/DocChatbot/internal/domain"
)

// TextExtractor loads plain text files as a single document.
type TextExtractor struct{}

func (TextExtractor) Extract(path string) ([]domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	content := string(data)
	if len(content) == 0 {
		return nil, fmt.Errorf("file %s is empty", path)
	}
	return []domain.Document{{
		ID:       uuid.NewString(),
		Content:  content,
		Metadata: map[string]string{"source": path},
	}}, nil
}
