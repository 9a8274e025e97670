package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/robertluwang/DocChatbot/internal/domain"
)

// PDFExtractor loads a PDF using pdfcpu, producing one document per page with
// the page number in the metadata.
type PDFExtractor struct{}

func (PDFExtractor) Extract(path string) ([]domain.Document, error) {
	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	pageCount := pdfCtx.PageCount
	if pageCount == 0 {
		return nil, fmt.Errorf("pdf %s has no pages", path)
	}

	outDir, err := os.MkdirTemp("", "docchatbot-pdf-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(outDir)

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(path, outDir, nil, conf); err != nil {
		return nil, fmt.Errorf("extract pdf content: %w", err)
	}

	pageTexts := make(map[int]string)
	files, err := os.ReadDir(outDir)
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		// extracted content files are named <base>_Content_page_<n>.txt
		pageNum, ok := pageNumber(file.Name())
		if !ok {
			continue
		}
		content, err := os.ReadFile(filepath.Join(outDir, file.Name()))
		if err != nil {
			continue
		}
		pageTexts[pageNum] = string(content)
	}

	var docs []domain.Document
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		text, ok := pageTexts[pageNum]
		if !ok || text == "" {
			continue
		}
		docs = append(docs, domain.Document{
			ID:      uuid.NewString(),
			Content: text,
			Metadata: map[string]string{
				"source": path,
				"page":   strconv.Itoa(pageNum),
			},
		})
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("pdf %s yielded no text", path)
	}
	return docs, nil
}

func pageNumber(name string) (int, bool) {
	i := strings.LastIndex(name, "page_")
	if i < 0 {
		return 0, false
	}
	numStr := strings.TrimSuffix(name[i+len("page_"):], filepath.Ext(name))
	n, err := strconv.Atoi(numStr)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
