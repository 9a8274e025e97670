// Package extract loads documents from disk, dispatching on file extension.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/robertluwang/DocChatbot/internal/domain"
)

// Extractor turns one file into a sequence of documents with source metadata.
type Extractor interface {
	Extract(path string) ([]domain.Document, error)
}

// Registry maps lower-case file extensions (with dot) to extractors.
type Registry struct {
	extractors map[string]Extractor
}

// NewRegistry returns a registry with the built-in extractors registered:
// .txt, .md and .pdf.
func NewRegistry() *Registry {
	r := &Registry{extractors: make(map[string]Extractor)}
	r.Register(".txt", TextExtractor{})
	r.Register(".md", MarkdownExtractor{})
	r.Register(".pdf", PDFExtractor{})
	return r
}

// Register adds or replaces the extractor for an extension.
func (r *Registry) Register(ext string, e Extractor) {
	r.extractors[strings.ToLower(ext)] = e
}

// Extensions returns the registered extensions, sorted.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.extractors))
	for ext := range r.extractors {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// LoadFolder extracts documents from every supported file directly under dir.
// Files with unregistered extensions, and files that fail to extract, are
// skipped; one warning per skipped file is returned so callers can surface or
// assert on them. Loading zero documents overall is a hard failure.
func (r *Registry) LoadFolder(dir string) ([]domain.Document, []string, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, nil, fmt.Errorf("folder %s does not exist or is not a directory", dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}

	var docs []domain.Document
	var warnings []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		extractor, ok := r.extractors[ext]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("unsupported file format %q: %s", ext, path))
			continue
		}
		loaded, err := extractor.Extract(path)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to load %s: %v", path, err))
			continue
		}
		docs = append(docs, loaded...)
	}

	if len(docs) == 0 {
		return nil, warnings, fmt.Errorf("%w: no documents loaded from %s", domain.ErrNoDocumentsLoaded, dir)
	}
	return docs, warnings, nil
}
