// Package index implements durable, named vector indexes stored as one
// directory per index under a configured root. An index directory holds
// exactly two files: the vector block (index.vec) and the manifest
// (index.json). Both must be present for a load to succeed; partial
// directories are treated as absent.
package index

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/phuslu/log"

	"github.com/robertluwang/DocChatbot/internal/domain"
)

const (
	vectorFile   = "index.vec"
	manifestFile = "index.json"
)

// Store owns the index root directory. Every operation re-derives state from
// the filesystem; nothing is cached, so external mutation is picked up.
type Store struct {
	root   string
	logger log.Logger
}

// NewStore creates the root directory if needed.
func NewStore(root string, logger log.Logger) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create index root: %w", err)
	}
	return &Store{root: root, logger: logger}, nil
}

// Index is a loaded, searchable vector collection. Vectors are L2-normalized
// at build time so dot product equals cosine similarity.
type Index struct {
	name     string
	embedder domain.Embedder
	chunks   []domain.Chunk
	vectors  [][]float32
}

// Name returns the index name.
func (idx *Index) Name() string { return idx.name }

// Len returns the number of chunks in the index.
func (idx *Index) Len() int { return len(idx.chunks) }

// Create embeds every chunk and atomically persists the index under
// root/name, overwriting any existing index of that name (last write wins).
// A failure before the final rename leaves no index directory behind.
func (s *Store) Create(ctx context.Context, name string, chunks []domain.Chunk, embedder domain.Embedder) (*Index, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: index %q", domain.ErrEmptyContent, name)
	}

	vectors := make([][]float32, len(chunks))
	for i, chunk := range chunks {
		vec, err := embedder.Embed(ctx, chunk.Content)
		if err != nil {
			return nil, &domain.ProviderError{Provider: embedder.Name(), Err: err}
		}
		vectors[i] = normalize(vec)
	}

	tmp, err := os.MkdirTemp(s.root, ".tmp-"+name+"-")
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	man := manifest{
		Embedder:  embedder.Name(),
		Dimension: embedder.Dimension(),
		Count:     len(chunks),
		CreatedAt: time.Now().UTC(),
	}
	for _, chunk := range chunks {
		man.Chunks = append(man.Chunks, chunkRecord{
			DocumentID: chunk.DocumentID,
			Index:      chunk.Index,
			Content:    chunk.Content,
			Metadata:   chunk.Metadata,
		})
	}
	if err := writeManifest(filepath.Join(tmp, manifestFile), &man); err != nil {
		return nil, err
	}
	if err := writeVectors(filepath.Join(tmp, vectorFile), vectors); err != nil {
		return nil, err
	}

	dir := filepath.Join(s.root, name)
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("replace index %q: %w", name, err)
	}
	if err := os.Rename(tmp, dir); err != nil {
		return nil, fmt.Errorf("persist index %q: %w", name, err)
	}

	s.logger.Info().Str("index", name).Int("chunks", len(chunks)).Str("embedder", embedder.Name()).Msg("index created")
	return &Index{name: name, embedder: embedder, chunks: chunks, vectors: vectors}, nil
}

// Load reads a persisted index. Missing backing files yield ErrIndexNotFound,
// unparsable files ErrIndexCorrupt, and an embedder identity different from
// the one recorded at creation ErrEmbedderMismatch.
func (s *Store) Load(name string, embedder domain.Embedder) (*Index, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	dir := filepath.Join(s.root, name)
	if !indexFilesPresent(dir) {
		return nil, fmt.Errorf("%w: %q", domain.ErrIndexNotFound, name)
	}

	man, err := readManifest(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", domain.ErrIndexCorrupt, name, err)
	}
	vectors, err := readVectors(filepath.Join(dir, vectorFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", domain.ErrIndexCorrupt, name, err)
	}
	if len(vectors) != man.Count || len(man.Chunks) != man.Count {
		return nil, fmt.Errorf("%w: %q: vector count %d does not match manifest count %d",
			domain.ErrIndexCorrupt, name, len(vectors), man.Count)
	}
	if man.Embedder != embedder.Name() {
		return nil, fmt.Errorf("%w: index %q was built with %q, loaded with %q",
			domain.ErrEmbedderMismatch, name, man.Embedder, embedder.Name())
	}

	chunks := make([]domain.Chunk, len(man.Chunks))
	for i, rec := range man.Chunks {
		chunks[i] = domain.Chunk{
			DocumentID: rec.DocumentID,
			Index:      rec.Index,
			Content:    rec.Content,
			Metadata:   rec.Metadata,
		}
	}
	return &Index{name: name, embedder: embedder, chunks: chunks, vectors: vectors}, nil
}

// Search embeds the query with the index's embedder and returns the k nearest
// chunks by cosine similarity. Ties keep insertion order.
func (idx *Index) Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		k = 4
	}
	vec, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		return nil, &domain.ProviderError{Provider: idx.embedder.Name(), Err: err}
	}
	vec = normalize(vec)

	results := make([]domain.SearchResult, len(idx.chunks))
	for i := range idx.chunks {
		results[i] = domain.SearchResult{Chunk: idx.chunks[i], Score: dot(idx.vectors[i], vec)}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// List returns the names of all valid index directories under the root, in
// sorted order. Directories missing either backing file are ignored.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if indexFilesPresent(filepath.Join(s.root, entry.Name())) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes the named index recursively, reporting whether it existed.
func (s *Store) Delete(name string) (bool, error) {
	if err := validateName(name); err != nil {
		return false, err
	}
	dir := filepath.Join(s.root, name)
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if err := os.RemoveAll(dir); err != nil {
		return false, err
	}
	s.logger.Info().Str("index", name).Msg("index deleted")
	return true, nil
}

// DeleteAll removes every valid index under the root and returns the count.
func (s *Store) DeleteAll() (int, error) {
	names, err := s.List()
	if err != nil {
		return 0, err
	}
	count := 0
	for _, name := range names {
		deleted, err := s.Delete(name)
		if err != nil {
			return count, err
		}
		if deleted {
			count++
		}
	}
	return count, nil
}

// validateName rejects names that would escape the index root.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: index name must not be empty", domain.ErrInvalidConfig)
	}
	if strings.ContainsAny(name, "/\\") || name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: invalid index name %q", domain.ErrInvalidConfig, name)
	}
	return nil
}

func indexFilesPresent(dir string) bool {
	for _, file := range []string{vectorFile, manifestFile} {
		if info, err := os.Stat(filepath.Join(dir, file)); err != nil || info.IsDir() {
			return false
		}
	}
	return true
}

func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	inv := 1.0 / math.Sqrt(sum)
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) * inv)
	}
	return out
}

func dot(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
