// Package engine orchestrates the two query paths: indexed retrieval and
// long-context prompting. One query is fully resolved (embed, retrieve,
// generate, log) before the next is accepted.
package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/phuslu/log"

	"github.com/robertluwang/DocChatbot/internal/chatlog"
	"github.com/robertluwang/DocChatbot/internal/chunker"
	"github.com/robertluwang/DocChatbot/internal/domain"
	"github.com/robertluwang/DocChatbot/internal/extract"
	"github.com/robertluwang/DocChatbot/internal/index"
)

// defaultSystemPrompt is used for chat-capable generators when the caller
// gives no system prompt.
const defaultSystemPrompt = "You are a helpful assistant."

// Config fixes the engine's behavior at construction time.
type Config struct {
	ChunkSize    int
	ChunkOverlap int
	IndexRoot    string
	ChatLogDir   string
	TopK         int
}

// Engine wires the extractor registry, chunker, providers, index store and
// session log together.
type Engine struct {
	cfg        Config
	chunker    *chunker.CharacterChunker
	embedder   domain.Embedder
	generator  domain.Generator
	store      *index.Store
	registry   *extract.Registry
	sessionLog *chatlog.SessionLog
	logger     log.Logger

	// indexing state for QueryDocuments dispatch
	indexingEnabled bool
	activeIndex     string
}

// New validates the configuration and assembles an engine. A chunk overlap
// that is not smaller than the chunk size fails with ErrInvalidConfig.
func New(cfg Config, embedder domain.Embedder, generator domain.Generator, logger log.Logger) (*Engine, error) {
	ch, err := chunker.NewCharacterChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	store, err := index.NewStore(cfg.IndexRoot, logger)
	if err != nil {
		return nil, err
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 4
	}
	return &Engine{
		cfg:        cfg,
		chunker:    ch,
		embedder:   embedder,
		generator:  generator,
		store:      store,
		registry:   extract.NewRegistry(),
		sessionLog: chatlog.New(cfg.ChatLogDir, logger),
		logger:     logger,
	}, nil
}

// LoadDocuments extracts all supported documents from a folder, returning
// per-file warnings for anything skipped.
func (e *Engine) LoadDocuments(folder string) ([]domain.Document, []string, error) {
	docs, warnings, err := e.registry.LoadFolder(folder)
	for _, w := range warnings {
		e.logger.Warn().Str("folder", folder).Msg(w)
	}
	if err != nil {
		return nil, warnings, err
	}
	e.logger.Info().Str("folder", folder).Int("documents", len(docs)).Msg("documents loaded")
	return docs, warnings, nil
}

// IndexDocuments runs the full ingestion pipeline: extract, chunk, embed and
// persist under the given index name. On success indexed mode is enabled for
// the session with that name active.
func (e *Engine) IndexDocuments(ctx context.Context, folder, name string) ([]string, error) {
	docs, warnings, err := e.LoadDocuments(folder)
	if err != nil {
		return warnings, err
	}
	chunks, err := e.chunker.Split(docs)
	if err != nil {
		return warnings, err
	}
	if _, err := e.store.Create(ctx, name, chunks, e.embedder); err != nil {
		return warnings, err
	}
	e.indexingEnabled = true
	e.activeIndex = name
	e.logger.Info().Str("index", name).Int("chunks", len(chunks)).Msg("indexing complete")
	return warnings, nil
}

// EnableIndexing switches the session to indexed mode against an existing
// index without re-ingesting.
func (e *Engine) EnableIndexing(name string) error {
	if _, err := e.store.Load(name, e.embedder); err != nil {
		return err
	}
	e.indexingEnabled = true
	e.activeIndex = name
	return nil
}

// IndexingEnabled reports whether the session is in indexed mode.
func (e *Engine) IndexingEnabled() bool { return e.indexingEnabled }

// QueryDocuments dispatches between the two query modes: indexed mode when
// indexing is enabled for the session, long-context mode when documents are
// supplied, and ErrNoDocumentsLoaded otherwise.
func (e *Engine) QueryDocuments(ctx context.Context, query string, documents []domain.Document, systemPrompt, userPrompt string) (string, error) {
	if e.indexingEnabled {
		return e.QueryIndexed(ctx, query, e.activeIndex, systemPrompt, userPrompt)
	}
	if len(documents) > 0 {
		return e.QueryLongContent(ctx, documents, query, systemPrompt, userPrompt)
	}
	return "", fmt.Errorf("%w: upload documents or build an index first", domain.ErrNoDocumentsLoaded)
}

// QueryIndexed loads the named index, retrieves the top-k chunks for the
// query and asks the generator with them as context. The session log gains
// exactly one entry on success and none on failure.
func (e *Engine) QueryIndexed(ctx context.Context, query, indexName, systemPrompt, userPrompt string) (string, error) {
	if indexName == "" {
		return "", domain.ErrIndexRequired
	}
	idx, err := e.store.Load(indexName, e.embedder)
	if err != nil {
		return "", err
	}
	results, err := idx.Search(ctx, query, e.cfg.TopK)
	if err != nil {
		return "", err
	}
	e.logger.Debug().Str("index", indexName).Int("retrieved", len(results)).Msg("similarity search done")

	finalQuery := assemblePrompt(systemPrompt, query, userPrompt)

	var response string
	if e.generator.SupportsChat() {
		system := systemPrompt
		if system == "" {
			system = defaultSystemPrompt
		}
		messages := make([]domain.Message, 0, len(results)+2)
		messages = append(messages, domain.Message{Role: "system", Content: system})
		for _, r := range results {
			messages = append(messages, domain.Message{Role: "user", Content: r.Chunk.Content})
		}
		messages = append(messages, domain.Message{Role: "user", Content: finalQuery})
		response, err = e.generator.Chat(ctx, messages)
	} else {
		parts := make([]string, 0, len(results)+2)
		if systemPrompt != "" {
			parts = append(parts, systemPrompt)
		}
		for _, r := range results {
			parts = append(parts, r.Chunk.Content)
		}
		parts = append(parts, finalQuery)
		response, err = e.generator.Generate(ctx, strings.Join(parts, "\n\n"))
	}
	if err != nil {
		return "", &domain.ProviderError{Provider: e.generator.Name(), Err: err}
	}

	e.sessionLog.Append(query, response)
	return response, nil
}

// QueryLongContent sends every document's content, newline-joined in input
// order, as the trailing segment of one composite prompt. No retrieval is
// involved.
func (e *Engine) QueryLongContent(ctx context.Context, documents []domain.Document, query, systemPrompt, userPrompt string) (string, error) {
	finalQuery := assemblePrompt(systemPrompt, query, userPrompt)

	contents := make([]string, 0, len(documents))
	for _, doc := range documents {
		contents = append(contents, doc.Content)
	}
	if combined := strings.Join(contents, "\n"); combined != "" {
		finalQuery = finalQuery + "\n\n" + combined
	}

	response, err := e.generator.Generate(ctx, finalQuery)
	if err != nil {
		return "", &domain.ProviderError{Provider: e.generator.Name(), Err: err}
	}

	e.sessionLog.Append(query, response)
	return response, nil
}

// ListIndexes returns the names of all valid indexes.
func (e *Engine) ListIndexes() ([]string, error) { return e.store.List() }

// DeleteIndex removes one index, reporting whether it existed. Deleting the
// session's active index drops the session back to long-context mode.
func (e *Engine) DeleteIndex(name string) (bool, error) {
	deleted, err := e.store.Delete(name)
	if err == nil && deleted && name == e.activeIndex {
		e.indexingEnabled = false
		e.activeIndex = ""
	}
	return deleted, err
}

// DeleteAllIndexes removes every index and returns the count removed.
func (e *Engine) DeleteAllIndexes() (int, error) {
	count, err := e.store.DeleteAll()
	if err == nil {
		e.indexingEnabled = false
		e.activeIndex = ""
	}
	return count, err
}

// SessionLog exposes the engine's owned session log.
func (e *Engine) SessionLog() *chatlog.SessionLog { return e.sessionLog }

// assemblePrompt joins system prompt, query and user prompt with blank lines,
// skipping empty segments.
func assemblePrompt(systemPrompt, query, userPrompt string) string {
	parts := make([]string, 0, 3)
	if systemPrompt != "" {
		parts = append(parts, systemPrompt)
	}
	parts = append(parts, query)
	if userPrompt != "" {
		parts = append(parts, userPrompt)
	}
	return strings.Join(parts, "\n\n")
}
