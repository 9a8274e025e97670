package domain

import "context"

// Document represents a single extracted unit of text with source metadata
// (file path, page number, and similar). Documents are immutable once produced.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// Chunk is a bounded-size slice of a document's content, the unit that gets
// embedded and retrieved. Chunks inherit the parent document's metadata.
type Chunk struct {
	DocumentID string
	Index      int
	Content    string
	Metadata   map[string]string
}

// SearchResult is a matching chunk with a cosine similarity score.
type SearchResult struct {
	Chunk Chunk
	Score float32
}

// Message is a single role-tagged message for chat-capable generators.
type Message struct {
	// Role is "system", "user" or "assistant".
	Role    string
	Content string
}

// Embedder converts free text into a fixed-dimension vector representation.
type Embedder interface {
	// Name identifies the embedder (provider plus model); it is recorded in
	// every index built with it and checked again at load time.
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator produces a text completion from a prompt. Implementations declare
// whether they accept role-tagged multi-message input; callers branch on that
// capability rather than on the concrete type.
type Generator interface {
	Name() string
	SupportsChat() bool
	Generate(ctx context.Context, prompt string) (string, error)
	Chat(ctx context.Context, messages []Message) (string, error)
}

// Chunker splits documents into overlapping chunks suitable for embedding.
type Chunker interface {
	Split(documents []Document) ([]Chunk, error)
}
