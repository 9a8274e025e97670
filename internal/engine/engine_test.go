package engine

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/phuslu/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertluwang/DocChatbot/internal/domain"
)

type stubEmbedder struct {
	name string
	dim  int
}

func (e *stubEmbedder) Name() string   { return e.name }
func (e *stubEmbedder) Dimension() int { return e.dim }

func (e *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dim)
	for i := 0; i < len(text); i++ {
		vec[int(text[i])%e.dim]++
	}
	vec[0]++
	return vec, nil
}

// stubGenerator records every prompt and message batch it receives.
type stubGenerator struct {
	chat     bool
	fail     bool
	prompts  []string
	messages [][]domain.Message
}

func (g *stubGenerator) Name() string       { return "stub-llm" }
func (g *stubGenerator) SupportsChat() bool { return g.chat }

func (g *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	if g.fail {
		return "", errors.New("generation backend down")
	}
	g.prompts = append(g.prompts, prompt)
	return "stub answer", nil
}

func (g *stubGenerator) Chat(_ context.Context, messages []domain.Message) (string, error) {
	if g.fail {
		return "", errors.New("generation backend down")
	}
	g.messages = append(g.messages, messages)
	return "stub chat answer", nil
}

func newTestEngine(t *testing.T, gen *stubGenerator) *Engine {
	t.Helper()
	eng, err := New(Config{
		ChunkSize:    1000,
		ChunkOverlap: 200,
		IndexRoot:    filepath.Join(t.TempDir(), "indexes"),
		ChatLogDir:   filepath.Join(t.TempDir(), "chat_logs"),
		TopK:         4,
	}, &stubEmbedder{name: "stub/test-model/8", dim: 8}, gen, log.Logger{Writer: &log.IOWriter{Writer: io.Discard}})
	require.NoError(t, err)
	return eng
}

func writeDocFolder(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "one.txt"), []byte("alpha document about foxes"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "two.txt"), []byte("beta document about boxes"), 0o644))
	return dir
}

func TestNewRejectsInvalidChunking(t *testing.T) {
	_, err := New(Config{ChunkSize: 100, ChunkOverlap: 100, IndexRoot: t.TempDir(), ChatLogDir: t.TempDir()},
		&stubEmbedder{name: "s", dim: 8}, &stubGenerator{}, log.Logger{Writer: &log.IOWriter{Writer: io.Discard}})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestQueryDocumentsNoSources(t *testing.T) {
	eng := newTestEngine(t, &stubGenerator{})

	_, err := eng.QueryDocuments(context.Background(), "anything", nil, "", "")
	assert.ErrorIs(t, err, domain.ErrNoDocumentsLoaded)
}

func TestQueryIndexedRequiresName(t *testing.T) {
	eng := newTestEngine(t, &stubGenerator{})

	_, err := eng.QueryIndexed(context.Background(), "anything", "", "", "")
	assert.ErrorIs(t, err, domain.ErrIndexRequired)
}

func TestQueryIndexedMissingIndex(t *testing.T) {
	eng := newTestEngine(t, &stubGenerator{})

	_, err := eng.QueryIndexed(context.Background(), "anything", "ghost", "", "")
	assert.ErrorIs(t, err, domain.ErrIndexNotFound)
}

func TestLongContextPromptShape(t *testing.T) {
	gen := &stubGenerator{}
	eng := newTestEngine(t, gen)

	docs := []domain.Document{
		{ID: "d1", Content: "A"},
		{ID: "d2", Content: "B"},
	}
	resp, err := eng.QueryLongContent(context.Background(), docs, "what is this?", "be brief", "answer in one word")
	require.NoError(t, err)
	assert.Equal(t, "stub answer", resp)

	require.Len(t, gen.prompts, 1)
	prompt := gen.prompts[0]
	// prompts come first, document contents trail in input order
	assert.True(t, strings.HasPrefix(prompt, "be brief\n\nwhat is this?\n\nanswer in one word"))
	assert.True(t, strings.HasSuffix(prompt, "A\nB"))
}

func TestLongContextAppendsSessionLog(t *testing.T) {
	gen := &stubGenerator{}
	eng := newTestEngine(t, gen)

	docs := []domain.Document{{ID: "d1", Content: "A"}}
	_, err := eng.QueryLongContent(context.Background(), docs, "q1", "", "")
	require.NoError(t, err)

	require.Equal(t, 1, eng.SessionLog().Len())
	entry := eng.SessionLog().Entries()[0]
	assert.Equal(t, "q1", entry.User)
	assert.Equal(t, "stub answer", entry.Bot)
}

func TestIndexThenQueryDispatch(t *testing.T) {
	gen := &stubGenerator{}
	eng := newTestEngine(t, gen)
	folder := writeDocFolder(t)

	warnings, err := eng.IndexDocuments(context.Background(), folder, "docs")
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.True(t, eng.IndexingEnabled())

	// indexed mode wins even when documents are passed in
	resp, err := eng.QueryDocuments(context.Background(), "foxes", []domain.Document{{ID: "x", Content: "ignored"}}, "", "")
	require.NoError(t, err)
	assert.Equal(t, "stub answer", resp)

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "alpha document about foxes")
	assert.Equal(t, 1, eng.SessionLog().Len())
}

func TestQueryIndexedChatMessages(t *testing.T) {
	gen := &stubGenerator{chat: true}
	eng := newTestEngine(t, gen)
	folder := writeDocFolder(t)

	_, err := eng.IndexDocuments(context.Background(), folder, "docs")
	require.NoError(t, err)

	resp, err := eng.QueryIndexed(context.Background(), "tell me about foxes", "docs", "", "")
	require.NoError(t, err)
	assert.Equal(t, "stub chat answer", resp)

	require.Len(t, gen.messages, 1)
	msgs := gen.messages[0]
	require.GreaterOrEqual(t, len(msgs), 3)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "You are a helpful assistant.", msgs[0].Content)
	last := msgs[len(msgs)-1]
	assert.Equal(t, "user", last.Role)
	assert.Equal(t, "tell me about foxes", last.Content)
}

func TestQueryIndexedCustomSystemPrompt(t *testing.T) {
	gen := &stubGenerator{chat: true}
	eng := newTestEngine(t, gen)
	folder := writeDocFolder(t)

	_, err := eng.IndexDocuments(context.Background(), folder, "docs")
	require.NoError(t, err)

	_, err = eng.QueryIndexed(context.Background(), "q", "docs", "speak like a pirate", "")
	require.NoError(t, err)

	msgs := gen.messages[0]
	assert.Equal(t, "speak like a pirate", msgs[0].Content)
}

func TestGenerationFailureLeavesLogUntouched(t *testing.T) {
	gen := &stubGenerator{fail: true}
	eng := newTestEngine(t, gen)
	folder := writeDocFolder(t)

	_, err := eng.IndexDocuments(context.Background(), folder, "docs")
	require.NoError(t, err)

	_, err = eng.QueryIndexed(context.Background(), "q", "docs", "", "")
	require.Error(t, err)
	var perr *domain.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "stub-llm", perr.Provider)
	assert.Equal(t, 0, eng.SessionLog().Len())
}

func TestDeleteActiveIndexDisablesIndexing(t *testing.T) {
	eng := newTestEngine(t, &stubGenerator{})
	folder := writeDocFolder(t)

	_, err := eng.IndexDocuments(context.Background(), folder, "docs")
	require.NoError(t, err)
	require.True(t, eng.IndexingEnabled())

	deleted, err := eng.DeleteIndex("docs")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.False(t, eng.IndexingEnabled())
}

func TestEnableIndexingExisting(t *testing.T) {
	eng := newTestEngine(t, &stubGenerator{})
	folder := writeDocFolder(t)

	_, err := eng.IndexDocuments(context.Background(), folder, "docs")
	require.NoError(t, err)

	other := newTestEngine(t, &stubGenerator{})
	assert.Error(t, other.EnableIndexing("docs"))

	require.NoError(t, eng.EnableIndexing("docs"))
	assert.True(t, eng.IndexingEnabled())
}
