package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertluwang/DocChatbot/internal/domain"
)

func TestNewCharacterChunkerValidation(t *testing.T) {
	cases := []struct {
		name    string
		size    int
		overlap int
	}{
		{"zero size", 0, 0},
		{"negative size", -1, 0},
		{"negative overlap", 100, -1},
		{"overlap equals size", 100, 100},
		{"overlap exceeds size", 100, 150},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewCharacterChunker(tc.size, tc.overlap)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidConfig)
		})
	}
}

func TestSplitEmptyInput(t *testing.T) {
	c, err := NewCharacterChunker(100, 20)
	require.NoError(t, err)

	_, err = c.Split(nil)
	assert.ErrorIs(t, err, domain.ErrEmptyInput)
}

func TestSplitShortDocument(t *testing.T) {
	c, err := NewCharacterChunker(1000, 200)
	require.NoError(t, err)

	docs := []domain.Document{{ID: "d1", Content: "a short document", Metadata: map[string]string{"source": "a.txt"}}}
	chunks, err := c.Split(docs)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "a short document", chunks[0].Content)
	assert.Equal(t, "d1", chunks[0].DocumentID)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, "a.txt", chunks[0].Metadata["source"])
}

func TestSplitChunkSizeAndOverlap(t *testing.T) {
	c, err := NewCharacterChunker(100, 20)
	require.NoError(t, err)

	// One long word block with no natural breaks forces hard cuts at the
	// window boundary, making positions predictable.
	content := strings.Repeat("x", 500)
	chunks, err := c.Split([]domain.Document{{ID: "d1", Content: content}})
	require.NoError(t, err)

	for _, ch := range chunks {
		assert.LessOrEqual(t, len([]rune(ch.Content)), 100)
	}
	// step is size-overlap = 80: starts at 0, 80, 160, ... so ceil((500-100)/80)+1 = 6
	assert.Len(t, chunks, 6)

	// consecutive chunks share the overlap region
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1].Content)
		tail := string(prev[len(prev)-20:])
		assert.True(t, strings.HasPrefix(chunks[i].Content, tail))
	}
}

func TestSplitLargeOverlapAlwaysAdvances(t *testing.T) {
	// overlap > size/2 with a sentence break early in the window: stepping
	// back by the full overlap would land before the previous start and loop
	// on the same window forever.
	c, err := NewCharacterChunker(100, 90)
	require.NoError(t, err)

	content := strings.Repeat("a", 60) + "." + strings.Repeat("b", 439)
	chunks, err := c.Split([]domain.Document{{ID: "d1", Content: content}})
	require.NoError(t, err)

	require.NotEmpty(t, chunks)
	// every step moves the window forward, so the chunk count is bounded by
	// the content length
	assert.LessOrEqual(t, len(chunks), len([]rune(content)))
	for _, ch := range chunks {
		assert.LessOrEqual(t, len([]rune(ch.Content)), 100)
	}
}

func TestSplitPrefersParagraphBreak(t *testing.T) {
	c, err := NewCharacterChunker(100, 0)
	require.NoError(t, err)

	first := strings.Repeat("a", 70)
	second := strings.Repeat("b", 80)
	content := first + "\n\n" + second
	chunks, err := c.Split([]domain.Document{{ID: "d1", Content: content}})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, first, chunks[0].Content)
	assert.Equal(t, second, chunks[1].Content)
}

func TestSplitPrefersSentenceEnd(t *testing.T) {
	c, err := NewCharacterChunker(60, 0)
	require.NoError(t, err)

	content := "This sentence fills most of the first window nicely. The next one continues past the boundary here."
	chunks, err := c.Split([]domain.Document{{ID: "d1", Content: content}})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 2)
	assert.True(t, strings.HasSuffix(chunks[0].Content, "."))
}

func TestSplitSkipsWhitespaceOnlyChunks(t *testing.T) {
	c, err := NewCharacterChunker(10, 0)
	require.NoError(t, err)

	chunks, err := c.Split([]domain.Document{{ID: "d1", Content: "word      \n\n        "}})
	require.NoError(t, err)
	for _, ch := range chunks {
		assert.NotEmpty(t, strings.TrimSpace(ch.Content))
	}
}

func TestSplitMultipleDocumentsKeepsOrder(t *testing.T) {
	c, err := NewCharacterChunker(1000, 200)
	require.NoError(t, err)

	docs := []domain.Document{
		{ID: "d1", Content: "first"},
		{ID: "d2", Content: "second"},
	}
	chunks, err := c.Split(docs)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "d1", chunks[0].DocumentID)
	assert.Equal(t, "d2", chunks[1].DocumentID)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, 0, chunks[1].Index)
}
