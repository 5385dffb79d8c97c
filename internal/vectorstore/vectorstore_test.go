package vectorstore

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/apperr"
	"ragchat/internal/models"
)

// stubEmbedder maps keywords to fixed axes so similarity outcomes are
// predictable without a running model.
type stubEmbedder struct{}

func (stubEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, 3)
	if strings.Contains(text, "sky") {
		v[0] = 1
	}
	if strings.Contains(text, "grass") {
		v[1] = 1
	}
	if strings.Contains(text, "cheese") {
		v[2] = 1
	}
	if v[0]+v[1]+v[2] == 0 {
		v = []float32{0.577, 0.577, 0.577}
	}
	return v, nil
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New("", "test", true, stubEmbedder{}, "stub/test")
	require.NoError(t, err)
	return store
}

func chunk(source string, index int, text string) models.Chunk {
	return models.Chunk{
		ID:     source + "#" + string(rune('0'+index)),
		Source: source,
		Index:  index,
		Text:   text,
		Start:  0,
		End:    len(text),
	}
}

func TestQueryEmptyStore(t *testing.T) {
	store := newTestStore(t)

	results, err := store.Query(context.Background(), "anything", 4)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIngestAndQuery(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	count, err := store.Ingest(ctx, []models.Chunk{
		chunk("colors.txt", 0, "The sky is blue."),
		chunk("colors.txt", 1, "The grass is green."),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 2, store.Count())

	results, err := store.Query(ctx, "what color is the sky", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "The sky is blue.", results[0].Chunk.Text)
	assert.Equal(t, "colors.txt", results[0].Chunk.Source)
	assert.Equal(t, 0, results[0].Chunk.Index)
}

func TestQueryClampsK(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Ingest(ctx, []models.Chunk{chunk("one.txt", 0, "sky")})
	require.NoError(t, err)

	results, err := store.Query(ctx, "sky", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestQueryDeterministicOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// identical texts embed identically, forcing a score tie
	_, err := store.Ingest(ctx, []models.Chunk{
		chunk("a.txt", 0, "the sky today"),
		chunk("b.txt", 0, "the sky today"),
		chunk("c.txt", 0, "grass everywhere"),
	})
	require.NoError(t, err)

	first, err := store.Query(ctx, "sky", 3)
	require.NoError(t, err)
	second, err := store.Query(ctx, "sky", 3)
	require.NoError(t, err)

	require.Len(t, first, 3)
	assert.Equal(t, first, second)
	// tie between a.txt and b.txt breaks by id
	assert.Equal(t, "a.txt#0", first[0].Chunk.ID)
	assert.Equal(t, "b.txt#0", first[1].Chunk.ID)
}

func TestQueryTieStraddlingCutoff(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// many identical texts embed identically, so every candidate ties on
	// score and k cuts through the middle of the tie group
	var chunks []models.Chunk
	for _, source := range []string{"h.txt", "g.txt", "f.txt", "e.txt", "d.txt", "c.txt", "b.txt", "a.txt"} {
		chunks = append(chunks, chunk(source, 0, "the sky today"))
	}
	_, err := store.Ingest(ctx, chunks)
	require.NoError(t, err)

	first, err := store.Query(ctx, "sky", 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "a.txt#0", first[0].Chunk.ID)
	assert.Equal(t, "b.txt#0", first[1].Chunk.ID)

	// membership and order stay fixed across repeated identical queries
	for i := 0; i < 10; i++ {
		again, err := store.Query(ctx, "sky", 2)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

type failingEmbedder struct{}

func (failingEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, errors.New("dial tcp 127.0.0.1:11434: connect: connection refused")
}

func TestEmbedderFailureTranslated(t *testing.T) {
	store, err := New("", "test", true, failingEmbedder{}, "stub/test")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Ingest(ctx, []models.Chunk{chunk("doc.txt", 0, "sky")})
	assert.ErrorIs(t, err, apperr.ErrProviderUnreachable)

	// Query embeds too, but only once the collection holds records
	okStore := newTestStore(t)
	_, err = okStore.Ingest(ctx, []models.Chunk{chunk("doc.txt", 0, "sky")})
	require.NoError(t, err)
	okStore.embedder = failingEmbedder{}

	_, err = okStore.Query(ctx, "sky", 1)
	assert.ErrorIs(t, err, apperr.ErrProviderUnreachable)
}

func TestDeleteSource(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Ingest(ctx, []models.Chunk{
		chunk("keep.txt", 0, "sky"),
		chunk("drop.txt", 0, "grass"),
		chunk("drop.txt", 1, "cheese"),
	})
	require.NoError(t, err)

	require.NoError(t, store.DeleteSource(ctx, "drop.txt"))
	assert.Equal(t, 1, store.Count())

	results, err := store.Query(ctx, "grass", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "keep.txt", results[0].Chunk.Source)
}

func TestReset(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Ingest(ctx, []models.Chunk{chunk("doc.txt", 0, "sky")})
	require.NoError(t, err)
	require.Equal(t, 1, store.Count())

	require.NoError(t, store.Reset(ctx))
	assert.Equal(t, 0, store.Count())

	results, err := store.Query(ctx, "sky", 1)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFingerprintMismatch(t *testing.T) {
	dir := t.TempDir()

	_, err := New(dir, "test", false, stubEmbedder{}, "ollama/nomic-embed-text")
	require.NoError(t, err)

	_, err = New(dir, "test", false, stubEmbedder{}, "ollama/other-model")
	assert.ErrorIs(t, err, apperr.ErrEmbedderMismatch)

	// same fingerprint reopens fine
	_, err = New(dir, "test", false, stubEmbedder{}, "ollama/nomic-embed-text")
	assert.NoError(t, err)
}
