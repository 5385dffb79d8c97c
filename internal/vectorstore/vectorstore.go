// Package vectorstore wraps the persistent chromem-go embedding index
// behind the ingest/query operations the chatbot needs. Nearest-neighbor
// search itself is delegated entirely to chromem-go.
package vectorstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"ragchat/internal/apperr"
	"ragchat/internal/embedding"
	"ragchat/internal/models"
)

const (
	compress        = false
	fingerprintFile = "embedder.fingerprint"
)

// Store encapsulates the chromem-go database operations.
type Store struct {
	db          *chromem.DB
	collection  *chromem.Collection
	embedder    embedding.Embedder
	dir         string
	name        string
	fingerprint string
}

// New opens (or creates) the vector index. The fingerprint names the
// embedding space the index was built with; opening an existing index
// with a different fingerprint fails rather than silently querying
// across mismatched embedding spaces.
func New(dir, collectionName string, inMemory bool, embedder embedding.Embedder, fingerprint string) (*Store, error) {
	var db *chromem.DB
	var err error
	if inMemory {
		db = chromem.NewDB()
	} else {
		if err := checkFingerprint(dir, fingerprint); err != nil {
			return nil, err
		}
		db, err = chromem.NewPersistentDB(dir, compress)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperr.ErrCorruptIndex, err)
		}
	}

	s := &Store{
		db:          db,
		embedder:    embedder,
		dir:         dir,
		name:        collectionName,
		fingerprint: fingerprint,
	}
	if err := s.openCollection(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) openCollection() error {
	c, err := s.db.GetOrCreateCollection(s.name, map[string]string{"embedder": s.fingerprint}, embedding.ChromemFunc(s.embedder))
	if err != nil {
		return fmt.Errorf("%w: failed to open collection %s: %v", apperr.ErrCorruptIndex, s.name, err)
	}
	s.collection = c
	return nil
}

// checkFingerprint pins the embedding space of a persistent index. The
// fingerprint is written next to the index on first creation and
// compared on every reopen.
func checkFingerprint(dir, fingerprint string) error {
	path := filepath.Join(dir, fingerprintFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("%w: reading %s: %v", apperr.ErrCorruptIndex, path, err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create index folder: %w", err)
		}
		if err := os.WriteFile(path, []byte(fingerprint), 0o644); err != nil {
			return fmt.Errorf("failed to write embedder fingerprint: %w", err)
		}
		return nil
	}
	if string(data) != fingerprint {
		return fmt.Errorf("%w: index built with %q, configured embedder is %q", apperr.ErrEmbedderMismatch, string(data), fingerprint)
	}
	return nil
}

// Ingest embeds the chunks and stores them in the index. Returns the
// number of records added. Dedup of re-ingested documents is the
// caller's concern (DeleteSource before Ingest).
func (s *Store) Ingest(ctx context.Context, chunks []models.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	docs := make([]chromem.Document, 0, len(chunks))
	for _, chunk := range chunks {
		vector, err := s.embedder.EmbedQuery(ctx, chunk.Text)
		if err != nil {
			return 0, fmt.Errorf("%w: embedding chunk %s: %v", apperr.ErrProviderUnreachable, chunk.ID, err)
		}
		docs = append(docs, chromem.Document{
			ID:        chunk.ID,
			Content:   chunk.Text,
			Metadata:  chunkMetadata(chunk),
			Embedding: vector,
		})
	}

	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return 0, fmt.Errorf("failed to add documents: %w", err)
	}
	log.Debug().Int("count", len(docs)).Msg("Added documents to vector index")
	return len(docs), nil
}

// Query embeds text with the same embedder used at ingest and returns
// the k nearest chunks by similarity. An empty index yields an empty
// result, never an error. Equal scores are ordered by chunk id, which
// encodes ingest order.
func (s *Store) Query(ctx context.Context, text string, k int) ([]models.SearchResult, error) {
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	vector, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", apperr.ErrProviderUnreachable, err)
	}

	// Fetch every candidate and rank them here: chromem's internal top-k
	// truncation is not stable under score ties, so equal-score chunks at
	// the cutoff could churn between identical queries.
	results, err := s.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: vector,
		NResults:       count,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	searchResults := make([]models.SearchResult, 0, len(results))
	for _, r := range results {
		searchResults = append(searchResults, models.SearchResult{
			Chunk: chunkFromResult(r),
			Score: r.Similarity,
		})
	}
	sort.SliceStable(searchResults, func(i, j int) bool {
		if searchResults[i].Score != searchResults[j].Score {
			return searchResults[i].Score > searchResults[j].Score
		}
		return searchResults[i].Chunk.ID < searchResults[j].Chunk.ID
	})
	if len(searchResults) > k {
		searchResults = searchResults[:k]
	}
	return searchResults, nil
}

// DeleteSource removes every record ingested from the named document.
func (s *Store) DeleteSource(ctx context.Context, source string) error {
	if s.collection.Count() == 0 {
		return nil
	}
	if err := s.collection.Delete(ctx, map[string]string{"source": source}, nil); err != nil {
		return fmt.Errorf("failed to delete records for %s: %w", source, err)
	}
	return nil
}

// Reset drops and recreates the collection.
func (s *Store) Reset(ctx context.Context) error {
	if err := s.db.DeleteCollection(s.name); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return s.openCollection()
}

// Count reports the number of stored records.
func (s *Store) Count() int {
	return s.collection.Count()
}

func chunkMetadata(chunk models.Chunk) map[string]string {
	return map[string]string{
		"source": chunk.Source,
		"index":  strconv.Itoa(chunk.Index),
		"start":  strconv.Itoa(chunk.Start),
		"end":    strconv.Itoa(chunk.End),
	}
}

func chunkFromResult(r chromem.Result) models.Chunk {
	index, _ := strconv.Atoi(r.Metadata["index"])
	start, _ := strconv.Atoi(r.Metadata["start"])
	end, _ := strconv.Atoi(r.Metadata["end"])
	return models.Chunk{
		ID:     r.ID,
		Source: r.Metadata["source"],
		Index:  index,
		Text:   r.Content,
		Start:  start,
		End:    end,
	}
}
