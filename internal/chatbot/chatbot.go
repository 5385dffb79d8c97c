// Package chatbot composes the document pipeline: parsed uploads feed
// the vector index, and questions are answered by retrieving top-k
// chunks and forwarding them with the question to the LLM generator.
package chatbot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"ragchat/internal/config"
	"ragchat/internal/helper"
	"ragchat/internal/llm"
	"ragchat/internal/models"
	"ragchat/internal/parser"
)

// Index is the vector store surface the chatbot depends on.
type Index interface {
	Ingest(ctx context.Context, chunks []models.Chunk) (int, error)
	Query(ctx context.Context, text string, k int) ([]models.SearchResult, error)
	DeleteSource(ctx context.Context, source string) error
	Reset(ctx context.Context) error
	Count() int
}

// Chatbot orchestrates ingestion, retrieval and generation.
type Chatbot struct {
	index     Index
	generator llm.Generator
	parser    *parser.Parser
	cfg       *config.Settings

	mu      sync.Mutex
	history []models.ConversationTurn
}

func New(index Index, generator llm.Generator, p *parser.Parser, cfg *config.Settings) *Chatbot {
	return &Chatbot{
		index:     index,
		generator: generator,
		parser:    p,
		cfg:       cfg,
	}
}

// UploadedFile is one file received from the presentation layer.
type UploadedFile struct {
	Name string
	Data []byte
}

// FileResult reports the outcome of ingesting one file.
type FileResult struct {
	Name   string `json:"name"`
	Chunks int    `json:"chunks"`
	Error  string `json:"error,omitempty"`
}

// IngestReport summarizes a batch ingestion.
type IngestReport struct {
	Files       []FileResult `json:"files"`
	TotalChunks int          `json:"total_chunks"`
	Failed      int          `json:"failed"`
}

// IngestFiles processes the uploaded files sequentially in upload order.
// Each file is retained on disk, parsed into chunks and indexed; a file
// that cannot be read is reported and does not abort the rest of the
// batch. Re-ingesting a document replaces its previous records.
func (c *Chatbot) IngestFiles(ctx context.Context, files []UploadedFile) IngestReport {
	var report IngestReport
	for _, file := range files {
		result := FileResult{Name: file.Name}

		count, err := c.ingestFile(ctx, file)
		if err != nil {
			log.Warn().Err(err).Str("file", file.Name).Msg("Failed to ingest file")
			result.Error = err.Error()
			report.Failed++
		} else {
			result.Chunks = count
			report.TotalChunks += count
		}
		report.Files = append(report.Files, result)
	}
	log.Info().Int("files", len(files)).Int("chunks", report.TotalChunks).Int("failed", report.Failed).Msg("Ingestion finished")
	return report
}

func (c *Chatbot) ingestFile(ctx context.Context, file UploadedFile) (int, error) {
	// uploads may carry path fragments; the base name is the canonical
	// source for both the retained file and the index records
	file.Name = filepath.Base(file.Name)

	if err := c.retain(file); err != nil {
		return 0, err
	}

	chunks, err := c.parser.Parse(file.Data, file.Name)
	if err != nil {
		return 0, err
	}

	if err := c.index.DeleteSource(ctx, file.Name); err != nil {
		return 0, err
	}
	return c.index.Ingest(ctx, chunks)
}

// retain keeps the uploaded bytes on disk so the index can be rebuilt
// without re-uploading.
func (c *Chatbot) retain(file UploadedFile) error {
	dir := c.cfg.Pipeline.UploadDir
	if err := helper.CreateFolder(dir); err != nil {
		return err
	}
	path := filepath.Join(dir, file.Name)
	if err := os.WriteFile(path, file.Data, 0o644); err != nil {
		return fmt.Errorf("failed to retain upload %s: %w", file.Name, err)
	}
	return nil
}

// Ask retrieves the top-k chunks for the question, composes a grounded
// prompt and calls the generator. When the index holds no chunks it
// returns the fixed no-documents answer without a provider call.
func (c *Chatbot) Ask(ctx context.Context, question string) (models.Answer, error) {
	results, err := c.index.Query(ctx, question, c.cfg.Pipeline.TopK)
	if err != nil {
		return models.Answer{}, err
	}

	if len(results) == 0 {
		answer := models.Answer{Text: models.NoDocumentsAnswer}
		c.record(question, answer)
		return answer, nil
	}

	prompt := composePrompt(c.cfg.Pipeline.PromptTemplate, results, question)
	text, err := c.generator.Generate(ctx, prompt, c.cfg.Temperature)
	if err != nil {
		return models.Answer{}, err
	}

	answer := models.Answer{Text: text, Chunks: results}
	c.record(question, answer)
	return answer, nil
}

func composePrompt(template string, results []models.SearchResult, question string) string {
	var context string
	for i, r := range results {
		if i > 0 {
			context += models.ContextSeparator
		}
		context += r.Chunk.Text
	}
	return fmt.Sprintf(template, context, question)
}

func (c *Chatbot) record(question string, answer models.Answer) {
	chunkIDs := make([]string, 0, len(answer.Chunks))
	for _, r := range answer.Chunks {
		chunkIDs = append(chunkIDs, r.Chunk.ID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history,
		models.ConversationTurn{
			ID:   newTurnID(),
			Role: models.RoleUser,
			Text: question,
			Time: time.Now(),
		},
		models.ConversationTurn{
			ID:       newTurnID(),
			Role:     models.RoleAssistant,
			Text:     answer.Text,
			ChunkIDs: chunkIDs,
			Time:     time.Now(),
		},
	)
}

func newTurnID() string {
	id, err := helper.GenerateUUID()
	if err != nil {
		return ""
	}
	return id
}

// History returns a copy of the conversation so far.
func (c *Chatbot) History() []models.ConversationTurn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.ConversationTurn, len(c.history))
	copy(out, c.history)
	return out
}

// ClearHistory resets the conversation without touching the index.
func (c *Chatbot) ClearHistory() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = nil
}

// Reset clears the index, the conversation and the retained uploads.
func (c *Chatbot) Reset(ctx context.Context) error {
	if err := c.index.Reset(ctx); err != nil {
		return err
	}
	c.ClearHistory()

	dir := c.cfg.Pipeline.UploadDir
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to clear upload folder: %w", err)
	}
	return helper.CreateFolder(dir)
}

// Rebuild re-ingests every retained upload into a fresh index. This is
// the recovery path for a corrupt on-disk index.
func (c *Chatbot) Rebuild(ctx context.Context) error {
	if err := c.index.Reset(ctx); err != nil {
		return err
	}

	entries, err := os.ReadDir(c.cfg.Pipeline.UploadDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read upload folder: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(c.cfg.Pipeline.UploadDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read retained upload %s: %w", entry.Name(), err)
		}
		chunks, err := c.parser.Parse(data, entry.Name())
		if err != nil {
			log.Warn().Err(err).Str("file", entry.Name()).Msg("Skipping unreadable retained upload")
			continue
		}
		if _, err := c.index.Ingest(ctx, chunks); err != nil {
			return err
		}
	}
	log.Info().Int("records", c.index.Count()).Msg("Rebuilt vector index from retained uploads")
	return nil
}

// Ready reports whether any documents have been indexed.
func (c *Chatbot) Ready() bool {
	return c.index.Count() > 0
}

// Records reports the number of indexed chunks.
func (c *Chatbot) Records() int {
	return c.index.Count()
}

// Provider names the active generator variant.
func (c *Chatbot) Provider() string {
	return c.generator.Name()
}
