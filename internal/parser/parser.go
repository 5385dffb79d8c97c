package parser

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"

	"ragchat/internal/apperr"
	"ragchat/internal/models"
)

const (
	defaultChunkSize    = 1500 // bytes
	defaultChunkOverlap = 200  // bytes
)

// Parser extracts text from uploaded documents and splits it into
// overlapping chunks with source metadata.
type Parser struct {
	chunkSize    int
	chunkOverlap int
}

func New(chunkSize, chunkOverlap int) *Parser {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	// zero is a valid "no overlap" setting; only negative means unset
	if chunkOverlap < 0 {
		chunkOverlap = defaultChunkOverlap
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 2
	}
	return &Parser{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// Parse extracts text from the file bytes and returns the chunk sequence
// in document order. Fails with apperr.ErrUnreadableDocument when
// extraction yields no content.
func (p *Parser) Parse(data []byte, filename string) ([]models.Chunk, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	var text string
	var err error
	switch ext {
	case ".pdf":
		text, err = extractPDF(data)
	case ".docx":
		text, err = extractDOCX(data)
	case ".txt", ".md":
		text = string(data)
	default:
		return nil, fmt.Errorf("%w: unsupported file format %s", apperr.ErrUnreadableDocument, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperr.ErrUnreadableDocument, filename, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: no text extracted from %s", apperr.ErrUnreadableDocument, filename)
	}

	chunks := p.chunk(text, filename)
	log.Debug().Str("file", filename).Int("chunks", len(chunks)).Msg("Parsed document")
	return chunks, nil
}

func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var text strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", err
		}
		text.WriteString(pageText)
		text.WriteString("\n")
	}
	return text.String(), nil
}

func extractDOCX(data []byte) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	defer r.Close()

	return extractTextFromXML(r.Editable().GetContent(), "<w:t"), nil
}

// extractTextFromXML pulls the character data of every text run element
// (e.g. "<w:t" for docx) out of raw office XML.
func extractTextFromXML(xmlContent, runTag string) string {
	var text strings.Builder
	parts := strings.Split(xmlContent, runTag)
	for i, part := range parts {
		if i == 0 {
			continue
		}
		// skip to the end of the opening tag
		open := strings.Index(part, ">")
		if open < 0 {
			continue
		}
		part = part[open+1:]
		if end := strings.Index(part, "</"); end >= 0 {
			text.WriteString(part[:end] + " ")
		}
	}
	return text.String()
}

type span struct {
	start, end int
}

// chunkSpans walks content with a fixed window and overlap, preferring a
// clean break (space, newline or period) within the last 10% of the
// window. Consecutive spans of one document overlap by exactly
// overlapChars, and no span exceeds maxChars.
func chunkSpans(content string, maxChars, overlapChars int) []span {
	if maxChars <= 0 || len(content) == 0 {
		return nil
	}
	if overlapChars < 0 {
		overlapChars = 0
	}
	if overlapChars >= maxChars {
		overlapChars = maxChars / 2
	}

	contentLen := len(content)
	var spans []span
	start := 0
	for start < contentLen {
		end := min(start+maxChars, contentLen)

		if end < contentLen {
			lookBack := min(maxChars/10, end-start)
			for i := end - 1; i >= end-lookBack && i > start; i-- {
				if content[i] == ' ' || content[i] == '\n' || content[i] == '.' {
					end = i + 1
					break
				}
			}
		}

		spans = append(spans, span{start: start, end: end})
		if end == contentLen {
			break
		}

		next := end - overlapChars
		if next <= start {
			next = end
		}
		start = next
	}
	return spans
}

// chunk materializes the spans of content into Chunk records for source.
func (p *Parser) chunk(content, source string) []models.Chunk {
	var chunks []models.Chunk
	for i, s := range chunkSpans(content, p.chunkSize, p.chunkOverlap) {
		chunks = append(chunks, models.Chunk{
			ID:     ChunkID(source, i),
			Source: source,
			Index:  i,
			Text:   content[s.start:s.end],
			Start:  s.start,
			End:    s.end,
		})
	}
	return chunks
}

// ChunkID is the dedup key for a chunk: document name plus sequence
// index. Zero-padding keeps id ordering aligned with ingest order.
func ChunkID(source string, index int) string {
	return fmt.Sprintf("%s#%06d", source, index)
}
