package chunk

import (
	"context"
	"strings"
	"time"
)

// TextChunkerOptions configures the plain-text chunker.
type TextChunkerOptions struct {
	MaxChunkTokens int
	OverlapTokens  int
}

// TextChunker splits already-flattened prose (plain text, stripped
// html, or flattened json/yaml/toml key-value lines) into overlapping,
// token-budgeted windows. It has no notion of headings; overlap between
// consecutive chunks is how it preserves cross-boundary context instead.
type TextChunker struct {
	options TextChunkerOptions
}

// NewTextChunker creates a text chunker with default options.
func NewTextChunker() *TextChunker {
	return NewTextChunkerWithOptions(TextChunkerOptions{})
}

// NewTextChunkerWithOptions creates a text chunker with custom options.
func NewTextChunkerWithOptions(opts TextChunkerOptions) *TextChunker {
	if opts.MaxChunkTokens == 0 {
		opts.MaxChunkTokens = DefaultMaxChunkTokens
	}
	if opts.OverlapTokens == 0 {
		opts.OverlapTokens = DefaultOverlapTokens
	}
	return &TextChunker{options: opts}
}

// SupportedExtensions returns the extensions this chunker handles.
func (c *TextChunker) SupportedExtensions() []string {
	return []string{".txt", ".rst", ".adoc", ".asciidoc", ".org", ".json", ".yaml", ".yml", ".toml", ".html", ".htm"}
}

// Chunk splits flattened text into overlapping token windows, breaking
// on line boundaries so a window never cuts a flattened key:value pair
// or a sentence in half when a newline is available nearby.
func (c *TextChunker) Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error) {
	content := string(file.Content)
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	lines := strings.Split(content, "\n")
	now := time.Now()

	var raw []*Chunk
	var windowLines []string
	windowTokens := 0
	startLine := 1

	flush := func(endLine int) {
		if len(windowLines) == 0 {
			return
		}
		text := strings.TrimSpace(strings.Join(windowLines, "\n"))
		if text == "" {
			return
		}
		raw = append(raw, &Chunk{
			FilePath:    file.Path,
			Content:     text,
			ContentType: ContentTypeText,
			StartLine:   startLine,
			EndLine:     endLine,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	for i, line := range lines {
		lineTokens := estimateTokens(line)
		if windowTokens+lineTokens > c.options.MaxChunkTokens && len(windowLines) > 0 {
			flush(i)
			windowLines, windowTokens, startLine = overlapTail(windowLines, c.options.OverlapTokens, i+1)
		}
		windowLines = append(windowLines, line)
		windowTokens += lineTokens
	}
	flush(len(lines))

	return finalizeChunks(file, raw), nil
}

// overlapTail keeps trailing lines worth roughly overlapTokens from the
// just-flushed window, seeding the next window with them, and returns
// the 1-indexed line number the next window notionally starts at.
func overlapTail(lines []string, overlapTokens, nextLine int) ([]string, int, int) {
	var kept []string
	tokens := 0
	for i := len(lines) - 1; i >= 0; i-- {
		lt := estimateTokens(lines[i])
		if tokens+lt > overlapTokens && len(kept) > 0 {
			break
		}
		kept = append([]string{lines[i]}, kept...)
		tokens += lt
	}
	return kept, tokens, nextLine - len(kept)
}
