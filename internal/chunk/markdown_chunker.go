package chunk

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MarkdownChunkerOptions configures the markdown chunker behavior.
type MarkdownChunkerOptions struct {
	MaxChunkTokens int
	OverlapTokens  int
}

// MarkdownChunker implements header-based markdown chunking: it splits
// on heading boundaries first, falling back to paragraph splitting when
// a section exceeds the token budget.
type MarkdownChunker struct {
	options MarkdownChunkerOptions
}

var (
	headerPattern = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+)$`)

	// Fenced code blocks are an atomic unit: never split mid-block.
	codeBlockPattern = regexp.MustCompile("(?s)```[^`]*```")
	tablePattern     = regexp.MustCompile(`(?m)^\|.+\|$(\n^\|[-:|]+\|$)?(\n^\|.+\|$)*`)
)

// NewMarkdownChunker creates a markdown chunker with default options.
func NewMarkdownChunker() *MarkdownChunker {
	return NewMarkdownChunkerWithOptions(MarkdownChunkerOptions{})
}

// NewMarkdownChunkerWithOptions creates a markdown chunker with custom options.
func NewMarkdownChunkerWithOptions(opts MarkdownChunkerOptions) *MarkdownChunker {
	if opts.MaxChunkTokens == 0 {
		opts.MaxChunkTokens = DefaultMaxChunkTokens
	}
	if opts.OverlapTokens == 0 {
		opts.OverlapTokens = DefaultOverlapTokens
	}
	return &MarkdownChunker{options: opts}
}

// SupportedExtensions returns the file extensions this chunker handles.
func (c *MarkdownChunker) SupportedExtensions() []string {
	return []string{".md", ".markdown", ".mdx"}
}

// Chunk splits cleaned markdown text into section-bounded, token-budgeted chunks.
func (c *MarkdownChunker) Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error) {
	content := string(file.Content)
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	sections := c.parseSections(content)

	var raw []*Chunk
	now := time.Now()
	if len(sections) == 0 {
		raw = c.chunkByParagraphs(file, content, "", 0, 1, now)
	} else {
		for _, sec := range sections {
			raw = append(raw, c.createSectionChunks(file, sec, 1, now)...)
		}
	}

	return finalizeChunks(file, raw), nil
}

type section struct {
	headerLevel int
	headerTitle string
	headerPath  string
	content     string
	startLine   int
}

func (c *MarkdownChunker) parseSections(content string) []*section {
	lines := strings.Split(content, "\n")
	var sections []*section
	headerStack := make([]string, 6)

	var currentSection *section
	var contentBuilder strings.Builder

	for lineNum, line := range lines {
		if match := headerPattern.FindStringSubmatch(line); match != nil {
			if currentSection != nil {
				currentSection.content = contentBuilder.String()
				sections = append(sections, currentSection)
				contentBuilder.Reset()
			}

			level := len(match[1])
			title := strings.TrimSpace(match[2])

			headerStack[level-1] = title
			for i := level; i < 6; i++ {
				headerStack[i] = ""
			}

			var pathParts []string
			for i := 0; i < level; i++ {
				if headerStack[i] != "" {
					pathParts = append(pathParts, headerStack[i])
				}
			}

			currentSection = &section{
				headerLevel: level,
				headerTitle: title,
				headerPath:  strings.Join(pathParts, " > "),
				startLine:   lineNum,
			}
			contentBuilder.WriteString(line)
			contentBuilder.WriteString("\n")
		} else {
			contentBuilder.WriteString(line)
			contentBuilder.WriteString("\n")
		}
	}

	if currentSection != nil {
		currentSection.content = contentBuilder.String()
		sections = append(sections, currentSection)
	} else if contentBuilder.Len() > 0 {
		sections = append(sections, &section{content: contentBuilder.String()})
	}

	return sections
}

func (c *MarkdownChunker) createSectionChunks(file *FileInput, sec *section, baseLineOffset int, now time.Time) []*Chunk {
	content := strings.TrimRight(sec.content, "\n")
	trimmed := strings.TrimSpace(content)
	lines := strings.Split(trimmed, "\n")
	if len(lines) <= 1 && headerPattern.MatchString(trimmed) {
		return nil // header with no body
	}

	startLine := baseLineOffset + sec.startLine
	if estimateTokens(content) <= c.options.MaxChunkTokens {
		return []*Chunk{{
			FilePath:    file.Path,
			Content:     content,
			ContentType: ContentTypeMarkdown,
			Breadcrumb:  sec.headerPath,
			StartLine:   startLine,
			EndLine:     startLine + strings.Count(content, "\n"),
			Metadata: map[string]string{
				"header_level":  strconv.Itoa(sec.headerLevel),
				"section_title": sec.headerTitle,
			},
			CreatedAt: now,
			UpdatedAt: now,
		}}
	}

	return c.splitLargeSection(file, sec, content, startLine, now)
}

func (c *MarkdownChunker) splitLargeSection(file *FileInput, sec *section, content string, startLine int, now time.Time) []*Chunk {
	paragraphs := c.splitByParagraphs(content)

	var chunks []*Chunk
	var currentContent strings.Builder
	currentStartLine := startLine
	lineCount := 0

	flush := func() {
		if currentContent.Len() == 0 {
			return
		}
		text := strings.TrimRight(currentContent.String(), "\n ")
		chunks = append(chunks, &Chunk{
			FilePath:    file.Path,
			Content:     text,
			ContentType: ContentTypeMarkdown,
			Breadcrumb:  sec.headerPath,
			StartLine:   currentStartLine,
			EndLine:     currentStartLine + lineCount,
			Metadata: map[string]string{
				"header_level":  strconv.Itoa(sec.headerLevel),
				"section_title": sec.headerTitle,
			},
			CreatedAt: now,
			UpdatedAt: now,
		})
		currentContent.Reset()
		lineCount = 0
	}

	for i, para := range paragraphs {
		paraLines := strings.Count(para, "\n") + 1
		paraTokens := estimateTokens(para)
		currentTokens := estimateTokens(currentContent.String())

		if currentContent.Len() > 0 && currentTokens+paraTokens > c.options.MaxChunkTokens {
			flush()
			currentStartLine = startLine + lineCount
			if i > 0 && sec.headerPath != "" {
				currentContent.WriteString(sec.headerPath)
				currentContent.WriteString("\n\n")
			}
			// Seed the continuation chunk with roughly OverlapTokens of
			// trailing text from the chunk just flushed.
			if c.options.OverlapTokens > 0 {
				prev := chunks[len(chunks)-1].Content
				if n := c.options.OverlapTokens * TokensPerChar; n < len(prev) {
					prev = prev[len(prev)-n:]
					if cut := strings.IndexAny(prev, " \n"); cut >= 0 {
						prev = prev[cut+1:]
					}
				}
				currentContent.WriteString(prev)
				currentContent.WriteString("\n\n")
			}
		}

		currentContent.WriteString(para)
		currentContent.WriteString("\n\n")
		lineCount += paraLines + 1
	}
	flush()

	return chunks
}

// splitByParagraphs splits on blank lines, keeping fenced code blocks
// and tables intact as single paragraphs.
func (c *MarkdownChunker) splitByParagraphs(content string) []string {
	atomic := append(codeBlockPattern.FindAllStringIndex(content, -1), tablePattern.FindAllStringIndex(content, -1)...)
	if len(atomic) == 0 {
		return splitTrimmed(content)
	}

	// Replace atomic-block newlines with a sentinel so the blank-line
	// split below doesn't cut through them, then restore.
	const sentinel = "\x00"
	protected := content
	for _, loc := range atomic {
		block := content[loc[0]:loc[1]]
		protected = strings.Replace(protected, block, strings.ReplaceAll(block, "\n", sentinel), 1)
	}

	parts := splitTrimmed(protected)
	for i, p := range parts {
		parts[i] = strings.ReplaceAll(p, sentinel, "\n")
	}
	return parts
}

func splitTrimmed(content string) []string {
	parts := strings.Split(content, "\n\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func (c *MarkdownChunker) chunkByParagraphs(file *FileInput, content, headerPath string, headerLevel, startLine int, now time.Time) []*Chunk {
	paragraphs := c.splitByParagraphs(content)

	var chunks []*Chunk
	var currentContent strings.Builder
	currentStartLine := startLine
	lineCount := 0

	flush := func() {
		if currentContent.Len() == 0 {
			return
		}
		text := strings.TrimSpace(currentContent.String())
		chunks = append(chunks, &Chunk{
			FilePath:    file.Path,
			Content:     text,
			ContentType: ContentTypeText,
			Breadcrumb:  headerPath,
			StartLine:   currentStartLine,
			EndLine:     currentStartLine + lineCount,
			Metadata: map[string]string{
				"header_level": strconv.Itoa(headerLevel),
			},
			CreatedAt: now,
			UpdatedAt: now,
		})
		currentContent.Reset()
		lineCount = 0
	}

	for _, para := range paragraphs {
		paraLines := strings.Count(para, "\n") + 1
		paraTokens := estimateTokens(para)
		currentTokens := estimateTokens(currentContent.String())

		if currentContent.Len() > 0 && currentTokens+paraTokens > c.options.MaxChunkTokens {
			flush()
			currentStartLine = startLine + lineCount
		}
		if currentContent.Len() > 0 {
			currentContent.WriteString("\n\n")
		}
		currentContent.WriteString(para)
		lineCount += paraLines + 1
	}
	flush()

	return chunks
}

// estimateTokens approximates a token count from character length.
func estimateTokens(s string) int {
	return len(s) / TokensPerChar
}

// finalizeChunks assigns the dense, content-addressable chunk_id
// (invariant I6: "<external_id>:<5-digit zero-padded index>") to each
// chunk produced by a Chunker, in document order.
func finalizeChunks(file *FileInput, raw []*Chunk) []*Chunk {
	out := make([]*Chunk, 0, len(raw))
	for _, ch := range raw {
		if ch == nil || strings.TrimSpace(ch.Content) == "" {
			continue
		}
		ch.ExternalID = file.ExternalID
		ch.Index = uint32(len(out))
		ch.ID = chunkID(file.ExternalID, ch.Index)
		out = append(out, ch)
	}
	return out
}

// chunkID formats a chunk identifier per invariant I6:
// "<external_id>:<5-digit zero-padded index>".
func chunkID(externalID string, index uint32) string {
	return fmt.Sprintf("%s:%05d", externalID, index)
}
