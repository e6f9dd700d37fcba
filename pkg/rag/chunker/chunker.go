package chunker

import (
	"fmt"
	"regexp"
	"strings"

	"textbook-rag-be/pkg/store"
	"textbook-rag-be/pkg/utils"
)

const (
	DefaultMinTokens     = 50
	DefaultMaxTokens     = 500
	DefaultTargetTokens  = 300
	DefaultOverlapTokens = 50
)

var (
	frontmatterPattern = regexp.MustCompile(`(?s)^---\n(.*?)\n---\n(.*)$`)
	keyValuePattern    = regexp.MustCompile(`^(\w+):\s*(.*)$`)
	headingPattern     = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
	quotePattern       = regexp.MustCompile(`^["']|["']$`)
)

// Document is a single chapter file.
type Document struct {
	Content       string
	ChapterNumber int
}

// Section is a heading plus the text under it, up to the next heading.
type Section struct {
	Heading string
	Level   int
	Content string
}

type Options struct {
	MinTokens     int
	MaxTokens     int
	TargetTokens  int
	OverlapTokens int
}

type Option func(*Options)

func WithMinTokens(n int) Option {
	return func(o *Options) { o.MinTokens = n }
}

func WithMaxTokens(n int) Option {
	return func(o *Options) { o.MaxTokens = n }
}

func WithTargetTokens(n int) Option {
	return func(o *Options) { o.TargetTokens = n }
}

func WithOverlapTokens(n int) Option {
	return func(o *Options) { o.OverlapTokens = n }
}

// Chunker splits markdown chapters into overlapping, token-bounded passages.
type Chunker struct {
	opts Options
}

func New(opts ...Option) *Chunker {
	o := Options{
		MinTokens:     DefaultMinTokens,
		MaxTokens:     DefaultMaxTokens,
		TargetTokens:  DefaultTargetTokens,
		OverlapTokens: DefaultOverlapTokens,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Chunker{opts: o}
}

func (c *Chunker) Options() Options {
	return c.opts
}

// Chunk splits one chapter. Chunk IDs are ch{chapter}_sec{section}_{index} with a
// 1-based section index and a 0-based index within the section.
func (c *Chunker) Chunk(doc Document) []store.TextChunk {
	frontmatter, body := ParseFrontmatter(doc.Content)

	chapterTitle := frontmatter["title"]
	if chapterTitle == "" {
		chapterTitle = fmt.Sprintf("Chapter %d", doc.ChapterNumber)
	}

	var chunks []store.TextChunk
	position := 0

	for sectionIndex, section := range ExtractSections(body) {
		sectionNumber := sectionIndex + 1
		fullContent := section.Heading + "\n\n" + section.Content

		for chunkIndex, content := range c.splitByTokens(fullContent) {
			chunks = append(chunks, store.TextChunk{
				ID:            fmt.Sprintf("ch%d_sec%d_%d", doc.ChapterNumber, sectionNumber, chunkIndex),
				ChapterNumber: doc.ChapterNumber,
				ChapterTitle:  chapterTitle,
				SectionID:     fmt.Sprintf("%d.%d", doc.ChapterNumber, sectionNumber),
				SectionTitle:  section.Heading,
				Content:       content,
				Position:      position,
				TokenCount:    utils.EstimateTokens(content),
			})
			position++
		}
	}

	return chunks
}

// ChunkAll chunks every document and concatenates the results in input order.
func (c *Chunker) ChunkAll(docs []Document) []store.TextChunk {
	var all []store.TextChunk
	for _, doc := range docs {
		all = append(all, c.Chunk(doc)...)
	}
	return all
}

func (c *Chunker) splitByTokens(text string) []string {
	var (
		chunks        []string
		current       string
		currentTokens int
	)

	flush := func() {
		if current != "" {
			chunks = append(chunks, strings.TrimSpace(current))
		}
	}

	for _, paragraph := range utils.SplitParagraphs(text) {
		paragraphTokens := utils.EstimateTokens(paragraph)

		switch {
		case paragraphTokens > c.opts.MaxTokens:
			flush()
			current, currentTokens = "", 0

			for _, sentence := range utils.SplitSentences(paragraph) {
				if current == "" {
					current = sentence
					continue
				}
				if utils.EstimateTokens(current+" "+sentence) > c.opts.MaxTokens {
					flush()
					current = sentence
					continue
				}
				current += " " + sentence
			}
			currentTokens = utils.EstimateTokens(current)

		case currentTokens+paragraphTokens > c.opts.TargetTokens:
			flush()
			current = c.seedWithOverlap(current, paragraph)
			currentTokens = utils.EstimateTokens(current)

		default:
			if current != "" {
				current += "\n\n"
			}
			current += paragraph
			currentTokens = utils.EstimateTokens(current)
		}
	}
	flush()

	kept := chunks[:0]
	for _, chunk := range chunks {
		if utils.EstimateTokens(chunk) >= c.opts.MinTokens {
			kept = append(kept, chunk)
		}
	}
	return kept
}

// seedWithOverlap starts a new chunk with the tail of the previous one. The tail
// shrinks when carrying it in full would push the chunk past MaxTokens.
func (c *Chunker) seedWithOverlap(previous, paragraph string) string {
	for n := overlapWords(c.opts.OverlapTokens); n > 0; n-- {
		seeded := utils.TailWords(previous, n) + "\n\n" + paragraph
		if utils.EstimateTokens(strings.TrimSpace(seeded)) <= c.opts.MaxTokens {
			return seeded
		}
	}
	return paragraph
}

// overlapWords converts an overlap budget in tokens to a trailing word count.
func overlapWords(overlapTokens int) int {
	// ceil(overlapTokens / 1.5)
	return (overlapTokens*2 + 2) / 3
}

// ParseFrontmatter strips a leading "---" delimited key/value block.
func ParseFrontmatter(content string) (map[string]string, string) {
	frontmatter := make(map[string]string)

	match := frontmatterPattern.FindStringSubmatch(content)
	if match == nil {
		return frontmatter, content
	}

	for _, line := range strings.Split(match[1], "\n") {
		kv := keyValuePattern.FindStringSubmatch(line)
		if kv == nil {
			continue
		}
		frontmatter[kv[1]] = quotePattern.ReplaceAllString(kv[2], "")
	}

	return frontmatter, match[2]
}

// ExtractSections partitions markdown at heading lines. Text before the first
// heading is ignored and sections with no content are dropped.
func ExtractSections(markdown string) []Section {
	var (
		sections []Section
		current  *Section
		buffer   []string
	)

	closeSection := func() {
		if current == nil {
			return
		}
		current.Content = strings.TrimSpace(strings.Join(buffer, "\n"))
		if current.Content != "" {
			sections = append(sections, *current)
		}
	}

	for _, line := range strings.Split(markdown, "\n") {
		if m := headingPattern.FindStringSubmatch(line); m != nil {
			closeSection()
			current = &Section{Heading: m[2], Level: len(m[1])}
			buffer = nil
			continue
		}
		buffer = append(buffer, line)
	}
	closeSection()

	return sections
}
