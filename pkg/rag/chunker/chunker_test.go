package chunker

import (
	"fmt"
	"strings"
	"testing"

	"textbook-rag-be/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// paragraph builds n distinct space separated words.
func paragraph(prefix string, n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("%s%04d", prefix, i)
	}
	return strings.Join(words, " ")
}

func sentences(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("Sentence %03d explains how actuators move joints.", i)
	}
	return strings.Join(parts, " ")
}

func TestParseFrontmatter(t *testing.T) {
	content := "---\ntitle: \"Introduction to Physical AI\"\nsidebar_position: 1\n---\n# Heading\n\nBody"

	fm, body := ParseFrontmatter(content)

	assert.Equal(t, "Introduction to Physical AI", fm["title"])
	assert.Equal(t, "1", fm["sidebar_position"])
	assert.Equal(t, "# Heading\n\nBody", body)
}

func TestParseFrontmatterAbsent(t *testing.T) {
	fm, body := ParseFrontmatter("# Heading\n\nBody")

	assert.Empty(t, fm)
	assert.Equal(t, "# Heading\n\nBody", body)
}

func TestExtractSections(t *testing.T) {
	md := strings.Join([]string{
		"preamble is ignored",
		"# Title",
		"",
		"intro text",
		"## Empty",
		"   ",
		"### Details",
		"detail text",
		"####### not a heading",
	}, "\n")

	sections := ExtractSections(md)

	require.Len(t, sections, 2)
	assert.Equal(t, Section{Heading: "Title", Level: 1, Content: "intro text"}, sections[0])
	assert.Equal(t, "Details", sections[1].Heading)
	assert.Equal(t, 3, sections[1].Level)
	assert.Equal(t, "detail text\n####### not a heading", sections[1].Content)
}

func TestChunkAssignsDeterministicIdentity(t *testing.T) {
	doc := Document{
		ChapterNumber: 3,
		Content: "---\ntitle: Sensors and Perception\n---\n" +
			"# Cameras\n\n" + paragraph("cam", 40) + "\n\n" +
			"# Lidar\n\n" + paragraph("lid", 40),
	}

	chunks := New().Chunk(doc)

	require.Len(t, chunks, 2)
	assert.Equal(t, "ch3_sec1_0", chunks[0].ID)
	assert.Equal(t, "3.1", chunks[0].SectionID)
	assert.Equal(t, "Cameras", chunks[0].SectionTitle)
	assert.Equal(t, "Sensors and Perception", chunks[0].ChapterTitle)
	assert.Equal(t, 0, chunks[0].Position)

	assert.Equal(t, "ch3_sec2_0", chunks[1].ID)
	assert.Equal(t, "3.2", chunks[1].SectionID)
	assert.Equal(t, 1, chunks[1].Position)

	assert.True(t, strings.HasPrefix(chunks[0].Content, "Cameras\n\n"))
	assert.Equal(t, utils.EstimateTokens(chunks[0].Content), chunks[0].TokenCount)
}

func TestChunkFallsBackToChapterTitle(t *testing.T) {
	chunks := New().Chunk(Document{ChapterNumber: 7, Content: "# Only\n\n" + paragraph("x", 40)})

	require.Len(t, chunks, 1)
	assert.Equal(t, "Chapter 7", chunks[0].ChapterTitle)
}

func TestChunkDropsUndersizedChunks(t *testing.T) {
	chunks := New().Chunk(Document{ChapterNumber: 1, Content: "# Tiny\n\nToo short to index."})

	assert.Empty(t, chunks)
}

func TestChunkCarriesOverlapBetweenChunks(t *testing.T) {
	first := paragraph("aa", 90)
	second := paragraph("bb", 90)
	doc := Document{ChapterNumber: 1, Content: "# Overlap\n\n" + first + "\n\n" + second}

	chunks := New().Chunk(doc)

	require.Len(t, chunks, 2)
	assert.Equal(t, "Overlap\n\n"+first, chunks[0].Content)

	tail := utils.TailWords(chunks[0].Content, 34)
	assert.Equal(t, tail+"\n\n"+second, chunks[1].Content)
	assert.Equal(t, "ch1_sec1_1", chunks[1].ID)
}

func TestChunkSplitsOversizedParagraphBySentence(t *testing.T) {
	doc := Document{ChapterNumber: 4, Content: "# Actuators\n\n" + sentences(100)}

	chunks := New().Chunk(doc)

	require.GreaterOrEqual(t, len(chunks), 3)
	for _, c := range chunks {
		assert.LessOrEqual(t, c.TokenCount, DefaultMaxTokens, c.ID)
		assert.GreaterOrEqual(t, c.TokenCount, DefaultMinTokens, c.ID)
		assert.True(t, strings.HasSuffix(c.Content, "."), c.ID)
	}
}

func TestChunkKeepsOversizedSentenceWhole(t *testing.T) {
	huge := paragraph("long", 300) + "."
	doc := Document{ChapterNumber: 2, Content: "# Run-on\n\n" + huge}

	chunks := New().Chunk(doc)

	require.Len(t, chunks, 1)
	assert.Greater(t, chunks[0].TokenCount, DefaultMaxTokens)
	assert.Equal(t, huge, chunks[0].Content)
}

func TestChunkSizeBoundsAndUniqueIDs(t *testing.T) {
	var b strings.Builder
	for s := 0; s < 6; s++ {
		fmt.Fprintf(&b, "## Section %d\n\n", s)
		for p := 0; p < 8; p++ {
			b.WriteString(paragraph(fmt.Sprintf("s%dp%d", s, p), 20+p*10))
			b.WriteString("\n\n")
		}
	}

	c := New()
	chunks := c.ChunkAll([]Document{
		{ChapterNumber: 1, Content: b.String()},
		{ChapterNumber: 2, Content: b.String()},
	})

	require.NotEmpty(t, chunks)
	seen := make(map[string]bool)
	for _, ch := range chunks {
		assert.False(t, seen[ch.ID], "duplicate id %s", ch.ID)
		seen[ch.ID] = true
		assert.GreaterOrEqual(t, ch.TokenCount, c.Options().MinTokens, ch.ID)
		assert.LessOrEqual(t, ch.TokenCount, c.Options().MaxTokens, ch.ID)
	}
}

func TestOverlapShrinksToRespectMaxTokens(t *testing.T) {
	c := New(WithMaxTokens(120), WithTargetTokens(100), WithMinTokens(10))
	doc := Document{ChapterNumber: 5, Content: "# Tight\n\n" + paragraph("p", 50) + "\n\n" + paragraph("q", 50)}

	chunks := c.Chunk(doc)

	require.Len(t, chunks, 2)
	for _, ch := range chunks {
		assert.LessOrEqual(t, ch.TokenCount, 120)
	}
	assert.True(t, strings.HasSuffix(chunks[1].Content, paragraph("q", 50)))
}

func TestOptionsOverride(t *testing.T) {
	c := New(WithMinTokens(1), WithMaxTokens(2), WithTargetTokens(3), WithOverlapTokens(4))

	assert.Equal(t, Options{MinTokens: 1, MaxTokens: 2, TargetTokens: 3, OverlapTokens: 4}, c.Options())
}
