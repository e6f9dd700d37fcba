package prompt

import (
	"fmt"
	"strings"
	"testing"

	"textbook-rag-be/pkg/llm"
	"textbook-rag-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scored(chapter int, section, content string) store.ScoredChunk {
	return store.ScoredChunk{
		TextChunk: store.TextChunk{ChapterNumber: chapter, SectionTitle: section, Content: content},
		Score:     0.8,
	}
}

func TestBuildGroundedTemplate(t *testing.T) {
	chunks := []store.ScoredChunk{
		scored(4, "Electric Motors", "Motors convert energy."),
		scored(3, "Lidar", "Lidar measures distance."),
	}

	tmpl, system := NewBuilder(10).Build(chunks, "")

	assert.Equal(t, TemplateGrounded, tmpl)
	assert.Contains(t, system, "Answer questions based ONLY on the following context from the textbook.")
	assert.Contains(t, system, "CONTEXT:\n[Source: Chapter 4 - Electric Motors]\nMotors convert energy.\n\n---\n\n[Source: Chapter 3 - Lidar]\nLidar measures distance.\n\nINSTRUCTIONS:")
	assert.True(t, strings.HasSuffix(system, "4. Keep responses focused and educational"))
}

func TestBuildOutOfScopeTemplate(t *testing.T) {
	tmpl, system := NewBuilder(10).Build(nil, "   ")

	assert.Equal(t, TemplateOutOfScope, tmpl)
	assert.Contains(t, system, "outside the scope of this textbook")
	assert.NotContains(t, system, "CONTEXT:")
}

func TestBuildSelectionTakesPrecedence(t *testing.T) {
	sel := "Actuators convert electrical energy into motion"

	tmpl, system := NewBuilder(10).Build(nil, sel)
	assert.Equal(t, TemplateSelection, tmpl)
	assert.Contains(t, system, "SELECTED TEXT:\n\""+sel+"\"\n\nINSTRUCTIONS:")
	assert.NotContains(t, system, "ADDITIONAL CONTEXT")

	tmpl, system = NewBuilder(10).Build([]store.ScoredChunk{scored(4, "Motors", "body")}, sel)
	assert.Equal(t, TemplateSelection, tmpl)
	assert.Contains(t, system, "ADDITIONAL CONTEXT:\n[Source: Chapter 4 - Motors]\nbody\n\nINSTRUCTIONS:")
}

func TestAssembleBoundsHistory(t *testing.T) {
	past := make([]llm.Message, 14)
	for i := range past {
		past[i] = llm.Message{Role: llm.RoleUser, Content: fmt.Sprintf("h%d", i)}
	}

	msgs := NewBuilder(10).Assemble("SYS", "what is a servo?", past)

	require.Len(t, msgs, 12)
	assert.Equal(t, llm.Message{Role: llm.RoleSystem, Content: "SYS"}, msgs[0])
	assert.Equal(t, "h4", msgs[1].Content)
	assert.Equal(t, "h13", msgs[10].Content)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "what is a servo?"}, msgs[11])
}

func TestAssembleWithoutHistory(t *testing.T) {
	msgs := NewBuilder(0).Assemble("SYS", "q", nil)

	assert.Len(t, msgs, 2)
}
