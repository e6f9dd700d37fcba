package prompt

import (
	"fmt"
	"strings"

	"textbook-rag-be/pkg/llm"
	"textbook-rag-be/pkg/rag/history"
	"textbook-rag-be/pkg/store"
)

// Template identifies which system prompt was chosen.
type Template string

const (
	TemplateSelection  Template = "selection"
	TemplateOutOfScope Template = "out_of_scope"
	TemplateGrounded   Template = "grounded"
)

const (
	assistantIntro = "You are a helpful assistant for the Physical AI & Humanoid Robotics textbook.\n"
	blockSeparator = "\n\n---\n\n"
)

// Builder renders the system prompt for one request.
type Builder struct {
	historyLimit int
}

func NewBuilder(historyLimit int) *Builder {
	if historyLimit <= 0 {
		historyLimit = history.DefaultLimit
	}
	return &Builder{historyLimit: historyLimit}
}

// Build picks a template by precedence: a non-blank selection wins, then an
// empty chunk list, then the grounded template.
func (b *Builder) Build(chunks []store.ScoredChunk, selectedText string) (Template, string) {
	var prompt strings.Builder
	prompt.WriteString(assistantIntro)

	switch {
	case strings.TrimSpace(selectedText) != "":
		writeSelection(&prompt, selectedText, chunks)
		return TemplateSelection, prompt.String()
	case len(chunks) == 0:
		writeOutOfScope(&prompt)
		return TemplateOutOfScope, prompt.String()
	default:
		writeGrounded(&prompt, chunks)
		return TemplateGrounded, prompt.String()
	}
}

// Assemble returns system prompt, the newest history messages verbatim, then the query.
func (b *Builder) Assemble(systemPrompt, query string, past []llm.Message) []llm.Message {
	recent := history.Window(past, b.historyLimit)

	messages := make([]llm.Message, 0, len(recent)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt})
	messages = append(messages, recent...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: query})
	return messages
}

// FormatContext renders chunks as labeled blocks.
func FormatContext(chunks []store.ScoredChunk) string {
	blocks := make([]string, len(chunks))
	for i, c := range chunks {
		blocks[i] = fmt.Sprintf("[Source: Chapter %d - %s]\n%s", c.ChapterNumber, c.SectionTitle, c.Content)
	}
	return strings.Join(blocks, blockSeparator)
}

func writeSelection(prompt *strings.Builder, selectedText string, chunks []store.ScoredChunk) {
	prompt.WriteString("The user has selected the following text from the textbook and wants to ask about it:\n\n")
	prompt.WriteString("SELECTED TEXT:\n")
	prompt.WriteString("\"" + selectedText + "\"\n\n")

	if len(chunks) > 0 {
		prompt.WriteString("ADDITIONAL CONTEXT:\n")
		prompt.WriteString(FormatContext(chunks))
		prompt.WriteString("\n\n")
	}

	prompt.WriteString("INSTRUCTIONS:\n")
	prompt.WriteString("1. Answer questions specifically about the selected text\n")
	prompt.WriteString("2. Provide explanations, clarifications, or deeper insights\n")
	prompt.WriteString("3. If the question relates to concepts in the selected text, explain them\n")
	prompt.WriteString("4. Cite chapter sources when available\n")
	prompt.WriteString("5. Be educational and thorough")
}

func writeOutOfScope(prompt *strings.Builder) {
	prompt.WriteString("However, you could not find any relevant information in the textbook to answer the user's question.\n")
	prompt.WriteString("Please politely explain that the question appears to be outside the scope of this textbook,\n")
	prompt.WriteString("and suggest they rephrase their question or ask about topics covered in the textbook such as:\n")
	prompt.WriteString("- Physical AI concepts and embodied intelligence\n")
	prompt.WriteString("- Humanoid robotics fundamentals\n")
	prompt.WriteString("- Sensors and perception systems\n")
	prompt.WriteString("- Actuators and movement control\n")
	prompt.WriteString("- AI/ML integration in robotics\n")
	prompt.WriteString("- Real-world applications and case studies")
}

func writeGrounded(prompt *strings.Builder, chunks []store.ScoredChunk) {
	prompt.WriteString("Answer questions based ONLY on the following context from the textbook.\n")
	prompt.WriteString("Always cite the source chapters when providing information.\n")
	prompt.WriteString("If the context doesn't contain enough information to fully answer, say so.\n")
	prompt.WriteString("Be concise but thorough.\n\n")

	prompt.WriteString("CONTEXT:\n")
	prompt.WriteString(FormatContext(chunks))
	prompt.WriteString("\n\n")

	prompt.WriteString("INSTRUCTIONS:\n")
	prompt.WriteString("1. Answer based on the context above\n")
	prompt.WriteString("2. Cite relevant chapters (e.g., \"According to Chapter 1...\")\n")
	prompt.WriteString("3. If unsure, say \"Based on the available information...\"\n")
	prompt.WriteString("4. Keep responses focused and educational")
}
