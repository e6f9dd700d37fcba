package search

import (
	"fmt"
	"os"

	"textbook-rag-be/pkg/store"

	"gopkg.in/yaml.v3"
)

// Chapter is one entry of the slug registry.
type Chapter struct {
	Number int    `yaml:"number"`
	Slug   string `yaml:"slug"`
	Title  string `yaml:"title"`
}

type chaptersFile struct {
	Chapters []Chapter `yaml:"chapters"`
}

// DefaultChapters is the registry of the published textbook.
var DefaultChapters = []Chapter{
	{Number: 0, Slug: "intro", Title: "Welcome to Physical AI & Humanoid Robotics"},
	{Number: 1, Slug: "chapter-1-physical-ai-introduction", Title: "Introduction to Physical AI"},
	{Number: 2, Slug: "chapter-2-humanoid-robotics-fundamentals", Title: "Humanoid Robotics Fundamentals"},
	{Number: 3, Slug: "chapter-3-sensors-perception", Title: "Sensors and Perception"},
	{Number: 4, Slug: "chapter-4-actuators-movement", Title: "Actuators and Movement"},
	{Number: 5, Slug: "chapter-5-ai-ml-integration", Title: "AI/ML Integration"},
	{Number: 6, Slug: "chapter-6-applications-case-studies", Title: "Applications and Case Studies"},
}

// SourceMapper turns search hits into citations with chapter URLs.
type SourceMapper struct {
	slugs map[int]string
}

// NewSourceMapper builds a mapper from chapters, or from DefaultChapters when nil.
func NewSourceMapper(chapters []Chapter) *SourceMapper {
	if chapters == nil {
		chapters = DefaultChapters
	}
	slugs := make(map[int]string, len(chapters))
	for _, ch := range chapters {
		slugs[ch.Number] = ch.Slug
	}
	return &SourceMapper{slugs: slugs}
}

// LoadSourceMapper reads a YAML registry. An empty path yields the defaults.
func LoadSourceMapper(path string) (*SourceMapper, error) {
	if path == "" {
		return NewSourceMapper(nil), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chapters file: %w", err)
	}

	var file chaptersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse chapters file: %w", err)
	}
	for _, ch := range file.Chapters {
		if ch.Slug == "" {
			return nil, fmt.Errorf("chapters file: chapter %d has no slug", ch.Number)
		}
	}
	return NewSourceMapper(file.Chapters), nil
}

// Slug falls back to chapter-{N} for unregistered chapters.
func (m *SourceMapper) Slug(chapterNumber int) string {
	if slug, ok := m.slugs[chapterNumber]; ok {
		return slug
	}
	return fmt.Sprintf("chapter-%d", chapterNumber)
}

func (m *SourceMapper) URL(chapterNumber int) string {
	return "/" + m.Slug(chapterNumber)
}

// ToSources projects hits to citations, preserving order.
func (m *SourceMapper) ToSources(chunks []store.ScoredChunk) []store.SourceReference {
	sources := make([]store.SourceReference, len(chunks))
	for i, c := range chunks {
		sources[i] = store.SourceReference{
			ChunkID:        c.ID,
			ChapterNumber:  c.ChapterNumber,
			SectionTitle:   c.SectionTitle,
			URL:            m.URL(c.ChapterNumber),
			RelevanceScore: c.Score,
		}
	}
	return sources
}
