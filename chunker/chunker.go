// Package chunker splits a document's content into bounded-size overlapping
// text segments, the unit of embedding and retrieval. Markdown is split
// along # and ## headings first so a chunk never straddles two topics, then
// oversized sections are split by paragraph accumulation with overlap.
package chunker

import (
	"regexp"
	"strings"

	"github.com/fabfab/docs-assistant/source"
)

const (
	DefaultTargetSize = 1500
	DefaultOverlap    = 200
)

// Metadata keys attached to every chunk.
const (
	MetaFilename = "filename"
	MetaDocLink  = "doc_link"
	MetaTitle    = "title"
	MetaHeader1  = "Header1"
	MetaHeader2  = "Header2"
)

// Chunk is one derived text segment of a document. The ordinal is the
// position within the parent document's chunk sequence.
type Chunk struct {
	Ordinal  int
	Content  string
	Metadata map[string]string
}

type Chunker struct {
	targetSize int
	overlap    int
}

func New(targetSize, overlap int) *Chunker {
	if targetSize <= 0 {
		targetSize = DefaultTargetSize
	}
	if overlap < 0 {
		overlap = 0
	}
	return &Chunker{targetSize: targetSize, overlap: overlap}
}

// Chunk splits the document into segments. The returned slice is the full
// replacement chunk set for the document's current content version.
func (c *Chunker) Chunk(doc source.Document) []Chunk {
	sections := splitSections(doc.Content)

	var chunks []Chunk
	for _, section := range sections {
		for _, text := range accumulateParagraphs(section.body, c.targetSize, c.overlap) {
			content := section.headerPrefix()
			if content != "" {
				content += "\n"
			}
			content += text

			metadata := map[string]string{
				MetaFilename: doc.ID,
				MetaTitle:    doc.Title,
			}
			if link := doc.Link; link != "" {
				metadata[MetaDocLink] = link + section.anchor()
			}
			if section.h1 != "" {
				metadata[MetaHeader1] = section.h1
			}
			if section.h2 != "" {
				metadata[MetaHeader2] = section.h2
			}

			chunks = append(chunks, Chunk{
				Ordinal:  len(chunks),
				Content:  content,
				Metadata: metadata,
			})
		}
	}

	return chunks
}

type section struct {
	h1   string
	h2   string
	body string
}

func (s section) headerPrefix() string {
	var parts []string
	if s.h1 != "" {
		parts = append(parts, "# "+s.h1)
	}
	if s.h2 != "" {
		parts = append(parts, "## "+s.h2)
	}
	return strings.Join(parts, "\n")
}

// anchor derives the in-page fragment for the section's deepest heading.
func (s section) anchor() string {
	heading := s.h2
	if heading == "" {
		heading = s.h1
	}
	if heading == "" {
		return ""
	}
	return textToAnchor(heading)
}

var anchorStrip = regexp.MustCompile(`[^0-9a-z-]`)

func textToAnchor(text string) string {
	anchor := strings.ToLower(text)
	anchor = strings.ReplaceAll(anchor, " ", "-")
	anchor = anchorStrip.ReplaceAllString(anchor, "")
	return "#" + anchor
}

// splitSections partitions content along # and ## headings, keeping track of
// the heading hierarchy. Headings inside fenced code blocks are ignored.
func splitSections(content string) []section {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	lines := strings.Split(content, "\n")

	var sections []section
	current := section{}
	var body []string
	inFence := false

	flush := func() {
		text := strings.TrimSpace(strings.Join(body, "\n"))
		if text != "" {
			sections = append(sections, section{h1: current.h1, h2: current.h2, body: text})
		}
		body = body[:0]
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			body = append(body, line)
			continue
		}
		if !inFence {
			if heading, ok := strings.CutPrefix(trimmed, "# "); ok {
				flush()
				current.h1 = strings.TrimSpace(heading)
				current.h2 = ""
				continue
			}
			if heading, ok := strings.CutPrefix(trimmed, "## "); ok {
				flush()
				current.h2 = strings.TrimSpace(heading)
				continue
			}
		}
		body = append(body, line)
	}
	flush()

	return sections
}

// accumulateParagraphs packs paragraphs into chunks of at most target bytes,
// carrying the last paragraph over as overlap between consecutive chunks.
func accumulateParagraphs(content string, target, overlap int) []string {
	paragraphs := strings.Split(content, "\n\n")
	chunks := make([]string, 0)
	current := make([]string, 0)
	currentLen := 0

	for _, paragraph := range paragraphs {
		p := strings.TrimSpace(paragraph)
		if p == "" {
			continue
		}

		if currentLen+len(p) > target && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, "\n\n"))
			if overlap > 0 {
				last := current[len(current)-1]
				if len(last) <= overlap {
					current = []string{last}
					currentLen = len(last)
				} else {
					current = current[:0]
					currentLen = 0
				}
			} else {
				current = current[:0]
				currentLen = 0
			}
		}

		current = append(current, p)
		currentLen += len(p)
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, "\n\n"))
	}

	return chunks
}
