// Package chunker turns documents into bounded-size, context-preserving chunks.
//
// Documentation is cut along its heading hierarchy: every heading of level 1 to 4
// opens a section that runs until the next heading of the same or a higher
// level. Oversized sections are split on level 3 to 6 sub-headings and then on
// paragraph boundaries. Source and manifest files are kept whole.
package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/starford/clarirag/internal/models"
	"github.com/starford/clarirag/internal/parser"
)

// Default size limits, in characters.
const (
	DefaultMinChars        = 50
	DefaultMaxSection      = 2000
	DefaultMaxSubsection   = 2500
	DefaultParagraphTarget = 1500
)

const (
	contextBefore = 2
	contextAfter  = 2
	paragraphSep  = "\n\n"
)

var subheadingRe = regexp.MustCompile(`\n(#{3,6}[^\n]+)\n`)

// Chunker splits documents into chunks.
type Chunker struct {
	minChars        int
	maxSection      int
	maxSubsection   int
	paragraphTarget int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithMinChars sets the length below which chunks are discarded.
func WithMinChars(n int) Option {
	return func(c *Chunker) {
		if n >= 0 {
			c.minChars = n
		}
	}
}

// WithMaxSection sets the section length above which a section is split.
func WithMaxSection(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.maxSection = n
		}
	}
}

// WithMaxSubsection sets the length above which a sub-heading part is
// further split into paragraphs.
func WithMaxSubsection(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.maxSubsection = n
		}
	}
}

// WithParagraphTarget sets the soft size of paragraph-packed chunks.
func WithParagraphTarget(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.paragraphTarget = n
		}
	}
}

// New creates a Chunker with the given options applied over the defaults.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		minChars:        DefaultMinChars,
		maxSection:      DefaultMaxSection,
		maxSubsection:   DefaultMaxSubsection,
		paragraphTarget: DefaultParagraphTarget,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Document chunks one documentation file. headers must come from
// parser.ParseHeaders(content). Chunks shorter than the minimum length are
// never returned.
func (c *Chunker) Document(content string, headers []models.HeaderNode, filename string) []models.Chunk {
	if len(headers) == 0 {
		body := strings.TrimSpace(content)
		if body == "" {
			return nil
		}
		return c.keep([]models.Chunk{{
			Content:     body,
			Title:       filename,
			SectionType: models.SectionDocument,
		}})
	}

	lines := strings.Split(content, "\n")
	var out []models.Chunk

	for i, h := range headers {
		end := len(lines)
		for j := i + 1; j < len(headers); j++ {
			if headers[j].Level <= h.Level {
				end = headers[j].Line
				break
			}
		}

		section := strings.TrimSpace(strings.Join(lines[h.Line:end], "\n"))
		if charLen(section) < c.minChars {
			continue
		}

		parent := parser.ParentTitles(headers, i)
		sectionType := ClassifySection(section)
		window := contextHeaders(headers, i)

		var produced []models.Chunk
		if charLen(section) > c.maxSection {
			produced = c.SplitLargeSection(section, h.Title, parent, sectionType)
		} else {
			produced = []models.Chunk{{
				Content:       section,
				Title:         h.Title,
				ParentContext: parent,
				SectionType:   sectionType,
			}}
		}

		for k := range produced {
			produced[k].ContextHeaders = window
		}
		out = append(out, produced...)
	}

	return c.keep(out)
}

// File turns a source or manifest file into a single chunk typed as fileType.
func (c *Chunker) File(content, filename, fileType string) []models.Chunk {
	body := strings.TrimSpace(content)
	if body == "" {
		return nil
	}
	return c.keep([]models.Chunk{{
		Content:     body,
		Title:       filename,
		SectionType: fileType,
	}})
}

// SplitLargeSection splits an oversized section on its level 3 to 6 sub-headings.
// Text before the first sub-heading is merged into the first part. Parts still
// above the subsection limit, and sections without sub-headings, are packed by
// paragraph.
func (c *Chunker) SplitLargeSection(content, title, parent, sectionType string) []models.Chunk {
	parts := splitKeepingHeadings(content)
	if len(parts) == 1 {
		return c.SplitByParagraphs(content, title, parent, sectionType)
	}

	var out []models.Chunk
	pending := parts[0]
	for i := 1; i+1 < len(parts); i += 2 {
		heading, body := parts[i], parts[i+1]
		subTitle := title + " - " + strings.TrimSpace(strings.Trim(heading, "#"))

		text := heading + "\n" + body
		if strings.TrimSpace(pending) != "" {
			text = pending + "\n" + text
		}
		pending = ""

		if charLen(text) > c.maxSubsection {
			out = append(out, c.SplitByParagraphs(text, subTitle, parent, sectionType)...)
			continue
		}
		out = append(out, models.Chunk{
			Content:       strings.TrimSpace(text),
			Title:         subTitle,
			ParentContext: parent,
			SectionType:   sectionType,
		})
	}
	return out
}

// SplitByParagraphs packs blank-line separated paragraphs greedily into
// chunks of about the paragraph target. A paragraph is never cut, so one
// longer than the target forms its own chunk.
func (c *Chunker) SplitByParagraphs(content, title, parent, sectionType string) []models.Chunk {
	var out []models.Chunk
	flush := func(text string) {
		out = append(out, models.Chunk{
			Content:       strings.TrimSpace(text),
			Title:         title,
			ParentContext: parent,
			SectionType:   sectionType,
		})
	}

	var current string
	for _, para := range strings.Split(content, paragraphSep) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if current != "" && charLen(current)+charLen(para) > c.paragraphTarget {
			flush(current)
			current = para
			continue
		}
		if current != "" {
			current += paragraphSep
		}
		current += para
	}
	if strings.TrimSpace(current) != "" {
		flush(current)
	}
	return out
}

// ClassifySection assigns a section type by scanning the lowercased content.
// The first matching rule wins: Clarity code or definitions, then
// example/tutorial, install/setup, error/warning.
func ClassifySection(content string) string {
	lower := strings.ToLower(content)
	switch {
	case strings.Contains(lower, "```clarity") || strings.Contains(lower, "(define-"):
		return models.SectionAPIReference
	case strings.Contains(lower, "example") || strings.Contains(lower, "tutorial"):
		return models.SectionTutorial
	case strings.Contains(lower, "install") || strings.Contains(lower, "setup"):
		return models.SectionSetup
	case strings.Contains(lower, "error") || strings.Contains(lower, "warning"):
		return models.SectionTroubleshooting
	default:
		return models.SectionDocumentation
	}
}

// splitKeepingHeadings splits content around sub-heading lines and returns
// [before, heading1, body1, heading2, body2, ...]. The newlines framing each
// heading are consumed.
func splitKeepingHeadings(content string) []string {
	matches := subheadingRe.FindAllStringSubmatchIndex(content, -1)
	if len(matches) == 0 {
		return []string{content}
	}

	parts := make([]string, 0, 2*len(matches)+1)
	prev := 0
	for _, m := range matches {
		parts = append(parts, content[prev:m[0]], content[m[2]:m[3]])
		prev = m[1]
	}
	return append(parts, content[prev:])
}

// contextHeaders returns the titles of up to two headings on either side of
// headers[i], including it.
func contextHeaders(headers []models.HeaderNode, i int) []string {
	from := max(0, i-contextBefore)
	to := min(len(headers), i+contextAfter+1)
	titles := make([]string, 0, to-from)
	for _, h := range headers[from:to] {
		titles = append(titles, h.Title)
	}
	return titles
}

func (c *Chunker) keep(chunks []models.Chunk) []models.Chunk {
	out := chunks[:0]
	for _, ch := range chunks {
		if charLen(strings.TrimSpace(ch.Content)) >= c.minChars {
			out = append(out, ch)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func charLen(s string) int {
	return utf8.RuneCountInString(s)
}
