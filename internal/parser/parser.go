// Package parser extracts frontmatter and the heading structure from Markdown documents.
package parser

import (
	"strconv"
	"strings"

	"github.com/starford/clarirag/internal/models"
)

const (
	frontmatterDelim = "---"
	maxHeaderLevel   = 4
	breadcrumbSep    = " > "
)

// ExtractFrontmatter splits a leading frontmatter block off raw. The block is a
// flat list of "key: value" lines between two "---" markers. Values are kept as
// strings with surrounding quotes removed; sidebar_position is converted to an
// int when it parses as one.
//
// Text without a complete block is returned unchanged with an empty map.
func ExtractFrontmatter(raw string) (map[string]any, string) {
	fm := make(map[string]any)
	if !strings.HasPrefix(raw, frontmatterDelim) {
		return fm, raw
	}

	rest := raw[len(frontmatterDelim):]
	end := strings.Index(rest, frontmatterDelim)
	if end < 0 {
		return fm, raw
	}

	block := strings.TrimSpace(rest[:end])
	body := strings.TrimSpace(rest[end+len(frontmatterDelim):])

	for _, line := range strings.Split(block, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if key == "sidebar_position" {
			if n, err := strconv.Atoi(value); err == nil {
				fm[key] = n
				continue
			}
		}
		fm[key] = value
	}

	return fm, body
}

// ParseHeaders returns the level 1 to 4 headings of text in source order.
// Deeper headings are ignored.
func ParseHeaders(text string) []models.HeaderNode {
	var headers []models.HeaderNode
	for i, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#") {
			continue
		}
		title := strings.TrimLeft(trimmed, "#")
		level := len(trimmed) - len(title)
		if level > maxHeaderLevel {
			continue
		}
		headers = append(headers, models.HeaderNode{
			Level: level,
			Title: strings.TrimSpace(title),
			Line:  i,
		})
	}
	return headers
}

// ParentTitles returns the breadcrumb of direct ancestors of headers[i],
// outermost first. Siblings and later headings never appear.
func ParentTitles(headers []models.HeaderNode, i int) string {
	if i <= 0 || i >= len(headers) {
		return ""
	}

	lowest := headers[i].Level
	var parents []string
	for j := i - 1; j >= 0; j-- {
		if headers[j].Level >= lowest {
			continue
		}
		parents = append(parents, headers[j].Title)
		lowest = headers[j].Level
		if lowest == 1 {
			break
		}
	}

	// Collected inner to outer.
	for l, r := 0, len(parents)-1; l < r; l, r = l+1, r-1 {
		parents[l], parents[r] = parents[r], parents[l]
	}
	return strings.Join(parents, breadcrumbSep)
}
