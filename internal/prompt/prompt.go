// Package prompt assembles retrieved chunks and a question into a single
// generation prompt.
package prompt

import (
	"fmt"
	"slices"
	"strings"

	"github.com/starford/clarirag/internal/models"
)

// Limits on how many hits of each kind reach the prompt.
const (
	MaxDocs = 5
	MaxCode = 3
)

// DefaultSystemMessage opens the prompt when no system message is given.
const DefaultSystemMessage = "You are an expert Clarity smart contract developer. " +
	"Use the provided documentation and code examples to answer the user's question accurately and comprehensively."

const (
	docsBanner = "=== CLARITY DOCUMENTATION ==="
	codeBanner = "=== CLARITY CODE EXAMPLES ==="

	instructions = `Instructions:
- Provide a clear, accurate answer based on the documentation and code examples above
- Include relevant Clarity code snippets when helpful
- Reference the documentation sources when appropriate
- If the question can't be fully answered from the provided context, mention what additional information might be needed`
)

// Relevance converts a cosine distance into a score in [0, 1].
func Relevance(distance float64) float64 {
	if distance > 1 {
		return 0
	}
	return 1 - distance
}

// Build renders the prompt: system message, the closest documentation and
// code hits, the question and answering instructions. An empty section is
// left out.
func Build(r models.Retrieval, query, systemMessage string) string {
	if systemMessage == "" {
		systemMessage = DefaultSystemMessage
	}

	var parts []string

	if len(r.Docs) > 0 {
		parts = append(parts, docsBanner)
		for i, d := range closest(r.Docs, MaxDocs) {
			parts = append(parts,
				fmt.Sprintf("[DOC %d] %s (Relevance: %.3f)", i+1, d.MetaString("chunk_title", "Untitled"), Relevance(d.Distance)),
				"Source: "+d.MetaString("source_file", "Unknown"),
			)
			if ctx := d.MetaString("parent_context", ""); ctx != "" {
				parts = append(parts, "Context: "+ctx)
			}
			parts = append(parts, d.Content, "")
		}
	}

	if len(r.Code) > 0 {
		parts = append(parts, codeBanner)
		for i, c := range closest(r.Code, MaxCode) {
			parts = append(parts,
				fmt.Sprintf("[CODE %d] %s (Relevance: %.3f)", i+1, c.MetaString("filename", "Unknown"), Relevance(c.Distance)),
				"Path: "+c.MetaString("rel_path", "Unknown"),
				c.Content,
				"",
			)
		}
	}

	var b strings.Builder
	b.WriteString(systemMessage)
	b.WriteString("\n\n")
	b.WriteString(strings.Join(parts, "\n"))
	b.WriteString("\n\nUser Question: ")
	b.WriteString(query)
	b.WriteString("\n\n")
	b.WriteString(instructions)
	b.WriteString("\n\nAnswer:")
	return b.String()
}

// closest returns at most n hits in ascending distance order without
// modifying hits.
func closest(hits []models.RetrievalResult, n int) []models.RetrievalResult {
	sorted := slices.Clone(hits)
	slices.SortStableFunc(sorted, func(a, b models.RetrievalResult) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		default:
			return 0
		}
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
