// Package models defines the domain types shared by ingestion and retrieval.
package models

// Collection names of the vector index.
const (
	CollectionCode = "code_samples"
	CollectionDocs = "docs"
)

// HeaderNode is a markdown heading of level 1 to 4.
type HeaderNode struct {
	Level int
	Title string
	Line  int // zero-based line where the section begins
}

// Section types assigned to documentation chunks.
const (
	SectionAPIReference    = "api_reference"
	SectionTutorial        = "tutorial"
	SectionSetup           = "setup"
	SectionTroubleshooting = "troubleshooting"
	SectionDocumentation   = "documentation"
	SectionDocument        = "document" // headerless document
)

// Chunk is the atomic retrievable unit.
type Chunk struct {
	Content        string
	Title          string
	ParentContext  string
	SectionType    string
	ContextHeaders []string
	Metadata       map[string]any
	ID             string
}

// Entry is a chunk as persisted in a collection.
type Entry struct {
	ID        string
	Embedding []float32
	Document  string
	Metadata  map[string]any
}
