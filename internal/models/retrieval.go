package models

// RetrievalResult is one nearest-neighbour hit. Distance is cosine distance;
// lower is more relevant.
type RetrievalResult struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
	Distance float64        `json:"distance"`
}

// Retrieval holds the hits of both collections for a single query.
type Retrieval struct {
	Code    []RetrievalResult `json:"code"`
	Docs    []RetrievalResult `json:"docs"`
	Warning string            `json:"warning,omitempty"`
}

// MetaString returns metadata[key] as a string, or def when absent or empty.
func (r RetrievalResult) MetaString(key, def string) string {
	v, ok := r.Metadata[key]
	if !ok || v == nil {
		return def
	}
	s, ok := v.(string)
	if !ok {
		return def
	}
	if s == "" {
		return def
	}
	return s
}
