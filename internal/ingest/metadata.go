package ingest

import (
	"fmt"
	"path"
	"strings"

	"github.com/starford/clarirag/internal/models"
)

const (
	contentTypeDocs  = "clarity_docs"
	fileTypeDocs     = "documentation"
	fileTypeSource   = "clarity"
	fileTypeManifest = "toml"
	generalCategory  = "general"
	chapterPrefix    = "ch"
	listSeparator    = ", "
	noDirectory      = "."
)

// docMetadata builds the metadata shared by every chunk of one documentation
// file. Frontmatter keys may override the path-derived keys, except
// doc_category.
func docMetadata(rel, sum string, frontmatter map[string]any) map[string]any {
	dir := path.Dir(rel)
	if dir == noDirectory {
		dir = ""
	}

	md := map[string]any{
		"source_file":     rel,
		"filename":        path.Base(rel),
		"directory":       dir,
		"file_type":       fileTypeDocs,
		"content_type":    contentTypeDocs,
		"source_checksum": sum,
	}
	for k, v := range frontmatter {
		md[k] = v
	}

	md["doc_category"] = generalCategory
	if first, _, _ := strings.Cut(rel, "/"); strings.HasPrefix(first, chapterPrefix) {
		md["doc_category"] = first
	}
	return md
}

// codeMetadata builds the metadata of a source or manifest file.
func codeMetadata(rel, sum, fileType string, project projectInfo) map[string]any {
	folders := path.Dir(rel)
	if folders == noDirectory {
		folders = ""
	}

	return map[string]any{
		"folders":         folders,
		"filename":        path.Base(rel),
		"rel_path":        rel,
		"file_type":       fileType,
		"has_toml":        project.found,
		"has_manifest":    project.found,
		"project_dir":     project.dir,
		"project_name":    project.name,
		"source_checksum": sum,
	}
}

// chunkMetadata layers the per-chunk keys over the file metadata and coerces
// every value to a scalar.
func chunkMetadata(base map[string]any, c models.Chunk) map[string]any {
	md := make(map[string]any, len(base)+6)
	for k, v := range base {
		md[k] = v
	}
	md["chunk_title"] = c.Title
	md["parent_context"] = c.ParentContext
	md["section_type"] = c.SectionType
	md["chunk_size"] = len([]rune(c.Content))
	md["context_headers"] = strings.Join(c.ContextHeaders, listSeparator)

	for k, v := range md {
		md[k] = scalar(v)
	}
	return md
}

// scalar flattens v into a string, bool, or number. Lists are joined with
// ", " and nil becomes "".
func scalar(v any) any {
	switch t := v.(type) {
	case nil:
		return ""
	case string, bool, int, int64, float64:
		return t
	case int32:
		return int64(t)
	case float32:
		return float64(t)
	case []string:
		return strings.Join(t, listSeparator)
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = fmt.Sprint(scalar(e))
		}
		return strings.Join(parts, listSeparator)
	default:
		return fmt.Sprint(t)
	}
}
