package ingest

import (
	"log/slog"
	"path"

	"github.com/pelletier/go-toml/v2"

	"github.com/starford/clarirag/internal/storage"
)

// projectInfo is the manifest a source file belongs to.
type projectInfo struct {
	found bool
	dir   string
	name  string
}

type clarinetManifest struct {
	Project struct {
		Name string `toml:"name"`
	} `toml:"project"`
}

// manifestIndex maps project directories (slash separated, relative to the
// corpus root, "." for the root) to project names.
type manifestIndex map[string]string

// buildManifestIndex reads every manifest up front so lookups never depend on
// walk order. An unreadable manifest still marks its directory as a project.
func buildManifestIndex(fsys storage.Provider, manifests []string, logger *slog.Logger) manifestIndex {
	idx := make(manifestIndex, len(manifests))
	for _, rel := range manifests {
		dir := path.Dir(rel)
		idx[dir] = ""

		data, err := fsys.Read(rel)
		if err != nil {
			logger.Warn("ingest: manifest read failed", slog.String("path", rel), slog.String("error", err.Error()))
			continue
		}
		var m clarinetManifest
		if err := toml.Unmarshal(data, &m); err != nil {
			logger.Warn("ingest: manifest parse failed", slog.String("path", rel), slog.String("error", err.Error()))
			continue
		}
		idx[dir] = m.Project.Name
	}
	return idx
}

// lookup ascends from dir towards the corpus root and returns the nearest
// directory holding a manifest.
func (idx manifestIndex) lookup(dir string) projectInfo {
	for {
		if name, ok := idx[dir]; ok {
			return projectInfo{found: true, dir: dir, name: name}
		}
		if dir == noDirectory || dir == "/" || dir == "" {
			return projectInfo{}
		}
		dir = path.Dir(dir)
	}
}
