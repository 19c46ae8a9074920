// Package ingest rebuilds the vector collections from the corpus directories.
//
// A reindex run is destructive: the target collection is deleted and rebuilt
// from scratch in one bulk insert. Files that cannot be read are reported as
// warnings and skipped.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/starford/clarirag/internal/apperr"
	"github.com/starford/clarirag/internal/checksum"
	"github.com/starford/clarirag/internal/chunker"
	"github.com/starford/clarirag/internal/embedding"
	"github.com/starford/clarirag/internal/models"
	"github.com/starford/clarirag/internal/parser"
	"github.com/starford/clarirag/internal/storage"
	"github.com/starford/clarirag/internal/vectorstore"
)

// Kind selects how a corpus is chunked.
type Kind string

const (
	KindDocs Kind = "docs"
	KindCode Kind = "code"
)

// Defaults for corpus file selection.
var (
	DefaultDocExts      = []string{".md", ".mdx"}
	DefaultSourceExt    = ".clar"
	DefaultManifestName = "Clarinet.toml"
)

// Target is a corpus directory and the collection it is indexed into.
type Target struct {
	Kind       Kind
	Root       string
	Collection string
}

// Result summarises a reindex run.
type Result struct {
	Collection  string `json:"collection"`
	RunID       string `json:"run_id"`
	Files       int    `json:"files"`
	Chunks      int    `json:"chunks"`
	Warnings    int    `json:"warnings"`
	Fingerprint string `json:"corpus_fingerprint"`
	Skipped     bool   `json:"skipped,omitempty"`
}

// Index is the part of the vector store the pipeline writes to.
type Index interface {
	Reset(ctx context.Context, name string, meta vectorstore.Meta) error
	Add(ctx context.Context, name string, entries []models.Entry) error
	Info(ctx context.Context, name string) (vectorstore.Info, error)
}

var _ Index = (*vectorstore.Store)(nil)

// Pipeline turns corpus files into embedded collection entries.
type Pipeline struct {
	index    Index
	embedder embedding.Embedder
	chunker  *chunker.Chunker
	logger   *slog.Logger
	onEvent  EventCallback

	docExts      []string
	sourceExt    string
	manifestName string

	// One run at a time; watcher, scheduler and API may trigger concurrently.
	mu sync.Mutex
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithEvents registers a progress callback.
func WithEvents(cb EventCallback) Option {
	return func(p *Pipeline) { p.onEvent = cb }
}

// WithChunker replaces the default chunker.
func WithChunker(c *chunker.Chunker) Option {
	return func(p *Pipeline) { p.chunker = c }
}

// WithFileTypes overrides the documentation extensions, source extension and
// manifest file name. Empty values keep the defaults.
func WithFileTypes(docExts []string, sourceExt, manifestName string) Option {
	return func(p *Pipeline) {
		if len(docExts) > 0 {
			p.docExts = docExts
		}
		if sourceExt != "" {
			p.sourceExt = sourceExt
		}
		if manifestName != "" {
			p.manifestName = manifestName
		}
	}
}

// New creates a Pipeline writing to index with vectors from embedder.
func New(index Index, embedder embedding.Embedder, opts ...Option) *Pipeline {
	p := &Pipeline{
		index:        index,
		embedder:     embedder,
		chunker:      chunker.New(),
		logger:       slog.Default(),
		docExts:      DefaultDocExts,
		sourceExt:    DefaultSourceExt,
		manifestName: DefaultManifestName,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ReindexDocs rebuilds the docs collection from the documentation tree at root.
func (p *Pipeline) ReindexDocs(ctx context.Context, root string) (Result, error) {
	return p.Reindex(ctx, Target{Kind: KindDocs, Root: root, Collection: models.CollectionDocs})
}

// ReindexCode rebuilds the code collection from the sample projects at root.
func (p *Pipeline) ReindexCode(ctx context.Context, root string) (Result, error) {
	return p.Reindex(ctx, Target{Kind: KindCode, Root: root, Collection: models.CollectionCode})
}

// Reindex rebuilds t.Collection from t.Root.
func (p *Pipeline) Reindex(ctx context.Context, t Target) (Result, error) {
	return p.run(ctx, t, false)
}

// Refresh is Reindex, except that it does nothing when the corpus fingerprint
// matches the one stored with the collection.
func (p *Pipeline) Refresh(ctx context.Context, t Target) (Result, error) {
	return p.run(ctx, t, true)
}

// sourceFile is a listed corpus file with the type it is chunked as.
type sourceFile struct {
	models.FileMeta
	fileType string
}

func (p *Pipeline) run(ctx context.Context, t Target, skipUnchanged bool) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	res := Result{Collection: t.Collection, RunID: uuid.NewString()}

	fsys, err := storage.NewFS(t.Root)
	if err != nil {
		return res, fmt.Errorf("ingest: open corpus %s: %w: %w", t.Root, apperr.ErrCorpusMissing, err)
	}

	files, manifests, err := p.discover(fsys, t.Kind)
	if err != nil {
		return res, err
	}
	if len(files) == 0 {
		return res, fmt.Errorf("ingest: no files found in %s: %w", t.Root, apperr.ErrEmptyCorpus)
	}

	sums := make(map[string]string, len(files))
	for _, f := range files {
		sums[f.RelPath] = f.Checksum
	}
	res.Fingerprint = checksum.Fingerprint(sums)

	if skipUnchanged {
		info, err := p.index.Info(ctx, t.Collection)
		if err == nil && info.Fingerprint == res.Fingerprint && info.Count > 0 {
			res.Skipped = true
			p.logger.Info("ingest: corpus unchanged, skipping",
				slog.String("collection", t.Collection),
				slog.String("fingerprint", res.Fingerprint))
			return res, nil
		}
		if err != nil && !errors.Is(err, apperr.ErrCollectionNotFound) {
			return res, fmt.Errorf("ingest: collection info: %w", err)
		}
	}

	var projects manifestIndex
	if t.Kind == KindCode {
		projects = buildManifestIndex(fsys, manifests, p.logger)
	}

	p.emit(Event{Type: EventStart, Collection: t.Collection, RunID: res.RunID, Total: len(files)})
	p.logger.Info("ingest: started",
		slog.String("collection", t.Collection),
		slog.String("root", fsys.Root()),
		slog.Int("files", len(files)),
		slog.String("run_id", res.RunID))

	var entries []models.Entry
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if i == 0 || (i+1)%progressEvery == 0 {
			p.emit(Event{
				Type:       EventProgress,
				Collection: t.Collection,
				RunID:      res.RunID,
				Current:    i + 1,
				Total:      len(files),
				Message:    "processing " + f.RelPath,
			})
		}

		data, err := fsys.Read(f.RelPath)
		if err != nil {
			p.warn(&res, f.RelPath, "read failed", err)
			continue
		}
		if !utf8.Valid(data) {
			p.warn(&res, f.RelPath, "not valid UTF-8", nil)
			continue
		}

		var chunks []models.Chunk
		var base map[string]any
		switch t.Kind {
		case KindDocs:
			fm, body := parser.ExtractFrontmatter(string(data))
			chunks = p.chunker.Document(body, parser.ParseHeaders(body), path.Base(f.RelPath))
			base = docMetadata(f.RelPath, f.Checksum, fm)
		default:
			// A manifest resolves to its own directory.
			project := projects.lookup(path.Dir(f.RelPath))
			chunks = p.chunker.File(string(data), path.Base(f.RelPath), f.fileType)
			base = codeMetadata(f.RelPath, f.Checksum, f.fileType, project)
		}

		for _, c := range chunks {
			vec, err := p.embedder.Embed(ctx, c.Content)
			if err != nil {
				return res, fmt.Errorf("ingest: embed %s: %w", f.RelPath, err)
			}
			entries = append(entries, models.Entry{
				Embedding: vec,
				Document:  c.Content,
				Metadata:  chunkMetadata(base, c),
			})
		}
		res.Files++
	}

	if len(entries) == 0 {
		return res, fmt.Errorf("ingest: no chunks produced from %s: %w", t.Root, apperr.ErrEmptyCorpus)
	}
	for i := range entries {
		entries[i].ID = fmt.Sprintf("%s_%d", t.Collection, i)
	}

	meta := vectorstore.Meta{
		Dimension:      len(entries[0].Embedding),
		EmbeddingModel: p.embedder.Model(),
		RunID:          res.RunID,
		Fingerprint:    res.Fingerprint,
	}
	if err := p.index.Reset(ctx, t.Collection, meta); err != nil {
		return res, fmt.Errorf("ingest: reset %s: %w", t.Collection, err)
	}
	if err := p.index.Add(ctx, t.Collection, entries); err != nil {
		return res, fmt.Errorf("ingest: store %s: %w", t.Collection, err)
	}
	res.Chunks = len(entries)

	p.emit(Event{
		Type:           EventComplete,
		Collection:     t.Collection,
		RunID:          res.RunID,
		TotalProcessed: res.Chunks,
		FilesProcessed: res.Files,
	})
	p.logger.Info("ingest: complete",
		slog.String("collection", t.Collection),
		slog.Int("files", res.Files),
		slog.Int("chunks", res.Chunks),
		slog.Int("warnings", res.Warnings),
		slog.String("run_id", res.RunID))

	return res, nil
}

// discover lists the files to ingest. For code corpora sources come first,
// then manifests; the manifest paths are also returned on their own.
func (p *Pipeline) discover(fsys storage.Provider, kind Kind) ([]sourceFile, []string, error) {
	switch kind {
	case KindDocs:
		docs, err := fsys.List("", storage.Ext(p.docExts...))
		if err != nil {
			return nil, nil, fmt.Errorf("ingest: list docs: %w", err)
		}
		return tag(docs, fileTypeDocs), nil, nil

	case KindCode:
		isManifest := storage.Name(p.manifestName)
		found, err := fsys.List("", storage.AnyOf(storage.Ext(p.sourceExt), isManifest))
		if err != nil {
			return nil, nil, fmt.Errorf("ingest: list code: %w", err)
		}
		var sources, manifests []models.FileMeta
		var paths []string
		for _, m := range found {
			if isManifest(path.Base(m.RelPath)) {
				manifests = append(manifests, m)
				paths = append(paths, m.RelPath)
				continue
			}
			sources = append(sources, m)
		}
		return append(tag(sources, fileTypeSource), tag(manifests, fileTypeManifest)...), paths, nil

	default:
		return nil, nil, fmt.Errorf("ingest: corpus kind %q: %w", kind, apperr.ErrInvalidRequest)
	}
}

func tag(metas []models.FileMeta, fileType string) []sourceFile {
	out := make([]sourceFile, len(metas))
	for i, m := range metas {
		out[i] = sourceFile{FileMeta: m, fileType: fileType}
	}
	return out
}

func (p *Pipeline) warn(res *Result, rel, msg string, err error) {
	res.Warnings++
	attrs := []any{slog.String("path", rel), slog.String("collection", res.Collection)}
	text := rel + ": " + msg
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		text += ": " + err.Error()
	}
	p.logger.Warn("ingest: "+msg, attrs...)
	p.emit(Event{Type: EventWarning, Collection: res.Collection, RunID: res.RunID, Message: text})
}

func (p *Pipeline) emit(ev Event) {
	if p.onEvent != nil {
		p.onEvent(ev)
	}
}
