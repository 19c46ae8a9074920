package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/starford/clarirag/internal/apperr"
	"github.com/starford/clarirag/internal/models"
)

// Meta describes how a collection was built.
type Meta struct {
	Dimension      int       `json:"dimension"`
	EmbeddingModel string    `json:"embedding_model"`
	RunID          string    `json:"run_id"`
	CreatedAt      time.Time `json:"created_at"`
	Fingerprint    string    `json:"corpus_fingerprint"`
}

// Info is a collection summary.
type Info struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	Meta
}

// Store manages the collections under a root directory.
type Store struct {
	root string

	mu    sync.RWMutex
	conns map[string]*sql.DB
}

// Open creates the root directory if needed and returns a Store over it.
func Open(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("vectorstore: create root: %w", err)
	}
	return &Store{root: root, conns: make(map[string]*sql.DB)}, nil
}

// Root returns the store directory.
func (s *Store) Root() string { return s.root }

// Close closes every open collection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for name, conn := range s.conns {
		errs = append(errs, conn.Close())
		delete(s.conns, name)
	}
	return errors.Join(errs...)
}

// Reset deletes the collection, including its on-disk directory, and creates
// it again empty with the given metadata.
func (s *Store) Reset(ctx context.Context, name string, meta Meta) error {
	if err := validName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if conn, ok := s.conns[name]; ok {
		conn.Close()
		delete(s.conns, name)
	}

	dir := filepath.Join(s.root, name)
	if err := removeAll(dir); err != nil {
		return fmt.Errorf("vectorstore: remove %s: %w", name, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("vectorstore: create %s: %w", name, err)
	}

	conn, err := openDB(filepath.Join(dir, dbFile))
	if err != nil {
		return err
	}
	s.conns[name] = conn

	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}
	return writeMeta(ctx, conn, meta)
}

// Add inserts entries into an existing collection in a single transaction.
// Every embedding must match the collection dimension; a collection created
// with dimension 0 adopts the length of the first embedding.
func (s *Store) Add(ctx context.Context, name string, entries []models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, err := s.conn(name)
	if err != nil {
		return err
	}
	meta, err := readMeta(ctx, conn)
	if err != nil {
		return err
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("vectorstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO entries (id, embedding, document, metadata) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("vectorstore: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if meta.Dimension == 0 {
			meta.Dimension = len(e.Embedding)
			if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO meta (key, value) VALUES ('dimension', ?)`, strconv.Itoa(meta.Dimension)); err != nil {
				return fmt.Errorf("vectorstore: set dimension: %w", err)
			}
		}
		if len(e.Embedding) != meta.Dimension {
			return fmt.Errorf("vectorstore: entry %s has %d dimensions, collection %s has %d: %w",
				e.ID, len(e.Embedding), name, meta.Dimension, apperr.ErrDimensionMismatch)
		}

		md := e.Metadata
		if md == nil {
			md = map[string]any{}
		}
		mdJSON, err := json.Marshal(md)
		if err != nil {
			return fmt.Errorf("vectorstore: encode metadata %s: %w", e.ID, err)
		}

		if _, err := stmt.ExecContext(ctx, e.ID, encodeVector(e.Embedding), e.Document, string(mdJSON)); err != nil {
			return fmt.Errorf("vectorstore: insert %s: %w", e.ID, err)
		}
	}

	return tx.Commit()
}

// Query returns the k entries nearest to vec, closest first. Fewer are
// returned when the collection is smaller than k.
func (s *Store) Query(ctx context.Context, name string, vec []float32, k int) ([]models.RetrievalResult, error) {
	if k < 1 {
		return nil, fmt.Errorf("vectorstore: k must be positive: %w", apperr.ErrInvalidRequest)
	}

	conn, err := s.readConn(name)
	if err != nil {
		return nil, err
	}
	defer s.mu.RUnlock()

	meta, err := readMeta(ctx, conn)
	if err != nil {
		return nil, err
	}
	if meta.Dimension != 0 && len(vec) != meta.Dimension {
		return nil, fmt.Errorf("vectorstore: query has %d dimensions, collection %s has %d: %w",
			len(vec), name, meta.Dimension, apperr.ErrDimensionMismatch)
	}

	rows, err := conn.QueryContext(ctx, `SELECT embedding, document, metadata FROM entries ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: scan %s: %w", name, err)
	}
	defer rows.Close()

	var hits []models.RetrievalResult
	for rows.Next() {
		var (
			blob   []byte
			doc    string
			mdJSON string
		)
		if err := rows.Scan(&blob, &doc, &mdJSON); err != nil {
			return nil, fmt.Errorf("vectorstore: read row: %w", err)
		}
		emb, err := decodeVector(blob)
		if err != nil {
			return nil, err
		}
		md := map[string]any{}
		if err := json.Unmarshal([]byte(mdJSON), &md); err != nil {
			return nil, fmt.Errorf("vectorstore: decode metadata: %w", err)
		}
		hits = append(hits, models.RetrievalResult{
			Content:  doc,
			Metadata: md,
			Distance: CosineDistance(vec, emb),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Info returns the metadata and entry count of a collection.
func (s *Store) Info(ctx context.Context, name string) (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, err := s.conn(name)
	if err != nil {
		return Info{}, err
	}
	meta, err := readMeta(ctx, conn)
	if err != nil {
		return Info{}, err
	}
	var n int
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return Info{}, fmt.Errorf("vectorstore: count %s: %w", name, err)
	}
	return Info{Name: name, Count: n, Meta: meta}, nil
}

// List returns a summary of every collection under the root, sorted by name.
func (s *Store) List(ctx context.Context) ([]Info, error) {
	dirs, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: list: %w", err)
	}

	var out []Info
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		info, err := s.Info(ctx, d.Name())
		if errors.Is(err, apperr.ErrCollectionNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, nil
}

// conn returns the open handle for name, opening an existing database on
// first use. Callers hold s.mu for writing.
func (s *Store) conn(name string) (*sql.DB, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	if c, ok := s.conns[name]; ok {
		return c, nil
	}

	path := filepath.Join(s.root, name, dbFile)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("vectorstore: collection %q: %w", name, apperr.ErrCollectionNotFound)
		}
		return nil, fmt.Errorf("vectorstore: stat %s: %w", name, err)
	}

	c, err := openDB(path)
	if err != nil {
		return nil, err
	}
	s.conns[name] = c
	return c, nil
}

// readConn returns the handle for name with s.mu held for reading. The caller
// must release the lock when it returns no error.
func (s *Store) readConn(name string) (*sql.DB, error) {
	s.mu.RLock()
	if c, ok := s.conns[name]; ok {
		return c, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	_, err := s.conn(name)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	c, ok := s.conns[name]
	if !ok {
		s.mu.RUnlock()
		return nil, fmt.Errorf("vectorstore: collection %q: %w", name, apperr.ErrCollectionNotFound)
	}
	return c, nil
}

func writeMeta(ctx context.Context, conn *sql.DB, m Meta) error {
	pairs := map[string]string{
		"dimension":          strconv.Itoa(m.Dimension),
		"embedding_model":    m.EmbeddingModel,
		"run_id":             m.RunID,
		"created_at":         m.CreatedAt.Format(time.RFC3339Nano),
		"corpus_fingerprint": m.Fingerprint,
	}
	for k, v := range pairs {
		if _, err := conn.ExecContext(ctx, `INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("vectorstore: write meta %s: %w", k, err)
		}
	}
	return nil
}

func readMeta(ctx context.Context, conn *sql.DB) (Meta, error) {
	rows, err := conn.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return Meta{}, fmt.Errorf("vectorstore: read meta: %w", err)
	}
	defer rows.Close()

	var m Meta
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return Meta{}, err
		}
		switch k {
		case "dimension":
			m.Dimension, _ = strconv.Atoi(v)
		case "embedding_model":
			m.EmbeddingModel = v
		case "run_id":
			m.RunID = v
		case "created_at":
			m.CreatedAt, _ = time.Parse(time.RFC3339Nano, v)
		case "corpus_fingerprint":
			m.Fingerprint = v
		}
	}
	return m, rows.Err()
}

func validName(name string) error {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return fmt.Errorf("vectorstore: invalid collection name %q: %w", name, apperr.ErrInvalidRequest)
	}
	return nil
}

// removeAll deletes dir, clearing read-only permission bits and retrying once
// when the first attempt is refused.
func removeAll(dir string) error {
	err := os.RemoveAll(dir)
	if err == nil || !errors.Is(err, fs.ErrPermission) {
		return err
	}
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		mode := os.FileMode(0o600)
		if d.IsDir() {
			mode = 0o700
		}
		_ = os.Chmod(path, mode)
		return nil
	})
	return os.RemoveAll(dir)
}
