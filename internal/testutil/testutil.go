// Package testutil provides shared test helpers for corpora, vector stores,
// and fake model providers.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/starford/clarirag/internal/embedding"
	"github.com/starford/clarirag/internal/vectorstore"
)

// TestStore creates a vector store in a temporary directory that is closed
// automatically.
func TestStore(t *testing.T) *vectorstore.Store {
	t.Helper()
	s, err := vectorstore.Open(filepath.Join(t.TempDir(), "index"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// WriteCorpus creates a temporary directory holding files, keyed by slash
// separated relative path, and returns its path.
func WriteCorpus(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

// FakeEmbedder wraps the hash embedder and counts calls.
type FakeEmbedder struct {
	*embedding.Hash
	calls atomic.Int64
	Err   error
}

// NewFakeEmbedder returns a counting embedder with dim dimensions.
func NewFakeEmbedder(dim int) *FakeEmbedder {
	return &FakeEmbedder{Hash: embedding.NewHash(dim)}
}

// Embed counts the call and delegates to the hash embedder unless Err is set.
func (f *FakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls.Add(1)
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Hash.Embed(ctx, text)
}

// Calls returns how many times Embed was called.
func (f *FakeEmbedder) Calls() int { return int(f.calls.Load()) }

// FakeGenerator records prompts and returns a canned answer.
type FakeGenerator struct {
	Answer string
	Err    error

	mu      sync.Mutex
	prompts []string
}

// Generate records prompt and returns Answer or Err.
func (g *FakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.mu.Unlock()
	if g.Err != nil {
		return "", g.Err
	}
	return g.Answer, nil
}

// Model returns "fake/test".
func (g *FakeGenerator) Model() string { return "fake/test" }

// Prompts returns the prompts received so far.
func (g *FakeGenerator) Prompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.prompts...)
}
