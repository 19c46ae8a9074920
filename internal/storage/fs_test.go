package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/clarirag/internal/checksum"
)

func tempCorpus(t *testing.T, files map[string]string) *FS {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestRead(t *testing.T) {
	s := tempCorpus(t, map[string]string{"a/b/c.md": "deep"})
	got, err := s.Read("a/b/c.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestList_FiltersByExtension(t *testing.T) {
	s := tempCorpus(t, map[string]string{
		"a.md":        "a",
		"sub/b.MDX":   "b",
		"readme.txt":  "not md",
		".git/c.md":   "hidden",
		"sub/.d/e.md": "hidden too",
	})

	items, err := s.List("", Ext(".md", ".mdx"))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(items), items)
	}
	if items[0].RelPath != "a.md" || items[1].RelPath != "sub/b.MDX" {
		t.Errorf("paths = %q, %q", items[0].RelPath, items[1].RelPath)
	}
	if items[0].Checksum != checksum.Sum([]byte("a")) {
		t.Errorf("checksum = %q", items[0].Checksum)
	}
	if items[0].Size != 1 {
		t.Errorf("size = %d, want 1", items[0].Size)
	}
}

func TestList_SourcesAndManifests(t *testing.T) {
	s := tempCorpus(t, map[string]string{
		"p/Clarinet.toml":        "[project]",
		"p/contracts/token.clar": "(define-public)",
		"p/contracts/notes.md":   "x",
		"q/settings/Devnet.toml": "x",
	})

	items, err := s.List("", AnyOf(Ext(".clar"), Name("Clarinet.toml")))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(items), items)
	}
	if items[0].RelPath != "p/Clarinet.toml" || items[1].RelPath != "p/contracts/token.clar" {
		t.Errorf("paths = %q, %q", items[0].RelPath, items[1].RelPath)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempCorpus(t, nil)

	cases := []string{
		"../../etc/passwd",
		"../outside.md",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if _, err := s.List(p, nil); err == nil {
			t.Errorf("expected error for list of %q", p)
		}
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "missing"))
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp(t.TempDir(), "clarirag-test-*")
	_ = f.Close()
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
