package vectorstore

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/clarirag/internal/apperr"
	"github.com/starford/clarirag/internal/models"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func entry(id string, vec ...float32) models.Entry {
	return models.Entry{
		ID:        id,
		Embedding: vec,
		Document:  "doc " + id,
		Metadata:  map[string]any{"source_file": id + ".md"},
	}
}

func TestQueryOrdersByDistance(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Reset(ctx, "docs", Meta{Dimension: 2}); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	err := s.Add(ctx, "docs", []models.Entry{
		entry("docs_0", 0, 1),
		entry("docs_1", 1, 0),
		entry("docs_2", 1, 1),
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	hits, err := s.Query(ctx, "docs", []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("len(hits) = %d, want 2", len(hits))
	}
	if hits[0].Content != "doc docs_1" {
		t.Errorf("first hit = %q, want %q", hits[0].Content, "doc docs_1")
	}
	if hits[0].Distance > 1e-6 {
		t.Errorf("identical vector distance = %v, want 0", hits[0].Distance)
	}
	want := 1 - 1/math.Sqrt2
	if math.Abs(hits[1].Distance-want) > 1e-6 {
		t.Errorf("second distance = %v, want %v", hits[1].Distance, want)
	}
	if got := hits[0].MetaString("source_file", ""); got != "docs_1.md" {
		t.Errorf("source_file = %q, want %q", got, "docs_1.md")
	}
}

func TestQueryKLargerThanCollection(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_ = s.Reset(ctx, "code_samples", Meta{})
	_ = s.Add(ctx, "code_samples", []models.Entry{entry("code_samples_0", 1, 2, 3)})

	hits, err := s.Query(ctx, "code_samples", []float32{1, 2, 3}, 20)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("len(hits) = %d, want 1", len(hits))
	}
}

func TestQueryMissingCollection(t *testing.T) {
	s := testStore(t)
	_, err := s.Query(context.Background(), "docs", []float32{1}, 1)
	if !errors.Is(err, apperr.ErrCollectionNotFound) {
		t.Fatalf("err = %v, want ErrCollectionNotFound", err)
	}
}

func TestAddRejectsDimensionMismatch(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_ = s.Reset(ctx, "docs", Meta{Dimension: 3})
	err := s.Add(ctx, "docs", []models.Entry{entry("docs_0", 1, 2)})
	if !errors.Is(err, apperr.ErrDimensionMismatch) {
		t.Fatalf("err = %v, want ErrDimensionMismatch", err)
	}

	info, err := s.Info(ctx, "docs")
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.Count != 0 {
		t.Errorf("count after failed add = %d, want 0", info.Count)
	}
}

func TestAddAdoptsFirstDimension(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_ = s.Reset(ctx, "docs", Meta{})
	if err := s.Add(ctx, "docs", []models.Entry{entry("docs_0", 1, 0, 0, 0)}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	info, _ := s.Info(ctx, "docs")
	if info.Dimension != 4 {
		t.Errorf("dimension = %d, want 4", info.Dimension)
	}

	_, err := s.Query(ctx, "docs", []float32{1, 0}, 1)
	if !errors.Is(err, apperr.ErrDimensionMismatch) {
		t.Errorf("query err = %v, want ErrDimensionMismatch", err)
	}
}

func TestAddDuplicateIDFails(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_ = s.Reset(ctx, "docs", Meta{})
	err := s.Add(ctx, "docs", []models.Entry{entry("docs_0", 1), entry("docs_0", 1)})
	if err == nil {
		t.Fatal("expected duplicate id error")
	}
}

func TestResetReplacesContentsAndMeta(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_ = s.Reset(ctx, "docs", Meta{RunID: "first", Fingerprint: "aaa"})
	_ = s.Add(ctx, "docs", []models.Entry{entry("docs_0", 1), entry("docs_1", 2)})

	if err := s.Reset(ctx, "docs", Meta{RunID: "second", EmbeddingModel: "hash/1"}); err != nil {
		t.Fatalf("second Reset: %v", err)
	}
	info, err := s.Info(ctx, "docs")
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.Count != 0 {
		t.Errorf("count = %d, want 0", info.Count)
	}
	if info.RunID != "second" || info.EmbeddingModel != "hash/1" {
		t.Errorf("meta = %+v, want run second / hash/1", info.Meta)
	}
	if info.Fingerprint != "" {
		t.Errorf("fingerprint survived reset: %q", info.Fingerprint)
	}
	if info.CreatedAt.IsZero() {
		t.Error("created_at not set")
	}
}

func TestResetRemovesStrayFiles(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_ = s.Reset(ctx, "docs", Meta{})
	stray := filepath.Join(s.Root(), "docs", "stray.bin")
	if err := os.WriteFile(stray, []byte("x"), 0o400); err != nil {
		t.Fatal(err)
	}

	if err := s.Reset(ctx, "docs", Meta{}); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, err := os.Stat(stray); !os.IsNotExist(err) {
		t.Errorf("stray file still present: %v", err)
	}
}

func TestResetClearsReadOnlyDirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}
	s := testStore(t)
	ctx := context.Background()

	_ = s.Reset(ctx, "docs", Meta{})
	locked := filepath.Join(s.Root(), "docs", "locked")
	if err := os.Mkdir(locked, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(locked, "segment.bin"), []byte("x"), 0o400); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(locked, 0o500); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0o700) })

	if err := os.RemoveAll(locked); err == nil {
		t.Fatal("expected plain removal of a read-only directory to fail")
	}
	if err := s.Reset(ctx, "docs", Meta{}); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, err := os.Stat(locked); !os.IsNotExist(err) {
		t.Errorf("read-only directory still present: %v", err)
	}
}

func TestReopenPersistedCollection(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()

	s1, err := Open(root)
	if err != nil {
		t.Fatal(err)
	}
	_ = s1.Reset(ctx, "docs", Meta{Dimension: 2})
	_ = s1.Add(ctx, "docs", []models.Entry{entry("docs_0", 1, 0)})
	s1.Close()

	s2, err := Open(root)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	list, err := s2.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].Name != "docs" || list[0].Count != 1 {
		t.Errorf("List = %+v, want one docs collection with 1 entry", list)
	}
}

func TestInvalidCollectionName(t *testing.T) {
	s := testStore(t)
	err := s.Reset(context.Background(), "../escape", Meta{})
	if !errors.Is(err, apperr.ErrInvalidRequest) {
		t.Errorf("err = %v, want ErrInvalidRequest", err)
	}
}

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2}, []float32{2, 4}, 0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"zero", []float32{0, 0}, []float32{1, 0}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CosineDistance(tt.a, tt.b); math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("CosineDistance = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVectorRoundTrip(t *testing.T) {
	in := []float32{0.5, -1.25, 3}
	out, err := decodeVector(encodeVector(in))
	if err != nil {
		t.Fatal(err)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], in[i])
		}
	}
	if _, err := decodeVector([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated blob")
	}
}
