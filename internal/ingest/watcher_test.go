package ingest_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/clarirag/internal/ingest"
	"github.com/starford/clarirag/internal/models"
	"github.com/starford/clarirag/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatch_ReindexesChangedCorpus(t *testing.T) {
	store := testutil.TestStore(t)
	p := ingest.New(store, testutil.NewFakeEmbedder(8), ingest.WithLogger(quietLogger()))
	root := testutil.WriteCorpus(t, map[string]string{"a/counter.clar": counterContract})
	target := ingest.Target{Kind: ingest.KindCode, Root: root, Collection: models.CollectionCode}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- ingest.Watch(ctx, p, []ingest.Target{target}, 50*time.Millisecond, quietLogger()) }()

	time.Sleep(100 * time.Millisecond)

	if err := os.MkdirAll(filepath.Join(root, "b"), 0o755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(root, "b", "token.clar"), []byte(tokenContract), 0o644); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		info, err := store.Info(context.Background(), models.CollectionCode)
		return err == nil && info.Count == 2
	}, "watcher did not reindex the new file")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Watch did not stop after cancel")
	}
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	p := ingest.New(testutil.TestStore(t), testutil.NewFakeEmbedder(8))
	if _, err := ingest.NewScheduler(p, "every tuesday", nil, quietLogger()); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestScheduler_RunOnceRefreshesTargets(t *testing.T) {
	store := testutil.TestStore(t)
	p := ingest.New(store, testutil.NewFakeEmbedder(8), ingest.WithLogger(quietLogger()))

	targets := []ingest.Target{
		{Kind: ingest.KindCode, Root: codeCorpus(t), Collection: models.CollectionCode},
		{Kind: ingest.KindDocs, Root: docsCorpus(t), Collection: models.CollectionDocs},
		{Kind: ingest.KindDocs, Root: filepath.Join(t.TempDir(), "missing"), Collection: "broken"},
	}
	s, err := ingest.NewScheduler(p, "@daily", targets, quietLogger())
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}

	s.RunOnce(context.Background())

	for _, name := range []string{models.CollectionCode, models.CollectionDocs} {
		info, err := store.Info(context.Background(), name)
		if err != nil {
			t.Fatalf("Info(%s): %v", name, err)
		}
		if info.Count == 0 {
			t.Errorf("%s is empty after scheduled run", name)
		}
	}
}

func TestScheduler_RunStopsOnCancel(t *testing.T) {
	p := ingest.New(testutil.TestStore(t), testutil.NewFakeEmbedder(8))
	s, err := ingest.NewScheduler(p, "@hourly", nil, quietLogger())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Run did not stop after cancel")
	}
}
