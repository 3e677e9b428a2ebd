// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

func TestNew_RequiresRoot(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{}); err == nil {
		t.Fatal("New without root should fail")
	}
}

func TestNew_RejectsInvalidPattern(t *testing.T) {
	t.Parallel()
	_, err := New(Config{Root: t.TempDir(), Patterns: []string{"[invalid"}, Logger: testLogger()})
	if err == nil {
		t.Fatal("New with an invalid glob should fail")
	}
	_, err = New(Config{Root: t.TempDir(), Ignore: []string{"[invalid"}, Logger: testLogger()})
	if err == nil {
		t.Fatal("New with an invalid ignore glob should fail")
	}
}

func TestMatchesPatterns_Defaults(t *testing.T) {
	t.Parallel()

	w := &Watcher{patterns: DefaultPatterns()}
	tests := []struct {
		rel  string
		want bool
	}{
		{"db/fibr.yaml", true},
		{"fibr.yaml", true},
		{"db/chains/migrate.yaml", true},
		{"db/chains/migrate/fibr.yaml", true},
		{"db/chains/migrate/init.sh", true},
		{"db/README.md", false},
		{"db/data/schema.sql", false},
	}
	for _, tt := range tests {
		if got := w.matchesPatterns(tt.rel); got != tt.want {
			t.Errorf("matchesPatterns(%q) = %v, want %v", tt.rel, got, tt.want)
		}
	}
}

func TestIsIgnored(t *testing.T) {
	t.Parallel()

	w := &Watcher{ignores: DefaultIgnores()}
	if !w.isIgnored(".git/objects/ab/cdef") {
		t.Error("VCS metadata should be ignored")
	}
	if !w.isIgnored("db/fibr.yaml.swp") {
		t.Error("editor swap files should be ignored")
	}
	if w.isIgnored("db/fibr.yaml") {
		t.Error("declaration files must not be ignored")
	}
}

func TestRun_FiresDebouncedCallback(t *testing.T) {
	root := t.TempDir()
	fiberDir := filepath.Join(root, "db")
	if err := os.MkdirAll(fiberDir, 0o755); err != nil {
		t.Fatal(err)
	}

	var (
		mu      sync.Mutex
		batches [][]string
	)
	fired := make(chan struct{}, 4)

	w, err := New(Config{
		Root:     root,
		Debounce: 50 * time.Millisecond,
		Logger:   testLogger(),
		OnChange: func(_ context.Context, changed []string) error {
			mu.Lock()
			batches = append(batches, changed)
			mu.Unlock()
			fired <- struct{}{}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Two rapid writes to the same declaration must coalesce into one batch.
	declPath := filepath.Join(fiberDir, "fibr.yaml")
	if err := os.WriteFile(declPath, []byte("enabled: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(declPath, []byte("enabled: false\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("callback did not fire")
	}

	mu.Lock()
	got := batches[0]
	mu.Unlock()
	if len(got) != 1 || got[0] != filepath.Join("db", "fibr.yaml") {
		t.Errorf("changed = %v, want [db/fibr.yaml]", got)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v on cancellation", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestRun_IgnoresUnmatchedFiles(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "db"), 0o755); err != nil {
		t.Fatal(err)
	}

	fired := make(chan struct{}, 1)
	w, err := New(Config{
		Root:     root,
		Debounce: 50 * time.Millisecond,
		Logger:   testLogger(),
		OnChange: func(_ context.Context, _ []string) error {
			fired <- struct{}{}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	if err := os.WriteFile(filepath.Join(root, "db", "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-fired:
		t.Fatal("callback fired for a non-declaration file")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestRun_SecondCallRejected(t *testing.T) {
	w, err := New(Config{Root: t.TempDir(), Logger: testLogger()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = w.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)

	if err := w.Run(ctx); err == nil {
		t.Error("second Run should fail")
	}
	cancel()
}
