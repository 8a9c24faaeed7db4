package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "typebus.toml")
	if err := os.WriteFile(path, []byte("[bus]\nworkers = 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(path, WithoutEnv())
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	w.SetDebounce(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	errs := make(chan error, 4)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(c *Config) { changes <- c }, func(err error) { errs <- err })
	}()

	// Unrelated files in the same directory are ignored.
	if err := os.WriteFile(filepath.Join(dir, "other.toml"), []byte("x = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("[bus]\nworkers = 6\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-changes:
		if cfg.Bus.Workers != 6 {
			t.Errorf("expected 6 workers, got %d", cfg.Bus.Workers)
		}
	case err := <-errs:
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	// An invalid edit reports an error and no change.
	if err := os.WriteFile(path, []byte("[bus]\nworkers = 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	deadline := time.After(5 * time.Second)
wait:
	for {
		select {
		case <-errs:
			break wait
		case cfg := <-changes:
			// A trailing reload of the previous write is fine.
			if cfg.Bus.Workers != 6 {
				t.Fatalf("expected error, got config %+v", cfg.Bus)
			}
		case <-deadline:
			t.Fatal("timed out waiting for error")
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewWatcher_MissingDirectory(t *testing.T) {
	if _, err := NewWatcher(filepath.Join(t.TempDir(), "missing", "typebus.toml")); err == nil {
		t.Error("expected error for missing directory")
	}
}
