package server

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/toolgate/internal/auth"
)

func TestReloadSwapsRegistry(t *testing.T) {
	store := newTestStore(t, map[string]string{"alice": "tok-alice"})
	rebuild := func(context.Context) (*auth.Registry, error) {
		return auth.NewRegistry(map[string]string{"bob": "tok-bob"})
	}
	r, err := NewReloader(store, rebuild, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer r.watcher.Close()

	if err := r.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if _, err := store.Authenticate("tok-alice"); err == nil {
		t.Fatal("old token should be revoked after reload")
	}
	label, err := store.Authenticate("tok-bob")
	if err != nil || label != "bob" {
		t.Fatalf("new token: label=%q err=%v", label, err)
	}
}

func TestReloadFailureKeepsRegistry(t *testing.T) {
	store := newTestStore(t, map[string]string{"alice": "tok-alice"})
	rebuild := func(context.Context) (*auth.Registry, error) {
		return nil, auth.ErrEmptyRegistry
	}
	r, err := NewReloader(store, rebuild, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer r.watcher.Close()

	if err := r.Reload(context.Background()); !errors.Is(err, auth.ErrEmptyRegistry) {
		t.Fatalf("expected ErrEmptyRegistry, got %v", err)
	}
	if label, err := store.Authenticate("tok-alice"); err != nil || label != "alice" {
		t.Fatalf("current tokens should survive a failed reload: label=%q err=%v", label, err)
	}
}

func TestReloaderWatchesEnvFile(t *testing.T) {
	if testing.Short() {
		t.Skip("waits on file events")
	}
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("MCP_TOKENS_JSON={}\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	store := newTestStore(t, map[string]string{"alice": "tok-alice"})
	var calls atomic.Int32
	rebuild := func(context.Context) (*auth.Registry, error) {
		calls.Add(1)
		return auth.NewRegistry(map[string]string{"carol": "tok-carol"})
	}
	r, err := NewReloader(store, rebuild, envFile, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	// Unrelated files in the same directory are ignored.
	if err := os.WriteFile(filepath.Join(dir, "other"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(envFile, []byte(`MCP_TOKENS_JSON={"carol":"tok-carol"}`+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if label, err := store.Authenticate("tok-carol"); err == nil && label == "carol" {
			if n := calls.Load(); n != 1 {
				t.Fatalf("expected one debounced rebuild, got %d", n)
			}
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("env file change did not trigger a reload")
}
