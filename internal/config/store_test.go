package config

import (
	"os"
	"path/filepath"
	"testing"

	"vfi-client/internal/domain"
)

// TestDefaultSettings verifies baseline defaults are present.
func TestDefaultSettings(t *testing.T) {
	cfg := DefaultSettings()
	if cfg.ChunkSize != 1<<20 {
		t.Fatalf("chunk size = %d, want 1 MiB", cfg.ChunkSize)
	}
	if cfg.ProgressSteps != 5 {
		t.Fatalf("progress steps = %d, want 5", cfg.ProgressSteps)
	}
	if cfg.IdleTimeoutSeconds != 0 {
		t.Fatalf("idle timeout = %d, want 0", cfg.IdleTimeoutSeconds)
	}
	if !cfg.SaveFrames {
		t.Fatal("expected frame saving on by default")
	}
	if cfg.OutputDir == "" {
		t.Fatal("expected non-empty output dir")
	}
}

// TestJSONStoreLoadMissingReturnsDefaults checks first-run behavior.
func TestJSONStoreLoadMissingReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "settings.json")
	store := NewJSONStore(path)

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != DefaultSettings() {
		t.Fatalf("settings = %+v, want defaults", got)
	}
}

// TestJSONStoreSaveAndLoadRoundTrip checks persisted settings fidelity.
func TestJSONStoreSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "settings.json")
	store := NewJSONStore(path)
	want := domain.Settings{
		ServerHost:         "vfi.example.com",
		Secure:             true,
		UserName:           "alice",
		OutputDir:          "/out",
		ChunkSize:          4096,
		ProgressSteps:      10,
		IdleTimeoutSeconds: 30,
		SaveFrames:         false,
		LogLevel:           "debug",
	}

	if err := store.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != want {
		t.Fatalf("settings = %+v, want %+v", got, want)
	}
}

// TestJSONStoreLoadPartialKeepsDefaults checks absent keys fall back to defaults.
func TestJSONStoreLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{"serverHost":"10.0.0.2:9000"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := NewJSONStore(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.ServerHost != "10.0.0.2:9000" {
		t.Fatalf("server host = %q", got.ServerHost)
	}
	if !got.SaveFrames || got.ChunkSize != DefaultChunkSize {
		t.Fatalf("defaults lost: %+v", got)
	}
}

// TestJSONStoreLoadInvalidJSON checks parse error handling.
func TestJSONStoreLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "settings.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("{not-json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	store := NewJSONStore(path)
	if _, err := store.Load(); err == nil {
		t.Fatal("expected json parse error")
	}
}

// TestJSONStoreSaveLeavesNoTempFiles checks the replace-by-rename write path.
func TestJSONStoreSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewJSONStore(filepath.Join(dir, "settings.json"))
	for _, user := range []string{"alice", "bob"} {
		cfg := DefaultSettings()
		cfg.UserName = user
		if err := store.Save(cfg); err != nil {
			t.Fatalf("Save(%s) error = %v", user, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "settings.json" {
		t.Fatalf("dir entries = %v", entries)
	}
	got, err := store.Load()
	if err != nil || got.UserName != "bob" {
		t.Fatalf("Load() = %+v, %v", got, err)
	}
}
