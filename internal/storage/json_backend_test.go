package storage_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JamesPrial/tabtime/internal/storage"
)

func newTestJSONBackend(t *testing.T) (*storage.JSONBackend, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "tabtime.json")
	return storage.NewJSONBackend(path), path
}

func Test_JSONBackend_Contract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) storage.Store {
		b, _ := newTestJSONBackend(t)
		return b
	})
}

func Test_JSONBackend_CreatesParentDirsOnWrite(t *testing.T) {
	t.Parallel()

	b, path := newTestJSONBackend(t)
	if _, err := os.Stat(filepath.Dir(path)); !os.IsNotExist(err) {
		t.Fatalf("directory should not exist before the first write")
	}
	if err := b.Set(context.Background(), storage.KeyTrackerEnabled, []byte("false")); err != nil {
		t.Fatalf("Set error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("store file missing: %v", err)
	}
}

func Test_JSONBackend_DocumentLayout(t *testing.T) {
	t.Parallel()

	b, path := newTestJSONBackend(t)
	ctx := context.Background()
	mustSetJSON(t, b, storage.KeyTrackerEnabled, true)
	mustSetJSON(t, b, storage.KeySchemaVersion, 3)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("file is not a JSON object: %v", err)
	}
	if string(doc[storage.KeyTrackerEnabled]) != "true" || string(doc[storage.KeySchemaVersion]) != "3" {
		t.Errorf("unexpected document: %s", data)
	}
	if !strings.HasSuffix(string(data), "\n") {
		t.Error("document should end with a newline")
	}

	// A fresh backend reads what the first one wrote.
	other := storage.NewJSONBackend(path)
	got, err := other.Get(ctx, storage.KeySchemaVersion)
	if err != nil || string(got) != "3" {
		t.Errorf("fresh backend Get = %s, %v", got, err)
	}
}

func Test_JSONBackend_NoTempFilesLeft(t *testing.T) {
	t.Parallel()

	b, path := newTestJSONBackend(t)
	for i := 0; i < 5; i++ {
		mustSetJSON(t, b, "k", i)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("expected only the store file, found %v", names)
	}
}

func Test_JSONBackend_RejectsInvalidJSON(t *testing.T) {
	t.Parallel()

	b, _ := newTestJSONBackend(t)
	if err := b.Set(context.Background(), "k", []byte("{not json")); err == nil {
		t.Fatal("expected error for invalid JSON value")
	}
}

func Test_JSONBackend_CorruptFile_Cases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{name: "truncated object", content: `{"tabLogs": {"2024-`},
		{name: "top-level array", content: `[1,2,3]`},
		{name: "null document", content: `null`},
		{name: "empty file", content: ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b, path := newTestJSONBackend(t)
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}

			ctx := context.Background()
			if _, err := b.Get(ctx, storage.KeyTabLogs); !errors.Is(err, storage.ErrNotFound) {
				t.Errorf("Get on corrupt store error = %v, want ErrNotFound", err)
			}
			// Writing recovers the file.
			mustSetJSON(t, b, storage.KeyTrackerEnabled, true)
			if got, err := b.Get(ctx, storage.KeyTrackerEnabled); err != nil || string(got) != "true" {
				t.Errorf("Get after recovery = %s, %v", got, err)
			}
		})
	}
}

func Test_JSONBackend_UnreadableFileIsNotOverwritten(t *testing.T) {
	t.Parallel()

	b, path := newTestJSONBackend(t)
	// A directory at the store path fails to read with something other than
	// "not exist".
	if err := os.MkdirAll(filepath.Join(path, "keep"), 0o755); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if _, err := b.Get(ctx, storage.KeyTabLogs); err == nil || errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get error = %v, want a read failure", err)
	}
	if err := b.Set(ctx, storage.KeyTimerState, []byte(`{"status":"paused"}`)); err == nil {
		t.Error("Set on unreadable store succeeded, want error")
	}
	if err := b.Remove(ctx, storage.KeyTabLogs); err == nil {
		t.Error("Remove on unreadable store succeeded, want error")
	}
	if _, err := os.Stat(filepath.Join(path, "keep")); err != nil {
		t.Errorf("store path was replaced: %v", err)
	}
}

func Test_JSONBackend_CancelledContext(t *testing.T) {
	t.Parallel()

	b, _ := newTestJSONBackend(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Set(ctx, "k", []byte("1")); !errors.Is(err, context.Canceled) {
		t.Errorf("Set error = %v, want context.Canceled", err)
	}
}
