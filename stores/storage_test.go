package stores

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"mug-studio/core"
	"mug-studio/stores/filesystem"
	"mug-studio/stores/memory"
	"mug-studio/stores/sqlite"
)

func newExport(sessionID string) *core.Export {
	return &core.Export{
		SessionID:  sessionID,
		Surface:    core.DefaultSurface(),
		Layers:     []byte(`[{"id":"a","type":"text"}]`),
		PreviewPNG: []byte("\x89PNG preview"),
		PrintPDF:   []byte("%PDF-1.3 print"),
		CreatedAt:  time.UnixMilli(1_700_000_000_000),
	}
}

func testExportStore(t *testing.T, store core.ExportStore) {
	ctx := context.Background()

	first := newExport("s1")
	id1, err := store.Create(ctx, first)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if id1 == "" || first.ID != id1 {
		t.Fatalf("Create() did not assign the id: %q / %q", id1, first.ID)
	}
	id2, _ := store.Create(ctx, newExport("s1"))
	if _, err := store.Create(ctx, newExport("s2")); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	got, err := store.FindID(ctx, id1)
	if err != nil {
		t.Fatalf("FindID() failed: %v", err)
	}
	if got.ID != id1 || got.SessionID != "s1" || string(got.PrintPDF) != "%PDF-1.3 print" ||
		string(got.PreviewPNG) != "\x89PNG preview" || string(got.Layers) != `[{"id":"a","type":"text"}]` {
		t.Errorf("FindID() payload mismatch: %+v", got)
	}
	if got.Surface != core.DefaultSurface() {
		t.Errorf("surface mismatch: %+v", got.Surface)
	}
	if !got.CreatedAt.Equal(time.UnixMilli(1_700_000_000_000)) {
		t.Errorf("created at mismatch: %v", got.CreatedAt)
	}

	list, err := store.List(ctx, "s1")
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != id1 || list[1].ID != id2 {
		t.Fatalf("List() mismatch: %+v", list)
	}
	for _, e := range list {
		if e.PrintPDF != nil || e.PreviewPNG != nil || e.Layers != nil {
			t.Errorf("List() carries payloads: %+v", e)
		}
	}
	if empty, err := store.List(ctx, "nobody"); err != nil || len(empty) != 0 {
		t.Errorf("List() of unknown session = %v, %v", empty, err)
	}

	if err := store.Delete(ctx, id1); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := store.FindID(ctx, id1); !errors.Is(err, core.ErrExportNotFound) {
		t.Errorf("FindID() after delete error = %v, want ErrExportNotFound", err)
	}
	if err := store.Delete(ctx, id1); !errors.Is(err, core.ErrExportNotFound) {
		t.Errorf("second Delete() error = %v, want ErrExportNotFound", err)
	}
	if list, _ := store.List(ctx, "s1"); len(list) != 1 {
		t.Errorf("List() after delete: got %d, want 1", len(list))
	}
}

func TestMemoryStore(t *testing.T) {
	testExportStore(t, memory.NewStore())
}

func TestFilesystemStore(t *testing.T) {
	store := filesystem.NewStore(filepath.Join(t.TempDir(), "exports"))
	testExportStore(t, store)

	if _, err := store.FindID(context.Background(), "../etc/passwd"); !errors.Is(err, core.ErrExportNotFound) {
		t.Errorf("FindID() with a path id error = %v, want ErrExportNotFound", err)
	}
}

func TestSQLiteStore(t *testing.T) {
	store := sqlite.NewStore(filepath.Join(t.TempDir(), "exports.db"))
	defer store.Close()
	testExportStore(t, store)
}

func TestGetStore(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		storageType string
		env         map[string]string
	}{
		{"", nil},
		{"memory", nil},
		{"filesystem", map[string]string{"LOCAL_STORAGE_PATH": filepath.Join(dir, "fs")}},
		{"sqlite", map[string]string{"DATA_SOURCE_NAME": filepath.Join(dir, "db.sqlite")}},
	}
	for _, tt := range tests {
		t.Run(tt.storageType, func(t *testing.T) {
			t.Setenv("STORAGE_TYPE", tt.storageType)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			store := GetStore()
			if store == nil {
				t.Fatal("GetStore() returned nil")
			}
			if _, err := store.Create(context.Background(), newExport("s")); err != nil {
				t.Errorf("Create() failed: %v", err)
			}
		})
	}
}
