package voxdoc

import (
	"context"
	"testing"
	"time"
)

func newMemoryStore() *ProjectStore {
	config := NewVoxdocConfig()
	config.RedisAddr = ""
	return NewProjectStore(config)
}

func TestMemoryStoreProjectCRUD(t *testing.T) {
	store := newMemoryStore()
	defer store.Close()
	ctx := context.Background()

	if store.UsingRedis() {
		t.Fatal("store claims Redis with no address configured")
	}

	rec := &ProjectRecord{ID: "p1", Name: "First", HTML: "<p>hi</p>", Version: 3}
	if vErr := store.SaveProject(ctx, rec); vErr != nil {
		t.Fatalf("save failed: %v", vErr)
	}

	loaded, vErr := store.LoadProject(ctx, "p1")
	if vErr != nil {
		t.Fatalf("load failed: %v", vErr)
	}
	if loaded.Name != "First" || loaded.HTML != "<p>hi</p>" || loaded.Version != 3 {
		t.Errorf("loaded = %+v", loaded)
	}
	if loaded.UpdatedAt.IsZero() {
		t.Error("save did not stamp UpdatedAt")
	}

	// Mutating the loaded copy must not leak into the store.
	loaded.HTML = "tampered"
	again, _ := store.LoadProject(ctx, "p1")
	if again.HTML != "<p>hi</p>" {
		t.Error("store shares memory with callers")
	}

	ids, vErr := store.ListProjects(ctx)
	if vErr != nil || len(ids) != 1 || ids[0] != "p1" {
		t.Errorf("list = %v, %v", ids, vErr)
	}

	if vErr := store.DeleteProject(ctx, "p1"); vErr != nil {
		t.Fatalf("delete failed: %v", vErr)
	}
	if _, vErr := store.LoadProject(ctx, "p1"); vErr == nil {
		t.Error("load after delete returned a record")
	}
}

func TestMemoryStoreLoadMissing(t *testing.T) {
	store := newMemoryStore()
	defer store.Close()

	_, vErr := store.LoadProject(context.Background(), "ghost")
	if vErr == nil {
		t.Fatal("expected error for missing project")
	}
	if vErr.Code != ErrCodeStoreUnavailable {
		t.Errorf("error code = %s", vErr.Code)
	}
}

func TestMemoryStoreSaveNeedsID(t *testing.T) {
	store := newMemoryStore()
	defer store.Close()

	if vErr := store.SaveProject(context.Background(), &ProjectRecord{Name: "no id"}); vErr == nil {
		t.Error("record without id accepted")
	}
	if vErr := store.SaveProject(context.Background(), nil); vErr == nil {
		t.Error("nil record accepted")
	}
}

func TestMemoryStoreTranscript(t *testing.T) {
	store := newMemoryStore()
	defer store.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		entry := TranscriptEntry{Source: SourceUser, Text: "fragment", Timestamp: time.Now()}
		if vErr := store.AppendTranscript(ctx, "p1", entry); vErr != nil {
			t.Fatalf("append %d failed: %v", i, vErr)
		}
	}

	entries, vErr := store.LoadTranscript(ctx, "p1")
	if vErr != nil {
		t.Fatalf("load failed: %v", vErr)
	}
	if len(entries) != 3 {
		t.Errorf("entries = %d, want 3", len(entries))
	}

	// Unknown project yields an empty transcript, not an error.
	entries, vErr = store.LoadTranscript(ctx, "ghost")
	if vErr != nil || len(entries) != 0 {
		t.Errorf("ghost transcript = %v, %v", entries, vErr)
	}
}

func TestMemoryStoreTranscriptTrims(t *testing.T) {
	store := newMemoryStore()
	defer store.Close()
	ctx := context.Background()

	for i := 0; i < maxPersistedTranscript+25; i++ {
		store.AppendTranscript(ctx, "p1", TranscriptEntry{Source: SourceModel, Text: "x"})
	}

	entries, _ := store.LoadTranscript(ctx, "p1")
	if len(entries) != maxPersistedTranscript {
		t.Errorf("entries = %d, want trim to %d", len(entries), maxPersistedTranscript)
	}
}

func TestMemoryStoreSessionOpsAreNilSafe(t *testing.T) {
	store := newMemoryStore()
	defer store.Close()
	ctx := context.Background()

	// Session bookkeeping is Redis-only; the memory store ignores it quietly.
	if vErr := store.TouchSession(ctx, "s1", StateActive); vErr != nil {
		t.Errorf("touch returned %v", vErr)
	}
	store.EndSession(ctx, "s1")
}
