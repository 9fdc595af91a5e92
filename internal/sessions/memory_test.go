package sessions

import (
	"context"
	"testing"

	"github.com/vtcode-ai/vtcode/pkg/models"
)

func TestMemoryStoreSessionLifecycle(t *testing.T) {
	store := NewMemoryStore()
	session := &models.Session{WorkspaceRoot: "/workspace/repo", Key: "/workspace/repo"}

	if err := store.Create(context.Background(), session); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if session.SessionID == "" {
		t.Fatalf("expected session id to be assigned")
	}

	loaded, err := store.Get(context.Background(), session.SessionID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if loaded.Key != session.Key {
		t.Fatalf("expected key %q, got %q", session.Key, loaded.Key)
	}

	loaded.Title = "updated"
	if err := store.Update(context.Background(), loaded); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	updated, err := store.Get(context.Background(), loaded.SessionID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if updated.Title != "updated" {
		t.Fatalf("expected title to update")
	}

	if err := store.Delete(context.Background(), updated.SessionID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
}

func TestMemoryStoreMessages(t *testing.T) {
	store := NewMemoryStore()
	session, err := store.GetOrCreate(context.Background(), "/workspace/repo")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	msg := &models.Message{SessionID: session.SessionID, Role: models.RoleUser, Content: "hello"}
	if err := store.AppendMessage(context.Background(), session.SessionID, msg); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}

	history, err := store.GetHistory(context.Background(), session.SessionID, 10)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 message, got %d", len(history))
	}
}

func TestMemoryStoreGetOrCreateIdempotent(t *testing.T) {
	store := NewMemoryStore()
	first, err := store.GetOrCreate(context.Background(), "/workspace/repo")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	second, err := store.GetOrCreate(context.Background(), "/workspace/repo")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if first.SessionID != second.SessionID {
		t.Fatalf("expected same session for same workspace root, got %q and %q", first.SessionID, second.SessionID)
	}

	other, err := store.GetOrCreate(context.Background(), "/workspace/other")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if other.SessionID == first.SessionID {
		t.Fatalf("expected distinct session for distinct workspace root")
	}
}

func TestMemoryStoreList(t *testing.T) {
	store := NewMemoryStore()
	for i := 0; i < 5; i++ {
		if _, err := store.GetOrCreate(context.Background(), string(rune('a'+i))); err != nil {
			t.Fatalf("GetOrCreate() error = %v", err)
		}
	}

	all, err := store.List(context.Background(), ListOptions{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected 5 sessions, got %d", len(all))
	}

	page, err := store.List(context.Background(), ListOptions{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 sessions in page, got %d", len(page))
	}
}
