package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestSyncCreatesAndUpdates(t *testing.T) {
	s := NewMemoryStore(20)
	ctx := context.Background()

	sess, created, err := s.Sync(ctx, "", SyncInput{Code: "v1", ProblemID: "two-sum", Language: "python"})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if !created || sess.ID == "" {
		t.Fatalf("created=%v id=%q", created, sess.ID)
	}

	// Same id: update in place, not a new session.
	sess2, created, err := s.Sync(ctx, sess.ID, SyncInput{Code: "v2", ProblemID: "two-sum"})
	if err != nil {
		t.Fatalf("Sync update: %v", err)
	}
	if created {
		t.Fatal("update reported as creation")
	}
	if sess2.ID != sess.ID || sess2.Code != "v2" {
		t.Fatalf("updated session %+v", sess2)
	}
	// Language sticks when the update omits it.
	if sess2.Language != "python" {
		t.Fatalf("language = %q", sess2.Language)
	}

	st, err := s.Stats(ctx)
	if err != nil || st.ActiveSessions != 1 {
		t.Fatalf("stats %+v err %v", st, err)
	}
}

func TestAddMessageCapsHistory(t *testing.T) {
	s := NewMemoryStore(3)
	ctx := context.Background()
	sess, _, err := s.Sync(ctx, "", SyncInput{})
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}

	for i := 0; i < 5; i++ {
		if _, err := s.AddMessage(ctx, sess.ID, "user", fmt.Sprintf("m%d", i)); err != nil {
			t.Fatalf("AddMessage %d: %v", i, err)
		}
	}

	got, err := s.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.MessageCount != 5 {
		t.Fatalf("MessageCount = %d, want 5", got.MessageCount)
	}
	if len(got.History) != 3 {
		t.Fatalf("history len = %d, want 3", len(got.History))
	}
	if got.History[0].Content != "m2" || got.History[2].Content != "m4" {
		t.Fatalf("history window %+v", got.History)
	}
}

func TestAddMessageUnknownSession(t *testing.T) {
	s := NewMemoryStore(20)
	if _, err := s.AddMessage(context.Background(), "nope", "user", "hi"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteAndCleanup(t *testing.T) {
	s := NewMemoryStore(20)
	ctx := context.Background()

	old, _, _ := s.Sync(ctx, "", SyncInput{})
	fresh, _, _ := s.Sync(ctx, "", SyncInput{})

	// Age the first session past the cutoff.
	s.mu.Lock()
	s.m[old.ID].LastUpdated = time.Now().Add(-25 * time.Hour)
	s.mu.Unlock()

	removed, err := s.Cleanup(ctx, 24*time.Hour)
	if err != nil || removed != 1 {
		t.Fatalf("Cleanup removed %d err %v", removed, err)
	}
	if _, err := s.Get(ctx, old.ID); !errors.Is(err, ErrNotFound) {
		t.Fatal("stale session survived cleanup")
	}
	if _, err := s.Get(ctx, fresh.ID); err != nil {
		t.Fatalf("fresh session dropped: %v", err)
	}

	if err := s.Delete(ctx, fresh.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, fresh.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete err = %v", err)
	}
}

func TestConversationSummary(t *testing.T) {
	sess := &Session{}
	if got := sess.ConversationSummary(5, 150); got != "" {
		t.Fatalf("empty summary = %q", got)
	}

	for i := 0; i < 8; i++ {
		sess.History = append(sess.History, Message{Role: "user", Content: fmt.Sprintf("m%d", i)})
	}
	sess.History = append(sess.History, Message{Role: "assistant", Content: strings.Repeat("x", 200)})

	got := sess.ConversationSummary(3, 150)
	lines := strings.Split(got, "\n")
	if len(lines) != 3 {
		t.Fatalf("summary has %d lines, want 3", len(lines))
	}
	if !strings.HasSuffix(lines[2], "...") {
		t.Fatalf("long content not truncated: %q", lines[2])
	}
	if len([]rune(lines[2])) > len("assistant: ")+153 {
		t.Fatalf("truncated line too long: %d", len(lines[2]))
	}
}
