package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
)

func TestQueue_FIFO(t *testing.T) {
	q := createTestStore(t).Queue()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		if err := q.Enqueue(ctx, fmt.Sprintf("req-%d", i), []byte(fmt.Sprintf(`{"n":%d}`, i))); err != nil {
			t.Fatalf("Enqueue() failed: %v", err)
		}
	}

	for i := 1; i <= 3; i++ {
		id, payload, ok, err := q.Dequeue(ctx)
		if err != nil || !ok {
			t.Fatalf("Dequeue() = ok=%v err=%v", ok, err)
		}
		if want := fmt.Sprintf("req-%d", i); id != want {
			t.Errorf("Dequeue() id = %s, want %s", id, want)
		}
		if want := fmt.Sprintf(`{"n":%d}`, i); string(payload) != want {
			t.Errorf("Dequeue() payload = %s, want %s", payload, want)
		}
	}

	_, _, ok, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue() on empty queue failed: %v", err)
	}
	if ok {
		t.Error("Dequeue() on empty queue returned ok")
	}
}

func TestQueue_IsEmpty(t *testing.T) {
	q := createTestStore(t).Queue()
	ctx := context.Background()

	empty, err := q.IsEmpty(ctx)
	if err != nil || !empty {
		t.Fatalf("IsEmpty() on new queue = %v, %v", empty, err)
	}

	if err := q.Enqueue(ctx, "req-1", []byte("{}")); err != nil {
		t.Fatalf("Enqueue() failed: %v", err)
	}
	if empty, _ := q.IsEmpty(ctx); empty {
		t.Error("IsEmpty() = true after Enqueue")
	}

	if _, _, _, err := q.Dequeue(ctx); err != nil {
		t.Fatalf("Dequeue() failed: %v", err)
	}
	if empty, _ := q.IsEmpty(ctx); !empty {
		t.Error("IsEmpty() = false after consuming every row")
	}
}

func TestQueue_CompactRemovesConsumedOnly(t *testing.T) {
	q := createTestStore(t).Queue()
	ctx := context.Background()

	for _, id := range []string{"req-1", "req-2", "req-3"} {
		if err := q.Enqueue(ctx, id, []byte("{}")); err != nil {
			t.Fatalf("Enqueue() failed: %v", err)
		}
	}
	if _, _, _, err := q.Dequeue(ctx); err != nil {
		t.Fatalf("Dequeue() failed: %v", err)
	}

	if n, _ := q.Len(ctx); n != 3 {
		t.Errorf("Len() before compaction = %d, want 3", n)
	}
	if err := q.Compact(ctx); err != nil {
		t.Fatalf("Compact() failed: %v", err)
	}
	if n, _ := q.Len(ctx); n != 2 {
		t.Errorf("Len() after compaction = %d, want 2", n)
	}
	if n, _ := q.Pending(ctx); n != 2 {
		t.Errorf("Pending() after compaction = %d, want 2", n)
	}

	id, _, ok, err := q.Dequeue(ctx)
	if err != nil || !ok || id != "req-2" {
		t.Errorf("Dequeue() after compaction = %s, %v, %v; want req-2", id, ok, err)
	}
}

func TestQueue_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := s1.Queue().Enqueue(ctx, "req-1", []byte(`{"kept":true}`)); err != nil {
		t.Fatalf("Enqueue() failed: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()

	id, payload, ok, err := s2.Queue().Dequeue(ctx)
	if err != nil || !ok {
		t.Fatalf("Dequeue() after reopen = ok=%v err=%v", ok, err)
	}
	if id != "req-1" || string(payload) != `{"kept":true}` {
		t.Errorf("Dequeue() after reopen = %s %s", id, payload)
	}
}
