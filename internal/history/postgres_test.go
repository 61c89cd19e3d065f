package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"
)

// The SQL backend needs a live database, so these run only when
// TEST_DATABASE_URL points at a reachable PostgreSQL instance.
func newTestPostgresStore(t *testing.T, historyCap int) *PostgresStore {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	s, err := NewPostgresStore(context.Background(), url, historyCap)
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// testClientID keeps runs against a shared database from seeing each
// other's rows.
func testClientID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

func TestPostgresStoreAppendPreservesOrder(t *testing.T) {
	s := newTestPostgresStore(t, 200)
	ctx := context.Background()
	id := testClientID("order")
	t.Cleanup(func() { _ = s.Clear(ctx, id) })

	for i := 0; i < 5; i++ {
		if err := s.Append(ctx, id, Turn{Sender: SenderUser, Text: fmt.Sprintf("msg-%d", i)}); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	turns, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(turns) != 5 {
		t.Fatalf("len(turns) = %d, want 5", len(turns))
	}
	for i, turn := range turns {
		if want := fmt.Sprintf("msg-%d", i); turn.Text != want {
			t.Fatalf("turns[%d].Text = %q, want %q", i, turn.Text, want)
		}
	}
}

func TestPostgresStoreAppendEvictsOldestPastCap(t *testing.T) {
	s := newTestPostgresStore(t, 3)
	ctx := context.Background()
	id := testClientID("cap")
	t.Cleanup(func() { _ = s.Clear(ctx, id) })

	for i := 0; i < 5; i++ {
		if err := s.Append(ctx, id, Turn{Sender: SenderUser, Text: fmt.Sprintf("msg-%d", i)}); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	turns, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("len(turns) = %d, want cap 3", len(turns))
	}
	if turns[0].Text != "msg-2" || turns[2].Text != "msg-4" {
		t.Fatalf("window = [%q..%q], want [msg-2..msg-4]", turns[0].Text, turns[2].Text)
	}
}

func TestPostgresStoreReplaceClearRoundTrip(t *testing.T) {
	s := newTestPostgresStore(t, 200)
	ctx := context.Background()
	id := testClientID("replace")
	t.Cleanup(func() { _ = s.Clear(ctx, id) })

	imported := []Turn{
		{Sender: SenderUser, Text: "a"},
		{Sender: SenderAI, Text: "b"},
	}
	if err := s.Replace(ctx, id, imported); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	turns, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(turns) != 2 || turns[0] != imported[0] || turns[1] != imported[1] {
		t.Fatalf("Get() = %+v, want %+v", turns, imported)
	}

	if err := s.Clear(ctx, id); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	turns, err = s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("len(turns) = %d after clear, want 0", len(turns))
	}
}

func TestPostgresStoreReplaceRejectsMalformedTurns(t *testing.T) {
	s := newTestPostgresStore(t, 200)
	ctx := context.Background()
	id := testClientID("reject")
	t.Cleanup(func() { _ = s.Clear(ctx, id) })

	if err := s.Append(ctx, id, Turn{Sender: SenderUser, Text: "keep"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	err := s.Replace(ctx, id, []Turn{{Sender: "Robot", Text: "x"}})
	if !errors.Is(err, ErrInvalidTurn) {
		t.Fatalf("Replace() error = %v, want ErrInvalidTurn", err)
	}

	turns, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(turns) != 1 || turns[0].Text != "keep" {
		t.Fatalf("history mutated by rejected import: %+v", turns)
	}
}
