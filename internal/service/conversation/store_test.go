package conversation_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	model "github.com/voxlab/callbot/internal/model/conversation"
	"github.com/voxlab/callbot/internal/model/persona"
	"github.com/voxlab/callbot/internal/service/conversation"
)

func newStore(t *testing.T, opts conversation.Options) *conversation.Store {
	t.Helper()
	return conversation.NewStore(opts)
}

func TestGetOrCreateIdempotent(t *testing.T) {
	store := newStore(t, conversation.Options{})
	ctx := context.Background()

	first, err := store.GetOrCreate(ctx, "CA123", "+15550001", "+15550002", persona.Default())
	if err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}

	second, err := store.GetOrCreate(ctx, "CA123", "+15559999", "+15558888", persona.Persona{Name: "Other"})
	if err != nil {
		t.Fatalf("GetOrCreate (second) err: %v", err)
	}

	if second.CallSID != first.CallSID {
		t.Fatalf("expected same session, got %s and %s", first.CallSID, second.CallSID)
	}
	if second.From != "+15550001" || second.PersonaName != "Alex" {
		t.Fatalf("second create must not overwrite: got from=%s persona=%s", second.From, second.PersonaName)
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", store.Len())
	}
}

func TestGetOrCreateCapacity(t *testing.T) {
	store := newStore(t, conversation.Options{MaxSessions: 2})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := store.GetOrCreate(ctx, fmt.Sprintf("CA%d", i), "", "", persona.Default()); err != nil {
			t.Fatalf("GetOrCreate err: %v", err)
		}
	}

	if _, err := store.GetOrCreate(ctx, "CA-overflow", "", "", persona.Default()); !errors.Is(err, conversation.ErrStoreFull) {
		t.Fatalf("expected ErrStoreFull, got %v", err)
	}

	// An existing session is still returned at capacity.
	if _, err := store.GetOrCreate(ctx, "CA0", "", "", persona.Default()); err != nil {
		t.Fatalf("GetOrCreate existing at capacity err: %v", err)
	}
}

func TestAppendTurnUnknownSession(t *testing.T) {
	store := newStore(t, conversation.Options{})

	_, err := store.AppendTurn(context.Background(), "missing", model.RoleCaller, "hello")
	if !errors.Is(err, conversation.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatal("AppendTurn must never create a session")
	}
}

func TestAppendTurnInvalidRole(t *testing.T) {
	store := newStore(t, conversation.Options{})
	ctx := context.Background()

	if _, err := store.GetOrCreate(ctx, "CA123", "", "", persona.Default()); err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}
	if _, err := store.AppendTurn(ctx, "CA123", model.Role("operator"), "hi"); !errors.Is(err, conversation.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestTranscriptOrder(t *testing.T) {
	store := newStore(t, conversation.Options{})
	ctx := context.Background()

	if _, err := store.GetOrCreate(ctx, "CA123", "", "", persona.Persona{Name: "Alex"}); err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}
	// Interleave a second session to check isolation.
	if _, err := store.GetOrCreate(ctx, "CA456", "", "", persona.Default()); err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}

	turns := []struct {
		role model.Role
		text string
	}{
		{model.RoleCaller, "I have a problem with my order"},
		{model.RoleBot, "Could you share your order number?"},
	}
	for _, turn := range turns {
		if _, err := store.AppendTurn(ctx, "CA123", turn.role, turn.text); err != nil {
			t.Fatalf("AppendTurn err: %v", err)
		}
		if _, err := store.AppendTurn(ctx, "CA456", model.RoleCaller, "unrelated"); err != nil {
			t.Fatalf("AppendTurn (other session) err: %v", err)
		}
	}

	transcript, err := store.Transcript(ctx, "CA123")
	if err != nil {
		t.Fatalf("Transcript err: %v", err)
	}
	if len(transcript) != len(turns) {
		t.Fatalf("expected %d turns, got %d", len(turns), len(transcript))
	}
	for i, want := range turns {
		if transcript[i].Role != want.role || transcript[i].Content != want.text {
			t.Fatalf("turn %d: got (%s, %q), want (%s, %q)",
				i, transcript[i].Role, transcript[i].Content, want.role, want.text)
		}
	}
	for i := 1; i < len(transcript); i++ {
		if transcript[i].Timestamp.Before(transcript[i-1].Timestamp) {
			t.Fatalf("turn %d timestamp precedes turn %d", i, i-1)
		}
	}
}

func TestTranscriptIsACopy(t *testing.T) {
	store := newStore(t, conversation.Options{})
	ctx := context.Background()

	if _, err := store.GetOrCreate(ctx, "CA123", "", "", persona.Default()); err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}
	if _, err := store.AppendTurn(ctx, "CA123", model.RoleCaller, "original"); err != nil {
		t.Fatalf("AppendTurn err: %v", err)
	}

	transcript, err := store.Transcript(ctx, "CA123")
	if err != nil {
		t.Fatalf("Transcript err: %v", err)
	}
	transcript[0].Content = "mutated"

	fresh, err := store.Transcript(ctx, "CA123")
	if err != nil {
		t.Fatalf("Transcript err: %v", err)
	}
	if fresh[0].Content != "original" {
		t.Fatal("store must not expose mutable turn references")
	}
}

func TestEndIsIdempotent(t *testing.T) {
	store := newStore(t, conversation.Options{})
	ctx := context.Background()

	if _, err := store.GetOrCreate(ctx, "CA123", "", "", persona.Default()); err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}

	store.End(ctx, "CA123")
	store.End(ctx, "CA123")
	store.End(ctx, "never-existed")

	if _, err := store.Transcript(ctx, "CA123"); !errors.Is(err, conversation.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after End, got %v", err)
	}
	if _, err := store.AppendTurn(ctx, "CA123", model.RoleCaller, "hello?"); !errors.Is(err, conversation.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after End, got %v", err)
	}

	// GetOrCreate after End starts a fresh session.
	sess, err := store.GetOrCreate(ctx, "CA123", "", "", persona.Default())
	if err != nil {
		t.Fatalf("GetOrCreate after End err: %v", err)
	}
	if len(sess.Turns) != 0 {
		t.Fatalf("expected fresh session, got %d turns", len(sess.Turns))
	}
}

func TestSweepRemovesOnlyIdleSessions(t *testing.T) {
	store := newStore(t, conversation.Options{IdleTTL: time.Hour})
	ctx := context.Background()

	if _, err := store.GetOrCreate(ctx, "CA-idle", "", "", persona.Default()); err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}
	if _, err := store.GetOrCreate(ctx, "CA-fresh", "", "", persona.Default()); err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}

	// Exactly at the threshold is not "strictly older": nothing removed.
	if removed := store.Sweep(time.Now().UTC().Add(time.Hour)); removed != 0 {
		t.Fatalf("expected 0 removed at threshold, got %d", removed)
	}

	if _, err := store.AppendTurn(ctx, "CA-fresh", model.RoleCaller, "still here"); err != nil {
		t.Fatalf("AppendTurn err: %v", err)
	}

	removed := store.Sweep(time.Now().UTC().Add(time.Hour + time.Second))
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if _, err := store.Transcript(ctx, "CA-idle"); !errors.Is(err, conversation.ErrSessionNotFound) {
		t.Fatalf("idle session should be gone, got %v", err)
	}
	if _, err := store.Transcript(ctx, "CA-fresh"); err != nil {
		t.Fatalf("fresh session should survive sweep: %v", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	store := newStore(t, conversation.Options{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := store.GetOrCreate(ctx, fmt.Sprintf("CA%d", i), "", "", persona.Default()); err != nil {
			t.Fatalf("GetOrCreate err: %v", err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	summaries := store.List(ctx, 2)
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	if summaries[0].CallSID != "CA2" {
		t.Fatalf("expected newest session first, got %s", summaries[0].CallSID)
	}
}

func TestSearchMatchesTurnContent(t *testing.T) {
	store := newStore(t, conversation.Options{})
	ctx := context.Background()

	if _, err := store.GetOrCreate(ctx, "CA123", "", "", persona.Default()); err != nil {
		t.Fatalf("GetOrCreate err: %v", err)
	}
	if _, err := store.AppendTurn(ctx, "CA123", model.RoleCaller, "My ORDER is missing"); err != nil {
		t.Fatalf("AppendTurn err: %v", err)
	}

	results := store.Search(ctx, "order", 10)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].MatchingTurn != "My ORDER is missing" {
		t.Fatalf("unexpected matching turn: %q", results[0].MatchingTurn)
	}

	if got := store.Search(ctx, "refund", 10); len(got) != 0 {
		t.Fatalf("expected no results, got %d", len(got))
	}
}

func TestConcurrentAppends(t *testing.T) {
	store := newStore(t, conversation.Options{})
	ctx := context.Background()

	const sessions = 8
	const turnsPerSession = 25

	var wg sync.WaitGroup
	for i := 0; i < sessions; i++ {
		callSID := fmt.Sprintf("CA%d", i)
		if _, err := store.GetOrCreate(ctx, callSID, "", "", persona.Default()); err != nil {
			t.Fatalf("GetOrCreate err: %v", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < turnsPerSession; j++ {
				if _, err := store.AppendTurn(ctx, callSID, model.RoleCaller, fmt.Sprintf("turn %d", j)); err != nil {
					t.Errorf("AppendTurn err: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	for i := 0; i < sessions; i++ {
		transcript, err := store.Transcript(ctx, fmt.Sprintf("CA%d", i))
		if err != nil {
			t.Fatalf("Transcript err: %v", err)
		}
		if len(transcript) != turnsPerSession {
			t.Fatalf("session %d: expected %d turns, got %d", i, turnsPerSession, len(transcript))
		}
		for j, turn := range transcript {
			if turn.Content != fmt.Sprintf("turn %d", j) {
				t.Fatalf("session %d: turn %d out of order: %q", i, j, turn.Content)
			}
		}
	}
}
