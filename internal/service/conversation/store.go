package conversation

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/voxlab/callbot/internal/model/conversation"
	"github.com/voxlab/callbot/internal/model/persona"
)

var (
	ErrCallSIDRequired = errors.New("call sid is required")
	ErrSessionNotFound = errors.New("session not found")
	ErrStoreFull       = errors.New("session store at capacity")
	ErrInvalidRole     = errors.New("invalid turn role")
)

const (
	DefaultMaxSessions = 1000
	DefaultIdleTTL     = time.Hour
)

// Options tunes store limits. Zero values select the defaults.
type Options struct {
	MaxSessions int
	IdleTTL     time.Duration
}

// Store tracks per-call dialogue state between webhook deliveries. Twilio's
// webhook protocol is stateless per request, so this is the only conversation
// memory the service has. Sessions live in memory for a single process.
type Store struct {
	mu          sync.RWMutex
	sessions    map[string]*conversation.Session
	maxSessions int
	idleTTL     time.Duration
}

// NewStore bootstraps the in-memory session store.
func NewStore(opts Options) *Store {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = DefaultMaxSessions
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = DefaultIdleTTL
	}
	return &Store{
		sessions:    make(map[string]*conversation.Session),
		maxSessions: opts.MaxSessions,
		idleTTL:     opts.IdleTTL,
	}
}

// GetOrCreate returns the session for callSID, creating it on the first
// webhook event of a call. Creation is idempotent; a second call with the
// same SID returns the existing session and ignores the supplied persona.
func (s *Store) GetOrCreate(_ context.Context, callSID, from, to string, p persona.Persona) (conversation.Session, error) {
	if callSID == "" {
		return conversation.Session{}, ErrCallSIDRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[callSID]; ok {
		return cloneSession(sess), nil
	}

	if len(s.sessions) >= s.maxSessions {
		return conversation.Session{}, ErrStoreFull
	}

	now := time.Now().UTC()
	sess := &conversation.Session{
		CallSID:      callSID,
		From:         orUnknown(from),
		To:           orUnknown(to),
		PersonaName:  p.Name,
		Turns:        make([]conversation.Turn, 0, 16),
		CreatedAt:    now,
		LastActivity: now,
	}
	s.sessions[callSID] = sess
	log.Printf("[conversation] created session for call %s", callSID)

	return cloneSession(sess), nil
}

// AppendTurn records one utterance and bumps the session's last activity.
// It never creates a session; callers must GetOrCreate first.
func (s *Store) AppendTurn(_ context.Context, callSID string, role conversation.Role, text string) (conversation.Session, error) {
	if !role.Valid() {
		return conversation.Session{}, ErrInvalidRole
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[callSID]
	if !ok {
		return conversation.Session{}, ErrSessionNotFound
	}

	now := time.Now().UTC()
	sess.Turns = append(sess.Turns, conversation.Turn{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   text,
		Timestamp: now,
	})
	sess.LastActivity = now

	return cloneSession(sess), nil
}

// Transcript returns the full turn sequence in chronological append order,
// as fed to the completion API when building the next prompt.
func (s *Store) Transcript(_ context.Context, callSID string) ([]conversation.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[callSID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	copied := make([]conversation.Turn, len(sess.Turns))
	copy(copied, sess.Turns)
	return copied, nil
}

// Get retrieves a copy of the full session for dashboard views.
func (s *Store) Get(_ context.Context, callSID string) (conversation.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[callSID]
	if !ok {
		return conversation.Session{}, ErrSessionNotFound
	}
	return cloneSession(sess), nil
}

// End removes the session immediately when the call terminates. Ending an
// unknown or already-ended call is a no-op.
func (s *Store) End(_ context.Context, callSID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[callSID]; !ok {
		return
	}
	delete(s.sessions, callSID)
	log.Printf("[conversation] ended session for call %s", callSID)
}

// Sweep evicts every session whose last activity is strictly older than the
// idle TTL relative to now, and returns the number removed.
func (s *Store) Sweep(now time.Time) int {
	cutoff := now.Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for callSID, sess := range s.sessions {
		if sess.LastActivity.Before(cutoff) {
			delete(s.sessions, callSID)
			removed++
		}
	}
	return removed
}

// RunSweeper periodically sweeps idle sessions until ctx is canceled.
// Intended to run in its own goroutine from main.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if removed := s.Sweep(now.UTC()); removed > 0 {
				log.Printf("[conversation] swept %d idle sessions", removed)
			}
		}
	}
}

// Len reports the number of active sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Stats summarizes a single session.
func (s *Store) Stats(_ context.Context, callSID string) (conversation.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[callSID]
	if !ok {
		return conversation.Stats{}, ErrSessionNotFound
	}
	return summarize(sess), nil
}

// List returns summaries of active sessions, newest first.
func (s *Store) List(_ context.Context, limit int) []conversation.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*conversation.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		all = append(all, sess)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}

	summaries := make([]conversation.Stats, 0, len(all))
	for _, sess := range all {
		summaries = append(summaries, summarize(sess))
	}
	return summaries
}

// SearchResult pairs a session summary with the first turn matching a query.
type SearchResult struct {
	conversation.Stats
	MatchingTurn string `json:"matchingTurn"`
}

// Search finds sessions whose transcript contains the query, case-insensitive.
func (s *Store) Search(_ context.Context, query string, limit int) []SearchResult {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil
	}
	if limit <= 0 {
		limit = 20
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]SearchResult, 0)
	for _, sess := range s.sessions {
		for _, turn := range sess.Turns {
			if strings.Contains(strings.ToLower(turn.Content), needle) {
				results = append(results, SearchResult{
					Stats:        summarize(sess),
					MatchingTurn: turn.Content,
				})
				break
			}
		}
		if len(results) >= limit {
			break
		}
	}
	return results
}

func summarize(sess *conversation.Session) conversation.Stats {
	callerTurns := 0
	for _, turn := range sess.Turns {
		if turn.Role == conversation.RoleCaller {
			callerTurns++
		}
	}
	return conversation.Stats{
		CallSID:         sess.CallSID,
		From:            sess.From,
		To:              sess.To,
		PersonaName:     sess.PersonaName,
		CreatedAt:       sess.CreatedAt,
		LastActivity:    sess.LastActivity,
		TotalTurns:      len(sess.Turns),
		CallerTurns:     callerTurns,
		BotTurns:        len(sess.Turns) - callerTurns,
		DurationSeconds: time.Since(sess.CreatedAt).Seconds(),
	}
}

func cloneSession(sess *conversation.Session) conversation.Session {
	copied := *sess
	copied.Turns = make([]conversation.Turn, len(sess.Turns))
	copy(copied.Turns, sess.Turns)
	return copied
}

func orUnknown(number string) string {
	if strings.TrimSpace(number) == "" {
		return "unknown"
	}
	return number
}
