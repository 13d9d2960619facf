package session

import (
	"errors"
	"strings"
	"sync"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single entry of the conversation log. The log is
// append-only and its order is replayed verbatim as model context.
type Turn struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrBusy         = errors.New("a reply for this session is already in flight")
	ErrInputLocked  = errors.New("input is locked, try again in a moment")
)

// Session owns one conversation: the ordered turn log, the
// awaiting-reply flag and the resubmission cooldown window.
type Session struct {
	ID string

	// flight guarantees at most one orchestration pass per session.
	flight sync.Mutex

	mu            sync.RWMutex
	turns         []Turn
	awaitingReply bool
	cooldownUntil time.Time
	lastActive    time.Time

	cooldown time.Duration
}

func newSession(id string, cooldown time.Duration) *Session {
	return &Session{
		ID:         id,
		cooldown:   cooldown,
		lastActive: time.Now(),
	}
}

// TryAcquire claims the session for a single orchestration pass.
// Returns false if another pass is already in flight.
func (s *Session) TryAcquire() bool {
	return s.flight.TryLock()
}

func (s *Session) Release() {
	s.flight.Unlock()
}

func (s *Session) AppendUserTurn(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.turns = append(s.turns, Turn{Role: RoleUser, Content: text, At: now})
	s.awaitingReply = true
	s.cooldownUntil = now.Add(s.cooldown)
	s.lastActive = now

	return nil
}

func (s *Session) AppendAssistantTurn(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.turns = append(s.turns, Turn{Role: RoleAssistant, Content: text, At: now})
	s.lastActive = now
}

// InputLocked reports whether a new submission must be rejected:
// either a reply is pending or the cooldown window has not elapsed.
func (s *Session) InputLocked(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.awaitingReply || now.Before(s.cooldownUntil)
}

// ClearAwaiting finishes a reply attempt: the flag is dropped and the
// cooldown window is refreshed. Runs in a deferred block after every
// pass so a failure never leaves the input permanently locked.
func (s *Session) ClearAwaiting() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.awaitingReply = false
	s.cooldownUntil = time.Now().Add(s.cooldown)
}

// History returns a copy of the conversation log.
func (s *Session) History() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Turn, len(s.turns))
	copy(result, s.turns)

	return result
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return now.Sub(s.lastActive)
}
