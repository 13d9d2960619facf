package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"voxchat/app/config"

	"github.com/google/uuid"
	"github.com/samber/do"
)

const sweepInterval = time.Minute

var _ do.Shutdownable = (*Service)(nil)

// Service owns all live sessions. Sessions are created empty, held in
// memory only and dropped after the configured idle TTL.
type Service struct {
	cfg *config.Config

	mu       sync.RWMutex
	sessions map[string]*Session
}

func New(di *do.Injector) (*Service, error) {
	return &Service{
		cfg:      do.MustInvoke[*config.Config](di),
		sessions: make(map[string]*Session),
	}, nil
}

func (s *Service) Create() *Session {
	sess := newSession(uuid.NewString(), s.cfg.Session.Cooldown)

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	slog.Debug("Session created", "session_id", sess.ID)

	return sess
}

func (s *Service) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]

	return sess, ok
}

// Run sweeps idle sessions until the context is cancelled.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.sweep(now)
		}
	}
}

func (s *Service) sweep(now time.Time) {
	ttl := s.cfg.Session.TTL

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sess := range s.sessions {
		if sess.idleSince(now) < ttl {
			continue
		}

		// skip sessions with a pass still in flight
		if !sess.TryAcquire() {
			continue
		}
		sess.Release()

		delete(s.sessions, id)
		slog.Debug("Session expired", "session_id", id)
	}
}

func (s *Service) Shutdown() error {
	return nil
}
