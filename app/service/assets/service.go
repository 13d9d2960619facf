package assets

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"voxchat/app/config"

	"github.com/google/uuid"
	"github.com/samber/do"
	"github.com/samber/oops"
)

const (
	sweepInterval = 10 * time.Minute
	clipTTL       = time.Hour
)

// Service stores synthesized audio clips on disk and exposes the
// optional downloadable document.
type Service struct {
	cfg      *config.Config
	audioDir string
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	audioDir := filepath.Join(cfg.Assets.DataDir, "audio")
	if err := os.MkdirAll(audioDir, 0755); err != nil {
		return nil, oops.Wrapf(err, "failed to create audio dir")
	}

	return &Service{
		cfg:      cfg,
		audioDir: audioDir,
	}, nil
}

// SaveClip persists synthesized audio and returns the clip ID.
func (s *Service) SaveClip(data []byte) (string, error) {
	id := uuid.NewString()

	if err := os.WriteFile(s.clipPath(id), data, 0644); err != nil {
		return "", oops.Wrapf(err, "failed to write audio clip")
	}

	return id, nil
}

// ClipPath resolves a clip ID to its file path. IDs must be valid
// UUIDs, which also rules out path traversal.
func (s *Service) ClipPath(id string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", oops.Errorf("invalid clip id: %q", id)
	}

	path := s.clipPath(id)
	if _, err := os.Stat(path); err != nil {
		return "", oops.Wrapf(err, "clip not found")
	}

	return path, nil
}

func (s *Service) clipPath(id string) string {
	return filepath.Join(s.audioDir, id+".mp3")
}

// DocumentPath returns the configured document path if the file is
// present. A missing or unconfigured document is informational, not
// an error.
func (s *Service) DocumentPath() (string, bool) {
	if s.cfg.Assets.DocumentPath == "" {
		return "", false
	}

	if _, err := os.Stat(s.cfg.Assets.DocumentPath); err != nil {
		return "", false
	}

	return s.cfg.Assets.DocumentPath, true
}

// Run deletes stale audio clips until the context is cancelled.
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
	entries, err := os.ReadDir(s.audioDir)
	if err != nil {
		slog.Warn("Failed to read audio dir", "error", err)
		return
	}

	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}

		if now.Sub(info.ModTime()) < clipTTL {
			continue
		}

		if err = os.Remove(filepath.Join(s.audioDir, entry.Name())); err != nil {
			slog.Warn("Failed to remove stale clip", "clip", entry.Name(), "error", err)
		}
	}
}
