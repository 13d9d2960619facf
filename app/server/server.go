package server

import (
	"context"
	"errors"
	"log/slog"

	"voxchat/app/config"
	"voxchat/app/service/assets"
	"voxchat/app/service/reply"
	"voxchat/app/service/session"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/do"
)

// 25 MB, the transcription endpoint's upload ceiling
const maxBodySize = 25 * 1024 * 1024

type Server struct {
	cfg *config.Config
	app *fiber.App

	sessionSvc *session.Service
	replySvc   *reply.Service
	assetsSvc  *assets.Service

	validate *validator.Validate
}

func New(di *do.Injector) (*Server, error) {
	s := &Server{
		cfg:        do.MustInvoke[*config.Config](di),
		sessionSvc: do.MustInvoke[*session.Service](di),
		replySvc:   do.MustInvoke[*reply.Service](di),
		assetsSvc:  do.MustInvoke[*assets.Service](di),
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}

	s.app = fiber.New(fiber.Config{
		BodyLimit:    maxBodySize,
		ErrorHandler: errorHandler,
	})

	api := s.app.Group("/api")
	api.Post("/sessions", s.createSession)
	api.Get("/sessions/:id/history", s.getHistory)
	api.Post("/sessions/:id/messages", s.postMessage)
	api.Post("/sessions/:id/audio", s.postAudio)
	api.Get("/audio/:clip", s.getClip)
	api.Get("/document", s.getDocument)

	return s, nil
}

// Run serves HTTP until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()

		if err := s.app.Shutdown(); err != nil {
			slog.Error("Server shutdown failed", "error", err)
		}
	}()

	slog.Info("Listening", "addr", s.cfg.Server.Addr)

	return s.app.Listen(s.cfg.Server.Addr)
}

func errorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError

	switch {
	case errors.Is(err, session.ErrEmptyMessage):
		status = fiber.StatusBadRequest
	case errors.Is(err, session.ErrBusy):
		status = fiber.StatusConflict
	case errors.Is(err, session.ErrInputLocked):
		status = fiber.StatusTooManyRequests
	case errors.Is(err, reply.ErrTranscriptionDisabled):
		status = fiber.StatusForbidden
	default:
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			status = fiberErr.Code
		}
	}

	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}
