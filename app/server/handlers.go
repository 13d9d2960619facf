package server

import (
	"io"

	"voxchat/app/service/session"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/oops"
)

type messageRequest struct {
	Text string `json:"text" validate:"required"`
}

func (s *Server) createSession(c *fiber.Ctx) error {
	sess := s.sessionSvc.Create()

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"session_id": sess.ID,
	})
}

func (s *Server) getHistory(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"turns": sess.History(),
	})
}

func (s *Server) postMessage(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}

	var req messageRequest
	if err = c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err = s.validate.Struct(req); err != nil {
		return session.ErrEmptyMessage
	}

	result, err := s.replySvc.ProcessText(c.UserContext(), sess, req.Text)
	if err != nil {
		return err
	}

	return c.JSON(result)
}

func (s *Server) postAudio(c *fiber.Ctx) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "missing audio file")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return oops.Wrapf(err, "failed to open uploaded file")
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		return oops.Wrapf(err, "failed to read uploaded file")
	}

	result, err := s.replySvc.ProcessAudio(c.UserContext(), sess, fileHeader.Filename, audio)
	if err != nil {
		return err
	}

	return c.JSON(result)
}

func (s *Server) getClip(c *fiber.Ctx) error {
	path, err := s.assetsSvc.ClipPath(c.Params("clip"))
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, "audio clip not found")
	}

	return c.SendFile(path)
}

func (s *Server) getDocument(c *fiber.Ctx) error {
	path, ok := s.assetsSvc.DocumentPath()
	if !ok {
		return c.JSON(fiber.Map{
			"message": "no document is available for download",
		})
	}

	return c.Download(path)
}

func (s *Server) session(c *fiber.Ctx) (*session.Session, error) {
	sess, ok := s.sessionSvc.Get(c.Params("id"))
	if !ok {
		return nil, fiber.NewError(fiber.StatusNotFound, "session not found")
	}

	return sess, nil
}
