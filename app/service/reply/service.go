package reply

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"voxchat/app/client/ai"
	"voxchat/app/config"
	"voxchat/app/service/assets"
	"voxchat/app/service/session"

	"github.com/elliotchance/pie/v2"
	"github.com/samber/do"
)

const (
	rateLimitedReply         = "Sorry — too many requests right now. Please wait a few seconds and try again."
	apiErrorReply            = "Sorry — API error. Please try again later."
	unexpectedErrorReply     = "Sorry — unexpected server error."
	transcriptionFailedReply = "Sorry — I couldn't transcribe that audio. Please try again."
	emptyTranscriptReply     = "Sorry — I didn't catch anything in that audio. Please try again."
)

var ErrTranscriptionDisabled = errors.New("audio submissions are disabled")

type apiClient interface {
	CompleteChat(ctx context.Context, history []ai.Message) (string, error)
	Transcribe(ctx context.Context, filename string, audio []byte) (string, error)
	SynthesizeSpeech(ctx context.Context, text string) ([]byte, error)
}

type clipStore interface {
	SaveClip(data []byte) (string, error)
}

// Result is the outcome of one orchestration pass. ClipID is set only
// when synthesis is enabled and succeeded.
type Result struct {
	Reply  string `json:"reply"`
	ClipID string `json:"clip_id,omitempty"`
}

// Service runs the reply state machine: optional transcription, then
// chat completion, then optional speech synthesis. Exactly one pass
// per session may run at a time, and every pass ends with the
// session's awaiting flag cleared.
type Service struct {
	cfg    *config.Config
	client apiClient
	clips  clipStore
}

func New(di *do.Injector) (*Service, error) {
	return &Service{
		cfg:    do.MustInvoke[*config.Config](di),
		client: do.MustInvoke[*ai.Client](di),
		clips:  do.MustInvoke[*assets.Service](di),
	}, nil
}

// ProcessText handles one typed submission.
func (s *Service) ProcessText(ctx context.Context, sess *session.Session, text string) (*Result, error) {
	if !sess.TryAcquire() {
		return nil, session.ErrBusy
	}
	defer sess.Release()

	if sess.InputLocked(time.Now()) {
		return nil, session.ErrInputLocked
	}

	if err := sess.AppendUserTurn(text); err != nil {
		return nil, err
	}
	defer sess.ClearAwaiting()

	start := time.Now()
	result := s.complete(ctx, sess)

	slog.Info("Processed message",
		"session_id", sess.ID,
		"duration", time.Since(start))

	return result, nil
}

// ProcessAudio handles one audio submission: the transcript becomes a
// synthetic user turn before the completion step runs. Transcription
// failures are terminal for the turn and skip the completion.
func (s *Service) ProcessAudio(ctx context.Context, sess *session.Session, filename string, audio []byte) (*Result, error) {
	if !s.cfg.Features.EnableTranscription {
		return nil, ErrTranscriptionDisabled
	}

	if !sess.TryAcquire() {
		return nil, session.ErrBusy
	}
	defer sess.Release()

	if sess.InputLocked(time.Now()) {
		return nil, session.ErrInputLocked
	}
	defer sess.ClearAwaiting()

	start := time.Now()

	transcript, err := s.client.Transcribe(ctx, filename, audio)
	if err != nil {
		slog.Error("Transcription failed", "session_id", sess.ID, "error", err)
		sess.AppendAssistantTurn(transcriptionFailedReply)

		return &Result{Reply: transcriptionFailedReply}, nil
	}

	if transcript == "" {
		slog.Warn("Empty transcript, skipping completion", "session_id", sess.ID)
		sess.AppendAssistantTurn(emptyTranscriptReply)

		return &Result{Reply: emptyTranscriptReply}, nil
	}

	if err = sess.AppendUserTurn(transcript); err != nil {
		return nil, err
	}

	result := s.complete(ctx, sess)

	slog.Info("Processed audio message",
		"session_id", sess.ID,
		"duration", time.Since(start))

	return result, nil
}

func (s *Service) complete(ctx context.Context, sess *session.Session) *Result {
	history := pie.Map(sess.History(), func(t session.Turn) ai.Message {
		return ai.Message{Role: string(t.Role), Content: t.Content}
	})

	replyText, err := s.client.CompleteChat(ctx, history)
	if err != nil {
		slog.Error("Chat completion failed", "session_id", sess.ID, "error", err)

		replyText = failureReply(err)
		sess.AppendAssistantTurn(replyText)

		return &Result{Reply: replyText}
	}

	sess.AppendAssistantTurn(replyText)

	result := &Result{Reply: replyText}

	// synthesis runs after the reply is committed: a failure here
	// degrades to text-only, never loses the turn
	if s.cfg.Features.EnableSynthesis {
		clipID, err := s.synthesize(ctx, replyText)
		if err != nil {
			slog.Warn("Speech synthesis failed, replying with text only",
				"session_id", sess.ID,
				"error", err)
		} else {
			result.ClipID = clipID
		}
	}

	return result
}

func (s *Service) synthesize(ctx context.Context, text string) (string, error) {
	data, err := s.client.SynthesizeSpeech(ctx, text)
	if err != nil {
		return "", err
	}

	return s.clips.SaveClip(data)
}

func failureReply(err error) string {
	var statusErr *ai.StatusError

	switch {
	case errors.Is(err, ai.ErrRateLimited), errors.Is(err, ai.ErrUnavailable):
		return rateLimitedReply
	case errors.As(err, &statusErr):
		return apiErrorReply
	default:
		return unexpectedErrorReply
	}
}
