package ai

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"voxchat/app/config"

	"github.com/elliotchance/pie/v2"
	"github.com/samber/do"
	"github.com/samber/oops"
	"github.com/sashabaranov/go-openai"
)

const (
	chatTimeout  = 30 * time.Second
	audioTimeout = 60 * time.Second

	// FallbackReply substitutes a completion whose response body is
	// missing the expected content field.
	FallbackReply = "Sorry — I couldn't generate a response."
)

// acceptedAudioFormats are the container formats the transcription
// endpoint understands, keyed by file extension.
var acceptedAudioFormats = []string{"flac", "m4a", "mp3", "mp4", "mpeg", "mpga", "oga", "ogg", "wav", "webm"}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single conversation turn as sent to the chat endpoint.
type Message struct {
	Role    string
	Content string
}

type Client struct {
	cfg *config.Config

	chat  *openai.Client
	audio *openai.Client

	sleep func(ctx context.Context, d time.Duration) error
}

func NewClient(di *do.Injector) (*Client, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return &Client{
		cfg:   cfg,
		chat:  createClient(cfg, chatTimeout),
		audio: createClient(cfg, audioTimeout),
		sleep: sleepCtx,
	}, nil
}

func createClient(cfg *config.Config, timeout time.Duration) *openai.Client {
	clientConfig := openai.DefaultConfig(cfg.OpenAI.Token)

	clientConfig.BaseURL = cfg.OpenAI.BaseURL
	clientConfig.HTTPClient = &http.Client{
		Timeout: timeout,
	}

	return openai.NewClientWithConfig(clientConfig)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CompleteChat posts the full conversation history and returns the
// first completion's text. Rate limiting (429) and network failures
// are retried with exponential backoff; any other HTTP status is
// terminal and surfaces as *StatusError.
func (c *Client) CompleteChat(ctx context.Context, history []Message) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history))
	for _, m := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	request := openai.ChatCompletionRequest{
		Model:     c.cfg.OpenAI.ChatModel,
		Messages:  messages,
		MaxTokens: c.cfg.OpenAI.MaxTokens,
	}

	maxRetries := c.cfg.OpenAI.MaxRetries
	backoff := c.cfg.OpenAI.InitialBackoff

	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		response, err := c.chat.CreateChatCompletion(ctx, request)
		if err == nil {
			return replyText(response), nil
		}

		lastErr = err

		if !retryable(err) {
			if status, ok := statusOf(err); ok && status != 0 {
				return "", &StatusError{Status: status}
			}
			return "", oops.Wrapf(err, "chat completion failed")
		}

		slog.Warn("Chat completion attempt failed",
			"attempt", attempt,
			"error", err)

		if attempt == maxRetries {
			break
		}

		if err = c.sleep(ctx, backoff); err != nil {
			return "", err
		}
		backoff *= 2
	}

	if status, ok := statusOf(lastErr); ok && status == http.StatusTooManyRequests {
		return "", oops.Wrapf(ErrRateLimited, "no completion after %d attempts", maxRetries)
	}

	return "", oops.Wrapf(ErrUnavailable, "no completion after %d attempts: %v", maxRetries, lastErr)
}

func replyText(response openai.ChatCompletionResponse) string {
	if len(response.Choices) == 0 {
		return FallbackReply
	}

	content := strings.TrimSpace(response.Choices[0].Message.Content)
	if content == "" {
		return FallbackReply
	}

	return content
}

// Transcribe uploads raw audio bytes and returns the transcript.
// Single attempt: transcription failures are terminal for the turn.
// The transcript may legitimately be empty.
func (c *Client) Transcribe(ctx context.Context, filename string, audio []byte) (string, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if !pie.Contains(acceptedAudioFormats, ext) {
		return "", oops.Errorf("unsupported audio format: %q", ext)
	}

	response, err := c.audio.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.cfg.OpenAI.TranscribeModel,
		FilePath: filename,
		Reader:   bytes.NewReader(audio),
	})
	if err != nil {
		if status, ok := statusOf(err); ok && status != 0 {
			return "", &StatusError{Status: status}
		}
		return "", oops.Wrapf(err, "transcription failed")
	}

	return strings.TrimSpace(response.Text), nil
}

// SynthesizeSpeech renders text to audio bytes. Single attempt,
// best-effort: callers degrade to text-only on failure.
func (c *Client) SynthesizeSpeech(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, oops.Errorf("speech input is empty")
	}

	response, err := c.chat.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model: openai.SpeechModel(c.cfg.OpenAI.SpeechModel),
		Input: text,
		Voice: openai.SpeechVoice(c.cfg.OpenAI.SpeechVoice),
	})
	if err != nil {
		if status, ok := statusOf(err); ok && status != 0 {
			return nil, &StatusError{Status: status}
		}
		return nil, oops.Wrapf(err, "speech synthesis failed")
	}
	defer response.Close()

	data, err := io.ReadAll(response)
	if err != nil {
		return nil, oops.Wrapf(err, "failed to read synthesized audio")
	}

	return data, nil
}
