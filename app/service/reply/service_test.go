package reply

import (
	"context"
	"errors"
	"testing"
	"time"

	"voxchat/app/client/ai"
	"voxchat/app/config"
	"voxchat/app/service/session"

	"github.com/samber/do"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	completeFn   func(history []ai.Message) (string, error)
	transcribeFn func(filename string, audio []byte) (string, error)
	synthesizeFn func(text string) ([]byte, error)

	completeCalls int
}

func (f *fakeClient) CompleteChat(_ context.Context, history []ai.Message) (string, error) {
	f.completeCalls++
	return f.completeFn(history)
}

func (f *fakeClient) Transcribe(_ context.Context, filename string, audio []byte) (string, error) {
	return f.transcribeFn(filename, audio)
}

func (f *fakeClient) SynthesizeSpeech(_ context.Context, text string) ([]byte, error) {
	return f.synthesizeFn(text)
}

type fakeClips struct {
	saved [][]byte
}

func (f *fakeClips) SaveClip(data []byte) (string, error) {
	f.saved = append(f.saved, data)
	return "clip-1", nil
}

func newTestSetup(t *testing.T, cfg *config.Config, client *fakeClient) (*Service, *session.Session) {
	t.Helper()

	di := do.New()
	do.ProvideValue(di, cfg)

	sessionSvc, err := session.New(di)
	require.NoError(t, err)

	svc := &Service{
		cfg:    cfg,
		client: client,
		clips:  &fakeClips{},
	}

	return svc, sessionSvc.Create()
}

func roles(turns []session.Turn) []session.Role {
	result := make([]session.Role, 0, len(turns))
	for _, turn := range turns {
		result = append(result, turn.Role)
	}

	return result
}

func TestProcessTextAppendsBothTurns(t *testing.T) {
	client := &fakeClient{
		completeFn: func(history []ai.Message) (string, error) {
			require.Len(t, history, 1)
			assert.Equal(t, ai.RoleUser, history[0].Role)
			assert.Equal(t, "hello", history[0].Content)

			return "hi there", nil
		},
	}
	svc, sess := newTestSetup(t, &config.Config{}, client)

	result, err := svc.ProcessText(context.Background(), sess, "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi there", result.Reply)
	assert.Empty(t, result.ClipID)

	turns := sess.History()
	require.Equal(t, []session.Role{session.RoleUser, session.RoleAssistant}, roles(turns))
	assert.Equal(t, "hi there", turns[1].Content)

	// flag cleared, cooldown is zero: input usable again
	assert.False(t, sess.InputLocked(time.Now().Add(time.Millisecond)))
}

func TestProcessTextRejectsEmptySubmission(t *testing.T) {
	svc, sess := newTestSetup(t, &config.Config{}, &fakeClient{})

	_, err := svc.ProcessText(context.Background(), sess, "  ")
	require.ErrorIs(t, err, session.ErrEmptyMessage)
	assert.Empty(t, sess.History())
}

func TestProcessTextSendsFullHistory(t *testing.T) {
	client := &fakeClient{}
	client.completeFn = func(history []ai.Message) (string, error) {
		return "reply", nil
	}
	svc, sess := newTestSetup(t, &config.Config{}, client)

	_, err := svc.ProcessText(context.Background(), sess, "first")
	require.NoError(t, err)

	client.completeFn = func(history []ai.Message) (string, error) {
		require.Len(t, history, 3)
		assert.Equal(t, "first", history[0].Content)
		assert.Equal(t, "reply", history[1].Content)
		assert.Equal(t, "second", history[2].Content)

		return "another reply", nil
	}

	_, err = svc.ProcessText(context.Background(), sess, "second")
	require.NoError(t, err)
}

func TestCompletionFailureAppendsErrorTurn(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		reply string
	}{
		{"rate limited", ai.ErrRateLimited, rateLimitedReply},
		{"http error", &ai.StatusError{Status: 500}, apiErrorReply},
		{"unexpected", errors.New("boom"), unexpectedErrorReply},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := &fakeClient{
				completeFn: func([]ai.Message) (string, error) {
					return "", tc.err
				},
			}
			svc, sess := newTestSetup(t, &config.Config{}, client)

			result, err := svc.ProcessText(context.Background(), sess, "hello")
			require.NoError(t, err)
			assert.Equal(t, tc.reply, result.Reply)

			turns := sess.History()
			require.Equal(t, []session.Role{session.RoleUser, session.RoleAssistant}, roles(turns))
			assert.Equal(t, tc.reply, turns[1].Content)

			// a failed pass must not leave the session locked
			assert.False(t, sess.InputLocked(time.Now().Add(time.Millisecond)))
		})
	}
}

func TestProcessAudioDisabled(t *testing.T) {
	svc, sess := newTestSetup(t, &config.Config{}, &fakeClient{})

	_, err := svc.ProcessAudio(context.Background(), sess, "clip.wav", []byte("audio"))
	require.ErrorIs(t, err, ErrTranscriptionDisabled)
}

func audioConfig() *config.Config {
	return &config.Config{
		Features: config.Features{EnableTranscription: true},
	}
}

func TestProcessAudioAppendsTranscriptAsUserTurn(t *testing.T) {
	client := &fakeClient{
		transcribeFn: func(filename string, _ []byte) (string, error) {
			assert.Equal(t, "clip.wav", filename)
			return "spoken words", nil
		},
		completeFn: func(history []ai.Message) (string, error) {
			require.Len(t, history, 1)
			assert.Equal(t, "spoken words", history[0].Content)

			return "heard you", nil
		},
	}
	svc, sess := newTestSetup(t, audioConfig(), client)

	result, err := svc.ProcessAudio(context.Background(), sess, "clip.wav", []byte("audio"))
	require.NoError(t, err)
	assert.Equal(t, "heard you", result.Reply)

	turns := sess.History()
	require.Equal(t, []session.Role{session.RoleUser, session.RoleAssistant}, roles(turns))
	assert.Equal(t, "spoken words", turns[0].Content)
}

func TestEmptyTranscriptNeverAppendsUserTurn(t *testing.T) {
	client := &fakeClient{
		transcribeFn: func(string, []byte) (string, error) {
			return "", nil
		},
	}
	svc, sess := newTestSetup(t, audioConfig(), client)

	result, err := svc.ProcessAudio(context.Background(), sess, "clip.wav", []byte("audio"))
	require.NoError(t, err)
	assert.Equal(t, emptyTranscriptReply, result.Reply)
	assert.Zero(t, client.completeCalls)

	turns := sess.History()
	require.Equal(t, []session.Role{session.RoleAssistant}, roles(turns))
}

func TestTranscriptionFailureSkipsCompletion(t *testing.T) {
	client := &fakeClient{
		transcribeFn: func(string, []byte) (string, error) {
			return "", &ai.StatusError{Status: 400}
		},
	}
	svc, sess := newTestSetup(t, audioConfig(), client)

	result, err := svc.ProcessAudio(context.Background(), sess, "clip.wav", []byte("audio"))
	require.NoError(t, err)
	assert.Equal(t, transcriptionFailedReply, result.Reply)
	assert.Zero(t, client.completeCalls)

	turns := sess.History()
	require.Equal(t, []session.Role{session.RoleAssistant}, roles(turns))
	assert.False(t, sess.InputLocked(time.Now().Add(time.Millisecond)))
}

func TestSynthesisFailureKeepsReply(t *testing.T) {
	client := &fakeClient{
		completeFn: func([]ai.Message) (string, error) {
			return "hi there", nil
		},
		synthesizeFn: func(string) ([]byte, error) {
			return nil, errors.New("synthesis down")
		},
	}

	cfg := &config.Config{
		Features: config.Features{EnableSynthesis: true},
	}
	svc, sess := newTestSetup(t, cfg, client)

	result, err := svc.ProcessText(context.Background(), sess, "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi there", result.Reply)
	assert.Empty(t, result.ClipID)

	turns := sess.History()
	require.Equal(t, []session.Role{session.RoleUser, session.RoleAssistant}, roles(turns))
	assert.Equal(t, "hi there", turns[1].Content)
}

func TestSynthesisAttachesClip(t *testing.T) {
	client := &fakeClient{
		completeFn: func([]ai.Message) (string, error) {
			return "hi there", nil
		},
		synthesizeFn: func(text string) ([]byte, error) {
			assert.Equal(t, "hi there", text)
			return []byte("mp3-bytes"), nil
		},
	}

	cfg := &config.Config{
		Features: config.Features{EnableSynthesis: true},
	}
	svc, sess := newTestSetup(t, cfg, client)

	result, err := svc.ProcessText(context.Background(), sess, "hello")
	require.NoError(t, err)
	assert.Equal(t, "clip-1", result.ClipID)
}

func TestBusySessionRejected(t *testing.T) {
	svc, sess := newTestSetup(t, &config.Config{}, &fakeClient{})

	require.True(t, sess.TryAcquire())
	defer sess.Release()

	_, err := svc.ProcessText(context.Background(), sess, "hello")
	require.ErrorIs(t, err, session.ErrBusy)
}

func TestLockedSessionRejected(t *testing.T) {
	cfg := &config.Config{
		Session: config.Session{Cooldown: time.Hour},
	}

	client := &fakeClient{
		completeFn: func([]ai.Message) (string, error) {
			return "hi", nil
		},
	}
	svc, sess := newTestSetup(t, cfg, client)

	_, err := svc.ProcessText(context.Background(), sess, "hello")
	require.NoError(t, err)

	_, err = svc.ProcessText(context.Background(), sess, "again")
	require.ErrorIs(t, err, session.ErrInputLocked)
}
