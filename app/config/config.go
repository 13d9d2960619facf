package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Log      Log      `yaml:"log"`
	Server   Server   `yaml:"server"`
	OpenAI   OpenAI   `yaml:"openai"`
	Session  Session  `yaml:"session"`
	Features Features `yaml:"features"`
	Assets   Assets   `yaml:"assets"`
}

type Server struct {
	// Address to listen on
	Addr string `yaml:"addr" example:":8080" validate:"required"`
}

type OpenAI struct {
	// OpenAI base url
	BaseURL string `yaml:"base_url" example:"https://api.openai.com/v1" validate:"required"`
	// OpenAI token; falls back to the OPENAI_API_KEY environment variable
	Token string `yaml:"token" example:"sk-proj-abc123456789DEF789ghi012JKL345mno678PQR901stu234VWX" validate:"required"`
	// Chat completion model
	ChatModel string `yaml:"chat_model" example:"gpt-4o-mini" validate:"required"`
	// Completion token cap per reply
	MaxTokens int `yaml:"max_tokens" example:"400"`
	// Transcription model
	TranscribeModel string `yaml:"transcribe_model" example:"whisper-1"`
	// Speech synthesis model
	SpeechModel string `yaml:"speech_model" example:"tts-1"`
	// Speech synthesis voice
	SpeechVoice string `yaml:"speech_voice" example:"alloy"`
	// Max chat completion attempts on rate limiting or network failure
	MaxRetries int `yaml:"max_retries" example:"5"`
	// First backoff delay, doubled on each further attempt
	InitialBackoff time.Duration `yaml:"initial_backoff" example:"1s"`
}

type Session struct {
	// Minimum delay between accepted submissions in a session
	Cooldown time.Duration `yaml:"cooldown" example:"3s"`
	// Idle time after which a session is dropped
	TTL time.Duration `yaml:"ttl" example:"30m"`
}

type Features struct {
	// Accept audio submissions and transcribe them
	EnableTranscription bool `yaml:"enable_transcription" example:"true"`
	// Synthesize assistant replies to audio
	EnableSynthesis bool `yaml:"enable_synthesis" example:"false"`
}

type Assets struct {
	// Directory for synthesized audio clips
	DataDir string `yaml:"data_dir" example:"data"`
	// Optional downloadable document; missing file degrades to an informational message
	DocumentPath string `yaml:"document_path" example:"assets/brochure.pdf"`
}

type Log struct {
	// Telegram logging config
	Telegram TelegramLog `yaml:"telegram"`
}

type TelegramLog struct {
	// Chat bot token, obtain it via BotFather
	Token string `yaml:"token" example:"1234567890:ABCdefGHIjklMNopQRstUVwxyZ-123456789"`
	// Chat ID to send messages to
	ChatID string `yaml:"chat_id" example:"1001234567890"`
}

func Load() (*Config, error) {
	var result Config

	data, err := os.ReadFile("config.yaml")
	if err != nil {
		return nil, oops.Errorf("failed to read config file: %w", err)
	}

	if err = yaml.Unmarshal(data, &result); err != nil {
		return nil, oops.Errorf("failed to parse YAML config: %w", err)
	}

	applyDefaults(&result)

	if result.OpenAI.Token == "" {
		result.OpenAI.Token = os.Getenv("OPENAI_API_KEY")
	}
	if result.OpenAI.Token == "" {
		return nil, oops.Errorf("OpenAI token not found: set openai.token in config.yaml or the OPENAI_API_KEY environment variable")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(result); err != nil {
		return nil, oops.Errorf("failed to validate config: %w", err)
	}

	return &result, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.OpenAI.BaseURL == "" {
		cfg.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.OpenAI.ChatModel == "" {
		cfg.OpenAI.ChatModel = "gpt-4o-mini"
	}
	if cfg.OpenAI.MaxTokens <= 0 {
		cfg.OpenAI.MaxTokens = 400
	}
	if cfg.OpenAI.TranscribeModel == "" {
		cfg.OpenAI.TranscribeModel = "whisper-1"
	}
	if cfg.OpenAI.SpeechModel == "" {
		cfg.OpenAI.SpeechModel = "tts-1"
	}
	if cfg.OpenAI.SpeechVoice == "" {
		cfg.OpenAI.SpeechVoice = "alloy"
	}
	if cfg.OpenAI.MaxRetries <= 0 {
		cfg.OpenAI.MaxRetries = 5
	}
	if cfg.OpenAI.InitialBackoff <= 0 {
		cfg.OpenAI.InitialBackoff = time.Second
	}
	if cfg.Session.Cooldown <= 0 {
		cfg.Session.Cooldown = 3 * time.Second
	}
	if cfg.Session.TTL <= 0 {
		cfg.Session.TTL = 30 * time.Minute
	}
	if cfg.Assets.DataDir == "" {
		cfg.Assets.DataDir = "data"
	}
}
