package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Server
	Port           int      `env:"PORT" envDefault:"8080"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`

	// Storage: postgres when DATABASE_URL is set, sqlite otherwise
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"visitscribe.sqlite"`

	// Speech-to-text
	AssemblyAIKey     string        `env:"ASSEMBLYAI_API_KEY"`
	AssemblyAIBaseURL string        `env:"ASSEMBLYAI_BASE_URL" envDefault:"https://api.assemblyai.com/v2"`
	PollInterval      time.Duration `env:"TRANSCRIBE_POLL_INTERVAL" envDefault:"1s"`
	PollTimeout       time.Duration `env:"TRANSCRIBE_TIMEOUT" envDefault:"120s"`

	// Note generation gateway
	GatewayKey     string `env:"GATEWAY_API_KEY"`
	GatewayBaseURL string `env:"GATEWAY_BASE_URL" envDefault:"https://ai.gateway.lovable.dev/v1"`
	GatewayModel   string `env:"GATEWAY_MODEL" envDefault:"google/gemini-2.5-flash"`

	// Note autosave
	AutosaveQuiet time.Duration `env:"NOTE_AUTOSAVE_QUIET" envDefault:"2s"`

	// Audio capture
	FFmpegPath      string `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	AudioDevice     string `env:"AUDIO_INPUT_DEVICE" envDefault:"default"`
	AudioFormat     string `env:"AUDIO_INPUT_FORMAT" envDefault:"pulse"`
	AudioSampleRate int    `env:"AUDIO_SAMPLE_RATE" envDefault:"16000"`
	AudioChannels   int    `env:"AUDIO_CHANNELS" envDefault:"1"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// UsePostgres reports whether the postgres backend is configured.
func (c *Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}
