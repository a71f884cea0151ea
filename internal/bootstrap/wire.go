// Package bootstrap assembles the runtime graph.
package bootstrap

import (
	"context"
	"fmt"
	"io/fs"

	"visitscribe"
	"visitscribe/internal/audio"
	"visitscribe/internal/config"
	"visitscribe/internal/httpapi"
	"visitscribe/internal/insights"
	"visitscribe/internal/ports"
	"visitscribe/internal/providers/assemblyai"
	"visitscribe/internal/providers/gateway"
	"visitscribe/internal/store"
	"visitscribe/internal/transcription"
	"visitscribe/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Server   *httpapi.Server
	Sessions *usecase.Manager
	Hub      *httpapi.Hub
	Config   *config.Config

	closeStore func()
}

// Close releases pipelines and storage.
func (s Services) Close() {
	s.Sessions.Close()
	s.Hub.Close()
	if s.closeStore != nil {
		s.closeStore()
	}
}

// Build wires all backend dependencies for the current configuration.
// Postgres is used when DATABASE_URL is set, sqlite otherwise.
func Build(ctx context.Context) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	recordStore, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return Services{}, err
	}

	provider := assemblyai.NewProvider(assemblyai.Config{
		APIKey:     cfg.AssemblyAIKey,
		APIBaseURL: cfg.AssemblyAIBaseURL,
	})
	transcriber := transcription.NewClient(provider, provider, nil, transcription.Config{
		PollInterval: cfg.PollInterval,
		Timeout:      cfg.PollTimeout,
	})
	generator := gateway.NewGenerator(gateway.Config{
		APIKey:     cfg.GatewayKey,
		APIBaseURL: cfg.GatewayBaseURL,
		Model:      cfg.GatewayModel,
	})

	hub := httpapi.NewHub()
	sessions := usecase.NewManager(usecase.ManagerDeps{
		Audio:       audio.NewFFMPEGCapture(cfg.FFmpegPath),
		Transcriber: transcriber,
		Generator:   generator,
		Store:       recordStore,
		Events:      hub,
		Capture: usecase.Config{
			Audio: ports.AudioConfig{
				SampleRate:  cfg.AudioSampleRate,
				Channels:    cfg.AudioChannels,
				InputFormat: cfg.AudioFormat,
				InputDevice: cfg.AudioDevice,
			},
		},
		AutosaveQuiet: cfg.AutosaveQuiet,
	})

	server := httpapi.NewServer(cfg.Port, cfg.AllowedOrigins, recordStore, sessions, insights.NewEngine(), hub)

	return Services{
		Server:     server,
		Sessions:   sessions,
		Hub:        hub,
		Config:     cfg,
		closeStore: closeStore,
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config) (httpapi.Store, func(), error) {
	if cfg.UsePostgres() {
		migrations, err := fs.Sub(visitscribe.MigrationsFS, "migrations")
		if err != nil {
			return nil, nil, fmt.Errorf("load embedded migrations: %w", err)
		}
		if err := store.RunMigrations(cfg.DatabaseURL, migrations); err != nil {
			return nil, nil, err
		}
		pool, err := store.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		pg := store.NewPostgresStore(pool)
		return pg, pg.Close, nil
	}

	sq, err := store.OpenSQLite(cfg.SQLitePath)
	if err != nil {
		return nil, nil, err
	}
	return sq, func() { sq.Close() }, nil
}
