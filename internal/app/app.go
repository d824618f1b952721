package app

import (
	"context"
	"fmt"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/anonchat-server/internal/attachment"
	"github.com/vovakirdan/anonchat-server/internal/config"
	"github.com/vovakirdan/anonchat-server/internal/core"
	"github.com/vovakirdan/anonchat-server/internal/store"
	"github.com/vovakirdan/anonchat-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/anonchat-server/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	attachments, err := newAttachmentStore(ctx, cfg.Attachments)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("init attachments: %w", err)
	}
	logger.Info().Str("backend", cfg.Attachments.Backend).Msg("attachment store initialized")

	hub := core.NewHub(core.HubConfig{
		Identities:    st,
		Messages:      st,
		Attachments:   attachments,
		MaxAudioBytes: cfg.MaxAudioBytes,
		Logger:        logger,
	})
	server := transporthttp.NewServer(hub, st, attachments, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		log:             logger,
	}, nil
}

func newAttachmentStore(ctx context.Context, cfg config.AttachmentsConfig) (attachment.Store, error) {
	switch cfg.Backend {
	case config.BackendS3:
		return attachment.NewS3Store(ctx, cfg.S3)
	case config.BackendLocal, "":
		return attachment.NewLocalStore(cfg.UploadsDir)
	default:
		return nil, fmt.Errorf("unknown attachment backend %q", cfg.Backend)
	}
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	// WebSocket connections are hijacked and outlive Shutdown; tie them to ctx.
	a.server.BaseContext = func(net.Listener) context.Context { return ctx }

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	a.log.Info().Int("connections", a.hub.Presence().Count()).Msg("releasing resources")
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
