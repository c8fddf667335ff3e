package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"label-resolver/internal/alias"
	"label-resolver/internal/catalog"
	"label-resolver/internal/config"
	"label-resolver/internal/llm/openai"
	"label-resolver/internal/order"
	resHnd "label-resolver/internal/resolve/handler"
	"label-resolver/internal/resolve/model"
	"label-resolver/internal/resolve/service"
	"label-resolver/internal/store/postgres"
	"label-resolver/internal/store/sqlite"
	serverhttp "label-resolver/server/http"
)

// backend is what both stores provide.
type backend interface {
	Ping(ctx context.Context) error
	Close() error
	ListActiveItems(ctx context.Context, tenantID string) ([]model.CatalogItem, error)
	SaveItems(ctx context.Context, tenantID string, items []model.CatalogItem) error
	Find(ctx context.Context, tenantID, phrase string) (string, bool, error)
	UpsertIfAbsent(ctx context.Context, tenantID, phrase, itemID string) (bool, error)
	Dispatch(ctx context.Context, tenantID string, labels []order.LabelRequest) error
}

func openBackend(ctx context.Context, cfg config.Config, logger zerolog.Logger) (backend, error) {
	if cfg.DBDriver == "postgres" {
		return postgres.Open(ctx, postgres.Config{DSN: cfg.DBURL}, logger)
	}
	return sqlite.Open(cfg.DBURL)
}

func main() {
	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		runtime.GOMAXPROCS(runtime.NumCPU())
	}

	cfg := config.Load()
	logger := config.SetupLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("config")
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), 15*time.Second)
	db, err := openBackend(startCtx, cfg, logger)
	startCancel()
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("open store")
	}
	defer db.Close()

	cache := catalog.NewCache(db, logger, catalog.WithTTL(cfg.CatalogTTL))
	aliases := alias.NewStore(db, cache, logger)
	resolver := service.NewResolver(cache, aliases, logger)

	deps := order.Deps{
		Catalog:    cache,
		Resolver:   resolver,
		Dispatcher: db,
		Learner:    aliases,
	}
	if cfg.OpenAI.APIKey != "" {
		ai := openai.NewClient(openai.Config{
			APIKey:          cfg.OpenAI.APIKey,
			BaseURL:         cfg.OpenAI.BaseURL,
			Model:           cfg.OpenAI.Model,
			TranscribeModel: cfg.OpenAI.TranscribeModel,
			Timeout:         cfg.OpenAI.Timeout,
		}, logger)
		deps.Transcriber = ai
		if cfg.RemoteFallback {
			deps.Parser = ai
		}
	}
	orders := order.NewService(deps, order.Config{
		Policy:    service.Policy{RemoteEnabled: cfg.RemoteFallback},
		Language:  cfg.NumberLang,
		Languages: cfg.VoiceLangs,
	}, logger)

	h := resHnd.New(resHnd.Deps{
		Segmenter: service.NewSegmenter(cfg.NumberLang),
		Resolver:  resolver,
		Orders:    orders,
		Catalog:   cache,
		Writer:    db,
		Aliases:   aliases,
	}, cfg.MaxUploadMB, logger)

	r := serverhttp.NewRouter(cfg, h, db, logger)

	srv := &http.Server{Addr: cfg.Addr(), Handler: r, ReadHeaderTimeout: 10 * time.Second}
	logger.Info().
		Str("addr", cfg.Addr()).
		Str("driver", cfg.DBDriver).
		Bool("remote_fallback", cfg.RemoteFallback).
		Msg("server starting")

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("listen")
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	logger.Info().Msg("bye")
}
