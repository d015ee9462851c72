package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"mediagen/internal/adapter/repo"
	"mediagen/internal/catalog"
	"mediagen/internal/domain"
	"mediagen/internal/http/handlers"
	"mediagen/internal/http/httpapi"
	"mediagen/internal/infra"
	"mediagen/internal/infra/geoip"
	"mediagen/internal/middleware"
	"mediagen/internal/pipeline"
	"mediagen/internal/providers/heygen"
	"mediagen/internal/providers/kling"
	"mediagen/internal/providers/minimax"
	"mediagen/internal/providers/scribe"
	"mediagen/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()

	// Generation records are optional; without a database the service still
	// orchestrates runs, it just keeps no history.
	var generations domain.GenerationRepository
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer pool.Close()
		store := repo.NewGenerationRepository(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare schema")
		}
		generations = store
	} else {
		logger.Warn().Msg("DATABASE_URL not set, generation records disabled")
	}

	fileStore, err := storage.NewFileStore(cfg.StoragePath, cfg.StorageBucket, cfg.StorageBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure storage")
	}

	pipe := pipeline.New(pipeline.Options{
		Materializer:  storage.NewMaterializer(fileStore),
		Logger:        logger,
		RefreshMargin: cfg.TokenRefreshMargin,
	})

	app := &handlers.App{
		Pipeline: pipe,
		Kling: kling.New(kling.Options{
			BaseURL:      cfg.KlingBaseURL,
			PollInterval: cfg.KlingPollInterval,
			MaxWait:      cfg.KlingMaxWait,
		}),
		Heygen: heygen.New(heygen.Options{
			BaseURL:      cfg.HeygenBaseURL,
			PollInterval: cfg.HeygenPollInterval,
			MaxWait:      cfg.HeygenMaxWait,
		}),
		Minimax: minimax.New(minimax.Options{
			BaseURL:      cfg.MinimaxBaseURL,
			PollInterval: cfg.MinimaxPollInterval,
			MaxWait:      cfg.MinimaxMaxWait,
		}),
		Scribe: scribe.New(scribe.Options{
			BaseURL:      cfg.ScribeBaseURL,
			PollInterval: cfg.ScribePollInterval,
			MaxWait:      cfg.ScribeMaxWait,
		}),
		Catalog: catalog.NewResolver(catalog.Options{
			BaseURL:  cfg.HeygenBaseURL,
			Fallback: catalog.Defaults{AvatarID: cfg.DefaultAvatarID, VoiceID: cfg.DefaultVoiceID},
			CacheTTL: cfg.CatalogCacheTTL,
			Logger:   logger,
		}),
		Generations: generations,
		Logger:      logger,
	}

	var countryLookup middleware.CountryLookup
	if resolver, err := geoip.NewResolver(cfg.GeoIPDBPath); err != nil {
		logger.Warn().Err(err).Msg("geoip unavailable")
	} else if resolver != nil {
		countryLookup = resolver.CountryCode
	}

	router := httpapi.NewRouter(app, httpapi.Options{
		AllowedOrigins:  []string{"http://localhost:3000"},
		DefaultLocale:   cfg.DefaultLocale,
		CountryLookup:   countryLookup,
		RateLimitPerSec: cfg.RateLimitPerSec,
		RateLimitBurst:  cfg.RateLimitBurst,
		StaticDir:       cfg.StoragePath,
		Logger:          middleware.Logger(logger),
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
