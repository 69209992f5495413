package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"nexus.chat/internal/ai"
	"nexus.chat/internal/api"
	"nexus.chat/internal/cloudsync"
	"nexus.chat/internal/config"
	"nexus.chat/internal/export"
	"nexus.chat/internal/jobs"
	"nexus.chat/internal/localstore"
	"nexus.chat/internal/storage"
	"nexus.chat/internal/vault"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	cfg := config.Load()

	store, err := localstore.Open(cfg.DataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open local store")
	}

	syncSvc := cloudsync.New(cloudsync.Config{
		FirebaseAPIKey:    cfg.FirebaseAPIKey,
		FirebaseProjectID: cfg.FirebaseProjectID,
		MySQLDSN:          cfg.MySQLDSN,
	}, store)

	objects, err := storage.New(storage.Config{
		Type:      cfg.StorageType,
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
		LocalPath: cfg.LocalStoragePath,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize export storage")
	}

	var keys vault.KeyManager
	if cfg.ExportMasterKey != "" {
		keys, err = vault.NewEnvKeyManager(cfg.ExportMasterKey)
		if err != nil {
			log.Warn().Err(err).Msg("vault disabled, exports will be stored in plaintext")
			keys = nil
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider := ai.NewProvider(ctx)
	registry := api.NewRegistry(store, syncSvc)
	exports := export.NewService(objects, keys)

	jobs.StartTrialChecker(ctx, registry, cfg.TrialCheckInterval)

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: api.NewRouter(cfg, registry, provider, exports),
	}

	go func() {
		log.Info().Str("port", cfg.ServerPort).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
	registry.Wait()
}
