package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"snapgram/config"
	"snapgram/database"
	"snapgram/handlers"
	"snapgram/mailer"
	"snapgram/media"
	"snapgram/notifier"
	"snapgram/routes"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("configuration")
	}

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	log.Info().Msg("connecting to MongoDB")
	var store *database.Store
	for attempt := 1; attempt <= 3; attempt++ {
		store, err = database.Connect(context.Background(), cfg.MongoURI, cfg.MongoDB)
		if err == nil {
			break
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("MongoDB connection failed")
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("could not connect to MongoDB")
	}
	log.Info().Msg("MongoDB connected")

	indexCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := store.EnsureIndexes(indexCtx); err != nil {
		cancel()
		log.Fatal().Err(err).Msg("index creation failed")
	}
	cancel()

	uploads, err := media.New(cfg.CloudinaryURL)
	if err != nil {
		log.Fatal().Err(err).Msg("media host configuration")
	}
	mail := mailer.New(cfg.ResendAPIKey, cfg.SenderEmail)

	queue := notifier.New(store, notifier.Config{
		VAPIDPublicKey:  cfg.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.VAPIDPrivateKey,
		Subscriber:      cfg.VAPIDSubscriber,
	})
	queue.Start()

	h := handlers.New(store, uploads, mail, queue, cfg)
	router := routes.SetupRouter(h, store, cfg)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	queue.Stop()
	if err := store.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("MongoDB disconnect")
	}

	log.Info().Msg("server stopped")
}
