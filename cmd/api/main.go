package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	v1 "github.com/apaluca/CipherTalk/cmd/api/router/v1"
	"github.com/apaluca/CipherTalk/internal/auth"
	"github.com/apaluca/CipherTalk/internal/config"
	cacheadapter "github.com/apaluca/CipherTalk/internal/infrastructure/cache/adapter"
	"github.com/apaluca/CipherTalk/internal/infrastructure/database"
	queueadapter "github.com/apaluca/CipherTalk/internal/infrastructure/queue/adapter"
	"github.com/apaluca/CipherTalk/internal/infrastructure/realtime"
	"github.com/apaluca/CipherTalk/internal/pkg/chat/application/broker"
	"github.com/apaluca/CipherTalk/internal/pkg/chat/application/task"
	"github.com/apaluca/CipherTalk/internal/pkg/chat/application/usecase"
	repoadapter "github.com/apaluca/CipherTalk/internal/pkg/chat/persistence/repository/adapter"
	httpHandler "github.com/apaluca/CipherTalk/internal/pkg/chat/presentation/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg)

	if cfg.IsRelease() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := database.Connect(connectCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer pool.Close()

	cache, err := cacheadapter.NewRedisCache(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer cache.Close()

	queueClient, err := queueadapter.NewAsynqClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("queue client failed")
	}
	defer queueClient.Close()

	queueServer, err := queueadapter.NewAsynqServer(cfg.RedisURL, cfg.AsynqConcurrency)
	if err != nil {
		log.Fatal().Err(err).Msg("queue server failed")
	}

	registry := realtime.NewRegistry()
	defer registry.Close()

	repo := repoadapter.NewPgChatRepository(pool)
	sendUC := usecase.NewSendMessageUseCase(repo)
	listUC := usecase.NewListParticipantsUseCase(repo)

	b := broker.New(sendUC, listUC, registry, log)
	relay := broker.NewRelay(listUC, registry, log)
	presence := broker.NewPresence(cache, registry, log)

	task.RegisterSendMessageTask(queueServer, sendUC, b)
	go func() {
		if err := queueServer.Run(ctx); err != nil {
			log.Error().Err(err).Msg("queue server stopped")
		}
	}()

	authn := auth.NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTValidity)

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": "database unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	v1.RegisterRoutes(r, httpHandler.Deps{
		Pool:     pool,
		Queue:    queueClient,
		Registry: registry,
		Broker:   b,
		Relay:    relay,
		Presence: presence,
		Authn:    authn,
		Log:      log,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		log.Info().Int("port", cfg.Port).Str("env", cfg.Env).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown incomplete")
	}
	_ = queueServer.Stop(shutdownCtx)
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	if !cfg.IsRelease() {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return log
}
