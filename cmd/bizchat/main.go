// Command bizchat runs the business-assistant chat backend.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bizchat-ai/bizchat/internal/agent"
	"github.com/bizchat-ai/bizchat/internal/config"
	"github.com/bizchat-ai/bizchat/internal/llm"
	"github.com/bizchat-ai/bizchat/internal/metrics"
	"github.com/bizchat-ai/bizchat/internal/moderation"
	"github.com/bizchat-ai/bizchat/internal/prompt"
	"github.com/bizchat-ai/bizchat/internal/server"
	"github.com/bizchat-ai/bizchat/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "bizchat:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to the TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer log.Sync()

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	builder := prompt.NewBuilder()
	builder.MaxContextChars = cfg.Context.MaxChars

	ag := agent.New(agent.Config{
		Store:             st,
		Model:             llm.NewClient(cfg.LLM, log.Named("llm")),
		Builder:           builder,
		Moderator:         moderation.New(cfg.Moderation.ForbiddenWords...),
		Metrics:           metrics.NewCollector(),
		Logger:            log.Named("agent"),
		KeywordRatio:      cfg.Resolver.KeywordRatio,
		LastEventFallback: cfg.Actions.LastEventFallback,
	})

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: server.New(server.Config{
			Agent:        ag,
			Store:        st,
			Logger:       log.Named("http"),
			MaxBodyBytes: cfg.Server.MaxBodyBytes,
		}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeoutSec)*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zcfg zap.Config
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}
