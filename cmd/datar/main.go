// Command datar runs the DATAR conversational dispatch service: an HTTP API
// that routes chat messages to the agent personas of the Estructura Ecológica
// Principal de Bogotá.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"datar"
	"datar/config"
	"datar/logging"
	"datar/model"
	"datar/model/anthropic"
	"datar/model/openai"
	"datar/server"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(func(o *logging.Options) {
		o.Level = cfg.Logging.Level
		o.Format = cfg.Logging.Format
	})

	llm, err := buildModel(cfg.Model)
	if err != nil {
		log.Fatalf("model: %v", err)
	}
	logger.Info("model configured", "provider", llm.Info().Provider, "name", llm.Info().Name)

	svc := datar.New(func(o *datar.Options) {
		o.Model = llm
		o.MaxMessageLength = cfg.Dispatch.MaxMessageLength
		o.MaxResponseLength = cfg.Dispatch.MaxResponseLength
		o.ExecuteTimeout = cfg.Dispatch.ExecuteTimeout.Std()
		o.MaxSessions = cfg.Sessions.MaxSessions
		o.IdleTTL = cfg.Sessions.IdleTTL.Std()
		o.Logger = logger
	})

	srv := server.New(svc, cfg.Server.Addr(), func(o *server.Options) {
		o.AllowedOrigins = cfg.Server.AllowedOrigins
		o.WriteTimeout = cfg.Dispatch.ExecuteTimeout.Std() + 30*time.Second
		o.Logger = logger
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server terminated", "error", err)
			os.Exit(1)
		}
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("shutdown incomplete", "error", err)
			os.Exit(1)
		}
	}
}

// buildModel selects the generation backend from config. The mock provider
// keeps the service runnable without credentials.
func buildModel(cfg config.ModelConfig) (model.Model, error) {
	switch cfg.Provider {
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Name != "" {
				o.Model = anthropicsdk.Model(cfg.Name)
			}
			o.Temperature = cfg.Temperature
			o.MaxTokens = cfg.MaxTokens
			o.APIKey = cfg.APIKey
		}), nil
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			if cfg.Name != "" {
				o.Model = cfg.Name
			}
			o.Temperature = cfg.Temperature
			o.MaxCompletionTokens = cfg.MaxTokens
			o.APIKey = cfg.APIKey
		}), nil
	default:
		return model.NewMockModel(datar.RootAgentName), nil
	}
}
