// wheeld is the token wheel daemon: it owns the live sessions, runs the
// models, and serves the NDJSON protocol on a Unix socket.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmmiller26/ai-fun-token-wheel-v2/internal/config"
	"github.com/cmmiller26/ai-fun-token-wheel-v2/internal/daemon"
	"github.com/cmmiller26/ai-fun-token-wheel-v2/internal/db"
	"github.com/cmmiller26/ai-fun-token-wheel-v2/internal/model"
	"github.com/cmmiller26/ai-fun-token-wheel-v2/internal/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "wheeld: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	catalog := model.NewCatalog()
	registerModels(catalog, cfg)

	// Load the default model up front so the first session doesn't pay
	// for it.
	if _, err := catalog.Get(cfg.DefaultModel); err != nil {
		return fmt.Errorf("preload default model: %w", err)
	}

	store, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer store.Close()

	svc := session.NewService(catalog, session.Options{
		TTL:              cfg.SessionTTL,
		SweepInterval:    cfg.SweepInterval,
		InferenceTimeout: cfg.InferenceTimeout,
		Workers:          cfg.Workers,
		Archive:          store,
		Logf:             log.Printf,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc.StartSweeper(ctx)

	srv := daemon.NewServer(svc, store, log.Printf)
	if err := srv.Listen(cfg.SocketPath); err != nil {
		return err
	}
	defer os.Remove(cfg.SocketPath)

	log.Printf("wheeld listening on %s (default model %s)", cfg.SocketPath, cfg.DefaultModel)
	return srv.Serve(ctx)
}

// registerModels wires every configured model into the catalog.
func registerModels(catalog *model.Catalog, cfg *config.Config) {
	catalog.Register(
		model.Info{
			ID:          "bytegram",
			Name:        "ByteGram",
			Description: "Built-in byte-level trigram model",
			Default:     cfg.DefaultModel == "bytegram",
		},
		func() (model.Adapter, error) {
			if cfg.CorpusPath != "" {
				bg, err := model.NewByteGramFromFile(cfg.CorpusPath)
				if err != nil {
					return nil, err
				}
				return bg, nil
			}
			return model.NewByteGram(), nil
		},
	)

	if cfg.RemoteBaseURL != "" {
		baseURL, modelID := cfg.RemoteBaseURL, cfg.RemoteModelID
		catalog.Register(
			model.Info{
				ID:          modelID,
				Name:        modelID,
				Description: "Remote inference server at " + baseURL,
				Default:     cfg.DefaultModel == modelID,
			},
			func() (model.Adapter, error) {
				client := &http.Client{Timeout: 60 * time.Second}
				remote, err := model.NewRemote(client, baseURL, modelID)
				if err != nil {
					return nil, err
				}
				return remote, nil
			},
		)
	}
}
