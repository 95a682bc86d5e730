package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cjeanneret/FotoBoo/internal/api"
	"github.com/cjeanneret/FotoBoo/internal/config"
	"github.com/cjeanneret/FotoBoo/internal/debug"
	"github.com/cjeanneret/FotoBoo/internal/photostore"
	"github.com/cjeanneret/FotoBoo/internal/telemetry"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	debug.Init(cfg.DebugLevel)
	debug.Section("Initialization")
	debug.PrintStruct("Server config", *cfg)

	shutdownTracing, err := telemetry.Setup(ctx, "fotoboo-api")
	if err != nil {
		log.Fatalf("init tracing failed: %v", err)
	}
	defer shutdownTracing(context.Background())

	svc, closeStore, err := openService(ctx, cfg)
	if err != nil {
		log.Fatalf("open photo store failed: %v", err)
	}
	defer closeStore()

	handler := api.NewRouter(svc, api.Options{
		MaxUploadBytes: cfg.MaxUploadBytes,
		CORSOrigin:     cfg.CORSOrigin,
	})
	if err := serve(ctx, cfg.Addr(), handler); err != nil {
		log.Fatalf("api server: %v", err)
	}
}

// openService opens the metadata index and the configured blob backend.
func openService(ctx context.Context, cfg *config.ServerConfig) (*photostore.Service, func(), error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create database dir: %w", err)
	}
	index, err := photostore.OpenIndex(ctx, cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	closeIndex := func() {
		if err := index.Close(); err != nil {
			log.Printf("closing index failed: %v", err)
		}
	}

	var blobs photostore.BlobStore
	switch cfg.BlobBackend {
	case config.BlobS3:
		debug.Step(1, "Using S3 blob store")
		blobs, err = photostore.NewS3Store(ctx, photostore.S3Options{
			Bucket:    cfg.S3.Bucket,
			Prefix:    cfg.S3.Prefix,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			PathStyle: cfg.S3.PathStyle,
		})
	default:
		debug.Step(1, "Using filesystem blob store")
		blobs, err = photostore.NewDirStore(cfg.StoragePath)
	}
	if err != nil {
		closeIndex()
		return nil, nil, err
	}
	return photostore.NewService(index, blobs), closeIndex, nil
}

// serve runs the HTTP server until ctx is cancelled, then shuts down gracefully.
func serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("api server listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
