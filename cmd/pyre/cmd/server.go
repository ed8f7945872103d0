package cmd

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/jmcleod/pyre/api"
	"github.com/jmcleod/pyre/pipeline"
	"github.com/jmcleod/pyre/session"
	"github.com/jmcleod/pyre/storage"
	bboltstorage "github.com/jmcleod/pyre/storage/bbolt"
	"github.com/jmcleod/pyre/wipe"
)

var (
	port            int
	baseDir         string
	dataDir         string
	artifactDir     string
	artifactBaseURL string
	uploadTimeout   time.Duration
	retention       time.Duration
	masterKeyFile   string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the wipe service server",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

		base, err := filepath.Abs(baseDir)
		if err != nil {
			return fmt.Errorf("resolving base directory: %w", err)
		}
		if _, err := os.Stat(base); err != nil {
			return fmt.Errorf("base directory %s: %w", base, err)
		}
		if err := os.MkdirAll(dataDir, 0o700); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}

		snapshots, err := session.NewSnapshotStore(filepath.Join(dataDir, "snapshots"))
		if err != nil {
			return fmt.Errorf("failed to open snapshot storage: %w", err)
		}
		store := session.NewStore(snapshots,
			session.WithLogger(logger),
			session.WithRetention(retention),
		)
		defer store.Close()

		records, err := bboltstorage.NewStoreFromFile(filepath.Join(dataDir, "records.db"), nil)
		if err != nil {
			return fmt.Errorf("failed to open record storage: %w", err)
		}
		defer records.Close()

		uploader, err := buildUploader()
		if err != nil {
			return err
		}

		p := pipeline.New(store, uploader, records,
			pipeline.WithUploadTimeout(uploadTimeout),
			pipeline.WithLogger(logger),
		)
		store.SetCompletionHook(p.Run)

		engine := wipe.NewEngine(wipe.WithEngineLogger(logger))
		walker := wipe.NewWalker(engine, store, logger)
		a := api.New(store, walker, records, base, api.WithLogger(logger))

		r := chi.NewRouter()
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})

		r.Mount("/api/v1", a.Router())

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		printBanner()
		fmt.Printf("Starting server on port %d (base: %s, data: %s)...\n", port, base, dataDir)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			fmt.Printf("\nReceived %s, shutting down...\n", sig)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

// buildUploader assembles the storage collaborator: a filesystem-backed
// object store, optionally wrapped with payload encryption when a master
// key file is configured.
func buildUploader() (storage.Uploader, error) {
	fs, err := storage.NewFSUploader(artifactDir, artifactBaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact storage: %w", err)
	}
	if masterKeyFile == "" {
		return fs, nil
	}

	raw, err := os.ReadFile(masterKeyFile)
	if err != nil {
		return nil, fmt.Errorf("reading master key file: %w", err)
	}
	key, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("master key file must contain hex: %w", err)
	}
	enc, err := storage.NewEncryptingUploader(fs, key)
	if err != nil {
		return nil, err
	}
	for i := range key {
		key[i] = 0
	}
	return enc, nil
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on")
	serverCmd.Flags().StringVar(&baseDir, "base-dir", "./files", "Directory all wipe targets must resolve inside")
	serverCmd.Flags().StringVar(&dataDir, "data-dir", "./data", "Directory for session snapshots and durable records")
	serverCmd.Flags().StringVar(&artifactDir, "artifact-dir", "./data/artifacts", "Directory backing the artifact object store")
	serverCmd.Flags().StringVar(&artifactBaseURL, "artifact-base-url", "/artifacts", "Base URL reported for uploaded artifacts")
	serverCmd.Flags().DurationVar(&uploadTimeout, "upload-timeout", 30*time.Second, "Timeout for each artifact upload")
	serverCmd.Flags().DurationVar(&retention, "session-retention", time.Hour, "How long terminal sessions stay in live memory")
	serverCmd.Flags().StringVar(&masterKeyFile, "artifact-key-file", "", "Hex-encoded 32-byte master key for artifact payload encryption (optional)")
}
