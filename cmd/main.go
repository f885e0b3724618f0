package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	router "PMRender/internal"
	"PMRender/internal/api/dto"
	"PMRender/internal/services"
	"PMRender/pkg/config"
)

const shutdownGrace = 10 * time.Second

func main() {
	rootCmd := &cobra.Command{
		Use:           "pmrender",
		Short:         "Audio visualizer render service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(serveCommand(), handleCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP render service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			setupLogging(cfg.LogLevel)

			lock := flock.New(filepath.Join(cfg.WorkDir, "pmrender.lock"))
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("failed to acquire instance lock: %w", err)
			}
			if !locked {
				return fmt.Errorf("another pmrender instance already owns %s", cfg.WorkDir)
			}
			defer lock.Unlock()

			mux, err := router.StartRoutes(cfg)
			if err != nil {
				return err
			}

			server := &http.Server{
				Addr:    fmt.Sprintf(":%d", cfg.Port),
				Handler: mux,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				slog.Info("listening", "port", cfg.Port, "max_concurrent", cfg.MaxConcurrent)
				errCh <- server.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			slog.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			return nil
		},
	}
}

func handleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "handle [job.json]",
		Short: "Run one job record and print the result record",
		Long: "Reads a serverless-style job record ({\"input\": {...}}) from the " +
			"given file or stdin, runs it to completion, and prints the result " +
			"record as JSON on stdout. Job failures are reported inside the " +
			"record, not via the exit code.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			setupLogging(cfg.LogLevel)

			var payload []byte
			if len(args) == 1 {
				payload, err = os.ReadFile(args[0])
			} else {
				payload, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("failed to read job record: %w", err)
			}

			var req dto.JobRequest
			if err := json.Unmarshal(payload, &req); err != nil {
				return fmt.Errorf("invalid job record: %w", err)
			}
			if req.Input == nil {
				return errors.New("job record has no input map")
			}

			renderService, err := services.BuildRenderService(cfg)
			if err != nil {
				return err
			}

			result := renderService.Handle(cmd.Context(), req.Input)

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(result)
		},
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}
