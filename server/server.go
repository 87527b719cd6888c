package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abiiranathan/pdfmatch/cli"
	"github.com/abiiranathan/pdfmatch/metrics"
	"github.com/abiiranathan/pdfmatch/routes"
)

// DefaultShutdownTimeout is how long pending requests are given to finish.
const DefaultShutdownTimeout = 10 * time.Second

// Run serves the search application until ctx is done, then shuts the
// server down gracefully.
func Run(ctx context.Context, config *cli.Config, viewsFs fs.FS, svc *routes.Services) error {
	// Create the static directory if it does not exist.
	// We use this to store the highlighted page images.
	err := os.MkdirAll(config.StaticDir, os.ModePerm)
	if err != nil {
		return fmt.Errorf("unable to create directory: %s: %w", config.StaticDir, err)
	}

	tmpl, err := template.ParseFS(viewsFs, "templates/*.html")
	if err != nil {
		return fmt.Errorf("unable to parse templates: %w", err)
	}

	mux := http.NewServeMux()
	routes.SetupRoutes(mux, tmpl, svc)

	// Create a new http server to customize the timeouts.
	// Rendering large pages and waiting on the completion API take a while.
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", config.Port),
		Handler:           metrics.Middleware()(routes.Logger(svc.Logger)(mux)),
		ReadTimeout:       time.Minute,
		WriteTimeout:      2 * time.Minute,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go CleanUpArtifacts(ctx, svc.Logger, config.StaticDir, config.ArtifactTTL, time.Minute)

	errCh := make(chan error, 1)
	go func() {
		svc.Logger.Info(fmt.Sprintf("Listening on http://0.0.0.0:%d", config.Port))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server terminated with error: %w", err)
	case <-ctx.Done():
	}

	return GracefulShutdown(server, svc.Logger, DefaultShutdownTimeout)
}

// CleanUpArtifacts removes expired page images from dir every interval
// until ctx is done.
func CleanUpArtifacts(ctx context.Context, logger *slog.Logger, dir string, ttl, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed, err := RemoveExpired(dir, ttl, time.Now())
			if err != nil {
				logger.Warn("unable to clean up generated images", "dir", dir, "err", err)
				continue
			}
			if removed > 0 {
				logger.Debug("cleaned up generated images", "removed", removed)
			}
		case <-ctx.Done():
			return
		}
	}
}

// RemoveExpired deletes PNG files in dir last modified more than ttl before now.
func RemoveExpired(dir string, ttl time.Duration, now time.Time) (int, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(strings.ToLower(file.Name()), ".png") {
			continue
		}

		info, err := file.Info()
		if err != nil {
			continue
		}

		if now.Sub(info.ModTime()) > ttl {
			if os.Remove(filepath.Join(dir, file.Name())) == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// Gracefully shuts down the server, waiting up to timeout
// for pending connections.
func GracefulShutdown(server *http.Server, logger *slog.Logger, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logger.Info("Shutting down the server")
	if err := server.Shutdown(ctx); err != nil {
		return err
	}
	logger.Info("shutting down gracefully")
	return nil
}
