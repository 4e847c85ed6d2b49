package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/filedrive/filedrive/internal/config"
	"github.com/filedrive/filedrive/internal/drive"
	"github.com/filedrive/filedrive/internal/metrics"
	"github.com/filedrive/filedrive/internal/objectstore"
	"github.com/filedrive/filedrive/internal/objectstore/disk"
	"github.com/filedrive/filedrive/internal/objectstore/s3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// app bundles what a command needs to talk to one user's drive.
type app struct {
	drive     *drive.Drive
	tenant    drive.TenantID
	timeout   time.Duration
	maxUpload int64
	out       io.Writer
}

// newStore builds the configured backend.
func newStore(cfg *config.Config) (objectstore.Client, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return objectstore.NewMemoryStore(), nil
	case config.BackendDisk:
		store, err := disk.NewStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("open disk store: %w", err)
		}
		return store, nil
	case config.BackendS3:
		client, err := s3.NewClient(s3.Config{
			Endpoint:        cfg.S3.Endpoint,
			Region:          cfg.S3.Region,
			AccessKeyID:     cfg.S3.AccessKey,
			SecretAccessKey: cfg.S3.SecretKey,
			ForcePathStyle:  cfg.S3.ForcePathStyle,
			DisableSSL:      cfg.S3.DisableSSL,
			Timeout:         cfg.Timeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("open s3 client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

var (
	storeMetricsOnce sync.Once
	storeMetrics     *metrics.StoreMetrics
)

// defaultStoreMetrics registers the store metrics on the package registry once
// per process.
func defaultStoreMetrics() *metrics.StoreMetrics {
	storeMetricsOnce.Do(func() {
		storeMetrics = metrics.NewStoreMetrics(nil)
	})
	return storeMetrics
}

// newApp wires a drive for the tenant chosen by flag or config. Store calls
// are counted on m when it is non-nil.
func newApp(cfg *config.Config, user string, m *metrics.StoreMetrics, out io.Writer) (*app, error) {
	if user == "" {
		user = cfg.User
	}
	if user == "" {
		return nil, fmt.Errorf("no user given: pass --user or set user in the config file")
	}

	store, err := newStore(cfg)
	if err != nil {
		return nil, err
	}
	d, err := drive.New(metrics.Instrument(store, m), drive.Options{
		Bucket:   cfg.Bucket,
		PageSize: cfg.PageSize,
	})
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("backend", cfg.Backend).
		Str("bucket", cfg.Bucket).
		Str("user", user).
		Msg("drive ready")

	return &app{
		drive:     d,
		tenant:    drive.TenantID(user),
		timeout:   cfg.Timeout(),
		maxUpload: cfg.MaxUploadSize.Bytes(),
		out:       out,
	}, nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// runWithApp adapts fn into a cobra RunE: it sets up logging, builds the app
// and bounds fn by the configured request timeout.
func runWithApp(fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			setupLogging(logLevel)
			return err
		}
		level := logLevel
		if level == "" {
			level = cfg.LogLevel
		}
		setupLogging(level)

		a, err := newApp(cfg, userFlag, defaultStoreMetrics(), cmd.OutOrStdout())
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), a.timeout)
		defer cancel()

		runErr := fn(ctx, a, args)

		if metricsFile != "" {
			if err := metrics.WriteTextfile(metricsFile); err != nil {
				log.Warn().Err(err).Str("path", metricsFile).Msg("failed to write metrics textfile")
			}
		}
		return runErr
	}
}

// openLocal opens a local source for upload; "-" is stdin with unknown size.
func openLocal(path string) (io.ReadCloser, int64, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), -1, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, 0, fmt.Errorf("%s is a directory", path)
	}
	return f, info.Size(), nil
}
