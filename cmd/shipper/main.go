// Command shipper collects the logs of every pod behind a Deployment,
// StatefulSet or bare Pod, gzips them, and uploads one object per pod.
//
// Usage:
//
//	RESOURCE_TYPE=deployment RESOURCE_NAME=web NAMESPACE=prod BUCKET_NAME=pod-logs shipper
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/podlog-shipper/internal/config"
	"github.com/p-blackswan/podlog-shipper/internal/k8s"
	"github.com/p-blackswan/podlog-shipper/internal/metrics"
	"github.com/p-blackswan/podlog-shipper/internal/runid"
	"github.com/p-blackswan/podlog-shipper/internal/shipper"
	"github.com/p-blackswan/podlog-shipper/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Every failure is logged; the exit path is the same whatever went wrong.
	run(ctx, os.Stdout)
}

func newLogger(out io.Writer, cfg *config.Config) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if cfg != nil && cfg.Development() {
		out = zerolog.ConsoleWriter{Out: os.Stderr}
	}
	logger := zerolog.New(out).With().Timestamp().Str("service", "podlog-shipper").Logger()

	if cfg != nil {
		if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && cfg.LogLevel != "" {
			logger = logger.Level(level)
		}
	}
	return logger
}

func run(ctx context.Context, out io.Writer) {
	cfg, err := config.Load()
	if err != nil {
		logger := newLogger(out, nil)
		logger.Error().Err(err).Msg("failed to load config")
		return
	}
	logger := newLogger(out, cfg)

	// Shipper.Run tags its own lines with the same ID.
	ctx, id := runid.New(ctx)

	logger.Info().
		Str("run_id", id).
		Str("resource_type", cfg.ResourceType).
		Str("resource_name", cfg.ResourceName).
		Str("namespace", cfg.Namespace).
		Str("bucket", cfg.BucketName).
		Bool("manifest", cfg.WriteManifest).
		Msg("starting log shipper")

	cluster, err := k8s.NewClient(k8s.Config{KubeconfigPath: cfg.Kubeconfig}, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to init k8s client")
		return
	}

	store, err := storage.NewUploader(ctx, storage.Config{
		Bucket:          cfg.BucketName,
		Region:          cfg.AWSRegion,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
		Endpoint:        cfg.S3Endpoint,
		UsePathStyle:    cfg.S3UsePathStyle,
	}, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to init storage client")
		return
	}

	m := metrics.New()
	s := shipper.New(cluster, store, m, shipper.Options{
		KeyPrefix:     cfg.KeyPrefix,
		WriteManifest: cfg.WriteManifest,
	}, logger)

	started := time.Now()
	// Run logs its own aborts with kind, name and namespace.
	_, _ = s.Run(ctx, cfg.Reference())
	m.ObserveRun(time.Since(started).Seconds(), float64(time.Now().Unix()))

	if cfg.PushgatewayURL != "" {
		grouping := map[string]string{"namespace": cfg.Namespace, "resource": cfg.ResourceName}
		if err := m.Push(ctx, cfg.PushgatewayURL, grouping); err != nil {
			logger.Warn().Err(err).Msg("failed to push metrics (non-fatal)")
		}
	}
}
