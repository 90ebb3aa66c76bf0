package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"codedrop/internal/blobstore"
	"codedrop/internal/config"
	"codedrop/internal/objectstore"
	"codedrop/internal/server"
	"codedrop/internal/share"
	"codedrop/internal/store"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "srv",
		Short: "Run the codedrop API server and expiry sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return fmt.Errorf("config not initialized")
			}
			if cfg.DBPath == "" {
				return fmt.Errorf("db path is required")
			}

			logger := slog.Default().With("component", "server")

			addr, err := server.ListenAddr(cfg.APIURL)
			if err != nil {
				return err
			}

			ctx := cmd.Context()

			logger.Info("opening database", "path", cfg.DBPath)
			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			blobs, err := openBlobStore(ctx, cfg)
			if err != nil {
				return err
			}
			logger.Info("blob storage ready", "backend", blobs.Backend())

			bucket := objectstore.New(st, blobs, logger)
			deletes := share.NewDeletionService(bucket, logger)
			uploads := share.NewUploadService(bucket, st, deletes, share.Limits{
				MaxFileBytes:  cfg.Limits.MaxFileBytes,
				MaxBatchBytes: cfg.Limits.MaxBatchBytes,
			}, logger)
			sweeper := share.NewSweeper(bucket, st, deletes, share.SweeperConfig{
				Retention: cfg.Expiry.Retention.Duration,
				Interval:  cfg.Expiry.SweepInterval.Duration,
				BatchSize: cfg.Expiry.BatchSize,
			}, logger)

			if err := sweeper.Start(ctx); err != nil {
				return err
			}
			defer sweeper.Stop()

			srv := server.New(addr, server.Services{
				Store:              st,
				Uploads:            uploads,
				Reads:              share.NewRetrievalService(bucket),
				Deletes:            deletes,
				Sweeper:            sweeper,
				Backend:            blobs.Backend(),
				MultipartMaxMemory: cfg.Limits.MultipartMaxMemory,
			}, logger)
			return srv.ListenAndServe(ctx)
		},
	}
}

func openBlobStore(ctx context.Context, cfg *config.Config) (blobstore.BlobStore, error) {
	switch cfg.Storage.Backend {
	case config.BackendS3:
		s3cfg := cfg.Storage.S3
		return blobstore.NewS3Store(ctx, blobstore.S3Config{
			Bucket:    s3cfg.Bucket,
			Region:    s3cfg.Region,
			Endpoint:  s3cfg.Endpoint,
			AccessKey: s3cfg.AccessKey,
			SecretKey: s3cfg.SecretKey,
			Prefix:    s3cfg.Prefix,
			SpoolDir:  filepath.Join(cfg.DataDir, "spool"),
		})
	default:
		return blobstore.NewLocalFS(filepath.Join(cfg.DataDir, "blobs"))
	}
}
