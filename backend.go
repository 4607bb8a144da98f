package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/sksouk/phajay-file-backup/config"
	"github.com/sksouk/phajay-file-backup/logging"
	"github.com/sksouk/phajay-file-backup/sync"
)

var errConnection = errors.New("cannot reach the bucket, check credentials and S3 settings")

// app bundles what every command needs.
type app struct {
	cfg    *config.Config
	log    zerolog.Logger
	engine *sync.Engine
}

type appOptions struct {
	dryRun   bool
	recorder sync.Recorder
}

func newApp(ctx context.Context, flags *globalFlags, opts appOptions) (*app, error) {
	cfg, err := config.Load(flags.envFile, flags.overrides())
	if err != nil {
		return nil, err
	}
	log := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)

	src, err := newSource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("driver", cfg.Driver).
		Str("bucket", cfg.S3.Bucket).
		Str("prefix", src.Prefix()).
		Str("local_path", cfg.Local.BackupPath).
		Msg("configuration loaded")

	fs := afero.NewOsFs()
	store := sync.NewManifestStore(fs, cfg.Local.ManifestPath, log)
	log.Debug().Str("manifest", store.Path()).Msg("using manifest")

	engine := sync.NewEngine(sync.Options{
		Src:       src,
		Store:     store,
		Fs:        fs,
		LocalRoot: cfg.Local.BackupPath,
		PageSize:  cfg.Sync.PageSize,
		DryRun:    opts.dryRun,
		Timeout:   cfg.Sync.Timeout,
		Logger:    log,
		Recorder:  opts.recorder,
	})
	return &app{cfg: cfg, log: log, engine: engine}, nil
}

// newSource builds the bucket client selected by cfg.Driver.
func newSource(ctx context.Context, cfg *config.Config) (sync.Source, error) {
	switch cfg.Driver {
	case config.DriverMinio:
		core, err := sync.NewMinioClient(sync.MinioConfig{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.AWS.AccessKeyID,
			SecretKey: cfg.AWS.SecretAccessKey,
			Region:    cfg.AWS.Region,
			UseSSL:    true,
		})
		if err != nil {
			return nil, err
		}
		return sync.NewMinioSource(core, cfg.S3.Bucket, cfg.S3.Prefix), nil

	default:
		client, err := newS3Client(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return sync.NewS3Source(client, cfg.S3.Bucket, cfg.S3.Prefix), nil
	}
}

func newS3Client(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWS.Region)}
	if cfg.AWS.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWS.AccessKeyID, cfg.AWS.SecretAccessKey, cfg.AWS.SessionToken),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
		}
		o.UsePathStyle = cfg.S3.ForcePathStyle
	}), nil
}
