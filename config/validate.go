package config

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Validate checks the merged configuration before any client is built.
func (c *Config) Validate() error {
	if c.S3.Bucket == "" {
		return ErrMissingBucket
	}

	switch c.Driver {
	case DriverS3:
	case DriverMinio:
		if c.S3.Endpoint == "" || c.AWS.AccessKeyID == "" || c.AWS.SecretAccessKey == "" {
			return ErrInvalidMinioConfig
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.Driver)
	}

	if c.Local.BackupPath == "" || c.Local.ManifestPath == "" {
		return ErrMissingPaths
	}

	if c.Sync.PageSize < 1 || c.Sync.PageSize > 1000 {
		return ErrInvalidPageSize
	}
	if c.Sync.Timeout < 0 {
		return ErrInvalidTimeout
	}
	if _, err := cron.ParseStandard(c.Sync.Schedule); err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidSchedule, c.Sync.Schedule, err)
	}
	if _, err := time.LoadLocation(c.Sync.Timezone); err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidTimezone, c.Sync.Timezone, err)
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidLogConfig, err)
	}
	if c.Log.Format != FormatConsole && c.Log.Format != FormatJSON {
		return fmt.Errorf("%w: unknown format %q", ErrInvalidLogConfig, c.Log.Format)
	}
	return nil
}

// Location returns the scheduler timezone. Validate must have succeeded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Sync.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
