package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		AWS:    AWS{Region: "us-east-1"},
		S3:     S3{Bucket: "backups"},
		Local:  Local{BackupPath: "./backup", ManifestPath: "./last_sync.json"},
		Sync:   Sync{Schedule: "0 */6 * * *", Timezone: "Asia/Bangkok", PageSize: 1000},
		Log:    Log{Level: "info", Format: FormatConsole},
		Driver: DriverS3,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"valid", func(*Config) {}, nil},
		{"missing bucket", func(c *Config) { c.S3.Bucket = "" }, ErrMissingBucket},
		{"unknown driver", func(c *Config) { c.Driver = "gcs" }, ErrUnknownDriver},
		{"minio without endpoint", func(c *Config) { c.Driver = DriverMinio }, ErrInvalidMinioConfig},
		{"minio complete", func(c *Config) {
			c.Driver = DriverMinio
			c.S3.Endpoint = "minio.local:9000"
			c.AWS.AccessKeyID = "id"
			c.AWS.SecretAccessKey = "secret"
		}, nil},
		{"empty backup path", func(c *Config) { c.Local.BackupPath = "" }, ErrMissingPaths},
		{"page size zero", func(c *Config) { c.Sync.PageSize = 0 }, ErrInvalidPageSize},
		{"page size too big", func(c *Config) { c.Sync.PageSize = 1001 }, ErrInvalidPageSize},
		{"negative timeout", func(c *Config) { c.Sync.Timeout = -1 }, ErrInvalidTimeout},
		{"bad schedule", func(c *Config) { c.Sync.Schedule = "every six hours" }, ErrInvalidSchedule},
		{"seconds field rejected", func(c *Config) { c.Sync.Schedule = "0 0 */6 * * *" }, ErrInvalidSchedule},
		{"bad timezone", func(c *Config) { c.Sync.Timezone = "Mars/Olympus" }, ErrInvalidTimezone},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, ErrInvalidLogConfig},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, ErrInvalidLogConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLocation(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "Asia/Bangkok", cfg.Location().String())
}
