// Package config loads the backup service configuration from the process
// environment and an optional dotenv file.
package config

import (
	"time"
	_ "time/tzdata"
)

// Store drivers.
const (
	DriverS3    = "s3"
	DriverMinio = "minio"
)

// Log formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// DefaultEnvFile is read when present; a missing default file is not an
// error.
const DefaultEnvFile = ".env"

// Config is the complete runtime configuration.
type Config struct {
	AWS   AWS   `envPrefix:"AWS_"`
	S3    S3    `envPrefix:"S3_"`
	Local Local
	Sync  Sync
	Log   Log `envPrefix:"LOG_"`

	// Driver selects the client used to talk to the bucket: "s3" for the
	// AWS SDK, "minio" for minio-go.
	Driver string `env:"STORE_DRIVER" envDefault:"s3"`

	// MetricsAddress is the listen address of the Prometheus endpoint in
	// serve mode. Empty disables it.
	MetricsAddress string `env:"METRICS_ADDRESS"`
}

// AWS holds credentials and region. Empty credentials fall back to the SDK
// default chain for the s3 driver.
type AWS struct {
	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	SecretAccessKey string `env:"SECRET_ACCESS_KEY"`
	SessionToken    string `env:"SESSION_TOKEN"`
	Region          string `env:"REGION" envDefault:"us-east-1"`
}

// S3 locates the remote objects.
type S3 struct {
	Bucket string `env:"BUCKET_NAME"`
	Prefix string `env:"PREFIX"`
	// Endpoint points the client at an S3-compatible service instead of AWS.
	Endpoint       string `env:"ENDPOINT"`
	ForcePathStyle bool   `env:"FORCE_PATH_STYLE"`
}

// Local describes where objects and the manifest are written.
type Local struct {
	BackupPath   string `env:"LOCAL_BACKUP_PATH" envDefault:"./backup"`
	ManifestPath string `env:"LAST_SYNC_FILE" envDefault:"./last_sync.json"`
}

// Sync tunes scheduling and runs.
type Sync struct {
	Schedule string        `env:"BACKUP_SCHEDULE" envDefault:"0 */6 * * *"`
	Timezone string        `env:"BACKUP_TIMEZONE" envDefault:"Asia/Bangkok"`
	Timeout  time.Duration `env:"RUN_TIMEOUT"`
	PageSize int32         `env:"LIST_PAGE_SIZE" envDefault:"1000"`
}

// Log configures the logger.
type Log struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"console"`
}
