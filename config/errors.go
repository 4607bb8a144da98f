package config

import "errors"

// Validation errors returned by [Config.Validate].
var (
	// ErrMissingBucket indicates that S3_BUCKET_NAME is not set.
	ErrMissingBucket = errors.New("S3_BUCKET_NAME is required")
	// ErrUnknownDriver indicates an unsupported STORE_DRIVER value.
	ErrUnknownDriver = errors.New("unknown store driver")
	// ErrInvalidMinioConfig indicates that the minio driver lacks an
	// endpoint or credentials.
	ErrInvalidMinioConfig = errors.New("minio driver requires S3_ENDPOINT and credentials")
	// ErrInvalidPageSize indicates a LIST_PAGE_SIZE outside 1..1000.
	ErrInvalidPageSize = errors.New("LIST_PAGE_SIZE must be between 1 and 1000")
	// ErrInvalidSchedule indicates a BACKUP_SCHEDULE that is not a standard
	// five-field cron expression.
	ErrInvalidSchedule = errors.New("invalid backup schedule")
	// ErrInvalidTimezone indicates an unknown BACKUP_TIMEZONE.
	ErrInvalidTimezone = errors.New("invalid backup timezone")
	// ErrInvalidLogConfig indicates an unknown LOG_LEVEL or LOG_FORMAT.
	ErrInvalidLogConfig = errors.New("invalid log configuration")
	// ErrInvalidTimeout indicates a negative RUN_TIMEOUT.
	ErrInvalidTimeout = errors.New("RUN_TIMEOUT must not be negative")
	// ErrMissingPaths indicates an empty local backup or manifest path.
	ErrMissingPaths = errors.New("LOCAL_BACKUP_PATH and LAST_SYNC_FILE must not be empty")
)
