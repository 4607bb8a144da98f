package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sksouk/phajay-file-backup/config"
	"github.com/sksouk/phajay-file-backup/logging"
)

// Build metadata, set with -ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// globalFlags override the environment configuration when set.
type globalFlags struct {
	envFile      string
	logLevel     string
	bucket       string
	prefix       string
	localPath    string
	manifestPath string
}

func (f *globalFlags) overrides() *config.Config {
	return &config.Config{
		S3:    config.S3{Bucket: f.bucket, Prefix: f.prefix},
		Local: config.Local{BackupPath: f.localPath, ManifestPath: f.manifestPath},
		Log:   config.Log{Level: f.logLevel},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logger := logging.New("info", config.FormatConsole, os.Stderr)
		logger.Error().Err(err).Msg("exiting")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "phajay-file-backup",
		Short: "Incremental backup of an S3 bucket prefix to a local directory",
		Long: `phajay-file-backup mirrors the objects under an S3 bucket prefix into a
local directory. Objects already downloaded are recorded in a JSON manifest
and are fetched again only when their local copy disappears. Nothing is ever
deleted locally.

Configuration is read from the environment (and a .env file); the flags
below override it.

Examples:
  # Back up once and exit
  phajay-file-backup run

  # Back up on the BACKUP_SCHEDULE cron schedule until interrupted
  phajay-file-backup serve --initial-backup

  # Show what has been backed up so far
  phajay-file-backup status`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.envFile, "env-file", config.DefaultEnvFile, "dotenv file to read before the environment")
	pf.StringVarP(&flags.logLevel, "log-level", "l", "", "log level (overrides LOG_LEVEL)")
	pf.StringVar(&flags.bucket, "bucket", "", "bucket name (overrides S3_BUCKET_NAME)")
	pf.StringVar(&flags.prefix, "prefix", "", "key prefix (overrides S3_PREFIX)")
	pf.StringVar(&flags.localPath, "local-path", "", "backup directory (overrides LOCAL_BACKUP_PATH)")
	pf.StringVar(&flags.manifestPath, "manifest", "", "manifest file (overrides LAST_SYNC_FILE)")

	rootCmd.AddCommand(newRunCmd(flags))
	rootCmd.AddCommand(newServeCmd(flags))
	rootCmd.AddCommand(newStatusCmd(flags))

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "phajay-file-backup %s\n", Version)
			fmt.Fprintf(out, "  Commit:     %s\n", Commit)
			fmt.Fprintf(out, "  Build Time: %s\n", BuildTime)
		},
	})

	return rootCmd
}
