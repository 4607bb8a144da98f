package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"dario.cat/mergo"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Load reads envFile (if any), then the process environment, overlays the
// non-zero fields of overrides and validates the result. Variables already
// set in the process environment win over the dotenv file.
func Load(envFile string, overrides *Config) (*Config, error) {
	return newBuilder(os.Environ()).
		withDotEnv(envFile).
		withEnv().
		withOverrides(overrides).
		build()
}

type builder struct {
	environ map[string]string
	dotenv  map[string]string
	configs []*Config
	err     error
}

func newBuilder(environ []string) *builder {
	return &builder{
		environ: env.ToMap(environ),
		dotenv:  map[string]string{},
	}
}

// withDotEnv reads a dotenv file. A missing DefaultEnvFile is ignored; any
// other file must exist.
func (b *builder) withDotEnv(path string) *builder {
	if path == "" {
		return b
	}
	vars, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && path == DefaultEnvFile {
			return b
		}
		b.err = errors.Join(b.err, fmt.Errorf("read env file %s: %w", path, err))
		return b
	}
	b.dotenv = vars
	return b
}

func (b *builder) withEnv() *builder {
	vars := make(map[string]string, len(b.dotenv)+len(b.environ))
	for k, v := range b.dotenv {
		vars[k] = v
	}
	for k, v := range b.environ {
		vars[k] = v
	}

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: vars}); err != nil {
		b.err = errors.Join(b.err, fmt.Errorf("parse environment: %w", err))
		return b
	}
	b.configs = append(b.configs, cfg)
	return b
}

func (b *builder) withOverrides(o *Config) *builder {
	if o != nil {
		b.configs = append(b.configs, o)
	}
	return b
}

func (b *builder) build() (*Config, error) {
	if b.err != nil {
		return nil, fmt.Errorf("load config: %w", b.err)
	}

	cfg := new(Config)
	for _, c := range b.configs {
		if err := mergo.Merge(cfg, c, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
