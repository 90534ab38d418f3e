// Package config loads the shell's ambient, environment-driven settings
// (log level, optional status server bind address, persistence backend)
// the same way the rest of the stack loads its configuration: a single
// envconfig.Process call into a tagged struct, once, at startup.
package config

import (
	"fmt"
	"log/slog"

	"github.com/kelseyhightower/envconfig"
)

// BaseEnv holds settings that shape the shell process itself.
type BaseEnv struct {
	Env      string `envconfig:"ENV" default:"local"`
	HTTPHost string `envconfig:"STATUS_HOST" default:""`
	HTTPPort string `envconfig:"STATUS_PORT" default:""`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// StorageEnv selects where the history ring and alias/var config are
// persisted: the local filesystem (the spec's minimum contract) or an
// S3 bucket, for sharing history across machines.
type StorageEnv struct {
	Type    string `envconfig:"STORAGE_TYPE" default:"local"`
	BaseDir string `envconfig:"STORAGE_BASE_DIR" default:""`
	// S3 settings, used when Type == "s3".
	S3Bucket string `envconfig:"S3_BUCKET"`
	S3Prefix string `envconfig:"S3_PREFIX" default:"mysh/"`
	S3Region string `envconfig:"S3_REGION" default:"us-east-1"`
}

type Env struct {
	BaseEnv
	StorageEnv
}

const namespace = "MYSH"

func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	return &env, nil
}

func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelInfo
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// StatusAddr returns the status server bind address, or "" if the
// status server should stay disabled (the default).
func (e *BaseEnv) StatusAddr() string {
	if e.HTTPPort == "" {
		return ""
	}
	host := e.HTTPHost
	if host == "" {
		host = "localhost"
	}
	return host + ":" + e.HTTPPort
}
