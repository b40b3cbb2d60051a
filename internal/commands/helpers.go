// Package commands implements the CLI subcommands for the chanharvest binary.
package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/oceanobs/chanharvest/internal/store"
	ddbstore "github.com/oceanobs/chanharvest/internal/store/dynamodb"
	filestore "github.com/oceanobs/chanharvest/internal/store/file"
	pgstore "github.com/oceanobs/chanharvest/internal/store/postgres"
	"github.com/oceanobs/chanharvest/pkg/types"
)

// newStore creates the configured progress store.
func newStore(cfg *types.ProjectConfig, logger *slog.Logger) (store.Store, error) {
	switch cfg.Store {
	case "file":
		fc, ok := cfg.File.(*filestore.Config)
		if !ok || fc == nil {
			return nil, fmt.Errorf("file config is required when store is file")
		}
		return filestore.New(fc, logger), nil
	case "dynamodb":
		dc, ok := cfg.DynamoDB.(*ddbstore.Config)
		if !ok || dc == nil {
			return nil, fmt.Errorf("dynamodb config is required when store is dynamodb")
		}
		return ddbstore.New(dc, logger)
	case "postgres":
		pc, ok := cfg.Postgres.(*pgstore.Config)
		if !ok || pc == nil {
			return nil, fmt.Errorf("postgres config is required when store is postgres")
		}
		return pgstore.New(pc), nil
	default:
		return nil, fmt.Errorf("unsupported store: %s", cfg.Store)
	}
}

// newLogger builds the process logger from config.
func newLogger(cfg types.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
