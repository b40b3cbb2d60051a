// Package config handles loading and validation of chanharvest.yaml project configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	ddbstore "github.com/oceanobs/chanharvest/internal/store/dynamodb"
	filestore "github.com/oceanobs/chanharvest/internal/store/file"
	pgstore "github.com/oceanobs/chanharvest/internal/store/postgres"
	"github.com/oceanobs/chanharvest/pkg/types"
)

// Defaults applied when the config omits a value.
const (
	DefaultBacklogLimit = 200
	DefaultFeedTimeout  = 60 * time.Second
	DefaultLockTTL      = 2 * time.Hour
)

// storeConfigs is a helper struct used for a second YAML unmarshal pass
// to decode store-specific config sections into their concrete types.
type storeConfigs struct {
	File     *filestore.Config `yaml:"file,omitempty"`
	DynamoDB *ddbstore.Config  `yaml:"dynamodb,omitempty"`
	Postgres *pgstore.Config   `yaml:"postgres,omitempty"`
}

// Load reads and parses chanharvest.yaml from the given directory, applies
// environment overrides and defaults, and validates the result.
func Load(dir string) (*types.ProjectConfig, error) {
	path := filepath.Join(dir, "chanharvest.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg types.ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Second pass: decode store-specific sections into concrete types.
	var raw storeConfigs
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing store config: %w", err)
	}
	if raw.File != nil {
		cfg.File = raw.File
	}
	if raw.DynamoDB != nil {
		cfg.DynamoDB = raw.DynamoDB
	}
	if raw.Postgres != nil {
		cfg.Postgres = raw.Postgres
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// applyEnv applies the conventional environment overrides used by the wider
// ingestion tooling on shared hosts.
func applyEnv(cfg *types.ProjectConfig) {
	if v := os.Getenv("INCOMING_DIR"); v != "" {
		cfg.Dirs.Incoming = v
	}
	if v := os.Getenv("WIP_DIR"); v != "" {
		cfg.Dirs.Work = v
	}
}

func applyDefaults(cfg *types.ProjectConfig) {
	if cfg.Store == "" {
		cfg.Store = "file"
	}
	if cfg.Store == "file" && cfg.File == nil && cfg.Dirs.Work != "" {
		cfg.File = &filestore.Config{Path: filepath.Join(cfg.Dirs.Work, "state.json")}
	}
	if cfg.Harvest.BacklogLimit == 0 {
		cfg.Harvest.BacklogLimit = DefaultBacklogLimit
	}
	if cfg.Harvest.Workers == 0 {
		cfg.Harvest.Workers = 1
	}
	if len(cfg.Feed.QCLevels) == 0 {
		cfg.Feed.QCLevels = []int{0, 1}
	}
	if cfg.Feed.Timeout == "" {
		cfg.Feed.Timeout = DefaultFeedTimeout.String()
	}
	if cfg.Harvest.LockTTL == "" {
		cfg.Harvest.LockTTL = DefaultLockTTL.String()
	}
}

func validate(cfg *types.ProjectConfig) error {
	if cfg.Feed.BaseURL == "" {
		return fmt.Errorf("feed.baseUrl is required")
	}
	if cfg.Feed.CategoryID == 0 {
		return fmt.Errorf("feed.categoryId is required")
	}
	if cfg.Dirs.Incoming == "" {
		return fmt.Errorf("dirs.incoming is required (or set INCOMING_DIR)")
	}
	if cfg.Dirs.Work == "" {
		return fmt.Errorf("dirs.work is required (or set WIP_DIR)")
	}
	if _, err := time.ParseDuration(cfg.Feed.Timeout); err != nil {
		return fmt.Errorf("feed.timeout: %w", err)
	}
	if _, err := time.ParseDuration(cfg.Harvest.LockTTL); err != nil {
		return fmt.Errorf("harvest.lockTtl: %w", err)
	}

	switch cfg.Store {
	case "file":
		fc, _ := cfg.File.(*filestore.Config)
		if fc == nil || fc.Path == "" {
			return fmt.Errorf("file.path is required when store is file")
		}
	case "dynamodb":
		dc, _ := cfg.DynamoDB.(*ddbstore.Config)
		if dc == nil {
			return fmt.Errorf("dynamodb config is required when store is dynamodb")
		}
		if dc.TableName == "" {
			return fmt.Errorf("dynamodb.tableName is required")
		}
	case "postgres":
		pc, _ := cfg.Postgres.(*pgstore.Config)
		if pc == nil || pc.DSN == "" {
			return fmt.Errorf("postgres.dsn is required when store is postgres")
		}
	default:
		return fmt.Errorf("unsupported store: %s", cfg.Store)
	}

	for _, a := range cfg.Alerts {
		switch a.Type {
		case types.AlertConsole:
		case types.AlertWebhook:
			if a.URL == "" {
				return fmt.Errorf("alerts: webhook URL required")
			}
		case types.AlertFile:
			if a.Path == "" {
				return fmt.Errorf("alerts: file path required")
			}
		case types.AlertSQS:
			if a.QueueURL == "" {
				return fmt.Errorf("alerts: sqs queueUrl required")
			}
		default:
			return fmt.Errorf("alerts: unknown type %q", a.Type)
		}
	}

	return nil
}
