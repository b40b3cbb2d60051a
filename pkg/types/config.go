package types

import "path/filepath"

// FeedConfig points the harvester at the remote catalog and data service.
type FeedConfig struct {
	BaseURL    string `yaml:"baseUrl" json:"baseUrl"`
	CategoryID int    `yaml:"categoryId" json:"categoryId"` // feed category, e.g. 300 for NRS
	QCLevels   []int  `yaml:"qcLevels" json:"qcLevels"`
	Timeout    string `yaml:"timeout,omitempty" json:"timeout,omitempty"` // per-request, e.g. "60s"
}

// DirConfig holds the shared directory layout. The errors directory is
// always derived from the work directory.
type DirConfig struct {
	Incoming string `yaml:"incoming" json:"incoming"`
	Work     string `yaml:"work" json:"work"`
}

// Errors returns the diagnostic archive directory for rejected artifacts.
func (d DirConfig) Errors() string {
	return filepath.Join(d.Work, "errors")
}

// HarvestConfig tunes run behavior.
type HarvestConfig struct {
	// BacklogLimit aborts a run before feed contact when the incoming
	// directory already holds more than this many pending files.
	BacklogLimit int `yaml:"backlogLimit,omitempty" json:"backlogLimit,omitempty"`

	// Workers parallelizes across channels when > 1. Chunks within a
	// channel are always sequential.
	Workers int `yaml:"workers,omitempty" json:"workers,omitempty"`

	// SkipFailedChunks keeps a channel going past a failed chunk instead of
	// aborting its run. The watermark still stops at the failure, so the
	// hole is retried next run. Off by default.
	SkipFailedChunks bool `yaml:"skipFailedChunks,omitempty" json:"skipFailedChunks,omitempty"`

	// LockTTL bounds the cross-host store lock, e.g. "2h".
	LockTTL string `yaml:"lockTtl,omitempty" json:"lockTtl,omitempty"`
}

// AlertConfig configures one alert sink.
type AlertConfig struct {
	Type     AlertType `yaml:"type" json:"type"`
	URL      string    `yaml:"url,omitempty" json:"url,omitempty"`
	Path     string    `yaml:"path,omitempty" json:"path,omitempty"`
	QueueURL string    `yaml:"queueUrl,omitempty" json:"queueUrl,omitempty"`
	Region   string    `yaml:"region,omitempty" json:"region,omitempty"`
}

// ObservabilityConfig enables OTLP export of run metrics and traces.
type ObservabilityConfig struct {
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	Insecure bool   `yaml:"insecure,omitempty" json:"insecure,omitempty"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Format string `yaml:"format,omitempty" json:"format,omitempty"` // "text" or "json"
	Level  string `yaml:"level,omitempty" json:"level,omitempty"`
}

// ProjectConfig is the top-level chanharvest.yaml structure. Store-specific
// sections are decoded into concrete types by a second unmarshal pass in the
// config package, so this package does not depend on the store backends.
type ProjectConfig struct {
	Store    string      `yaml:"store" json:"store"` // "file", "dynamodb" or "postgres"
	File     interface{} `yaml:"-" json:"-"`
	DynamoDB interface{} `yaml:"-" json:"-"`
	Postgres interface{} `yaml:"-" json:"-"`

	Feed          FeedConfig           `yaml:"feed" json:"feed"`
	Dirs          DirConfig            `yaml:"dirs" json:"dirs"`
	Harvest       HarvestConfig        `yaml:"harvest,omitempty" json:"harvest,omitempty"`
	Alerts        []AlertConfig        `yaml:"alerts,omitempty" json:"alerts,omitempty"`
	Observability *ObservabilityConfig `yaml:"observability,omitempty" json:"observability,omitempty"`
	Log           LogConfig            `yaml:"log,omitempty" json:"log,omitempty"`
}
