// Package types defines the public domain types for the chanharvest feed pipeline.
package types

import "time"

// ChannelRecord is an immutable snapshot of one catalog entry for a single
// instrument channel. It lives for one run only and is never persisted.
type ChannelRecord struct {
	ID           string
	FromDate     time.Time
	ThruDate     time.Time
	SiteName     string
	PlatformName string
	Parameter    string
	Units        string
	MetadataUUID string
}

// Watermark marks the latest instant up to which a channel has been fully
// processed for a given QC level. It is the only state that survives a run.
type Watermark struct {
	ChannelID      string    `json:"channelId"`
	QCLevel        int       `json:"qcLevel"`
	CoveredThrough time.Time `json:"coveredThrough"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Chunk is a bounded date range within a channel scheduled for one
// download-validate-publish cycle. Chunks for one channel are contiguous,
// non-overlapping and processed strictly in chronological order.
type Chunk struct {
	ChannelID string
	Start     time.Time
	End       time.Time
}

// Artifact is a downloaded file owned exclusively by the pipeline instance
// processing it. Its temp directory is reclaimed on every terminal stage.
type Artifact struct {
	LocalPath string
	ChannelID string
	Chunk     Chunk
	Stage     ArtifactStage
}

// GateOutcome records the result of a single validation gate.
type GateOutcome struct {
	Gate   string
	Passed bool
	Reason string
}

// ChunkOutcome is the terminal classification of one chunk attempt. The
// engine pattern-matches on Kind to decide advance vs abort-channel.
type ChunkOutcome struct {
	Kind   OutcomeKind
	Gate   string // failing gate name when Kind is OutcomeGateFailure
	Reason string
}

// Alert is a notification dispatched to configured sinks when a channel
// fails or a run is aborted.
type Alert struct {
	Level     AlertLevel `json:"level"`
	ChannelID string     `json:"channelId,omitempty"`
	QCLevel   int        `json:"qcLevel"`
	Message   string     `json:"message"`
	Timestamp time.Time  `json:"timestamp"`
}

// LevelReport summarizes the processing of one QC level within a run.
type LevelReport struct {
	QCLevel       int    `json:"qcLevel"`
	Channels      int    `json:"channels"`
	UpToDate      int    `json:"upToDate"`
	ChunksPlanned int    `json:"chunksPlanned"`
	Published     int    `json:"published"`
	NoData        int    `json:"noData"`
	Failed        int    `json:"failed"`
	Aborted       int    `json:"aborted"`
	CatalogError  string `json:"catalogError,omitempty"`
}

// RunReport is the durable summary record written at the end of each run.
type RunReport struct {
	RunID      string        `json:"runId"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
	Levels     []LevelReport `json:"levels"`
}
