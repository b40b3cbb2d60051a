package types

// ArtifactStage tracks an artifact through the pipeline.
type ArtifactStage string

// ArtifactStage values enumerate the lifecycle stages of an artifact.
const (
	StageRaw         ArtifactStage = "raw"
	StageTransformed ArtifactStage = "transformed"
	StageValidated   ArtifactStage = "validated"
	StagePublished   ArtifactStage = "published"
	StageRejected    ArtifactStage = "rejected"
)

// OutcomeKind classifies the terminal result of one chunk attempt.
type OutcomeKind string

// OutcomeKind values cover the full failure taxonomy. Only OutcomeSuccess
// and OutcomeNoData advance the watermark; every other kind aborts the
// remaining chunks of the channel and leaves the watermark untouched so the
// chunk is retried on the next run.
const (
	OutcomeSuccess          OutcomeKind = "SUCCESS"
	OutcomeNoData           OutcomeKind = "NO_DATA_FOUND"
	OutcomeTransportFailure OutcomeKind = "TRANSPORT_FAILURE"
	OutcomeEmptySeries      OutcomeKind = "EMPTY_TIME_SERIES"
	OutcomeTransformError   OutcomeKind = "TRANSFORM_ERROR"
	OutcomeGateFailure      OutcomeKind = "GATE_FAILURE"
	OutcomePublishFailure   OutcomeKind = "PUBLISH_FAILURE"
)

// Advances reports whether the watermark moves past a chunk with this outcome.
func (k OutcomeKind) Advances() bool {
	return k == OutcomeSuccess || k == OutcomeNoData
}

// AbortsChannel reports whether this outcome aborts the channel's remaining
// chunks for the current run.
func (k OutcomeKind) AbortsChannel() bool {
	switch k {
	case OutcomeTransportFailure, OutcomeEmptySeries, OutcomeTransformError,
		OutcomeGateFailure, OutcomePublishFailure:
		return true
	}
	return false
}

// AlertType defines the alert sink type.
type AlertType string

// AlertType values enumerate the supported alert sink backends.
const (
	AlertConsole AlertType = "console"
	AlertWebhook AlertType = "webhook"
	AlertFile    AlertType = "file"
	AlertSQS     AlertType = "sqs"
)

// AlertLevel is the severity of an alert.
type AlertLevel string

const (
	AlertLevelError   AlertLevel = "error"
	AlertLevelWarning AlertLevel = "warning"
	AlertLevelInfo    AlertLevel = "info"
)
