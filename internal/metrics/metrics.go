// Package metrics exposes runtime counters via expvar.
package metrics

import "expvar"

var (
	ChunksDownloaded   = expvar.NewInt("chunks_downloaded")
	ChunksNoData       = expvar.NewInt("chunks_no_data")
	ChunksEmpty        = expvar.NewInt("chunks_empty")
	ChunksFailed       = expvar.NewInt("chunks_failed")
	ArtifactsPublished = expvar.NewInt("artifacts_published")
	ArtifactsRejected  = expvar.NewInt("artifacts_rejected")
	ChannelsAborted    = expvar.NewInt("channels_aborted")
	CatalogErrors      = expvar.NewInt("catalog_errors")
	WatermarksAdvanced = expvar.NewInt("watermarks_advanced")
	RunsAborted        = expvar.NewInt("runs_aborted")
)
