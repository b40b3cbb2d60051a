// Package planner computes the date-range chunks still to be downloaded for
// a channel.
package planner

import (
	"time"

	"github.com/oceanobs/chanharvest/pkg/types"
)

// Plan partitions the uncovered span of a channel into consecutive
// calendar-month chunks, the last one clipped to the catalog's thru date.
// With no watermark the span starts at the channel's from date. Chunks are
// contiguous, non-overlapping and strictly chronological: watermark
// advancement assumes sequential coverage, so callers must never reorder or
// parallelize them. An empty result means the channel is already up to date.
func Plan(ch types.ChannelRecord, wm *types.Watermark) []types.Chunk {
	start := ch.FromDate
	if wm != nil && wm.CoveredThrough.After(start) {
		start = wm.CoveredThrough
	}

	if !start.Before(ch.ThruDate) {
		return nil
	}

	var chunks []types.Chunk
	for start.Before(ch.ThruDate) {
		end := nextMonthBoundary(start)
		if end.After(ch.ThruDate) {
			end = ch.ThruDate
		}
		chunks = append(chunks, types.Chunk{ChannelID: ch.ID, Start: start, End: end})
		start = end
	}
	return chunks
}

// nextMonthBoundary returns the first instant of the month after t.
func nextMonthBoundary(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, t.Location())
}
