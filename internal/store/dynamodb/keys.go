package dynamodb

import (
	"fmt"
	"time"
)

// PK/SK prefix constants.
const (
	prefixWatermark = "WATERMARK#"
	prefixRun       = "RUN#"
	prefixLock      = "LOCK#"

	pkWatermarks = "WATERMARKS"
	pkRuns       = "RUNS"
	skLock       = "LOCK"
)

// Watermarks live in one partition so a level's channels come back in a
// single query: PK WATERMARKS, SK WATERMARK#<qc>#<channel>.
func watermarkSK(qcLevel int, channelID string) string {
	return fmt.Sprintf("%s%d#%s", prefixWatermark, qcLevel, channelID)
}

func watermarkLevelPrefix(qcLevel int) string {
	return fmt.Sprintf("%s%d#", prefixWatermark, qcLevel)
}

func runSK(startedAt time.Time, runID string) string {
	return prefixRun + startedAt.UTC().Format(time.RFC3339Nano) + "#" + runID
}

func lockPK(key string) string { return prefixLock + key }
func lockSK() string           { return skLock }

func ttlEpoch(d time.Duration) int64 {
	return time.Now().Add(d).Unix()
}
