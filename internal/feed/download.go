package feed

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/oceanobs/chanharvest/internal/series"
	"github.com/oceanobs/chanharvest/pkg/types"
)

// noDataSentinel is the body the service returns when a chunk window holds
// no measurements. It is a normal outcome, not an error.
const noDataSentinel = "NO_DATA_FOUND"

const chunkDateFormat = "2006-01-02T15:04:05Z"

// DownloadResult classifies one chunk download. Artifact and Dataset are
// populated only when Kind is OutcomeSuccess; the caller then owns the
// artifact's temp directory.
type DownloadResult struct {
	Kind     types.OutcomeKind
	Reason   string
	Artifact types.Artifact
	Dataset  *series.Dataset
}

// Download fetches one chunk of channel data and classifies the result.
// The extracted file for a successful download lives in a fresh temp
// directory under workDir.
func (c *Client) Download(ctx context.Context, workDir string, chunk types.Chunk, qcLevel int) DownloadResult {
	url := fmt.Sprintf("%s/data/%s/level%d/%s/%s",
		c.baseURL, chunk.ChannelID, qcLevel,
		chunk.Start.UTC().Format(chunkDateFormat),
		chunk.End.UTC().Format(chunkDateFormat))

	body, err := c.get(ctx, url)
	if err != nil {
		return DownloadResult{
			Kind:   types.OutcomeTransportFailure,
			Reason: fmt.Sprintf("download %s: %v", url, err),
		}
	}

	if strings.TrimSpace(string(body)) == noDataSentinel {
		return DownloadResult{Kind: types.OutcomeNoData}
	}

	tmpDir, err := os.MkdirTemp(workDir, "chunk-")
	if err != nil {
		return DownloadResult{
			Kind:   types.OutcomeTransportFailure,
			Reason: fmt.Sprintf("temp dir: %v", err),
		}
	}

	localPath, err := extractArchive(body, tmpDir)
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		if errors.Is(err, errNoDataEntry) {
			return DownloadResult{Kind: types.OutcomeNoData}
		}
		return DownloadResult{
			Kind:   types.OutcomeTransportFailure,
			Reason: fmt.Sprintf("extract %s: %v", url, err),
		}
	}

	ds, err := series.Load(localPath)
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		return DownloadResult{
			Kind:   types.OutcomeTransportFailure,
			Reason: fmt.Sprintf("parse %s: %v", filepath.Base(localPath), err),
		}
	}

	if ds.Empty() {
		_ = os.RemoveAll(tmpDir)
		return DownloadResult{
			Kind:   types.OutcomeEmptySeries,
			Reason: "downloaded series contains no records",
		}
	}

	c.logger.Debug("chunk downloaded",
		"channel", chunk.ChannelID, "qc_level", qcLevel,
		"start", chunk.Start, "end", chunk.End,
		"file", filepath.Base(localPath), "records", len(ds.Times))

	return DownloadResult{
		Kind: types.OutcomeSuccess,
		Artifact: types.Artifact{
			LocalPath: localPath,
			ChannelID: chunk.ChannelID,
			Chunk:     chunk,
			Stage:     types.StageRaw,
		},
		Dataset: ds,
	}
}

// errNoDataEntry marks a zip whose only entry is the no-data sentinel.
var errNoDataEntry = errors.New("archive holds only a no-data marker")

// extractArchive unpacks the first data file from a zip payload into dir and
// returns its path. A zip holding only the no-data sentinel entry is
// reported as such.
func extractArchive(body []byte, dir string) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}

	sawSentinel := false
	for _, f := range zr.File {
		name := filepath.Base(f.Name)
		if name == noDataSentinel {
			sawSentinel = true
			continue
		}
		if f.FileInfo().IsDir() {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open %s: %w", name, err)
		}
		dst := filepath.Join(dir, name)
		out, err := os.Create(dst)
		if err != nil {
			_ = rc.Close()
			return "", fmt.Errorf("create %s: %w", dst, err)
		}
		_, copyErr := io.Copy(out, rc)
		_ = rc.Close()
		if closeErr := out.Close(); copyErr == nil {
			copyErr = closeErr
		}
		if copyErr != nil {
			return "", fmt.Errorf("write %s: %w", dst, copyErr)
		}
		return dst, nil
	}
	if sawSentinel {
		return "", errNoDataEntry
	}
	return "", fmt.Errorf("archive holds no data file")
}
