package transform

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanobs/chanharvest/internal/series"
	"github.com/oceanobs/chanharvest/pkg/types"
)

func rawArtifact(t *testing.T) (types.Artifact, *series.Dataset) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "download.csv")

	ds := &series.Dataset{
		Attrs: map[string]string{series.AttrSiteName: "Darwin"},
		Times: []time.Time{
			time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 1, 1, 0, 30, 0, 0, time.UTC),
		},
		Values: []float64{24.5, 24.7},
	}
	require.NoError(t, ds.Save(path))

	return types.Artifact{
		LocalPath: path,
		ChannelID: "84329",
		Chunk: types.Chunk{
			ChannelID: "84329",
			Start:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			End:       time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		},
		Stage: types.StageRaw,
	}, ds
}

func darwinTemp() types.ChannelRecord {
	return types.ChannelRecord{
		ID:           "84329",
		SiteName:     "Darwin",
		Parameter:    "water_temperature",
		Units:        "Celsius",
		MetadataUUID: "0887cb5b-b443-4e08-a169-038208109466",
	}
}

func TestNormalize(t *testing.T) {
	artifact, ds := rawArtifact(t)

	out, err := Normalize(artifact, ds, darwinTemp(), 1)
	require.NoError(t, err)

	assert.Equal(t, types.StageTransformed, out.Stage)
	assert.Equal(t, "IMOS_ANMN_T_20240101T000000Z_NRSDAR_FV01_END-20240201.csv",
		filepath.Base(out.LocalPath))
	assert.NoFileExists(t, artifact.LocalPath)

	saved, err := series.Load(out.LocalPath)
	require.NoError(t, err)
	assert.Equal(t, "NRSDAR", saved.Attr(series.AttrSiteCode))
	assert.Equal(t, "NRSDAR", saved.Attr(series.AttrPlatformCode))
	assert.Equal(t, "84329", saved.Attr(series.AttrChannelID))
	assert.Equal(t, "water_temperature", saved.Attr(series.AttrParameter))
	assert.Equal(t, "Celsius", saved.Attr(series.AttrUnits))
	assert.Equal(t, "0887cb5b-b443-4e08-a169-038208109466", saved.Attr(series.AttrMetadataUUID))
}

func TestNormalizeSkipsPlaceholderUUID(t *testing.T) {
	artifact, ds := rawArtifact(t)
	ch := darwinTemp()
	ch.MetadataUUID = "Not Available"

	out, err := Normalize(artifact, ds, ch, 0)
	require.NoError(t, err)

	saved, err := series.Load(out.LocalPath)
	require.NoError(t, err)
	_, ok := saved.Attrs[series.AttrMetadataUUID]
	assert.False(t, ok)
}

func TestNormalizeRenamesDepthAttr(t *testing.T) {
	artifact, ds := rawArtifact(t)
	ds.SetAttr("depth", "21.5")

	out, err := Normalize(artifact, ds, darwinTemp(), 1)
	require.NoError(t, err)

	saved, err := series.Load(out.LocalPath)
	require.NoError(t, err)
	assert.Equal(t, "21.5", saved.Attr(series.AttrNominalDepth))
	_, ok := saved.Attrs["depth"]
	assert.False(t, ok)
}

func TestNormalizeUnknownSite(t *testing.T) {
	artifact, ds := rawArtifact(t)
	ch := darwinTemp()
	ch.SiteName = "Atlantis"

	_, err := Normalize(artifact, ds, ch, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Atlantis")
	assert.FileExists(t, artifact.LocalPath)
}

func TestNormalizeUnknownParameter(t *testing.T) {
	artifact, ds := rawArtifact(t)
	ch := darwinTemp()
	ch.Parameter = "dark_matter_flux"

	_, err := Normalize(artifact, ds, ch, 0)
	require.Error(t, err)
}

func TestNormalizeQCLevelInFilename(t *testing.T) {
	artifact, ds := rawArtifact(t)

	out, err := Normalize(artifact, ds, darwinTemp(), 0)
	require.NoError(t, err)
	assert.Contains(t, filepath.Base(out.LocalPath), "_FV00_")

	entries, err := os.ReadDir(filepath.Dir(out.LocalPath))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
