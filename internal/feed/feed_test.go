package feed

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanobs/chanharvest/pkg/types"
)

const catalogXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>channels</title>
    <item>
      <channelId>84329</channelId>
      <fromDate>2016-01-01T00:00:00Z</fromDate>
      <thruDate>2016-06-01T00:00:00Z</thruDate>
      <siteName>Darwin</siteName>
      <platformName>Darwin NRS Buoy</platformName>
      <parameter>water_temperature</parameter>
      <uom>Celsius</uom>
      <metadataUuid>0887cb5b-b443-4e08-a169-038208109466</metadataUuid>
    </item>
    <item>
      <channelId>84330</channelId>
      <fromDate>2016-02-01T00:00:00Z</fromDate>
      <thruDate>2016-05-01T00:00:00Z</thruDate>
      <siteName>Yongala</siteName>
      <platformName>Yongala NRS Buoy</platformName>
      <parameter>salinity</parameter>
      <uom>PSU</uom>
      <metadataUuid>Not Available</metadataUuid>
    </item>
  </channel>
</rss>`

const sampleCSV = `# site_name: Darwin
# units: Celsius
time,value
2024-01-01T00:00:00Z,24.5
2024-01-01T00:30:00Z,24.7
`

const emptyCSV = `# site_name: Darwin
time,value
`

func newTestClient(t *testing.T, srvURL string) *Client {
	t.Helper()
	c, err := NewClient(types.FeedConfig{
		BaseURL:    srvURL,
		CategoryID: 34,
		QCLevels:   []int{0, 1},
		Timeout:    "5s",
	}, nil)
	require.NoError(t, err)
	return c
}

func zipPayload(t *testing.T, entryName, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(entryName)
	require.NoError(t, err)
	_, err = w.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestFetchCatalog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rss/netcdf/level1/34", r.URL.Path)
		_, _ = w.Write([]byte(catalogXML))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	channels, err := c.FetchCatalog(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, channels, 2)

	assert.Equal(t, "84329", channels[0].ID)
	assert.Equal(t, "Darwin", channels[0].SiteName)
	assert.Equal(t, "water_temperature", channels[0].Parameter)
	assert.Equal(t, "Celsius", channels[0].Units)
	assert.Equal(t, 2016, channels[0].FromDate.Year())
	assert.Equal(t, "Not Available", channels[1].MetadataUUID)
}

func TestFetchCatalogServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.FetchCatalog(context.Background(), 0)
	require.ErrorIs(t, err, ErrCatalogUnavailable)
}

func TestFetchCatalogMalformedItem(t *testing.T) {
	bad := `<rss><channel><item>
		<channelId>1</channelId>
		<fromDate>not-a-date</fromDate>
		<thruDate>2016-06-01T00:00:00Z</thruDate>
	</item></channel></rss>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(bad))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.FetchCatalog(context.Background(), 0)
	require.ErrorIs(t, err, ErrCatalogUnavailable)
}

func TestDownloadSuccess(t *testing.T) {
	payload := zipPayload(t, "IMOS_ANMN-NRS_T_2024-01_FV01_END-2024-02-01.csv", sampleCSV)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/data/84329/level1/")
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	workDir := t.TempDir()
	c := newTestClient(t, srv.URL)
	res := c.Download(context.Background(), workDir, chunk("84329"), 1)

	require.Equal(t, types.OutcomeSuccess, res.Kind, res.Reason)
	require.NotNil(t, res.Dataset)
	assert.Len(t, res.Dataset.Times, 2)
	assert.Equal(t, types.StageRaw, res.Artifact.Stage)
	assert.FileExists(t, res.Artifact.LocalPath)
	assert.Equal(t, workDir, filepath.Dir(filepath.Dir(res.Artifact.LocalPath)))
}

func TestDownloadNoDataBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("NO_DATA_FOUND"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	res := c.Download(context.Background(), t.TempDir(), chunk("84329"), 0)
	assert.Equal(t, types.OutcomeNoData, res.Kind)
}

func TestDownloadNoDataEntry(t *testing.T) {
	payload := zipPayload(t, "NO_DATA_FOUND", "")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	workDir := t.TempDir()
	c := newTestClient(t, srv.URL)
	res := c.Download(context.Background(), workDir, chunk("84329"), 0)
	assert.Equal(t, types.OutcomeNoData, res.Kind)
	assertEmptyDir(t, workDir)
}

func TestDownloadEmptySeries(t *testing.T) {
	payload := zipPayload(t, "series.csv", emptyCSV)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	workDir := t.TempDir()
	c := newTestClient(t, srv.URL)
	res := c.Download(context.Background(), workDir, chunk("84329"), 0)
	assert.Equal(t, types.OutcomeEmptySeries, res.Kind)
	assertEmptyDir(t, workDir)
}

func TestDownloadTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	workDir := t.TempDir()
	c := newTestClient(t, srv.URL)
	res := c.Download(context.Background(), workDir, chunk("84329"), 0)
	assert.Equal(t, types.OutcomeTransportFailure, res.Kind)
	assert.NotEmpty(t, res.Reason)
	assertEmptyDir(t, workDir)
}

func TestDownloadCorruptArchive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("this is not a zip"))
	}))
	defer srv.Close()

	workDir := t.TempDir()
	c := newTestClient(t, srv.URL)
	res := c.Download(context.Background(), workDir, chunk("84329"), 0)
	assert.Equal(t, types.OutcomeTransportFailure, res.Kind)
	assertEmptyDir(t, workDir)
}

func chunk(channelID string) types.Chunk {
	return types.Chunk{
		ChannelID: channelID,
		Start:     mustTime("2024-01-01T00:00:00Z"),
		End:       mustTime("2024-02-01T00:00:00Z"),
	}
}

func mustTime(s string) time.Time {
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return ts
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
