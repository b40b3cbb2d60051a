package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ddbstore "github.com/oceanobs/chanharvest/internal/store/dynamodb"
	filestore "github.com/oceanobs/chanharvest/internal/store/file"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chanharvest.yaml"), []byte(content), 0o644))
	return dir
}

func TestLoad(t *testing.T) {
	dir := writeConfig(t, `store: file
file:
  path: /var/lib/chanharvest/state.json
feed:
  baseUrl: http://data.example.org/gbroosdata/services
  categoryId: 300
  qcLevels: [0, 1]
dirs:
  incoming: /mnt/incoming/ANMN_NRS
  work: /mnt/wip/chanharvest
alerts:
  - type: console
`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "file", cfg.Store)
	fc, ok := cfg.File.(*filestore.Config)
	require.True(t, ok, "File config should be *filestore.Config")
	assert.Equal(t, "/var/lib/chanharvest/state.json", fc.Path)
	assert.Equal(t, 300, cfg.Feed.CategoryID)
	assert.Equal(t, []int{0, 1}, cfg.Feed.QCLevels)
	assert.Equal(t, "/mnt/wip/chanharvest/errors", cfg.Dirs.Errors())
	assert.Len(t, cfg.Alerts, 1)
}

func TestLoadDefaults(t *testing.T) {
	dir := writeConfig(t, `feed:
  baseUrl: http://data.example.org/services
  categoryId: 300
dirs:
  incoming: /mnt/incoming
  work: /mnt/wip
`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "file", cfg.Store)
	fc, ok := cfg.File.(*filestore.Config)
	require.True(t, ok)
	assert.Equal(t, filepath.Join("/mnt/wip", "state.json"), fc.Path)
	assert.Equal(t, DefaultBacklogLimit, cfg.Harvest.BacklogLimit)
	assert.Equal(t, 1, cfg.Harvest.Workers)
	assert.Equal(t, []int{0, 1}, cfg.Feed.QCLevels)
	assert.Equal(t, "1m0s", cfg.Feed.Timeout)
}

func TestLoadDynamoDBStore(t *testing.T) {
	dir := writeConfig(t, `store: dynamodb
dynamodb:
  tableName: chanharvest
  region: ap-southeast-2
feed:
  baseUrl: http://data.example.org/services
  categoryId: 300
dirs:
  incoming: /mnt/incoming
  work: /mnt/wip
`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	dc, ok := cfg.DynamoDB.(*ddbstore.Config)
	require.True(t, ok, "DynamoDB config should be *ddbstore.Config")
	assert.Equal(t, "chanharvest", dc.TableName)
	assert.Equal(t, "ap-southeast-2", dc.Region)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("INCOMING_DIR", "/srv/incoming")
	t.Setenv("WIP_DIR", "/srv/wip")

	dir := writeConfig(t, `feed:
  baseUrl: http://data.example.org/services
  categoryId: 300
dirs:
  incoming: /mnt/incoming
  work: /mnt/wip
`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "/srv/incoming", cfg.Dirs.Incoming)
	assert.Equal(t, "/srv/wip", cfg.Dirs.Work)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent")
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := writeConfig(t, "invalid: [yaml")
	_, err := Load(dir)
	assert.Error(t, err)
}

func TestValidation_MissingFeed(t *testing.T) {
	dir := writeConfig(t, `dirs:
  incoming: /mnt/incoming
  work: /mnt/wip
`)

	_, err := Load(dir)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "feed.baseUrl is required")
}

func TestValidation_MissingDynamoDBTable(t *testing.T) {
	dir := writeConfig(t, `store: dynamodb
dynamodb:
  region: ap-southeast-2
feed:
  baseUrl: http://data.example.org/services
  categoryId: 300
dirs:
  incoming: /mnt/incoming
  work: /mnt/wip
`)

	_, err := Load(dir)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "dynamodb.tableName is required")
}

func TestValidation_BadAlert(t *testing.T) {
	dir := writeConfig(t, `feed:
  baseUrl: http://data.example.org/services
  categoryId: 300
dirs:
  incoming: /mnt/incoming
  work: /mnt/wip
alerts:
  - type: webhook
`)

	_, err := Load(dir)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "webhook URL required")
}
