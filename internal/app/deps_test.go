package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"energo-data/internal/config"
	"energo-data/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const seedYAML = `
norms:
  - rooms: 2
    residents: 3
    consumption: [300, 300, 300, 300, 300, 300, 300, 300, 300, 300, 300, 300]
  - rooms: 1
    residents: 1
    consumption: [100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100]
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	seed := filepath.Join(t.TempDir(), "norms.yaml")
	require.NoError(t, os.WriteFile(seed, []byte(seedYAML), 0o600))

	cfg := config.Default()
	cfg.DBEnabled = false
	cfg.Norms.SeedFile = seed
	cfg.MQTT.Enabled = false
	return cfg
}

func TestBuild_MemoryWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Redis.Addr = mr.Addr()

	d, err := Build(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer d.Close()

	assert.Nil(t, d.DB)
	require.NotNil(t, d.Redis)
	require.NotNil(t, d.Classifier)
	assert.NotNil(t, d.Classifier.Cache())
	assert.Contains(t, d.HealthChecks(), "redis")
	assert.NotContains(t, d.HealthChecks(), "postgres")

	norms, err := d.Analysis.ListNorms(context.Background())
	require.NoError(t, err)
	require.Len(t, norms, 2)
	assert.Equal(t, 1, norms[0].RoomsCount)

	resp, err := d.Ingest.Enqueue(context.Background(), service.IngestRequest{
		Payload: []byte(`[{"accountId": 1}]`),
		Format:  service.FormatJSON,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.StreamID)
}

func TestBuild_DegradesWithoutRedis(t *testing.T) {
	cfg := testConfig(t)
	cfg.Redis.Enabled = false
	cfg.Classifier.Enabled = false
	cfg.Norms.SeedFile = filepath.Join(t.TempDir(), "missing.yaml")

	d, err := Build(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer d.Close()

	assert.Nil(t, d.Redis)
	assert.Nil(t, d.Classifier)
	assert.Empty(t, d.HealthChecks())

	norms, err := d.Analysis.ListNorms(context.Background())
	require.NoError(t, err)
	assert.Empty(t, norms)

	_, err = d.Ingest.Enqueue(context.Background(), service.IngestRequest{Payload: []byte(`[{"accountId": 1}]`)})
	assert.ErrorIs(t, err, service.ErrAsyncDisabled)
}

func TestBuild_InvalidRateMode(t *testing.T) {
	cfg := testConfig(t)
	cfg.Redis.Enabled = false
	cfg.Classifier.RateMode = "bursty"

	_, err := Build(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}
