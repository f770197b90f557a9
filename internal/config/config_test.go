package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://fullnode.mainnet.sui.io:443", cfg.RPC.Endpoint)
	assert.InDelta(t, 25.0, cfg.RPC.MaxRPS, 0.001)
	assert.True(t, cfg.RPC.BreakerEnabled)

	assert.Equal(t, "0x2a7e9d::obligation::ObligationKeyCreated", cfg.Discovery.EventType)
	assert.Equal(t, "cap_id", cfg.Discovery.PayloadField)
	assert.Equal(t, 50, cfg.Discovery.PageSize)
	assert.Equal(t, 20, cfg.Discovery.MaxPages)
	assert.True(t, cfg.Discovery.Dedupe)

	assert.Equal(t, 10, cfg.Resolve.ChunkSize)
	assert.Equal(t, "::obligation::ObligationKey", cfg.Resolve.TypeSuffix)

	assert.Equal(t, 15, cfg.Tuning.InitialBatchSize)
	assert.Equal(t, 3, cfg.Tuning.MinBatchSize)
	assert.Equal(t, 20, cfg.Tuning.MaxBatchSize)
	assert.Equal(t, 300, cfg.Tuning.InitialDelayMS)
	assert.Equal(t, 100, cfg.Tuning.MinDelayMS)
	assert.Equal(t, 2000, cfg.Tuning.MaxDelayMS)
	assert.InDelta(t, 0.20, cfg.Tuning.AggressiveFailureFraction, 0.001)
	assert.InDelta(t, 0.70, cfg.Tuning.AggressiveSuccessRate, 0.001)
	assert.Equal(t, 5, cfg.Tuning.AggressiveSizeStep)
	assert.Equal(t, 400, cfg.Tuning.AggressiveDelayStepMS)
	assert.Equal(t, 2, cfg.Tuning.ModerateSizeStep)
	assert.Equal(t, 5, cfg.Tuning.ModerateSizeFloor)
	assert.Equal(t, 200, cfg.Tuning.ModerateDelayStepMS)
	assert.InDelta(t, 0.95, cfg.Tuning.SpeedUpSuccessRate, 0.001)
	assert.InDelta(t, 0.90, cfg.Tuning.StabilitySuccessRate, 0.001)
	assert.Equal(t, 3, cfg.Tuning.SpeedUpSizeStep)
	assert.Equal(t, 100, cfg.Tuning.SpeedUpDelayStepMS)
	assert.Equal(t, 2, cfg.Tuning.SpeedUpAfter)
	assert.Equal(t, 3, cfg.Tuning.RecoveryExitAfter)
	assert.Equal(t, 3, cfg.Tuning.FetchAttempts)
	assert.Equal(t, 1000, cfg.Tuning.FetchBackoffStepMS)

	assert.Equal(t, 5, cfg.Cleanup.Attempts)
	assert.Equal(t, 2000, cfg.Cleanup.BackoffStepMS)
	assert.Equal(t, 1500, cfg.Cleanup.RecordPauseMS)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
rpc:
  endpoint: http://localhost:9000
  breaker_enabled: false
discovery:
  max_pages: 5
  dedupe: false
tuning:
  initial_batch_size: 8
  max_delay_ms: 5000
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9000", cfg.RPC.Endpoint)
	assert.False(t, cfg.RPC.BreakerEnabled)
	assert.Equal(t, 5, cfg.Discovery.MaxPages)
	assert.False(t, cfg.Discovery.Dedupe)
	assert.Equal(t, 8, cfg.Tuning.InitialBatchSize)
	assert.Equal(t, 5000, cfg.Tuning.MaxDelayMS)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Untouched keys keep their defaults.
	assert.Equal(t, 50, cfg.Discovery.PageSize)
	assert.Equal(t, 5, cfg.Cleanup.Attempts)
}

func TestLoadFromEnvironment(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("TVLSCAN_RPC_ENDPOINT", "http://testnet:9000")
	t.Setenv("TVLSCAN_MARKET_MARKET_ID", "0xmarket")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://testnet:9000", cfg.RPC.Endpoint)
	assert.Equal(t, "0xmarket", cfg.Market.MarketID)
}

func TestDurationHelpers(t *testing.T) {
	t.Parallel()

	tuning := TuningConfig{FetchBackoffStepMS: 1000}
	assert.Equal(t, time.Second, tuning.FetchBackoffStep())

	cleanup := CleanupConfig{BackoffStepMS: 2000, RecordPauseMS: 1500}
	assert.Equal(t, 2*time.Second, cleanup.BackoffStep())
	assert.Equal(t, 1500*time.Millisecond, cleanup.RecordPause())
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	require.Error(t, InitLogger(LogConfig{Level: "nonsense", Format: "json"}))
}
