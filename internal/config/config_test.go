package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"czsc/internal/czsc"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "czsc.toml", `
concurrency = 2

[analysis]
min_stroke_span = 5
inclusion_policy = "up"
strength_measure = "macd_area"

[data]
inputs = ["a.csv", "b.csv"]
freq = "60min"

[report]
recent_strokes = 8
signal_type = "bs"
format = "json"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, 5, cfg.Analysis.MinStrokeSpan)
	assert.Equal(t, 3, cfg.Analysis.MinSegmentStrokes)
	assert.Equal(t, []string{"a.csv", "b.csv"}, cfg.Data.Inputs)
	assert.Equal(t, "60min", cfg.Data.Freq)
	assert.Equal(t, SourceCSV, cfg.Data.Source)
	assert.Equal(t, 8, cfg.Report.RecentStrokes)
	assert.Equal(t, 5, cfg.Report.RecentFractals)
	assert.Equal(t, FormatJSON, cfg.Report.Format)
	require.NoError(t, cfg.Validate())

	ec := cfg.Analysis.EngineConfig()
	assert.Equal(t, czsc.InclusionUp, ec.Inclusion)
	assert.Equal(t, czsc.StrengthMACDArea, ec.Strength)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "czsc.yml", `
analysis:
  min_segment_strokes: 4
data:
  source: sqlite
  symbol: "000001.SZ"
logging:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Analysis.MinSegmentStrokes)
	assert.Equal(t, SourceSQLite, cfg.Data.Source)
	assert.Equal(t, "000001.SZ", cfg.Data.Symbol)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "data/czsc.db", cfg.Data.SQLitePath)
	require.NoError(t, cfg.Validate())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CZSC_LOG_LEVEL", "warn")
	t.Setenv("CZSC_SQLITE_PATH", "/tmp/x.db")
	t.Setenv("CZSC_FORMAT", "csv")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "/tmp/x.db", cfg.Data.SQLitePath)
	assert.Equal(t, FormatCSV, cfg.Report.Format)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "bad.toml", "[analysis\nmin_stroke_span = "))
	assert.Error(t, err)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Analysis.MinSegmentStrokes = 2
	cfg.Report.Format = "xml"
	cfg.Report.SignalType = "trend"
	cfg.Concurrency = -1
	cfg.Data.Freq = " "
	cfg.Data.Limit = -1
	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "analysis")
	assert.Contains(t, msg, "data.inputs")
	assert.Contains(t, msg, "report.format")
	assert.Contains(t, msg, "report.signal_type")
	assert.Contains(t, msg, "concurrency")
	assert.Contains(t, msg, "data.freq")
	assert.Contains(t, msg, "data.limit")
	assert.ErrorIs(t, err, czsc.ErrInvalidConfig)
}
