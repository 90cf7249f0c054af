package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"czsc/internal/config"
	"czsc/internal/czsc"
	"czsc/internal/market"
)

// zigzagSnapshot 在折点之间以 0.25 为步长生成 K 线并全部写入引擎。
func zigzagSnapshot(t *testing.T, points ...float64) czsc.Snapshot {
	t.Helper()
	base := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	e, err := czsc.NewEngine(czsc.DefaultConfig(), "TEST")
	require.NoError(t, err)
	n := 0
	push := func(p float64) {
		_, err := e.Ingest(market.Candle{
			ID:   int64(n + 1),
			Time: base.Add(time.Duration(n) * time.Hour),
			Open: p - 0.5, High: p, Low: p - 0.5, Close: p,
			Volume: 10, Amount: 100,
		})
		require.NoError(t, err)
		n++
	}
	p := points[0]
	push(p)
	for _, target := range points[1:] {
		for p != target {
			if target > p {
				p += 0.25
			} else {
				p -= 0.25
			}
			push(p)
		}
	}
	return e.Snapshot()
}

func reportOptions() config.Report {
	return config.Default().Report
}

func TestBuildReport(t *testing.T) {
	snap := zigzagSnapshot(t, 11, 10, 15, 12, 18, 14, 16, 13, 20, 17)
	opts := reportOptions()
	opts.RecentStrokes = 3

	r, err := Build(snap, "60m", opts)
	require.NoError(t, err)
	assert.Equal(t, "TEST", r.Symbol)
	assert.Equal(t, "60m", r.Freq)
	assert.Equal(t, len(snap.Bars), r.RawBars)
	assert.Equal(t, 7, r.TotalStrokes)
	assert.Equal(t, 2, r.TotalSegments)
	assert.LessOrEqual(t, len(r.Fractals), 5)

	require.Len(t, r.Strokes, 3)
	assert.Equal(t, []int{4, 5, 6}, []int{r.Strokes[0].Index, r.Strokes[1].Index, r.Strokes[2].Index})
	assert.True(t, r.Strokes[1].Confirmed)
	assert.False(t, r.Strokes[2].Confirmed)

	require.Len(t, r.Segments, 2)
	assert.True(t, r.Segments[0].Confirmed)
	assert.Equal(t, 3, r.Segments[0].Strokes)
	assert.Equal(t, 8.5, r.Segments[0].Amplitude)

	require.NotNil(t, r.State)
	assert.Equal(t, "up", r.State.Direction)
	assert.Equal(t, 12.5, r.State.StartPrice)
	assert.Equal(t, 20.0, r.State.EndPrice)
	assert.True(t, r.State.Open)
	assert.Equal(t, czsc.TrendRange, r.Trend.State)

	assert.Len(t, r.Signals, 3)
	assert.Equal(t, czsc.SignalSummary{Total: 3, Sell: 3}, r.Summary)
}

func TestBuildReportFiltersSignals(t *testing.T) {
	snap := zigzagSnapshot(t, 11, 10, 15, 12, 18, 14, 16, 13, 20, 17)
	opts := reportOptions()

	opts.SignalType = string(czsc.CategoryDivergence)
	r, err := Build(snap, "D", opts)
	require.NoError(t, err)
	require.Len(t, r.Signals, 1)
	assert.Equal(t, czsc.SignalDivergenceTop, r.Signals[0].Kind)
	assert.Equal(t, czsc.SignalSummary{Total: 1, Sell: 1}, r.Summary)

	opts.SignalType = string(czsc.CategoryBS)
	r, err = Build(snap, "D", opts)
	require.NoError(t, err)
	assert.Len(t, r.Signals, 2)
}

func TestBuildReportInsufficientHistory(t *testing.T) {
	snap := zigzagSnapshot(t, 10, 10.5)
	r, err := Build(snap, "D", reportOptions())
	require.NoError(t, err)
	assert.Nil(t, r.State)
	assert.Empty(t, r.Strokes)
	assert.Empty(t, r.Signals)
	assert.Equal(t, czsc.TrendUnknown, r.Trend.State)
	assert.Contains(t, r.Table(), "数据不足")
	assert.Empty(t, BuildStructureCSV(snap, PrecisionAuto))
}

func TestRenderTable(t *testing.T) {
	snap := zigzagSnapshot(t, 11, 10, 15, 12, 18, 14, 16, 13, 20, 17)
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, snap, "60m", reportOptions()))
	out := buf.String()
	assert.Contains(t, out, "缠论结构 TEST (60m)")
	assert.Contains(t, out, "顶背驰")
	assert.Contains(t, out, "二卖")
	assert.Contains(t, out, "未完成")
}

func TestRenderJSON(t *testing.T) {
	snap := zigzagSnapshot(t, 11, 10, 15, 12, 18, 14, 16, 13, 20, 17)
	opts := reportOptions()
	opts.Format = config.FormatJSON
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, snap, "D", opts))

	var decoded struct {
		Symbol  string `json:"symbol"`
		Strokes []struct {
			Direction string `json:"direction"`
			Confirmed bool   `json:"confirmed"`
		} `json:"strokes"`
		Signals []struct {
			Kind string `json:"kind"`
		} `json:"signals"`
		Summary czsc.SignalSummary `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "TEST", decoded.Symbol)
	require.Len(t, decoded.Strokes, 5)
	assert.Equal(t, "up", decoded.Strokes[4].Direction)
	assert.False(t, decoded.Strokes[4].Confirmed)
	require.Len(t, decoded.Signals, 3)
	assert.Equal(t, "divergence-top", decoded.Signals[0].Kind)
	assert.Equal(t, 3, decoded.Summary.Sell)
}

func TestStructureCSV(t *testing.T) {
	snap := zigzagSnapshot(t, 11, 10, 15, 12, 18, 14, 16, 13, 20, 17)
	opts := reportOptions()
	opts.Format = config.FormatCSV
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, snap, "D", opts))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 1+7+2)
	assert.Equal(t, "symbol,level,index,direction,start_dt,start_price,end_dt,end_price,amplitude,length,confirmed", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "TEST,stroke,0,up,"))
	assert.Contains(t, lines[1], ",9.5,")
	assert.True(t, strings.HasSuffix(lines[7], ",false"), "open stroke")
	assert.True(t, strings.HasPrefix(lines[8], "TEST,segment,0,up,"))
	assert.True(t, strings.HasSuffix(lines[8], ",18,8.5,3,true"))
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "1234.6", formatPrice(1234.5678, 1))
	assert.Equal(t, "100.5", formatPrice(100.50, 2))
	assert.Equal(t, "100", formatPrice(100.001, 2))
	assert.Equal(t, "9.125", formatPrice(9.125, PrecisionRaw))
}
