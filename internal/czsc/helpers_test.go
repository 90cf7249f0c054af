package czsc

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"czsc/internal/market"
)

var testBase = time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)

// hl 构造第 i 根 K 线（ID 从 1 开始，按小时递增）。
func hl(i int, high, low float64) market.Candle {
	return market.Candle{
		Symbol: "TEST",
		ID:     int64(i + 1),
		Time:   testBase.Add(time.Duration(i) * time.Hour),
		Open:   low,
		High:   high,
		Low:    low,
		Close:  high,
		Volume: 10,
		Amount: 100,
	}
}

// zigzag 按 0.25 的步长在折点之间走出价格路径，每根 K 线 high=p、low=p-0.5。
// 相邻 K 线之间不存在包含，折点处顶分型价格为 p、底分型价格为 p-0.5。
func zigzag(points ...float64) []market.Candle {
	const step = 0.25
	var bars []market.Candle
	p := points[0]
	bars = append(bars, hl(0, p, p-0.5))
	for _, target := range points[1:] {
		for p != target {
			if target > p {
				p += step
			} else {
				p -= step
			}
			bars = append(bars, hl(len(bars), p, p-0.5))
		}
	}
	return bars
}

// randomWalk 生成可复现的随机 K 线，包含大量包含关系与持平。
func randomWalk(seed int64, n int) []market.Candle {
	rng := rand.New(rand.NewSource(seed))
	bars := make([]market.Candle, 0, n)
	mid := 100.0
	for i := 0; i < n; i++ {
		mid += float64(rng.Intn(9)-4) * 0.25
		if mid < 20 {
			mid = 20
		}
		half := float64(rng.Intn(4)+1) * 0.25
		bars = append(bars, hl(i, mid+half, mid-half))
	}
	return bars
}

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e, err := NewEngine(cfg, "")
	require.NoError(t, err)
	return e
}

func ingestAll(t *testing.T, e *Engine, bars []market.Candle) {
	t.Helper()
	for _, b := range bars {
		_, err := e.Ingest(b)
		require.NoError(t, err, "bar %d", b.ID)
	}
}

func prices(fxs []Fractal) []float64 {
	out := make([]float64, len(fxs))
	for i, f := range fxs {
		out[i] = f.Price
	}
	return out
}
