package indicator

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"czsc/internal/market"
)

type MACDSettings struct {
	Fast   int `json:"fast,omitempty"`
	Slow   int `json:"slow,omitempty"`
	Signal int `json:"signal,omitempty"`
}

func DefaultMACDSettings() MACDSettings {
	return MACDSettings{Fast: 12, Slow: 26, Signal: 9}
}

func normalizeMACDSettings(in MACDSettings) MACDSettings {
	def := DefaultMACDSettings()
	if in.Fast <= 0 {
		in.Fast = def.Fast
	}
	if in.Slow <= 0 {
		in.Slow = def.Slow
	}
	if in.Signal <= 0 {
		in.Signal = def.Signal
	}
	return in
}

// lookback 是 talib 输出第一个有效值之前的样本数。
func (s MACDSettings) lookback() int {
	return s.Slow + s.Signal - 2
}

// ComputeMACDHist 返回与 candles 等长、按下标对齐的 MACD 柱序列。
// 预热区间和非法值记为 0。
func ComputeMACDHist(candles []market.Candle, settings MACDSettings) ([]float64, error) {
	settings = normalizeMACDSettings(settings)
	if settings.Fast >= settings.Slow {
		return nil, fmt.Errorf("macd fast(%d) 必须小于 slow(%d)", settings.Fast, settings.Slow)
	}
	out := make([]float64, len(candles))
	if len(candles) <= settings.lookback() {
		return out, nil
	}
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	_, _, hist := talib.Macd(closes, settings.Fast, settings.Slow, settings.Signal)
	for i := range out {
		if i < settings.lookback() || i >= len(hist) {
			continue
		}
		out[i] = sanitize(hist[i])
	}
	return out, nil
}

// HistArea 累加 (from, to] 区间内同号的柱值：positive 取红柱面积，否则取绿柱面积（取绝对值）。
func HistArea(hist []float64, from, to int, positive bool) float64 {
	if from < -1 {
		from = -1
	}
	if to >= len(hist) {
		to = len(hist) - 1
	}
	area := 0.0
	for i := from + 1; i <= to; i++ {
		v := hist[i]
		switch {
		case positive && v > 0:
			area += v
		case !positive && v < 0:
			area -= v
		}
	}
	return area
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
