package czsc

import "math"

type TrendState string

const (
	TrendUp      TrendState = "up"
	TrendDown    TrendState = "down"
	TrendRange   TrendState = "range"
	TrendUnknown TrendState = "unknown"
)

const defaultTrendWindow = 5

// TrendView 是最近若干笔给出的走势判断。
type TrendView struct {
	State           TrendState `json:"state"`
	Strokes         int        `json:"strokes"`
	NormalizedSlope float64    `json:"normalized_slope"`
	SlopeState      string     `json:"slope_state"`
}

// Trend 比较最近 window 笔里向上笔高点与向下笔低点的首尾：
// 高点低点同时抬高为 up，同时降低为 down，否则 range；任一侧少于两个点为 unknown。
func Trend(strokes []Stroke, window int) TrendView {
	if window <= 0 {
		window = defaultTrendWindow
	}
	if len(strokes) > window {
		strokes = strokes[len(strokes)-window:]
	}
	view := TrendView{State: TrendUnknown, Strokes: len(strokes), SlopeState: "FLAT"}
	if len(strokes) == 0 {
		return view
	}
	var highs, lows []float64
	points := []float64{strokes[0].Start.Price}
	for _, s := range strokes {
		points = append(points, s.End.Price)
		if s.Direction == DirUp {
			highs = append(highs, s.End.Price)
		} else {
			lows = append(lows, s.End.Price)
		}
	}
	view.NormalizedSlope = math.Round(normalizedSlope(points)*1e4) / 1e4
	view.SlopeState = trendSlopeState(view.NormalizedSlope)
	if len(highs) < 2 || len(lows) < 2 {
		return view
	}
	hUp := highs[len(highs)-1] > highs[0]
	hDown := highs[len(highs)-1] < highs[0]
	lUp := lows[len(lows)-1] > lows[0]
	lDown := lows[len(lows)-1] < lows[0]
	switch {
	case hUp && lUp:
		view.State = TrendUp
	case hDown && lDown:
		view.State = TrendDown
	default:
		view.State = TrendRange
	}
	return view
}

// normalizedSlope 是首尾变化百分比按步数平均。
func normalizedSlope(series []float64) float64 {
	if len(series) < 2 {
		return 0
	}
	first := series[0]
	last := series[len(series)-1]
	if math.Abs(first) < 1e-9 {
		return 0
	}
	return (last - first) / math.Abs(first) * 100 / float64(len(series)-1)
}

func trendSlopeState(norm float64) string {
	abs := math.Abs(norm)
	switch {
	case abs < 0.1:
		return "FLAT"
	case abs < 0.4:
		return "MODERATE"
	default:
		return "STEEP"
	}
}
