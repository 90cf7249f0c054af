package czsc

import "czsc/internal/market"

// MergeKind 描述一根原始 K 线对 MergedBar 序列的影响。
type MergeKind int

const (
	MergeAppended MergeKind = iota + 1
	MergeExtended
)

func (k MergeKind) String() string {
	switch k {
	case MergeAppended:
		return "appended"
	case MergeExtended:
		return "extended"
	default:
		return "none"
	}
}

func (k MergeKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// barMerger 维护包含处理后的 K 线序列。只有最后一根可能被原地修改。
type barMerger struct {
	policy InclusionPolicy
	bars   []MergedBar
}

// included 判断两个区间是否存在包含关系（任一方的 [low,high] 是另一方的子集）。
func included(aHigh, aLow, bHigh, bLow float64) bool {
	return (aHigh >= bHigh && aLow <= bLow) || (bHigh >= aHigh && bLow <= aLow)
}

// push 处理第 idx 根原始 K 线。每次最多合并两个区间。
func (m *barMerger) push(bar market.Candle, idx int) MergeKind {
	n := len(m.bars)
	if n == 0 {
		m.bars = append(m.bars, newMergedBar(bar, idx, 0, DirNone))
		return MergeAppended
	}
	last := &m.bars[n-1]
	if !included(last.High, last.Low, bar.High, bar.Low) {
		dir := DirDown
		if bar.High > last.High {
			dir = DirUp
		}
		m.bars = append(m.bars, newMergedBar(bar, idx, n, dir))
		return MergeAppended
	}

	dir := m.trend(bar)
	switch dir {
	case DirUp:
		if bar.High >= last.High {
			last.Time = bar.Time
			last.PeakRaw = idx
		}
		last.High = maxFloat(last.High, bar.High)
		last.Low = maxFloat(last.Low, bar.Low)
	default:
		if bar.Low <= last.Low {
			last.Time = bar.Time
			last.PeakRaw = idx
		}
		last.High = minFloat(last.High, bar.High)
		last.Low = minFloat(last.Low, bar.Low)
	}
	last.Dir = dir
	last.Open = bar.Open
	last.Close = bar.Close
	last.Volume += bar.Volume
	last.Amount += bar.Amount
	last.LastID = bar.ID
	last.LastRaw = idx
	last.Elements++
	return MergeExtended
}

// trend 返回包含合并的方向：由最后两根非包含 MergedBar 决定；
// 只有一根时按 policy 处理。
func (m *barMerger) trend(bar market.Candle) Direction {
	n := len(m.bars)
	if n >= 2 {
		if m.bars[n-2].High < m.bars[n-1].High {
			return DirUp
		}
		return DirDown
	}
	last := m.bars[n-1]
	switch m.policy {
	case InclusionUp:
		return DirUp
	case InclusionDown:
		return DirDown
	}
	switch {
	case bar.High > last.High:
		return DirUp
	case bar.High < last.High:
		return DirDown
	case bar.Low > last.Low:
		return DirUp
	case bar.Low < last.Low:
		return DirDown
	default:
		return DirUp
	}
}

func newMergedBar(bar market.Candle, idx, index int, dir Direction) MergedBar {
	return MergedBar{
		Index:    index,
		Time:     bar.Time,
		High:     bar.High,
		Low:      bar.Low,
		Open:     bar.Open,
		Close:    bar.Close,
		Volume:   bar.Volume,
		Amount:   bar.Amount,
		Dir:      dir,
		FirstID:  bar.ID,
		LastID:   bar.ID,
		FirstRaw: idx,
		LastRaw:  idx,
		PeakRaw:  idx,
		Elements: 1,
	}
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
