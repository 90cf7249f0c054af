package czsc

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"czsc/internal/analysis/indicator"
	"czsc/internal/market"
)

type SignalKind string

const (
	SignalDivergenceTop    SignalKind = "divergence-top"
	SignalDivergenceBottom SignalKind = "divergence-bottom"
	SignalBuy1             SignalKind = "buy-1"
	SignalBuy2             SignalKind = "buy-2"
	SignalBuy3             SignalKind = "buy-3"
	SignalSell1            SignalKind = "sell-1"
	SignalSell2            SignalKind = "sell-2"
	SignalSell3            SignalKind = "sell-3"
)

var signalLabels = map[SignalKind]string{
	SignalDivergenceTop:    "顶背驰",
	SignalDivergenceBottom: "底背驰",
	SignalBuy1:             "一买",
	SignalBuy2:             "二买",
	SignalBuy3:             "三买",
	SignalSell1:            "一卖",
	SignalSell2:            "二卖",
	SignalSell3:            "三卖",
}

// Label 返回中文名称。
func (k SignalKind) Label() string {
	if l, ok := signalLabels[k]; ok {
		return l
	}
	return string(k)
}

// Side: buy / sell / neutral。底背驰计为 buy，顶背驰计为 sell。
func (k SignalKind) Side() string {
	switch k {
	case SignalBuy1, SignalBuy2, SignalBuy3, SignalDivergenceBottom:
		return "buy"
	case SignalSell1, SignalSell2, SignalSell3, SignalDivergenceTop:
		return "sell"
	default:
		return "neutral"
	}
}

func (k SignalKind) IsDivergence() bool {
	return k == SignalDivergenceTop || k == SignalDivergenceBottom
}

// Level 是信号所在的结构级别。
type Level string

const (
	LevelStroke  Level = "stroke"
	LevelSegment Level = "segment"
)

// Signal 是对一笔/一段（以及两元素之前的同向比较对象）的派生标注。
type Signal struct {
	Kind  SignalKind `json:"kind"`
	Level Level      `json:"level"`
	// Index 是触发信号的元素在 strokes()/segments() 中的下标，Ref 是比较对象的下标
	Index       int       `json:"index"`
	Ref         int       `json:"ref"`
	Time        time.Time `json:"dt"`
	Price       float64   `json:"price"`
	Strength    float64   `json:"strength"`
	RefStrength float64   `json:"ref_strength"`
}

func (s Signal) String() string {
	return fmt.Sprintf("%s[%s#%d] %.4f @ %s", s.Kind.Label(), s.Level, s.Index, s.Price, s.Time.Format(time.RFC3339))
}

// SignalCategory 对应信号过滤条件。
type SignalCategory string

const (
	CategoryAll        SignalCategory = "all"
	CategoryBS         SignalCategory = "bs"
	CategoryDivergence SignalCategory = "divergence"
)

func (c SignalCategory) Valid() bool {
	switch c {
	case CategoryAll, CategoryBS, CategoryDivergence:
		return true
	}
	return false
}

// FilterSignals 按类别筛选；空类别等同 all，未知类别返回空结果。
func FilterSignals(signals []Signal, category SignalCategory) []Signal {
	if category == "" || category == CategoryAll {
		return append([]Signal(nil), signals...)
	}
	out := make([]Signal, 0, len(signals))
	for _, s := range signals {
		switch {
		case category == CategoryDivergence && s.Kind.IsDivergence():
			out = append(out, s)
		case category == CategoryBS && !s.Kind.IsDivergence():
			out = append(out, s)
		}
	}
	return out
}

type SignalSummary struct {
	Total   int `json:"total"`
	Buy     int `json:"buy"`
	Sell    int `json:"sell"`
	Neutral int `json:"neutral"`
}

func Summarize(signals []Signal) SignalSummary {
	sum := SignalSummary{Total: len(signals)}
	for _, s := range signals {
		switch s.Kind.Side() {
		case "buy":
			sum.Buy++
		case "sell":
			sum.Sell++
		default:
			sum.Neutral++
		}
	}
	return sum
}

// leg 是笔或线段的公共视图。
type leg struct {
	index      int
	dir        Direction
	start, end Fractal
}

func (l leg) rawBars() int {
	if n := l.end.Raw - l.start.Raw; n > 0 {
		return n
	}
	return 1
}

// strengthMeter 计算力度，结果取 8 位小数以保证比较确定。
type strengthMeter struct {
	measure StrengthMeasure
	hist    []float64
}

func newStrengthMeter(measure StrengthMeasure, bars []market.Candle) (strengthMeter, error) {
	m := strengthMeter{measure: measure}
	if measure == StrengthMACDArea {
		hist, err := indicator.ComputeMACDHist(bars, indicator.DefaultMACDSettings())
		if err != nil {
			return m, err
		}
		m.hist = hist
	}
	return m, nil
}

func (m strengthMeter) of(l leg) decimal.Decimal {
	var v float64
	switch m.measure {
	case StrengthMACDArea:
		v = indicator.HistArea(m.hist, l.start.Raw, l.end.Raw, l.dir == DirUp)
	default:
		amp := l.end.Price - l.start.Price
		if amp < 0 {
			amp = -amp
		}
		v = amp / float64(l.rawBars())
	}
	return decimal.NewFromFloat(v).Round(8)
}

// DetectSignals 在已确认的笔与线段上比较同向相邻元素（中间隔一个反向元素）。
// window>0 时只对各级别最近 window 个元素给出信号。
func DetectSignals(strokes []Stroke, segments []Segment, bars []market.Candle, measure StrengthMeasure, window int) ([]Signal, error) {
	meter, err := newStrengthMeter(measure, bars)
	if err != nil {
		return nil, err
	}
	var strokeLegs, segLegs []leg
	for i, s := range strokes {
		if s.Open {
			continue
		}
		strokeLegs = append(strokeLegs, leg{index: i, dir: s.Direction, start: s.Start, end: s.End})
	}
	for i, s := range segments {
		if !s.Confirmed {
			continue
		}
		segLegs = append(segLegs, leg{index: i, dir: s.Direction, start: s.Start, end: s.End})
	}
	out := classify(strokeLegs, LevelStroke, meter, window, true)
	out = append(out, classify(segLegs, LevelSegment, meter, window, false)...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Time.Before(out[j].Time)
	})
	return out, nil
}

func classify(legs []leg, level Level, meter strengthMeter, window int, withBS bool) []Signal {
	from := 2
	if window > 0 && len(legs)-window > from {
		from = len(legs) - window
	}
	var out []Signal
	for i := from; i < len(legs); i++ {
		cur, ref := legs[i], legs[i-2]
		if cur.dir != ref.dir {
			continue
		}
		cs, rs := meter.of(cur), meter.of(ref)
		newExtreme := beyondStrict(cur.dir, cur.end.Price, ref.end.Price)
		emit := func(kind SignalKind) {
			out = append(out, Signal{
				Kind:        kind,
				Level:       level,
				Index:       cur.index,
				Ref:         ref.index,
				Time:        cur.end.Time,
				Price:       cur.end.Price,
				Strength:    cs.InexactFloat64(),
				RefStrength: rs.InexactFloat64(),
			})
		}
		weaker := cs.LessThan(rs)
		if newExtreme && weaker {
			if cur.dir == DirUp {
				emit(SignalDivergenceTop)
			} else {
				emit(SignalDivergenceBottom)
			}
		}
		if !withBS {
			continue
		}
		if kind, ok := bsPoint(legs, i, newExtreme, weaker); ok {
			emit(kind)
		}
	}
	return out
}

// bsPoint 买卖点规则表（以向下笔为例，向上笔镜像）：
//
//	一买：创新低且底背驰
//	三买：未创新低，且终点高于前一同向笔的起点
//	二买：未创新低，且前一同向笔相对再前一同向笔创了新低
func bsPoint(legs []leg, i int, newExtreme, weaker bool) (SignalKind, bool) {
	cur, ref := legs[i], legs[i-2]
	buy := cur.dir == DirDown
	pick := func(b, s SignalKind) SignalKind {
		if buy {
			return b
		}
		return s
	}
	if newExtreme {
		if weaker {
			return pick(SignalBuy1, SignalSell1), true
		}
		return "", false
	}
	if beyondStrict(cur.dir.Opposite(), cur.end.Price, ref.start.Price) {
		return pick(SignalBuy3, SignalSell3), true
	}
	if i >= 4 && legs[i-4].dir == ref.dir && beyondStrict(ref.dir, ref.end.Price, legs[i-4].end.Price) {
		return pick(SignalBuy2, SignalSell2), true
	}
	return "", false
}

// beyondStrict 判断 p 是否在 dir 方向上严格超过 ref。
func beyondStrict(dir Direction, p, ref float64) bool {
	if dir == DirUp {
		return p > ref
	}
	return p < ref
}
