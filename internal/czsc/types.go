// Package czsc 实现缠论结构识别：K 线包含处理、分型、笔、线段与背驰/买卖点。
//
// 引擎是单写多读的增量状态机：每根原始 K 线按顺序追加，各层只回溯修订
// 最近尚未确认的尾部元素，已确认的元素不再改变。
package czsc

import (
	"fmt"
	"time"
)

// Direction 是合并方向或笔/线段的方向。
type Direction int

const (
	DirNone Direction = iota
	DirUp
	DirDown
)

func (d Direction) String() string {
	switch d {
	case DirUp:
		return "up"
	case DirDown:
		return "down"
	default:
		return "none"
	}
}

// Opposite 返回相反方向；DirNone 保持不变。
func (d Direction) Opposite() Direction {
	switch d {
	case DirUp:
		return DirDown
	case DirDown:
		return DirUp
	default:
		return DirNone
	}
}

func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// FractalKind 顶分型或底分型。
type FractalKind int

const (
	Top FractalKind = iota + 1
	Bottom
)

func (k FractalKind) String() string {
	switch k {
	case Top:
		return "top"
	case Bottom:
		return "bottom"
	default:
		return "unknown"
	}
}

func (k FractalKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// MergedBar 是经过包含处理后的 K 线，由一根或多根原始 K 线组成。
// 相邻两根 MergedBar 之间不存在包含关系。
type MergedBar struct {
	Index int       `json:"index"`
	Time  time.Time `json:"dt"` // 极值所在原始 K 线的时间
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	// Open/Close 取最后一根参与合并的原始 K 线
	Open   float64   `json:"open"`
	Close  float64   `json:"close"`
	Volume float64   `json:"vol"`
	Amount float64   `json:"amount"`
	Dir    Direction `json:"direction"`
	// 参与合并的原始 K 线 ID 区间（闭区间）
	FirstID int64 `json:"first_id"`
	LastID  int64 `json:"last_id"`
	// 原始 K 线序列中的位置：首根、末根与极值所在位置
	FirstRaw int `json:"first_raw"`
	LastRaw  int `json:"last_raw"`
	PeakRaw  int `json:"peak_raw"`
	Elements int `json:"elements"`
}

// Fractal 是三根相邻 MergedBar 上的顶/底分型。
type Fractal struct {
	Kind  FractalKind `json:"mark"`
	Index int         `json:"index"` // 中间 MergedBar 的下标
	Time  time.Time   `json:"dt"`
	Price float64     `json:"fx"` // 顶取 high，底取 low
	High  float64     `json:"high"`
	Low   float64     `json:"low"`
	Raw   int         `json:"raw"` // 极值所在原始 K 线的位置
	// Confirmed 表示右侧相邻 MergedBar 已不会再被合并修改
	Confirmed bool `json:"confirmed"`
}

func (f Fractal) String() string {
	state := "provisional"
	if f.Confirmed {
		state = "confirmed"
	}
	return fmt.Sprintf("%s@%d(%.4f,%s)", f.Kind, f.Index, f.Price, state)
}

// moreExtreme 判断 f 是否比 g 更极端（同类分型）；价格相同时以时间较晚者为准。
func (f Fractal) moreExtreme(g Fractal) bool {
	if f.Price == g.Price {
		return !f.Time.Before(g.Time)
	}
	if f.Kind == Top {
		return f.Price > g.Price
	}
	return f.Price < g.Price
}

// Stroke 是笔：两个相反类型分型之间的走势。
type Stroke struct {
	Start     Fractal   `json:"fx_a"`
	End       Fractal   `json:"fx_b"`
	Direction Direction `json:"direction"`
	// Open 表示最后一笔尚未被下一笔确认，终点仍可能延伸
	Open bool `json:"open"`
}

func (s Stroke) High() float64 {
	if s.Start.Price > s.End.Price {
		return s.Start.Price
	}
	return s.End.Price
}

func (s Stroke) Low() float64 {
	if s.Start.Price < s.End.Price {
		return s.Start.Price
	}
	return s.End.Price
}

// Amplitude = |end - start|
func (s Stroke) Amplitude() float64 {
	return s.High() - s.Low()
}

// Span 是起止分型之间独立 MergedBar 的数量。
func (s Stroke) Span() int {
	return s.End.Index - s.Start.Index - 1
}

// RawBars 是起止极值之间经过的原始 K 线数量（至少 1）。
func (s Stroke) RawBars() int {
	n := s.End.Raw - s.Start.Raw
	if n < 1 {
		return 1
	}
	return n
}

// Segment 是线段：至少三笔、由特征序列破坏确认。
type Segment struct {
	Start     Fractal   `json:"start"`
	End       Fractal   `json:"end"`
	Direction Direction `json:"direction"`
	// 组成线段的笔在 strokes() 中的下标（闭区间）
	FirstStroke int  `json:"first_stroke"`
	LastStroke  int  `json:"last_stroke"`
	Confirmed   bool `json:"confirmed"`
}

func (s Segment) Strokes() int { return s.LastStroke - s.FirstStroke + 1 }

func (s Segment) High() float64 {
	if s.Start.Price > s.End.Price {
		return s.Start.Price
	}
	return s.End.Price
}

func (s Segment) Low() float64 {
	if s.Start.Price < s.End.Price {
		return s.Start.Price
	}
	return s.End.Price
}

func (s Segment) Amplitude() float64 { return s.High() - s.Low() }

func (s Segment) RawBars() int {
	n := s.End.Raw - s.Start.Raw
	if n < 1 {
		return 1
	}
	return n
}
