// Package report 把引擎快照整理成结构报告，并渲染为表格、JSON 或 CSV。
package report

import (
	"fmt"
	"io"
	"math"
	"strings"

	"czsc/internal/config"
	"czsc/internal/czsc"
)

// StrokeRow 是报告中的一笔。
type StrokeRow struct {
	Index     int          `json:"index"`
	Direction string       `json:"direction"`
	Start     czsc.Fractal `json:"start"`
	End       czsc.Fractal `json:"end"`
	Amplitude float64      `json:"amplitude"`
	Span      int          `json:"span"`
	Confirmed bool         `json:"confirmed"`
}

// SegmentRow 是报告中的一段。
type SegmentRow struct {
	Index     int          `json:"index"`
	Direction string       `json:"direction"`
	Start     czsc.Fractal `json:"start"`
	End       czsc.Fractal `json:"end"`
	Strokes   int          `json:"strokes"`
	Amplitude float64      `json:"amplitude"`
	Confirmed bool         `json:"confirmed"`
}

// State 描述最后一笔，即当前所处的走势位置。
type State struct {
	Direction  string  `json:"direction"`
	StartPrice float64 `json:"start_price"`
	EndPrice   float64 `json:"end_price"`
	Open       bool    `json:"open"`
	LastClose  float64 `json:"last_close"`
}

// Report 是单个标的的结构分析结果。
type Report struct {
	Symbol     string `json:"symbol"`
	Freq       string `json:"freq"`
	Version    string `json:"version"`
	RawBars    int    `json:"raw_bars"`
	MergedBars int    `json:"merged_bars"`

	TotalFractals int `json:"total_fractals"`
	TotalStrokes  int `json:"total_strokes"`
	TotalSegments int `json:"total_segments"`

	Fractals []czsc.Fractal `json:"fractals"`
	Strokes  []StrokeRow    `json:"strokes"`
	Segments []SegmentRow   `json:"segments"`

	State   *State             `json:"state,omitempty"`
	Trend   czsc.TrendView     `json:"trend"`
	Signals []czsc.Signal      `json:"signals"`
	Summary czsc.SignalSummary `json:"summary"`

	precision int
}

// Build 依据报告参数截取最近的分型、笔、线段，并计算走势与信号。
func Build(snap czsc.Snapshot, freq string, opts config.Report) (Report, error) {
	r := Report{
		Symbol:        snap.Symbol,
		Freq:          freq,
		Version:       snap.Version.String(),
		RawBars:       len(snap.Bars),
		MergedBars:    len(snap.MergedBars),
		TotalFractals: len(snap.Fractals),
		TotalStrokes:  len(snap.Strokes),
		TotalSegments: len(snap.Segments),
		Trend:         snap.Trend(opts.TrendWindow),
		precision:     autoPrecision(snap),
	}
	r.Fractals = tail(snap.Fractals, opts.RecentFractals)

	strokes := strokeRows(snap.Strokes)
	r.Strokes = tail(strokes, opts.RecentStrokes)
	r.Segments = tail(segmentRows(snap.Segments), opts.RecentSegments)

	if n := len(snap.Strokes); n > 0 {
		last := snap.Strokes[n-1]
		r.State = &State{
			Direction:  last.Direction.String(),
			StartPrice: last.Start.Price,
			EndPrice:   last.End.Price,
			Open:       last.Open,
			LastClose:  snap.Bars[len(snap.Bars)-1].Close,
		}
	}

	signals, err := snap.Signals(opts.SignalWindow)
	if err != nil {
		return Report{}, fmt.Errorf("计算 %s 信号失败: %w", snap.Symbol, err)
	}
	r.Signals = czsc.FilterSignals(signals, czsc.SignalCategory(opts.SignalType))
	r.Summary = czsc.Summarize(r.Signals)
	return r, nil
}

// Render 构建报告并按 format 输出。
func Render(w io.Writer, snap czsc.Snapshot, freq string, opts config.Report) error {
	if strings.EqualFold(opts.Format, config.FormatCSV) {
		_, err := io.WriteString(w, BuildStructureCSV(snap, PrecisionAuto))
		return err
	}
	r, err := Build(snap, freq, opts)
	if err != nil {
		return err
	}
	switch strings.ToLower(opts.Format) {
	case config.FormatJSON:
		return WriteJSON(w, r)
	case "", config.FormatTable:
		_, err := io.WriteString(w, r.Table())
		return err
	default:
		return fmt.Errorf("未知输出格式: %s", opts.Format)
	}
}

func strokeRows(strokes []czsc.Stroke) []StrokeRow {
	rows := make([]StrokeRow, len(strokes))
	for i, s := range strokes {
		rows[i] = StrokeRow{
			Index:     i,
			Direction: s.Direction.String(),
			Start:     s.Start,
			End:       s.End,
			Amplitude: s.Amplitude(),
			Span:      s.Span(),
			Confirmed: !s.Open,
		}
	}
	return rows
}

func segmentRows(segments []czsc.Segment) []SegmentRow {
	rows := make([]SegmentRow, len(segments))
	for i, s := range segments {
		rows[i] = SegmentRow{
			Index:     i,
			Direction: s.Direction.String(),
			Start:     s.Start,
			End:       s.End,
			Strokes:   s.Strokes(),
			Amplitude: s.Amplitude(),
			Confirmed: s.Confirmed,
		}
	}
	return rows
}

// tail 返回最后 n 个元素的拷贝；n<=0 时返回全部。
func tail[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		items = items[len(items)-n:]
	}
	return append(make([]T, 0, len(items)), items...)
}

func autoPrecision(snap czsc.Snapshot) int {
	maxVal := 0.0
	for _, b := range snap.MergedBars {
		maxVal = math.Max(maxVal, math.Abs(b.High))
	}
	switch {
	case maxVal >= 1000:
		return 1
	case maxVal >= 100:
		return 2
	default:
		return PrecisionRaw
	}
}
