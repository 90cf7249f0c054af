package report

import (
	"math"
	"strconv"
	"strings"
	"time"

	"czsc/internal/czsc"
)

const (
	// PrecisionAuto 根据合并 K 线的价格区间自动决定精度。
	PrecisionAuto = math.MinInt32
	// PrecisionRaw 表示保留原始精度（等价于 strconv.FormatFloat(..., -1, 64)）
	PrecisionRaw = -1
)

const csvTimeLayout = "2006-01-02 15:04:05"

// BuildStructureCSV 导出全部笔与线段，首行为列头，level 列区分 stroke/segment。
func BuildStructureCSV(snap czsc.Snapshot, precision int) string {
	if len(snap.Strokes) == 0 && len(snap.Segments) == 0 {
		return ""
	}
	if precision == PrecisionAuto {
		precision = autoPrecision(snap)
	}
	var b strings.Builder
	b.WriteString("symbol,level,index,direction,start_dt,start_price,end_dt,end_price,amplitude,length,confirmed\n")
	for i, s := range snap.Strokes {
		writeRow(&b, snap.Symbol, czsc.LevelStroke, i, s.Direction, s.Start, s.End, s.Amplitude(), s.Span(), !s.Open, precision)
	}
	for i, s := range snap.Segments {
		writeRow(&b, snap.Symbol, czsc.LevelSegment, i, s.Direction, s.Start, s.End, s.Amplitude(), s.Strokes(), s.Confirmed, precision)
	}
	return b.String()
}

func writeRow(b *strings.Builder, symbol string, level czsc.Level, index int, dir czsc.Direction, start, end czsc.Fractal, amp float64, length int, confirmed bool, precision int) {
	b.WriteString(symbol)
	b.WriteByte(',')
	b.WriteString(string(level))
	b.WriteByte(',')
	b.WriteString(strconv.Itoa(index))
	b.WriteByte(',')
	b.WriteString(dir.String())
	b.WriteByte(',')
	b.WriteString(formatTime(start.Time))
	b.WriteByte(',')
	b.WriteString(formatPrice(start.Price, precision))
	b.WriteByte(',')
	b.WriteString(formatTime(end.Time))
	b.WriteByte(',')
	b.WriteString(formatPrice(end.Price, precision))
	b.WriteByte(',')
	b.WriteString(formatPrice(amp, precision))
	b.WriteByte(',')
	b.WriteString(strconv.Itoa(length))
	b.WriteByte(',')
	b.WriteString(strconv.FormatBool(confirmed))
	b.WriteByte('\n')
}

func formatTime(t time.Time) string {
	return t.UTC().Format(csvTimeLayout)
}

func formatPrice(value float64, precision int) string {
	if precision == PrecisionRaw {
		return strconv.FormatFloat(value, 'f', -1, 64)
	}
	s := strconv.FormatFloat(value, 'f', precision, 64)
	if precision > 0 {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return s
}
