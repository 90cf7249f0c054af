package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"czsc/internal/czsc"
)

const tableTimeLayout = "2006-01-02 15:04"

// Table 以多张文本表格渲染报告。
func (r Report) Table() string {
	var b strings.Builder
	b.WriteString(r.overviewTable())
	b.WriteByte('\n')
	if len(r.Fractals) > 0 {
		b.WriteString(r.fractalTable())
		b.WriteByte('\n')
	}
	if len(r.Strokes) > 0 {
		b.WriteString(r.strokeTable())
		b.WriteByte('\n')
	}
	if len(r.Segments) > 0 {
		b.WriteString(r.segmentTable())
		b.WriteByte('\n')
	}
	b.WriteString(r.signalTable())
	b.WriteByte('\n')
	return b.String()
}

func newTable(title string) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetTitle(title)
	return t
}

func (r Report) overviewTable() string {
	t := newTable(fmt.Sprintf("缠论结构 %s (%s)", r.Symbol, r.Freq))
	t.AppendRows([]table.Row{
		{"版本", r.Version},
		{"原始K线", r.RawBars},
		{"合并K线", r.MergedBars},
		{"分型", r.TotalFractals},
		{"笔", r.TotalStrokes},
		{"线段", r.TotalSegments},
		{"走势", fmt.Sprintf("%s (slope %s, %s)", r.Trend.State, strconv.FormatFloat(r.Trend.NormalizedSlope, 'f', -1, 64), r.Trend.SlopeState)},
	})
	if r.State != nil {
		status := "已确认"
		if r.State.Open {
			status = "未完成"
		}
		t.AppendRow(table.Row{"当前笔", fmt.Sprintf("%s %s -> %s (%s)", r.State.Direction,
			r.price(r.State.StartPrice), r.price(r.State.EndPrice), status)})
		t.AppendRow(table.Row{"最新收盘", r.price(r.State.LastClose)})
	} else {
		t.AppendRow(table.Row{"当前笔", "数据不足"})
	}
	return t.Render()
}

func (r Report) fractalTable() string {
	t := newTable(fmt.Sprintf("最近 %d 个分型", len(r.Fractals)))
	t.AppendHeader(table.Row{"#", "类型", "时间", "价格", "状态"})
	for _, f := range r.Fractals {
		label := "底"
		if f.Kind == czsc.Top {
			label = "顶"
		}
		t.AppendRow(table.Row{f.Index, label, formatTableTime(f.Time), r.price(f.Price), confirmedLabel(f.Confirmed)})
	}
	rightAlign(t, 1, 4)
	return t.Render()
}

func (r Report) strokeTable() string {
	t := newTable(fmt.Sprintf("最近 %d 笔", len(r.Strokes)))
	t.AppendHeader(table.Row{"#", "方向", "起点", "终点", "幅度", "跨度", "状态"})
	for _, s := range r.Strokes {
		t.AppendRow(table.Row{
			s.Index,
			s.Direction,
			formatTableTime(s.Start.Time) + " " + r.price(s.Start.Price),
			formatTableTime(s.End.Time) + " " + r.price(s.End.Price),
			r.price(s.Amplitude),
			s.Span,
			confirmedLabel(s.Confirmed),
		})
	}
	rightAlign(t, 1, 5, 6)
	return t.Render()
}

func (r Report) segmentTable() string {
	t := newTable(fmt.Sprintf("最近 %d 段", len(r.Segments)))
	t.AppendHeader(table.Row{"#", "方向", "起点", "终点", "笔数", "幅度", "状态"})
	for _, s := range r.Segments {
		t.AppendRow(table.Row{
			s.Index,
			s.Direction,
			formatTableTime(s.Start.Time) + " " + r.price(s.Start.Price),
			formatTableTime(s.End.Time) + " " + r.price(s.End.Price),
			s.Strokes,
			r.price(s.Amplitude),
			confirmedLabel(s.Confirmed),
		})
	}
	rightAlign(t, 1, 5, 6)
	return t.Render()
}

func (r Report) signalTable() string {
	t := newTable("信号")
	t.AppendHeader(table.Row{"信号", "级别", "#", "时间", "价格", "力度", "对比力度"})
	for _, s := range r.Signals {
		t.AppendRow(table.Row{
			s.Kind.Label(),
			s.Level,
			s.Index,
			formatTableTime(s.Time),
			r.price(s.Price),
			strconv.FormatFloat(s.Strength, 'f', 6, 64),
			strconv.FormatFloat(s.RefStrength, 'f', 6, 64),
		})
	}
	t.AppendFooter(table.Row{"合计", r.Summary.Total, "买", r.Summary.Buy, "卖", r.Summary.Sell, ""})
	return t.Render()
}

func (r Report) price(v float64) string {
	return formatPrice(v, r.precision)
}

func rightAlign(t table.Writer, columns ...int) {
	cfgs := make([]table.ColumnConfig, 0, len(columns))
	for _, n := range columns {
		cfgs = append(cfgs, table.ColumnConfig{Number: n, Align: text.AlignRight})
	}
	t.SetColumnConfigs(cfgs)
}

func confirmedLabel(ok bool) string {
	if ok {
		return "确认"
	}
	return "待定"
}

func formatTableTime(t time.Time) string {
	return t.UTC().Format(tableTimeLayout)
}

// WriteJSON 以缩进 JSON 输出报告。
func WriteJSON(w io.Writer, r Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("编码报告失败: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
