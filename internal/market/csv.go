package market

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"
)

var timeColumns = []string{"trade_date", "dt", "date", "datetime", "time", "timestamp"}

var timeLayouts = []string{
	"20060102",
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02",
	"2006/01/02 15:04:05",
	time.RFC3339,
}

// ReadCandlesCSV 解析带表头的 OHLCV CSV。
// 必需列：时间列（trade_date/dt/date/datetime/time/timestamp）、open、high、low、close；
// 可选列：vol/volume、amount、symbol。结果按时间升序，ID 从 1 开始依次分配。
func ReadCandlesCSV(r io.Reader, symbol string) ([]Candle, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("读取 CSV 表头失败: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	timeIdx := -1
	for _, name := range timeColumns {
		if idx, ok := cols[name]; ok {
			timeIdx = idx
			break
		}
	}
	if timeIdx < 0 {
		return nil, fmt.Errorf("CSV 缺少时间列（%s）", strings.Join(timeColumns, "/"))
	}
	required := map[string]int{}
	for _, name := range []string{"open", "high", "low", "close"} {
		idx, ok := cols[name]
		if !ok {
			return nil, fmt.Errorf("CSV 缺少 %s 列", name)
		}
		required[name] = idx
	}
	volIdx := lookupColumn(cols, "vol", "volume")
	amountIdx := lookupColumn(cols, "amount")
	symbolIdx := lookupColumn(cols, "symbol", "ts_code", "code")

	out := make([]Candle, 0, 256)
	line := 1
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("CSV 第 %d 行: %w", line, err)
		}
		ts, err := ParseBarTime(field(rec, timeIdx))
		if err != nil {
			return nil, fmt.Errorf("CSV 第 %d 行: %w", line, err)
		}
		c := Candle{Symbol: symbol, Time: ts}
		if c.Open, err = parseFloat(field(rec, required["open"])); err != nil {
			return nil, fmt.Errorf("CSV 第 %d 行 open: %w", line, err)
		}
		if c.High, err = parseFloat(field(rec, required["high"])); err != nil {
			return nil, fmt.Errorf("CSV 第 %d 行 high: %w", line, err)
		}
		if c.Low, err = parseFloat(field(rec, required["low"])); err != nil {
			return nil, fmt.Errorf("CSV 第 %d 行 low: %w", line, err)
		}
		if c.Close, err = parseFloat(field(rec, required["close"])); err != nil {
			return nil, fmt.Errorf("CSV 第 %d 行 close: %w", line, err)
		}
		if volIdx >= 0 {
			if c.Volume, err = parseOptionalFloat(field(rec, volIdx)); err != nil {
				return nil, fmt.Errorf("CSV 第 %d 行 vol: %w", line, err)
			}
		}
		if amountIdx >= 0 {
			if c.Amount, err = parseOptionalFloat(field(rec, amountIdx)); err != nil {
				return nil, fmt.Errorf("CSV 第 %d 行 amount: %w", line, err)
			}
		}
		if c.Symbol == "" && symbolIdx >= 0 {
			c.Symbol = strings.TrimSpace(field(rec, symbolIdx))
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	for i := range out {
		out[i].ID = int64(i + 1)
	}
	return out, nil
}

// ParseBarTime 接受 YYYYMMDD、YYYY-MM-DD[ HH:MM[:SS]]、RFC3339 与 13 位毫秒时间戳。
func ParseBarTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("时间为空")
	}
	if len(raw) == 13 {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), nil
		}
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("无法解析时间 %q", raw)
}

func lookupColumn(cols map[string]int, names ...string) int {
	for _, n := range names {
		if idx, ok := cols[n]; ok {
			return idx
		}
	}
	return -1
}

func field(rec []string, idx int) string {
	if idx < 0 || idx >= len(rec) {
		return ""
	}
	return rec[idx]
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func parseOptionalFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
