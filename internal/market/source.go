package market

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Source 统一对接 K 线来源（CSV 文件、本地存储等）。
type Source interface {
	// Load 返回 symbol+freq 的全部 K 线，按时间升序，ID 严格递增。
	Load(ctx context.Context, symbol, freq string) ([]Candle, error)
	// Name 用于日志。
	Name() string
}

// CSVSource 从单个 CSV 文件读取 K 线。
type CSVSource struct {
	Path string
}

func NewCSVSource(path string) *CSVSource {
	return &CSVSource{Path: strings.TrimSpace(path)}
}

func (s *CSVSource) Name() string { return "csv:" + s.Path }

func (s *CSVSource) Load(ctx context.Context, symbol, _ string) ([]Candle, error) {
	if s.Path == "" {
		return nil, fmt.Errorf("csv 路径不能为空")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("打开 %s 失败: %w", s.Path, err)
	}
	defer f.Close()
	return ReadCandlesCSV(f, symbol)
}
