package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"czsc/internal/market"
)

// BarStore 抽象：读写 symbol+freq 的 K 线序列
type BarStore interface {
	Put(ctx context.Context, symbol, freq string, bars []market.Candle) error
	Get(ctx context.Context, symbol, freq string) ([]market.Candle, error)
}

// SnapshotExporter 导出最近固定窗口 K 线的抽象。
type SnapshotExporter interface {
	Export(ctx context.Context, symbol, freq string, limit int) ([]market.Candle, error)
}

var errEmptyKey = errors.New("symbol/freq 不能为空")

// MemoryBarStore 内存实现
type MemoryBarStore struct {
	mu   sync.RWMutex
	data map[string][]market.Candle
}

func NewMemoryBarStore() *MemoryBarStore {
	return &MemoryBarStore{data: make(map[string][]market.Candle)}
}

func key(symbol, freq string) string { return symbol + "@" + freq }

// Put 按时间合并写入：相同时间覆盖，较早时间插入到正确位置。
func (s *MemoryBarStore) Put(ctx context.Context, symbol, freq string, bars []market.Candle) error {
	if symbol == "" || freq == "" {
		return errEmptyKey
	}
	if len(bars) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(symbol, freq)
	cur := s.data[k]
	for _, bar := range bars {
		n := len(cur)
		if n > 0 && cur[n-1].Time.Equal(bar.Time) {
			// 同一根 K 线的更新，覆盖末尾而非重复追加。
			cur[n-1] = bar
			continue
		}
		if n == 0 || cur[n-1].Time.Before(bar.Time) {
			cur = append(cur, bar)
			continue
		}
		pos := sort.Search(n, func(i int) bool { return !cur[i].Time.Before(bar.Time) })
		if cur[pos].Time.Equal(bar.Time) {
			cur[pos] = bar
			continue
		}
		cur = append(cur, market.Candle{})
		copy(cur[pos+1:], cur[pos:])
		cur[pos] = bar
	}
	s.data[k] = cur
	return nil
}

// Set 全量替换指定 symbol+freq 的序列
func (s *MemoryBarStore) Set(ctx context.Context, symbol, freq string, bars []market.Candle) error {
	if symbol == "" || freq == "" {
		return errEmptyKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	dst := make([]market.Candle, len(bars))
	copy(dst, bars)
	s.data[key(symbol, freq)] = dst
	return nil
}

// Get 返回拷贝
func (s *MemoryBarStore) Get(ctx context.Context, symbol, freq string) ([]market.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur := s.data[key(symbol, freq)]
	out := make([]market.Candle, len(cur))
	copy(out, cur)
	return out, nil
}

// Export 返回最近 limit 根 K 线（按时间升序）
func (s *MemoryBarStore) Export(ctx context.Context, symbol, freq string, limit int) ([]market.Candle, error) {
	if symbol == "" || freq == "" {
		return nil, errEmptyKey
	}
	if limit <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur := s.data[key(symbol, freq)]
	if len(cur) == 0 {
		return nil, nil
	}
	if limit > len(cur) {
		limit = len(cur)
	}
	out := make([]market.Candle, limit)
	copy(out, cur[len(cur)-limit:])
	return out, nil
}

// Source 把 BarStore 适配为 market.Source，读出的 K 线重新编号 1..n。
// Limit>0 时只读取最近 Limit 根（通过 SnapshotExporter）。
type Source struct {
	Store BarStore
	Label string
	Limit int
}

func (s Source) Name() string {
	if s.Label != "" {
		return s.Label
	}
	return "store"
}

func (s Source) Load(ctx context.Context, symbol, freq string) ([]market.Candle, error) {
	if s.Store == nil {
		return nil, errors.New("bar store 未初始化")
	}
	var (
		bars []market.Candle
		err  error
	)
	if s.Limit > 0 {
		exp, ok := s.Store.(SnapshotExporter)
		if !ok {
			return nil, fmt.Errorf("%s 不支持按窗口导出", s.Name())
		}
		bars, err = exp.Export(ctx, symbol, freq, s.Limit)
	} else {
		bars, err = s.Store.Get(ctx, symbol, freq)
	}
	if err != nil {
		return nil, err
	}
	for i := range bars {
		bars[i].ID = int64(i + 1)
		if bars[i].Symbol == "" {
			bars[i].Symbol = symbol
		}
	}
	return bars, nil
}

// CachedSource 把上游数据按时间合并进内存缓存后再读出：
// 重复时间戳的 K 线以后出现者为准，Limit 同 Source。
type CachedSource struct {
	Upstream market.Source
	Cache    *MemoryBarStore
	Limit    int
}

func NewCachedSource(upstream market.Source, limit int) *CachedSource {
	return &CachedSource{Upstream: upstream, Cache: NewMemoryBarStore(), Limit: limit}
}

func (s *CachedSource) Name() string { return s.Upstream.Name() }

func (s *CachedSource) Load(ctx context.Context, symbol, freq string) ([]market.Candle, error) {
	bars, err := s.Upstream.Load(ctx, symbol, freq)
	if err != nil {
		return nil, err
	}
	if err := s.Cache.Set(ctx, symbol, freq, nil); err != nil {
		return nil, err
	}
	if err := s.Cache.Put(ctx, symbol, freq, bars); err != nil {
		return nil, fmt.Errorf("缓存 %s 失败: %w", s.Name(), err)
	}
	return Source{Store: s.Cache, Label: s.Name(), Limit: s.Limit}.Load(ctx, symbol, freq)
}

var (
	_ market.Source = Source{}
	_ market.Source = (*CachedSource)(nil)
)
