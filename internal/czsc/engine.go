package czsc

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"czsc/internal/logger"
	"czsc/internal/market"
)

// Version 标识一次写入后的引擎状态。Engine 区分不同引擎实例，Seq 随每次成功写入递增。
type Version struct {
	Engine uuid.UUID `json:"engine"`
	Seq    uint64    `json:"seq"`
}

func (v Version) String() string { return fmt.Sprintf("%s#%d", v.Engine, v.Seq) }

// UpdateSummary 描述一根 K 线写入后各层的变化。
type UpdateSummary struct {
	Version           Version   `json:"version"`
	Merge             MergeKind `json:"merge"`
	NewFractals       int       `json:"new_fractals"`
	StrokesConfirmed  int       `json:"strokes_confirmed"`
	StrokeOpened      bool      `json:"stroke_opened"`
	StrokeExtended    bool      `json:"stroke_extended"`
	SegmentsConfirmed int       `json:"segments_confirmed"`
}

// Engine 是单写多读的结构识别引擎。Ingest 持写锁完成整根 K 线的全部更新，
// 查询持读锁，因此读者只会看到写入前或写入后的完整状态。
type Engine struct {
	mu     sync.RWMutex
	id     uuid.UUID
	cfg    Config
	symbol string
	seq    uint64

	raw      []market.Candle
	merger   barMerger
	fractals fractalDetector
	strokes  strokeBuilder
	segments segmentBuilder
	// segTail 是冻结线段之后的线段视图，每次笔变化时重算
	segTail []Segment
}

// NewEngine 创建引擎。symbol 为空时由第一根被接受的 K 线确定。
func NewEngine(cfg Config, symbol string) (*Engine, error) {
	cfg = cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		id:       uuid.New(),
		cfg:      cfg,
		symbol:   symbol,
		merger:   barMerger{policy: cfg.Inclusion},
		strokes:  strokeBuilder{minSpan: cfg.MinStrokeSpan},
		segments: segmentBuilder{minStrokes: cfg.MinSegmentStrokes},
	}, nil
}

// Ingest 追加一根原始 K 线。校验失败时不修改任何状态。
func (e *Engine) Ingest(bar market.Candle) (UpdateSummary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.check(bar); err != nil {
		logger.Debugf("czsc %s 拒绝 K 线 id=%d: %v", e.symbol, bar.ID, err)
		return UpdateSummary{}, err
	}
	if e.symbol == "" {
		e.symbol = bar.Symbol
	}
	if bar.Symbol == "" {
		bar.Symbol = e.symbol
	}

	idx := len(e.raw)
	e.raw = append(e.raw, bar)
	sum := UpdateSummary{Merge: e.merger.push(bar, idx)}

	events := e.fractals.update(e.merger.bars, sum.Merge == MergeAppended)
	sum.NewFractals = len(events)
	for _, ev := range events {
		ch := e.strokes.push(ev)
		sum.StrokesConfirmed += ch.confirmed
		sum.StrokeOpened = sum.StrokeOpened || ch.opened
		sum.StrokeExtended = sum.StrokeExtended || ch.extended
		if ch.confirmed > 0 {
			st := e.strokes.confirmed[len(e.strokes.confirmed)-1]
			logger.Debugf("czsc %s 确认笔 #%d %s %s -> %s", e.symbol, len(e.strokes.confirmed)-1, st.Direction, st.Start, st.End)
		}
		if ch.changed() {
			e.refreshSegments(&sum)
		}
	}

	e.seq++
	sum.Version = Version{Engine: e.id, Seq: e.seq}
	return sum, nil
}

func (e *Engine) check(bar market.Candle) error {
	if err := bar.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBar, err)
	}
	if e.symbol != "" && bar.Symbol != "" && bar.Symbol != e.symbol {
		return fmt.Errorf("%w: symbol %q 与引擎 %q 不一致", ErrInvalidBar, bar.Symbol, e.symbol)
	}
	if n := len(e.raw); n > 0 {
		last := e.raw[n-1]
		if bar.ID <= last.ID {
			return fmt.Errorf("%w: id %d <= %d", ErrOutOfOrderBar, bar.ID, last.ID)
		}
		if !bar.Time.After(last.Time) {
			return fmt.Errorf("%w: 时间 %s 不晚于 %s", ErrOutOfOrderBar, bar.Time, last.Time)
		}
	}
	return nil
}

// refreshSegments 用新确认的笔推进线段，并重算包含未确认笔的线段视图。
func (e *Engine) refreshSegments(sum *UpdateSummary) {
	if n := e.segments.advance(e.strokes.confirmed); n > 0 {
		sum.SegmentsConfirmed += n
		seg := e.segments.lastFixed
		logger.Debugf("czsc %s 确认线段 #%d %s 笔[%d,%d]", e.symbol, e.segments.frozen-1, seg.Direction, seg.FirstStroke, seg.LastStroke)
	}
	e.segTail = e.segments.pending(e.strokes.seq())
}

func (e *Engine) ID() uuid.UUID { return e.id }

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) Symbol() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.symbol
}

func (e *Engine) Version() Version {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Version{Engine: e.id, Seq: e.seq}
}

// Bars 返回已接收的原始 K 线。
func (e *Engine) Bars() []market.Candle {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]market.Candle{}, e.raw...)
}

func (e *Engine) MergedBars() []MergedBar {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]MergedBar{}, e.merger.bars...)
}

// Fractals 返回已确认分型，末尾可能附带一个临时分型（Confirmed=false）。
func (e *Engine) Fractals() []Fractal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.fractals.list()
}

// Strokes 返回已确认的笔，最后一笔可能是 Open。
func (e *Engine) Strokes() []Stroke {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.strokes.list()
}

func (e *Engine) Segments() []Segment {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return joinSegments(e.segments.fixed, e.segTail)
}

// Signals 计算最近 window 个元素上的信号，0 表示全部。
func (e *Engine) Signals(window int) ([]Signal, error) {
	return e.Snapshot().Signals(window)
}

// Snapshot 是某个版本下各层序列的只读拷贝。
type Snapshot struct {
	Version    Version         `json:"version"`
	Symbol     string          `json:"symbol"`
	Config     Config          `json:"-"`
	Bars       []market.Candle `json:"-"`
	MergedBars []MergedBar     `json:"merged_bars"`
	Fractals   []Fractal       `json:"fractals"`
	Strokes    []Stroke        `json:"strokes"`
	Segments   []Segment       `json:"segments"`
}

func (s Snapshot) Signals(window int) ([]Signal, error) {
	return DetectSignals(s.Strokes, s.Segments, s.Bars, s.Config.Strength, window)
}

func (s Snapshot) Trend(window int) TrendView {
	return Trend(s.Strokes, window)
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshotLocked()
}

// SnapshotAt 只在 v 仍是当前版本时返回快照。
func (e *Engine) SnapshotAt(v Version) (Snapshot, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if v.Engine != e.id {
		return Snapshot{}, ErrForeignVersion
	}
	if v.Seq != e.seq {
		return Snapshot{}, fmt.Errorf("%w: %d, current %d", ErrStaleVersion, v.Seq, e.seq)
	}
	return e.snapshotLocked(), nil
}

func (e *Engine) snapshotLocked() Snapshot {
	n := len(e.raw)
	return Snapshot{
		Version: Version{Engine: e.id, Seq: e.seq},
		Symbol:  e.symbol,
		Config:  e.cfg,
		// 原始 K 线只追加不修改，限定容量后可以直接共享
		Bars:       e.raw[:n:n],
		MergedBars: append([]MergedBar{}, e.merger.bars...),
		Fractals:   e.fractals.list(),
		Strokes:    e.strokes.list(),
		Segments:   joinSegments(e.segments.fixed, e.segTail),
	}
}

// Replay 依次写入 bars，遇到第一个错误即停止并返回已接受的数量。
func (e *Engine) Replay(bars []market.Candle) (int, error) {
	for i, bar := range bars {
		if _, err := e.Ingest(bar); err != nil {
			return i, err
		}
	}
	return len(bars), nil
}
