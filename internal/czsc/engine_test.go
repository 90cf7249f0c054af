package czsc

import (
	"errors"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"czsc/internal/market"
)

func TestNewEngineConfig(t *testing.T) {
	e, err := NewEngine(Config{}, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), e.Config())

	_, err = NewEngine(Config{MinSegmentStrokes: 2}, "")
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewEngine(Config{MinStrokeSpan: -1}, "")
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewEngine(Config{Inclusion: "sideways"}, "")
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewEngine(Config{Strength: "volume"}, "")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestInsufficientHistoryIsEmpty(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	ingestAll(t, e, zigzag(10, 10.5))
	assert.Empty(t, e.Fractals())
	assert.Empty(t, e.Strokes())
	assert.Empty(t, e.Segments())
	signals, err := e.Signals(0)
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestRejectInvertedBar(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	bars := zigzag(12, 9, 11, 10.5, 11.5, 10)
	ingestAll(t, e, bars[:24])
	before := e.Snapshot()

	bad := hl(24, 9, 10)
	_, err := e.Ingest(bad)
	require.ErrorIs(t, err, ErrInvalidBar)

	after := e.Snapshot()
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, before.Fractals, after.Fractals)
	assert.Equal(t, before.Strokes, after.Strokes)
	assert.Equal(t, before.MergedBars, after.MergedBars)
	assert.Len(t, e.Bars(), 24)

	// 被拒绝后仍可继续写入同一位置
	_, err = e.Ingest(bars[24])
	require.NoError(t, err)
}

func TestRejectInvalidFields(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	cases := map[string]func(b *market.Candle){
		"zero price":      func(b *market.Candle) { b.Open = 0 },
		"negative volume": func(b *market.Candle) { b.Volume = -1 },
		"negative low":    func(b *market.Candle) { b.Low = -1 },
	}
	for name, mutate := range cases {
		b := hl(0, 10, 9)
		mutate(&b)
		_, err := e.Ingest(b)
		assert.ErrorIs(t, err, ErrInvalidBar, name)
	}
	assert.Empty(t, e.Bars())
}

func TestRejectOutOfOrderBar(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	ingestAll(t, e, zigzag(10, 11))
	n := len(e.Bars())

	dup := hl(n-1, 12, 11)
	_, err := e.Ingest(dup)
	assert.ErrorIs(t, err, ErrOutOfOrderBar, "duplicate id")

	earlier := hl(n, 12, 11)
	earlier.Time = e.Bars()[n-1].Time
	_, err = e.Ingest(earlier)
	assert.ErrorIs(t, err, ErrOutOfOrderBar, "same timestamp")

	assert.Len(t, e.Bars(), n)
	_, err = e.Ingest(hl(n, 12, 11))
	require.NoError(t, err)
}

func TestSymbolPinnedByFirstBar(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	a := hl(0, 10, 9)
	a.Symbol = "AAA"
	_, err := e.Ingest(a)
	require.NoError(t, err)
	assert.Equal(t, "AAA", e.Symbol())

	b := hl(1, 11, 10)
	b.Symbol = "BBB"
	_, err = e.Ingest(b)
	assert.ErrorIs(t, err, ErrInvalidBar)

	c := hl(1, 11, 10)
	c.Symbol = ""
	_, err = e.Ingest(c)
	require.NoError(t, err)
	assert.Equal(t, "AAA", e.Bars()[1].Symbol)
}

func TestVersionTokens(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	other := newTestEngine(t, DefaultConfig())
	bars := zigzag(12, 9, 11)

	sum, err := e.Ingest(bars[0])
	require.NoError(t, err)
	assert.Equal(t, uint64(1), sum.Version.Seq)
	assert.Equal(t, e.ID(), sum.Version.Engine)
	assert.Equal(t, sum.Version, e.Version())

	snap, err := e.SnapshotAt(sum.Version)
	require.NoError(t, err)
	assert.Len(t, snap.Bars, 1)

	next, err := e.Ingest(bars[1])
	require.NoError(t, err)
	assert.Equal(t, uint64(2), next.Version.Seq)

	_, err = e.SnapshotAt(sum.Version)
	assert.ErrorIs(t, err, ErrStaleVersion)
	_, err = other.SnapshotAt(next.Version)
	assert.ErrorIs(t, err, ErrForeignVersion)

	// 旧快照不受后续写入影响
	assert.Len(t, snap.Bars, 1)
	_, err = e.Ingest(bars[2])
	require.NoError(t, err)
	assert.Len(t, snap.Bars, 1)
}

func TestDeterministicReplay(t *testing.T) {
	bars := randomWalk(42, 1200)
	a := newTestEngine(t, Config{MinStrokeSpan: 2})
	b := newTestEngine(t, Config{MinStrokeSpan: 2})
	n, err := a.Replay(bars)
	require.NoError(t, err)
	assert.Equal(t, len(bars), n)
	ingestAll(t, b, bars)

	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, a.MergedBars(), b.MergedBars())
	assert.Equal(t, a.Fractals(), b.Fractals())
	assert.Equal(t, a.Strokes(), b.Strokes())
	assert.Equal(t, a.Segments(), b.Segments())
	sa, err := a.Signals(0)
	require.NoError(t, err)
	sb, err := b.Signals(0)
	require.NoError(t, err)
	assert.Equal(t, sa, sb)
}

func TestReplayStopsAtFirstError(t *testing.T) {
	e := newTestEngine(t, DefaultConfig())
	bars := zigzag(10, 11)
	bars[2].High, bars[2].Low = 1, 2
	n, err := e.Replay(bars)
	assert.Equal(t, 2, n)
	assert.True(t, errors.Is(err, ErrInvalidBar))
}

func TestConcurrentReadersSeeConsistentState(t *testing.T) {
	e := newTestEngine(t, Config{MinStrokeSpan: 1})
	bars := randomWalk(7, 1500)

	var wg sync.WaitGroup
	done := make(chan struct{})
	errs := make(chan string, 16)
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				snap := e.Snapshot()
				for i := 1; i < len(snap.Strokes); i++ {
					if snap.Strokes[i-1].Direction == snap.Strokes[i].Direction {
						select {
						case errs <- "adjacent strokes share direction":
						default:
						}
						return
					}
				}
				if len(snap.Bars) != int(snap.Version.Seq) {
					select {
					case errs <- "snapshot bars do not match version":
					default:
					}
					return
				}
				if _, err := snap.Signals(10); err != nil {
					select {
					case errs <- err.Error():
					default:
					}
					return
				}
			}
		}()
	}
	ingestAll(t, e, bars)
	close(done)
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Error(msg)
	}
	assert.Equal(t, uint64(len(bars)), e.Version().Seq)
}

// 每根 K 线的处理只触及尾部结构：历史变长后，每批 K 线分配的内存不应随之增长。
func TestIngestAllocationsIndependentOfHistory(t *testing.T) {
	if testing.Short() {
		t.Skip("long history")
	}
	const chunk = 20000
	const chunks = 4
	bars := randomWalk(11, chunks*chunk)
	e := newTestEngine(t, Config{MinStrokeSpan: 1})

	allocated := make([]uint64, chunks)
	var ms runtime.MemStats
	for c := 0; c < chunks; c++ {
		runtime.ReadMemStats(&ms)
		before := ms.TotalAlloc
		for _, b := range bars[c*chunk : (c+1)*chunk] {
			if _, err := e.Ingest(b); err != nil {
				t.Fatalf("ingest %d: %v", b.ID, err)
			}
		}
		runtime.ReadMemStats(&ms)
		allocated[c] = ms.TotalAlloc - before
	}

	require.Greater(t, len(e.Strokes()), 2000)
	require.NotEmpty(t, e.Segments())
	base := max(allocated[0], allocated[1])
	assert.Less(t, allocated[chunks-1], 3*base, "allocations per chunk: %v", allocated)
}

func TestSegmentsJoinFrozenPrefixAndTail(t *testing.T) {
	e := newTestEngine(t, Config{MinStrokeSpan: 1})
	ingestAll(t, e, randomWalk(3, 3000))
	segs := e.Segments()
	require.Len(t, segs, e.segments.frozen+len(e.segTail))
	for i, seg := range segs {
		assert.Equal(t, i < e.segments.frozen, seg.Confirmed, "segment %d", i)
	}

	// 副本重算不能改动冻结前缀
	fixed := append([]Segment(nil), e.segments.fixed...)
	e.segments.pending(e.strokes.seq())
	assert.Equal(t, fixed, e.segments.fixed)
}
