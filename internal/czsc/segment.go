package czsc

// featElem 是特征序列元素：与线段方向相反的笔的区间。
type featElem struct {
	high, low float64
}

// segmentCursor 是正在生长、尚未被破坏的线段。
// peak 是同向笔中终点最极端的一笔；feats 只包含 peak 之后的反向笔。
type segmentCursor struct {
	active bool
	start  int
	peak   int
	feats  []featElem
}

func (c segmentCursor) length() int { return c.peak - c.start + 1 }

// strokeSeq 是已确认笔加上可能存在的未确认笔，按下标访问而不拷贝。
type strokeSeq struct {
	confirmed []Stroke
	open      *Stroke
}

func (s strokeSeq) len() int {
	if s.open != nil {
		return len(s.confirmed) + 1
	}
	return len(s.confirmed)
}

func (s strokeSeq) at(i int) Stroke {
	if i < len(s.confirmed) {
		return s.confirmed[i]
	}
	return *s.open
}

// segmentBuilder 按顺序消费笔，用特征序列判断线段破坏。
// fixed 已冻结、只追加；tail 是已完成但未冻结的线段，在后继线段成形前可被回退延伸。
// 每次只重算 tail 与游标，代价与历史长度无关。
type segmentBuilder struct {
	minStrokes int
	fixed      []Segment
	tail       []Segment
	// frozen 是冻结线段总数，lastFixed 是其中最后一个（视图副本不持有 fixed）
	frozen    int
	lastFixed Segment
	cur       segmentCursor
	next      int
}

// beyond 判断价格 p 是否在 dir 方向上达到或超过 ref。
func beyond(dir Direction, p, ref float64) bool {
	if dir == DirUp {
		return p >= ref
	}
	return p <= ref
}

// advance 消费 strokes[b.next:]，返回新冻结的线段数量。
func (b *segmentBuilder) advance(strokes []Stroke) int {
	return b.run(strokeSeq{confirmed: strokes})
}

func (b *segmentBuilder) run(strokes strokeSeq) int {
	before := b.frozen
	for b.next < strokes.len() {
		i := b.next
		b.next++
		if !b.cur.active {
			b.cur = segmentCursor{active: true, start: i, peak: i}
			continue
		}
		st := strokes.at(i)
		dir := strokes.at(b.cur.start).Direction
		if st.Direction == dir {
			if beyond(dir, st.End.Price, strokes.at(b.cur.peak).End.Price) {
				b.cur.peak = i
				b.cur.feats = b.cur.feats[:0]
				b.freeze()
			}
			continue
		}
		b.feature(strokes, i, dir)
	}
	return b.frozen - before
}

// feature 处理一根反向笔：越过线段起点或特征序列出现转折都视为破坏。
// 转折只要求新元素的低点（向下线段为高点）越过前一元素，两者区间允许重叠。
func (b *segmentBuilder) feature(strokes strokeSeq, i int, dir Direction) {
	st := strokes.at(i)
	el := featElem{high: st.High(), low: st.Low()}
	origin := strokes.at(b.cur.start).Start.Price
	if (dir == DirUp && st.End.Price < origin) || (dir == DirDown && st.End.Price > origin) {
		b.broken(strokes, i, el, true)
		return
	}
	n := len(b.cur.feats)
	if n == 0 {
		b.cur.feats = append(b.cur.feats, el)
		return
	}
	last := b.cur.feats[n-1]
	switch {
	case included(last.high, last.low, el.high, el.low):
		b.cur.feats[n-1] = mergeFeat(last, el, dir)
	case dir == DirUp && el.low < last.low, dir == DirDown && el.high > last.high:
		b.broken(strokes, i, el, false)
	default:
		b.cur.feats = append(b.cur.feats, el)
	}
}

// mergeFeat 按线段方向合并两个包含的特征元素。
func mergeFeat(a, b featElem, dir Direction) featElem {
	if dir == DirUp {
		return featElem{high: maxFloat(a.high, b.high), low: maxFloat(a.low, b.low)}
	}
	return featElem{high: minFloat(a.high, b.high), low: minFloat(a.low, b.low)}
}

func (b *segmentBuilder) broken(strokes strokeSeq, i int, el featElem, invalidated bool) {
	c := b.cur
	if c.length() >= b.minStrokes {
		b.commit(strokes, c.start, c.peak)
		b.cur = segmentCursor{}
		b.next = c.peak + 1
		return
	}
	last, ok := b.last()
	if !ok || last.LastStroke+1 != c.start {
		// 还没有任何线段：放弃当前起点，从下一笔重新开始
		b.cur = segmentCursor{}
		b.next = c.start + 1
		return
	}
	if invalidated && len(b.tail) > 0 {
		// 反向线段未成形，价格已越过前一线段终点：前一线段延伸到 i
		b.reopen(i)
		return
	}
	b.cur.feats = append(b.cur.feats[:0], el)
}

// last 返回最后一个线段，无论是否冻结。
func (b *segmentBuilder) last() (Segment, bool) {
	if n := len(b.tail); n > 0 {
		return b.tail[n-1], true
	}
	if b.frozen > 0 {
		return b.lastFixed, true
	}
	return Segment{}, false
}

// reopen 撤销最后一个未冻结的线段，并以 strokes[i] 作为它新的终点继续生长。
func (b *segmentBuilder) reopen(i int) {
	n := len(b.tail)
	prev := b.tail[n-1]
	b.tail = b.tail[:n-1]
	b.cur = segmentCursor{active: true, start: prev.FirstStroke, peak: i}
	b.next = i + 1
}

func (b *segmentBuilder) commit(strokes strokeSeq, start, end int) {
	b.freezeTail()
	b.tail = append(b.tail, Segment{
		Start:       strokes.at(start).Start,
		End:         strokes.at(end).End,
		Direction:   strokes.at(start).Direction,
		FirstStroke: start,
		LastStroke:  end,
	})
}

// freeze 在紧随其后的线段达到最小笔数时冻结前一线段。
func (b *segmentBuilder) freeze() {
	if len(b.tail) > 0 && b.cur.length() >= b.minStrokes {
		b.freezeTail()
	}
}

func (b *segmentBuilder) freezeTail() {
	for _, seg := range b.tail {
		seg.Confirmed = true
		b.fixed = append(b.fixed, seg)
		b.lastFixed = seg
	}
	b.frozen += len(b.tail)
	b.tail = b.tail[:0]
}

// pending 在当前状态的副本上把包含未确认笔在内的序列推进一遍，
// 返回 fixed 之后的全部线段（均未确认）；末尾正在生长的线段达到最小笔数时也会列出。
func (b *segmentBuilder) pending(strokes strokeSeq) []Segment {
	v := *b
	v.fixed = nil
	v.tail = append([]Segment(nil), b.tail...)
	v.cur.feats = append([]featElem(nil), b.cur.feats...)
	v.run(strokes)

	out := make([]Segment, 0, len(v.fixed)+len(v.tail)+1)
	for _, seg := range v.fixed {
		seg.Confirmed = false
		out = append(out, seg)
	}
	out = append(out, v.tail...)
	if c := v.cur; c.active && c.length() >= v.minStrokes {
		out = append(out, Segment{
			Start:       strokes.at(c.start).Start,
			End:         strokes.at(c.peak).End,
			Direction:   strokes.at(c.start).Direction,
			FirstStroke: c.start,
			LastStroke:  c.peak,
		})
	}
	return out
}

// view 返回冻结线段与 pending 拼接后的完整列表。
func (b *segmentBuilder) view(all []Stroke) []Segment {
	return joinSegments(b.fixed, b.pending(strokeSeq{confirmed: all}))
}

func joinSegments(fixed, tail []Segment) []Segment {
	out := make([]Segment, 0, len(fixed)+len(tail))
	out = append(out, fixed...)
	return append(out, tail...)
}
