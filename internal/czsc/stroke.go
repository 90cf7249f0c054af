package czsc

// strokeState 是笔构建状态机的状态。
type strokeState int

const (
	awaitingStart strokeState = iota
	extending
)

// strokeChange 汇总一次分型提交对笔序列的影响。
type strokeChange struct {
	confirmed int  // 新确认（冻结）的笔数量
	opened    bool // 新开了一笔
	extended  bool // 未确认笔的终点被替换
	anchored  bool // 等待起点时更换了起点分型
}

func (c strokeChange) changed() bool {
	return c.confirmed > 0 || c.opened || c.extended
}

// strokeBuilder 把已确认分型串成方向交替的笔。
// confirmed 只追加；open 是唯一可变的尾部，整体替换后再提交。
type strokeBuilder struct {
	minSpan   int
	state     strokeState
	anchor    Fractal // awaitingStart 时的候选起点
	hasAnchor bool
	confirmed []Stroke
	open      *Stroke
}

func (b *strokeBuilder) push(ev fractalEvent) strokeChange {
	fx := ev.fx
	switch b.state {
	case awaitingStart:
		return b.pushAwaiting(fx)
	default:
		return b.pushExtending(fx)
	}
}

func (b *strokeBuilder) pushAwaiting(fx Fractal) strokeChange {
	if !b.hasAnchor {
		b.anchor, b.hasAnchor = fx, true
		return strokeChange{anchored: true}
	}
	if fx.Kind == b.anchor.Kind {
		if fx.moreExtreme(b.anchor) {
			b.anchor = fx
			return strokeChange{anchored: true}
		}
		return strokeChange{}
	}
	st, ok := b.candidate(b.anchor, fx)
	if !ok {
		return strokeChange{}
	}
	b.open = &st
	b.state = extending
	return strokeChange{opened: true}
}

func (b *strokeBuilder) pushExtending(fx Fractal) strokeChange {
	cur := *b.open
	if fx.Kind == cur.End.Kind {
		if !fx.moreExtreme(cur.End) {
			return strokeChange{}
		}
		next := cur
		next.End = fx
		b.open = &next
		return strokeChange{extended: true}
	}
	st, ok := b.candidate(cur.End, fx)
	if !ok {
		return strokeChange{}
	}
	cur.Open = false
	b.confirmed = append(b.confirmed, cur)
	b.open = &st
	return strokeChange{confirmed: 1, opened: true}
}

// candidate 检查 start→end 能否成笔：类型相反、价格方向一致、跨度足够。
func (b *strokeBuilder) candidate(start, end Fractal) (Stroke, bool) {
	if start.Kind == end.Kind || end.Index <= start.Index {
		return Stroke{}, false
	}
	dir := DirUp
	if start.Kind == Top {
		dir = DirDown
	}
	if dir == DirUp && end.Price <= start.Price {
		return Stroke{}, false
	}
	if dir == DirDown && end.Price >= start.Price {
		return Stroke{}, false
	}
	if end.Index-start.Index-1 < b.minSpan {
		return Stroke{}, false
	}
	return Stroke{Start: start, End: end, Direction: dir, Open: true}, true
}

// seq 返回不拷贝的笔序列视图，只在持有写锁期间使用。
func (b *strokeBuilder) seq() strokeSeq {
	return strokeSeq{confirmed: b.confirmed, open: b.open}
}

// list 返回已确认的笔与（若存在）未确认的最后一笔。
func (b *strokeBuilder) list() []Stroke {
	out := make([]Stroke, 0, len(b.confirmed)+1)
	out = append(out, b.confirmed...)
	if b.open != nil {
		out = append(out, *b.open)
	}
	return out
}
