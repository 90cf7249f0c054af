package czsc

// fractalEvent 是一次分型提交：新增，或以更极端的同类分型替换序列尾部。
type fractalEvent struct {
	fx       Fractal
	replaced bool
}

// fractalDetector 只检查最后三根 MergedBar。
// confirmed 只追加（尾部可被同类更极端分型替换）；provisional 每次整体重算。
type fractalDetector struct {
	confirmed   []Fractal
	provisional *Fractal
}

// checkFractal 判断 bars[c] 是否构成分型。两侧持平仍然成立。
func checkFractal(bars []MergedBar, c int) (Fractal, bool) {
	if c < 1 || c+1 >= len(bars) {
		return Fractal{}, false
	}
	l, m, r := bars[c-1], bars[c], bars[c+1]
	fx := Fractal{Index: c, Time: m.Time, High: m.High, Low: m.Low, Raw: m.PeakRaw}
	switch {
	case m.High >= l.High && m.High >= r.High && m.Low >= l.Low && m.Low >= r.Low:
		fx.Kind = Top
		fx.Price = m.High
	case m.Low <= l.Low && m.Low <= r.Low && m.High <= l.High && m.High <= r.High:
		fx.Kind = Bottom
		fx.Price = m.Low
	default:
		return Fractal{}, false
	}
	return fx, true
}

// update 在 MergedBar 序列变化后调用。appended 表示新追加了一根，
// 此时倒数第三根的右侧邻居已冻结，其分型可以确认。
func (d *fractalDetector) update(bars []MergedBar, appended bool) []fractalEvent {
	var events []fractalEvent
	n := len(bars)
	if appended && n >= 4 {
		if fx, ok := checkFractal(bars, n-3); ok {
			fx.Confirmed = true
			if ev, ok := d.commit(fx); ok {
				events = append(events, ev)
			}
		}
	}
	d.provisional = nil
	if fx, ok := checkFractal(bars, n-2); ok {
		d.provisional = &fx
	}
	return events
}

// commit 保证同类分型不相邻：保留更极端者，价格相同取较晚者。
func (d *fractalDetector) commit(fx Fractal) (fractalEvent, bool) {
	n := len(d.confirmed)
	if n > 0 && d.confirmed[n-1].Kind == fx.Kind {
		if !fx.moreExtreme(d.confirmed[n-1]) {
			return fractalEvent{}, false
		}
		d.confirmed[n-1] = fx
		return fractalEvent{fx: fx, replaced: true}, true
	}
	d.confirmed = append(d.confirmed, fx)
	return fractalEvent{fx: fx}, true
}

// list 返回已确认分型加上可能存在的临时分型（拷贝）。
func (d *fractalDetector) list() []Fractal {
	out := make([]Fractal, 0, len(d.confirmed)+1)
	out = append(out, d.confirmed...)
	if p := d.provisional; p != nil {
		out = append(out, *p)
	}
	return out
}
