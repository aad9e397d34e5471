package browser

// Selection operations. All run with the Browser lock held and notify
// synchronously. Hidden paths are ignored: selection can only ever contain
// visible rows.

// toggle flips an item's membership. An optional force value selects (true)
// or deselects (false) regardless of the current state. The item becomes
// both the current item and the range baseline.
func (p *pane) toggle(path string, n Notifier, force ...bool) {
	if _, visible := p.index[path]; !visible {
		return
	}

	want := !p.sel[path]
	if len(force) > 0 {
		want = force[0]
	}

	if want {
		p.sel[path] = true
	} else {
		delete(p.sel, path)
	}
	p.current = path
	p.anchor = path

	n.SelectionChanged(p.id, p.selectedInOrder())
}

// selectSingle makes the item the only selected one.
func (p *pane) selectSingle(path string, n Notifier) {
	if _, visible := p.index[path]; !visible {
		return
	}

	for k := range p.sel {
		delete(p.sel, k)
	}
	p.sel[path] = true
	p.current = path
	p.anchor = path

	n.SelectionChanged(p.id, p.selectedInOrder())
}

// selectRange selects every row between the anchor and the target,
// inclusive, working over visible indices. When no anchor exists the target
// itself becomes the anchor. Without additive the range replaces the
// selection; with it, the range is added.
func (p *pane) selectRange(target string, additive bool, n Notifier) {
	ti, ok := p.index[target]
	if !ok {
		return
	}

	ai, haveAnchor := p.index[p.anchor]
	if p.anchor == "" || !haveAnchor {
		p.anchor = target
		ai = ti
	}

	lo, hi := ai, ti
	if lo > hi {
		lo, hi = hi, lo
	}

	if !additive {
		for k := range p.sel {
			delete(p.sel, k)
		}
	}
	for i := lo; i <= hi; i++ {
		p.sel[p.rows[i].Path] = true
	}
	p.current = target

	n.SelectionChanged(p.id, p.selectedInOrder())
}

// selectAll selects every visible row and anchors at the first one.
func (p *pane) selectAll(n Notifier) {
	if len(p.rows) == 0 {
		return
	}

	for _, r := range p.rows {
		p.sel[r.Path] = true
	}
	p.anchor = p.rows[0].Path

	n.SelectionChanged(p.id, p.selectedInOrder())
}

// clear empties the selection. The current item becomes the range baseline
// for the next range selection.
func (p *pane) clear(n Notifier) {
	if len(p.sel) == 0 {
		return
	}

	for k := range p.sel {
		delete(p.sel, k)
	}
	p.anchor = p.current

	n.SelectionChanged(p.id, p.selectedInOrder())
}
