package browser

import "github.com/Vincenzoferrara/metadata-remote/pkg/paths"

// pane holds the visible rows and selection state of one view. Rows are
// replaced wholesale by the synchronizer; selection survives row changes
// through revalidation.
type pane struct {
	id      PaneID
	rows    []Row
	index   map[string]int // path -> visible index
	sel     map[string]bool
	anchor  string // range baseline
	current string // last interacted item
}

func newPane(id PaneID) pane {
	return pane{
		id:    id,
		index: make(map[string]int),
		sel:   make(map[string]bool),
	}
}

// setRows replaces the visible rows and revalidates the selection against
// them. Selected paths that are no longer visible are dropped; if that
// empties the selection, the current item becomes the new range baseline.
func (p *pane) setRows(rows []Row, n Notifier) {
	p.rows = rows
	p.index = make(map[string]int, len(rows))
	for i, r := range rows {
		p.index[r.Path] = i
	}

	changed := false
	for path := range p.sel {
		if _, ok := p.index[path]; !ok {
			delete(p.sel, path)
			changed = true
		}
	}
	if _, ok := p.index[p.current]; !ok {
		p.current = ""
	}
	if _, ok := p.index[p.anchor]; !ok {
		p.anchor = ""
	}
	if len(p.sel) == 0 {
		p.anchor = p.current
	}

	if changed {
		n.SelectionChanged(p.id, p.selectedInOrder())
	}
}

// visibleIndex returns the row index of a path, or -1 if hidden.
func (p *pane) visibleIndex(path string) int {
	if i, ok := p.index[path]; ok {
		return i
	}
	return -1
}

// selectedInOrder returns the selected paths sorted by visible index.
func (p *pane) selectedInOrder() []string {
	out := make([]string, 0, len(p.sel))
	for _, r := range p.rows {
		if p.sel[r.Path] {
			out = append(out, r.Path)
		}
	}
	return out
}

func (p *pane) isSelected(path string) bool {
	return p.sel[path]
}

// rewritePath renames a single selection reference after a rename or move.
func (p *pane) rewritePath(oldPath, newPath string) {
	if p.sel[oldPath] {
		delete(p.sel, oldPath)
		p.sel[newPath] = true
	}
	if p.anchor == oldPath {
		p.anchor = newPath
	}
	if p.current == oldPath {
		p.current = newPath
	}
}

// rewritePrefix rewrites every selection reference at or under oldPrefix.
func (p *pane) rewritePrefix(oldPrefix, newPrefix string) {
	sel := make(map[string]bool, len(p.sel))
	for k := range p.sel {
		sel[paths.Rewrite(k, oldPrefix, newPrefix)] = true
	}
	p.sel = sel
	p.anchor = paths.Rewrite(p.anchor, oldPrefix, newPrefix)
	p.current = paths.Rewrite(p.current, oldPrefix, newPrefix)
}
