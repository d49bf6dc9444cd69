// Package layout arranges a model's parameters into a two-column bank of
// slider controls.
package layout

import (
	"fmt"

	"github.com/san-kum/cmbview/internal/param"
)

// Control describes one slider. It is rebuilt on every layout pass.
type Control[V param.Number] struct {
	Name  string
	Value V
	Range param.Range[V]
}

type Columns[V param.Number] struct {
	Left  []Control[V]
	Right []Control[V]
}

// Layout splits entries at ceil(n/2): the first half goes left, the rest
// right, both in entry order. Every entry must have a range; a missing one is
// a configuration defect and panics.
func Layout[V param.Number](entries []param.Entry[V], ranges map[string]param.Range[V]) Columns[V] {
	n := len(entries)
	mid := (n + 1) / 2

	controls := make([]Control[V], n)
	for i, e := range entries {
		r, ok := ranges[e.Name]
		if !ok {
			panic(fmt.Sprintf("layout: no range for parameter %q", e.Name))
		}
		controls[i] = Control[V]{Name: e.Name, Value: e.Value, Range: r}
	}

	return Columns[V]{
		Left:  controls[:mid:mid],
		Right: controls[mid:],
	}
}

func ForSet(set param.Set, ranges map[string]param.Range[float64]) Columns[float64] {
	return Layout(set.Entries(), ranges)
}

func (c Columns[V]) Len() int { return len(c.Left) + len(c.Right) }

// Rows is the height of the bank. The left column is never shorter.
func (c Columns[V]) Rows() int { return len(c.Left) }

func (c Columns[V]) Flatten() []Control[V] {
	out := make([]Control[V], 0, c.Len())
	out = append(out, c.Left...)
	return append(out, c.Right...)
}

// At returns the control at flat index i (left column first).
func (c Columns[V]) At(i int) (Control[V], bool) {
	switch {
	case i < 0 || i >= c.Len():
		return Control[V]{}, false
	case i < len(c.Left):
		return c.Left[i], true
	default:
		return c.Right[i-len(c.Left)], true
	}
}

// Locate maps a flat index to its (column, row) position.
func (c Columns[V]) Locate(i int) (col, row int) {
	if i < len(c.Left) {
		return 0, i
	}
	return 1, i - len(c.Left)
}

// Index is the inverse of Locate. It returns -1 for an empty cell.
func (c Columns[V]) Index(col, row int) int {
	switch col {
	case 0:
		if row >= 0 && row < len(c.Left) {
			return row
		}
	case 1:
		if row >= 0 && row < len(c.Right) {
			return len(c.Left) + row
		}
	}
	return -1
}
