// Package view tracks which model view is on screen.
package view

import "fmt"

type Kind int

const (
	Standard Kind = iota
	Hilltop
	Starobinsky
)

// Default is the view shown at startup.
const Default = Starobinsky

var kinds = []Kind{Standard, Hilltop, Starobinsky}

var info = map[Kind]struct {
	model, label string
}{
	Standard:    {"standard", "Standard ΛCDM"},
	Hilltop:     {"hilltop", "Hilltop Inflation"},
	Starobinsky: {"starobinsky", "Starobinsky R² Inflation"},
}

func All() []Kind {
	out := make([]Kind, len(kinds))
	copy(out, kinds)
	return out
}

// Model is the rendering service model name for k.
func (k Kind) Model() string { return info[k].model }

// Label is the tab caption for k.
func (k Kind) Label() string { return info[k].label }

func (k Kind) String() string {
	if m := k.Model(); m != "" {
		return m
	}
	return fmt.Sprintf("view(%d)", int(k))
}

func (k Kind) Valid() bool { return k >= Standard && k <= Starobinsky }

// Parse resolves a model name or a tab index ("0".."2").
func Parse(s string) (Kind, error) {
	for _, k := range kinds {
		if k.Model() == s || fmt.Sprint(int(k)) == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("view: unknown view %q", s)
}

type Selector struct {
	active Kind
}

func NewSelector() *Selector {
	return &Selector{active: Default}
}

func (s *Selector) Active() Kind { return s.active }

// Select switches to k. Invalid kinds are ignored.
func (s *Selector) Select(k Kind) bool {
	if !k.Valid() {
		return false
	}
	s.active = k
	return true
}

func (s *Selector) Next() Kind {
	s.active = kinds[(int(s.active)+1)%len(kinds)]
	return s.active
}

func (s *Selector) Prev() Kind {
	s.active = kinds[(int(s.active)+len(kinds)-1)%len(kinds)]
	return s.active
}
