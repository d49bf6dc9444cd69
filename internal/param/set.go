package param

import (
	"fmt"
	"strconv"
	"strings"
)

// Number is the set of numeric kinds a parameter collection may hold.
type Number interface {
	~int | ~int32 | ~int64 | ~float32 | ~float64
}

type Entry[V Number] struct {
	Name  string
	Value V
}

// Range bounds a parameter. Min < Max and Step > 0 for a valid range.
type Range[V Number] struct {
	Min  V `yaml:"min" json:"min"`
	Max  V `yaml:"max" json:"max"`
	Step V `yaml:"step" json:"step"`
}

func (r Range[V]) Valid() bool {
	return r.Min < r.Max && r.Step > 0
}

func (r Range[V]) Contains(v V) bool {
	return v >= r.Min && v <= r.Max
}

func (r Range[V]) String() string {
	return fmt.Sprintf("[%v, %v] step %v", r.Min, r.Max, r.Step)
}

// Set is an ordered vector of named values. The zero Set is empty and
// usable. Sets are never mutated in place; With returns a modified copy.
type Set struct {
	entries []Entry[float64]
}

// NewSet builds a Set in the given order. It panics on a duplicate name,
// which can only come from a malformed model definition.
func NewSet(entries ...Entry[float64]) Set {
	seen := make(map[string]struct{}, len(entries))
	out := make([]Entry[float64], len(entries))
	for i, e := range entries {
		if _, dup := seen[e.Name]; dup {
			panic(fmt.Sprintf("param: duplicate parameter %q", e.Name))
		}
		seen[e.Name] = struct{}{}
		out[i] = e
	}
	return Set{entries: out}
}

func (s Set) Len() int { return len(s.entries) }

func (s Set) Names() []string {
	names := make([]string, len(s.entries))
	for i, e := range s.entries {
		names[i] = e.Name
	}
	return names
}

// Entries returns a copy of the entries in declaration order.
func (s Set) Entries() []Entry[float64] {
	out := make([]Entry[float64], len(s.entries))
	copy(out, s.entries)
	return out
}

func (s Set) Get(name string) (float64, bool) {
	if i := s.index(name); i >= 0 {
		return s.entries[i].Value, true
	}
	return 0, false
}

func (s Set) Has(name string) bool { return s.index(name) >= 0 }

// With returns a copy of s with name bound to value. The second result is
// false, and s is returned unchanged, when name is not part of the set.
func (s Set) With(name string, value float64) (Set, bool) {
	i := s.index(name)
	if i < 0 {
		return s, false
	}
	c := s.Clone()
	c.entries[i].Value = value
	return c, true
}

func (s Set) Clone() Set {
	return Set{entries: s.Entries()}
}

// SameShape reports whether o has exactly the names of s in the same order.
func (s Set) SameShape(o Set) bool {
	if len(s.entries) != len(o.entries) {
		return false
	}
	for i := range s.entries {
		if s.entries[i].Name != o.entries[i].Name {
			return false
		}
	}
	return true
}

func (s Set) Equal(o Set) bool {
	if !s.SameShape(o) {
		return false
	}
	for i := range s.entries {
		if s.entries[i].Value != o.entries[i].Value {
			return false
		}
	}
	return true
}

func (s Set) String() string {
	parts := make([]string, len(s.entries))
	for i, e := range s.entries {
		parts[i] = e.Name + "=" + FormatValue(e.Value)
	}
	return strings.Join(parts, " ")
}

func (s Set) index(name string) int {
	for i, e := range s.entries {
		if e.Name == name {
			return i
		}
	}
	return -1
}

// FormatValue renders v in its shortest decimal form: 15 -> "15",
// 0.37 -> "0.37".
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
