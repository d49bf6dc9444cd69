package param

// Definition declares one parameter of a model.
type Definition struct {
	Name    string
	Default float64
	Range   Range[float64]
}

// Model is a spectrum model and its parameters in declaration order. A model
// with no parameters is valid.
type Model struct {
	Name   string
	Title  string
	Params []Definition
}

func (m Model) Defaults() Set {
	entries := make([]Entry[float64], len(m.Params))
	for i, p := range m.Params {
		entries[i] = Entry[float64]{Name: p.Name, Value: p.Default}
	}
	return NewSet(entries...)
}

func (m Model) Ranges() map[string]Range[float64] {
	ranges := make(map[string]Range[float64], len(m.Params))
	for _, p := range m.Params {
		ranges[p.Name] = p.Range
	}
	return ranges
}

func (m Model) Parameterless() bool { return len(m.Params) == 0 }
