package config

import "github.com/san-kum/cmbview/internal/param"

// Catalog lists the spectrum models in tab order.
type Catalog []param.Model

func (c Catalog) Get(name string) (param.Model, bool) {
	for _, m := range c {
		if m.Name == name {
			return m, true
		}
	}
	return param.Model{}, false
}

func (c Catalog) Names() []string {
	names := make([]string, len(c))
	for i, m := range c {
		names[i] = m.Name
	}
	return names
}

func def(name string, value, lo, hi, step float64) param.Definition {
	return param.Definition{
		Name:    name,
		Default: value,
		Range:   param.Range[float64]{Min: lo, Max: hi, Step: step},
	}
}

// DefaultCatalog is the built-in model set served by the rendering service.
func DefaultCatalog() Catalog {
	return Catalog{
		{
			Name:  "standard",
			Title: "Standard ΛCDM Model",
		},
		{
			Name:  "hilltop",
			Title: "Hilltop Inflation Model",
			Params: []param.Definition{
				def("amp", 4700, 1000, 10000, 100),
				def("mu", 13.5, 10, 20, 0.1),
				def("v", 1.8, 0.1, 5, 0.1),
				def("p", 3.2, 2, 10, 0.1),
				def("phi", 0.37, 0.1, 1, 0.01),
			},
		},
		{
			Name:  "starobinsky",
			Title: "Starobinsky R² Inflation Model",
			Params: []param.Definition{
				def("amp", 5500, 1000, 10000, 100),
				def("decay", 9000, 5000, 15000, 100),
				def("phase", 4.0, 0, 10, 0.1),
				def("freq", 0.95, 0.1, 2, 0.01),
				def("supp", 0.07, 0.01, 0.2, 0.01),
			},
		},
	}
}
