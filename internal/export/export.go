package export

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/san-kum/cmbview/internal/artifact"
	"github.com/san-kum/cmbview/internal/param"
)

type Param struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Sidecar describes the request that produced an exported image.
type Sidecar struct {
	Model       string    `json:"model"`
	URL         string    `json:"url"`
	Generation  uint64    `json:"generation"`
	ContentType string    `json:"content_type"`
	Bytes       int       `json:"bytes"`
	Fetched     time.Time `json:"fetched"`
	Params      []Param   `json:"params"`
}

func SidecarPath(path string) string { return path + ".json" }

func NewSidecar(res *artifact.Resource, set param.Set, url string) Sidecar {
	sc := Sidecar{
		Model:       res.Model,
		URL:         url,
		Generation:  res.Generation,
		ContentType: res.ContentType,
		Bytes:       res.Size,
		Fetched:     res.Fetched.UTC(),
		Params:      make([]Param, 0, set.Len()),
	}
	for _, e := range set.Entries() {
		sc.Params = append(sc.Params, Param{Name: e.Name, Value: e.Value})
	}
	return sc
}

// Image copies the resource's bytes to path and writes the sidecar next to
// it. The resource is left untouched.
func Image(path string, res *artifact.Resource, set param.Set, url string) error {
	data, err := res.Bytes()
	if err != nil {
		return fmt.Errorf("export: read %s: %w", res, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("export: write image: %w", err)
	}
	return WriteSidecar(SidecarPath(path), NewSidecar(res, set, url))
}

func WriteSidecar(path string, sc Sidecar) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: write sidecar: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(sc)
}

func LoadSidecar(path string) (Sidecar, error) {
	var sc Sidecar
	data, err := os.ReadFile(path)
	if err != nil {
		return sc, err
	}
	if err := json.Unmarshal(data, &sc); err != nil {
		return sc, fmt.Errorf("export: decode sidecar: %w", err)
	}
	return sc, nil
}

// Set rebuilds the parameter set recorded in the sidecar.
func (sc Sidecar) Set() param.Set {
	entries := make([]param.Entry[float64], len(sc.Params))
	for i, p := range sc.Params {
		entries[i] = param.Entry[float64]{Name: p.Name, Value: p.Value}
	}
	return param.NewSet(entries...)
}
