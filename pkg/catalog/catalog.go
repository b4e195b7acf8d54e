// Package catalog holds the supported-model catalog consulted by generate
// and list-models.
package catalog

import (
	_ "embed"
	"sort"
	"sync"

	"github.com/agnivade/levenshtein"
	"gopkg.in/yaml.v3"

	cnserrors "github.com/NVIDIA/dgxc-autotune/pkg/errors"
)

var (
	//go:embed data/models-v1.yaml
	catalogData []byte

	storeOnce   sync.Once
	cachedStore *Store
	cachedErr   error
)

// Model is one supported pretraining model.
type Model struct {
	Name    string  `json:"name" yaml:"name"`
	ParamsB float64 `json:"paramsB" yaml:"paramsB"`
}

// Store holds the supported-model entries.
type Store struct {
	Models []Model `json:"models" yaml:"models"`
}

// loadStore loads and caches the catalog from embedded data.
// Because the data is embedded at build time, it is safe (and simpler) to
// parse it once and reuse the in-memory representation for the lifetime of
// the process.
func loadStore() (*Store, error) {
	storeOnce.Do(func() {
		var store Store
		if err := yaml.Unmarshal(catalogData, &store); err != nil {
			cachedErr = err
			return
		}
		sort.Slice(store.Models, func(i, j int) bool {
			return store.Models[i].Name < store.Models[j].Name
		})
		cachedStore = &store
	})

	if cachedErr != nil {
		return nil, cachedErr
	}
	if cachedStore == nil {
		return nil, cnserrors.New(cnserrors.ErrCodeInternal, "model catalog not initialized")
	}
	return cachedStore, nil
}

// Models returns all supported models, sorted by name.
func Models() ([]Model, error) {
	store, err := loadStore()
	if err != nil {
		return nil, err
	}
	return store.Models, nil
}

// Names returns the sorted supported model names.
func Names() ([]string, error) {
	models, err := Models()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(models))
	for i, m := range models {
		names[i] = m.Name
	}
	return names, nil
}

// Lookup returns the catalog entry for name.
func Lookup(name string) (Model, bool) {
	models, err := Models()
	if err != nil {
		return Model{}, false
	}
	for _, m := range models {
		if m.Name == name {
			return m, true
		}
	}
	return Model{}, false
}

// Validate rejects model names not present in the catalog. When a close
// match exists, the error suggests it.
func Validate(name string) error {
	if _, ok := Lookup(name); ok {
		return nil
	}
	if suggestion := Suggest(name); suggestion != "" {
		return cnserrors.Newf(cnserrors.ErrCodeUnsupportedModel,
			"model %q is not supported (did you mean %q?); run 'atctl list-models' for the full catalog",
			name, suggestion)
	}
	return cnserrors.Newf(cnserrors.ErrCodeUnsupportedModel,
		"model %q is not supported; run 'atctl list-models' for the full catalog", name)
}

// suggestMaxDistance bounds how far a name may be from a catalog entry to
// still be offered as a suggestion.
const suggestMaxDistance = 4

// Suggest returns the catalog name nearest to name by edit distance, or ""
// when nothing is close enough.
func Suggest(name string) string {
	names, err := Names()
	if err != nil {
		return ""
	}
	best := ""
	bestDist := suggestMaxDistance + 1
	for _, candidate := range names {
		if d := levenshtein.ComputeDistance(name, candidate); d < bestDist {
			best = candidate
			bestDist = d
		}
	}
	return best
}
