package generators

import (
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/byngosink/byngosink/internal/generics"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Library holds every generator of every game, loaded once at startup and
// immutable afterwards.
type Library struct {
	games map[string]map[string]Generator
}

// NewLibrary builds a library from already-constructed generators, keyed by
// game then generator name. Mostly useful for tests.
func NewLibrary(games map[string]map[string]Generator) *Library {
	return &Library{games: games}
}

// LoadDir reads every *.json catalog document in dir. The file stem names the
// game; the document maps generator name to its Config section.
func LoadDir(dir string) (*Library, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading catalog directory %q", dir)
	}

	lib := &Library{games: make(map[string]map[string]Generator)}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		game := strings.TrimSuffix(entry.Name(), ".json")
		path := filepath.Join(dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "reading catalog %q", path)
		}
		var doc map[string]Config
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, errors.Wrapf(err, "parsing catalog %q", path)
		}

		gens := make(map[string]Generator, len(doc))
		for name, cfg := range doc {
			gen, err := New(game, name, cfg)
			if err != nil {
				return nil, errors.WithMessagef(err, "catalog %q", path)
			}
			gens[name] = gen
		}
		lib.games[game] = gens
		klog.Infof("Loaded catalog %q: %d generators", game, len(gens))
	}
	return lib, nil
}

// Games lists the loaded games, sorted.
func (l *Library) Games() []string {
	return slices.Collect(generics.SortedKeys(l.games))
}

// Generators lists a game's generators in name order.
// The second result is false when the game is unknown.
func (l *Library) Generators(game string) ([]Generator, bool) {
	gens, ok := l.games[game]
	if !ok {
		return nil, false
	}
	out := make([]Generator, 0, len(gens))
	for name := range generics.SortedKeys(gens) {
		out = append(out, gens[name])
	}
	return out, true
}

// Lookup finds one generator by game and name.
func (l *Library) Lookup(game, name string) (Generator, bool) {
	gens, ok := l.games[game]
	if !ok {
		return nil, false
	}
	gen, ok := gens[name]
	return gen, ok
}
