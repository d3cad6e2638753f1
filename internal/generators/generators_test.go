package generators

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/byngosink/byngosink/internal/goals"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// plainDocs builds n plain goals with ids g00, g01, ...
func plainDocs(n int) map[string]goals.Doc {
	docs := make(map[string]goals.Doc, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("g%02d", i)
		docs[id] = goals.Doc{Name: "Goal " + id}
	}
	return docs
}

func mustNew(t *testing.T, typ string, docs map[string]goals.Doc, tiebreakerMax int) Generator {
	t.Helper()
	gen, err := New("testgame", "testgen", Config{Type: typ, Goals: docs, TiebreakerMax: tiebreakerMax})
	require.NoError(t, err)
	return gen
}

func ids(gs []*goals.Goal) []string {
	out := make([]string, len(gs))
	for i, g := range gs {
		out[i] = g.ID
	}
	return out
}

func TestUniformDeterminism(t *testing.T) {
	gen := mustNew(t, TypeUniform, plainDocs(60), 0)
	first, err := gen.Get("determinism-seed", 25)
	require.NoError(t, err)
	require.Len(t, first, 25)

	again, err := gen.Get("determinism-seed", 25)
	require.NoError(t, err)
	assert.Equal(t, ids(first), ids(again))

	other, err := gen.Get("a different seed", 25)
	require.NoError(t, err)
	assert.NotEqual(t, ids(first), ids(other))

	// Without replacement: all distinct.
	seen := map[string]bool{}
	for _, g := range first {
		assert.False(t, seen[g.ID], "goal %s drawn twice", g.ID)
		seen[g.ID] = true
	}
}

func TestUniformExhausted(t *testing.T) {
	gen := mustNew(t, TypeUniform, plainDocs(10), 0)
	_, err := gen.Get("seed", 11)
	assert.True(t, errors.Is(err, ErrExhausted), "got %v", err)
}

func TestMutexExcludesBothDirections(t *testing.T) {
	docs := plainDocs(40)
	// Asymmetric exclusions on purpose: the property must hold both ways.
	for i := 0; i < 40; i += 2 {
		a, b := fmt.Sprintf("g%02d", i), fmt.Sprintf("g%02d", i+1)
		doc := docs[a]
		doc.Exclusions = []string{b}
		docs[a] = doc
	}
	gen := mustNew(t, TypeMutex, docs, 0)

	for _, seed := range []string{"s1", "s2", "s3", "s4"} {
		drawn, err := gen.Get(seed, 20)
		require.NoError(t, err)
		byID := map[string]*goals.Goal{}
		for _, g := range drawn {
			byID[g.ID] = g
		}
		for _, g := range drawn {
			for ex := range g.Exclusions {
				_, present := byID[ex]
				assert.False(t, present, "seed %s: %s and its exclusion %s drawn together", seed, g.ID, ex)
			}
		}
	}
}

func TestMutexExhausted(t *testing.T) {
	// Every draw wipes out the rest of the pool.
	all := func(self string) []string {
		var out []string
		for i := 0; i < 6; i++ {
			if id := fmt.Sprintf("g%02d", i); id != self {
				out = append(out, id)
			}
		}
		return out
	}
	docs := map[string]goals.Doc{}
	for i := 0; i < 6; i++ {
		id := fmt.Sprintf("g%02d", i)
		docs[id] = goals.Doc{Name: id, Exclusions: all(id)}
	}
	gen := mustNew(t, TypeMutex, docs, 0)
	_, err := gen.Get("seed", 2)
	assert.True(t, errors.Is(err, ErrExhausted), "got %v", err)
}

func TestTiebreakerBudget(t *testing.T) {
	docs := plainDocs(30)
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("g%02d", i)
		doc := docs[id]
		doc.Tiebreaker = true
		docs[id] = doc
	}
	const budget = 2
	gen := mustNew(t, TypeTiebreaker, docs, budget)

	for _, seed := range []string{"a", "b", "c", "d", "e"} {
		drawn, err := gen.Get(seed, 25)
		require.NoError(t, err)
		count := 0
		for _, g := range drawn {
			if g.Tiebreaker {
				count++
			}
		}
		assert.LessOrEqual(t, count, budget, "seed %s", seed)
	}
}

func TestTiebreakerZeroBudgetDrawsNone(t *testing.T) {
	docs := plainDocs(30)
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("g%02d", i)
		doc := docs[id]
		doc.Tiebreaker = true
		docs[id] = doc
	}
	gen := mustNew(t, TypeTiebreaker, docs, 0)
	drawn, err := gen.Get("seed", 25)
	require.NoError(t, err)
	for _, g := range drawn {
		assert.False(t, g.Tiebreaker, "tiebreaker %s drawn with zero budget", g.ID)
	}
}

func TestTiebreakerMutexCombines(t *testing.T) {
	docs := plainDocs(40)
	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("g%02d", i)
		doc := docs[id]
		doc.Tiebreaker = true
		docs[id] = doc
	}
	doc := docs["g10"]
	doc.Exclusions = []string{"g11", "g12"}
	docs["g10"] = doc

	gen := mustNew(t, TypeTiebreakerMutex, docs, 1)
	drawn, err := gen.Get("seed", 30)
	require.NoError(t, err)

	tiebreakers := 0
	byID := map[string]bool{}
	for _, g := range drawn {
		byID[g.ID] = true
		if g.Tiebreaker {
			tiebreakers++
		}
	}
	assert.LessOrEqual(t, tiebreakers, 1)
	if byID["g10"] {
		assert.False(t, byID["g11"] || byID["g12"], "exclusions of g10 drawn alongside it")
	}
}

func TestFixedLineup(t *testing.T) {
	gen := mustNew(t, TypeFixed, plainDocs(5), 0)
	drawn, err := gen.Get("ignored seed", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"g00", "g01", "g02"}, ids(drawn))

	// Seed is irrelevant for curated lineups.
	again, err := gen.Get("some other seed", 3)
	require.NoError(t, err)
	assert.Equal(t, ids(drawn), ids(again))

	_, err = gen.Get("seed", 6)
	assert.True(t, errors.Is(err, ErrExhausted), "got %v", err)
}

func TestNewUnknownType(t *testing.T) {
	_, err := New("game", "gen", Config{Type: "Chaos", Goals: plainDocs(2)})
	assert.True(t, errors.Is(err, ErrUnknownType), "got %v", err)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	doc := `{
		"All Goals": {"type": "Uniform", "goals": {
			"g1": {"name": "First"},
			"g2": {"name": "Second", "weight": 2},
			"g3": {"name": "Third", "exclusions": ["g1"]}
		}, "languages": ["en", "de"], "unknownField": true},
		"Short": {"type": "Fixed", "goals": {"g1": {"name": "Only"}}}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "testgame.json"), []byte(doc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	lib, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"testgame"}, lib.Games())

	gens, ok := lib.Generators("testgame")
	require.True(t, ok)
	require.Len(t, gens, 2)
	assert.Equal(t, "All Goals", gens[0].Name())
	assert.Equal(t, "Short", gens[1].Name())
	assert.Equal(t, []string{"en", "de"}, gens[0].Languages())

	gen, ok := lib.Lookup("testgame", "All Goals")
	require.True(t, ok)
	assert.Equal(t, 3, gen.Count())

	_, ok = lib.Lookup("other", "All Goals")
	assert.False(t, ok)
}

func TestLoadDirRejectsBadCatalog(t *testing.T) {
	dir := t.TempDir()
	doc := `{"Broken": {"goals": {"g1": {"name": "First", "exclusions": ["missing"]}}}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte(doc), 0o644))
	_, err := LoadDir(dir)
	assert.True(t, errors.Is(err, goals.ErrInvalidCatalog), "got %v", err)
}
