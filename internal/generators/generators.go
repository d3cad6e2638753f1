// Package generators implements the seeded goal samplers boards draw from.
//
// A generator is stateless between calls: Get is a pure function of
// (catalog, variant, seed, n). Determinism rests on the pinned PRNG in
// mtrand and on catalogs handing out their pools in goal-id order.
package generators

import (
	"github.com/byngosink/byngosink/internal/goals"
	"github.com/byngosink/byngosink/internal/mtrand"
	"github.com/pkg/errors"
)

// ErrExhausted reports a candidate pool that ran out before the requested
// number of goals was drawn.
var ErrExhausted = errors.New("goal pool exhausted")

// ErrUnknownType reports a generator config with an unrecognized type tag.
var ErrUnknownType = errors.New("unknown generator type")

// Generator draws goal lineups for boards.
type Generator interface {
	Name() string
	Game() string
	Languages() []string
	// Count is the size of the underlying catalog. The lobby uses it to flag
	// generators too small for the large board geometries.
	Count() int
	// Get draws exactly n goals without replacement for the given seed.
	Get(seed string, n int) ([]*goals.Goal, error)
}

// Generator type tags accepted in catalog documents. The long forms are the
// class names older documents carry.
const (
	TypeUniform         = "Uniform"
	TypeMutex           = "Mutex"
	TypeTiebreaker      = "Tiebreaker"
	TypeTiebreakerMutex = "TiebreakerMutex"
	TypeFixed           = "Fixed"
)

// Config is the per-generator section of a catalog document.
// Unknown fields are ignored.
type Config struct {
	Type          string               `json:"type"`
	Goals         map[string]goals.Doc `json:"goals"`
	TiebreakerMax int                  `json:"tiebreakerMax"`
	Languages     []string             `json:"languages"`
}

// New builds a generator from its document section.
func New(game, name string, cfg Config) (Generator, error) {
	catalog, err := goals.NewCatalog(game, name, cfg.Goals, cfg.Languages, cfg.TiebreakerMax)
	if err != nil {
		return nil, err
	}
	switch cfg.Type {
	case "", TypeUniform, "BaseGenerator":
		return &sampler{catalog: catalog}, nil
	case TypeMutex, "MutexGenerator":
		return &sampler{catalog: catalog, mutex: true}, nil
	case TypeTiebreaker, "TiebreakerGenerator":
		return &sampler{catalog: catalog, tiebreak: true}, nil
	case TypeTiebreakerMutex, "TiebreakerMutexGenerator":
		return &sampler{catalog: catalog, mutex: true, tiebreak: true}, nil
	case TypeFixed, "FixedGenerator":
		return &fixed{catalog: catalog}, nil
	default:
		return nil, errors.Wrapf(ErrUnknownType, "generator %s/%s: type %q", game, name, cfg.Type)
	}
}

// sampler draws uniformly without replacement from a shrinking pool.
// The mutex and tiebreak switches add the pool filters of the Mutex,
// Tiebreaker and TiebreakerMutex variants; the draw loop itself is shared.
type sampler struct {
	catalog  *goals.Catalog
	mutex    bool
	tiebreak bool
}

func (s *sampler) Name() string        { return s.catalog.Name() }
func (s *sampler) Game() string        { return s.catalog.Game() }
func (s *sampler) Languages() []string { return s.catalog.Languages() }
func (s *sampler) Count() int          { return s.catalog.Len() }

func (s *sampler) Get(seed string, n int) ([]*goals.Goal, error) {
	rng := mtrand.NewString(seed)
	pool := s.catalog.Pool()
	budget := s.catalog.TiebreakerMax()

	out := make([]*goals.Goal, 0, n)
	for len(out) < n {
		if s.tiebreak && budget <= 0 {
			// Quota spent: tiebreaker goals leave the pool before the draw.
			pool = discard(pool, func(g *goals.Goal) bool { return g.Tiebreaker })
		}
		if len(pool) == 0 {
			return nil, errors.Wrapf(ErrExhausted, "%s/%s: drew %d of %d goals",
				s.catalog.Game(), s.catalog.Name(), len(out), n)
		}
		i := rng.Intn(len(pool))
		drawn := pool[i]
		pool = append(pool[:i], pool[i+1:]...)
		if s.tiebreak && drawn.Tiebreaker {
			budget--
		}
		out = append(out, drawn)
		if s.mutex {
			// Exclusion is enforced in both directions: goals the drawn one
			// excludes, and goals that exclude the drawn one.
			pool = discard(pool, func(g *goals.Goal) bool {
				return drawn.Exclusions.Has(g.ID) || g.Exclusions.Has(drawn.ID)
			})
		}
	}
	return out, nil
}

// discard removes every pool entry matching drop, in place.
func discard(pool []*goals.Goal, drop func(*goals.Goal) bool) []*goals.Goal {
	kept := pool[:0]
	for _, g := range pool {
		if !drop(g) {
			kept = append(kept, g)
		}
	}
	return kept
}

// fixed returns the first n goals of a curated lineup, ignoring the seed.
// The lineup order is the catalog's goal-id order, so curated documents
// choose ids that sort in the intended sequence.
type fixed struct {
	catalog *goals.Catalog
}

func (f *fixed) Name() string        { return f.catalog.Name() }
func (f *fixed) Game() string        { return f.catalog.Game() }
func (f *fixed) Languages() []string { return f.catalog.Languages() }
func (f *fixed) Count() int          { return f.catalog.Len() }

func (f *fixed) Get(seed string, n int) ([]*goals.Goal, error) {
	pool := f.catalog.Pool()
	if len(pool) < n {
		return nil, errors.Wrapf(ErrExhausted, "%s/%s: fixed lineup has %d goals, %d requested",
			f.catalog.Game(), f.catalog.Name(), len(pool), n)
	}
	return pool[:n], nil
}
