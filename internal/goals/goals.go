// Package goals models the per-game goal catalogs boards are drawn from.
//
// A catalog is immutable after parsing: boards and generators share the
// parsed *Goal values by pointer for their whole lifetime.
package goals

import (
	"github.com/byngosink/byngosink/internal/generics"
	"github.com/pkg/errors"
)

// ErrInvalidCatalog reports a catalog document that does not validate, e.g.
// an exclusion pointing at a goal id that is not part of the same catalog.
var ErrInvalidCatalog = errors.New("invalid goal catalog")

// Goal is one markable objective. The zero Weight means "unset" and is
// normalized to 1 at parse time.
type Goal struct {
	ID           string
	Name         string
	Translations map[string]string
	Weight       float64
	Exclusions   generics.Set[string]
	Tiebreaker   bool

	weighted bool // Whether the document carried an explicit weight.
}

// Weighted reports whether the goal carries an explicit weight.
func (g *Goal) Weighted() bool { return g.weighted }

// Kind returns the goal family tag, e.g. "WeightedExclusionGoal".
// Plain goals report "BaseGoal".
func (g *Goal) Kind() string {
	k := ""
	if g.weighted {
		k += "Weighted"
	}
	if g.Tiebreaker {
		k += "Tiebreaker"
	}
	if len(g.Exclusions) > 0 {
		k += "Exclusion"
	}
	if k == "" {
		return "BaseGoal"
	}
	return k + "Goal"
}

// View is the client-facing projection of a goal: no exclusions, weights or
// tiebreaker flags leak to players.
type View struct {
	Name         string            `json:"name"`
	Translations map[string]string `json:"translations"`
}

// View returns the client-facing projection. Translations is never nil.
func (g *Goal) View() View {
	tr := g.Translations
	if tr == nil {
		tr = map[string]string{}
	}
	return View{Name: g.Name, Translations: tr}
}

// Doc is one goal entry of a catalog document, as it appears on disk.
type Doc struct {
	Type         string            `json:"type"`
	Name         string            `json:"name"`
	Weight       *float64          `json:"weight"`
	Exclusions   []string          `json:"exclusions"`
	Tiebreaker   bool              `json:"tiebreaker"`
	Translations map[string]string `json:"translations"`
}

// goalFlags is the decoded meaning of an explicit "type" tag.
type goalFlags struct {
	weighted, exclusion, tiebreaker bool
}

var typeNames = map[string]goalFlags{
	"BaseGoal":                        {},
	"WeightedGoal":                    {weighted: true},
	"ExclusionGoal":                   {exclusion: true},
	"WeightedExclusionGoal":           {weighted: true, exclusion: true},
	"TiebreakerGoal":                  {tiebreaker: true},
	"TiebreakerExclusionGoal":         {exclusion: true, tiebreaker: true},
	"WeightedTiebreakerGoal":          {weighted: true, tiebreaker: true},
	"WeightedTiebreakerExclusionGoal": {weighted: true, exclusion: true, tiebreaker: true},
}

// Catalog is an immutable goal pool: the goals of one generator of one game.
type Catalog struct {
	game          string
	name          string
	languages     []string
	tiebreakerMax int
	goals         map[string]*Goal
	ordered       []*Goal
}

// NewCatalog parses and validates a catalog from its document entries.
//
// When a goal carries no explicit "type", the family is inferred from the
// fields present: a weight makes it Weighted, exclusions make it Exclusion,
// the tiebreaker flag makes it Tiebreaker, combined as needed.
func NewCatalog(game, name string, docs map[string]Doc, languages []string, tiebreakerMax int) (*Catalog, error) {
	c := &Catalog{
		game:          game,
		name:          name,
		languages:     languages,
		tiebreakerMax: tiebreakerMax,
		goals:         make(map[string]*Goal, len(docs)),
	}
	for id, doc := range docs {
		g, err := parseGoal(id, doc)
		if err != nil {
			return nil, errors.WithMessagef(err, "catalog %s/%s", game, name)
		}
		c.goals[id] = g
	}

	// Exclusions must resolve within the catalog itself.
	for _, g := range c.goals {
		for ex := range g.Exclusions {
			if _, ok := c.goals[ex]; !ok {
				return nil, errors.Wrapf(ErrInvalidCatalog,
					"catalog %s/%s: goal %q excludes unknown goal %q", game, name, g.ID, ex)
			}
		}
	}

	// Candidate pools iterate in goal-id order so that draws are a pure
	// function of (catalog, seed, n) regardless of document key order.
	for id := range generics.SortedKeys(c.goals) {
		c.ordered = append(c.ordered, c.goals[id])
	}
	return c, nil
}

func parseGoal(id string, doc Doc) (*Goal, error) {
	if doc.Name == "" {
		return nil, errors.Wrapf(ErrInvalidCatalog, "goal %q has no name", id)
	}
	flags := goalFlags{
		weighted:   doc.Weight != nil,
		exclusion:  len(doc.Exclusions) > 0,
		tiebreaker: doc.Tiebreaker,
	}
	if doc.Type != "" {
		explicit, ok := typeNames[doc.Type]
		if !ok {
			return nil, errors.Wrapf(ErrInvalidCatalog, "goal %q has unknown type %q", id, doc.Type)
		}
		flags = explicit
	}

	g := &Goal{
		ID:           id,
		Name:         doc.Name,
		Translations: doc.Translations,
		Weight:       1,
		Tiebreaker:   flags.tiebreaker,
		weighted:     flags.weighted,
	}
	if flags.weighted && doc.Weight != nil {
		if *doc.Weight <= 0 {
			return nil, errors.Wrapf(ErrInvalidCatalog, "goal %q has non-positive weight %v", id, *doc.Weight)
		}
		g.Weight = *doc.Weight
	}
	if flags.exclusion {
		g.Exclusions = generics.SetWith(doc.Exclusions...)
	}
	return g, nil
}

// Game returns the game the catalog belongs to.
func (c *Catalog) Game() string { return c.game }

// Name returns the generator name the catalog backs.
func (c *Catalog) Name() string { return c.name }

// Languages lists the translation languages the catalog supports.
func (c *Catalog) Languages() []string { return c.languages }

// TiebreakerMax is the per-board tiebreaker quota (0 when absent).
func (c *Catalog) TiebreakerMax() int { return c.tiebreakerMax }

// Len returns the number of goals in the catalog.
func (c *Catalog) Len() int { return len(c.goals) }

// Goal looks a goal up by id.
func (c *Catalog) Goal(id string) (*Goal, bool) {
	g, ok := c.goals[id]
	return g, ok
}

// Pool returns a fresh mutable slice of the goals in id order, for samplers
// to shrink as they draw.
func (c *Catalog) Pool() []*Goal {
	pool := make([]*Goal, len(c.ordered))
	copy(pool, c.ordered)
	return pool
}
