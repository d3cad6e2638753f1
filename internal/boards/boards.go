// Package boards implements the board variants and their shared
// mark/unmark/view contract.
//
// A Board is common state (geometry, goals, per-team marks, history) plus a
// variant strategy value. The strategy supplies the markability predicates
// and the three view projections; defaults live on the base strategy and
// variants override selectively. Variants with hidden information (the
// Exploration family) must never leak goals or marks a team is not entitled
// to through TeamView.
package boards

import (
	"github.com/byngosink/byngosink/internal/generators"
	"github.com/byngosink/byngosink/internal/generics"
	"github.com/byngosink/byngosink/internal/goals"
	"github.com/pkg/errors"
)

// ErrUnknownVariant reports a board variant name the registry does not know.
var ErrUnknownVariant = errors.New("unknown board variant")

// MarkEvent is one entry of the append-only mark history. Replaying the
// events in order against a fresh board of the same variant, generator and
// seed reproduces the current marks.
type MarkEvent struct {
	Team   string `json:"team"`
	Cell   int    `json:"cell"`
	Marked bool   `json:"marked"`
}

// View is the JSON-shaped board projection sent to clients.
type View struct {
	Type              string             `json:"type"`
	Width             int                `json:"width"`
	Height            int                `json:"height"`
	Game              string             `json:"game"`
	GeneratorName     string             `json:"generatorName"`
	MaxMarksPerSquare int                `json:"maxMarksPerSquare"`
	Goals             map[int]goals.View `json:"goals,omitempty"`
	Marks             map[string][]int   `json:"marks,omitempty"`
	Base              []int              `json:"base,omitempty"`
	Finals            []int              `json:"finals,omitempty"`
	Extras            map[string]any     `json:"extras,omitempty"`
}

// variant is the strategy table of one board variant. All methods receive the
// board, so variants stay free of back-pointers and scratch boards can share
// a strategy implementation.
type variant interface {
	name() string
	size() (w, h int)
	maxMarksPerSquare() int
	canMark(b *Board, index int, teamID string) bool
	canUnmark(b *Board, index int, teamID string) bool
	mark(b *Board, index int, teamID string) bool
	unmark(b *Board, index int, teamID string) bool
	minimumView(b *Board) View
	teamView(b *Board, teamID string) View
	spectatorView(b *Board) View
}

// Board is one live board instance, owned by a room.
// All methods assume the owning room serializes access.
type Board struct {
	Width, Height int
	Goals         []*goals.Goal
	Marks         map[string]generics.Set[int]

	Game          string
	GeneratorName string
	Languages     []string
	Seed          string

	// RoomID is a non-owning handle to the owning room, for variant
	// callbacks that need to reach it.
	RoomID string

	history []MarkEvent
	v       variant
}

// builders maps the variant registry key to its strategy constructor.
// Keys are what GET_BOARDS enumerates and OPEN accepts.
var builders = []struct {
	key   string
	build func() variant
}{
	{"Non-Lockout", func() variant { return &nonLockout{} }},
	{"Lockout", func() variant { return &lockout{} }},
	{"Invasion", func() variant { return newInvasion() }},
	{"Exploration", func() variant { return newExploration13() }},
	{"GTTOS", func() variant { return newGTTOS13() }},
}

// Names lists the board variant keys in registry order.
func Names() []string {
	out := make([]string, len(builders))
	for i, b := range builders {
		out[i] = b.key
	}
	return out
}

// New creates a board of the given variant, drawing its goals from the
// generator with the given seed.
func New(variantKey string, gen generators.Generator, seed string) (*Board, error) {
	var v variant
	for _, b := range builders {
		if b.key == variantKey {
			v = b.build()
			break
		}
	}
	if v == nil {
		return nil, errors.Wrapf(ErrUnknownVariant, "%q", variantKey)
	}

	w, h := v.size()
	drawn, err := gen.Get(seed, w*h)
	if err != nil {
		return nil, errors.WithMessagef(err, "board %q", variantKey)
	}
	return &Board{
		Width:         w,
		Height:        h,
		Goals:         drawn,
		Marks:         make(map[string]generics.Set[int]),
		Game:          gen.Game(),
		GeneratorName: gen.Name(),
		Languages:     gen.Languages(),
		Seed:          seed,
		v:             v,
	}, nil
}

// Name returns the variant's display name (e.g. "Get To The Other Side").
func (b *Board) Name() string { return b.v.name() }

// MaxMarksPerSquare is 1 for the lockout family and 0 (unbounded) otherwise.
func (b *Board) MaxMarksPerSquare() int { return b.v.maxMarksPerSquare() }

// Index converts x/y coordinates to the row-major cell index.
func (b *Board) Index(x, y int) int { return y*b.Width + x }

func (b *Board) inBounds(index int) bool {
	return index >= 0 && index < b.Width*b.Height
}

// CanMark reports whether the team may mark the cell under the variant rules.
func (b *Board) CanMark(index int, teamID string) bool {
	return b.inBounds(index) && b.v.canMark(b, index, teamID)
}

// Mark attempts to claim the cell for the team. It returns false with no
// state change when the variant rejects the move.
func (b *Board) Mark(index int, teamID string) bool {
	if !b.inBounds(index) {
		return false
	}
	return b.v.mark(b, index, teamID)
}

// Unmark attempts to withdraw the team's claim on the cell. It returns false
// with no state change when the variant rejects it.
func (b *Board) Unmark(index int, teamID string) bool {
	if !b.inBounds(index) {
		return false
	}
	return b.v.unmark(b, index, teamID)
}

// MinimumView is variant metadata safe to show anyone.
func (b *Board) MinimumView() View { return b.v.minimumView(b) }

// TeamView is what a member of the given team may see.
func (b *Board) TeamView(teamID string) View { return b.v.teamView(b, teamID) }

// SpectatorView is the level-1 spectator projection.
func (b *Board) SpectatorView() View { return b.v.spectatorView(b) }

// FullView is the authoritative omniscient projection.
func (b *Board) FullView() View {
	v := b.minView()
	v.Goals = make(map[int]goals.View, len(b.Goals))
	for i, g := range b.Goals {
		v.Goals[i] = g.View()
	}
	v.Marks = b.allMarks()
	return v
}

// History returns a copy of the mark event log.
func (b *Board) History() []MarkEvent {
	out := make([]MarkEvent, len(b.history))
	copy(out, b.history)
	return out
}

func (b *Board) minView() View {
	return View{
		Type:              b.v.name(),
		Width:             b.Width,
		Height:            b.Height,
		Game:              b.Game,
		GeneratorName:     b.GeneratorName,
		MaxMarksPerSquare: b.v.maxMarksPerSquare(),
	}
}

func (b *Board) allMarks() map[string][]int {
	marks := make(map[string][]int, len(b.Marks))
	for team, cells := range b.Marks {
		marks[team] = generics.Sorted(cells)
	}
	return marks
}

// applyMark records a successful mark: state plus history.
func (b *Board) applyMark(index int, teamID string) {
	cells, ok := b.Marks[teamID]
	if !ok {
		cells = generics.MakeSet[int]()
		b.Marks[teamID] = cells
	}
	cells.Insert(index)
	b.history = append(b.history, MarkEvent{Team: teamID, Cell: index, Marked: true})
}

// applyUnmark records a successful unmark. A team whose mark set empties is
// dropped from the marks map.
func (b *Board) applyUnmark(index int, teamID string) {
	cells := b.Marks[teamID]
	cells.Delete(index)
	if len(cells) == 0 {
		delete(b.Marks, teamID)
	}
	b.history = append(b.history, MarkEvent{Team: teamID, Cell: index, Marked: false})
}

// scratch returns an unmarked board sharing this board's goals and variant
// family, for replay-based validation.
func (b *Board) scratch(v variant) *Board {
	return &Board{
		Width:         b.Width,
		Height:        b.Height,
		Goals:         b.Goals,
		Marks:         make(map[string]generics.Set[int]),
		Game:          b.Game,
		GeneratorName: b.GeneratorName,
		Languages:     b.Languages,
		Seed:          b.Seed,
		v:             v,
	}
}

// base supplies the default variant semantics: mark requires a team that does
// not already hold the cell, unmark requires the team to hold it, and every
// projection is the full view.
type base struct{}

func (base) maxMarksPerSquare() int { return 0 }

func (base) canMark(b *Board, index int, teamID string) bool {
	return teamID != "" && !b.Marks[teamID].Has(index)
}

func (base) canUnmark(b *Board, index int, teamID string) bool {
	return b.Marks[teamID].Has(index)
}

func (base) mark(b *Board, index int, teamID string) bool {
	if !b.v.canMark(b, index, teamID) {
		return false
	}
	b.applyMark(index, teamID)
	return true
}

func (base) unmark(b *Board, index int, teamID string) bool {
	if !b.v.canUnmark(b, index, teamID) {
		return false
	}
	b.applyUnmark(index, teamID)
	return true
}

func (base) minimumView(b *Board) View { return b.minView() }

func (base) teamView(b *Board, teamID string) View { return b.FullView() }

func (base) spectatorView(b *Board) View { return b.FullView() }
