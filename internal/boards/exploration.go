package boards

import (
	"github.com/byngosink/byngosink/internal/generics"
	"github.com/byngosink/byngosink/internal/goals"
)

// exploration is the fog-of-war family: a 13x13 board where a team only sees
// the base cells plus the orthogonal neighbourhood of its own marks, and may
// only mark cells it can see. TeamView must never include a goal or another
// team's mark outside that seen set.
type exploration struct {
	base
	variantName string
	baseCells   generics.Set[int]
	finalCells  generics.Set[int]
}

const explorationSide = 13

func explorationIndex(x, y int) int { return y*explorationSide + x }

// newExploration13 starts every team at the centre and races them to the
// four corners.
func newExploration13() *exploration {
	mid := explorationSide / 2
	last := explorationSide - 1
	return &exploration{
		variantName: "Exploration",
		baseCells:   generics.SetWith(explorationIndex(mid, mid)),
		finalCells: generics.SetWith(
			explorationIndex(0, 0),
			explorationIndex(last, 0),
			explorationIndex(0, last),
			explorationIndex(last, last),
		),
	}
}

func (v *exploration) name() string { return v.variantName }

func (v *exploration) size() (int, int) { return explorationSide, explorationSide }

// neighbors returns the orthogonally adjacent cell indices.
func (v *exploration) neighbors(b *Board, index int) []int {
	x, y := index%b.Width, index/b.Width
	out := make([]int, 0, 4)
	if y > 0 {
		out = append(out, index-b.Width)
	}
	if y < b.Height-1 {
		out = append(out, index+b.Width)
	}
	if x > 0 {
		out = append(out, index-1)
	}
	if x < b.Width-1 {
		out = append(out, index+1)
	}
	return out
}

// seen is the team's visible cell set: the base cells plus every own mark and
// its orthogonal neighbours.
func (v *exploration) seen(b *Board, teamID string) generics.Set[int] {
	out := v.baseCells.Clone()
	for i := range b.Marks[teamID] {
		out.Insert(i)
		for _, n := range v.neighbors(b, i) {
			out.Insert(n)
		}
	}
	return out
}

func (v *exploration) canMark(b *Board, index int, teamID string) bool {
	if teamID == "" || b.Marks[teamID].Has(index) {
		return false
	}
	return v.seen(b, teamID).Has(index)
}

// goalViews projects the goals of the given cells only.
func (v *exploration) goalViews(b *Board, cells generics.Set[int]) map[int]goals.View {
	out := make(map[int]goals.View, len(cells))
	for i := range cells {
		out[i] = b.Goals[i].View()
	}
	return out
}

func (v *exploration) layout(view *View) {
	view.Base = generics.Sorted(v.baseCells)
	view.Finals = generics.Sorted(v.finalCells)
}

// minimumView reveals the geometry and the base cells' goals, nothing a team
// has uncovered.
func (v *exploration) minimumView(b *Board) View {
	view := b.minView()
	view.Goals = v.goalViews(b, v.baseCells)
	v.layout(&view)
	return view
}

// teamView reveals exactly the team's seen set and its own marks.
func (v *exploration) teamView(b *Board, teamID string) View {
	if teamID == "" {
		return v.minimumView(b)
	}
	view := b.minView()
	view.Goals = v.goalViews(b, v.seen(b, teamID))
	if marks, ok := b.Marks[teamID]; ok {
		view.Marks = map[string][]int{teamID: generics.Sorted(marks)}
	}
	v.layout(&view)
	return view
}

// spectatorView is the union of every team's seen set, with all marks.
func (v *exploration) spectatorView(b *Board) View {
	view := b.minView()
	revealed := v.baseCells.Clone()
	for team := range b.Marks {
		revealed = revealed.Union(v.seen(b, team))
	}
	view.Goals = v.goalViews(b, revealed)
	view.Marks = b.allMarks()
	v.layout(&view)
	return view
}

// gttos is exploration with the start and finish on opposite edges: teams
// begin on the left column and race to the right one.
type gttos struct {
	exploration
}

func newGTTOS13() *gttos {
	v := &gttos{}
	v.variantName = "Get To The Other Side"
	v.baseCells = generics.MakeSet[int](explorationSide)
	v.finalCells = generics.MakeSet[int](explorationSide)
	for y := 0; y < explorationSide; y++ {
		v.baseCells.Insert(explorationIndex(0, y))
		v.finalCells.Insert(explorationIndex(explorationSide-1, y))
	}
	return v
}

// colMarks is each marking team's furthest column reached, the race standing.
func (v *gttos) colMarks(b *Board) map[string]int {
	out := make(map[string]int, len(b.Marks))
	for team, cells := range b.Marks {
		far := 0
		for i := range cells {
			if col := i % b.Width; col > far {
				far = col
			}
		}
		out[team] = far
	}
	return out
}

func (v *gttos) teamView(b *Board, teamID string) View {
	view := v.exploration.teamView(b, teamID)
	if teamID != "" {
		view.Extras = map[string]any{"colMarks": v.colMarks(b)}
	}
	return view
}

func (v *gttos) spectatorView(b *Board) View {
	view := v.exploration.spectatorView(b)
	view.Extras = map[string]any{"colMarks": v.colMarks(b)}
	return view
}
