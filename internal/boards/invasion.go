package boards

import (
	"github.com/byngosink/byngosink/internal/generics"
)

// Invasion directions. Opposite pairs satisfy opposite(d) == 5-d:
// TOP↔BOTTOM and LEFT↔RIGHT.
const (
	invasionTop    = 1
	invasionLeft   = 2
	invasionRight  = 3
	invasionBottom = 4
)

// dirMask is a set of invasion directions, bit d for direction d.
type dirMask uint8

const allDirs dirMask = 1<<invasionTop | 1<<invasionLeft | 1<<invasionRight | 1<<invasionBottom

func dirBit(d int) dirMask { return 1 << d }

func (m dirMask) has(d int) bool { return m&dirBit(d) != 0 }

// opposites returns the mask of opposite directions of every direction in m.
func (m dirMask) opposites() dirMask {
	var out dirMask
	for d := invasionTop; d <= invasionBottom; d++ {
		if m.has(d) {
			out |= dirBit(5 - d)
		}
	}
	return out
}

// invasion is a two-team lockout board where each team's marks must advance
// as a front from one board edge toward the opposite edge.
//
// For a direction d the board partitions into ranks: parallel cell lines
// starting at the d edge. A team is front-consistent with d when its
// per-rank fill counts strictly decrease for as long as they are non-zero,
// so the front is always widest at its home edge. The live state is one
// permitted-direction mask per team; the opposing team is always held to the
// opposites of the acting team's remaining directions.
type invasion struct {
	lockout
	ranks       map[int][]generics.Set[int]
	constraints map[string]dirMask
}

func newInvasion() *invasion {
	const w, h = 5, 5
	index := func(x, y int) int { return y*w + x }

	ranks := make(map[int][]generics.Set[int], 4)
	for y := 0; y < h; y++ {
		row := generics.MakeSet[int](w)
		for x := 0; x < w; x++ {
			row.Insert(index(x, y))
		}
		ranks[invasionTop] = append(ranks[invasionTop], row)
	}
	for x := 0; x < w; x++ {
		col := generics.MakeSet[int](h)
		for y := 0; y < h; y++ {
			col.Insert(index(x, y))
		}
		ranks[invasionLeft] = append(ranks[invasionLeft], col)
	}
	for i := len(ranks[invasionTop]) - 1; i >= 0; i-- {
		ranks[invasionBottom] = append(ranks[invasionBottom], ranks[invasionTop][i])
	}
	for i := len(ranks[invasionLeft]) - 1; i >= 0; i-- {
		ranks[invasionRight] = append(ranks[invasionRight], ranks[invasionLeft][i])
	}

	return &invasion{
		ranks:       ranks,
		constraints: make(map[string]dirMask),
	}
}

func (v *invasion) name() string { return "Invasion" }

// otherTeam returns the opposing team id, or "" while no opponent entered.
func (v *invasion) otherTeam(teamID string) string {
	for t := range generics.SortedKeys(v.constraints) {
		if t != teamID {
			return t
		}
	}
	return ""
}

// permitted returns the directions the team may still use. The second team
// to enter is limited to the opposites of the first team's directions; a
// third team is barred entirely.
func (v *invasion) permitted(teamID string) (dirMask, bool) {
	if own, ok := v.constraints[teamID]; ok {
		return own, true
	}
	switch len(v.constraints) {
	case 2:
		return 0, false
	case 1:
		return v.constraints[v.otherTeam(teamID)].opposites(), true
	}
	return allDirs, true
}

// fills counts the team's marks per rank of direction d, counting extra as
// already marked (pass extra < 0 for none).
func (v *invasion) fills(b *Board, teamID string, d int, extra int) []int {
	marks := b.Marks[teamID]
	out := make([]int, len(v.ranks[d]))
	for r, rank := range v.ranks[d] {
		for i := range rank {
			if marks.Has(i) || i == extra {
				out[r]++
			}
		}
	}
	return out
}

// frontConsistent reports whether a fill sequence strictly decreases for as
// long as it is non-zero.
func frontConsistent(fills []int) bool {
	for r := 1; r < len(fills); r++ {
		if fills[r] > 0 && fills[r-1] <= fills[r] {
			return false
		}
	}
	return true
}

// keptAfter returns the permitted directions that stay front-consistent for
// the team once the cell is marked.
func (v *invasion) keptAfter(b *Board, teamID string, permitted dirMask, cell int) dirMask {
	var kept dirMask
	for d := invasionTop; d <= invasionBottom; d++ {
		if permitted.has(d) && frontConsistent(v.fills(b, teamID, d, cell)) {
			kept |= dirBit(d)
		}
	}
	return kept
}

// validMoves maps each cell the team may mark right now to the directions
// that stay consistent after marking it. Cells held by any team never appear.
func (v *invasion) validMoves(b *Board, teamID string) map[int]dirMask {
	permitted, ok := v.permitted(teamID)
	if !ok || permitted == 0 {
		return map[int]dirMask{}
	}
	owners := cellOwners(b)

	moves := make(map[int]dirMask)
	for i := 0; i < b.Width*b.Height; i++ {
		if _, held := owners[i]; held {
			continue
		}
		if kept := v.keptAfter(b, teamID, permitted, i); kept != 0 {
			moves[i] = kept
		}
	}
	return moves
}

// cellOwners inverts the marks map: cell index to owning team.
func cellOwners(b *Board) map[int]string {
	owners := make(map[int]string)
	for team, cells := range b.Marks {
		for i := range cells {
			owners[i] = team
		}
	}
	return owners
}

func (v *invasion) canMark(b *Board, index int, teamID string) bool {
	if teamID == "" {
		return false
	}
	_, ok := v.validMoves(b, teamID)[index]
	return ok
}

func (v *invasion) mark(b *Board, index int, teamID string) bool {
	if teamID == "" {
		return false
	}
	kept, ok := v.validMoves(b, teamID)[index]
	if !ok {
		return false
	}
	// A mark that would empty either team's direction set is invalid.
	// kept is non-zero by construction; check the opponent before mutating.
	other := v.otherTeam(teamID)
	if other != "" && v.constraints[other]&kept.opposites() == 0 {
		return false
	}

	b.applyMark(index, teamID)
	v.constraints[teamID] = kept
	if other != "" {
		v.constraints[other] &= kept.opposites()
	}
	return true
}

// replay marks the given cells for the team in some order that keeps the
// front valid, requiring every intermediate constraint set to cover all
// directions in required. Cells are tried in sorted order so the outcome is
// deterministic. Returns false when no remaining cell can extend the front.
func (v *invasion) replay(b *Board, teamID string, cells generics.Set[int], required dirMask) bool {
	remaining := cells.Clone()
	for len(remaining) > 0 {
		moves := v.validMoves(b, teamID)
		found := false
		for _, i := range generics.Sorted(remaining) {
			kept, ok := moves[i]
			if !ok || kept&required != required {
				continue
			}
			b.applyMark(i, teamID)
			v.constraints[teamID] = kept
			if other := v.otherTeam(teamID); other != "" {
				v.constraints[other] &= kept.opposites()
			}
			remaining.Delete(i)
			found = true
			break
		}
		if !found {
			return false
		}
	}
	return true
}

// unmark validates by replay: a naive removal can leave marks no direction
// explains. Both teams' remaining marks are replayed onto a scratch board
// under the surviving constraints; only on success is the regenerated state
// swapped in.
func (v *invasion) unmark(b *Board, index int, teamID string) bool {
	if !v.canUnmark(b, index, teamID) {
		return false
	}

	fresh := newInvasion()
	scratch := b.scratch(fresh)

	required := allDirs
	if own, ok := v.constraints[teamID]; ok {
		required = own
	}
	toPlay := b.Marks[teamID].Clone()
	toPlay.Delete(index)
	if !fresh.replay(scratch, teamID, toPlay, required) {
		return false
	}

	if other := v.otherTeam(teamID); other != "" {
		requiredOther := allDirs
		if own, ok := v.constraints[other]; ok {
			requiredOther = own
		}
		if !fresh.replay(scratch, other, b.Marks[other].Clone(), requiredOther) {
			return false
		}
	}

	b.Marks = scratch.Marks
	v.constraints = fresh.constraints
	b.history = append(b.history, MarkEvent{Team: teamID, Cell: index, Marked: false})
	return true
}

// teamView adds the team's currently valid cells so clients can show where
// the front may advance.
func (v *invasion) teamView(b *Board, teamID string) View {
	view := b.FullView()
	moves := v.validMoves(b, teamID)
	cells := generics.MakeSet[int](len(moves))
	for i := range moves {
		cells.Insert(i)
	}
	view.Extras = map[string]any{"invasionMoves": generics.Sorted(cells)}
	return view
}
