package boards

// nonLockout is the plain 5x5 bingo board: several teams may hold the same
// cell, and there is no hidden information, so every projection is the full
// view.
type nonLockout struct{ base }

func (nonLockout) name() string { return "Non-Lockout" }

func (nonLockout) size() (int, int) { return 5, 5 }

func (nonLockout) minimumView(b *Board) View { return b.FullView() }

// lockout is the 5x5 board where a cell belongs to at most one team.
type lockout struct{ nonLockout }

func (lockout) name() string { return "Lockout" }

func (lockout) maxMarksPerSquare() int { return 1 }

// canMark rejects any cell some team already holds, including the acting
// team's own (a re-mark is a no-op and reports false).
func (lockout) canMark(b *Board, index int, teamID string) bool {
	if teamID == "" {
		return false
	}
	for _, cells := range b.Marks {
		if cells.Has(index) {
			return false
		}
	}
	return true
}
