// Package watch renders lobby listings and board views for the terminal
// watcher.
package watch

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/byngosink/byngosink/internal/boards"
	"github.com/byngosink/byngosink/internal/protocol"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// CharsPerColumn is the rendered width of one board cell.
const CharsPerColumn = 9

var ansiFilter = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// displayWidth of s removes its color/control sequences and returns the length of what is left.
func displayWidth(s string) int {
	return len(ansiFilter.ReplaceAllString(s, ""))
}

// PrintCentered prints the block centered on the terminal.
func PrintCentered(block string) {
	lines := strings.Split(block, "\n")
	terminalWidth, _, _ := term.GetSize(int(os.Stdout.Fd()))
	blockWidth := 0
	for _, line := range lines {
		if w := displayWidth(line); w > blockWidth {
			blockWidth = w
		}
	}
	indent := (terminalWidth - blockWidth) / 2
	if indent < 0 {
		indent = 0
	}
	for _, line := range lines {
		if len(line) == 0 {
			fmt.Println()
			continue
		}
		fmt.Printf("%s%s\n", strings.Repeat(" ", indent), line)
	}
}

func centerString(s string, fit int) string {
	if len(s) >= fit {
		return s[:fit]
	}
	marginLeft := (fit - len(s)) / 2
	marginRight := fit - len(s) - marginLeft
	return strings.Repeat(" ", marginLeft) + s + strings.Repeat(" ", marginRight)
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	hiddenStyle = lipgloss.NewStyle().Faint(true)
	baseStyle   = lipgloss.NewStyle().Bold(true)
	finalStyle  = lipgloss.NewStyle().Reverse(true)
)

// Lobby renders the LISTED room table.
func Lobby(list map[string]protocol.RoomInfo) string {
	if len(list) == 0 {
		return "No open rooms.\n"
	}
	ids := make([]string, 0, len(list))
	for id := range list {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var sb strings.Builder
	sb.WriteString(headerStyle.Render(fmt.Sprintf("%-20s %-12s %-12s %-20s %5s", "Room", "Game", "Board", "Generator", "Users")))
	sb.WriteByte('\n')
	for _, id := range ids {
		info := list[id]
		sb.WriteString(fmt.Sprintf("%-20s %-12s %-12s %-20s %5d\n",
			info.Name, info.Game, info.Board, info.Variant, info.Count))
		sb.WriteString(hiddenStyle.Render("  id: " + id))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// owners maps each marked cell to its owning teams, sorted for stable colours.
func owners(view boards.View) map[int][]string {
	out := make(map[int][]string)
	for _, team := range sortedKeys(view.Marks) {
		for _, cell := range view.Marks[team] {
			out[cell] = append(out[cell], team)
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Board renders one board projection as a grid, colouring marked cells with
// their team colour. Cells outside the view's goal map render as fog.
func Board(view boards.View, colours map[string]string) string {
	held := owners(view)
	base := cellSet(view.Base)
	finals := cellSet(view.Finals)

	var sb strings.Builder
	sb.WriteString(headerStyle.Render(fmt.Sprintf("%s | %s | %s", view.Game, view.Type, view.GeneratorName)))
	sb.WriteString("\n\n")
	for y := 0; y < view.Height; y++ {
		for x := 0; x < view.Width; x++ {
			cell := y*view.Width + x
			sb.WriteString(renderCell(view, cell, held[cell], colours, base, finals))
		}
		sb.WriteByte('\n')
	}

	if moves, ok := view.Extras["invasionMoves"]; ok {
		sb.WriteString(fmt.Sprintf("\nValid moves: %v\n", moves))
	}
	if cols, ok := view.Extras["colMarks"]; ok {
		sb.WriteString(fmt.Sprintf("\nFurthest columns: %v\n", cols))
	}
	return sb.String()
}

func cellSet(cells []int) map[int]bool {
	out := make(map[int]bool, len(cells))
	for _, c := range cells {
		out[c] = true
	}
	return out
}

func renderCell(view boards.View, cell int, held []string, colours map[string]string, base, finals map[int]bool) string {
	goal, visible := view.Goals[cell]
	if !visible {
		return hiddenStyle.Render(centerString("·", CharsPerColumn))
	}
	label := centerString(goal.Name, CharsPerColumn)
	switch {
	case len(held) > 0:
		style := lipgloss.NewStyle().Foreground(lipgloss.Color("0"))
		if colour, ok := colours[held[0]]; ok {
			style = style.Background(lipgloss.Color(colour))
		} else {
			style = style.Reverse(true)
		}
		return style.Render(label)
	case finals[cell]:
		return finalStyle.Render(label)
	case base[cell]:
		return baseStyle.Render(label)
	default:
		return label
	}
}

// Roster renders the MEMBERS broadcast: users first, then teams with their
// colour swatches.
func Roster(m protocol.Members) string {
	var sb strings.Builder
	sb.WriteString(headerStyle.Render("Users"))
	sb.WriteByte('\n')
	for _, u := range m.Members {
		state := "online"
		if !u.Connected {
			state = "offline"
		}
		sb.WriteString(fmt.Sprintf("  %-20s %s\n", u.Name, state))
	}
	sb.WriteString(headerStyle.Render("Teams"))
	sb.WriteByte('\n')
	for _, id := range sortedKeys(m.Teams) {
		team := m.Teams[id]
		swatch := lipgloss.NewStyle().Background(lipgloss.Color(team.Colour)).Render("  ")
		names := make([]string, len(team.Members))
		for i, member := range team.Members {
			names[i] = member.Name
		}
		sb.WriteString(fmt.Sprintf("%s %-16s %s\n", swatch, team.Name, strings.Join(names, ", ")))
	}
	return sb.String()
}
