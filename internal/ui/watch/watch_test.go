package watch

import (
	"testing"

	"github.com/byngosink/byngosink/internal/boards"
	"github.com/byngosink/byngosink/internal/goals"
	"github.com/byngosink/byngosink/internal/protocol"
	"github.com/stretchr/testify/assert"
)

func TestLobby(t *testing.T) {
	assert.Contains(t, Lobby(nil), "No open rooms")

	out := Lobby(map[string]protocol.RoomInfo{
		"id-1": {Name: "fun", Game: "testgame", Board: "Lockout", Variant: "All", Count: 2},
	})
	assert.Contains(t, out, "fun")
	assert.Contains(t, out, "id-1")
}

func TestBoardRendersFogAndMarks(t *testing.T) {
	view := boards.View{
		Type:          "Exploration",
		Width:         2,
		Height:        2,
		Game:          "testgame",
		GeneratorName: "All",
		Goals: map[int]goals.View{
			0: {Name: "Visible"},
		},
		Marks: map[string][]int{"team-red": {0}},
		Base:  []int{0},
	}
	out := Board(view, map[string]string{"team-red": "#FF0000"})
	assert.Contains(t, out, "Visible")
	assert.Contains(t, out, "·", "unseen cells render as fog")
}

func TestRoster(t *testing.T) {
	out := Roster(protocol.Members{
		Members: []protocol.UserView{
			{Name: "alice", Connected: true},
			{Name: "bob", Connected: false},
		},
		Teams: map[string]protocol.TeamView{
			"t1": {ID: "t1", Name: "Red", Colour: "#FF0000",
				Members: []protocol.UserView{{Name: "alice", Connected: true}}},
		},
	})
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "offline")
	assert.Contains(t, out, "Red")
}
