package server

import (
	"fmt"
	"testing"

	"github.com/byngosink/byngosink/internal/generators"
	"github.com/byngosink/byngosink/internal/goals"
	"github.com/byngosink/byngosink/internal/protocol"
	"github.com/byngosink/byngosink/internal/rooms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	addr   string
	frames []any
}

func (c *fakeConn) Send(v any) bool {
	c.frames = append(c.frames, v)
	return true
}

func (c *fakeConn) RemoteAddr() string { return c.addr }

func (c *fakeConn) last(t *testing.T) any {
	t.Helper()
	require.NotEmpty(t, c.frames, "expected a reply frame")
	return c.frames[len(c.frames)-1]
}

func (c *fakeConn) lastVerb(t *testing.T) string {
	switch f := c.last(t).(type) {
	case protocol.Status:
		return f.Verb
	case protocol.Error:
		return f.Verb
	case protocol.Listed:
		return f.Verb
	case protocol.Games:
		return f.Verb
	case protocol.Generators:
		return f.Verb
	case protocol.Boards:
		return f.Verb
	case protocol.Opened:
		return f.Verb
	case protocol.Joined:
		return f.Verb
	case protocol.Rejoined:
		return f.Verb
	case protocol.TeamCreated:
		return f.Verb
	case protocol.Marked:
		return f.Verb
	case protocol.Unmarked:
		return f.Verb
	case protocol.Timelapse:
		return f.Verb
	case protocol.Update:
		return f.Verb
	case protocol.Members:
		return f.Verb
	default:
		t.Fatalf("unexpected frame %T", f)
		return ""
	}
}

func testServer(t *testing.T) *Server {
	t.Helper()
	docs := make(map[string]goals.Doc, 200)
	for i := 0; i < 200; i++ {
		id := fmt.Sprintf("g%03d", i)
		docs[id] = goals.Doc{Name: "Goal " + id}
	}
	gen, err := generators.New("testgame", "lineup", generators.Config{
		Type:  generators.TypeFixed,
		Goals: docs,
	})
	require.NoError(t, err)
	lib := generators.NewLibrary(map[string]map[string]generators.Generator{
		"testgame": {"lineup": gen},
	})
	return New(Config{}, lib, rooms.NewRegistry())
}

func send(s *Server, c rooms.Conn, format string, args ...any) {
	s.Dispatch(c, []byte(fmt.Sprintf(format, args...)))
}

func TestDispatchMalformedAndUnknown(t *testing.T) {
	s := testServer(t)
	c := &fakeConn{addr: "a"}

	s.Dispatch(c, []byte("{not json"))
	assert.Equal(t, protocol.VerbError, c.lastVerb(t))

	frames := len(c.frames)
	send(s, c, `{"verb": "DANCE"}`)
	assert.Len(t, c.frames, frames, "unknown verbs are dropped silently")
}

func TestMetaVerbs(t *testing.T) {
	s := testServer(t)
	c := &fakeConn{addr: "a"}

	send(s, c, `{"verb": "LIST"}`)
	listed := c.last(t).(protocol.Listed)
	assert.Empty(t, listed.List)

	send(s, c, `{"verb": "GET_GAMES"}`)
	games := c.last(t).(protocol.Games)
	assert.Equal(t, []string{"testgame"}, games.Games)

	send(s, c, `{"verb": "GET_GENERATORS", "game": "testgame"}`)
	gens := c.last(t).(protocol.Generators)
	require.Len(t, gens.Generators, 1)
	assert.Equal(t, protocol.GeneratorInfo{Name: "lineup", Small: false}, gens.Generators[0])

	send(s, c, `{"verb": "GET_GENERATORS", "game": "nope"}`)
	assert.Equal(t, protocol.VerbNotFound, c.lastVerb(t))

	send(s, c, `{"verb": "GET_BOARDS"}`)
	boardsMsg := c.last(t).(protocol.Boards)
	assert.Contains(t, boardsMsg.Boards, "Invasion")
}

func openRoom(t *testing.T, s *Server, c *fakeConn) protocol.Opened {
	t.Helper()
	send(s, c, `{"verb": "OPEN", "username": "alice", "roomName": "fun", "game": "testgame", "generator": "lineup", "board": "Lockout", "seed": "s"}`)
	opened, ok := c.last(t).(protocol.Opened)
	require.True(t, ok, "got %#v", c.last(t))
	return opened
}

func TestOpenAndList(t *testing.T) {
	s := testServer(t)
	c := &fakeConn{addr: "a"}

	send(s, c, `{"verb": "OPEN", "username": "alice", "roomName": "fun", "game": "nope", "generator": "lineup", "board": "Lockout", "seed": "s"}`)
	assert.Equal(t, protocol.VerbNotFound, c.lastVerb(t))

	send(s, c, `{"verb": "OPEN", "username": "alice", "roomName": "fun", "game": "testgame", "generator": "lineup", "board": "Chaos", "seed": "s"}`)
	assert.Equal(t, protocol.VerbError, c.lastVerb(t))

	opened := openRoom(t, s, c)
	assert.NotEmpty(t, opened.RoomID)
	assert.NotEmpty(t, opened.UserID)

	send(s, c, `{"verb": "LIST"}`)
	listed := c.last(t).(protocol.Listed)
	require.Contains(t, listed.List, opened.RoomID)
	assert.Equal(t, "fun", listed.List[opened.RoomID].Name)
	assert.Equal(t, 1, listed.List[opened.RoomID].Count)
}

func TestJoinTeamsAndMarks(t *testing.T) {
	s := testServer(t)
	alice := &fakeConn{addr: "a"}
	opened := openRoom(t, s, alice)

	bob := &fakeConn{addr: "b"}
	send(s, bob, `{"verb": "JOIN", "roomId": "nope", "username": "bob"}`)
	assert.Equal(t, protocol.VerbNotFound, bob.lastVerb(t))

	send(s, bob, `{"verb": "JOIN", "roomId": %q, "username": "bob"}`, opened.RoomID)
	// Bob got JOINED, then both got the roster broadcast.
	require.GreaterOrEqual(t, len(bob.frames), 2)
	joined, ok := bob.frames[len(bob.frames)-2].(protocol.Joined)
	require.True(t, ok, "got %#v", bob.frames)
	assert.Equal(t, "fun", joined.RoomName)
	assert.Equal(t, "Lockout", joined.BoardMin.Type)
	assert.Equal(t, protocol.VerbMembers, bob.lastVerb(t))
	assert.Equal(t, protocol.VerbMembers, alice.lastVerb(t))

	// Marking without a team is NOTEAM; an unknown transport is NOAUTH.
	send(s, bob, `{"verb": "MARK", "roomId": %q, "goalId": 7}`, opened.RoomID)
	assert.Equal(t, protocol.VerbNoTeam, bob.lastVerb(t))
	ghost := &fakeConn{addr: "g"}
	send(s, ghost, `{"verb": "MARK", "roomId": %q, "goalId": 7}`, opened.RoomID)
	assert.Equal(t, protocol.VerbNoAuth, ghost.lastVerb(t))

	send(s, bob, `{"verb": "CREATE_TEAM", "roomId": %q, "name": "Red", "colour": "#FF0000"}`, opened.RoomID)
	created, ok := bob.frames[len(bob.frames)-2].(protocol.TeamCreated)
	require.True(t, ok, "got %#v", bob.frames)

	send(s, alice, `{"verb": "JOIN_TEAM", "roomId": %q, "teamId": "nope"}`, opened.RoomID)
	assert.Equal(t, protocol.VerbNotFound, alice.lastVerb(t))
	send(s, alice, `{"verb": "JOIN_TEAM", "roomId": %q, "teamId": %q}`, opened.RoomID, created.TeamID)
	joinedTeam, ok := alice.frames[len(alice.frames)-2].(protocol.Status)
	require.True(t, ok)
	assert.Equal(t, protocol.VerbTeamJoined, joinedTeam.Verb)

	// A successful mark answers MARKED and broadcasts the board.
	send(s, bob, `{"verb": "MARK", "roomId": %q, "goalId": 7}`, opened.RoomID)
	marked, ok := bob.frames[len(bob.frames)-2].(protocol.Marked)
	require.True(t, ok, "got %#v", bob.frames)
	assert.Equal(t, 7, marked.GoalID)
	update, ok := bob.last(t).(protocol.Update)
	require.True(t, ok)
	assert.Equal(t, map[string]string{created.TeamID: "#FF0000"}, update.TeamColours)
	assert.Equal(t, protocol.VerbUpdate, alice.lastVerb(t))

	// Lockout rejects the double mark with NOMARK, no broadcast.
	frames := len(alice.frames)
	send(s, bob, `{"verb": "MARK", "roomId": %q, "goalId": 7}`, opened.RoomID)
	assert.Equal(t, protocol.VerbNoMark, bob.lastVerb(t))
	assert.Len(t, alice.frames, frames)

	send(s, bob, `{"verb": "UNMARK", "roomId": %q, "goalId": 7}`, opened.RoomID)
	unmarked, ok := bob.frames[len(bob.frames)-2].(protocol.Unmarked)
	require.True(t, ok)
	assert.Equal(t, 7, unmarked.GoalID)

	send(s, bob, `{"verb": "LEAVE_TEAM", "roomId": %q}`, opened.RoomID)
	left, ok := bob.frames[len(bob.frames)-2].(protocol.Status)
	require.True(t, ok)
	assert.Equal(t, protocol.VerbTeamLeft, left.Verb)
}

func TestSpectateAndTimelapse(t *testing.T) {
	s := testServer(t)
	alice := &fakeConn{addr: "a"}
	opened := openRoom(t, s, alice)
	send(s, alice, `{"verb": "CREATE_TEAM", "roomId": %q, "name": "Red", "colour": "#FF0000"}`, opened.RoomID)
	send(s, alice, `{"verb": "MARK", "roomId": %q, "goalId": 7}`, opened.RoomID)

	eve := &fakeConn{addr: "e"}
	send(s, eve, `{"verb": "JOIN", "roomId": %q, "username": "eve"}`, opened.RoomID)

	send(s, eve, `{"verb": "TIMELAPSE", "roomId": %q}`, opened.RoomID)
	assert.Equal(t, protocol.VerbNoAuth, eve.lastVerb(t), "history is spectator-only")

	send(s, eve, `{"verb": "SPECTATE", "roomId": %q}`, opened.RoomID)
	update, ok := eve.last(t).(protocol.Update)
	require.True(t, ok, "got %#v", eve.last(t))
	assert.Equal(t, protocol.VerbUpdate, update.Verb)

	send(s, eve, `{"verb": "TIMELAPSE", "roomId": %q}`, opened.RoomID)
	lapse, ok := eve.last(t).(protocol.Timelapse)
	require.True(t, ok)
	require.Len(t, lapse.Events, 1)
	assert.Equal(t, 7, lapse.Events[0].Cell)
}

func TestExit(t *testing.T) {
	s := testServer(t)
	alice := &fakeConn{addr: "a"}
	opened := openRoom(t, s, alice)
	bob := &fakeConn{addr: "b"}
	send(s, bob, `{"verb": "JOIN", "roomId": %q, "username": "bob"}`, opened.RoomID)

	send(s, alice, `{"verb": "EXIT", "roomId": %q, "userId": "nope"}`, opened.RoomID)
	assert.Equal(t, protocol.VerbNoAuth, alice.lastVerb(t))

	frames := len(bob.frames)
	send(s, alice, `{"verb": "EXIT", "roomId": %q, "userId": %q}`, opened.RoomID, opened.UserID)
	require.Greater(t, len(bob.frames), frames, "exit must broadcast the roster")
	members := bob.last(t).(protocol.Members)
	require.Len(t, members.Members, 1)
	assert.Equal(t, "bob", members.Members[0].Name)
}

func TestRejoin(t *testing.T) {
	s := testServer(t)
	alice := &fakeConn{addr: "a"}
	opened := openRoom(t, s, alice)

	later := &fakeConn{addr: "a2"}
	send(s, later, `{"verb": "REJOIN", "roomId": %q, "userId": "nope"}`, opened.RoomID)
	assert.Equal(t, protocol.VerbNoAuth, later.lastVerb(t))

	send(s, later, `{"verb": "REJOIN", "roomId": %q, "userId": %q}`, opened.RoomID, opened.UserID)
	rejoined, ok := later.frames[len(later.frames)-2].(protocol.Rejoined)
	require.True(t, ok, "got %#v", later.frames)
	assert.Equal(t, "fun", rejoined.RoomName)
	assert.Equal(t, protocol.VerbMembers, later.lastVerb(t))
}
