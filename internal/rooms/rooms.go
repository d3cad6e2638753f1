// Package rooms implements the room aggregate: users, teams, the live board,
// and the fan-out of state changes to connected transports.
//
// Every exported Room method takes the room mutex, so board mutation, roster
// mutation and the broadcasts they trigger are serialized per room. Methods
// identify the acting user by transport, mirroring the wire protocol, which
// only authenticates OPEN/JOIN/REJOIN by id.
package rooms

import (
	"sync"
	"time"

	"github.com/byngosink/byngosink/internal/boards"
	"github.com/byngosink/byngosink/internal/generators"
	"github.com/byngosink/byngosink/internal/generics"
	"github.com/byngosink/byngosink/internal/protocol"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	// ErrUnknownUser means the transport or user id maps to no user (NOAUTH).
	ErrUnknownUser = errors.New("unknown user")
	// ErrUnknownTeam means the team id maps to no team (NOTFOUND).
	ErrUnknownTeam = errors.New("unknown team")
	// ErrNoTeam means the action requires team membership (NOTEAM).
	ErrNoTeam = errors.New("user is in no team")
	// ErrNotSpectator guards the spectator-only operations (NOAUTH).
	ErrNotSpectator = errors.New("not a spectator")
	// ErrRejected means the board rules refused the move (NOMARK).
	ErrRejected = errors.New("rejected by board rules")
)

// Conn is the transport handle a user sends through. Send must not block:
// the caller may hold a room mutex. It reports false when the frame could
// not be queued, which detaches the transport from its user.
type Conn interface {
	Send(v any) bool
	RemoteAddr() string
}

// User is one room participant. The record outlives its transport so the
// user can REJOIN after a drop; Conn is nil while detached.
type User struct {
	ID       string
	Name     string
	Conn     Conn
	TeamID   string
	Spectate int
}

// Team is one coloured team. Members holds user ids in join order.
type Team struct {
	ID      string
	Name    string
	Colour  string
	Members []string
}

// Room aggregates the users, teams and board of one game in progress.
type Room struct {
	ID      string
	Name    string
	Created time.Time

	mu         sync.Mutex
	touched    time.Time
	users      map[string]*User
	teams      map[string]*Team
	spectators *Team
	board      *boards.Board
}

// New creates a room with a freshly generated board. An empty seed is
// replaced by a random UUID string.
func New(name string, gen generators.Generator, variant, seed string) (*Room, error) {
	r := &Room{
		ID:      uuid.NewString(),
		Name:    name,
		Created: time.Now(),
		users:   make(map[string]*User),
		teams:   make(map[string]*Team),
		spectators: &Team{
			ID:     uuid.NewString(),
			Name:   "spectator",
			Colour: "#FFFFFF",
		},
	}
	if err := r.GenerateBoard(gen, variant, seed); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Room) touch() { r.touched = time.Now() }

// Touched is the time of the last mutation, for idle reaping.
func (r *Room) Touched() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.touched
}

// GenerateBoard builds a new board and atomically replaces the current one.
func (r *Room) GenerateBoard(gen generators.Generator, variant, seed string) error {
	if seed == "" {
		seed = uuid.NewString()
	}
	board, err := boards.New(variant, gen, seed)
	if err != nil {
		return errors.WithMessagef(err, "room %q", r.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	board.RoomID = r.ID
	r.board = board
	r.touch()
	return nil
}

// Info is the LISTED projection. The second result is false for empty rooms,
// which the listing omits.
func (r *Room) Info() (protocol.RoomInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.users) == 0 {
		return protocol.RoomInfo{}, false
	}
	return protocol.RoomInfo{
		Name:    r.Name,
		Game:    r.board.Game,
		Board:   r.board.Name(),
		Variant: r.board.GeneratorName,
		Count:   len(r.users),
	}, true
}

// UserCount is the number of user records, attached or not.
func (r *Room) UserCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

// AddUser creates a user attached to the transport and returns its id plus
// the board's minimum view for the join reply.
func (r *Room) AddUser(name string, conn Conn) (string, boards.View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := &User{ID: uuid.NewString(), Name: name, Conn: conn}
	r.users[u.ID] = u
	r.touch()
	return u.ID, r.board.MinimumView()
}

// Rejoin reattaches a transport to an existing user record.
func (r *Room) Rejoin(userID string, conn Conn) (boards.View, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return boards.View{}, ErrUnknownUser
	}
	u.Conn = conn
	r.touch()
	return r.board.MinimumView(), nil
}

// RemoveUser deletes the user record and its team memberships. This is the
// only removal path; disconnects merely detach.
func (r *Room) RemoveUser(userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return ErrUnknownUser
	}
	delete(r.users, userID)
	if u.TeamID != "" {
		if team, ok := r.teams[u.TeamID]; ok {
			team.drop(userID)
		}
	}
	r.spectators.drop(userID)
	r.touch()
	return nil
}

func (t *Team) drop(userID string) {
	for i, id := range t.Members {
		if id == userID {
			t.Members = append(t.Members[:i], t.Members[i+1:]...)
			return
		}
	}
}

// userByConn finds the user the transport is attached to.
func (r *Room) userByConn(conn Conn) (*User, bool) {
	for _, u := range r.users {
		if u.Conn == conn {
			return u, true
		}
	}
	return nil, false
}

// CreateTeam creates a team and auto-joins the acting user.
func (r *Room) CreateTeam(conn Conn, name, colour string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.userByConn(conn)
	if !ok {
		return "", ErrUnknownUser
	}
	team := &Team{ID: uuid.NewString(), Name: name, Colour: colour}
	r.teams[team.ID] = team
	r.moveToTeam(u, team)
	r.touch()
	return team.ID, nil
}

// JoinTeam moves the acting user to the team, leaving any previous team and
// switching spectating off.
func (r *Room) JoinTeam(conn Conn, teamID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.userByConn(conn)
	if !ok {
		return ErrUnknownUser
	}
	team, ok := r.teams[teamID]
	if !ok {
		return ErrUnknownTeam
	}
	r.moveToTeam(u, team)
	r.touch()
	return nil
}

func (r *Room) moveToTeam(u *User, team *Team) {
	if u.TeamID != "" {
		if prev, ok := r.teams[u.TeamID]; ok {
			prev.drop(u.ID)
		}
	}
	r.spectators.drop(u.ID)
	u.Spectate = 0
	u.TeamID = team.ID
	team.Members = append(team.Members, u.ID)
}

// LeaveTeam removes the acting user from its current team. Empty teams are
// kept; their colour stays on the board's marks.
func (r *Room) LeaveTeam(conn Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.userByConn(conn)
	if !ok {
		return ErrUnknownUser
	}
	if u.TeamID == "" {
		return ErrNoTeam
	}
	if team, ok := r.teams[u.TeamID]; ok {
		team.drop(u.ID)
	}
	u.TeamID = ""
	r.touch()
	return nil
}

// CycleSpectate advances the acting user's spectate level: 0 joins the
// spectators team, 1 upgrades to the omniscient view, 2 stays. Returns the
// new level.
func (r *Room) CycleSpectate(conn Conn) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.userByConn(conn)
	if !ok {
		return 0, ErrUnknownUser
	}
	switch u.Spectate {
	case 0:
		u.Spectate = 1
		r.spectators.Members = append(r.spectators.Members, u.ID)
	case 1:
		u.Spectate = 2
	}
	r.touch()
	return u.Spectate, nil
}

// Mark applies a mark for the acting user's team.
func (r *Room) Mark(conn Conn, cell int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.userByConn(conn)
	if !ok {
		return ErrUnknownUser
	}
	if u.TeamID == "" {
		return ErrNoTeam
	}
	if !r.board.Mark(cell, u.TeamID) {
		return errors.Wrapf(ErrRejected, "mark %d for team %s", cell, u.TeamID)
	}
	r.touch()
	return nil
}

// Unmark withdraws a mark for the acting user's team.
func (r *Room) Unmark(conn Conn, cell int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.userByConn(conn)
	if !ok {
		return ErrUnknownUser
	}
	if u.TeamID == "" {
		return ErrNoTeam
	}
	if !r.board.Unmark(cell, u.TeamID) {
		return errors.Wrapf(ErrRejected, "unmark %d for team %s", cell, u.TeamID)
	}
	r.touch()
	return nil
}

// Timelapse returns the mark history. Spectators only: players must not see
// where the other teams have been.
func (r *Room) Timelapse(conn Conn) ([]boards.MarkEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.userByConn(conn)
	if !ok {
		return nil, ErrUnknownUser
	}
	if u.Spectate == 0 {
		return nil, ErrNotSpectator
	}
	return r.board.History(), nil
}

// Detach clears the transport from whichever user holds it and reports
// whether any user was affected.
func (r *Room) Detach(conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.userByConn(conn)
	if !ok {
		return false
	}
	u.Conn = nil
	return true
}

// SendBoard sends the acting user a board update shaped for its current
// spectate level, without broadcasting to the rest of the room.
func (r *Room) SendBoard(conn Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.userByConn(conn)
	if !ok {
		return ErrUnknownUser
	}
	var view boards.View
	switch u.Spectate {
	case 0:
		view = r.board.TeamView(u.TeamID)
	case 1:
		view = r.board.SpectatorView()
	default:
		view = r.board.FullView()
	}
	r.send(u, protocol.Update{Verb: protocol.VerbUpdate, Board: view, TeamColours: r.teamColours()})
	return nil
}

func (r *Room) teamColours() map[string]string {
	colours := make(map[string]string, len(r.teams))
	for id, team := range r.teams {
		colours[id] = team.Colour
	}
	return colours
}

// AlertBoardChanges sends every attached user a board update shaped for its
// spectate level.
func (r *Room) AlertBoardChanges() {
	r.mu.Lock()
	defer r.mu.Unlock()
	colours := r.teamColours()
	for _, u := range r.users {
		if u.Conn == nil {
			continue
		}
		var view boards.View
		switch u.Spectate {
		case 0:
			view = r.board.TeamView(u.TeamID)
		case 1:
			view = r.board.SpectatorView()
		default:
			view = r.board.FullView()
		}
		r.send(u, protocol.Update{Verb: protocol.VerbUpdate, Board: view, TeamColours: colours})
	}
}

// AlertPlayerChanges broadcasts the user and team rosters to every attached
// user.
func (r *Room) AlertPlayerChanges() {
	r.mu.Lock()
	defer r.mu.Unlock()
	members := make([]protocol.UserView, 0, len(r.users))
	for id := range generics.SortedKeys(r.users) {
		u := r.users[id]
		members = append(members, protocol.UserView{
			Name:      u.Name,
			Connected: u.Conn != nil,
			TeamID:    u.TeamID,
		})
	}
	teams := make(map[string]protocol.TeamView, len(r.teams))
	for id, team := range r.teams {
		teams[id] = r.teamView(team)
	}
	msg := protocol.Members{Verb: protocol.VerbMembers, Members: members, Teams: teams}
	for _, u := range r.users {
		if u.Conn != nil {
			r.send(u, msg)
		}
	}
}

func (r *Room) teamView(team *Team) protocol.TeamView {
	members := make([]protocol.UserView, 0, len(team.Members))
	for _, id := range team.Members {
		u, ok := r.users[id]
		if !ok {
			continue
		}
		members = append(members, protocol.UserView{
			Name:      u.Name,
			Connected: u.Conn != nil,
			TeamID:    u.TeamID,
		})
	}
	return protocol.TeamView{
		ID:      team.ID,
		Name:    team.Name,
		Colour:  team.Colour,
		Members: members,
	}
}

// send queues a frame to the user's transport, detaching it on failure so a
// dead connection cannot wedge future broadcasts.
func (r *Room) send(u *User, v any) {
	if !u.Conn.Send(v) {
		klog.Warningf("Room %s: dropping dead transport of user %s (%s)",
			r.Name, u.Name, u.Conn.RemoteAddr())
		u.Conn = nil
	}
}
