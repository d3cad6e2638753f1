// Package protocol defines the JSON wire shapes of the client/server verb
// protocol. Every frame is one JSON document carrying a "verb" field; the
// remaining fields depend on the verb.
package protocol

import (
	"github.com/byngosink/byngosink/internal/boards"
)

// Client verbs.
const (
	VerbList          = "LIST"
	VerbGetGames      = "GET_GAMES"
	VerbGetGenerators = "GET_GENERATORS"
	VerbGetBoards     = "GET_BOARDS"
	VerbOpen          = "OPEN"
	VerbJoin          = "JOIN"
	VerbRejoin        = "REJOIN"
	VerbExit          = "EXIT"
	VerbCreateTeam    = "CREATE_TEAM"
	VerbJoinTeam      = "JOIN_TEAM"
	VerbLeaveTeam     = "LEAVE_TEAM"
	VerbMark          = "MARK"
	VerbUnmark        = "UNMARK"
	VerbSpectate      = "SPECTATE"
	VerbTimelapse     = "TIMELAPSE"
)

// Server verbs.
const (
	VerbListed      = "LISTED"
	VerbGames       = "GAMES"
	VerbGenerators  = "GENERATORS"
	VerbBoards      = "BOARDS"
	VerbOpened      = "OPENED"
	VerbJoined      = "JOINED"
	VerbRejoined    = "REJOINED"
	VerbTeamCreated = "TEAM_CREATED"
	VerbTeamJoined  = "TEAM_JOINED"
	VerbTeamLeft    = "TEAM_LEFT"
	VerbMarked      = "MARKED"
	VerbUnmarked    = "UNMARKED"
	VerbUpdate      = "UPDATE"
	VerbMembers     = "MEMBERS"
	VerbError       = "ERROR"
	VerbNotFound    = "NOTFOUND"
	VerbNoAuth      = "NOAUTH"
	VerbNoTeam      = "NOTEAM"
	VerbNoMark      = "NOMARK"
)

// Message is the decoded shape of any client frame: the verb plus the union
// of every verb's fields. GoalID carries the cell index for MARK/UNMARK.
type Message struct {
	Verb     string `json:"verb"`
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
	RoomName string `json:"roomName"`
	Game     string `json:"game"`
	Gen      string `json:"generator"`
	Board    string `json:"board"`
	Seed     string `json:"seed"`
	Name     string `json:"name"`
	Colour   string `json:"colour"`
	TeamID   string `json:"teamId"`
	GoalID   int    `json:"goalId"`
}

// RoomInfo is one LISTED entry.
type RoomInfo struct {
	Name    string `json:"name"`
	Game    string `json:"game"`
	Board   string `json:"board"`
	Variant string `json:"variant"`
	Count   int    `json:"count"`
}

// GeneratorInfo is one GENERATORS entry. Small flags pools too small for the
// 13x13 variants.
type GeneratorInfo struct {
	Name  string `json:"name"`
	Small bool   `json:"small"`
}

// UserView is the roster entry of one user.
type UserView struct {
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
	TeamID    string `json:"teamId,omitempty"`
}

// TeamView is the roster entry of one team.
type TeamView struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Colour  string     `json:"colour"`
	Members []UserView `json:"members"`
}

type Listed struct {
	Verb string              `json:"verb"`
	List map[string]RoomInfo `json:"list"`
}

type Games struct {
	Verb  string   `json:"verb"`
	Games []string `json:"games"`
}

type Generators struct {
	Verb       string          `json:"verb"`
	Game       string          `json:"game"`
	Generators []GeneratorInfo `json:"generators"`
}

type Boards struct {
	Verb   string   `json:"verb"`
	Boards []string `json:"boards"`
}

type Opened struct {
	Verb   string `json:"verb"`
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

type Joined struct {
	Verb     string      `json:"verb"`
	UserID   string      `json:"userId"`
	RoomName string      `json:"roomName"`
	BoardMin boards.View `json:"boardMin"`
}

type Rejoined struct {
	Verb     string      `json:"verb"`
	RoomName string      `json:"roomName"`
	BoardMin boards.View `json:"boardMin"`
}

type TeamCreated struct {
	Verb   string `json:"verb"`
	TeamID string `json:"teamId"`
}

type Marked struct {
	Verb   string `json:"verb"`
	GoalID int    `json:"goalId"`
}

type Unmarked struct {
	Verb   string `json:"verb"`
	GoalID int    `json:"goalId"`
}

type Timelapse struct {
	Verb   string             `json:"verb"`
	Events []boards.MarkEvent `json:"events"`
}

// Update carries a board projection shaped for the recipient's spectate
// level, plus the team colour map for rendering.
type Update struct {
	Verb        string            `json:"verb"`
	Board       boards.View       `json:"board"`
	TeamColours map[string]string `json:"teamColours"`
}

// Members carries the full user and team rosters.
type Members struct {
	Verb    string              `json:"verb"`
	Members []UserView          `json:"members"`
	Teams   map[string]TeamView `json:"teams"`
}

type Error struct {
	Verb    string `json:"verb"`
	Message string `json:"message"`
}

// Status is a bare verb-only frame (TEAM_JOINED, NOTFOUND, NOAUTH, ...).
type Status struct {
	Verb string `json:"verb"`
}

func NewError(message string) Error { return Error{Verb: VerbError, Message: message} }

func NewStatus(verb string) Status { return Status{Verb: verb} }
