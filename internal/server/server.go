// Package server runs the websocket sessions: one reader goroutine per
// connection, verb dispatch into the room layer, and per-connection bounded
// outbound queues.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/byngosink/byngosink/internal/boards"
	"github.com/byngosink/byngosink/internal/generators"
	"github.com/byngosink/byngosink/internal/protocol"
	"github.com/byngosink/byngosink/internal/rooms"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
	"k8s.io/klog/v2"
)

// Config carries the server knobs; zero values get sane defaults.
type Config struct {
	Addr     string
	CertFile string
	KeyFile  string

	// Inbound rate limit per connection.
	RateLimit rate.Limit
	RateBurst int
	// Outbound frames buffered per connection.
	QueueSize int
}

const (
	defaultRateLimit = rate.Limit(20)
	defaultRateBurst = 40
	defaultQueueSize = 64

	// smallPool flags generator pools that cannot fill a 13x13 board.
	smallPool = 169
)

// Server owns the room registry and the catalog library and serves the verb
// protocol over websockets.
type Server struct {
	cfg      Config
	lib      *generators.Library
	registry *rooms.Registry
	upgrader websocket.Upgrader
}

func New(cfg Config, lib *generators.Library, registry *rooms.Registry) *Server {
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = defaultQueueSize
	}
	return &Server{
		cfg:      cfg,
		lib:      lib,
		registry: registry,
		upgrader: websocket.Upgrader{
			// Opaque ids are the only auth; origins are not restricted.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ListenAndServe serves until the context is cancelled, with TLS when both
// certificate and key are configured.
func (s *Server) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWS)
	srv := &http.Server{Addr: s.cfg.Addr, Handler: mux}

	errc := make(chan error, 1)
	go func() {
		if s.cfg.CertFile != "" && s.cfg.KeyFile != "" {
			klog.Infof("Listening on wss://%s", s.cfg.Addr)
			errc <- srv.ListenAndServeTLS(s.cfg.CertFile, s.cfg.KeyFile)
		} else {
			klog.Infof("Listening on ws://%s", s.cfg.Addr)
			errc <- srv.ListenAndServe()
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errc:
		return errors.Wrap(err, "websocket listener")
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		klog.Warningf("Upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}
	c := newConn(ws, s.cfg.QueueSize)
	go c.writeLoop()
	s.session(c)
}

// session reads frames in arrival order until the socket closes, then
// detaches the connection from any user holding it.
func (s *Server) session(c *conn) {
	klog.Infof("New websocket connected from %s", c.RemoteAddr())
	limiter := rate.NewLimiter(s.cfg.RateLimit, s.cfg.RateBurst)
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			break
		}
		if !limiter.Allow() {
			c.Send(protocol.NewError("rate limit exceeded"))
			continue
		}
		s.Dispatch(c, raw)
	}
	klog.Infof("Websocket from %s disconnected", c.RemoteAddr())
	c.close()
	for _, room := range s.registry.Rooms() {
		if room.Detach(c) {
			room.AlertPlayerChanges()
		}
	}
}

type handler func(s *Server, c rooms.Conn, msg protocol.Message)

var handlers = map[string]handler{
	protocol.VerbList:          (*Server).list,
	protocol.VerbGetGames:      (*Server).getGames,
	protocol.VerbGetGenerators: (*Server).getGenerators,
	protocol.VerbGetBoards:     (*Server).getBoards,
	protocol.VerbOpen:          (*Server).open,
	protocol.VerbJoin:          (*Server).join,
	protocol.VerbRejoin:        (*Server).rejoin,
	protocol.VerbExit:          (*Server).exit,
	protocol.VerbCreateTeam:    (*Server).createTeam,
	protocol.VerbJoinTeam:      (*Server).joinTeam,
	protocol.VerbLeaveTeam:     (*Server).leaveTeam,
	protocol.VerbMark:          (*Server).mark,
	protocol.VerbUnmark:        (*Server).unmark,
	protocol.VerbSpectate:      (*Server).spectate,
	protocol.VerbTimelapse:     (*Server).timelapse,
}

// Dispatch routes one raw inbound frame. Malformed JSON gets an ERROR,
// unknown verbs are logged and dropped, and a panicking handler is recovered
// so the session survives.
func (s *Server) Dispatch(c rooms.Conn, raw []byte) {
	defer func() {
		if r := recover(); r != nil {
			klog.Errorf("Handler panic for %s: %v\n%s", c.RemoteAddr(), r, debug.Stack())
			c.Send(protocol.NewError("internal server error"))
		}
	}()

	klog.V(1).Infof("%s | %s", c.RemoteAddr(), raw)
	var msg protocol.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.Send(protocol.NewError("malformed message: " + err.Error()))
		return
	}
	h, ok := handlers[msg.Verb]
	if !ok {
		klog.Warningf("Bad verb received | %q", msg.Verb)
		return
	}
	h(s, c, msg)
}

// fail translates a room-layer error into its wire verb.
func fail(c rooms.Conn, err error) {
	switch {
	case errors.Is(err, rooms.ErrUnknownUser), errors.Is(err, rooms.ErrNotSpectator):
		c.Send(protocol.NewStatus(protocol.VerbNoAuth))
	case errors.Is(err, rooms.ErrUnknownTeam):
		c.Send(protocol.NewStatus(protocol.VerbNotFound))
	case errors.Is(err, rooms.ErrNoTeam):
		c.Send(protocol.NewStatus(protocol.VerbNoTeam))
	case errors.Is(err, rooms.ErrRejected):
		c.Send(protocol.NewStatus(protocol.VerbNoMark))
	default:
		klog.Errorf("Unhandled room error: %+v", err)
		c.Send(protocol.NewError(err.Error()))
	}
}

// room resolves the roomId field, answering NOTFOUND itself when it misses.
func (s *Server) room(c rooms.Conn, msg protocol.Message) (*rooms.Room, bool) {
	room, ok := s.registry.Get(msg.RoomID)
	if !ok {
		c.Send(protocol.NewStatus(protocol.VerbNotFound))
		return nil, false
	}
	return room, true
}

func (s *Server) list(c rooms.Conn, _ protocol.Message) {
	c.Send(protocol.Listed{Verb: protocol.VerbListed, List: s.registry.List()})
}

func (s *Server) getGames(c rooms.Conn, _ protocol.Message) {
	c.Send(protocol.Games{Verb: protocol.VerbGames, Games: s.lib.Games()})
}

func (s *Server) getGenerators(c rooms.Conn, msg protocol.Message) {
	gens, ok := s.lib.Generators(msg.Game)
	if !ok {
		c.Send(protocol.NewStatus(protocol.VerbNotFound))
		return
	}
	infos := make([]protocol.GeneratorInfo, len(gens))
	for i, gen := range gens {
		infos[i] = protocol.GeneratorInfo{Name: gen.Name(), Small: gen.Count() < smallPool}
	}
	c.Send(protocol.Generators{Verb: protocol.VerbGenerators, Game: msg.Game, Generators: infos})
}

func (s *Server) getBoards(c rooms.Conn, _ protocol.Message) {
	c.Send(protocol.Boards{Verb: protocol.VerbBoards, Boards: boards.Names()})
}

func (s *Server) open(c rooms.Conn, msg protocol.Message) {
	gen, ok := s.lib.Lookup(msg.Game, msg.Gen)
	if !ok {
		c.Send(protocol.NewStatus(protocol.VerbNotFound))
		return
	}
	room, err := rooms.New(msg.RoomName, gen, msg.Board, msg.Seed)
	if err != nil {
		klog.Errorf("Opening room %q failed: %+v", msg.RoomName, err)
		c.Send(protocol.NewError(err.Error()))
		return
	}
	userID, _ := room.AddUser(msg.Username, c)
	s.registry.Add(room)
	klog.Infof("Opened room %q (%s) for %s", msg.RoomName, room.ID, msg.Username)
	c.Send(protocol.Opened{Verb: protocol.VerbOpened, RoomID: room.ID, UserID: userID})
}

func (s *Server) join(c rooms.Conn, msg protocol.Message) {
	room, ok := s.room(c, msg)
	if !ok {
		return
	}
	userID, min := room.AddUser(msg.Username, c)
	c.Send(protocol.Joined{
		Verb:     protocol.VerbJoined,
		UserID:   userID,
		RoomName: room.Name,
		BoardMin: min,
	})
	room.AlertPlayerChanges()
}

func (s *Server) rejoin(c rooms.Conn, msg protocol.Message) {
	room, ok := s.room(c, msg)
	if !ok {
		return
	}
	min, err := room.Rejoin(msg.UserID, c)
	if err != nil {
		fail(c, err)
		return
	}
	c.Send(protocol.Rejoined{Verb: protocol.VerbRejoined, RoomName: room.Name, BoardMin: min})
	room.AlertPlayerChanges()
}

func (s *Server) exit(c rooms.Conn, msg protocol.Message) {
	room, ok := s.room(c, msg)
	if !ok {
		return
	}
	if err := room.RemoveUser(msg.UserID); err != nil {
		fail(c, err)
		return
	}
	room.AlertPlayerChanges()
}

func (s *Server) createTeam(c rooms.Conn, msg protocol.Message) {
	room, ok := s.room(c, msg)
	if !ok {
		return
	}
	teamID, err := room.CreateTeam(c, msg.Name, msg.Colour)
	if err != nil {
		fail(c, err)
		return
	}
	c.Send(protocol.TeamCreated{Verb: protocol.VerbTeamCreated, TeamID: teamID})
	room.AlertPlayerChanges()
}

func (s *Server) joinTeam(c rooms.Conn, msg protocol.Message) {
	room, ok := s.room(c, msg)
	if !ok {
		return
	}
	if err := room.JoinTeam(c, msg.TeamID); err != nil {
		fail(c, err)
		return
	}
	c.Send(protocol.NewStatus(protocol.VerbTeamJoined))
	room.AlertPlayerChanges()
}

func (s *Server) leaveTeam(c rooms.Conn, msg protocol.Message) {
	room, ok := s.room(c, msg)
	if !ok {
		return
	}
	if err := room.LeaveTeam(c); err != nil {
		fail(c, err)
		return
	}
	c.Send(protocol.NewStatus(protocol.VerbTeamLeft))
	room.AlertPlayerChanges()
}

func (s *Server) mark(c rooms.Conn, msg protocol.Message) {
	room, ok := s.room(c, msg)
	if !ok {
		return
	}
	if err := room.Mark(c, msg.GoalID); err != nil {
		fail(c, err)
		return
	}
	c.Send(protocol.Marked{Verb: protocol.VerbMarked, GoalID: msg.GoalID})
	room.AlertBoardChanges()
}

func (s *Server) unmark(c rooms.Conn, msg protocol.Message) {
	room, ok := s.room(c, msg)
	if !ok {
		return
	}
	if err := room.Unmark(c, msg.GoalID); err != nil {
		fail(c, err)
		return
	}
	c.Send(protocol.Unmarked{Verb: protocol.VerbUnmarked, GoalID: msg.GoalID})
	room.AlertBoardChanges()
}

func (s *Server) spectate(c rooms.Conn, msg protocol.Message) {
	room, ok := s.room(c, msg)
	if !ok {
		return
	}
	if _, err := room.CycleSpectate(c); err != nil {
		fail(c, err)
		return
	}
	if err := room.SendBoard(c); err != nil {
		fail(c, err)
	}
}

func (s *Server) timelapse(c rooms.Conn, msg protocol.Message) {
	room, ok := s.room(c, msg)
	if !ok {
		return
	}
	events, err := room.Timelapse(c)
	if err != nil {
		fail(c, err)
		return
	}
	c.Send(protocol.Timelapse{Verb: protocol.VerbTimelapse, Events: events})
}
