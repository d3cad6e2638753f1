// roomwatch is a terminal client for watching a byngosink server: without a
// room it prints the lobby, with -room it joins as a spectator and renders
// every board and roster update.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/byngosink/byngosink/internal/protocol"
	"github.com/byngosink/byngosink/internal/ui/watch"
	"github.com/gomlx/exceptions"
	"github.com/gorilla/websocket"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"
)

var (
	flagServer = flag.String("server", "ws://localhost:555/", "Websocket address of the byngosink server.")
	flagRoom   = flag.String("room", "", "Room id to watch. Empty lists the lobby instead.")
	flagName   = flag.String("name", "roomwatch", "Username to join the room with.")
	flagFull   = flag.Bool("full", false, "Watch with the omniscient view instead of the spectator view.")
	flagClear  = flag.Bool("clear", true, "Clear the screen between updates.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, *flagServer, nil)
	if err != nil {
		exceptions.Panicf("dialing %q: %v", *flagServer, err)
	}
	defer func() { _ = ws.Close() }()
	go func() {
		<-ctx.Done()
		_ = ws.Close()
	}()

	if *flagRoom == "" {
		printLobby(ws)
		return
	}
	watchRoom(ws)
}

func send(ws *websocket.Conn, v any) {
	must.M(ws.WriteJSON(v))
}

func printLobby(ws *websocket.Conn) {
	send(ws, protocol.Message{Verb: protocol.VerbList})
	for {
		verb, raw := read(ws)
		if verb != protocol.VerbListed {
			klog.V(1).Infof("Skipping %s frame while waiting for the lobby", verb)
			continue
		}
		var listed protocol.Listed
		must.M(json.Unmarshal(raw, &listed))
		watch.PrintCentered(watch.Lobby(listed.List))
		return
	}
}

func watchRoom(ws *websocket.Conn) {
	send(ws, protocol.Message{Verb: protocol.VerbJoin, RoomID: *flagRoom, Username: *flagName})

	// One SPECTATE reaches the spectator view; a second one the full view.
	send(ws, protocol.Message{Verb: protocol.VerbSpectate, RoomID: *flagRoom})
	if *flagFull {
		send(ws, protocol.Message{Verb: protocol.VerbSpectate, RoomID: *flagRoom})
	}

	colours := map[string]string{}
	for {
		verb, raw := read(ws)
		switch verb {
		case protocol.VerbNotFound:
			exceptions.Panicf("room %q not found", *flagRoom)
		case protocol.VerbJoined:
			var joined protocol.Joined
			must.M(json.Unmarshal(raw, &joined))
			klog.Infof("Watching room %q", joined.RoomName)
		case protocol.VerbUpdate:
			var update protocol.Update
			must.M(json.Unmarshal(raw, &update))
			colours = update.TeamColours
			clear()
			watch.PrintCentered(watch.Board(update.Board, colours))
		case protocol.VerbMembers:
			var members protocol.Members
			must.M(json.Unmarshal(raw, &members))
			watch.PrintCentered(watch.Roster(members))
		case protocol.VerbError:
			var errMsg protocol.Error
			must.M(json.Unmarshal(raw, &errMsg))
			klog.Warningf("Server error: %s", errMsg.Message)
		default:
			klog.V(1).Infof("Ignoring %s frame", verb)
		}
	}
}

func clear() {
	if *flagClear {
		fmt.Print("\033[2J\033[H")
	}
}

// read blocks for the next frame and returns its verb and raw bytes. It
// exits the process cleanly when the socket closes.
func read(ws *websocket.Conn) (string, []byte) {
	_, raw, err := ws.ReadMessage()
	if err != nil {
		klog.Exitf("Connection closed: %v", err)
	}
	var probe struct {
		Verb string `json:"verb"`
	}
	must.M(json.Unmarshal(raw, &probe))
	return probe.Verb, raw
}
