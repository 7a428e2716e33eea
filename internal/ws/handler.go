package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/greed-games/greedroulette/internal/engine"
	"github.com/greed-games/greedroulette/internal/hub"
	"github.com/greed-games/greedroulette/internal/lobby"
	"github.com/greed-games/greedroulette/internal/logging"
	"github.com/greed-games/greedroulette/internal/types"
)

const (
	maxPlayerName = 20
	helloTimeout  = 30 * time.Second
	writeTimeout  = 3 * time.Second
)

// pingInterval paces the keepalive probe. A quiet player waiting on another
// spinner sends no frames, so liveness comes from pings, never a read deadline.
var pingInterval = 30 * time.Second

// Handler upgrades to a websocket and binds the connection to a lobby. The
// first frame must be createLobby or joinLobby; everything after that is a
// gameplay command routed through the lobby actor.
func Handler(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// In dev ONLY, you can loosen origin checks:
			// OriginPatterns: []string{"http://localhost:*", "http://127.0.0.1:*"},
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		lb, clientID, created, out, ok := attach(r.Context(), h, conn)
		if !ok {
			return
		}
		// A dropped connection is an implicit leave.
		defer func() { lb.Inbox() <- lobby.Leave{ClientID: clientID} }()

		writeCtx, writeCancel := context.WithCancel(context.Background())
		defer writeCancel()
		go writePump(writeCtx, conn, out, created)
		go pingLoop(writeCtx, conn)

		readLoop(r.Context(), conn, lb, clientID)
	}
}

// attach seats the connection: the hello frame either creates a lobby or
// joins one by code. Returns ok=false when the connection should be dropped.
func attach(ctx context.Context, h *hub.Hub, conn *websocket.Conn) (lb *lobby.Lobby, clientID string, created bool, out chan lobby.OutMsg, ok bool) {
	log := logging.FromContext(ctx)

	helloCtx, cancel := context.WithTimeout(ctx, helloTimeout)
	_, data, err := conn.Read(helloCtx)
	cancel()
	if err != nil {
		return nil, "", false, nil, false
	}

	var cm types.ClientMessage
	if err := json.Unmarshal(data, &cm); err != nil {
		writeError(ctx, conn, "bad json")
		return nil, "", false, nil, false
	}

	switch cm.Type {
	case "createLobby":
		settings := engine.DefaultSettings()
		if cm.Settings != nil {
			settings.Apply(*cm.Settings)
		}
		reply := make(chan hub.CreateReply, 1)
		h.Inbox() <- hub.CreateLobby{Name: cm.LobbyName, Settings: settings, Reply: reply}
		rep := <-reply
		if rep.Err != nil {
			log.Errorw("lobby creation failed", "err", rep.Err)
			writeError(ctx, conn, "failed to create lobby")
			return nil, "", false, nil, false
		}
		lb = rep.Lobby
		created = true

	case "joinLobby":
		code := strings.ToUpper(strings.TrimSpace(cm.LobbyCode))
		reply := make(chan *lobby.Lobby, 1)
		h.Inbox() <- hub.GetLobby{Code: code, Reply: reply}
		lb = <-reply
		if lb == nil {
			writeError(ctx, conn, "lobby not found")
			return nil, "", false, nil, false
		}

	default:
		writeError(ctx, conn, "expected createLobby or joinLobby")
		return nil, "", false, nil, false
	}

	clientID = uuid.NewString()
	out = make(chan lobby.OutMsg, 32)
	lb.Inbox() <- lobby.Join{ClientID: clientID, Name: playerName(cm.PlayerName), Outbox: out}
	return lb, clientID, created, out, true
}

func playerName(raw string) string {
	name := strings.TrimSpace(raw)
	if name == "" {
		name = "Anonymous"
	}
	if len(name) > maxPlayerName {
		name = name[:maxPlayerName]
	}
	return name
}

// writePump drains the lobby outbox onto the wire. The lobby closes the
// channel when the client is detached, which also closes the socket so the
// read loop unblocks.
func writePump(ctx context.Context, conn *websocket.Conn, out <-chan lobby.OutMsg, created bool) {
	first := true
	for msg := range out {
		typ := string(msg.Type)
		if first && created && msg.Type == engine.EvtLobbyJoined {
			typ = "lobbyCreated"
		}
		first = false

		frame, err := json.Marshal(types.ServerMessage{Type: typ, Version: msg.Version, Payload: msg.Payload})
		if err != nil {
			continue
		}
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		err = conn.Write(wctx, websocket.MessageText, frame)
		cancel()
		if err != nil {
			return
		}
	}
	conn.Close(websocket.StatusNormalClosure, "detached")
}

// pingLoop reaps half-dead connections. A failed ping closes the socket,
// which unblocks the read loop and turns into the implicit leave.
func pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				conn.Close(websocket.StatusGoingAway, "unresponsive")
				return
			}
		}
	}
}

func readLoop(ctx context.Context, conn *websocket.Conn, lb *lobby.Lobby, clientID string) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			return
		}

		var cm types.ClientMessage
		if err := json.Unmarshal(data, &cm); err != nil {
			writeError(ctx, conn, "bad json")
			continue
		}

		if cm.Type == "leaveLobby" {
			return
		}

		cmd, ok := toEngineCommand(clientID, cm)
		if !ok {
			writeError(ctx, conn, "unknown type")
			continue
		}
		lb.Inbox() <- lobby.FromClient{ClientID: clientID, Cmd: cmd}
	}
}

// toEngineCommand maps a wire frame to an engine command. Click timing uses
// server receipt, never the client's own timestamp.
func toEngineCommand(playerID string, m types.ClientMessage) (engine.Command, bool) {
	cmd := engine.Command{PlayerID: playerID}
	switch m.Type {
	case "updateGameSettings":
		cmd.Type = engine.CmdUpdateSettings
		if m.Settings != nil {
			cmd.Patch = *m.Settings
		}
	case "startGame":
		cmd.Type = engine.CmdStartGame
	case "startMinigame":
		cmd.Type = engine.CmdStartMinigame
	case "startSpinning":
		cmd.Type = engine.CmdStartSpinning
	case "clickAttempt":
		cmd.Type = engine.CmdClick
	case "playerSpin":
		cmd.Type = engine.CmdSpin
	case "activateX2":
		cmd.Type = engine.CmdToggleX2
	case "readyNextRound":
		cmd.Type = engine.CmdReady
	default:
		return engine.Command{}, false
	}
	return cmd, true
}

func writeError(ctx context.Context, conn *websocket.Conn, message string) {
	frame, _ := json.Marshal(types.ServerMessage{
		Type:    string(lobby.EvtError),
		Payload: lobby.ErrorPayload{Message: message},
	})
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = conn.Write(wctx, websocket.MessageText, frame)
}
