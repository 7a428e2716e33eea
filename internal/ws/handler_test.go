package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/greed-games/greedroulette/internal/engine"
	"github.com/greed-games/greedroulette/internal/hub"
	"github.com/greed-games/greedroulette/internal/types"
)

func TestToEngineCommand(t *testing.T) {
	rounds := 20
	cases := []struct {
		name  string
		msg   types.ClientMessage
		want  engine.CommandType
		valid bool
	}{
		{name: "settings patch", msg: types.ClientMessage{Type: "updateGameSettings", Settings: &engine.SettingsPatch{MaxRounds: &rounds}}, want: engine.CmdUpdateSettings, valid: true},
		{name: "start game", msg: types.ClientMessage{Type: "startGame"}, want: engine.CmdStartGame, valid: true},
		{name: "start minigame", msg: types.ClientMessage{Type: "startMinigame"}, want: engine.CmdStartMinigame, valid: true},
		{name: "skip to wheel", msg: types.ClientMessage{Type: "startSpinning"}, want: engine.CmdStartSpinning, valid: true},
		{name: "click", msg: types.ClientMessage{Type: "clickAttempt", Timestamp: 1717243200000}, want: engine.CmdClick, valid: true},
		{name: "spin", msg: types.ClientMessage{Type: "playerSpin"}, want: engine.CmdSpin, valid: true},
		{name: "x2", msg: types.ClientMessage{Type: "activateX2"}, want: engine.CmdToggleX2, valid: true},
		{name: "ready", msg: types.ClientMessage{Type: "readyNextRound"}, want: engine.CmdReady, valid: true},
		{name: "unknown", msg: types.ClientMessage{Type: "danceEmote"}, valid: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd, ok := toEngineCommand("p1", tc.msg)
			if ok != tc.valid {
				t.Fatalf("valid = %v, want %v", ok, tc.valid)
			}
			if !tc.valid {
				return
			}
			if cmd.Type != tc.want || cmd.PlayerID != "p1" {
				t.Fatalf("cmd = %+v, want type %s for p1", cmd, tc.want)
			}
		})
	}
}

func TestToEngineCommand_CarriesSettingsPatch(t *testing.T) {
	lives := 3
	cmd, ok := toEngineCommand("p1", types.ClientMessage{
		Type:     "updateGameSettings",
		Settings: &engine.SettingsPatch{StartLives: &lives},
	})
	if !ok || cmd.Patch.StartLives == nil || *cmd.Patch.StartLives != 3 {
		t.Fatalf("patch not carried: %+v", cmd.Patch)
	}
}

func recvFrame(t *testing.T, ch <-chan types.ServerMessage) types.ServerMessage {
	t.Helper()
	select {
	case m, ok := <-ch:
		if !ok {
			t.Fatalf("connection closed")
		}
		return m
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for frame")
		return types.ServerMessage{} // unreachable
	}
}

// A player who watches in silence must keep their seat; liveness is the
// server's pings, not client traffic.
func TestHandler_QuietClientKeepsSeat(t *testing.T) {
	orig := pingInterval
	pingInterval = 10 * time.Millisecond
	defer func() { pingInterval = orig }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := hub.NewHub(ctx, hub.Options{})

	srv := httptest.NewServer(Handler(h))
	defer srv.Close()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	hello, _ := json.Marshal(types.ClientMessage{Type: "createLobby", PlayerName: "Quiet"})
	if err := conn.Write(ctx, websocket.MessageText, hello); err != nil {
		t.Fatalf("hello: %v", err)
	}

	frames := make(chan types.ServerMessage, 16)
	go func() {
		defer close(frames)
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var sm types.ServerMessage
			if json.Unmarshal(data, &sm) == nil {
				frames <- sm
			}
		}
	}()

	if msg := recvFrame(t, frames); msg.Type != "lobbyCreated" {
		t.Fatalf("first frame = %s, want lobbyCreated", msg.Type)
	}

	// Sit through many keepalive cycles without sending a single frame.
	time.Sleep(100 * time.Millisecond)

	toggle, _ := json.Marshal(types.ClientMessage{Type: "activateX2"})
	if err := conn.Write(ctx, websocket.MessageText, toggle); err != nil {
		t.Fatalf("write after sitting idle: %v", err)
	}
	for {
		if msg := recvFrame(t, frames); msg.Type == "playerX2Updated" {
			break
		}
	}
}

func TestPlayerName(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"  Alice  ", "Alice"},
		{"", "Anonymous"},
		{"   ", "Anonymous"},
		{"this display name is far too long", "this display name is"},
	}
	for _, tc := range cases {
		if got := playerName(tc.in); got != tc.want {
			t.Fatalf("playerName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
