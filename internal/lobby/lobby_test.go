package lobby

import (
	"context"
	"testing"
	"time"

	"github.com/greed-games/greedroulette/internal/engine"
)

func fastTiming() engine.Timing {
	return engine.Timing{
		MinigameStartDelay: 5 * time.Millisecond,
		EnableMin:          time.Millisecond,
		EnableMax:          2 * time.Millisecond,
		ClickWindow:        20 * time.Millisecond,
		RoundDelay:         5 * time.Millisecond,
		ScoreboardDelay:    5 * time.Millisecond,
		SpinDelay:          5 * time.Millisecond,
		MoneyPerRound:      100,
	}
}

func newTestLobby(t *testing.T, opts Options) *Lobby {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if opts.Timing == (engine.Timing{}) {
		opts.Timing = fastTiming()
	}
	return NewLobby(ctx, "ABC123", "test lobby", engine.DefaultSettings(), opts)
}

// recvMsg receives one message with a timeout so tests never hang.
func recvMsg(t *testing.T, ch <-chan OutMsg, within time.Duration) OutMsg {
	t.Helper()
	select {
	case out, ok := <-ch:
		if !ok {
			t.Fatalf("client outbox closed unexpectedly")
		}
		return out
	case <-time.After(within):
		t.Fatalf("timed out waiting for message")
		return OutMsg{} // unreachable
	}
}

// waitFor drains the outbox until a message of the wanted type arrives.
func waitFor(t *testing.T, ch <-chan OutMsg, want engine.EventType, within time.Duration) OutMsg {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case out, ok := <-ch:
			if !ok {
				t.Fatalf("outbox closed while waiting for %s", want)
			}
			if out.Type == want {
				return out
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", want)
			return OutMsg{} // unreachable
		}
	}
}

func recvNothing(t *testing.T, ch <-chan OutMsg, within time.Duration) {
	t.Helper()
	select {
	case out, ok := <-ch:
		if !ok {
			return // closed is fine, no further messages possible
		}
		t.Fatalf("expected silence within %v, got %s", within, out.Type)
	case <-time.After(within):
	}
}

func recvView(t *testing.T, ch <-chan View, within time.Duration) View {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(within):
		t.Fatalf("timed out waiting for view")
		return View{} // unreachable
	}
}

func join(t *testing.T, l *Lobby, id, name string) chan OutMsg {
	t.Helper()
	out := make(chan OutMsg, 32)
	l.Inbox() <- Join{ClientID: id, Name: name, Outbox: out}
	welcome := recvMsg(t, out, time.Second)
	if welcome.Type != engine.EvtLobbyJoined {
		t.Fatalf("first message = %s, want lobbyJoined", welcome.Type)
	}
	return out
}

func TestLobby_JoinSeatsPlayerAndBroadcasts(t *testing.T) {
	l := newTestLobby(t, Options{})

	out1 := join(t, l, "p1", "Player 1")
	if msg := recvMsg(t, out1, time.Second); msg.Type != engine.EvtPlayerJoined {
		t.Fatalf("want playerJoined echo, got %s", msg.Type)
	}

	join(t, l, "p2", "Player 2")
	joined := waitFor(t, out1, engine.EvtPlayerJoined, time.Second)
	payload := joined.Payload.(engine.PlayerJoinedPayload)
	if payload.Player.ID != "p2" {
		t.Fatalf("broadcast carries %q, want p2", payload.Player.ID)
	}
	if payload.Lobby.HostID != "p1" {
		t.Fatalf("hostId = %q, want p1", payload.Lobby.HostID)
	}

	reply := make(chan View, 1)
	l.Inbox() <- GetState{Reply: reply}
	view := recvView(t, reply, time.Second)
	if view.NumClients != 2 || len(view.State.Players) != 2 {
		t.Fatalf("clients=%d players=%d, want 2/2", view.NumClients, len(view.State.Players))
	}
}

func TestLobby_RejectedJoinGetsErrorThenClose(t *testing.T) {
	l := newTestLobby(t, Options{})
	join(t, l, "p1", "Player 1")
	join(t, l, "p2", "Player 2")
	l.Inbox() <- FromClient{ClientID: "p1", Cmd: engine.Command{Type: engine.CmdStartGame, PlayerID: "p1"}}

	out := make(chan OutMsg, 32)
	l.Inbox() <- Join{ClientID: "late", Name: "Late", Outbox: out}

	errMsg := recvMsg(t, out, time.Second)
	if errMsg.Type != EvtError {
		t.Fatalf("want error, got %s", errMsg.Type)
	}
	if _, ok := <-out; ok {
		t.Fatalf("outbox should be closed after a rejected join")
	}
}

func TestLobby_DropSlowClient(t *testing.T) {
	l := newTestLobby(t, Options{})

	// Capacity one: the welcome fills the buffer, the join broadcast overflows.
	out := make(chan OutMsg, 1)
	l.Inbox() <- Join{ClientID: "p1", Name: "Player 1", Outbox: out}

	reply := make(chan View, 1)
	l.Inbox() <- GetState{Reply: reply}
	view := recvView(t, reply, time.Second)
	if view.NumClients != 0 {
		t.Fatalf("expected slow client to be dropped; NumClients=%d", view.NumClients)
	}
}

func TestLobby_ErrorsGoOnlyToSender(t *testing.T) {
	l := newTestLobby(t, Options{})
	out1 := join(t, l, "p1", "Player 1")
	waitFor(t, out1, engine.EvtPlayerJoined, time.Second)
	out2 := join(t, l, "p2", "Player 2")
	waitFor(t, out1, engine.EvtPlayerJoined, time.Second)

	// Non-host start is rejected; only p2 hears about it. out2 still holds
	// p2's own join broadcast, so drain up to the error.
	l.Inbox() <- FromClient{ClientID: "p2", Cmd: engine.Command{Type: engine.CmdStartGame, PlayerID: "p2"}}

	waitFor(t, out2, EvtError, time.Second)
	recvNothing(t, out1, 50*time.Millisecond)
}

func TestLobby_TimersDriveTheMinigame(t *testing.T) {
	l := newTestLobby(t, Options{})
	out := join(t, l, "p1", "Player 1")
	join(t, l, "p2", "Player 2")

	l.Inbox() <- FromClient{ClientID: "p1", Cmd: engine.Command{Type: engine.CmdStartGame, PlayerID: "p1"}}
	l.Inbox() <- FromClient{ClientID: "p1", Cmd: engine.Command{Type: engine.CmdStartMinigame, PlayerID: "p1"}}

	waitFor(t, out, engine.EvtMinigameStarted, time.Second)
	waitFor(t, out, engine.EvtMinigameRoundStarted, time.Second)
	waitFor(t, out, engine.EvtEnableClick, time.Second)

	// Nobody clicks: the window lapses and the round closes with no winner.
	result := waitFor(t, out, engine.EvtMinigameRoundResult, time.Second)
	payload := result.Payload.(engine.MinigameRoundResultPayload)
	if payload.Round.WinnerID != "" {
		t.Fatalf("timeout round has winner %q", payload.Round.WinnerID)
	}

	// The next round is armed without any client traffic.
	waitFor(t, out, engine.EvtMinigameRoundStarted, time.Second)
}

func TestLobby_EmptyLobbyRetires(t *testing.T) {
	emptied := make(chan string, 1)
	l := newTestLobby(t, Options{OnEmpty: func(code string) { emptied <- code }})

	out := join(t, l, "p1", "Player 1")
	recvMsg(t, out, time.Second) // drain the join broadcast
	l.Inbox() <- Leave{ClientID: "p1"}

	select {
	case code := <-emptied:
		if code != "ABC123" {
			t.Fatalf("OnEmpty code = %q", code)
		}
	case <-time.After(time.Second):
		t.Fatalf("OnEmpty never called")
	}
	if _, ok := <-out; ok {
		t.Fatalf("outbox should be closed after retirement")
	}
}

func TestLobby_GameEndReportsSummaryAndStopsTimers(t *testing.T) {
	ended := make(chan Summary, 1)
	l := newTestLobby(t, Options{OnEnded: func(s Summary) { ended <- s }})

	out1 := join(t, l, "p1", "Player 1")
	join(t, l, "p2", "Player 2")
	l.Inbox() <- FromClient{ClientID: "p1", Cmd: engine.Command{Type: engine.CmdStartGame, PlayerID: "p1"}}
	waitFor(t, out1, engine.EvtGameStarted, time.Second)

	// The opponent walks out of a two-player game; last man standing.
	l.Inbox() <- Leave{ClientID: "p2"}
	endMsg := waitFor(t, out1, engine.EvtGameEnded, time.Second)
	if w := endMsg.Payload.(engine.GameEndedPayload).Winner; w == nil || w.ID != "p1" {
		t.Fatalf("winner = %+v, want p1", w)
	}

	select {
	case s := <-ended:
		if s.Code != "ABC123" || s.WinnerID != "p1" || s.Mode != engine.ModeLastManStanding {
			t.Fatalf("summary = %+v", s)
		}
	case <-time.After(time.Second):
		t.Fatalf("OnEnded never called")
	}
}

func TestLobby_ShutdownSilencesPendingTimers(t *testing.T) {
	l := newTestLobby(t, Options{})
	out := join(t, l, "p1", "Player 1")
	join(t, l, "p2", "Player 2")

	l.Inbox() <- FromClient{ClientID: "p1", Cmd: engine.Command{Type: engine.CmdStartGame, PlayerID: "p1"}}
	l.Inbox() <- FromClient{ClientID: "p1", Cmd: engine.Command{Type: engine.CmdStartMinigame, PlayerID: "p1"}}
	waitFor(t, out, engine.EvtMinigameStarted, time.Second)

	l.Inbox() <- Shutdown{}
	recvNothing(t, out, 50*time.Millisecond)
}
