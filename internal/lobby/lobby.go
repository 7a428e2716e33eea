package lobby

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/greed-games/greedroulette/internal/engine"
	"github.com/greed-games/greedroulette/internal/logging"
)

type Msg interface{ isLobbyMsg() }

// Join attaches a client connection and seats the player in one step, so a
// rejected join (full lobby, game running) never leaves a dangling outbox.
type Join struct {
	ClientID string
	Name     string
	Outbox   chan OutMsg
}

func (Join) isLobbyMsg() {}

// Leave detaches the connection and removes the player from the game. A
// dropped websocket and an explicit leave are the same thing here.
type Leave struct{ ClientID string }

func (Leave) isLobbyMsg() {}

type FromClient struct {
	ClientID string
	Cmd      engine.Command
}

func (FromClient) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

// timerFired is the internal wake-up from an armed delay. gen pins it to the
// arming that created it; a re-arm or cancel in between makes it stale.
type timerFired struct {
	kind  engine.TimerKind
	round int
	gen   uint64
}

func (timerFired) isLobbyMsg() {}

// EvtError is the sender-scoped failure message for a rejected command.
const EvtError engine.EventType = "error"

type ErrorPayload struct {
	Message string `json:"message"`
}

// OutMsg is one wire message for a client connection.
type OutMsg struct {
	Version int
	Type    engine.EventType
	Payload any
}

type View struct {
	Version    int
	NumClients int
	State      engine.LobbySnapshot
}

// Summary is the post-game record handed to OnEnded for the recent-games
// feed and the archive.
type Summary struct {
	Code       string
	Name       string
	Mode       engine.GameMode
	Rounds     int
	Players    int
	WinnerID   string
	WinnerName string
	EndedAt    time.Time
	History    []engine.Round
}

type Options struct {
	Timing  engine.Timing // zero value falls back to engine.DefaultTiming()
	OnEnded func(Summary) // called from the lobby goroutine when a game ends
	OnEmpty func(code string)
}

type armedTimer struct {
	gen   uint64
	timer *time.Timer
}

type Lobby struct {
	code    string
	name    string
	created time.Time

	inbox   chan Msg
	state   *engine.State
	version int
	clients map[string]chan OutMsg
	timers  map[engine.TimerKind]*armedTimer
	gens    map[engine.TimerKind]uint64
	opts    Options
	log     *zap.SugaredLogger
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewLobby(parent context.Context, code, name string, settings engine.Settings, opts Options) *Lobby {
	ctx, cancel := context.WithCancel(parent)

	if opts.Timing == (engine.Timing{}) {
		opts.Timing = engine.DefaultTiming()
	}
	state := engine.NewState(code, name, settings)
	state.Timing = opts.Timing

	l := &Lobby{
		code:    code,
		name:    name,
		created: time.Now(),
		inbox:   make(chan Msg, 64),
		state:   state,
		clients: make(map[string]chan OutMsg),
		timers:  make(map[engine.TimerKind]*armedTimer),
		gens:    make(map[engine.TimerKind]uint64),
		opts:    opts,
		log:     logging.FromContext(parent).With("lobby", code),
		ctx:     ctx,
		cancel:  cancel,
	}

	go l.loop()
	return l
}

func (l *Lobby) Code() string { return l.code }

func (l *Lobby) Name() string { return l.name }

func (l *Lobby) CreatedAt() time.Time { return l.created }

// Inbox is where the session adapter (and tests) send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

func (l *Lobby) loop() {
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				l.handleJoin(msg)

			case Leave:
				if ch, ok := l.clients[msg.ClientID]; ok {
					delete(l.clients, msg.ClientID)
					close(ch)
				}
				l.apply("", engine.Command{Type: engine.CmdLeave, PlayerID: msg.ClientID, Now: time.Now()})
				if l.maybeRetire() {
					return
				}

			case FromClient:
				l.apply(msg.ClientID, msg.Cmd)

			case timerFired:
				if l.gens[msg.kind] != msg.gen {
					break
				}
				delete(l.timers, msg.kind)
				l.apply("", engine.Command{
					Type:  engine.CmdTimerFired,
					Timer: msg.kind,
					Round: msg.round,
					Now:   time.Now(),
				})

			case GetState:
				msg.Reply <- View{
					Version:    l.version,
					NumClients: len(l.clients),
					State:      engine.Snapshot(l.state),
				}

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

func (l *Lobby) handleJoin(msg Join) {
	l.clients[msg.ClientID] = msg.Outbox

	events, err := engine.Apply(l.state, engine.Command{
		Type:     engine.CmdJoin,
		PlayerID: msg.ClientID,
		Name:     msg.Name,
		Now:      time.Now(),
	})
	if err != nil {
		// Seatless connection: report why and cut it loose.
		l.sendTo(msg.ClientID, OutMsg{Version: l.version, Type: EvtError, Payload: ErrorPayload{Message: err.Error()}})
		if ch, ok := l.clients[msg.ClientID]; ok {
			delete(l.clients, msg.ClientID)
			close(ch)
		}
		return
	}
	l.version++
	l.dispatch(events)
}

// apply runs one command and fans the resulting batch out. Errors go back to
// the originating client only; the lobby itself never dies from a bad command.
func (l *Lobby) apply(from string, cmd engine.Command) {
	if cmd.Now.IsZero() {
		cmd.Now = time.Now()
	}
	events, err := engine.Apply(l.state, cmd)
	if err != nil {
		if from != "" {
			l.sendTo(from, OutMsg{Version: l.version, Type: EvtError, Payload: ErrorPayload{Message: err.Error()}})
		} else {
			l.log.Debugw("command rejected", "cmd", cmd.Type, "err", err)
		}
		return
	}
	if len(events) == 0 {
		return
	}
	l.version++
	l.dispatch(events)
}

func (l *Lobby) dispatch(events []engine.Event) {
	for _, ev := range events {
		switch ev.Type {
		case engine.EvtArmTimer:
			l.arm(ev.Payload.(engine.TimerRequest))
		case engine.EvtCancelTimer:
			l.disarm(ev.Payload.(engine.TimerRequest).Kind)
		default:
			out := OutMsg{Version: l.version, Type: ev.Type, Payload: ev.Payload}
			if ev.To == "" {
				l.broadcast(out)
			} else {
				l.sendTo(ev.To, out)
			}
		}

		if ev.Type == engine.EvtGameEnded {
			l.stopTimers()
			if l.opts.OnEnded != nil {
				l.opts.OnEnded(l.summary(ev.Payload.(engine.GameEndedPayload)))
			}
		}
	}
}

func (l *Lobby) summary(p engine.GameEndedPayload) Summary {
	s := Summary{
		Code:    l.code,
		Name:    l.name,
		Mode:    p.Lobby.Settings.GameMode,
		Rounds:  p.Lobby.CurrentRound,
		Players: len(p.Lobby.Players),
		EndedAt: time.Now(),
		History: append([]engine.Round(nil), l.state.History...),
	}
	if p.Winner != nil {
		s.WinnerID = p.Winner.ID
		s.WinnerName = p.Winner.Name
	}
	return s
}

// maybeRetire tears the lobby down once the last player is gone. Returns true
// when the loop must exit.
func (l *Lobby) maybeRetire() bool {
	if len(l.state.Players) > 0 {
		return false
	}
	l.log.Infow("lobby empty, retiring")
	if l.opts.OnEmpty != nil {
		l.opts.OnEmpty(l.code)
	}
	l.shutdown()
	return true
}

func (l *Lobby) arm(req engine.TimerRequest) {
	l.disarm(req.Kind)
	l.gens[req.Kind]++
	gen := l.gens[req.Kind]

	entry := &armedTimer{gen: gen}
	entry.timer = time.AfterFunc(req.Delay, func() {
		select {
		case l.inbox <- timerFired{kind: req.Kind, round: req.Round, gen: gen}:
		case <-l.ctx.Done():
		}
	})
	l.timers[req.Kind] = entry
}

func (l *Lobby) disarm(kind engine.TimerKind) {
	if entry, ok := l.timers[kind]; ok {
		entry.timer.Stop()
		delete(l.timers, kind)
	}
	// Any fire already in flight for this kind is stale from here on.
	l.gens[kind]++
}

func (l *Lobby) stopTimers() {
	for kind := range l.timers {
		l.disarm(kind)
	}
}

func (l *Lobby) shutdown() {
	l.stopTimers()
	for id, ch := range l.clients {
		close(ch)
		delete(l.clients, id)
	}
	l.cancel()
}

func (l *Lobby) sendTo(id string, out OutMsg) {
	ch, ok := l.clients[id]
	if !ok {
		return
	}
	select {
	case ch <- out:
	default:
		l.log.Warnw("dropping slow client", "client", id)
		close(ch)
		delete(l.clients, id)
	}
}

func (l *Lobby) broadcast(out OutMsg) {
	for id, ch := range l.clients {
		select {
		case ch <- out:
		default:
			l.log.Warnw("dropping slow client", "client", id)
			close(ch)
			delete(l.clients, id)
		}
	}
}
