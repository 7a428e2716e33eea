package engine

import (
	"time"

	"github.com/greed-games/greedroulette/internal/minigame"
	"github.com/greed-games/greedroulette/internal/wheel"
)

type EventType string

// Wire events, matching the client's socket catalogue.
const (
	EvtLobbyJoined          EventType = "lobbyJoined"
	EvtPlayerJoined         EventType = "playerJoined"
	EvtPlayerLeft           EventType = "playerLeft"
	EvtSettingsUpdated      EventType = "gameSettingsUpdated"
	EvtGameStarted          EventType = "gameStarted"
	EvtMinigameStarted      EventType = "minigameStarted"
	EvtMinigameRoundStarted EventType = "roundStarted"
	EvtEnableClick          EventType = "enableClick"
	EvtClickTooEarly        EventType = "clickTooEarly"
	EvtMinigameRoundResult  EventType = "roundResult"
	EvtMinigameResult       EventType = "minigameResult"
	EvtSpinStarted          EventType = "spinStarted"
	EvtSpinResult           EventType = "spinResult"
	EvtNextSpinner          EventType = "nextSpinner"
	EvtWheelComplete        EventType = "deathWheelComplete"
	EvtX2Updated            EventType = "playerX2Updated"
	EvtX2Echo               EventType = "x2Updated"
	EvtPlayerReady          EventType = "playerReady"
	EvtNewRound             EventType = "newRound"
	EvtGameEnded            EventType = "gameEnded"
)

// Scheduling intents. The lobby actor consumes these instead of broadcasting
// them: ArmTimer starts a cancellable delay that comes back as CmdTimerFired,
// CancelTimer stops a pending one.
const (
	EvtArmTimer    EventType = "armTimer"
	EvtCancelTimer EventType = "cancelTimer"
)

type TimerKind string

const (
	TimerMinigameBegin   TimerKind = "minigameBegin"
	TimerMinigameEnable  TimerKind = "minigameEnable"
	TimerMinigameTimeout TimerKind = "minigameTimeout"
	TimerMinigameNext    TimerKind = "minigameNext"
	TimerScoreboard      TimerKind = "scoreboard"
	TimerSpinResolve     TimerKind = "spinResolve"
)

// Event is one outbound intent. To selects the scope: empty means the whole
// lobby, otherwise only that player's connection.
type Event struct {
	Type    EventType
	To      string
	Payload any
}

type TimerRequest struct {
	Kind  TimerKind
	Round int // round the timer belongs to; stale fires are dropped
	Delay time.Duration
}

func armTimer(kind TimerKind, round int, delay time.Duration) Event {
	return Event{Type: EvtArmTimer, Payload: TimerRequest{Kind: kind, Round: round, Delay: delay}}
}

func cancelTimer(kind TimerKind) Event {
	return Event{Type: EvtCancelTimer, Payload: TimerRequest{Kind: kind}}
}

// PlayerView is the membership snapshot sent to clients.
type PlayerView struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Lives       int          `json:"lives"`
	Money       int          `json:"money"`
	Alive       bool         `json:"isAlive"`
	Host        bool         `json:"isHost"`
	X2Active    bool         `json:"hasX2Active"`
	SpinHistory []SpinRecord `json:"spinHistory"`
}

type LobbySnapshot struct {
	Code         string             `json:"code"`
	Name         string             `json:"name"`
	GameState    GameState          `json:"gameState"`
	CurrentRound int                `json:"currentRound"`
	Phase        RoundPhase         `json:"phase,omitempty"`
	Settings     Settings           `json:"gameSettings"`
	Wheel        wheel.State        `json:"deathWheel"`
	Odds         wheel.Distribution `json:"odds"`
	HostID       string             `json:"hostId,omitempty"`
	Players      []PlayerView       `json:"players"`
	SpinQueue    []string           `json:"spinQueue,omitempty"`
}

func Snapshot(s *State) LobbySnapshot {
	snap := LobbySnapshot{
		Code:         s.Code,
		Name:         s.Name,
		GameState:    s.GameState,
		CurrentRound: s.CurrentRound,
		Phase:        s.roundPhase(),
		Settings:     s.Settings,
		Wheel:        s.Wheel,
		Odds:         wheel.Dist(s.Wheel),
		Players:      make([]PlayerView, 0, len(s.Players)),
		SpinQueue:    append([]string(nil), s.SpinQueue...),
	}
	for _, p := range s.Players {
		if p.Host {
			snap.HostID = p.ID
		}
		snap.Players = append(snap.Players, playerView(p))
	}
	return snap
}

func playerView(p *Player) PlayerView {
	return PlayerView{
		ID:          p.ID,
		Name:        p.Name,
		Lives:       p.Lives,
		Money:       p.Money,
		Alive:       p.Alive,
		Host:        p.Host,
		X2Active:    p.X2Active,
		SpinHistory: append([]SpinRecord(nil), p.SpinHistory...),
	}
}

type LobbyJoinedPayload struct {
	PlayerID string        `json:"playerId"`
	Lobby    LobbySnapshot `json:"lobby"`
}

type PlayerJoinedPayload struct {
	Player PlayerView    `json:"player"`
	Lobby  LobbySnapshot `json:"lobby"`
}

type PlayerLeftPayload struct {
	PlayerID string        `json:"playerId"`
	Lobby    LobbySnapshot `json:"lobby"`
}

type SettingsUpdatedPayload struct {
	Settings Settings      `json:"gameSettings"`
	Lobby    LobbySnapshot `json:"lobby"`
}

type GameStartedPayload struct {
	Lobby        LobbySnapshot `json:"lobby"`
	CurrentRound int           `json:"currentRound"`
}

type MinigameStartedPayload struct {
	Type      string   `json:"type"`
	PlayerIDs []string `json:"playerIds"`
	Message   string   `json:"message"`
}

type MinigameRoundStartedPayload struct {
	Round     int `json:"round"`
	MaxRounds int `json:"maxRounds"`
}

type EnableClickPayload struct {
	Timestamp int64 `json:"timestamp"` // unix ms
}

type ClickTooEarlyPayload struct {
	Message string `json:"message"`
}

type MinigameRoundResultPayload struct {
	Round  minigame.Round `json:"round"`
	Points map[string]int `json:"points"`
}

type MinigameResultPayload struct {
	Type   string          `json:"type"`
	Result minigame.Result `json:"result"`
	Losers []string        `json:"losers"`
	Lobby  LobbySnapshot   `json:"lobby"`
}

type SpinStartedPayload struct {
	PlayerID string `json:"playerId"`
}

type SpinResultPayload struct {
	PlayerID   string        `json:"playerId"`
	Result     wheel.Outcome `json:"result"`
	LivesLost  int           `json:"livesLost"`
	NewLives   int           `json:"newLives"`
	IsAlive    bool          `json:"isAlive"`
	DeathWheel wheel.State   `json:"deathWheelState"`
}

type NextSpinnerPayload struct {
	PlayerID string `json:"playerId"`
}

type WheelCompletePayload struct {
	Lobby LobbySnapshot `json:"lobby"`
}

type X2Payload struct {
	PlayerID    string `json:"playerId"`
	HasX2Active bool   `json:"hasX2Active"`
}

type PlayerReadyPayload struct {
	PlayerID   string `json:"playerId"`
	ReadyCount int    `json:"readyCount"`
	TotalAlive int    `json:"totalAlive"`
}

type NewRoundPayload struct {
	Lobby        LobbySnapshot `json:"lobby"`
	CurrentRound int           `json:"currentRound"`
}

type GameEndedPayload struct {
	Winner *PlayerView   `json:"winner"`
	Lobby  LobbySnapshot `json:"lobby"`
}
