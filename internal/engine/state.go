package engine

import (
	"time"

	"github.com/greed-games/greedroulette/internal/minigame"
	"github.com/greed-games/greedroulette/internal/wheel"
)

type GameMode string

const (
	ModeLastManStanding GameMode = "LastManStanding"
	ModeMoneyRush       GameMode = "MoneyRush"
	ModeSurvivalScore   GameMode = "SurvivalScore"
)

type GameState string

const (
	GameWaiting    GameState = "Waiting"
	GameInProgress GameState = "InProgress"
	GameEnded      GameState = "Ended"
)

type RoundPhase string

const (
	PhasePreparation RoundPhase = "preparation"
	PhaseMinigame    RoundPhase = "minigame"
	PhaseSpinning    RoundPhase = "spinning"
	PhaseResults     RoundPhase = "results"
)

type Settings struct {
	GameMode        GameMode `json:"gameMode"`
	MaxRounds       int      `json:"maxRounds"`
	StartLives      int      `json:"startLives"`
	MaxPlayers      int      `json:"maxPlayers"`
	GamblingAllowed bool     `json:"gamblingAllowed"`
	X2RiskAllowed   bool     `json:"x2RiskAllowed"`
}

func DefaultSettings() Settings {
	return Settings{
		GameMode:        ModeLastManStanding,
		MaxRounds:       10,
		StartLives:      5,
		MaxPlayers:      8,
		GamblingAllowed: true,
		X2RiskAllowed:   true,
	}
}

// SettingsPatch is a partial settings update; nil fields are left alone.
// Numeric fields are clamped to the ranges the original lobby allowed.
type SettingsPatch struct {
	GameMode        *GameMode `json:"gameMode,omitempty"`
	MaxRounds       *int      `json:"maxRounds,omitempty"`
	StartLives      *int      `json:"startLives,omitempty"`
	MaxPlayers      *int      `json:"maxPlayers,omitempty"`
	GamblingAllowed *bool     `json:"gamblingAllowed,omitempty"`
	X2RiskAllowed   *bool     `json:"x2RiskAllowed,omitempty"`
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (s *Settings) Apply(p SettingsPatch) {
	if p.GameMode != nil {
		s.GameMode = *p.GameMode
	}
	if p.MaxRounds != nil {
		s.MaxRounds = clamp(*p.MaxRounds, 1, 50)
	}
	if p.StartLives != nil {
		s.StartLives = clamp(*p.StartLives, 1, 10)
	}
	if p.MaxPlayers != nil {
		s.MaxPlayers = clamp(*p.MaxPlayers, 2, 12)
	}
	if p.GamblingAllowed != nil {
		s.GamblingAllowed = *p.GamblingAllowed
	}
	if p.X2RiskAllowed != nil {
		s.X2RiskAllowed = *p.X2RiskAllowed
	}
}

type SpinRecord struct {
	Round  int           `json:"round"`
	Result wheel.Outcome `json:"result"`
}

type Player struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Lives       int          `json:"lives"`
	Money       int          `json:"money"`
	Alive       bool         `json:"isAlive"`
	Host        bool         `json:"isHost"`
	X2Active    bool         `json:"hasX2Active"`
	SpinHistory []SpinRecord `json:"spinHistory"`

	// order in which this player's money last increased, for the
	// earliest-to-reach tie-break in MoneyRush.
	moneySeq int
}

// RoundResult is one player's outcome within a round.
type RoundResult struct {
	PlayerID       string        `json:"playerId"`
	MinigameResult string        `json:"minigameResult"` // "win", "lose" or "skip"
	HadX2          bool          `json:"hadX2Active"`
	MoneyEarned    int           `json:"moneyEarned"`
	SpinResult     wheel.Outcome `json:"spinResult,omitempty"`
	LivesLost      int           `json:"livesLost"`
	Survived       bool          `json:"survived"`
}

type Round struct {
	Number       int                     `json:"number"`
	Phase        RoundPhase              `json:"phase"`
	Participants []string                `json:"participants"`
	Losers       []string                `json:"losers"`
	Results      map[string]*RoundResult `json:"results"`
	WheelAtStart wheel.State             `json:"wheelAtStart"`
	StartedAt    time.Time               `json:"startedAt"`
	EndedAt      time.Time               `json:"endedAt,omitzero"`
}

// Timing holds every scheduled delay the orchestrator arms, injected so tests
// can run on a virtual clock.
type Timing struct {
	MinigameStartDelay time.Duration
	EnableMin          time.Duration
	EnableMax          time.Duration
	ClickWindow        time.Duration
	RoundDelay         time.Duration
	ScoreboardDelay    time.Duration
	SpinDelay          time.Duration
	MoneyPerRound      int
}

func DefaultTiming() Timing {
	return Timing{
		MinigameStartDelay: 3 * time.Second,
		EnableMin:          time.Second,
		EnableMax:          5 * time.Second,
		ClickWindow:        10 * time.Second,
		RoundDelay:         3 * time.Second,
		ScoreboardDelay:    5 * time.Second,
		SpinDelay:          4 * time.Second,
		MoneyPerRound:      100,
	}
}

// PendingSpin is a drawn-but-unrevealed spin. The outcome is decided at
// request time; the result event goes out once the animation delay elapses.
type PendingSpin struct {
	PlayerID string
	Outcome  wheel.Outcome
	X2       bool
}

// State is one lobby's full game state. It is only ever touched from the
// owning lobby goroutine; Apply mutates it in place and returns the events to
// deliver.
type State struct {
	Code         string
	Name         string
	Players      []*Player // join order, which also seeds turn order
	Settings     Settings
	Timing       Timing
	GameState    GameState
	CurrentRound int
	Wheel        wheel.State
	Round        *Round
	History      []Round
	Minigame     *minigame.Reflex
	SpinQueue    []string
	PendingSpin  *PendingSpin
	Ready        map[string]bool
	WinnerID     string

	moneyCounter int
}

func NewState(code, name string, settings Settings) *State {
	return &State{
		Code:      code,
		Name:      name,
		Settings:  settings,
		GameState: GameWaiting,
		Wheel:     wheel.DefaultState(),
		Ready:     map[string]bool{},
	}
}

func (s *State) player(id string) *Player {
	for _, p := range s.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (s *State) alivePlayers() []*Player {
	var alive []*Player
	for _, p := range s.Players {
		if p.Alive {
			alive = append(alive, p)
		}
	}
	return alive
}

func (s *State) aliveIDs() []string {
	var ids []string
	for _, p := range s.Players {
		if p.Alive {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

func (s *State) host() *Player {
	for _, p := range s.Players {
		if p.Host {
			return p
		}
	}
	return nil
}

func (s *State) roundPhase() RoundPhase {
	if s.Round == nil {
		return ""
	}
	return s.Round.Phase
}

// roundResult returns (creating if needed) the player's record in the current
// round.
func (s *State) roundResult(id string) *RoundResult {
	if s.Round.Results == nil {
		s.Round.Results = map[string]*RoundResult{}
	}
	r, ok := s.Round.Results[id]
	if !ok {
		r = &RoundResult{PlayerID: id, MinigameResult: "skip", Survived: true}
		s.Round.Results[id] = r
	}
	return r
}
