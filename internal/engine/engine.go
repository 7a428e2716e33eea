package engine

import (
	"errors"
	"time"

	"github.com/greed-games/greedroulette/internal/minigame"
	"github.com/greed-games/greedroulette/internal/wheel"
	"github.com/valyala/fastrand"
)

var ErrNotFound = errors.New("unknown player")
var ErrForbidden = errors.New("host only")
var ErrInvalidState = errors.New("not allowed in this phase")
var ErrNotYourTurn = errors.New("not your turn to spin")
var ErrAlreadyRunning = errors.New("minigame already running")
var ErrLobbyFull = errors.New("lobby is full")
var ErrGameInProgress = errors.New("game already in progress")
var ErrNotEnoughPlayers = errors.New("need at least 2 players to start")
var ErrUnsupportedCommand = errors.New("unsupported command")

type CommandType string

const (
	CmdJoin           CommandType = "Join"
	CmdLeave          CommandType = "Leave"
	CmdUpdateSettings CommandType = "UpdateSettings"
	CmdStartGame      CommandType = "StartGame"
	CmdStartMinigame  CommandType = "StartMinigame"
	CmdStartSpinning  CommandType = "StartSpinning"
	CmdClick          CommandType = "Click"
	CmdSpin           CommandType = "Spin"
	CmdToggleX2       CommandType = "ToggleX2"
	CmdReady          CommandType = "Ready"
	CmdTimerFired     CommandType = "TimerFired"
)

type Command struct {
	Type     CommandType
	PlayerID string
	Name     string        // Join
	Patch    SettingsPatch // UpdateSettings
	Timer    TimerKind     // TimerFired
	Round    int           // TimerFired: the round the timer was armed for
	Now      time.Time     // server receipt time, filled by the lobby actor
}

var randUint32n = fastrand.Uint32n
var spinWheel = wheel.Spin

// Apply runs one command against the lobby state. State is mutated in place;
// the returned events are delivery intents for the session adapter plus timer
// intents for the lobby actor. Errors are recoverable and reported only to
// the originating client.
func Apply(s *State, cmd Command) ([]Event, error) {
	switch cmd.Type {
	case CmdJoin:
		return applyJoin(s, cmd)
	case CmdLeave:
		return applyLeave(s, cmd)
	case CmdUpdateSettings:
		return applyUpdateSettings(s, cmd)
	case CmdStartGame:
		return applyStartGame(s, cmd)
	case CmdStartMinigame:
		return applyStartMinigame(s, cmd)
	case CmdStartSpinning:
		return applyStartSpinning(s, cmd)
	case CmdClick:
		return applyClick(s, cmd)
	case CmdSpin:
		return applySpin(s, cmd)
	case CmdToggleX2:
		return applyToggleX2(s, cmd)
	case CmdReady:
		return applyReady(s, cmd)
	case CmdTimerFired:
		return applyTimerFired(s, cmd)
	default:
		return nil, ErrUnsupportedCommand
	}
}

func applyJoin(s *State, cmd Command) ([]Event, error) {
	if s.GameState != GameWaiting {
		return nil, ErrGameInProgress
	}
	if len(s.Players) >= s.Settings.MaxPlayers {
		return nil, ErrLobbyFull
	}

	p := &Player{
		ID:    cmd.PlayerID,
		Name:  cmd.Name,
		Lives: s.Settings.StartLives,
		Alive: true,
		Host:  len(s.Players) == 0,
	}
	s.Players = append(s.Players, p)

	snap := Snapshot(s)
	return []Event{
		{Type: EvtLobbyJoined, To: p.ID, Payload: LobbyJoinedPayload{PlayerID: p.ID, Lobby: snap}},
		{Type: EvtPlayerJoined, Payload: PlayerJoinedPayload{Player: playerView(p), Lobby: snap}},
	}, nil
}

func applyLeave(s *State, cmd Command) ([]Event, error) {
	p := s.player(cmd.PlayerID)
	if p == nil {
		return nil, ErrNotFound
	}

	for i, q := range s.Players {
		if q.ID == p.ID {
			s.Players = append(s.Players[:i], s.Players[i+1:]...)
			break
		}
	}
	delete(s.Ready, p.ID)

	if len(s.Players) == 0 {
		// Actor tears the lobby down; nobody is left to notify.
		return nil, nil
	}

	if p.Host {
		s.Players[0].Host = true
	}

	var events []Event
	if s.Minigame != nil {
		s.Minigame.Remove(p.ID)
	}
	events = append(events, removeFromSpinQueue(s, p.ID)...)

	events = append(events, Event{
		Type:    EvtPlayerLeft,
		Payload: PlayerLeftPayload{PlayerID: p.ID, Lobby: Snapshot(s)},
	})

	if s.GameState == GameInProgress {
		if ended := checkGameEnd(s, cmd.Now); ended != nil {
			return append(events, ended...), nil
		}
		// Departure may have been the last unready alive player.
		events = append(events, maybeFinishResults(s, cmd.Now)...)
	}
	return events, nil
}

// removeFromSpinQueue drops a departing player from the queue. When the
// departing player holds the turn the pending spin is abandoned and the queue
// moves on (skip-on-disconnect), so the remaining players are never stalled.
func removeFromSpinQueue(s *State, id string) []Event {
	var events []Event
	hadTurn := len(s.SpinQueue) > 0 && s.SpinQueue[0] == id

	for i, q := range s.SpinQueue {
		if q == id {
			s.SpinQueue = append(s.SpinQueue[:i], s.SpinQueue[i+1:]...)
			break
		}
	}
	if s.PendingSpin != nil && s.PendingSpin.PlayerID == id {
		s.PendingSpin = nil
		events = append(events, cancelTimer(TimerSpinResolve))
	}

	if hadTurn && s.roundPhase() == PhaseSpinning {
		events = append(events, advanceSpinQueue(s)...)
	}
	return events
}

func applyUpdateSettings(s *State, cmd Command) ([]Event, error) {
	p := s.player(cmd.PlayerID)
	if p == nil {
		return nil, ErrNotFound
	}
	if !p.Host {
		return nil, ErrForbidden
	}
	if s.GameState != GameWaiting {
		return nil, ErrInvalidState
	}

	s.Settings.Apply(cmd.Patch)
	for _, q := range s.Players {
		q.Lives = s.Settings.StartLives
	}

	return []Event{{
		Type:    EvtSettingsUpdated,
		Payload: SettingsUpdatedPayload{Settings: s.Settings, Lobby: Snapshot(s)},
	}}, nil
}

func applyStartGame(s *State, cmd Command) ([]Event, error) {
	p := s.player(cmd.PlayerID)
	if p == nil {
		return nil, ErrNotFound
	}
	if !p.Host {
		return nil, ErrForbidden
	}
	if s.GameState != GameWaiting {
		return nil, ErrInvalidState
	}
	if len(s.Players) < 2 {
		return nil, ErrNotEnoughPlayers
	}

	s.GameState = GameInProgress
	s.CurrentRound = 1
	beginRound(s, cmd.Now)

	return []Event{{
		Type:    EvtGameStarted,
		Payload: GameStartedPayload{Lobby: Snapshot(s), CurrentRound: s.CurrentRound},
	}}, nil
}

// beginRound snapshots the alive players and the wheel into a fresh round in
// the preparation phase.
func beginRound(s *State, now time.Time) {
	s.Round = &Round{
		Number:       s.CurrentRound,
		Phase:        PhasePreparation,
		Participants: s.aliveIDs(),
		Results:      map[string]*RoundResult{},
		WheelAtStart: s.Wheel,
		StartedAt:    now,
	}
	s.Ready = map[string]bool{}
	s.SpinQueue = nil
	s.PendingSpin = nil
}

func applyStartMinigame(s *State, cmd Command) ([]Event, error) {
	p := s.player(cmd.PlayerID)
	if p == nil {
		return nil, ErrNotFound
	}
	if !p.Host {
		return nil, ErrForbidden
	}
	if s.GameState != GameInProgress || s.roundPhase() != PhasePreparation {
		return nil, ErrInvalidState
	}
	if s.Minigame != nil {
		return nil, ErrAlreadyRunning
	}

	s.Minigame = minigame.New(s.Round.Participants, minigame.DefaultMaxRounds)
	s.Round.Phase = PhaseMinigame

	return []Event{
		{Type: EvtMinigameStarted, Payload: MinigameStartedPayload{
			Type:      "reflexClick",
			PlayerIDs: s.Round.Participants,
			Message:   "Get ready! Click when the button becomes active!",
		}},
		armTimer(TimerMinigameBegin, 1, s.Timing.MinigameStartDelay),
	}, nil
}

func applyStartSpinning(s *State, cmd Command) ([]Event, error) {
	p := s.player(cmd.PlayerID)
	if p == nil {
		return nil, ErrNotFound
	}
	if !p.Host {
		return nil, ErrForbidden
	}
	if s.GameState != GameInProgress || s.roundPhase() != PhasePreparation {
		return nil, ErrInvalidState
	}

	// Host skipped the minigame: everyone alive spins.
	s.Round.Phase = PhaseSpinning
	s.SpinQueue = s.aliveIDs()
	return announceSpinQueue(s), nil
}

func announceSpinQueue(s *State) []Event {
	if len(s.SpinQueue) == 0 {
		s.Round.Phase = PhaseResults
		s.Ready = map[string]bool{}
		return []Event{{Type: EvtWheelComplete, Payload: WheelCompletePayload{Lobby: Snapshot(s)}}}
	}
	return []Event{{Type: EvtNextSpinner, Payload: NextSpinnerPayload{PlayerID: s.SpinQueue[0]}}}
}

func applyClick(s *State, cmd Command) ([]Event, error) {
	// Clicks outside a live minigame are ignored, not errors.
	if s.Minigame == nil {
		return nil, nil
	}

	verdict, _ := s.Minigame.HandleClick(cmd.PlayerID, cmd.Now)
	switch verdict {
	case minigame.VerdictTooEarly:
		return []Event{{
			Type:    EvtClickTooEarly,
			To:      cmd.PlayerID,
			Payload: ClickTooEarlyPayload{Message: "Too early! You are disqualified."},
		}}, nil

	case minigame.VerdictWin:
		return []Event{
			cancelTimer(TimerMinigameTimeout),
			{Type: EvtMinigameRoundResult, Payload: MinigameRoundResultPayload{
				Round:  s.Minigame.LastRound(),
				Points: s.Minigame.Points,
			}},
			armTimer(TimerMinigameNext, s.Minigame.Round, s.Timing.RoundDelay),
		}, nil

	default:
		// Late and ignored clicks produce no traffic.
		return nil, nil
	}
}

func applySpin(s *State, cmd Command) ([]Event, error) {
	p := s.player(cmd.PlayerID)
	if p == nil {
		return nil, ErrNotFound
	}
	if s.GameState != GameInProgress || s.roundPhase() != PhaseSpinning {
		return nil, ErrInvalidState
	}
	if len(s.SpinQueue) == 0 || s.SpinQueue[0] != p.ID {
		return nil, ErrNotYourTurn
	}
	if s.PendingSpin != nil {
		return nil, ErrInvalidState
	}

	// Drawn now, revealed after the animation delay. Server time decides.
	s.PendingSpin = &PendingSpin{
		PlayerID: p.ID,
		Outcome:  spinWheel(s.Wheel),
		X2:       p.X2Active,
	}

	return []Event{
		{Type: EvtSpinStarted, Payload: SpinStartedPayload{PlayerID: p.ID}},
		armTimer(TimerSpinResolve, s.CurrentRound, s.Timing.SpinDelay),
	}, nil
}

func applyToggleX2(s *State, cmd Command) ([]Event, error) {
	p := s.player(cmd.PlayerID)
	if p == nil {
		return nil, ErrNotFound
	}
	if !p.Alive {
		return nil, ErrInvalidState
	}
	if !s.Settings.X2RiskAllowed {
		return nil, ErrInvalidState
	}

	p.X2Active = !p.X2Active
	payload := X2Payload{PlayerID: p.ID, HasX2Active: p.X2Active}
	return []Event{
		{Type: EvtX2Updated, Payload: payload},
		{Type: EvtX2Echo, To: p.ID, Payload: payload},
	}, nil
}

func applyReady(s *State, cmd Command) ([]Event, error) {
	p := s.player(cmd.PlayerID)
	if p == nil {
		return nil, ErrNotFound
	}
	if s.GameState != GameInProgress || s.roundPhase() != PhaseResults {
		return nil, ErrInvalidState
	}
	if !p.Alive {
		return nil, ErrInvalidState
	}

	s.Ready[p.ID] = true
	events := []Event{{Type: EvtPlayerReady, Payload: PlayerReadyPayload{
		PlayerID:   p.ID,
		ReadyCount: len(s.Ready),
		TotalAlive: len(s.alivePlayers()),
	}}}
	return append(events, maybeFinishResults(s, cmd.Now)...), nil
}

// maybeFinishResults closes the round once every alive player has signalled
// readiness, then either begins the next round or ends the game.
func maybeFinishResults(s *State, now time.Time) []Event {
	if s.roundPhase() != PhaseResults {
		return nil
	}
	for _, p := range s.alivePlayers() {
		if !s.Ready[p.ID] {
			return nil
		}
	}

	// Round survival payout keeps MoneyRush decidable.
	if s.Settings.GameMode == ModeMoneyRush {
		for _, p := range s.alivePlayers() {
			p.Money += s.Timing.MoneyPerRound
			s.moneyCounter++
			p.moneySeq = s.moneyCounter
			s.roundResult(p.ID).MoneyEarned += s.Timing.MoneyPerRound
		}
	}

	archiveRound(s, now)
	s.CurrentRound++

	if ended := checkGameEnd(s, now); ended != nil {
		return ended
	}

	beginRound(s, now)
	return []Event{{
		Type:    EvtNewRound,
		Payload: NewRoundPayload{Lobby: Snapshot(s), CurrentRound: s.CurrentRound},
	}}
}

func archiveRound(s *State, now time.Time) {
	if s.Round == nil {
		return
	}
	s.Round.EndedAt = now
	s.History = append(s.History, *s.Round)
	s.Round = nil
}

func applyTimerFired(s *State, cmd Command) ([]Event, error) {
	switch cmd.Timer {
	case TimerMinigameBegin:
		if s.Minigame == nil || s.Minigame.Phase != minigame.PhaseWaiting {
			return nil, nil
		}
		return startMinigameRound(s), nil

	case TimerMinigameEnable:
		if s.Minigame == nil || s.Minigame.Round != cmd.Round {
			return nil, nil
		}
		if !s.Minigame.Enable(cmd.Now) {
			return nil, nil
		}
		return []Event{
			{Type: EvtEnableClick, Payload: EnableClickPayload{Timestamp: cmd.Now.UnixMilli()}},
			armTimer(TimerMinigameTimeout, s.Minigame.Round, s.Timing.ClickWindow),
		}, nil

	case TimerMinigameTimeout:
		if s.Minigame == nil || s.Minigame.Round != cmd.Round {
			return nil, nil
		}
		if !s.Minigame.TimeoutRound() {
			return nil, nil
		}
		return []Event{
			{Type: EvtMinigameRoundResult, Payload: MinigameRoundResultPayload{
				Round:  s.Minigame.LastRound(),
				Points: s.Minigame.Points,
			}},
			armTimer(TimerMinigameNext, s.Minigame.Round, s.Timing.RoundDelay),
		}, nil

	case TimerMinigameNext:
		if s.Minigame == nil || s.Minigame.Round != cmd.Round {
			return nil, nil
		}
		if s.Minigame.Done() {
			return finishMinigame(s), nil
		}
		return startMinigameRound(s), nil

	case TimerScoreboard:
		if s.GameState != GameInProgress || s.roundPhase() != PhaseSpinning {
			return nil, nil
		}
		return announceSpinQueue(s), nil

	case TimerSpinResolve:
		if s.PendingSpin == nil || s.roundPhase() != PhaseSpinning {
			return nil, nil
		}
		return resolveSpin(s, cmd.Now), nil

	default:
		return nil, nil
	}
}

func startMinigameRound(s *State) []Event {
	if !s.Minigame.BeginRound() {
		return nil
	}
	enableDelay := s.Timing.EnableMin
	if span := s.Timing.EnableMax - s.Timing.EnableMin; span > 0 {
		jitterMS := randUint32n(uint32(span / time.Millisecond))
		enableDelay += time.Duration(jitterMS) * time.Millisecond
	}
	return []Event{
		{Type: EvtMinigameRoundStarted, Payload: MinigameRoundStartedPayload{
			Round:     s.Minigame.Round,
			MaxRounds: s.Minigame.MaxRounds,
		}},
		armTimer(TimerMinigameEnable, s.Minigame.Round, enableDelay),
	}
}

// finishMinigame settles the race: the winner banks a bonus life and skips
// the wheel, every other alive participant is queued to spin.
func finishMinigame(s *State) []Event {
	res := s.Minigame.Finish()
	s.Minigame = nil

	if winner := s.player(res.WinnerID); winner != nil && winner.Alive {
		winner.Lives++
		s.roundResult(winner.ID).MinigameResult = "win"
	}

	var losers []string
	for _, id := range s.Round.Participants {
		p := s.player(id)
		if p == nil || !p.Alive || id == res.WinnerID {
			continue
		}
		losers = append(losers, id)
		s.roundResult(id).MinigameResult = "lose"
	}

	s.Round.Losers = losers
	s.Round.Phase = PhaseSpinning
	s.SpinQueue = losers

	return []Event{
		{Type: EvtMinigameResult, Payload: MinigameResultPayload{
			Type:   "reflexClick",
			Result: res,
			Losers: losers,
			Lobby:  Snapshot(s),
		}},
		armTimer(TimerScoreboard, s.CurrentRound, s.Timing.ScoreboardDelay),
	}
}

func resolveSpin(s *State, now time.Time) []Event {
	spin := s.PendingSpin
	s.PendingSpin = nil

	p := s.player(spin.PlayerID)
	if p == nil {
		// Spinner left between request and reveal; queue already advanced.
		return nil
	}

	livesLost := 0
	switch spin.Outcome {
	case wheel.OutcomeDeath:
		livesLost = 1
		if spin.X2 {
			livesLost = 2
		}
		p.Lives -= livesLost
		if p.Lives <= 0 {
			p.Lives = 0
			p.Alive = false
		}
	case wheel.OutcomeBonus:
		p.Lives++
	}

	// X2 is single-use: spent on this spin no matter the outcome.
	p.X2Active = false
	p.SpinHistory = append(p.SpinHistory, SpinRecord{Round: s.CurrentRound, Result: spin.Outcome})

	r := s.roundResult(p.ID)
	r.SpinResult = spin.Outcome
	r.HadX2 = spin.X2
	r.LivesLost = livesLost
	r.Survived = p.Alive

	if spin.Outcome != wheel.OutcomeDeath {
		s.Wheel = wheel.Harden(s.Wheel)
	}

	events := []Event{{Type: EvtSpinResult, Payload: SpinResultPayload{
		PlayerID:   p.ID,
		Result:     spin.Outcome,
		LivesLost:  livesLost,
		NewLives:   p.Lives,
		IsAlive:    p.Alive,
		DeathWheel: s.Wheel,
	}}}

	if len(s.SpinQueue) > 0 && s.SpinQueue[0] == p.ID {
		s.SpinQueue = s.SpinQueue[1:]
	}

	if ended := checkGameEnd(s, now); ended != nil {
		return append(events, ended...)
	}
	return append(events, advanceSpinQueue(s)...)
}

func advanceSpinQueue(s *State) []Event {
	return announceSpinQueue(s)
}

// checkGameEnd evaluates the end conditions; non-nil means the game is over
// and the returned events close it out.
func checkGameEnd(s *State, now time.Time) []Event {
	if s.GameState != GameInProgress {
		return nil
	}
	alive := s.alivePlayers()

	switch s.Settings.GameMode {
	case ModeLastManStanding:
		if len(alive) > 1 {
			return nil
		}
		var winner *Player
		if len(alive) == 1 {
			winner = alive[0]
		}
		return endGame(s, winner, now)

	case ModeMoneyRush:
		if len(alive) > 0 && s.CurrentRound <= s.Settings.MaxRounds {
			return nil
		}
		return endGame(s, moneyWinner(s), now)
	}
	// SurvivalScore has no round-count end condition; it still closes once the
	// wheel has killed everyone.
	if len(alive) == 0 {
		return endGame(s, nil, now)
	}
	return nil
}

// moneyWinner picks the richest player; money ties go to whoever reached the
// amount first (then join order, since payouts are credited in join order).
func moneyWinner(s *State) *Player {
	var best *Player
	for _, p := range s.Players {
		if best == nil || p.Money > best.Money ||
			(p.Money == best.Money && p.moneySeq < best.moneySeq) {
			best = p
		}
	}
	return best
}

func endGame(s *State, winner *Player, now time.Time) []Event {
	s.GameState = GameEnded
	archiveRound(s, now)
	s.SpinQueue = nil
	s.PendingSpin = nil
	s.Minigame = nil

	var view *PlayerView
	if winner != nil {
		s.WinnerID = winner.ID
		v := playerView(winner)
		view = &v
	}

	return []Event{{Type: EvtGameEnded, Payload: GameEndedPayload{Winner: view, Lobby: Snapshot(s)}}}
}
