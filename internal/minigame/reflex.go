package minigame

import (
	"time"
)

type Phase string

const (
	PhaseWaiting     Phase = "waiting"
	PhaseCountdown   Phase = "countdown"
	PhaseActive      Phase = "active"
	PhaseRoundResult Phase = "roundResult"
	PhaseFinished    Phase = "finished"
)

const (
	DefaultMaxRounds = 3
	WinPoints        = 3
)

type Verdict int

const (
	VerdictIgnored Verdict = iota
	VerdictTooEarly
	VerdictWin
	VerdictLate
)

type Click struct {
	PlayerID   string `json:"playerId"`
	ReactionMS int64  `json:"reactionMs"`
	Winner     bool   `json:"winner"`
}

type Round struct {
	Number   int     `json:"number"`
	WinnerID string  `json:"winnerId,omitempty"`
	Clicks   []Click `json:"clicks"`
}

type Result struct {
	WinnerID     string         `json:"winnerId,omitempty"`
	Points       map[string]int `json:"points"`
	RoundWinners []string       `json:"roundWinners"`
	Rounds       []Round        `json:"rounds"`
	Eliminated   map[string]int `json:"eliminated"`
}

// Reflex is the best-of-N first-click race. All transitions happen on the
// owning lobby's goroutine; the caller arms the enable and timeout delays and
// feeds them back as Enable / TimeoutRound calls. Click ordering is therefore
// server receipt order, which is what makes the single-winner rule hold.
type Reflex struct {
	Phase        Phase
	MaxRounds    int
	Round        int // 1-based once the first round begins
	Players      []string
	Points       map[string]int
	Eliminated   map[string]int // player id -> round of the premature click
	RoundWinners []string       // in win order, used for the tie-break
	Rounds       []Round
	EnableAt     time.Time

	clicked map[string]bool
}

func New(players []string, maxRounds int) *Reflex {
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	ids := make([]string, len(players))
	copy(ids, players)
	return &Reflex{
		Phase:      PhaseWaiting,
		MaxRounds:  maxRounds,
		Players:    ids,
		Points:     make(map[string]int, len(ids)),
		Eliminated: make(map[string]int),
		clicked:    make(map[string]bool),
	}
}

func (g *Reflex) Participant(id string) bool {
	for _, p := range g.Players {
		if p == id {
			return true
		}
	}
	return false
}

// InPlay reports whether the player can still score in this minigame.
func (g *Reflex) InPlay(id string) bool {
	if !g.Participant(id) {
		return false
	}
	_, out := g.Eliminated[id]
	return !out
}

// BeginRound opens the next round's countdown. Valid from waiting (round 1)
// and from roundResult (subsequent rounds).
func (g *Reflex) BeginRound() bool {
	if g.Phase != PhaseWaiting && g.Phase != PhaseRoundResult {
		return false
	}
	if g.Round >= g.MaxRounds {
		return false
	}
	g.Round++
	g.Phase = PhaseCountdown
	g.clicked = make(map[string]bool)
	g.Rounds = append(g.Rounds, Round{Number: g.Round})
	return true
}

// Enable flips countdown to active and records the timestamp reaction times
// are measured against.
func (g *Reflex) Enable(now time.Time) bool {
	if g.Phase != PhaseCountdown {
		return false
	}
	g.Phase = PhaseActive
	g.EnableAt = now
	return true
}

// HandleClick resolves one click attempt. For a winning click the phase moves
// to roundResult; the caller must cancel the round's no-click timeout.
func (g *Reflex) HandleClick(id string, now time.Time) (Verdict, int64) {
	if !g.InPlay(id) {
		return VerdictIgnored, 0
	}

	switch g.Phase {
	case PhaseCountdown:
		// Premature click: out for the rest of the minigame, the round keeps
		// running for everyone else.
		g.Eliminated[id] = g.Round
		return VerdictTooEarly, 0

	case PhaseActive:
		if g.clicked[id] {
			return VerdictIgnored, 0
		}
		g.clicked[id] = true
		reaction := now.Sub(g.EnableAt).Milliseconds()
		cur := g.currentRound()
		cur.WinnerID = id
		cur.Clicks = append(cur.Clicks, Click{PlayerID: id, ReactionMS: reaction, Winner: true})
		g.Points[id] += WinPoints
		g.RoundWinners = append(g.RoundWinners, id)
		g.Phase = PhaseRoundResult
		return VerdictWin, reaction

	case PhaseRoundResult:
		// The round was already won; record the reaction anyway.
		if g.clicked[id] {
			return VerdictIgnored, 0
		}
		g.clicked[id] = true
		reaction := now.Sub(g.EnableAt).Milliseconds()
		cur := g.currentRound()
		cur.Clicks = append(cur.Clicks, Click{PlayerID: id, ReactionMS: reaction})
		return VerdictLate, reaction

	default:
		return VerdictIgnored, 0
	}
}

// TimeoutRound closes an active round in which nobody clicked.
func (g *Reflex) TimeoutRound() bool {
	if g.Phase != PhaseActive {
		return false
	}
	g.Phase = PhaseRoundResult
	return true
}

func (g *Reflex) currentRound() *Round {
	return &g.Rounds[len(g.Rounds)-1]
}

// LastRound returns the most recently closed (or running) round.
func (g *Reflex) LastRound() Round {
	if len(g.Rounds) == 0 {
		return Round{}
	}
	return g.Rounds[len(g.Rounds)-1]
}

// Done reports whether all rounds have been played out.
func (g *Reflex) Done() bool {
	return g.Round >= g.MaxRounds && g.Phase == PhaseRoundResult
}

// Finish computes the overall result. The winner holds the most points; on a
// tie the earlier entry in the round-winners order takes it, i.e. the first
// player to reach the shared total.
func (g *Reflex) Finish() Result {
	g.Phase = PhaseFinished

	var winner string
	best := 0
	for _, id := range g.RoundWinners {
		if g.Points[id] > best {
			best = g.Points[id]
			winner = id
		}
	}

	points := make(map[string]int, len(g.Players))
	for _, id := range g.Players {
		points[id] = g.Points[id]
	}

	return Result{
		WinnerID:     winner,
		Points:       points,
		RoundWinners: append([]string(nil), g.RoundWinners...),
		Rounds:       append([]Round(nil), g.Rounds...),
		Eliminated:   g.Eliminated,
	}
}

// Remove drops a leaving player from the race without ending the round.
func (g *Reflex) Remove(id string) {
	for i, p := range g.Players {
		if p == id {
			g.Players = append(g.Players[:i], g.Players[i+1:]...)
			break
		}
	}
	delete(g.Points, id)
	delete(g.Eliminated, id)
	delete(g.clicked, id)
}
