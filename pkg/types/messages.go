package types

// Client -> Server
// createLobby:
//   playerName: string (max 20 chars)
//   lobbyName: string (max 30 chars)
//   gameSettings: partial settings patch (optional)
//
// joinLobby:
//   playerName: string
//   lobbyCode: string (6 uppercase alphanumerics)
//
// leaveLobby: {}
//
// updateGameSettings (host only, Waiting only):
//   gameSettings:
//     gameMode: "LastManStanding" | "MoneyRush" | "SurvivalScore"
//     maxRounds: 1..50
//     startLives: 1..10
//     maxPlayers: 2..12
//     gamblingAllowed: boolean
//     x2RiskAllowed: boolean
//
// startGame (host only, needs >= 2 players): {}
//
// startMinigame (host only, preparation phase): {}
//
// startSpinning (host only, skips the minigame): {}
//
// clickAttempt:
//   timestamp: number (client clock, informational; server receipt decides)
//
// playerSpin (head of the spin queue only): {}
//
// activateX2 (toggles; spent on the next spin): {}
//
// readyNextRound (results phase): {}

// Server -> Client
// lobbyCreated / lobbyJoined:
//   playerId: string
//   lobby: snapshot (see snapshot.go)
//
// playerJoined / playerLeft: membership change + fresh snapshot
//
// gameSettingsUpdated: { gameSettings, lobby }
//
// gameStarted / newRound: { lobby, currentRound }
//
// minigameStarted: { type: "reflexClick", playerIds, message }
// roundStarted:    { round, maxRounds }
// enableClick:     { timestamp } // unix ms, reaction times measured from here
// clickTooEarly:   { message }   // sender only, disqualification notice
// roundResult:     { round, points }
// minigameResult:  { type, result, losers, lobby }
//
// spinStarted: { playerId }
// spinResult:  { playerId, result, livesLost, newLives, isAlive, deathWheelState }
// nextSpinner: { playerId }
// deathWheelComplete: { lobby }
//
// playerX2Updated: { playerId, hasX2Active } // broadcast
// x2Updated:       { playerId, hasX2Active } // sender echo
//
// playerReady: { playerId, readyCount, totalAlive }
//
// gameEnded: { winner, lobby } // winner null when nobody survived
//
// error:
//   message: string // sender-scoped, never broadcast
