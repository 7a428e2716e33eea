package types

// Lobby snapshot (attached to membership and round-boundary messages):
//   code: string
//   name: string
//   gameState: "Waiting" | "InProgress" | "Ended"
//   currentRound: number
//   phase: "preparation" | "minigame" | "spinning" | "results" // absent between rounds
//   gameSettings: { gameMode, maxRounds, startLives, maxPlayers, gamblingAllowed, x2RiskAllowed }
//   deathWheel: { redFields, greenFields, bonusFields }
//   odds: { red, green, bonus, total } // exact field counts
//   hostId: string
//   players: [ { id, name, lives, money, isAlive, isHost, hasX2Active, spinHistory } ]
//   spinQueue: string[] // head spins next; empty outside the spinning phase
