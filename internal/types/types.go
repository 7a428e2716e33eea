package types

import "github.com/greed-games/greedroulette/internal/engine"

// ClientMessage is the envelope for every client-to-server frame. Fields beyond
// Type are filled per message kind; unused ones stay empty.
type ClientMessage struct {
	Type       string                `json:"type"`
	PlayerName string                `json:"playerName,omitempty"` // createLobby, joinLobby
	LobbyName  string                `json:"lobbyName,omitempty"`  // createLobby
	LobbyCode  string                `json:"lobbyCode,omitempty"`  // joinLobby
	Settings   *engine.SettingsPatch `json:"gameSettings,omitempty"`
	Timestamp  int64                 `json:"timestamp,omitempty"` // clickAttempt, unix ms; informational only
}

// ServerMessage wraps one outbound event. Version is the lobby's state
// version at send time so clients can discard reordered frames.
type ServerMessage struct {
	Type    string `json:"type"`
	Version int    `json:"version,omitempty"`
	Payload any    `json:"payload,omitempty"`
}
