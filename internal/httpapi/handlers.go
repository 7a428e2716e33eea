package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/greed-games/greedroulette/internal/engine"
	"github.com/greed-games/greedroulette/internal/hub"
	"github.com/greed-games/greedroulette/internal/lobby"
)

type createLobbyRequest struct {
	Name     string                `json:"name"`
	Settings *engine.SettingsPatch `json:"gameSettings,omitempty"`
}

// CreateLobby pre-creates an empty lobby over REST so the code can be shared
// before anyone connects. The creator still joins over the websocket.
func CreateLobby(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createLobbyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}

		settings := engine.DefaultSettings()
		if req.Settings != nil {
			settings.Apply(*req.Settings)
		}

		reply := make(chan hub.CreateReply, 1)
		h.Inbox() <- hub.CreateLobby{Name: req.Name, Settings: settings, Reply: reply}
		rep := <-reply
		if rep.Err != nil {
			http.Error(w, "failed to create lobby", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusCreated, struct {
			Code string `json:"code"`
			Name string `json:"name"`
		}{Code: rep.Code, Name: rep.Lobby.Name()})
	}
}

func ListLobbies(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reply := make(chan []hub.Info, 1)
		h.Inbox() <- hub.ListLobbies{Reply: reply}
		select {
		case infos := <-reply:
			writeJSON(w, http.StatusOK, infos)
		case <-time.After(2 * time.Second):
			http.Error(w, "registry busy", http.StatusServiceUnavailable)
		}
	}
}

func GetLobby(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := strings.ToUpper(chi.URLParam(r, "code"))

		reply := make(chan *lobby.Lobby, 1)
		h.Inbox() <- hub.GetLobby{Code: code, Reply: reply}
		lb := <-reply
		if lb == nil {
			http.Error(w, "lobby not found", http.StatusNotFound)
			return
		}

		view := make(chan lobby.View, 1)
		lb.Inbox() <- lobby.GetState{Reply: view}
		select {
		case v := <-view:
			writeJSON(w, http.StatusOK, v.State)
		case <-time.After(2 * time.Second):
			http.Error(w, "lobby busy", http.StatusServiceUnavailable)
		}
	}
}

// RecentGames serves the in-memory feed of finished games, newest first.
func RecentGames(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reply := make(chan []lobby.Summary, 1)
		h.Inbox() <- hub.RecentGames{Reply: reply}
		select {
		case games := <-reply:
			writeJSON(w, http.StatusOK, games)
		case <-time.After(2 * time.Second):
			http.Error(w, "registry busy", http.StatusServiceUnavailable)
		}
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
