package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/greed-games/greedroulette/internal/hub"
	"github.com/greed-games/greedroulette/internal/ws"
)

func SetupRoutes(h *hub.Hub) http.Handler {
	r := chi.NewRouter()

	// Public routes
	r.Post("/lobbies", CreateLobby(h))
	r.Get("/lobbies", ListLobbies(h))
	r.Get("/lobbies/{code}", GetLobby(h))
	r.Get("/games/recent", RecentGames(h))
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(h))
	return r
}
