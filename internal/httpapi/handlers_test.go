package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/greed-games/greedroulette/internal/engine"
	"github.com/greed-games/greedroulette/internal/hub"
	"github.com/greed-games/greedroulette/internal/wheel"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv := httptest.NewServer(SetupRoutes(hub.NewHub(ctx, hub.Options{})))
	t.Cleanup(srv.Close)
	return srv
}

func TestCreateThenGetLobby(t *testing.T) {
	srv := newServer(t)

	lives := 3
	body, _ := json.Marshal(createLobbyRequest{Name: "saturday game", Settings: &engine.SettingsPatch{StartLives: &lives}})
	resp, err := http.Post(srv.URL+"/lobbies", "application/json", strings.NewReader(string(body)))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	var created struct {
		Code string `json:"code"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(created.Code) != 6 || created.Name != "saturday game" {
		t.Fatalf("created = %+v", created)
	}

	// Lookups are case-insensitive on the code.
	get, err := http.Get(srv.URL + "/lobbies/" + strings.ToLower(created.Code))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer get.Body.Close()
	if get.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, want 200", get.StatusCode)
	}

	var snap engine.LobbySnapshot
	if err := json.NewDecoder(get.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Code != created.Code || snap.GameState != engine.GameWaiting {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.Settings.StartLives != 3 {
		t.Fatalf("settings patch lost: %+v", snap.Settings)
	}
	if snap.Wheel != wheel.DefaultState() {
		t.Fatalf("wheel = %+v, want default", snap.Wheel)
	}
}

func TestGetLobby_UnknownCode(t *testing.T) {
	srv := newServer(t)
	resp, err := http.Get(srv.URL + "/lobbies/NOPE00")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestListLobbiesAndRecentGames(t *testing.T) {
	srv := newServer(t)

	resp, err := http.Post(srv.URL+"/lobbies", "application/json", strings.NewReader(`{"name":"open table"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()

	list, err := http.Get(srv.URL + "/lobbies")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	defer list.Body.Close()
	var infos []hub.Info
	if err := json.NewDecoder(list.Body).Decode(&infos); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(infos) != 1 || infos[0].Name != "open table" {
		t.Fatalf("listing = %+v", infos)
	}

	recent, err := http.Get(srv.URL + "/games/recent")
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	defer recent.Body.Close()
	if recent.StatusCode != http.StatusOK {
		t.Fatalf("recent status = %d, want 200", recent.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	srv := newServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}
