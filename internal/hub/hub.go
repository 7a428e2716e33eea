package hub

import (
	"context"
	"crypto/rand"
	"math/big"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"github.com/greed-games/greedroulette/internal/engine"
	"github.com/greed-games/greedroulette/internal/lobby"
	"github.com/greed-games/greedroulette/internal/logging"
)

const maxLobbyName = 30

// Archiver persists finished games. Nil disables persistence.
type Archiver interface {
	SaveGame(ctx context.Context, s lobby.Summary) error
}

type HubMsg interface{ isHubMsg() }

type CreateLobby struct {
	Name     string
	Settings engine.Settings
	Reply    chan CreateReply
}

type CreateReply struct {
	Code  string
	Lobby *lobby.Lobby
	Err   error
}

type GetLobby struct {
	Code  string
	Reply chan *lobby.Lobby
}

type RemoveLobby struct {
	Code string
}

type ListLobbies struct {
	Reply chan []Info
}

// Info is the directory listing entry for one open lobby.
type Info struct {
	Code      string           `json:"code"`
	Name      string           `json:"name"`
	Players   int              `json:"players"`
	GameState engine.GameState `json:"gameState"`
	CreatedAt time.Time        `json:"createdAt"`
}

type RecentGames struct {
	Reply chan []lobby.Summary
}

type gameEnded struct {
	summary lobby.Summary
}

type ShutdownHub struct{}

func (CreateLobby) isHubMsg() {}
func (GetLobby) isHubMsg()    {}
func (RemoveLobby) isHubMsg() {}
func (ListLobbies) isHubMsg() {}
func (RecentGames) isHubMsg() {}
func (gameEnded) isHubMsg()   {}
func (ShutdownHub) isHubMsg() {}

type Options struct {
	Timing      engine.Timing
	Archive     Archiver
	RecentGames int // size of the recent-games ring, default 50
}

type Hub struct {
	inbox   chan HubMsg
	lobbies map[string]*lobby.Lobby
	recent  *lru.Cache
	opts    Options
	log     *zap.SugaredLogger
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewHub(parent context.Context, opts Options) *Hub {
	ctx, cancel := context.WithCancel(parent)

	if opts.RecentGames <= 0 {
		opts.RecentGames = 50
	}
	recent, _ := lru.New(opts.RecentGames)

	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		lobbies: make(map[string]*lobby.Lobby),
		recent:  recent,
		opts:    opts,
		log:     logging.FromContext(parent).With("component", "hub"),
		ctx:     ctx,
		cancel:  cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateLobby:
				msg.Reply <- h.createLobby(msg)

			case GetLobby:
				msg.Reply <- h.lobbies[msg.Code] // may be nil

			case RemoveLobby:
				delete(h.lobbies, msg.Code)

			case ListLobbies:
				msg.Reply <- h.listLobbies()

			case RecentGames:
				msg.Reply <- h.recentGames()

			case gameEnded:
				h.recordEnded(msg.summary)

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) createLobby(msg CreateLobby) CreateReply {
	code, err := h.uniqueCode()
	if err != nil {
		return CreateReply{Err: err}
	}

	name := strings.TrimSpace(msg.Name)
	if name == "" {
		name = "Lobby " + code
	}
	if len(name) > maxLobbyName {
		name = name[:maxLobbyName]
	}

	lb := lobby.NewLobby(h.ctx, code, name, msg.Settings, lobby.Options{
		Timing: h.opts.Timing,
		OnEnded: func(s lobby.Summary) {
			select {
			case h.inbox <- gameEnded{summary: s}:
			case <-h.ctx.Done():
			}
		},
		OnEmpty: func(code string) {
			select {
			case h.inbox <- RemoveLobby{Code: code}:
			case <-h.ctx.Done():
			}
		},
	})
	h.lobbies[code] = lb
	h.log.Infow("lobby created", "code", code, "name", name)
	return CreateReply{Code: code, Lobby: lb}
}

// uniqueCode draws 6-char codes until one misses the registry. Collisions are
// vanishingly rare at 36^6 but cheap to retry.
func (h *Hub) uniqueCode() (string, error) {
	for {
		code, err := GenerateCode()
		if err != nil {
			return "", err
		}
		if _, taken := h.lobbies[code]; !taken {
			return code, nil
		}
		h.log.Warnw("lobby code collision, regenerating", "code", code)
	}
}

func GenerateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 6)
	for i := 0; i < 6; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

func (h *Hub) listLobbies() []Info {
	infos := make([]Info, 0, len(h.lobbies))
	for _, lb := range h.lobbies {
		info := Info{Code: lb.Code(), Name: lb.Name(), CreatedAt: lb.CreatedAt()}

		// Lobby actors answer from their own goroutine; an unresponsive one
		// is skipped rather than stalling the directory.
		reply := make(chan lobby.View, 1)
		select {
		case lb.Inbox() <- lobby.GetState{Reply: reply}:
		default:
			continue
		}
		select {
		case view := <-reply:
			info.Players = len(view.State.Players)
			info.GameState = view.State.GameState
		case <-time.After(100 * time.Millisecond):
			continue
		}
		infos = append(infos, info)
	}
	return infos
}

func (h *Hub) recentGames() []lobby.Summary {
	keys := h.recent.Keys()
	out := make([]lobby.Summary, 0, len(keys))
	// Keys come back oldest first; the feed wants the latest on top.
	for i := len(keys) - 1; i >= 0; i-- {
		if v, ok := h.recent.Get(keys[i]); ok {
			out = append(out, v.(lobby.Summary))
		}
	}
	return out
}

func (h *Hub) recordEnded(s lobby.Summary) {
	h.recent.Add(s.Code+s.EndedAt.Format(time.RFC3339Nano), s)
	h.log.Infow("game finished", "code", s.Code, "mode", s.Mode, "winner", s.WinnerName)

	if h.opts.Archive == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.opts.Archive.SaveGame(ctx, s); err != nil {
			h.log.Errorw("archive write failed", "code", s.Code, "err", err)
		}
	}()
}

func (h *Hub) shutdown() {
	for _, lb := range h.lobbies {
		lb.Inbox() <- lobby.Shutdown{}
	}
	clear(h.lobbies)
	h.cancel()
}
