package hub

import (
	"context"
	"errors"
	"fmt"

	"github.com/DoyleJ11/rodizio-backend/internal/lobby"
	"go.uber.org/zap"
)

var ErrCodeTaken = errors.New("lobby code already in use")

type HubMsg interface{ isHubMsg() }

// CreateLobby starts a new lobby for Code. Reply receives nil if a lobby
// with that code is already running or still flushing.
type CreateLobby struct {
	Code  string
	Reply chan *lobby.Lobby
}

type GetLobby struct {
	Code  string
	Reply chan *lobby.Lobby
}

// EnsureLobby returns the running lobby for Code, starting it (and so
// restoring its persisted roster) if needed.
type EnsureLobby struct {
	Code  string
	Reply chan *lobby.Lobby
}

// RemoveLobby stops the lobby for Code. If Lobby is set, only that instance
// is stopped, so a stale request cannot remove its replacement.
type RemoveLobby struct {
	Code  string
	Lobby *lobby.Lobby
}

// ShutdownHub stops every lobby. Done, if set, is closed once all of them
// have flushed their last state.
type ShutdownHub struct {
	Done chan struct{}
}

// flushed tells the hub a removed lobby has written its last state.
type flushed struct {
	code  string
	saved <-chan struct{}
}

type Hub struct {
	inbox    chan HubMsg
	lobbies  map[string]*lobby.Lobby
	closing  map[string]<-chan struct{} // removed lobbies still saving
	template lobby.Config
	logger   *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

func (CreateLobby) isHubMsg() {}
func (GetLobby) isHubMsg()    {}
func (EnsureLobby) isHubMsg() {}
func (RemoveLobby) isHubMsg() {}
func (ShutdownHub) isHubMsg() {}
func (flushed) isHubMsg()     {}

// NewHub starts the hub. Every lobby it creates is configured from template
// with its own code. When the template has a store and an IdleTimeout,
// idle lobbies are stopped and restored again on their next use.
func NewHub(parent context.Context, template lobby.Config) *Hub {
	ctx, cancel := context.WithCancel(parent)
	logger := template.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		lobbies:  make(map[string]*lobby.Lobby),
		closing:  make(map[string]<-chan struct{}),
		template: template,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown(nil)
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateLobby:
				if h.lobbies[msg.Code] != nil || h.closing[msg.Code] != nil {
					msg.Reply <- nil
					continue
				}
				msg.Reply <- h.ensure(msg.Code)

			case GetLobby:
				msg.Reply <- h.lobbies[msg.Code] // May be nil

			case EnsureLobby:
				msg.Reply <- h.ensure(msg.Code)

			case RemoveLobby:
				h.remove(msg.Code, msg.Lobby)

			case flushed:
				if h.closing[msg.code] == msg.saved {
					delete(h.closing, msg.code)
				}

			case ShutdownHub:
				h.shutdown(msg.Done)
				return
			}
		}
	}
}

func (h *Hub) ensure(code string) *lobby.Lobby {
	if lb := h.lobbies[code]; lb != nil {
		return lb
	}
	cfg := h.template
	cfg.Code = code
	cfg.After = h.closing[code]
	if cfg.Store != nil {
		cfg.OnIdle = h.reap
	} else {
		// Without a store a stopped lobby could not be restored.
		cfg.IdleTimeout = 0
	}
	lb := lobby.NewLobby(h.ctx, cfg)
	h.lobbies[code] = lb
	h.logger.Info("lobby started", zap.String("code", code))
	return lb
}

// reap runs on the lobby's loop, so it hands the request over without
// waiting on the hub.
func (h *Hub) reap(lb *lobby.Lobby) {
	go h.send(RemoveLobby{Code: lb.Code(), Lobby: lb})
}

func (h *Hub) remove(code string, target *lobby.Lobby) {
	lb := h.lobbies[code]
	if lb == nil || (target != nil && lb != target) {
		return
	}
	lb.Inbox() <- lobby.Shutdown{}
	delete(h.lobbies, code)

	saved := lb.Saved()
	h.closing[code] = saved
	go func() {
		<-saved
		h.send(flushed{code: code, saved: saved})
	}()
	h.logger.Info("lobby stopped", zap.String("code", code))
}

func (h *Hub) send(msg HubMsg) {
	select {
	case h.inbox <- msg:
	case <-h.ctx.Done():
	}
}

func (h *Hub) shutdown(done chan struct{}) {
	saved := make([]<-chan struct{}, 0, len(h.lobbies)+len(h.closing))
	for _, lb := range h.lobbies {
		saved = append(saved, lb.Saved())
		lb.Inbox() <- lobby.Shutdown{}
	}
	for _, ch := range h.closing {
		saved = append(saved, ch)
	}
	clear(h.lobbies)
	clear(h.closing)
	h.cancel()

	if done == nil {
		return
	}
	go func() {
		for _, ch := range saved {
			<-ch
		}
		close(done)
	}()
}

// Create registers code with the store and starts its lobby. It fails with
// ErrCodeTaken if the code is running or already persisted.
func (h *Hub) Create(ctx context.Context, code string) (*lobby.Lobby, error) {
	if st := h.template.Store; st != nil {
		exists, err := st.Exists(ctx, code)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, ErrCodeTaken
		}
		if err := st.Create(ctx, code); err != nil {
			return nil, fmt.Errorf("create lobby %s: %w", code, err)
		}
	}
	lb, err := h.ask(ctx, func(reply chan *lobby.Lobby) HubMsg { return CreateLobby{Code: code, Reply: reply} })
	if err != nil {
		return nil, err
	}
	if lb == nil {
		return nil, ErrCodeTaken
	}
	return lb, nil
}

// Open returns the lobby for a known code: running, or persisted and then
// restored. It returns nil for a code that was never created.
func (h *Hub) Open(ctx context.Context, code string) (*lobby.Lobby, error) {
	lb, err := h.Get(ctx, code)
	if err != nil || lb != nil {
		return lb, err
	}
	st := h.template.Store
	if st == nil {
		return nil, nil
	}
	exists, err := st.Exists(ctx, code)
	if err != nil || !exists {
		return nil, err
	}
	return h.Ensure(ctx, code)
}

// Ensure is a blocking helper around EnsureLobby.
func (h *Hub) Ensure(ctx context.Context, code string) (*lobby.Lobby, error) {
	return h.ask(ctx, func(reply chan *lobby.Lobby) HubMsg { return EnsureLobby{Code: code, Reply: reply} })
}

// Get is a blocking helper around GetLobby. It returns nil for unknown codes.
func (h *Hub) Get(ctx context.Context, code string) (*lobby.Lobby, error) {
	return h.ask(ctx, func(reply chan *lobby.Lobby) HubMsg { return GetLobby{Code: code, Reply: reply} })
}

func (h *Hub) ask(ctx context.Context, build func(chan *lobby.Lobby) HubMsg) (*lobby.Lobby, error) {
	reply := make(chan *lobby.Lobby, 1)
	select {
	case h.inbox <- build(reply):
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.ctx.Done():
		return nil, lobby.ErrClosed
	}
	select {
	case lb := <-reply:
		return lb, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.ctx.Done():
		return nil, lobby.ErrClosed
	}
}
