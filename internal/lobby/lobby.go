package lobby

import (
	"context"
	"errors"
	"time"

	"github.com/DoyleJ11/rodizio-backend/internal/engine"
	"github.com/DoyleJ11/rodizio-backend/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Msg interface{ isLobbyMsg() }

// FromClient asks the lobby to apply a command. Reply, if set, receives the
// outcome once the command has fully settled; it should be buffered.
type FromClient struct {
	Cmd   engine.Command
	Reply chan Result
}

func (FromClient) isLobbyMsg() {}

type Join struct {
	ClientID string
	Outbox   chan Snapshot // where this client wants to receive snapshots
}

func (Join) isLobbyMsg() {}

type Leave struct{ ClientID string }

func (Leave) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

type Stage string

const (
	StageIntermediate Stage = "intermediate"
	StageFinal        Stage = "final"
)

type Snapshot struct {
	Version int
	Stage   Stage
	State   engine.State
}

type View struct {
	Version    int
	NumClients int
	State      engine.State
}

type Result struct {
	Version int
	State   engine.State
	Events  []engine.Event
	Err     error
}

// Store is the persistence collaborator. Load of a missing collection
// returns an empty slice. Create and Exists track which group codes are
// known.
type Store interface {
	Load(ctx context.Context, code string, coll store.Collection) ([]engine.Participant, error)
	Save(ctx context.Context, code string, coll store.Collection, ps []engine.Participant) error
	Create(ctx context.Context, code string) error
	Exists(ctx context.Context, code string) (bool, error)
}

type Config struct {
	Code   string
	Limits engine.Limits
	Store  Store // nil disables persistence
	Logger *zap.Logger
	// RevealDelay separates the intermediate and final snapshots of a
	// two-phase command. The lobby processes nothing else meanwhile.
	RevealDelay time.Duration

	// OnIdle is called from the loop once the lobby has had no clients and
	// no messages for IdleTimeout. It must not block. Zero disables it.
	IdleTimeout time.Duration
	OnIdle      func(*Lobby)

	// After, if set, is waited on before the roster is restored, so a
	// restarted group reads what its previous lobby flushed.
	After <-chan struct{}
}

// Lobby owns the roster of one group. Every operation runs on its loop
// goroutine, one at a time.
type Lobby struct {
	inbox   chan Msg
	state   engine.State
	version int
	clients map[string]chan Snapshot
	ctx     context.Context
	cancel  context.CancelFunc

	cfg    Config
	logger *zap.Logger
	saves  chan engine.State
	saved  chan struct{}

	lastActive   time.Time
	idleReported bool
}

func NewLobby(parent context.Context, cfg Config) *Lobby {
	ctx, cancel := context.WithCancel(parent)

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	l := &Lobby{
		inbox:   make(chan Msg, 64), // Small buffer
		state:   engine.NewEmptyState(cfg.Limits),
		version: 0,
		clients: make(map[string]chan Snapshot),
		ctx:     ctx,
		cancel:  cancel,
		cfg:     cfg,
		logger:  logger.With(zap.String("code", cfg.Code)),
		saves:   make(chan engine.State, 1),
		saved:   make(chan struct{}),
	}

	go l.loop()
	return l
}

func (l *Lobby) loop() {
	if l.cfg.After != nil {
		select {
		case <-l.cfg.After:
		case <-l.ctx.Done():
		}
	}
	l.restore()
	go l.saver()

	var idle <-chan time.Time
	if l.cfg.IdleTimeout > 0 && l.cfg.OnIdle != nil {
		ticker := time.NewTicker(max(l.cfg.IdleTimeout/4, time.Millisecond))
		defer ticker.Stop()
		idle = ticker.C
	}
	l.lastActive = time.Now()

	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case <-idle:
			l.checkIdle()

		case m := <-l.inbox:
			l.lastActive = time.Now()
			l.idleReported = false

			switch msg := m.(type) {
			case Join:
				// Register client + send current snapshot immediately
				l.clients[msg.ClientID] = msg.Outbox
				l.send(msg.ClientID, Snapshot{Version: l.version, Stage: StageFinal, State: l.state})

			case Leave:
				delete(l.clients, msg.ClientID)

			case FromClient:
				res := l.apply(msg.Cmd)
				if msg.Reply != nil {
					msg.Reply <- res
				}

			case GetState:
				msg.Reply <- View{
					Version:    l.version,
					NumClients: len(l.clients),
					State:      l.state,
				}

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

func (l *Lobby) apply(cmd engine.Command) Result {
	if cmd.Type == engine.CmdRegister && cmd.Participant.ID == "" {
		cmd.Participant.ID = uuid.NewString()
	}

	events, newState, err := engine.Apply(l.state, cmd)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrInconsistentState):
			l.logger.DPanic("command produced an inconsistent roster", zap.String("command", string(cmd.Type)), zap.Error(err))
		case errors.Is(err, engine.ErrNothingToDistribute):
			l.logger.Info("nothing to distribute", zap.String("command", string(cmd.Type)))
		default:
			l.logger.Debug("command rejected", zap.String("command", string(cmd.Type)), zap.Error(err))
		}
		return Result{Version: l.version, State: l.state, Err: err}
	}

	// Show the first half of two-phase moves before the final state. Each
	// prefix of the events is itself a valid partition.
	mid := l.state
	for _, event := range events[:len(events)-1] {
		mid = engine.Project(mid, event)
		if !event.Type.Staged() {
			continue
		}
		l.version++
		l.broadcast(Snapshot{Version: l.version, Stage: StageIntermediate, State: mid})
		l.pause()
	}

	l.state = newState
	l.version++
	l.broadcast(Snapshot{Version: l.version, Stage: StageFinal, State: l.state})
	l.persist(l.state)

	l.logger.Debug("command applied", zap.String("command", string(cmd.Type)), zap.Int("version", l.version))
	return Result{Version: l.version, State: l.state, Events: events}
}

func (l *Lobby) checkIdle() {
	if l.idleReported || len(l.clients) > 0 || time.Since(l.lastActive) < l.cfg.IdleTimeout {
		return
	}
	l.idleReported = true
	l.logger.Debug("lobby idle", zap.Duration("idle_for", time.Since(l.lastActive)))
	l.cfg.OnIdle(l)
}

func (l *Lobby) pause() {
	if l.cfg.RevealDelay <= 0 {
		return
	}
	t := time.NewTimer(l.cfg.RevealDelay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-l.ctx.Done():
	}
}

func (l *Lobby) shutdown() {
	for id, ch := range l.clients {
		close(ch) // Tell client no more snapshots
		delete(l.clients, id)
	}
	l.cancel()
}

func (l *Lobby) broadcast(snap Snapshot) {
	for id := range l.clients {
		l.send(id, snap)
	}
}

func (l *Lobby) send(id string, snap Snapshot) {
	ch := l.clients[id]
	select {
	case ch <- snap:
		//ok
	default:
		// Client is slow/full - drop them.
		close(ch)
		delete(l.clients, id)
		l.logger.Debug("dropped slow client", zap.String("client", id))
	}
}

func (l *Lobby) Code() string { return l.cfg.Code }

// Expose the inbox so tests or WS layer can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

// Saved is closed once the lobby has stopped and its last state is written.
func (l *Lobby) Saved() <-chan struct{} { return l.saved }

// Do sends cmd and waits for its result.
func (l *Lobby) Do(ctx context.Context, cmd engine.Command) (Result, error) {
	reply := make(chan Result, 1)
	select {
	case l.inbox <- FromClient{Cmd: cmd, Reply: reply}:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-l.ctx.Done():
		return Result{}, ErrClosed
	}

	select {
	case res := <-reply:
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-l.ctx.Done():
		return Result{}, ErrClosed
	}
}

// View returns the current state without racing the loop.
func (l *Lobby) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	select {
	case l.inbox <- GetState{Reply: reply}:
	case <-ctx.Done():
		return View{}, ctx.Err()
	case <-l.ctx.Done():
		return View{}, ErrClosed
	}

	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return View{}, ctx.Err()
	case <-l.ctx.Done():
		return View{}, ErrClosed
	}
}

var ErrClosed = errors.New("lobby closed")
