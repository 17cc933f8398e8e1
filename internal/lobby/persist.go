package lobby

import (
	"context"
	"time"

	"github.com/DoyleJ11/rodizio-backend/internal/engine"
	"github.com/DoyleJ11/rodizio-backend/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const storeTimeout = 5 * time.Second

// restore loads the four collections. A collection that fails to load is
// treated as empty; the lobby always starts.
func (l *Lobby) restore() {
	if l.cfg.Store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(l.ctx, storeTimeout)
	defer cancel()

	loaded := make([][]engine.Participant, len(store.Collections))
	g, gctx := errgroup.WithContext(ctx)
	for i, coll := range store.Collections {
		g.Go(func() error {
			ps, err := l.cfg.Store.Load(gctx, l.cfg.Code, coll)
			if err != nil {
				l.logger.Warn("failed to load collection, starting empty", zap.String("collection", string(coll)), zap.Error(err))
				return nil
			}
			loaded[i] = ps
			return nil
		})
	}
	_ = g.Wait()

	s := engine.NewEmptyState(l.cfg.Limits)
	s.Registered = loaded[0]
	s.TeamA = engine.IDs(loaded[1])
	s.TeamB = engine.IDs(loaded[2])
	s.Queue = engine.IDs(loaded[3])

	s, dropped := engine.Reconcile(s)
	if dropped > 0 {
		l.logger.Warn("dropped inconsistent roster entries on load", zap.Int("dropped", dropped))
	}
	l.state = s
	l.logger.Info("roster restored",
		zap.Int("registered", len(s.Registered)),
		zap.Int("queue", len(s.Queue)),
	)
}

// persist hands s to the saver without blocking. A pending state that has
// not been written yet is replaced by the newer one.
func (l *Lobby) persist(s engine.State) {
	if l.cfg.Store == nil {
		return
	}
	select {
	case l.saves <- s:
	default:
		select {
		case <-l.saves:
		default:
		}
		l.saves <- s
	}
}

func (l *Lobby) saver() {
	defer close(l.saved)
	for {
		select {
		case s := <-l.saves:
			l.save(s)
		case <-l.ctx.Done():
			// Flush whatever the loop queued before stopping.
			select {
			case s := <-l.saves:
				l.save(s)
			default:
			}
			return
		}
	}
}

func (l *Lobby) save(s engine.State) {
	collections := map[store.Collection][]engine.Participant{
		store.Registered: s.Registered,
		store.TeamA:      s.Resolve(s.TeamA),
		store.TeamB:      s.Resolve(s.TeamB),
		store.Queue:      s.Resolve(s.Queue),
	}

	// The lobby context may already be cancelled during the final flush.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(l.ctx), storeTimeout)
	defer cancel()

	for _, coll := range store.Collections {
		if err := l.cfg.Store.Save(ctx, l.cfg.Code, coll, collections[coll]); err != nil {
			l.logger.Warn("failed to save collection", zap.String("collection", string(coll)), zap.Error(err))
		}
	}
}
