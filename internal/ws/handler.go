package ws

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"time"

	"github.com/DoyleJ11/rodizio-backend/internal/engine"
	"github.com/DoyleJ11/rodizio-backend/internal/hub"
	"github.com/DoyleJ11/rodizio-backend/internal/lobby"
	"github.com/DoyleJ11/rodizio-backend/internal/types"
	pub "github.com/DoyleJ11/rodizio-backend/pkg/types"
	"github.com/coder/websocket"
	"go.uber.org/zap"
)

const (
	writeTimeout = 3 * time.Second
	readTimeout  = 60 * time.Second
	replyTimeout = 10 * time.Second
)

func Handler(h *hub.Hub, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if !hub.ValidCode(code) {
			http.Error(w, "missing or invalid code", http.StatusBadRequest)
			return
		}

		lb, err := h.Open(r.Context(), code)
		if err != nil {
			http.Error(w, "lobby unavailable", http.StatusServiceUnavailable)
			return
		}
		if lb == nil {
			http.Error(w, "unknown lobby code", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// In dev ONLY, you can loosen origin checks:
			// OriginPatterns: []string{"http://localhost:*", "http://127.0.0.1:*"},
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan lobby.Snapshot, 8)
		clientID := randID(6)
		log := logger.With(zap.String("code", code), zap.String("client", clientID))

		lb.Inbox() <- lobby.Join{ClientID: clientID, Outbox: out}
		defer func() {
			select {
			case lb.Inbox() <- lobby.Leave{ClientID: clientID}:
			case <-time.After(writeTimeout):
			}
		}()

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for {
				select {
				case snap, ok := <-out:
					if !ok {
						// The lobby dropped us or shut down.
						conn.Close(websocket.StatusTryAgainLater, "lobby closed")
						return
					}
					view := types.RosterView(code, snap.Version, snap.Stage, snap.State)
					writeJSON(writeCtx, conn, pub.ServerMessage{Type: pub.MsgStateSnapshot, Version: snap.Version, State: &view})
				case <-writeCtx.Done():
					return
				}
			}
		}()

		// Reader loop
		for {
			ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
			_, data, err := conn.Read(ctx)
			cancel()
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("websocket read ended", zap.Error(err))
				}
				return
			}

			var cm pub.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				writeJSON(r.Context(), conn, pub.ServerMessage{Type: pub.MsgError, Error: "bad json"})
				continue
			}

			cmd, err := types.ToCommand(cm)
			if err != nil {
				writeJSON(r.Context(), conn, pub.ServerMessage{Type: pub.MsgError, Error: err.Error()})
				continue
			}

			ctx, cancel = context.WithTimeout(r.Context(), replyTimeout)
			res, err := lb.Do(ctx, cmd)
			cancel()
			if err != nil {
				log.Warn("command not delivered", zap.Error(err))
				return
			}
			if res.Err != nil {
				writeJSON(r.Context(), conn, errorMessage(res))
			}
		}
	}
}

func errorMessage(res lobby.Result) pub.ServerMessage {
	kind := pub.MsgError
	if errors.Is(res.Err, engine.ErrNothingToDistribute) {
		kind = pub.MsgNotice
	}
	return pub.ServerMessage{Type: kind, Version: res.Version, Error: res.Err.Error()}
}

func writeJSON(parent context.Context, conn *websocket.Conn, msg pub.ServerMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(parent, writeTimeout)
	defer cancel()
	_ = conn.Write(ctx, websocket.MessageText, payload)
}

func randID(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[rand.Intn(len(charset))]
	}
	return string(b)
}
