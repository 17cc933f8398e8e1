package httpapi

import (
	"net/http"
	"time"

	"github.com/DoyleJ11/rodizio-backend/internal/engine"
	"github.com/DoyleJ11/rodizio-backend/internal/hub"
	"github.com/DoyleJ11/rodizio-backend/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func SetupRoutes(h *hub.Hub, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	// Public routes
	r.Post("/lobbies", CreateLobby(h))
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(h, logger))

	r.Route("/lobbies/{code}", func(r chi.Router) {
		r.Use(requireCode)

		r.Get("/", GetRoster(h))
		r.Get("/split", Split(h))

		r.Post("/participants", Command(h, http.StatusCreated, register))
		r.Patch("/participants/{id}", Command(h, http.StatusOK, update))
		r.Delete("/participants/{id}", Command(h, http.StatusOK, remove))
		r.Post("/participants/{id}/goals", Command(h, http.StatusOK, onParticipant(engine.CmdScoreGoal)))
		r.Post("/participants/{id}/toggle", Command(h, http.StatusOK, onParticipant(engine.CmdToggleActive)))

		r.Post("/distribute", Command(h, http.StatusOK, plain(engine.CmdDistributeRegistered)))
		r.Post("/seed", Command(h, http.StatusOK, plain(engine.CmdSeedFromQueue)))
		r.Post("/clear", Command(h, http.StatusOK, plain(engine.CmdClearTeams)))

		r.Post("/teams/{team}/lost", Command(h, http.StatusOK, onTeam(engine.CmdTeamLost)))
		r.Post("/teams/{team}/substitute/{id}", Command(h, http.StatusOK, onTeam(engine.CmdSubstitute)))
	})
	return r
}

func requireCode(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !hub.ValidCode(chi.URLParam(r, "code")) {
			writeError(w, http.StatusNotFound, "unknown lobby code")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
