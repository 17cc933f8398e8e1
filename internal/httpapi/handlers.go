package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/DoyleJ11/rodizio-backend/internal/engine"
	"github.com/DoyleJ11/rodizio-backend/internal/hub"
	"github.com/DoyleJ11/rodizio-backend/internal/lobby"
	"github.com/DoyleJ11/rodizio-backend/internal/types"
	pub "github.com/DoyleJ11/rodizio-backend/pkg/types"
	"github.com/go-chi/chi/v5"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const requestTimeout = 10 * time.Second

func CreateLobby(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var code string
		for {
			c, err := hub.GenerateCode()
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to generate code")
				return
			}
			_, err = h.Create(r.Context(), c)
			if errors.Is(err, hub.ErrCodeTaken) {
				continue
			}
			if err != nil {
				writeError(w, http.StatusServiceUnavailable, "failed to create lobby")
				return
			}
			code = c
			break
		}

		writeJSON(w, http.StatusCreated, struct {
			Code string `json:"code"`
		}{Code: code})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func GetRoster(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		view, err := viewOf(r.Context(), h, code)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, types.RosterView(code, view.Version, lobby.StageFinal, view.State))
	}
}

type participantRequest struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Enqueue  bool   `json:"enqueue"`
}

func (p participantRequest) validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return engine.ErrEmptyName
	}
	if p.Category == "" {
		return engine.ErrUnknownCategory
	}
	return nil
}

// commandFunc builds the engine command for a request.
type commandFunc func(r *http.Request) (engine.Command, error)

// Command runs the command built by build on the lobby named in the URL and
// replies with the resulting roster.
func Command(h *hub.Hub, status int, build commandFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cmd, err := build(r)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}

		code := chi.URLParam(r, "code")
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		res, err := do(ctx, h, code, cmd)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		if res.Err != nil {
			writeError(w, statusFor(res.Err), res.Err.Error())
			return
		}
		writeJSON(w, status, types.RosterView(code, res.Version, lobby.StageFinal, res.State))
	}
}

func register(r *http.Request) (engine.Command, error) {
	var req participantRequest
	if err := decode(r, &req); err != nil {
		return engine.Command{}, err
	}
	if err := req.validate(); err != nil {
		return engine.Command{}, err
	}
	return engine.Command{
		Type:        engine.CmdRegister,
		Participant: engine.Participant{Name: strings.TrimSpace(req.Name), Category: req.Category},
		Enqueue:     req.Enqueue,
	}, nil
}

func update(r *http.Request) (engine.Command, error) {
	var req participantRequest
	if err := decode(r, &req); err != nil {
		return engine.Command{}, err
	}
	if err := req.validate(); err != nil {
		return engine.Command{}, err
	}
	return engine.Command{
		Type:        engine.CmdUpdate,
		Participant: engine.Participant{ID: chi.URLParam(r, "id"), Name: strings.TrimSpace(req.Name), Category: req.Category},
	}, nil
}

func remove(r *http.Request) (engine.Command, error) {
	if confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm")); !confirmed {
		return engine.Command{}, types.ErrConfirmationRequired
	}
	return engine.Command{Type: engine.CmdRemove, ParticipantID: chi.URLParam(r, "id")}, nil
}

func onParticipant(t engine.CommandType) commandFunc {
	return func(r *http.Request) (engine.Command, error) {
		return engine.Command{Type: t, ParticipantID: chi.URLParam(r, "id")}, nil
	}
}

func onTeam(t engine.CommandType) commandFunc {
	return func(r *http.Request) (engine.Command, error) {
		team, ok := types.ParseTeam(chi.URLParam(r, "team"))
		if !ok {
			return engine.Command{}, engine.ErrUnknownTeam
		}
		return engine.Command{Type: t, Team: team, ParticipantID: chi.URLParam(r, "id")}, nil
	}
}

func plain(t engine.CommandType) commandFunc {
	return func(*http.Request) (engine.Command, error) {
		return engine.Command{Type: t}, nil
	}
}

var splitLanguages = language.NewMatcher([]language.Tag{
	language.BrazilianPortuguese,
	language.AmericanEnglish,
})

// Split divides ?amount= between everyone registered in the lobby. Both
// "120,50" and "120.50" are accepted.
func Split(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.URL.Query().Get("amount"))
		amount, err := strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "amount must be a number")
			return
		}

		view, err := viewOf(r.Context(), h, chi.URLParam(r, "code"))
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}

		count := len(view.State.Registered)
		share, err := engine.SplitAmount(amount, count)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}

		tag, _ := language.MatchStrings(splitLanguages, r.Header.Get("Accept-Language"))
		p := message.NewPrinter(tag)
		writeJSON(w, http.StatusOK, pub.Split{
			Amount:       amount,
			Participants: count,
			Share:        share,
			Formatted:    p.Sprint(number.Decimal(share, number.MaxFractionDigits(4))),
		})
	}
}

var errUnknownLobby = errors.New("unknown lobby code")

// do runs cmd on the lobby for code. A lobby stopped for idleness between
// lookup and use is opened once more.
func do(ctx context.Context, h *hub.Hub, code string, cmd engine.Command) (lobby.Result, error) {
	for attempt := 0; ; attempt++ {
		lb, err := h.Open(ctx, code)
		if err != nil {
			return lobby.Result{}, err
		}
		if lb == nil {
			return lobby.Result{}, errUnknownLobby
		}
		res, err := lb.Do(ctx, cmd)
		if errors.Is(err, lobby.ErrClosed) && attempt == 0 {
			continue
		}
		return res, err
	}
}

func viewOf(ctx context.Context, h *hub.Hub, code string) (lobby.View, error) {
	for attempt := 0; ; attempt++ {
		lb, err := h.Open(ctx, code)
		if err != nil {
			return lobby.View{}, err
		}
		if lb == nil {
			return lobby.View{}, errUnknownLobby
		}
		view, err := lb.View(ctx)
		if errors.Is(err, lobby.ErrClosed) && attempt == 0 {
			continue
		}
		return view, err
	}
}

var errBadJSON = errors.New("invalid json body")

func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errBadJSON
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrInvalidInput), errors.Is(err, errBadJSON), errors.Is(err, types.ErrConfirmationRequired):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrNotFound), errors.Is(err, errUnknownLobby):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrPreconditionNotMet), errors.Is(err, engine.ErrNothingToDistribute):
		return http.StatusConflict
	case errors.Is(err, lobby.ErrClosed), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, struct {
		Error string `json:"error"`
	}{Error: msg})
}
