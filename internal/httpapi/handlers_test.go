package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"
	"time"

	"github.com/DoyleJ11/rodizio-backend/internal/engine"
	"github.com/DoyleJ11/rodizio-backend/internal/hub"
	"github.com/DoyleJ11/rodizio-backend/internal/lobby"
	"github.com/DoyleJ11/rodizio-backend/internal/store"
	pub "github.com/DoyleJ11/rodizio-backend/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newServer(t *testing.T) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h := hub.NewHub(ctx, lobby.Config{Limits: engine.DefaultLimits(), Store: store.NewMemoryStore()})
	return SetupRoutes(h, zap.NewNop())
}

func call(t *testing.T, srv http.Handler, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decodeRoster(t *testing.T, rec *httptest.ResponseRecorder) pub.Roster {
	t.Helper()
	var roster pub.Roster
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &roster))
	return roster
}

func createLobby(t *testing.T, srv http.Handler) string {
	t.Helper()
	rec := call(t, srv, http.MethodPost, "/lobbies", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var out struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.True(t, hub.ValidCode(out.Code))
	return out.Code
}

func registerN(t *testing.T, srv http.Handler, code string, n int, enqueue bool) pub.Roster {
	t.Helper()
	var roster pub.Roster
	for i := 0; i < n; i++ {
		rec := call(t, srv, http.MethodPost, "/lobbies/"+code+"/participants", participantRequest{
			Name:     "Player",
			Category: engine.DefaultCategories[i%len(engine.DefaultCategories)],
			Enqueue:  enqueue,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		roster = decodeRoster(t, rec)
	}
	return roster
}

func ids(ps []pub.Participant) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ID)
	}
	return out
}

func TestHealthz(t *testing.T) {
	srv := newServer(t)
	rec := call(t, srv, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRoster_RegisterSeedAndLose(t *testing.T) {
	srv := newServer(t)
	code := createLobby(t, srv)

	roster := registerN(t, srv, code, 15, true)
	require.Len(t, roster.Registered, 15)
	require.Len(t, roster.Queue, 15)

	rec := call(t, srv, http.MethodPost, "/lobbies/"+code+"/seed", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	roster = decodeRoster(t, rec)
	assert.Len(t, roster.TeamA, engine.DefaultTeamSize)
	assert.Len(t, roster.TeamB, engine.DefaultTeamSize)
	require.Len(t, roster.Queue, 5)

	lostA, waiting := ids(roster.TeamA), ids(roster.Queue)
	rec = call(t, srv, http.MethodPost, "/lobbies/"+code+"/teams/A/lost", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	roster = decodeRoster(t, rec)
	assert.Equal(t, waiting, ids(roster.TeamA))
	assert.Equal(t, lostA, ids(roster.Queue))

	rec = call(t, srv, http.MethodGet, "/lobbies/"+code+"/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, roster.Version, decodeRoster(t, rec).Version)
}

func TestRoster_ParticipantRoutes(t *testing.T) {
	srv := newServer(t)
	code := createLobby(t, srv)
	roster := registerN(t, srv, code, 1, false)
	id := roster.Registered[0].ID
	base := "/lobbies/" + code + "/participants/" + id

	rec := call(t, srv, http.MethodPost, base+"/goals", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeRoster(t, rec).Registered[0].Goals)

	rec = call(t, srv, http.MethodPost, base+"/toggle", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "queued", decodeRoster(t, rec).Registered[0].Status)

	rec = call(t, srv, http.MethodPatch, base, participantRequest{Name: "Renamed", Category: "2"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Renamed", decodeRoster(t, rec).Registered[0].Name)

	rec = call(t, srv, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, srv, http.MethodDelete, base+"?confirm=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	roster = decodeRoster(t, rec)
	assert.Empty(t, roster.Registered)
	assert.Empty(t, roster.Queue)
}

func TestRoster_ErrorStatuses(t *testing.T) {
	srv := newServer(t)
	code := createLobby(t, srv)
	prefix := "/lobbies/" + code

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"empty name", http.MethodPost, prefix + "/participants", participantRequest{Name: "  ", Category: "1"}, http.StatusBadRequest},
		{"unknown category", http.MethodPost, prefix + "/participants", participantRequest{Name: "Ana", Category: "9"}, http.StatusBadRequest},
		{"unknown field", http.MethodPost, prefix + "/participants", map[string]string{"nome": "Ana"}, http.StatusBadRequest},
		{"unknown participant", http.MethodPost, prefix + "/participants/nobody/goals", nil, http.StatusNotFound},
		{"team not full", http.MethodPost, prefix + "/teams/a/lost", nil, http.StatusConflict},
		{"unknown team", http.MethodPost, prefix + "/teams/c/lost", nil, http.StatusBadRequest},
		{"nothing to distribute", http.MethodPost, prefix + "/distribute", nil, http.StatusConflict},
		{"bad code", http.MethodGet, "/lobbies/bad!/", nil, http.StatusNotFound},
		{"never created code", http.MethodGet, "/lobbies/ZZZZZ9/", nil, http.StatusNotFound},
		{"split on never created code", http.MethodGet, "/lobbies/ZZZZZ9/split?amount=10", nil, http.StatusNotFound},
		{"register on never created code", http.MethodPost, "/lobbies/ZZZZZ9/participants", participantRequest{Name: "Ana", Category: "1"}, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := call(t, srv, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}
}

func TestSplit(t *testing.T) {
	srv := newServer(t)
	code := createLobby(t, srv)

	rec := call(t, srv, http.MethodGet, "/lobbies/"+code+"/split?amount=100", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "no participants yet")

	registerN(t, srv, code, 3, false)

	var split pub.Split
	rec = call(t, srv, http.MethodGet, "/lobbies/"+code+"/split?amount=100", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &split))
	assert.Equal(t, 3, split.Participants)
	assert.InDelta(t, 33.3333, split.Share, 0.0001)
	assert.Equal(t, "33,3333", split.Formatted)

	rec = call(t, srv, http.MethodGet, "/lobbies/"+code+"/split?amount=120,60", nil, "Accept-Language", "en-US")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &split))
	assert.InDelta(t, 40.2, split.Share, 0.0001)
	assert.Equal(t, "40.2", split.Formatted)

	rec = call(t, srv, http.MethodGet, "/lobbies/"+code+"/split?amount=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownCodesStartNoLobbies(t *testing.T) {
	srv := newServer(t)
	before := runtime.NumGoroutine()

	for i := 0; i < 200; i++ {
		rec := call(t, srv, http.MethodGet, fmt.Sprintf("/lobbies/Z%05d/", i), nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
	}

	// Allow unrelated goroutines to settle before comparing.
	time.Sleep(50 * time.Millisecond)
	assert.Less(t, runtime.NumGoroutine()-before, 20)
}

func TestCreateLobby_CodesAreUnique(t *testing.T) {
	srv := newServer(t)
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		code := createLobby(t, srv)
		require.False(t, seen[code], "code %s issued twice", code)
		seen[code] = true
	}
}
