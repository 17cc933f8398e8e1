package types

import (
	"errors"
	"strings"

	"github.com/DoyleJ11/rodizio-backend/internal/engine"
	"github.com/DoyleJ11/rodizio-backend/internal/lobby"
	pub "github.com/DoyleJ11/rodizio-backend/pkg/types"
)

var ErrUnknownMessage = errors.New("unknown message type")

// RosterView renders a lobby state for clients.
func RosterView(code string, version int, stage lobby.Stage, s engine.State) pub.Roster {
	lim := s.Limits
	out := pub.Roster{
		Code:       code,
		Version:    version,
		Stage:      string(stage),
		TeamA:      participants(s, s.Resolve(s.TeamA)),
		TeamB:      participants(s, s.Resolve(s.TeamB)),
		Queue:      participants(s, s.Resolve(s.Queue)),
		Registered: participants(s, s.Registered),
		Limits: pub.Limits{
			TeamSize:   lim.TeamSize,
			RoundSize:  lim.RoundSize,
			Categories: lim.Categories,
		},
	}
	if out.Limits.Categories == nil {
		out.Limits.Categories = []string{}
	}
	return out
}

func participants(s engine.State, ps []engine.Participant) []pub.Participant {
	out := make([]pub.Participant, 0, len(ps))
	for _, p := range ps {
		status, _ := engine.StatusOf(s, p.ID)
		out = append(out, pub.Participant{
			ID:       p.ID,
			Name:     p.Name,
			Category: p.Category,
			Goals:    p.Goals,
			Status:   string(status),
		})
	}
	return out
}

// ToCommand maps a client message onto an engine command. Removal without
// confirmation is refused here, before it reaches the lobby.
func ToCommand(m pub.ClientMessage) (engine.Command, error) {
	switch engine.CommandType(m.Type) {
	case engine.CmdRegister:
		return engine.Command{
			Type:        engine.CmdRegister,
			Participant: engine.Participant{Name: strings.TrimSpace(m.Name), Category: m.Category},
			Enqueue:     m.Enqueue,
		}, nil
	case engine.CmdUpdate:
		return engine.Command{
			Type:        engine.CmdUpdate,
			Participant: engine.Participant{ID: m.ParticipantID, Name: strings.TrimSpace(m.Name), Category: m.Category},
		}, nil
	case engine.CmdRemove:
		if !m.Confirm {
			return engine.Command{}, ErrConfirmationRequired
		}
		return engine.Command{Type: engine.CmdRemove, ParticipantID: m.ParticipantID}, nil
	case engine.CmdScoreGoal, engine.CmdToggleActive:
		return engine.Command{Type: engine.CommandType(m.Type), ParticipantID: m.ParticipantID}, nil
	case engine.CmdSeedFromQueue, engine.CmdDistributeRegistered, engine.CmdClearTeams:
		return engine.Command{Type: engine.CommandType(m.Type)}, nil
	case engine.CmdTeamLost, engine.CmdSubstitute:
		team, ok := ParseTeam(m.Team)
		if !ok {
			return engine.Command{}, engine.ErrUnknownTeam
		}
		return engine.Command{Type: engine.CommandType(m.Type), Team: team, ParticipantID: m.ParticipantID}, nil
	default:
		return engine.Command{}, ErrUnknownMessage
	}
}

var ErrConfirmationRequired = errors.New("removal must be confirmed")

func ParseTeam(team string) (engine.Team, bool) {
	switch strings.ToLower(team) {
	case "a":
		return engine.TeamA, true
	case "b":
		return engine.TeamB, true
	default:
		return "", false
	}
}
