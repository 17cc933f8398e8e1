package engine

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

type Team string

const (
	TeamA Team = "a"
	TeamB Team = "b"
)

type Participant struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Goals    int    `json:"goals"`
}

// State is the roster partition of one group. Teams and queue hold
// participant ids; the participant itself lives only in Registered.
type State struct {
	Registered []Participant
	TeamA      []string
	TeamB      []string
	Queue      []string
	Limits     Limits
}

type CommandType string

const (
	CmdRegister             CommandType = "Register"
	CmdUpdate               CommandType = "Update"
	CmdRemove               CommandType = "Remove"
	CmdScoreGoal            CommandType = "ScoreGoal"
	CmdToggleActive         CommandType = "ToggleActive"
	CmdSeedFromQueue        CommandType = "SeedFromQueue"
	CmdDistributeRegistered CommandType = "DistributeRegistered"
	CmdTeamLost             CommandType = "TeamLost"
	CmdSubstitute           CommandType = "Substitute"
	CmdClearTeams           CommandType = "ClearTeams"
)

/*
	CmdRegister             -> EvtParticipantRegistered [-> EvtQueued]
	CmdUpdate               -> EvtParticipantUpdated
	CmdRemove               -> EvtParticipantRemoved
	CmdScoreGoal            -> EvtGoalScored
	CmdToggleActive         -> EvtQueued | EvtDequeued
	CmdSeedFromQueue        -> EvtTeamsDrawn
	CmdDistributeRegistered -> EvtTeamsDrawn
	CmdTeamLost             -> EvtTeamBenched -> EvtTeamFilled
	CmdSubstitute           -> EvtPlayerBenched [-> EvtPlayerCalledUp]
	CmdClearTeams           -> EvtTeamsCleared

	Every event takes a valid partition to a valid partition, so any prefix
	of a command's events can be shown to clients.
*/

type Command struct {
	Type          CommandType
	Team          Team
	ParticipantID string
	Participant   Participant
	Enqueue       bool
}

type EventType string

const (
	EvtParticipantRegistered EventType = "ParticipantRegistered"
	EvtParticipantUpdated    EventType = "ParticipantUpdated"
	EvtParticipantRemoved    EventType = "ParticipantRemoved"
	EvtGoalScored            EventType = "GoalScored"
	EvtQueued                EventType = "Queued"
	EvtDequeued              EventType = "Dequeued"
	EvtTeamsDrawn            EventType = "TeamsDrawn"
	EvtTeamBenched           EventType = "TeamBenched"
	EvtTeamFilled            EventType = "TeamFilled"
	EvtPlayerBenched         EventType = "PlayerBenched"
	EvtPlayerCalledUp        EventType = "PlayerCalledUp"
	EvtTeamsCleared          EventType = "TeamsCleared"
)

// Staged reports whether the event ends the first half of a two-phase move,
// after which clients may be shown the intermediate partition.
func (t EventType) Staged() bool {
	return t == EvtTeamBenched || t == EvtPlayerBenched
}

type Event struct {
	Type          EventType
	Team          Team
	ParticipantID string
	Participant   Participant
	Count         int
	Draw          Draw
}

// Draw is a full replacement of the three sequences.
type Draw struct {
	TeamA []string
	TeamB []string
	Queue []string
}

// Apply validates cmd against s and returns the events it produces together
// with the resulting state. s is never modified. On error the returned state
// is s.
func Apply(s State, cmd Command) ([]Event, State, error) {
	events, err := plan(s, cmd)
	if err != nil {
		return nil, s, err
	}

	newState := s
	for _, event := range events {
		newState = Project(newState, event)
	}

	if err := Validate(newState); err != nil {
		return nil, s, fmt.Errorf("%s: %w", cmd.Type, err)
	}
	return events, newState, nil
}

func plan(s State, cmd Command) ([]Event, error) {
	lim := s.Limits.normalized()

	switch cmd.Type {
	case CmdRegister:
		p := cmd.Participant
		p.Name = strings.TrimSpace(p.Name)
		if p.ID == "" {
			return nil, fmt.Errorf("%w: participant id is required", ErrInvalidInput)
		}
		if err := checkDetails(p, lim); err != nil {
			return nil, err
		}
		if _, ok := s.Lookup(p.ID); ok {
			return nil, ErrDuplicateID
		}
		p.Goals = max(p.Goals, 0)

		events := []Event{{Type: EvtParticipantRegistered, Participant: p}}
		if cmd.Enqueue {
			events = append(events, Event{Type: EvtQueued, ParticipantID: p.ID})
		}
		return events, nil

	case CmdUpdate:
		p := cmd.Participant
		p.Name = strings.TrimSpace(p.Name)
		if _, ok := s.Lookup(p.ID); !ok {
			return nil, ErrParticipantNotFound
		}
		if err := checkDetails(p, lim); err != nil {
			return nil, err
		}
		return []Event{{Type: EvtParticipantUpdated, Participant: p}}, nil

	case CmdRemove:
		if _, ok := s.Lookup(cmd.ParticipantID); !ok {
			return nil, ErrParticipantNotFound
		}
		return []Event{{Type: EvtParticipantRemoved, ParticipantID: cmd.ParticipantID}}, nil

	case CmdScoreGoal:
		if _, ok := s.Lookup(cmd.ParticipantID); !ok {
			return nil, ErrParticipantNotFound
		}
		return []Event{{Type: EvtGoalScored, ParticipantID: cmd.ParticipantID}}, nil

	case CmdToggleActive:
		status, ok := StatusOf(s, cmd.ParticipantID)
		switch {
		case !ok:
			return nil, ErrParticipantNotFound
		case status == StatusQueued:
			return []Event{{Type: EvtDequeued, ParticipantID: cmd.ParticipantID}}, nil
		case status == StatusTeamA || status == StatusTeamB:
			return nil, ErrAlreadyOnTeam
		default:
			return []Event{{Type: EvtQueued, ParticipantID: cmd.ParticipantID}}, nil
		}

	case CmdSeedFromQueue:
		if len(s.Queue) == 0 {
			return nil, fmt.Errorf("%w: queue is empty", ErrNothingToDistribute)
		}
		head := s.Queue[:min(len(s.Queue), lim.RoundSize)]
		rest := s.Queue[len(head):]

		split := Distribute(s.Resolve(head), lim)
		queue := append(IDs(split.Leftover), rest...)
		return []Event{{Type: EvtTeamsDrawn, Draw: Draw{
			TeamA: IDs(split.TeamA),
			TeamB: IDs(split.TeamB),
			Queue: queue,
		}}}, nil

	case CmdDistributeRegistered:
		if len(s.Registered) == 0 {
			return nil, fmt.Errorf("%w: no participants registered", ErrNothingToDistribute)
		}
		split := Distribute(s.Registered, lim)
		return []Event{{Type: EvtTeamsDrawn, Draw: Draw{
			TeamA: IDs(split.TeamA),
			TeamB: IDs(split.TeamB),
			Queue: IDs(split.Leftover),
		}}}, nil

	case CmdTeamLost:
		roster, err := s.Roster(cmd.Team)
		if err != nil {
			return nil, err
		}
		if len(roster) != lim.TeamSize {
			return nil, fmt.Errorf("%w: team %s has %d of %d", ErrTeamNotFull, cmd.Team, len(roster), lim.TeamSize)
		}
		if len(s.Queue) < lim.TeamSize {
			return nil, fmt.Errorf("%w: %d waiting, need %d", ErrQueueTooShort, len(s.Queue), lim.TeamSize)
		}
		return []Event{
			{Type: EvtTeamBenched, Team: cmd.Team},
			{Type: EvtTeamFilled, Team: cmd.Team, Count: lim.TeamSize},
		}, nil

	case CmdSubstitute:
		roster, err := s.Roster(cmd.Team)
		if err != nil {
			return nil, err
		}
		if indexOf(roster, cmd.ParticipantID) < 0 {
			if _, ok := s.Lookup(cmd.ParticipantID); !ok {
				return nil, ErrParticipantNotFound
			}
			return nil, ErrNotOnTeam
		}

		events := []Event{{Type: EvtPlayerBenched, Team: cmd.Team, ParticipantID: cmd.ParticipantID}}
		// The front of the queue is taken from before the bench, so the
		// benched player never replaces themselves.
		if len(s.Queue) > 0 {
			events = append(events, Event{Type: EvtPlayerCalledUp, Team: cmd.Team, ParticipantID: s.Queue[0]})
		}
		return events, nil

	case CmdClearTeams:
		return []Event{{Type: EvtTeamsCleared}}, nil

	default:
		return nil, ErrUnsupportedCommand
	}
}

// Project applies a single event to s and returns the new state. s is not
// modified.
func Project(s State, event Event) State {
	next := s.Clone()

	switch event.Type {
	case EvtParticipantRegistered:
		next.Registered = append(next.Registered, event.Participant)

	case EvtParticipantUpdated:
		if i := next.registeredIndex(event.Participant.ID); i >= 0 {
			next.Registered[i].Name = event.Participant.Name
			next.Registered[i].Category = event.Participant.Category
		}

	case EvtParticipantRemoved:
		if i := next.registeredIndex(event.ParticipantID); i >= 0 {
			next.Registered = append(next.Registered[:i], next.Registered[i+1:]...)
		}
		next.TeamA = without(next.TeamA, event.ParticipantID)
		next.TeamB = without(next.TeamB, event.ParticipantID)
		next.Queue = without(next.Queue, event.ParticipantID)

	case EvtGoalScored:
		if i := next.registeredIndex(event.ParticipantID); i >= 0 {
			next.Registered[i].Goals++
		}

	case EvtQueued:
		if _, ok := next.Lookup(event.ParticipantID); ok && !next.placed(event.ParticipantID) {
			next.Queue = append(next.Queue, event.ParticipantID)
		}

	case EvtDequeued:
		next.Queue = without(next.Queue, event.ParticipantID)

	case EvtTeamsDrawn:
		next.TeamA = append([]string(nil), event.Draw.TeamA...)
		next.TeamB = append([]string(nil), event.Draw.TeamB...)
		next.Queue = append([]string(nil), event.Draw.Queue...)

	case EvtTeamBenched:
		team := next.team(event.Team)
		if team == nil {
			break
		}
		next.Queue = append(next.Queue, *team...)
		*team = nil

	case EvtTeamFilled:
		team := next.team(event.Team)
		if team == nil {
			break
		}
		n := min(event.Count, len(next.Queue))
		*team = append(*team, next.Queue[:n]...)
		next.Queue = next.Queue[n:]

	case EvtPlayerBenched:
		team := next.team(event.Team)
		if team == nil || indexOf(*team, event.ParticipantID) < 0 {
			break
		}
		*team = without(*team, event.ParticipantID)
		next.Queue = append(next.Queue, event.ParticipantID)

	case EvtPlayerCalledUp:
		team := next.team(event.Team)
		if team == nil || indexOf(next.Queue, event.ParticipantID) < 0 {
			break
		}
		next.Queue = without(next.Queue, event.ParticipantID)
		*team = append(*team, event.ParticipantID)

	case EvtTeamsCleared:
		next.TeamA, next.TeamB, next.Queue = nil, nil, nil
	}

	return next
}

func checkDetails(p Participant, lim Limits) error {
	if p.Name == "" {
		return ErrEmptyName
	}
	if utf8.RuneCountInString(p.Name) > MaxNameLength {
		return fmt.Errorf("%w: %d characters, at most %d", ErrNameTooLong, utf8.RuneCountInString(p.Name), MaxNameLength)
	}
	if len(p.Category) > MaxCategoryLength || !lim.Allows(p.Category) {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, p.Category)
	}
	return nil
}
