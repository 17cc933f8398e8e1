package engine

import (
	"fmt"
	"math"
	"slices"
)

const (
	DefaultTeamSize  = 5
	DefaultRoundSize = 10
)

// Field caps shared with the store schema.
const (
	MaxNameLength     = 100
	MaxCategoryLength = 32
)

// DefaultCategories are the skill levels offered when none are configured.
var DefaultCategories = []string{"1", "2", "3"}

// Limits holds the tunable caps of a roster.
type Limits struct {
	TeamSize   int
	RoundSize  int
	Categories []string
}

func DefaultLimits() Limits {
	return Limits{
		TeamSize:   DefaultTeamSize,
		RoundSize:  DefaultRoundSize,
		Categories: slices.Clone(DefaultCategories),
	}
}

func (l Limits) normalized() Limits {
	if l.TeamSize <= 0 {
		l.TeamSize = DefaultTeamSize
	}
	if l.RoundSize <= 0 {
		l.RoundSize = DefaultRoundSize
	}
	return l
}

// Allows reports whether category is an accepted label. An empty label set
// accepts any non-empty label.
func (l Limits) Allows(category string) bool {
	if len(l.Categories) == 0 {
		return category != ""
	}
	return slices.Contains(l.Categories, category)
}

func NewEmptyState(lim Limits) State {
	return State{Limits: lim}
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	return State{
		Registered: slices.Clone(s.Registered),
		TeamA:      slices.Clone(s.TeamA),
		TeamB:      slices.Clone(s.TeamB),
		Queue:      slices.Clone(s.Queue),
		Limits: Limits{
			TeamSize:   s.Limits.TeamSize,
			RoundSize:  s.Limits.RoundSize,
			Categories: slices.Clone(s.Limits.Categories),
		},
	}
}

// Lookup returns the registered participant with the given id.
func (s State) Lookup(id string) (Participant, bool) {
	if i := s.registeredIndex(id); i >= 0 {
		return s.Registered[i], true
	}
	return Participant{}, false
}

// Resolve maps ids to their registered participants, skipping unknown ids.
func (s State) Resolve(ids []string) []Participant {
	out := make([]Participant, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.Lookup(id); ok {
			out = append(out, p)
		}
	}
	return out
}

// Roster returns the ids on the given team.
func (s State) Roster(team Team) ([]string, error) {
	switch team {
	case TeamA:
		return s.TeamA, nil
	case TeamB:
		return s.TeamB, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTeam, team)
	}
}

func (s *State) team(team Team) *[]string {
	switch team {
	case TeamA:
		return &s.TeamA
	case TeamB:
		return &s.TeamB
	default:
		return nil
	}
}

func (s State) registeredIndex(id string) int {
	return slices.IndexFunc(s.Registered, func(p Participant) bool { return p.ID == id })
}

func (s State) placed(id string) bool {
	return indexOf(s.TeamA, id) >= 0 || indexOf(s.TeamB, id) >= 0 || indexOf(s.Queue, id) >= 0
}

// Status is where a registered participant currently sits.
type Status string

const (
	StatusIdle   Status = "idle"
	StatusQueued Status = "queued"
	StatusTeamA  Status = "team_a"
	StatusTeamB  Status = "team_b"
)

// StatusOf reports the membership of id. ok is false for unknown ids.
func StatusOf(s State, id string) (status Status, ok bool) {
	if _, ok := s.Lookup(id); !ok {
		return "", false
	}
	switch {
	case indexOf(s.TeamA, id) >= 0:
		return StatusTeamA, true
	case indexOf(s.TeamB, id) >= 0:
		return StatusTeamB, true
	case indexOf(s.Queue, id) >= 0:
		return StatusQueued, true
	default:
		return StatusIdle, true
	}
}

// Validate checks the partition invariants: unique registered ids, teams
// within the size cap, no id in more than one place, and every placed id
// registered.
func Validate(s State) error {
	lim := s.Limits.normalized()

	registered := make(map[string]bool, len(s.Registered))
	for _, p := range s.Registered {
		if registered[p.ID] {
			return fmt.Errorf("%w: participant %s registered twice", ErrInconsistentState, p.ID)
		}
		registered[p.ID] = true
	}

	if len(s.TeamA) > lim.TeamSize || len(s.TeamB) > lim.TeamSize {
		return fmt.Errorf("%w: team over %d players", ErrInconsistentState, lim.TeamSize)
	}

	seen := map[string]bool{}
	for _, seq := range [][]string{s.TeamA, s.TeamB, s.Queue} {
		for _, id := range seq {
			if seen[id] {
				return fmt.Errorf("%w: participant %s placed twice", ErrInconsistentState, id)
			}
			if !registered[id] {
				return fmt.Errorf("%w: participant %s is not registered", ErrInconsistentState, id)
			}
			seen[id] = true
		}
	}
	return nil
}

// Reconcile drops unknown and repeated ids from the sequences and trims teams
// to the size cap, so a partition read from storage satisfies Validate. It
// returns the repaired state and the number of ids dropped.
func Reconcile(s State) (State, int) {
	lim := s.Limits.normalized()
	next := s.Clone()

	seenRegistered := map[string]bool{}
	registered := next.Registered[:0]
	dropped := 0
	for _, p := range next.Registered {
		if p.ID == "" || seenRegistered[p.ID] {
			dropped++
			continue
		}
		seenRegistered[p.ID] = true
		registered = append(registered, p)
	}
	next.Registered = registered

	seen := map[string]bool{}
	keep := func(seq []string, limit int) []string {
		var out []string
		for _, id := range seq {
			if !seenRegistered[id] || seen[id] || (limit > 0 && len(out) == limit) {
				dropped++
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
		return out
	}
	next.TeamA = keep(next.TeamA, lim.TeamSize)
	next.TeamB = keep(next.TeamB, lim.TeamSize)
	next.Queue = keep(next.Queue, 0)

	return next, dropped
}

// SplitAmount divides a shared amount evenly among count participants.
func SplitAmount(amount float64, count int) (float64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, fmt.Errorf("%w: amount is not a number", ErrInvalidInput)
	}
	if count <= 0 {
		return 0, fmt.Errorf("%w: no participants to split between", ErrInvalidInput)
	}
	return amount / float64(count), nil
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

func indexOf(ids []string, id string) int {
	return slices.Index(ids, id)
}

func without(ids []string, id string) []string {
	return slices.DeleteFunc(ids, func(x string) bool { return x == id })
}
