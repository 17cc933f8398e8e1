package engine

// Split is the result of one distribution round.
type Split struct {
	TeamA    []Participant
	TeamB    []Participant
	Leftover []Participant
}

// Distribute splits the first lim.RoundSize entries of pool into two teams,
// balancing each category across them. Entries past the round, and entries
// that do not fit under lim.TeamSize, come back in Leftover. Every input entry
// lands in exactly one of the three outputs.
func Distribute(pool []Participant, lim Limits) Split {
	lim = lim.normalized()

	head := pool[:min(len(pool), lim.RoundSize)]
	tail := pool[len(head):]

	// Group by category, keeping first-appearance order of categories.
	var order []string
	groups := map[string][]Participant{}
	for _, p := range head {
		if _, ok := groups[p.Category]; !ok {
			order = append(order, p.Category)
		}
		groups[p.Category] = append(groups[p.Category], p)
	}

	var teamA, teamB []Participant
	for _, category := range order {
		group := groups[category]
		half := len(group) / 2

		teamA = append(teamA, group[:half]...)
		teamB = append(teamB, group[half:2*half]...)

		if len(group)%2 == 1 {
			last := group[len(group)-1]
			if len(teamA) <= len(teamB) {
				teamA = append(teamA, last)
			} else {
				teamB = append(teamB, last)
			}
		}
	}

	finalA, overflowA := cut(teamA, lim.TeamSize)
	finalB, overflowB := cut(teamB, lim.TeamSize)

	used := make(map[string]bool, len(finalA)+len(finalB))
	for _, p := range finalA {
		used[p.ID] = true
	}
	for _, p := range finalB {
		used[p.ID] = true
	}

	leftover := make([]Participant, 0, len(tail)+len(overflowA)+len(overflowB))
	for _, group := range [][]Participant{tail, overflowA, overflowB} {
		for _, p := range group {
			if used[p.ID] {
				continue
			}
			leftover = append(leftover, p)
		}
	}

	return Split{TeamA: finalA, TeamB: finalB, Leftover: leftover}
}

func cut(team []Participant, size int) (kept, overflow []Participant) {
	if len(team) <= size {
		return team, nil
	}
	return team[:size], team[size:]
}

// IDs returns the ids of ps in order.
func IDs(ps []Participant) []string {
	ids := make([]string, 0, len(ps))
	for _, p := range ps {
		ids = append(ids, p.ID)
	}
	return ids
}
