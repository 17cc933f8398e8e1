package engine

import (
	"fmt"
	"math/rand"
	"slices"
	"testing"
)

func people(categories ...string) []Participant {
	ps := make([]Participant, 0, len(categories))
	for i, c := range categories {
		ps = append(ps, Participant{ID: fmt.Sprintf("p%d", i+1), Name: fmt.Sprintf("Player %d", i+1), Category: c})
	}
	return ps
}

func TestDistribute_ExactSplit(t *testing.T) {
	cases := []struct {
		name         string
		pool         []Participant
		limits       Limits
		wantA        []string
		wantB        []string
		wantLeftover []string
	}{
		{
			name:         "empty pool",
			pool:         nil,
			limits:       DefaultLimits(),
			wantA:        []string{},
			wantB:        []string{},
			wantLeftover: []string{},
		},
		{
			// S group: A=[p1], B=[p2], tie sends p3 to A.
			// J group: A=[p1,p3,p4], B=[p2,p5], A is larger so p6 goes to B.
			name:         "two categories of three",
			pool:         people("S", "S", "S", "J", "J", "J"),
			limits:       DefaultLimits(),
			wantA:        []string{"p1", "p3", "p4"},
			wantB:        []string{"p2", "p5", "p6"},
			wantLeftover: []string{},
		},
		{
			name:         "single participant goes to team A",
			pool:         people("1"),
			limits:       DefaultLimits(),
			wantA:        []string{"p1"},
			wantB:        []string{},
			wantLeftover: []string{},
		},
		{
			name:         "odd members go to the smaller team",
			pool:         people("1", "2", "3", "1"),
			limits:       DefaultLimits(),
			wantA:        []string{"p1", "p2"},
			wantB:        []string{"p4", "p3"},
			wantLeftover: []string{},
		},
		{
			name:         "tail beyond the round stays queued in order",
			pool:         people("1", "1", "1", "1", "1", "1", "1", "1", "1", "1", "2", "3"),
			limits:       DefaultLimits(),
			wantA:        []string{"p1", "p2", "p3", "p4", "p5"},
			wantB:        []string{"p6", "p7", "p8", "p9", "p10"},
			wantLeftover: []string{"p11", "p12"},
		},
		{
			name:         "overflow follows the tail, A before B",
			pool:         people("1", "1", "1", "1", "1", "1", "1", "1", "2", "2"),
			limits:       Limits{TeamSize: 3, RoundSize: 8},
			wantA:        []string{"p1", "p2", "p3"},
			wantB:        []string{"p5", "p6", "p7"},
			wantLeftover: []string{"p9", "p10", "p4", "p8"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			split := Distribute(tc.pool, tc.limits)
			if got := IDs(split.TeamA); !slices.Equal(got, tc.wantA) {
				t.Fatalf("team A: got %v, want %v", got, tc.wantA)
			}
			if got := IDs(split.TeamB); !slices.Equal(got, tc.wantB) {
				t.Fatalf("team B: got %v, want %v", got, tc.wantB)
			}
			if got := IDs(split.Leftover); !slices.Equal(got, tc.wantLeftover) {
				t.Fatalf("leftover: got %v, want %v", got, tc.wantLeftover)
			}
		})
	}
}

func TestDistribute_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	labels := []string{"1", "2", "3"}

	for round := 0; round < 200; round++ {
		n := rng.Intn(25)
		categories := make([]string, n)
		for i := range categories {
			categories[i] = labels[rng.Intn(len(labels))]
		}
		pool := people(categories...)

		split := Distribute(pool, DefaultLimits())

		if len(split.TeamA) > DefaultTeamSize || len(split.TeamB) > DefaultTeamSize {
			t.Fatalf("round %d: team over cap: A=%d B=%d", round, len(split.TeamA), len(split.TeamB))
		}

		seen := map[string]int{}
		for _, out := range [][]Participant{split.TeamA, split.TeamB, split.Leftover} {
			for _, p := range out {
				seen[p.ID]++
			}
		}
		if len(seen) != n {
			t.Fatalf("round %d: got %d distinct ids out, want %d", round, len(seen), n)
		}
		for id, count := range seen {
			if count != 1 {
				t.Fatalf("round %d: id %s appears %d times", round, id, count)
			}
		}

		again := Distribute(pool, DefaultLimits())
		if !slices.Equal(IDs(again.TeamA), IDs(split.TeamA)) || !slices.Equal(IDs(again.TeamB), IDs(split.TeamB)) {
			t.Fatalf("round %d: distribution is not deterministic", round)
		}
	}
}

func TestDistribute_DoesNotModifyPool(t *testing.T) {
	pool := people("1", "2", "1", "2", "3")
	before := slices.Clone(pool)

	_ = Distribute(pool, DefaultLimits())

	if !slices.Equal(pool, before) {
		t.Fatalf("pool modified: got %v, want %v", pool, before)
	}
}
