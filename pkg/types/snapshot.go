package types

// Roster is the JSON view of a group's partition sent to clients.
//
//	version: number, bumps on every broadcast
//	stage: "intermediate" | "final"
//	team_a / team_b / queue: participants in order
//	registered: every participant, in registration order, with status
type Roster struct {
	Code       string        `json:"code"`
	Version    int           `json:"version"`
	Stage      string        `json:"stage,omitempty"`
	TeamA      []Participant `json:"team_a"`
	TeamB      []Participant `json:"team_b"`
	Queue      []Participant `json:"queue"`
	Registered []Participant `json:"registered"`
	Limits     Limits        `json:"limits"`
}

type Participant struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Goals    int    `json:"goals"`
	Status   string `json:"status,omitempty"` // "idle" | "queued" | "team_a" | "team_b"
}

type Limits struct {
	TeamSize   int      `json:"team_size"`
	RoundSize  int      `json:"round_size"`
	Categories []string `json:"categories"`
}

// Split is the reply of the cost split endpoint.
type Split struct {
	Amount       float64 `json:"amount"`
	Participants int     `json:"participants"`
	Share        float64 `json:"share"`
	Formatted    string  `json:"formatted"`
}
