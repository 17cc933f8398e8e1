package types

// ClientMessage is sent by WebSocket clients.
//
//	type: "Register" | "Update" | "Remove" | "ScoreGoal" | "ToggleActive" |
//	      "SeedFromQueue" | "DistributeRegistered" | "TeamLost" |
//	      "Substitute" | "ClearTeams"
//	team: "a" | "b" (TeamLost, Substitute)
//	participant_id: Update, Remove, ScoreGoal, ToggleActive, Substitute
//	name, category: Register, Update
//	enqueue: Register, also put the new participant in the queue
type ClientMessage struct {
	Type          string `json:"type"`
	Team          string `json:"team,omitempty"`
	ParticipantID string `json:"participant_id,omitempty"`
	Name          string `json:"name,omitempty"`
	Category      string `json:"category,omitempty"`
	Enqueue       bool   `json:"enqueue,omitempty"`
	Confirm       bool   `json:"confirm,omitempty"`
}

// ServerMessage is pushed to WebSocket clients.
type ServerMessage struct {
	Type    string  `json:"type"` // "StateSnapshot" | "Notice" | "Error"
	Version int     `json:"version,omitempty"`
	State   *Roster `json:"state,omitempty"`
	Error   string  `json:"error,omitempty"`
}

const (
	MsgStateSnapshot = "StateSnapshot"
	MsgNotice        = "Notice"
	MsgError         = "Error"
)
