package realtime

// Wire protocol: one JSON object per message, tagged by "event".

// Events consumed from clients.
const (
	evJoinMatch = "joinMatch"
	evMakeMove  = "makeMove"
	evEndMatch  = "endMatch"
)

// Events produced for clients.
const (
	evGameJoined        = "gameJoined"
	evParticipantJoined = "participantJoined"
	evPlayMade          = "playMade"
	evGameEnded         = "gameEnded"
	evError             = "error"
)

// inboundEvent is the flat envelope clients send. Column is a pointer so
// a missing field is distinguishable from column 0.
type inboundEvent struct {
	Event    string `json:"event"`
	MatchID  string `json:"matchId"`
	Column   *int   `json:"column,omitempty"`
	WinnerID string `json:"winnerId,omitempty"`
}

type outboundEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

type participantPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type endedPayload struct {
	WinnerID       string `json:"winnerId"`
	WinnerUsername string `json:"winnerUsername"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func errorEvent(message string) outboundEvent {
	return outboundEvent{Event: evError, Data: errorPayload{Message: message}}
}
