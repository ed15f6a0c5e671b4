package services

import (
	"time"
)

// Notifier receives match events for realtime fan-out. The websocket hub
// implements it; the services publish through it so mutations arriving
// over HTTP reach the room exactly like socket-originated ones.
type Notifier interface {
	ParticipantJoined(matchID, userID, username string)
	PlayMade(matchID string, play PlayEvent)
	MatchEnded(matchID, winnerID, winnerUsername string)
}

// PlayEvent is the fan-out payload for one recorded move.
type PlayEvent struct {
	PlayID    uint      `json:"playId"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Dice      int       `json:"dice"`
	Column    int       `json:"column"`
	CreatedAt time.Time `json:"createdAt"`
}
