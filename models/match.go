package models

import (
	"time"
)

// Match lifecycle statuses as reported in projections and socket snapshots.
const (
	MatchStatusWaiting    = "waiting_for_guest"
	MatchStatusInProgress = "in_progress"
	MatchStatusEnded      = "ended"
)

// Match is one Matatena session between a host and a guest.
// Code is only set when short-code addressing is enabled; it is unique
// among live matches. WinnerID and EndedAt are set together when the
// match is finalized, after which no join or play is accepted.
type Match struct {
	ID        string     `gorm:"primaryKey;type:uuid" json:"id"`
	Code      *string    `gorm:"uniqueIndex;size:5" json:"code,omitempty"`
	HostID    string     `gorm:"index;not null" json:"host_id"`
	GuestID   *string    `gorm:"index" json:"guest_id,omitempty"`
	WinnerID  *string    `json:"winner_id,omitempty"`
	StartedAt time.Time  `json:"started_at" gorm:"autoCreateTime"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

func (m *Match) Ended() bool {
	return m.EndedAt != nil
}

func (m *Match) HasGuest() bool {
	return m.GuestID != nil
}

// IsParticipant reports whether userID is the host or the guest.
func (m *Match) IsParticipant(userID string) bool {
	if m.HostID == userID {
		return true
	}
	return m.GuestID != nil && *m.GuestID == userID
}

func (m *Match) Status() string {
	switch {
	case m.Ended():
		return MatchStatusEnded
	case m.HasGuest():
		return MatchStatusInProgress
	default:
		return MatchStatusWaiting
	}
}

// Play is one recorded turn: the acting user's chosen column plus the
// server-generated die. Rows are append-only; the autoincrement ID gives
// the per-match creation order.
type Play struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	MatchID   string    `gorm:"index;not null" json:"match_id"`
	UserID    string    `gorm:"not null" json:"user_id"`
	Dice      int       `gorm:"not null" json:"dice"`
	Col       int       `gorm:"column:col;not null" json:"column"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
