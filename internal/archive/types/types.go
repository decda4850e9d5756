package types

import "time"

// HourlyStanding is one participant's leaderboard position captured at the
// top of an hour.
type HourlyStanding struct {
	Timestamp     time.Time `bun:",pk"      json:"timestamp"`
	ParticipantID string    `bun:",pk"      json:"participantId"`
	DisplayName   string    `bun:",notnull" json:"displayName"`
	TotalScore    int64     `bun:",notnull" json:"totalScore"`
	Rank          int       `bun:",notnull" json:"rank"`
}
