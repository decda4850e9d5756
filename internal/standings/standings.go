// Package standings computes the contest's tie-aware ranking as a pure
// function over aggregate snapshots.
package standings

import (
	"sort"
	"strconv"

	"github.com/swiglabs/swigboard/internal/contest/types"
)

// Row is one participant's aggregate snapshot entering the ranking.
type Row struct {
	ParticipantID string
	DisplayName   string
	Score         int64
}

// Place is a podium marker.
type Place int

const (
	PlaceNone Place = iota
	PlaceFirst
	PlaceSecond
	PlaceThird
)

// Marker returns the medal marker of the place, or "" for unmarked ranks.
func (p Place) Marker() string {
	switch p {
	case PlaceFirst:
		return "🥇"
	case PlaceSecond:
		return "🥈"
	case PlaceThird:
		return "🥉"
	default:
		return ""
	}
}

// Standing is one ranked row.
type Standing struct {
	Row
	Rank  int
	Place Place
	Label string
}

// FromParticipants builds ranking rows from participant snapshots.
func FromParticipants(participants []*types.Participant) []Row {
	rows := make([]Row, len(participants))
	for i, p := range participants {
		rows[i] = Row{
			ParticipantID: p.ID,
			DisplayName:   p.DisplayName,
			Score:         p.TotalScore,
		}
	}

	return rows
}

// Compute ranks rows with the contest's tie policy: a unique leader ranks
// first, while a shared lead compresses every leader to rank 2 with nobody
// ranked first. Every other tied block takes the position of its last
// member, and unique scores take position of participants above them plus
// one. The asymmetry between the lead and the rest is a deliberate business
// rule, not a statistical ranking convention.
func Compute(rows []Row) []Standing {
	if len(rows) == 0 {
		return nil
	}

	sorted := make([]Row, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}

		return sorted[i].ParticipantID < sorted[j].ParticipantID
	})

	greater := make(map[int64]int, len(sorted))
	tied := make(map[int64]int, len(sorted))

	for i, row := range sorted {
		if _, ok := greater[row.Score]; !ok {
			greater[row.Score] = i
		}

		tied[row.Score]++
	}

	maxScore := sorted[0].Score
	leadShared := tied[maxScore] > 1

	out := make([]Standing, len(sorted))

	for i, row := range sorted {
		var rank int

		switch {
		case row.Score == maxScore && leadShared:
			rank = 2
		case row.Score == maxScore:
			rank = 1
		case tied[row.Score] > 1:
			rank = greater[row.Score] + tied[row.Score]
		default:
			rank = greater[row.Score] + 1
		}

		out[i] = Standing{
			Row:   row,
			Rank:  rank,
			Place: placeFor(rank),
			Label: ordinal(rank),
		}
	}

	return out
}

func placeFor(rank int) Place {
	switch rank {
	case 1:
		return PlaceFirst
	case 2:
		return PlaceSecond
	case 3:
		return PlaceThird
	default:
		return PlaceNone
	}
}

// ordinal renders a rank as "1st", "2nd", "3rd", "4th", with the usual
// exception for 11 through 13.
func ordinal(n int) string {
	suffix := "th"

	if n%100 < 11 || n%100 > 13 {
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}

	return strconv.Itoa(n) + suffix
}
