package types

import (
	"time"

	"github.com/swiglabs/swigboard/internal/docstore"
)

// ParticipantsCollection is the document collection holding contest
// participants, keyed by their account id.
const ParticipantsCollection = "participants"

// Participant is one contestant with their denormalized running total.
type Participant struct {
	ID             string
	DisplayName    string
	NormalizedName string
	// TotalScore is the denormalized sum of non-deleted event counts.
	// Maintained incrementally on writes and repaired by the reconciler.
	TotalScore int64
	CreatedAt  time.Time
	LastActive time.Time
	Hidden     bool
	HiddenAt   time.Time
	HiddenBy   string
}

// ParticipantFromDoc maps a store document onto a participant.
func ParticipantFromDoc(doc docstore.Document) *Participant {
	return &Participant{
		ID:             doc.ID,
		DisplayName:    doc.String("displayName"),
		NormalizedName: doc.String("normalizedName"),
		TotalScore:     doc.Int64("totalScore"),
		CreatedAt:      doc.Time("createdAt"),
		LastActive:     doc.Time("lastActive"),
		Hidden:         doc.Bool("hidden"),
		HiddenAt:       doc.Time("hiddenAt"),
		HiddenBy:       doc.String("hiddenBy"),
	}
}
