package types

import (
	"time"

	"github.com/swiglabs/swigboard/internal/docstore"
)

const (
	// EventsCollection is the document collection holding consumption events.
	EventsCollection = "events"
	// DefaultReactionSymbol is the symbol legacy single-reaction lists are
	// migrated under.
	DefaultReactionSymbol = "🍻"
	// DefaultFlagThreshold is the flag-set size at which an event surfaces
	// in the moderation review list.
	DefaultFlagThreshold = 3
)

// EventCommentsCollection returns the comment collection path of one event.
func EventCommentsCollection(eventID string) string {
	return EventsCollection + "/" + eventID + "/comments"
}

// Event is one logged consumption event.
type Event struct {
	ID            string
	ParticipantID string
	GroupID       string
	Count         int64
	Timestamp     time.Time
	Description   string
	ImageRef      string
	// Reactions maps a reaction symbol to the set of participant ids that
	// reacted with it. Legacy single-reaction lists are already folded in.
	Reactions map[string][]string
	// LegacyReactions holds the raw legacy single-reaction list when the
	// document has not been migrated on disk yet.
	LegacyReactions []string
	// Flags is the set of participant ids that flagged the event.
	Flags     []string
	Deleted   bool
	DeletedAt time.Time
	DeletedBy string
}

// EventFromDoc maps a store document onto an event. A legacy single-reaction
// list is folded into the reactions map under the default symbol, unless the
// document already carries that symbol.
func EventFromDoc(doc docstore.Document) *Event {
	ev := &Event{
		ID:            doc.ID,
		ParticipantID: doc.String("participantId"),
		GroupID:       doc.String("groupId"),
		Count:         doc.Int64("count"),
		Timestamp:     doc.Time("ts"),
		Description:   doc.String("description"),
		ImageRef:      doc.String("imageRef"),
		Reactions:     doc.StringSliceMap("reactions"),
		Flags:         doc.StringSlice("flags"),
		Deleted:       doc.Bool("deleted"),
		DeletedAt:     doc.Time("deletedAt"),
		DeletedBy:     doc.String("deletedBy"),
	}

	if ev.Reactions == nil {
		ev.Reactions = make(map[string][]string)
	}

	if legacy := doc.StringSlice("legacyReactions"); len(legacy) > 0 {
		if _, ok := ev.Reactions[DefaultReactionSymbol]; !ok {
			ev.Reactions[DefaultReactionSymbol] = legacy
			ev.LegacyReactions = legacy
		}
	}

	return ev
}

// Reactors returns the participant ids that reacted with the given symbol.
func (e *Event) Reactors(symbol string) []string {
	return e.Reactions[symbol]
}

// ReactionCount returns the number of reactions with the given symbol.
func (e *Event) ReactionCount(symbol string) int {
	return len(e.Reactions[symbol])
}

// HasReaction reports whether the participant reacted with the given symbol.
func (e *Event) HasReaction(symbol, participantID string) bool {
	for _, id := range e.Reactions[symbol] {
		if id == participantID {
			return true
		}
	}

	return false
}

// FlagCount returns the size of the event's flag set.
func (e *Event) FlagCount() int {
	return len(e.Flags)
}

// HasFlagged reports whether the participant has flagged the event.
func (e *Event) HasFlagged(participantID string) bool {
	for _, id := range e.Flags {
		if id == participantID {
			return true
		}
	}

	return false
}
