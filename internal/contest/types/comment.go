package types

import (
	"time"

	"github.com/swiglabs/swigboard/internal/docstore"
)

// MaxCommentLength is the maximum comment length in characters.
const MaxCommentLength = 256

// Comment is one comment on an event.
type Comment struct {
	ID            string
	EventID       string
	ParticipantID string
	Text          string
	Timestamp     time.Time
}

// CommentFromDoc maps a store document onto a comment.
func CommentFromDoc(eventID string, doc docstore.Document) *Comment {
	return &Comment{
		ID:            doc.ID,
		EventID:       eventID,
		ParticipantID: doc.String("participantId"),
		Text:          doc.String("text"),
		Timestamp:     doc.Time("ts"),
	}
}
