package types

import (
	"time"

	"github.com/swiglabs/swigboard/internal/docstore"
)

// ActivityCollection is the document collection holding the audit trail of
// administrative actions.
const ActivityCollection = "activity"

// ActivityType categorizes an audit trail entry.
type ActivityType string

const (
	ActivityEventDeleted      ActivityType = "event_deleted"
	ActivityEventRestored     ActivityType = "event_restored"
	ActivityFlagsCleared      ActivityType = "flags_cleared"
	ActivityParticipantHidden ActivityType = "participant_hidden"
	ActivityParticipantShown  ActivityType = "participant_shown"
)

// ActivityLog is one audit trail entry.
type ActivityLog struct {
	ID        string
	ActorID   string
	TargetID  string
	Type      ActivityType
	Timestamp time.Time
	Details   map[string]any
}

// ActivityLogFromDoc maps a store document onto an audit trail entry.
func ActivityLogFromDoc(doc docstore.Document) *ActivityLog {
	details, _ := doc.Fields["details"].(map[string]any)

	return &ActivityLog{
		ID:        doc.ID,
		ActorID:   doc.String("actorId"),
		TargetID:  doc.String("targetId"),
		Type:      ActivityType(doc.String("type")),
		Timestamp: doc.Time("ts"),
		Details:   details,
	}
}
