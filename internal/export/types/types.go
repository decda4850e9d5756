package types

// EventRecord represents one consumption event in the export output.
type EventRecord struct {
	ID          string `json:"id"`
	Participant string `json:"participant"`
	Group       string `json:"group,omitempty"`
	Count       int64  `json:"count"`
	Timestamp   string `json:"timestamp"`
	Description string `json:"description,omitempty"`
	Deleted     bool   `json:"deleted"`
	Flags       int64  `json:"flags"`
	Reactions   int64  `json:"reactions"`
}

// ParticipantRecord represents one participant in the export output.
type ParticipantRecord struct {
	Participant string `json:"participant"`
	DisplayName string `json:"displayName,omitempty"`
	TotalScore  int64  `json:"totalScore"`
	Joined      string `json:"joined"`
	Hidden      bool   `json:"hidden"`
}
