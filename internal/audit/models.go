package audit

import "time"

// Action names an access-control decision worth keeping a trail of.
type Action string

const (
	ActionCandidateVerified Action = "candidate_verified"
	ActionBindingRejected   Action = "binding_rejected"
	ActionMemberEvicted     Action = "member_evicted"
	ActionEvictionFailed    Action = "eviction_failed"
	ActionRecordAdded       Action = "record_added"
	ActionRecordRemoved     Action = "record_removed"
)

// Event is emitted from domain logic to capture key membership decisions.
// Keep it transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time
	Action    Action
	// Identity is the chat-platform identity the decision concerned.
	Identity string
	// Subject is the enrollment record's full name when one was involved.
	Subject string
	Reason  string
}
