package types

// SyncAction classifies what the synchronizer decided for one model id.
type SyncAction string

const (
	// SyncAdd introduces a model the local store has never seen.
	SyncAdd SyncAction = "add"
	// SyncUpdate replaces local metadata because the remote checksum differs.
	SyncUpdate SyncAction = "update"
	// SyncSkip keeps the local descriptor; checksums match.
	SyncSkip SyncAction = "skip"
	// SyncRemoveStale marks a non-user model that vanished from the remote
	// catalog. Advisory: weight files are never deleted by sync.
	SyncRemoveStale SyncAction = "remove_stale"
)

// SyncDecision is one per-model entry of a SyncPlan.
type SyncDecision struct {
	ModelID string     `json:"model_id" example:"4x-ultrasharp"`
	Action  SyncAction `json:"action" example:"skip"`
	// Short cause, e.g. "checksum changed" or "absent from remote".
	Reason string `json:"reason,omitempty"`
}

// SyncPlan is the full decision set computed for one remote snapshot.
type SyncPlan struct {
	// Revision of the snapshot the plan was computed against.
	Revision string `json:"revision,omitempty"`
	// True when the remote reported no change since the stored revision.
	NotModified bool `json:"not_modified,omitempty"`
	// Decisions keyed by action, one per model id, sorted by id.
	Decisions []SyncDecision `json:"decisions"`
}

// Count returns how many decisions carry the given action.
func (p SyncPlan) Count(a SyncAction) int {
	n := 0
	for _, d := range p.Decisions {
		if d.Action == a {
			n++
		}
	}
	return n
}

// Summary collapses the plan into the wire response shape.
func (p SyncPlan) Summary(withDecisions bool) SyncResponse {
	resp := SyncResponse{
		Revision:    p.Revision,
		NotModified: p.NotModified,
		Added:       p.Count(SyncAdd),
		Updated:     p.Count(SyncUpdate),
		Skipped:     p.Count(SyncSkip),
		Stale:       p.Count(SyncRemoveStale),
	}
	if withDecisions {
		resp.Decisions = p.Decisions
	}
	return resp
}
