package ir

// DraftRecord is a persisted snapshot of a new-entity form.
type DraftRecord struct {
	Key     string   `json:"key"`
	Data    IRObject `json:"data"`
	Digest  string   `json:"digest"`
	Version int64    `json:"version"` // Incremented by the backend on every write
}

// Decision records how a blocked navigation was resolved.
type Decision struct {
	IntentID string   `json:"intent_id"`
	Dialog   string   `json:"dialog"` // "edit" or "draft"
	Choice   string   `json:"choice"` // "stay", "leave", "discard", "save_and_leave"
	Forms    []string `json:"forms"`  // Dirty form IDs when the choice was made
	Seq      int64    `json:"seq"`    // Logical clock
}
