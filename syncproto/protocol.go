package syncproto

// Response messages carried in MsgResponse.Msg.
const (
	MsgOK       = "OK"
	MsgDeleted  = "DELETED"
	MsgNotFound = "NOT_FOUND"
)

// ManifestItem is a version pointer: a note id and the instant the client
// last saw it change.
type ManifestItem struct {
	ID   string    `json:"id"`
	Date Timestamp `json:"date"`
}

// SyncRequest is the body of POST /notes/sync/{user}.
type SyncRequest struct {
	Data []ManifestItem `json:"data"`
}

// SyncResult is the reconciliation diff returned by the server. The four
// lists are disjoint by id.
type SyncResult struct {
	Added      []Note   `json:"added"`
	Changed    []Note   `json:"changed"`
	Deleted    []Note   `json:"deleted"`
	MissingIDs []string `json:"missingIds"`
}

// IsEmpty reports whether the diff asks the client to do nothing.
func (r SyncResult) IsEmpty() bool {
	return len(r.Added) == 0 && len(r.Changed) == 0 &&
		len(r.Deleted) == 0 && len(r.MissingIDs) == 0
}

// MsgResponse is the status envelope used by the mutating endpoints.
type MsgResponse struct {
	Msg      string `json:"msg"`
	Inserted *int   `json:"inserted,omitempty"`
}

// ManifestOf builds the version manifest for a set of notes.
func ManifestOf(notes []Note) []ManifestItem {
	items := make([]ManifestItem, 0, len(notes))
	for _, n := range notes {
		items = append(items, ManifestItem{ID: n.ID, Date: n.ChangedDate})
	}
	return items
}
