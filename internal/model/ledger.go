package model

// TimestampLayout is the local-time format written to the ledger.
const TimestampLayout = "2006-01-02 15:04:05"

// LedgerRow is a single recorded action read back from the ledger.
// Legacy rows predate the user id column and carry an empty UserID.
type LedgerRow struct {
	UserID    string
	Timestamp string
	Action    string
	Points    int
	Total     int
	Legacy    bool
}

// BelongsTo reports whether the row counts toward userID.
// Legacy rows were written when the ledger served a single user, so they belong to everyone.
func (r LedgerRow) BelongsTo(userID string) bool {
	return r.Legacy || r.UserID == userID
}

// HistoryEntry is the user-facing view of a ledger row.
type HistoryEntry struct {
	Timestamp string `json:"timestamp"`
	Action    string `json:"action"`
	Points    int    `json:"points"`
	Total     int    `json:"total"`
}
