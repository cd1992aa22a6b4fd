package domain

// Activity is one audit-trail entry. UserID is nil for system actions.
type Activity struct {
	ID       int64  `db:"id" json:"id"`
	Date     string `db:"date" json:"date"`
	UserID   *int64 `db:"user_id" json:"user_id,omitempty"`
	UserName string `db:"user_name" json:"user_name"`
	Action   string `db:"action" json:"action"`
	Details  string `db:"details" json:"details"`
}
