package types

// StatsResponse is the body returned by GET /stats.
// Item fields are omitted when the upstream does not expose them.
type StatsResponse struct {
	TotalUsers  int  `json:"total_users"`
	ActiveUsers int  `json:"active_users"`
	TotalItems  *int `json:"total_items,omitempty"`
	Logins      *int `json:"logins,omitempty"`
	Notes       *int `json:"notes,omitempty"`
	Cards       *int `json:"cards,omitempty"`
	Identities  *int `json:"identities,omitempty"`
}

// ErrorResponse is the body returned for any failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}
