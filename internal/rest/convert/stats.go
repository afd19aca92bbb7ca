package convert

import (
	"github.com/robalyx/vaultstats/internal/rest/types"
	"github.com/robalyx/vaultstats/internal/stats"
)

// Stats converts a snapshot to its REST representation.
func Stats(snapshot *stats.Snapshot) types.StatsResponse {
	resp := types.StatsResponse{
		TotalUsers:  snapshot.TotalUsers,
		ActiveUsers: snapshot.ActiveUsers,
	}

	if snapshot.TotalItems != nil {
		resp.TotalItems = ptr(*snapshot.TotalItems)
	}

	if byType := snapshot.ItemsByType; byType != nil {
		resp.Logins = ptr(byType.Logins)
		resp.Notes = ptr(byType.Notes)
		resp.Cards = ptr(byType.Cards)
		resp.Identities = ptr(byType.Identities)
	}

	return resp
}

// ptr copies v so the response never aliases cached state.
func ptr(v int) *int {
	return &v
}
