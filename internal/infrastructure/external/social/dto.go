package social

import (
	"fmt"

	"github.com/sociogram/graph-analytics/internal/domain/graph"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE DTOs
// ══════════════════════════════════════════════════════════════════════════════

// activityCandidateDTO is one activity-affinity candidate.
type activityCandidateDTO struct {
	UserID   string  `json:"user_id"`
	Affinity float64 `json:"affinity"`
}

// activityCandidatesDTO is the response of the activity-candidates endpoint.
// Candidates arrive ordered by descending affinity; the order is preserved.
type activityCandidatesDTO struct {
	Candidates []activityCandidateDTO `json:"candidates"`
}

// UserIDs extracts the candidate IDs, skipping entries the domain would
// reject. A bad row from the social service must not poison the whole
// recommendation response.
func (d *activityCandidatesDTO) UserIDs() []graph.UserID {
	ids := make([]graph.UserID, 0, len(d.Candidates))
	for _, c := range d.Candidates {
		id := graph.UserID(c.UserID)
		if !id.IsValid() {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// discoverableDTO is the response of the privacy visibility endpoint.
type discoverableDTO struct {
	Discoverable bool `json:"discoverable"`
}

// requestStatusDTO is the response of the friend-request status endpoint.
type requestStatusDTO struct {
	Status string `json:"status"`
}

// apiErrorDTO is the structured error body the social service returns.
type apiErrorDTO struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *apiErrorDTO) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}
