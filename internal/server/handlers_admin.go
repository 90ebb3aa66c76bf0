package server

import (
	"context"
	"net/http"

	"codedrop/internal/api"
)

// handleAdminSweep runs one expiry sweep. The sweep is detached from the
// request so a disconnecting client does not stop it halfway.
func (s *Server) handleAdminSweep(w http.ResponseWriter, r *http.Request) {
	result, err := s.sweeper.SweepOnce(context.WithoutCancel(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, api.SweepResponse{
		Scanned:        result.Scanned,
		Expired:        result.Expired,
		Deleted:        result.Deleted,
		Failed:         result.Failed,
		ReclaimedBytes: result.ReclaimedBytes,
		PurgedCodes:    result.PurgedCodes,
		StartedAt:      result.StartedAt,
		Duration:       result.Duration,
	})
}
