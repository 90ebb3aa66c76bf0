package server

import (
	"net/http"

	"codedrop/internal/api"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.store.StoreInfo(r.Context())
	if err != nil {
		s.writeErrorReq(w, r, http.StatusInternalServerError, storeFailure(err))
		return
	}

	limits := s.uploads.Limits()
	expiry := s.sweeper.Config()
	resp := api.InfoResponse{
		Backend:       s.backend,
		SchemaVersion: info.SchemaVersion,
		MaxFileBytes:  limits.MaxFileBytes,
		MaxBatchBytes: limits.MaxBatchBytes,
		Retention:     expiry.Retention.String(),
		SweepInterval: expiry.Interval.String(),
		TotalFiles:    info.TotalFiles,
	}

	s.writeJSON(w, http.StatusOK, resp)
}
