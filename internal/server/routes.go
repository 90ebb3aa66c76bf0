package server

import (
	"net/http"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check and info.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/info", s.handleInfo)

	// Codes and the files stored under them.
	mux.HandleFunc("POST /v1/codes", s.handleReserveCode)
	mux.HandleFunc("POST /v1/codes/{code}/files", s.handleUploadFiles)
	mux.HandleFunc("GET /v1/codes/{code}/files", s.handleListFiles)
	mux.HandleFunc("DELETE /v1/codes/{code}/files", s.handleDeleteByCode)

	// Single file.
	mux.HandleFunc("GET /v1/files/{id}", s.handleDownload)
	mux.HandleFunc("DELETE /v1/files/{id}", s.handleDeleteFile)

	// Admin.
	mux.HandleFunc("POST /v1/admin/sweep", s.handleAdminSweep)

	// Routes kept for clients of the first release.
	mux.HandleFunc("POST /upload", s.handleLegacyReserve)
	mux.HandleFunc("POST /uploadWithCode/{code}", s.handleLegacyUpload)
	mux.HandleFunc("POST /search", s.handleLegacySearch)
	mux.HandleFunc("POST /deleteByUniqueCode", s.handleLegacyDeleteByCode)
	mux.HandleFunc("GET /download/{id}", s.handleLegacyDownload)
	mux.HandleFunc("DELETE /delete/{id}", s.handleLegacyDeleteFile)

	return mux
}
