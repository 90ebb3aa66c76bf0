package server

import (
	"fmt"
	"net/http"

	"codedrop/internal/api"
	"codedrop/internal/models"
	"codedrop/internal/share"
)

const uploadSuccessMessage = "Files uploaded successfully!"

func (s *Server) handleReserveCode(w http.ResponseWriter, r *http.Request) {
	code, err := s.uploads.BeginSession(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.CodeResponse{UniqueCode: string(code)})
}

func (s *Server) handleUploadFiles(w http.ResponseWriter, r *http.Request) {
	code, ok := s.pathCodeOrBadRequest(w, r)
	if !ok {
		return
	}

	s.withLimiter(w, r, s.uploadLimiter, "upload", func() {
		result, err := s.storeBatch(w, r, code)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, api.UploadResponse{
			UniqueCode: string(result.Code),
			Files:      toFileResponses(result.Files),
			Message:    uploadSuccessMessage,
		})
	})
}

func (s *Server) storeBatch(w http.ResponseWriter, r *http.Request, code models.FetchCode) (share.UploadResult, error) {
	batch, err := s.readUploadBatch(w, r)
	if err != nil {
		return share.UploadResult{}, err
	}
	defer batch.Close()
	return s.uploads.UploadFiles(r.Context(), code, batch.files)
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	if !s.allowCodeLookup(w, r) {
		return
	}
	code, ok := s.pathCodeOrBadRequest(w, r)
	if !ok {
		return
	}

	entries, err := s.reads.ListByCode(r.Context(), code)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if len(entries) == 0 {
		s.recordCodeMiss(r)
		s.writeErrorReq(w, r, http.StatusNotFound, notFoundCode(fmt.Errorf("no files found for unique code %s", code), ErrCodeCodeNotFound))
		return
	}

	s.writeJSON(w, http.StatusOK, api.ListResponse{UniqueCode: string(code), Files: toFileResponses(entries)})
}

func (s *Server) handleDeleteByCode(w http.ResponseWriter, r *http.Request) {
	if !s.allowCodeLookup(w, r) {
		return
	}
	code, ok := s.pathCodeOrBadRequest(w, r)
	if !ok {
		return
	}

	result, err := s.uploads.CancelSession(r.Context(), code)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if result.Deleted == 0 && !result.Cancelled {
		s.recordCodeMiss(r)
		s.writeErrorReq(w, r, http.StatusNotFound, notFoundCode(fmt.Errorf("no files found for unique code %s", code), ErrCodeCodeNotFound))
		return
	}

	s.writeJSON(w, http.StatusOK, api.DeleteCodeResponse{
		UniqueCode: string(result.Code),
		Deleted:    result.Deleted,
		Failed:     result.Failed,
		Cancelled:  result.Cancelled,
	})
}
