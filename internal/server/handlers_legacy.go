package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"codedrop/internal/api"
	"codedrop/internal/models"
)

// legacyMessages are the bodies the first release answered with.
type legacyMessages struct {
	notFound string
	failed   string
}

var legacyValidationMessages = map[int]string{
	ErrCodeMissingRequired: "Unique code is required.",
	ErrCodeNoFiles:         "No files were uploaded.",
}

func (s *Server) writeLegacyError(w http.ResponseWriter, r *http.Request, err error, msgs legacyMessages) {
	err = shareAPIError(err)
	status := httpStatusFromError(err)
	numericCode := errorNumericCode(status, err)
	s.logRequestError(r, status, errorCode(status, err), numericCode, err)

	message := err.Error()
	switch {
	case status >= 500:
		message = msgs.failed
	case status == http.StatusNotFound && msgs.notFound != "":
		message = msgs.notFound
	default:
		if legacy, ok := legacyValidationMessages[numericCode]; ok {
			message = legacy
		}
	}
	s.writeJSON(w, status, api.LegacyMessage{Message: message})
}

// legacyCode reads uniqueCode from a JSON or form-encoded body. A missing
// body yields an empty code.
func legacyCode(w http.ResponseWriter, r *http.Request) (models.FetchCode, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req api.LegacyCode
		if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
			return "", classifyDecodeJSONError(err)
		}
		return models.FetchCode(req.UniqueCode), nil
	}
	r.Body = http.MaxBytesReader(w, r.Body, defaultJSONMaxBody)
	return models.FetchCode(r.FormValue("uniqueCode")), nil
}

func (s *Server) handleLegacyReserve(w http.ResponseWriter, r *http.Request) {
	code, err := s.uploads.BeginSession(r.Context())
	if err != nil {
		s.writeLegacyError(w, r, err, legacyMessages{failed: "Error reserving unique code"})
		return
	}
	s.writeJSON(w, http.StatusOK, api.LegacyCode{UniqueCode: string(code)})
}

func (s *Server) handleLegacyUpload(w http.ResponseWriter, r *http.Request) {
	msgs := legacyMessages{failed: "Error during file upload"}
	code, err := requirePathCode(r)
	if err != nil {
		s.writeLegacyError(w, r, err, msgs)
		return
	}

	s.withLimiter(w, r, s.uploadLimiter, "upload", func() {
		result, err := s.storeBatch(w, r, code)
		if err != nil {
			s.writeLegacyError(w, r, err, msgs)
			return
		}
		s.writeJSON(w, http.StatusOK, api.LegacyMessage{UniqueCode: string(result.Code), Message: uploadSuccessMessage})
	})
}

func (s *Server) handleLegacySearch(w http.ResponseWriter, r *http.Request) {
	msgs := legacyMessages{notFound: "Files not found!", failed: "Error searching files"}
	if !s.allowCodeLookup(w, r) {
		return
	}
	code, err := legacyCode(w, r)
	if err != nil {
		s.writeLegacyError(w, r, err, msgs)
		return
	}

	entries, err := s.reads.ListByCode(r.Context(), code)
	if err != nil {
		s.writeLegacyError(w, r, err, msgs)
		return
	}
	if len(entries) == 0 {
		s.recordCodeMiss(r)
		s.writeLegacyError(w, r, notFoundCode(fmt.Errorf("no files found for unique code %s", code), ErrCodeCodeNotFound), msgs)
		return
	}

	files := make([]api.LegacyFile, 0, len(entries))
	for _, entry := range entries {
		files = append(files, api.LegacyFile{Filename: entry.Filename, ID: entry.ID})
	}
	s.writeJSON(w, http.StatusOK, api.LegacySearchResponse{Files: files})
}

func (s *Server) handleLegacyDeleteByCode(w http.ResponseWriter, r *http.Request) {
	msgs := legacyMessages{notFound: "No files found with the given unique code.", failed: "Error deleting partial uploads."}
	if !s.allowCodeLookup(w, r) {
		return
	}
	code, err := legacyCode(w, r)
	if err != nil {
		s.writeLegacyError(w, r, err, msgs)
		return
	}

	result, err := s.uploads.CancelSession(r.Context(), code)
	if err != nil {
		s.writeLegacyError(w, r, err, msgs)
		return
	}
	if result.Deleted == 0 && !result.Cancelled {
		s.recordCodeMiss(r)
		s.writeLegacyError(w, r, notFoundCode(fmt.Errorf("no files found for unique code %s", code), ErrCodeCodeNotFound), msgs)
		return
	}
	s.writeJSON(w, http.StatusOK, api.LegacyMessage{Message: "Partial uploads deleted successfully."})
}

func (s *Server) handleLegacyDownload(w http.ResponseWriter, r *http.Request) {
	msgs := legacyMessages{notFound: "File not found!", failed: "Error downloading file"}
	id, err := requirePathID(r)
	if err != nil {
		s.writeLegacyError(w, r, err, msgs)
		return
	}

	dl, err := s.reads.OpenDownload(r.Context(), id)
	if err != nil {
		s.writeLegacyError(w, r, err, msgs)
		return
	}
	s.streamDownload(w, r, dl)
}

func (s *Server) handleLegacyDeleteFile(w http.ResponseWriter, r *http.Request) {
	msgs := legacyMessages{notFound: "File not found!", failed: "Error deleting file"}
	id, err := requirePathID(r)
	if err != nil {
		s.writeLegacyError(w, r, err, msgs)
		return
	}
	if err := s.deletes.DeleteBlob(r.Context(), id); err != nil {
		s.writeLegacyError(w, r, err, msgs)
		return
	}
	s.writeJSON(w, http.StatusOK, api.LegacyMessage{Message: "File deleted successfully!"})
}
