package server

import (
	"io"
	"mime"
	"net/http"
	"strconv"

	"codedrop/internal/api"
	"codedrop/internal/share"
)

const (
	maxIDLength    = 64
	checksumHeader = "X-Checksum"
)

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}

	dl, err := s.reads.OpenDownload(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.streamDownload(w, r, dl)
}

// streamDownload writes the framing headers and copies the body. Once the
// headers are out a failure can only be logged.
func (s *Server) streamDownload(w http.ResponseWriter, r *http.Request, dl *share.Download) {
	defer dl.Reader.Close()

	header := w.Header()
	header.Set("Content-Type", dl.ContentType)
	header.Set("Content-Length", strconv.FormatInt(dl.Length, 10))
	header.Set("Content-Disposition", contentDisposition(dl.Filename))
	if dl.Checksum != "" {
		header.Set(checksumHeader, dl.Checksum)
	}
	if !dl.UploadDate.IsZero() {
		header.Set("Last-Modified", dl.UploadDate.UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}

	written, err := io.Copy(w, dl.Reader)
	if err == nil {
		return
	}
	fields := []any{"id", dl.ID, "written", written, "length", dl.Length, "error", err}
	if r.Context().Err() != nil {
		s.log().Debug("download abandoned by client", fields...)
		return
	}
	s.log().Error("download aborted mid-stream", fields...)
}

func contentDisposition(filename string) string {
	if value := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); value != "" {
		return value
	}
	return "attachment"
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	if err := s.deletes.DeleteBlob(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.DeleteFileResponse{ID: id})
}
