package server

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"

	"codedrop/internal/api"
	"codedrop/internal/share"
)

// multipartOverhead is allowed on top of the batch cap for part headers and boundaries.
const multipartOverhead = 64 << 10

// uploadBatch holds the parsed parts of one upload request.
type uploadBatch struct {
	form  *multipart.Form
	open  []multipart.File
	files []share.UploadFile
}

// Close releases open parts and any temporary files the parser spilled to disk.
func (b *uploadBatch) Close() {
	for _, f := range b.open {
		_ = f.Close()
	}
	if b.form != nil {
		_ = b.form.RemoveAll()
	}
}

func (s *Server) readUploadBatch(w http.ResponseWriter, r *http.Request) (*uploadBatch, error) {
	limit := s.uploads.Limits().MaxBatchBytes
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	if err := r.ParseMultipartForm(s.multipartMaxMemory); err != nil {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
		return nil, classifyMultipartError(err, limit)
	}

	batch := &uploadBatch{form: r.MultipartForm}
	for _, header := range r.MultipartForm.File[api.UploadField] {
		f, err := header.Open()
		if err != nil {
			batch.Close()
			return nil, badRequestCode(fmt.Errorf("read part %s: %w", header.Filename, err), ErrCodeInvalidArgument)
		}
		batch.open = append(batch.open, f)
		batch.files = append(batch.files, share.UploadFile{
			Filename:     header.Filename,
			ContentType:  header.Header.Get("Content-Type"),
			Content:      f,
			DeclaredSize: header.Size,
		})
	}
	return batch, nil
}

func classifyMultipartError(err error, limit int64) error {
	if err == nil {
		return nil
	}
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) || strings.Contains(strings.ToLower(err.Error()), "request body too large") {
		return tooLargeCode(fmt.Errorf("upload is larger than the %s limit", humanize.IBytes(uint64(limit))), share.CodeBatchTooLarge)
	}
	if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
		return badRequestCode(fmt.Errorf("no files were uploaded"), ErrCodeNoFiles)
	}
	return badRequestCode(err, ErrCodeInvalidArgument)
}
