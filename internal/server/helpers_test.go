package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"codedrop/internal/api"
	"codedrop/internal/blobstore"
	"codedrop/internal/objectstore"
	"codedrop/internal/share"
	"codedrop/internal/store"
)

type testPart struct {
	name string
	body []byte
}

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "codedrop.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	local, err := blobstore.NewLocalFS(filepath.Join(dir, "blobs"))
	if err != nil {
		t.Fatalf("open blob root: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bucket := objectstore.New(st, local, logger)
	deletes := share.NewDeletionService(bucket, logger)
	srv := New("127.0.0.1:0", Services{
		Store:   st,
		Uploads: share.NewUploadService(bucket, st, deletes, share.DefaultLimits(), logger),
		Reads:   share.NewRetrievalService(bucket),
		Deletes: deletes,
		Sweeper: share.NewSweeper(bucket, st, deletes, share.SweeperConfig{}, logger),
		Backend: local.Backend(),
	}, logger)
	return srv, st
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func multipartRequest(t *testing.T, path string, parts ...testPart) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, part := range parts {
		fw, err := mw.CreateFormFile(api.UploadField, part.name)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := fw.Write(part.body); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, method, path string, payload any) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status, errorCode int) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("expected %d, got %d (%s)", status, w.Code, w.Body.String())
	}
	var errResp api.ErrorResponse
	decodeBody(t, w, &errResp)
	if errResp.ErrorCode != errorCode {
		t.Fatalf("expected error_code %d, got %d (%s)", errorCode, errResp.ErrorCode, errResp.Error)
	}
}

func reserveCode(t *testing.T, srv *Server) string {
	t.Helper()
	w := serve(srv, httptest.NewRequest(http.MethodPost, "/v1/codes", nil))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	var resp api.CodeResponse
	decodeBody(t, w, &resp)
	if len(resp.UniqueCode) != 6 {
		t.Fatalf("unexpected code %q", resp.UniqueCode)
	}
	return resp.UniqueCode
}

func uploadParts(t *testing.T, srv *Server, code string, parts ...testPart) api.UploadResponse {
	t.Helper()
	w := serve(srv, multipartRequest(t, "/v1/codes/"+code+"/files", parts...))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	var resp api.UploadResponse
	decodeBody(t, w, &resp)
	return resp
}

func fileCount(t *testing.T, st *store.Store) int {
	t.Helper()
	info, err := st.StoreInfo(t.Context())
	if err != nil {
		t.Fatalf("store info: %v", err)
	}
	return info.TotalFiles
}
