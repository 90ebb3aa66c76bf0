package server

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"codedrop/internal/api"
)

func expectLegacyMessage(t *testing.T, w *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("expected %d, got %d (%s)", status, w.Code, w.Body.String())
	}
	var resp api.LegacyMessage
	decodeBody(t, w, &resp)
	if resp.Message != message {
		t.Fatalf("expected message %q, got %q", message, resp.Message)
	}
}

func TestLegacyRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)

	w := serve(srv, httptest.NewRequest(http.MethodPost, "/upload", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	var reserved api.LegacyCode
	decodeBody(t, w, &reserved)
	code := reserved.UniqueCode
	if len(code) != 6 {
		t.Fatalf("unexpected code %q", code)
	}

	w = serve(srv, multipartRequest(t, "/uploadWithCode/"+code, testPart{"notes.txt", []byte("hello")}))
	expectLegacyMessage(t, w, http.StatusOK, "Files uploaded successfully!")

	w = serve(srv, jsonRequest(t, http.MethodPost, "/search", api.LegacyCode{UniqueCode: code}))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	var found api.LegacySearchResponse
	decodeBody(t, w, &found)
	if len(found.Files) != 1 || found.Files[0].Filename != "notes.txt" {
		t.Fatalf("unexpected search result %+v", found)
	}
	id := found.Files[0].ID

	w = serve(srv, httptest.NewRequest(http.MethodGet, "/download/"+id, nil))
	if w.Code != http.StatusOK || w.Body.String() != "hello" {
		t.Fatalf("unexpected download %d %q", w.Code, w.Body.String())
	}

	w = serve(srv, httptest.NewRequest(http.MethodDelete, "/delete/"+id, nil))
	expectLegacyMessage(t, w, http.StatusOK, "File deleted successfully!")

	w = serve(srv, httptest.NewRequest(http.MethodDelete, "/delete/"+id, nil))
	expectLegacyMessage(t, w, http.StatusNotFound, "File not found!")

	w = serve(srv, httptest.NewRequest(http.MethodGet, "/download/"+id, nil))
	expectLegacyMessage(t, w, http.StatusNotFound, "File not found!")
}

func TestLegacySearchForms(t *testing.T) {
	srv, _ := newTestServer(t)
	code := reserveCode(t, srv)
	uploadParts(t, srv, code, testPart{"a.txt", []byte("a")})

	form := url.Values{"uniqueCode": {code}}
	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := serve(srv, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	w = serve(srv, jsonRequest(t, http.MethodPost, "/search", api.LegacyCode{}))
	expectLegacyMessage(t, w, http.StatusBadRequest, "Unique code is required.")

	req = httptest.NewRequest(http.MethodPost, "/search", nil)
	req.Header.Set("Content-Type", "application/json")
	w = serve(srv, req)
	expectLegacyMessage(t, w, http.StatusBadRequest, "Unique code is required.")

	w = serve(srv, jsonRequest(t, http.MethodPost, "/search", api.LegacyCode{UniqueCode: "999999"}))
	expectLegacyMessage(t, w, http.StatusNotFound, "Files not found!")
}

func TestLegacyDeleteByUniqueCode(t *testing.T) {
	srv, st := newTestServer(t)
	code := reserveCode(t, srv)
	uploadParts(t, srv, code, testPart{"a.txt", []byte("a")}, testPart{"b.txt", []byte("b")})

	w := serve(srv, jsonRequest(t, http.MethodPost, "/deleteByUniqueCode", api.LegacyCode{UniqueCode: code}))
	expectLegacyMessage(t, w, http.StatusOK, "Partial uploads deleted successfully.")
	if n := fileCount(t, st); n != 0 {
		t.Fatalf("expected no files, got %d", n)
	}

	w = serve(srv, jsonRequest(t, http.MethodPost, "/deleteByUniqueCode", api.LegacyCode{UniqueCode: code}))
	expectLegacyMessage(t, w, http.StatusNotFound, "No files found with the given unique code.")
}

func TestLegacyUploadWithoutFiles(t *testing.T) {
	srv, _ := newTestServer(t)

	w := serve(srv, multipartRequest(t, "/uploadWithCode/123456"))
	expectLegacyMessage(t, w, http.StatusBadRequest, "No files were uploaded.")
}
