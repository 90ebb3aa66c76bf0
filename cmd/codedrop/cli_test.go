package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"codedrop/internal/api"
	"codedrop/internal/blobstore"
	"codedrop/internal/config"
	"codedrop/internal/format"
	"codedrop/internal/objectstore"
	"codedrop/internal/server"
	"codedrop/internal/share"
	"codedrop/internal/store"
)

// newTestCLI serves a real store behind httptest and points a config at it.
func newTestCLI(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv(noAutostartEnvKey, "1")

	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "codedrop.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	blobs, err := blobstore.NewLocalFS(filepath.Join(dir, "blobs"))
	if err != nil {
		t.Fatalf("open blobs: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bucket := objectstore.New(st, blobs, logger)
	deletes := share.NewDeletionService(bucket, logger)
	sweeper := share.NewSweeper(bucket, st, deletes, share.SweeperConfig{}, logger)
	srv := server.New("127.0.0.1:0", server.Services{
		Store:   st,
		Uploads: share.NewUploadService(bucket, st, deletes, share.DefaultLimits(), logger),
		Reads:   share.NewRetrievalService(bucket),
		Deletes: deletes,
		Sweeper: sweeper,
		Backend: blobs.Backend(),
	}, logger)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	cfg := config.Default()
	cfg.APIURL = ts.URL
	cfg.DBPath = filepath.Join(dir, "codedrop.db")
	cfg.DataDir = dir
	return &cfg
}

// runCLI executes args and returns what the command wrote to stdout.
func runCLI(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	prevOut, prevFormatter := stdout, outputFormatter
	stdout = &out
	t.Cleanup(func() { stdout, outputFormatter = prevOut, prevFormatter })

	cmd := newRootCmd(cfg)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestCLIShareLifecycle(t *testing.T) {
	cfg := newTestCLI(t)
	src := t.TempDir()
	a := writeTempFile(t, src, "a.txt", "alpha")
	b := writeTempFile(t, src, "b.txt", strings.Repeat("b", 2048))

	out, err := runCLI(t, cfg, "--output", "json", "send", a, b)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	var sent api.UploadResponse
	if err := json.Unmarshal([]byte(out), &sent); err != nil {
		t.Fatalf("decode send output %q: %v", out, err)
	}
	if len(sent.UniqueCode) != 6 || len(sent.Files) != 2 {
		t.Fatalf("unexpected send response %+v", sent)
	}

	out, err = runCLI(t, cfg, "ls", sent.UniqueCode)
	if err != nil {
		t.Fatalf("ls: %v", err)
	}
	if !strings.Contains(out, "a.txt") || !strings.Contains(out, "2.0 KiB") {
		t.Fatalf("unexpected ls output %q", out)
	}

	dest := t.TempDir()
	if _, err := runCLI(t, cfg, "get", "--code", sent.UniqueCode, "--dir", dest); err != nil {
		t.Fatalf("get: %v", err)
	}
	for name, want := range map[string]string{"a.txt": "alpha", "b.txt": strings.Repeat("b", 2048)} {
		got, err := os.ReadFile(filepath.Join(dest, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if string(got) != want {
			t.Fatalf("%s content mismatch", name)
		}
	}

	out, err = runCLI(t, cfg, "rm", "--code", sent.UniqueCode)
	if err != nil {
		t.Fatalf("rm: %v", err)
	}
	if !strings.Contains(out, "deleted 2 file(s)") {
		t.Fatalf("unexpected rm output %q", out)
	}

	_, err = runCLI(t, cfg, "ls", sent.UniqueCode)
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 404 {
		t.Fatalf("expected 404 after delete, got %v", err)
	}
}

func TestCLIGetKeepsDuplicateNames(t *testing.T) {
	cfg := newTestCLI(t)
	first := writeTempFile(t, t.TempDir(), "a.txt", "one")
	second := writeTempFile(t, t.TempDir(), "a.txt", "two")

	out, err := runCLI(t, cfg, "--output", "json", "send", first, second)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	var sent api.UploadResponse
	if err := json.Unmarshal([]byte(out), &sent); err != nil {
		t.Fatalf("decode send output %q: %v", out, err)
	}

	dest := t.TempDir()
	if _, err := runCLI(t, cfg, "get", "--code", sent.UniqueCode, "--dir", dest); err != nil {
		t.Fatalf("get: %v", err)
	}

	got := map[string]bool{}
	for _, name := range []string{"a.txt", "a (1).txt"} {
		data, err := os.ReadFile(filepath.Join(dest, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		got[string(data)] = true
	}
	if !got["one"] || !got["two"] {
		t.Fatalf("expected both uploads to survive, got %v", got)
	}
}

func TestNameSetClaim(t *testing.T) {
	names := nameSet{}
	for _, tc := range []struct{ in, want string }{
		{"a.txt", "a.txt"},
		{"a.txt", "a (1).txt"},
		{"a.txt", "a (2).txt"},
		{"a (1).txt", "a (1) (1).txt"},
		{".env", ".env"},
		{".env", ".env (1)"},
		{"README", "README"},
		{"README", "README (1)"},
	} {
		if got := names.claim(tc.in); got != tc.want {
			t.Fatalf("claim(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCLISendUnderReservedCode(t *testing.T) {
	cfg := newTestCLI(t)
	client := api.NewClient(cfg.APIURL)
	reserved, err := client.ReserveCode(t.Context())
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	path := writeTempFile(t, t.TempDir(), "note.md", "# hi")
	out, err := runCLI(t, cfg, "send", "--code", reserved.UniqueCode, path)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !strings.HasPrefix(out, "code: "+reserved.UniqueCode+"\n") {
		t.Fatalf("unexpected send output %q", out)
	}

	list, err := client.ListFiles(t.Context(), reserved.UniqueCode)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list.Files) != 1 || list.Files[0].Filename != "note.md" {
		t.Fatalf("unexpected files %+v", list.Files)
	}

	out, err = runCLI(t, cfg, "--output", "yaml", "rm", list.Files[0].ID)
	if err != nil {
		t.Fatalf("rm by id: %v", err)
	}
	if !strings.Contains(out, "id: "+list.Files[0].ID) {
		t.Fatalf("unexpected yaml output %q", out)
	}
}

func TestCLIInfoAndSweep(t *testing.T) {
	cfg := newTestCLI(t)

	out, err := runCLI(t, cfg, "info")
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	for _, want := range []string{"backend: local", "max_file: 8.0 MiB", "max_batch: 20 MiB", "retention: 6h0m0s"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in info output %q", want, out)
		}
	}

	out, err = runCLI(t, cfg, "sweep")
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if !strings.HasPrefix(out, "expired 0 of 0 file(s)") {
		t.Fatalf("unexpected sweep output %q", out)
	}
}

func TestCLIArgumentErrors(t *testing.T) {
	t.Setenv(noAutostartEnvKey, "1")
	cfg := config.Default()
	cfg.APIURL = "http://127.0.0.1:1"

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "send without files", args: []string{"send"}, want: "at least one file is required"},
		{name: "get without target", args: []string{"get"}, want: "file id or --code is required"},
		{name: "rm with both", args: []string{"rm", "--code", "123456", "abc"}, want: "pass file ids or --code, not both"},
		{name: "ls without code", args: []string{"ls"}, want: "code is required"},
		{name: "bad output", args: []string{"--output", "xml", "info"}, want: "unknown output format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, &cfg, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q, got %v", tt.want, err)
			}
		})
	}
}

func TestCheckSendLimits(t *testing.T) {
	info := api.InfoResponse{MaxFileBytes: 8 << 20, MaxBatchBytes: 20 << 20}

	if err := checkSendLimits([]sendFile{{name: "big.bin", size: 9 << 20}}, info); err == nil || !strings.Contains(err.Error(), "8.0 MiB") {
		t.Fatalf("expected single file cap error, got %v", err)
	}
	if err := checkSendLimits([]sendFile{{name: "a", size: 9 << 20}, {name: "b", size: 9 << 20}}, info); err != nil {
		t.Fatalf("expected 18 MiB batch to pass, got %v", err)
	}
	if err := checkSendLimits([]sendFile{{name: "a", size: 11 << 20}, {name: "b", size: 10 << 20}}, info); err == nil || !strings.Contains(err.Error(), "20 MiB") {
		t.Fatalf("expected batch cap error, got %v", err)
	}
}

func TestWriteFileList(t *testing.T) {
	var out bytes.Buffer
	prev := stdout
	stdout = &out
	defer func() { stdout = prev }()

	err := writeFileList([]api.FileResponse{{ID: "id-1", Filename: "a.txt", SizeBytes: 1536}})
	if err != nil {
		t.Fatalf("write list: %v", err)
	}
	if !strings.Contains(out.String(), "id-1") || !strings.Contains(out.String(), "1.5 KiB") {
		t.Fatalf("unexpected list output %q", out.String())
	}
}

func TestWriteJSONUsesFormatter(t *testing.T) {
	var out bytes.Buffer
	prevOut, prevFormatter := stdout, outputFormatter
	stdout, outputFormatter = &out, format.YAMLFormatter{}
	defer func() { stdout, outputFormatter = prevOut, prevFormatter }()

	if err := writeJSON(api.CodeResponse{UniqueCode: "123456"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if strings.TrimSpace(out.String()) != `unique_code: "123456"` {
		t.Fatalf("unexpected yaml %q", out.String())
	}
}
