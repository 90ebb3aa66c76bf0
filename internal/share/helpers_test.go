package share

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"codedrop/internal/blobstore"
	"codedrop/internal/models"
	"codedrop/internal/objectstore"
	"codedrop/internal/store"
)

type testEnv struct {
	store    *store.Store
	backend  *faultyBackend
	bucket   *objectstore.Bucket
	uploads  *UploadService
	reads    *RetrievalService
	deletes  *DeletionService
	sweeper  *Sweeper
	blobRoot string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "codedrop.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	root := filepath.Join(dir, "blobs")
	local, err := blobstore.NewLocalFS(root)
	require.NoError(t, err)
	backend := &faultyBackend{BlobStore: local}

	bucket := objectstore.New(st, backend, nil)
	deletes := NewDeletionService(bucket, nil)
	return &testEnv{
		store:    st,
		backend:  backend,
		bucket:   bucket,
		uploads:  NewUploadService(bucket, st, deletes, DefaultLimits(), nil),
		reads:    NewRetrievalService(bucket),
		deletes:  deletes,
		sweeper:  NewSweeper(bucket, st, deletes, SweeperConfig{BatchSize: 2}, nil),
		blobRoot: root,
	}
}

func (e *testEnv) objectCount(t *testing.T) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(filepath.Join(e.blobRoot, "objects"), func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			n++
		}
		return nil
	})
	require.NoError(t, err)
	return n
}

func (e *testEnv) uploadText(t *testing.T, files map[string]string) models.FetchCode {
	t.Helper()
	ctx := context.Background()
	code, err := e.uploads.BeginSession(ctx)
	require.NoError(t, err)

	var batch []UploadFile
	for name, body := range files {
		batch = append(batch, textFile(name, body))
	}
	_, err = e.uploads.UploadFiles(ctx, code, batch)
	require.NoError(t, err)
	return code
}

func textFile(name, body string) UploadFile {
	return UploadFile{Filename: name, Content: bytes.NewBufferString(body), DeclaredSize: int64(len(body))}
}

var errInjected = errors.New("injected backend failure")

// faultyBackend fails selected Put or Delete calls, counted from 1.
type faultyBackend struct {
	blobstore.BlobStore

	failPutOn    int64
	failDeleteOn int64
	puts         atomic.Int64
	deletes      atomic.Int64
}

func (f *faultyBackend) Put(ctx context.Context, name string, r io.Reader) (blobstore.PutResult, error) {
	if n := f.puts.Add(1); f.failPutOn > 0 && n == f.failPutOn {
		_, _ = io.CopyN(io.Discard, r, 16)
		return blobstore.PutResult{}, errInjected
	}
	return f.BlobStore.Put(ctx, name, r)
}

func (f *faultyBackend) Delete(ctx context.Context, key string) error {
	if n := f.deletes.Add(1); f.failDeleteOn > 0 && n == f.failDeleteOn {
		return errInjected
	}
	return f.BlobStore.Delete(ctx, key)
}

// trackingReader records whether it was ever read.
type trackingReader struct {
	read atomic.Bool
}

func (r *trackingReader) Read(p []byte) (int, error) {
	r.read.Store(true)
	return 0, io.EOF
}

// endlessReader yields chunks until its context-free caller stops reading.
// started is closed on the first Read.
type endlessReader struct {
	once    sync.Once
	started chan struct{}
}

func newEndlessReader() *endlessReader {
	return &endlessReader{started: make(chan struct{})}
}

func (r *endlessReader) Read(p []byte) (int, error) {
	r.once.Do(func() { close(r.started) })
	time.Sleep(time.Millisecond)
	n := min(len(p), 1024)
	for i := range p[:n] {
		p[i] = 'x'
	}
	return n, nil
}
