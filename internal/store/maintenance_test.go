package store

import (
	"context"
	"testing"
	"time"

	"codedrop/internal/models"
)

func TestStoreInfo(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	info, err := st.StoreInfo(ctx)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.SchemaVersion == 0 {
		t.Fatal("expected non-zero schema version")
	}
	if info.TotalFiles != 0 || info.TotalBytes != 0 {
		t.Fatalf("expected empty store, got %+v", info)
	}

	for _, blob := range []struct{ id, code, name string }{
		{"b-1", "111111", "a.txt"},
		{"b-2", "111111", "b.txt"},
		{"b-3", "222222", "c.txt"},
	} {
		if err := st.CreateBlob(ctx, testBlob(blob.id, models.FetchCode(blob.code), blob.name, now)); err != nil {
			t.Fatalf("create %s: %v", blob.id, err)
		}
	}
	if err := st.ReserveCode(ctx, "333333", now); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	info, err = st.StoreInfo(ctx)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.TotalFiles != 3 {
		t.Fatalf("expected 3 files, got %d", info.TotalFiles)
	}
	if info.TotalBytes != 15 {
		t.Fatalf("expected 15 bytes, got %d", info.TotalBytes)
	}
	if info.Codes != 2 {
		t.Fatalf("expected 2 codes, got %d", info.Codes)
	}
	if info.ReservedCodes != 1 {
		t.Fatalf("expected 1 reserved code, got %d", info.ReservedCodes)
	}
}
