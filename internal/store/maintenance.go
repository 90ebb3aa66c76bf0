package store

import (
	"context"
	"database/sql"
)

// StoreInfo summarizes what the database currently holds.
type StoreInfo struct {
	SchemaVersion int   `json:"schema_version"`
	TotalFiles    int   `json:"total_files"`
	TotalBytes    int64 `json:"total_bytes"`
	Codes         int   `json:"codes"`
	ReservedCodes int   `json:"reserved_codes"`
}

// StoreInfo returns schema version and blob and code counts.
func (s *Store) StoreInfo(ctx context.Context) (*StoreInfo, error) {
	version, err := currentVersion(s.db)
	if err != nil {
		return nil, err
	}
	info := &StoreInfo{SchemaVersion: version}

	var total sql.NullInt64
	row := s.db.QueryRowContext(ctx, "SELECT COUNT(*), SUM(size_bytes), COUNT(DISTINCT unique_code) FROM blobs")
	if err := row.Scan(&info.TotalFiles, &total, &info.Codes); err != nil {
		return nil, err
	}
	info.TotalBytes = total.Int64

	row = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM fetch_codes")
	if err := row.Scan(&info.ReservedCodes); err != nil {
		return nil, err
	}
	return info, nil
}
