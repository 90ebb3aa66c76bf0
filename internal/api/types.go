package api

import "time"

// ErrorResponse is a generic JSON error wrapper.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// CodeResponse carries a freshly reserved fetch code.
type CodeResponse struct {
	UniqueCode string `json:"unique_code"`
}

// FileResponse describes one stored file.
type FileResponse struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	UniqueCode  string    `json:"unique_code"`
	UploadDate  time.Time `json:"upload_date"`
}

// UploadResponse is returned after a batch is stored.
type UploadResponse struct {
	UniqueCode string         `json:"unique_code"`
	Files      []FileResponse `json:"files"`
	Message    string         `json:"message,omitempty"`
}

// ListResponse lists the files stored under a code.
type ListResponse struct {
	UniqueCode string         `json:"unique_code"`
	Files      []FileResponse `json:"files"`
}

// DeleteCodeResponse reports a delete-by-code or a cancelled upload.
type DeleteCodeResponse struct {
	UniqueCode string `json:"unique_code"`
	Deleted    int    `json:"deleted"`
	Failed     int    `json:"failed,omitempty"`
	Cancelled  bool   `json:"cancelled,omitempty"`
}

// DeleteFileResponse echoes the removed file id.
type DeleteFileResponse struct {
	ID string `json:"id"`
}

// SweepResponse reports one expiry sweep.
type SweepResponse struct {
	Scanned        int       `json:"scanned"`
	Expired        int       `json:"expired"`
	Deleted        int       `json:"deleted"`
	Failed         int       `json:"failed"`
	ReclaimedBytes int64     `json:"reclaimed_bytes"`
	PurgedCodes    int64     `json:"purged_codes"`
	StartedAt      time.Time `json:"started_at"`
	Duration       string    `json:"duration"`
}

// InfoResponse describes the running server.
type InfoResponse struct {
	Backend       string `json:"backend"`
	SchemaVersion int    `json:"schema_version"`
	MaxFileBytes  int64  `json:"max_file_bytes"`
	MaxBatchBytes int64  `json:"max_batch_bytes"`
	Retention     string `json:"retention"`
	SweepInterval string `json:"sweep_interval"`
	TotalFiles    int    `json:"total_files"`
}

// LegacyCode is the {uniqueCode} body of the original reserve, search and
// delete routes.
type LegacyCode struct {
	UniqueCode string `json:"uniqueCode"`
}

// LegacyMessage is the body shape used by the original routes.
type LegacyMessage struct {
	Message    string `json:"message"`
	UniqueCode string `json:"uniqueCode,omitempty"`
}

// LegacyFile is one entry of the original search response.
type LegacyFile struct {
	Filename string `json:"filename"`
	ID       string `json:"id"`
}

// LegacySearchResponse is the original search response.
type LegacySearchResponse struct {
	Files []LegacyFile `json:"files"`
}
