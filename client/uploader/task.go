package uploader

import (
	"time"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusUploading Status = "uploading"
	// StatusVerifying is reserved for a server-side checksum pass; nothing
	// transitions into it yet.
	StatusVerifying Status = "verifying"
	StatusUploaded  Status = "uploaded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further automatic transition occurs. A failed
// task can still leave the state via an explicit Retry.
func (s Status) Terminal() bool {
	switch s {
	case StatusUploaded, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Task is a snapshot of one tracked file transfer. The queue owns the live
// record; callers only ever see copies.
type Task struct {
	ID          string
	AssetID     string
	Name        string
	Size        int64
	MIME        string
	Status      Status
	Progress    int
	Err         string
	URL         string
	StartedAt   time.Time
	CompletedAt time.Time
}
