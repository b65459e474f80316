package domain

import "strings"

// TaskStatus is the lifecycle state of an UploadTask.
type TaskStatus string

const (
	TaskQueued    TaskStatus = "queued"
	TaskUploading TaskStatus = "uploading"
	TaskDone      TaskStatus = "done"
	TaskError     TaskStatus = "error"
)

var taskStatuses = map[string]TaskStatus{
	"queued":    TaskQueued,
	"uploading": TaskUploading,
	"done":      TaskDone,
	"error":     TaskError,
}

// ParseTaskStatus returns the status for a given label (case-insensitive).
func ParseTaskStatus(label string) (TaskStatus, bool) {
	status, ok := taskStatuses[strings.ToLower(label)]
	return status, ok
}

// Terminal reports whether no further transitions are possible.
func (s TaskStatus) Terminal() bool {
	return s == TaskDone || s == TaskError
}

// UploadTask is the transient, in-memory state of one file transfer.
//
// Progress is a percentage. When Estimated is set the value is advanced on a
// timer rather than measured, and only reaches 100 on confirmed completion.
type UploadTask struct {
	ID           string     `json:"id"`
	FileName     string     `json:"fileName"`
	SizeBytes    int64      `json:"sizeBytes"`
	Progress     float64    `json:"progress"`
	Estimated    bool       `json:"estimated"`
	Status       TaskStatus `json:"status"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
}
