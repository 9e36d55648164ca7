package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	JobKindDocumentGenerate = "document_generate"
	JobKindPrototypeBuild   = "prototype_build"
	JobKindPaperBulkIngest  = "paper_bulk_ingest"
)

const (
	JobStateQueued    = "queued"
	JobStateRunning   = "running"
	JobStateSucceeded = "succeeded"
	JobStateFailed    = "failed"
)

type Job struct {
	ID         string         `gorm:"primaryKey;size:36" json:"id"`
	Kind       string         `gorm:"size:32;not null;index" json:"kind"`
	TargetID   uint           `gorm:"not null;index" json:"target_id"`
	OwnerID    uint           `gorm:"not null;index" json:"owner_id"`
	State      string         `gorm:"size:16;not null;default:queued" json:"state"`
	Payload    datatypes.JSON `json:"payload,omitempty"`
	Error      string         `gorm:"type:text" json:"error"`
	Attempts   int            `gorm:"not null;default:0" json:"attempts"`
	StartedAt  *time.Time     `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func (j *Job) Terminal() bool {
	return j.State == JobStateSucceeded || j.State == JobStateFailed
}

// JobMessage is the queue payload. The Job row holds everything else.
type JobMessage struct {
	JobID    string `json:"job_id"`
	Kind     string `json:"kind"`
	TargetID uint   `json:"target_id"`
	OwnerID  uint   `json:"owner_id"`
}
