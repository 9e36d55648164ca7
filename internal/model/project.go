package model

import "time"

const (
	FieldComputerScience = "computer_science"
	FieldEngineering     = "engineering"
	FieldBusiness        = "business"
	FieldHealthSciences  = "health_sciences"
)

const (
	ProjectStatusDraft      = "draft"
	ProjectStatusInProgress = "in_progress"
	ProjectStatusCompleted  = "completed"
)

type Project struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	OwnerID     uint      `gorm:"not null;index" json:"owner_id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Field       string    `gorm:"size:32;not null" json:"field"`
	Status      string    `gorm:"size:16;not null;default:draft" json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func ValidField(field string) bool {
	switch field {
	case FieldComputerScience, FieldEngineering, FieldBusiness, FieldHealthSciences:
		return true
	}
	return false
}

func ValidProjectStatus(status string) bool {
	switch status {
	case ProjectStatusDraft, ProjectStatusInProgress, ProjectStatusCompleted:
		return true
	}
	return false
}
