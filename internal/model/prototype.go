package model

import "time"

const (
	PrototypeClassifier  = "classifier"
	PrototypeRecommender = "recommender"
	PrototypeChatbot     = "chatbot"
	PrototypeTextTool    = "text_tool"
	PrototypeDashboard   = "dashboard"
)

const (
	PrototypeStatusDraft    = "draft"
	PrototypeStatusBuilding = "building"
	PrototypeStatusReady    = "ready"
	PrototypeStatusError    = "error"
)

// Prototype.GeneratedCode and Requirements are only set while Status is ready.
type Prototype struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	ProjectID        uint      `gorm:"not null;index" json:"project_id"`
	OwnerID          uint      `gorm:"not null;index" json:"owner_id"`
	Title            string    `gorm:"size:255;not null" json:"title"`
	Type             string    `gorm:"size:32;not null" json:"type"`
	Description      string    `gorm:"type:text" json:"description"`
	InputDescription string    `gorm:"type:text" json:"input_description"`
	Status           string    `gorm:"size:16;not null;default:draft" json:"status"`
	GeneratedCode    *string   `gorm:"type:longtext" json:"generated_code"`
	Requirements     *string   `gorm:"type:text" json:"requirements"`
	BuildLog         *string   `gorm:"type:text" json:"build_log"`
	JobReference     *string   `gorm:"size:36" json:"job_reference"`
	Version          int       `gorm:"not null;default:1" json:"version"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func ValidPrototypeType(kind string) bool {
	switch kind {
	case PrototypeClassifier, PrototypeRecommender, PrototypeChatbot, PrototypeTextTool, PrototypeDashboard:
		return true
	}
	return false
}
