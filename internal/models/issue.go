package models

import "time"

// IssueSeverity is the store's four-level severity vocabulary.
type IssueSeverity string

const (
	SeverityCritical IssueSeverity = "CRITICAL"
	SeverityHigh     IssueSeverity = "HIGH"
	SeverityMedium   IssueSeverity = "MEDIUM"
	SeverityLow      IssueSeverity = "LOW"
)

// IssueStatus is the lifecycle state of a detected issue.
// Issues are never deleted, only status-transitioned.
type IssueStatus string

const (
	IssueDetected IssueStatus = "DETECTED"
	IssueFixed    IssueStatus = "FIXED"
)

// IssueModel is a detected SEO defect on one storefront resource.
// Details embeds the oracle's suggested replacement values so fix
// application never needs a second oracle call.
type IssueModel struct {
	Base
	ConnectionID   string        `json:"connection_id"  gorm:"index;not null"`
	ProductID      string        `json:"product_id"     gorm:"index;not null"`
	Type           string        `json:"type"           gorm:"index;not null"`
	Severity       IssueSeverity `json:"severity"       gorm:"type:varchar(16);not null"`
	Title          string        `json:"title"          gorm:"not null"`
	Description    string        `json:"description"    gorm:"type:text"`
	Recommendation string        `json:"recommendation" gorm:"type:text"`
	TargetURL      string        `json:"target_url"     gorm:"index;not null"`
	Status         IssueStatus   `json:"status"         gorm:"type:varchar(16);index;not null;default:'DETECTED'"`
	Details        JSONMap       `json:"details"        gorm:"serializer:json;type:longtext"`
	DetectedAt     time.Time     `json:"detected_at"    gorm:"index;not null"`
	FixedAt        *time.Time    `json:"fixed_at,omitempty"`
	PlanID         *string       `json:"plan_id,omitempty" gorm:"index"`
}

func (IssueModel) TableName() string { return "issues" }
