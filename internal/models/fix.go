package models

import "time"

// RollbackWindow is how long after application a fix stays revertible.
const RollbackWindow = 90 * 24 * time.Hour

// FixMethod records whether a fix was applied by the pipeline or a human.
type FixMethod string

const (
	FixAutomatic FixMethod = "AUTOMATIC"
	FixManual    FixMethod = "MANUAL"
)

// FixStatus is the lifecycle state of an applied fix.
type FixStatus string

const (
	FixApplied    FixStatus = "APPLIED"
	FixRolledBack FixStatus = "ROLLED_BACK"
)

// FixModel records one reversible remote mutation tied to one issue.
// BeforeState and AfterState are both mandatory so the system can always
// show what changed and write the old values back on revert.
type FixModel struct {
	Base
	ConnectionID     string    `json:"connection_id"     gorm:"index;not null"`
	IssueID          string    `json:"issue_id"          gorm:"index;not null"`
	ProductID        string    `json:"product_id"        gorm:"index;not null"`
	Type             string    `json:"type"              gorm:"not null"`
	Description      string    `json:"description"       gorm:"type:text"`
	Changes          JSONMap   `json:"changes"           gorm:"serializer:json;type:longtext"`
	BeforeState      JSONMap   `json:"before_state"      gorm:"serializer:json;type:longtext;not null"`
	AfterState       JSONMap   `json:"after_state"       gorm:"serializer:json;type:longtext;not null"`
	TargetURL        string    `json:"target_url"        gorm:"index"`
	Method           FixMethod `json:"method"            gorm:"type:varchar(16);not null"`
	Status           FixStatus `json:"status"            gorm:"type:varchar(16);index;not null;default:'APPLIED'"`
	AppliedAt        time.Time `json:"applied_at"        gorm:"index;not null"`
	RollbackDeadline time.Time `json:"rollback_deadline" gorm:"not null"`
}

func (FixModel) TableName() string { return "fixes" }

// Revertible reports whether the fix can still be rolled back at t.
func (f *FixModel) Revertible(t time.Time) bool {
	return f.Status == FixApplied && t.Before(f.RollbackDeadline)
}
