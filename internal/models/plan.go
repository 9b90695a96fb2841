package models

import "time"

// PlanStatus is the review state of a pending plan.
type PlanStatus string

const (
	PlanPending  PlanStatus = "PENDING"
	PlanApproved PlanStatus = "APPROVED"
	PlanRejected PlanStatus = "REJECTED"
)

// PendingPlanModel aggregates staged fixes awaiting batch human review.
//
// PendingKey holds the connection ID while the plan is PENDING and is
// cleared on approval/rejection; the unique index on it enforces the
// single-pending-plan-per-connection invariant at the database level
// instead of relying on lookup-then-create timing.
type PendingPlanModel struct {
	Base
	ConnectionID    string     `json:"connection_id"    gorm:"index;not null"`
	Title           string     `json:"title"            gorm:"not null"`
	Description     string     `json:"description"      gorm:"type:text"`
	EstimatedImpact string     `json:"estimated_impact" gorm:"type:text"`
	Status          PlanStatus `json:"status"           gorm:"type:varchar(16);index;not null;default:'PENDING'"`
	IssueCount      int        `json:"issue_count"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	PendingKey      *string    `json:"-"                gorm:"uniqueIndex"`
}

func (PendingPlanModel) TableName() string { return "pending_plans" }
