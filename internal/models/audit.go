package models

// AuditLogModel records every mutating pipeline action. Append-only;
// consumed by external compliance and reporting tooling.
type AuditLogModel struct {
	Base
	ConnectionID string  `json:"connection_id" gorm:"index"`
	Actor        string  `json:"actor"         gorm:"index;not null"`
	Action       string  `json:"action"        gorm:"index;not null"`
	ResourceType string  `json:"resource_type" gorm:"index"`
	ResourceID   string  `json:"resource_id"   gorm:"index"`
	Details      JSONMap `json:"details"       gorm:"serializer:json;type:longtext"`
}

func (AuditLogModel) TableName() string { return "audit_logs" }
