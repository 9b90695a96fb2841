package models

// ExecutionMode controls how much human gating happens before a fix is applied.
type ExecutionMode string

const (
	// ModeAutomatic applies fixes immediately, no human step.
	ModeAutomatic ExecutionMode = "AUTOMATIC"
	// ModePlan stages fixes into a pending plan for batch review.
	ModePlan ExecutionMode = "PLAN"
	// ModeApprove persists issues only; each fix needs per-issue approval.
	ModeApprove ExecutionMode = "APPROVE"
)

// ConnectionModel is a tenant's storefront connection.
type ConnectionModel struct {
	Base
	Name        string        `json:"name"         gorm:"not null"`
	Platform    string        `json:"platform"     gorm:"not null;default:'shopify'"`
	ShopDomain  string        `json:"shop_domain"  gorm:"uniqueIndex;not null"`
	AccessToken string        `json:"-"            gorm:"not null"`
	Endpoint    string        `json:"endpoint,omitempty"`
	Mode        ExecutionMode `json:"mode"         gorm:"type:varchar(16);not null;default:'APPROVE'"`
	Active      bool          `json:"active"`
}

func (ConnectionModel) TableName() string { return "connections" }

// ValidMode reports whether raw is one of the three execution modes.
func ValidMode(raw ExecutionMode) bool {
	switch raw {
	case ModeAutomatic, ModePlan, ModeApprove:
		return true
	}
	return false
}
