package models

// UsageOutcome is the terminal status of one AI invocation.
type UsageOutcome string

const (
	UsageSuccess UsageOutcome = "success"
	UsageError   UsageOutcome = "error"
	UsageTimeout UsageOutcome = "timeout"
)

// UsageRecordModel is one row per AI invocation, used for billing and
// analytics. Costs are derived from token counts at record time.
type UsageRecordModel struct {
	Base
	ConnectionID string       `json:"connection_id" gorm:"index"`
	Model        string       `json:"model"         gorm:"index;not null"`
	Endpoint     string       `json:"endpoint"      gorm:"index;not null"`
	InputTokens  int          `json:"input_tokens"`
	OutputTokens int          `json:"output_tokens"`
	InputCost    float64      `json:"input_cost"`
	OutputCost   float64      `json:"output_cost"`
	TotalCost    float64      `json:"total_cost"`
	LatencyMs    int64        `json:"latency_ms"`
	Cached       bool         `json:"cached"`
	Status       UsageOutcome `json:"status"        gorm:"type:varchar(16);index;not null;default:'success'"`
	ErrorMessage string       `json:"error_message,omitempty" gorm:"type:text"`
}

func (UsageRecordModel) TableName() string { return "usage_records" }
