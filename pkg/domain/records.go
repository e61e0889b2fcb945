package domain

import "time"

// Insight is a fleet-level root-cause finding produced for critical anomalies.
type Insight struct {
	ID              string    `json:"id"`
	VehicleID       string    `json:"vehicle_id"`
	Component       string    `json:"component"`
	Pattern         string    `json:"pattern"`
	AffectedBatch   string    `json:"affected_batch"`
	Recommendation  string    `json:"recommendation"`
	ConfidenceScore float64   `json:"confidence_score"`
	CreatedAt       time.Time `json:"created_at"`
}

// AuditStatus is the outcome of a transition check.
type AuditStatus string

const (
	AuditAllowed AuditStatus = "ALLOWED"
	AuditBlocked AuditStatus = "BLOCKED"
)

// AuditRecord is one transition check, as written to the audit trail.
type AuditRecord struct {
	AgentName string      `json:"agent_name"`
	Source    string      `json:"source"`
	Target    string      `json:"target"`
	Status    AuditStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
}
