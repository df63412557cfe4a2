package model

// Envelope is the redelivery payload published to Kafka (via Debezium outbox SMT).
type Envelope struct {
	LeadID   string     `json:"lead_id"`
	TenantID string     `json:"tenant_id"`
	Lead     LeadFields `json:"lead"`
}
