package models

import "time"

// WebhookEvent stores every inbound provider event with deduplication
// metadata. The provider event id is the idempotency key; rows are never
// deleted so the table doubles as the audit trail.
type WebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Provider        string     `gorm:"type:varchar(20);not null;index:ux_webhook_events_provider_event,unique,priority:1" json:"provider"`
	ProviderEventID string     `gorm:"type:varchar(191);not null;index:ux_webhook_events_provider_event,unique,priority:2" json:"provider_event_id"`
	EventType       string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	SubjectEmail    string     `gorm:"type:varchar(200);default:'';index" json:"subject_email"`
	PayloadJSON     string     `gorm:"type:longtext" json:"payload_json"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// Processed reports whether the event's side effects completed successfully.
// A failed attempt records ProcessingError but leaves ProcessedAt unset so a
// redelivery runs the side effect again.
func (e *WebhookEvent) Processed() bool {
	return e != nil && e.ProcessedAt != nil
}
