package models

import (
	"time"

	"github.com/mmdatafocus/partner_ledger/config"
)

// LedgerEventRecord is the transactional outbox row. It is written in the same
// transaction as the state change and published after commit by the dispatcher.
type LedgerEventRecord struct {
	ID         int       `gorm:"primary_key;index:idx_outbox_dispatch,priority:3" json:"id"`
	CompanyId  int       `gorm:"index;not null" json:"company_id"`
	OccurredAt time.Time `gorm:"index;not null" json:"occurred_at"`
	RecordKind string    `gorm:"size:20;not null" json:"record_kind"`
	RecordId   int       `gorm:"not null" json:"record_id"`
	Action     string    `gorm:"size:30;not null" json:"action"`
	ActorId    int       `json:"actor_id"`
	Payload    []byte    `gorm:"type:blob" json:"payload"`

	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"` // PENDING|PROCESSING|SENT|FAILED|DEAD
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	CorrelationId    string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (LedgerEventRecord) TableName() string { return "ledger_events" }

func ConvertToLedgerEventMessage(record LedgerEventRecord) config.LedgerEventMessage {
	return config.LedgerEventMessage{
		ID:            record.ID,
		CompanyId:     record.CompanyId,
		OccurredAt:    record.OccurredAt,
		RecordKind:    record.RecordKind,
		RecordId:      record.RecordId,
		Action:        record.Action,
		ActorId:       record.ActorId,
		Payload:       record.Payload,
		CorrelationId: record.CorrelationId,
	}
}
