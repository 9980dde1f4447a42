package models

import (
	"context"
	"strings"
	"time"

	"github.com/mmdatafocus/partner_ledger/ledger"
	"gorm.io/gorm"
)

const (
	defaultLedgerEventLimit = 50
	maxLedgerEventLimit     = 500
)

// LedgerEventStatus is the operator view of one outbox row. The payload is left out.
type LedgerEventStatus struct {
	RecordId         int        `json:"record_id"`
	CompanyId        int        `json:"company_id"`
	RecordKind       string     `json:"record_kind"`
	ReferenceId      int        `json:"reference_id"`
	Action           string     `json:"action"`
	PublishStatus    string     `json:"publish_status"`
	PublishAttempts  int        `json:"publish_attempts"`
	NextAttemptAt    *time.Time `json:"next_attempt_at"`
	LastPublishError *string    `json:"last_publish_error"`
	CorrelationId    string     `json:"correlation_id"`
	CreatedAt        time.Time  `json:"created_at"`
	PublishedAt      *time.Time `json:"published_at"`
}

func NewLedgerEventStatus(rec LedgerEventRecord) LedgerEventStatus {
	return LedgerEventStatus{
		RecordId:         rec.ID,
		CompanyId:        rec.CompanyId,
		RecordKind:       rec.RecordKind,
		ReferenceId:      rec.RecordId,
		Action:           rec.Action,
		PublishStatus:    rec.PublishStatus,
		PublishAttempts:  rec.PublishAttempts,
		NextAttemptAt:    rec.NextAttemptAt,
		LastPublishError: rec.LastPublishError,
		CorrelationId:    rec.CorrelationId,
		CreatedAt:        rec.CreatedAt,
		PublishedAt:      rec.PublishedAt,
	}
}

// LedgerEventQuery filters the outbox listing. Zero values mean no filter.
type LedgerEventQuery struct {
	PublishStatus string
	RecordKind    string
	ReferenceId   int
	Limit         int
}

// Normalize upper-cases the filters, clamps the limit and rejects unknown values.
func (q LedgerEventQuery) Normalize() (LedgerEventQuery, error) {
	fields := map[string]string{}
	q.PublishStatus = strings.ToUpper(strings.TrimSpace(q.PublishStatus))
	switch q.PublishStatus {
	case "", OutboxPublishStatusPending, OutboxPublishStatusProcessing, OutboxPublishStatusSent,
		OutboxPublishStatusFailed, OutboxPublishStatusDead:
	default:
		fields["status"] = "unknown publish status"
	}
	q.RecordKind = strings.ToUpper(strings.TrimSpace(q.RecordKind))
	if q.RecordKind != "" && !ledger.RecordKind(q.RecordKind).Valid() && q.RecordKind != string(ledger.KindMilestone) {
		fields["kind"] = "unknown record kind"
	}
	if q.ReferenceId < 0 {
		fields["record"] = "must be positive"
	}
	if len(fields) > 0 {
		return q, ledger.Invalid("ListLedgerEvents", fields)
	}
	if q.Limit <= 0 {
		q.Limit = defaultLedgerEventLimit
	}
	if q.Limit > maxLedgerEventLimit {
		q.Limit = maxLedgerEventLimit
	}
	return q, nil
}

// ListLedgerEvents returns the newest outbox rows matching q.
func ListLedgerEvents(ctx context.Context, db *gorm.DB, q LedgerEventQuery) ([]LedgerEventStatus, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}
	query := db.WithContext(ctx).Model(&LedgerEventRecord{}).Omit("payload")
	if q.PublishStatus != "" {
		query = query.Where("publish_status = ?", q.PublishStatus)
	}
	if q.RecordKind != "" {
		query = query.Where("record_kind = ?", q.RecordKind)
	}
	if q.ReferenceId > 0 {
		query = query.Where("record_id = ?", q.ReferenceId)
	}
	var records []LedgerEventRecord
	if err := query.Order("id DESC").Limit(q.Limit).Find(&records).Error; err != nil {
		return nil, mapError("ListLedgerEvents", err)
	}
	out := make([]LedgerEventStatus, 0, len(records))
	for _, rec := range records {
		out = append(out, NewLedgerEventStatus(rec))
	}
	return out, nil
}
