package metrics

import (
	"strconv"
	"time"

	"github.com/mmdatafocus/partner_ledger/ledger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// records created, by kind and starting status (APPROVED means auto-approved)
	RecordsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_records_created_total",
			Help: "Approvable records created",
		},
		[]string{"kind", "status"},
	)

	VotesRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_votes_recorded_total",
			Help: "Approve and reject votes recorded",
		},
		[]string{"kind", "vote"},
	)

	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_status_transitions_total",
			Help: "Record status transitions",
		},
		[]string{"kind", "from", "to"},
	)

	MilestonesAchieved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_milestones_achieved_total",
			Help: "Milestones flipped to achieved",
		},
	)

	OutboxPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_outbox_published_total",
			Help: "Outbox publish attempts by result",
		},
		[]string{"result"}, // sent, failed, dead
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)
)

func RecordHTTPRequestDuration(method, path string, status int, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

func IncrementOutboxPublished(result string) {
	OutboxPublished.WithLabelValues(result).Inc()
}

// LedgerObserver feeds ledger outcomes into the collectors above.
type LedgerObserver struct{}

func (LedgerObserver) RecordCreated(kind ledger.RecordKind, status ledger.Status) {
	RecordsCreated.WithLabelValues(string(kind), string(status)).Inc()
}

func (LedgerObserver) VoteRecorded(kind ledger.RecordKind, approved bool) {
	vote := "reject"
	if approved {
		vote = "approve"
	}
	VotesRecorded.WithLabelValues(string(kind), vote).Inc()
}

func (LedgerObserver) StatusChanged(kind ledger.RecordKind, from, to ledger.Status) {
	StatusTransitions.WithLabelValues(string(kind), string(from), string(to)).Inc()
}

// MilestoneAchieved is not labelled by company to keep cardinality bounded.
func (LedgerObserver) MilestoneAchieved(int) {
	MilestonesAchieved.Inc()
}

var _ ledger.Observer = LedgerObserver{}
