package metrics

import (
	"testing"
	"time"

	"github.com/mmdatafocus/partner_ledger/ledger"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestLedgerObserver(t *testing.T) {
	o := LedgerObserver{}

	created := RecordsCreated.WithLabelValues("TRANSACTION", "PENDING")
	before := counterValue(t, created)
	o.RecordCreated(ledger.KindTransaction, ledger.StatusPending)
	if got := counterValue(t, created); got != before+1 {
		t.Fatalf("expected created counter %v, got %v", before+1, got)
	}

	rejects := VotesRecorded.WithLabelValues("SALARY", "reject")
	before = counterValue(t, rejects)
	o.VoteRecorded(ledger.KindSalary, false)
	if got := counterValue(t, rejects); got != before+1 {
		t.Fatalf("expected reject counter %v, got %v", before+1, got)
	}

	transitions := StatusTransitions.WithLabelValues("PROJECT", "PENDING", "APPROVED")
	before = counterValue(t, transitions)
	o.StatusChanged(ledger.KindProject, ledger.StatusPending, ledger.StatusApproved)
	if got := counterValue(t, transitions); got != before+1 {
		t.Fatalf("expected transition counter %v, got %v", before+1, got)
	}

	before = counterValue(t, MilestonesAchieved)
	o.MilestoneAchieved(42)
	if got := counterValue(t, MilestonesAchieved); got != before+1 {
		t.Fatalf("expected milestone counter %v, got %v", before+1, got)
	}
}

func TestRecordHTTPRequestDuration(t *testing.T) {
	RecordHTTPRequestDuration("GET", "/api/summary", 200, 15*time.Millisecond)

	h, err := HTTPRequestDuration.GetMetricWithLabelValues("GET", "/api/summary", "200")
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues: %v", err)
	}
	var m dto.Metric
	if err := h.(prometheus.Metric).Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	if m.GetHistogram().GetSampleCount() < 1 {
		t.Fatalf("expected at least one observation")
	}
}
