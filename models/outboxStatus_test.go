package models

import (
	"errors"
	"testing"

	"github.com/mmdatafocus/partner_ledger/ledger"
)

func TestLedgerEventQuery_Normalize(t *testing.T) {
	cases := []struct {
		name   string
		in     LedgerEventQuery
		want   LedgerEventQuery
		errKey string
	}{
		{"defaults", LedgerEventQuery{}, LedgerEventQuery{Limit: 50}, ""},
		{"upper cases filters", LedgerEventQuery{PublishStatus: " dead ", RecordKind: "salary"}, LedgerEventQuery{PublishStatus: "DEAD", RecordKind: "SALARY", Limit: 50}, ""},
		{"milestone events", LedgerEventQuery{RecordKind: "MILESTONE", Limit: 10}, LedgerEventQuery{RecordKind: "MILESTONE", Limit: 10}, ""},
		{"clamps limit", LedgerEventQuery{Limit: 5000}, LedgerEventQuery{Limit: 500}, ""},
		{"unknown status", LedgerEventQuery{PublishStatus: "LOST"}, LedgerEventQuery{}, "status"},
		{"unknown kind", LedgerEventQuery{RecordKind: "INVOICE"}, LedgerEventQuery{}, "kind"},
		{"negative record", LedgerEventQuery{ReferenceId: -1}, LedgerEventQuery{}, "record"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.in.Normalize()
			if tc.errKey != "" {
				var le *ledger.Error
				if !errors.As(err, &le) || le.Fields[tc.errKey] == "" {
					t.Fatalf("expected field error %q, got %v", tc.errKey, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestNewLedgerEventStatus(t *testing.T) {
	msg := "broker unavailable"
	rec := LedgerEventRecord{
		ID: 3, CompanyId: 4, RecordKind: "TRANSACTION", RecordId: 8, Action: "APPROVED",
		PublishStatus: OutboxPublishStatusFailed, PublishAttempts: 2, LastPublishError: &msg,
		Payload: []byte(`{"amount":"10"}`),
	}
	got := NewLedgerEventStatus(rec)
	if got.RecordId != 3 || got.ReferenceId != 8 || got.PublishStatus != OutboxPublishStatusFailed || got.LastPublishError != &msg {
		t.Fatalf("unexpected status %+v", got)
	}
}
