package models

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/mmdatafocus/partner_ledger/ledger"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ledger.Kind
	}{
		{"nil", nil, ""},
		{"record not found", gorm.ErrRecordNotFound, ledger.KindNotFound},
		{"duplicated key", gorm.ErrDuplicatedKey, ledger.KindConflict},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, ledger.KindConflict},
		{"mysql other", &mysql.MySQLError{Number: 1213, Message: "Deadlock"}, ledger.KindInternal},
		{"ledger error passes through", ledger.Invalid("x", map[string]string{"a": "b"}), ledger.KindValidationFailed},
		{"plain", errors.New("boom"), ledger.KindInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ledger.KindOf(mapError("op", tc.err)); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestMapError_KeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	if err := mapError("GetUser", cause); !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}

func TestRecordModel(t *testing.T) {
	for _, kind := range []ledger.RecordKind{ledger.KindProject, ledger.KindTransaction, ledger.KindSalary} {
		if _, err := recordModel(kind); err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
	}
	if _, err := recordModel(ledger.KindMilestone); ledger.KindOf(err) != ledger.KindNotFound {
		t.Fatalf("expected NotFound for milestone kind, got %v", err)
	}
}

func TestConvertToLedgerEventMessage(t *testing.T) {
	at := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	msg := ConvertToLedgerEventMessage(LedgerEventRecord{
		ID: 7, CompanyId: 3, OccurredAt: at, RecordKind: "TRANSACTION", RecordId: 11,
		Action: ledger.ActionApproved, ActorId: 5, Payload: []byte(`{"status":"APPROVED"}`), CorrelationId: "cid",
	})
	if msg.ID != 7 || msg.CompanyId != 3 || msg.RecordId != 11 || msg.Action != "APPROVED" || msg.CorrelationId != "cid" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if !msg.OccurredAt.Equal(at) || string(msg.Payload) != `{"status":"APPROVED"}` {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestWriteLedgerWorkbook(t *testing.T) {
	project := 4
	summary := &ledger.SummaryView{
		IncomeTotal:  "1000.00",
		ExpenseTotal: "200.00",
		SalaryTotal:  "0.00",
		TotalBalance: "800.00",
		PerAccountBalance: []ledger.AccountBalanceView{
			{Account: ledger.AccountPartner1, Balance: "800.00"},
			{Account: ledger.AccountPartner2, Balance: "0.00"},
			{Account: ledger.AccountCompany, Balance: "0.00"},
		},
		Today: "2024-06-30",
	}
	txs := []ledger.TransactionView{
		{ID: 1, Date: "2024-03-15", Type: ledger.TransactionIncome, Account: ledger.AccountPartner1, Amount: "1000.00", ProjectId: &project},
		{ID: 2, Date: "2024-03-16", Type: ledger.TransactionExpense, Account: ledger.AccountPartner1, Amount: "200.00", Description: "rent"},
	}

	var buf bytes.Buffer
	if err := WriteLedgerWorkbook(&buf, "Acme", summary, txs); err != nil {
		t.Fatalf("WriteLedgerWorkbook: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	if v, _ := f.GetCellValue(SummarySheet, "B1"); v != "Acme" {
		t.Fatalf("expected company name, got %q", v)
	}
	if v, _ := f.GetCellValue(SummarySheet, "B6"); v != "800" {
		t.Fatalf("expected total balance 800, got %q", v)
	}
	rows, err := f.GetRows(TransactionsSheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[1][2] != "INCOME" || rows[1][6] != "4" || rows[2][5] != "rent" {
		t.Fatalf("unexpected rows: %v", rows)
	}
}
