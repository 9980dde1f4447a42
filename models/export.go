package models

import (
	"fmt"
	"io"

	"github.com/mmdatafocus/partner_ledger/ledger"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	SummarySheet      = "Summary"
	TransactionsSheet = "Transactions"
)

// WriteLedgerWorkbook writes the company summary and its approved transactions as xlsx.
func WriteLedgerWorkbook(w io.Writer, companyName string, summary *ledger.SummaryView, txs []ledger.TransactionView) error {
	f := excelize.NewFile()
	defer f.Close()

	// the default sheet becomes the summary sheet
	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return err
	}
	if err := writeSummarySheet(f, companyName, summary); err != nil {
		return err
	}
	if _, err := f.NewSheet(TransactionsSheet); err != nil {
		return err
	}
	if err := writeTransactionsSheet(f, txs); err != nil {
		return err
	}
	return f.Write(w)
}

func writeSummarySheet(f *excelize.File, companyName string, s *ledger.SummaryView) error {
	rows := [][]interface{}{
		{"Company", companyName},
		{"Date", s.Today},
		{"Income", amountCell(s.IncomeTotal)},
		{"Expense", amountCell(s.ExpenseTotal)},
		{"Salary", amountCell(s.SalaryTotal)},
		{"Total balance", amountCell(s.TotalBalance)},
	}
	for _, b := range s.PerAccountBalance {
		rows = append(rows, []interface{}{string(b.Account) + " balance", amountCell(b.Balance)})
	}
	for _, d := range s.DirectorBalances {
		rows = append(rows, []interface{}{d.DirectorName, amountCell(d.Balance)})
	}
	for i, row := range rows {
		if err := setRow(f, SummarySheet, i+1, row); err != nil {
			return err
		}
	}
	return nil
}

func writeTransactionsSheet(f *excelize.File, txs []ledger.TransactionView) error {
	headings := []interface{}{"ID", "Date", "Type", "Account", "Amount", "Description", "Project"}
	if err := setRow(f, TransactionsSheet, 1, headings); err != nil {
		return err
	}
	for i, t := range txs {
		project := ""
		if t.ProjectId != nil {
			project = fmt.Sprint(*t.ProjectId)
		}
		row := []interface{}{t.ID, t.Date, string(t.Type), string(t.Account), amountCell(t.Amount), t.Description, project}
		if err := setRow(f, TransactionsSheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, rowNo int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNo)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

// amountCell stores amounts as numbers so spreadsheet sums work; unparsable values stay text.
func amountCell(v string) interface{} {
	d, err := decimal.NewFromString(v)
	if err != nil {
		return v
	}
	return d.InexactFloat64()
}
