package ledger

import (
	"github.com/shopspring/decimal"
)

// Totals is the roll-up of a company's APPROVED transactions.
type Totals struct {
	Income     decimal.Decimal
	Expense    decimal.Decimal
	Salary     decimal.Decimal
	PerAccount map[Account]decimal.Decimal
	Total      decimal.Decimal
}

// Aggregate rolls up txs. Anything not APPROVED is skipped entirely.
// Per account: INCOME - EXPENSE - SALARY; Total sums the fixed account set.
func Aggregate(txs []Transaction) Totals {
	t := Totals{
		Income:     decimal.Zero,
		Expense:    decimal.Zero,
		Salary:     decimal.Zero,
		PerAccount: make(map[Account]decimal.Decimal, len(Accounts)),
		Total:      decimal.Zero,
	}
	for _, a := range Accounts {
		t.PerAccount[a] = decimal.Zero
	}
	for _, tx := range txs {
		if tx.Status != StatusApproved {
			continue
		}
		signed := tx.Amount
		switch tx.Type {
		case TransactionIncome:
			t.Income = t.Income.Add(tx.Amount)
		case TransactionExpense:
			t.Expense = t.Expense.Add(tx.Amount)
			signed = signed.Neg()
		case TransactionSalary:
			t.Salary = t.Salary.Add(tx.Amount)
			signed = signed.Neg()
		default:
			continue
		}
		if bal, ok := t.PerAccount[tx.Account]; ok {
			t.PerAccount[tx.Account] = bal.Add(signed)
		}
	}
	for _, a := range Accounts {
		t.Total = t.Total.Add(t.PerAccount[a])
	}
	return t
}

func (t Totals) Balance(a Account) decimal.Decimal {
	if v, ok := t.PerAccount[a]; ok {
		return v
	}
	return decimal.Zero
}

type DirectorBalance struct {
	DirectorId int
	UserId     int
	Name       string
	Account    *Account
	Balance    decimal.Decimal
}

// DirectorBalances reports each director's balance through the account bound to them.
// Unbound directors report zero.
func DirectorBalances(directors []Director, names map[int]string, t Totals) []DirectorBalance {
	out := make([]DirectorBalance, 0, len(directors))
	for _, d := range directors {
		b := DirectorBalance{DirectorId: d.ID, UserId: d.UserId, Name: names[d.UserId], Account: d.Account, Balance: decimal.Zero}
		if d.Account != nil {
			b.Balance = t.Balance(*d.Account)
		}
		out = append(out, b)
	}
	return out
}

// ProjectProfit is approved INCOME minus approved EXPENSE linked to projectId.
func ProjectProfit(projectId int, txs []Transaction) decimal.Decimal {
	profit := decimal.Zero
	for _, tx := range txs {
		if tx.Status != StatusApproved || tx.ProjectId == nil || *tx.ProjectId != projectId {
			continue
		}
		switch tx.Type {
		case TransactionIncome:
			profit = profit.Add(tx.Amount)
		case TransactionExpense:
			profit = profit.Sub(tx.Amount)
		}
	}
	return profit
}

// NextDirectorAccount returns the first director account not yet bound in the company.
func NextDirectorAccount(directors []Director) *Account {
	taken := make(map[Account]bool, len(directors))
	for _, d := range directors {
		if d.Account != nil {
			taken[*d.Account] = true
		}
	}
	for _, a := range DirectorAccounts {
		if !taken[a] {
			acc := a
			return &acc
		}
	}
	return nil
}
