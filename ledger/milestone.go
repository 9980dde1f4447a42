package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Achievement is a milestone that crossed its target and the date credited to it.
type Achievement struct {
	MilestoneId int
	At          time.Time
}

// IncomeTotal sums APPROVED INCOME transactions.
func IncomeTotal(txs []Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		if tx.Status == StatusApproved && tx.Type == TransactionIncome {
			total = total.Add(tx.Amount)
		}
	}
	return total
}

// EvaluateMilestones returns the unachieved milestones whose target is covered by approved income.
// The achievement date is, in order of precedence: the trigger's date; the date at which the
// (date, id) ordered running income sum first reaches the target; the latest approved income
// date; today. Achieved milestones are never returned, so nothing is ever un-achieved.
func EvaluateMilestones(milestones []Milestone, txs []Transaction, trigger *Transaction, today time.Time) []Achievement {
	incomes := make([]Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.Status == StatusApproved && tx.Type == TransactionIncome {
			incomes = append(incomes, tx)
		}
	}
	sort.SliceStable(incomes, func(i, j int) bool {
		if !incomes[i].Date.Equal(incomes[j].Date) {
			return incomes[i].Date.Before(incomes[j].Date)
		}
		return incomes[i].ID < incomes[j].ID
	})
	total := IncomeTotal(incomes)

	var out []Achievement
	for _, m := range milestones {
		if m.Achieved || m.Target.GreaterThan(total) {
			continue
		}
		out = append(out, Achievement{MilestoneId: m.ID, At: achievementDate(m.Target, incomes, trigger, today)})
	}
	return out
}

func achievementDate(target decimal.Decimal, incomes []Transaction, trigger *Transaction, today time.Time) time.Time {
	if trigger != nil {
		return dateOnly(trigger.Date)
	}
	running := decimal.Zero
	for _, tx := range incomes {
		running = running.Add(tx.Amount)
		if running.GreaterThanOrEqual(target) {
			return dateOnly(tx.Date)
		}
	}
	if n := len(incomes); n > 0 {
		return dateOnly(incomes[n-1].Date)
	}
	return dateOnly(today)
}

// Progress is income/target as a percentage capped at 100. Non-positive targets report 0.
func Progress(income, target decimal.Decimal) decimal.Decimal {
	if !target.IsPositive() {
		return decimal.Zero
	}
	p := income.Div(target).Mul(decimal.NewFromInt(100))
	if p.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.NewFromInt(100)
	}
	return p.Round(2)
}

// DaysTaken is the number of days from incorporation to achievement, when both are known.
func DaysTaken(m Milestone, incorporation *time.Time) *int {
	if !m.Achieved || m.AchievedAt == nil || incorporation == nil {
		return nil
	}
	days := int(dateOnly(*m.AchievedAt).Sub(dateOnly(*incorporation)).Hours() / 24)
	return &days
}

func dateOnly(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}
