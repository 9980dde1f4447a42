package ledger

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func accountPtr(a Account) *Account { return &a }

func TestMembers_OwnerFirstThenDirectorsInCreationOrder(t *testing.T) {
	c := &Company{ID: 1, OwnerId: 10}
	t0 := day(2024, 1, 1)
	directors := []Director{
		{ID: 3, CompanyId: 1, UserId: 30, AddedAt: t0.Add(2 * time.Hour)},
		{ID: 2, CompanyId: 1, UserId: 20, AddedAt: t0},
		{ID: 4, CompanyId: 1, UserId: 40, AddedAt: t0}, // same time, later id
	}
	got := Members(c, directors)
	expected := []int{10, 20, 40, 30}
	if fmt.Sprint(got) != fmt.Sprint(expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}
}

func TestMembers_DegradesInsteadOfFailing(t *testing.T) {
	if got := Members(nil, []Director{{UserId: 1}}); len(got) != 0 {
		t.Fatalf("nil company must yield an empty set, got %v", got)
	}
	c := &Company{ID: 1}
	got := Members(c, []Director{{ID: 1, CompanyId: 1, UserId: 5}})
	if fmt.Sprint(got) != "[5]" {
		t.Fatalf("missing owner must be skipped, got %v", got)
	}
	if got := Members(&Company{ID: 2, OwnerId: 9}, nil); fmt.Sprint(got) != "[9]" {
		t.Fatalf("owner-only company, got %v", got)
	}
}

func TestQuorum_Required(t *testing.T) {
	cases := []struct {
		directors int
		expected  int
	}{
		{0, 0},
		{1, 0},
		{2, 2},
		{5, 5},
	}
	for _, tc := range cases {
		var ds []Director
		for i := 0; i < tc.directors; i++ {
			ds = append(ds, Director{ID: i + 1, UserId: 100 + i})
		}
		if got := NewQuorum(ds).Required(); got != tc.expected {
			t.Fatalf("Required() with %d directors expected %d, got %d", tc.directors, tc.expected, got)
		}
	}
}

func TestQuorum_IgnoresOwnerAndUnapprovedVotes(t *testing.T) {
	q := NewQuorum([]Director{{UserId: 1}, {UserId: 2}})
	votes := []Approval{
		{ApproverId: 99, Approved: true}, // owner or former director
		{ApproverId: 1, Approved: true},
		{ApproverId: 2, Approved: false},
	}
	if q.Satisfied(votes) {
		t.Fatalf("owner vote must not complete the quorum")
	}
	if got := q.Pending(votes); got != 1 {
		t.Fatalf("expected 1 pending approval, got %d", got)
	}
	votes[2].Approved = true
	if !q.Satisfied(votes) {
		t.Fatalf("expected quorum satisfied once every director approved")
	}
}

func TestTransition(t *testing.T) {
	cases := []struct {
		name      string
		kind      RecordKind
		from      Status
		act       Action
		quorumMet bool
		expected  Status
		errKind   Kind
	}{
		{"approve below quorum", KindTransaction, StatusPending, ActApprove, false, StatusPending, ""},
		{"approve at quorum", KindTransaction, StatusPending, ActApprove, true, StatusApproved, ""},
		{"approve never reopens rejected", KindSalary, StatusRejected, ActApprove, true, StatusRejected, ""},
		{"approve on approved is a no-op", KindProject, StatusApproved, ActApprove, true, StatusApproved, ""},
		{"reject pending", KindTransaction, StatusPending, ActReject, false, StatusRejected, ""},
		{"reject approved", KindTransaction, StatusApproved, ActReject, true, StatusRejected, ""},
		{"reject rejected", KindTransaction, StatusRejected, ActReject, false, StatusRejected, ""},
		{"complete approved project", KindProject, StatusApproved, ActComplete, true, StatusCompleted, ""},
		{"complete pending project", KindProject, StatusPending, ActComplete, false, StatusPending, KindConflict},
		{"complete transaction", KindTransaction, StatusApproved, ActComplete, true, StatusApproved, KindValidationFailed},
	}
	for _, tc := range cases {
		got, err := Transition(tc.kind, tc.from, tc.act, tc.quorumMet)
		if KindOf(err) != tc.errKind {
			t.Fatalf("%s: expected error kind %q, got %v", tc.name, tc.errKind, err)
		}
		if got != tc.expected {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.expected, got)
		}
	}
}

func TestInitialStatus(t *testing.T) {
	if got := InitialStatus(NewQuorum([]Director{{UserId: 1}})); got != StatusApproved {
		t.Fatalf("single director company expected APPROVED, got %s", got)
	}
	if got := InitialStatus(NewQuorum([]Director{{UserId: 1}, {UserId: 2}})); got != StatusPending {
		t.Fatalf("two director company expected PENDING, got %s", got)
	}
}

func TestAggregate_PerAccountAndTotals(t *testing.T) {
	txs := []Transaction{
		{ID: 1, Type: TransactionIncome, Amount: dec("1000"), Account: AccountCompany, Status: StatusApproved},
		{ID: 2, Type: TransactionExpense, Amount: dec("250.50"), Account: AccountCompany, Status: StatusApproved},
		{ID: 3, Type: TransactionIncome, Amount: dec("300"), Account: AccountPartner1, Status: StatusApproved},
		{ID: 4, Type: TransactionSalary, Amount: dec("100"), Account: AccountPartner1, Status: StatusApproved},
		{ID: 5, Type: TransactionIncome, Amount: dec("5000"), Account: AccountPartner2, Status: StatusPending},
		{ID: 6, Type: TransactionExpense, Amount: dec("75"), Account: AccountPartner2, Status: StatusRejected},
	}
	got := Aggregate(txs)
	checks := []struct {
		name     string
		value    decimal.Decimal
		expected string
	}{
		{"income", got.Income, "1300.00"},
		{"expense", got.Expense, "250.50"},
		{"salary", got.Salary, "100.00"},
		{"company", got.Balance(AccountCompany), "749.50"},
		{"partner1", got.Balance(AccountPartner1), "200.00"},
		{"partner2", got.Balance(AccountPartner2), "0.00"},
		{"total", got.Total, "949.50"},
	}
	for _, c := range checks {
		if c.value.StringFixed(2) != c.expected {
			t.Fatalf("%s: expected %s, got %s", c.name, c.expected, c.value.StringFixed(2))
		}
	}
}

func TestDirectorBalances_FollowBoundAccount(t *testing.T) {
	totals := Aggregate([]Transaction{
		{Type: TransactionIncome, Amount: dec("10"), Account: AccountPartner1, Status: StatusApproved},
		{Type: TransactionIncome, Amount: dec("20"), Account: AccountPartner2, Status: StatusApproved},
	})
	directors := []Director{
		{ID: 1, UserId: 11, Account: accountPtr(AccountPartner2)},
		{ID: 2, UserId: 12, Account: accountPtr(AccountPartner1)},
		{ID: 3, UserId: 13},
	}
	got := DirectorBalances(directors, map[int]string{11: "jouhar", 12: "aleena"}, totals)
	expected := []string{"20", "10", "0"}
	for i, b := range got {
		if b.Balance.String() != expected[i] {
			t.Fatalf("director %d: expected %s, got %s", b.DirectorId, expected[i], b.Balance)
		}
	}
	if got[0].Name != "jouhar" {
		t.Fatalf("expected name jouhar, got %q", got[0].Name)
	}
}

func TestNextDirectorAccount(t *testing.T) {
	if a := NextDirectorAccount(nil); a == nil || *a != AccountPartner1 {
		t.Fatalf("expected PARTNER1 first, got %v", a)
	}
	one := []Director{{Account: accountPtr(AccountPartner1)}}
	if a := NextDirectorAccount(one); a == nil || *a != AccountPartner2 {
		t.Fatalf("expected PARTNER2 second, got %v", a)
	}
	both := append(one, Director{Account: accountPtr(AccountPartner2)})
	if a := NextDirectorAccount(both); a != nil {
		t.Fatalf("expected no free account, got %v", *a)
	}
}

func TestProjectProfit(t *testing.T) {
	pid, other := 7, 8
	txs := []Transaction{
		{Type: TransactionIncome, Amount: dec("500"), ProjectId: &pid, Status: StatusApproved},
		{Type: TransactionExpense, Amount: dec("120"), ProjectId: &pid, Status: StatusApproved},
		{Type: TransactionExpense, Amount: dec("999"), ProjectId: &pid, Status: StatusPending},
		{Type: TransactionIncome, Amount: dec("999"), ProjectId: &other, Status: StatusApproved},
		{Type: TransactionIncome, Amount: dec("999"), Status: StatusApproved},
	}
	if got := ProjectProfit(pid, txs); got.String() != "380" {
		t.Fatalf("expected profit 380, got %s", got)
	}
}

func TestEvaluateMilestones_DatePrecedence(t *testing.T) {
	today := day(2024, 12, 31)
	incomes := []Transaction{
		{ID: 2, Type: TransactionIncome, Amount: dec("600"), Date: day(2024, 2, 1), Status: StatusApproved},
		{ID: 1, Type: TransactionIncome, Amount: dec("400"), Date: day(2024, 1, 1), Status: StatusApproved},
		{ID: 3, Type: TransactionIncome, Amount: dec("100"), Date: day(2024, 2, 1), Status: StatusApproved},
		{ID: 4, Type: TransactionIncome, Amount: dec("9000"), Date: day(2024, 1, 5), Status: StatusPending},
	}
	milestones := []Milestone{
		{ID: 10, Target: dec("400")},
		{ID: 11, Target: dec("1000")},
		{ID: 12, Target: dec("1100")},
		{ID: 13, Target: dec("1101")},                                  // not covered
		{ID: 14, Target: dec("1"), Achieved: true, AchievedAt: &today}, // already achieved
	}

	got := EvaluateMilestones(milestones, incomes, nil, today)
	expected := map[int]time.Time{10: day(2024, 1, 1), 11: day(2024, 2, 1), 12: day(2024, 2, 1)}
	if len(got) != len(expected) {
		t.Fatalf("expected %d achievements, got %v", len(expected), got)
	}
	for _, a := range got {
		if !a.At.Equal(expected[a.MilestoneId]) {
			t.Fatalf("milestone %d: expected %s, got %s", a.MilestoneId, expected[a.MilestoneId], a.At)
		}
	}

	trigger := incomes[0]
	withTrigger := EvaluateMilestones(milestones, incomes, &trigger, today)
	for _, a := range withTrigger {
		if !a.At.Equal(day(2024, 2, 1)) {
			t.Fatalf("trigger date must win, milestone %d got %s", a.MilestoneId, a.At)
		}
	}
}

func TestAchievementDate_Fallbacks(t *testing.T) {
	today := day(2024, 6, 1)
	incomes := []Transaction{{ID: 1, Amount: dec("10"), Date: day(2024, 3, 3)}}
	// target above the replayed sum falls back to the latest income date
	if got := achievementDate(dec("50"), incomes, nil, today); !got.Equal(day(2024, 3, 3)) {
		t.Fatalf("expected latest income date, got %s", got)
	}
	if got := achievementDate(dec("50"), nil, nil, today); !got.Equal(today) {
		t.Fatalf("expected today, got %s", got)
	}
}

func TestProgressAndDaysTaken(t *testing.T) {
	cases := []struct {
		income, target, expected string
	}{
		{"250", "1000", "25"},
		{"1000", "3", "100"},
		{"1", "3", "33.33"},
		{"10", "0", "0"},
	}
	for _, tc := range cases {
		if got := Progress(dec(tc.income), dec(tc.target)); got.String() != tc.expected {
			t.Fatalf("Progress(%s, %s) expected %s, got %s", tc.income, tc.target, tc.expected, got)
		}
	}

	inc := day(2024, 1, 1)
	at := day(2024, 1, 31)
	m := Milestone{Achieved: true, AchievedAt: &at}
	if got := DaysTaken(m, &inc); got == nil || *got != 30 {
		t.Fatalf("expected 30 days, got %v", got)
	}
	if got := DaysTaken(m, nil); got != nil {
		t.Fatalf("expected nil without incorporation date, got %d", *got)
	}
	if got := DaysTaken(Milestone{}, &inc); got != nil {
		t.Fatalf("expected nil for unachieved milestone, got %d", *got)
	}
}

func TestErrors_KindMatching(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", notAuthorized("Approve", "user %d", 3))
	if !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected errors.Is to match NotAuthorized")
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("NotAuthorized must stay distinguishable from NotFound")
	}
	if KindOf(err) != KindNotAuthorized {
		t.Fatalf("expected NotAuthorized kind, got %s", KindOf(err))
	}
	if KindOf(errors.New("boom")) != KindInternal {
		t.Fatalf("foreign errors classify as Internal")
	}
	if KindOf(nil) != "" {
		t.Fatalf("nil error has no kind")
	}
}
