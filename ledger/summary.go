package ledger

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

const summaryMilestones = 3

// Summary rolls up the company's APPROVED transactions. PENDING and REJECTED records
// never contribute.
func (s *Service) Summary(ctx context.Context, p Principal, companyId int) (*SummaryView, error) {
	m, err := requireCompanyAccess(ctx, s.store, p, companyId, "Summary")
	if err != nil {
		return nil, err
	}
	txs, err := s.store.ListTransactions(ctx, RecordFilter{CompanyIds: []int{companyId}, Status: StatusApproved})
	if err != nil {
		return nil, err
	}
	totals := Aggregate(txs)

	names := make(map[int]string, len(m.directors))
	for _, d := range m.directors {
		u, err := s.store.GetUser(ctx, d.UserId)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		names[d.UserId] = u.Username
	}

	view := &SummaryView{
		CompanyId:       companyId,
		IncomeTotal:     money(totals.Income),
		ExpenseTotal:    money(totals.Expense),
		SalaryTotal:     money(totals.Salary),
		TotalBalance:    money(totals.Total),
		Partner1Balance: money(totals.Balance(AccountPartner1)),
		Partner2Balance: money(totals.Balance(AccountPartner2)),
		CompanyBalance:  money(totals.Balance(AccountCompany)),
		Today:           formatDate(s.now()),
	}
	for _, a := range Accounts {
		view.PerAccountBalance = append(view.PerAccountBalance, AccountBalanceView{Account: a, Balance: money(totals.Balance(a))})
	}
	view.DirectorBalances = make([]DirectorBalanceView, 0, len(m.directors))
	for _, b := range DirectorBalances(m.directors, names, totals) {
		view.DirectorBalances = append(view.DirectorBalances, DirectorBalanceView{
			DirectorId:   b.DirectorId,
			DirectorName: b.Name,
			Account:      b.Account,
			Balance:      money(b.Balance),
		})
	}

	milestones, err := s.store.ListMilestones(ctx, companyId)
	if err != nil {
		return nil, err
	}
	view.Milestones = summaryMilestoneViews(milestones, totals.Income, m.company)
	return view, nil
}

// summaryMilestoneViews picks the lowest-target unachieved milestones followed by the most
// recently achieved ones.
func summaryMilestoneViews(milestones []Milestone, income decimal.Decimal, company *Company) []MilestoneView {
	var open, done []Milestone
	for _, ms := range milestones {
		if ms.Achieved {
			done = append(done, ms)
		} else {
			open = append(open, ms)
		}
	}
	sort.SliceStable(open, func(i, j int) bool { return open[i].Target.LessThan(open[j].Target) })
	sort.SliceStable(done, func(i, j int) bool {
		ai, aj := done[i].AchievedAt, done[j].AchievedAt
		if ai == nil || aj == nil {
			return aj == nil && ai != nil
		}
		if !ai.Equal(*aj) {
			return ai.After(*aj)
		}
		return done[i].ID > done[j].ID
	})
	if len(open) > summaryMilestones {
		open = open[:summaryMilestones]
	}
	if len(done) > summaryMilestones {
		done = done[:summaryMilestones]
	}
	out := make([]MilestoneView, 0, len(open)+len(done))
	for _, ms := range open {
		out = append(out, NewMilestoneView(ms, income, company.IncorporationDate))
	}
	for _, ms := range done {
		out = append(out, NewMilestoneView(ms, income, company.IncorporationDate))
	}
	return out
}

type NewMilestone struct {
	CompanyId int
	Target    decimal.Decimal
	Label     string
}

// CreateMilestone stores a milestone and immediately evaluates it against approved income.
func (s *Service) CreateMilestone(ctx context.Context, p Principal, in NewMilestone) (*MilestoneView, error) {
	if !in.Target.IsPositive() {
		return nil, Invalid("CreateMilestone", map[string]string{"target_amount": "must be > 0"})
	}
	var view MilestoneView
	err := s.store.Atomic(ctx, func(tx Store) error {
		m, err := requireCompanyAccess(ctx, tx, p, in.CompanyId, "CreateMilestone")
		if err != nil {
			return err
		}
		ms := Milestone{CompanyId: in.CompanyId, Target: in.Target, Label: strings.TrimSpace(in.Label), CreatedBy: p.ID}
		if err := tx.CreateMilestone(ctx, &ms); err != nil {
			return err
		}
		if err := s.emit(ctx, tx, Event{CompanyId: in.CompanyId, Ref: RecordRef{Kind: KindMilestone, ID: ms.ID}, Action: ActionMilestoneCreated, ActorId: p.ID, Payload: ms}); err != nil {
			return err
		}
		achieved, err := s.evaluateMilestones(ctx, tx, in.CompanyId, nil, p.ID)
		if err != nil {
			return err
		}
		if at, ok := achieved[ms.ID]; ok {
			ms.Achieved = true
			ms.AchievedAt = &at.At
		}
		income, err := approvedIncome(ctx, tx, in.CompanyId)
		if err != nil {
			return err
		}
		view = NewMilestoneView(ms, income, m.company.IncorporationDate)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (s *Service) ListMilestones(ctx context.Context, p Principal, companyId int) ([]MilestoneView, error) {
	m, err := requireCompanyAccess(ctx, s.store, p, companyId, "ListMilestones")
	if err != nil {
		return nil, err
	}
	milestones, err := s.store.ListMilestones(ctx, companyId)
	if err != nil {
		return nil, err
	}
	income, err := approvedIncome(ctx, s.store, companyId)
	if err != nil {
		return nil, err
	}
	out := make([]MilestoneView, 0, len(milestones))
	for _, ms := range milestones {
		out = append(out, NewMilestoneView(ms, income, m.company.IncorporationDate))
	}
	return out, nil
}

// ReevaluateMilestones runs the tracker for a company with no triggering transaction.
// It returns how many milestones it flipped.
func (s *Service) ReevaluateMilestones(ctx context.Context, companyId int) (int, error) {
	var n int
	err := s.store.Atomic(ctx, func(tx Store) error {
		if _, err := tx.GetCompany(ctx, companyId); err != nil {
			return err
		}
		achieved, err := s.evaluateMilestones(ctx, tx, companyId, nil, 0)
		n = len(achieved)
		return err
	})
	return n, err
}

func approvedIncome(ctx context.Context, st Store, companyId int) (decimal.Decimal, error) {
	txs, err := st.ListTransactions(ctx, RecordFilter{CompanyIds: []int{companyId}, Status: StatusApproved, Type: TransactionIncome})
	if err != nil {
		return decimal.Zero, err
	}
	return IncomeTotal(txs), nil
}

// evaluateMilestones flips every newly covered milestone. The company row lock makes a
// concurrent income approval wait, so it sums income including this commit. The conditional
// store update keeps each flip reported once.
func (s *Service) evaluateMilestones(ctx context.Context, tx Store, companyId int, trigger *Transaction, actorId int) (map[int]Achievement, error) {
	if err := tx.LockCompany(ctx, companyId); err != nil {
		return nil, err
	}
	milestones, err := tx.ListMilestones(ctx, companyId)
	if err != nil {
		return nil, err
	}
	open := false
	for _, ms := range milestones {
		if !ms.Achieved {
			open = true
			break
		}
	}
	if !open {
		return nil, nil
	}
	txs, err := tx.ListTransactions(ctx, RecordFilter{CompanyIds: []int{companyId}, Status: StatusApproved, Type: TransactionIncome})
	if err != nil {
		return nil, err
	}
	out := map[int]Achievement{}
	for _, a := range EvaluateMilestones(milestones, txs, trigger, s.now()) {
		flipped, err := tx.MarkMilestoneAchieved(ctx, a.MilestoneId, a.At)
		if err != nil {
			return nil, err
		}
		if !flipped {
			continue
		}
		out[a.MilestoneId] = a
		s.observer.MilestoneAchieved(companyId)
		if err := s.emit(ctx, tx, Event{CompanyId: companyId, Ref: RecordRef{Kind: KindMilestone, ID: a.MilestoneId}, Action: ActionMilestoneAchieved, ActorId: actorId,
			Payload: map[string]any{"achieved_at": formatDate(a.At)}}); err != nil {
			return nil, err
		}
	}
	return out, nil
}
