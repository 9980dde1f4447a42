package ledger

import (
	"context"
	"errors"

	"github.com/mmdatafocus/partner_ledger/appctx"
)

// ListQuery filters record listings. CompanyId=0 lists every company visible to the caller.
type ListQuery struct {
	CompanyId int
	Status    Status
	Type      TransactionType
}

// quorumCache resolves each company's quorum once per listing.
type quorumCache struct {
	store Store
	byId  map[int]Quorum
}

func newQuorumCache(st Store) *quorumCache {
	return &quorumCache{store: st, byId: map[int]Quorum{}}
}

func (c *quorumCache) get(ctx context.Context, companyId int) (Quorum, error) {
	if q, ok := c.byId[companyId]; ok {
		return q, nil
	}
	directors, err := c.store.ListDirectors(ctx, companyId)
	if err != nil {
		return Quorum{}, err
	}
	q := NewQuorum(directors)
	c.byId[companyId] = q
	return q, nil
}

func (s *Service) recordState(ctx context.Context, qc *quorumCache, ref RecordRef, companyId int, status Status) (RecordState, error) {
	q, err := qc.get(ctx, companyId)
	if err != nil {
		return RecordState{}, err
	}
	approvals, err := s.store.ListApprovals(ctx, ref)
	if err != nil {
		return RecordState{}, err
	}
	return NewRecordState(status, approvals, q), nil
}

func (s *Service) projectView(ctx context.Context, qc *quorumCache, p Project) (ProjectView, error) {
	state, err := s.recordState(ctx, qc, RecordRef{Kind: KindProject, ID: p.ID}, p.CompanyId, p.Status)
	if err != nil {
		return ProjectView{}, err
	}
	txs, err := s.store.ListTransactions(ctx, RecordFilter{CompanyIds: []int{p.CompanyId}, Status: StatusApproved, ProjectId: p.ID})
	if err != nil {
		return ProjectView{}, err
	}
	return NewProjectView(p, state, ProjectProfit(p.ID, txs)), nil
}

func (s *Service) GetProject(ctx context.Context, p Principal, id int) (*ProjectView, error) {
	project, err := s.store.GetProject(appctx.WithMembershipLookup(ctx), id)
	if err != nil {
		return nil, err
	}
	if _, err := requireCompanyAccess(ctx, s.store, p, project.CompanyId, "GetProject"); err != nil {
		return nil, err
	}
	view, err := s.projectView(ctx, newQuorumCache(s.store), *project)
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (s *Service) ListProjects(ctx context.Context, p Principal, q ListQuery) ([]ProjectView, error) {
	companyIds, err := s.scopeCompanies(ctx, p, q.CompanyId, "ListProjects")
	if err != nil {
		return nil, err
	}
	projects, err := s.store.ListProjects(ctx, RecordFilter{CompanyIds: companyIds, Status: q.Status})
	if err != nil {
		return nil, err
	}
	qc := newQuorumCache(s.store)
	out := make([]ProjectView, 0, len(projects))
	for _, project := range projects {
		view, err := s.projectView(ctx, qc, project)
		if err != nil {
			return nil, err
		}
		out = append(out, view)
	}
	return out, nil
}

func (s *Service) GetTransaction(ctx context.Context, p Principal, id int) (*TransactionView, error) {
	record, err := s.store.GetTransaction(appctx.WithMembershipLookup(ctx), id)
	if err != nil {
		return nil, err
	}
	if _, err := requireCompanyAccess(ctx, s.store, p, record.CompanyId, "GetTransaction"); err != nil {
		return nil, err
	}
	state, err := s.recordState(ctx, newQuorumCache(s.store), RecordRef{Kind: KindTransaction, ID: record.ID}, record.CompanyId, record.Status)
	if err != nil {
		return nil, err
	}
	view := NewTransactionView(*record, state)
	return &view, nil
}

func (s *Service) ListTransactions(ctx context.Context, p Principal, q ListQuery) ([]TransactionView, error) {
	if q.Type != "" && !q.Type.Valid() {
		return nil, Invalid("ListTransactions", map[string]string{"type": "must be INCOME, EXPENSE or SALARY"})
	}
	companyIds, err := s.scopeCompanies(ctx, p, q.CompanyId, "ListTransactions")
	if err != nil {
		return nil, err
	}
	records, err := s.store.ListTransactions(ctx, RecordFilter{CompanyIds: companyIds, Status: q.Status, Type: q.Type})
	if err != nil {
		return nil, err
	}
	qc := newQuorumCache(s.store)
	out := make([]TransactionView, 0, len(records))
	for _, record := range records {
		state, err := s.recordState(ctx, qc, RecordRef{Kind: KindTransaction, ID: record.ID}, record.CompanyId, record.Status)
		if err != nil {
			return nil, err
		}
		out = append(out, NewTransactionView(record, state))
	}
	return out, nil
}

func (s *Service) GetSalary(ctx context.Context, p Principal, id int) (*SalaryView, error) {
	record, err := s.store.GetSalary(appctx.WithMembershipLookup(ctx), id)
	if err != nil {
		return nil, err
	}
	if _, err := requireCompanyAccess(ctx, s.store, p, record.CompanyId, "GetSalary"); err != nil {
		return nil, err
	}
	state, err := s.recordState(ctx, newQuorumCache(s.store), RecordRef{Kind: KindSalary, ID: record.ID}, record.CompanyId, record.Status)
	if err != nil {
		return nil, err
	}
	view := NewSalaryView(*record, state)
	return &view, nil
}

func (s *Service) ListSalaries(ctx context.Context, p Principal, q ListQuery) ([]SalaryView, error) {
	companyIds, err := s.scopeCompanies(ctx, p, q.CompanyId, "ListSalaries")
	if err != nil {
		return nil, err
	}
	records, err := s.store.ListSalaries(ctx, RecordFilter{CompanyIds: companyIds, Status: q.Status})
	if err != nil {
		return nil, err
	}
	qc := newQuorumCache(s.store)
	out := make([]SalaryView, 0, len(records))
	for _, record := range records {
		state, err := s.recordState(ctx, qc, RecordRef{Kind: KindSalary, ID: record.ID}, record.CompanyId, record.Status)
		if err != nil {
			return nil, err
		}
		out = append(out, NewSalaryView(record, state))
	}
	return out, nil
}

// RecordView returns the approval payload of any record.
func (s *Service) RecordView(ctx context.Context, p Principal, ref RecordRef) (*RecordState, error) {
	if !ref.Kind.Valid() {
		return nil, invalid("RecordView", "invalid record kind %q", ref.Kind)
	}
	var companyId int
	var status Status
	lookupCtx := appctx.WithMembershipLookup(ctx)
	switch ref.Kind {
	case KindProject:
		r, err := s.store.GetProject(lookupCtx, ref.ID)
		if err != nil {
			return nil, err
		}
		companyId, status = r.CompanyId, r.Status
	case KindTransaction:
		r, err := s.store.GetTransaction(lookupCtx, ref.ID)
		if err != nil {
			return nil, err
		}
		companyId, status = r.CompanyId, r.Status
	case KindSalary:
		r, err := s.store.GetSalary(lookupCtx, ref.ID)
		if err != nil {
			return nil, err
		}
		companyId, status = r.CompanyId, r.Status
	}
	if _, err := requireCompanyAccess(ctx, s.store, p, companyId, "RecordView"); err != nil {
		return nil, err
	}
	state, err := s.recordState(ctx, newQuorumCache(s.store), ref, companyId, status)
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// PendingCount is every PENDING record for admins. For a current director it is the PENDING
// records of their company they have not approved, whether or not an approval row was seeded
// for them. Only directors count toward quorum, so anyone else has nothing waiting.
func (s *Service) PendingCount(ctx context.Context, p Principal) (int64, error) {
	if p.IsAdmin() {
		return s.store.CountPendingRecords(ctx, nil)
	}
	d, err := s.store.GetDirectorByUser(ctx, p.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return s.store.CountAwaitingApproval(ctx, d.CompanyId, p.ID)
}
