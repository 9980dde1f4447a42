package ledger

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// memStore is a DB-free Store. Atomic runs one transaction at a time against a copy of the
// state and copies it back on success, which gives the same all-or-nothing and serialization
// guarantees the row-locked SQL store provides. Reads outside Atomic see the committed state.
type memStore struct {
	*memTx
	txMu   sync.Mutex
	failOn string
}

type memState struct {
	nextID       int
	users        map[int]User
	companies    map[int]Company
	directors    map[int]Director
	projects     map[int]Project
	transactions map[int]Transaction
	salaries     map[int]Salary
	approvals    map[int]Approval
	milestones   map[int]Milestone
	events       []Event
}

func newMemStore() *memStore {
	st := &memState{
		users:        map[int]User{},
		companies:    map[int]Company{},
		directors:    map[int]Director{},
		projects:     map[int]Project{},
		transactions: map[int]Transaction{},
		salaries:     map[int]Salary{},
		approvals:    map[int]Approval{},
		milestones:   map[int]Milestone{},
	}
	return &memStore{memTx: &memTx{st: st}}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memState) clone() *memState {
	return &memState{
		nextID:       s.nextID,
		users:        cloneMap(s.users),
		companies:    cloneMap(s.companies),
		directors:    cloneMap(s.directors),
		projects:     cloneMap(s.projects),
		transactions: cloneMap(s.transactions),
		salaries:     cloneMap(s.salaries),
		approvals:    cloneMap(s.approvals),
		milestones:   cloneMap(s.milestones),
		events:       append([]Event(nil), s.events...),
	}
}

var errInjected = errors.New("injected failure")

// memTx is the Store handed to Atomic callbacks; it works on a private copy.
type memTx struct {
	st     *memState
	failOn string
}

func (m *memStore) Atomic(ctx context.Context, fn func(tx Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	work := m.st.clone()
	if err := fn(&memTx{st: work, failOn: m.failOn}); err != nil {
		return err
	}
	*m.st = *work
	return nil
}

func (t *memTx) Atomic(ctx context.Context, fn func(tx Store) error) error { return fn(t) }

func (t *memTx) fail(op string) error {
	if t.failOn == op {
		return errInjected
	}
	return nil
}

func (t *memTx) id() int {
	t.st.nextID++
	return t.st.nextID
}

func (t *memTx) GetUser(ctx context.Context, id int) (*User, error) {
	u, ok := t.st.users[id]
	if !ok {
		return nil, notFound("GetUser", "user %d", id)
	}
	return &u, nil
}

func (t *memTx) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	for _, u := range t.st.users {
		if u.Username == username {
			u := u
			return &u, nil
		}
	}
	return nil, notFound("GetUserByUsername", "user %q", username)
}

func (t *memTx) ListUsers(ctx context.Context) ([]User, error) {
	out := make([]User, 0, len(t.st.users))
	for _, u := range t.st.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) CreateUser(ctx context.Context, u *User) error {
	if err := t.fail("CreateUser"); err != nil {
		return err
	}
	if _, err := t.GetUserByUsername(ctx, u.Username); err == nil {
		return conflict("CreateUser", "duplicate username")
	}
	u.ID = t.id()
	t.st.users[u.ID] = *u
	return nil
}

func (t *memTx) UpdateUser(ctx context.Context, u *User) error {
	if _, ok := t.st.users[u.ID]; !ok {
		return notFound("UpdateUser", "user %d", u.ID)
	}
	t.st.users[u.ID] = *u
	return nil
}

func (t *memTx) DeleteUser(ctx context.Context, id int) error {
	delete(t.st.users, id)
	return nil
}

func (t *memTx) GetCompany(ctx context.Context, id int) (*Company, error) {
	c, ok := t.st.companies[id]
	if !ok {
		return nil, notFound("GetCompany", "company %d", id)
	}
	return &c, nil
}

// LockCompany only checks existence; Atomic already runs one transaction at a time.
func (t *memTx) LockCompany(ctx context.Context, id int) error {
	_, err := t.GetCompany(ctx, id)
	return err
}

func (t *memTx) ListCompanies(ctx context.Context, f CompanyFilter) ([]Company, error) {
	var out []Company
	for _, c := range t.st.companies {
		if f.MemberId != 0 && c.OwnerId != f.MemberId {
			directs := false
			for _, d := range t.st.directors {
				if d.CompanyId == c.ID && d.UserId == f.MemberId {
					directs = true
				}
			}
			if !directs {
				continue
			}
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) CreateCompany(ctx context.Context, c *Company) error {
	c.ID = t.id()
	c.CreatedAt = time.Now()
	t.st.companies[c.ID] = *c
	return nil
}

func (t *memTx) DeleteCompany(ctx context.Context, id int) error {
	delete(t.st.companies, id)
	for k, d := range t.st.directors {
		if d.CompanyId == id {
			delete(t.st.directors, k)
		}
	}
	for k, r := range t.st.projects {
		if r.CompanyId == id {
			t.deleteApprovals(RecordRef{Kind: KindProject, ID: r.ID})
			delete(t.st.projects, k)
		}
	}
	for k, r := range t.st.transactions {
		if r.CompanyId == id {
			t.deleteApprovals(RecordRef{Kind: KindTransaction, ID: r.ID})
			delete(t.st.transactions, k)
		}
	}
	for k, r := range t.st.salaries {
		if r.CompanyId == id {
			t.deleteApprovals(RecordRef{Kind: KindSalary, ID: r.ID})
			delete(t.st.salaries, k)
		}
	}
	for k, m := range t.st.milestones {
		if m.CompanyId == id {
			delete(t.st.milestones, k)
		}
	}
	return nil
}

func (t *memTx) deleteApprovals(ref RecordRef) {
	for k, a := range t.st.approvals {
		if a.RecordKind == ref.Kind && a.RecordId == ref.ID {
			delete(t.st.approvals, k)
		}
	}
}

func (t *memTx) ListDirectors(ctx context.Context, companyId int) ([]Director, error) {
	var out []Director
	for _, d := range t.st.directors {
		if d.CompanyId == companyId {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AddedAt.Equal(out[j].AddedAt) {
			return out[i].AddedAt.Before(out[j].AddedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *memTx) GetDirector(ctx context.Context, id int) (*Director, error) {
	d, ok := t.st.directors[id]
	if !ok {
		return nil, notFound("GetDirector", "director %d", id)
	}
	return &d, nil
}

func (t *memTx) GetDirectorByUser(ctx context.Context, userId int) (*Director, error) {
	for _, d := range t.st.directors {
		if d.UserId == userId {
			d := d
			return &d, nil
		}
	}
	return nil, notFound("GetDirectorByUser", "user %d", userId)
}

func (t *memTx) CreateDirector(ctx context.Context, d *Director) error {
	if _, err := t.GetDirectorByUser(ctx, d.UserId); err == nil {
		return conflict("CreateDirector", "duplicate director")
	}
	d.ID = t.id()
	t.st.directors[d.ID] = *d
	return nil
}

func (t *memTx) DeleteDirector(ctx context.Context, id int) error {
	delete(t.st.directors, id)
	return nil
}

func (t *memTx) CreateProject(ctx context.Context, p *Project) error {
	p.ID = t.id()
	t.st.projects[p.ID] = *p
	return nil
}

func (t *memTx) GetProject(ctx context.Context, id int) (*Project, error) {
	p, ok := t.st.projects[id]
	if !ok {
		return nil, notFound("GetProject", "project %d", id)
	}
	return &p, nil
}

func inCompanies(ids []int, id int) bool {
	if ids == nil {
		return true
	}
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func (t *memTx) ListProjects(ctx context.Context, f RecordFilter) ([]Project, error) {
	var out []Project
	for _, p := range t.st.projects {
		if inCompanies(f.CompanyIds, p.CompanyId) && (f.Status == "" || p.Status == f.Status) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) CreateTransaction(ctx context.Context, r *Transaction) error {
	if err := t.fail("CreateTransaction"); err != nil {
		return err
	}
	r.ID = t.id()
	t.st.transactions[r.ID] = *r
	return nil
}

func (t *memTx) GetTransaction(ctx context.Context, id int) (*Transaction, error) {
	r, ok := t.st.transactions[id]
	if !ok {
		return nil, notFound("GetTransaction", "transaction %d", id)
	}
	return &r, nil
}

func (t *memTx) ListTransactions(ctx context.Context, f RecordFilter) ([]Transaction, error) {
	var out []Transaction
	for _, r := range t.st.transactions {
		if !inCompanies(f.CompanyIds, r.CompanyId) {
			continue
		}
		if (f.Status != "" && r.Status != f.Status) || (f.Type != "" && r.Type != f.Type) {
			continue
		}
		if f.ProjectId != 0 && (r.ProjectId == nil || *r.ProjectId != f.ProjectId) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) CreateSalary(ctx context.Context, r *Salary) error {
	r.ID = t.id()
	t.st.salaries[r.ID] = *r
	return nil
}

func (t *memTx) GetSalary(ctx context.Context, id int) (*Salary, error) {
	r, ok := t.st.salaries[id]
	if !ok {
		return nil, notFound("GetSalary", "salary %d", id)
	}
	return &r, nil
}

func (t *memTx) ListSalaries(ctx context.Context, f RecordFilter) ([]Salary, error) {
	var out []Salary
	for _, r := range t.st.salaries {
		if inCompanies(f.CompanyIds, r.CompanyId) && (f.Status == "" || r.Status == f.Status) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) header(ref RecordRef) (*RecordHeader, error) {
	switch ref.Kind {
	case KindProject:
		if r, ok := t.st.projects[ref.ID]; ok {
			return &RecordHeader{Ref: ref, CompanyId: r.CompanyId, Status: r.Status, CreatedBy: r.CreatedBy}, nil
		}
	case KindTransaction:
		if r, ok := t.st.transactions[ref.ID]; ok {
			return &RecordHeader{Ref: ref, CompanyId: r.CompanyId, Status: r.Status, CreatedBy: r.CreatedBy}, nil
		}
	case KindSalary:
		if r, ok := t.st.salaries[ref.ID]; ok {
			return &RecordHeader{Ref: ref, CompanyId: r.CompanyId, Status: r.Status, CreatedBy: r.CreatedBy}, nil
		}
	}
	return nil, notFound("LockRecord", "%s %d", ref.Kind, ref.ID)
}

func (t *memTx) LockRecord(ctx context.Context, ref RecordRef) (*RecordHeader, error) {
	return t.header(ref)
}

func (t *memTx) SetRecordStatus(ctx context.Context, ref RecordRef, status Status) error {
	if err := t.fail("SetRecordStatus"); err != nil {
		return err
	}
	switch ref.Kind {
	case KindProject:
		r := t.st.projects[ref.ID]
		r.Status = status
		t.st.projects[ref.ID] = r
	case KindTransaction:
		r := t.st.transactions[ref.ID]
		r.Status = status
		t.st.transactions[ref.ID] = r
	case KindSalary:
		r := t.st.salaries[ref.ID]
		r.Status = status
		t.st.salaries[ref.ID] = r
	}
	return nil
}

func (t *memTx) GetApproval(ctx context.Context, ref RecordRef, approverId int) (*Approval, error) {
	for _, a := range t.st.approvals {
		if a.RecordKind == ref.Kind && a.RecordId == ref.ID && a.ApproverId == approverId {
			a := a
			return &a, nil
		}
	}
	return nil, notFound("GetApproval", "approval")
}

func (t *memTx) SaveApproval(ctx context.Context, a *Approval) error {
	if a.ID == 0 {
		for _, existing := range t.st.approvals {
			if existing.RecordKind == a.RecordKind && existing.RecordId == a.RecordId && existing.ApproverId == a.ApproverId {
				return conflict("SaveApproval", "duplicate approval")
			}
		}
		a.ID = t.id()
	}
	t.st.approvals[a.ID] = *a
	return nil
}

func (t *memTx) ListApprovals(ctx context.Context, ref RecordRef) ([]Approval, error) {
	var out []Approval
	for _, a := range t.st.approvals {
		if a.RecordKind == ref.Kind && a.RecordId == ref.ID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) ListMilestones(ctx context.Context, companyId int) ([]Milestone, error) {
	var out []Milestone
	for _, m := range t.st.milestones {
		if m.CompanyId == companyId {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) CreateMilestone(ctx context.Context, m *Milestone) error {
	m.ID = t.id()
	t.st.milestones[m.ID] = *m
	return nil
}

func (t *memTx) MarkMilestoneAchieved(ctx context.Context, id int, at time.Time) (bool, error) {
	m, ok := t.st.milestones[id]
	if !ok || m.Achieved {
		return false, nil
	}
	m.Achieved = true
	m.AchievedAt = &at
	t.st.milestones[id] = m
	return true, nil
}

func (t *memTx) CountPendingRecords(ctx context.Context, companyIds []int) (int64, error) {
	var n int64
	for _, r := range t.st.projects {
		if r.Status == StatusPending && inCompanies(companyIds, r.CompanyId) {
			n++
		}
	}
	for _, r := range t.st.transactions {
		if r.Status == StatusPending && inCompanies(companyIds, r.CompanyId) {
			n++
		}
	}
	for _, r := range t.st.salaries {
		if r.Status == StatusPending && inCompanies(companyIds, r.CompanyId) {
			n++
		}
	}
	return n, nil
}

func (t *memTx) CountDirectors(ctx context.Context) (int64, error) {
	return int64(len(t.st.directors)), nil
}

func (t *memTx) CountAwaitingApproval(ctx context.Context, companyId, approverId int) (int64, error) {
	approved := map[RecordRef]bool{}
	for _, a := range t.st.approvals {
		if a.ApproverId == approverId && a.Approved {
			approved[RecordRef{Kind: a.RecordKind, ID: a.RecordId}] = true
		}
	}
	var n int64
	count := func(ref RecordRef, c int, st Status) {
		if c == companyId && st == StatusPending && !approved[ref] {
			n++
		}
	}
	for _, r := range t.st.projects {
		count(RecordRef{Kind: KindProject, ID: r.ID}, r.CompanyId, r.Status)
	}
	for _, r := range t.st.transactions {
		count(RecordRef{Kind: KindTransaction, ID: r.ID}, r.CompanyId, r.Status)
	}
	for _, r := range t.st.salaries {
		count(RecordRef{Kind: KindSalary, ID: r.ID}, r.CompanyId, r.Status)
	}
	return n, nil
}

func (t *memTx) AppendEvent(ctx context.Context, e Event) error {
	t.st.events = append(t.st.events, e)
	return nil
}
