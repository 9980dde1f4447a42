package ledger

import (
	"context"
	"time"
)

// Store is the persistence contract. Every method returns a NotFound *Error for absent rows.
type Store interface {
	// Atomic runs fn inside one transaction. fn receives a Store bound to it;
	// any error rolls back everything fn wrote.
	Atomic(ctx context.Context, fn func(tx Store) error) error

	GetUser(ctx context.Context, id int) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	CreateUser(ctx context.Context, u *User) error
	UpdateUser(ctx context.Context, u *User) error
	DeleteUser(ctx context.Context, id int) error

	GetCompany(ctx context.Context, id int) (*Company, error)
	// LockCompany holds an exclusive lock on the company row until the surrounding Atomic
	// call ends. Milestone evaluations of one company serialize here.
	LockCompany(ctx context.Context, id int) error
	ListCompanies(ctx context.Context, f CompanyFilter) ([]Company, error)
	CreateCompany(ctx context.Context, c *Company) error
	// DeleteCompany removes the company and everything it owns.
	DeleteCompany(ctx context.Context, id int) error

	// ListDirectors returns the company's directors ordered by (added_at, id).
	ListDirectors(ctx context.Context, companyId int) ([]Director, error)
	GetDirector(ctx context.Context, id int) (*Director, error)
	GetDirectorByUser(ctx context.Context, userId int) (*Director, error)
	CreateDirector(ctx context.Context, d *Director) error
	DeleteDirector(ctx context.Context, id int) error

	CreateProject(ctx context.Context, p *Project) error
	GetProject(ctx context.Context, id int) (*Project, error)
	ListProjects(ctx context.Context, f RecordFilter) ([]Project, error)

	CreateTransaction(ctx context.Context, t *Transaction) error
	GetTransaction(ctx context.Context, id int) (*Transaction, error)
	ListTransactions(ctx context.Context, f RecordFilter) ([]Transaction, error)

	CreateSalary(ctx context.Context, s *Salary) error
	GetSalary(ctx context.Context, id int) (*Salary, error)
	ListSalaries(ctx context.Context, f RecordFilter) ([]Salary, error)

	// LockRecord reads the record header holding an exclusive row lock until the
	// surrounding Atomic call ends. Concurrent approvals of one record serialize here.
	LockRecord(ctx context.Context, ref RecordRef) (*RecordHeader, error)
	SetRecordStatus(ctx context.Context, ref RecordRef, status Status) error

	GetApproval(ctx context.Context, ref RecordRef, approverId int) (*Approval, error)
	// SaveApproval inserts when a.ID is zero and updates otherwise.
	SaveApproval(ctx context.Context, a *Approval) error
	ListApprovals(ctx context.Context, ref RecordRef) ([]Approval, error)

	ListMilestones(ctx context.Context, companyId int) ([]Milestone, error)
	CreateMilestone(ctx context.Context, m *Milestone) error
	// MarkMilestoneAchieved flips an unachieved milestone and reports whether this call did it.
	MarkMilestoneAchieved(ctx context.Context, id int, at time.Time) (bool, error)

	// CountPendingRecords counts PENDING records across kinds; nil companyIds means all companies.
	CountPendingRecords(ctx context.Context, companyIds []int) (int64, error)
	CountDirectors(ctx context.Context) (int64, error)
	// CountAwaitingApproval counts PENDING records of the company that approverId has no
	// approved vote on.
	CountAwaitingApproval(ctx context.Context, companyId, approverId int) (int64, error)

	AppendEvent(ctx context.Context, e Event) error
}

type CompanyFilter struct {
	// MemberId limits the result to companies owned or directed by this user; zero means all.
	MemberId int
}

type RecordFilter struct {
	CompanyIds []int // nil means every company
	Status     Status
	Type       TransactionType // transactions only
	ProjectId  int             // transactions only
}

// Event is a committed ledger state change, appended to the outbox in the same transaction.
type Event struct {
	CompanyId  int
	Ref        RecordRef
	Action     string
	ActorId    int
	OccurredAt time.Time
	Payload    any
}

const (
	ActionCreated           = "CREATED"
	ActionApprovalRecorded  = "APPROVAL_RECORDED"
	ActionApproved          = "APPROVED"
	ActionRejected          = "REJECTED"
	ActionCompleted         = "COMPLETED"
	ActionMilestoneCreated  = "MILESTONE_CREATED"
	ActionMilestoneAchieved = "MILESTONE_ACHIEVED"
	ActionDirectorAdded     = "DIRECTOR_ADDED"
	ActionDirectorRemoved   = "DIRECTOR_REMOVED"
)

// KindMilestone tags milestone events; milestones are not approvable.
const KindMilestone RecordKind = "MILESTONE"
