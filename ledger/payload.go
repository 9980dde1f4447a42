package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func formatDate(t time.Time) string { return t.Format(dateLayout) }

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatDate(*t)
	return &s
}

type ApprovalView struct {
	ApproverId   int        `json:"approver"`
	ApproverName string     `json:"approver_name,omitempty"`
	Approved     bool       `json:"approved"`
	ApprovedAt   *time.Time `json:"approved_at"`
	Notes        string     `json:"notes"`
}

// RecordState is the approval part of every record payload.
type RecordState struct {
	Status       Status         `json:"status"`
	Approvals    []ApprovalView `json:"approvals"`
	AllApproved  bool           `json:"all_approved"`
	PendingCount int            `json:"pending_count"`
}

// NewRecordState builds the approval payload from the record's votes evaluated against q.
func NewRecordState(status Status, approvals []Approval, q Quorum) RecordState {
	views := make([]ApprovalView, 0, len(approvals))
	for _, a := range approvals {
		views = append(views, ApprovalView{
			ApproverId: a.ApproverId,
			Approved:   a.Approved,
			ApprovedAt: a.ApprovedAt,
			Notes:      a.Notes,
		})
	}
	pending := 0
	if status == StatusPending {
		pending = q.Pending(approvals)
	}
	return RecordState{
		Status:       status,
		Approvals:    views,
		AllApproved:  q.Satisfied(approvals),
		PendingCount: pending,
	}
}

type ProjectView struct {
	ID             int       `json:"id"`
	CompanyId      int       `json:"company"`
	Name           string    `json:"name"`
	StartDate      string    `json:"start_date"`
	EndDate        *string   `json:"end_date"`
	ProjectValue   string    `json:"project_value"`
	ReceivedAmount string    `json:"received_amount"`
	Profit         string    `json:"profit"`
	CreatedBy      int       `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
	RecordState
}

func NewProjectView(p Project, state RecordState, profit decimal.Decimal) ProjectView {
	return ProjectView{
		ID:             p.ID,
		CompanyId:      p.CompanyId,
		Name:           p.Name,
		StartDate:      formatDate(p.StartDate),
		EndDate:        formatDatePtr(p.EndDate),
		ProjectValue:   money(p.ProjectValue),
		ReceivedAmount: money(p.ReceivedAmount),
		Profit:         money(profit),
		CreatedBy:      p.CreatedBy,
		CreatedAt:      p.CreatedAt,
		RecordState:    state,
	}
}

type TransactionView struct {
	ID               int             `json:"id"`
	CompanyId        int             `json:"company"`
	Type             TransactionType `json:"transaction_type"`
	Amount           string          `json:"amount"`
	Description      string          `json:"description"`
	Date             string          `json:"date"`
	Account          Account         `json:"account"`
	ProjectId        *int            `json:"project"`
	IsProjectRelated bool            `json:"is_project_related"`
	CreatedBy        int             `json:"created_by"`
	CreatedAt        time.Time       `json:"created_at"`
	RecordState
}

func NewTransactionView(t Transaction, state RecordState) TransactionView {
	return TransactionView{
		ID:               t.ID,
		CompanyId:        t.CompanyId,
		Type:             t.Type,
		Amount:           money(t.Amount),
		Description:      t.Description,
		Date:             formatDate(t.Date),
		Account:          t.Account,
		ProjectId:        t.ProjectId,
		IsProjectRelated: t.IsProjectRelated,
		CreatedBy:        t.CreatedBy,
		CreatedAt:        t.CreatedAt,
		RecordState:      state,
	}
}

type SalaryView struct {
	ID          int       `json:"id"`
	CompanyId   int       `json:"company"`
	DirectorId  int       `json:"director"`
	Amount      string    `json:"amount"`
	Description string    `json:"description"`
	Date        string    `json:"date"`
	Account     Account   `json:"account"`
	CreatedBy   int       `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	RecordState
}

func NewSalaryView(s Salary, state RecordState) SalaryView {
	return SalaryView{
		ID:          s.ID,
		CompanyId:   s.CompanyId,
		DirectorId:  s.DirectorId,
		Amount:      money(s.Amount),
		Description: s.Description,
		Date:        formatDate(s.Date),
		Account:     s.Account,
		CreatedBy:   s.CreatedBy,
		CreatedAt:   s.CreatedAt,
		RecordState: state,
	}
}

type CompanyView struct {
	ID                int       `json:"id"`
	Name              string    `json:"name"`
	OwnerId           int       `json:"created_by"`
	Partner1Name      string    `json:"partner1_name"`
	Partner2Name      string    `json:"partner2_name"`
	IncorporationDate *string   `json:"incorporation_date"`
	DirectorsCount    int       `json:"directors_count"`
	CreatedAt         time.Time `json:"created_at"`
}

func NewCompanyView(c Company, directors int) CompanyView {
	return CompanyView{
		ID:                c.ID,
		Name:              c.Name,
		OwnerId:           c.OwnerId,
		Partner1Name:      c.Partner1Name,
		Partner2Name:      c.Partner2Name,
		IncorporationDate: formatDatePtr(c.IncorporationDate),
		DirectorsCount:    directors,
		CreatedAt:         c.CreatedAt,
	}
}

type DirectorView struct {
	ID        int       `json:"id"`
	CompanyId int       `json:"company"`
	UserId    int       `json:"user"`
	Username  string    `json:"username"`
	Account   *Account  `json:"account"`
	AddedAt   time.Time `json:"added_at"`
}

type AccountBalanceView struct {
	Account Account `json:"account"`
	Balance string  `json:"balance"`
}

type DirectorBalanceView struct {
	DirectorId   int      `json:"director_id"`
	DirectorName string   `json:"director_name"`
	Account      *Account `json:"account"`
	Balance      string   `json:"balance"`
}

type MilestoneView struct {
	ID         int     `json:"id"`
	CompanyId  int     `json:"company"`
	Target     string  `json:"target"`
	Label      string  `json:"label"`
	Achieved   bool    `json:"achieved"`
	AchievedAt *string `json:"achieved_at"`
	Progress   string  `json:"progress"`
	DaysTaken  *int    `json:"days_taken"`
}

func NewMilestoneView(m Milestone, income decimal.Decimal, incorporation *time.Time) MilestoneView {
	return MilestoneView{
		ID:         m.ID,
		CompanyId:  m.CompanyId,
		Target:     money(m.Target),
		Label:      m.Label,
		Achieved:   m.Achieved,
		AchievedAt: formatDatePtr(m.AchievedAt),
		Progress:   Progress(income, m.Target).String(),
		DaysTaken:  DaysTaken(m, incorporation),
	}
}

type SummaryView struct {
	CompanyId         int                   `json:"company"`
	IncomeTotal       string                `json:"income_total"`
	ExpenseTotal      string                `json:"expense_total"`
	SalaryTotal       string                `json:"salary_total"`
	TotalBalance      string                `json:"total_balance"`
	Partner1Balance   string                `json:"partner1_balance"`
	Partner2Balance   string                `json:"partner2_balance"`
	CompanyBalance    string                `json:"company_balance"`
	PerAccountBalance []AccountBalanceView  `json:"per_account_balance"`
	DirectorBalances  []DirectorBalanceView `json:"director_balances"`
	Milestones        []MilestoneView       `json:"milestones"`
	Today             string                `json:"today"`
}

type UserView struct {
	ID          int       `json:"id"`
	Username    string    `json:"username"`
	Name        string    `json:"name"`
	Email       *string   `json:"email"`
	Phone       string    `json:"phone"`
	Role        Role      `json:"role"`
	IsActive    bool      `json:"is_active"`
	CompanyId   *int      `json:"company_id"`
	CompanyName string    `json:"company_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func NewUserView(u User) UserView {
	return UserView{
		ID:        u.ID,
		Username:  u.Username,
		Name:      u.Name,
		Email:     u.Email,
		Phone:     u.Phone,
		Role:      u.Role,
		IsActive:  u.Active(),
		CreatedAt: u.CreatedAt,
	}
}

type Dashboard struct {
	Companies      int   `json:"total_companies"`
	Directors      int64 `json:"total_directors"`
	Users          int   `json:"total_users"`
	PendingRecords int64 `json:"pending_records"`
}
