package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusCompleted Status = "COMPLETED" // projects only
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCompleted:
		return true
	}
	return false
}

type TransactionType string

const (
	TransactionIncome  TransactionType = "INCOME"
	TransactionExpense TransactionType = "EXPENSE"
	TransactionSalary  TransactionType = "SALARY"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionIncome, TransactionExpense, TransactionSalary:
		return true
	}
	return false
}

type Account string

const (
	AccountPartner1 Account = "PARTNER1"
	AccountPartner2 Account = "PARTNER2"
	AccountCompany  Account = "COMPANY"
)

// Accounts is the fixed account set, in display order.
var Accounts = []Account{AccountPartner1, AccountPartner2, AccountCompany}

// DirectorAccounts can be bound to a director.
var DirectorAccounts = []Account{AccountPartner1, AccountPartner2}

func (a Account) Valid() bool {
	switch a {
	case AccountPartner1, AccountPartner2, AccountCompany:
		return true
	}
	return false
}

// RecordKind names the approvable record families sharing the approval table.
type RecordKind string

const (
	KindProject     RecordKind = "PROJECT"
	KindTransaction RecordKind = "TRANSACTION"
	KindSalary      RecordKind = "SALARY"
)

func (k RecordKind) Valid() bool {
	switch k {
	case KindProject, KindTransaction, KindSalary:
		return true
	}
	return false
}

type User struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Username  string    `gorm:"size:150;not null;unique" json:"username"`
	Name      string    `gorm:"size:150" json:"name"`
	Email     *string   `gorm:"size:254" json:"email"`
	Phone     string    `gorm:"size:20" json:"phone"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	Role      Role      `gorm:"size:10;not null;default:DIRECTOR" json:"role"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u User) Active() bool { return u.IsActive == nil || *u.IsActive }

type Company struct {
	ID                int        `gorm:"primary_key" json:"id"`
	Name              string     `gorm:"size:200;not null" json:"name"`
	OwnerId           int        `gorm:"index;not null" json:"owner_id"`
	Partner1Name      string     `gorm:"size:100" json:"partner1_name"`
	Partner2Name      string     `gorm:"size:100" json:"partner2_name"`
	IncorporationDate *time.Time `gorm:"type:date" json:"incorporation_date"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

type Director struct {
	ID        int       `gorm:"primary_key" json:"id"`
	CompanyId int       `gorm:"index;not null" json:"company_id"`
	UserId    int       `gorm:"not null;unique" json:"user_id"`
	Account   *Account  `gorm:"size:10" json:"account"`
	AddedAt   time.Time `gorm:"autoCreateTime" json:"added_at"`
}

type Project struct {
	ID             int             `gorm:"primary_key" json:"id"`
	CompanyId      int             `gorm:"index;not null" json:"company_id"`
	Name           string          `gorm:"size:200;not null" json:"name"`
	StartDate      time.Time       `gorm:"type:date;not null" json:"start_date"`
	EndDate        *time.Time      `gorm:"type:date" json:"end_date"`
	ProjectValue   decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"project_value"`
	ReceivedAmount decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0" json:"received_amount"`
	Status         Status          `gorm:"size:20;index;not null;default:PENDING" json:"status"`
	CreatedBy      int             `gorm:"index;not null" json:"created_by"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type Transaction struct {
	ID               int             `gorm:"primary_key" json:"id"`
	CompanyId        int             `gorm:"index:idx_tx_company_status,priority:1;not null" json:"company_id"`
	Type             TransactionType `gorm:"column:transaction_type;size:10;not null" json:"transaction_type"`
	Amount           decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	Description      string          `gorm:"size:255" json:"description"`
	Date             time.Time       `gorm:"type:date;not null" json:"date"`
	Account          Account         `gorm:"size:10;not null" json:"account"`
	ProjectId        *int            `gorm:"index" json:"project_id"`
	IsProjectRelated bool            `gorm:"not null;default:false" json:"is_project_related"`
	Status           Status          `gorm:"size:20;index:idx_tx_company_status,priority:2;not null;default:PENDING" json:"status"`
	CreatedBy        int             `gorm:"index;not null" json:"created_by"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type Salary struct {
	ID          int             `gorm:"primary_key" json:"id"`
	CompanyId   int             `gorm:"index;not null" json:"company_id"`
	DirectorId  int             `gorm:"index;not null" json:"director_id"`
	Amount      decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	Description string          `gorm:"size:255" json:"description"`
	Date        time.Time       `gorm:"type:date;not null" json:"date"`
	Account     Account         `gorm:"size:10;not null" json:"account"`
	Status      Status          `gorm:"size:20;index;not null;default:PENDING" json:"status"`
	CreatedBy   int             `gorm:"index;not null" json:"created_by"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// Approval is one approver's vote on one record. (record_kind, record_id, approver_id) is unique.
type Approval struct {
	ID         int        `gorm:"primary_key" json:"id"`
	RecordKind RecordKind `gorm:"size:20;not null;uniqueIndex:idx_approval_record_approver,priority:1" json:"record_kind"`
	RecordId   int        `gorm:"not null;uniqueIndex:idx_approval_record_approver,priority:2" json:"record_id"`
	ApproverId int        `gorm:"not null;uniqueIndex:idx_approval_record_approver,priority:3;index" json:"approver_id"`
	Approved   bool       `gorm:"not null;default:false" json:"approved"`
	ApprovedAt *time.Time `json:"approved_at"`
	Notes      string     `gorm:"type:text" json:"notes"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type Milestone struct {
	ID         int             `gorm:"primary_key" json:"id"`
	CompanyId  int             `gorm:"index;not null" json:"company_id"`
	Target     decimal.Decimal `gorm:"column:target_amount;type:decimal(14,2);not null" json:"target_amount"`
	Label      string          `gorm:"size:200" json:"label"`
	Achieved   bool            `gorm:"index;not null;default:false" json:"achieved"`
	AchievedAt *time.Time      `gorm:"type:date" json:"achieved_at"`
	CreatedBy  int             `json:"created_by"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// RecordRef identifies one approvable record.
type RecordRef struct {
	Kind RecordKind `json:"kind"`
	ID   int        `json:"id"`
}

// RecordHeader is the part of an approvable record the state machine needs.
type RecordHeader struct {
	Ref       RecordRef
	CompanyId int
	Status    Status
	CreatedBy int
}
