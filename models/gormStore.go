package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/mmdatafocus/partner_ledger/ledger"
	"github.com/mmdatafocus/partner_ledger/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const mysqlDuplicateEntry = 1062

// GormStore is the MySQL implementation of ledger.Store.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (s *GormStore) Atomic(ctx context.Context, fn func(tx ledger.Store) error) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

// mapError turns driver errors into ledger kinds. Unknown errors keep their
// cause and classify as Internal.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ledger.NotFound(op, "record not found")
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ledger.Conflict(op, "duplicate entry")
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
		return ledger.Conflict(op, "duplicate entry")
	}
	var le *ledger.Error
	if errors.As(err, &le) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

// scopeCompanies applies a RecordFilter company list. An empty non-nil list matches nothing.
func scopeCompanies(q *gorm.DB, ids []int) *gorm.DB {
	if ids == nil {
		return q
	}
	if len(ids) == 0 {
		return q.Where("1 = 0")
	}
	return q.Where("company_id IN ?", ids)
}

func recordModel(kind ledger.RecordKind) (any, error) {
	switch kind {
	case ledger.KindProject:
		return &ledger.Project{}, nil
	case ledger.KindTransaction:
		return &ledger.Transaction{}, nil
	case ledger.KindSalary:
		return &ledger.Salary{}, nil
	}
	return nil, ledger.NotFound("recordModel", "unknown record kind %q", kind)
}

// Users

func (s *GormStore) GetUser(ctx context.Context, id int) (*ledger.User, error) {
	var u ledger.User
	if err := s.conn(ctx).First(&u, id).Error; err != nil {
		return nil, mapError("GetUser", err)
	}
	return &u, nil
}

func (s *GormStore) GetUserByUsername(ctx context.Context, username string) (*ledger.User, error) {
	var u ledger.User
	if err := s.conn(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, mapError("GetUserByUsername", err)
	}
	return &u, nil
}

func (s *GormStore) ListUsers(ctx context.Context) ([]ledger.User, error) {
	var users []ledger.User
	if err := s.conn(ctx).Order("id").Find(&users).Error; err != nil {
		return nil, mapError("ListUsers", err)
	}
	return users, nil
}

func (s *GormStore) CreateUser(ctx context.Context, u *ledger.User) error {
	if u.IsActive == nil {
		u.IsActive = utils.NewTrue()
	}
	return mapError("CreateUser", s.conn(ctx).Create(u).Error)
}

func (s *GormStore) UpdateUser(ctx context.Context, u *ledger.User) error {
	res := s.conn(ctx).Model(&ledger.User{}).Where("id = ?", u.ID).Updates(map[string]interface{}{
		"name":      u.Name,
		"email":     u.Email,
		"phone":     u.Phone,
		"role":      u.Role,
		"password":  u.Password,
		"is_active": u.IsActive,
	})
	if res.Error != nil {
		return mapError("UpdateUser", res.Error)
	}
	return nil
}

func (s *GormStore) DeleteUser(ctx context.Context, id int) error {
	return mapError("DeleteUser", s.conn(ctx).Delete(&ledger.User{}, id).Error)
}

// Companies

func (s *GormStore) GetCompany(ctx context.Context, id int) (*ledger.Company, error) {
	var c ledger.Company
	if err := s.conn(ctx).First(&c, id).Error; err != nil {
		return nil, mapError("GetCompany", err)
	}
	return &c, nil
}

// LockCompany takes SELECT ... FOR UPDATE on the company row.
func (s *GormStore) LockCompany(ctx context.Context, id int) error {
	var row struct{ ID int }
	err := s.conn(ctx).Model(&ledger.Company{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Where("id = ?", id).
		Take(&row).Error
	return mapError("LockCompany", err)
}

func (s *GormStore) ListCompanies(ctx context.Context, f ledger.CompanyFilter) ([]ledger.Company, error) {
	q := s.conn(ctx).Model(&ledger.Company{})
	if f.MemberId != 0 {
		q = q.Where("owner_id = ? OR id IN (?)", f.MemberId,
			s.conn(ctx).Model(&ledger.Director{}).Select("company_id").Where("user_id = ?", f.MemberId))
	}
	var companies []ledger.Company
	if err := q.Order("id").Find(&companies).Error; err != nil {
		return nil, mapError("ListCompanies", err)
	}
	return companies, nil
}

func (s *GormStore) CreateCompany(ctx context.Context, c *ledger.Company) error {
	return mapError("CreateCompany", s.conn(ctx).Create(c).Error)
}

// DeleteCompany removes approvals first, then the records, directors and milestones.
// Callers run it inside Atomic.
func (s *GormStore) DeleteCompany(ctx context.Context, id int) error {
	db := s.conn(ctx)
	kinds := []struct {
		kind  ledger.RecordKind
		model any
	}{
		{ledger.KindProject, &ledger.Project{}},
		{ledger.KindTransaction, &ledger.Transaction{}},
		{ledger.KindSalary, &ledger.Salary{}},
	}
	for _, k := range kinds {
		sub := s.conn(ctx).Model(k.model).Select("id").Where("company_id = ?", id)
		if err := db.Where("record_kind = ? AND record_id IN (?)", k.kind, sub).Delete(&ledger.Approval{}).Error; err != nil {
			return mapError("DeleteCompany", err)
		}
	}
	// transactions reference projects, so they go first
	for _, model := range []any{&ledger.Transaction{}, &ledger.Salary{}, &ledger.Project{}, &ledger.Director{}, &ledger.Milestone{}} {
		if err := db.Where("company_id = ?", id).Delete(model).Error; err != nil {
			return mapError("DeleteCompany", err)
		}
	}
	return mapError("DeleteCompany", db.Delete(&ledger.Company{}, id).Error)
}

// Directors

func (s *GormStore) ListDirectors(ctx context.Context, companyId int) ([]ledger.Director, error) {
	var directors []ledger.Director
	err := s.conn(ctx).Where("company_id = ?", companyId).Order("added_at, id").Find(&directors).Error
	if err != nil {
		return nil, mapError("ListDirectors", err)
	}
	return directors, nil
}

func (s *GormStore) GetDirector(ctx context.Context, id int) (*ledger.Director, error) {
	var d ledger.Director
	if err := s.conn(ctx).First(&d, id).Error; err != nil {
		return nil, mapError("GetDirector", err)
	}
	return &d, nil
}

func (s *GormStore) GetDirectorByUser(ctx context.Context, userId int) (*ledger.Director, error) {
	var d ledger.Director
	if err := s.conn(ctx).Where("user_id = ?", userId).First(&d).Error; err != nil {
		return nil, mapError("GetDirectorByUser", err)
	}
	return &d, nil
}

func (s *GormStore) CreateDirector(ctx context.Context, d *ledger.Director) error {
	return mapError("CreateDirector", s.conn(ctx).Create(d).Error)
}

func (s *GormStore) DeleteDirector(ctx context.Context, id int) error {
	return mapError("DeleteDirector", s.conn(ctx).Delete(&ledger.Director{}, id).Error)
}

// Projects, transactions and salaries

func (s *GormStore) CreateProject(ctx context.Context, p *ledger.Project) error {
	return mapError("CreateProject", s.conn(ctx).Create(p).Error)
}

func (s *GormStore) GetProject(ctx context.Context, id int) (*ledger.Project, error) {
	var p ledger.Project
	if err := s.conn(ctx).First(&p, id).Error; err != nil {
		return nil, mapError("GetProject", err)
	}
	return &p, nil
}

func (s *GormStore) ListProjects(ctx context.Context, f ledger.RecordFilter) ([]ledger.Project, error) {
	q := scopeCompanies(s.conn(ctx), f.CompanyIds)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var projects []ledger.Project
	if err := q.Order("id").Find(&projects).Error; err != nil {
		return nil, mapError("ListProjects", err)
	}
	return projects, nil
}

func (s *GormStore) CreateTransaction(ctx context.Context, t *ledger.Transaction) error {
	return mapError("CreateTransaction", s.conn(ctx).Create(t).Error)
}

func (s *GormStore) GetTransaction(ctx context.Context, id int) (*ledger.Transaction, error) {
	var t ledger.Transaction
	if err := s.conn(ctx).First(&t, id).Error; err != nil {
		return nil, mapError("GetTransaction", err)
	}
	return &t, nil
}

func (s *GormStore) ListTransactions(ctx context.Context, f ledger.RecordFilter) ([]ledger.Transaction, error) {
	q := scopeCompanies(s.conn(ctx), f.CompanyIds)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Type != "" {
		q = q.Where("transaction_type = ?", f.Type)
	}
	if f.ProjectId != 0 {
		q = q.Where("project_id = ?", f.ProjectId)
	}
	var txs []ledger.Transaction
	if err := q.Order("id").Find(&txs).Error; err != nil {
		return nil, mapError("ListTransactions", err)
	}
	return txs, nil
}

func (s *GormStore) CreateSalary(ctx context.Context, r *ledger.Salary) error {
	return mapError("CreateSalary", s.conn(ctx).Create(r).Error)
}

func (s *GormStore) GetSalary(ctx context.Context, id int) (*ledger.Salary, error) {
	var r ledger.Salary
	if err := s.conn(ctx).First(&r, id).Error; err != nil {
		return nil, mapError("GetSalary", err)
	}
	return &r, nil
}

func (s *GormStore) ListSalaries(ctx context.Context, f ledger.RecordFilter) ([]ledger.Salary, error) {
	q := scopeCompanies(s.conn(ctx), f.CompanyIds)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var salaries []ledger.Salary
	if err := q.Order("id").Find(&salaries).Error; err != nil {
		return nil, mapError("ListSalaries", err)
	}
	return salaries, nil
}

type recordHeaderRow struct {
	CompanyId int
	Status    ledger.Status
	CreatedBy int
}

// LockRecord takes SELECT ... FOR UPDATE on the record row.
func (s *GormStore) LockRecord(ctx context.Context, ref ledger.RecordRef) (*ledger.RecordHeader, error) {
	model, err := recordModel(ref.Kind)
	if err != nil {
		return nil, err
	}
	var row recordHeaderRow
	err = s.conn(ctx).Model(model).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("company_id", "status", "created_by").
		Where("id = ?", ref.ID).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.NotFound("LockRecord", "%s %d", ref.Kind, ref.ID)
		}
		return nil, mapError("LockRecord", err)
	}
	return &ledger.RecordHeader{Ref: ref, CompanyId: row.CompanyId, Status: row.Status, CreatedBy: row.CreatedBy}, nil
}

func (s *GormStore) SetRecordStatus(ctx context.Context, ref ledger.RecordRef, status ledger.Status) error {
	model, err := recordModel(ref.Kind)
	if err != nil {
		return err
	}
	return mapError("SetRecordStatus", s.conn(ctx).Model(model).Where("id = ?", ref.ID).Update("status", status).Error)
}

// Approvals

func (s *GormStore) GetApproval(ctx context.Context, ref ledger.RecordRef, approverId int) (*ledger.Approval, error) {
	var a ledger.Approval
	err := s.conn(ctx).
		Where("record_kind = ? AND record_id = ? AND approver_id = ?", ref.Kind, ref.ID, approverId).
		First(&a).Error
	if err != nil {
		return nil, mapError("GetApproval", err)
	}
	return &a, nil
}

func (s *GormStore) SaveApproval(ctx context.Context, a *ledger.Approval) error {
	if a.ID == 0 {
		return mapError("SaveApproval", s.conn(ctx).Create(a).Error)
	}
	return mapError("SaveApproval", s.conn(ctx).Save(a).Error)
}

func (s *GormStore) ListApprovals(ctx context.Context, ref ledger.RecordRef) ([]ledger.Approval, error) {
	var approvals []ledger.Approval
	err := s.conn(ctx).
		Where("record_kind = ? AND record_id = ?", ref.Kind, ref.ID).
		Order("id").
		Find(&approvals).Error
	if err != nil {
		return nil, mapError("ListApprovals", err)
	}
	return approvals, nil
}

// Milestones

func (s *GormStore) ListMilestones(ctx context.Context, companyId int) ([]ledger.Milestone, error) {
	var milestones []ledger.Milestone
	if err := s.conn(ctx).Where("company_id = ?", companyId).Order("id").Find(&milestones).Error; err != nil {
		return nil, mapError("ListMilestones", err)
	}
	return milestones, nil
}

func (s *GormStore) CreateMilestone(ctx context.Context, m *ledger.Milestone) error {
	return mapError("CreateMilestone", s.conn(ctx).Create(m).Error)
}

// MarkMilestoneAchieved is a guarded update, so a milestone flips at most once.
func (s *GormStore) MarkMilestoneAchieved(ctx context.Context, id int, at time.Time) (bool, error) {
	res := s.conn(ctx).Model(&ledger.Milestone{}).
		Where("id = ? AND achieved = ?", id, false).
		Updates(map[string]interface{}{"achieved": true, "achieved_at": at})
	if res.Error != nil {
		return false, mapError("MarkMilestoneAchieved", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Counts

func (s *GormStore) CountPendingRecords(ctx context.Context, companyIds []int) (int64, error) {
	var total int64
	for _, model := range []any{&ledger.Project{}, &ledger.Transaction{}, &ledger.Salary{}} {
		var n int64
		q := scopeCompanies(s.conn(ctx).Model(model), companyIds).Where("status = ?", ledger.StatusPending)
		if err := q.Count(&n).Error; err != nil {
			return 0, mapError("CountPendingRecords", err)
		}
		total += n
	}
	return total, nil
}

func (s *GormStore) CountDirectors(ctx context.Context) (int64, error) {
	var n int64
	if err := s.conn(ctx).Model(&ledger.Director{}).Count(&n).Error; err != nil {
		return 0, mapError("CountDirectors", err)
	}
	return n, nil
}

func (s *GormStore) CountAwaitingApproval(ctx context.Context, companyId, approverId int) (int64, error) {
	var total int64
	kinds := []struct {
		kind  ledger.RecordKind
		model any
	}{
		{ledger.KindProject, &ledger.Project{}},
		{ledger.KindTransaction, &ledger.Transaction{}},
		{ledger.KindSalary, &ledger.Salary{}},
	}
	for _, k := range kinds {
		var n int64
		approved := s.conn(ctx).Model(&ledger.Approval{}).Select("record_id").
			Where("record_kind = ? AND approver_id = ? AND approved = ?", k.kind, approverId, true)
		err := s.conn(ctx).Model(k.model).
			Where("company_id = ? AND status = ? AND id NOT IN (?)", companyId, ledger.StatusPending, approved).
			Count(&n).Error
		if err != nil {
			return 0, mapError("CountAwaitingApproval", err)
		}
		total += n
	}
	return total, nil
}

// Outbox

func (s *GormStore) AppendEvent(ctx context.Context, e ledger.Event) error {
	var payload []byte
	if e.Payload != nil {
		b, err := json.Marshal(e.Payload)
		if err != nil {
			return mapError("AppendEvent", err)
		}
		payload = b
	}
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	rec := LedgerEventRecord{
		CompanyId:     e.CompanyId,
		OccurredAt:    e.OccurredAt,
		RecordKind:    string(e.Ref.Kind),
		RecordId:      e.Ref.ID,
		Action:        e.Action,
		ActorId:       e.ActorId,
		Payload:       payload,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationId,
	}
	return mapError("AppendEvent", s.conn(ctx).Create(&rec).Error)
}

var _ ledger.Store = (*GormStore)(nil)
