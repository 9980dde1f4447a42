package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/partner_ledger/appctx"
	"github.com/shopspring/decimal"
)

type NewProject struct {
	CompanyId      int
	Name           string
	StartDate      time.Time
	EndDate        *time.Time
	ProjectValue   decimal.Decimal
	ReceivedAmount decimal.Decimal
}

func (in NewProject) validate() error {
	fields := map[string]string{}
	if strings.TrimSpace(in.Name) == "" {
		fields["name"] = "required"
	}
	if in.StartDate.IsZero() {
		fields["start_date"] = "required"
	}
	if in.EndDate != nil && in.EndDate.Before(in.StartDate) {
		fields["end_date"] = "must not be before start_date"
	}
	if in.ProjectValue.IsNegative() {
		fields["project_value"] = "must be >= 0"
	}
	if in.ReceivedAmount.IsNegative() {
		fields["received_amount"] = "must be >= 0"
	}
	if len(fields) > 0 {
		return Invalid("CreateProject", fields)
	}
	return nil
}

type NewTransaction struct {
	CompanyId   int
	Type        TransactionType
	Amount      decimal.Decimal
	Description string
	Date        time.Time
	Account     Account
	ProjectId   *int
}

func (in NewTransaction) validate() error {
	fields := map[string]string{}
	if !in.Type.Valid() {
		fields["transaction_type"] = "must be INCOME, EXPENSE or SALARY"
	}
	if !in.Amount.IsPositive() {
		fields["amount"] = "must be > 0"
	}
	if in.Date.IsZero() {
		fields["date"] = "required"
	}
	if !in.Account.Valid() {
		fields["account"] = "must be PARTNER1, PARTNER2 or COMPANY"
	}
	if len(fields) > 0 {
		return Invalid("CreateTransaction", fields)
	}
	return nil
}

type NewSalary struct {
	CompanyId   int
	DirectorId  int
	Amount      decimal.Decimal
	Description string
	Date        time.Time
	Account     Account
}

func (in NewSalary) validate() error {
	fields := map[string]string{}
	if in.DirectorId <= 0 {
		fields["director"] = "required"
	}
	if !in.Amount.IsPositive() {
		fields["amount"] = "must be > 0"
	}
	if in.Date.IsZero() {
		fields["date"] = "required"
	}
	if !in.Account.Valid() {
		fields["account"] = "must be PARTNER1, PARTNER2 or COMPANY"
	}
	if len(fields) > 0 {
		return Invalid("CreateSalary", fields)
	}
	return nil
}

// createRecord runs the creation transition: APPROVED with no rows when no quorum is
// required, otherwise PENDING with one unapproved row per current director.
func (s *Service) createRecord(ctx context.Context, tx Store, p Principal, m *membership, kind RecordKind, insert func(status Status) (int, error), payload func() any) (RecordRef, Status, error) {
	q := m.quorum()
	status := InitialStatus(q)
	id, err := insert(status)
	if err != nil {
		return RecordRef{}, "", err
	}
	ref := RecordRef{Kind: kind, ID: id}
	if status == StatusPending {
		if err := seedApprovals(ctx, tx, ref, m.directors); err != nil {
			return ref, status, err
		}
	}
	if err := s.emit(ctx, tx, Event{CompanyId: m.company.ID, Ref: ref, Action: ActionCreated, ActorId: p.ID, Payload: payload()}); err != nil {
		return ref, status, err
	}
	return ref, status, nil
}

func (s *Service) CreateProject(ctx context.Context, p Principal, in NewProject) (*ProjectView, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var view ProjectView
	err := s.store.Atomic(ctx, func(tx Store) error {
		m, err := requireCompanyAccess(ctx, tx, p, in.CompanyId, "CreateProject")
		if err != nil {
			return err
		}
		project := Project{
			CompanyId:      in.CompanyId,
			Name:           strings.TrimSpace(in.Name),
			StartDate:      dateOnly(in.StartDate),
			EndDate:        in.EndDate,
			ProjectValue:   in.ProjectValue,
			ReceivedAmount: in.ReceivedAmount,
			CreatedBy:      p.ID,
		}
		ref, status, err := s.createRecord(ctx, tx, p, m, KindProject, func(status Status) (int, error) {
			project.Status = status
			err := tx.CreateProject(ctx, &project)
			return project.ID, err
		}, func() any { return project })
		if err != nil {
			return err
		}
		s.observer.RecordCreated(KindProject, status)
		approvals, err := tx.ListApprovals(ctx, ref)
		if err != nil {
			return err
		}
		view = NewProjectView(project, NewRecordState(status, approvals, m.quorum()), decimal.Zero)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (s *Service) CreateTransaction(ctx context.Context, p Principal, in NewTransaction) (*TransactionView, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var view TransactionView
	err := s.store.Atomic(ctx, func(tx Store) error {
		m, err := requireCompanyAccess(ctx, tx, p, in.CompanyId, "CreateTransaction")
		if err != nil {
			return err
		}
		record := Transaction{
			CompanyId:   in.CompanyId,
			Type:        in.Type,
			Amount:      in.Amount,
			Description: strings.TrimSpace(in.Description),
			Date:        dateOnly(in.Date),
			Account:     in.Account,
			CreatedBy:   p.ID,
		}
		if in.ProjectId != nil && *in.ProjectId > 0 {
			project, err := tx.GetProject(appctx.WithMembershipLookup(ctx), *in.ProjectId)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					return Invalid("CreateTransaction", map[string]string{"project": "does not exist"})
				}
				return err
			}
			if project.CompanyId != in.CompanyId {
				return Invalid("CreateTransaction", map[string]string{"project": "belongs to another company"})
			}
			pid := project.ID
			record.ProjectId = &pid
			record.IsProjectRelated = true
		}
		ref, status, err := s.createRecord(ctx, tx, p, m, KindTransaction, func(status Status) (int, error) {
			record.Status = status
			err := tx.CreateTransaction(ctx, &record)
			return record.ID, err
		}, func() any { return record })
		if err != nil {
			return err
		}
		s.observer.RecordCreated(KindTransaction, status)
		if status == StatusApproved && record.Type == TransactionIncome {
			if _, err := s.evaluateMilestones(ctx, tx, m.company.ID, &record, p.ID); err != nil {
				return err
			}
		}
		approvals, err := tx.ListApprovals(ctx, ref)
		if err != nil {
			return err
		}
		view = NewTransactionView(record, NewRecordState(status, approvals, m.quorum()))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (s *Service) CreateSalary(ctx context.Context, p Principal, in NewSalary) (*SalaryView, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var view SalaryView
	err := s.store.Atomic(ctx, func(tx Store) error {
		m, err := requireCompanyAccess(ctx, tx, p, in.CompanyId, "CreateSalary")
		if err != nil {
			return err
		}
		director, err := tx.GetDirector(appctx.WithMembershipLookup(ctx), in.DirectorId)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return Invalid("CreateSalary", map[string]string{"director": "does not exist"})
			}
			return err
		}
		if director.CompanyId != in.CompanyId {
			return Invalid("CreateSalary", map[string]string{"director": "belongs to another company"})
		}
		record := Salary{
			CompanyId:   in.CompanyId,
			DirectorId:  director.ID,
			Amount:      in.Amount,
			Description: strings.TrimSpace(in.Description),
			Date:        dateOnly(in.Date),
			Account:     in.Account,
			CreatedBy:   p.ID,
		}
		ref, status, err := s.createRecord(ctx, tx, p, m, KindSalary, func(status Status) (int, error) {
			record.Status = status
			err := tx.CreateSalary(ctx, &record)
			return record.ID, err
		}, func() any { return record })
		if err != nil {
			return err
		}
		s.observer.RecordCreated(KindSalary, status)
		approvals, err := tx.ListApprovals(ctx, ref)
		if err != nil {
			return err
		}
		view = NewSalaryView(record, NewRecordState(status, approvals, m.quorum()))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// Approve records the caller's vote and moves a PENDING record to APPROVED once every
// current director has approved. An INCOME transaction reaching APPROVED evaluates milestones.
func (s *Service) Approve(ctx context.Context, p Principal, ref RecordRef, notes string) (*RecordState, error) {
	return s.act(ctx, p, ref, ActApprove, notes)
}

// Reject records the caller's dissent and vetoes the record regardless of votes so far.
func (s *Service) Reject(ctx context.Context, p Principal, ref RecordRef, notes string) (*RecordState, error) {
	return s.act(ctx, p, ref, ActReject, notes)
}

// CompleteProject closes an APPROVED project.
func (s *Service) CompleteProject(ctx context.Context, p Principal, projectId int) (*RecordState, error) {
	return s.act(ctx, p, RecordRef{Kind: KindProject, ID: projectId}, ActComplete, "")
}

func (s *Service) act(ctx context.Context, p Principal, ref RecordRef, act Action, notes string) (*RecordState, error) {
	op := string(act)
	if !ref.Kind.Valid() || ref.ID <= 0 {
		return nil, invalid(op, "invalid record reference")
	}
	var state RecordState
	err := s.withRecordLock(ctx, ref, func() error {
		return s.store.Atomic(ctx, func(tx Store) error {
			hdr, err := tx.LockRecord(appctx.WithMembershipLookup(ctx), ref)
			if err != nil {
				return err
			}
			m, err := loadMembership(ctx, tx, hdr.CompanyId)
			if err != nil {
				return err
			}
			if !m.isMember(p.ID) {
				return notAuthorized(op, "user %d is not a member of company %d", p.ID, hdr.CompanyId)
			}
			if act == ActComplete && ref.Kind != KindProject {
				return invalid(op, "only projects can be completed")
			}

			if act != ActComplete {
				if _, err := RecordApproval(ctx, tx, ref, p.ID, act == ActApprove, notes, s.now()); err != nil {
					return err
				}
				s.observer.VoteRecorded(ref.Kind, act == ActApprove)
				if err := s.emit(ctx, tx, Event{CompanyId: hdr.CompanyId, Ref: ref, Action: ActionApprovalRecorded, ActorId: p.ID,
					Payload: map[string]any{"approved": act == ActApprove, "notes": notes}}); err != nil {
					return err
				}
			}

			approvals, err := tx.ListApprovals(ctx, ref)
			if err != nil {
				return err
			}
			q := m.quorum()
			next, err := Transition(ref.Kind, hdr.Status, act, q.Satisfied(approvals))
			if err != nil {
				return err
			}
			if next != hdr.Status {
				if err := tx.SetRecordStatus(ctx, ref, next); err != nil {
					return err
				}
				s.observer.StatusChanged(ref.Kind, hdr.Status, next)
				if err := s.emit(ctx, tx, Event{CompanyId: hdr.CompanyId, Ref: ref, Action: actionFor(next), ActorId: p.ID,
					Payload: map[string]any{"from": hdr.Status, "to": next}}); err != nil {
					return err
				}
				if next == StatusApproved && ref.Kind == KindTransaction {
					record, err := tx.GetTransaction(ctx, ref.ID)
					if err != nil {
						return err
					}
					if record.Type == TransactionIncome {
						record.Status = StatusApproved
						if _, err := s.evaluateMilestones(ctx, tx, hdr.CompanyId, record, p.ID); err != nil {
							return err
						}
					}
				}
			}
			state = NewRecordState(next, approvals, q)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func actionFor(st Status) string {
	switch st {
	case StatusApproved:
		return ActionApproved
	case StatusRejected:
		return ActionRejected
	case StatusCompleted:
		return ActionCompleted
	}
	return string(st)
}
