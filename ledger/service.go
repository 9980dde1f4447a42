package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Locker serializes actions on one key across processes. It is an optimization only:
// LockRecord inside the transaction is what guarantees a consistent quorum count.
type Locker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

// Observer receives ledger outcomes, e.g. for metrics.
type Observer interface {
	RecordCreated(kind RecordKind, status Status)
	VoteRecorded(kind RecordKind, approved bool)
	StatusChanged(kind RecordKind, from, to Status)
	MilestoneAchieved(companyId int)
}

type nopObserver struct{}

func (nopObserver) RecordCreated(RecordKind, Status)         {}
func (nopObserver) VoteRecorded(RecordKind, bool)            {}
func (nopObserver) StatusChanged(RecordKind, Status, Status) {}
func (nopObserver) MilestoneAchieved(int)                    {}

// PasswordHasher turns a plaintext password into its stored form.
type PasswordHasher func(plain string) (string, error)

type Service struct {
	store    Store
	now      func() time.Time
	locker   Locker
	observer Observer
	logger   logrus.FieldLogger
	hasher   PasswordHasher
	events   bool
}

type Option func(*Service)

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithLocker(l Locker) Option { return func(s *Service) { s.locker = l } }

func WithObserver(o Observer) Option { return func(s *Service) { s.observer = o } }

func WithLogger(l logrus.FieldLogger) Option { return func(s *Service) { s.logger = l } }

func WithPasswordHasher(h PasswordHasher) Option { return func(s *Service) { s.hasher = h } }

// WithEvents turns on outbox events for every state change.
func WithEvents(enabled bool) Option { return func(s *Service) { s.events = enabled } }

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		now:      func() time.Time { return time.Now().UTC() },
		observer: nopObserver{},
		logger:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) emit(ctx context.Context, tx Store, e Event) error {
	if !s.events {
		return nil
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = s.now()
	}
	return tx.AppendEvent(ctx, e)
}

// withRecordLock takes the best-effort cross-process lock for ref. Failure to obtain it is logged, not fatal.
func (s *Service) withRecordLock(ctx context.Context, ref RecordRef, fn func() error) error {
	if s.locker == nil {
		return fn()
	}
	key := fmt.Sprintf("lock:record:%s:%d", ref.Kind, ref.ID)
	release, err := s.locker.Lock(ctx, key)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"field":       "withRecordLock",
			"record_kind": ref.Kind,
			"record_id":   ref.ID,
		}).Warn("could not obtain record lock; proceeding with row lock only: " + err.Error())
		return fn()
	}
	if release != nil {
		defer release()
	}
	return fn()
}

// requireCompanyAccess loads membership and checks the caller may act on the company.
func requireCompanyAccess(ctx context.Context, st Store, p Principal, companyId int, op string) (*membership, error) {
	if companyId <= 0 {
		return nil, invalid(op, "company is required")
	}
	m, err := loadMembership(ctx, st, companyId)
	if err != nil {
		return nil, err
	}
	if !m.canAct(p) {
		return nil, notAuthorized(op, "user %d is not a member of company %d", p.ID, companyId)
	}
	return m, nil
}

// scopeCompanies resolves which companies the caller may list. requested=0 means all visible.
func (s *Service) scopeCompanies(ctx context.Context, p Principal, requested int, op string) ([]int, error) {
	if requested > 0 {
		if _, err := requireCompanyAccess(ctx, s.store, p, requested, op); err != nil {
			return nil, err
		}
		return []int{requested}, nil
	}
	if p.IsAdmin() {
		return nil, nil
	}
	companies, err := s.store.ListCompanies(ctx, CompanyFilter{MemberId: p.ID})
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(companies))
	for _, c := range companies {
		ids = append(ids, c.ID)
	}
	return ids, nil
}
