package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/partner_ledger/appctx"
)

type NewCompany struct {
	Name              string
	Partner1Name      string
	Partner2Name      string
	IncorporationDate *time.Time
}

// CreateCompany makes the caller the owner. Directors cannot found companies.
func (s *Service) CreateCompany(ctx context.Context, p Principal, in NewCompany) (*CompanyView, error) {
	if p.Role != RoleCompany && p.Role != RoleAdmin {
		return nil, notAuthorized("CreateCompany", "role %s cannot create companies", p.Role)
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, Invalid("CreateCompany", map[string]string{"name": "required"})
	}
	c := Company{
		Name:         strings.TrimSpace(in.Name),
		OwnerId:      p.ID,
		Partner1Name: strings.TrimSpace(in.Partner1Name),
		Partner2Name: strings.TrimSpace(in.Partner2Name),
	}
	if in.IncorporationDate != nil {
		d := dateOnly(*in.IncorporationDate)
		c.IncorporationDate = &d
	}
	err := s.store.Atomic(ctx, func(tx Store) error {
		if err := tx.CreateCompany(ctx, &c); err != nil {
			return err
		}
		return s.emit(ctx, tx, Event{CompanyId: c.ID, Action: ActionCreated, ActorId: p.ID, Payload: c})
	})
	if err != nil {
		return nil, err
	}
	view := NewCompanyView(c, 0)
	return &view, nil
}

func (s *Service) GetCompany(ctx context.Context, p Principal, id int) (*CompanyView, error) {
	m, err := requireCompanyAccess(ctx, s.store, p, id, "GetCompany")
	if err != nil {
		return nil, err
	}
	view := NewCompanyView(*m.company, len(m.directors))
	return &view, nil
}

// ListCompanies returns every company for admins, otherwise the ones the caller owns or directs.
func (s *Service) ListCompanies(ctx context.Context, p Principal) ([]CompanyView, error) {
	f := CompanyFilter{}
	if !p.IsAdmin() {
		f.MemberId = p.ID
	}
	companies, err := s.store.ListCompanies(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]CompanyView, 0, len(companies))
	for _, c := range companies {
		directors, err := s.store.ListDirectors(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, NewCompanyView(c, len(directors)))
	}
	return out, nil
}

func (s *Service) DeleteCompany(ctx context.Context, p Principal, id int) error {
	return s.store.Atomic(ctx, func(tx Store) error {
		m, err := loadMembership(ctx, tx, id)
		if err != nil {
			return err
		}
		if !m.canManage(p) {
			return notAuthorized("DeleteCompany", "only the owner can delete company %d", id)
		}
		return tx.DeleteCompany(ctx, id)
	})
}

type NewDirector struct {
	UserId  int
	Account *Account
}

// AddDirector binds an existing user to the company. The director gets a stable partner
// account: the requested one, or the first free one. With both taken the director is unbound.
func (s *Service) AddDirector(ctx context.Context, p Principal, companyId int, in NewDirector) (*DirectorView, error) {
	var view DirectorView
	err := s.store.Atomic(ctx, func(tx Store) error {
		d, err := s.addDirector(ctx, tx, p, companyId, in)
		if err != nil {
			return err
		}
		u, err := tx.GetUser(ctx, d.UserId)
		if err != nil {
			return err
		}
		view = directorView(*d, u.Username)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

func (s *Service) addDirector(ctx context.Context, tx Store, p Principal, companyId int, in NewDirector) (*Director, error) {
	m, err := loadMembership(ctx, tx, companyId)
	if err != nil {
		return nil, err
	}
	if !m.canManage(p) {
		return nil, notAuthorized("AddDirector", "only the owner can add directors to company %d", companyId)
	}
	u, err := tx.GetUser(ctx, in.UserId)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, Invalid("AddDirector", map[string]string{"user": "does not exist"})
		}
		return nil, err
	}
	if u.ID == m.company.OwnerId {
		return nil, Invalid("AddDirector", map[string]string{"user": "the owner cannot be a director"})
	}
	if _, err := tx.GetDirectorByUser(ctx, u.ID); err == nil {
		return nil, conflict("AddDirector", "user %d is already a director", u.ID)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	account := NextDirectorAccount(m.directors)
	if in.Account != nil {
		if *in.Account != AccountPartner1 && *in.Account != AccountPartner2 {
			return nil, Invalid("AddDirector", map[string]string{"account": "must be PARTNER1 or PARTNER2"})
		}
		for _, d := range m.directors {
			if d.Account != nil && *d.Account == *in.Account {
				return nil, conflict("AddDirector", "account %s is already bound in company %d", *in.Account, companyId)
			}
		}
		acc := *in.Account
		account = &acc
	}
	d := &Director{CompanyId: companyId, UserId: u.ID, Account: account, AddedAt: s.now()}
	if err := tx.CreateDirector(ctx, d); err != nil {
		return nil, err
	}
	if err := s.emit(ctx, tx, Event{CompanyId: companyId, Action: ActionDirectorAdded, ActorId: p.ID, Payload: d}); err != nil {
		return nil, err
	}
	return d, nil
}

func directorView(d Director, username string) DirectorView {
	return DirectorView{ID: d.ID, CompanyId: d.CompanyId, UserId: d.UserId, Username: username, Account: d.Account, AddedAt: d.AddedAt}
}

func (s *Service) ListDirectors(ctx context.Context, p Principal, companyId int) ([]DirectorView, error) {
	m, err := requireCompanyAccess(ctx, s.store, p, companyId, "ListDirectors")
	if err != nil {
		return nil, err
	}
	out := make([]DirectorView, 0, len(m.directors))
	for _, d := range m.directors {
		name := ""
		if u, err := s.store.GetUser(ctx, d.UserId); err == nil {
			name = u.Username
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		out = append(out, directorView(d, name))
	}
	return out, nil
}

// RemoveDirector unbinds a director. Approval rows already seeded for them stay, but their
// votes stop counting because quorum is always computed from current directors.
func (s *Service) RemoveDirector(ctx context.Context, p Principal, directorId int) error {
	return s.store.Atomic(ctx, func(tx Store) error {
		d, err := tx.GetDirector(appctx.WithMembershipLookup(ctx), directorId)
		if err != nil {
			return err
		}
		m, err := loadMembership(ctx, tx, d.CompanyId)
		if err != nil {
			return err
		}
		if !m.canManage(p) {
			return notAuthorized("RemoveDirector", "only the owner can remove directors from company %d", d.CompanyId)
		}
		if err := tx.DeleteDirector(ctx, d.ID); err != nil {
			return err
		}
		return s.emit(ctx, tx, Event{CompanyId: d.CompanyId, Action: ActionDirectorRemoved, ActorId: p.ID, Payload: d})
	})
}
