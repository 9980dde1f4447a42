package ledger

import (
	"context"
	"errors"
	"strings"
)

const minPasswordLength = 6

type NewUser struct {
	Username        string
	Password        string
	PasswordConfirm string
	Name            string
	Email           *string
	Phone           string
	Role            Role
	// CompanyId provisions the user as a director of that company in the same transaction.
	CompanyId int
	Account   *Account
}

func (in NewUser) validate() error {
	fields := map[string]string{}
	if strings.TrimSpace(in.Username) == "" {
		fields["username"] = "required"
	}
	if len(in.Password) < minPasswordLength {
		fields["password"] = "must be at least 6 characters"
	}
	if in.PasswordConfirm != "" && in.PasswordConfirm != in.Password {
		fields["password_confirm"] = "passwords do not match"
	}
	if strings.TrimSpace(in.Phone) == "" {
		fields["phone"] = "required"
	}
	if in.Role != "" && !in.Role.Valid() {
		fields["role"] = "must be ADMIN, COMPANY or DIRECTOR"
	}
	if len(fields) > 0 {
		return Invalid("ProvisionUser", fields)
	}
	return nil
}

// ProvisionUser creates a login. Admins may create any role; company owners may only add
// directors to a company they own.
func (s *Service) ProvisionUser(ctx context.Context, p Principal, in NewUser) (*UserView, error) {
	if !p.IsAdmin() && p.Role != RoleCompany {
		return nil, notAuthorized("ProvisionUser", "role %s cannot provision users", p.Role)
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	role := in.Role
	if in.CompanyId > 0 {
		role = RoleDirector
	}
	if role == "" {
		role = RoleCompany
	}
	if !p.IsAdmin() && (in.CompanyId == 0 || role != RoleDirector) {
		return nil, notAuthorized("ProvisionUser", "company owners can only provision directors of their company")
	}
	if s.hasher == nil {
		return nil, errors.New("ProvisionUser: no password hasher configured")
	}
	hashed, err := s.hasher(in.Password)
	if err != nil {
		return nil, err
	}

	var view UserView
	err = s.store.Atomic(ctx, func(tx Store) error {
		if in.CompanyId > 0 {
			m, err := loadMembership(ctx, tx, in.CompanyId)
			if err != nil {
				return err
			}
			if !m.canManage(p) {
				return notAuthorized("ProvisionUser", "only the owner can add directors to company %d", in.CompanyId)
			}
		}
		if _, err := tx.GetUserByUsername(ctx, strings.TrimSpace(in.Username)); err == nil {
			return conflict("ProvisionUser", "username %q is taken", in.Username)
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		active := true
		u := User{
			Username: strings.TrimSpace(in.Username),
			Name:     strings.TrimSpace(in.Name),
			Email:    in.Email,
			Phone:    strings.TrimSpace(in.Phone),
			Password: hashed,
			Role:     role,
			IsActive: &active,
		}
		if err := tx.CreateUser(ctx, &u); err != nil {
			return err
		}
		view = NewUserView(u)
		if in.CompanyId > 0 {
			if _, err := s.addDirector(ctx, tx, p, in.CompanyId, NewDirector{UserId: u.ID, Account: in.Account}); err != nil {
				return err
			}
			cid := in.CompanyId
			view.CompanyId = &cid
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// ListUsers is admin only. Each user carries the company they direct, or else the first one they own.
func (s *Service) ListUsers(ctx context.Context, p Principal) ([]UserView, error) {
	if !p.IsAdmin() {
		return nil, notAuthorized("ListUsers", "admin only")
	}
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	companies, err := s.store.ListCompanies(ctx, CompanyFilter{})
	if err != nil {
		return nil, err
	}
	byId := make(map[int]Company, len(companies))
	owned := make(map[int]Company, len(companies))
	for _, c := range companies {
		byId[c.ID] = c
		if _, ok := owned[c.OwnerId]; !ok {
			owned[c.OwnerId] = c
		}
	}
	out := make([]UserView, 0, len(users))
	for _, u := range users {
		view := NewUserView(u)
		company, ok := owned[u.ID]
		if d, err := s.store.GetDirectorByUser(ctx, u.ID); err == nil {
			company, ok = byId[d.CompanyId]
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		if ok {
			cid := company.ID
			view.CompanyId = &cid
			view.CompanyName = company.Name
		}
		out = append(out, view)
	}
	return out, nil
}

type UserPatch struct {
	Name     *string
	Email    *string
	Phone    *string
	IsActive *bool
}

func (s *Service) UpdateUser(ctx context.Context, p Principal, id int, patch UserPatch) (*UserView, error) {
	if !p.IsAdmin() {
		return nil, notAuthorized("UpdateUser", "admin only")
	}
	var view UserView
	err := s.store.Atomic(ctx, func(tx Store) error {
		u, err := tx.GetUser(ctx, id)
		if err != nil {
			return err
		}
		if patch.Name != nil {
			u.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Email != nil {
			email := strings.TrimSpace(*patch.Email)
			if email == "" {
				u.Email = nil
			} else {
				u.Email = &email
			}
		}
		if patch.Phone != nil {
			if strings.TrimSpace(*patch.Phone) == "" {
				return Invalid("UpdateUser", map[string]string{"phone": "required"})
			}
			u.Phone = strings.TrimSpace(*patch.Phone)
		}
		if patch.IsActive != nil {
			active := *patch.IsActive
			u.IsActive = &active
		}
		if err := tx.UpdateUser(ctx, u); err != nil {
			return err
		}
		view = NewUserView(*u)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// DeleteUser removes the user, their director binding and every company they own.
func (s *Service) DeleteUser(ctx context.Context, p Principal, id int) error {
	if !p.IsAdmin() {
		return notAuthorized("DeleteUser", "admin only")
	}
	if id == p.ID {
		return Invalid("DeleteUser", map[string]string{"id": "cannot delete yourself"})
	}
	return s.store.Atomic(ctx, func(tx Store) error {
		if _, err := tx.GetUser(ctx, id); err != nil {
			return err
		}
		if d, err := tx.GetDirectorByUser(ctx, id); err == nil {
			if err := tx.DeleteDirector(ctx, d.ID); err != nil {
				return err
			}
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		owned, err := tx.ListCompanies(ctx, CompanyFilter{})
		if err != nil {
			return err
		}
		for _, c := range owned {
			if c.OwnerId != id {
				continue
			}
			if err := tx.DeleteCompany(ctx, c.ID); err != nil {
				return err
			}
		}
		return tx.DeleteUser(ctx, id)
	})
}

// Me resolves the caller's own profile with their company, if any.
func (s *Service) Me(ctx context.Context, p Principal) (*UserView, error) {
	u, err := s.store.GetUser(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	view := NewUserView(*u)
	if d, err := s.store.GetDirectorByUser(ctx, u.ID); err == nil {
		cid := d.CompanyId
		view.CompanyId = &cid
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return &view, nil
}

func (s *Service) Dashboard(ctx context.Context, p Principal) (*Dashboard, error) {
	if !p.IsAdmin() {
		return nil, notAuthorized("Dashboard", "admin only")
	}
	companies, err := s.store.ListCompanies(ctx, CompanyFilter{})
	if err != nil {
		return nil, err
	}
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	directors, err := s.store.CountDirectors(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := s.store.CountPendingRecords(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Dashboard{Companies: len(companies), Directors: directors, Users: len(users), PendingRecords: pending}, nil
}
