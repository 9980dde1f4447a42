package ledger

import (
	"context"
	"sort"

	"github.com/mmdatafocus/partner_ledger/appctx"
)

// Members returns the approval set: the owner first, then directors in (added_at, id) order.
// A nil company yields an empty set and an unset owner is skipped, so callers never fail here.
func Members(company *Company, directors []Director) []int {
	if company == nil {
		return nil
	}
	ordered := make([]Director, len(directors))
	copy(ordered, directors)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].AddedAt.Equal(ordered[j].AddedAt) {
			return ordered[i].AddedAt.Before(ordered[j].AddedAt)
		}
		return ordered[i].ID < ordered[j].ID
	})

	members := make([]int, 0, len(ordered)+1)
	seen := make(map[int]bool, len(ordered)+1)
	if company.OwnerId != 0 {
		members = append(members, company.OwnerId)
		seen[company.OwnerId] = true
	}
	for _, d := range ordered {
		if d.CompanyId != company.ID || seen[d.UserId] {
			continue
		}
		members = append(members, d.UserId)
		seen[d.UserId] = true
	}
	return members
}

// IsMember reports whether userId is in the approval set.
func IsMember(company *Company, directors []Director, userId int) bool {
	for _, id := range Members(company, directors) {
		if id == userId {
			return true
		}
	}
	return false
}

// membership bundles a company with its current directors for one unit of work.
type membership struct {
	company   *Company
	directors []Director
}

// loadMembership reads across tenant scope; the caller's membership is decided from its result.
func loadMembership(ctx context.Context, s Store, companyId int) (*membership, error) {
	ctx = appctx.WithMembershipLookup(ctx)
	company, err := s.GetCompany(ctx, companyId)
	if err != nil {
		return nil, err
	}
	directors, err := s.ListDirectors(ctx, companyId)
	if err != nil {
		return nil, err
	}
	return &membership{company: company, directors: directors}, nil
}

func (m *membership) members() []int { return Members(m.company, m.directors) }

func (m *membership) isMember(userId int) bool { return IsMember(m.company, m.directors, userId) }

func (m *membership) quorum() Quorum { return NewQuorum(m.directors) }

// canAct allows members and platform admins.
func (m *membership) canAct(p Principal) bool {
	return p.IsAdmin() || m.isMember(p.ID)
}

// canManage allows the owner and platform admins.
func (m *membership) canManage(p Principal) bool {
	return p.IsAdmin() || (m.company != nil && m.company.OwnerId != 0 && m.company.OwnerId == p.ID)
}
