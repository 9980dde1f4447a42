package ledger

import (
	"context"
	"errors"
	"time"
)

type ApprovalResult struct {
	Approval *Approval
	Created  bool
}

// RecordApproval upserts the single vote of approverId on ref. The caller has already
// checked membership and holds the record lock. approved=true stamps ApprovedAt with now;
// approved=false clears it. Each vote replaces the previous note, empty included.
func RecordApproval(ctx context.Context, s Store, ref RecordRef, approverId int, approved bool, notes string, now time.Time) (*ApprovalResult, error) {
	a, err := s.GetApproval(ctx, ref, approverId)
	created := false
	switch {
	case errors.Is(err, ErrNotFound):
		a = &Approval{RecordKind: ref.Kind, RecordId: ref.ID, ApproverId: approverId}
		created = true
	case err != nil:
		return nil, err
	}

	a.Approved = approved
	if approved {
		t := now
		a.ApprovedAt = &t
	} else {
		a.ApprovedAt = nil
	}
	a.Notes = notes
	if err := s.SaveApproval(ctx, a); err != nil {
		return nil, err
	}
	return &ApprovalResult{Approval: a, Created: created}, nil
}

// seedApprovals pre-creates one unapproved row per director so pending votes are enumerable.
func seedApprovals(ctx context.Context, s Store, ref RecordRef, directors []Director) error {
	for _, d := range directors {
		a := &Approval{RecordKind: ref.Kind, RecordId: ref.ID, ApproverId: d.UserId}
		if err := s.SaveApproval(ctx, a); err != nil {
			return err
		}
	}
	return nil
}
