package ledger

// Quorum decides whether a record needs approvals and whether a set of votes completes it.
// Build it from the directors current at the moment of evaluation; it is never cached.
type Quorum struct {
	directors map[int]bool
}

func NewQuorum(directors []Director) Quorum {
	q := Quorum{directors: make(map[int]bool, len(directors))}
	for _, d := range directors {
		q.directors[d.UserId] = true
	}
	return q
}

// Required is 0 for companies with at most one director, otherwise every director must approve.
func (q Quorum) Required() int {
	if len(q.directors) <= 1 {
		return 0
	}
	return len(q.directors)
}

// Approvals counts approved votes cast by current directors. The owner's vote never counts.
func (q Quorum) Approvals(approvals []Approval) int {
	n := 0
	counted := make(map[int]bool, len(approvals))
	for _, a := range approvals {
		if !a.Approved || counted[a.ApproverId] || !q.directors[a.ApproverId] {
			continue
		}
		counted[a.ApproverId] = true
		n++
	}
	return n
}

func (q Quorum) Satisfied(approvals []Approval) bool {
	return q.Approvals(approvals) >= q.Required()
}

// Pending is the number of approvals still missing.
func (q Quorum) Pending(approvals []Approval) int {
	missing := q.Required() - q.Approvals(approvals)
	if missing < 0 {
		return 0
	}
	return missing
}
