package ledger

// Action is an input to the record state machine.
type Action string

const (
	ActApprove  Action = "approve"
	ActReject   Action = "reject"
	ActComplete Action = "complete"
)

// InitialStatus is APPROVED when no approvals are required, PENDING otherwise.
func InitialStatus(q Quorum) Status {
	if q.Required() == 0 {
		return StatusApproved
	}
	return StatusPending
}

// Transition is the single authority over record status changes.
//
//	PENDING  --approve(quorum met)--> APPROVED
//	any      --reject-->              REJECTED
//	APPROVED --complete(project)-->   COMPLETED
//
// Approve on a non-PENDING record records the vote elsewhere but never reopens or moves it.
func Transition(kind RecordKind, current Status, act Action, quorumMet bool) (Status, error) {
	switch act {
	case ActApprove:
		if current == StatusPending && quorumMet {
			return StatusApproved, nil
		}
		return current, nil
	case ActReject:
		return StatusRejected, nil
	case ActComplete:
		if kind != KindProject {
			return current, invalid("transition", "only projects can be completed")
		}
		if current != StatusApproved {
			return current, conflict("transition", "project must be APPROVED to complete, is %s", current)
		}
		return StatusCompleted, nil
	}
	return current, invalid("transition", "unknown action %q", act)
}
