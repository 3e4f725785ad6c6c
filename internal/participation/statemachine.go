package participation

import (
	"time"

	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/domain"
)

type Transition string

const (
	TransitionApprove Transition = "approve"
	TransitionReject  Transition = "reject"
	TransitionCancel  Transition = "cancel"
	TransitionLeave   Transition = "leave"
	TransitionRemove  Transition = "remove"
)

type edge struct {
	from domain.VolunteerShiftStatus
	to   domain.VolunteerShiftStatus
	// 当前状态不满足 from 时返回的错误
	err *domain.Error
}

// Pending -> {Approved, Rejected, Cancelled}，Approved -> {Removed, Leaved}，其余均为终态
var edges = map[Transition]edge{
	TransitionApprove: {domain.VolunteerShiftPending, domain.VolunteerShiftApproved, domain.ErrVolunteerStatusNotPending},
	TransitionReject:  {domain.VolunteerShiftPending, domain.VolunteerShiftRejected, domain.ErrVolunteerStatusNotPending},
	TransitionCancel:  {domain.VolunteerShiftPending, domain.VolunteerShiftCancelled, domain.ErrVolunteerStatusNotPending},
	TransitionLeave:   {domain.VolunteerShiftApproved, domain.VolunteerShiftLeaved, domain.ErrVolunteerNotApproved},
	TransitionRemove:  {domain.VolunteerShiftApproved, domain.VolunteerShiftRemoved, domain.ErrVolunteerNotApproved},
}

// Next 返回执行 t 之后的状态
func Next(current domain.VolunteerShiftStatus, t Transition) (domain.VolunteerShiftStatus, error) {
	e, ok := edges[t]
	if !ok {
		return current, domain.ErrUnknownOutcome
	}
	if current != e.from {
		return current, e.err
	}
	return e.to, nil
}

// IsTerminal 表示该状态不存在任何出边
func IsTerminal(status domain.VolunteerShiftStatus) bool {
	for _, e := range edges {
		if e.from == status {
			return false
		}
	}
	return true
}

func apply(vs *domain.VolunteerShift, shift *domain.Shift, t Transition, now time.Time) error {
	next, err := Next(vs.Status, t)
	if err != nil {
		return err
	}

	vs.Status = next
	vs.Active = domain.IsActive(next, shift, now)
	vs.UpdatedAt = now
	return nil
}
