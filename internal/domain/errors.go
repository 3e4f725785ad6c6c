package domain

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindNotFound          ErrorKind = "NotFound"
	KindForbidden         ErrorKind = "Forbidden"
	KindInvalidTransition ErrorKind = "InvalidTransition"
	KindCapacityExceeded  ErrorKind = "CapacityExceeded"
	KindConflict          ErrorKind = "Conflict"
)

// Error 是核心业务返回的类型化错误，Code 沿用业务上的错误名
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s(%s): %s", e.Kind, e.Code, e.Message)
}

// Is 让 errors.Is 可以按种类（Code 为空的哨兵）或按具体错误码匹配
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrForbidden         = &Error{Kind: KindForbidden}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrCapacityExceeded  = &Error{Kind: KindCapacityExceeded}
	ErrConflict          = &Error{Kind: KindConflict}
)

var (
	ErrVolunteerShiftNotFound = &Error{Kind: KindNotFound, Code: "VolunteerShiftNotFound", Message: "报名记录不存在"}
	ErrShiftNotFound          = &Error{Kind: KindNotFound, Code: "ShiftNotFound", Message: "班次不存在"}
	ErrActivityNotFound       = &Error{Kind: KindNotFound, Code: "ActivityNotFound", Message: "活动不存在"}
	ErrProfileNotFound        = &Error{Kind: KindNotFound, Code: "ProfileNotFound", Message: "志愿者档案不存在"}

	ErrNotManager      = &Error{Kind: KindForbidden, Code: "NotManager", Message: "无权管理该活动"}
	ErrNotOwnVolunteer = &Error{Kind: KindForbidden, Code: "NotOwnVolunteerShift", Message: "只能操作自己的报名"}

	ErrAlreadyJoined             = &Error{Kind: KindInvalidTransition, Code: "AlreadyJoined", Message: "已经报名该班次"}
	ErrVolunteerStatusNotPending = &Error{Kind: KindInvalidTransition, Code: "VolunteerStatusNotPending", Message: "报名不处于待审核状态"}
	ErrVolunteerNotApproved      = &Error{Kind: KindInvalidTransition, Code: "VolunteerStatusNotApproved", Message: "报名不处于已通过状态"}
	ErrActivityNotOpen           = &Error{Kind: KindInvalidTransition, Code: "ActivityNotOpen", Message: "活动未开放报名"}
	ErrShiftAlreadyStarted       = &Error{Kind: KindInvalidTransition, Code: "ShiftAlreadyStarted", Message: "班次已经开始"}
	ErrShiftNotStarted           = &Error{Kind: KindInvalidTransition, Code: "ShiftNotStarted", Message: "班次尚未开始"}
	ErrShiftNotEnded             = &Error{Kind: KindInvalidTransition, Code: "ShiftNotEnded", Message: "班次尚未结束"}
	ErrNotCheckedIn              = &Error{Kind: KindInvalidTransition, Code: "NotCheckedIn", Message: "尚未签到"}
	ErrUnknownOutcome            = &Error{Kind: KindInvalidTransition, Code: "UnknownOutcome", Message: "未知的操作"}

	ErrShiftFull   = &Error{Kind: KindCapacityExceeded, Code: "ShiftFull", Message: "班次人数已满，无法报名"}
	ErrShiftIsFull = &Error{Kind: KindCapacityExceeded, Code: "ShiftIsFull", Message: "班次人数已满，无法通过"}

	ErrVolunteerShiftModified = &Error{Kind: KindConflict, Code: "VolunteerShiftModified", Message: "报名记录已被其他操作修改，请刷新后重试"}
)

// KindOf 返回错误链中第一个业务错误的种类，非业务错误返回空字符串
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
