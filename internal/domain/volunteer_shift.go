package domain

import "time"

type VolunteerShiftStatus string

const (
	VolunteerShiftPending   VolunteerShiftStatus = "pending"
	VolunteerShiftApproved  VolunteerShiftStatus = "approved"
	VolunteerShiftRejected  VolunteerShiftStatus = "rejected"
	VolunteerShiftCancelled VolunteerShiftStatus = "cancelled"
	VolunteerShiftRemoved   VolunteerShiftStatus = "removed"
	VolunteerShiftLeaved    VolunteerShiftStatus = "leaved"
)

func (s VolunteerShiftStatus) Valid() bool {
	switch s {
	case VolunteerShiftPending, VolunteerShiftApproved, VolunteerShiftRejected,
		VolunteerShiftCancelled, VolunteerShiftRemoved, VolunteerShiftLeaved:
		return true
	}
	return false
}

// VolunteerShift 是志愿者与某个班次之间的参与记录，不会被物理删除
type VolunteerShift struct {
	ID         int64                `json:"id"`
	AccountID  int64                `json:"accountID"`
	ShiftID    int64                `json:"shiftID"`
	Status     VolunteerShiftStatus `json:"status"`
	Active     bool                 `json:"active"`
	Attendant  bool                 `json:"attendant"`
	CheckedIn  bool                 `json:"checkedIn"`
	CheckedOut bool                 `json:"checkedOut"`
	Completion *float64             `json:"completion"` // 百分比 0~100，审核前为空
	ReviewNote *string              `json:"reviewNote"`
	CreatedAt  time.Time            `json:"createdAt"`
	UpdatedAt  time.Time            `json:"updatedAt"`
	Version    int32                `json:"-"`
}

// IsActive 只由状态和班次时间决定
func IsActive(status VolunteerShiftStatus, shift *Shift, now time.Time) bool {
	switch status {
	case VolunteerShiftApproved:
		return true
	case VolunteerShiftPending:
		return !shift.HasStarted(now)
	default:
		return false
	}
}

// CompletionFraction 把百分比转换为 0~1 的比例，未审核时视为 0
func (vs *VolunteerShift) CompletionFraction() float64 {
	if vs.Completion == nil {
		return 0
	}
	return *vs.Completion / 100
}

type VolunteerShiftFilter struct {
	ShiftID   *int64
	AccountID *int64
	Statuses  []VolunteerShiftStatus
}

// Page 使用游标分页，After 为上一页最后一条记录的 ID
type Page struct {
	After int64
	Limit int
}
