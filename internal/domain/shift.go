package domain

import "time"

type ActivityStatus string

const (
	ActivityStatusPending   ActivityStatus = "pending"
	ActivityStatusApproved  ActivityStatus = "approved"
	ActivityStatusRejected  ActivityStatus = "rejected"
	ActivityStatusCancelled ActivityStatus = "cancelled"
)

type Activity struct {
	ID             int64          `json:"id"`
	OrganizationID int64          `json:"organizationID"`
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	Status         ActivityStatus `json:"status"`
	CreatedAt      time.Time      `json:"createdAt"`
	Version        int32          `json:"-"`
}

type ShiftStatus string

const (
	ShiftStatusUpcoming  ShiftStatus = "upcoming"
	ShiftStatusOngoing   ShiftStatus = "ongoing"
	ShiftStatusCompleted ShiftStatus = "completed"
)

type ShiftSkill struct {
	ShiftID int64   `json:"shiftID"`
	SkillID int64   `json:"skillID"`
	Hours   float64 `json:"hours"` // 100% 完成该班次时该技能获得的权重（0~24）
}

type Shift struct {
	ID                   int64        `json:"id"`
	ActivityID           int64        `json:"activityID"`
	Name                 string       `json:"name"`
	StartTime            time.Time    `json:"startTime"`
	EndTime              time.Time    `json:"endTime"`
	NumberOfParticipants int32        `json:"numberOfParticipants"`
	FrozenStatus         *ShiftStatus `json:"frozenStatus,omitempty"` // 管理员手动冻结的状态，为空时根据时间推导
	Skills               []ShiftSkill `json:"skills"`
	CreatedAt            time.Time    `json:"createdAt"`
	Version              int32        `json:"-"`
}

func (s *Shift) HasStarted(now time.Time) bool {
	return !now.Before(s.StartTime)
}

func (s *Shift) HasEnded(now time.Time) bool {
	return !now.Before(s.EndTime)
}

// Status 优先使用冻结的状态，否则根据当前时间推导
func (s *Shift) Status(now time.Time) ShiftStatus {
	if s.FrozenStatus != nil {
		return *s.FrozenStatus
	}

	switch {
	case s.HasEnded(now):
		return ShiftStatusCompleted
	case s.HasStarted(now):
		return ShiftStatusOngoing
	default:
		return ShiftStatusUpcoming
	}
}

// DurationHours 即 endTime - startTime，单位为小时
func (s *Shift) DurationHours() float64 {
	return s.EndTime.Sub(s.StartTime).Hours()
}
