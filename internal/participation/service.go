// Package participation 管理志愿者报名记录的生命周期：报名、审核、退出、签到签退、
// 完成度评定，以及后台把过期的待审核报名置为拒绝。
package participation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/accrual"
	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/domain"
)

// Tx 是单个事务内可用的读写能力，只覆盖一次状态变更涉及的行
type Tx interface {
	accrual.RebuildStore

	GetActivity(ctx context.Context, activityID int64) (*domain.Activity, error)
	// LockShift 读取班次并加行锁，用于串行化同一班次的容量检查
	LockShift(ctx context.Context, shiftID int64) (*domain.Shift, error)
	GetVolunteerShift(ctx context.Context, id int64) (*domain.VolunteerShift, error)
	HasActiveVolunteerShift(ctx context.Context, accountID, shiftID int64) (bool, error)
	// CountApproved 统计班次中已通过的报名数，excludeID 对应的记录不计入
	CountApproved(ctx context.Context, shiftID, excludeID int64) (int, error)
	CreateVolunteerShift(ctx context.Context, vs *domain.VolunteerShift) error
	// UpdateVolunteerShift 使用乐观锁，版本不一致时返回 domain.ErrConflict
	UpdateVolunteerShift(ctx context.Context, vs *domain.VolunteerShift) error
}

type Store interface {
	// InTx 在 fn 返回错误时回滚，否则提交
	InTx(ctx context.Context, fn func(tx Tx) error) error

	GetShift(ctx context.Context, shiftID int64) (*domain.Shift, error)
	GetVolunteerShift(ctx context.Context, id int64) (*domain.VolunteerShift, error)
	ListVolunteerShifts(ctx context.Context, filter domain.VolunteerShiftFilter, page domain.Page) ([]*domain.VolunteerShift, error)
	// ListExpiredPendingIDs 返回班次已开始但仍处于待审核的报名 ID，按 ID 升序
	ListExpiredPendingIDs(ctx context.Context, now time.Time, after int64, limit int) ([]int64, error)
	ListProfileIDs(ctx context.Context, after int64, limit int) ([]int64, error)
	GetProfileSkills(ctx context.Context, profileID int64) ([]domain.ProfileSkill, error)
}

// Authorizer 回答某个账号能否管理某个活动
type Authorizer interface {
	CanManage(ctx context.Context, actorID, activityID int64) (bool, error)
}

type Event struct {
	Type   string
	Record *domain.VolunteerShift
	Shift  *domain.Shift
}

// Notifier 在事务提交之后被调用，不能影响状态变更的结果
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

type Service struct {
	store     Store
	gate      Authorizer
	notifier  Notifier
	logger    *zap.Logger
	now       func() time.Time
	batchSize int
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithBatchSize 设置清理任务每批处理的记录数
func WithBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

func NewService(store Store, gate Authorizer, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:     store,
		gate:      gate,
		logger:    logger,
		now:       time.Now,
		batchSize: 100,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) notify(ctx context.Context, eventType string, record *domain.VolunteerShift, shift *domain.Shift) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, Event{Type: eventType, Record: record, Shift: shift})
}

// authorize 必须在开启事务之前调用
func (s *Service) authorize(ctx context.Context, actorID, activityID int64) error {
	ok, err := s.gate.CanManage(ctx, actorID, activityID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotManager
	}
	return nil
}

// loadForManager 读取记录及其班次，并校验操作者有权管理该班次所属的活动
func (s *Service) loadForManager(ctx context.Context, recordID, actorID int64) (*domain.VolunteerShift, *domain.Shift, error) {
	record, err := s.store.GetVolunteerShift(ctx, recordID)
	if err != nil {
		return nil, nil, err
	}
	shift, err := s.store.GetShift(ctx, record.ShiftID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.authorize(ctx, actorID, shift.ActivityID); err != nil {
		return nil, nil, err
	}
	return record, shift, nil
}
