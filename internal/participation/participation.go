package participation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/accrual"
	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/domain"
)

// SignUp 为志愿者创建一条待审核的报名记录
func (s *Service) SignUp(ctx context.Context, accountID, shiftID int64, attendant bool) (*domain.VolunteerShift, error) {
	now := s.now()
	var record *domain.VolunteerShift

	err := s.store.InTx(ctx, func(tx Tx) error {
		shift, err := tx.LockShift(ctx, shiftID)
		if err != nil {
			return err
		}

		activity, err := tx.GetActivity(ctx, shift.ActivityID)
		if err != nil {
			return err
		}
		if activity.Status != domain.ActivityStatusApproved {
			return domain.ErrActivityNotOpen
		}
		if shift.HasStarted(now) {
			return domain.ErrShiftAlreadyStarted
		}

		joined, err := tx.HasActiveVolunteerShift(ctx, accountID, shiftID)
		if err != nil {
			return err
		}
		if joined {
			return domain.ErrAlreadyJoined
		}

		approved, err := tx.CountApproved(ctx, shiftID, 0)
		if err != nil {
			return err
		}
		if approved >= int(shift.NumberOfParticipants) {
			return domain.ErrShiftFull
		}

		record = &domain.VolunteerShift{
			AccountID: accountID,
			ShiftID:   shiftID,
			Status:    domain.VolunteerShiftPending,
			Active:    domain.IsActive(domain.VolunteerShiftPending, shift, now),
			Attendant: attendant,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return tx.CreateVolunteerShift(ctx, record)
	})
	if err != nil {
		return nil, err
	}

	return record, nil
}

// Decide 由活动管理者通过或拒绝一条待审核的报名
func (s *Service) Decide(ctx context.Context, recordID, actorID int64, outcome Transition) (*domain.VolunteerShift, error) {
	if outcome != TransitionApprove && outcome != TransitionReject {
		return nil, domain.ErrUnknownOutcome
	}

	if _, _, err := s.loadForManager(ctx, recordID, actorID); err != nil {
		return nil, err
	}

	record, shift, err := s.decide(ctx, recordID, outcome, nil)
	if err != nil {
		return nil, err
	}

	if outcome == TransitionApprove {
		s.notify(ctx, domain.MailTypeParticipationApproved, record, shift)
	} else {
		s.notify(ctx, domain.MailTypeParticipationRejected, record, shift)
	}
	return record, nil
}

// decide 是人工审核和后台清理共用的状态变更逻辑，不包含权限校验。
// eligible 不为空且返回 false 时不做任何修改，返回的记录为 nil。
func (s *Service) decide(ctx context.Context, recordID int64, outcome Transition, eligible func(*domain.VolunteerShift, *domain.Shift, time.Time) bool) (*domain.VolunteerShift, *domain.Shift, error) {
	now := s.now()
	var (
		record *domain.VolunteerShift
		shift  *domain.Shift
	)

	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		record, err = tx.GetVolunteerShift(ctx, recordID)
		if err != nil {
			return err
		}
		shift, err = tx.LockShift(ctx, record.ShiftID)
		if err != nil {
			return err
		}

		if eligible != nil && !eligible(record, shift, now) {
			return errSkip
		}

		if err := apply(record, shift, outcome, now); err != nil {
			return err
		}

		if outcome == TransitionApprove {
			approved, err := tx.CountApproved(ctx, shift.ID, record.ID)
			if err != nil {
				return err
			}
			if approved >= int(shift.NumberOfParticipants) {
				return domain.ErrShiftIsFull
			}
		}

		return tx.UpdateVolunteerShift(ctx, record)
	})
	if errors.Is(err, errSkip) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	return record, shift, nil
}

// Withdraw 由志愿者本人取消（待审核）或退出（已通过）报名
func (s *Service) Withdraw(ctx context.Context, recordID, actorID int64, outcome Transition) (*domain.VolunteerShift, error) {
	if outcome != TransitionCancel && outcome != TransitionLeave {
		return nil, domain.ErrUnknownOutcome
	}

	now := s.now()
	var record *domain.VolunteerShift

	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		record, err = tx.GetVolunteerShift(ctx, recordID)
		if err != nil {
			return err
		}
		if record.AccountID != actorID {
			return domain.ErrNotOwnVolunteer
		}

		shift, err := tx.GetShift(ctx, record.ShiftID)
		if err != nil {
			return err
		}

		if err := apply(record, shift, outcome, now); err != nil {
			return err
		}
		return tx.UpdateVolunteerShift(ctx, record)
	})
	if err != nil {
		return nil, err
	}

	return record, nil
}

// Remove 由活动管理者把已通过的志愿者移出班次
func (s *Service) Remove(ctx context.Context, recordID, actorID int64) (*domain.VolunteerShift, error) {
	if _, _, err := s.loadForManager(ctx, recordID, actorID); err != nil {
		return nil, err
	}

	now := s.now()
	var (
		record *domain.VolunteerShift
		shift  *domain.Shift
	)

	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		record, err = tx.GetVolunteerShift(ctx, recordID)
		if err != nil {
			return err
		}
		shift, err = tx.GetShift(ctx, record.ShiftID)
		if err != nil {
			return err
		}

		if err := apply(record, shift, TransitionRemove, now); err != nil {
			return err
		}
		return tx.UpdateVolunteerShift(ctx, record)
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, domain.MailTypeParticipationRemoved, record, shift)
	return record, nil
}

// authorizeSelfOrManager 允许志愿者本人或活动管理者操作
func (s *Service) authorizeSelfOrManager(ctx context.Context, recordID, actorID int64) error {
	record, err := s.store.GetVolunteerShift(ctx, recordID)
	if err != nil {
		return err
	}
	if record.AccountID == actorID {
		return nil
	}

	shift, err := s.store.GetShift(ctx, record.ShiftID)
	if err != nil {
		return err
	}
	return s.authorize(ctx, actorID, shift.ActivityID)
}

// CheckIn 在班次开始后标记签到，重复签到不做任何修改
func (s *Service) CheckIn(ctx context.Context, recordID, actorID int64) (*domain.VolunteerShift, error) {
	return s.mark(ctx, recordID, actorID, func(record *domain.VolunteerShift) (bool, error) {
		if record.CheckedIn {
			return false, nil
		}
		record.CheckedIn = true
		return true, nil
	})
}

// CheckOut 要求已签到，重复签退不做任何修改
func (s *Service) CheckOut(ctx context.Context, recordID, actorID int64) (*domain.VolunteerShift, error) {
	return s.mark(ctx, recordID, actorID, func(record *domain.VolunteerShift) (bool, error) {
		if !record.CheckedIn {
			return false, domain.ErrNotCheckedIn
		}
		if record.CheckedOut {
			return false, nil
		}
		record.CheckedOut = true
		return true, nil
	})
}

func (s *Service) mark(ctx context.Context, recordID, actorID int64, set func(*domain.VolunteerShift) (bool, error)) (*domain.VolunteerShift, error) {
	if err := s.authorizeSelfOrManager(ctx, recordID, actorID); err != nil {
		return nil, err
	}

	now := s.now()
	var record *domain.VolunteerShift

	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		record, err = tx.GetVolunteerShift(ctx, recordID)
		if err != nil {
			return err
		}
		shift, err := tx.GetShift(ctx, record.ShiftID)
		if err != nil {
			return err
		}

		if !shift.HasStarted(now) {
			return domain.ErrShiftNotStarted
		}
		if record.Status != domain.VolunteerShiftApproved {
			return domain.ErrVolunteerNotApproved
		}

		changed, err := set(record)
		if err != nil || !changed {
			return err
		}

		record.UpdatedAt = now
		return tx.UpdateVolunteerShift(ctx, record)
	})
	if err != nil {
		return nil, err
	}

	return record, nil
}

// Review 在班次结束后评定完成度，并在同一事务中更新技能累计时长
func (s *Service) Review(ctx context.Context, recordID, actorID int64, completion float64, reviewNote *string) (*domain.VolunteerShift, error) {
	if _, _, err := s.loadForManager(ctx, recordID, actorID); err != nil {
		return nil, err
	}

	now := s.now()
	var (
		record *domain.VolunteerShift
		shift  *domain.Shift
	)

	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		record, err = tx.GetVolunteerShift(ctx, recordID)
		if err != nil {
			return err
		}
		shift, err = tx.GetShift(ctx, record.ShiftID)
		if err != nil {
			return err
		}

		if !shift.HasEnded(now) {
			return domain.ErrShiftNotEnded
		}
		if record.Status != domain.VolunteerShiftApproved {
			return domain.ErrVolunteerNotApproved
		}

		prev := record.CompletionFraction()
		record.Completion = &completion
		record.ReviewNote = reviewNote
		record.UpdatedAt = now

		// 先更新记录，版本冲突时不会重复累计
		if err := tx.UpdateVolunteerShift(ctx, record); err != nil {
			return err
		}

		if err := accrual.Reconcile(ctx, tx, record.AccountID, shift.ID, prev, record.CompletionFraction()); err != nil {
			return fmt.Errorf("更新技能时长失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("已评定报名完成度",
		zap.Int64("volunteerShiftID", record.ID),
		zap.Int64("accountID", record.AccountID),
		zap.Float64("completion", completion),
	)
	s.notify(ctx, domain.MailTypeParticipationReviewed, record, shift)
	return record, nil
}

func (s *Service) GetParticipation(ctx context.Context, recordID int64) (*domain.VolunteerShift, error) {
	return s.store.GetVolunteerShift(ctx, recordID)
}

// ViewParticipation 只允许志愿者本人或活动管理者查看报名记录
func (s *Service) ViewParticipation(ctx context.Context, recordID, actorID int64) (*domain.VolunteerShift, error) {
	record, err := s.store.GetVolunteerShift(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if record.AccountID == actorID {
		return record, nil
	}

	shift, err := s.store.GetShift(ctx, record.ShiftID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actorID, shift.ActivityID); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *Service) ListParticipation(ctx context.Context, filter domain.VolunteerShiftFilter, page domain.Page) ([]*domain.VolunteerShift, error) {
	return s.store.ListVolunteerShifts(ctx, filter, page)
}

func (s *Service) GetShift(ctx context.Context, shiftID int64) (*domain.Shift, error) {
	return s.store.GetShift(ctx, shiftID)
}
