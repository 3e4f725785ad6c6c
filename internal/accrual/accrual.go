// Package accrual 把审核后的完成度换算成志愿者各项技能的累计时长。
//
// 对于某个档案的某项技能，累计时长恒等于
//
//	sum(duration(shift) * completion/100 * shiftSkill.hours)
//
// 求和范围是该志愿者所有已审核（completion 非空）的报名记录。Reconcile 按差值增量
// 更新，RebuildAll 从头重算，两者之间的差异不应超过 Epsilon。
package accrual

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/domain"
)

// Epsilon 是比较浮点累计值时允许的误差
const Epsilon = 1e-6

// Store 是增量计算所需的读写能力，调用方应保证它处于同一个事务中
type Store interface {
	GetShift(ctx context.Context, shiftID int64) (*domain.Shift, error)
	GetShiftSkills(ctx context.Context, shiftID int64) ([]domain.ShiftSkill, error)
	// AddProfileSkillHours 在不存在时以 0 为初始值插入
	AddProfileSkillHours(ctx context.Context, profileID, skillID int64, delta float64) error
}

// RebuildStore 额外提供全量重算需要的查询
type RebuildStore interface {
	Store
	ListReviewedVolunteerShifts(ctx context.Context, accountID int64) ([]*domain.VolunteerShift, error)
	GetProfileSkills(ctx context.Context, profileID int64) ([]domain.ProfileSkill, error)
	SetProfileSkillHours(ctx context.Context, profileID, skillID int64, hours float64) error
}

// Deltas 计算完成度从 prev 变为 next 时每项技能的变化量
func Deltas(shift *domain.Shift, skills []domain.ShiftSkill, prev, next float64) map[int64]float64 {
	duration := shift.DurationHours()
	deltas := make(map[int64]float64, len(skills))
	for _, skill := range skills {
		deltas[skill.SkillID] += duration * skill.Hours * (next - prev)
	}
	return deltas
}

// Reconcile 把一次完成度变化应用到档案的技能时长上，prev 和 next 都是 0~1 的比例
func Reconcile(ctx context.Context, store Store, profileID, shiftID int64, prev, next float64) error {
	if prev == next {
		return nil
	}

	shift, err := store.GetShift(ctx, shiftID)
	if err != nil {
		return fmt.Errorf("获取班次 %d 失败: %w", shiftID, err)
	}

	skills, err := store.GetShiftSkills(ctx, shiftID)
	if err != nil {
		return fmt.Errorf("获取班次 %d 的技能失败: %w", shiftID, err)
	}

	deltas := Deltas(shift, skills, prev, next)
	for _, skillID := range sortedKeys(deltas) {
		if err := store.AddProfileSkillHours(ctx, profileID, skillID, deltas[skillID]); err != nil {
			return fmt.Errorf("更新档案 %d 的技能 %d 失败: %w", profileID, skillID, err)
		}
	}

	return nil
}

// Expected 从所有已审核的报名记录出发重新计算每项技能应有的时长
func Expected(ctx context.Context, store RebuildStore, profileID int64) (map[int64]float64, error) {
	records, err := store.ListReviewedVolunteerShifts(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("获取已审核的报名记录失败: %w", err)
	}

	expected := make(map[int64]float64)
	shifts := make(map[int64]*domain.Shift)
	shiftSkills := make(map[int64][]domain.ShiftSkill)

	for _, record := range records {
		if record.Completion == nil {
			continue
		}

		shift, ok := shifts[record.ShiftID]
		if !ok {
			shift, err = store.GetShift(ctx, record.ShiftID)
			if err != nil {
				return nil, fmt.Errorf("获取班次 %d 失败: %w", record.ShiftID, err)
			}
			shifts[record.ShiftID] = shift

			shiftSkills[record.ShiftID], err = store.GetShiftSkills(ctx, record.ShiftID)
			if err != nil {
				return nil, fmt.Errorf("获取班次 %d 的技能失败: %w", record.ShiftID, err)
			}
		}

		for skillID, hours := range Deltas(shift, shiftSkills[record.ShiftID], 0, record.CompletionFraction()) {
			expected[skillID] += hours
		}
	}

	return expected, nil
}

// RebuildAll 用全量重算的结果覆盖档案的技能时长。
// 已存在但不再有任何来源的技能会被置为 0，而不是删除。
func RebuildAll(ctx context.Context, store RebuildStore, profileID int64) ([]domain.ProfileSkill, error) {
	expected, err := Expected(ctx, store, profileID)
	if err != nil {
		return nil, err
	}

	current, err := store.GetProfileSkills(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("获取档案 %d 的技能失败: %w", profileID, err)
	}
	for _, ps := range current {
		if _, ok := expected[ps.SkillID]; !ok {
			expected[ps.SkillID] = 0
		}
	}

	for _, skillID := range sortedKeys(expected) {
		if err := store.SetProfileSkillHours(ctx, profileID, skillID, math.Max(expected[skillID], 0)); err != nil {
			return nil, fmt.Errorf("写入档案 %d 的技能 %d 失败: %w", profileID, skillID, err)
		}
	}

	return store.GetProfileSkills(ctx, profileID)
}

// Check 比较存储值和全量重算值，返回超出 Epsilon 的偏差
func Check(ctx context.Context, store RebuildStore, profileID int64) ([]domain.SkillDrift, error) {
	expected, err := Expected(ctx, store, profileID)
	if err != nil {
		return nil, err
	}

	current, err := store.GetProfileSkills(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("获取档案 %d 的技能失败: %w", profileID, err)
	}

	stored := make(map[int64]float64, len(current))
	for _, ps := range current {
		stored[ps.SkillID] = ps.Hours
		if _, ok := expected[ps.SkillID]; !ok {
			expected[ps.SkillID] = 0
		}
	}

	drifts := []domain.SkillDrift{}
	for _, skillID := range sortedKeys(expected) {
		if math.Abs(stored[skillID]-expected[skillID]) > Epsilon {
			drifts = append(drifts, domain.SkillDrift{
				SkillID:  skillID,
				Stored:   stored[skillID],
				Expected: expected[skillID],
			})
		}
	}

	return drifts, nil
}

func sortedKeys(m map[int64]float64) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
