package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/domain"
)

func ValidateShiftTime(shift *domain.Shift) error {
	if !shift.EndTime.After(shift.StartTime) {
		return errors.New("班次的结束时间必须晚于开始时间")
	}
	if shift.EndTime.Sub(shift.StartTime) > 24*time.Hour {
		return errors.New("单个班次不能超过 24 小时")
	}
	return nil
}

// ValidateShiftSkills 检查技能权重的取值范围以及是否重复
func ValidateShiftSkills(skills []domain.ShiftSkill) error {
	seen := make(map[int64]bool)
	for _, skill := range skills {
		if skill.Hours < 0 || skill.Hours > 24 {
			return fmt.Errorf("技能 %d 的时长必须在 0 到 24 之间", skill.SkillID)
		}
		if seen[skill.SkillID] {
			return fmt.Errorf("技能 %d 重复", skill.SkillID)
		}
		seen[skill.SkillID] = true
	}
	return nil
}
