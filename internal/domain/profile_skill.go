package domain

import "time"

type Skill struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ProfileSkill 记录志愿者某项技能累计获得的时长
type ProfileSkill struct {
	ProfileID int64     `json:"profileID"`
	SkillID   int64     `json:"skillID"`
	Hours     float64   `json:"hours"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SkillDrift 表示某项技能的存储值与重新计算值之间的偏差
type SkillDrift struct {
	SkillID  int64   `json:"skillID"`
	Stored   float64 `json:"stored"`
	Expected float64 `json:"expected"`
}
