package utils

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/mozillazg/go-pinyin"
	"golang.org/x/crypto/bcrypt"

	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/domain"
)

var commonSurnames = []string{
	"王", "李", "张", "刘", "陈", "杨", "赵", "黄", "周", "吴",
	"徐", "孙", "胡", "朱", "高", "林", "何", "郭", "马", "罗",
}
var commonNameCharacters = []string{
	"伟", "强", "芳", "敏", "静", "丽", "刚", "杰", "娟", "勇",
	"艳", "涛", "明", "军", "磊", "洋", "勇", "霞", "飞", "玲",
	"超", "华", "平", "辉", "梅", "鑫", "龙", "鹏", "玉", "斌",
	"庆", "建", "丹", "彬", "凤", "旭", "宁", "乐", "成", "欣",
}

func GenerateRandomChineseName() string {
	surname := commonSurnames[rand.Intn(len(commonSurnames))]
	nameLength := rand.Intn(2) + 1
	name := ""

	for i := 0; i < nameLength; i++ {
		name += commonNameCharacters[rand.Intn(len(commonNameCharacters))]
	}
	return surname + name
}

var digits = "0123456789"

func GenerateUsernameFromChineseName(chineseName string) string {
	pinyinArray := pinyin.LazyConvert(chineseName, nil)
	username := ""

	for _, pinyin := range pinyinArray {
		length := rand.Intn(len(pinyin)) + 1
		username += pinyin[:length]
	}

	digitsLength := rand.Intn(3) + 1
	for i := 0; i < digitsLength; i++ {
		username += string(digits[rand.Intn(len(digits))])
	}

	return username
}

func GenerateRandomUser(password string, emailDomainName string, role domain.Role) (*domain.User, error) {
	fullName := GenerateRandomChineseName()
	username := GenerateUsernameFromChineseName(fullName)
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     username,
		PasswordHash: string(passwordHash),
		FullName:     fullName,
		Email:        username + "@" + emailDomainName,
		Role:         role,
	}

	return user, nil
}

var letters = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")

func GenerateRandomID(letterLength int, digitLength int) string {
	random_id := make([]rune, letterLength+digitLength)
	for i := range random_id {
		if i < letterLength {
			random_id[i] = letters[rand.Intn(len(letters))]
		} else {
			random_id[i] = rune(digits[rand.Intn(len(digits))])
		}
	}
	return string(random_id)
}

var SkillNames = []string{"急救", "翻译", "摄影", "引导", "后勤", "医疗咨询", "心理疏导", "文书"}

var activityNames = []string{"社区义诊", "马拉松补给站", "图书馆整理", "敬老院探访", "校园开放日", "环保宣传", "献血服务", "赛事引导"}

func GenerateRandomActivity(organizerID int64) *domain.Activity {
	return &domain.Activity{
		OrganizationID: organizerID,
		Name:           activityNames[rand.Intn(len(activityNames))] + GenerateRandomID(0, 3),
		Description:    "活动描述" + GenerateRandomID(20, 10),
		Status:         domain.ActivityStatusApproved,
	}
}

// GenerateRandomShifts 生成若干个分布在过去和未来的班次，每个班次带 1~3 项技能
func GenerateRandomShifts(activityID int64, skills []domain.Skill) []*domain.Shift {
	n := rand.Intn(4) + 2
	shifts := make([]*domain.Shift, n)
	base := time.Now().Truncate(time.Hour)

	for i := range shifts {
		start := base.Add(time.Duration(rand.Intn(24*14)-24*7) * time.Hour)
		duration := time.Duration(rand.Intn(6)+1) * time.Hour

		shift := &domain.Shift{
			ActivityID:           activityID,
			Name:                 fmt.Sprintf("第 %d 班", i+1),
			StartTime:            start,
			EndTime:              start.Add(duration),
			NumberOfParticipants: int32(rand.Intn(8) + 1),
		}

		for _, skill := range GenerateRandomSubset(skills, 3) {
			shift.Skills = append(shift.Skills, domain.ShiftSkill{
				SkillID: skill.ID,
				Hours:   float64(rand.Intn(4) + 1),
			})
		}
		shifts[i] = shift
	}

	return shifts
}

// 使用 Fisher-Yates 洗牌算法来生成一个不超过 max 个元素的随机非空子集
func GenerateRandomSubset[T any](arr []T, max int) []T {
	if len(arr) == 0 {
		return nil
	}
	arrCopy := append([]T{}, arr...) // 复制数组，避免修改原数组

	for i := 0; i < len(arrCopy)-1; i++ {
		j := rand.Intn(len(arrCopy)-i) + i
		arrCopy[i], arrCopy[j] = arrCopy[j], arrCopy[i]
	}

	l := rand.Intn(min(len(arrCopy), max)) + 1
	return arrCopy[:l]
}
