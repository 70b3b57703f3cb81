package utils

import (
	"fmt"
	"math/rand/v2"
	"strconv"

	"github.com/mozillazg/go-pinyin"
	"github.com/sysu-ecnc-dev/team-allocator/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
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

// 默认的项目组，和最初收集问卷时使用的组一致
var DefaultGroupNames = []string{
	"New Balance Press",
	"New Balance Stitch",
	"Accelerate Wind",
	"Blue Origin",
	"BU Wise",
	"Linevision",
	"Santos Volpe",
	"Microsoft NERD",
	"Mass EEC",
	"Moderna",
	"Pfizer",
	"Amazon Robotics",
	"Boston Scientific",
}

const DefaultRespondentNumber = 65

// 生成问卷数据时使用的参数
type ResponseOptions struct {
	Respondents   int     // 人数
	MinRating     int32   // 评分下界（包含）
	MaxRating     int32   // 评分上界（包含）
	ExclusionRate float64 // 每个人填写一个排斥对象的概率
	EmailDomain   string
}

func DefaultResponseOptions() ResponseOptions {
	return ResponseOptions{
		Respondents:   DefaultRespondentNumber,
		MinRating:     1,
		MaxRating:     5,
		ExclusionRate: 0,
		EmailDomain:   "example.com",
	}
}

func GenerateRandomChineseName(rng *rand.Rand) string {
	surname := commonSurnames[rng.IntN(len(commonSurnames))]
	nameLength := rng.IntN(2) + 1
	name := ""

	for i := 0; i < nameLength; i++ {
		name += commonNameCharacters[rng.IntN(len(commonNameCharacters))]
	}
	return surname + name
}

var digits = "0123456789"

func GenerateUsernameFromChineseName(rng *rand.Rand, chineseName string) string {
	pinyinArray := pinyin.LazyConvert(chineseName, nil)
	username := ""

	for _, pinyin := range pinyinArray {
		length := rng.IntN(len(pinyin)) + 1
		username += pinyin[:length]
	}

	digitsLength := rng.IntN(3) + 1
	for i := 0; i < digitsLength; i++ {
		username += string(digits[rng.IntN(len(digits))])
	}

	return username
}

var roles = []domain.Role{
	domain.RoleOrganizer,
	domain.RoleAdmin,
}

func GenerateRandomUser(rng *rand.Rand, password string, emailDomainName string) (*domain.User, error) {
	fullName := GenerateRandomChineseName(rng)
	username := GenerateUsernameFromChineseName(rng, fullName)
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     username,
		PasswordHash: string(passwordHash),
		FullName:     fullName,
		Email:        username + "@" + emailDomainName,
		Role:         roles[rng.IntN(len(roles))],
	}

	return user, nil
}

var letters = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*")

func GenerateRandomPassword(length int) string {
	random_password := make([]rune, length)
	for i := range random_password {
		random_password[i] = letters[rand.IntN(len(letters))]
	}
	return string(random_password)
}

func GenerateRandomID(rng *rand.Rand, letterLength int, digitLength int) string {
	random_id := make([]rune, letterLength+digitLength)
	for i := range random_id {
		if i < letterLength {
			random_id[i] = letters[rng.IntN(len(letters))]
		} else {
			random_id[i] = rune(digits[rng.IntN(len(digits))])
		}
	}
	return string(random_id)
}

// GenerateRandomPlan 生成一个包含 groupNumber 个组的分组计划，组名优先使用默认的项目组
func GenerateRandomPlan(rng *rand.Rand, groupNumber int) *domain.AllocationPlan {
	plan := &domain.AllocationPlan{
		Name:        "分组计划" + GenerateRandomID(rng, 3, 3),
		Description: "分组计划描述" + GenerateRandomID(rng, 20, 10),
		Groups:      make([]domain.Group, groupNumber),
	}

	for i := range plan.Groups {
		name := fmt.Sprintf("第 %d 组", i+1)
		if i < len(DefaultGroupNames) {
			name = DefaultGroupNames[i]
		}
		plan.Groups[i] = domain.Group{
			ID:   int64(i + 1),
			Name: name,
		}
	}

	return plan
}

// GenerateRandomRespondents 为 groups 生成随机问卷
// 返回的人员 ID 从 1 开始连续编号，排斥关系引用的也是这些临时 ID
func GenerateRandomRespondents(rng *rand.Rand, groups []domain.Group, opts ResponseOptions) []*domain.Respondent {
	respondents := make([]*domain.Respondent, opts.Respondents)
	usedNames := make(map[string]bool, opts.Respondents)

	for i := range respondents {
		// 名字作为 CSV 中的主键，必须唯一
		name := GenerateRandomChineseName(rng)
		for attempt := 0; usedNames[name]; attempt++ {
			if attempt < 10 {
				name = GenerateRandomChineseName(rng)
			} else {
				name += strconv.Itoa(rng.IntN(10))
			}
		}
		usedNames[name] = true

		respondent := &domain.Respondent{
			ID:      int64(i + 1),
			Name:    name,
			Email:   GenerateUsernameFromChineseName(rng, name) + "@" + opts.EmailDomain,
			Ratings: make([]domain.RespondentRating, len(groups)),
		}

		for g, group := range groups {
			respondent.Ratings[g] = domain.RespondentRating{
				GroupID: group.ID,
				Rating:  opts.MinRating + rng.Int32N(opts.MaxRating-opts.MinRating+1),
			}
		}

		respondents[i] = respondent
	}

	if len(respondents) > 1 {
		for i, respondent := range respondents {
			if rng.Float64() >= opts.ExclusionRate {
				continue
			}
			// 随机选一个不是自己的人
			j := rng.IntN(len(respondents) - 1)
			if j >= i {
				j++
			}
			respondent.Exclusions = append(respondent.Exclusions, respondents[j].ID)
		}
	}

	return respondents
}
