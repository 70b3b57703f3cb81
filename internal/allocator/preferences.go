package allocator

import (
	"slices"

	"github.com/sysu-ecnc-dev/team-allocator/backend/internal/domain"
)

// Preferences 是只读的偏好表，构造后不再修改
// 人和组在内部用下标表示，对外仍然使用 ID
type Preferences struct {
	personIDs   []int64
	groupIDs    []int64
	personIndex map[int64]int
	groupIndex  map[int64]int
	ratings     [][]int32 // [person][group]
	exclusions  [][]int   // person -> 他排斥的人
	excludedBy  [][]int   // person -> 排斥他的人
}

func NewPreferences(respondents []*domain.Respondent, groups []*domain.Group) (*Preferences, error) {
	if len(groups) == 0 {
		return nil, newValidationError("至少需要一个组")
	}
	if len(respondents) < len(groups) {
		return nil, newValidationError("人数 %d 少于组数 %d，无法让每个组都非空", len(respondents), len(groups))
	}

	p := &Preferences{
		personIDs:   make([]int64, 0, len(respondents)),
		groupIDs:    make([]int64, 0, len(groups)),
		personIndex: make(map[int64]int, len(respondents)),
		groupIndex:  make(map[int64]int, len(groups)),
		ratings:     make([][]int32, len(respondents)),
		exclusions:  make([][]int, len(respondents)),
		excludedBy:  make([][]int, len(respondents)),
	}

	for _, group := range groups {
		if _, exists := p.groupIndex[group.ID]; exists {
			return nil, newValidationError("组 %d 重复", group.ID)
		}
		p.groupIndex[group.ID] = len(p.groupIDs)
		p.groupIDs = append(p.groupIDs, group.ID)
	}

	for _, respondent := range respondents {
		if _, exists := p.personIndex[respondent.ID]; exists {
			return nil, newValidationError("人员 %d 重复", respondent.ID)
		}
		p.personIndex[respondent.ID] = len(p.personIDs)
		p.personIDs = append(p.personIDs, respondent.ID)
	}

	// 评分必须覆盖所有组
	for i, respondent := range respondents {
		row := make([]int32, len(groups))
		seen := make([]bool, len(groups))

		for _, rating := range respondent.Ratings {
			g, exists := p.groupIndex[rating.GroupID]
			if !exists {
				return nil, newValidationError("人员 %d 的评分引用了不存在的组 %d", respondent.ID, rating.GroupID)
			}
			if seen[g] {
				return nil, newValidationError("人员 %d 对组 %d 的评分重复", respondent.ID, rating.GroupID)
			}
			seen[g] = true
			row[g] = rating.Rating
		}

		for g, ok := range seen {
			if !ok {
				return nil, newValidationError("人员 %d 缺少对组 %d 的评分", respondent.ID, p.groupIDs[g])
			}
		}

		p.ratings[i] = row
	}

	for i, respondent := range respondents {
		for _, excludedID := range respondent.Exclusions {
			j, exists := p.personIndex[excludedID]
			if !exists {
				return nil, newValidationError("人员 %d 排斥了不存在的人员 %d", respondent.ID, excludedID)
			}
			if i == j {
				return nil, newValidationError("人员 %d 不能排斥自己", respondent.ID)
			}
			// 重复声明只计一次
			if slices.Contains(p.exclusions[i], j) {
				continue
			}
			p.exclusions[i] = append(p.exclusions[i], j)
			p.excludedBy[j] = append(p.excludedBy[j], i)
		}
	}

	return p, nil
}

func (p *Preferences) PersonCount() int {
	return len(p.personIDs)
}

func (p *Preferences) GroupCount() int {
	return len(p.groupIDs)
}

func (p *Preferences) PersonIDs() []int64 {
	return slices.Clone(p.personIDs)
}

func (p *Preferences) GroupIDs() []int64 {
	return slices.Clone(p.groupIDs)
}

func (p *Preferences) Rating(personID, groupID int64) (int32, error) {
	i, exists := p.personIndex[personID]
	if !exists {
		return 0, newValidationError("人员 %d 不存在", personID)
	}
	g, exists := p.groupIndex[groupID]
	if !exists {
		return 0, newValidationError("组 %d 不存在", groupID)
	}
	return p.ratings[i][g], nil
}

// Exclusions 按声明顺序返回 personID 排斥的人
func (p *Preferences) Exclusions(personID int64) ([]int64, error) {
	i, exists := p.personIndex[personID]
	if !exists {
		return nil, newValidationError("人员 %d 不存在", personID)
	}
	ids := make([]int64, len(p.exclusions[i]))
	for k, j := range p.exclusions[i] {
		ids[k] = p.personIDs[j]
	}
	return ids, nil
}

// MaxTotalRating 返回不考虑组人数限制时评分总和的上界：每个人都进入自己评分最高的组
func (p *Preferences) MaxTotalRating() int64 {
	var total int64
	for _, row := range p.ratings {
		total += int64(slices.Max(row))
	}
	return total
}
