package allocator

import (
	"math/rand/v2"
	"slices"
)

// Assignment: 每个人恰好属于一个组
// 评分总和与违反次数随交换增量维护，Heuristic 为 O(1)
type Assignment struct {
	prefs         *Preferences
	penaltyWeight float64
	groupOf       []int // person -> group
	rating        int64
	violations    int64
}

// NewRandomBalancedAssignment 随机打乱所有人，然后按 floor(n/g) 的大小连续切分
func NewRandomBalancedAssignment(prefs *Preferences, rng *rand.Rand, penaltyWeight float64, policy RemainderPolicy) (*Assignment, error) {
	n, g := prefs.PersonCount(), prefs.GroupCount()
	if g == 0 || n < g {
		return nil, newValidationError("%d 人无法分成 %d 个非空的组", n, g)
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	rng.Shuffle(n, func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	groupOf := make([]int, n)
	for pos, person := range order {
		groupOf[person] = blockOf(pos, n, g, policy)
	}

	return newAssignment(prefs, groupOf, penaltyWeight), nil
}

// NewAssignment 使用给定的 personID -> groupID 映射，映射必须覆盖所有人
func NewAssignment(prefs *Preferences, mapping map[int64]int64, penaltyWeight float64) (*Assignment, error) {
	if len(mapping) != prefs.PersonCount() {
		return nil, newValidationError("映射包含 %d 人，偏好表中有 %d 人", len(mapping), prefs.PersonCount())
	}

	groupOf := make([]int, prefs.PersonCount())
	for personID, groupID := range mapping {
		i, exists := prefs.personIndex[personID]
		if !exists {
			return nil, newValidationError("人员 %d 不存在", personID)
		}
		g, exists := prefs.groupIndex[groupID]
		if !exists {
			return nil, newValidationError("组 %d 不存在", groupID)
		}
		groupOf[i] = g
	}

	return newAssignment(prefs, groupOf, penaltyWeight), nil
}

func newAssignment(prefs *Preferences, groupOf []int, penaltyWeight float64) *Assignment {
	a := &Assignment{
		prefs:         prefs,
		penaltyWeight: penaltyWeight,
		groupOf:       groupOf,
	}
	a.rating, a.violations = a.recount()
	return a
}

// 第 pos 个（打乱后的顺序）人所在的组
func blockOf(pos, n, g int, policy RemainderPolicy) int {
	size := n / g
	if policy == RemainderSpread {
		rem := n % g
		big := rem * (size + 1)
		if pos < big {
			return pos / (size + 1)
		}
		return rem + (pos-big)/size
	}
	return min(pos/size, g-1)
}

func (a *Assignment) TotalRating() int64 {
	return a.rating
}

func (a *Assignment) ViolationCount() int64 {
	return a.violations
}

func (a *Assignment) PenaltyWeight() float64 {
	return a.penaltyWeight
}

func (a *Assignment) Heuristic() float64 {
	return a.heuristic(a.rating, a.violations)
}

func (a *Assignment) heuristic(rating, violations int64) float64 {
	return float64(rating) - a.penaltyWeight*float64(violations)
}

func (a *Assignment) Swap(p1, p2 int64) error {
	i, j, err := a.indexPair(p1, p2)
	if err != nil {
		return err
	}
	a.swap(i, j)
	return nil
}

// EvaluateSwap 返回交换后的 heuristic，不修改当前状态
func (a *Assignment) EvaluateSwap(p1, p2 int64) (float64, error) {
	i, j, err := a.indexPair(p1, p2)
	if err != nil {
		return 0, err
	}
	return a.evaluate(i, j), nil
}

func (a *Assignment) indexPair(p1, p2 int64) (int, int, error) {
	i, exists := a.prefs.personIndex[p1]
	if !exists {
		return 0, 0, newValidationError("人员 %d 不存在", p1)
	}
	j, exists := a.prefs.personIndex[p2]
	if !exists {
		return 0, 0, newValidationError("人员 %d 不存在", p2)
	}
	return i, j, nil
}

func (a *Assignment) swap(i, j int) {
	dRating, dViolations := a.delta(i, j)
	a.groupOf[i], a.groupOf[j] = a.groupOf[j], a.groupOf[i]
	a.rating += dRating
	a.violations += dViolations
}

func (a *Assignment) evaluate(i, j int) float64 {
	dRating, dViolations := a.delta(i, j)
	return a.heuristic(a.rating+dRating, a.violations+dViolations)
}

// delta 只看 i 和 j 两个人相关的评分和排斥关系
func (a *Assignment) delta(i, j int) (int64, int64) {
	gi, gj := a.groupOf[i], a.groupOf[j]
	if gi == gj {
		// 包括 i == j 的情况
		return 0, 0
	}

	r := a.prefs.ratings
	dRating := int64(r[i][gj]) + int64(r[j][gi]) - int64(r[i][gi]) - int64(r[j][gj])
	dViolations := a.moveViolations(i, j, gi, gj) + a.moveViolations(j, i, gj, gi)

	return dRating, dViolations
}

// person 从 from 组移动到 to 组时，与第三人之间的违反次数变化
// person 与 other 之间的关系交换前后都不在同一组，不需要计算
func (a *Assignment) moveViolations(person, other, from, to int) int64 {
	var d int64
	count := func(peers []int) {
		for _, q := range peers {
			if q == other {
				continue
			}
			switch a.groupOf[q] {
			case from:
				d--
			case to:
				d++
			}
		}
	}
	count(a.prefs.exclusions[person])
	count(a.prefs.excludedBy[person])
	return d
}

// recount 从头计算评分总和与违反次数，O(n + 排斥关系数)
func (a *Assignment) recount() (int64, int64) {
	var rating, violations int64
	for i, g := range a.groupOf {
		rating += int64(a.prefs.ratings[i][g])
		for _, q := range a.prefs.exclusions[i] {
			if a.groupOf[q] == g {
				violations++
			}
		}
	}
	return rating, violations
}

func (a *Assignment) GroupOf(personID int64) (int64, error) {
	i, exists := a.prefs.personIndex[personID]
	if !exists {
		return 0, newValidationError("人员 %d 不存在", personID)
	}
	return a.prefs.groupIDs[a.groupOf[i]], nil
}

// Members 按偏好表中的顺序返回组内成员
func (a *Assignment) Members(groupID int64) ([]int64, error) {
	g, exists := a.prefs.groupIndex[groupID]
	if !exists {
		return nil, newValidationError("组 %d 不存在", groupID)
	}
	members := []int64{}
	for i, gi := range a.groupOf {
		if gi == g {
			members = append(members, a.prefs.personIDs[i])
		}
	}
	return members, nil
}

func (a *Assignment) GroupSizes() map[int64]int {
	sizes := make(map[int64]int, a.prefs.GroupCount())
	for _, groupID := range a.prefs.groupIDs {
		sizes[groupID] = 0
	}
	for _, g := range a.groupOf {
		sizes[a.prefs.groupIDs[g]]++
	}
	return sizes
}

func (a *Assignment) Mapping() map[int64]int64 {
	return a.prefs.mapping(a.groupOf)
}

func (a *Assignment) Clone() *Assignment {
	return &Assignment{
		prefs:         a.prefs,
		penaltyWeight: a.penaltyWeight,
		groupOf:       slices.Clone(a.groupOf),
		rating:        a.rating,
		violations:    a.violations,
	}
}

func (a *Assignment) snapshot(iteration int) *Snapshot {
	return &Snapshot{
		groupOf:     slices.Clone(a.groupOf),
		Heuristic:   a.Heuristic(),
		TotalRating: a.rating,
		Violations:  a.violations,
		Iteration:   iteration,
	}
}

func (p *Preferences) mapping(groupOf []int) map[int64]int64 {
	m := make(map[int64]int64, len(groupOf))
	for i, g := range groupOf {
		m[p.personIDs[i]] = p.groupIDs[g]
	}
	return m
}
