package allocator

import (
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sortedSizes(sizes map[int64]int) []int {
	values := make([]int, 0, len(sizes))
	for _, v := range sizes {
		values = append(values, v)
	}
	sort.Ints(values)
	return values
}

func TestNewRandomBalancedAssignment_Partition(t *testing.T) {
	tests := []struct {
		name      string
		persons   int
		groups    int
		policy    RemainderPolicy
		wantSizes []int64 // 按组的顺序
	}{
		{name: "divisible", persons: 15, groups: 3, policy: RemainderToLast, wantSizes: []int64{5, 5, 5}},
		{name: "divisible spread", persons: 15, groups: 3, policy: RemainderSpread, wantSizes: []int64{5, 5, 5}},
		{name: "remainder to last group", persons: 14, groups: 4, policy: RemainderToLast, wantSizes: []int64{3, 3, 3, 5}},
		{name: "remainder spread", persons: 14, groups: 4, policy: RemainderSpread, wantSizes: []int64{4, 4, 3, 3}},
		{name: "survey size", persons: 65, groups: 13, policy: RemainderToLast, wantSizes: []int64{5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5}},
		{name: "single group", persons: 4, groups: 1, policy: RemainderToLast, wantSizes: []int64{4}},
		{name: "one person per group", persons: 3, groups: 3, policy: RemainderSpread, wantSizes: []int64{1, 1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups := makeGroups(tt.groups)
			prefs, err := NewPreferences(makeRespondents(tt.persons, groups, func(int, int) int32 { return 1 }), groups)
			require.NoError(t, err)

			a, err := NewRandomBalancedAssignment(prefs, rand.New(rand.NewPCG(1, 2)), 100, tt.policy)
			require.NoError(t, err)

			// 每个人恰好出现一次
			mapping := a.Mapping()
			require.Len(t, mapping, tt.persons)
			for _, personID := range prefs.PersonIDs() {
				_, ok := mapping[personID]
				require.True(t, ok, "person %d must be assigned", personID)
			}

			sizes := a.GroupSizes()
			for g, group := range groups {
				assert.Equal(t, tt.wantSizes[g], int64(sizes[group.ID]), "size of group %d", g)
			}

			if tt.policy == RemainderSpread || tt.persons%tt.groups == 0 {
				values := sortedSizes(sizes)
				assert.LessOrEqual(t, values[len(values)-1]-values[0], 1)
			}
		})
	}
}

func TestNewRandomBalancedAssignment_Shuffles(t *testing.T) {
	groups := makeGroups(3)
	prefs, err := NewPreferences(makeRespondents(30, groups, func(int, int) int32 { return 1 }), groups)
	require.NoError(t, err)

	a1, err := NewRandomBalancedAssignment(prefs, rand.New(rand.NewPCG(1, 1)), 100, RemainderToLast)
	require.NoError(t, err)
	a2, err := NewRandomBalancedAssignment(prefs, rand.New(rand.NewPCG(1, 1)), 100, RemainderToLast)
	require.NoError(t, err)
	a3, err := NewRandomBalancedAssignment(prefs, rand.New(rand.NewPCG(7, 9)), 100, RemainderToLast)
	require.NoError(t, err)

	assert.Equal(t, a1.Mapping(), a2.Mapping(), "same seed gives the same partition")
	assert.NotEqual(t, a1.Mapping(), a3.Mapping())
}

func TestNewAssignment_RequiresTotalMapping(t *testing.T) {
	groups := makeGroups(2)
	prefs, err := NewPreferences(makeRespondents(4, groups, func(int, int) int32 { return 1 }), groups)
	require.NoError(t, err)

	_, err = NewAssignment(prefs, map[int64]int64{1: 100, 2: 100, 3: 101}, 100)
	require.ErrorIs(t, err, ErrValidation)

	_, err = NewAssignment(prefs, map[int64]int64{1: 100, 2: 100, 3: 101, 4: 555}, 100)
	require.ErrorIs(t, err, ErrValidation)

	_, err = NewAssignment(prefs, map[int64]int64{1: 100, 2: 100, 3: 101, 9: 101}, 100)
	require.ErrorIs(t, err, ErrValidation)
}

// 4 人 2 组，A 排斥 B，其他评分相同
func TestAssignment_ExclusionPenalty(t *testing.T) {
	groups := makeGroups(2)
	respondents := makeRespondents(4, groups, func(int, int) int32 { return 3 })
	respondents[0].Exclusions = []int64{2}

	prefs, err := NewPreferences(respondents, groups)
	require.NoError(t, err)

	together, err := NewAssignment(prefs, map[int64]int64{1: 100, 2: 100, 3: 101, 4: 101}, 100)
	require.NoError(t, err)

	// 直接计算：评分总和 4*3，违反 1 次
	assert.Equal(t, int64(12), together.TotalRating())
	assert.Equal(t, int64(1), together.ViolationCount())
	assert.Equal(t, float64(12-100), together.Heuristic())
	assert.Equal(t, float64(together.TotalRating())-together.PenaltyWeight(), together.Heuristic())

	apart, err := NewAssignment(prefs, map[int64]int64{1: 100, 2: 101, 3: 100, 4: 101}, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(0), apart.ViolationCount())
	assert.Equal(t, float64(12), apart.Heuristic())

	// 换一个惩罚权重
	light, err := NewAssignment(prefs, map[int64]int64{1: 100, 2: 100, 3: 101, 4: 101}, 2.5)
	require.NoError(t, err)
	assert.Equal(t, 12-2.5, light.Heuristic())
}

func TestAssignment_MutualExclusionCountsTwice(t *testing.T) {
	groups := makeGroups(2)
	respondents := makeRespondents(4, groups, func(int, int) int32 { return 1 })
	respondents[0].Exclusions = []int64{2}
	respondents[1].Exclusions = []int64{1}

	prefs, err := NewPreferences(respondents, groups)
	require.NoError(t, err)

	a, err := NewAssignment(prefs, map[int64]int64{1: 100, 2: 100, 3: 101, 4: 101}, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(2), a.ViolationCount())
}

func TestAssignment_SwapInvolution(t *testing.T) {
	groups := makeGroups(3)
	respondents := makeRespondents(9, groups, func(p, g int) int32 { return int32((p*7 + g*3) % 5) })
	respondents[0].Exclusions = []int64{4, 5}
	respondents[4].Exclusions = []int64{1}

	prefs, err := NewPreferences(respondents, groups)
	require.NoError(t, err)

	a, err := NewRandomBalancedAssignment(prefs, rand.New(rand.NewPCG(3, 4)), 100, RemainderToLast)
	require.NoError(t, err)

	before := a.Mapping()
	h0 := a.Heuristic()

	require.NoError(t, a.Swap(1, 5))
	require.NoError(t, a.Swap(1, 5))

	assert.Equal(t, before, a.Mapping())
	assert.Equal(t, h0, a.Heuristic())
}

func TestAssignment_SelfSwapIsNoop(t *testing.T) {
	groups := makeGroups(2)
	prefs, err := NewPreferences(makeRespondents(4, groups, func(p, g int) int32 { return int32(p + g) }), groups)
	require.NoError(t, err)

	a, err := NewRandomBalancedAssignment(prefs, rand.New(rand.NewPCG(1, 1)), 100, RemainderToLast)
	require.NoError(t, err)

	before := a.Mapping()
	h0 := a.Heuristic()

	v, err := a.EvaluateSwap(3, 3)
	require.NoError(t, err)
	assert.Equal(t, h0, v)

	require.NoError(t, a.Swap(3, 3))
	assert.Equal(t, before, a.Mapping())
	assert.Equal(t, h0, a.Heuristic())
}

func TestAssignment_UnknownPerson(t *testing.T) {
	groups := makeGroups(2)
	prefs, err := NewPreferences(makeRespondents(4, groups, func(int, int) int32 { return 1 }), groups)
	require.NoError(t, err)

	a, err := NewRandomBalancedAssignment(prefs, rand.New(rand.NewPCG(1, 1)), 100, RemainderToLast)
	require.NoError(t, err)

	require.ErrorIs(t, a.Swap(1, 77), ErrValidation)
	_, err = a.EvaluateSwap(77, 1)
	require.ErrorIs(t, err, ErrValidation)
	_, err = a.GroupOf(77)
	require.ErrorIs(t, err, ErrValidation)
	_, err = a.Members(77)
	require.ErrorIs(t, err, ErrValidation)
}

// 对随机的交换序列检查 evaluate / commit 一致性，并和从头计算的结果比较
func TestAssignment_EvaluateCommitConsistency(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 13))
	groups := makeGroups(4)
	respondents := makeRespondents(22, groups, func(int, int) int32 { return 1 + rng.Int32N(5) })
	for _, r := range respondents {
		for k := 0; k < 3; k++ {
			other := int64(1 + rng.IntN(len(respondents)))
			if other != r.ID {
				r.Exclusions = append(r.Exclusions, other)
			}
		}
	}

	prefs, err := NewPreferences(respondents, groups)
	require.NoError(t, err)

	a, err := NewRandomBalancedAssignment(prefs, rng, 100, RemainderSpread)
	require.NoError(t, err)

	ids := prefs.PersonIDs()
	for step := 0; step < 500; step++ {
		p1 := ids[rng.IntN(len(ids))]
		p2 := ids[rng.IntN(len(ids))]

		h0 := a.Heuristic()
		v, err := a.EvaluateSwap(p1, p2)
		require.NoError(t, err)
		assert.Equal(t, h0, a.Heuristic(), "evaluation must not mutate")

		require.NoError(t, a.Swap(p1, p2))
		require.Equal(t, v, a.Heuristic(), "step %d", step)

		rating, violations := a.recount()
		require.Equal(t, rating, a.TotalRating(), "step %d", step)
		require.Equal(t, violations, a.ViolationCount(), "step %d", step)

		require.NoError(t, a.Swap(p1, p2))
		require.Equal(t, h0, a.Heuristic())

		// 保留一部分交换，让状态继续变化
		if step%3 == 0 {
			require.NoError(t, a.Swap(p1, p2))
		}
	}
}

func TestAssignment_SwapKeepsGroupSizes(t *testing.T) {
	groups := makeGroups(3)
	prefs, err := NewPreferences(makeRespondents(11, groups, func(int, int) int32 { return 1 }), groups)
	require.NoError(t, err)

	a, err := NewRandomBalancedAssignment(prefs, rand.New(rand.NewPCG(5, 5)), 100, RemainderToLast)
	require.NoError(t, err)
	sizes := a.GroupSizes()

	rng := rand.New(rand.NewPCG(8, 8))
	ids := prefs.PersonIDs()
	for i := 0; i < 100; i++ {
		require.NoError(t, a.Swap(ids[rng.IntN(len(ids))], ids[rng.IntN(len(ids))]))
	}

	assert.Equal(t, sizes, a.GroupSizes())
}

func TestAssignment_CloneIsIndependent(t *testing.T) {
	groups := makeGroups(2)
	prefs, err := NewPreferences(makeRespondents(4, groups, func(p, g int) int32 { return int32(p * (g + 1)) }), groups)
	require.NoError(t, err)

	a, err := NewAssignment(prefs, map[int64]int64{1: 100, 2: 100, 3: 101, 4: 101}, 100)
	require.NoError(t, err)

	clone := a.Clone()
	require.NoError(t, a.Swap(1, 3))

	assert.NotEqual(t, a.Mapping(), clone.Mapping())

	members, err := clone.Members(100)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, members)

	group, err := a.GroupOf(1)
	require.NoError(t, err)
	assert.Equal(t, int64(101), group)
}
