package allocator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sysu-ecnc-dev/team-allocator/backend/internal/domain"
)

func TestNewPreferences_ValidationErrors(t *testing.T) {
	groups := makeGroups(2)
	flat := func(int, int) int32 { return 1 }

	tests := []struct {
		name        string
		respondents func() []*domain.Respondent
		groups      []*domain.Group
	}{
		{
			name:        "no groups",
			respondents: func() []*domain.Respondent { return makeRespondents(3, groups, flat) },
			groups:      nil,
		},
		{
			name:        "fewer persons than groups",
			respondents: func() []*domain.Respondent { return makeRespondents(1, groups, flat) },
			groups:      groups,
		},
		{
			name: "missing rating",
			respondents: func() []*domain.Respondent {
				rs := makeRespondents(3, groups, flat)
				rs[1].Ratings = rs[1].Ratings[:1]
				return rs
			},
			groups: groups,
		},
		{
			name: "rating for unknown group",
			respondents: func() []*domain.Respondent {
				rs := makeRespondents(3, groups, flat)
				rs[0].Ratings[1].GroupID = 999
				return rs
			},
			groups: groups,
		},
		{
			name: "duplicate rating",
			respondents: func() []*domain.Respondent {
				rs := makeRespondents(3, groups, flat)
				rs[0].Ratings[1].GroupID = rs[0].Ratings[0].GroupID
				return rs
			},
			groups: groups,
		},
		{
			name: "exclusion of unknown person",
			respondents: func() []*domain.Respondent {
				rs := makeRespondents(3, groups, flat)
				rs[2].Exclusions = []int64{42}
				return rs
			},
			groups: groups,
		},
		{
			name: "self exclusion",
			respondents: func() []*domain.Respondent {
				rs := makeRespondents(3, groups, flat)
				rs[2].Exclusions = []int64{rs[2].ID}
				return rs
			},
			groups: groups,
		},
		{
			name: "duplicate person",
			respondents: func() []*domain.Respondent {
				rs := makeRespondents(3, groups, flat)
				rs[2].ID = rs[0].ID
				return rs
			},
			groups: groups,
		},
		{
			name:        "duplicate group",
			respondents: func() []*domain.Respondent { return makeRespondents(3, groups, flat) },
			groups:      []*domain.Group{groups[0], groups[0]},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prefs, err := NewPreferences(tt.respondents(), tt.groups)
			require.Nil(t, prefs)
			require.ErrorIs(t, err, ErrValidation)

			var validationErr *ValidationError
			require.True(t, errors.As(err, &validationErr))
			assert.NotEmpty(t, validationErr.Reason)
		})
	}
}

func TestPreferences_Lookup(t *testing.T) {
	groups := makeGroups(3)
	respondents := makeRespondents(4, groups, func(p, g int) int32 { return int32(10*p + g) })
	respondents[0].Exclusions = []int64{3, 2, 3}

	prefs, err := NewPreferences(respondents, groups)
	require.NoError(t, err)

	assert.Equal(t, 4, prefs.PersonCount())
	assert.Equal(t, 3, prefs.GroupCount())

	rating, err := prefs.Rating(2, 102)
	require.NoError(t, err)
	assert.Equal(t, int32(12), rating)

	_, err = prefs.Rating(99, 102)
	require.ErrorIs(t, err, ErrValidation)
	_, err = prefs.Rating(2, 99)
	require.ErrorIs(t, err, ErrValidation)

	exclusions, err := prefs.Exclusions(1)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 2}, exclusions, "declaration order is kept and duplicates collapse")

	// 修改返回值不会影响偏好表
	exclusions[0] = 4
	again, err := prefs.Exclusions(1)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 2}, again)

	empty, err := prefs.Exclusions(2)
	require.NoError(t, err)
	assert.Empty(t, empty)

	assert.Equal(t, int64(2+12+22+32), prefs.MaxTotalRating())
}

func TestPreferences_ArbitraryRatingRange(t *testing.T) {
	groups := makeGroups(2)
	respondents := makeRespondents(2, groups, func(p, g int) int32 { return int32(-1000 + 5000*g) })

	prefs, err := NewPreferences(respondents, groups)
	require.NoError(t, err)

	rating, err := prefs.Rating(1, 101)
	require.NoError(t, err)
	assert.Equal(t, int32(4000), rating)
}
