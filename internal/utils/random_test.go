package utils

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestGenerateRandomPlan(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	plan := GenerateRandomPlan(rng, len(DefaultGroupNames)+2)
	require.Len(t, plan.Groups, len(DefaultGroupNames)+2)
	assert.Equal(t, DefaultGroupNames[0], plan.Groups[0].Name)
	assert.Equal(t, "第 15 组", plan.Groups[14].Name)
	require.NoError(t, ValidatePlanGroups(plan))

	for i, group := range plan.Groups {
		assert.Equal(t, int64(i+1), group.ID)
	}
}

func TestGenerateRandomRespondents(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	plan := GenerateRandomPlan(rng, len(DefaultGroupNames))

	opts := DefaultResponseOptions()
	respondents := GenerateRandomRespondents(rng, plan.Groups, opts)
	require.Len(t, respondents, DefaultRespondentNumber)

	names := make(map[string]bool)
	for i, respondent := range respondents {
		assert.Equal(t, int64(i+1), respondent.ID)
		assert.False(t, names[respondent.Name], "names must be unique")
		names[respondent.Name] = true
		assert.Empty(t, respondent.Exclusions)

		require.Len(t, respondent.Ratings, len(plan.Groups))
		for g, rating := range respondent.Ratings {
			assert.Equal(t, plan.Groups[g].ID, rating.GroupID)
			assert.GreaterOrEqual(t, rating.Rating, opts.MinRating)
			assert.LessOrEqual(t, rating.Rating, opts.MaxRating)
		}
	}
}

func TestGenerateRandomRespondents_Exclusions(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 9))
	plan := GenerateRandomPlan(rng, 3)

	opts := DefaultResponseOptions()
	opts.Respondents = 30
	opts.ExclusionRate = 1

	respondents := GenerateRandomRespondents(rng, plan.Groups, opts)
	for _, respondent := range respondents {
		require.Len(t, respondent.Exclusions, 1)
		assert.NotEqual(t, respondent.ID, respondent.Exclusions[0])
		assert.GreaterOrEqual(t, respondent.Exclusions[0], int64(1))
		assert.LessOrEqual(t, respondent.Exclusions[0], int64(30))
	}
}

func TestGenerateRandomRespondents_Reproducible(t *testing.T) {
	plan := GenerateRandomPlan(rand.New(rand.NewPCG(1, 1)), 4)

	a := GenerateRandomRespondents(rand.New(rand.NewPCG(5, 6)), plan.Groups, DefaultResponseOptions())
	b := GenerateRandomRespondents(rand.New(rand.NewPCG(5, 6)), plan.Groups, DefaultResponseOptions())
	assert.Equal(t, a, b)
}

func TestGenerateRandomUser(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 12))

	user, err := GenerateRandomUser(rng, "secret-password", "example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, user.Username)
	assert.Equal(t, user.Username+"@example.com", user.Email)
	assert.Contains(t, []string{"组织者", "管理员"}, string(user.Role))
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret-password")))
}

func TestGenerateRandomPassword(t *testing.T) {
	assert.Len(t, []rune(GenerateRandomPassword(12)), 12)
	assert.Empty(t, GenerateRandomPassword(0))
}
