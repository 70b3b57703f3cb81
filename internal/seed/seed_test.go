package seed

import (
	"bytes"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sysu-ecnc-dev/team-allocator/backend/internal/domain"
	"github.com/sysu-ecnc-dev/team-allocator/backend/internal/utils"
)

const sampleSheet = `Name,Moderna,Pfizer,Blue Origin,Exclusions,Email
Alice Smith,5,1,3,,alice@example.com
Bob Jones,2,4,4,Alice Smith; Carol White,bob@example.com
Carol White,1,1,5,,
`

func TestReadResponses(t *testing.T) {
	sheet, err := ReadResponses(strings.NewReader(sampleSheet))
	require.NoError(t, err)

	require.Len(t, sheet.Plan.Groups, 3)
	assert.Equal(t, "Moderna", sheet.Plan.Groups[0].Name)
	assert.Equal(t, "Blue Origin", sheet.Plan.Groups[2].Name)

	require.Len(t, sheet.Respondents, 3)
	bob := sheet.Respondents[1]
	assert.Equal(t, int64(2), bob.ID)
	assert.Equal(t, "Bob Jones", bob.Name)
	assert.Equal(t, "bob@example.com", bob.Email)
	assert.Equal(t, []domain.RespondentRating{
		{GroupID: 1, Rating: 2},
		{GroupID: 2, Rating: 4},
		{GroupID: 3, Rating: 4},
	}, bob.Ratings)
	assert.Equal(t, []int64{1, 3}, bob.Exclusions)

	assert.Empty(t, sheet.Respondents[0].Exclusions)
	assert.Equal(t, "", sheet.Respondents[2].Email)
}

func TestReadResponses_GeneratorFormat(t *testing.T) {
	// 只有 Name 和组的列
	sheet, err := ReadResponses(strings.NewReader("Name,A,B\nx,1,2\ny,-3,7\n"))
	require.NoError(t, err)
	require.Len(t, sheet.Respondents, 2)
	assert.Equal(t, int32(-3), sheet.Respondents[1].Ratings[0].Rating)
}

func TestReadResponses_ByteOrderMark(t *testing.T) {
	// Excel 导出的 UTF-8 表格开头带 BOM
	sheet, err := ReadResponses(strings.NewReader("\ufeffName,A,B\nx,1,2\n"))
	require.NoError(t, err)
	require.Len(t, sheet.Plan.Groups, 2)
	assert.Equal(t, "x", sheet.Respondents[0].Name)
}

func TestReadResponses_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "no name column", input: "A,B\n1,2\n"},
		{name: "no groups", input: "Name,Email\nx,x@example.com\n"},
		{name: "duplicate group", input: "Name,A,A\nx,1,2\n"},
		{name: "duplicate name", input: "Name,A\nx,1\nx,2\n"},
		{name: "rating not integer", input: "Name,A\nx,high\n"},
		{name: "missing rating", input: "Name,A,B\nx,1,\n"},
		{name: "unknown exclusion", input: "Name,A,Exclusions\nx,1,nobody\n"},
		{name: "self exclusion", input: "Name,A,Exclusions\nx,1,x\n"},
		{name: "ragged row", input: "Name,A,B\nx,1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadResponses(strings.NewReader(tt.input))
			require.Error(t, err)
		})
	}
}

func TestWriteThenReadResponses(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	opts := utils.DefaultResponseOptions()
	opts.Respondents = 20
	opts.ExclusionRate = 0.5

	sheet := GenerateSheet(rng, 4, opts)

	var buf bytes.Buffer
	require.NoError(t, WriteResponses(&buf, sheet))

	read, err := ReadResponses(&buf)
	require.NoError(t, err)

	require.Len(t, read.Plan.Groups, 4)
	for i, group := range sheet.Plan.Groups {
		assert.Equal(t, group.Name, read.Plan.Groups[i].Name)
	}

	require.Len(t, read.Respondents, len(sheet.Respondents))
	for i, respondent := range sheet.Respondents {
		got := read.Respondents[i]
		assert.Equal(t, respondent.Name, got.Name)
		assert.Equal(t, respondent.Email, got.Email)
		assert.Equal(t, respondent.Ratings, got.Ratings)
		assert.ElementsMatch(t, respondent.Exclusions, got.Exclusions)
	}
}

func TestSheetFile(t *testing.T) {
	sheet, err := ReadResponses(strings.NewReader(sampleSheet))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "responses.csv")
	require.NoError(t, WriteSheetFile(path, sheet))

	read, err := ReadSheetFile(path)
	require.NoError(t, err)
	assert.Equal(t, sheet.Respondents[1].Exclusions, read.Respondents[1].Exclusions)
}

func TestBindToPlan(t *testing.T) {
	sheet, err := ReadResponses(strings.NewReader(sampleSheet))
	require.NoError(t, err)

	// 计划中组的顺序和表格不同
	plan := &domain.AllocationPlan{
		ID: 9,
		Groups: []domain.Group{
			{ID: 30, Name: "Blue Origin"},
			{ID: 10, Name: "Moderna"},
			{ID: 20, Name: "Pfizer"},
		},
	}

	respondents, err := sheet.BindToPlan(plan)
	require.NoError(t, err)
	require.Len(t, respondents, 3)

	alice := respondents[0]
	assert.Equal(t, int64(9), alice.PlanID)
	assert.Equal(t, []domain.RespondentRating{
		{GroupID: 10, Rating: 5},
		{GroupID: 20, Rating: 1},
		{GroupID: 30, Rating: 3},
	}, alice.Ratings)
	assert.Equal(t, []int64{1, 3}, respondents[1].Exclusions)

	// 原表格不受影响
	assert.Equal(t, int64(1), sheet.Respondents[0].Ratings[0].GroupID)

	t.Run("group count mismatch", func(t *testing.T) {
		_, err := sheet.BindToPlan(&domain.AllocationPlan{Groups: plan.Groups[:2]})
		require.Error(t, err)
	})

	t.Run("unknown group", func(t *testing.T) {
		other := &domain.AllocationPlan{Groups: []domain.Group{{ID: 1, Name: "Moderna"}, {ID: 2, Name: "Pfizer"}, {ID: 3, Name: "Moon"}}}
		_, err := sheet.BindToPlan(other)
		require.Error(t, err)
	})
}
