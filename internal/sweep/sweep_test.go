package sweep

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sysu-ecnc-dev/team-allocator/backend/internal/allocator"
	"github.com/sysu-ecnc-dev/team-allocator/backend/internal/domain"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// 12 个人 3 个组，每个人最喜欢编号为 i%3 的组
func testPreferences(t *testing.T) *allocator.Preferences {
	t.Helper()

	groups := make([]*domain.Group, 3)
	for g := range groups {
		groups[g] = &domain.Group{ID: int64(g + 1), Name: string(rune('A' + g))}
	}

	respondents := make([]*domain.Respondent, 12)
	for i := range respondents {
		ratings := make([]domain.RespondentRating, len(groups))
		for g, group := range groups {
			rating := int32(1)
			if g == i%3 {
				rating = 5
			}
			ratings[g] = domain.RespondentRating{GroupID: group.ID, Rating: rating}
		}
		respondents[i] = &domain.Respondent{ID: int64(i + 1), Name: string(rune('a' + i)), Ratings: ratings}
	}

	prefs, err := allocator.NewPreferences(respondents, groups)
	require.NoError(t, err)
	return prefs
}

func TestLoadConfig(t *testing.T) {
	t.Run("overrides defaults", func(t *testing.T) {
		cfg, err := LoadConfig(strings.NewReader(`
alphas: [0.5, 0.9]
runs: 3
seed: 42
penalty_weight: 10
`))
		require.NoError(t, err)
		assert.Equal(t, []float64{0.5, 0.9}, cfg.Alphas)
		assert.Equal(t, 3, cfg.Runs)
		assert.Equal(t, int64(42), cfg.Seed)
		assert.Equal(t, float64(10), cfg.PenaltyWeight)

		defaults := allocator.DefaultParameters()
		assert.Equal(t, defaults.InitialTemperature, cfg.InitialTemperature)
		assert.Equal(t, defaults.Boltzmann, cfg.Boltzmann)
	})

	t.Run("empty input keeps defaults", func(t *testing.T) {
		cfg, err := LoadConfig(strings.NewReader(""))
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig().Alphas, cfg.Alphas)
	})

	tests := []struct {
		name  string
		input string
	}{
		{name: "alpha out of range", input: "alphas: [1.0]"},
		{name: "no alphas", input: "alphas: []"},
		{name: "no runs", input: "runs: 0"},
		{name: "unknown field", input: "cooling: 0.9"},
		{name: "bad policy", input: "remainder_policy: middle"},
		{name: "not yaml", input: "alphas: [0.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(strings.NewReader(tt.input))
			require.Error(t, err)
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweep.yaml")
	require.NoError(t, os.WriteFile(path, []byte("runs: 2\n"), 0o644))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Runs)

	_, err = LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestRun(t *testing.T) {
	prefs := testPreferences(t)

	cfg := DefaultConfig()
	cfg.Alphas = []float64{0.5, 0.9}
	cfg.Runs = 4
	cfg.Concurrency = 2

	records, err := Run(context.Background(), cfg, prefs, quietLogger)
	require.NoError(t, err)
	require.Len(t, records, 8)

	seeds := make(map[int64]bool)
	for i, record := range records {
		assert.Equal(t, cfg.Alphas[i/cfg.Runs], record.Alpha)
		assert.Equal(t, i%cfg.Runs, record.Run)
		assert.GreaterOrEqual(t, record.Heuristic, record.InitialHeuristic)
		assert.LessOrEqual(t, record.Heuristic, float64(prefs.MaxTotalRating()))
		seeds[record.Seed] = true
	}
	assert.Len(t, seeds, 8, "every run uses its own seed")

	t.Run("reproducible", func(t *testing.T) {
		cfg.Concurrency = 0
		again, err := Run(context.Background(), cfg, prefs, quietLogger)
		require.NoError(t, err)
		assert.Equal(t, records, again)
	})
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, DefaultConfig(), testPreferences(t), quietLogger)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRun_InvalidParameters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Alphas = []float64{0.9}
	cfg.Runs = 1
	cfg.Boltzmann = 0

	_, err := Run(context.Background(), cfg, testPreferences(t), quietLogger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alpha 0.9")
}

func TestWriteCSV(t *testing.T) {
	records := []Record{
		{Alpha: 0.9, Run: 0, Heuristic: 55},
		{Alpha: 0.9, Run: 1, Heuristic: -145.5},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, records))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"alpha", "run", "heuristic"},
		{"0.9", "0", "55"},
		{"0.9", "1", "-145.5"},
	}, rows)
}

func TestSummarize(t *testing.T) {
	summaries := Summarize([]Record{
		{Alpha: 0.9, Heuristic: 10},
		{Alpha: 0.5, Heuristic: 4},
		{Alpha: 0.9, Heuristic: 20},
		{Alpha: 0.5, Heuristic: 8},
	})

	require.Len(t, summaries, 2)
	assert.Equal(t, Summary{Alpha: 0.5, Runs: 2, Mean: 6, Best: 8, Worst: 4}, summaries[0])
	assert.Equal(t, Summary{Alpha: 0.9, Runs: 2, Mean: 15, Best: 20, Worst: 10}, summaries[1])
}
