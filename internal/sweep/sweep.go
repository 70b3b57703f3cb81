package sweep

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/sysu-ecnc-dev/team-allocator/backend/internal/allocator"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// Config 描述一次冷却系数扫描：每个 alpha 独立运行 Runs 次退火
type Config struct {
	Alphas             []float64 `yaml:"alphas" validate:"required,min=1,dive,gt=0,lt=1"`
	Runs               int       `yaml:"runs" validate:"min=1"`
	Concurrency        int       `yaml:"concurrency" validate:"min=0"` // 0 表示不限制
	Seed               int64     `yaml:"seed"`
	InitialTemperature float64   `yaml:"initial_temperature" validate:"gt=0"`
	Threshold          float64   `yaml:"threshold" validate:"gt=0"`
	PenaltyWeight      float64   `yaml:"penalty_weight" validate:"min=0"`
	Boltzmann          float64   `yaml:"boltzmann" validate:"gt=0"`
	MaxIterations      int       `yaml:"max_iterations" validate:"min=0"`
	RemainderPolicy    string    `yaml:"remainder_policy" validate:"omitempty,oneof=last spread"`
}

func DefaultConfig() *Config {
	p := allocator.DefaultParameters()
	return &Config{
		Alphas:             []float64{0.8, 0.85, 0.9, 0.95, 0.99},
		Runs:               10,
		Concurrency:        runtime.NumCPU(),
		Seed:               1,
		InitialTemperature: p.InitialTemperature,
		Threshold:          p.Threshold,
		PenaltyWeight:      p.PenaltyWeight,
		Boltzmann:          p.Boltzmann,
		MaxIterations:      p.MaxIterations,
		RemainderPolicy:    string(p.RemainderPolicy),
	}
}

// LoadConfig 在默认配置的基础上读取 YAML，文件中没有出现的字段保持默认值
func LoadConfig(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()

	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("解析扫描配置失败: %w", err)
	}

	if err := configValidator.Struct(cfg); err != nil {
		return nil, fmt.Errorf("扫描配置不合法: %w", err)
	}

	return cfg, nil
}

func LoadConfigFile(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return LoadConfig(file)
}

// Parameters 返回第 index 次运行使用的参数，每次运行的种子都不同
func (c *Config) Parameters(alpha float64, index int) *allocator.Parameters {
	seed := c.Seed + int64(index)
	return &allocator.Parameters{
		InitialTemperature: c.InitialTemperature,
		CoolingFactor:      alpha,
		Threshold:          c.Threshold,
		PenaltyWeight:      c.PenaltyWeight,
		Boltzmann:          c.Boltzmann,
		Seed:               &seed,
		MaxIterations:      c.MaxIterations,
		RemainderPolicy:    allocator.RemainderPolicy(c.RemainderPolicy),
	}
}

type Record struct {
	Alpha            float64
	Run              int
	Seed             int64
	Heuristic        float64
	InitialHeuristic float64
	Iterations       int
}

// Run 并发执行所有 (alpha, run) 组合，每个组合都是一次独立的退火
// 返回的记录按 alpha 在配置中的顺序、再按 run 排列
func Run(ctx context.Context, cfg *Config, prefs *allocator.Preferences, logger *slog.Logger) ([]Record, error) {
	if logger == nil {
		logger = slog.Default()
	}

	records := make([]Record, len(cfg.Alphas)*cfg.Runs)

	g, ctx := errgroup.WithContext(ctx)
	if cfg.Concurrency > 0 {
		g.SetLimit(cfg.Concurrency)
	}

	for a, alpha := range cfg.Alphas {
		for run := 0; run < cfg.Runs; run++ {
			index := a*cfg.Runs + run
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}

				parameters := cfg.Parameters(alpha, index)
				annealer, err := allocator.New(parameters, prefs, allocator.WithLogger(logger))
				if err != nil {
					return fmt.Errorf("alpha %v 第 %d 次运行: %w", alpha, run, err)
				}

				result, err := annealer.Run()
				if err != nil {
					return fmt.Errorf("alpha %v 第 %d 次运行: %w", alpha, run, err)
				}

				records[index] = Record{
					Alpha:            alpha,
					Run:              run,
					Seed:             result.Seed,
					Heuristic:        result.Heuristic,
					InitialHeuristic: result.InitialHeuristic,
					Iterations:       result.Iterations,
				}
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return records, nil
}

// WriteCSV 输出 alpha,run,heuristic 三列
func WriteCSV(w io.Writer, records []Record) error {
	writer := csv.NewWriter(w)

	if err := writer.Write([]string{"alpha", "run", "heuristic"}); err != nil {
		return err
	}

	for _, record := range records {
		row := []string{
			strconv.FormatFloat(record.Alpha, 'f', -1, 64),
			strconv.Itoa(record.Run),
			strconv.FormatFloat(record.Heuristic, 'f', -1, 64),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

type Summary struct {
	Alpha      float64
	Runs       int
	Mean       float64
	Best       float64
	Worst      float64
	Iterations int
}

// Summarize 按 alpha 汇总，结果按 alpha 升序排列
func Summarize(records []Record) []Summary {
	byAlpha := make(map[float64]*Summary)
	for _, record := range records {
		s, ok := byAlpha[record.Alpha]
		if !ok {
			s = &Summary{Alpha: record.Alpha, Best: record.Heuristic, Worst: record.Heuristic, Iterations: record.Iterations}
			byAlpha[record.Alpha] = s
		}
		s.Runs++
		s.Mean += record.Heuristic
		s.Best = max(s.Best, record.Heuristic)
		s.Worst = min(s.Worst, record.Heuristic)
	}

	summaries := make([]Summary, 0, len(byAlpha))
	for _, s := range byAlpha {
		s.Mean /= float64(s.Runs)
		summaries = append(summaries, *s)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Alpha < summaries[j].Alpha
	})

	return summaries
}
