package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sysu-ecnc-dev/team-allocator/backend/internal/allocator"
	"github.com/sysu-ecnc-dev/team-allocator/backend/internal/seed"
	"github.com/sysu-ecnc-dev/team-allocator/backend/internal/sweep"
)

// 对同一张问卷表格尝试不同的冷却系数，每个系数运行多次
func main() {
	var configPath string
	var in string
	var out string

	flag.StringVar(&configPath, "config", "", "YAML 格式的扫描配置，为空时使用默认配置")
	flag.StringVar(&in, "in", "responses.csv", "问卷表格")
	flag.StringVar(&out, "out", "alpha_sweep.csv", "扫描结果")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg := sweep.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = sweep.LoadConfigFile(configPath); err != nil {
			logger.Error("无法读取扫描配置", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	sheet, err := seed.ReadSheetFile(in)
	if err != nil {
		logger.Error("无法读取问卷表格", slog.String("error", err.Error()))
		os.Exit(1)
	}

	prefs, err := allocator.NewPreferences(sheet.Respondents, sheet.Plan.GroupRefs())
	if err != nil {
		logger.Error("问卷数据不合法", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// CTRL+C 时取消还没有开始的运行
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 每次运行的日志太多，只保留警告以上的
	runLogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	logger.Info("开始扫描冷却系数",
		slog.Any("alphas", cfg.Alphas),
		slog.Int("runs", cfg.Runs),
		slog.Int("concurrency", cfg.Concurrency),
	)
	start := time.Now()

	records, err := sweep.Run(ctx, cfg, prefs, runLogger)
	if err != nil {
		logger.Error("扫描失败", slog.String("error", err.Error()))
		os.Exit(1)
	}

	file, err := os.Create(out)
	if err != nil {
		logger.Error("无法创建结果文件", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer file.Close()

	if err := sweep.WriteCSV(file, records); err != nil {
		logger.Error("无法写入扫描结果", slog.String("error", err.Error()))
		os.Exit(1)
	}

	for _, s := range sweep.Summarize(records) {
		fmt.Printf("alpha=%-6g 迭代 %-6d 平均 %-10.2f 最好 %-10g 最差 %g\n", s.Alpha, s.Iterations, s.Mean, s.Best, s.Worst)
	}

	logger.Info("扫描完成", slog.String("path", out), slog.Int("runs", len(records)), slog.Duration("duration", time.Since(start)))
}
