package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sysu-ecnc-dev/team-allocator/backend/internal/allocator"
	"github.com/sysu-ecnc-dev/team-allocator/backend/internal/config"
	"github.com/sysu-ecnc-dev/team-allocator/backend/internal/seed"
)

// 不连接数据库，直接对一张问卷表格做一次分组
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	/**********************************************
	 * 读取默认参数
	 **********************************************/
	cfg, err := config.LoadAllocatorConfig()
	if err != nil {
		logger.Error("无法读取配置", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var in string
	var trajectory string
	var seedValue int64

	flag.StringVar(&in, "in", "responses.csv", "问卷表格")
	flag.StringVar(&trajectory, "trajectory", "", "退火曲线的输出路径，为空时不输出")
	flag.Float64Var(&cfg.InitialTemperature, "t0", cfg.InitialTemperature, "初始温度")
	flag.Float64Var(&cfg.CoolingFactor, "alpha", cfg.CoolingFactor, "冷却系数")
	flag.Float64Var(&cfg.Threshold, "threshold", cfg.Threshold, "终止温度")
	flag.Float64Var(&cfg.PenaltyWeight, "penalty", cfg.PenaltyWeight, "每次违反排斥关系的惩罚")
	flag.Float64Var(&cfg.Boltzmann, "k", cfg.Boltzmann, "接受概率中的缩放常数")
	flag.IntVar(&cfg.MaxIterations, "max-iter", cfg.MaxIterations, "迭代次数上限，0 表示只由温度决定")
	flag.StringVar(&cfg.RemainderPolicy, "policy", cfg.RemainderPolicy, "不能整除时多出来的人的分配方式 (last, spread)")
	flag.Int64Var(&seedValue, "seed", 0, "随机数种子，不指定时使用当前时间")
	flag.Parse()

	parameters := cfg.Parameters()
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			parameters.Seed = &seedValue
		}
	})

	/**********************************************
	 * 读取问卷
	 **********************************************/
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

	/**********************************************
	 * 模拟退火
	 **********************************************/
	opts := []allocator.Option{allocator.WithLogger(logger)}

	var recorder *allocator.TrajectoryRecorder
	if trajectory != "" {
		recorder = allocator.NewTrajectoryRecorder(parameters.IterationBudget())
		opts = append(opts, allocator.WithTrajectorySink(recorder))
	}

	annealer, err := allocator.New(parameters, prefs, opts...)
	if err != nil {
		logger.Error("无法创建退火过程", slog.String("error", err.Error()))
		os.Exit(1)
	}

	res, err := annealer.Run()
	if err != nil {
		logger.Error("模拟退火失败", slog.String("error", err.Error()))
		os.Exit(1)
	}

	/**********************************************
	 * 输出结果
	 **********************************************/
	members := make(map[int64][]string, len(sheet.Plan.Groups))
	for _, respondent := range sheet.Respondents {
		groupID := res.Assignment[respondent.ID]
		members[groupID] = append(members[groupID], respondent.Name)
	}

	for _, group := range sheet.Plan.Groups {
		fmt.Printf("%s (%d 人): %s\n", group.Name, len(members[group.ID]), strings.Join(members[group.ID], ", "))
	}
	fmt.Println()
	fmt.Printf("得分: %g (初始 %g)\n", res.Heuristic, res.InitialHeuristic)
	fmt.Printf("评分总和: %d / %d\n", res.TotalRating, prefs.MaxTotalRating())
	fmt.Printf("违反排斥: %d\n", res.Violations)
	fmt.Printf("迭代次数: %d, 接受 %d 次, 最优解出现在第 %d 次迭代\n", res.Iterations, res.AcceptedMoves, res.BestIteration)
	fmt.Printf("随机数种子: %d\n", res.Seed)

	if recorder != nil {
		file, err := os.Create(trajectory)
		if err != nil {
			logger.Error("无法创建退火曲线文件", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer file.Close()

		if err := allocator.WriteTrajectoryCSV(file, recorder.Points); err != nil {
			logger.Error("无法写入退火曲线", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("已写入退火曲线", slog.String("path", trajectory), slog.Int("points", len(recorder.Points)))
	}
}
