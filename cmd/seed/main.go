package main

import (
	"database/sql"
	"errors"
	"flag"
	"log/slog"
	"math/rand/v2"
	"os"
	"time"

	"github.com/sysu-ecnc-dev/team-allocator/backend/internal/config"
	"github.com/sysu-ecnc-dev/team-allocator/backend/internal/repository"
	"github.com/sysu-ecnc-dev/team-allocator/backend/internal/seed"
	"github.com/sysu-ecnc-dev/team-allocator/backend/internal/utils"
)

func main() {
	var op int
	var n int
	var groups int
	var planID int64
	var exclusionRate float64
	var randomSeed uint64
	var in string
	var out string

	flag.IntVar(&op, "op", 0, "要执行的操作 (1: 插入随机用户, 2: 插入随机分组计划, 3: 插入随机问卷, 4: 从 CSV 导入问卷, 5: 生成随机问卷 CSV)")
	flag.IntVar(&n, "n", 5, "要插入的记录数量，生成问卷时表示人数")
	flag.IntVar(&groups, "groups", len(utils.DefaultGroupNames), "分组计划中组的数量")
	flag.Int64Var(&planID, "plan-id", 0, "导入问卷的分组计划 ID")
	flag.Float64Var(&exclusionRate, "exclusion-rate", 0, "每个人填写一个排斥对象的概率")
	flag.Uint64Var(&randomSeed, "seed", uint64(time.Now().UnixNano()), "随机数种子")
	flag.StringVar(&in, "in", "", "要导入的问卷 CSV")
	flag.StringVar(&out, "out", "responses.csv", "生成的问卷 CSV")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	rng := rand.New(rand.NewPCG(randomSeed, randomSeed>>1))

	opts := utils.DefaultResponseOptions()
	opts.Respondents = n
	opts.ExclusionRate = exclusionRate

	// 生成 CSV 不需要数据库
	if op == 5 {
		if n <= 0 || groups <= 0 {
			slog.Error("请输入合法的人数和组数")
			os.Exit(1)
		}
		if err := seed.WriteSheetFile(out, seed.GenerateSheet(rng, groups, opts)); err != nil {
			slog.Error("无法写入问卷表格", slog.String("error", err.Error()))
			os.Exit(1)
		}
		slog.Info("生成问卷表格成功", slog.String("path", out), slog.Int("respondents", n), slog.Int("groups", groups))
		return
	}

	// 读取配置文件
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		os.Exit(1)
	}
	opts.EmailDomain = cfg.Email.UserDomain

	dbpool, err := repository.OpenDB(cfg)
	if err != nil {
		logger.Error("无法连接数据库", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()

	// 创建 repository
	repo := repository.NewRepository(cfg, dbpool)

	// 执行操作
	switch op {
	case 0:
		slog.Error("未指定操作")
	case 1:
		if n <= 0 {
			slog.Error("请输入合法的用户数量")
		} else {
			cnt := n
			for i := 0; i < n; i++ {
				user, err := utils.GenerateRandomUser(rng, cfg.Seed.User.Password, cfg.Email.UserDomain)
				if err != nil {
					slog.Error("无法生成随机用户", slog.String("error", err.Error()))
					continue
				}

				if err := repo.CreateUser(user); err != nil {
					slog.Error("无法插入用户", slog.String("error", err.Error()))
					continue
				}

				cnt--
			}

			slog.Info("插入用户成功", slog.Int("count", n-cnt))
		}
	case 2:
		if n <= 0 || groups <= 0 {
			slog.Error("请输入合法的分组计划数量和组数")
		} else {
			cnt := n
			for i := 0; i < n; i++ {
				plan := utils.GenerateRandomPlan(rng, groups)
				if err := repo.CreateAllocationPlan(plan); err != nil {
					slog.Error("无法插入分组计划", slog.String("error", err.Error()))
					continue
				}

				cnt--
			}

			slog.Info("插入分组计划成功", slog.Int("count", n-cnt))
		}
	case 3, 4:
		if planID <= 0 {
			slog.Error("请输入合法的分组计划 ID")
			return
		}

		if op == 3 {
			err = seed.SeedRandomRespondents(repo, rng, planID, opts)
		} else {
			if in == "" {
				slog.Error("请通过 -in 指定问卷表格")
				return
			}
			err = seed.SeedResponsesFromCSV(repo, planID, in)
		}

		if err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows):
				slog.Error("指定的分组计划不存在", slog.Int64("plan_id", planID))
			default:
				slog.Error("插入问卷失败", slog.String("error", err.Error()))
			}
		}
	default:
		slog.Error("指定的操作非法")
	}
}
