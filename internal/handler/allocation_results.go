package handler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/team-allocator/backend/internal/allocator"
	"github.com/sysu-ecnc-dev/team-allocator/backend/internal/config"
	"github.com/sysu-ecnc-dev/team-allocator/backend/internal/domain"
	"github.com/sysu-ecnc-dev/team-allocator/backend/internal/utils"
)

// 所有字段都可以省略，省略时使用配置中的默认值
type generateRequest struct {
	InitialTemperature *float64 `json:"initialTemperature" validate:"omitempty,gt=0"`
	CoolingFactor      *float64 `json:"coolingFactor" validate:"omitempty,gt=0,lt=1"`
	Threshold          *float64 `json:"threshold" validate:"omitempty,gt=0"`
	PenaltyWeight      *float64 `json:"penaltyWeight" validate:"omitempty,min=0"`
	Boltzmann          *float64 `json:"boltzmann" validate:"omitempty,gt=0"`
	Seed               *int64   `json:"seed"`
	MaxIterations      *int     `json:"maxIterations" validate:"omitempty,min=0"`
	RemainderPolicy    *string  `json:"remainderPolicy" validate:"omitempty,oneof=last spread"`
}

func buildParameters(defaults config.AllocatorConfig, req generateRequest) *allocator.Parameters {
	p := defaults.Parameters()

	if req.InitialTemperature != nil {
		p.InitialTemperature = *req.InitialTemperature
	}
	if req.CoolingFactor != nil {
		p.CoolingFactor = *req.CoolingFactor
	}
	if req.Threshold != nil {
		p.Threshold = *req.Threshold
	}
	if req.PenaltyWeight != nil {
		p.PenaltyWeight = *req.PenaltyWeight
	}
	if req.Boltzmann != nil {
		p.Boltzmann = *req.Boltzmann
	}
	if req.Seed != nil {
		seed := *req.Seed
		p.Seed = &seed
	}
	if req.MaxIterations != nil {
		p.MaxIterations = *req.MaxIterations
	}
	if req.RemainderPolicy != nil {
		p.RemainderPolicy = allocator.RemainderPolicy(*req.RemainderPolicy)
	}

	return p
}

func toDomainParameters(p *allocator.Parameters, seed int64) domain.AllocationParameters {
	policy := p.RemainderPolicy
	if policy == "" {
		policy = allocator.RemainderToLast
	}
	return domain.AllocationParameters{
		InitialTemperature: p.InitialTemperature,
		CoolingFactor:      p.CoolingFactor,
		Threshold:          p.Threshold,
		PenaltyWeight:      p.PenaltyWeight,
		Boltzmann:          p.Boltzmann,
		Seed:               &seed,
		MaxIterations:      p.MaxIterations,
		RemainderPolicy:    string(policy),
	}
}

// checkIterationBudget 拒绝迭代次数超过配置上限的参数，避免一次请求长时间占用服务
func checkIterationBudget(cfg config.AllocatorConfig, p *allocator.Parameters) error {
	if budget := p.IterationBudget(); budget > cfg.IterationLimit {
		return fmt.Errorf("参数对应的迭代次数 %d 超过上限 %d，请调整温度参数或设置 maxIterations", budget, cfg.IterationLimit)
	}
	return nil
}

// shouldRecordTrajectory 判断本次运行是否保存退火轨迹
func shouldRecordTrajectory(cfg config.AllocatorConfig, p *allocator.Parameters) bool {
	return cfg.RecordTrajectory && p.IterationBudget() <= cfg.TrajectoryLimit
}

// 只有持有锁的那次请求才能释放锁
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func allocationLockKey(planID int64) string {
	return fmt.Sprintf("allocation_lock_%d", planID)
}

// acquireAllocationLock 保证同一个计划同时只有一次退火在进行
func (h *Handler) acquireAllocationLock(planID int64, token string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(h.config.Redis.OperationExpiration)*time.Second)
	defer cancel()

	expiration := time.Duration(h.config.Allocator.LockExpiration) * time.Second
	return h.redisClient.SetNX(ctx, allocationLockKey(planID), token, expiration).Result()
}

func (h *Handler) releaseAllocationLock(planID int64, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(h.config.Redis.OperationExpiration)*time.Second)
	defer cancel()

	if err := releaseLockScript.Run(ctx, h.redisClient, []string{allocationLockKey(planID)}, token).Err(); err != nil {
		slog.Error("释放分组锁失败", "plan_id", planID, "error", err)
	}
}

func (h *Handler) GenerateAllocationResult(w http.ResponseWriter, r *http.Request) {
	plan := r.Context().Value(AllocationPlanCtx).(*domain.AllocationPlan)

	var req generateRequest
	if err := h.readOptionalJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	parameters := buildParameters(h.config.Allocator, req)
	if err := parameters.Validate(); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := checkIterationBudget(h.config.Allocator, parameters); err != nil {
		h.badRequest(w, r, err)
		return
	}

	runID := uuid.New()

	locked, err := h.acquireAllocationLock(plan.ID, runID.String())
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	if !locked {
		h.metrics.ObserveLockConflict()
		h.errorResponse(w, r, "该计划正在生成分组，请稍后再试")
		return
	}
	defer h.releaseAllocationLock(plan.ID, runID.String())

	respondents, err := h.repository.GetRespondentsByPlanID(plan.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	prefs, err := allocator.NewPreferences(respondents, plan.GroupRefs())
	if err != nil {
		h.metrics.ObserveFailure()
		if errors.Is(err, allocator.ErrValidation) {
			h.badRequest(w, r, err)
			return
		}
		h.internalServerError(w, r, err)
		return
	}

	logger := slog.Default().With(slog.Int64("plan_id", plan.ID), slog.String("run_id", runID.String()))
	opts := []allocator.Option{allocator.WithLogger(logger)}

	var recorder *allocator.TrajectoryRecorder
	if shouldRecordTrajectory(h.config.Allocator, parameters) {
		recorder = allocator.NewTrajectoryRecorder(parameters.IterationBudget())
		opts = append(opts, allocator.WithTrajectorySink(recorder))
	}

	annealer, err := allocator.New(parameters, prefs, opts...)
	if err != nil {
		h.metrics.ObserveFailure()
		h.badRequest(w, r, err)
		return
	}

	start := time.Now()
	res, err := annealer.Run()
	if err != nil {
		h.metrics.ObserveFailure()
		h.internalServerError(w, r, err)
		return
	}
	h.metrics.ObserveRun(strconv.FormatInt(plan.ID, 10), time.Since(start), res.Iterations, res.AcceptedMoves, res.Heuristic, res.Violations)

	result := &domain.AllocationResult{
		PlanID:           plan.ID,
		RunID:            runID.String(),
		Heuristic:        res.Heuristic,
		TotalRating:      res.TotalRating,
		Violations:       res.Violations,
		InitialHeuristic: res.InitialHeuristic,
		Iterations:       res.Iterations,
		AcceptedMoves:    res.AcceptedMoves,
		Parameters:       toDomainParameters(parameters, res.Seed),
		Items:            res.Items(),
	}
	if recorder != nil {
		result.Trajectory = recorder.Points
	}

	if err := utils.ValidateAllocationResultWithPlan(result, plan, respondents); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	if err := h.repository.InsertAllocationResult(result); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "生成分组成功", newAllocationView(result, plan, respondents))
}

type allocationGroupView struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	Members   []string `json:"members"`
	MemberIDs []int64  `json:"memberIDs"` // 与 Members 一一对应
}

type allocationView struct {
	*domain.AllocationResult
	Groups []allocationGroupView `json:"groups"`
	Stale  bool                  `json:"stale"` // 生成之后问卷发生过变化
}

func newAllocationView(result *domain.AllocationResult, plan *domain.AllocationPlan, respondents []*domain.Respondent) *allocationView {
	names := make(map[int64]string, len(respondents))
	for _, respondent := range respondents {
		names[respondent.ID] = respondent.Name
	}

	members := make(map[int64][]string, len(plan.Groups))
	memberIDs := make(map[int64][]int64, len(plan.Groups))
	for _, item := range result.Items {
		if name, ok := names[item.RespondentID]; ok {
			members[item.GroupID] = append(members[item.GroupID], name)
			memberIDs[item.GroupID] = append(memberIDs[item.GroupID], item.RespondentID)
		}
	}

	view := &allocationView{
		AllocationResult: result,
		Groups:           make([]allocationGroupView, len(plan.Groups)),
		Stale:            utils.ValidateAllocationResultWithPlan(result, plan, respondents) != nil,
	}
	for i, group := range plan.Groups {
		view.Groups[i] = allocationGroupView{
			ID:        group.ID,
			Name:      group.Name,
			Members:   members[group.ID],
			MemberIDs: memberIDs[group.ID],
		}
		if view.Groups[i].Members == nil {
			view.Groups[i].Members = make([]string, 0)
			view.Groups[i].MemberIDs = make([]int64, 0)
		}
	}

	return view
}

func (h *Handler) GetAllocationResult(w http.ResponseWriter, r *http.Request) {
	plan := r.Context().Value(AllocationPlanCtx).(*domain.AllocationPlan)

	result, err := h.repository.GetAllocationResultByPlanID(plan.ID)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.successResponse(w, r, "该计划还没有分组结果", nil)
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	respondents, err := h.repository.GetRespondentsByPlanID(plan.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取分组结果成功", newAllocationView(result, plan, respondents))
}

// resultMails 为每个留了邮箱的人生成一封通知邮件
func resultMails(view *allocationView, plan *domain.AllocationPlan, respondents []*domain.Respondent) []domain.MailMessage {
	groupOf := make(map[int64]int64, len(view.Items))
	for _, item := range view.Items {
		groupOf[item.RespondentID] = item.GroupID
	}

	groups := make(map[int64]allocationGroupView, len(view.Groups))
	for _, group := range view.Groups {
		groups[group.ID] = group
	}

	mails := make([]domain.MailMessage, 0, len(respondents))
	for _, respondent := range respondents {
		if respondent.Email == "" {
			continue
		}
		group := groups[groupOf[respondent.ID]]

		teammates := make([]string, 0, len(group.Members))
		for i, id := range group.MemberIDs {
			if id != respondent.ID {
				teammates = append(teammates, group.Members[i])
			}
		}

		mails = append(mails, domain.MailMessage{
			Type: MailTypeAllocationResult,
			To:   respondent.Email,
			Data: domain.AllocationResultMailData{
				Name:      respondent.Name,
				PlanName:  plan.Name,
				GroupName: group.Name,
				Teammates: teammates,
			},
		})
	}

	return mails
}

func (h *Handler) PublishAllocationResult(w http.ResponseWriter, r *http.Request) {
	plan := r.Context().Value(AllocationPlanCtx).(*domain.AllocationPlan)

	result, err := h.repository.GetAllocationResultByPlanID(plan.ID)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "该计划还没有分组结果")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	respondents, err := h.repository.GetRespondentsByPlanID(plan.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	view := newAllocationView(result, plan, respondents)
	if view.Stale {
		h.errorResponse(w, r, "分组结果已过期，请重新生成")
		return
	}

	mails := resultMails(view, plan, respondents)
	for _, mail := range mails {
		if err := h.publishMail(mail); err != nil {
			h.internalServerError(w, r, err)
			return
		}
	}

	if err := h.repository.MarkAllocationResultPublished(result); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "发布分组结果失败，请重试")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	slog.Info("已发布分组结果", slog.Int64("plan_id", plan.ID), slog.Int("mails", len(mails)))
	h.successResponse(w, r, fmt.Sprintf("已向 %d 人发送分组结果", len(mails)), view)
}
