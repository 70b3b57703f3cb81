package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/team-allocator/backend/internal/domain"
	"github.com/sysu-ecnc-dev/team-allocator/backend/internal/utils"
)

func (h *Handler) CreateAllocationPlan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string   `json:"name" validate:"required"`
		Description string   `json:"description"`
		Groups      []string `json:"groups" validate:"required,min=1,dive,required"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	plan := &domain.AllocationPlan{
		Name:        req.Name,
		Description: req.Description,
		Groups:      make([]domain.Group, len(req.Groups)),
	}
	for i, name := range req.Groups {
		plan.Groups[i] = domain.Group{Name: name}
	}

	if err := utils.ValidatePlanGroups(plan); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := h.repository.CreateAllocationPlan(plan); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == "allocation_plans_name_key" {
			h.badRequest(w, r, errors.New("分组计划名称已存在"))
			return
		}
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "创建分组计划成功", plan)
}

func (h *Handler) GetAllAllocationPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.repository.GetAllAllocationPlans()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取分组计划列表成功", plans)
}

func (h *Handler) GetAllocationPlan(w http.ResponseWriter, r *http.Request) {
	plan := r.Context().Value(AllocationPlanCtx).(*domain.AllocationPlan)
	h.successResponse(w, r, "获取分组计划成功", plan)
}

func (h *Handler) UpdateAllocationPlan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        *string `json:"name" validate:"omitempty,min=1"`
		Description *string `json:"description"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	plan := r.Context().Value(AllocationPlanCtx).(*domain.AllocationPlan)

	if req.Name != nil {
		plan.Name = *req.Name
	}
	if req.Description != nil {
		plan.Description = *req.Description
	}

	if err := h.repository.UpdateAllocationPlan(plan); err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr) && pgErr.ConstraintName == "allocation_plans_name_key":
			h.badRequest(w, r, errors.New("分组计划名称已存在"))
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "更新分组计划失败，请重试")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "更新分组计划成功", plan)
}

func (h *Handler) DeleteAllocationPlan(w http.ResponseWriter, r *http.Request) {
	plan := r.Context().Value(AllocationPlanCtx).(*domain.AllocationPlan)

	if err := h.repository.DeleteAllocationPlan(plan.ID); err != nil {
		h.internalServerError(w, r, err)
		return
	}
	h.metrics.ForgetPlan(strconv.FormatInt(plan.ID, 10))

	h.successResponse(w, r, "删除分组计划成功", nil)
}
