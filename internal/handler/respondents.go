package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/team-allocator/backend/internal/domain"
	"github.com/sysu-ecnc-dev/team-allocator/backend/internal/utils"
)

func (h *Handler) GetRespondents(w http.ResponseWriter, r *http.Request) {
	plan := r.Context().Value(AllocationPlanCtx).(*domain.AllocationPlan)

	respondents, err := h.repository.GetRespondentsByPlanID(plan.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取问卷列表成功", respondents)
}

func (h *Handler) GetRespondent(w http.ResponseWriter, r *http.Request) {
	respondent := r.Context().Value(RespondentCtx).(*domain.Respondent)
	h.successResponse(w, r, "获取问卷成功", respondent)
}

func (h *Handler) SubmitRespondent(w http.ResponseWriter, r *http.Request) {
	plan := r.Context().Value(AllocationPlanCtx).(*domain.AllocationPlan)

	var req struct {
		Name    string `json:"name" validate:"required"`
		Email   string `json:"email" validate:"omitempty,email"`
		Ratings []struct {
			GroupID int64 `json:"groupID" validate:"required"`
			Rating  int32 `json:"rating"`
		} `json:"ratings" validate:"required,min=1,dive"`
		Exclusions []int64 `json:"exclusions" validate:"omitempty,unique"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	respondent := &domain.Respondent{
		PlanID:     plan.ID,
		Name:       req.Name,
		Email:      req.Email,
		Ratings:    make([]domain.RespondentRating, len(req.Ratings)),
		Exclusions: req.Exclusions,
	}
	for i, rating := range req.Ratings {
		respondent.Ratings[i] = domain.RespondentRating{GroupID: rating.GroupID, Rating: rating.Rating}
	}
	if respondent.Exclusions == nil {
		respondent.Exclusions = make([]int64, 0)
	}

	// 排斥的对象只能是已经提交过问卷的人
	others, err := h.repository.GetRespondentsByPlanID(plan.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	if err := utils.ValidateRespondentWithPlan(respondent, plan, others); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := h.repository.CreateRespondent(respondent); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == "respondents_plan_id_name_key" {
			h.badRequest(w, r, errors.New("该计划中已经存在同名的问卷"))
			return
		}
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "提交问卷成功", respondent)
}

// UpdateRespondentExclusions 覆盖排斥列表，用于补充提交问卷时还不存在的人
func (h *Handler) UpdateRespondentExclusions(w http.ResponseWriter, r *http.Request) {
	plan := r.Context().Value(AllocationPlanCtx).(*domain.AllocationPlan)
	respondent := r.Context().Value(RespondentCtx).(*domain.Respondent)

	var req struct {
		Exclusions []int64 `json:"exclusions" validate:"unique"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	others, err := h.repository.GetRespondentsByPlanID(plan.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	respondent.Exclusions = req.Exclusions
	if respondent.Exclusions == nil {
		respondent.Exclusions = make([]int64, 0)
	}

	if err := utils.ValidateRespondentWithPlan(respondent, plan, others); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := h.repository.ReplaceRespondentExclusions(respondent); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "更新排斥列表失败，请重试")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "更新排斥列表成功", respondent)
}

func (h *Handler) DeleteRespondent(w http.ResponseWriter, r *http.Request) {
	respondent := r.Context().Value(RespondentCtx).(*domain.Respondent)

	if err := h.repository.DeleteRespondent(respondent.ID); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "删除问卷成功", nil)
}
