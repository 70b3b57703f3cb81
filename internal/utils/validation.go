package utils

import (
	"errors"
	"fmt"
	"slices"

	"github.com/sysu-ecnc-dev/team-allocator/backend/internal/domain"
)

func ValidatePlanGroups(plan *domain.AllocationPlan) error {
	if len(plan.Groups) == 0 {
		return errors.New("分组计划至少需要一个组")
	}

	seen := make(map[string]bool)
	for i, group := range plan.Groups {
		if group.Name == "" {
			return fmt.Errorf("第 %d 个组的名称为空", i+1)
		}
		if seen[group.Name] {
			return fmt.Errorf("组名 %s 重复", group.Name)
		}
		seen[group.Name] = true
	}

	return nil
}

// ValidateRespondentWithPlan 检查问卷是否和计划中的组对得上，others 为计划中已经存在的人员
func ValidateRespondentWithPlan(respondent *domain.Respondent, plan *domain.AllocationPlan, others []*domain.Respondent) error {
	if len(respondent.Ratings) != len(plan.Groups) {
		return errors.New("评分的数量和计划中组的数量不匹配")
	}

	rated := make(map[int64]bool)
	for i, rating := range respondent.Ratings {
		if !slices.ContainsFunc(plan.Groups, func(g domain.Group) bool { return g.ID == rating.GroupID }) {
			return fmt.Errorf("第 %d 项评分对应的组不属于该计划", i+1)
		}
		if rated[rating.GroupID] {
			return fmt.Errorf("对组 %d 的评分重复", rating.GroupID)
		}
		rated[rating.GroupID] = true
	}

	for _, excludedID := range respondent.Exclusions {
		if respondent.ID != 0 && excludedID == respondent.ID {
			return errors.New("不能排斥自己")
		}
		if !slices.ContainsFunc(others, func(o *domain.Respondent) bool { return o.ID == excludedID }) {
			return fmt.Errorf("排斥的人员 %d 不属于该计划", excludedID)
		}
	}

	return nil
}

// ValidateAllocationItems 检查每个人是否恰好出现一次，并且所在的组存在
func ValidateAllocationItems(items []domain.AllocationResultItem, respondentIDs []int64, groupIDs []int64) error {
	if len(items) != len(respondentIDs) {
		return fmt.Errorf("分组结果包含 %d 人，应为 %d 人", len(items), len(respondentIDs))
	}

	known := make(map[int64]bool, len(respondentIDs))
	for _, id := range respondentIDs {
		known[id] = true
	}

	seen := make(map[int64]bool, len(items))
	for _, item := range items {
		if !known[item.RespondentID] {
			return fmt.Errorf("人员 %d 不属于该计划", item.RespondentID)
		}
		if seen[item.RespondentID] {
			return fmt.Errorf("人员 %d 被重复分组", item.RespondentID)
		}
		seen[item.RespondentID] = true

		if !slices.Contains(groupIDs, item.GroupID) {
			return fmt.Errorf("人员 %d 被分到了不存在的组 %d", item.RespondentID, item.GroupID)
		}
	}

	return nil
}

func ValidateAllocationResultWithPlan(result *domain.AllocationResult, plan *domain.AllocationPlan, respondents []*domain.Respondent) error {
	respondentIDs := make([]int64, len(respondents))
	for i, respondent := range respondents {
		respondentIDs[i] = respondent.ID
	}

	groupIDs := make([]int64, len(plan.Groups))
	for i, group := range plan.Groups {
		groupIDs[i] = group.ID
	}

	return ValidateAllocationItems(result.Items, respondentIDs, groupIDs)
}
