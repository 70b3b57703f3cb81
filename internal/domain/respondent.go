package domain

import "time"

type RespondentRating struct {
	GroupID int64 `json:"groupID"`
	Rating  int32 `json:"rating"`
}

// Respondent: 参与分组的人以及他对每个组的评分
type Respondent struct {
	ID         int64              `json:"id"`
	PlanID     int64              `json:"planID"`
	Name       string             `json:"name"`
	Email      string             `json:"email"`
	Ratings    []RespondentRating `json:"ratings"`
	Exclusions []int64            `json:"exclusions"` // 不希望同组的其他人的 ID，有方向，不保证对方也填写了自己
	CreatedAt  time.Time          `json:"createdAt"`
	Version    int32              `json:"-"`
}
