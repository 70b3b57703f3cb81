package allocator

import (
	"github.com/sysu-ecnc-dev/team-allocator/backend/internal/domain"
)

func makeGroups(n int) []*domain.Group {
	groups := make([]*domain.Group, n)
	for i := range groups {
		groups[i] = &domain.Group{ID: int64(100 + i), Name: "group"}
	}
	return groups
}

// makeRespondents 生成 n 个人，rating(i, g) 由 rate 决定
func makeRespondents(n int, groups []*domain.Group, rate func(person, group int) int32) []*domain.Respondent {
	respondents := make([]*domain.Respondent, n)
	for i := range respondents {
		r := &domain.Respondent{ID: int64(i + 1)}
		for g, group := range groups {
			r.Ratings = append(r.Ratings, domain.RespondentRating{GroupID: group.ID, Rating: rate(i, g)})
		}
		respondents[i] = r
	}
	return respondents
}

func seed(v int64) *int64 {
	return &v
}
