package domain

import "time"

type Group struct {
	ID     int64  `json:"id"`
	PlanID int64  `json:"planID"`
	Name   string `json:"name"`
}

// AllocationPlan: 一次分组活动，组的集合在创建后固定
type AllocationPlan struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Groups      []Group   `json:"groups"`
	CreatedAt   time.Time `json:"createdAt"`
	Version     int32     `json:"-"`
}

// GroupRefs 返回指向 Groups 中每个元素的指针，顺序不变
func (p *AllocationPlan) GroupRefs() []*Group {
	refs := make([]*Group, len(p.Groups))
	for i := range p.Groups {
		refs[i] = &p.Groups[i]
	}
	return refs
}
