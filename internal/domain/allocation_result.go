package domain

import "time"

type AllocationParameters struct {
	InitialTemperature float64 `json:"initialTemperature"`
	CoolingFactor      float64 `json:"coolingFactor"`
	Threshold          float64 `json:"threshold"`
	PenaltyWeight      float64 `json:"penaltyWeight"`
	Boltzmann          float64 `json:"boltzmann"`
	Seed               *int64  `json:"seed"`
	MaxIterations      int     `json:"maxIterations"`
	RemainderPolicy    string  `json:"remainderPolicy"`
}

type AllocationResultItem struct {
	RespondentID int64 `json:"respondentID"`
	GroupID      int64 `json:"groupID"`
}

type TrajectoryPoint struct {
	Iteration   int     `json:"iteration"`
	Temperature float64 `json:"temperature"`
	Current     float64 `json:"current"`
	Best        float64 `json:"best"`
	Accepted    bool    `json:"accepted"`
}

type AllocationResult struct {
	ID               int64                  `json:"id"`
	PlanID           int64                  `json:"planID"`
	RunID            string                 `json:"runID"`
	Heuristic        float64                `json:"heuristic"`
	TotalRating      int64                  `json:"totalRating"`
	Violations       int64                  `json:"violations"`
	InitialHeuristic float64                `json:"initialHeuristic"`
	Iterations       int                    `json:"iterations"`
	AcceptedMoves    int                    `json:"acceptedMoves"`
	Parameters       AllocationParameters   `json:"parameters"`
	Items            []AllocationResultItem `json:"items"`
	Trajectory       []TrajectoryPoint      `json:"trajectory,omitempty"`
	PublishedAt      *time.Time             `json:"publishedAt"`
	CreatedAt        time.Time              `json:"createdAt"`
	Version          int32                  `json:"-"`
}
