package allocator

import (
	"errors"
	"math"
)

// RemainderPolicy 决定人数不能被组数整除时多出来的人放在哪里
type RemainderPolicy string

const (
	RemainderToLast RemainderPolicy = "last"   // 余数全部放到最后一个组
	RemainderSpread RemainderPolicy = "spread" // 前 n mod g 个组各多一人
)

// 模拟退火参数
type Parameters struct {
	InitialTemperature float64         // 初始温度 T0
	CoolingFactor      float64         // 冷却系数 alpha，取值 (0, 1)
	Threshold          float64         // 温度降到该值及以下时停止
	PenaltyWeight      float64         // 每次违反排斥关系的惩罚
	Boltzmann          float64         // 接受概率指数中的缩放常数 k
	Seed               *int64          // 为 nil 时使用当前时间作为种子
	MaxIterations      int             // 迭代次数上限，0 表示不限制
	RemainderPolicy    RemainderPolicy // 初始划分的余数策略
}

func DefaultParameters() *Parameters {
	return &Parameters{
		InitialTemperature: 1.0,
		CoolingFactor:      0.99,
		Threshold:          0.001,
		PenaltyWeight:      100,
		Boltzmann:          20,
		RemainderPolicy:    RemainderToLast,
	}
}

func (p *Parameters) Validate() error {
	switch {
	case !(p.InitialTemperature > 0) || math.IsInf(p.InitialTemperature, 0):
		return errors.New("初始温度必须是正数")
	case !(p.CoolingFactor > 0 && p.CoolingFactor < 1):
		return errors.New("冷却系数必须在 (0, 1) 之间")
	case !(p.Threshold > 0):
		return errors.New("终止温度必须是正数")
	case !(p.PenaltyWeight >= 0) || math.IsInf(p.PenaltyWeight, 0):
		return errors.New("惩罚权重不能为负数")
	case !(p.Boltzmann > 0) || math.IsInf(p.Boltzmann, 0):
		return errors.New("缩放常数 k 必须是正数")
	case p.MaxIterations < 0:
		return errors.New("迭代次数上限不能为负数")
	}

	switch p.RemainderPolicy {
	case "", RemainderToLast, RemainderSpread:
	default:
		return errors.New("未知的余数策略")
	}

	return nil
}

// IterationSaturation 是 ExpectedIterations 能返回的最大值，超过时直接饱和
const IterationSaturation = 1 << 40

// ExpectedIterations 返回只由温度阈值决定的迭代次数 ceil(log(threshold/T0) / log(alpha))
// 参数极端时结果饱和为 IterationSaturation，不会溢出
func (p *Parameters) ExpectedIterations() int {
	if p.InitialTemperature <= p.Threshold {
		return 0
	}
	f := math.Ceil(math.Log(p.Threshold/p.InitialTemperature) / math.Log(p.CoolingFactor))
	if !(f < IterationSaturation) {
		return IterationSaturation
	}
	n := int(f)
	// 浮点误差可能让 ceil 偏差一两步，这里用实际的温度公式校正，步数有上限
	for step := 0; step < 4 && n > 0 && temperatureAt(p, n-1) <= p.Threshold; step++ {
		n--
	}
	for step := 0; step < 4 && temperatureAt(p, n) > p.Threshold; step++ {
		n++
	}
	return min(n, IterationSaturation)
}

// IterationBudget 返回一次运行最多执行的迭代次数，考虑 MaxIterations
func (p *Parameters) IterationBudget() int {
	n := p.ExpectedIterations()
	if p.MaxIterations > 0 && p.MaxIterations < n {
		return p.MaxIterations
	}
	return n
}

// 第 i 次迭代开始时的温度 T0 * alpha^i
func temperatureAt(p *Parameters, i int) float64 {
	return p.InitialTemperature * math.Pow(p.CoolingFactor, float64(i))
}

// Snapshot: 最优解的值拷贝，不会指向正在变化的 Assignment
type Snapshot struct {
	groupOf     []int
	Heuristic   float64
	TotalRating int64
	Violations  int64
	Iteration   int // 在第几次迭代后得到，-1 表示初始解
}

type Result struct {
	Assignment       map[int64]int64 // personID -> groupID
	Heuristic        float64
	TotalRating      int64
	Violations       int64
	InitialHeuristic float64
	BestIteration    int
	Iterations       int
	AcceptedMoves    int
	FinalTemperature float64
	Seed             int64

	personOrder []int64
}
