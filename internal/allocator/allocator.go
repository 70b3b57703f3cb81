package allocator

import (
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/sysu-ecnc-dev/team-allocator/backend/internal/domain"
	"github.com/sysu-ecnc-dev/team-allocator/backend/internal/utils"
)

type State int

const (
	StateRunning State = iota
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

type Option func(*Annealer)

func WithTrajectorySink(sink TrajectorySink) Option {
	return func(a *Annealer) {
		a.sink = sink
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Annealer) {
		a.logger = logger
	}
}

// WithInitialAssignment 从给定的划分开始退火，而不是随机生成
func WithInitialAssignment(mapping map[int64]int64) Option {
	return func(a *Annealer) {
		a.initial = mapping
	}
}

// Annealer 独占一个 Assignment，单线程执行一次模拟退火
type Annealer struct {
	parameters *Parameters
	prefs      *Preferences
	rng        *rand.Rand
	seed       int64
	sink       TrajectorySink
	logger     *slog.Logger
	initial    map[int64]int64

	state   State
	current *Assignment
	best    *Snapshot // nil 表示还没有观察到任何解
}

func New(parameters *Parameters, prefs *Preferences, opts ...Option) (*Annealer, error) {
	if err := parameters.Validate(); err != nil {
		return nil, err
	}

	seed := time.Now().UnixNano()
	if parameters.Seed != nil {
		seed = *parameters.Seed
	}

	a := &Annealer{
		parameters: parameters,
		prefs:      prefs,
		rng:        newRand(seed),
		seed:       seed,
		logger:     slog.Default(),
		state:      StateRunning,
	}

	for _, opt := range opts {
		opt(a)
	}

	var err error
	if a.initial != nil {
		a.current, err = NewAssignment(prefs, a.initial, parameters.PenaltyWeight)
	} else {
		a.current, err = NewRandomBalancedAssignment(prefs, a.rng, parameters.PenaltyWeight, parameters.RemainderPolicy)
	}
	if err != nil {
		return nil, err
	}

	return a, nil
}

// 每个 Annealer 使用自己的随机数源，相同的种子和输入得到完全相同的结果
func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
}

func (a *Annealer) State() State {
	return a.state
}

func (a *Annealer) Seed() int64 {
	return a.seed
}

// Current 返回当前工作解的拷贝
func (a *Annealer) Current() *Assignment {
	return a.current.Clone()
}

func (a *Annealer) Run() (*Result, error) {
	if a.state == StateTerminated {
		return nil, ErrTerminated
	}

	p := a.parameters
	n := a.prefs.PersonCount()
	start := time.Now()

	a.logger.Info("开始模拟退火",
		slog.Int("persons", n),
		slog.Int("groups", a.prefs.GroupCount()),
		slog.Int64("seed", a.seed),
		slog.Float64("initial_temperature", p.InitialTemperature),
		slog.Float64("cooling_factor", p.CoolingFactor),
	)

	// 初始解作为第一个观察到的解
	initialHeuristic := a.current.Heuristic()
	a.observe(-1)

	iteration := 0
	accepted := 0
	temperature := p.InitialTemperature

	for temperature > p.Threshold {
		if p.MaxIterations > 0 && iteration >= p.MaxIterations {
			break
		}

		// 可放回地抽两个人，抽到同一个人时是一次无操作的迭代
		i := a.rng.IntN(n)
		j := a.rng.IntN(n)

		candidate := a.current.evaluate(i, j)
		delta := candidate - a.current.Heuristic()

		ok := Accept(delta, temperature, p.Boltzmann, a.rng.Float64())
		if ok {
			a.current.swap(i, j)
			accepted++
			if candidate > a.best.Heuristic {
				a.observe(iteration)
			}
		}

		if a.sink != nil {
			a.sink.Record(domain.TrajectoryPoint{
				Iteration:   iteration,
				Temperature: temperature,
				Current:     a.current.Heuristic(),
				Best:        a.best.Heuristic,
				Accepted:    ok,
			})
		}

		iteration++
		temperature = temperatureAt(p, iteration)
	}

	a.state = StateTerminated

	result := &Result{
		Assignment:       a.prefs.mapping(a.best.groupOf),
		Heuristic:        a.best.Heuristic,
		TotalRating:      a.best.TotalRating,
		Violations:       a.best.Violations,
		InitialHeuristic: initialHeuristic,
		BestIteration:    a.best.Iteration,
		Iterations:       iteration,
		AcceptedMoves:    accepted,
		FinalTemperature: temperature,
		Seed:             a.seed,
		personOrder:      a.prefs.PersonIDs(),
	}

	// 返回之前确认每个人都恰好被分到一个存在的组
	if err := utils.ValidateAllocationItems(result.Items(), a.prefs.PersonIDs(), a.prefs.GroupIDs()); err != nil {
		return nil, err
	}

	a.logger.Info("模拟退火结束",
		slog.Float64("heuristic", result.Heuristic),
		slog.Float64("initial_heuristic", initialHeuristic),
		slog.Int("iterations", iteration),
		slog.Int("accepted", accepted),
		slog.Duration("duration", time.Since(start)),
	)

	return result, nil
}

// observe 在当前解严格优于已知最优解（或还没有最优解）时保存一份值拷贝
func (a *Annealer) observe(iteration int) {
	h := a.current.Heuristic()
	if a.best != nil && h <= a.best.Heuristic {
		return
	}
	a.best = a.current.snapshot(iteration)
}

// Items 按偏好表中人员的顺序返回分组结果
func (r *Result) Items() []domain.AllocationResultItem {
	items := make([]domain.AllocationResultItem, 0, len(r.Assignment))
	for _, personID := range r.personOrder {
		items = append(items, domain.AllocationResultItem{
			RespondentID: personID,
			GroupID:      r.Assignment[personID],
		})
	}
	return items
}
