package allocator

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/sysu-ecnc-dev/team-allocator/backend/internal/domain"
)

// TrajectorySink 接收每次迭代后的 (当前值, 最优值)
type TrajectorySink interface {
	Record(point domain.TrajectoryPoint)
}

type SinkFunc func(point domain.TrajectoryPoint)

func (f SinkFunc) Record(point domain.TrajectoryPoint) {
	f(point)
}

// 预先分配的点数上限，更长的轨迹在 append 时按需增长
const maxRecorderPrealloc = 1 << 16

// TrajectoryRecorder 把所有点保存在内存中
type TrajectoryRecorder struct {
	Points []domain.TrajectoryPoint
}

func NewTrajectoryRecorder(capacity int) *TrajectoryRecorder {
	return &TrajectoryRecorder{
		Points: make([]domain.TrajectoryPoint, 0, min(max(capacity, 0), maxRecorderPrealloc)),
	}
}

func (r *TrajectoryRecorder) Record(point domain.TrajectoryPoint) {
	r.Points = append(r.Points, point)
}

// WriteTrajectoryCSV 输出 iteration,temperature,current,best 四列，用于画退火曲线
func WriteTrajectoryCSV(w io.Writer, points []domain.TrajectoryPoint) error {
	writer := csv.NewWriter(w)

	if err := writer.Write([]string{"iteration", "temperature", "current", "best"}); err != nil {
		return err
	}

	for _, point := range points {
		row := []string{
			strconv.Itoa(point.Iteration),
			strconv.FormatFloat(point.Temperature, 'g', -1, 64),
			strconv.FormatFloat(point.Current, 'f', -1, 64),
			strconv.FormatFloat(point.Best, 'f', -1, 64),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
