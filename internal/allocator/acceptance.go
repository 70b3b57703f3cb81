package allocator

import "math"

// Accept 使用 Metropolis 准则判断是否接受候选解
// delta > 0 时总是接受，否则以 exp(delta / (k * T)) 的概率接受，draw 为 [0, 1) 上的均匀随机数
func Accept(delta, temperature, k, draw float64) bool {
	if delta > 0 {
		return true
	}

	// 温度不为正时不再接受非改进的解，避免除零
	scale := k * temperature
	if !(temperature > 0) || !(scale > 0) {
		return false
	}

	return draw < math.Exp(delta/scale)
}
