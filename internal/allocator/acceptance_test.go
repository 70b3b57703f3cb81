package allocator

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccept(t *testing.T) {
	tests := []struct {
		name        string
		delta       float64
		temperature float64
		k           float64
		draw        float64
		want        bool
	}{
		{name: "improvement", delta: 1, temperature: 1, k: 20, draw: 0.999999, want: true},
		{name: "improvement at zero temperature", delta: 0.5, temperature: 0, k: 20, draw: 0.5, want: true},
		{name: "zero delta", delta: 0, temperature: 1, k: 20, draw: 0.999999, want: true},
		{name: "worse, draw below probability", delta: -20, temperature: 1, k: 20, draw: math.Exp(-1) - 1e-9, want: true},
		{name: "worse, draw at probability", delta: -20, temperature: 1, k: 20, draw: math.Exp(-1), want: false},
		{name: "zero temperature", delta: -1, temperature: 0, k: 20, draw: 0, want: false},
		{name: "negative temperature", delta: -1, temperature: -5, k: 20, draw: 0, want: false},
		{name: "zero delta at zero temperature", delta: 0, temperature: 0, k: 20, draw: 0, want: false},
		{name: "non positive k", delta: -1, temperature: 1, k: 0, draw: 0, want: false},
		{name: "NaN temperature", delta: -1, temperature: math.NaN(), k: 20, draw: 0, want: false},
		{name: "tiny k rejects almost everything", delta: -1, temperature: 1, k: 1.380649e-23, draw: 1e-300, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Accept(tt.delta, tt.temperature, tt.k, tt.draw))
		})
	}
}

func TestAccept_PositiveDeltaAlwaysAccepted(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 10000; i++ {
		delta := rng.Float64()*100 + 1e-9
		temperature := rng.Float64()*2 - 1
		assert.True(t, Accept(delta, temperature, 20, rng.Float64()))
	}
}

func TestAccept_EmpiricalRate(t *testing.T) {
	const trials = 10000

	tests := []struct {
		delta       float64
		temperature float64
		k           float64
	}{
		{delta: -20, temperature: 1, k: 20},
		{delta: -5, temperature: 0.5, k: 20},
		{delta: -1, temperature: 0.1, k: 5},
	}

	rng := rand.New(rand.NewPCG(2024, 7))
	for _, tt := range tests {
		accepted := 0
		for i := 0; i < trials; i++ {
			if Accept(tt.delta, tt.temperature, tt.k, rng.Float64()) {
				accepted++
			}
		}

		want := math.Exp(tt.delta / (tt.k * tt.temperature))
		assert.InDelta(t, want, float64(accepted)/trials, 0.02, "delta=%v T=%v k=%v", tt.delta, tt.temperature, tt.k)
	}
}
