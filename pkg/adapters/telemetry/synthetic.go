package telemetry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/autonoma-fleet/autonoma/pkg/domain"
)

// Synthetic generates plausible readings around a healthy baseline, with
// an occasional thermal or vibration excursion.
type Synthetic struct {
	interval    time.Duration
	seed        uint64
	anomalyRate float64
}

type SyntheticOption func(*Synthetic)

// WithSeed makes the sequence reproducible.
func WithSeed(seed uint64) SyntheticOption {
	return func(s *Synthetic) { s.seed = seed }
}

// WithAnomalyRate sets the probability of an excursion per sample.
func WithAnomalyRate(p float64) SyntheticOption {
	return func(s *Synthetic) { s.anomalyRate = p }
}

func NewSynthetic(interval time.Duration, opts ...SyntheticOption) *Synthetic {
	s := &Synthetic{interval: interval, seed: uint64(time.Now().UnixNano()), anomalyRate: 0.1}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stream starts a fresh sequence from the configured seed.
func (s *Synthetic) Stream(ctx context.Context) <-chan domain.Sample {
	rng := rand.New(rand.NewPCG(s.seed, s.seed>>1|1))
	return tick(ctx, s.interval, func() domain.Sample {
		sample := domain.Sample{
			domain.SensorBatteryTemperature: round1(28 + rng.NormFloat64()*4),
			domain.SensorVibrationLevel:     round1(1.5 + math.Abs(rng.NormFloat64())),
			domain.SensorMotorRPM:           math.Round(3000 + rng.NormFloat64()*600),
			domain.SensorVelocity:           round1(60 + rng.NormFloat64()*15),
		}
		if rng.Float64() < s.anomalyRate {
			if rng.IntN(2) == 0 {
				sample[domain.SensorBatteryTemperature] = round1(50 + rng.Float64()*25)
			} else {
				sample[domain.SensorVibrationLevel] = round1(5.5 + rng.Float64()*3)
			}
		}
		return sample
	})
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
