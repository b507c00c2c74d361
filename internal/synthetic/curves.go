package synthetic

import (
	"math"
	"math/rand/v2"

	"github.com/sebbywestside/exercise-monitoring-vest/internal/domain"
)

// Rand is the subset of *math/rand/v2.Rand the curves draw from.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// NewRand returns a PCG source seeded with seed.
func NewRand(seed uint64) Rand {
	return rand.New(rand.NewPCG(seed, 0x5eed))
}

// PhaseAt returns the phase for elapsed seconds.
func (p Profile) PhaseAt(elapsed int) domain.Phase {
	switch {
	case elapsed < p.RestEnd:
		return domain.PhaseRest
	case elapsed < p.WarmUpEnd:
		return domain.PhaseWarmUp
	case elapsed < p.ExerciseEnd:
		return domain.PhaseExercise
	case elapsed < p.CoolDownEnd:
		return domain.PhaseCoolDown
	default:
		return domain.PhaseRecovery
	}
}

// SweatAt returns the sweat level for elapsed seconds. Sweat lags heart rate.
func (p Profile) SweatAt(elapsed int) int {
	for _, step := range p.Sweat {
		if elapsed < step.Before {
			return step.Level
		}
	}
	return p.SweatFinal
}

// Activity returns the activity level in roughly [0,1] for elapsed seconds.
// Exercise and recovery draw from rng; the ramps are deterministic.
func (p Profile) Activity(elapsed int, rng Rand) float64 {
	e := float64(elapsed)
	switch p.PhaseAt(elapsed) {
	case domain.PhaseRest:
		return 0
	case domain.PhaseWarmUp:
		return (e - float64(p.RestEnd)) / float64(p.WarmUpEnd-p.RestEnd)
	case domain.PhaseExercise:
		return p.Exercise.Min + rng.Float64()*p.Exercise.Spread
	case domain.PhaseCoolDown:
		return 1 - (e-float64(p.ExerciseEnd))/float64(p.CoolDownEnd-p.ExerciseEnd)
	default:
		return p.Recovery.Min + rng.Float64()*p.Recovery.Spread
	}
}

// Vitals computes one synthetic reading. It depends only on its arguments.
func Vitals(elapsed int, rng Rand, p Profile) domain.Reading {
	activity := p.Activity(elapsed, rng)

	hr := int(p.HR.Base + p.HR.Range*activity)
	hr += jitter(rng, p.HR.Jitter)
	hr += int(math.Sin(float64(elapsed)*p.BreathFrequency) * p.BreathAmplitude)

	rr := int(p.RR.Base + p.RR.Range*activity)
	rr += jitter(rng, p.RR.Jitter)

	e := elapsed
	return domain.Reading{
		HR:      clamp(hr, p.HR.Min, p.HR.Max),
		RR:      clamp(rr, p.RR.Min, p.RR.Max),
		Sweat:   p.SweatAt(elapsed),
		LeadOff: rng.Float64() < p.LeadOffProbability,
		Elapsed: &e,
		Phase:   p.PhaseAt(elapsed),
	}
}

// jitter returns a uniform integer in [-n, n].
func jitter(rng Rand, n int) int {
	if n <= 0 {
		return 0
	}
	return rng.IntN(2*n+1) - n
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}
