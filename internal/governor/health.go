package governor

// Health score weights. The score is observability-only and never gates
// correctness.
const (
	weightFrameRate = 0.40
	weightErrorRate = 0.30
	weightMemory    = 0.20
	weightStreak    = 0.10

	// streakSaturation is the success streak at which the streak term
	// maxes out (one second of clean ticks at 60 Hz).
	streakSaturation = 60
)

// HealthInput is the raw material for a health score.
type HealthInput struct {
	// AchievedFrameRatio is achieved FPS over target FPS, clamped to [0,1].
	AchievedFrameRatio float64
	// ErrorRate is failed ticks over total ticks in the window, [0,1].
	ErrorRate float64
	// MemoryPressure is 0 nominal, 0.5 moderate, 1 severe.
	MemoryPressure float64
	// SuccessStreak is the current run of consecutive clean ticks.
	SuccessStreak uint64
}

// HealthScore derives the weighted health score in [0,1].
func HealthScore(in HealthInput) float64 {
	clamp := func(v float64) float64 {
		if v < 0 {
			return 0
		}
		if v > 1 {
			return 1
		}
		return v
	}

	streak := float64(in.SuccessStreak) / streakSaturation
	if streak > 1 {
		streak = 1
	}

	return weightFrameRate*clamp(in.AchievedFrameRatio) +
		weightErrorRate*(1-clamp(in.ErrorRate)) +
		weightMemory*(1-clamp(in.MemoryPressure)) +
		weightStreak*streak
}

// PressureToMemoryScore maps a pressure level onto the health input scale.
func PressureToMemoryScore(level PressureLevel) float64 {
	switch level {
	case PressureSevere:
		return 1
	case PressureModerate:
		return 0.5
	default:
		return 0
	}
}
