package visit

// Authenticity score bounds and adjustment rules. The score moves only
// through InitialScore at record creation and BehaviorBonus when the
// behavior beacon arrives; nothing else may set it.
const (
	ScoreFloor   = 0.0
	ScoreCeiling = 100.0

	headlessPenalty = 30.0

	// Behavioral thresholds: dwell longer than three seconds or scrolling
	// past ten percent of the page each earn a flat bonus.
	stayThresholdSeconds = 3
	scrollThresholdPct   = 10
	behaviorBonusStep    = 10.0
)

// InitialScore derives the creation-time authenticity score from the
// fingerprint quality score, penalizing flagged headless browsers. The
// penalty is applied only here; a headless visit can never recover it
// through later behavioral signals.
func InitialScore(quality int, headless bool) float64 {
	score := float64(quality)
	if headless {
		score -= headlessPenalty
	}
	if score < ScoreFloor {
		return ScoreFloor
	}
	return score
}

// BehaviorBonus returns the additive adjustment earned by dwell time and
// scroll depth.
func BehaviorBonus(stayDuration, scrollDepth int) float64 {
	bonus := 0.0
	if stayDuration > stayThresholdSeconds {
		bonus += behaviorBonusStep
	}
	if scrollDepth > scrollThresholdPct {
		bonus += behaviorBonusStep
	}
	return bonus
}

// ApplyBonus adds bonus to score, clamped to the ceiling.
func ApplyBonus(score, bonus float64) float64 {
	score += bonus
	if score > ScoreCeiling {
		return ScoreCeiling
	}
	return score
}
