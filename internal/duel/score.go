package duel

import "math"

const basePoints = 100

// Score returns the points for one answer: nothing when wrong, otherwise
// the base plus one point per whole second left on the clock.
func Score(isCorrect bool, timeLimit int, latency float64) int {
	if !isCorrect {
		return 0
	}
	bonus := float64(timeLimit) - latency
	if bonus < 0 || math.IsNaN(bonus) {
		bonus = 0
	}
	return basePoints + int(bonus)
}
