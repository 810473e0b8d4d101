// Package progression awards experience and currency for answered rounds.
package progression

import (
	"math"
	"math/rand/v2"
)

const (
	MaxLevel = 100

	xpCorrect       = 50
	xpIncorrect     = 10
	xpSpeedBonus    = 15
	speedBonusUnder = 5.0

	goldPerLevel     = 100
	goldCorrectMin   = 10
	goldCorrectRange = 20

	milestoneEvery    = 10
	milestoneDiamonds = 5
	milestoneRubies   = 1
)

type Stats struct {
	Level    int `json:"level" redis:"level"`
	XP       int `json:"xp" redis:"xp"`
	Gold     int `json:"gold" redis:"gold"`
	Diamonds int `json:"diamonds" redis:"diamonds"`
	Rubies   int `json:"rubies" redis:"rubies"`
}

// DefaultStats is what a player starts with.
func DefaultStats() Stats {
	return Stats{Level: 1, Gold: 500, Diamonds: 50, Rubies: 10}
}

type Reward struct {
	XPGained   int
	GoldEarned int
	LeveledUp  bool
	Level      int
}

// Rules applies the XP curve. IntN supplies the random gold roll.
type Rules struct {
	IntN func(n int) int
}

func NewRules() Rules { return Rules{IntN: rand.IntN} }

// XPForLevel is the XP needed to go from level to level+1.
func XPForLevel(level int) int {
	if level <= 10 {
		return 100 + level*20
	}
	return int(math.Floor(150 + math.Pow(float64(level), 1.5)))
}

// TotalXPForLevel is the XP accumulated from level 1 up to level.
func TotalXPForLevel(level int) int {
	total := 0
	for i := 1; i < level; i++ {
		total += XPForLevel(i)
	}
	return total
}

// Percent is progress through the current level, capped at 100.
func Percent(s Stats) float64 {
	return math.Min(100, float64(s.XP)/float64(XPForLevel(s.Level))*100)
}

// Apply mutates s for one answer and reports what was gained.
func (r Rules) Apply(s *Stats, correct bool, latency float64) Reward {
	if s.Level < 1 {
		s.Level = 1
	}
	xp := xpIncorrect
	if correct {
		xp = xpCorrect
		if latency > 0 && latency < speedBonusUnder {
			xp += xpSpeedBonus
		}
	}
	reward := Reward{XPGained: xp, Level: s.Level}
	s.XP += xp

	for s.Level < MaxLevel && s.XP >= XPForLevel(s.Level) {
		s.XP -= XPForLevel(s.Level)
		s.Level++
		reward.LeveledUp = true
		reward.Level = s.Level
		reward.GoldEarned += goldPerLevel
		s.Gold += goldPerLevel
		if s.Level%milestoneEvery == 0 {
			s.Diamonds += milestoneDiamonds
			s.Rubies += milestoneRubies
		}
	}

	if correct {
		intn := r.IntN
		if intn == nil {
			intn = rand.IntN
		}
		gold := goldCorrectMin + intn(goldCorrectRange)
		s.Gold += gold
		reward.GoldEarned += gold
	}
	return reward
}
