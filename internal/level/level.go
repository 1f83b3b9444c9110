// Package level implements the experience and level progression rules.
// All functions are pure; callers persist the results.
package level

import "math"

const (
	baseExp    = 100
	multiplier = 1.5
)

// Result is the outcome of applying an experience award.
type Result struct {
	CurrentExp int
	MaxExp     int
	Level      int
	LeveledUp  bool
}

// Progress describes how far a task has advanced toward a target level.
type Progress struct {
	Percentage   float64
	RemainingExp int
}

// ExpForLevel returns the experience needed to advance from level to level+1.
// Level 1 requires exactly 100; each level multiplies the requirement by 1.5,
// floored to an integer.
func ExpForLevel(level int) int {
	return int(math.Floor(baseExp * math.Pow(multiplier, float64(level-1))))
}

// Award adds amount to currentExp and resolves any level-ups, carrying the
// remainder forward. A single large award can cross several thresholds in one
// call. amount == 0 returns the inputs unchanged with LeveledUp false.
func Award(currentExp, maxExp, level, amount int) Result {
	r := Result{
		CurrentExp: currentExp + amount,
		MaxExp:     maxExp,
		Level:      level,
	}
	for r.CurrentExp >= r.MaxExp {
		r.CurrentExp -= r.MaxExp
		r.Level++
		r.MaxExp = ExpForLevel(r.Level)
		r.LeveledUp = true
	}
	return r
}

// TotalExpToLevel returns the cumulative experience required to reach target
// starting from level 1 with zero experience. Returns 0 for target <= 1.
func TotalExpToLevel(target int) int {
	total := 0
	for l := 1; l < target; l++ {
		total += ExpForLevel(l)
	}
	return total
}

// TotalExpEarned expresses a (level, currentExp) pair as absolute experience
// earned since level 1, comparable across levels.
func TotalExpEarned(level, currentExp int) int {
	return TotalExpToLevel(level) + currentExp
}

// ProgressToward reports progress toward an arbitrary future level, for skill
// unlock displays. At or past the target it reports 100% with nothing
// remaining.
func ProgressToward(level, currentExp, maxExp, target int) Progress {
	if level >= target {
		return Progress{Percentage: 100, RemainingExp: 0}
	}
	earned := TotalExpEarned(level, currentExp)
	required := TotalExpToLevel(target)
	pct := float64(earned) / float64(required) * 100
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	remaining := required - earned
	if remaining < 0 {
		remaining = 0
	}
	return Progress{Percentage: pct, RemainingExp: remaining}
}
