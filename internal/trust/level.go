package trust

import "strconv"

// Level is a disclosure band derived from a trust score.
type Level int

const (
	LevelHidden Level = iota
	LevelQuarter
	LevelHalf
	LevelThreeQuarters
	LevelFull
)

// levelThresholds are inclusive lower bounds, highest first.
var levelThresholds = []struct {
	min   int
	level Level
}{
	{100, LevelFull},
	{75, LevelThreeQuarters},
	{50, LevelHalf},
	{25, LevelQuarter},
}

var levelFractions = [...]float64{0, 0.25, 0.5, 0.75, 1.0}

// LevelFromScore maps a trust score to its disclosure level. It is a step
// function: the highest threshold the score reaches wins.
func LevelFromScore(score int) Level {
	for _, th := range levelThresholds {
		if score >= th.min {
			return th.level
		}
	}
	return LevelHidden
}

// Fraction returns the share of the image revealed at this level.
func (l Level) Fraction() float64 {
	if l < LevelHidden || l > LevelFull {
		return 0
	}
	return levelFractions[l]
}

// Percent returns the fraction as a whole percentage.
func (l Level) Percent() int {
	return int(l.Fraction() * 100)
}

// Label renders the level the way the trust badge shows it, e.g. "75%".
func (l Level) Label() string {
	return strconv.Itoa(l.Percent()) + "%"
}
