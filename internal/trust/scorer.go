package trust

import "github.com/MikeSquared-Agency/veilmatch/internal/sentinel"

// Score bounds.
const (
	MinScore = 0
	MaxScore = 100
)

// Per-term caps applied before the terms are summed.
const (
	maxCleanGain   = 30
	maxHelpfulGain = 20
	maxPenalty     = 40
)

// ActionTally is the behavioral input to a score update.
type ActionTally struct {
	DaysClean    int `json:"days_clean"`
	HelpfulVotes int `json:"helpful_votes"`
	Reports      int `json:"reports"`
	Infractions  int `json:"infractions"`
}

// Validate rejects negative counters.
func (t ActionTally) Validate() error {
	switch {
	case t.DaysClean < 0:
		return sentinel.Invalid("days_clean", "must not be negative, got %d", t.DaysClean)
	case t.HelpfulVotes < 0:
		return sentinel.Invalid("helpful_votes", "must not be negative, got %d", t.HelpfulVotes)
	case t.Reports < 0:
		return sentinel.Invalid("reports", "must not be negative, got %d", t.Reports)
	case t.Infractions < 0:
		return sentinel.Invalid("infractions", "must not be negative, got %d", t.Infractions)
	}
	return nil
}

// ValidateScore rejects a score outside [MinScore, MaxScore].
func ValidateScore(score int) error {
	if score < MinScore || score > MaxScore {
		return sentinel.Invalid("trust_score", "must be within [%d,%d], got %d", MinScore, MaxScore, score)
	}
	return nil
}

// CleanGain returns the capped gain for days clean: one point per ten days, at most 30.
func CleanGain(daysClean int) int {
	return min(maxCleanGain, daysClean/10)
}

// HelpfulGain returns the capped gain for helpful votes: two points each, at most 20.
func HelpfulGain(helpfulVotes int) int {
	if helpfulVotes >= maxHelpfulGain/2 {
		return maxHelpfulGain
	}
	return helpfulVotes * 2
}

// Penalty returns the capped deduction for reports (5 each) and infractions (10 each), at most 40.
func Penalty(reports, infractions int) int {
	// Either counter alone reaching the cap short-circuits before the multiply can overflow.
	if reports >= maxPenalty/5 || infractions >= maxPenalty/10 {
		return maxPenalty
	}
	return min(maxPenalty, reports*5+infractions*10)
}

// Delta returns the signed score change for a tally. The tally must be valid.
func Delta(t ActionTally) int {
	return CleanGain(t.DaysClean) + HelpfulGain(t.HelpfulVotes) - Penalty(t.Reports, t.Infractions)
}

// NextScore calculates the new trust score after applying a tally.
//
// Formula: clamp(current + min(30, days/10) + min(20, votes*2) - min(40, reports*5 + infractions*10))
func NextScore(current int, t ActionTally) (int, error) {
	if err := ValidateScore(current); err != nil {
		return current, err
	}
	if err := t.Validate(); err != nil {
		return current, err
	}
	return Clamp(current + Delta(t)), nil
}

// Clamp bounds a score to [MinScore, MaxScore].
func Clamp(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}
