package milestone

import (
	"time"

	"github.com/MikeSquared-Agency/veilmatch/internal/sentinel"
	"github.com/MikeSquared-Agency/veilmatch/internal/trust"
)

// maxCelebrationBonus is the trust granted the first time a milestone is celebrated.
const maxCelebrationBonus = 5

const day = 24 * time.Hour

// ValidateReferenceDate rejects a sobriety date later than now.
func ValidateReferenceDate(ref, now time.Time) error {
	if ref.After(now) {
		return sentinel.Invalid("sobriety_date", "cannot be in the future (%s)", ref.Format(time.DateOnly))
	}
	return nil
}

// DaysSober returns whole days elapsed since ref. A nil reference means
// tracking has not started and yields 0.
func DaysSober(ref *time.Time, now time.Time) (int, error) {
	if ref == nil {
		return 0, nil
	}
	if err := ValidateReferenceDate(*ref, now); err != nil {
		return 0, err
	}
	return max(0, int(now.Sub(*ref)/day)), nil
}

// CelebrationBonus returns the score added when a milestone is first
// celebrated: five points, never pushing the score past the maximum.
// Deduplicating celebrations is the store's job.
func CelebrationBonus(currentScore int) (int, error) {
	if err := trust.ValidateScore(currentScore); err != nil {
		return 0, err
	}
	return min(maxCelebrationBonus, trust.MaxScore-currentScore), nil
}

// Progress summarizes a user's position on the milestone ladder.
type Progress struct {
	Started    bool        `json:"started"`
	DaysSober  int         `json:"days_sober"`
	Earned     []Milestone `json:"earned"`
	Next       *Milestone  `json:"next,omitempty"`
	DaysToNext int         `json:"days_to_next"`
	Percent    float64     `json:"percent"`
}

// Track computes progress for a reference date. With no reference date the
// result is the not-started state: nothing earned, no next milestone.
func Track(ref *time.Time, now time.Time, c Catalog) (Progress, error) {
	if ref == nil {
		return Progress{Earned: []Milestone{}}, nil
	}
	days, err := DaysSober(ref, now)
	if err != nil {
		return Progress{}, err
	}

	p := Progress{
		Started:   true,
		DaysSober: days,
		Earned:    c.Earned(days),
		Percent:   100,
	}
	if next, ok := c.Next(days); ok {
		p.Next = &next
		p.DaysToNext = next.Days - days
		p.Percent = float64(days) / float64(next.Days) * 100
	}
	return p, nil
}

// IsEarned reports whether m has been reached after days.
func IsEarned(m Milestone, days int) bool {
	return days >= m.Days
}

// Validate checks the catalog invariants: positive thresholds, strictly
// ascending order and unique IDs.
func (c Catalog) Validate() error {
	seen := make(map[string]bool, len(c))
	prev := 0
	for _, m := range c {
		if m.Days <= 0 {
			return sentinel.Invalid("milestone", "%s threshold must be positive, got %d", m.ID, m.Days)
		}
		if m.Days <= prev {
			return sentinel.Invalid("milestone", "%s is out of order", m.ID)
		}
		if seen[m.ID] {
			return sentinel.Invalid("milestone", "duplicate id %s", m.ID)
		}
		seen[m.ID] = true
		prev = m.Days
	}
	return nil
}
