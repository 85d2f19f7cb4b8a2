package reveal

import (
	"fmt"
	"strconv"

	"github.com/MikeSquared-Agency/veilmatch/internal/sentinel"
)

// Tier is an explicit reveal percent chosen by the user for live sessions.
// It is a coarser policy than the grid and is kept separate from it.
type Tier int

const (
	Tier0   Tier = 0
	Tier25  Tier = 25
	Tier50  Tier = 50
	Tier75  Tier = 75
	Tier100 Tier = 100
)

// Tiers lists the valid reveal percents in ascending order.
var Tiers = []Tier{Tier0, Tier25, Tier50, Tier75, Tier100}

// ParseTier validates a raw percent.
func ParseTier(percent int) (Tier, error) {
	for _, t := range Tiers {
		if int(t) == percent {
			return t, nil
		}
	}
	return Tier0, sentinel.Invalid("reveal_percent", "must be one of 0, 25, 50, 75, 100, got %d", percent)
}

// Quadrant names a quarter of the image.
type Quadrant string

const (
	TopLeft     Quadrant = "top_left"
	TopRight    Quadrant = "top_right"
	BottomLeft  Quadrant = "bottom_left"
	BottomRight Quadrant = "bottom_right"
)

// ClipRegion is the visible part of the real photo, as insets from each edge
// in the [0,1] range. A region with Visible false shows nothing.
type ClipRegion struct {
	Tier      Tier       `json:"tier"`
	Visible   bool       `json:"visible"`
	Top       float64    `json:"top"`
	Right     float64    `json:"right"`
	Bottom    float64    `json:"bottom"`
	Left      float64    `json:"left"`
	Quadrants []Quadrant `json:"quadrants"`
}

// Clip returns the region of the photo shown at this tier.
//
//	0   → nothing
//	25  → bottom-right quadrant
//	50  → bottom half
//	75  → right half
//	100 → everything
func (t Tier) Clip() ClipRegion {
	switch t {
	case Tier25:
		return ClipRegion{Tier: t, Visible: true, Top: 0.5, Left: 0.5, Quadrants: []Quadrant{BottomRight}}
	case Tier50:
		return ClipRegion{Tier: t, Visible: true, Top: 0.5, Quadrants: []Quadrant{BottomLeft, BottomRight}}
	case Tier75:
		return ClipRegion{Tier: t, Visible: true, Left: 0.5, Quadrants: []Quadrant{TopRight, BottomRight}}
	case Tier100:
		return ClipRegion{Tier: t, Visible: true, Quadrants: []Quadrant{TopLeft, TopRight, BottomLeft, BottomRight}}
	default:
		return ClipRegion{Tier: Tier0, Top: 1, Right: 1, Bottom: 1, Left: 1, Quadrants: []Quadrant{}}
	}
}

// CSS renders the region as a CSS clip-path inset() value.
func (c ClipRegion) CSS() string {
	if !c.Visible {
		return "inset(100%)"
	}
	return fmt.Sprintf("inset(%s %s %s %s)", pct(c.Top), pct(c.Right), pct(c.Bottom), pct(c.Left))
}

func pct(f float64) string {
	if f == 0 {
		return "0"
	}
	return strconv.FormatFloat(f*100, 'f', -1, 64) + "%"
}

// DeniedError is returned when a requested tier exceeds the trust score.
type DeniedError struct {
	Attempted int `json:"attempted"`
	Allowed   int `json:"allowed"`
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("trust score of %d is not high enough to reveal %d%%", e.Allowed, e.Attempted)
}

func (e *DeniedError) Is(target error) bool {
	return target == sentinel.ErrDenied
}

// AuthorizeTier gates an explicit reveal request against the trust score.
// Requesting 0 is always allowed. The score must be the latest committed
// value; callers hold the profile lock while calling this.
func AuthorizeTier(requested, trustScore int) (Tier, error) {
	tier, err := ParseTier(requested)
	if err != nil {
		return Tier0, err
	}
	if tier != Tier0 && requested > trustScore {
		return Tier0, &DeniedError{Attempted: requested, Allowed: trustScore}
	}
	return tier, nil
}

// MaxTier returns the highest tier a trust score permits.
func MaxTier(trustScore int) Tier {
	best := Tier0
	for _, t := range Tiers {
		if int(t) <= trustScore {
			best = t
		}
	}
	return best
}
