package reveal

import (
	"errors"
	"reflect"
	"testing"

	"github.com/MikeSquared-Agency/veilmatch/internal/sentinel"
)

func TestTier_Clip(t *testing.T) {
	tests := []struct {
		tier      Tier
		visible   bool
		css       string
		quadrants []Quadrant
	}{
		{Tier0, false, "inset(100%)", []Quadrant{}},
		{Tier25, true, "inset(50% 0 0 50%)", []Quadrant{BottomRight}},
		{Tier50, true, "inset(50% 0 0 0)", []Quadrant{BottomLeft, BottomRight}},
		{Tier75, true, "inset(0 0 0 50%)", []Quadrant{TopRight, BottomRight}},
		{Tier100, true, "inset(0 0 0 0)", []Quadrant{TopLeft, TopRight, BottomLeft, BottomRight}},
	}

	for _, tt := range tests {
		t.Run(tt.css, func(t *testing.T) {
			clip := tt.tier.Clip()
			if clip.Visible != tt.visible {
				t.Errorf("Tier %d visible = %v, want %v", tt.tier, clip.Visible, tt.visible)
			}
			if got := clip.CSS(); got != tt.css {
				t.Errorf("Tier %d CSS = %q, want %q", tt.tier, got, tt.css)
			}
			if !reflect.DeepEqual(clip.Quadrants, tt.quadrants) {
				t.Errorf("Tier %d quadrants = %v, want %v", tt.tier, clip.Quadrants, tt.quadrants)
			}
		})
	}
}

func TestParseTier(t *testing.T) {
	for _, p := range []int{0, 25, 50, 75, 100} {
		tier, err := ParseTier(p)
		if err != nil {
			t.Errorf("ParseTier(%d): %v", p, err)
		}
		if int(tier) != p {
			t.Errorf("ParseTier(%d) = %d", p, tier)
		}
	}
	for _, p := range []int{-25, 10, 60, 101} {
		if _, err := ParseTier(p); !errors.Is(err, sentinel.ErrInvalidInput) {
			t.Errorf("ParseTier(%d): expected ErrInvalidInput, got %v", p, err)
		}
	}
}

func TestAuthorizeTier(t *testing.T) {
	tests := []struct {
		name      string
		requested int
		score     int
		wantTier  Tier
		wantErr   error
	}{
		{"zero always allowed", 0, 0, Tier0, nil},
		{"zero allowed at high score", 0, 90, Tier0, nil},
		{"equal to score", 50, 50, Tier50, nil},
		{"below score", 25, 60, Tier25, nil},
		{"full at 100", 100, 100, Tier100, nil},
		{"75 denied at 50", 75, 50, Tier0, sentinel.ErrDenied},
		{"25 denied at 24", 25, 24, Tier0, sentinel.ErrDenied},
		{"unknown percent", 30, 100, Tier0, sentinel.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tier, err := AuthorizeTier(tt.requested, tt.score)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if tier != tt.wantTier {
				t.Errorf("tier = %d, want %d", tier, tt.wantTier)
			}
		})
	}
}

func TestAuthorizeTier_DeniedDetails(t *testing.T) {
	_, err := AuthorizeTier(75, 50)

	var denied *DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected DeniedError, got %v", err)
	}
	if denied.Attempted != 75 || denied.Allowed != 50 {
		t.Errorf("got attempted=%d allowed=%d", denied.Attempted, denied.Allowed)
	}
	if err.Error() != "trust score of 50 is not high enough to reveal 75%" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestMaxTier(t *testing.T) {
	tests := []struct {
		score int
		want  Tier
	}{
		{0, Tier0},
		{24, Tier0},
		{25, Tier25},
		{56, Tier50},
		{99, Tier75},
		{100, Tier100},
	}
	for _, tt := range tests {
		if got := MaxTier(tt.score); got != tt.want {
			t.Errorf("MaxTier(%d) = %d, want %d", tt.score, got, tt.want)
		}
	}
}
