package service

import (
	"context"
	"errors"

	"github.com/MikeSquared-Agency/veilmatch/internal/eventlog"
	"github.com/MikeSquared-Agency/veilmatch/internal/metrics"
	"github.com/MikeSquared-Agency/veilmatch/internal/reveal"
	"github.com/MikeSquared-Agency/veilmatch/internal/sentinel"
	"github.com/MikeSquared-Agency/veilmatch/internal/store"
)

// RevealChange is the outcome of an explicit reveal percent request.
type RevealChange struct {
	UserID string            `json:"user_id"`
	From   int               `json:"from"`
	To     int               `json:"to"`
	Clip   reveal.ClipRegion `json:"clip"`
}

// SetRevealPercent changes the live-session reveal tier. The request is
// checked against the trust score read under the profile lock, so a
// concurrent score change cannot slip a reveal past the gate.
func (s *Service) SetRevealPercent(ctx context.Context, userID string, percent int) (RevealChange, error) {
	if err := requireUser(userID); err != nil {
		return RevealChange{}, err
	}

	from, to, err := s.store.UpdateRevealPercent(ctx, userID, func(p store.Profile) (int, error) {
		tier, err := reveal.AuthorizeTier(percent, p.TrustScore)
		return int(tier), err
	})
	switch {
	case errors.Is(err, sentinel.ErrDenied):
		s.metrics.IncrementRevealRequest(metrics.OutcomeDenied)
		s.logger.Info("reveal denied", "user_id", userID, "requested", percent)
		return RevealChange{}, err
	case errors.Is(err, sentinel.ErrInvalidInput):
		s.metrics.IncrementRevealRequest(metrics.OutcomeInvalid)
		return RevealChange{}, err
	case err != nil:
		return RevealChange{}, err
	}
	s.metrics.IncrementRevealRequest(metrics.OutcomeGranted)

	s.record(ctx, eventlog.Event{
		UserID:    userID,
		Action:    eventlog.ActionRevealUpdate,
		FromValue: eventlog.IntValue(from),
		ToValue:   eventlog.IntValue(to),
	})
	return RevealChange{
		UserID: userID,
		From:   from,
		To:     to,
		Clip:   reveal.Tier(to).Clip(),
	}, nil
}

// RevealView combines both disclosure policies for one profile: the grid
// driven by the trust score and the tier the user chose.
type RevealView struct {
	UserID        string            `json:"user_id"`
	TrustScore    int               `json:"trust_score"`
	Label         string            `json:"label"`
	Grid          reveal.State      `json:"grid"`
	RevealPercent int               `json:"current_reveal_percent"`
	Clip          reveal.ClipRegion `json:"clip"`
	MaxTier       reveal.Tier       `json:"max_reveal_percent"`
}

// RevealState reports what of a profile's photo is visible. gridSize 0 uses
// the configured default.
func (s *Service) RevealState(ctx context.Context, userID string, gridSize int) (RevealView, error) {
	if err := requireUser(userID); err != nil {
		return RevealView{}, err
	}
	p, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return RevealView{}, err
	}
	grid, err := s.GridForScore(p.TrustScore, gridSize)
	if err != nil {
		return RevealView{}, err
	}
	tier, err := reveal.ParseTier(p.RevealPercent)
	if err != nil {
		return RevealView{}, err
	}

	return RevealView{
		UserID:        userID,
		TrustScore:    p.TrustScore,
		Label:         grid.Level.Label(),
		Grid:          grid,
		RevealPercent: p.RevealPercent,
		Clip:          tier.Clip(),
		MaxTier:       reveal.MaxTier(p.TrustScore),
	}, nil
}

// GridForScore computes the grid state, through the cache when one is set.
// gridSize 0 uses the configured default.
func (s *Service) GridForScore(score, gridSize int) (reveal.State, error) {
	if gridSize == 0 {
		gridSize = s.opts.GridSize
	}
	if s.grids != nil {
		return s.grids.StateForScore(score, gridSize)
	}
	return reveal.StateForScore(score, gridSize)
}
