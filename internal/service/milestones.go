package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/veilmatch/internal/eventlog"
	"github.com/MikeSquared-Agency/veilmatch/internal/milestone"
	"github.com/MikeSquared-Agency/veilmatch/internal/sentinel"
	"github.com/MikeSquared-Agency/veilmatch/internal/store"
	"github.com/MikeSquared-Agency/veilmatch/internal/trust"
)

// MilestoneStatus is one rung of the ladder as seen by a user.
type MilestoneStatus struct {
	milestone.Milestone
	Earned     bool `json:"earned"`
	Celebrated bool `json:"celebrated"`
}

// Journey is a user's milestone progress.
type Journey struct {
	UserID       string     `json:"user_id"`
	SobrietyDate *time.Time `json:"sobriety_date,omitempty"`
	milestone.Progress
	Milestones []MilestoneStatus `json:"milestones"`
	Celebrated []string          `json:"celebrated"`
}

// Ladder marks each catalog entry as earned after days, and as celebrated
// when its ID is in celebrated.
func Ladder(c milestone.Catalog, days int, celebrated []string) []MilestoneStatus {
	done := make(map[string]bool, len(celebrated))
	for _, id := range celebrated {
		done[id] = true
	}
	out := make([]MilestoneStatus, 0, len(c))
	for _, m := range c {
		out = append(out, MilestoneStatus{
			Milestone:  m,
			Earned:     milestone.IsEarned(m, days),
			Celebrated: done[m.ID],
		})
	}
	return out
}

// Journey reports days sober, earned milestones, the next target and which
// milestones have been celebrated.
func (s *Service) Journey(ctx context.Context, userID string) (Journey, error) {
	if err := requireUser(userID); err != nil {
		return Journey{}, err
	}
	var (
		p          *store.Profile
		celebrated []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		p, err = s.store.GetProfile(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		celebrated, err = s.store.ListCelebrations(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Journey{}, err
	}

	progress, err := milestone.Track(p.SobrietyDate, s.now(), s.opts.Catalog)
	if err != nil {
		return Journey{}, err
	}
	if celebrated == nil {
		celebrated = []string{}
	}

	return Journey{
		UserID:       userID,
		SobrietyDate: p.SobrietyDate,
		Progress:     progress,
		Milestones:   Ladder(s.opts.Catalog, progress.DaysSober, celebrated),
		Celebrated:   celebrated,
	}, nil
}

// SetSobrietyDate sets the reference date milestones are measured from. Dates
// in the future are rejected.
func (s *Service) SetSobrietyDate(ctx context.Context, userID string, date time.Time) (Journey, error) {
	if err := requireUser(userID); err != nil {
		return Journey{}, err
	}
	if date.IsZero() {
		return Journey{}, sentinel.Invalid("sobriety_date", "must be set")
	}
	date = date.UTC()
	if err := milestone.ValidateReferenceDate(date, s.now()); err != nil {
		return Journey{}, err
	}

	prev, err := s.store.SetSobrietyDate(ctx, userID, date)
	if err != nil {
		return Journey{}, err
	}
	s.record(ctx, eventlog.Event{
		UserID:    userID,
		Action:    eventlog.ActionSobrietyDateSet,
		FromValue: eventlog.DateValue(prev),
		ToValue:   eventlog.DateValue(&date),
	})
	return s.Journey(ctx, userID)
}

// Celebration is the outcome of celebrating a milestone.
type Celebration struct {
	UserID    string              `json:"user_id"`
	Milestone milestone.Milestone `json:"milestone"`
	From      int                 `json:"from"`
	To        int                 `json:"to"`
}

// Celebrate marks an earned milestone as celebrated and grants the bonus.
// Each milestone can be celebrated once per user.
func (s *Service) Celebrate(ctx context.Context, userID, milestoneID string) (Celebration, error) {
	if err := requireUser(userID); err != nil {
		return Celebration{}, err
	}
	m, ok := s.opts.Catalog.Find(milestoneID)
	if !ok {
		return Celebration{}, fmt.Errorf("milestone %q: %w", milestoneID, sentinel.ErrNotFound)
	}

	now := s.now()
	from, to, err := s.store.CelebrateMilestone(ctx, userID, m.ID, func(p store.Profile) (int, error) {
		days, err := milestone.DaysSober(p.SobrietyDate, now)
		if err != nil {
			return 0, err
		}
		if p.SobrietyDate == nil || !milestone.IsEarned(m, days) {
			return 0, sentinel.Invalid("milestone", "%s requires %d days, have %d", m.ID, m.Days, days)
		}
		bonus, err := milestone.CelebrationBonus(p.TrustScore)
		if err != nil {
			return 0, err
		}
		return trust.Clamp(p.TrustScore + bonus), nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			s.logger.Info("milestone already celebrated", "user_id", userID, "milestone", m.ID)
		}
		return Celebration{}, err
	}
	s.metrics.IncrementMilestoneCelebrated(m.ID)
	s.metrics.ObserveTrustUpdate(to)

	s.record(ctx, eventlog.Event{
		UserID:      userID,
		Action:      eventlog.ActionMilestoneCelebrated,
		FromValue:   eventlog.IntValue(from),
		ToValue:     eventlog.IntValue(to),
		MilestoneID: m.ID,
	})
	return Celebration{UserID: userID, Milestone: m, From: from, To: to}, nil
}
