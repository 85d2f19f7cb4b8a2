package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/MikeSquared-Agency/veilmatch/internal/eventlog"
	"github.com/MikeSquared-Agency/veilmatch/internal/metrics"
	"github.com/MikeSquared-Agency/veilmatch/internal/milestone"
	"github.com/MikeSquared-Agency/veilmatch/internal/reveal"
	"github.com/MikeSquared-Agency/veilmatch/internal/sentinel"
	"github.com/MikeSquared-Agency/veilmatch/internal/store"
	"github.com/MikeSquared-Agency/veilmatch/internal/trust"
)

// Store is the persistence the service needs. *store.Store and *store.Memory
// both satisfy it.
type Store interface {
	EnsureProfile(ctx context.Context, p store.Profile) (*store.Profile, bool, error)
	GetProfile(ctx context.Context, userID string) (*store.Profile, error)
	UpdateTrustScore(ctx context.Context, userID string, fn func(current int) (int, error)) (int, int, error)
	UpdateRevealPercent(ctx context.Context, userID string, fn func(p store.Profile) (int, error)) (int, int, error)
	SetSobrietyDate(ctx context.Context, userID string, date time.Time) (*time.Time, error)
	SetPhoto(ctx context.Context, userID, originalURL, avatarURL string) (string, error)
	CelebrateMilestone(ctx context.Context, userID, milestoneID string, fn func(p store.Profile) (int, error)) (int, int, error)
	ListCelebrations(ctx context.Context, userID string) ([]string, error)
	ListEvents(ctx context.Context, userID string, limit int) ([]eventlog.Event, error)
}

// Recorder writes audit events.
type Recorder interface {
	Record(ctx context.Context, evt eventlog.Event) (eventlog.Event, error)
}

type Options struct {
	InitialTrust  int
	AvatarBaseURL string
	GridSize      int
	Catalog       milestone.Catalog
}

// Service applies the trust, reveal and milestone rules to stored profiles.
type Service struct {
	store    Store
	recorder Recorder
	grids    *reveal.GridCache
	metrics  *metrics.Metrics
	opts     Options
	logger   *slog.Logger
	now      func() time.Time
}

func New(s Store, rec Recorder, grids *reveal.GridCache, m *metrics.Metrics, opts Options, logger *slog.Logger) (*Service, error) {
	if err := trust.ValidateScore(opts.InitialTrust); err != nil {
		return nil, fmt.Errorf("initial trust: %w", err)
	}
	if opts.GridSize <= 0 || opts.GridSize > reveal.MaxGridSize {
		return nil, sentinel.Invalid("grid_size", "must be between 1 and %d, got %d", reveal.MaxGridSize, opts.GridSize)
	}
	if opts.Catalog == nil {
		opts.Catalog = milestone.DefaultCatalog
	}
	if err := opts.Catalog.Validate(); err != nil {
		return nil, fmt.Errorf("milestone catalog: %w", err)
	}
	return &Service{
		store:    s,
		recorder: rec,
		grids:    grids,
		metrics:  m,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Catalog returns the milestone ladder in use.
func (s *Service) Catalog() milestone.Catalog {
	return s.opts.Catalog
}

// record writes an audit event for a change that is already committed. A
// failure is logged rather than returned so callers see the committed state.
func (s *Service) record(ctx context.Context, evt eventlog.Event) {
	if s.recorder == nil {
		return
	}
	if _, err := s.recorder.Record(ctx, evt); err != nil {
		s.logger.Error("failed to record event",
			"action", string(evt.Action),
			"user_id", evt.UserID,
			"error", err,
		)
	}
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return sentinel.Invalid("user_id", "must not be empty")
	}
	return nil
}

// PlaceholderAvatar builds the default avatar URL from the first letter of
// the email, uppercased.
func (s *Service) PlaceholderAvatar(email string) string {
	initial := "?"
	if r, _ := utf8.DecodeRuneInString(strings.TrimSpace(email)); r != utf8.RuneError {
		initial = string(unicode.ToUpper(r))
	}
	return s.opts.AvatarBaseURL + "?text=" + url.QueryEscape(initial)
}

// EnsureProfile creates a profile with the initial trust score, nothing
// revealed and a placeholder avatar. An existing profile is returned as is.
func (s *Service) EnsureProfile(ctx context.Context, userID, email string) (*store.Profile, bool, error) {
	if err := requireUser(userID); err != nil {
		return nil, false, err
	}
	p, created, err := s.store.EnsureProfile(ctx, store.Profile{
		UserID:        userID,
		Email:         email,
		TrustScore:    s.opts.InitialTrust,
		RevealPercent: int(reveal.Tier0),
		AvatarURL:     s.PlaceholderAvatar(email),
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		s.logger.Info("profile created", "user_id", userID, "trust_score", p.TrustScore)
	}
	return p, created, nil
}

func (s *Service) GetProfile(ctx context.Context, userID string) (*store.Profile, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	return s.store.GetProfile(ctx, userID)
}

// TrustChange is the outcome of a trust score update.
type TrustChange struct {
	UserID   string      `json:"user_id"`
	From     int         `json:"from"`
	To       int         `json:"to"`
	Level    trust.Level `json:"level"`
	Label    string      `json:"label"`
	Fraction float64     `json:"fraction"`
}

func newTrustChange(userID string, from, to int) TrustChange {
	level := trust.LevelFromScore(to)
	return TrustChange{
		UserID:   userID,
		From:     from,
		To:       to,
		Level:    level,
		Label:    level.Label(),
		Fraction: level.Fraction(),
	}
}

// ApplyActions folds a tally of user actions into the stored trust score.
func (s *Service) ApplyActions(ctx context.Context, userID string, tally trust.ActionTally) (TrustChange, error) {
	if err := requireUser(userID); err != nil {
		return TrustChange{}, err
	}
	if err := tally.Validate(); err != nil {
		return TrustChange{}, err
	}

	from, to, err := s.store.UpdateTrustScore(ctx, userID, func(current int) (int, error) {
		return trust.NextScore(current, tally)
	})
	if err != nil {
		return TrustChange{}, err
	}
	s.metrics.ObserveTrustUpdate(to)

	s.record(ctx, eventlog.Event{
		UserID:    userID,
		Action:    eventlog.ActionTrustUpdate,
		FromValue: eventlog.IntValue(from),
		ToValue:   eventlog.IntValue(to),
	})
	s.logger.Info("trust score updated", "user_id", userID, "from", from, "to", to)
	return newTrustChange(userID, from, to), nil
}

// SetPhoto stores new photo URLs. An empty avatar URL falls back to the
// original photo.
func (s *Service) SetPhoto(ctx context.Context, userID, originalURL, avatarURL string) (*store.Profile, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if err := validateURL("original_photo_url", originalURL); err != nil {
		return nil, err
	}
	if avatarURL == "" {
		avatarURL = originalURL
	} else if err := validateURL("avatar_url", avatarURL); err != nil {
		return nil, err
	}

	prev, err := s.store.SetPhoto(ctx, userID, originalURL, avatarURL)
	if err != nil {
		return nil, err
	}
	s.record(ctx, eventlog.Event{
		UserID:    userID,
		Action:    eventlog.ActionPhotoUpload,
		FromValue: prev,
		ToValue:   originalURL,
	})
	return s.store.GetProfile(ctx, userID)
}

func validateURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return sentinel.Invalid(field, "must be an absolute http(s) URL")
	}
	return nil
}

// Events returns the most recent audit entries for a user.
func (s *Service) Events(ctx context.Context, userID string, limit int) ([]eventlog.Event, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.store.ListEvents(ctx, userID, limit)
}
