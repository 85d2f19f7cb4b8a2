package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MikeSquared-Agency/veilmatch/internal/eventlog"
	"github.com/MikeSquared-Agency/veilmatch/internal/metrics"
	"github.com/MikeSquared-Agency/veilmatch/internal/reveal"
	"github.com/MikeSquared-Agency/veilmatch/internal/sentinel"
	"github.com/MikeSquared-Agency/veilmatch/internal/store"
	"github.com/MikeSquared-Agency/veilmatch/internal/trust"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc *Service
	mem *store.Memory
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mem := store.NewMemory()
	grids, err := reveal.NewGridCache(16)
	if err != nil {
		t.Fatalf("NewGridCache: %v", err)
	}
	svc, err := New(mem, eventlog.NewRecorder(mem, nil, logger), grids, metrics.New(prometheus.NewRegistry()), Options{
		InitialTrust:  25,
		AvatarBaseURL: "https://placehold.co/400x400/1a202c/ffffff",
		GridSize:      3,
	}, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	svc.now = func() time.Time { return testNow }
	return fixture{svc: svc, mem: mem}
}

func (f fixture) withProfile(t *testing.T, userID string, score int) {
	t.Helper()
	ctx := context.Background()
	if _, _, err := f.svc.EnsureProfile(ctx, userID, userID+"@example.com"); err != nil {
		t.Fatalf("EnsureProfile: %v", err)
	}
	if _, _, err := f.mem.UpdateTrustScore(ctx, userID, func(int) (int, error) { return score, nil }); err != nil {
		t.Fatalf("seed score: %v", err)
	}
}

func TestNew_RejectsBadOptions(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tests := []struct {
		name string
		opts Options
	}{
		{"initial trust above max", Options{InitialTrust: 101, GridSize: 8}},
		{"zero grid", Options{InitialTrust: 25, GridSize: 0}},
		{"grid too large", Options{InitialTrust: 25, GridSize: reveal.MaxGridSize + 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(store.NewMemory(), nil, nil, nil, tt.opts, logger); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestEnsureProfile_Defaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, created, err := f.svc.EnsureProfile(ctx, "u1", "jordan@example.com")
	if err != nil {
		t.Fatalf("EnsureProfile: %v", err)
	}
	if !created {
		t.Error("expected profile to be created")
	}
	if p.TrustScore != 25 {
		t.Errorf("expected initial trust 25, got %d", p.TrustScore)
	}
	if p.RevealPercent != 0 {
		t.Errorf("expected reveal 0, got %d", p.RevealPercent)
	}
	want := "https://placehold.co/400x400/1a202c/ffffff?text=J"
	if p.AvatarURL != want {
		t.Errorf("expected avatar %q, got %q", want, p.AvatarURL)
	}

	_, created, err = f.svc.EnsureProfile(ctx, "u1", "other@example.com")
	if err != nil {
		t.Fatalf("second EnsureProfile: %v", err)
	}
	if created {
		t.Error("second call should not create")
	}
}

func TestEnsureProfile_EmptyUser(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.svc.EnsureProfile(context.Background(), "  ", "a@example.com")
	if !errors.Is(err, sentinel.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestPlaceholderAvatar(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		email string
		want  string
	}{
		{"sam@example.com", "?text=S"},
		{"élan@example.com", "?text=%C3%89"},
		{"", "?text=%3F"},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			got := f.svc.PlaceholderAvatar(tt.email)
			if got != f.svc.opts.AvatarBaseURL+tt.want {
				t.Errorf("PlaceholderAvatar(%q) = %q", tt.email, got)
			}
		})
	}
}

func TestApplyActions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.withProfile(t, "u1", 42)

	change, err := f.svc.ApplyActions(ctx, "u1", trust.ActionTally{DaysClean: 47, HelpfulVotes: 5})
	if err != nil {
		t.Fatalf("ApplyActions: %v", err)
	}
	if change.From != 42 || change.To != 56 {
		t.Errorf("expected 42->56, got %d->%d", change.From, change.To)
	}
	if change.Level != trust.LevelHalf || change.Label != "50%" {
		t.Errorf("expected half level, got %v %s", change.Level, change.Label)
	}

	events, _ := f.mem.ListEvents(ctx, "u1", 10)
	if len(events) != 1 || events[0].Action != eventlog.ActionTrustUpdate {
		t.Fatalf("expected one trust_update event, got %+v", events)
	}
	if events[0].FromValue != "42" || events[0].ToValue != "56" {
		t.Errorf("unexpected event values %s->%s", events[0].FromValue, events[0].ToValue)
	}
}

func TestApplyActions_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.withProfile(t, "u1", 42)

	if _, err := f.svc.ApplyActions(ctx, "u1", trust.ActionTally{Reports: -1}); !errors.Is(err, sentinel.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for negative tally, got %v", err)
	}
	if _, err := f.svc.ApplyActions(ctx, "ghost", trust.ActionTally{DaysClean: 1}); !errors.Is(err, sentinel.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown user, got %v", err)
	}
}

func TestSetRevealPercent(t *testing.T) {
	tests := []struct {
		name    string
		score   int
		percent int
		wantErr error
		wantTo  int
	}{
		{"within score", 60, 50, nil, 50},
		{"equal to score", 75, 75, nil, 75},
		{"zero always allowed", 0, 0, nil, 0},
		{"above score", 50, 75, sentinel.ErrDenied, 0},
		{"not a tier", 100, 60, sentinel.ErrInvalidInput, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			f.withProfile(t, "u1", tt.score)

			change, err := f.svc.SetRevealPercent(ctx, "u1", tt.percent)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
			} else if err != nil {
				t.Fatalf("SetRevealPercent: %v", err)
			} else if change.To != tt.wantTo {
				t.Errorf("expected to=%d, got %d", tt.wantTo, change.To)
			}

			p, _ := f.mem.GetProfile(ctx, "u1")
			if p.RevealPercent != tt.wantTo {
				t.Errorf("stored reveal percent %d, want %d", p.RevealPercent, tt.wantTo)
			}
		})
	}
}

func TestSetRevealPercent_DeniedCarriesValues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.withProfile(t, "u1", 50)

	_, err := f.svc.SetRevealPercent(ctx, "u1", 75)
	var denied *reveal.DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected DeniedError, got %v", err)
	}
	if denied.Attempted != 75 || denied.Allowed != 50 {
		t.Errorf("unexpected denial values %+v", denied)
	}
	events, _ := f.mem.ListEvents(ctx, "u1", 10)
	if len(events) != 0 {
		t.Errorf("denied request should not be logged, got %d events", len(events))
	}
}

func TestRevealState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.withProfile(t, "u1", 80)
	if _, err := f.svc.SetRevealPercent(ctx, "u1", 75); err != nil {
		t.Fatalf("SetRevealPercent: %v", err)
	}

	view, err := f.svc.RevealState(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("RevealState: %v", err)
	}
	if view.Grid.GridSize != 3 {
		t.Errorf("expected default grid 3, got %d", view.Grid.GridSize)
	}
	if len(view.Grid.Revealed) != 7 {
		t.Errorf("expected 7 revealed cells at 75%%, got %d", len(view.Grid.Revealed))
	}
	if view.Label != "75%" {
		t.Errorf("expected label 75%%, got %s", view.Label)
	}
	if view.Clip.Tier != reveal.Tier75 {
		t.Errorf("expected clip tier 75, got %d", view.Clip.Tier)
	}
	if view.MaxTier != reveal.Tier75 {
		t.Errorf("expected max tier 75, got %d", view.MaxTier)
	}

	if _, err := f.svc.RevealState(ctx, "u1", reveal.MaxGridSize+1); !errors.Is(err, sentinel.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for oversized grid, got %v", err)
	}
}

func TestSetSobrietyDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.withProfile(t, "u1", 25)

	journey, err := f.svc.SetSobrietyDate(ctx, "u1", testNow.AddDate(0, 0, -10))
	if err != nil {
		t.Fatalf("SetSobrietyDate: %v", err)
	}
	if journey.DaysSober != 10 {
		t.Errorf("expected 10 days sober, got %d", journey.DaysSober)
	}
	if journey.Next == nil || journey.Next.ID != "month1" {
		t.Errorf("expected next month1, got %+v", journey.Next)
	}
	if journey.DaysToNext != 20 {
		t.Errorf("expected 20 days to next, got %d", journey.DaysToNext)
	}

	_, err = f.svc.SetSobrietyDate(ctx, "u1", testNow.Add(48*time.Hour))
	if !errors.Is(err, sentinel.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for future date, got %v", err)
	}

	events, _ := f.mem.ListEvents(ctx, "u1", 10)
	if len(events) != 1 || events[0].Action != eventlog.ActionSobrietyDateSet {
		t.Fatalf("expected one sobriety_date_set event, got %+v", events)
	}
	if events[0].FromValue != "" || events[0].ToValue != "2026-03-05" {
		t.Errorf("unexpected event values %q->%q", events[0].FromValue, events[0].ToValue)
	}
}

func TestJourney_NotStarted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.withProfile(t, "u1", 25)

	journey, err := f.svc.Journey(ctx, "u1")
	if err != nil {
		t.Fatalf("Journey: %v", err)
	}
	if journey.Started {
		t.Error("expected not started")
	}
	if len(journey.Earned) != 0 || journey.Next != nil {
		t.Errorf("expected nothing earned and no next, got %+v", journey.Progress)
	}
	if len(journey.Milestones) != len(f.svc.Catalog()) {
		t.Errorf("expected full ladder, got %d entries", len(journey.Milestones))
	}
}

func TestCelebrate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.withProfile(t, "u1", 97)
	if _, err := f.svc.SetSobrietyDate(ctx, "u1", testNow.AddDate(0, 0, -8)); err != nil {
		t.Fatalf("SetSobrietyDate: %v", err)
	}

	c, err := f.svc.Celebrate(ctx, "u1", "week1")
	if err != nil {
		t.Fatalf("Celebrate: %v", err)
	}
	if c.From != 97 || c.To != 100 {
		t.Errorf("expected bonus capped at 100, got %d->%d", c.From, c.To)
	}

	if _, err := f.svc.Celebrate(ctx, "u1", "week1"); !errors.Is(err, sentinel.ErrConflict) {
		t.Errorf("expected ErrConflict on repeat, got %v", err)
	}
	if _, err := f.svc.Celebrate(ctx, "u1", "month1"); !errors.Is(err, sentinel.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for unearned milestone, got %v", err)
	}
	if _, err := f.svc.Celebrate(ctx, "u1", "decade"); !errors.Is(err, sentinel.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown milestone, got %v", err)
	}

	journey, err := f.svc.Journey(ctx, "u1")
	if err != nil {
		t.Fatalf("Journey: %v", err)
	}
	if len(journey.Celebrated) != 1 || journey.Celebrated[0] != "week1" {
		t.Errorf("expected week1 celebrated, got %v", journey.Celebrated)
	}
	for _, m := range journey.Milestones {
		if m.ID == "week1" && (!m.Earned || !m.Celebrated) {
			t.Errorf("week1 should be earned and celebrated: %+v", m)
		}
		if m.ID == "month1" && (m.Earned || m.Celebrated) {
			t.Errorf("month1 should be neither earned nor celebrated: %+v", m)
		}
	}
}

func TestCelebrate_WithoutSobrietyDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.withProfile(t, "u1", 30)

	if _, err := f.svc.Celebrate(ctx, "u1", "day1"); !errors.Is(err, sentinel.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	ids, _ := f.mem.ListCelebrations(ctx, "u1")
	if len(ids) != 0 {
		t.Errorf("rejected celebration was recorded: %v", ids)
	}
}

func TestSetPhoto(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.withProfile(t, "u1", 25)

	p, err := f.svc.SetPhoto(ctx, "u1", "https://cdn.example.com/u1.jpg", "")
	if err != nil {
		t.Fatalf("SetPhoto: %v", err)
	}
	if p.AvatarURL != "https://cdn.example.com/u1.jpg" {
		t.Errorf("avatar should fall back to original, got %s", p.AvatarURL)
	}
	if _, err := f.svc.SetPhoto(ctx, "u1", "not a url", ""); !errors.Is(err, sentinel.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}

	events, _ := f.mem.ListEvents(ctx, "u1", 10)
	if len(events) != 1 || events[0].Action != eventlog.ActionPhotoUpload {
		t.Errorf("expected one photo_upload event, got %+v", events)
	}
}

func TestHandleTrustSignal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.withProfile(t, "u1", 40)

	payload, _ := json.Marshal(map[string]any{
		"user_id": "u1",
		"tally":   map[string]int{"days_clean": 10, "reports": 1},
	})
	f.svc.HandleTrustSignal("veil.trust.signal", payload)

	p, _ := f.mem.GetProfile(ctx, "u1")
	want, _ := trust.NextScore(40, trust.ActionTally{DaysClean: 10, Reports: 1})
	if p.TrustScore != want {
		t.Errorf("expected score %d after signal, got %d", want, p.TrustScore)
	}

	// Malformed and unknown-user signals are dropped without touching state.
	f.svc.HandleTrustSignal("veil.trust.signal", []byte(`{"user_id":`))
	f.svc.HandleTrustSignal("veil.trust.signal", []byte(`{"user_id":"ghost","tally":{"days_clean":1}}`))
	again, _ := f.mem.GetProfile(ctx, "u1")
	if again.TrustScore != want {
		t.Errorf("score changed by dropped signals: %d", again.TrustScore)
	}
}
