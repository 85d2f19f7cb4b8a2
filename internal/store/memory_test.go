package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/veilmatch/internal/eventlog"
	"github.com/MikeSquared-Agency/veilmatch/internal/sentinel"
)

func seedMemory(t *testing.T, score int) *Memory {
	t.Helper()
	m := NewMemory()
	_, created, err := m.EnsureProfile(context.Background(), Profile{UserID: "u1", TrustScore: score})
	if err != nil {
		t.Fatalf("EnsureProfile: %v", err)
	}
	if !created {
		t.Fatal("expected profile to be created")
	}
	return m
}

func TestMemory_EnsureProfileIsIdempotent(t *testing.T) {
	m := seedMemory(t, 25)
	p, created, err := m.EnsureProfile(context.Background(), Profile{UserID: "u1", TrustScore: 90})
	if err != nil {
		t.Fatalf("EnsureProfile: %v", err)
	}
	if created {
		t.Error("second EnsureProfile should not create")
	}
	if p.TrustScore != 25 {
		t.Errorf("expected existing score 25, got %d", p.TrustScore)
	}
}

func TestMemory_GetProfileNotFound(t *testing.T) {
	m := NewMemory()
	_, err := m.GetProfile(context.Background(), "missing")
	if !errors.Is(err, sentinel.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemory_GetProfileReturnsCopy(t *testing.T) {
	m := seedMemory(t, 25)
	ctx := context.Background()
	date := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := m.SetSobrietyDate(ctx, "u1", date); err != nil {
		t.Fatalf("SetSobrietyDate: %v", err)
	}

	p, _ := m.GetProfile(ctx, "u1")
	p.TrustScore = 99
	*p.SobrietyDate = time.Time{}

	again, _ := m.GetProfile(ctx, "u1")
	if again.TrustScore != 25 {
		t.Errorf("mutating a returned profile changed the store: score %d", again.TrustScore)
	}
	if !again.SobrietyDate.Equal(date) {
		t.Errorf("mutating a returned date changed the store: %v", again.SobrietyDate)
	}
}

func TestMemory_UpdateTrustScoreAbortsOnError(t *testing.T) {
	m := seedMemory(t, 40)
	ctx := context.Background()
	boom := errors.New("boom")

	_, _, err := m.UpdateTrustScore(ctx, "u1", func(int) (int, error) { return 0, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	p, _ := m.GetProfile(ctx, "u1")
	if p.TrustScore != 40 {
		t.Errorf("score should be unchanged, got %d", p.TrustScore)
	}

	from, to, err := m.UpdateTrustScore(ctx, "u1", func(c int) (int, error) { return c + 5, nil })
	if err != nil {
		t.Fatalf("UpdateTrustScore: %v", err)
	}
	if from != 40 || to != 45 {
		t.Errorf("expected 40->45, got %d->%d", from, to)
	}
}

func TestMemory_ConcurrentUpdatesSerialize(t *testing.T) {
	m := seedMemory(t, 0)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = m.UpdateTrustScore(ctx, "u1", func(c int) (int, error) { return c + 1, nil })
		}()
	}
	wg.Wait()

	p, _ := m.GetProfile(ctx, "u1")
	if p.TrustScore != 50 {
		t.Errorf("expected 50 after 50 increments, got %d", p.TrustScore)
	}
}

func TestMemory_CelebrateMilestoneOnce(t *testing.T) {
	m := seedMemory(t, 30)
	ctx := context.Background()
	bonus := func(p Profile) (int, error) { return p.TrustScore + 10, nil }

	from, to, err := m.CelebrateMilestone(ctx, "u1", "week1", bonus)
	if err != nil {
		t.Fatalf("first celebration: %v", err)
	}
	if from != 30 || to != 40 {
		t.Errorf("expected 30->40, got %d->%d", from, to)
	}

	_, _, err = m.CelebrateMilestone(ctx, "u1", "week1", bonus)
	if !errors.Is(err, sentinel.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	p, _ := m.GetProfile(ctx, "u1")
	if p.TrustScore != 40 {
		t.Errorf("duplicate celebration changed score to %d", p.TrustScore)
	}

	ids, err := m.ListCelebrations(ctx, "u1")
	if err != nil {
		t.Fatalf("ListCelebrations: %v", err)
	}
	if len(ids) != 1 || ids[0] != "week1" {
		t.Errorf("unexpected celebrations %v", ids)
	}
}

func TestMemory_CelebrateMilestoneFnErrorDoesNotFlag(t *testing.T) {
	m := seedMemory(t, 30)
	ctx := context.Background()
	_, _, err := m.CelebrateMilestone(ctx, "u1", "day1", func(Profile) (int, error) {
		return 0, sentinel.Invalid("milestone", "not earned")
	})
	if !errors.Is(err, sentinel.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	ids, _ := m.ListCelebrations(ctx, "u1")
	if len(ids) != 0 {
		t.Errorf("failed celebration should not be recorded, got %v", ids)
	}
}

func TestMemory_ListEventsNewestFirst(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, action := range []eventlog.Action{eventlog.ActionTrustUpdate, eventlog.ActionRevealUpdate, eventlog.ActionSobrietyDateSet} {
		evt := eventlog.Event{UserID: "u1", Action: action, Timestamp: base.Add(time.Duration(i) * time.Minute)}
		if err := m.AppendEvent(ctx, evt); err != nil {
			t.Fatalf("AppendEvent: %v", err)
		}
	}
	_ = m.AppendEvent(ctx, eventlog.Event{UserID: "u2", Action: eventlog.ActionTrustUpdate, Timestamp: base})

	events, err := m.ListEvents(ctx, "u1", 2)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Action != eventlog.ActionSobrietyDateSet || events[1].Action != eventlog.ActionRevealUpdate {
		t.Errorf("unexpected order: %s, %s", events[0].Action, events[1].Action)
	}
}
