package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/veilmatch/internal/eventlog"
	"github.com/MikeSquared-Agency/veilmatch/internal/sentinel"
)

// Memory is an in-process store with the same semantics as Store. A single
// mutex serializes every read-modify-write.
type Memory struct {
	mu           sync.Mutex
	profiles     map[string]*Profile
	celebrations map[string][]string
	events       []eventlog.Event
	now          func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		profiles:     make(map[string]*Profile),
		celebrations: make(map[string][]string),
		now:          time.Now,
	}
}

func (m *Memory) Close() {}

func (m *Memory) Migrate(context.Context) error { return nil }

func copyProfile(p *Profile) *Profile {
	out := *p
	if p.SobrietyDate != nil {
		d := *p.SobrietyDate
		out.SobrietyDate = &d
	}
	return &out
}

func (m *Memory) lookup(userID, what string) (*Profile, error) {
	p, ok := m.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", what, sentinel.ErrNotFound)
	}
	return p, nil
}

func (m *Memory) EnsureProfile(_ context.Context, p Profile) (*Profile, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.profiles[p.UserID]; ok {
		return copyProfile(existing), false, nil
	}
	now := m.now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	m.profiles[p.UserID] = copyProfile(&p)
	return copyProfile(&p), true, nil
}

func (m *Memory) GetProfile(_ context.Context, userID string) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.lookup(userID, "get profile")
	if err != nil {
		return nil, err
	}
	return copyProfile(p), nil
}

func (m *Memory) UpdateTrustScore(_ context.Context, userID string, fn func(current int) (int, error)) (from, to int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.lookup(userID, "lock profile")
	if err != nil {
		return 0, 0, err
	}
	next, err := fn(p.TrustScore)
	if err != nil {
		return p.TrustScore, p.TrustScore, err
	}
	from = p.TrustScore
	p.TrustScore = next
	p.UpdatedAt = m.now().UTC()
	return from, next, nil
}

func (m *Memory) UpdateRevealPercent(_ context.Context, userID string, fn func(p Profile) (int, error)) (from, to int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.lookup(userID, "lock profile")
	if err != nil {
		return 0, 0, err
	}
	next, err := fn(*copyProfile(p))
	if err != nil {
		return p.RevealPercent, p.RevealPercent, err
	}
	from = p.RevealPercent
	p.RevealPercent = next
	p.UpdatedAt = m.now().UTC()
	return from, next, nil
}

func (m *Memory) SetSobrietyDate(_ context.Context, userID string, date time.Time) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.lookup(userID, "lock profile")
	if err != nil {
		return nil, err
	}
	prev := p.SobrietyDate
	p.SobrietyDate = &date
	p.UpdatedAt = m.now().UTC()
	return prev, nil
}

func (m *Memory) SetPhoto(_ context.Context, userID, originalURL, avatarURL string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.lookup(userID, "lock profile")
	if err != nil {
		return "", err
	}
	prev := p.OriginalPhotoURL
	p.OriginalPhotoURL = originalURL
	p.AvatarURL = avatarURL
	p.UpdatedAt = m.now().UTC()
	return prev, nil
}

func (m *Memory) CelebrateMilestone(_ context.Context, userID, milestoneID string, fn func(p Profile) (int, error)) (from, to int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.lookup(userID, "lock profile")
	if err != nil {
		return 0, 0, err
	}
	for _, id := range m.celebrations[userID] {
		if id == milestoneID {
			return p.TrustScore, p.TrustScore, fmt.Errorf("milestone %s already celebrated: %w", milestoneID, sentinel.ErrConflict)
		}
	}
	next, err := fn(*copyProfile(p))
	if err != nil {
		return p.TrustScore, p.TrustScore, err
	}
	m.celebrations[userID] = append(m.celebrations[userID], milestoneID)
	from = p.TrustScore
	p.TrustScore = next
	p.UpdatedAt = m.now().UTC()
	return from, next, nil
}

func (m *Memory) ListCelebrations(_ context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string{}, m.celebrations[userID]...), nil
}

func (m *Memory) AppendEvent(_ context.Context, evt eventlog.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, evt)
	return nil
}

func (m *Memory) ListEvents(_ context.Context, userID string, limit int) ([]eventlog.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []eventlog.Event{}
	for _, e := range m.events {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
