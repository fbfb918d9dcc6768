package command

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/eduforge/progression-hub/internal/domain/challenge"
	"github.com/eduforge/progression-hub/internal/domain/learner"
	"github.com/eduforge/progression-hub/internal/domain/ledger"
	"github.com/eduforge/progression-hub/internal/domain/shared"
)

// In-memory doubles for the repositories the command handlers depend on.

type memLedger struct {
	mu     sync.Mutex
	events []*ledger.XpEvent
	byID   map[shared.EventID]*ledger.XpEvent
}

func newMemLedger() *memLedger {
	return &memLedger{byID: make(map[shared.EventID]*ledger.XpEvent)}
}

func (m *memLedger) Append(_ context.Context, event *ledger.XpEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[event.ID]; ok {
		return shared.ErrDuplicateEvent
	}
	m.byID[event.ID] = event
	m.events = append(m.events, event)
	return nil
}

func (m *memLedger) GetByID(_ context.Context, id shared.EventID) (*ledger.XpEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.byID[id]
	if !ok {
		return nil, shared.ErrEventNotFound
	}
	return ev, nil
}

func (m *memLedger) ListByLearner(_ context.Context, learnerID shared.LearnerID, opts ledger.ListOptions) ([]*ledger.XpEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*ledger.XpEvent
	for _, ev := range m.events {
		if ev.LearnerID == learnerID {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	return out, nil
}

func (m *memLedger) ListByLearnerSince(ctx context.Context, learnerID shared.LearnerID, since time.Time) ([]*ledger.XpEvent, error) {
	all, _ := m.ListByLearner(ctx, learnerID, ledger.ListOptions{})
	var out []*ledger.XpEvent
	for _, ev := range all {
		if !ev.OccurredAt.Before(since) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *memLedger) TotalXP(_ context.Context, learnerID shared.LearnerID) (shared.XP, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, ev := range m.events {
		if ev.LearnerID == learnerID {
			total += int64(ev.Amount)
		}
	}
	return shared.XP(total), nil
}

func (m *memLedger) Summarize(ctx context.Context, learnerID shared.LearnerID) (ledger.Summary, error) {
	all, _ := m.ListByLearner(ctx, learnerID, ledger.ListOptions{})
	return ledger.Summarize(learnerID, all), nil
}

func (m *memLedger) CountBySource(_ context.Context, learnerID shared.LearnerID, source ledger.Source) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, ev := range m.events {
		if ev.LearnerID == learnerID && ev.Source == source {
			n++
		}
	}
	return n, nil
}

func (m *memLedger) ActivityDates(_ context.Context, learnerID shared.LearnerID, since time.Time) ([]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[time.Time]bool{}
	var out []time.Time
	for _, ev := range m.events {
		if ev.LearnerID != learnerID || !ev.IsLearningActivity() || ev.OccurredAt.Before(since) {
			continue
		}
		y, mo, d := ev.OccurredAt.UTC().Date()
		day := time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
		if !seen[day] {
			seen[day] = true
			out = append(out, day)
		}
	}
	return out, nil
}

func (m *memLedger) Exists(_ context.Context, id shared.EventID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byID[id]
	return ok, nil
}

func (m *memLedger) ExistsBySourceRef(_ context.Context, learnerID shared.LearnerID, source ledger.Source, reference string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ev := range m.events {
		if ev.LearnerID == learnerID && ev.Source == source && ev.Reference == reference {
			return true, nil
		}
	}
	return false, nil
}

type memLearners struct {
	mu   sync.Mutex
	byID map[shared.LearnerID]*learner.Learner
}

func newMemLearners() *memLearners {
	return &memLearners{byID: make(map[shared.LearnerID]*learner.Learner)}
}

func (m *memLearners) Create(_ context.Context, l *learner.Learner) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[l.ID]; ok {
		return shared.ErrLearnerAlreadyExists
	}
	for _, existing := range m.byID {
		if existing.PlatformID == l.PlatformID {
			return shared.ErrLearnerAlreadyExists
		}
	}
	m.byID[l.ID] = l.Clone()
	return nil
}

func (m *memLearners) GetByID(_ context.Context, id shared.LearnerID) (*learner.Learner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.byID[id]
	if !ok {
		return nil, shared.ErrLearnerNotFound
	}
	return l.Clone(), nil
}

func (m *memLearners) GetByPlatformID(_ context.Context, platformID string) (*learner.Learner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.byID {
		if l.PlatformID == platformID {
			return l.Clone(), nil
		}
	}
	return nil, shared.ErrLearnerNotFound
}

func (m *memLearners) Update(_ context.Context, l *learner.Learner) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[l.ID]; !ok {
		return shared.ErrLearnerNotFound
	}
	m.byID[l.ID] = l.Clone()
	return nil
}

func (m *memLearners) GetAll(_ context.Context, p shared.Pagination) ([]*learner.Learner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]*learner.Learner, 0, len(m.byID))
	for _, l := range m.byID {
		all = append(all, l.Clone())
	}
	sort.Slice(all, func(i, j int) bool { return all[i].TotalXP > all[j].TotalXP })
	start := (p.Page - 1) * p.PageSize
	if start >= len(all) {
		return nil, nil
	}
	end := start + p.PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (m *memLearners) GetByIDs(ctx context.Context, ids []shared.LearnerID) ([]*learner.Learner, error) {
	var out []*learner.Learner
	for _, id := range ids {
		if l, err := m.GetByID(ctx, id); err == nil {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memLearners) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID), nil
}

func (m *memLearners) FindStale(_ context.Context, olderThan time.Duration, limit int) ([]*learner.Learner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	var out []*learner.Learner
	for _, l := range m.byID {
		if l.LastSyncedAt.Before(cutoff) && len(out) < limit {
			out = append(out, l.Clone())
		}
	}
	return out, nil
}

func (m *memLearners) FindActiveYesterday(_ context.Context, day time.Time) ([]*learner.Learner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*learner.Learner
	for _, l := range m.byID {
		ly, lm, ld := l.LastActiveDate.UTC().Date()
		dy, dm, dd := day.UTC().Date()
		if ly == dy && lm == dm && ld == dd {
			out = append(out, l.Clone())
		}
	}
	return out, nil
}

func (m *memLearners) Exists(_ context.Context, id shared.LearnerID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byID[id]
	return ok, nil
}

type memChallenges struct {
	mu   sync.Mutex
	byID map[string]*challenge.Challenge
}

func newMemChallenges() *memChallenges {
	return &memChallenges{byID: make(map[string]*challenge.Challenge)}
}

func (m *memChallenges) Create(_ context.Context, c *challenge.Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[c.ID]; ok {
		return shared.ErrChallengeAlreadyExists
	}
	m.byID[c.ID] = c.Clone()
	return nil
}

func (m *memChallenges) GetByID(_ context.Context, id string) (*challenge.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return nil, shared.ErrChallengeNotFound
	}
	return c.Clone(), nil
}

func (m *memChallenges) Update(_ context.Context, c *challenge.Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[c.ID]; !ok {
		return shared.ErrChallengeNotFound
	}
	m.byID[c.ID] = c.Clone()
	return nil
}

func (m *memChallenges) ListActive(_ context.Context, learnerID shared.LearnerID, now time.Time) ([]*challenge.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*challenge.Challenge
	for _, c := range m.byID {
		if c.LearnerID == learnerID && c.StatusAt(now).IsActive() {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memChallenges) ListByLearner(_ context.Context, learnerID shared.LearnerID, from, to time.Time) ([]*challenge.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*challenge.Challenge
	for _, c := range m.byID {
		if c.LearnerID == learnerID && !c.IssuedAt.Before(from) && c.IssuedAt.Before(to) {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}

func (m *memChallenges) HasActiveOfType(ctx context.Context, learnerID shared.LearnerID, challengeType challenge.Type, now time.Time) (bool, error) {
	active, _ := m.ListActive(ctx, learnerID, now)
	for _, c := range active {
		if c.Type == challengeType {
			return true, nil
		}
	}
	return false, nil
}

func (m *memChallenges) ListExpiredUnclaimed(_ context.Context, before time.Time, limit int) ([]*challenge.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*challenge.Challenge
	for _, c := range m.byID {
		if c.StatusAt(before) == challenge.StatusExpired && len(out) < limit {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}

func (m *memChallenges) MarkExpiryNotified(_ context.Context, challengeID string) error {
	return nil
}

type memBus struct {
	mu     sync.Mutex
	events []shared.Event
}

func (m *memBus) Publish(event shared.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *memBus) published(eventType shared.EventType) []shared.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []shared.Event
	for _, ev := range m.events {
		if ev.EventType() == eventType {
			out = append(out, ev)
		}
	}
	return out
}
