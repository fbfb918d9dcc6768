package saga

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduforge/progression-hub/internal/application/command"
	"github.com/eduforge/progression-hub/internal/domain/achievement"
	"github.com/eduforge/progression-hub/internal/domain/learner"
	"github.com/eduforge/progression-hub/internal/domain/ledger"
	"github.com/eduforge/progression-hub/internal/domain/progression"
	"github.com/eduforge/progression-hub/internal/domain/shared"
)

// ─────────────────────────────────────────────────────────────────────────────
// Test doubles
// ─────────────────────────────────────────────────────────────────────────────

type stubLearners struct {
	learner *learner.Learner
}

func (s *stubLearners) Create(context.Context, *learner.Learner) error { return nil }
func (s *stubLearners) GetByID(_ context.Context, id shared.LearnerID) (*learner.Learner, error) {
	if s.learner == nil || s.learner.ID != id {
		return nil, shared.ErrLearnerNotFound
	}
	return s.learner.Clone(), nil
}
func (s *stubLearners) GetByPlatformID(context.Context, string) (*learner.Learner, error) {
	return nil, shared.ErrLearnerNotFound
}
func (s *stubLearners) Update(context.Context, *learner.Learner) error { return nil }
func (s *stubLearners) GetAll(context.Context, shared.Pagination) ([]*learner.Learner, error) {
	return nil, nil
}
func (s *stubLearners) GetByIDs(context.Context, []shared.LearnerID) ([]*learner.Learner, error) {
	return nil, nil
}
func (s *stubLearners) Count(context.Context) (int, error) { return 1, nil }
func (s *stubLearners) FindStale(context.Context, time.Duration, int) ([]*learner.Learner, error) {
	return nil, nil
}
func (s *stubLearners) FindActiveYesterday(context.Context, time.Time) ([]*learner.Learner, error) {
	return nil, nil
}
func (s *stubLearners) Exists(context.Context, shared.LearnerID) (bool, error) { return true, nil }

type stubCatalog struct {
	achievements []*achievement.Achievement
}

func (s *stubCatalog) GetAll(context.Context) ([]*achievement.Achievement, error) {
	return s.achievements, nil
}
func (s *stubCatalog) GetByID(_ context.Context, id string) (*achievement.Achievement, error) {
	for _, a := range s.achievements {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, shared.ErrAchievementNotFound
}
func (s *stubCatalog) GetByRequirementType(_ context.Context, rt achievement.RequirementType) ([]*achievement.Achievement, error) {
	var out []*achievement.Achievement
	for _, a := range s.achievements {
		if a.RequirementType == rt {
			out = append(out, a)
		}
	}
	return out, nil
}
func (s *stubCatalog) Upsert(context.Context, *achievement.Achievement) error { return nil }

type memUnlocks struct {
	mu      sync.Mutex
	unlocks map[string]*achievement.Unlock // keyed by achievement ID
}

func newMemUnlocks() *memUnlocks {
	return &memUnlocks{unlocks: make(map[string]*achievement.Unlock)}
}

func (m *memUnlocks) Save(_ context.Context, unlock *achievement.Unlock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.unlocks[unlock.AchievementID]; ok {
		return shared.ErrRewardAlreadyGranted
	}
	m.unlocks[unlock.AchievementID] = unlock
	return nil
}

func (m *memUnlocks) GetByLearner(context.Context, shared.LearnerID) ([]*achievement.Unlock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*achievement.Unlock
	for _, u := range m.unlocks {
		out = append(out, u)
	}
	return out, nil
}

func (m *memUnlocks) UnlockedIDs(context.Context, shared.LearnerID) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]bool, len(m.unlocks))
	for id := range m.unlocks {
		out[id] = true
	}
	return out, nil
}

func (m *memUnlocks) IsUnlocked(_ context.Context, _ shared.LearnerID, achievementID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.unlocks[achievementID]
	return ok, nil
}

func (m *memUnlocks) CountByLearner(context.Context, shared.LearnerID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.unlocks), nil
}

type stubPlatform struct {
	counters progression.Counters
	err      error
}

func (s *stubPlatform) FetchLearnerCounters(context.Context, string) (progression.Counters, error) {
	if s.err != nil {
		return progression.Counters{}, s.err
	}
	return s.counters, nil
}

type stubCache struct {
	mu       sync.Mutex
	counters progression.Counters
	hasValue bool
}

func (s *stubCache) Get(context.Context, shared.LearnerID) (progression.Counters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasValue {
		return progression.Counters{}, shared.ErrNotFound
	}
	return s.counters, nil
}

func (s *stubCache) Set(_ context.Context, _ shared.LearnerID, c progression.Counters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters = c
	s.hasValue = true
	return nil
}

type recordedXP struct {
	cmd command.RecordXPCommand
}

// stubRecorder doubles as the XP recorder and the ledger view: an event
// exists once a mint with its source and reference went through.
type stubRecorder struct {
	mu       sync.Mutex
	minted   []recordedXP
	eventID  int
	failures int // Handle errors out this many times before healing
}

func (s *stubRecorder) Handle(_ context.Context, cmd command.RecordXPCommand) (*command.RecordXPResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return nil, errors.New("ledger temporarily unavailable")
	}
	s.minted = append(s.minted, recordedXP{cmd: cmd})
	s.eventID++
	id := cmd.EventID
	if id == "" {
		id = string(shared.GenerateEventID())
	}
	return &command.RecordXPResult{EventID: id}, nil
}

func (s *stubRecorder) ExistsBySourceRef(_ context.Context, _ shared.LearnerID, source ledger.Source, reference string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.minted {
		if m.cmd.Source == string(source) && m.cmd.Reference == reference {
			return true, nil
		}
	}
	return false, nil
}

type collectBus struct {
	mu     sync.Mutex
	events []shared.Event
}

func (b *collectBus) Publish(event shared.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Fixtures
// ─────────────────────────────────────────────────────────────────────────────

func mustAchievement(t *testing.T, id string, rt achievement.RequirementType, value, reward int) *achievement.Achievement {
	t.Helper()
	a, err := achievement.NewAchievement(achievement.NewAchievementParams{
		ID:               id,
		Name:             "Achievement " + id,
		Description:      "test",
		RequirementType:  rt,
		RequirementValue: value,
		XPReward:         reward,
	})
	require.NoError(t, err)
	return a
}

func newSagaFixture(t *testing.T, counters progression.Counters, catalog []*achievement.Achievement) (*RewardFlowSaga, *memUnlocks, *stubRecorder, *collectBus, *learner.Learner) {
	t.Helper()
	lrn, err := learner.NewLearner(learner.NewLearnerParams{
		PlatformID:  "pf-1",
		DisplayName: "Test Learner",
	})
	require.NoError(t, err)

	unlocks := newMemUnlocks()
	recorder := &stubRecorder{}
	bus := &collectBus{}

	s := NewRewardFlowSaga(
		&stubLearners{learner: lrn},
		&stubCatalog{achievements: catalog},
		unlocks,
		recorder,
		&stubPlatform{counters: counters},
		&stubCache{},
		recorder,
		bus,
		DefaultRewardFlowConfig(),
	)
	return s, unlocks, recorder, bus, lrn
}

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestRewardFlowSaga_Execute(t *testing.T) {
	counters := progression.Counters{
		CoursesCompleted: 2,
		ModulesCompleted: 12,
		FetchedAt:        time.Now().UTC(),
	}
	catalog := []*achievement.Achievement{
		mustAchievement(t, "first-course", achievement.RequirementCoursesCompleted, 1, 100),
		mustAchievement(t, "ten-modules", achievement.RequirementModulesCompleted, 10, 50),
		mustAchievement(t, "hundred-modules", achievement.RequirementModulesCompleted, 100, 500),
	}

	t.Run("first pass unlocks completed achievements once", func(t *testing.T) {
		s, unlocks, recorder, bus, lrn := newSagaFixture(t, counters, catalog)

		result, err := s.Execute(context.Background(), RewardFlowInput{
			LearnerID: string(lrn.ID),
			Trigger:   "sync",
		})
		require.NoError(t, err)

		require.Len(t, result.NewUnlocks, 2)
		assert.Equal(t, 150, result.TotalRewardXP)

		ids, err := unlocks.UnlockedIDs(context.Background(), lrn.ID)
		require.NoError(t, err)
		assert.True(t, ids["first-course"])
		assert.True(t, ids["ten-modules"])
		assert.False(t, ids["hundred-modules"])

		require.Len(t, recorder.minted, 2)
		for _, m := range recorder.minted {
			assert.Equal(t, "achievement_unlock", m.cmd.Source)
			assert.NotEmpty(t, m.cmd.EventID)
		}

		unlockedEvents := 0
		for _, ev := range bus.events {
			if ev.EventType() == shared.EventAchievementUnlocked {
				unlockedEvents++
			}
		}
		assert.Equal(t, 2, unlockedEvents)
	})

	t.Run("re-evaluation grants nothing new", func(t *testing.T) {
		s, _, recorder, _, lrn := newSagaFixture(t, counters, catalog)

		_, err := s.Execute(context.Background(), RewardFlowInput{LearnerID: string(lrn.ID)})
		require.NoError(t, err)
		require.Len(t, recorder.minted, 2)

		second, err := s.Execute(context.Background(), RewardFlowInput{LearnerID: string(lrn.ID)})
		require.NoError(t, err)
		assert.Empty(t, second.NewUnlocks)
		assert.Len(t, recorder.minted, 2, "no additional rewards on replay")
	})

	t.Run("platform outage falls back to cached snapshot", func(t *testing.T) {
		lrn, err := learner.NewLearner(learner.NewLearnerParams{
			PlatformID:  "pf-2",
			DisplayName: "Offline Learner",
		})
		require.NoError(t, err)

		cache := &stubCache{}
		require.NoError(t, cache.Set(context.Background(), lrn.ID, counters))

		recorder := &stubRecorder{}
		s := NewRewardFlowSaga(
			&stubLearners{learner: lrn},
			&stubCatalog{achievements: catalog},
			newMemUnlocks(),
			recorder,
			&stubPlatform{err: errors.New("connection refused")},
			cache,
			recorder,
			&collectBus{},
			DefaultRewardFlowConfig(),
		)

		result, err := s.Execute(context.Background(), RewardFlowInput{LearnerID: string(lrn.ID)})
		require.NoError(t, err)
		assert.True(t, result.FromCachedCounters)
		assert.Len(t, result.NewUnlocks, 2)
	})

	t.Run("platform outage with empty cache fails the pass", func(t *testing.T) {
		lrn, err := learner.NewLearner(learner.NewLearnerParams{
			PlatformID:  "pf-3",
			DisplayName: "Unlucky Learner",
		})
		require.NoError(t, err)

		recorder := &stubRecorder{}
		s := NewRewardFlowSaga(
			&stubLearners{learner: lrn},
			&stubCatalog{achievements: catalog},
			newMemUnlocks(),
			recorder,
			&stubPlatform{err: errors.New("connection refused")},
			&stubCache{},
			recorder,
			&collectBus{},
			DefaultRewardFlowConfig(),
		)

		_, err = s.Execute(context.Background(), RewardFlowInput{LearnerID: string(lrn.ID)})
		require.Error(t, err)
	})

	t.Run("failed mint is repaired on the next pass", func(t *testing.T) {
		s, unlocks, recorder, bus, lrn := newSagaFixture(t, counters, catalog[:1])
		recorder.failures = 1

		first, err := s.Execute(context.Background(), RewardFlowInput{LearnerID: string(lrn.ID)})
		require.NoError(t, err)
		require.Len(t, first.NewUnlocks, 1)
		assert.Equal(t, 0, first.TotalRewardXP, "unlock recorded, mint failed")
		assert.Empty(t, recorder.minted)

		stored, err := unlocks.GetByLearner(context.Background(), lrn.ID)
		require.NoError(t, err)
		require.Len(t, stored, 1)

		second, err := s.Execute(context.Background(), RewardFlowInput{LearnerID: string(lrn.ID)})
		require.NoError(t, err)
		assert.Empty(t, second.NewUnlocks)
		assert.Equal(t, 1, second.RemintedRewards)
		assert.Equal(t, 100, second.TotalRewardXP)

		require.Len(t, recorder.minted, 1)
		assert.Equal(t, string(stored[0].RewardEventID), recorder.minted[0].cmd.EventID,
			"re-mint reuses the event id stored on the unlock")

		granted := 0
		for _, ev := range bus.events {
			if ev.EventType() == shared.EventRewardGranted {
				granted++
			}
		}
		assert.Equal(t, 1, granted)

		third, err := s.Execute(context.Background(), RewardFlowInput{LearnerID: string(lrn.ID)})
		require.NoError(t, err)
		assert.Zero(t, third.RemintedRewards)
		assert.Len(t, recorder.minted, 1, "no second mint once the event is in the ledger")
	})

	t.Run("unlock cap limits one pass", func(t *testing.T) {
		bigCatalog := make([]*achievement.Achievement, 0, 8)
		for i := 0; i < 8; i++ {
			bigCatalog = append(bigCatalog, mustAchievement(
				t,
				string(rune('a'+i))+"-modules",
				achievement.RequirementModulesCompleted,
				i+1,
				10,
			))
		}

		s, _, recorder, _, lrn := newSagaFixture(t, counters, bigCatalog)

		result, err := s.Execute(context.Background(), RewardFlowInput{LearnerID: string(lrn.ID)})
		require.NoError(t, err)
		assert.Len(t, result.NewUnlocks, DefaultRewardFlowConfig().MaxUnlocksPerRun)
		assert.Len(t, recorder.minted, DefaultRewardFlowConfig().MaxUnlocksPerRun)
	})
}
