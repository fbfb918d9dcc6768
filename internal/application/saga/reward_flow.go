// Package saga contains complex business processes that orchestrate
// multiple domain operations in a coordinated manner.
package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eduforge/progression-hub/internal/application/command"
	"github.com/eduforge/progression-hub/internal/domain/achievement"
	"github.com/eduforge/progression-hub/internal/domain/learner"
	"github.com/eduforge/progression-hub/internal/domain/ledger"
	"github.com/eduforge/progression-hub/internal/domain/progression"
	"github.com/eduforge/progression-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REWARD FLOW SAGA
// Complex business process: achievement evaluation and reward granting.
// Flow: Load Learner → Fetch Counters → Load Catalog → Evaluate →
//
//	Repair Missing Rewards → Record Unlocks → Mint Reward XP → Publish Events
//
// Evaluation is level-triggered and sync-triggered, never claim-triggered,
// so a reward can only be granted once per (learner, achievement) pair.
// ══════════════════════════════════════════════════════════════════════════════

// RewardLedger is the slice of the XP ledger the saga reads to detect
// unlocks whose reward event never landed.
type RewardLedger interface {
	ExistsBySourceRef(ctx context.Context, learnerID shared.LearnerID, source ledger.Source, reference string) (bool, error)
}

// RewardFlowInput contains data needed to run one evaluation pass.
type RewardFlowInput struct {
	// LearnerID - the learner to evaluate.
	LearnerID string

	// Trigger - what triggered this evaluation (e.g., "level_up", "sync").
	Trigger string

	// Counters - a pre-fetched snapshot. If zero, the saga fetches one.
	Counters progression.Counters

	// CorrelationID for tracing across services.
	CorrelationID string
}

// Validate checks if the input is valid.
func (i RewardFlowInput) Validate() error {
	if i.LearnerID == "" {
		return errors.New("reward_flow: learner ID is required")
	}
	return nil
}

// RewardFlowResult contains the result of one evaluation pass.
type RewardFlowResult struct {
	// LearnerID - the evaluated learner.
	LearnerID string

	// NewUnlocks - achievements unlocked in this pass.
	NewUnlocks []*achievement.Achievement

	// TotalRewardXP - total XP minted in this pass, re-mints included.
	TotalRewardXP int

	// RemintedRewards - rewards re-issued for unlocks recorded in an
	// earlier pass whose ledger event was missing.
	RemintedRewards int

	// FromCachedCounters - true when the platform was unreachable and
	// the evaluation used the last cached snapshot.
	FromCachedCounters bool

	// ProcessedAt - when the flow completed.
	ProcessedAt time.Time
}

// HasNewUnlocks returns true if any achievements were unlocked.
func (r *RewardFlowResult) HasNewUnlocks() bool {
	return len(r.NewUnlocks) > 0
}

// RewardFlowStep represents a step in the reward flow.
type RewardFlowStep string

const (
	StepLoadLearner    RewardFlowStep = "load_learner"
	StepFetchCounters  RewardFlowStep = "fetch_counters"
	StepLoadCatalog    RewardFlowStep = "load_catalog"
	StepEvaluate       RewardFlowStep = "evaluate"
	StepRepairRewards  RewardFlowStep = "repair_rewards"
	StepRecordUnlocks  RewardFlowStep = "record_unlocks"
	StepMintRewards    RewardFlowStep = "mint_rewards"
	StepPublishEvents  RewardFlowStep = "publish_events"
	StepRewardComplete RewardFlowStep = "complete"
)

// rewardFlowState tracks the saga's progress through its steps.
type rewardFlowState struct {
	currentStep    RewardFlowStep
	input          RewardFlowInput
	learner        *learner.Learner
	counters       progression.Counters
	fromCache      bool
	catalog        []*achievement.Achievement
	unlocked       map[string]bool
	newUnlocks     []*achievement.Achievement
	repairs        []*achievement.Achievement
	rewardEventIDs map[string]shared.EventID
	rewardXP       int
	reminted       int
	events         []shared.Event
	startedAt      time.Time
	failedStep     RewardFlowStep
	err            error
}

// ══════════════════════════════════════════════════════════════════════════════
// REWARD FLOW SAGA IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// RewardFlowSaga orchestrates achievement evaluation and reward granting.
type RewardFlowSaga struct {
	// Dependencies
	learnerRepo    learner.Repository
	catalogRepo    achievement.CatalogRepository
	unlockRepo     achievement.UnlockRepository
	rewardLedger   RewardLedger
	platformClient command.PlatformClient
	countersCache  command.CountersCache
	xpRecorder     command.XPRecorder
	eventPublisher shared.EventPublisher
	evaluator      *achievement.Evaluator

	// Configuration
	maxUnlocksPerRun int
}

// RewardFlowConfig contains configuration for the reward flow saga.
type RewardFlowConfig struct {
	// MaxUnlocksPerRun caps unlocks in a single pass. A miscounted
	// platform snapshot then cannot flood a learner with rewards.
	MaxUnlocksPerRun int
}

// DefaultRewardFlowConfig returns default configuration.
func DefaultRewardFlowConfig() RewardFlowConfig {
	return RewardFlowConfig{
		MaxUnlocksPerRun: 5,
	}
}

// NewRewardFlowSaga creates a new reward flow saga with all dependencies.
func NewRewardFlowSaga(
	learnerRepo learner.Repository,
	catalogRepo achievement.CatalogRepository,
	unlockRepo achievement.UnlockRepository,
	rewardLedger RewardLedger,
	platformClient command.PlatformClient,
	countersCache command.CountersCache,
	xpRecorder command.XPRecorder,
	eventPublisher shared.EventPublisher,
	config RewardFlowConfig,
) *RewardFlowSaga {
	if config.MaxUnlocksPerRun <= 0 {
		config = DefaultRewardFlowConfig()
	}

	return &RewardFlowSaga{
		learnerRepo:      learnerRepo,
		catalogRepo:      catalogRepo,
		unlockRepo:       unlockRepo,
		rewardLedger:     rewardLedger,
		platformClient:   platformClient,
		countersCache:    countersCache,
		xpRecorder:       xpRecorder,
		eventPublisher:   eventPublisher,
		evaluator:        achievement.NewEvaluator(),
		maxUnlocksPerRun: config.MaxUnlocksPerRun,
	}
}

// Execute runs the complete evaluation and reward granting process.
func (s *RewardFlowSaga) Execute(ctx context.Context, input RewardFlowInput) (*RewardFlowResult, error) {
	state := &rewardFlowState{
		currentStep: StepLoadLearner,
		input:       input,
		startedAt:   time.Now().UTC(),
	}

	// Validate input
	if err := input.Validate(); err != nil {
		state.failedStep = StepLoadLearner
		state.err = err
		return nil, s.wrapError(state, err)
	}

	// Step 1: Load learner
	if err := s.stepLoadLearner(ctx, state); err != nil {
		return nil, s.wrapError(state, err)
	}

	// Step 2: Fetch counters (platform, cache fallback)
	state.currentStep = StepFetchCounters
	if err := s.stepFetchCounters(ctx, state); err != nil {
		return nil, s.wrapError(state, err)
	}

	// Step 3: Load catalog and existing unlocks
	state.currentStep = StepLoadCatalog
	if err := s.stepLoadCatalog(ctx, state); err != nil {
		return nil, s.wrapError(state, err)
	}

	// Step 4: Evaluate all requirements against the snapshot
	state.currentStep = StepEvaluate
	if err := s.stepEvaluate(state); err != nil {
		return nil, s.wrapError(state, err)
	}

	// Step 5: Find earlier unlocks whose reward never reached the ledger
	state.currentStep = StepRepairRewards
	if err := s.stepRepairRewards(ctx, state); err != nil {
		return nil, s.wrapError(state, err)
	}

	// If nothing to unlock or repair, return early
	if len(state.newUnlocks) == 0 && len(state.repairs) == 0 {
		return s.result(state), nil
	}

	// Step 6: Record unlocks (idempotency barrier)
	if len(state.newUnlocks) > 0 {
		state.currentStep = StepRecordUnlocks
		if err := s.stepRecordUnlocks(ctx, state); err != nil {
			return nil, s.wrapError(state, err)
		}
	}

	// Step 7: Mint reward XP for recorded unlocks
	state.currentStep = StepMintRewards
	if err := s.stepMintRewards(ctx, state); err != nil {
		// Non-critical at this point: unlocks are recorded, so the next
		// pass re-mints the missing rewards under their stored event IDs.
	}

	// Step 8: Publish domain events
	state.currentStep = StepPublishEvents
	s.stepPublishEvents(state)

	// Complete
	state.currentStep = StepRewardComplete
	return s.result(state), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SAGA STEPS
// ══════════════════════════════════════════════════════════════════════════════

// stepLoadLearner loads the learner entity from the repository.
func (s *RewardFlowSaga) stepLoadLearner(ctx context.Context, state *rewardFlowState) error {
	lid, err := shared.NewLearnerID(state.input.LearnerID)
	if err != nil {
		state.failedStep = StepLoadLearner
		state.err = err
		return err
	}

	lrn, err := s.learnerRepo.GetByID(ctx, lid)
	if err != nil {
		state.failedStep = StepLoadLearner
		state.err = fmt.Errorf("failed to load learner: %w", err)
		return state.err
	}

	state.learner = lrn
	return nil
}

// stepFetchCounters obtains the counter snapshot the evaluation runs on.
func (s *RewardFlowSaga) stepFetchCounters(ctx context.Context, state *rewardFlowState) error {
	// A pre-fetched snapshot from the caller wins.
	if !state.input.Counters.IsZero() {
		state.counters = state.input.Counters
		return nil
	}

	counters, err := s.platformClient.FetchLearnerCounters(ctx, state.learner.PlatformID)
	if err == nil {
		counters.FetchedAt = time.Now().UTC()
		state.counters = counters
		_ = s.countersCache.Set(ctx, state.learner.ID, counters)
		return nil
	}

	// Platform down: evaluate against the last known snapshot rather
	// than skipping the pass entirely. Monotonic requirements can only
	// be undercounted this way, never overcounted.
	cached, cacheErr := s.countersCache.Get(ctx, state.learner.ID)
	if cacheErr != nil {
		state.failedStep = StepFetchCounters
		state.err = fmt.Errorf("platform fetch failed and no cached snapshot: %w", err)
		return state.err
	}
	state.counters = cached
	state.fromCache = true
	return nil
}

// stepLoadCatalog loads the achievement catalog and the learner's unlocks.
func (s *RewardFlowSaga) stepLoadCatalog(ctx context.Context, state *rewardFlowState) error {
	catalog, err := s.catalogRepo.GetAll(ctx)
	if err != nil {
		state.failedStep = StepLoadCatalog
		state.err = fmt.Errorf("failed to load catalog: %w", err)
		return state.err
	}

	unlocked, err := s.unlockRepo.UnlockedIDs(ctx, state.learner.ID)
	if err != nil {
		state.failedStep = StepLoadCatalog
		state.err = fmt.Errorf("failed to load unlocks: %w", err)
		return state.err
	}

	state.catalog = catalog
	state.unlocked = unlocked
	return nil
}

// stepEvaluate runs the pure evaluator over the snapshot.
func (s *RewardFlowSaga) stepEvaluate(state *rewardFlowState) error {
	// Streak days are owned by this service; override whatever the
	// platform snapshot claims.
	counters := state.counters
	counters.StreakDays = state.learner.LiveStreak(time.Now().UTC())

	evaluation, err := s.evaluator.Evaluate(state.learner.ID, counters, state.catalog, state.unlocked)
	if err != nil {
		state.failedStep = StepEvaluate
		state.err = fmt.Errorf("evaluation failed: %w", err)
		return state.err
	}

	newUnlocks := evaluation.NewlyCompleted
	if len(newUnlocks) > s.maxUnlocksPerRun {
		newUnlocks = newUnlocks[:s.maxUnlocksPerRun]
	}
	state.newUnlocks = newUnlocks
	return nil
}

// stepRepairRewards queues re-mints for unlocks recorded in an earlier pass
// whose reward event is absent from the ledger (a crash or a transient
// failure between recording and minting). Each re-mint reuses the event ID
// stored on the unlock, so a replay cannot pay twice.
func (s *RewardFlowSaga) stepRepairRewards(ctx context.Context, state *rewardFlowState) error {
	state.rewardEventIDs = make(map[string]shared.EventID, len(state.newUnlocks))
	if len(state.unlocked) == 0 {
		return nil
	}

	byID := make(map[string]*achievement.Achievement, len(state.catalog))
	for _, a := range state.catalog {
		byID[a.ID] = a
	}

	unlocks, err := s.unlockRepo.GetByLearner(ctx, state.learner.ID)
	if err != nil {
		state.failedStep = StepRepairRewards
		state.err = fmt.Errorf("failed to load unlock records: %w", err)
		return state.err
	}

	for _, u := range unlocks {
		a, ok := byID[u.AchievementID]
		if !ok {
			continue
		}
		minted, err := s.rewardLedger.ExistsBySourceRef(ctx, state.learner.ID, ledger.SourceAchievementUnlock, u.AchievementID)
		if err != nil {
			state.failedStep = StepRepairRewards
			state.err = fmt.Errorf("failed to check reward event for %s: %w", u.AchievementID, err)
			return state.err
		}
		if minted {
			continue
		}
		state.rewardEventIDs[a.ID] = u.RewardEventID
		state.repairs = append(state.repairs, a)
	}
	return nil
}

// stepRecordUnlocks persists the unlock records. The unique constraint on
// (learner, achievement) makes this the idempotency barrier: a concurrent
// pass that loses the race treats the duplicate as already handled.
func (s *RewardFlowSaga) stepRecordUnlocks(ctx context.Context, state *rewardFlowState) error {
	recorded := make([]*achievement.Achievement, 0, len(state.newUnlocks))
	for _, a := range state.newUnlocks {
		// The reward ledger event ID is assigned before the unlock is
		// saved. A crash between saving and minting then leaves a record
		// of which event the retry must produce, and the ledger's
		// duplicate check keeps the retry from paying twice.
		rewardEventID := shared.GenerateEventID()
		state.rewardEventIDs[a.ID] = rewardEventID
		unlock := achievement.NewUnlock(state.learner.ID, a.ID, rewardEventID)
		if err := s.unlockRepo.Save(ctx, unlock); err != nil {
			if shared.IsAlreadyExists(err) {
				continue
			}
			state.failedStep = StepRecordUnlocks
			state.err = fmt.Errorf("failed to record unlock %s: %w", a.ID, err)
			// Keep what was recorded so far; those rewards still mint.
			state.newUnlocks = recorded
			return state.err
		}
		recorded = append(recorded, a)
	}
	state.newUnlocks = recorded
	return nil
}

// stepMintRewards appends one reward XP event per recorded unlock and per
// queued repair.
func (s *RewardFlowSaga) stepMintRewards(ctx context.Context, state *rewardFlowState) error {
	var firstErr error
	for _, a := range state.newUnlocks {
		result, err := s.mintReward(ctx, state, a)
		if err != nil {
			if firstErr == nil {
				state.failedStep = StepMintRewards
				firstErr = err
			}
			continue
		}
		if result.WasDuplicate {
			// A concurrent pass won the race; its mint already counted.
			continue
		}
		state.rewardXP += int(a.XPReward)

		unlockedEvent := shared.NewAchievementUnlockedEvent(
			state.input.LearnerID,
			a.ID,
			a.Name,
			int(a.XPReward),
		)
		grantedEvent := shared.NewRewardGrantedEvent(
			state.input.LearnerID,
			a.ID,
			int(a.XPReward),
			result.EventID,
		)
		if state.input.CorrelationID != "" {
			unlockedEvent.BaseEvent = unlockedEvent.BaseEvent.WithCorrelationID(state.input.CorrelationID)
			grantedEvent.BaseEvent = grantedEvent.BaseEvent.WithCorrelationID(state.input.CorrelationID)
		}
		state.events = append(state.events, unlockedEvent, grantedEvent)
	}

	// Repairs re-announce only the grant: the unlock itself was already
	// published when it was first recorded.
	for _, a := range state.repairs {
		result, err := s.mintReward(ctx, state, a)
		if err != nil {
			if firstErr == nil {
				state.failedStep = StepMintRewards
				firstErr = err
			}
			continue
		}
		if result.WasDuplicate {
			continue
		}
		state.rewardXP += int(a.XPReward)
		state.reminted++

		grantedEvent := shared.NewRewardGrantedEvent(
			state.input.LearnerID,
			a.ID,
			int(a.XPReward),
			result.EventID,
		)
		if state.input.CorrelationID != "" {
			grantedEvent.BaseEvent = grantedEvent.BaseEvent.WithCorrelationID(state.input.CorrelationID)
		}
		state.events = append(state.events, grantedEvent)
	}
	return firstErr
}

// mintReward appends the reward XP event for one unlock, reusing the
// pre-assigned event ID so replays stay idempotent.
func (s *RewardFlowSaga) mintReward(ctx context.Context, state *rewardFlowState, a *achievement.Achievement) (*command.RecordXPResult, error) {
	return s.xpRecorder.Handle(ctx, command.RecordXPCommand{
		EventID:       string(state.rewardEventIDs[a.ID]),
		LearnerID:     state.input.LearnerID,
		Amount:        int(a.XPReward),
		Source:        string(ledger.SourceAchievementUnlock),
		Reference:     a.ID,
		CorrelationID: state.input.CorrelationID,
	})
}

// stepPublishEvents publishes the collected domain events.
func (s *RewardFlowSaga) stepPublishEvents(state *rewardFlowState) {
	for _, ev := range state.events {
		// Publish failures are non-fatal: unlocks and rewards are durable.
		_ = s.eventPublisher.Publish(ev)
	}
}

// result builds the public result from the final state.
func (s *RewardFlowSaga) result(state *rewardFlowState) *RewardFlowResult {
	return &RewardFlowResult{
		LearnerID:          state.input.LearnerID,
		NewUnlocks:         state.newUnlocks,
		TotalRewardXP:      state.rewardXP,
		RemintedRewards:    state.reminted,
		FromCachedCounters: state.fromCache,
		ProcessedAt:        time.Now().UTC(),
	}
}

// wrapError annotates a step failure with saga context.
func (s *RewardFlowSaga) wrapError(state *rewardFlowState, err error) error {
	return fmt.Errorf("reward_flow: step %s failed: %w", state.failedStep, err)
}
